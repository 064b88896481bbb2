package scheduler

type ViolationKind string

const (
	ViolationRoomConflict              ViolationKind = "room_conflicts"
	ViolationRoomTooSmall              ViolationKind = "room_too_small"
	ViolationRoomTooBig15              ViolationKind = "room_too_big_15" // 容量超过预计人数 1.5 倍
	ViolationRoomTooBig30              ViolationKind = "room_too_big_30" // 容量超过预计人数 3 倍
	ViolationFacilitatorOverload       ViolationKind = "facilitator_overload"
	ViolationFacilitatorUnderload      ViolationKind = "facilitator_underload"
	ViolationFacilitatorSameTime       ViolationKind = "facilitator_same_time_conflict"
	ViolationSameCourseFirstSameTime   ViolationKind = "same_course_first_same_time"
	ViolationSameCourseSecondSameTime  ViolationKind = "same_course_second_same_time"
	ViolationCrossCourseSameTime       ViolationKind = "cross_course_same_time"
	ViolationCrossCourseConsecutive    ViolationKind = "cross_course_consecutive"
	ViolationCrossCourseOneHourGap     ViolationKind = "cross_course_one_hour_gap"
	ViolationCrossCourseBuildingChange ViolationKind = "cross_course_building_mismatch"
)

// ViolationKinds 是违反统计的完整键集合，也是导出时的列顺序
var ViolationKinds = []ViolationKind{
	ViolationRoomConflict,
	ViolationRoomTooSmall,
	ViolationRoomTooBig15,
	ViolationRoomTooBig30,
	ViolationFacilitatorOverload,
	ViolationFacilitatorUnderload,
	ViolationFacilitatorSameTime,
	ViolationSameCourseFirstSameTime,
	ViolationSameCourseSecondSameTime,
	ViolationCrossCourseSameTime,
	ViolationCrossCourseConsecutive,
	ViolationCrossCourseOneHourGap,
	ViolationCrossCourseBuildingChange,
}

var sameCourseViolationKinds = [2]ViolationKind{ViolationSameCourseFirstSameTime, ViolationSameCourseSecondSameTime}

// Violations 记录每种规则被违反的次数，所有键都存在（未违反为 0）
type Violations map[ViolationKind]int

func NewViolations() Violations {
	v := make(Violations, len(ViolationKinds))
	for _, kind := range ViolationKinds {
		v[kind] = 0
	}
	return v
}

func (v Violations) Total() int {
	total := 0
	for _, count := range v {
		total += count
	}
	return total
}

func (v Violations) Clone() Violations {
	if v == nil {
		return nil
	}
	c := make(Violations, len(v))
	for kind, count := range v {
		c[kind] = count
	}
	return c
}

// ToMap 转换为可以直接序列化或持久化的形式
func (v Violations) ToMap() map[string]int {
	m := make(map[string]int, len(ViolationKinds))
	for _, kind := range ViolationKinds {
		m[string(kind)] = v[kind]
	}
	return m
}
