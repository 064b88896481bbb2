package scheduler

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
)

type roomSlot struct {
	room string
	slot string
}

type facilitatorSlot struct {
	facilitator string
	slot        string
}

type activityPair struct {
	first  int
	second int
}

// Evaluator 计算排课表的适应度和违反统计
//
// 两者都是 assignments 与目录的纯函数，可以对同一张未修改的排课表重复调用。
// 适应度按 Schedule.Key() 做有界缓存，缓存只属于这个 Evaluator，也就是只属于一次运行
type Evaluator struct {
	catalog     *domain.Catalog
	timeIndex   map[string]int
	capacity    map[string]int
	preferred   []map[string]bool
	acceptable  []map[string]bool
	sameCourse  []activityPair
	crossCourse []activityPair

	cache  *lru.Cache[string, float64]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewEvaluator 创建 Evaluator，cacheSize <= 0 时不缓存
func NewEvaluator(catalog *domain.Catalog, cacheSize int) (*Evaluator, error) {
	if err := catalog.Validate(); err != nil {
		return nil, err
	}

	e := &Evaluator{
		catalog:    catalog,
		timeIndex:  make(map[string]int, len(catalog.TimeSlots)),
		capacity:   make(map[string]int, len(catalog.Rooms)),
		preferred:  make([]map[string]bool, len(catalog.Activities)),
		acceptable: make([]map[string]bool, len(catalog.Activities)),
	}

	for i, slot := range catalog.TimeSlots {
		e.timeIndex[slot] = i
	}
	for _, room := range catalog.Rooms {
		e.capacity[room.Name] = room.Capacity
	}
	for i, activity := range catalog.Activities {
		e.preferred[i] = toSet(activity.PreferredFacilitators)
		e.acceptable[i] = toSet(activity.AcceptableFacilitators)
	}
	for _, pair := range catalog.SameCoursePairs {
		e.sameCourse = append(e.sameCourse, activityPair{catalog.ActivityIndex(pair.First), catalog.ActivityIndex(pair.Second)})
	}
	for _, pair := range catalog.CrossCoursePairs {
		e.crossCourse = append(e.crossCourse, activityPair{catalog.ActivityIndex(pair.First), catalog.ActivityIndex(pair.Second)})
	}

	if cacheSize > 0 {
		cache, err := lru.New[string, float64](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("无法创建适应度缓存: %w", err)
		}
		e.cache = cache
	}

	return e, nil
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// Score 计算排课表的适应度并写入排课表的缓存字段
func (e *Evaluator) Score(s *Schedule) float64 {
	if fitness, ok := s.Fitness(); ok {
		return fitness
	}

	var key string
	if e.cache != nil {
		key = s.Key()
		if fitness, ok := e.cache.Get(key); ok {
			e.hits.Add(1)
			s.fitness = &fitness
			return fitness
		}
		e.misses.Add(1)
	}

	fitness := e.score(s)
	if e.cache != nil {
		e.cache.Add(key, fitness)
	}
	s.fitness = &fitness

	return fitness
}

// Violations 统计排课表违反各规则的次数并写入排课表的缓存字段，返回值是一份拷贝
func (e *Evaluator) Violations(s *Schedule) Violations {
	if v, ok := s.Violations(); ok {
		return v
	}

	v := e.countViolations(s)
	s.violations = v

	return v.Clone()
}

// ResetCache 清空适应度缓存
func (e *Evaluator) ResetCache() {
	if e.cache != nil {
		e.cache.Purge()
	}
	e.hits.Store(0)
	e.misses.Store(0)
}

func (e *Evaluator) CacheStats() (hits uint64, misses uint64) {
	return e.hits.Load(), e.misses.Load()
}

/**
 * 计算适应度
 * fitness = Σ(每个活动的得分) + Σ(同课程分班规则得分) + Σ(跨课程分班规则得分)
 * 每个活动的得分由以下几部分组成:
 * 		1. 教室容量与预计人数的匹配程度
 * 		2. 负责人是否为首选 / 可接受
 * 		3. 教室在同一时间段是否被多个活动占用
 * 		4. 负责人在同一时间段是否只带一个活动
 * 		5. 负责人总工作量是否过多或过少
 */
func (e *Evaluator) score(s *Schedule) float64 {
	roomTimeUsage, facilitatorTimeUsage, facilitatorLoad := e.collectUsage(s)

	total := 0.0
	for i, a := range s.assignments {
		activityScore := 0.0

		activityScore += e.roomSizeScore(i, a.Room)
		activityScore += e.facilitatorPreferenceScore(i, a.Facilitator)

		if a.Room != "" && a.TimeSlot != "" {
			if roomTimeUsage[roomSlot{a.Room, a.TimeSlot}] > 1 {
				activityScore -= 0.5
			}
		}

		if a.Facilitator != "" && a.TimeSlot != "" {
			concurrent := facilitatorTimeUsage[facilitatorSlot{a.Facilitator, a.TimeSlot}]
			if concurrent == 1 {
				activityScore += 0.2
			} else if concurrent > 1 {
				activityScore -= 0.2
			}
		}

		if a.Facilitator != "" {
			load := facilitatorLoad[a.Facilitator]
			if load > 4 {
				activityScore -= 0.5
			} else if e.isUnderloaded(a.Facilitator, load) {
				activityScore -= 0.4
			}
		}

		total += activityScore
	}

	for _, pair := range e.sameCourse {
		total += e.sameCourseScore(s.assignments[pair.first], s.assignments[pair.second])
	}
	for _, pair := range e.crossCourse {
		total += e.crossCourseScore(s.assignments[pair.first], s.assignments[pair.second])
	}

	return total
}

func (e *Evaluator) collectUsage(s *Schedule) (map[roomSlot]int, map[facilitatorSlot]int, map[string]int) {
	roomTimeUsage := make(map[roomSlot]int)
	facilitatorTimeUsage := make(map[facilitatorSlot]int)
	facilitatorLoad := make(map[string]int)

	for _, a := range s.assignments {
		if a.Room != "" && a.TimeSlot != "" {
			roomTimeUsage[roomSlot{a.Room, a.TimeSlot}]++
		}
		if a.Facilitator != "" && a.TimeSlot != "" {
			facilitatorTimeUsage[facilitatorSlot{a.Facilitator, a.TimeSlot}]++
		}
		if a.Facilitator != "" {
			facilitatorLoad[a.Facilitator]++
		}
	}

	return roomTimeUsage, facilitatorTimeUsage, facilitatorLoad
}

// isUnderloaded 判断负责人工作量是否不足
// ReducedLoadFacilitator 只带 1 门课不算不足，但恰好带 2 门课仍然算不足
func (e *Evaluator) isUnderloaded(facilitator string, load int) bool {
	if load >= 3 {
		return false
	}
	if facilitator == e.catalog.ReducedLoadFacilitator {
		return load >= 2
	}
	return true
}

func (e *Evaluator) roomSizeScore(activity int, room string) float64 {
	if room == "" {
		return 0
	}

	expected := e.catalog.Activities[activity].ExpectedEnrollment
	capacity := e.capacity[room]

	if capacity < expected {
		return -0.5
	}

	ratio := float64(capacity) / float64(expected)
	switch {
	case ratio > 3.0:
		return -0.4
	case ratio > 1.5:
		return -0.2
	default:
		return 0.3
	}
}

func (e *Evaluator) facilitatorPreferenceScore(activity int, facilitator string) float64 {
	if facilitator == "" {
		return 0
	}

	switch {
	case e.preferred[activity][facilitator]:
		return 0.5
	case e.acceptable[activity][facilitator]:
		return 0.2
	default:
		return -0.1
	}
}

func (e *Evaluator) hourDistance(a string, b string) int {
	i, ok1 := e.timeIndex[a]
	j, ok2 := e.timeIndex[b]
	if !ok1 || !ok2 {
		return 0
	}
	if i > j {
		return i - j
	}
	return j - i
}

func (e *Evaluator) sameCourseScore(a Assignment, b Assignment) float64 {
	if a.TimeSlot == "" || b.TimeSlot == "" {
		return 0
	}
	if a.TimeSlot == b.TimeSlot {
		return -0.5
	}
	if e.hourDistance(a.TimeSlot, b.TimeSlot) > 4 {
		return 0.5
	}
	return 0
}

// crossCourseScore 只在相邻时间段时检查是否跨越特殊楼栋，间隔一小时时不检查
func (e *Evaluator) crossCourseScore(a Assignment, b Assignment) float64 {
	if a.TimeSlot == "" || b.TimeSlot == "" {
		return 0
	}
	if a.TimeSlot == b.TimeSlot {
		return -0.25
	}

	switch e.hourDistance(a.TimeSlot, b.TimeSlot) {
	case 1:
		score := 0.5
		if e.catalog.IsSpecialBuilding(a.Room) != e.catalog.IsSpecialBuilding(b.Room) {
			score -= 0.4
		}
		return score
	case 2:
		return 0.25
	default:
		return 0
	}
}

func (e *Evaluator) countViolations(s *Schedule) Violations {
	v := NewViolations()

	roomTimeUsage, facilitatorTimeUsage, facilitatorLoad := e.collectUsage(s)

	for i, a := range s.assignments {
		if a.Room == "" {
			continue
		}

		expected := e.catalog.Activities[i].ExpectedEnrollment
		capacity := e.capacity[a.Room]

		if capacity < expected {
			v[ViolationRoomTooSmall]++
			continue
		}

		ratio := float64(capacity) / float64(expected)
		if ratio > 3.0 {
			v[ViolationRoomTooBig30]++
		} else if ratio > 1.5 {
			v[ViolationRoomTooBig15]++
		}
	}

	// N 个活动占用同一个 (room, slot) 记为 N-1 次冲突
	for _, count := range roomTimeUsage {
		if count > 1 {
			v[ViolationRoomConflict] += count - 1
		}
	}

	for facilitator, load := range facilitatorLoad {
		if load > 4 {
			v[ViolationFacilitatorOverload]++
		} else if e.isUnderloaded(facilitator, load) {
			v[ViolationFacilitatorUnderload]++
		}
	}

	for _, count := range facilitatorTimeUsage {
		if count > 1 {
			v[ViolationFacilitatorSameTime] += count - 1
		}
	}

	for i, pair := range e.sameCourse {
		a, b := s.assignments[pair.first], s.assignments[pair.second]
		if a.TimeSlot != "" && a.TimeSlot == b.TimeSlot {
			v[sameCourseViolationKinds[i]]++
		}
	}

	for _, pair := range e.crossCourse {
		a, b := s.assignments[pair.first], s.assignments[pair.second]
		if a.TimeSlot == "" || b.TimeSlot == "" {
			continue
		}

		if a.TimeSlot == b.TimeSlot {
			v[ViolationCrossCourseSameTime]++
			continue
		}

		switch e.hourDistance(a.TimeSlot, b.TimeSlot) {
		case 1:
			v[ViolationCrossCourseConsecutive]++
			if a.Room != "" && b.Room != "" && e.catalog.IsSpecialBuilding(a.Room) != e.catalog.IsSpecialBuilding(b.Room) {
				v[ViolationCrossCourseBuildingChange]++
			}
		case 2:
			v[ViolationCrossCourseOneHourGap]++
		}
	}

	return v
}
