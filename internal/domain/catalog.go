package domain

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

type Room struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

type Activity struct {
	Name                   string   `json:"name"`
	ExpectedEnrollment     int      `json:"expectedEnrollment"`
	PreferredFacilitators  []string `json:"preferredFacilitators"`
	AcceptableFacilitators []string `json:"acceptableFacilitators"`
}

// SectionPair 表示两个有排课间隔要求的活动
type SectionPair struct {
	First  string `json:"first"`
	Second string `json:"second"`
}

// Catalog 是排课问题的全部静态输入，进程启动后只读
type Catalog struct {
	Facilitators     []string      `json:"facilitators"`
	TimeSlots        []string      `json:"timeSlots"` // 有序，小时间隔按下标计算
	Rooms            []Room        `json:"rooms"`
	Activities       []Activity    `json:"activities"`
	SameCoursePairs  []SectionPair `json:"sameCoursePairs"`
	CrossCoursePairs []SectionPair `json:"crossCoursePairs"`
	SpecialBuildings []string      `json:"specialBuildings"` // 教室名前缀
	// ReducedLoadFacilitator 只带一门课时不算工作量不足
	ReducedLoadFacilitator string `json:"reducedLoadFacilitator"`
}

func (c *Catalog) ActivityNames() []string {
	names := make([]string, len(c.Activities))
	for i, activity := range c.Activities {
		names[i] = activity.Name
	}
	return names
}

func (c *Catalog) ActivityIndex(name string) int {
	return slices.IndexFunc(c.Activities, func(a Activity) bool { return a.Name == name })
}

func (c *Catalog) TimeSlotIndex(slot string) int {
	return slices.Index(c.TimeSlots, slot)
}

func (c *Catalog) RoomCapacity(name string) (int, bool) {
	for _, room := range c.Rooms {
		if room.Name == name {
			return room.Capacity, true
		}
	}
	return 0, false
}

func (c *Catalog) IsSpecialBuilding(room string) bool {
	if room == "" {
		return false
	}
	for _, prefix := range c.SpecialBuildings {
		if strings.HasPrefix(room, prefix) {
			return true
		}
	}
	return false
}

func (c *Catalog) HasFacilitator(name string) bool {
	return slices.Contains(c.Facilitators, name)
}

func (c *Catalog) Validate() error {
	if len(c.Facilitators) == 0 {
		return errors.New("目录中没有任何负责人")
	}
	if len(c.TimeSlots) == 0 {
		return errors.New("目录中没有任何时间段")
	}
	if len(c.Rooms) == 0 {
		return errors.New("目录中没有任何教室")
	}
	if len(c.Activities) == 0 {
		return errors.New("目录中没有任何活动")
	}

	if err := checkDuplicates("负责人", c.Facilitators); err != nil {
		return err
	}
	if err := checkDuplicates("时间段", c.TimeSlots); err != nil {
		return err
	}

	roomNames := make([]string, len(c.Rooms))
	for i, room := range c.Rooms {
		if room.Capacity <= 0 {
			return fmt.Errorf("教室 %s 的容量必须为正数", room.Name)
		}
		roomNames[i] = room.Name
	}
	if err := checkDuplicates("教室", roomNames); err != nil {
		return err
	}

	for _, activity := range c.Activities {
		if activity.ExpectedEnrollment <= 0 {
			return fmt.Errorf("活动 %s 的预计人数必须为正数", activity.Name)
		}
	}
	if err := checkDuplicates("活动", c.ActivityNames()); err != nil {
		return err
	}

	if len(c.SameCoursePairs) != 2 {
		return fmt.Errorf("同课程分班规则必须恰好有 2 组，实际为 %d 组", len(c.SameCoursePairs))
	}
	for _, pair := range slices.Concat(c.SameCoursePairs, c.CrossCoursePairs) {
		if c.ActivityIndex(pair.First) < 0 || c.ActivityIndex(pair.Second) < 0 {
			return fmt.Errorf("分班规则 (%s, %s) 引用了不存在的活动", pair.First, pair.Second)
		}
	}

	return nil
}

func checkDuplicates(kind string, names []string) error {
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if name == "" {
			return fmt.Errorf("%s名称不能为空", kind)
		}
		if seen[name] {
			return fmt.Errorf("%s %s 重复", kind, name)
		}
		seen[name] = true
	}
	return nil
}
