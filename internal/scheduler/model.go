package scheduler

import (
	"fmt"
	"strings"

	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
)

// Assignment: 一个活动的排课决策
type Assignment struct {
	Room        string `json:"room"`
	TimeSlot    string `json:"timeSlot"`
	Facilitator string `json:"facilitator"`
}

func (a Assignment) Complete() bool {
	return a.Room != "" && a.TimeSlot != "" && a.Facilitator != ""
}

// Schedule: 整个排课表，assignments 的下标与 catalog.Activities 的顺序一一对应
//
// fitness 和 violations 是惰性计算的缓存，任何对 assignments 的修改都必须清空它们
type Schedule struct {
	catalog     *domain.Catalog
	assignments []Assignment
	fitness     *float64
	violations  Violations
}

func newSchedule(catalog *domain.Catalog) *Schedule {
	return &Schedule{
		catalog:     catalog,
		assignments: make([]Assignment, len(catalog.Activities)),
	}
}

// NewSchedule 根据 活动名 -> 排课 的映射构造排课表，映射的键集合必须与目录中的活动完全一致
func NewSchedule(catalog *domain.Catalog, assignments map[string]Assignment) (*Schedule, error) {
	if len(assignments) != len(catalog.Activities) {
		return nil, fmt.Errorf("排课表包含 %d 个活动，目录中有 %d 个活动", len(assignments), len(catalog.Activities))
	}

	s := newSchedule(catalog)
	for i, activity := range catalog.Activities {
		a, exists := assignments[activity.Name]
		if !exists {
			return nil, fmt.Errorf("活动 %s 没有排课", activity.Name)
		}
		if !a.Complete() {
			return nil, fmt.Errorf("活动 %s 的排课不完整", activity.Name)
		}
		s.assignments[i] = a
	}

	return s, nil
}

func (s *Schedule) Len() int {
	return len(s.assignments)
}

func (s *Schedule) ActivityAt(i int) string {
	return s.catalog.Activities[i].Name
}

func (s *Schedule) At(i int) Assignment {
	return s.assignments[i]
}

func (s *Schedule) Assignment(activity string) (Assignment, bool) {
	i := s.catalog.ActivityIndex(activity)
	if i < 0 {
		return Assignment{}, false
	}
	return s.assignments[i], true
}

// Assignments 返回 活动名 -> 排课 的拷贝
func (s *Schedule) Assignments() map[string]Assignment {
	m := make(map[string]Assignment, len(s.assignments))
	for i, a := range s.assignments {
		m[s.ActivityAt(i)] = a
	}
	return m
}

func (s *Schedule) Set(activity string, a Assignment) error {
	i := s.catalog.ActivityIndex(activity)
	if i < 0 {
		return fmt.Errorf("活动 %s 不在目录中", activity)
	}
	s.setAt(i, a)
	return nil
}

func (s *Schedule) setAt(i int, a Assignment) {
	s.assignments[i] = a
	s.Invalidate()
}

func (s *Schedule) Invalidate() {
	s.fitness = nil
	s.violations = nil
}

func (s *Schedule) Fitness() (float64, bool) {
	if s.fitness == nil {
		return 0, false
	}
	return *s.fitness, true
}

func (s *Schedule) Violations() (Violations, bool) {
	if s.violations == nil {
		return nil, false
	}
	return s.violations.Clone(), true
}

func (s *Schedule) Complete() bool {
	if len(s.assignments) != len(s.catalog.Activities) {
		return false
	}
	for _, a := range s.assignments {
		if !a.Complete() {
			return false
		}
	}
	return true
}

// Clone 深拷贝排课表，适应度缓存随之拷贝，违反统计拷贝为独立的 map
func (s *Schedule) Clone() *Schedule {
	c := &Schedule{
		catalog:     s.catalog,
		assignments: make([]Assignment, len(s.assignments)),
		violations:  s.violations.Clone(),
	}
	copy(c.assignments, s.assignments)
	if s.fitness != nil {
		fitness := *s.fitness
		c.fitness = &fitness
	}
	return c
}

// Key 返回按目录顺序编码的所有 (room, time, facilitator)，用作适应度缓存的键
func (s *Schedule) Key() string {
	var b strings.Builder
	for i, a := range s.assignments {
		if i > 0 {
			b.WriteByte('\x1e')
		}
		b.WriteString(a.Room)
		b.WriteByte('\x1f')
		b.WriteString(a.TimeSlot)
		b.WriteByte('\x1f')
		b.WriteString(a.Facilitator)
	}
	return b.String()
}

// Rows 返回表格形式的排课结果，每个活动一行
func (s *Schedule) Rows() []domain.ScheduledActivity {
	rows := make([]domain.ScheduledActivity, len(s.assignments))
	for i, a := range s.assignments {
		rows[i] = domain.ScheduledActivity{
			Activity:    s.ActivityAt(i),
			Room:        a.Room,
			TimeSlot:    a.TimeSlot,
			Facilitator: a.Facilitator,
		}
	}
	return rows
}

// 遗传算法参数
type Parameters struct {
	PopulationSize       int                    // 种群大小
	MinPopulationSize    int                    // 允许的最小种群大小
	MinGenerations       int                    // 最少迭代次数，达到之前不会因收敛而停止
	MaxGenerations       int                    // 最大迭代次数
	MutationRate         float64                // 初始变异概率
	CrossoverMethod      domain.CrossoverMethod // 交叉方式
	UniformCrossoverRate float64                // 均匀交叉时取第二个父本的概率
	ElitismCount         int                    // 精英数量
	AdaptiveMutation     bool                   // 是否自适应降低变异概率
}

type Result struct {
	BestSchedule      *Schedule
	BestFitness       float64
	Violations        Violations
	History           []domain.GenerationRecord
	FinalMutationRate float64
	GenerationsRun    int
	FinalFitness      domain.FitnessSummary
}

// ScheduleFromRows 是 Rows 的逆操作，重复的活动视为错误
func ScheduleFromRows(catalog *domain.Catalog, rows []domain.ScheduledActivity) (*Schedule, error) {
	assignments := make(map[string]Assignment, len(rows))
	for _, row := range rows {
		if _, dup := assignments[row.Activity]; dup {
			return nil, fmt.Errorf("活动 %s 重复", row.Activity)
		}
		assignments[row.Activity] = Assignment{
			Room:        row.Room,
			TimeSlot:    row.TimeSlot,
			Facilitator: row.Facilitator,
		}
	}
	return NewSchedule(catalog, assignments)
}
