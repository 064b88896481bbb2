package scheduler

import "fmt"

// randomSchedule 随机初始化一张排课表，每个活动的三个字段分别独立均匀随机
func (s *Scheduler) randomSchedule() *Schedule {
	sch := newSchedule(s.catalog)
	for i := range sch.assignments {
		sch.assignments[i] = Assignment{
			Room:        s.randomRoom(),
			TimeSlot:    s.randomTimeSlot(),
			Facilitator: s.randomFacilitator(),
		}
	}
	return sch
}

// createPopulation 生成初始种群，种群大小不能小于 MinPopulationSize
func (s *Scheduler) createPopulation(size int) ([]*Schedule, error) {
	if size < s.parameters.MinPopulationSize {
		return nil, fmt.Errorf("%w: 种群大小至少为 %d，实际为 %d", ErrPopulationTooSmall, s.parameters.MinPopulationSize, size)
	}

	pop := make([]*Schedule, size)
	for i := range pop {
		pop[i] = s.randomSchedule()
	}

	return pop, nil
}

func (s *Scheduler) randomRoom() string {
	return s.catalog.Rooms[s.rng.IntN(len(s.catalog.Rooms))].Name
}

func (s *Scheduler) randomTimeSlot() string {
	return s.catalog.TimeSlots[s.rng.IntN(len(s.catalog.TimeSlots))]
}

func (s *Scheduler) randomFacilitator() string {
	return s.catalog.Facilitators[s.rng.IntN(len(s.catalog.Facilitators))]
}
