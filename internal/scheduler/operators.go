package scheduler

// 单点交叉
// 交叉点之前（含交叉点）的基因来自 a，之后的来自 b，子代不与任何父本共享数据
func (s *Scheduler) singlePointCrossover(a *Schedule, b *Schedule) *Schedule {
	child := newSchedule(s.catalog)
	point := s.rng.IntN(len(child.assignments))

	for i := range child.assignments {
		if i <= point {
			child.assignments[i] = a.assignments[i]
		} else {
			child.assignments[i] = b.assignments[i]
		}
	}

	return child
}

// 均匀交叉
// 每个活动独立地以概率 p 取 b 的基因，否则取 a 的基因
func (s *Scheduler) uniformCrossover(a *Schedule, b *Schedule, p float64) *Schedule {
	child := newSchedule(s.catalog)

	for i := range child.assignments {
		if s.rng.Float64() < p {
			child.assignments[i] = b.assignments[i]
		} else {
			child.assignments[i] = a.assignments[i]
		}
	}

	return child
}

func (s *Scheduler) crossover(a *Schedule, b *Schedule) *Schedule {
	if s.parameters.CrossoverMethod == CrossoverUniform {
		return s.uniformCrossover(a, b, s.parameters.UniformCrossoverRate)
	}
	return s.singlePointCrossover(a, b)
}

// 变异
// 每个活动的教室、时间段、负责人分别以概率 p 被替换为随机值，结束后总是清空缓存
func (s *Scheduler) mutate(sch *Schedule, p float64) *Schedule {
	for i := range sch.assignments {
		a := &sch.assignments[i]

		if s.rng.Float64() < p {
			a.Room = s.randomRoom()
		}
		if s.rng.Float64() < p {
			a.TimeSlot = s.randomTimeSlot()
		}
		if s.rng.Float64() < p {
			a.Facilitator = s.randomFacilitator()
		}
	}

	sch.Invalidate()

	return sch
}
