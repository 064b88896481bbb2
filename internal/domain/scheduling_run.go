package domain

import "time"

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

type CrossoverMethod string

const (
	CrossoverSinglePoint CrossoverMethod = "single_point"
	CrossoverUniform     CrossoverMethod = "uniform"
)

// RunParameters 是一次排课运行的可调参数
type RunParameters struct {
	PopulationSize             int             `json:"populationSize"`
	MinimumGenerations         int             `json:"minimumGenerations"`
	MaximumGenerations         int             `json:"maximumGenerations"`
	InitialMutationProbability float64         `json:"initialMutationProbability"`
	CrossoverMethod            CrossoverMethod `json:"crossoverMethod"`
	ElitismCount               int             `json:"elitismCount"`
	UseAdaptiveMutation        bool            `json:"useAdaptiveMutation"`
	Seed                       uint64          `json:"seed"` // 0 表示随机种子
}

// ScheduledActivity 是排课结果中的一行
type ScheduledActivity struct {
	Activity    string `json:"activity"`
	Room        string `json:"room"`
	TimeSlot    string `json:"timeSlot"`
	Facilitator string `json:"facilitator"`
}

type GenerationRecord struct {
	Generation   int      `json:"generation"`
	Best         float64  `json:"best"`
	Average      float64  `json:"average"`
	Worst        float64  `json:"worst"`
	Improvement  *float64 `json:"improvement"` // 第一代为 nil
	MutationRate float64  `json:"mutationRate"`
}

type FitnessSummary struct {
	Best    float64 `json:"best"`
	Average float64 `json:"average"`
	Worst   float64 `json:"worst"`
}

type SchedulingRun struct {
	ID                int64               `json:"id"`
	Name              string              `json:"name"`
	Status            RunStatus           `json:"status"`
	Parameters        RunParameters       `json:"parameters"`
	BestFitness       *float64            `json:"bestFitness"`
	FinalFitness      *FitnessSummary     `json:"finalFitness"`
	FinalMutationRate *float64            `json:"finalMutationRate"`
	GenerationsRun    int                 `json:"generationsRun"`
	Assignments       []ScheduledActivity `json:"assignments"`
	Violations        map[string]int      `json:"violations"`
	History           []GenerationRecord  `json:"history,omitempty"`
	ErrorMessage      string              `json:"errorMessage,omitempty"`
	CreatedBy         int64               `json:"createdBy"`
	CreatedAt         time.Time           `json:"createdAt"`
	FinishedAt        *time.Time          `json:"finishedAt"`
	Version           int32               `json:"-"`
}
