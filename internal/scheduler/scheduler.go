package scheduler

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
)

const (
	CrossoverSinglePoint = domain.CrossoverSinglePoint
	CrossoverUniform     = domain.CrossoverUniform

	DefaultMinPopulationSize = 250
	DefaultCacheSize         = 100000

	improvementEpsilon  = 1e-9
	plateauThreshold    = 1.0 // 平均适应度提升低于 1% 视为收敛
	adaptationInterval  = 20
	adaptationThreshold = 0.1
)

var (
	ErrInvalidParameters   = errors.New("遗传算法参数非法")
	ErrPopulationTooSmall  = fmt.Errorf("%w: 种群过小", ErrInvalidParameters)
	ErrInvalidElitism      = fmt.Errorf("%w: 精英数量非法", ErrInvalidParameters)
	ErrUnknownCrossover    = fmt.Errorf("%w: 未知的交叉方式", ErrInvalidParameters)
	ErrInvalidGenerations  = fmt.Errorf("%w: 迭代次数非法", ErrInvalidParameters)
	ErrInvalidMutationRate = fmt.Errorf("%w: 变异概率非法", ErrInvalidParameters)
)

// Scorer 评估排课表的质量，默认实现为 Evaluator
type Scorer interface {
	Score(s *Schedule) float64
	Violations(s *Schedule) Violations
}

// Observer 在每一代统计完成后被调用
type Observer func(record domain.GenerationRecord)

type Option func(s *Scheduler)

func WithRand(rng *rand.Rand) Option {
	return func(s *Scheduler) {
		s.rng = rng
	}
}

// WithSeed 使用固定种子，seed 为 0 时使用随机种子
func WithSeed(seed uint64) Option {
	return func(s *Scheduler) {
		if seed != 0 {
			s.rng = rand.New(rand.NewPCG(seed, seed))
		}
	}
}

func WithScorer(scorer Scorer) Option {
	return func(s *Scheduler) {
		s.scorer = scorer
	}
}

func WithObserver(observer Observer) Option {
	return func(s *Scheduler) {
		s.observer = observer
	}
}

func WithCacheSize(size int) Option {
	return func(s *Scheduler) {
		s.cacheSize = size
	}
}

func DefaultParameters() *Parameters {
	return &Parameters{
		PopulationSize:       250,
		MinPopulationSize:    DefaultMinPopulationSize,
		MinGenerations:       100,
		MaxGenerations:       500,
		MutationRate:         0.01,
		CrossoverMethod:      CrossoverSinglePoint,
		UniformCrossoverRate: 0.5,
		ElitismCount:         1,
		AdaptiveMutation:     true,
	}
}

// ParametersFromRun 将持久化的运行参数转换为算法参数
func ParametersFromRun(p domain.RunParameters, minPopulationSize int) *Parameters {
	params := DefaultParameters()
	params.PopulationSize = p.PopulationSize
	params.MinPopulationSize = minPopulationSize
	params.MinGenerations = p.MinimumGenerations
	params.MaxGenerations = p.MaximumGenerations
	params.MutationRate = p.InitialMutationProbability
	params.CrossoverMethod = p.CrossoverMethod
	params.ElitismCount = p.ElitismCount
	params.AdaptiveMutation = p.UseAdaptiveMutation
	return params
}

func (p *Parameters) Validate() error {
	if p.MinPopulationSize < 1 {
		return fmt.Errorf("%w: 最小种群大小必须为正数", ErrPopulationTooSmall)
	}
	if p.PopulationSize < p.MinPopulationSize {
		return fmt.Errorf("%w: 种群大小至少为 %d，实际为 %d", ErrPopulationTooSmall, p.MinPopulationSize, p.PopulationSize)
	}
	if p.ElitismCount < 0 || p.ElitismCount >= p.PopulationSize {
		return fmt.Errorf("%w: 精英数量必须在 [0, %d) 之间，实际为 %d", ErrInvalidElitism, p.PopulationSize, p.ElitismCount)
	}
	if p.CrossoverMethod != CrossoverSinglePoint && p.CrossoverMethod != CrossoverUniform {
		return fmt.Errorf("%w: %q", ErrUnknownCrossover, p.CrossoverMethod)
	}
	if p.MinGenerations < 0 || p.MaxGenerations < 1 {
		return fmt.Errorf("%w: 最少 %d 代，最多 %d 代", ErrInvalidGenerations, p.MinGenerations, p.MaxGenerations)
	}
	if !(p.MutationRate > 0 && p.MutationRate < 1) {
		return fmt.Errorf("%w: 必须在 (0, 1) 之间，实际为 %v", ErrInvalidMutationRate, p.MutationRate)
	}
	if p.UniformCrossoverRate < 0 || p.UniformCrossoverRate > 1 {
		return fmt.Errorf("%w: 均匀交叉概率必须在 [0, 1] 之间", ErrInvalidParameters)
	}
	return nil
}

type Scheduler struct {
	parameters *Parameters
	catalog    *domain.Catalog
	scorer     Scorer
	rng        *rand.Rand
	observer   Observer
	cacheSize  int
}

// New 创建排课器，参数或目录不合法时直接返回错误，不会运行任何一代
func New(parameters *Parameters, catalog *domain.Catalog, opts ...Option) (*Scheduler, error) {
	if err := parameters.Validate(); err != nil {
		return nil, err
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}

	s := &Scheduler{
		parameters: parameters,
		catalog:    catalog,
		rng:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		cacheSize:  DefaultCacheSize,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.scorer == nil {
		evaluator, err := NewEvaluator(catalog, s.cacheSize)
		if err != nil {
			return nil, err
		}
		s.scorer = evaluator
	}

	return s, nil
}

func (s *Scheduler) Scorer() Scorer {
	return s.scorer
}

// evaluate 计算种群中每张排课表的适应度，空种群返回全 0 的统计
func (s *Scheduler) evaluate(pop []*Schedule) ([]float64, domain.FitnessSummary) {
	scores := make([]float64, len(pop))
	if len(pop) == 0 {
		return scores, domain.FitnessSummary{}
	}

	sum := 0.0
	summary := domain.FitnessSummary{
		Best:  math.Inf(-1),
		Worst: math.Inf(1),
	}
	for i, sch := range pop {
		scores[i] = s.scorer.Score(sch)
		sum += scores[i]
		summary.Best = max(summary.Best, scores[i])
		summary.Worst = min(summary.Worst, scores[i])
	}
	summary.Average = sum / float64(len(pop))

	return scores, summary
}

// improvementPercentage 计算平均适应度相对上一代的提升百分比
func improvementPercentage(current float64, previous float64) float64 {
	return (current - previous) / math.Max(math.Abs(previous), improvementEpsilon) * 100.0
}

// assembleGeneration 精英在前、子代在后，多则截断尾部，少则从头重复子代补齐
func assembleGeneration(eliteSchedules []*Schedule, offspring []*Schedule, size int) []*Schedule {
	next := make([]*Schedule, 0, max(size, len(eliteSchedules)+len(offspring)))
	next = append(next, eliteSchedules...)
	next = append(next, offspring...)

	if len(next) > size {
		return next[:size]
	}

	source := offspring
	if len(source) == 0 {
		source = eliteSchedules
	}
	for i := 0; len(next) < size && len(source) > 0; i++ {
		next = append(next, source[i%len(source)].Clone())
	}

	return next
}

// Schedule 运行遗传算法直到收敛或达到最大迭代次数
func (s *Scheduler) Schedule() (*Result, error) {
	params := s.parameters

	// 生成初始种群
	pop, err := s.createPopulation(params.PopulationSize)
	if err != nil {
		return nil, err
	}

	mutationRate := params.MutationRate
	history := make([]domain.GenerationRecord, 0, params.MaxGenerations)
	var previousAverage *float64
	generationsRun := 0

	// 迭代
	for gen := 0; gen < params.MaxGenerations; gen++ {
		generationsRun = gen + 1

		scores, summary := s.evaluate(pop)

		var improvement *float64
		if previousAverage != nil {
			v := improvementPercentage(summary.Average, *previousAverage)
			improvement = &v
		}
		average := summary.Average
		previousAverage = &average

		record := domain.GenerationRecord{
			Generation:   gen,
			Best:         summary.Best,
			Average:      summary.Average,
			Worst:        summary.Worst,
			Improvement:  improvement,
			MutationRate: mutationRate,
		}
		history = append(history, record)
		if s.observer != nil {
			s.observer(record)
		}

		// 达到最少代数之后，平均适应度提升不足 1% 则停止
		if generationsRun >= params.MinGenerations && improvement != nil && *improvement < plateauThreshold {
			break
		}

		// 每 20 代检查一次，提升仍然明显时减半变异概率（只降不升）
		if params.AdaptiveMutation && gen > 0 && gen%adaptationInterval == 0 {
			if improvement != nil && *improvement > adaptationThreshold {
				mutationRate /= 2.0
			}
		}

		// 选择
		probabilities := SoftmaxWeights(scores)
		pairs := s.samplePairs(pop, probabilities, params.PopulationSize-params.ElitismCount)

		// 繁殖：交叉之后总是进行变异
		offspring := make([]*Schedule, 0, len(pairs))
		for _, pair := range pairs {
			child := s.crossover(pair[0], pair[1])
			s.mutate(child, mutationRate)
			offspring = append(offspring, child)
		}

		// 保留精英
		eliteSchedules := elites(pop, scores, params.ElitismCount)

		pop = assembleGeneration(eliteSchedules, offspring, params.PopulationSize)
	}

	// 最后再评估一次，取第一个适应度最高的排课表
	scores, summary := s.evaluate(pop)
	bestIndex := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[bestIndex] {
			bestIndex = i
		}
	}

	result := &Result{
		History:           history,
		FinalMutationRate: mutationRate,
		GenerationsRun:    generationsRun,
		FinalFitness:      summary,
	}
	if len(pop) > 0 {
		result.BestSchedule = pop[bestIndex]
		result.BestFitness = scores[bestIndex]
		result.Violations = s.scorer.Violations(pop[bestIndex])
	}

	return result, nil
}
