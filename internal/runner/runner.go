package runner

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/scheduler"
)

// Store 是 Runner 需要的持久化操作，由 repository.Repository 实现
type Store interface {
	GetSchedulingRunByID(id int64) (*domain.SchedulingRun, error)
	UpdateSchedulingRunStatus(id int64, status domain.RunStatus, errorMessage string) error
	SaveSchedulingRunResult(run *domain.SchedulingRun) error
}

// ErrRunNotPending 表示运行已经被执行过，重复投递的任务会得到这个错误
var ErrRunNotPending = errors.New("运行不处于等待状态")

// ErrRunNotStarted 表示运行还没有进入 running 状态就失败了，运行仍然是 pending，可以重试
var ErrRunNotStarted = errors.New("排课运行未能开始")

type Runner struct {
	cfg     *config.Config
	store   Store
	catalog *domain.Catalog
	metrics *metrics.Metrics
}

// New 创建 Runner，m 可以为 nil
func New(cfg *config.Config, store Store, catalog *domain.Catalog, m *metrics.Metrics) *Runner {
	return &Runner{
		cfg:     cfg,
		store:   store,
		catalog: catalog,
		metrics: m,
	}
}

// DefaultRunParameters 返回配置中的默认运行参数
func DefaultRunParameters(cfg *config.Config) domain.RunParameters {
	return domain.RunParameters{
		PopulationSize:             cfg.Scheduler.PopulationSize,
		MinimumGenerations:         cfg.Scheduler.MinGenerations,
		MaximumGenerations:         cfg.Scheduler.MaxGenerations,
		InitialMutationProbability: cfg.Scheduler.MutationRate,
		CrossoverMethod:            domain.CrossoverMethod(cfg.Scheduler.CrossoverMethod),
		ElitismCount:               cfg.Scheduler.ElitismCount,
		UseAdaptiveMutation:        cfg.Scheduler.AdaptiveMutation,
		Seed:                       cfg.Scheduler.Seed,
	}
}

// Solve 只运行遗传算法，不涉及持久化
func Solve(catalog *domain.Catalog, p domain.RunParameters, minPopulationSize int, cacheSize int, observer scheduler.Observer) (*scheduler.Result, *scheduler.Evaluator, error) {
	evaluator, err := scheduler.NewEvaluator(catalog, cacheSize)
	if err != nil {
		return nil, nil, err
	}

	opts := []scheduler.Option{
		scheduler.WithScorer(evaluator),
		scheduler.WithSeed(p.Seed),
	}
	if observer != nil {
		opts = append(opts, scheduler.WithObserver(observer))
	}

	s, err := scheduler.New(scheduler.ParametersFromRun(p, minPopulationSize), catalog, opts...)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.Schedule()
	if err != nil {
		return nil, nil, err
	}

	return result, evaluator, nil
}

// ApplyResult 把算法结果写入运行记录
func ApplyResult(run *domain.SchedulingRun, result *scheduler.Result) {
	bestFitness := result.BestFitness
	finalFitness := result.FinalFitness
	finalMutationRate := result.FinalMutationRate

	run.BestFitness = &bestFitness
	run.FinalFitness = &finalFitness
	run.FinalMutationRate = &finalMutationRate
	run.GenerationsRun = result.GenerationsRun
	run.History = result.History
	run.Violations = result.Violations.ToMap()
	run.Assignments = nil
	if result.BestSchedule != nil {
		run.Assignments = result.BestSchedule.Rows()
	}
}

// Execute 运行一次已经持久化的排课，结束时运行状态为 succeeded 或 failed
func (r *Runner) Execute(run *domain.SchedulingRun) error {
	start := time.Now()

	if err := r.store.UpdateSchedulingRunStatus(run.ID, domain.RunStatusRunning, ""); err != nil {
		return fmt.Errorf("%w: 无法将运行 %d 标记为运行中: %w", ErrRunNotStarted, run.ID, err)
	}
	run.Status = domain.RunStatusRunning

	slog.Info("开始排课", slog.Int64("run", run.ID), slog.String("name", run.Name), slog.Int("populationSize", run.Parameters.PopulationSize))

	observer := func(record domain.GenerationRecord) {
		slog.Debug("完成一代",
			slog.Int64("run", run.ID),
			slog.Int("generation", record.Generation),
			slog.Float64("best", record.Best),
			slog.Float64("average", record.Average),
			slog.Float64("mutationRate", record.MutationRate),
		)
	}

	result, evaluator, err := Solve(r.catalog, run.Parameters, r.cfg.Scheduler.MinPopulationSize, r.cfg.Scheduler.CacheSize, observer)
	if err != nil {
		return r.fail(run, start, err)
	}

	ApplyResult(run, result)
	if err := r.store.SaveSchedulingRunResult(run); err != nil {
		return r.fail(run, start, fmt.Errorf("保存排课结果失败: %w", err))
	}

	hits, misses := evaluator.CacheStats()
	if r.metrics != nil {
		r.metrics.RunSucceeded(time.Since(start), result.GenerationsRun, result.BestFitness)
		r.metrics.CacheLookups(hits, misses)
	}

	slog.Info("排课完成",
		slog.Int64("run", run.ID),
		slog.Int("generations", result.GenerationsRun),
		slog.Float64("bestFitness", result.BestFitness),
		slog.Int("violations", result.Violations.Total()),
		slog.Uint64("cacheHits", hits),
		slog.Uint64("cacheMisses", misses),
		slog.Duration("elapsed", time.Since(start)),
	)

	return nil
}

// ExecuteByID 读取运行记录后执行，pending 以外的运行不会被重复执行，此时返回 ErrRunNotPending
func (r *Runner) ExecuteByID(id int64) (*domain.SchedulingRun, error) {
	run, err := r.store.GetSchedulingRunByID(id)
	if err != nil {
		return nil, err
	}

	if run.Status != domain.RunStatusPending {
		slog.Warn("运行不处于等待状态，跳过", slog.Int64("run", id), slog.String("status", string(run.Status)))
		return run, ErrRunNotPending
	}

	if err := r.Execute(run); err != nil {
		return run, err
	}

	return run, nil
}

func (r *Runner) fail(run *domain.SchedulingRun, start time.Time, cause error) error {
	slog.Error("排课失败", slog.Int64("run", run.ID), slog.String("error", cause.Error()))

	if r.metrics != nil {
		r.metrics.RunFailed(time.Since(start))
	}

	run.Status = domain.RunStatusFailed
	run.ErrorMessage = cause.Error()
	if err := r.store.UpdateSchedulingRunStatus(run.ID, domain.RunStatusFailed, cause.Error()); err != nil {
		slog.Error("无法将运行标记为失败", slog.Int64("run", run.ID), slog.String("error", err.Error()))
	}

	return cause
}
