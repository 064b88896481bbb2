package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/runner"
)

type Executor interface {
	ExecuteByID(id int64) (*domain.SchedulingRun, error)
}

type Archiver interface {
	ArchiveRun(ctx context.Context, run *domain.SchedulingRun) (string, error)
}

type Publisher interface {
	PublishJSON(ctx context.Context, queue string, messageID string, v any) error
}

// Decision 决定一条排课任务消息最终如何确认
type Decision int

const (
	Ack     Decision = iota
	Requeue          // 暂时性错误，重新入队
	Drop             // 无法处理的消息，丢弃
)

func (d Decision) String() string {
	switch d {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	default:
		return "drop"
	}
}

type Worker struct {
	executor   Executor
	archiver   Archiver
	publisher  Publisher
	emailQueue string
	notifyTo   []string
}

// New 创建 Worker，archiver 为 nil 时不归档报告
func New(executor Executor, archiver Archiver, publisher Publisher, emailQueue string, notifyTo []string) *Worker {
	return &Worker{
		executor:   executor,
		archiver:   archiver,
		publisher:  publisher,
		emailQueue: emailQueue,
		notifyTo:   notifyTo,
	}
}

// Handle 处理一条排课任务消息
func (w *Worker) Handle(ctx context.Context, body []byte) Decision {
	var job domain.SchedulingJob
	if err := json.Unmarshal(body, &job); err != nil || job.RunID <= 0 {
		slog.Error("排课任务格式错误", slog.String("body", string(body)))
		return Drop
	}

	logger := slog.With(slog.String("job", job.JobID), slog.Int64("run", job.RunID))

	run, err := w.executor.ExecuteByID(job.RunID)
	switch {
	case errors.Is(err, runner.ErrRunNotPending):
		// 重复投递的任务已经处理过，直接确认
		return Ack
	case errors.Is(err, runner.ErrRunNotStarted):
		// 运行仍是 pending，重新入队后还能再执行
		logger.Error("排课运行未能开始", slog.String("error", err.Error()))
		return Requeue
	case run == nil && errors.Is(err, sql.ErrNoRows):
		logger.Warn("排课运行不存在，丢弃任务")
		return Drop
	case run == nil && err != nil:
		logger.Error("无法读取排课运行", slog.String("error", err.Error()))
		return Requeue
	}

	mailType := domain.MailTypeRunSucceeded
	data := domain.RunFinishedMailData{
		RunID:          run.ID,
		RunName:        run.Name,
		GenerationsRun: run.GenerationsRun,
	}

	if err != nil {
		mailType = domain.MailTypeRunFailed
		data.ErrorMessage = err.Error()
	} else {
		if run.BestFitness != nil {
			data.BestFitness = *run.BestFitness
		}
		for _, n := range run.Violations {
			data.TotalViolations += n
		}
		data.ReportURL = w.archive(ctx, logger, run)
	}

	w.notify(ctx, logger, job, mailType, data)
	return Ack
}

func (w *Worker) archive(ctx context.Context, logger *slog.Logger, run *domain.SchedulingRun) string {
	if w.archiver == nil {
		return ""
	}

	url, err := w.archiver.ArchiveRun(ctx, run)
	if err != nil {
		// 归档失败不影响排课结果，邮件中不附带链接
		logger.Warn("无法归档排课报告", slog.String("error", err.Error()))
		return ""
	}

	logger.Info("已归档排课报告")
	return url
}

func (w *Worker) notify(ctx context.Context, logger *slog.Logger, job domain.SchedulingJob, mailType string, data domain.RunFinishedMailData) {
	for _, to := range Recipients(job.NotifyTo, w.notifyTo) {
		msg := domain.MailMessage{Type: mailType, To: to, Data: data}
		if err := w.publisher.PublishJSON(ctx, w.emailQueue, uuid.NewString(), msg); err != nil {
			logger.Error("无法投递邮件", slog.String("to", to), slog.String("error", err.Error()))
			continue
		}
	}
}

// Recipients 合并任务提交者和全局通知列表，去掉空地址和重复地址
func Recipients(submitter string, extra []string) []string {
	var recipients []string
	for _, to := range append([]string{submitter}, extra...) {
		if to == "" || slices.Contains(recipients, to) {
			continue
		}
		recipients = append(recipients, to)
	}
	return recipients
}
