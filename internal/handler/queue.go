package handler

import (
	"context"

	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
)

// enqueueSchedulingJob 把运行投递到排课队列，由 worker 异步执行
func (h *Handler) enqueueSchedulingJob(ctx context.Context, run *domain.SchedulingRun, notifyTo string) (*domain.SchedulingJob, error) {
	job := &domain.SchedulingJob{
		JobID:    uuid.NewString(),
		RunID:    run.ID,
		NotifyTo: notifyTo,
	}

	if err := h.publisher.PublishJSON(ctx, h.config.RabbitMQ.SchedulingQueue, job.JobID, job); err != nil {
		return nil, err
	}

	return job, nil
}
