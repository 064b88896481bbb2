package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/runner"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/seed"
)

type fakeExecutor struct {
	run *domain.SchedulingRun
	err error
	ids []int64
}

func (e *fakeExecutor) ExecuteByID(id int64) (*domain.SchedulingRun, error) {
	e.ids = append(e.ids, id)
	return e.run, e.err
}

type fakeArchiver struct {
	url string
	err error
}

func (a *fakeArchiver) ArchiveRun(ctx context.Context, run *domain.SchedulingRun) (string, error) {
	return a.url, a.err
}

type published struct {
	queue string
	msg   domain.MailMessage
}

type fakePublisher struct {
	messages []published
	err      error
}

func (p *fakePublisher) PublishJSON(ctx context.Context, queue string, messageID string, v any) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, published{queue: queue, msg: v.(domain.MailMessage)})
	return nil
}

func jobBody(t *testing.T, runID int64, notifyTo string) []byte {
	t.Helper()
	body, err := json.Marshal(domain.SchedulingJob{JobID: "job", RunID: runID, NotifyTo: notifyTo})
	require.NoError(t, err)
	return body
}

func succeededRun() *domain.SchedulingRun {
	best := 9.5
	return &domain.SchedulingRun{
		ID:             4,
		Name:           "春季",
		Status:         domain.RunStatusSucceeded,
		BestFitness:    &best,
		GenerationsRun: 120,
		Violations:     map[string]int{"room_conflicts": 1, "facilitator_overload": 2},
	}
}

func TestHandle_Succeeded(t *testing.T) {
	executor := &fakeExecutor{run: succeededRun()}
	publisher := &fakePublisher{}
	w := New(executor, &fakeArchiver{url: "https://s3/report.xlsx"}, publisher, "email_queue", []string{"lead@example.com"})

	decision := w.Handle(context.Background(), jobBody(t, 4, "op@example.com"))

	assert.Equal(t, Ack, decision)
	assert.Equal(t, []int64{4}, executor.ids)
	require.Len(t, publisher.messages, 2)
	assert.Equal(t, "op@example.com", publisher.messages[0].msg.To)
	assert.Equal(t, "lead@example.com", publisher.messages[1].msg.To)

	msg := publisher.messages[0]
	assert.Equal(t, "email_queue", msg.queue)
	assert.Equal(t, domain.MailTypeRunSucceeded, msg.msg.Type)
	data := msg.msg.Data.(domain.RunFinishedMailData)
	assert.Equal(t, int64(4), data.RunID)
	assert.Equal(t, 9.5, data.BestFitness)
	assert.Equal(t, 120, data.GenerationsRun)
	assert.Equal(t, 3, data.TotalViolations)
	assert.Equal(t, "https://s3/report.xlsx", data.ReportURL)
}

func TestHandle_ArchiveFailureStillNotifies(t *testing.T) {
	publisher := &fakePublisher{}
	w := New(&fakeExecutor{run: succeededRun()}, &fakeArchiver{err: errors.New("boom")}, publisher, "email_queue", nil)

	assert.Equal(t, Ack, w.Handle(context.Background(), jobBody(t, 4, "op@example.com")))
	require.Len(t, publisher.messages, 1)
	assert.Empty(t, publisher.messages[0].msg.Data.(domain.RunFinishedMailData).ReportURL)
}

func TestHandle_WithoutArchiver(t *testing.T) {
	publisher := &fakePublisher{}
	w := New(&fakeExecutor{run: succeededRun()}, nil, publisher, "email_queue", nil)

	assert.Equal(t, Ack, w.Handle(context.Background(), jobBody(t, 4, "op@example.com")))
	require.Len(t, publisher.messages, 1)
	assert.Empty(t, publisher.messages[0].msg.Data.(domain.RunFinishedMailData).ReportURL)
}

func TestHandle_RunFailed(t *testing.T) {
	run := &domain.SchedulingRun{ID: 4, Name: "失败", Status: domain.RunStatusFailed}
	publisher := &fakePublisher{}
	w := New(&fakeExecutor{run: run, err: errors.New("种群大小不合法")}, &fakeArchiver{url: "unused"}, publisher, "email_queue", nil)

	assert.Equal(t, Ack, w.Handle(context.Background(), jobBody(t, 4, "op@example.com")))
	require.Len(t, publisher.messages, 1)

	msg := publisher.messages[0].msg
	assert.Equal(t, domain.MailTypeRunFailed, msg.Type)
	data := msg.Data.(domain.RunFinishedMailData)
	assert.Equal(t, "种群大小不合法", data.ErrorMessage)
	assert.Empty(t, data.ReportURL)
}

func TestHandle_Decisions(t *testing.T) {
	tests := []struct {
		name     string
		executor *fakeExecutor
		body     []byte
		want     Decision
	}{
		{name: "malformed", executor: &fakeExecutor{}, body: []byte("{"), want: Drop},
		{name: "missing run id", executor: &fakeExecutor{}, body: []byte(`{"jobID":"x"}`), want: Drop},
		{name: "duplicate", executor: &fakeExecutor{run: succeededRun(), err: runner.ErrRunNotPending}, want: Ack},
		{name: "not found", executor: &fakeExecutor{err: fmt.Errorf("查询失败: %w", sql.ErrNoRows)}, want: Drop},
		{name: "database down", executor: &fakeExecutor{err: errors.New("connection refused")}, want: Requeue},
		{name: "not started", executor: &fakeExecutor{run: &domain.SchedulingRun{ID: 4, Status: domain.RunStatusPending}, err: fmt.Errorf("%w: connection reset", runner.ErrRunNotStarted)}, want: Requeue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			publisher := &fakePublisher{}
			w := New(tt.executor, nil, publisher, "email_queue", []string{"lead@example.com"})

			body := tt.body
			if body == nil {
				body = jobBody(t, 4, "op@example.com")
			}

			assert.Equal(t, tt.want, w.Handle(context.Background(), body))
			assert.Empty(t, publisher.messages)
		})
	}
}

// statusFailingStore 中的运行永远无法被标记为 running
type statusFailingStore struct {
	run *domain.SchedulingRun
}

func (s *statusFailingStore) GetSchedulingRunByID(id int64) (*domain.SchedulingRun, error) {
	return s.run, nil
}

func (s *statusFailingStore) UpdateSchedulingRunStatus(id int64, status domain.RunStatus, errorMessage string) error {
	return errors.New("connection reset")
}

func (s *statusFailingStore) SaveSchedulingRunResult(run *domain.SchedulingRun) error {
	return errors.New("unexpected save")
}

func TestHandle_RunNotStartedIsRequeued(t *testing.T) {
	cfg := &config.Config{}
	cfg.Scheduler.PopulationSize = 20
	cfg.Scheduler.MinPopulationSize = 4
	cfg.Scheduler.MinGenerations = 3
	cfg.Scheduler.MaxGenerations = 5
	cfg.Scheduler.MutationRate = 0.01
	cfg.Scheduler.CrossoverMethod = "single_point"
	cfg.Scheduler.ElitismCount = 1

	store := &statusFailingStore{run: &domain.SchedulingRun{
		ID:         4,
		Name:       "春季",
		Status:     domain.RunStatusPending,
		Parameters: runner.DefaultRunParameters(cfg),
	}}
	publisher := &fakePublisher{}
	w := New(runner.New(cfg, store, seed.DefaultCatalog(), nil), nil, publisher, "email_queue", []string{"lead@example.com"})

	assert.Equal(t, Requeue, w.Handle(context.Background(), jobBody(t, 4, "op@example.com")))
	assert.Equal(t, domain.RunStatusPending, store.run.Status)
	assert.Empty(t, publisher.messages)
}

func TestHandle_PublishFailureIsAcked(t *testing.T) {
	w := New(&fakeExecutor{run: succeededRun()}, nil, &fakePublisher{err: errors.New("channel closed")}, "email_queue", nil)

	assert.Equal(t, Ack, w.Handle(context.Background(), jobBody(t, 4, "op@example.com")))
}

func TestRecipients(t *testing.T) {
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, Recipients("a@x.com", []string{"", "b@x.com", "a@x.com"}))
	assert.Equal(t, []string{"b@x.com"}, Recipients("", []string{"b@x.com"}))
	assert.Nil(t, Recipients("", nil))
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "ack", Ack.String())
	assert.Equal(t, "requeue", Requeue.String())
	assert.Equal(t, "drop", Drop.String())
}
