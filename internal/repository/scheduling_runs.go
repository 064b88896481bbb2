package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
)

const schedulingRunColumns = `
	id, name, status, parameters, best_fitness,
	final_best, final_average, final_worst, final_mutation_rate,
	generations_run, violations, error_message, created_by, created_at, finished_at, version
`

type runScanner interface {
	Scan(dest ...any) error
}

func scanSchedulingRun(row runScanner) (*domain.SchedulingRun, error) {
	run := &domain.SchedulingRun{}

	var (
		parameters   []byte
		violations   []byte
		finalBest    sql.NullFloat64
		finalAverage sql.NullFloat64
		finalWorst   sql.NullFloat64
		errorMessage sql.NullString
	)

	dst := []any{
		&run.ID, &run.Name, &run.Status, &parameters, &run.BestFitness,
		&finalBest, &finalAverage, &finalWorst, &run.FinalMutationRate,
		&run.GenerationsRun, &violations, &errorMessage, &run.CreatedBy, &run.CreatedAt, &run.FinishedAt, &run.Version,
	}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(parameters, &run.Parameters); err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		if err := json.Unmarshal(violations, &run.Violations); err != nil {
			return nil, err
		}
	}
	if finalBest.Valid && finalAverage.Valid && finalWorst.Valid {
		run.FinalFitness = &domain.FitnessSummary{
			Best:    finalBest.Float64,
			Average: finalAverage.Float64,
			Worst:   finalWorst.Float64,
		}
	}
	run.ErrorMessage = errorMessage.String

	return run, nil
}

func (r *Repository) CreateSchedulingRun(run *domain.SchedulingRun) error {
	parameters, err := json.Marshal(run.Parameters)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO scheduling_runs (name, status, parameters, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	run.Status = domain.RunStatusPending
	args := []any{run.Name, run.Status, parameters, run.CreatedBy}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&run.ID, &run.CreatedAt, &run.Version); err != nil {
		return err
	}

	return nil
}

// UpdateSchedulingRunStatus 修改运行状态，进入 succeeded 或 failed 时记录结束时间
func (r *Repository) UpdateSchedulingRunStatus(id int64, status domain.RunStatus, errorMessage string) error {
	query := `
		UPDATE scheduling_runs
		SET
			status = $1,
			error_message = NULLIF($2, ''),
			finished_at = CASE WHEN $1 IN ('succeeded', 'failed') THEN NOW() ELSE finished_at END,
			version = version + 1
		WHERE id = $3
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	result, err := r.dbpool.ExecContext(ctx, query, status, errorMessage, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// SaveSchedulingRunResult 在同一个事务中写入运行结果、排课表和每一代的统计，并把运行标记为成功
func (r *Repository) SaveSchedulingRunResult(run *domain.SchedulingRun) error {
	violations, err := json.Marshal(run.Violations)
	if err != nil {
		return err
	}

	ctx, cancel := r.transactionContext()
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var finalBest, finalAverage, finalWorst *float64
	if run.FinalFitness != nil {
		finalBest, finalAverage, finalWorst = &run.FinalFitness.Best, &run.FinalFitness.Average, &run.FinalFitness.Worst
	}

	query := `
		UPDATE scheduling_runs
		SET
			status = $1,
			best_fitness = $2,
			final_best = $3,
			final_average = $4,
			final_worst = $5,
			final_mutation_rate = $6,
			generations_run = $7,
			violations = $8,
			error_message = NULL,
			finished_at = NOW(),
			version = version + 1
		WHERE id = $9
		RETURNING finished_at, version
	`

	run.Status = domain.RunStatusSucceeded
	args := []any{run.Status, run.BestFitness, finalBest, finalAverage, finalWorst, run.FinalMutationRate, run.GenerationsRun, violations, run.ID}
	var finishedAt time.Time
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&finishedAt, &run.Version); err != nil {
		return err
	}
	run.FinishedAt = &finishedAt

	// 重新运行时覆盖之前的结果
	query = `DELETE FROM scheduling_run_assignments WHERE scheduling_run_id = $1`
	if _, err := tx.ExecContext(ctx, query, run.ID); err != nil {
		return err
	}
	query = `DELETE FROM scheduling_run_generations WHERE scheduling_run_id = $1`
	if _, err := tx.ExecContext(ctx, query, run.ID); err != nil {
		return err
	}

	for i, a := range run.Assignments {
		query := `
			INSERT INTO scheduling_run_assignments (scheduling_run_id, position, activity, room, time_slot, facilitator)
			VALUES ($1, $2, $3, $4, $5, $6)
		`

		if _, err := tx.ExecContext(ctx, query, run.ID, i, a.Activity, a.Room, a.TimeSlot, a.Facilitator); err != nil {
			return err
		}
	}

	for _, record := range run.History {
		query := `
			INSERT INTO scheduling_run_generations (scheduling_run_id, generation, best, average, worst, improvement, mutation_rate)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`

		args := []any{run.ID, record.Generation, record.Best, record.Average, record.Worst, record.Improvement, record.MutationRate}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

// GetSchedulingRunByID 返回运行及其排课表，不包含每一代的统计
func (r *Repository) GetSchedulingRunByID(id int64) (*domain.SchedulingRun, error) {
	query := `SELECT ` + schedulingRunColumns + ` FROM scheduling_runs WHERE id = $1`

	ctx, cancel := r.queryContext()
	defer cancel()

	run, err := scanSchedulingRun(r.dbpool.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	query = `
		SELECT activity, room, time_slot, facilitator
		FROM scheduling_run_assignments
		WHERE scheduling_run_id = $1
		ORDER BY position
	`

	rows, err := r.dbpool.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	run.Assignments = make([]domain.ScheduledActivity, 0)
	for rows.Next() {
		var a domain.ScheduledActivity
		if err := rows.Scan(&a.Activity, &a.Room, &a.TimeSlot, &a.Facilitator); err != nil {
			return nil, err
		}
		run.Assignments = append(run.Assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return run, nil
}

func (r *Repository) GetSchedulingRunHistory(id int64) ([]domain.GenerationRecord, error) {
	query := `
		SELECT generation, best, average, worst, improvement, mutation_rate
		FROM scheduling_run_generations
		WHERE scheduling_run_id = $1
		ORDER BY generation
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]domain.GenerationRecord, 0)
	for rows.Next() {
		var record domain.GenerationRecord
		dst := []any{&record.Generation, &record.Best, &record.Average, &record.Worst, &record.Improvement, &record.MutationRate}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		history = append(history, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return history, nil
}

func (r *Repository) GetAllSchedulingRuns() ([]*domain.SchedulingRun, error) {
	query := `SELECT ` + schedulingRunColumns + ` FROM scheduling_runs ORDER BY id DESC`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*domain.SchedulingRun, 0)
	for rows.Next() {
		run, err := scanSchedulingRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

// DeleteSchedulingRun 删除运行，排课表和统计通过外键级联删除
func (r *Repository) DeleteSchedulingRun(id int64) error {
	query := `
		DELETE FROM scheduling_runs WHERE id = $1
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	result, err := r.dbpool.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}
