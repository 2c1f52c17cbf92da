package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/edvin/fleet/internal/model"
)

const taskColumns = `id, name, description, to_char(schedule_time, 'HH24:MI'), is_enabled, operations, target_group_ids, last_run, next_run, created_at, updated_at`

// CleanupTaskService manages recurring cleanup tasks and executes their
// operations against resources in scope.
type CleanupTaskService struct {
	db     DB
	logger zerolog.Logger
}

func NewCleanupTaskService(db DB, logger zerolog.Logger) *CleanupTaskService {
	return &CleanupTaskService{db: db, logger: logger}
}

// Create validates the schedule and operation kinds, computes the first
// next_run, and inserts the task.
func (s *CleanupTaskService) Create(ctx context.Context, task *model.CleanupTask) error {
	for _, op := range task.Operations {
		if !model.ValidOp(op) {
			return fmt.Errorf("unknown cleanup operation %q", op)
		}
	}

	if task.IsEnabled {
		next, err := model.NextRun(time.Now(), task.ScheduleTime)
		if err != nil {
			return err
		}
		task.NextRun = &next
	} else {
		task.NextRun = nil
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO cleanup_tasks (id, name, description, schedule_time, is_enabled, operations, target_group_ids, last_run, next_run, created_at, updated_at)
		 VALUES ($1, $2, $3, $4::time, $5, $6, $7, $8, $9, $10, $11)`,
		task.ID, task.Name, task.Description, task.ScheduleTime, task.IsEnabled,
		task.Operations, targetIDsOrEmpty(task), task.LastRun, task.NextRun,
		task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert cleanup task: %w", err)
	}
	return nil
}

func (s *CleanupTaskService) GetByID(ctx context.Context, id string) (*model.CleanupTask, error) {
	var t model.CleanupTask
	err := s.db.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM cleanup_tasks WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.Description, &t.ScheduleTime, &t.IsEnabled,
		&t.Operations, &t.TargetGroupIDs, &t.LastRun, &t.NextRun, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("cleanup task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get cleanup task %s: %w", id, err)
	}
	return &t, nil
}

func (s *CleanupTaskService) List(ctx context.Context) ([]model.CleanupTask, error) {
	rows, err := s.db.Query(ctx, `SELECT `+taskColumns+` FROM cleanup_tasks ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list cleanup tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

func collectTasks(rows pgx.Rows) ([]model.CleanupTask, error) {
	var tasks []model.CleanupTask
	for rows.Next() {
		var t model.CleanupTask
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.ScheduleTime, &t.IsEnabled,
			&t.Operations, &t.TargetGroupIDs, &t.LastRun, &t.NextRun, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cleanup task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cleanup tasks: %w", err)
	}
	return tasks, nil
}

// Update rewrites the task definition. A changed schedule recomputes
// next_run for enabled tasks.
func (s *CleanupTaskService) Update(ctx context.Context, task *model.CleanupTask) error {
	for _, op := range task.Operations {
		if !model.ValidOp(op) {
			return fmt.Errorf("unknown cleanup operation %q", op)
		}
	}

	if task.IsEnabled {
		next, err := model.NextRun(time.Now(), task.ScheduleTime)
		if err != nil {
			return err
		}
		task.NextRun = &next
	} else {
		task.NextRun = nil
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE cleanup_tasks SET name = $1, description = $2, schedule_time = $3::time, is_enabled = $4, operations = $5, target_group_ids = $6, next_run = $7, updated_at = now()
		 WHERE id = $8`,
		task.Name, task.Description, task.ScheduleTime, task.IsEnabled,
		task.Operations, targetIDsOrEmpty(task), task.NextRun, task.ID,
	)
	if err != nil {
		return fmt.Errorf("update cleanup task %s: %w", task.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cleanup task %s: %w", task.ID, ErrNotFound)
	}
	return nil
}

func (s *CleanupTaskService) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM cleanup_tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete cleanup task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cleanup task %s: %w", id, ErrNotFound)
	}
	return nil
}

// Toggle flips is_enabled. Disabling clears next_run; enabling recomputes it.
func (s *CleanupTaskService) Toggle(ctx context.Context, id string) (*model.CleanupTask, error) {
	task, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	task.IsEnabled = !task.IsEnabled
	if task.IsEnabled {
		next, err := model.NextRun(time.Now(), task.ScheduleTime)
		if err != nil {
			return nil, err
		}
		task.NextRun = &next
	} else {
		task.NextRun = nil
	}
	task.UpdatedAt = time.Now()

	_, err = s.db.Exec(ctx,
		`UPDATE cleanup_tasks SET is_enabled = $1, next_run = $2, updated_at = $3 WHERE id = $4`,
		task.IsEnabled, task.NextRun, task.UpdatedAt, task.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("toggle cleanup task %s: %w", id, err)
	}
	return task, nil
}

// Execute applies the task's operation kinds to every resource in scope and,
// on success, stamps last_run and recomputes next_run. On failure the stamps
// stay untouched so the task is retried on the next poll (at-least-once).
// Stale target group references simply match no rows.
func (s *CleanupTaskService) Execute(ctx context.Context, task *model.CleanupTask) (int64, error) {
	var affected int64
	for _, op := range task.Operations {
		var set string
		switch op {
		case model.OpClearStatus:
			set = `status = ''`
		case model.OpClearLabel:
			set = `label = ''`
		case model.OpClearCounts:
			set = `current_count = 0, last_executed_at = NULL`
		default:
			return affected, fmt.Errorf("unknown cleanup operation %q", op)
		}

		query := `UPDATE resources SET ` + set + `, updated_at = now()`
		args := []any{}
		if len(task.TargetGroupIDs) > 0 {
			query += ` WHERE group_id = ANY($1)`
			args = append(args, task.TargetGroupIDs)
		}

		tag, err := s.db.Exec(ctx, query, args...)
		if err != nil {
			return affected, fmt.Errorf("cleanup %s for task %s: %w", op, task.Name, err)
		}
		affected += tag.RowsAffected()
	}

	now := time.Now()
	next, err := model.NextRun(now, task.ScheduleTime)
	if err != nil {
		return affected, err
	}
	task.LastRun = &now
	task.NextRun = &next

	_, err = s.db.Exec(ctx,
		`UPDATE cleanup_tasks SET last_run = $1, next_run = $2, updated_at = $3 WHERE id = $4`,
		task.LastRun, task.NextRun, now, task.ID,
	)
	if err != nil {
		return affected, fmt.Errorf("stamp cleanup task %s: %w", task.ID, err)
	}
	return affected, nil
}

// ExecuteByID is the manual trigger: same operation logic as the scheduler,
// run synchronously.
func (s *CleanupTaskService) ExecuteByID(ctx context.Context, id string) (*model.CleanupTask, int64, error) {
	task, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	affected, err := s.Execute(ctx, task)
	if err != nil {
		return nil, 0, err
	}
	return task, affected, nil
}

// RunDue executes every enabled task whose next_run has passed. A failing
// task is logged and skipped; it neither stops the loop nor blocks the rest
// of the batch.
func (s *CleanupTaskService) RunDue(ctx context.Context, now time.Time) {
	rows, err := s.db.Query(ctx,
		`SELECT `+taskColumns+` FROM cleanup_tasks WHERE is_enabled = true AND next_run <= $1 ORDER BY next_run`, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("load due cleanup tasks")
		return
	}
	tasks, err := collectTasks(rows)
	rows.Close()
	if err != nil {
		s.logger.Error().Err(err).Msg("scan due cleanup tasks")
		return
	}

	for i := range tasks {
		task := &tasks[i]
		affected, err := s.Execute(ctx, task)
		if err != nil {
			s.logger.Error().Err(err).Str("task", task.Name).Msg("cleanup task failed")
			continue
		}
		s.logger.Info().Str("task", task.Name).Int64("affected", affected).Msg("cleanup task executed")
	}
}

// targetIDsOrEmpty keeps the stored jsonb list non-null: empty means all
// groups.
func targetIDsOrEmpty(task *model.CleanupTask) []string {
	if task.TargetGroupIDs == nil {
		return []string{}
	}
	return task.TargetGroupIDs
}
