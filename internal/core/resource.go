package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/fleet/internal/model"
	"github.com/edvin/fleet/internal/notify"
	"github.com/edvin/fleet/internal/platform"
)

const resourceColumns = `id, group_id, url, name, label, status, duration_seconds, max_num, current_count, is_active, is_running, last_executed_at, started_at, stopped_at, created_at, updated_at`

// ResourceService manages resources and their run lifecycle. State-machine
// decisions live on model.Resource; this service persists the outcome and
// emits one lifecycle event per successful transition.
type ResourceService struct {
	db       TxDB
	notifier notify.Notifier
}

func NewResourceService(db TxDB, notifier notify.Notifier) *ResourceService {
	return &ResourceService{db: db, notifier: notifier}
}

func (s *ResourceService) Create(ctx context.Context, res *model.Resource) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO resources (id, group_id, url, name, label, status, duration_seconds, max_num, current_count, is_active, is_running, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		res.ID, res.GroupID, res.URL, res.Name, res.Label, res.Status,
		res.DurationSeconds, res.MaxNum, res.CurrentCount, res.IsActive,
		res.IsRunning, res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert resource: %w", err)
	}
	return nil
}

func (s *ResourceService) GetByID(ctx context.Context, id string) (*model.Resource, error) {
	return getResource(ctx, s.db, id)
}

func getResource(ctx context.Context, db DB, id string) (*model.Resource, error) {
	var r model.Resource
	err := db.QueryRow(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE id = $1`, id,
	).Scan(&r.ID, &r.GroupID, &r.URL, &r.Name, &r.Label, &r.Status,
		&r.DurationSeconds, &r.MaxNum, &r.CurrentCount, &r.IsActive, &r.IsRunning,
		&r.LastExecutedAt, &r.StartedAt, &r.StoppedAt, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("resource %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get resource %s: %w", id, err)
	}
	return &r, nil
}

func (s *ResourceService) ListByGroup(ctx context.Context, groupID string, limit int, cursor string) ([]model.Resource, bool, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE group_id = $1`
	args := []any{groupID}
	argIdx := 2

	if cursor != "" {
		query += fmt.Sprintf(` AND id > $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY id`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list resources for group %s: %w", groupID, err)
	}
	defer rows.Close()

	resources, err := collectResources(rows)
	if err != nil {
		return nil, false, err
	}

	hasMore := len(resources) > limit
	if hasMore {
		resources = resources[:limit]
	}
	return resources, hasMore, nil
}

func collectResources(rows pgx.Rows) ([]model.Resource, error) {
	var resources []model.Resource
	for rows.Next() {
		var r model.Resource
		if err := rows.Scan(&r.ID, &r.GroupID, &r.URL, &r.Name, &r.Label, &r.Status,
			&r.DurationSeconds, &r.MaxNum, &r.CurrentCount, &r.IsActive, &r.IsRunning,
			&r.LastExecutedAt, &r.StartedAt, &r.StoppedAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		resources = append(resources, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}
	return resources, nil
}

func (s *ResourceService) Update(ctx context.Context, res *model.Resource) error {
	// A cap below the executions already spent, or at the spent count while
	// the run is still open, would leave the resource past its own budget.
	if res.MaxNum < res.CurrentCount || (res.MaxNum == res.CurrentCount && res.IsRunning) {
		return fmt.Errorf("resource %s: max executions %d conflicts with current count %d: %w",
			res.ID, res.MaxNum, res.CurrentCount, ErrConflict)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE resources SET url = $1, name = $2, duration_seconds = $3, max_num = $4, is_active = $5, updated_at = now()
		 WHERE id = $6`,
		res.URL, res.Name, res.DurationSeconds, res.MaxNum, res.IsActive, res.ID,
	)
	if err != nil {
		return fmt.Errorf("update resource %s: %w", res.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("resource %s: %w", res.ID, ErrNotFound)
	}
	return nil
}

func (s *ResourceService) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete resource %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("resource %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetActive toggles is_active. Deactivating a running resource does not stop
// it: the device side still needs an explicit stop call.
func (s *ResourceService) SetActive(ctx context.Context, id string, active bool) (*model.Resource, error) {
	res, err := getResource(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	res.IsActive = active
	res.UpdatedAt = time.Now()

	_, err = s.db.Exec(ctx,
		`UPDATE resources SET is_active = $1, updated_at = $2 WHERE id = $3`,
		res.IsActive, res.UpdatedAt, res.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("set resource %s active: %w", id, err)
	}
	return res, nil
}

// Start attempts the pending→running transition. A disallowed transition is
// reported through the Transition result, not an error.
func (s *ResourceService) Start(ctx context.Context, id string) (*model.Resource, model.Transition, error) {
	res, err := getResource(ctx, s.db, id)
	if err != nil {
		return nil, model.Transition{}, err
	}

	tr := res.StartRunning(time.Now())
	if !tr.OK {
		return res, tr, nil
	}

	if err := s.saveRunState(ctx, res); err != nil {
		return nil, model.Transition{}, err
	}
	s.emit(model.EventResourceStarted, res)
	return res, tr, nil
}

// Stop clears the running state. Stopping an already-stopped resource
// succeeds without change and emits nothing.
func (s *ResourceService) Stop(ctx context.Context, id string) (*model.Resource, model.Transition, error) {
	res, err := getResource(ctx, s.db, id)
	if err != nil {
		return nil, model.Transition{}, err
	}

	tr := res.StopRunning(time.Now())
	if !tr.Changed {
		return res, tr, nil
	}

	if err := s.saveRunState(ctx, res); err != nil {
		return nil, model.Transition{}, err
	}
	s.emit(model.EventResourceStopped, res)
	return res, tr, nil
}

// Execute records one execution against the budget. Reaching the cap forces
// the stop side effect within the same write.
func (s *ResourceService) Execute(ctx context.Context, id string) (*model.Resource, model.Transition, error) {
	res, err := getResource(ctx, s.db, id)
	if err != nil {
		return nil, model.Transition{}, err
	}

	wasRunning := res.IsRunning
	tr := res.Execute(time.Now())
	if !tr.OK {
		return res, tr, nil
	}

	_, err = s.db.Exec(ctx,
		`UPDATE resources SET current_count = $1, last_executed_at = $2, is_running = $3, stopped_at = $4, updated_at = $5 WHERE id = $6`,
		res.CurrentCount, res.LastExecutedAt, res.IsRunning, res.StoppedAt, res.UpdatedAt, res.ID,
	)
	if err != nil {
		return nil, model.Transition{}, fmt.Errorf("execute resource %s: %w", id, err)
	}

	s.emit(model.EventResourceExecuted, res)
	if wasRunning && !res.IsRunning {
		s.emit(model.EventResourceStopped, res)
	}
	return res, tr, nil
}

// Reset returns the resource fully to pending: zero count, cleared run state
// and execution timestamps.
func (s *ResourceService) Reset(ctx context.Context, id string) (*model.Resource, error) {
	res, err := getResource(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	res.Reset(time.Now())

	_, err = s.db.Exec(ctx,
		`UPDATE resources SET current_count = 0, last_executed_at = NULL, is_running = false, started_at = NULL, stopped_at = NULL, updated_at = $1 WHERE id = $2`,
		res.UpdatedAt, res.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("reset resource %s: %w", id, err)
	}
	return res, nil
}

// SetLabel sets the free-text label. Labels come from trusted internal
// callers only, never from the owning group itself.
func (s *ResourceService) SetLabel(ctx context.Context, id, label string) (*model.Resource, error) {
	res, err := getResource(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	res.Label = label
	res.UpdatedAt = time.Now()

	_, err = s.db.Exec(ctx,
		`UPDATE resources SET label = $1, updated_at = $2 WHERE id = $3`,
		res.Label, res.UpdatedAt, res.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("set resource %s label: %w", id, err)
	}
	s.emit(model.EventLabelUpdated, res)
	return res, nil
}

// SetStatus sets the status annotation.
func (s *ResourceService) SetStatus(ctx context.Context, id, status string) (*model.Resource, error) {
	res, err := getResource(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	res.Status = status
	res.UpdatedAt = time.Now()

	_, err = s.db.Exec(ctx,
		`UPDATE resources SET status = $1, updated_at = $2 WHERE id = $3`,
		res.Status, res.UpdatedAt, res.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("set resource %s status: %w", id, err)
	}
	s.emit(model.EventStatusUpdated, res)
	return res, nil
}

// StartAll starts every eligible resource in a group inside one transaction:
// either all started resources commit together or none do. Events are emitted
// per resource, after the commit.
func (s *ResourceService) StartAll(ctx context.Context, groupID string) ([]model.Resource, error) {
	started, err := s.transitionAll(ctx, groupID,
		`SELECT `+resourceColumns+` FROM resources
		 WHERE group_id = $1 AND is_active = true AND current_count < max_num AND is_running = false
		 ORDER BY id FOR UPDATE`,
		func(r *model.Resource, now time.Time) model.Transition { return r.StartRunning(now) },
	)
	if err != nil {
		return nil, fmt.Errorf("start all in group %s: %w", groupID, err)
	}
	for i := range started {
		s.emit(model.EventResourceStarted, &started[i])
	}
	return started, nil
}

// StopAll stops every running resource in a group inside one transaction.
func (s *ResourceService) StopAll(ctx context.Context, groupID string) ([]model.Resource, error) {
	stopped, err := s.transitionAll(ctx, groupID,
		`SELECT `+resourceColumns+` FROM resources
		 WHERE group_id = $1 AND is_running = true
		 ORDER BY id FOR UPDATE`,
		func(r *model.Resource, now time.Time) model.Transition { return r.StopRunning(now) },
	)
	if err != nil {
		return nil, fmt.Errorf("stop all in group %s: %w", groupID, err)
	}
	for i := range stopped {
		s.emit(model.EventResourceStopped, &stopped[i])
	}
	return stopped, nil
}

func (s *ResourceService) transitionAll(ctx context.Context, groupID, selectQuery string, apply func(*model.Resource, time.Time) model.Transition) ([]model.Resource, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, selectQuery, groupID)
	if err != nil {
		return nil, fmt.Errorf("select eligible resources: %w", err)
	}
	resources, err := collectResources(rows)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var changed []model.Resource
	for i := range resources {
		r := &resources[i]
		if tr := apply(r, now); !tr.Changed {
			continue
		}
		_, err := tx.Exec(ctx,
			`UPDATE resources SET is_running = $1, started_at = $2, stopped_at = $3, updated_at = $4 WHERE id = $5`,
			r.IsRunning, r.StartedAt, r.StoppedAt, r.UpdatedAt, r.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("update resource %s: %w", r.ID, err)
		}
		changed = append(changed, *r)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return changed, nil
}

func (s *ResourceService) saveRunState(ctx context.Context, res *model.Resource) error {
	_, err := s.db.Exec(ctx,
		`UPDATE resources SET is_running = $1, started_at = $2, stopped_at = $3, updated_at = $4 WHERE id = $5`,
		res.IsRunning, res.StartedAt, res.StoppedAt, res.UpdatedAt, res.ID,
	)
	if err != nil {
		return fmt.Errorf("save resource %s run state: %w", res.ID, err)
	}
	return nil
}

func (s *ResourceService) emit(eventType string, res *model.Resource) {
	s.notifier.Publish(model.Event{
		ID:         platform.NewID(),
		Type:       eventType,
		ResourceID: res.ID,
		GroupID:    res.GroupID,
		Resource:   res,
		Timestamp:  time.Now(),
	})
}
