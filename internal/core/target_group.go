package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/fleet/internal/device"
	"github.com/edvin/fleet/internal/model"
)

const groupColumns = `id, code, name, description, is_active, is_running, success_time_min, success_time_max, reset_time, created_at, updated_at`

// TargetGroupService manages target groups and the device-level start/stop
// path, which calls the external device controller before any local mutation.
type TargetGroupService struct {
	db        TxDB
	devices   device.Controller
	resources *ResourceService
}

func NewTargetGroupService(db TxDB, devices device.Controller, resources *ResourceService) *TargetGroupService {
	return &TargetGroupService{db: db, devices: devices, resources: resources}
}

// Create inserts a new group. The identity code must be unique across active
// and inactive groups.
func (s *TargetGroupService) Create(ctx context.Context, group *model.TargetGroup) error {
	taken, err := s.codeTaken(ctx, group.Code, "")
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("group code %q: %w", group.Code, ErrConflict)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO target_groups (id, code, name, description, is_active, is_running, success_time_min, success_time_max, reset_time, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		group.ID, group.Code, group.Name, group.Description, group.IsActive,
		group.IsRunning, group.SuccessTimeMin, group.SuccessTimeMax,
		group.ResetTime, group.CreatedAt, group.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert target group: %w", err)
	}
	return nil
}

func (s *TargetGroupService) GetByID(ctx context.Context, id string) (*model.TargetGroup, error) {
	var g model.TargetGroup
	err := s.db.QueryRow(ctx,
		`SELECT `+groupColumns+` FROM target_groups WHERE id = $1`, id,
	).Scan(&g.ID, &g.Code, &g.Name, &g.Description, &g.IsActive, &g.IsRunning,
		&g.SuccessTimeMin, &g.SuccessTimeMax, &g.ResetTime, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("target group %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get target group %s: %w", id, err)
	}
	return &g, nil
}

func (s *TargetGroupService) GetByCode(ctx context.Context, code string) (*model.TargetGroup, error) {
	var g model.TargetGroup
	err := s.db.QueryRow(ctx,
		`SELECT `+groupColumns+` FROM target_groups WHERE code = $1`, code,
	).Scan(&g.ID, &g.Code, &g.Name, &g.Description, &g.IsActive, &g.IsRunning,
		&g.SuccessTimeMin, &g.SuccessTimeMax, &g.ResetTime, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("target group code %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get target group by code %s: %w", code, err)
	}
	return &g, nil
}

func (s *TargetGroupService) List(ctx context.Context, limit int, cursor string) ([]model.TargetGroup, bool, error) {
	query := `SELECT ` + groupColumns + ` FROM target_groups`
	args := []any{}
	argIdx := 1

	if cursor != "" {
		query += fmt.Sprintf(` WHERE id > $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY id`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list target groups: %w", err)
	}
	defer rows.Close()

	var groups []model.TargetGroup
	for rows.Next() {
		var g model.TargetGroup
		if err := rows.Scan(&g.ID, &g.Code, &g.Name, &g.Description, &g.IsActive, &g.IsRunning,
			&g.SuccessTimeMin, &g.SuccessTimeMax, &g.ResetTime, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, false, fmt.Errorf("scan target group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate target groups: %w", err)
	}

	hasMore := len(groups) > limit
	if hasMore {
		groups = groups[:limit]
	}
	return groups, hasMore, nil
}

func (s *TargetGroupService) Update(ctx context.Context, group *model.TargetGroup) error {
	taken, err := s.codeTaken(ctx, group.Code, group.ID)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("group code %q: %w", group.Code, ErrConflict)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE target_groups SET code = $1, name = $2, description = $3, is_active = $4, success_time_min = $5, success_time_max = $6, reset_time = $7, updated_at = now()
		 WHERE id = $8`,
		group.Code, group.Name, group.Description, group.IsActive,
		group.SuccessTimeMin, group.SuccessTimeMax, group.ResetTime, group.ID,
	)
	if err != nil {
		return fmt.Errorf("update target group %s: %w", group.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("target group %s: %w", group.ID, ErrNotFound)
	}
	return nil
}

// Delete removes the group; its resources go with it (FK cascade).
func (s *TargetGroupService) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM target_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete target group %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("target group %s: %w", id, ErrNotFound)
	}
	return nil
}

// ToggleActive flips is_active. Deactivating a group that is running first
// issues the external stop and halts its resources; a failed device call
// leaves everything untouched.
func (s *TargetGroupService) ToggleActive(ctx context.Context, id string) (*model.TargetGroup, error) {
	group, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if group.IsActive && group.IsRunning {
		if _, err := s.StopDevice(ctx, id); err != nil {
			return nil, err
		}
		group.IsRunning = false
	}

	group.IsActive = !group.IsActive
	group.UpdatedAt = time.Now()
	_, err = s.db.Exec(ctx,
		`UPDATE target_groups SET is_active = $1, updated_at = $2 WHERE id = $3`,
		group.IsActive, group.UpdatedAt, group.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("toggle target group %s: %w", id, err)
	}
	return group, nil
}

// StartDevice starts the remote device, then moves every eligible resource to
// running in one transaction. The device call happens before any transaction
// so no locks are held across network latency; its failure mutates nothing.
func (s *TargetGroupService) StartDevice(ctx context.Context, id string) ([]model.Resource, error) {
	group, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !group.IsActive {
		return nil, fmt.Errorf("target group %s is not active: %w", id, ErrConflict)
	}

	if err := s.devices.Start(ctx, []string{group.Code}); err != nil {
		return nil, fmt.Errorf("start device %s: %w", group.Code, err)
	}

	started, err := s.resources.StartAll(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.setRunning(ctx, id, true); err != nil {
		return nil, err
	}
	return started, nil
}

// StopDevice stops the remote device, then halts every running resource in
// one transaction.
func (s *TargetGroupService) StopDevice(ctx context.Context, id string) ([]model.Resource, error) {
	group, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.devices.Stop(ctx, []string{group.Code}); err != nil {
		return nil, fmt.Errorf("stop device %s: %w", group.Code, err)
	}

	stopped, err := s.resources.StopAll(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.setRunning(ctx, id, false); err != nil {
		return nil, err
	}
	return stopped, nil
}

// Status aggregates resource counters and total running time for the group.
func (s *TargetGroupService) Status(ctx context.Context, id string) (*model.GroupStatus, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE group_id = $1 AND is_active = true`, id)
	if err != nil {
		return nil, fmt.Errorf("load group %s resources: %w", id, err)
	}
	defer rows.Close()

	resources, err := collectResources(rows)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	status := &model.GroupStatus{GroupID: id, TotalResources: len(resources)}
	for i := range resources {
		r := &resources[i]
		status.TotalExecutions += r.CurrentCount
		status.MaxExecutions += r.MaxNum
		switch {
		case r.IsRunning:
			status.Running++
			status.TotalRunningSecs += r.RunningDuration(now)
		case !r.CanExecute():
			status.Completed++
		default:
			status.Available++
		}
	}
	return status, nil
}

// Labels tallies resources per label within the group. The empty label is
// reported as its own bucket.
func (s *TargetGroupService) Labels(ctx context.Context, id string) ([]model.LabelCount, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT label, count(*) FROM resources WHERE group_id = $1 GROUP BY label ORDER BY label`, id)
	if err != nil {
		return nil, fmt.Errorf("count labels for group %s: %w", id, err)
	}
	defer rows.Close()

	var counts []model.LabelCount
	for rows.Next() {
		var lc model.LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, fmt.Errorf("scan label count: %w", err)
		}
		counts = append(counts, lc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate label counts: %w", err)
	}
	return counts, nil
}

func (s *TargetGroupService) setRunning(ctx context.Context, id string, running bool) error {
	_, err := s.db.Exec(ctx,
		`UPDATE target_groups SET is_running = $1, updated_at = now() WHERE id = $2`,
		running, id,
	)
	if err != nil {
		return fmt.Errorf("set target group %s running: %w", id, err)
	}
	return nil
}

func (s *TargetGroupService) codeTaken(ctx context.Context, code, excludeID string) (bool, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM target_groups WHERE code = $1 AND id <> $2`, code, excludeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check group code %s: %w", code, err)
	}
	return count > 0, nil
}
