package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/fleet/internal/model"
)

func scanTask(t model.CleanupTask) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = t.ID
		*(dest[1].(*string)) = t.Name
		*(dest[2].(*string)) = t.Description
		*(dest[3].(*string)) = t.ScheduleTime
		*(dest[4].(*bool)) = t.IsEnabled
		*(dest[5].(*[]string)) = t.Operations
		*(dest[6].(*[]string)) = t.TargetGroupIDs
		*(dest[7].(**time.Time)) = t.LastRun
		*(dest[8].(**time.Time)) = t.NextRun
		*(dest[9].(*time.Time)) = t.CreatedAt
		*(dest[10].(*time.Time)) = t.UpdatedAt
		return nil
	}
}

func nightlyTask(id string) model.CleanupTask {
	now := time.Now().Truncate(time.Microsecond)
	return model.CleanupTask{
		ID:           id,
		Name:         "nightly reset",
		ScheduleTime: "03:00",
		IsEnabled:    true,
		Operations:   []string{model.OpClearStatus, model.OpClearCounts},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func isResourceUpdate(sql string) bool { return strings.Contains(sql, "UPDATE resources") }
func isTaskStamp(sql string) bool      { return strings.Contains(sql, "SET last_run") }

func TestCleanupTaskService_Create_ComputesNextRun(t *testing.T) {
	db := &mockDB{}
	svc := NewCleanupTaskService(db, zerolog.Nop())
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, nil).Once()

	task := nightlyTask("task_1")
	err := svc.Create(ctx, &task)
	require.NoError(t, err)
	require.NotNil(t, task.NextRun)
	assert.True(t, task.NextRun.After(time.Now()))
	db.AssertExpectations(t)
}

func TestCleanupTaskService_Create_DisabledHasNoNextRun(t *testing.T) {
	db := &mockDB{}
	svc := NewCleanupTaskService(db, zerolog.Nop())
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, nil).Once()

	task := nightlyTask("task_1")
	task.IsEnabled = false
	err := svc.Create(ctx, &task)
	require.NoError(t, err)
	assert.Nil(t, task.NextRun)
}

func TestCleanupTaskService_Create_UnknownOperation(t *testing.T) {
	db := &mockDB{}
	svc := NewCleanupTaskService(db, zerolog.Nop())
	ctx := context.Background()

	task := nightlyTask("task_1")
	task.Operations = []string{"drop-table"}
	err := svc.Create(ctx, &task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown cleanup operation")
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestCleanupTaskService_Toggle_Disable(t *testing.T) {
	db := &mockDB{}
	svc := NewCleanupTaskService(db, zerolog.Nop())
	ctx := context.Background()

	enabled := nightlyTask("task_1")
	next := time.Now().Add(time.Hour)
	enabled.NextRun = &next

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: scanTask(enabled)}).Once()
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, nil).Once()

	task, err := svc.Toggle(ctx, "task_1")
	require.NoError(t, err)
	assert.False(t, task.IsEnabled)
	assert.Nil(t, task.NextRun)
}

func TestCleanupTaskService_Execute_AllOpsAndStamp(t *testing.T) {
	db := &mockDB{}
	svc := NewCleanupTaskService(db, zerolog.Nop())
	ctx := context.Background()

	task := nightlyTask("task_1")
	task.TargetGroupIDs = []string{"grp_1", "grp_2"}

	db.On("Exec", ctx, mock.MatchedBy(isResourceUpdate), mock.MatchedBy(func(args []any) bool {
		// The group filter rides along as the only argument.
		ids, ok := args[0].([]string)
		return ok && len(ids) == 2
	})).Return(pgconn.NewCommandTag("UPDATE 3"), nil).Twice()
	db.On("Exec", ctx, mock.MatchedBy(isTaskStamp), mock.Anything).
		Return(pgconn.CommandTag{}, nil).Once()

	affected, err := svc.Execute(ctx, &task)
	require.NoError(t, err)
	assert.Equal(t, int64(6), affected)
	require.NotNil(t, task.LastRun)
	require.NotNil(t, task.NextRun)
	assert.True(t, task.NextRun.After(*task.LastRun))
	db.AssertExpectations(t)
}

func TestCleanupTaskService_Execute_AllGroupsWhenUnscoped(t *testing.T) {
	db := &mockDB{}
	svc := NewCleanupTaskService(db, zerolog.Nop())
	ctx := context.Background()

	task := nightlyTask("task_1")
	task.Operations = []string{model.OpClearLabel}

	db.On("Exec", ctx, mock.MatchedBy(func(sql string) bool {
		// No scope means no WHERE clause: the update hits every resource.
		return isResourceUpdate(sql) && !strings.Contains(sql, "WHERE")
	}), mock.Anything).Return(pgconn.NewCommandTag("UPDATE 10"), nil).Once()
	db.On("Exec", ctx, mock.MatchedBy(isTaskStamp), mock.Anything).
		Return(pgconn.CommandTag{}, nil).Once()

	affected, err := svc.Execute(ctx, &task)
	require.NoError(t, err)
	assert.Equal(t, int64(10), affected)
}

func TestCleanupTaskService_Execute_FailureSkipsStamp(t *testing.T) {
	db := &mockDB{}
	svc := NewCleanupTaskService(db, zerolog.Nop())
	ctx := context.Background()

	task := nightlyTask("task_1")

	db.On("Exec", ctx, mock.MatchedBy(isResourceUpdate), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("db error")).Once()

	_, err := svc.Execute(ctx, &task)
	require.Error(t, err)
	// The stamps stay untouched so the next poll retries the task.
	assert.Nil(t, task.LastRun)
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.MatchedBy(isTaskStamp), mock.Anything)
}

func TestCleanupTaskService_RunDue_ExecutesAndContinues(t *testing.T) {
	db := &mockDB{}
	svc := NewCleanupTaskService(db, zerolog.Nop())
	ctx := context.Background()
	now := time.Now()

	due := time.Now().Add(-time.Minute)
	broken := nightlyTask("task_1")
	broken.NextRun = &due
	healthy := nightlyTask("task_2")
	healthy.Operations = []string{model.OpClearStatus}
	healthy.NextRun = &due

	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows(scanTask(broken), scanTask(healthy)), nil).Once()

	// The first task's update fails; the second still runs and gets stamped.
	db.On("Exec", ctx, mock.MatchedBy(isResourceUpdate), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("db error")).Once()
	db.On("Exec", ctx, mock.MatchedBy(isResourceUpdate), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 4"), nil).Once()
	db.On("Exec", ctx, mock.MatchedBy(isTaskStamp), mock.Anything).
		Return(pgconn.CommandTag{}, nil).Once()

	svc.RunDue(ctx, now)
	db.AssertExpectations(t)
}
