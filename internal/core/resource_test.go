package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/fleet/internal/model"
)

// scanResource fills a getResource scan destination list from a template.
func scanResource(r model.Resource) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = r.ID
		*(dest[1].(*string)) = r.GroupID
		*(dest[2].(*string)) = r.URL
		*(dest[3].(*string)) = r.Name
		*(dest[4].(*string)) = r.Label
		*(dest[5].(*string)) = r.Status
		*(dest[6].(*int)) = r.DurationSeconds
		*(dest[7].(*int)) = r.MaxNum
		*(dest[8].(*int)) = r.CurrentCount
		*(dest[9].(*bool)) = r.IsActive
		*(dest[10].(*bool)) = r.IsRunning
		*(dest[11].(**time.Time)) = r.LastExecutedAt
		*(dest[12].(**time.Time)) = r.StartedAt
		*(dest[13].(**time.Time)) = r.StoppedAt
		*(dest[14].(*time.Time)) = r.CreatedAt
		*(dest[15].(*time.Time)) = r.UpdatedAt
		return nil
	}
}

func pendingResource(id string) model.Resource {
	now := time.Now().Truncate(time.Microsecond)
	return model.Resource{
		ID:        id,
		GroupID:   "grp_1",
		URL:       "https://chat.example.com/room/1",
		MaxNum:    3,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestResourceService_Start_Success(t *testing.T) {
	db := &mockTxDB{}
	notifier := &captureNotifier{}
	svc := NewResourceService(db, notifier)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: scanResource(pendingResource("res_1"))}).Once()
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, nil).Once()

	res, tr, err := svc.Start(ctx, "res_1")
	require.NoError(t, err)
	require.True(t, tr.OK)
	assert.True(t, res.IsRunning)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, model.EventResourceStarted, notifier.events[0].Type)
	assert.Equal(t, "res_1", notifier.events[0].ResourceID)
	assert.NotEmpty(t, notifier.events[0].ID)
	db.AssertExpectations(t)
}

func TestResourceService_Start_InactiveRefused(t *testing.T) {
	db := &mockTxDB{}
	notifier := &captureNotifier{}
	svc := NewResourceService(db, notifier)
	ctx := context.Background()

	res := pendingResource("res_1")
	res.IsActive = false
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: scanResource(res)}).Once()

	got, tr, err := svc.Start(ctx, "res_1")
	require.NoError(t, err)
	assert.False(t, tr.OK)
	assert.Equal(t, model.ReasonInactive, tr.Reason)
	assert.False(t, got.IsRunning)

	// Refusals write nothing and emit nothing.
	assert.Empty(t, notifier.events)
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestResourceService_Stop_AlreadyStopped(t *testing.T) {
	db := &mockTxDB{}
	notifier := &captureNotifier{}
	svc := NewResourceService(db, notifier)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: scanResource(pendingResource("res_1"))}).Once()

	_, tr, err := svc.Stop(ctx, "res_1")
	require.NoError(t, err)
	assert.True(t, tr.OK)
	assert.False(t, tr.Changed)
	assert.Empty(t, notifier.events)
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestResourceService_Execute_ForcesStopAtCap(t *testing.T) {
	db := &mockTxDB{}
	notifier := &captureNotifier{}
	svc := NewResourceService(db, notifier)
	ctx := context.Background()

	started := time.Now().Add(-time.Minute)
	res := pendingResource("res_1")
	res.CurrentCount = 2
	res.IsRunning = true
	res.StartedAt = &started

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: scanResource(res)}).Once()
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, nil).Once()

	got, tr, err := svc.Execute(ctx, "res_1")
	require.NoError(t, err)
	require.True(t, tr.OK)
	assert.Equal(t, 3, got.CurrentCount)
	assert.False(t, got.IsRunning)
	assert.Equal(t, model.StateExhausted, got.State())

	// The forced stop rides along with the executed event.
	require.Len(t, notifier.events, 2)
	assert.Equal(t, model.EventResourceExecuted, notifier.events[0].Type)
	assert.Equal(t, model.EventResourceStopped, notifier.events[1].Type)
	db.AssertExpectations(t)
}

func TestResourceService_Execute_ExhaustedRefused(t *testing.T) {
	db := &mockTxDB{}
	notifier := &captureNotifier{}
	svc := NewResourceService(db, notifier)
	ctx := context.Background()

	res := pendingResource("res_1")
	res.CurrentCount = 3

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: scanResource(res)}).Once()

	_, tr, err := svc.Execute(ctx, "res_1")
	require.NoError(t, err)
	assert.False(t, tr.OK)
	assert.Equal(t, model.ReasonExhausted, tr.Reason)
	assert.Empty(t, notifier.events)
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestResourceService_Update_CapBelowSpentRefused(t *testing.T) {
	db := &mockTxDB{}
	svc := NewResourceService(db, &captureNotifier{})

	res := pendingResource("res_1")
	res.CurrentCount = 3
	res.IsRunning = true
	res.MaxNum = 1

	err := svc.Update(context.Background(), &res)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	db.AssertExpectations(t)
}

func TestResourceService_Update_CapAtSpentWhileRunningRefused(t *testing.T) {
	db := &mockTxDB{}
	svc := NewResourceService(db, &captureNotifier{})

	res := pendingResource("res_1")
	res.CurrentCount = 3
	res.IsRunning = true
	res.MaxNum = 3

	err := svc.Update(context.Background(), &res)
	assert.ErrorIs(t, err, ErrConflict)
	db.AssertExpectations(t)
}

func TestResourceService_Update_CapAtSpentWhenStopped(t *testing.T) {
	db := &mockTxDB{}
	svc := NewResourceService(db, &captureNotifier{})
	ctx := context.Background()

	res := pendingResource("res_1")
	res.CurrentCount = 3
	res.MaxNum = 3

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil).Once()

	require.NoError(t, svc.Update(ctx, &res))
	db.AssertExpectations(t)
}

func TestResourceService_GetByID_NotFound(t *testing.T) {
	db := &mockTxDB{}
	svc := NewResourceService(db, &captureNotifier{})
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}).Once()

	_, err := svc.GetByID(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResourceService_ListByGroup_Pagination(t *testing.T) {
	db := &mockTxDB{}
	svc := NewResourceService(db, &captureNotifier{})
	ctx := context.Background()

	// Three rows back for a limit of two means one more page exists.
	rows := newMockRows(
		scanResource(pendingResource("res_1")),
		scanResource(pendingResource("res_2")),
		scanResource(pendingResource("res_3")),
	)
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil).Once()

	resources, hasMore, err := svc.ListByGroup(ctx, "grp_1", 2, "")
	require.NoError(t, err)
	assert.True(t, hasMore)
	require.Len(t, resources, 2)
	assert.Equal(t, "res_2", resources[1].ID)
}

func TestResourceService_StartAll_Transactional(t *testing.T) {
	db := &mockTxDB{}
	notifier := &captureNotifier{}
	svc := NewResourceService(db, notifier)
	ctx := context.Background()

	rows := newMockRows(
		scanResource(pendingResource("res_1")),
		scanResource(pendingResource("res_2")),
	)
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil).Once()
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, nil).Twice()

	started, err := svc.StartAll(ctx, "grp_1")
	require.NoError(t, err)
	assert.Len(t, started, 2)
	assert.True(t, db.committed)

	require.Len(t, notifier.events, 2)
	for _, ev := range notifier.events {
		assert.Equal(t, model.EventResourceStarted, ev.Type)
	}
	db.AssertExpectations(t)
}

func TestResourceService_StartAll_UpdateErrorRollsBack(t *testing.T) {
	db := &mockTxDB{}
	notifier := &captureNotifier{}
	svc := NewResourceService(db, notifier)
	ctx := context.Background()

	rows := newMockRows(scanResource(pendingResource("res_1")))
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil).Once()
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("db error")).Once()

	_, err := svc.StartAll(ctx, "grp_1")
	require.Error(t, err)
	assert.False(t, db.committed)
	assert.True(t, db.rolledBack)
	assert.Empty(t, notifier.events)
}
