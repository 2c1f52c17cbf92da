package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/fleet/internal/core"
	"github.com/edvin/fleet/internal/dynconfig"
	"github.com/edvin/fleet/internal/model"
)

// fakeConfigDB is an in-memory core.DB speaking just enough SQL for the
// config entry service: keyed lookups, inserts and updates.
type fakeConfigDB struct {
	entries map[string]*model.ConfigEntry
	updates int
	inserts int
}

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

func newFakeConfigDB(seed ...model.ConfigEntry) *fakeConfigDB {
	db := &fakeConfigDB{entries: make(map[string]*model.ConfigEntry)}
	for i := range seed {
		e := seed[i]
		db.entries[e.Key] = &e
	}
	return db
}

func (db *fakeConfigDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	key, _ := args[0].(string)
	switch {
	case strings.Contains(sql, "count(*)"):
		return fakeRow{scan: func(dest ...any) error {
			count := 0
			if _, ok := db.entries[key]; ok {
				count = 1
			}
			*(dest[0].(*int)) = count
			return nil
		}}
	case strings.Contains(sql, "SELECT value"):
		return fakeRow{scan: func(dest ...any) error {
			e, ok := db.entries[key]
			if !ok {
				return pgx.ErrNoRows
			}
			*(dest[0].(*string)) = e.Value
			return nil
		}}
	default:
		return fakeRow{scan: func(dest ...any) error {
			e, ok := db.entries[key]
			if !ok {
				return pgx.ErrNoRows
			}
			*(dest[0].(*string)) = e.ID
			*(dest[1].(*string)) = e.Key
			*(dest[2].(*string)) = e.Value
			*(dest[3].(*string)) = e.Description
			*(dest[4].(*string)) = e.Category
			*(dest[5].(*bool)) = e.IsSensitive
			*(dest[6].(*time.Time)) = e.CreatedAt
			*(dest[7].(*time.Time)) = e.UpdatedAt
			return nil
		}}
	}
}

func (db *fakeConfigDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	switch {
	case strings.Contains(sql, "INSERT INTO config_entries"):
		db.inserts++
		db.entries[args[1].(string)] = &model.ConfigEntry{
			ID:          args[0].(string),
			Key:         args[1].(string),
			Value:       args[2].(string),
			Description: args[3].(string),
			Category:    args[4].(string),
			IsSensitive: args[5].(bool),
		}
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.Contains(sql, "UPDATE config_entries"):
		db.updates++
		id := args[5].(string)
		for _, e := range db.entries {
			if e.ID == id {
				e.Value = args[0].(string)
			}
		}
		return pgconn.NewCommandTag("UPDATE 1"), nil
	default:
		return pgconn.NewCommandTag("DELETE 0"), nil
	}
}

func (db *fakeConfigDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

type watchCall struct {
	oldValue any
	newValue any
}

func importEnv(t *testing.T, h *SystemConfig, content string) map[string]int {
	t.Helper()
	body, err := json.Marshal(map[string]string{"content": content})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/system-config/import", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ImportEnv(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var counts map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &counts))
	return counts
}

func TestSystemConfig_ImportEnv_SkipsUnchangedKeys(t *testing.T) {
	db := newFakeConfigDB(model.ConfigEntry{
		ID: "cfg_1", Key: "KEEP_KEY", Value: "alpha", Category: "app",
	})
	svc := core.NewConfigEntryService(db)
	store := dynconfig.NewStore(svc, zerolog.Nop())
	h := NewSystemConfig(svc, store, nil)

	var keepCalls, newCalls []watchCall
	store.Watch("KEEP_KEY", func(_ string, oldValue, newValue any) {
		keepCalls = append(keepCalls, watchCall{oldValue, newValue})
	})
	store.Watch("NEW_KEY", func(_ string, oldValue, newValue any) {
		newCalls = append(newCalls, watchCall{oldValue, newValue})
	})

	counts := importEnv(t, h, "KEEP_KEY=alpha\nNEW_KEY=beta\n")

	assert.Equal(t, map[string]int{"created": 1, "updated": 0, "skipped": 1}, counts)
	assert.Empty(t, keepCalls, "unchanged key must not notify watchers")
	require.Len(t, newCalls, 1)
	assert.Equal(t, "beta", newCalls[0].newValue)

	assert.Equal(t, 0, db.updates)
	assert.Equal(t, 1, db.inserts)
	assert.Equal(t, "alpha", db.entries["KEEP_KEY"].Value)
}

func TestSystemConfig_ImportEnv_RewritesChangedKeys(t *testing.T) {
	db := newFakeConfigDB(model.ConfigEntry{
		ID: "cfg_1", Key: "TUNED_KEY", Value: "old", Category: "app",
	})
	svc := core.NewConfigEntryService(db)
	store := dynconfig.NewStore(svc, zerolog.Nop())
	h := NewSystemConfig(svc, store, nil)

	var calls []watchCall
	store.Watch("TUNED_KEY", func(_ string, oldValue, newValue any) {
		calls = append(calls, watchCall{oldValue, newValue})
	})

	counts := importEnv(t, h, "TUNED_KEY=new\n")

	assert.Equal(t, map[string]int{"created": 0, "updated": 1, "skipped": 0}, counts)
	require.Len(t, calls, 1)
	assert.Equal(t, "new", calls[0].newValue)
	assert.Equal(t, 1, db.updates)
	assert.Equal(t, "new", db.entries["TUNED_KEY"].Value)
}
