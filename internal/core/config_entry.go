package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/fleet/internal/model"
)

const configColumns = `id, key, value, description, category, is_sensitive, created_at, updated_at`

// ConfigEntryService is the durable side of the dynamic configuration store.
type ConfigEntryService struct {
	db DB
}

func NewConfigEntryService(db DB) *ConfigEntryService {
	return &ConfigEntryService{db: db}
}

// Create inserts a new entry. Keys are unique.
func (s *ConfigEntryService) Create(ctx context.Context, entry *model.ConfigEntry) error {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM config_entries WHERE key = $1`, entry.Key,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("check config key %s: %w", entry.Key, err)
	}
	if count > 0 {
		return fmt.Errorf("config key %q: %w", entry.Key, ErrConflict)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO config_entries (id, key, value, description, category, is_sensitive, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.Key, entry.Value, entry.Description, entry.Category,
		entry.IsSensitive, entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert config entry: %w", err)
	}
	return nil
}

func (s *ConfigEntryService) GetByID(ctx context.Context, id string) (*model.ConfigEntry, error) {
	var e model.ConfigEntry
	err := s.db.QueryRow(ctx,
		`SELECT `+configColumns+` FROM config_entries WHERE id = $1`, id,
	).Scan(&e.ID, &e.Key, &e.Value, &e.Description, &e.Category, &e.IsSensitive,
		&e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("config entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get config entry %s: %w", id, err)
	}
	return &e, nil
}

func (s *ConfigEntryService) GetByKey(ctx context.Context, key string) (*model.ConfigEntry, error) {
	var e model.ConfigEntry
	err := s.db.QueryRow(ctx,
		`SELECT `+configColumns+` FROM config_entries WHERE key = $1`, key,
	).Scan(&e.ID, &e.Key, &e.Value, &e.Description, &e.Category, &e.IsSensitive,
		&e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("config key %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get config key %s: %w", key, err)
	}
	return &e, nil
}

// List returns all entries ordered by category then key, the order the
// export format uses.
func (s *ConfigEntryService) List(ctx context.Context) ([]model.ConfigEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+configColumns+` FROM config_entries ORDER BY category, key`)
	if err != nil {
		return nil, fmt.Errorf("list config entries: %w", err)
	}
	defer rows.Close()

	var entries []model.ConfigEntry
	for rows.Next() {
		var e model.ConfigEntry
		if err := rows.Scan(&e.ID, &e.Key, &e.Value, &e.Description, &e.Category,
			&e.IsSensitive, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan config entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate config entries: %w", err)
	}
	return entries, nil
}

// Lookup fetches a raw value by key for the dynamic config store. A missing
// key is not an error.
func (s *ConfigEntryService) Lookup(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(ctx,
		`SELECT value FROM config_entries WHERE key = $1`, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup config key %s: %w", key, err)
	}
	return value, true, nil
}

func (s *ConfigEntryService) Update(ctx context.Context, entry *model.ConfigEntry) error {
	entry.UpdatedAt = time.Now()
	tag, err := s.db.Exec(ctx,
		`UPDATE config_entries SET value = $1, description = $2, category = $3, is_sensitive = $4, updated_at = $5
		 WHERE id = $6`,
		entry.Value, entry.Description, entry.Category, entry.IsSensitive,
		entry.UpdatedAt, entry.ID,
	)
	if err != nil {
		return fmt.Errorf("update config entry %s: %w", entry.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("config entry %s: %w", entry.ID, ErrNotFound)
	}
	return nil
}

func (s *ConfigEntryService) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM config_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete config entry %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("config entry %s: %w", id, ErrNotFound)
	}
	return nil
}
