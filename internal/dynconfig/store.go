package dynconfig

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Backend is the durable side of the store. core.ConfigEntryService
// satisfies this interface.
type Backend interface {
	Lookup(ctx context.Context, key string) (value string, ok bool, err error)
}

// Watcher observes one key's transitions. Callbacks run synchronously under
// the store lock: they must not call back into the store.
type Watcher func(key string, oldValue, newValue any)

// Effect is the immediate side effect applied when a known key changes.
// Unknown keys fall through to the store-only path.
type Effect func(logger zerolog.Logger, oldValue, newValue any)

// Store is the process-wide runtime configuration cache in front of durable
// ConfigEntry storage. It is constructed once at startup and handed to every
// component that needs it.
type Store struct {
	mu       sync.Mutex
	cache    map[string]any
	watchers map[string][]Watcher
	effects  map[string]Effect
	backend  Backend
	logger   zerolog.Logger
}

func NewStore(backend Backend, logger zerolog.Logger) *Store {
	return &Store{
		cache:    make(map[string]any),
		watchers: make(map[string][]Watcher),
		effects:  knownKeyEffects(),
		backend:  backend,
		logger:   logger,
	}
}

// Get returns the coerced value for key: cache first, then durable storage,
// then the caller's static default. Backend errors are logged and fall back
// to the default.
func (s *Store) Get(ctx context.Context, key string, def any) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.cache[key]; ok {
		return v
	}

	raw, ok, err := s.backend.Lookup(ctx, key)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("config lookup failed")
		return def
	}
	if !ok {
		return def
	}

	v := Coerce(raw)
	s.cache[key] = v
	return v
}

// GetString is Get with a string result regardless of coercion.
func (s *Store) GetString(ctx context.Context, key, def string) string {
	switch v := s.Get(ctx, key, def).(type) {
	case string:
		return v
	default:
		return def
	}
}

// GetBool is Get narrowed to bool.
func (s *Store) GetBool(ctx context.Context, key string, def bool) bool {
	if v, ok := s.Get(ctx, key, def).(bool); ok {
		return v
	}
	return def
}

// GetInt is Get narrowed to int.
func (s *Store) GetInt(ctx context.Context, key string, def int) int {
	if v, ok := s.Get(ctx, key, def).(int); ok {
		return v
	}
	return def
}

// Set converts and caches a new value, applies the known-key effect if any,
// and synchronously notifies every watcher registered for the key with the
// (old, new) pair. A panicking watcher is logged and never blocks the write
// or the remaining watchers. The whole read-modify-notify sequence runs
// under one lock, so concurrent writers to the same key are serialized and
// watchers always observe a consistent transition.
func (s *Store) Set(key, raw string) (oldValue, newValue any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldValue = s.cache[key]
	newValue = Coerce(raw)
	s.cache[key] = newValue

	if effect, ok := s.effects[key]; ok {
		effect(s.logger, oldValue, newValue)
	}

	for _, w := range s.watchers[key] {
		s.dispatch(w, key, oldValue, newValue)
	}

	s.logger.Info().Str("key", key).Msg("config updated")
	return oldValue, newValue
}

func (s *Store) dispatch(w Watcher, key string, oldValue, newValue any) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("key", key).Any("panic", r).Msg("config watcher panicked")
		}
	}()
	w(key, oldValue, newValue)
}

// Watch registers a callback for one key's changes.
func (s *Store) Watch(key string, w Watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers[key] = append(s.watchers[key], w)
}

// Reload drops one key from the cache so the next read goes back to durable
// storage.
func (s *Store) Reload(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, key)
}

// ReloadAll drops the entire cache.
func (s *Store) ReloadAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]any)
}
