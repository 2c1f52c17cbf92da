package dynconfig

import "github.com/rs/zerolog"

// Keys with component-specific side effects on write. Everything else is
// store-only.
const (
	// KeyDebug toggles the global log level.
	KeyDebug = "DEBUG"
	// KeyCleanupPollInterval tunes the cleanup scheduler tick (seconds).
	// Its effect is wired as a watcher by the scheduler at startup.
	KeyCleanupPollInterval = "CLEANUP_POLL_INTERVAL"
)

func knownKeyEffects() map[string]Effect {
	return map[string]Effect{
		KeyDebug: applyDebug,
	}
}

func applyDebug(logger zerolog.Logger, _, newValue any) {
	enabled, ok := newValue.(bool)
	if !ok {
		logger.Warn().Any("value", newValue).Msg("DEBUG must be a boolean, ignoring")
		return
	}
	if enabled {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	logger.Info().Bool("debug", enabled).Msg("debug mode changed")
}
