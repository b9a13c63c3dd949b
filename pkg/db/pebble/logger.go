package pebble

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog"
)

// engineLogger routes pebble's internal messages (WAL replay, compactions,
// background errors) to zerolog instead of the stdlib logger.
type engineLogger struct {
	logger zerolog.Logger
}

func newEngineLogger(l zerolog.Logger) *engineLogger {
	return &engineLogger{logger: l.With().Str("engine", "pebble").Logger()}
}

func (l *engineLogger) Infof(format string, args ...interface{}) {
	l.logger.Info().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Fatalf exits the process. pebble only calls it on unrecoverable corruption.
func (l *engineLogger) Fatalf(format string, args ...interface{}) {
	l.logger.Fatal().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

var _ pebble.Logger = (*engineLogger)(nil)
