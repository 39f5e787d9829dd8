package obs

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger returns the structured logger shared by the client components.
// Unknown levels fall back to warn.
func NewLogger(w io.Writer, level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.WarnLevel
	}

	return zerolog.New(w).
		Level(parsed).
		With().
		Timestamp().
		Logger()
}
