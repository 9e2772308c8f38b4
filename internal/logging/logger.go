package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the service logger on stdout. The local environment gets console output.
func New(environment, level string) (zerolog.Logger, error) {
	return NewWithWriter(environment, level, os.Stdout)
}

func NewWithWriter(environment, level string, out io.Writer) (zerolog.Logger, error) {
	parsedLevel, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse LOG_LEVEL=%q: %w", level, err)
	}
	if parsedLevel == zerolog.NoLevel {
		parsedLevel = zerolog.InfoLevel
	}

	writer := out
	if strings.EqualFold(strings.TrimSpace(environment), "local") {
		writer = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(writer).
		Level(parsedLevel).
		With().
		Timestamp().
		Str("service", "urbanfeed").
		Str("env", strings.ToLower(strings.TrimSpace(environment))).
		Logger(), nil
}

// Component tags a child logger with the subsystem name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
