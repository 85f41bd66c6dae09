package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewWritesFields(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")

	var buf bytes.Buffer
	l := New(&buf).WithField("site", "main")
	l.Info().Int("records_stored", 3).Msg("Run finished")

	out := buf.String()
	assert.Contains(t, out, "Run finished")
	assert.Contains(t, out, "site=main")
	assert.Contains(t, out, "records_stored=3")
}

func TestWithError(t *testing.T) {
	t.Setenv("LOG_LEVEL", "info")

	var buf bytes.Buffer
	New(&buf).WithError(errors.New("boom")).Error().Msg("Upsert failed")
	assert.Contains(t, buf.String(), "boom")
}

func TestGetLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("PURCHASE_ENVIRONMENT", "production")
	assert.Equal(t, zerolog.InfoLevel, getLogLevel())

	t.Setenv("PURCHASE_ENVIRONMENT", "development")
	assert.Equal(t, zerolog.DebugLevel, getLogLevel())

	t.Setenv("LOG_LEVEL", "warn")
	assert.Equal(t, zerolog.WarnLevel, getLogLevel())

	t.Setenv("LOG_LEVEL", "nonsense")
	assert.Equal(t, zerolog.InfoLevel, getLogLevel())
}
