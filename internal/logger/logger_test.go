package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")

	log.Info().Msg("hidden")
	log.Warn().Str("bucket", "heasarc-bucket").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "heasarc-bucket", entry["bucket"])
	assert.NotEmpty(t, entry["time"])
}

func TestNew_InvalidLevel(t *testing.T) {
	log := New(&bytes.Buffer{}, "loud")
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())

	log = New(&bytes.Buffer{}, "")
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}
