package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldsAreWritten(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.DebugLevel)

	l.Info("stage done",
		String("stage", "fetch"),
		Int("ok", 3),
		Float64("mood", 0.25),
		Duration("duration_ms", 1500*time.Millisecond),
		Bool("partial", true),
		Error(errors.New("x")),
	)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "stage done", got["message"])
	assert.Equal(t, "fetch", got["stage"])
	assert.Equal(t, float64(3), got["ok"])
	assert.Equal(t, 0.25, got["mood"])
	assert.Equal(t, float64(1500), got["duration_ms"])
	assert.Equal(t, true, got["partial"])
	assert.Equal(t, "x", got["error"])
}

func TestWithCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.InfoLevel).With(String("component", "scheduler"))
	l.Warn("hello")

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "scheduler", got["component"])
	assert.Equal(t, "warn", got["level"])
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.WarnLevel)
	l.Debug("hidden")
	l.Info("hidden")
	assert.Zero(t, buf.Len())
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stdout"})
	assert.Error(t, err)
}

func TestNopDiscards(t *testing.T) {
	Nop().Error("nothing", String("k", "v"))
}
