package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerMethods(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Infow("info", map[string]any{"k": "v"})
	l.Warnf("warn")
	l.Errorf("error")
}

func TestZerologLoggerFields(t *testing.T) {
	prev := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(prev)
	SetLevel("debug")

	var buf bytes.Buffer
	l := NewWithWriter("ingest", &buf).With("transport", "mqtt")
	l.Infow("sync state changed", map[string]any{"from": "connecting", "to": "connected"})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ingest", line["component"])
	assert.Equal(t, "mqtt", line["transport"])
	assert.Equal(t, "connected", line["to"])
	assert.Equal(t, "info", line["level"])
}

func TestSetLevelFiltersDebug(t *testing.T) {
	prev := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(prev)

	assert.Equal(t, zerolog.WarnLevel, SetLevel(" WARN "))
	var buf bytes.Buffer
	l := NewWithWriter("fare", &buf)
	l.Debugf("hidden")
	l.Infof("hidden")
	l.Warnf("shown")
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))

	assert.Equal(t, zerolog.InfoLevel, SetLevel("bogus"))
}
