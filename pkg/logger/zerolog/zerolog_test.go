package zerolog

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/raykavin/tonpairs/pkg/logger"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	require.Error(t, err)
}

func TestAdapter_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "info", JSON: true, Output: &buf})
	require.NoError(t, err)

	NewAdapter(log).
		WithField("user_id", int64(42)).
		WithError(errors.New("boom")).
		Infof("dispatched %d", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "info", entry["level"])
	require.Equal(t, "dispatched 3", entry["message"])
	require.Equal(t, float64(42), entry["user_id"])
	require.Equal(t, "boom", entry["error"])
}

func TestAdapter_Level(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "debug", JSON: true, Output: &buf})
	require.NoError(t, err)

	adapter := NewAdapter(log)
	require.Equal(t, logger.DebugLevel, adapter.GetLevel())

	adapter.SetLevel(logger.ErrorLevel)
	require.Equal(t, logger.ErrorLevel, adapter.GetLevel())

	adapter.Info("hidden")
	require.Zero(t, buf.Len())

	adapter.Error("shown")
	require.Contains(t, buf.String(), "shown")
}
