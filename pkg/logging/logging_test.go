package logging

import (
	"bytes"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"tokenflight/config"
)

func TestSetupJSONRedactsSecrets(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := Setup("tokenflight", config.LogConfig{Level: "debug", Format: "json"}, &buf)

	logger.Debug("loaded key", "private_key", "0xsecret", "chain_id", 1)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "tokenflight", line["service"])
	require.Equal(t, "loaded key", line["msg"])
	require.Equal(t, RedactedValue, line["private_key"])
	require.EqualValues(t, 1, line["chain_id"])
}

func TestSetupFiltersByLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := Setup("tokenflight", config.LogConfig{Level: "warn", Format: "text"}, &buf)

	logger.Info("hidden")
	require.Zero(t, buf.Len())

	logger.Warn("shown")
	require.Contains(t, buf.String(), "msg=shown")
	require.Contains(t, buf.String(), "service=tokenflight")
}

func TestStandardLoggerIsBridged(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() {
		slog.SetDefault(prev)
		log.SetOutput(os.Stderr)
	})

	var buf bytes.Buffer
	Setup("tokenflight", config.LogConfig{Format: "text"}, &buf)

	log.Print("from std log")
	require.Contains(t, buf.String(), "from std log")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
