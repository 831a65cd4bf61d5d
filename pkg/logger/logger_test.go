package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestLogger_RedactsSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.Info("connecting", "db_password", "hunter2", "redis_dsn", "redis://x", "participant_id", "p-1")

	line := decodeLine(t, &buf)
	assert.Equal(t, "[REDACTED]", line["db_password"])
	assert.Equal(t, "[REDACTED]", line["redis_dsn"])
	assert.Equal(t, "p-1", line["participant_id"])
}

func TestLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Output: &buf})

	ctx := context.WithValue(context.Background(), ContextKeyRequestID, "req-1")
	ctx = context.WithValue(ctx, ContextKeyActorID, "actor-9")
	log.WithContext(ctx).WithError(errors.New("boom")).Info("toggled")

	line := decodeLine(t, &buf)
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "actor-9", line["actor_id"])
	assert.Equal(t, "boom", line["error"])
}

func TestLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Info("hidden")
	assert.Zero(t, buf.Len())

	log.Warn("shown")
	assert.NotZero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel("debug").String())
	assert.Equal(t, "WARN", parseLevel("WARNING").String())
	assert.Equal(t, "ERROR", parseLevel("error").String())
	assert.Equal(t, "INFO", parseLevel("whatever").String())
}

func newSampled(buf *bytes.Buffer, cfg SamplingConfig) (*Logger, *samplerState) {
	log := New(Config{Level: "debug", Output: buf, Sampling: cfg})
	return log, log.Handler().(*samplingHandler).state
}

func countLines(buf *bytes.Buffer) int {
	return bytes.Count(buf.Bytes(), []byte("\n"))
}

func TestSampling(t *testing.T) {
	var buf bytes.Buffer
	log, state := newSampled(&buf, SamplingConfig{
		Enabled:   true,
		Tick:      time.Hour,
		Threshold: 3,
		Rate:      0.5,
		ErrorRate: 1,
	})
	now := time.Now()
	state.now = func() time.Time { return now }

	dropped := DroppedTotal("info")
	for range 7 {
		log.Info("permission resolved")
	}
	// 3 under the threshold, then every second one of the remaining 4.
	assert.Equal(t, 5, countLines(&buf))
	assert.Equal(t, dropped+2, DroppedTotal("info"))

	buf.Reset()
	for range 5 {
		log.Warn("cache unavailable")
	}
	assert.Equal(t, 5, countLines(&buf), "warnings use the error rate")

	buf.Reset()
	now = now.Add(2 * time.Hour)
	log.With("k", "v").Info("permission resolved")
	assert.Equal(t, 1, countLines(&buf), "counters reset after a tick")
}

func TestSampling_NeverSampleAndMaxKeys(t *testing.T) {
	var buf bytes.Buffer
	log, _ := newSampled(&buf, SamplingConfig{
		Enabled:     true,
		Tick:        time.Hour,
		Threshold:   1,
		Rate:        0,
		MaxKeys:     1,
		NeverSample: []string{"audit"},
	})

	for range 3 {
		log.Info("audit event recorded")
	}
	assert.Equal(t, 3, countLines(&buf))

	buf.Reset()
	log.Info("first")
	log.Info("first")
	assert.Equal(t, 1, countLines(&buf))

	buf.Reset()
	log.Info("second")
	log.Info("second")
	assert.Equal(t, 2, countLines(&buf), "untracked keys are not sampled")
}

func TestSampling_Disabled(t *testing.T) {
	log := New(Config{Output: &bytes.Buffer{}})
	_, ok := log.Handler().(*samplingHandler)
	assert.False(t, ok)
}
