package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealroom/api/pkg/logger"
)

type fakePurger struct {
	mu      sync.Mutex
	cutoffs []time.Time
	deleted int64
	err     error
}

func (p *fakePurger) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cutoffs = append(p.cutoffs, cutoff)
	return p.deleted, p.err
}

func (p *fakePurger) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cutoffs)
}

func TestNewRetentionJob(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RetentionConfig
		wantErr string
	}{
		{"standard", RetentionConfig{Schedule: "0 3 * * *", Retention: time.Hour}, ""},
		{"descriptor", RetentionConfig{Schedule: "@daily", Retention: time.Hour}, ""},
		{"bad schedule", RetentionConfig{Schedule: "nightly", Retention: time.Hour}, "invalid retention schedule"},
		{"no retention", RetentionConfig{Schedule: "@daily"}, "retention must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRetentionJob(tt.cfg, &fakePurger{}, logger.NewNop())
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRetentionJob_Purge(t *testing.T) {
	purger := &fakePurger{deleted: 42}
	job, err := NewRetentionJob(RetentionConfig{Schedule: "@daily", Retention: 30 * 24 * time.Hour}, purger, logger.NewNop())
	require.NoError(t, err)
	now := time.Date(2026, 3, 31, 3, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	deleted, err := job.Purge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), deleted)
	require.Len(t, purger.cutoffs, 1)
	assert.Equal(t, time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC), purger.cutoffs[0])

	// earlier batches committed before the failure
	purger.deleted, purger.err = 5000, errors.New("db down")
	deleted, err = job.Purge(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Equal(t, int64(5000), deleted)
}

func TestRetentionJob_Run(t *testing.T) {
	purger := &fakePurger{}
	job, err := NewRetentionJob(RetentionConfig{Schedule: "@every 1s", Retention: time.Hour}, purger, logger.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- job.Run(ctx) }()

	assert.Eventually(t, func() bool { return purger.calls() > 0 }, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("retention job did not stop")
	}
}
