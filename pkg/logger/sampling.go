package logger

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// SamplingConfig limits repeated log lines. Within each Tick the first
// Threshold records with the same level and message are written; after that
// only every 1/Rate-th one is.
type SamplingConfig struct {
	Enabled   bool
	Tick      time.Duration
	Threshold uint64
	// Rate applies to records below warn level. Warn and error records use
	// ErrorRate.
	Rate      float64
	ErrorRate float64
	// MaxKeys bounds the number of tracked messages. Records beyond it are
	// written unsampled.
	MaxKeys int
	// NeverSample lists message prefixes that are always written.
	NeverSample []string
}

// Sampling defaults.
const (
	DefaultSamplingTick      = time.Second
	DefaultSamplingThreshold = 100
	DefaultSamplingRate      = 0.1
	DefaultSamplingErrorRate = 1.0
	DefaultSamplingMaxKeys   = 10000
)

// DefaultSamplingConfig returns sampling settings for production. Sampling is
// disabled until Enabled is set.
func DefaultSamplingConfig() SamplingConfig {
	return SamplingConfig{
		Tick:        DefaultSamplingTick,
		Threshold:   DefaultSamplingThreshold,
		Rate:        DefaultSamplingRate,
		ErrorRate:   DefaultSamplingErrorRate,
		MaxKeys:     DefaultSamplingMaxKeys,
		NeverSample: []string{"audit", "security"},
	}
}

// samplerState is shared by a handler and every handler derived from it with
// WithAttrs or WithGroup.
type samplerState struct {
	mu      sync.Mutex
	counts  map[string]uint64
	resetAt time.Time
	now     func() time.Time
}

type samplingHandler struct {
	next  slog.Handler
	cfg   SamplingConfig
	state *samplerState
}

// NewSamplingHandler wraps h with sampling. It returns h unchanged when
// sampling is disabled.
func NewSamplingHandler(h slog.Handler, cfg SamplingConfig) slog.Handler {
	if !cfg.Enabled {
		return h
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultSamplingTick
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultSamplingThreshold
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = DefaultSamplingMaxKeys
	}
	return &samplingHandler{
		next: h,
		cfg:  cfg,
		state: &samplerState{
			counts:  make(map[string]uint64),
			resetAt: time.Now().Add(cfg.Tick),
			now:     time.Now,
		},
	}
}

func (h *samplingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *samplingHandler) Handle(ctx context.Context, r slog.Record) error {
	logsProcessedTotal.WithLabelValues(levelLabel(r.Level)).Inc()

	if h.neverSampled(r.Message) || h.admit(r) {
		return h.next.Handle(ctx, r)
	}
	logsDroppedTotal.WithLabelValues(levelLabel(r.Level)).Inc()
	return nil
}

// admit counts r and reports whether it should be written.
func (h *samplingHandler) admit(r slog.Record) bool {
	s := h.state
	s.mu.Lock()
	defer s.mu.Unlock()

	if now := s.now(); !now.Before(s.resetAt) {
		clear(s.counts)
		s.resetAt = now.Add(h.cfg.Tick)
	}

	key := r.Level.String() + ":" + r.Message
	n, tracked := s.counts[key]
	if !tracked && len(s.counts) >= h.cfg.MaxKeys {
		return true
	}
	n++
	s.counts[key] = n
	samplingKeys.Set(float64(len(s.counts)))

	if n <= h.cfg.Threshold {
		return true
	}
	rate := h.cfg.Rate
	if r.Level >= slog.LevelWarn {
		rate = h.cfg.ErrorRate
	}
	switch {
	case rate >= 1:
		return true
	case rate <= 0:
		return false
	default:
		return n%uint64(1/rate) == 0
	}
}

func (h *samplingHandler) neverSampled(msg string) bool {
	for _, prefix := range h.cfg.NeverSample {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

func (h *samplingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &samplingHandler{next: h.next.WithAttrs(attrs), cfg: h.cfg, state: h.state}
}

func (h *samplingHandler) WithGroup(name string) slog.Handler {
	return &samplingHandler{next: h.next.WithGroup(name), cfg: h.cfg, state: h.state}
}
