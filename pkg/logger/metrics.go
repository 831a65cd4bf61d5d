package logger

import (
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

var (
	logsProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dealroom",
		Subsystem: "logger",
		Name:      "logs_processed_total",
		Help:      "Log records seen by the sampler",
	}, []string{"level"})

	logsDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dealroom",
		Subsystem: "logger",
		Name:      "logs_dropped_total",
		Help:      "Log records dropped by sampling",
	}, []string{"level"})

	samplingKeys = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "dealroom",
		Subsystem: "logger",
		Name:      "sampling_keys",
		Help:      "Distinct messages tracked in the current sampling tick",
	})

	registerOnce sync.Once
)

// RegisterMetrics registers the logger collectors with reg, or with the
// default registerer when reg is nil. Later calls are no-ops.
func RegisterMetrics(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		for _, c := range []prometheus.Collector{logsProcessedTotal, logsDroppedTotal, samplingKeys} {
			_ = reg.Register(c)
		}
	})
}

// DroppedTotal returns the number of dropped records for a level label
// ("debug", "info", "warn" or "error").
func DroppedTotal(level string) float64 {
	c, err := logsDroppedTotal.GetMetricWithLabelValues(level)
	if err != nil {
		return 0
	}
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
