package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rushteam/catalogrec/core"
)

// Prometheus 把样本导出为 Prometheus 指标。
type Prometheus struct {
	GenerationDuration *prometheus.HistogramVec
	ResultCount        *prometheus.HistogramVec
	Requests           *prometheus.CounterVec
	BreakerState       *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec
}

// NewPrometheus 在 reg 上注册指标；reg 为 nil 时使用 prometheus.DefaultRegisterer。
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Prometheus{
		GenerationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recommendation_generation_duration_seconds",
				Help:    "Wall time of GetRecommendations calls",
				Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"block", "cache_hit", "fallback"},
		),
		ResultCount: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recommendation_result_count",
				Help:    "Number of candidates returned per call",
				Buckets: prometheus.LinearBuckets(0, 5, 11),
			},
			[]string{"block"},
		),
		Requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recommendation_requests_total",
				Help: "Recommendation calls by outcome",
			},
			[]string{"block", "outcome"},
		),
		BreakerState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "recommendation_cache_breaker_state",
				Help: "Cache circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		BreakerTransitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recommendation_cache_breaker_transitions_total",
				Help: "Cache circuit breaker state transitions",
			},
			[]string{"name", "from", "to"},
		),
	}
}

func (p *Prometheus) Record(s core.PerformanceSample) {
	p.GenerationDuration.
		WithLabelValues(s.BlockName, strconv.FormatBool(s.CacheHit), strconv.FormatBool(s.Fallback)).
		Observe(s.ExecutionTime.Seconds())
	p.ResultCount.WithLabelValues(s.BlockName).Observe(float64(s.ResultCount))
	p.Requests.WithLabelValues(s.BlockName, outcome(s)).Inc()
}

// BreakerStateChanged 记录缓存熔断器状态变化，state 取值 closed/half-open/open。
func (p *Prometheus) BreakerStateChanged(name, from, to string) {
	p.BreakerState.WithLabelValues(name).Set(stateValue(to))
	p.BreakerTransitions.WithLabelValues(name, from, to).Inc()
}

func outcome(s core.PerformanceSample) string {
	switch {
	case s.Fallback:
		return "fallback"
	case s.CacheHit:
		return "cache_hit"
	default:
		return "generated"
	}
}

func stateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}
