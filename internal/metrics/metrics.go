package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 汇总合成与流水线相关的 Prometheus 指标。
// 所有记录方法都允许在 nil 接收者上调用，未启用指标时直接忽略。
type Metrics struct {
	SynthesisAttempts *prometheus.CounterVec
	SynthesisDuration *prometheus.HistogramVec
	ProviderFallbacks prometheus.Counter
	Batches           *prometheus.CounterVec
	SegmentDuration   prometheus.Histogram
	FadeOperations    *prometheus.CounterVec
}

// New 在给定的 Registerer 上创建并注册所有指标。
// 每个流水线实例使用独立的 registry，避免重复注册。
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SynthesisAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mindcast_synthesis_attempts_total",
			Help: "Speech synthesis attempts by provider and outcome",
		}, []string{"provider", "outcome"}),
		SynthesisDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mindcast_synthesis_duration_seconds",
			Help:    "Wall time of a single provider call",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}, []string{"provider"}),
		ProviderFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "mindcast_provider_fallbacks_total",
			Help: "Times the primary provider failed and the secondary provider was used",
		}),
		Batches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mindcast_batches_total",
			Help: "Batches handled by the orchestrator by result",
		}, []string{"result"}),
		SegmentDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mindcast_segment_duration_seconds",
			Help:    "Estimated duration of emitted segments",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 80},
		}),
		FadeOperations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mindcast_fade_operations_total",
			Help: "Full-session fade preparations by result",
		}, []string{"result"}),
	}
}

// ObserveAttempt 记录一次供应商调用。
func (m *Metrics) ObserveAttempt(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.SynthesisAttempts.WithLabelValues(provider, outcome).Inc()
	m.SynthesisDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// IncFallback 记录一次主供应商到备用供应商的降级。
func (m *Metrics) IncFallback() {
	if m == nil {
		return
	}
	m.ProviderFallbacks.Inc()
}

// IncBatch 记录一个批次的处理结果：emitted、skipped、failed、discarded。
func (m *Metrics) IncBatch(result string) {
	if m == nil {
		return
	}
	m.Batches.WithLabelValues(result).Inc()
}

// ObserveSegment 记录片段时长；0 表示时长待播放时测量，不计入。
func (m *Metrics) ObserveSegment(seconds float64) {
	if m == nil || seconds <= 0 {
		return
	}
	m.SegmentDuration.Observe(seconds)
}

// IncFade 记录一次整段淡入淡出处理结果。
func (m *Metrics) IncFade(result string) {
	if m == nil {
		return
	}
	m.FadeOperations.WithLabelValues(result).Inc()
}
