package metrics

import "github.com/prometheus/client_golang/prometheus"

// CompanionMetrics exposes counters/histograms for the turn pipeline.
type CompanionMetrics struct {
	framesSelected   *prometheus.CounterVec
	attempts         *prometheus.HistogramVec
	evaluationScore  *prometheus.HistogramVec
	issues           *prometheus.CounterVec
	degradedCalls    *prometheus.CounterVec
	exhausted        *prometheus.CounterVec
	summaries        *prometheus.CounterVec
	turnLatency      *prometheus.HistogramVec
	generationErrors prometheus.Counter
}

func NewCompanionMetrics(reg prometheus.Registerer) *CompanionMetrics {
	m := &CompanionMetrics{
		framesSelected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bme",
			Subsystem: "companion",
			Name:      "frame_selected_total",
			Help:      "Frames chosen by the frame selector",
		}, []string{"frame"}),
		attempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bme",
			Subsystem: "companion",
			Name:      "generation_attempts",
			Help:      "Generation calls needed per turn",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}, []string{"frame"}),
		evaluationScore: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bme",
			Subsystem: "companion",
			Name:      "evaluation_score",
			Help:      "Quality score of evaluated responses",
			Buckets:   []float64{0, 25, 40, 55, 70, 85, 95, 100},
		}, []string{"accepted"}),
		issues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bme",
			Subsystem: "companion",
			Name:      "evaluation_issues_total",
			Help:      "Quality issues raised by the evaluator",
		}, []string{"type", "severity"}),
		degradedCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bme",
			Subsystem: "companion",
			Name:      "degraded_calls_total",
			Help:      "Collaborator calls that failed and were replaced by defaults",
		}, []string{"component"}),
		exhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bme",
			Subsystem: "companion",
			Name:      "attempts_exhausted_total",
			Help:      "Turns where every attempt was rejected",
		}, []string{"policy"}),
		summaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bme",
			Subsystem: "companion",
			Name:      "reflection_summaries_total",
			Help:      "Reflection summary refreshes",
		}, []string{"status"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bme",
			Subsystem: "companion",
			Name:      "turn_latency_seconds",
			Help:      "End-to-end latency of HandleTurn",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"status"}),
		generationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bme",
			Subsystem: "companion",
			Name:      "generation_errors_total",
			Help:      "Fatal generation failures",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.framesSelected,
		m.attempts,
		m.evaluationScore,
		m.issues,
		m.degradedCalls,
		m.exhausted,
		m.summaries,
		m.turnLatency,
		m.generationErrors,
	)
	return m
}

func (m *CompanionMetrics) ObserveFrame(frame string) {
	if m == nil {
		return
	}
	m.framesSelected.WithLabelValues(frame).Inc()
}

func (m *CompanionMetrics) ObserveAttempts(frame string, attempts int) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(frame).Observe(float64(attempts))
}

func (m *CompanionMetrics) ObserveEvaluation(score int, accepted bool) {
	if m == nil {
		return
	}
	m.evaluationScore.WithLabelValues(boolLabel(accepted)).Observe(float64(score))
}

func (m *CompanionMetrics) ObserveIssue(issueType, severity string) {
	if m == nil {
		return
	}
	m.issues.WithLabelValues(issueType, severity).Inc()
}

// ObserveDegraded records a collaborator failure that was absorbed.
func (m *CompanionMetrics) ObserveDegraded(component string) {
	if m == nil {
		return
	}
	m.degradedCalls.WithLabelValues(component).Inc()
}

func (m *CompanionMetrics) ObserveExhausted(policy string) {
	if m == nil {
		return
	}
	m.exhausted.WithLabelValues(policy).Inc()
}

func (m *CompanionMetrics) ObserveSummary(status string) {
	if m == nil {
		return
	}
	m.summaries.WithLabelValues(status).Inc()
}

func (m *CompanionMetrics) ObserveTurnLatency(status string, seconds float64) {
	if m == nil {
		return
	}
	m.turnLatency.WithLabelValues(status).Observe(seconds)
}

func (m *CompanionMetrics) ObserveGenerationError() {
	if m == nil {
		return
	}
	m.generationErrors.Inc()
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
