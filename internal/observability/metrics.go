// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for the turn orchestration core.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects turn, round, and tool execution metrics. All methods are
// nil-safe so callers can run without a metrics backend.
type Metrics struct {
	// TurnCounter counts completed turns.
	// Labels: status (finished|error|pending_handoff)
	TurnCounter *prometheus.CounterVec

	// TurnDuration measures wall time per turn in seconds.
	TurnDuration prometheus.Histogram

	// RoundCounter counts executed rounds.
	// Labels: stop_reason (end_turn|tool_use|abort|error)
	RoundCounter *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// TokensUsed tracks token consumption.
	// Labels: model, type (input|output)
	TokensUsed *prometheus.CounterVec

	// CompactionEdits counts compaction pipeline edits.
	// Labels: pass
	CompactionEdits *prometheus.CounterVec
}

// NewMetrics registers all metrics with the default Prometheus registry.
// Call once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		TurnCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentd_turns_total",
				Help: "Total completed turns by terminal status",
			},
			[]string{"status"},
		),
		TurnDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agentd_turn_duration_seconds",
				Help:    "Wall time per turn",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
		),
		RoundCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentd_rounds_total",
				Help: "Total executed rounds by stop reason",
			},
			[]string{"stop_reason"},
		),
		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentd_tool_executions_total",
				Help: "Total tool invocations by name and status",
			},
			[]string{"tool_name", "status"},
		),
		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentd_tool_execution_duration_seconds",
				Help:    "Tool execution latency",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),
		TokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentd_tokens_total",
				Help: "Token consumption by model and direction",
			},
			[]string{"model", "type"},
		),
		CompactionEdits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentd_compaction_edits_total",
				Help: "Compaction pipeline edits by pass",
			},
			[]string{"pass"},
		),
	}
}

// TurnFinished records a turn's terminal status and duration.
func (m *Metrics) TurnFinished(status string, seconds float64) {
	if m == nil {
		return
	}
	m.TurnCounter.WithLabelValues(status).Inc()
	m.TurnDuration.Observe(seconds)
}

// RoundFinished records one round's stop reason.
func (m *Metrics) RoundFinished(stopReason string) {
	if m == nil {
		return
	}
	m.RoundCounter.WithLabelValues(stopReason).Inc()
}

// ToolExecuted records one tool invocation.
func (m *Metrics) ToolExecuted(name string, isError bool, seconds float64) {
	if m == nil {
		return
	}
	status := "success"
	if isError {
		status = "error"
	}
	m.ToolExecutionCounter.WithLabelValues(name, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(name).Observe(seconds)
}

// Tokens records token consumption for a round.
func (m *Metrics) Tokens(model string, input, output int64) {
	if m == nil {
		return
	}
	if input > 0 {
		m.TokensUsed.WithLabelValues(model, "input").Add(float64(input))
	}
	if output > 0 {
		m.TokensUsed.WithLabelValues(model, "output").Add(float64(output))
	}
}

// CompactionApplied records compaction edits for a pass.
func (m *Metrics) CompactionApplied(pass string, edits int) {
	if m == nil || edits == 0 {
		return
	}
	m.CompactionEdits.WithLabelValues(pass).Add(float64(edits))
}
