// Package metrics collects Prometheus metrics for the runtime: message
// flow, turn outcomes, provider fallbacks, tool executions, and queue
// pressure.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// Metrics bundles the runtime's collectors. Create one per process and
// register its callbacks on the router, engine, executor, and chains.
type Metrics struct {
	registry *prometheus.Registry

	// MessagesRouted counts messages accepted by the router.
	// Labels: channel
	MessagesRouted *prometheus.CounterVec

	// MessagesDropped counts messages dropped on queue overflow.
	// Labels: channel
	MessagesDropped *prometheus.CounterVec

	// TurnCounter counts completed turns by outcome (done|error).
	TurnCounter *prometheus.CounterVec

	// TurnDuration measures end-to-end turn latency in seconds.
	// Buckets: 0.1s .. 120s
	TurnDuration prometheus.Histogram

	// ToolExecutionCounter counts tool executions by tool and status.
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	ToolExecutionDuration *prometheus.HistogramVec

	// ProviderFallbacks counts chain fallback switches.
	// Labels: from, to
	ProviderFallbacks *prometheus.CounterVec

	// ScheduledTaskCounter counts scheduled task completions by status.
	ScheduledTaskCounter *prometheus.CounterVec
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		MessagesRouted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openclaw_messages_routed_total",
				Help: "Total messages accepted by the router, by channel",
			},
			[]string{"channel"},
		),

		MessagesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openclaw_messages_dropped_total",
				Help: "Total messages dropped on queue overflow, by channel",
			},
			[]string{"channel"},
		),

		TurnCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openclaw_turns_total",
				Help: "Total completed turns by outcome",
			},
			[]string{"outcome"},
		),

		TurnDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "openclaw_turn_duration_seconds",
				Help:    "End-to-end turn latency in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		),

		ToolExecutionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openclaw_tool_executions_total",
				Help: "Total tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "openclaw_tool_execution_duration_seconds",
				Help:    "Tool execution time in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		ProviderFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openclaw_provider_fallbacks_total",
				Help: "Provider chain fallback switches",
			},
			[]string{"from", "to"},
		),

		ScheduledTaskCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openclaw_scheduled_tasks_total",
				Help: "Scheduled task runs by status",
			},
			[]string{"status"},
		),
	}
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// MessageRouted increments the routed counter for a channel.
func (m *Metrics) MessageRouted(channel models.ChannelType) {
	m.MessagesRouted.WithLabelValues(string(channel)).Inc()
}

// MessageDropped increments the dropped counter for a channel.
func (m *Metrics) MessageDropped(channel models.ChannelType) {
	m.MessagesDropped.WithLabelValues(string(channel)).Inc()
}

// TurnFinished records a turn outcome and duration.
func (m *Metrics) TurnFinished(outcome string, d time.Duration) {
	m.TurnCounter.WithLabelValues(outcome).Inc()
	m.TurnDuration.Observe(d.Seconds())
}

// ToolExecuted records a tool execution.
func (m *Metrics) ToolExecuted(tool string, success bool, d time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.ToolExecutionCounter.WithLabelValues(tool, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// ProviderFallback records a chain switch.
func (m *Metrics) ProviderFallback(from, to string) {
	m.ProviderFallbacks.WithLabelValues(from, to).Inc()
}

// TaskRun records a scheduled task completion.
func (m *Metrics) TaskRun(status string) {
	m.ScheduledTaskCounter.WithLabelValues(status).Inc()
}
