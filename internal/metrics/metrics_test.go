package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

func TestMessageCounters(t *testing.T) {
	m := NewMetrics()

	m.MessageRouted(models.ChannelTelegram)
	m.MessageRouted(models.ChannelTelegram)
	m.MessageRouted(models.ChannelConsole)
	m.MessageDropped(models.ChannelTelegram)

	expected := `
		# HELP openclaw_messages_routed_total Total messages accepted by the router, by channel
		# TYPE openclaw_messages_routed_total counter
		openclaw_messages_routed_total{channel="console"} 1
		openclaw_messages_routed_total{channel="telegram"} 2
	`
	if err := testutil.CollectAndCompare(m.MessagesRouted, strings.NewReader(expected)); err != nil {
		t.Errorf("routed counter: %v", err)
	}
	if got := testutil.ToFloat64(m.MessagesDropped.WithLabelValues("telegram")); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
}

func TestTurnAndToolRecording(t *testing.T) {
	m := NewMetrics()

	m.TurnFinished("done", 2*time.Second)
	m.TurnFinished("done", time.Second)
	m.TurnFinished("error", 500*time.Millisecond)

	if got := testutil.ToFloat64(m.TurnCounter.WithLabelValues("done")); got != 2 {
		t.Errorf("done turns = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.TurnCounter.WithLabelValues("error")); got != 1 {
		t.Errorf("error turns = %v, want 1", got)
	}

	m.ToolExecuted("shell", true, 100*time.Millisecond)
	m.ToolExecuted("shell", false, 50*time.Millisecond)
	if got := testutil.ToFloat64(m.ToolExecutionCounter.WithLabelValues("shell", "error")); got != 1 {
		t.Errorf("shell errors = %v, want 1", got)
	}
}

func TestFallbackAndTaskCounters(t *testing.T) {
	m := NewMetrics()
	m.ProviderFallback("openai", "local")
	m.TaskRun("completed")
	m.TaskRun("error")

	if got := testutil.ToFloat64(m.ProviderFallbacks.WithLabelValues("openai", "local")); got != 1 {
		t.Errorf("fallbacks = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ScheduledTaskCounter.WithLabelValues("error")); got != 1 {
		t.Errorf("task errors = %v, want 1", got)
	}
}

func TestIndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()
	a.TurnFinished("done", time.Second)
	if got := testutil.ToFloat64(b.TurnCounter.WithLabelValues("done")); got != 0 {
		t.Errorf("registries shared state: %v", got)
	}
	if a.Registry() == b.Registry() {
		t.Error("registries not independent")
	}
}
