package observability

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordTransition(t *testing.T) {
	m := NewMetrics()
	m.RecordTransition("DRAFT", "SUBMITTED", "ok")
	m.RecordTransition("DRAFT", "SUBMITTED", "ok")
	m.RecordTransition("DRAFT", "CLOSED", "INVALID_TRANSITION")

	if got := testutil.ToFloat64(m.transitions.WithLabelValues("DRAFT", "SUBMITTED", "ok")); got != 2 {
		t.Fatalf("expected 2 successful transitions, got %v", got)
	}
	if got := testutil.ToFloat64(m.transitions.WithLabelValues("DRAFT", "CLOSED", "INVALID_TRANSITION")); got != 1 {
		t.Fatalf("expected 1 rejected transition, got %v", got)
	}
}

func TestMetricsIgnoresEmptyNotificationBatches(t *testing.T) {
	m := NewMetrics()
	m.RecordNotifications("CREATED", 0)
	m.RecordNotifications("CREATED", 3)

	if got := testutil.ToFloat64(m.notifications.WithLabelValues("CREATED")); got != 3 {
		t.Fatalf("expected 3 notifications, got %v", got)
	}
}

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/cases", "GET", 200, 15*time.Millisecond)
	m.RecordDelivery("SENT")
	m.SetQueueDepth(4)

	expected := `
# HELP dof_delivery_queue_depth Deliveries waiting for a worker.
# TYPE dof_delivery_queue_depth gauge
dof_delivery_queue_depth 4
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "dof_delivery_queue_depth"); err != nil {
		t.Fatal(err)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordTransition("a", "b", "ok")
	m.RecordDelivery("FAILED")
	m.SetQueueDepth(1)
}
