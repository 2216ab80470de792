package metrics_test

import (
	"net/http/httptest"
	"testing"

	"github.com/ManuGH/xg2g/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestPromhttpExposure(t *testing.T) {
	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	if _, err := srv.Client().Get(srv.URL); err != nil {
		t.Fatal(err)
	}
}

func TestRecordGenerateOutcome(t *testing.T) {
	tests := []string{"ok", "rejected", "error"}
	for _, outcome := range tests {
		t.Run(outcome, func(t *testing.T) {
			metrics.RecordGenerateOutcome(outcome)
		})
	}
}

func TestRecordStaleTicketReaped(t *testing.T) {
	metrics.RecordStaleTicketReaped("dead_pid")
	metrics.RecordStaleTicketReaped("age")
}

func TestSetQueueDepth(t *testing.T) {
	metrics.SetQueueDepth(3)
	if got := metrics.GetQueueDepth(); got != 3 {
		t.Errorf("GetQueueDepth() = %v, want 3", got)
	}
	metrics.SetQueueDepth(0)
	if got := metrics.GetQueueDepth(); got != 0 {
		t.Errorf("GetQueueDepth() = %v, want 0", got)
	}
}

func TestSetModelLoaded(t *testing.T) {
	metrics.SetModelLoaded(true)
	metrics.SetModelLoaded(false)
}
