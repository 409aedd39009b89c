package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCheckerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckerMetrics(reg)

	m.RunStarted()
	m.Explored(1, 1, 0)
	m.Explored(2, 2, 1)
	m.Discovered("ACID", "always")
	m.RunFinished("failed", time.Second)

	if got := testutil.ToFloat64(m.States); got != 3 {
		t.Errorf("Expected 3 visited states. Got: %v", got)
	}
	if got := testutil.ToFloat64(m.UniqueStates); got != 2 {
		t.Errorf("Expected 2 unique states. Got: %v", got)
	}
	if got := testutil.ToFloat64(m.Discoveries.WithLabelValues("ACID", "always")); got != 1 {
		t.Errorf("Expected one discovery. Got: %v", got)
	}
	if got := testutil.ToFloat64(m.Runs.WithLabelValues("failed")); got != 1 {
		t.Errorf("Expected one failed run. Got: %v", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *CheckerMetrics
	m.RunStarted()
	m.Explored(1, 1, 1)
	m.Discovered("ACID", "always")
	m.RunFinished("passed", time.Second)

	var s *ServerMetrics
	s.Observe("status", 200, time.Now())
}

func TestHandlerFor(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewServerMetrics(reg, "explorer")
	s.Observe("status", 200, time.Now())

	rec := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Result().Body)
	expected := `twopc_explorer_requests_total{handler="status",status="200"} 1`
	if !strings.Contains(string(body), expected) {
		t.Errorf("Expected the metrics to contain %v. Got:\n%v", expected, string(body))
	}
}
