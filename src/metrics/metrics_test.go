package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestResult(t *testing.T) {
	if Result(true) != "ok" || Result(false) != "failed" {
		t.Errorf("unexpected labels %q %q", Result(true), Result(false))
	}
}

func TestCountersAreExposed(t *testing.T) {
	before := testutil.ToFloat64(FramesDropped.WithLabelValues("metrics-test"))
	FramesDropped.WithLabelValues("metrics-test").Inc()
	if got := testutil.ToFloat64(FramesDropped.WithLabelValues("metrics-test")); got != before+1 {
		t.Errorf("expected %v, got %v", before+1, got)
	}

	BoundDevice.Set(7)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "ptz_agent_bound_device_id 7") {
		t.Error("bound device gauge missing from the exposition")
	}
	if !strings.Contains(body, `ptz_agent_frames_dropped_total{slot="metrics-test"}`) {
		t.Error("dropped frames counter missing from the exposition")
	}
}
