package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ptz_agent"

var (
	FramesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_captured_total",
		Help:      "Frames read from the video source.",
	})
	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_dropped_total",
		Help:      "Frames discarded because a consumer slot was still full.",
	}, []string{"slot"})
	SourceReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_reconnects_total",
		Help:      "Times the video source was reopened.",
	})
	Events = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Snapshot events by result (published, upload_failed, publish_failed, skipped).",
	}, []string{"result"})
	ControllerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "controller_calls_total",
		Help:      "Camera control calls by operation and result.",
	}, []string{"operation", "result"})
	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_refreshes_total",
		Help:      "Access token refresh attempts by result.",
	}, []string{"result"})
	FetchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_outcomes_total",
		Help:      "Bounded fetch outcomes by kind.",
	}, []string{"kind"})
	BoundDevice = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "bound_device_id",
		Help:      "Id of the device the motion loop is bound to, 0 when unbound.",
	})
)

// Result turns a success flag into a label value.
func Result(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

func Handler() http.Handler {
	return promhttp.Handler()
}
