// Package metrics provides Prometheus metrics for the camera widget.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	starts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "camview",
		Subsystem: "camera",
		Name:      "starts_total",
		Help:      "Successful camera start operations",
	})

	fallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "camview",
		Subsystem: "camera",
		Name:      "fallbacks_total",
		Help:      "Backend replacements by the legacy fallback protocol",
	})

	pictures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "camview",
		Subsystem: "camera",
		Name:      "pictures_total",
		Help:      "Still captures published to listeners",
	})

	recordings = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "camview",
		Subsystem: "camera",
		Name:      "recordings_total",
		Help:      "Video recording sessions started",
	})

	cameraErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camview",
		Subsystem: "camera",
		Name:      "errors_total",
		Help:      "Errors routed through the listener hub by severity",
	}, []string{"severity"})

	cameraOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "camview",
		Subsystem: "camera",
		Name:      "open",
		Help:      "1 while the camera device is open",
	})
)

// IncStart records a successful start operation.
func IncStart() { starts.Inc() }

// IncFallback records one legacy-backend fallback.
func IncFallback() { fallbacks.Inc() }

// IncPicture records a published still capture.
func IncPicture() { pictures.Inc() }

// IncRecording records a started recording session.
func IncRecording() { recordings.Inc() }

// IncError records a hub error with its severity label.
func IncError(severity string) { cameraErrors.WithLabelValues(severity).Inc() }

// SetCameraOpen tracks whether the device is currently open.
func SetCameraOpen(open bool) {
	if open {
		cameraOpen.Set(1)
	} else {
		cameraOpen.Set(0)
	}
}
