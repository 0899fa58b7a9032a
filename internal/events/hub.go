package events

import (
	"log/slog"
	"sync"
)

// Hub is the widget's listener hub. It owns the event bus, tracks every
// registration so Destroy can release them all, and routes camera errors:
// warnings are always absorbed, while a critical error with no registered
// error listener panics rather than disappearing silently.
type Hub struct {
	bus    *Bus
	logger *slog.Logger

	mu             sync.Mutex
	unsubs         []func()
	errorListeners int
	enabled        bool
	destroyed      bool

	// requestLayoutOnOpen asks the outer view layer to re-measure itself the
	// next time the camera opens (preview size may have changed).
	requestLayoutOnOpen bool
}

// NewHub creates an enabled hub. Pass enabled=false for edit-mode widgets
// whose non-critical listeners must not register.
func NewHub(enabled bool, logger *slog.Logger) *Hub {
	return &Hub{
		bus:     NewBus(),
		logger:  logger,
		enabled: enabled,
	}
}

// SetEnabled toggles registration of non-critical listeners.
func (h *Hub) SetEnabled(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enabled = enabled
}

// Enabled reports whether non-critical listeners may register.
func (h *Hub) Enabled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enabled
}

// RequestLayoutOnOpen marks that the view layer should re-measure on the
// next camera open.
func (h *Hub) RequestLayoutOnOpen() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requestLayoutOnOpen = true
}

// ConsumeLayoutRequest returns and clears the pending layout request.
func (h *Hub) ConsumeLayoutRequest() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	pending := h.requestLayoutOnOpen
	h.requestLayoutOnOpen = false
	return pending
}

// subscribe registers a non-critical listener. While the hub is disabled or
// destroyed this is a no-op returning a no-op unsubscribe.
func (h *Hub) subscribe(handler any) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.enabled || h.destroyed {
		return func() {}
	}
	unsub := h.bus.Subscribe(handler)
	h.unsubs = append(h.unsubs, unsub)
	return unsub
}

// OnCameraOpened registers a camera-opened listener.
func (h *Hub) OnCameraOpened(fn func()) func() {
	return h.subscribe(func(CameraOpenedEvent) { fn() })
}

// OnCameraClosed registers a camera-closed listener.
func (h *Hub) OnCameraClosed(fn func()) func() {
	return h.subscribe(func(CameraClosedEvent) { fn() })
}

// OnPictureTaken registers a still-capture listener.
func (h *Hub) OnPictureTaken(fn func(data []byte)) func() {
	return h.subscribe(func(e PictureTakenEvent) { fn(e.Data) })
}

// OnPreviewFrame registers a preview-frame listener.
func (h *Hub) OnPreviewFrame(fn func(e PreviewFrameEvent)) func() {
	return h.subscribe(func(e PreviewFrameEvent) { fn(e) })
}

// OnLegacyPreviewFrame registers a legacy preview-frame listener.
func (h *Hub) OnLegacyPreviewFrame(fn func(e LegacyPreviewFrameEvent)) func() {
	return h.subscribe(func(e LegacyPreviewFrameEvent) { fn(e) })
}

// OnVideoRecordStarted registers a record-started listener.
func (h *Hub) OnVideoRecordStarted(fn func()) func() {
	return h.subscribe(func(VideoRecordStartedEvent) { fn() })
}

// OnVideoRecordStopped registers a record-stopped listener.
func (h *Hub) OnVideoRecordStopped(fn func(success bool)) func() {
	return h.subscribe(func(e VideoRecordStoppedEvent) { fn(e.Success) })
}

// OnCameraError registers an error listener. Error listeners are always
// registerable, even while the hub is disabled.
func (h *Hub) OnCameraError(fn func(err error, severity Severity)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed {
		return func() {}
	}

	unsub := h.bus.Subscribe(func(e CameraErrorEvent) { fn(e.Err, e.Severity) })
	h.errorListeners++

	var once sync.Once
	wrapped := func() {
		once.Do(func() {
			unsub()
			h.mu.Lock()
			h.errorListeners--
			h.mu.Unlock()
		})
	}
	h.unsubs = append(h.unsubs, wrapped)
	return wrapped
}

// CameraError fans an error out to registered error listeners. A critical
// error with zero listeners escalates to a panic: silent hardware failure is
// worse than a crash.
func (h *Hub) CameraError(err error, severity Severity) {
	h.mu.Lock()
	listeners := h.errorListeners
	h.mu.Unlock()

	if listeners == 0 {
		if severity == SeverityCritical {
			panic(CameraErrorEvent{Err: err, Severity: severity})
		}
		h.logger.Warn("Camera warning with no error listener", "error", err)
		return
	}

	h.logger.Debug("Camera error", "severity", severity.String(), "error", err)
	h.bus.Publish(CameraErrorEvent{Err: err, Severity: severity})
}

// CameraOpened publishes a camera-opened event.
func (h *Hub) CameraOpened() { h.bus.Publish(CameraOpenedEvent{}) }

// CameraClosed publishes a camera-closed event.
func (h *Hub) CameraClosed() { h.bus.Publish(CameraClosedEvent{}) }

// PictureTaken publishes captured still bytes.
func (h *Hub) PictureTaken(data []byte) { h.bus.Publish(PictureTakenEvent{Data: data}) }

// PreviewFrame publishes a preview frame.
func (h *Hub) PreviewFrame(e PreviewFrameEvent) { h.bus.Publish(e) }

// LegacyPreviewFrame publishes a legacy preview frame.
func (h *Hub) LegacyPreviewFrame(e LegacyPreviewFrameEvent) { h.bus.Publish(e) }

// VideoRecordStarted publishes a record-started event.
func (h *Hub) VideoRecordStarted(path string) {
	h.bus.Publish(VideoRecordStartedEvent{Path: path})
}

// VideoRecordStopped publishes a record-stopped event.
func (h *Hub) VideoRecordStopped(path string, success bool) {
	h.bus.Publish(VideoRecordStoppedEvent{Path: path, Success: success})
}

// Destroy releases every registered listener. Called exactly once during
// widget teardown; later calls log a warning and do nothing.
func (h *Hub) Destroy() {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		h.logger.Warn("Listener hub already destroyed")
		return
	}
	h.destroyed = true
	unsubs := h.unsubs
	h.unsubs = nil
	h.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}
