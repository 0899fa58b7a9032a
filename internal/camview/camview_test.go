package camview

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KorsanSoftware/camview/internal/camconfig"
	"github.com/KorsanSoftware/camview/internal/camera"
	"github.com/KorsanSoftware/camview/internal/events"
)

// fakeCam is a scriptable backend for exercising the widget protocol.
type fakeCam struct {
	gen      camera.Generation
	startErr error

	mu        sync.Mutex
	active    bool
	opened    bool
	recording bool
	destroys  int
	rotation  int

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeCam(gen camera.Generation, startErr error) *fakeCam {
	return &fakeCam{gen: gen, startErr: startErr, active: true}
}

// enter tracks operation overlap to prove serialized dispatch.
func (f *fakeCam) enter() func() {
	n := f.inFlight.Add(1)
	for {
		max := f.maxInFlight.Load()
		if n <= max || f.maxInFlight.CompareAndSwap(max, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeCam) Generation() camera.Generation { return f.gen }

func (f *fakeCam) Start() error {
	defer f.enter()()
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	f.opened = true
	f.mu.Unlock()
	return nil
}

func (f *fakeCam) Stop() {
	defer f.enter()()
	f.mu.Lock()
	f.opened = false
	f.recording = false
	f.mu.Unlock()
}

func (f *fakeCam) Destroy() {
	f.mu.Lock()
	f.destroys++
	f.active = false
	f.opened = false
	f.mu.Unlock()
}

func (f *fakeCam) destroyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroys
}

func (f *fakeCam) IsActive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeCam) IsCameraOpened() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

func (f *fakeCam) IsVideoRecording() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recording
}

func (f *fakeCam) TakePicture() error {
	defer f.enter()()
	if !f.IsCameraOpened() {
		return camera.ErrNotOpened
	}
	return nil
}

func (f *fakeCam) StartVideoRecording(path string, vc camera.VideoConfig) error {
	defer f.enter()()
	if !f.IsCameraOpened() {
		return camera.ErrNotOpened
	}
	f.mu.Lock()
	f.recording = true
	f.mu.Unlock()
	return nil
}

func (f *fakeCam) PauseVideoRecording() error  { return nil }
func (f *fakeCam) ResumeVideoRecording() error { return nil }

func (f *fakeCam) StopVideoRecording() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.recording {
		return camera.ErrNotRecording
	}
	f.recording = false
	return nil
}

func (f *fakeCam) SetAspectRatio(r camconfig.Ratio) error { return nil }

func (f *fakeCam) SupportedAspectRatios() []camconfig.Ratio {
	return []camconfig.Ratio{camconfig.RatioStandard, camconfig.RatioWide}
}

func (f *fakeCam) MaxDigitalZoom() float64 { return 2.0 }

func (f *fakeCam) DeviceRotation() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rotation
}

func (f *fakeCam) SetDeviceRotation(deg int) {
	f.mu.Lock()
	f.rotation = deg
	f.mu.Unlock()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// harness bundles a widget with scripted modern and legacy backends.
type harness struct {
	view    *CameraView
	modern  *fakeCam
	legacy  *fakeCam
	legacyN atomic.Int32
	errs    chan events.CameraErrorEvent
}

func newHarness(t *testing.T, modernErr, legacyErr error) *harness {
	t.Helper()
	h := &harness{
		modern: newFakeCam(camera.GenerationV4L2Streaming, modernErr),
		legacy: newFakeCam(camera.GenerationLegacy, legacyErr),
		errs:   make(chan events.CameraErrorEvent, 64),
	}
	view, err := New(Options{
		Logger:  testLogger(),
		Enabled: true,
		Factory: func(deps camera.Deps) (camera.Camera, error) {
			return h.modern, nil
		},
		LegacyFactory: func(deps camera.Deps) (camera.Camera, error) {
			h.legacyN.Add(1)
			return h.legacy, nil
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	view.OnCameraError(func(err error, severity events.Severity) {
		h.errs <- events.CameraErrorEvent{Err: err, Severity: severity}
	})
	h.view = view
	t.Cleanup(view.Destroy)
	return h
}

func (h *harness) waitErr(t *testing.T) events.CameraErrorEvent {
	t.Helper()
	select {
	case e := <-h.errs:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no error event")
		return events.CameraErrorEvent{}
	}
}

func TestStartSuccess(t *testing.T) {
	h := newHarness(t, nil, nil)

	if err := h.view.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if !h.view.IsCameraOpened() {
		t.Error("camera not opened")
	}
	if h.view.Generation() != camera.GenerationV4L2Streaming {
		t.Errorf("Generation() = %s, want the modern tier", h.view.Generation())
	}
	if n := h.legacyN.Load(); n != 0 {
		t.Errorf("legacy backend constructed %d times on a clean start", n)
	}
}

func TestStartWhileOpenWarns(t *testing.T) {
	h := newHarness(t, nil, nil)

	if err := h.view.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	err := h.view.Start()
	if !errors.Is(err, camera.ErrAlreadyOpened) {
		t.Errorf("second Start() = %v, want ErrAlreadyOpened", err)
	}
	e := h.waitErr(t)
	if e.Severity != events.SeverityWarning {
		t.Errorf("severity = %s, want warning", e.Severity)
	}
}

func TestFallbackToLegacy(t *testing.T) {
	h := newHarness(t, errors.New("modern start failed"), nil)

	h.view.SetAspectRatio(camconfig.RatioWide)
	h.view.SetJPEGQuality(75)

	if err := h.view.Start(); err != nil {
		t.Fatalf("Start() error after fallback: %v", err)
	}

	if n := h.legacyN.Load(); n != 1 {
		t.Fatalf("legacy backend constructed %d times, want exactly 1", n)
	}
	if h.modern.destroyCount() != 1 {
		t.Errorf("failed backend destroyed %d times, want 1", h.modern.destroyCount())
	}
	if h.view.Generation() != camera.GenerationLegacy {
		t.Errorf("Generation() = %s, want legacy", h.view.Generation())
	}
	if !h.legacy.IsCameraOpened() {
		t.Error("legacy backend not opened")
	}

	// The configuration survives the backend swap.
	if h.view.AspectRatio() != camconfig.RatioWide {
		t.Errorf("AspectRatio() = %s, want 16:9", h.view.AspectRatio())
	}
	if h.view.JPEGQuality() != 75 {
		t.Errorf("JPEGQuality() = %d, want 75", h.view.JPEGQuality())
	}
}

func TestFallbackFailureIsCritical(t *testing.T) {
	h := newHarness(t, errors.New("modern start failed"), errors.New("legacy start failed"))

	if err := h.view.Start(); err == nil {
		t.Fatal("Start() succeeded with both backends failing")
	}
	e := h.waitErr(t)
	if e.Severity != events.SeverityCritical {
		t.Errorf("severity = %s, want critical", e.Severity)
	}
	if n := h.legacyN.Load(); n != 1 {
		t.Errorf("legacy backend constructed %d times, want exactly 1", n)
	}
}

func TestLegacyStartFailureDoesNotFallBack(t *testing.T) {
	legacy := newFakeCam(camera.GenerationLegacy, errors.New("no device"))
	var fallbacks atomic.Int32

	view, err := New(Options{
		Logger:  testLogger(),
		Enabled: true,
		Factory: func(deps camera.Deps) (camera.Camera, error) {
			return legacy, nil
		},
		LegacyFactory: func(deps camera.Deps) (camera.Camera, error) {
			fallbacks.Add(1)
			return newFakeCam(camera.GenerationLegacy, nil), nil
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer view.Destroy()

	errs := make(chan events.Severity, 1)
	view.OnCameraError(func(err error, severity events.Severity) { errs <- severity })

	if err := view.Start(); err == nil {
		t.Fatal("Start() succeeded with a failing legacy backend")
	}
	select {
	case severity := <-errs:
		if severity != events.SeverityCritical {
			t.Errorf("severity = %s, want critical", severity)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no error event")
	}
	if fallbacks.Load() != 0 {
		t.Error("fell back below the backend of last resort")
	}
	if legacy.destroyCount() != 1 {
		t.Errorf("failed legacy destroyed %d times, want 1", legacy.destroyCount())
	}
}

func TestOperationsAreSerialized(t *testing.T) {
	h := newHarness(t, nil, nil)
	if err := h.view.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.view.Capture()
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.view.Stop()
			_ = h.view.Start()
		}()
	}
	wg.Wait()

	if max := h.modern.maxInFlight.Load(); max > 1 {
		t.Errorf("observed %d concurrent backend operations, want at most 1", max)
	}
	// Absorb the warnings from captures that raced a stopped camera.
	for len(h.errs) > 0 {
		<-h.errs
	}
}

func TestCaptureBeforeStartWarns(t *testing.T) {
	h := newHarness(t, nil, nil)

	if err := h.view.Capture(); !errors.Is(err, camera.ErrNotOpened) {
		t.Errorf("Capture() = %v, want ErrNotOpened", err)
	}
	e := h.waitErr(t)
	if e.Severity != events.SeverityWarning {
		t.Errorf("severity = %s, want warning", e.Severity)
	}
}

func TestRecordingLifecycle(t *testing.T) {
	h := newHarness(t, nil, nil)
	if err := h.view.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if err := h.view.StartVideoRecording("/tmp/clip.avi", camera.VideoConfig{}); err != nil {
		t.Fatalf("StartVideoRecording() error: %v", err)
	}
	if !h.view.IsVideoRecording() {
		t.Error("IsVideoRecording() = false during recording")
	}
	if err := h.view.PauseVideoRecording(); err != nil {
		t.Errorf("PauseVideoRecording() error: %v", err)
	}
	if err := h.view.ResumeVideoRecording(); err != nil {
		t.Errorf("ResumeVideoRecording() error: %v", err)
	}
	if err := h.view.StopVideoRecording(); err != nil {
		t.Errorf("StopVideoRecording() error: %v", err)
	}
	if h.view.IsVideoRecording() {
		t.Error("IsVideoRecording() = true after stop")
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	h := newHarness(t, nil, nil)
	if err := h.view.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	h.view.Destroy()
	if h.modern.destroyCount() != 1 {
		t.Fatalf("backend destroyed %d times, want 1", h.modern.destroyCount())
	}

	// Second destroy performs no further teardown.
	h.view.Destroy()
	if h.modern.destroyCount() != 1 {
		t.Errorf("backend destroyed %d times after double destroy, want 1", h.modern.destroyCount())
	}

	if err := h.view.Capture(); err == nil {
		t.Error("Capture() succeeded on a destroyed widget")
	}
}

func TestStartAfterDestroyEscalates(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.view.Destroy()

	// The dispatcher refuses work after teardown, so Start must still
	// surface the critical report. Destroy unsubscribed every listener,
	// and a critical error with no listeners escalates to a panic.
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Start on a destroyed widget did not escalate")
		}
		ev, ok := r.(events.CameraErrorEvent)
		if !ok {
			t.Fatalf("recovered %T, want CameraErrorEvent", r)
		}
		if !errors.Is(ev.Err, ErrDestroyed) {
			t.Errorf("escalated error = %v, want ErrDestroyed", ev.Err)
		}
	}()
	_ = h.view.Start()
}

func TestListenerChaining(t *testing.T) {
	h := newHarness(t, nil, nil)

	got := h.view.
		OnCameraOpened(func() {}).
		OnCameraClosed(func() {}).
		OnPictureTaken(func([]byte) {}).
		OnVideoRecordStarted(func() {}).
		OnVideoRecordStopped(func(bool) {})
	if got != h.view {
		t.Error("listener registration must return the widget for chaining")
	}
}

func TestStateRoundTrip(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.view.SetAspectRatio(camconfig.RatioWide)
	h.view.SetFacing(camconfig.FacingFront)
	h.view.SetJPEGQuality(55)
	h.view.SetShutterSpeed(4 * time.Millisecond)
	h.view.SetMode(camconfig.ModeSingleCapture | camconfig.ModeVideoCapture)
	state := h.view.SaveState()

	restored, err := New(Options{
		Logger:  testLogger(),
		Enabled: true,
		Factory: func(deps camera.Deps) (camera.Camera, error) {
			return newFakeCam(camera.GenerationV4L2, nil), nil
		},
		State: &state,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer restored.Destroy()

	if restored.AspectRatio() != camconfig.RatioWide {
		t.Errorf("AspectRatio() = %s, want 16:9", restored.AspectRatio())
	}
	if restored.Facing() != camconfig.FacingFront {
		t.Errorf("Facing() = %v, want front", restored.Facing())
	}
	if restored.JPEGQuality() != 55 {
		t.Errorf("JPEGQuality() = %d, want 55", restored.JPEGQuality())
	}
	if restored.ShutterSpeed() != 4*time.Millisecond {
		t.Errorf("ShutterSpeed() = %s, want 4ms", restored.ShutterSpeed())
	}
	if !restored.Mode().Has(camconfig.ModeVideoCapture) {
		t.Error("Mode() lost the video-capture bit")
	}
}
