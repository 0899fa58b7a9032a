// Package camview implements the camera widget: one configuration store, one
// listener hub, and exactly one active backend at a time, with every
// mutating operation serialized onto a dedicated dispatch context and an
// automatic legacy fallback when a modern backend fails to start.
package camview

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/KorsanSoftware/camview/internal/camconfig"
	"github.com/KorsanSoftware/camview/internal/camera"
	"github.com/KorsanSoftware/camview/internal/events"
	"github.com/KorsanSoftware/camview/internal/metrics"
	"github.com/KorsanSoftware/camview/internal/scope"
)

// ErrDestroyed is reported when an operation reaches a torn-down widget.
var ErrDestroyed = errors.New("camview: widget destroyed")

// Options configure widget construction.
type Options struct {
	// Logger for the widget and everything under it. Required.
	Logger *slog.Logger

	// Factory builds the initial backend. Defaults to camera.New, which
	// probes V4L2 capabilities and picks the highest qualifying tier.
	Factory camera.Factory

	// Enabled gates non-critical listener registration on the hub.
	// Disabled widgets (edit mode) still deliver critical errors.
	Enabled bool

	// State, when non-nil, is applied to the configuration store before
	// the backend is constructed (widget re-creation).
	State *camconfig.Snapshot

	// LegacyFactory builds the backend of last resort during fallback.
	// Defaults to camera.NewLegacy.
	LegacyFactory camera.Factory
}

// CameraView is the widget facade. All lifecycle and capture operations are
// marshaled onto one dispatch goroutine, so callers from any goroutine see
// strictly serialized, program-ordered execution.
type CameraView struct {
	cfg    *camconfig.Config
	hub    *events.Hub
	root   *scope.Scope
	disp   *scope.Dispatcher
	logger *slog.Logger
	legacy camera.Factory

	// cam and camScope are swapped only on the dispatch goroutine; the
	// mutex makes the pointers readable from state-query callers.
	mu        sync.Mutex
	cam       camera.Camera
	camScope  *scope.Scope
	destroyed bool
}

// New constructs the widget: root scope, dispatcher, hub, configuration
// store, and the initial backend chosen by the factory.
func New(opts Options) (*CameraView, error) {
	if opts.Logger == nil {
		return nil, errors.New("camview: Options.Logger is required")
	}
	factory := opts.Factory
	if factory == nil {
		factory = camera.New
	}
	legacy := opts.LegacyFactory
	if legacy == nil {
		legacy = func(deps camera.Deps) (camera.Camera, error) {
			return camera.NewLegacy(deps), nil
		}
	}

	root := scope.NewRoot()
	v := &CameraView{
		cfg:    camconfig.New(),
		hub:    events.NewHub(opts.Enabled, opts.Logger),
		root:   root,
		disp:   scope.NewDispatcher(root, opts.Logger),
		logger: opts.Logger,
		legacy: legacy,
	}
	if opts.State != nil {
		v.cfg.Apply(*opts.State)
	}

	if err := v.disp.Do(func() error { return v.buildBackend(factory) }); err != nil {
		root.Cancel()
		return nil, err
	}
	return v, nil
}

// buildBackend constructs a backend under a fresh child scope and installs
// it as the active one. Dispatch goroutine only.
func (v *CameraView) buildBackend(build camera.Factory) error {
	child := v.root.Child()
	cam, err := build(camera.Deps{
		Config:   v.cfg,
		Hub:      v.hub,
		Scope:    child,
		Dispatch: v.disp.Dispatch,
		Logger:   v.logger,
	})
	if err != nil {
		child.Cancel()
		return fmt.Errorf("failed to construct camera backend: %w", err)
	}
	v.mu.Lock()
	v.cam = cam
	v.camScope = child
	v.mu.Unlock()
	return nil
}

func (v *CameraView) backend() camera.Camera {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cam
}

// Start opens the camera, falling back to the legacy backend when a modern
// one fails. The call blocks until the protocol finishes; failures are
// reported through the error channel and returned.
func (v *CameraView) Start() error {
	err := v.disp.Do(v.startOnDispatch)
	if errors.Is(err, scope.ErrCancelled) {
		// The dispatcher refuses work after teardown, so startOnDispatch
		// never got to report the failure itself.
		v.hub.CameraError(ErrDestroyed, events.SeverityCritical)
		return ErrDestroyed
	}
	return err
}

func (v *CameraView) startOnDispatch() error {
	if v.destroyed || v.root.Cancelled() {
		v.hub.CameraError(ErrDestroyed, events.SeverityCritical)
		return ErrDestroyed
	}
	cam := v.backend()
	if cam.IsCameraOpened() {
		v.hub.CameraError(camera.ErrAlreadyOpened, events.SeverityWarning)
		return camera.ErrAlreadyOpened
	}

	snapshot := v.cfg.Snapshot()

	err := cam.Start()
	if err == nil {
		metrics.IncStart()
		return nil
	}

	v.logger.Warn("Backend failed to start",
		"generation", cam.Generation().String(),
		"error", err)

	wasLegacy := cam.Generation() == camera.GenerationLegacy
	cam.Destroy()
	if wasLegacy {
		cerr := fmt.Errorf("legacy backend failed to start: %w", err)
		v.hub.CameraError(cerr, events.SeverityCritical)
		return cerr
	}

	// One fallback attempt per Start call: build the legacy backend under
	// a fresh child scope, restore the pre-attempt configuration, retry.
	if berr := v.buildBackend(v.legacy); berr != nil {
		v.hub.CameraError(berr, events.SeverityCritical)
		return berr
	}
	metrics.IncFallback()
	v.cfg.Apply(snapshot)
	v.logger.Info("Falling back to legacy backend")

	if rerr := v.backend().Start(); rerr != nil {
		cerr := fmt.Errorf("fallback to legacy backend failed: %w", rerr)
		v.hub.CameraError(cerr, events.SeverityCritical)
		return cerr
	}
	metrics.IncStart()
	return nil
}

// Stop closes the camera. The backend stays usable for a later Start.
func (v *CameraView) Stop() error {
	return v.disp.Do(func() error {
		v.backend().Stop()
		return nil
	})
}

// Destroy tears the widget down: backend, hub, then the root scope. Terminal
// and idempotent; a second call reports a warning and does nothing.
func (v *CameraView) Destroy() {
	err := v.disp.Do(func() error {
		if v.destroyed {
			return ErrDestroyed
		}
		v.destroyed = true
		v.backend().Destroy()
		v.hub.Destroy()
		return nil
	})
	if err != nil {
		v.logger.Warn("Camera view already destroyed")
		return
	}
	v.root.Cancel()
}

// Capture takes a still picture, delivered through picture-taken listeners.
func (v *CameraView) Capture() error {
	return v.op(func(cam camera.Camera) error { return cam.TakePicture() })
}

// StartVideoRecording begins recording to path.
func (v *CameraView) StartVideoRecording(path string, vc camera.VideoConfig) error {
	err := v.op(func(cam camera.Camera) error { return cam.StartVideoRecording(path, vc) })
	if err == nil {
		metrics.IncRecording()
	}
	return err
}

// PauseVideoRecording suspends frame intake without ending the session.
func (v *CameraView) PauseVideoRecording() error {
	return v.op(camera.Camera.PauseVideoRecording)
}

// ResumeVideoRecording continues a paused recording.
func (v *CameraView) ResumeVideoRecording() error {
	return v.op(camera.Camera.ResumeVideoRecording)
}

// StopVideoRecording finalizes the recording and reports the outcome through
// record-stopped listeners.
func (v *CameraView) StopVideoRecording() error {
	return v.op(camera.Camera.StopVideoRecording)
}

// op runs one backend operation on the dispatch context, routing failures
// through the hub as warnings.
func (v *CameraView) op(fn func(camera.Camera) error) error {
	return v.disp.Do(func() error {
		if v.destroyed {
			v.hub.CameraError(ErrDestroyed, events.SeverityWarning)
			return ErrDestroyed
		}
		if err := fn(v.backend()); err != nil {
			v.hub.CameraError(err, events.SeverityWarning)
			return err
		}
		return nil
	})
}

// State queries. Safe from any goroutine.

func (v *CameraView) IsCameraOpened() bool   { return v.backend().IsCameraOpened() }
func (v *CameraView) IsVideoRecording() bool { return v.backend().IsVideoRecording() }

// Generation reports which backend tier currently serves the widget.
func (v *CameraView) Generation() camera.Generation { return v.backend().Generation() }

func (v *CameraView) SupportedAspectRatios() []camconfig.Ratio {
	return v.backend().SupportedAspectRatios()
}

func (v *CameraView) MaxDigitalZoom() float64 { return v.backend().MaxDigitalZoom() }

func (v *CameraView) DeviceRotation() int { return v.backend().DeviceRotation() }

func (v *CameraView) SetDeviceRotation(deg int) { v.backend().SetDeviceRotation(deg) }

// Config exposes the configuration store for the property accessors below
// and for callers that want to observe fields directly.
func (v *CameraView) Config() *camconfig.Config { return v.cfg }

// Hub exposes the listener hub for fine-grained unsubscription.
func (v *CameraView) Hub() *events.Hub { return v.hub }

// Configuration properties. Setters mutate the store from any goroutine; the
// active backend's observers marshal the reaction onto the dispatch context
// and revert the field if the backend rejects the value.

func (v *CameraView) AspectRatio() camconfig.Ratio     { return v.cfg.AspectRatio.Get() }
func (v *CameraView) SetAspectRatio(r camconfig.Ratio) { v.cfg.AspectRatio.Set(r) }

func (v *CameraView) OutputFormat() camconfig.OutputFormat     { return v.cfg.OutputFormat.Get() }
func (v *CameraView) SetOutputFormat(f camconfig.OutputFormat) { v.cfg.OutputFormat.Set(f) }

func (v *CameraView) JPEGQuality() int           { return v.cfg.JPEGQuality.Get() }
func (v *CameraView) SetJPEGQuality(quality int) { v.cfg.JPEGQuality.Set(quality) }

func (v *CameraView) Facing() camconfig.Facing     { return v.cfg.Facing.Get() }
func (v *CameraView) SetFacing(f camconfig.Facing) { v.cfg.Facing.Set(f) }

func (v *CameraView) Focus() camconfig.FocusMode     { return v.cfg.Focus.Get() }
func (v *CameraView) SetFocus(m camconfig.FocusMode) { v.cfg.Focus.Set(m) }

func (v *CameraView) TouchToFocus() bool        { return v.cfg.TouchToFocus.Get() }
func (v *CameraView) SetTouchToFocus(on bool)   { v.cfg.TouchToFocus.Set(on) }
func (v *CameraView) PinchToZoom() bool         { return v.cfg.PinchToZoom.Get() }
func (v *CameraView) SetPinchToZoom(on bool)    { v.cfg.PinchToZoom.Set(on) }
func (v *CameraView) DigitalZoom() float64      { return v.cfg.DigitalZoom.Get() }
func (v *CameraView) SetDigitalZoom(z float64)  { v.cfg.DigitalZoom.Set(z) }

func (v *CameraView) WhiteBalance() camconfig.WhiteBalanceMode     { return v.cfg.WhiteBalance.Get() }
func (v *CameraView) SetWhiteBalance(m camconfig.WhiteBalanceMode) { v.cfg.WhiteBalance.Set(m) }

func (v *CameraView) Flash() camconfig.FlashMode     { return v.cfg.Flash.Get() }
func (v *CameraView) SetFlash(m camconfig.FlashMode) { v.cfg.Flash.Set(m) }

func (v *CameraView) OpticalStabilization() bool      { return v.cfg.OpticalStabilization.Get() }
func (v *CameraView) SetOpticalStabilization(on bool) { v.cfg.OpticalStabilization.Set(on) }

func (v *CameraView) NoiseReduction() camconfig.NoiseReductionMode {
	return v.cfg.NoiseReduction.Get()
}
func (v *CameraView) SetNoiseReduction(m camconfig.NoiseReductionMode) {
	v.cfg.NoiseReduction.Set(m)
}

func (v *CameraView) ShutterSpeed() time.Duration     { return v.cfg.ShutterSpeed.Get() }
func (v *CameraView) SetShutterSpeed(d time.Duration) { v.cfg.ShutterSpeed.Set(d) }

func (v *CameraView) ZeroShutterLag() bool      { return v.cfg.ZeroShutterLag.Get() }
func (v *CameraView) SetZeroShutterLag(on bool) { v.cfg.ZeroShutterLag.Set(on) }

func (v *CameraView) Mode() camconfig.CameraMode     { return v.cfg.Mode.Get() }
func (v *CameraView) SetMode(m camconfig.CameraMode) { v.cfg.Mode.Set(m) }

// Listener registration. Chainable; use Hub() when the unsubscribe handle is
// needed.

func (v *CameraView) OnCameraOpened(fn func()) *CameraView {
	v.hub.OnCameraOpened(fn)
	return v
}

func (v *CameraView) OnCameraClosed(fn func()) *CameraView {
	v.hub.OnCameraClosed(fn)
	return v
}

func (v *CameraView) OnCameraError(fn func(err error, severity events.Severity)) *CameraView {
	v.hub.OnCameraError(fn)
	return v
}

func (v *CameraView) OnPictureTaken(fn func(data []byte)) *CameraView {
	v.hub.OnPictureTaken(fn)
	return v
}

func (v *CameraView) OnPreviewFrame(fn func(e events.PreviewFrameEvent)) *CameraView {
	v.hub.OnPreviewFrame(fn)
	return v
}

func (v *CameraView) OnLegacyPreviewFrame(fn func(e events.LegacyPreviewFrameEvent)) *CameraView {
	v.hub.OnLegacyPreviewFrame(fn)
	return v
}

func (v *CameraView) OnVideoRecordStarted(fn func()) *CameraView {
	v.hub.OnVideoRecordStarted(fn)
	return v
}

func (v *CameraView) OnVideoRecordStopped(fn func(success bool)) *CameraView {
	v.hub.OnVideoRecordStopped(fn)
	return v
}

// SaveState snapshots every configuration value for re-creation.
func (v *CameraView) SaveState() camconfig.Snapshot { return v.cfg.Snapshot() }

// RestoreState applies a saved snapshot onto the live store. The active
// backend reacts to each changed field as usual.
func (v *CameraView) RestoreState(s camconfig.Snapshot) { v.cfg.Apply(s) }
