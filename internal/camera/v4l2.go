package camera

import (
	"context"
	"fmt"
	"time"

	"github.com/KorsanSoftware/camview/internal/camconfig"
	"github.com/KorsanSoftware/camview/internal/devices"
	"github.com/KorsanSoftware/camview/internal/events"
)

// tierCaps gates which configuration fields a V4L2 backend acts on. Fields
// outside the tier are rejected by the observers: the store is reverted and
// a warning goes through the hub.
type tierCaps struct {
	controls  bool // zoom, focus, white balance, stabilization, JPEG quality, flash
	streaming bool // shutter speed, noise reduction, zero-shutter-lag
}

// facingResolver maps a requested camera facing to a capture node. Injected
// so tests can run without /dev/video*.
type facingResolver func(front bool) (devices.Info, error)

func defaultResolver(front bool) (devices.Info, error) {
	infos, err := devices.List()
	if err != nil {
		return devices.Info{}, err
	}
	return devices.ResolveFacing(infos, front)
}

// v4l2Camera drives a V4L2 capture node through go4vl. One type serves all
// three modern tiers; the constructors differ only in generation and caps.
type v4l2Camera struct {
	*session
	gen  Generation
	caps tierCaps

	open    deviceOpener
	resolve facingResolver

	// Mutable backend state below is touched only on the dispatch
	// goroutine, never concurrently.
	info     devices.Info
	stream   *stream
	recPath  string
	recTimer *time.Timer
}

// NewV4L2 constructs the basic streaming backend: MJPEG preview, still
// capture, and AVI recording, no device controls.
func NewV4L2(info devices.Info, deps Deps) Camera {
	return newV4L2Camera(GenerationV4L2, tierCaps{}, info, deps, defaultResolver, openMJPEG)
}

func newV4L2Camera(gen Generation, caps tierCaps, info devices.Info, deps Deps, resolve facingResolver, open deviceOpener) *v4l2Camera {
	c := &v4l2Camera{
		session: newSession(deps),
		gen:     gen,
		caps:    caps,
		open:    open,
		resolve: resolve,
		info:    info,
	}
	c.observeConfig()
	return c
}

func (c *v4l2Camera) Generation() Generation { return c.gen }

// Start resolves the frame size for the configured aspect ratio, opens the
// device, and launches the capture pump.
func (c *v4l2Camera) Start() error {
	if err := c.guardActive(); err != nil {
		return err
	}
	if c.IsCameraOpened() {
		return ErrAlreadyOpened
	}

	size, ok := c.frameSizeFor(c.deps.Config.AspectRatio.Get())
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrUnsupportedRatio, c.deps.Config.AspectRatio.Get(), c.info.Path)
	}

	dev, err := c.open(c.info.Path, size, defaultFPS)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", c.info.Path, err)
	}
	st, err := startStream(c.deps.Scope.Context(), dev, size, c.deps.Hub, c.deps.Logger)
	if err != nil {
		return err
	}
	c.stream = st

	st.preview.Store(c.deps.Config.Mode.Get().Has(camconfig.ModeContinuousFrame))
	if c.caps.streaming {
		st.zsl.Store(c.deps.Config.ZeroShutterLag.Get())
	}
	c.applyControls()

	c.deps.Logger.Info("Camera started",
		"device", c.info.Path,
		"generation", c.gen.String(),
		"width", size.Width,
		"height", size.Height)
	c.markOpened()
	return nil
}

// applyControls pushes the full configuration onto a freshly opened device.
// The basic tier has nothing to push; the controls and streaming tiers
// override this via their constructors' observer wiring, so instead of
// virtual dispatch the shared implementation checks caps directly.
func (c *v4l2Camera) applyControls() {
	if c.caps.controls {
		c.applyControlTier()
	}
	if c.caps.streaming {
		c.applyStreamingTier()
	}
}

func (c *v4l2Camera) Stop() {
	if c.stream == nil {
		return
	}
	if c.IsVideoRecording() {
		if err := c.finishRecording(); err != nil {
			c.deps.Logger.Warn("Recording ended uncleanly during stop", "error", err)
		}
	}
	c.stream.stop()
	c.stream = nil
	c.deps.Logger.Info("Camera stopped", "device", c.info.Path)
	c.markClosed()
}

// Destroy stops any stream and cancels the backend scope, which also
// releases the configuration observers.
func (c *v4l2Camera) Destroy() {
	if !c.markDestroyed() {
		return
	}
	c.Stop()
	c.deps.Scope.Cancel()
}

func (c *v4l2Camera) TakePicture() error {
	if err := c.guardActive(); err != nil {
		return err
	}
	if c.stream == nil {
		return ErrNotOpened
	}
	frame, err := c.stream.capture()
	if err != nil {
		return fmt.Errorf("still capture failed: %w", err)
	}
	c.deps.Hub.PictureTaken(frame)
	return nil
}

func (c *v4l2Camera) StartVideoRecording(path string, vc VideoConfig) error {
	if err := c.guardActive(); err != nil {
		return err
	}
	if c.stream == nil {
		return ErrNotOpened
	}
	if c.IsVideoRecording() {
		return ErrAlreadyRecording
	}

	rec, err := newAVIRecorder(path, c.stream.size, vc.FPS)
	if err != nil {
		return err
	}
	c.stream.setRecorder(rec)
	c.recPath = path
	c.recording.Store(true)

	if vc.MaxDuration > 0 {
		c.recTimer = time.AfterFunc(vc.MaxDuration, func() {
			c.deps.Dispatch(func() error {
				if !c.IsVideoRecording() {
					return nil
				}
				c.deps.Logger.Info("Recording reached max duration", "path", path)
				return c.StopVideoRecording()
			})
		})
	}

	c.deps.Hub.VideoRecordStarted(path)
	return nil
}

func (c *v4l2Camera) PauseVideoRecording() error {
	if err := c.guardActive(); err != nil {
		return err
	}
	if !c.IsVideoRecording() {
		return ErrNotRecording
	}
	c.stream.setPaused(true)
	return nil
}

func (c *v4l2Camera) ResumeVideoRecording() error {
	if err := c.guardActive(); err != nil {
		return err
	}
	if !c.IsVideoRecording() {
		return ErrNotRecording
	}
	c.stream.setPaused(false)
	return nil
}

func (c *v4l2Camera) StopVideoRecording() error {
	if err := c.guardActive(); err != nil {
		return err
	}
	if !c.IsVideoRecording() {
		return ErrNotRecording
	}
	return c.finishRecording()
}

// finishRecording detaches and finalizes the recorder, then reports the
// outcome. Success requires a clean close and at least one frame.
func (c *v4l2Camera) finishRecording() error {
	if c.recTimer != nil {
		c.recTimer.Stop()
		c.recTimer = nil
	}
	rec := c.stream.takeRecorder()
	c.recording.Store(false)
	if rec == nil {
		return nil
	}

	err := rec.close()
	success := err == nil && rec.frameCount() > 0
	c.deps.Hub.VideoRecordStopped(c.recPath, success)
	if err != nil {
		return err
	}
	if rec.frameCount() == 0 {
		return fmt.Errorf("recording %s captured no frames", c.recPath)
	}
	return nil
}

// SetAspectRatio switches the capture resolution, restarting the stream when
// the camera is open.
func (c *v4l2Camera) SetAspectRatio(r camconfig.Ratio) error {
	if err := c.guardActive(); err != nil {
		return err
	}
	size, ok := c.frameSizeFor(r)
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrUnsupportedRatio, r, c.info.Path)
	}
	if c.stream == nil || c.stream.size == size {
		return nil
	}
	return c.restartStream()
}

func (c *v4l2Camera) SupportedAspectRatios() []camconfig.Ratio {
	seen := make(map[camconfig.Ratio]bool)
	var ratios []camconfig.Ratio
	for _, size := range c.info.FrameSizes {
		r := camconfig.RatioOf(int(size.Width), int(size.Height))
		if !seen[r] {
			seen[r] = true
			ratios = append(ratios, r)
		}
	}
	return ratios
}

func (c *v4l2Camera) MaxDigitalZoom() float64 {
	if !c.caps.controls {
		return 1.0
	}
	return c.info.MaxZoom()
}

// frameSizeFor picks the largest device frame size matching the ratio.
func (c *v4l2Camera) frameSizeFor(r camconfig.Ratio) (devices.FrameSize, bool) {
	for _, size := range c.info.FrameSizes {
		if r.Matches(int(size.Width), int(size.Height)) {
			return size, true
		}
	}
	return devices.FrameSize{}, false
}

// restartStream cycles the stream to pick up a new resolution or device.
// The camera stays opened throughout; recordings do not survive it.
func (c *v4l2Camera) restartStream() error {
	wasRecording := c.IsVideoRecording()
	if wasRecording {
		if err := c.finishRecording(); err != nil {
			c.deps.Logger.Warn("Recording ended uncleanly during restart", "error", err)
		}
	}
	c.stream.stop()
	c.stream = nil

	size, ok := c.frameSizeFor(c.deps.Config.AspectRatio.Get())
	if !ok {
		c.markClosed()
		return fmt.Errorf("%w: %s on %s", ErrUnsupportedRatio, c.deps.Config.AspectRatio.Get(), c.info.Path)
	}
	dev, err := c.open(c.info.Path, size, defaultFPS)
	if err != nil {
		c.markClosed()
		return fmt.Errorf("failed to reopen %s: %w", c.info.Path, err)
	}
	st, err := startStream(c.deps.Scope.Context(), dev, size, c.deps.Hub, c.deps.Logger)
	if err != nil {
		c.markClosed()
		return err
	}
	c.stream = st
	st.preview.Store(c.deps.Config.Mode.Get().Has(camconfig.ModeContinuousFrame))
	if c.caps.streaming {
		st.zsl.Store(c.deps.Config.ZeroShutterLag.Get())
	}
	c.applyControls()
	c.deps.Hub.RequestLayoutOnOpen()
	return nil
}

// switchDevice rebinds the backend to the node serving the requested facing.
func (c *v4l2Camera) switchDevice(front bool) error {
	info, err := c.resolve(front)
	if err != nil {
		return fmt.Errorf("failed to resolve %s camera: %w", facingName(front), err)
	}
	if info.Path == c.info.Path {
		return nil
	}
	c.info = info
	if c.stream != nil {
		return c.restartStream()
	}
	return nil
}

func facingName(front bool) string {
	if front {
		return "front"
	}
	return "back"
}

// observeConfig registers the backend's configuration reactions on the
// backend scope. Observers run on the notifying goroutine and immediately
// hand off to the serialized dispatch context; rejected values are reverted
// there and reported as warnings.
func (c *v4l2Camera) observeConfig() {
	ctx := c.deps.Scope.Context()

	c.deps.Config.AspectRatio.Observe(ctx, func(r camconfig.Ratio) {
		c.react(c.deps.Config.AspectRatio, func() error {
			return c.SetAspectRatio(r)
		})
	})

	c.deps.Config.Facing.Observe(ctx, func(f camconfig.Facing) {
		c.react(c.deps.Config.Facing, func() error {
			return c.switchDevice(f == camconfig.FacingFront)
		})
	})

	c.deps.Config.Mode.Observe(ctx, func(m camconfig.CameraMode) {
		c.deps.Dispatch(func() error {
			if c.stream != nil {
				c.stream.preview.Store(m.Has(camconfig.ModeContinuousFrame))
			}
			return nil
		})
	})

	if c.caps.controls {
		c.observeControlTier(ctx)
	} else {
		rejectNonDefault(ctx, c.deps, c.gen, c.deps.Config.JPEGQuality, camconfig.DefaultJPEGQuality, "JPEG quality")
		rejectNonDefault(ctx, c.deps, c.gen, c.deps.Config.DigitalZoom, camconfig.DefaultDigitalZoom, "digital zoom")
		rejectNonDefault(ctx, c.deps, c.gen, c.deps.Config.Focus, camconfig.FocusContinuous, "focus mode")
		rejectNonDefault(ctx, c.deps, c.gen, c.deps.Config.WhiteBalance, camconfig.WhiteBalanceAuto, "white balance")
		rejectNonDefault(ctx, c.deps, c.gen, c.deps.Config.Flash, camconfig.FlashOff, "flash mode")
		rejectNonDefault(ctx, c.deps, c.gen, c.deps.Config.OpticalStabilization, false, "optical stabilization")
	}

	if c.caps.streaming {
		c.observeStreamingTier(ctx)
	} else {
		rejectNonDefault(ctx, c.deps, c.gen, c.deps.Config.ShutterSpeed, 0, "shutter speed")
		rejectNonDefault(ctx, c.deps, c.gen, c.deps.Config.NoiseReduction, camconfig.NoiseReductionOff, "noise reduction")
		rejectNonDefault(ctx, c.deps, c.gen, c.deps.Config.ZeroShutterLag, false, "zero-shutter-lag")
	}
}

// reverter is the slice of Field the reaction helpers need.
type reverter interface {
	Revert()
}

// reactTo runs a configuration reaction on the dispatch context. On failure
// the field is rolled back without notifying (the rejected value never took
// effect) and the error surfaces as a hub warning.
func reactTo(deps Deps, field reverter, apply func() error) {
	deps.Dispatch(func() error {
		if err := apply(); err != nil {
			field.Revert()
			deps.Hub.CameraError(err, events.SeverityWarning)
			return err
		}
		return nil
	})
}

func (c *v4l2Camera) react(field reverter, apply func() error) {
	reactTo(c.deps, field, apply)
}

// rejectNonDefault wires an observer that refuses every change away from the
// default, for fields outside the backend's capability tier.
func rejectNonDefault[T comparable](ctx context.Context, deps Deps, gen Generation, field *camconfig.Field[T], def T, what string) {
	field.Observe(ctx, func(v T) {
		if v == def {
			return
		}
		deps.Dispatch(func() error {
			field.Revert()
			err := fmt.Errorf("%s: %w by %s backend", what, ErrUnsupportedSetting, gen)
			deps.Hub.CameraError(err, events.SeverityWarning)
			return err
		})
	})
}
