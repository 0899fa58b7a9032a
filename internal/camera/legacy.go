package camera

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/KorsanSoftware/camview/internal/camconfig"
	"github.com/KorsanSoftware/camview/internal/devices"
	"github.com/KorsanSoftware/camview/internal/events"
)

const (
	ffmpegBinary = "ffmpeg"

	// stopTimeout bounds how long a subprocess gets to exit after SIGINT.
	stopTimeout = 5 * time.Second
)

// legacySizes are the fixed capture resolutions the subprocess backend
// offers, one per supported ratio. No probing: the legacy path assumes the
// device handles the common sizes every UVC camera provides.
var legacySizes = map[camconfig.Ratio]devices.FrameSize{
	camconfig.RatioStandard: {Width: 640, Height: 480},
	camconfig.RatioWide:     {Width: 1280, Height: 720},
}

// legacyCamera is the backend of last resort: an ffmpeg subprocess streams
// re-encoded MJPEG over a pipe for preview and still capture, and recording
// swaps the preview process for an encoding one driven by signals. Slower
// and coarser than the V4L2 tiers, but it works on anything ffmpeg can open.
type legacyCamera struct {
	*session
	resolve facingResolver
	binary  string

	// Fields below are owned by the dispatch goroutine.
	info    devices.Info
	preview *runner
	record  *runner
	size    devices.FrameSize
	recPath string

	// Frame fan-out shared with the pipe reader goroutine.
	mu       sync.Mutex
	requests []chan<- []byte
	publish  bool
}

// NewLegacy constructs the ffmpeg subprocess backend. Unlike the V4L2
// constructors it takes no probed device info: the node is resolved at
// Start, and failure to resolve is a start failure.
func NewLegacy(deps Deps) Camera {
	return newLegacyCamera(deps, defaultResolver, ffmpegBinary)
}

func newLegacyCamera(deps Deps, resolve facingResolver, binary string) *legacyCamera {
	c := &legacyCamera{
		session: newSession(deps),
		resolve: resolve,
		binary:  binary,
	}
	c.observeConfig()
	return c
}

func (c *legacyCamera) Generation() Generation { return GenerationLegacy }

func (c *legacyCamera) Start() error {
	if err := c.guardActive(); err != nil {
		return err
	}
	if c.IsCameraOpened() {
		return ErrAlreadyOpened
	}

	info, err := c.resolve(c.deps.Config.Facing.Get() == camconfig.FacingFront)
	if err != nil {
		return fmt.Errorf("failed to resolve capture device: %w", err)
	}
	c.info = info

	if err := c.startPreview(); err != nil {
		return err
	}
	c.deps.Logger.Info("Camera started", "device", c.info.Path, "generation", GenerationLegacy.String())
	c.markOpened()
	return nil
}

func (c *legacyCamera) startPreview() error {
	size, ok := legacySizes[c.deps.Config.AspectRatio.Get()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedRatio, c.deps.Config.AspectRatio.Get())
	}
	c.size = size

	c.mu.Lock()
	c.publish = c.deps.Config.Mode.Get().Has(camconfig.ModeContinuousFrame)
	c.mu.Unlock()

	args := buildPreviewArgs(c.info.Path, size, defaultFPS, c.deps.Config.JPEGQuality.Get())
	splitter := &jpegSplitter{emit: c.handleFrame}

	var r *runner
	onExit := func(err error) {
		c.deps.Dispatch(func() error {
			c.previewExited(r, err)
			return nil
		})
	}
	r, err := startRunner(c.binary, args, c.deps.Logger, splitter, onExit)
	if err != nil {
		return fmt.Errorf("failed to start preview process: %w", err)
	}
	c.preview = r
	return nil
}

func (c *legacyCamera) stopPreview() {
	if c.preview == nil {
		return
	}
	r := c.preview
	c.preview = nil
	r.stop(stopTimeout)
}

// previewExited handles unexpected death of the preview process. An exit we
// asked for has already cleared c.preview.
func (c *legacyCamera) previewExited(r *runner, err error) {
	if c.preview != r || !c.IsCameraOpened() {
		return
	}
	c.preview = nil
	c.markClosed()
	if err == nil {
		err = fmt.Errorf("preview process exited")
	}
	c.deps.Hub.CameraError(fmt.Errorf("legacy preview died: %w", err), events.SeverityCritical)
}

// handleFrame runs on the pipe reader goroutine.
func (c *legacyCamera) handleFrame(frame []byte) {
	c.mu.Lock()
	reqs := c.requests
	c.requests = nil
	publish := c.publish
	c.mu.Unlock()

	for _, ch := range reqs {
		ch <- frame
	}
	if publish {
		c.deps.Hub.LegacyPreviewFrame(events.LegacyPreviewFrameEvent{
			Frame:  frame,
			Width:  int(c.size.Width),
			Height: int(c.size.Height),
			Format: "MJPG",
		})
	}
}

func (c *legacyCamera) Stop() {
	if !c.IsCameraOpened() {
		return
	}
	if c.IsVideoRecording() {
		if err := c.finishRecording(true); err != nil {
			c.deps.Logger.Warn("Recording ended uncleanly during stop", "error", err)
		}
	}
	c.stopPreview()
	c.deps.Logger.Info("Camera stopped", "device", c.info.Path)
	c.markClosed()
}

func (c *legacyCamera) Destroy() {
	if !c.markDestroyed() {
		return
	}
	c.Stop()
	c.deps.Scope.Cancel()
}

// TakePicture grabs the next frame off the preview pipe. Stills are not
// available while the device is handed to the recording process.
func (c *legacyCamera) TakePicture() error {
	if err := c.guardActive(); err != nil {
		return err
	}
	if !c.IsCameraOpened() {
		return ErrNotOpened
	}
	if c.IsVideoRecording() {
		return fmt.Errorf("still capture unavailable while recording: %w", ErrAlreadyRecording)
	}

	ch := make(chan []byte, 1)
	c.mu.Lock()
	c.requests = append(c.requests, ch)
	c.mu.Unlock()

	select {
	case frame := <-ch:
		c.deps.Hub.PictureTaken(frame)
		return nil
	case <-time.After(captureTimeout):
		return fmt.Errorf("still capture failed: no frame from preview process")
	}
}

// StartVideoRecording hands the device from the preview process to a
// dedicated encoding process. BitRate and MaxDuration map onto encoder
// arguments; pause and resume are process signals.
func (c *legacyCamera) StartVideoRecording(path string, vc VideoConfig) error {
	if err := c.guardActive(); err != nil {
		return err
	}
	if !c.IsCameraOpened() {
		return ErrNotOpened
	}
	if c.IsVideoRecording() {
		return ErrAlreadyRecording
	}

	c.stopPreview()

	args := buildRecordArgs(c.info.Path, c.size, defaultFPS, vc, path)
	var r *runner
	onExit := func(err error) {
		c.deps.Dispatch(func() error {
			c.recordingExited(r, err)
			return nil
		})
	}
	r, err := startRunner(c.binary, args, c.deps.Logger, nil, onExit)
	if err != nil {
		restartErr := c.startPreview()
		if restartErr != nil {
			c.markClosed()
		}
		return fmt.Errorf("failed to start recording process: %w", err)
	}

	c.record = r
	c.recPath = path
	c.recording.Store(true)
	c.deps.Hub.VideoRecordStarted(path)
	return nil
}

func (c *legacyCamera) PauseVideoRecording() error {
	if err := c.guardActive(); err != nil {
		return err
	}
	if !c.IsVideoRecording() {
		return ErrNotRecording
	}
	return c.record.signal(syscall.SIGSTOP)
}

func (c *legacyCamera) ResumeVideoRecording() error {
	if err := c.guardActive(); err != nil {
		return err
	}
	if !c.IsVideoRecording() {
		return ErrNotRecording
	}
	return c.record.signal(syscall.SIGCONT)
}

func (c *legacyCamera) StopVideoRecording() error {
	if err := c.guardActive(); err != nil {
		return err
	}
	if !c.IsVideoRecording() {
		return ErrNotRecording
	}
	return c.finishRecording(c.IsCameraOpened())
}

// finishRecording stops the encoding process, reports the outcome, and
// optionally brings the preview back.
func (c *legacyCamera) finishRecording(restartPreview bool) error {
	r := c.record
	c.record = nil
	c.recording.Store(false)

	// A paused process cannot handle SIGINT.
	if err := r.signal(syscall.SIGCONT); err != nil && !r.exited() {
		c.deps.Logger.Warn("Failed to resume recording process for shutdown", "error", err)
	}
	r.stop(stopTimeout)

	success := recordingFileOK(c.recPath)
	c.deps.Hub.VideoRecordStopped(c.recPath, success)

	if restartPreview {
		if err := c.startPreview(); err != nil {
			c.markClosed()
			return fmt.Errorf("failed to restart preview after recording: %w", err)
		}
	}
	if !success {
		if exitErr := r.exitError(); exitErr != nil {
			return fmt.Errorf("recording %s did not produce a playable file: %w", c.recPath, exitErr)
		}
		return fmt.Errorf("recording %s did not produce a playable file", c.recPath)
	}
	return nil
}

// recordingExited handles the encoding process finishing on its own, either
// because MaxDuration elapsed or because it failed.
func (c *legacyCamera) recordingExited(r *runner, err error) {
	if c.record != r || !c.IsVideoRecording() {
		return
	}
	c.record = nil
	c.recording.Store(false)

	success := err == nil && recordingFileOK(c.recPath)
	c.deps.Hub.VideoRecordStopped(c.recPath, success)
	if !success {
		c.deps.Hub.CameraError(fmt.Errorf("recording process failed: %w", err), events.SeverityWarning)
	}

	if c.IsCameraOpened() {
		if perr := c.startPreview(); perr != nil {
			c.markClosed()
			c.deps.Hub.CameraError(fmt.Errorf("failed to restart preview after recording: %w", perr), events.SeverityCritical)
		}
	}
}

func recordingFileOK(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Size() > 0
}

// SetAspectRatio restarts the preview at the fixed size for the ratio.
func (c *legacyCamera) SetAspectRatio(r camconfig.Ratio) error {
	if err := c.guardActive(); err != nil {
		return err
	}
	size, ok := legacySizes[r]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedRatio, r)
	}
	if !c.IsCameraOpened() || c.size == size {
		return nil
	}
	if c.IsVideoRecording() {
		return fmt.Errorf("cannot change aspect ratio while recording: %w", ErrAlreadyRecording)
	}
	c.stopPreview()
	if err := c.startPreview(); err != nil {
		c.markClosed()
		return err
	}
	c.deps.Hub.RequestLayoutOnOpen()
	return nil
}

func (c *legacyCamera) SupportedAspectRatios() []camconfig.Ratio {
	return []camconfig.Ratio{camconfig.RatioStandard, camconfig.RatioWide}
}

func (c *legacyCamera) MaxDigitalZoom() float64 { return 1.0 }

// switchDevice re-resolves the capture node after a facing change.
func (c *legacyCamera) switchDevice(front bool) error {
	info, err := c.resolve(front)
	if err != nil {
		return fmt.Errorf("failed to resolve %s camera: %w", facingName(front), err)
	}
	if info.Path == c.info.Path {
		return nil
	}
	c.info = info
	if !c.IsCameraOpened() {
		return nil
	}
	if c.IsVideoRecording() {
		return fmt.Errorf("cannot switch camera while recording: %w", ErrAlreadyRecording)
	}
	c.stopPreview()
	if err := c.startPreview(); err != nil {
		c.markClosed()
		return err
	}
	return nil
}

// restartPreviewWith applies a setting that only takes effect through new
// encoder arguments.
func (c *legacyCamera) restartPreviewWith() error {
	if !c.IsCameraOpened() || c.IsVideoRecording() {
		return nil
	}
	c.stopPreview()
	if err := c.startPreview(); err != nil {
		c.markClosed()
		return err
	}
	return nil
}

func (c *legacyCamera) observeConfig() {
	ctx := c.deps.Scope.Context()
	cfg := c.deps.Config

	cfg.AspectRatio.Observe(ctx, func(r camconfig.Ratio) {
		reactTo(c.deps, cfg.AspectRatio, func() error { return c.SetAspectRatio(r) })
	})
	cfg.Facing.Observe(ctx, func(f camconfig.Facing) {
		reactTo(c.deps, cfg.Facing, func() error {
			return c.switchDevice(f == camconfig.FacingFront)
		})
	})
	cfg.JPEGQuality.Observe(ctx, func(q int) {
		reactTo(c.deps, cfg.JPEGQuality, func() error {
			if q < 0 || q > 100 {
				return fmt.Errorf("JPEG quality %d outside [0, 100]", q)
			}
			return c.restartPreviewWith()
		})
	})
	cfg.Mode.Observe(ctx, func(m camconfig.CameraMode) {
		c.deps.Dispatch(func() error {
			c.mu.Lock()
			c.publish = m.Has(camconfig.ModeContinuousFrame)
			c.mu.Unlock()
			return nil
		})
	})

	gen := GenerationLegacy
	rejectNonDefault(ctx, c.deps, gen, cfg.DigitalZoom, camconfig.DefaultDigitalZoom, "digital zoom")
	rejectNonDefault(ctx, c.deps, gen, cfg.Focus, camconfig.FocusContinuous, "focus mode")
	rejectNonDefault(ctx, c.deps, gen, cfg.WhiteBalance, camconfig.WhiteBalanceAuto, "white balance")
	rejectNonDefault(ctx, c.deps, gen, cfg.Flash, camconfig.FlashOff, "flash mode")
	rejectNonDefault(ctx, c.deps, gen, cfg.OpticalStabilization, false, "optical stabilization")
	rejectNonDefault(ctx, c.deps, gen, cfg.ShutterSpeed, 0, "shutter speed")
	rejectNonDefault(ctx, c.deps, gen, cfg.NoiseReduction, camconfig.NoiseReductionOff, "noise reduction")
	rejectNonDefault(ctx, c.deps, gen, cfg.ZeroShutterLag, false, "zero-shutter-lag")
}

// buildPreviewArgs assembles the MJPEG-over-pipe preview command.
func buildPreviewArgs(devPath string, size devices.FrameSize, fps, quality int) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "level+info",
		"-f", "v4l2",
		"-framerate", strconv.Itoa(fps),
		"-video_size", fmt.Sprintf("%dx%d", size.Width, size.Height),
		"-i", devPath,
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-q:v", strconv.Itoa(jpegQScale(quality)),
		"-",
	}
}

// buildRecordArgs assembles the H.264 file-recording command.
func buildRecordArgs(devPath string, size devices.FrameSize, fps int, vc VideoConfig, path string) []string {
	if vc.FPS > 0 {
		fps = vc.FPS
	}
	args := []string{
		"-hide_banner",
		"-loglevel", "level+info",
		"-f", "v4l2",
		"-framerate", strconv.Itoa(fps),
		"-video_size", fmt.Sprintf("%dx%d", size.Width, size.Height),
		"-i", devPath,
		"-c:v", "libx264",
		"-preset", "ultrafast",
	}
	if vc.BitRate > 0 {
		args = append(args, "-b:v", strconv.Itoa(vc.BitRate))
	}
	if vc.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.3f", vc.MaxDuration.Seconds()))
	}
	return append(args, "-y", path)
}

// jpegQScale maps a 0-100 quality to ffmpeg's 2-31 qscale, where lower is
// better.
func jpegQScale(quality int) int {
	if quality < 0 {
		quality = 0
	}
	if quality > 100 {
		quality = 100
	}
	return 31 - quality*29/100
}

// jpegSplitter reassembles JPEG images from an image2pipe byte stream by
// scanning for SOI/EOI markers. Writes arrive in arbitrary chunk sizes.
type jpegSplitter struct {
	emit func([]byte)
	buf  bytes.Buffer
}

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

func (s *jpegSplitter) Write(p []byte) (int, error) {
	s.buf.Write(p)
	for {
		data := s.buf.Bytes()
		start := bytes.Index(data, jpegSOI)
		if start < 0 {
			// No frame start in sight; keep one byte in case a marker
			// straddles the chunk boundary.
			if s.buf.Len() > 1 {
				s.buf.Next(s.buf.Len() - 1)
			}
			return len(p), nil
		}
		end := bytes.Index(data[start+2:], jpegEOI)
		if end < 0 {
			if start > 0 {
				s.buf.Next(start)
			}
			return len(p), nil
		}
		frameEnd := start + 2 + end + 2
		frame := make([]byte, frameEnd-start)
		copy(frame, data[start:frameEnd])
		s.buf.Next(frameEnd)
		s.emit(frame)
	}
}
