package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"

	"github.com/KorsanSoftware/camview/internal/devices"
	"github.com/KorsanSoftware/camview/internal/events"
)

const (
	// defaultFPS is requested from the driver and used as the recording
	// container rate when the caller leaves VideoConfig.FPS at zero.
	defaultFPS = 30

	// captureTimeout bounds how long a still capture waits for the next
	// frame before giving up.
	captureTimeout = 2 * time.Second

	deviceBufferCount = 4
)

// videoDevice is the slice of go4vl's device.Device the stream needs. Tests
// substitute a fake feeding frames through a plain channel.
type videoDevice interface {
	Start(ctx context.Context) error
	GetOutput() <-chan []byte
	Close() error
	SetControlValue(id v4l2.CtrlID, value v4l2.CtrlValue) error
}

// deviceOpener opens a capture node configured for MJPEG at the given size.
type deviceOpener func(path string, size devices.FrameSize, fps uint32) (videoDevice, error)

func openMJPEG(path string, size devices.FrameSize, fps uint32) (videoDevice, error) {
	return device.Open(path,
		device.WithIOType(v4l2.IOTypeMMAP),
		device.WithPixFormat(v4l2.PixFormat{
			PixelFormat: v4l2.PixelFmtMJPEG,
			Width:       size.Width,
			Height:      size.Height,
			Field:       v4l2.FieldNone,
		}),
		device.WithFPS(fps),
		device.WithBufferSize(deviceBufferCount),
	)
}

// stream owns one started capture session: the open device plus the pump
// goroutine draining its output. Every consumer of frames (still captures,
// the AVI recorder, preview listeners, the zero-shutter-lag buffer) hangs
// off the pump so the device channel is read from exactly one place.
type stream struct {
	dev    videoDevice
	size   devices.FrameSize
	hub    *events.Hub
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}

	preview atomic.Bool // publish frames through the hub
	zsl     atomic.Bool // retain the newest frame for instant capture

	mu       sync.Mutex
	requests []chan<- []byte
	rec      *aviRecorder
	paused   bool
	last     []byte
}

// startStream starts capture on an already-open device and launches the
// pump. On failure the device is closed; ownership passes to the stream only
// on success.
func startStream(parent context.Context, dev videoDevice, size devices.FrameSize, hub *events.Hub, logger *slog.Logger) (*stream, error) {
	ctx, cancel := context.WithCancel(parent)
	if err := dev.Start(ctx); err != nil {
		cancel()
		dev.Close()
		return nil, fmt.Errorf("failed to start capture stream: %w", err)
	}

	st := &stream{
		dev:    dev,
		size:   size,
		hub:    hub,
		logger: logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go st.pump(ctx)
	return st, nil
}

func (st *stream) pump(ctx context.Context) {
	defer close(st.done)
	frames := st.dev.GetOutput()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if len(frame) == 0 {
				continue
			}
			st.handleFrame(frame)
		}
	}
}

func (st *stream) handleFrame(frame []byte) {
	// go4vl hands out views into its mmap ring; copy before the buffer is
	// requeued under us.
	buf := make([]byte, len(frame))
	copy(buf, frame)

	st.mu.Lock()
	reqs := st.requests
	st.requests = nil
	if st.zsl.Load() {
		st.last = buf
	}
	rec := st.rec
	paused := st.paused
	st.mu.Unlock()

	for _, ch := range reqs {
		ch <- buf
	}
	if rec != nil && !paused {
		if err := rec.addFrame(buf); err != nil {
			st.logger.Error("Failed to append recording frame", "error", err)
		}
	}
	if st.preview.Load() {
		st.hub.PreviewFrame(events.PreviewFrameEvent{
			Frame:  buf,
			Width:  int(st.size.Width),
			Height: int(st.size.Height),
			Format: "MJPG",
		})
	}
}

// capture returns the next frame off the pump. With zero-shutter-lag on and
// a frame already buffered it returns instantly.
func (st *stream) capture() ([]byte, error) {
	st.mu.Lock()
	if st.zsl.Load() && st.last != nil {
		frame := st.last
		st.mu.Unlock()
		return frame, nil
	}
	ch := make(chan []byte, 1)
	st.requests = append(st.requests, ch)
	st.mu.Unlock()

	select {
	case frame := <-ch:
		return frame, nil
	case <-st.done:
		return nil, ErrNotOpened
	case <-time.After(captureTimeout):
		return nil, fmt.Errorf("timed out waiting for a frame from %dx%d stream", st.size.Width, st.size.Height)
	}
}

func (st *stream) setRecorder(rec *aviRecorder) {
	st.mu.Lock()
	st.rec = rec
	st.paused = false
	st.mu.Unlock()
}

// takeRecorder detaches the recorder from the pump so it can be finalized
// without racing addFrame.
func (st *stream) takeRecorder() *aviRecorder {
	st.mu.Lock()
	rec := st.rec
	st.rec = nil
	st.paused = false
	st.mu.Unlock()
	return rec
}

func (st *stream) setPaused(paused bool) {
	st.mu.Lock()
	st.paused = paused
	st.mu.Unlock()
}

// stop cancels the pump and closes the device. go4vl stops the hardware
// stream from its own goroutine on context cancellation, so wait for the
// pump to unwind and give the driver a beat before Close.
func (st *stream) stop() {
	st.cancel()
	select {
	case <-st.done:
	case <-time.After(500 * time.Millisecond):
		st.logger.Warn("Capture pump did not stop in time")
	}
	time.Sleep(50 * time.Millisecond)
	if err := st.dev.Close(); err != nil {
		st.logger.Warn("Failed to close capture device", "error", err)
	}
}
