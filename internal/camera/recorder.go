package camera

import (
	"fmt"
	"sync"

	"github.com/icza/mjpeg"

	"github.com/KorsanSoftware/camview/internal/devices"
)

// aviRecorder wraps an MJPEG AVI writer. V4L2 backends record by appending
// the pump's JPEG frames straight into the container, which keeps pause and
// resume free of any encoder state.
type aviRecorder struct {
	path string

	mu     sync.Mutex
	writer mjpeg.AviWriter
	frames int
	closed bool
}

func newAVIRecorder(path string, size devices.FrameSize, fps int) (*aviRecorder, error) {
	if fps <= 0 {
		fps = defaultFPS
	}
	writer, err := mjpeg.New(path, int32(size.Width), int32(size.Height), int32(fps))
	if err != nil {
		return nil, fmt.Errorf("failed to create recording %s: %w", path, err)
	}
	return &aviRecorder{path: path, writer: writer}, nil
}

func (r *aviRecorder) addFrame(jpegFrame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	if err := r.writer.AddFrame(jpegFrame); err != nil {
		return fmt.Errorf("failed to write frame to %s: %w", r.path, err)
	}
	r.frames++
	return nil
}

func (r *aviRecorder) frameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// close finalizes the container. A recording with zero frames is still a
// valid file but reported as unsuccessful by the caller.
func (r *aviRecorder) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize recording %s: %w", r.path, err)
	}
	return nil
}
