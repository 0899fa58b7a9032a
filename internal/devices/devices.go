// Package devices enumerates V4L2 capture nodes and probes the capability
// tier each one qualifies for. The probe result drives backend selection:
// streaming I/O alone yields the basic V4L2 backend, camera controls unlock
// the controls backend, and absolute exposure unlocks the streaming-params
// backend.
package devices

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"
)

// V4L2 device capability bits (linux/videodev2.h).
const (
	CapVideoCapture = 0x00000001
	CapStreaming    = 0x04000000
)

// Camera control IDs (linux/v4l2-controls.h), camera class.
const (
	CtrlExposureAuto       v4l2.CtrlID = 0x009a0901
	CtrlExposureAbsolute   v4l2.CtrlID = 0x009a0902
	CtrlFocusAbsolute      v4l2.CtrlID = 0x009a090a
	CtrlFocusAuto          v4l2.CtrlID = 0x009a090c
	CtrlZoomAbsolute       v4l2.CtrlID = 0x009a090d
	CtrlImageStabilization v4l2.CtrlID = 0x009a0916
	CtrlAutoWhiteBalance   v4l2.CtrlID = 0x0098090c
	CtrlWhiteBalanceTemp   v4l2.CtrlID = 0x0098091a
	CtrlJPEGQuality        v4l2.CtrlID = 0x009d0903
	CtrlFlashLEDMode       v4l2.CtrlID = 0x009c0901
)

// FrameSize is one discrete capture resolution.
type FrameSize struct {
	Width  uint32
	Height uint32
}

// ControlRange describes one supported device control.
type ControlRange struct {
	ID      v4l2.CtrlID
	Name    string
	Min     int32
	Max     int32
	Step    int32
	Default int32
}

// Info describes one probed capture node.
type Info struct {
	Path string
	Name string
	Caps uint32

	// FrameSizes holds the discrete MJPEG frame sizes the node offers,
	// largest first.
	FrameSizes []FrameSize

	// Controls maps supported control IDs to their ranges.
	Controls map[v4l2.CtrlID]ControlRange

	Streaming          bool // supports streaming I/O
	HasCameraControls  bool // zoom, focus, or white balance controls present
	HasStreamingParams bool // absolute exposure control present
}

// MaxZoom returns the digital zoom factor the device supports, or 1.0 when
// it exposes no zoom control.
func (i Info) MaxZoom() float64 {
	ctrl, ok := i.Controls[CtrlZoomAbsolute]
	if !ok || ctrl.Max <= ctrl.Min || ctrl.Min == 0 {
		return 1.0
	}
	return float64(ctrl.Max) / float64(ctrl.Min)
}

// HasControl reports whether the device exposes the given control.
func (i Info) HasControl(id v4l2.CtrlID) bool {
	_, ok := i.Controls[id]
	return ok
}

// FindControlByName returns the first control whose name contains needle
// (case-insensitive). Used for vendor controls such as ISP noise reduction
// that have no standard control ID.
func (i Info) FindControlByName(needle string) (ControlRange, bool) {
	needle = strings.ToLower(needle)
	for _, ctrl := range i.Controls {
		if strings.Contains(strings.ToLower(ctrl.Name), needle) {
			return ctrl, true
		}
	}
	return ControlRange{}, false
}

// List probes every /dev/video* node and returns the capture-capable ones in
// path order. Nodes that cannot be opened (busy, not a capture device) are
// skipped.
func List() ([]Info, error) {
	paths, err := filepath.Glob("/dev/video[0-9]*")
	if err != nil {
		return nil, fmt.Errorf("failed to scan video devices: %w", err)
	}
	sort.Strings(paths)

	var infos []Info
	for _, path := range paths {
		info, err := Probe(path)
		if err != nil {
			continue
		}
		if info.Caps&CapVideoCapture == 0 {
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Probe opens a device node and collects its capabilities, MJPEG frame
// sizes, and control ranges.
func Probe(path string) (Info, error) {
	dev, err := device.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer dev.Close()

	caps := dev.Capability()
	info := Info{
		Path:     path,
		Name:     caps.Card,
		Caps:     caps.DeviceCapabilities,
		Controls: make(map[v4l2.CtrlID]ControlRange),
	}
	info.Streaming = info.Caps&CapStreaming != 0

	if sizes, err := v4l2.GetAllFormatFrameSizes(dev.Fd()); err == nil {
		for _, size := range sizes {
			if size.PixelFormat != v4l2.PixelFmtMJPEG && size.PixelFormat != v4l2.PixelFmtJPEG {
				continue
			}
			info.FrameSizes = append(info.FrameSizes, FrameSize{
				Width:  size.Size.MaxWidth,
				Height: size.Size.MaxHeight,
			})
		}
	}
	sort.Slice(info.FrameSizes, func(a, b int) bool {
		sa := info.FrameSizes[a]
		sb := info.FrameSizes[b]
		return sa.Width*sa.Height > sb.Width*sb.Height
	})

	if ctrls, err := v4l2.QueryAllExtControls(dev.Fd()); err == nil {
		for _, ctrl := range ctrls {
			info.Controls[ctrl.ID] = ControlRange{
				ID:      ctrl.ID,
				Name:    ctrl.Name,
				Min:     ctrl.Minimum,
				Max:     ctrl.Maximum,
				Step:    ctrl.Step,
				Default: ctrl.Default,
			}
		}
	}

	info.HasCameraControls = info.HasControl(CtrlZoomAbsolute) ||
		info.HasControl(CtrlFocusAuto) ||
		info.HasControl(CtrlAutoWhiteBalance)
	info.HasStreamingParams = info.HasControl(CtrlExposureAbsolute)

	return info, nil
}

// ResolveFacing maps a camera facing to a device node: back is the first
// capture node, front the second. Single-camera machines serve both facings
// from the one node, matching how laptops expose their built-in webcam.
func ResolveFacing(infos []Info, front bool) (Info, error) {
	if len(infos) == 0 {
		return Info{}, fmt.Errorf("no V4L2 capture devices found")
	}
	if front && len(infos) > 1 {
		return infos[1], nil
	}
	return infos[0], nil
}
