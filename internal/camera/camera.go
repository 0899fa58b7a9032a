// Package camera defines the capability-polymorphic camera contract and its
// backend implementations: three V4L2 tiers selected by capability probe and
// the ffmpeg subprocess backend of last resort.
//
// A backend instance is single-use. It is constructed, may cycle between
// Started (opened) and Stopped (closed), and ends in the terminal Destroyed
// state. Recording is a sub-state reachable only while
// opened. Replacing a backend (fallback) means constructing a new instance
// under a fresh child scope.
package camera

import (
	"errors"
	"time"

	"github.com/KorsanSoftware/camview/internal/camconfig"
)

// Generation identifies which capture stack a backend drives.
type Generation int

const (
	// GenerationLegacy is the ffmpeg subprocess backend, assumed always
	// obtainable on real hardware. Backend of last resort: there is no
	// fallback below it.
	GenerationLegacy Generation = iota
	// GenerationV4L2 streams single-planar MJPEG with no device controls.
	GenerationV4L2
	// GenerationV4L2Controls adds camera controls: zoom, focus, white
	// balance, stabilization, JPEG quality.
	GenerationV4L2Controls
	// GenerationV4L2Streaming adds streaming parameters: absolute shutter
	// speed, driver noise reduction, zero-shutter-lag capture.
	GenerationV4L2Streaming
)

func (g Generation) String() string {
	switch g {
	case GenerationV4L2:
		return "v4l2"
	case GenerationV4L2Controls:
		return "v4l2-controls"
	case GenerationV4L2Streaming:
		return "v4l2-streaming"
	default:
		return "legacy"
	}
}

// VideoConfig parameterizes one recording session.
type VideoConfig struct {
	// FPS of the recorded container. Zero means the preview rate.
	FPS int
	// BitRate in bits/s, honored by the legacy backend's encoder. Zero
	// lets the encoder choose.
	BitRate int
	// MaxDuration ends the recording automatically when positive.
	MaxDuration time.Duration
}

// Sentinel errors reported through the listener hub's error channel.
var (
	ErrDestroyed          = errors.New("camera: backend destroyed")
	ErrNotOpened          = errors.New("camera: camera not opened")
	ErrAlreadyOpened      = errors.New("camera: camera already opened")
	ErrNotRecording       = errors.New("camera: no video recording in progress")
	ErrAlreadyRecording   = errors.New("camera: video recording already in progress")
	ErrUnsupportedRatio   = errors.New("camera: unsupported aspect ratio")
	ErrUnsupportedSetting = errors.New("camera: setting not supported")
)

// Camera is the capability contract every backend implements. All mutating
// operations must run on the widget's serialized dispatch context; the
// widget enforces this, backends assume it.
type Camera interface {
	// Generation reports which capture stack this backend drives.
	Generation() Generation

	// Start opens the device and begins streaming preview frames.
	Start() error
	// Stop ends streaming and closes the device. The instance may be
	// started again.
	Stop()
	// Destroy is terminal: releases all resources and cancels the
	// backend's scope. Safe to call on an already-destroyed instance
	// (reports a warning through the hub).
	Destroy()

	IsActive() bool
	IsCameraOpened() bool
	IsVideoRecording() bool

	// TakePicture captures one still and publishes it through the hub.
	TakePicture() error

	StartVideoRecording(path string, vc VideoConfig) error
	PauseVideoRecording() error
	ResumeVideoRecording() error
	StopVideoRecording() error

	// SetAspectRatio switches the preview to a supported ratio,
	// restarting the stream when open.
	SetAspectRatio(r camconfig.Ratio) error
	SupportedAspectRatios() []camconfig.Ratio
	MaxDigitalZoom() float64

	DeviceRotation() int
	SetDeviceRotation(deg int)
}
