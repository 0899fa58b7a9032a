// Package events is the widget's listener hub: typed camera lifecycle and
// capture events fanned out to registered listeners over a kelindar/event
// dispatcher.
package events

import "fmt"

// Event type constants for kelindar/event.
const (
	TypeCameraOpened uint32 = iota + 1
	TypeCameraClosed
	TypeCameraError
	TypePictureTaken
	TypePreviewFrame
	TypeLegacyPreviewFrame
	TypeVideoRecordStarted
	TypeVideoRecordStopped
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// Severity classifies camera errors.
type Severity int

const (
	// SeverityWarning marks recoverable errors: the operation was refused
	// but the widget remains usable.
	SeverityWarning Severity = iota
	// SeverityCritical marks violated invariants or unusable hardware.
	// Critical errors with no registered error listener escalate to a panic
	// so hardware failures never vanish unnoticed.
	SeverityCritical
)

func (s Severity) String() string {
	if s == SeverityCritical {
		return "critical"
	}
	return "warning"
}

// CameraOpenedEvent fires once a backend has opened its device and begun
// streaming.
type CameraOpenedEvent struct{}

// Type returns the event type identifier for CameraOpenedEvent.
func (e CameraOpenedEvent) Type() uint32 { return TypeCameraOpened }

// CameraClosedEvent fires when a backend stops streaming and releases its
// device.
type CameraClosedEvent struct{}

// Type returns the event type identifier for CameraClosedEvent.
func (e CameraClosedEvent) Type() uint32 { return TypeCameraClosed }

// CameraErrorEvent carries an error and its severity to error listeners.
type CameraErrorEvent struct {
	Err      error
	Severity Severity
}

// Type returns the event type identifier for CameraErrorEvent.
func (e CameraErrorEvent) Type() uint32 { return TypeCameraError }

func (e CameraErrorEvent) String() string {
	return fmt.Sprintf("camera error (%s): %v", e.Severity, e.Err)
}

// PictureTakenEvent carries the encoded bytes of a captured still.
type PictureTakenEvent struct {
	Data []byte
}

// Type returns the event type identifier for PictureTakenEvent.
func (e PictureTakenEvent) Type() uint32 { return TypePictureTaken }

// PreviewFrameEvent carries one preview frame from a V4L2 backend.
type PreviewFrameEvent struct {
	Frame  []byte
	Width  int
	Height int
	Format string
}

// Type returns the event type identifier for PreviewFrameEvent.
func (e PreviewFrameEvent) Type() uint32 { return TypePreviewFrame }

// LegacyPreviewFrameEvent carries one preview frame from the legacy backend
// together with its source metadata. Kept distinct from PreviewFrameEvent
// because legacy frames arrive re-encoded by the subprocess pipeline.
type LegacyPreviewFrameEvent struct {
	Frame  []byte
	Width  int
	Height int
	Format string
}

// Type returns the event type identifier for LegacyPreviewFrameEvent.
func (e LegacyPreviewFrameEvent) Type() uint32 { return TypeLegacyPreviewFrame }

// VideoRecordStartedEvent fires when a recording session begins.
type VideoRecordStartedEvent struct {
	Path string
}

// Type returns the event type identifier for VideoRecordStartedEvent.
func (e VideoRecordStartedEvent) Type() uint32 { return TypeVideoRecordStarted }

// VideoRecordStoppedEvent fires when a recording session ends.
type VideoRecordStoppedEvent struct {
	Path    string
	Success bool
}

// Type returns the event type identifier for VideoRecordStoppedEvent.
func (e VideoRecordStoppedEvent) Type() uint32 { return TypeVideoRecordStopped }
