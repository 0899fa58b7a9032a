package camera

import (
	"log/slog"
	"sync/atomic"

	"github.com/KorsanSoftware/camview/internal/camconfig"
	"github.com/KorsanSoftware/camview/internal/events"
	"github.com/KorsanSoftware/camview/internal/scope"
)

// Deps carries everything a backend needs from the widget: the shared
// configuration store, the listener hub, the backend's own child scope, and
// a dispatch function that marshals configuration reactions onto the
// serialized camera context without blocking the notifying goroutine.
type Deps struct {
	Config   *camconfig.Config
	Hub      *events.Hub
	Scope    *scope.Scope
	Dispatch func(fn func() error)
	Logger   *slog.Logger
}

// session is the state helper every backend embeds (composition, not
// subclassing): the three session flags plus device rotation, with the
// invariants opened ⇒ active and recording ⇒ opened enforced at the
// transition points.
type session struct {
	deps Deps

	active    atomic.Bool
	opened    atomic.Bool
	recording atomic.Bool
	rotation  atomic.Int32
}

func newSession(deps Deps) *session {
	s := &session{deps: deps}
	s.active.Store(true)
	return s
}

func (s *session) IsActive() bool         { return s.active.Load() }
func (s *session) IsCameraOpened() bool   { return s.opened.Load() }
func (s *session) IsVideoRecording() bool { return s.recording.Load() }

func (s *session) DeviceRotation() int       { return int(s.rotation.Load()) }
func (s *session) SetDeviceRotation(deg int) { s.rotation.Store(int32(deg)) }

// guardActive rejects mutating operations on a destroyed instance. The
// widget routes the returned error to the hub as a warning.
func (s *session) guardActive() error {
	if !s.active.Load() {
		return ErrDestroyed
	}
	return nil
}

// markOpened flips to Opened and announces it. Requires an active session.
func (s *session) markOpened() {
	s.opened.Store(true)
	s.deps.Hub.CameraOpened()
}

// markClosed ends any recording sub-state first: recording ⇒ opened.
func (s *session) markClosed() {
	s.recording.Store(false)
	if s.opened.Swap(false) {
		s.deps.Hub.CameraClosed()
	}
}

// markDestroyed returns false when the session was already destroyed, in
// which case a warning is reported and no further teardown must happen.
func (s *session) markDestroyed() bool {
	if !s.active.Swap(false) {
		s.deps.Hub.CameraError(ErrDestroyed, events.SeverityWarning)
		return false
	}
	return true
}
