package server

import (
	"context"
	"net/http"

	"github.com/KorsanSoftware/camview/internal/events"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
)

// registerEventRoutes registers the camera event stream.
func (s *Server) registerEventRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "camera-events",
		Method:      http.MethodGet,
		Path:        "/api/camera/events",
		Summary:     "Camera Events",
		Description: "Stream camera lifecycle and error events via Server-Sent Events. Preview frames are not included.",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"lifecycle": CameraLifecycleEvent{},
		"error":     CameraErrorData{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Buffered so slow clients cannot stall the hub goroutines
		eventCh := make(chan any, 64)
		emit := func(ev any) {
			select {
			case eventCh <- ev:
			default:
			}
		}

		hub := s.view.Hub()
		unsubs := []func(){
			hub.OnCameraOpened(func() {
				emit(CameraLifecycleEvent{Kind: "opened"})
			}),
			hub.OnCameraClosed(func() {
				emit(CameraLifecycleEvent{Kind: "closed"})
			}),
			hub.OnVideoRecordStarted(func() {
				emit(CameraLifecycleEvent{Kind: "record-started"})
			}),
			hub.OnVideoRecordStopped(func(success bool) {
				emit(CameraLifecycleEvent{Kind: "record-stopped", Success: &success})
			}),
			hub.OnCameraError(func(err error, severity events.Severity) {
				emit(CameraErrorData{Error: err.Error(), Severity: severity.String()})
			}),
		}
		defer func() {
			for _, unsub := range unsubs {
				unsub()
			}
		}()

		// Initial event flushes the response headers so clients see the
		// connection as established before the camera does anything.
		if err := send.Data(CameraLifecycleEvent{Kind: "connected"}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
