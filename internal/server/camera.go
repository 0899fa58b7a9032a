package server

import (
	"context"
	"encoding/base64"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/KorsanSoftware/camview/internal/camera"
	"github.com/KorsanSoftware/camview/internal/config"
	"github.com/danielgtaylor/huma/v2"
)

const captureWait = 5 * time.Second

// registerCameraRoutes sets up the camera lifecycle and capture endpoints.
func (s *Server) registerCameraRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "camera-status",
		Method:      http.MethodGet,
		Path:        "/api/camera",
		Summary:     "Camera Status",
		Description: "Get the camera widget state",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*CameraStatusResponse, error) {
		ratios := s.view.SupportedAspectRatios()
		ratioStrs := make([]string, 0, len(ratios))
		for _, r := range ratios {
			ratioStrs = append(ratioStrs, r.String())
		}

		return &CameraStatusResponse{
			Body: CameraStatusData{
				Opened:          s.view.IsCameraOpened(),
				Recording:       s.view.IsVideoRecording(),
				Generation:      s.view.Generation().String(),
				MaxZoom:         s.view.MaxDigitalZoom(),
				SupportedRatios: ratioStrs,
				DeviceRotation:  s.view.DeviceRotation(),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "camera-start",
		Method:      http.MethodPost,
		Path:        "/api/camera/start",
		Summary:     "Start Camera",
		Description: "Open a capture session, falling back to the legacy backend when the modern one fails",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401, 409},
	}, func(ctx context.Context, input *struct{}) (*MessageResponse, error) {
		if err := s.view.Start(); err != nil {
			return nil, huma.Error409Conflict("failed to start camera", err)
		}
		return okMessage("camera started"), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "camera-stop",
		Method:      http.MethodPost,
		Path:        "/api/camera/stop",
		Summary:     "Stop Camera",
		Description: "Close the capture session",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401, 409},
	}, func(ctx context.Context, input *struct{}) (*MessageResponse, error) {
		if err := s.view.Stop(); err != nil {
			return nil, huma.Error409Conflict("failed to stop camera", err)
		}
		return okMessage("camera stopped"), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "camera-get-settings",
		Method:      http.MethodGet,
		Path:        "/api/camera/settings",
		Summary:     "Get Settings",
		Description: "Get the current camera settings",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*SettingsResponse, error) {
		return &SettingsResponse{Body: config.SettingsFromSnapshot(s.view.SaveState())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "camera-update-settings",
		Method:      http.MethodPatch,
		Path:        "/api/camera/settings",
		Summary:     "Update Settings",
		Description: "Apply a partial settings update. Values the active backend rejects revert silently and surface as warning events.",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401, 422},
	}, func(ctx context.Context, input *UpdateSettingsInput) (*SettingsResponse, error) {
		current := config.SettingsFromSnapshot(s.view.SaveState())
		merged := mergeSettings(current, input.Body)

		snapshot, err := merged.Snapshot()
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("invalid settings", err)
		}

		s.view.RestoreState(snapshot)

		if s.options.Settings != nil {
			if saveErr := s.options.Settings.Save(snapshot); saveErr != nil {
				s.logger.Warn("Failed to persist settings", "error", saveErr)
			}
		}

		return &SettingsResponse{Body: config.SettingsFromSnapshot(s.view.SaveState())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "camera-picture",
		Method:      http.MethodPost,
		Path:        "/api/camera/picture",
		Summary:     "Take Picture",
		Description: "Capture a still and write it to the pictures directory",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 500},
	}, func(ctx context.Context, input *CaptureInput) (*PictureResponse, error) {
		data, err := s.captureAndWait(ctx)
		if err != nil {
			return nil, err
		}

		path, err := s.writePicture(data)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to write picture", err)
		}

		out := PictureData{
			Status: "ok",
			Path:   path,
			Size:   len(data),
		}
		if input.Inline {
			out.Image = base64.StdEncoding.EncodeToString(data)
		}

		return &PictureResponse{Body: out}, nil
	})

	s.registerRecordingRoutes()
}

// registerRecordingRoutes sets up the recording lifecycle endpoints.
func (s *Server) registerRecordingRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "recording-start",
		Method:      http.MethodPost,
		Path:        "/api/camera/recording/start",
		Summary:     "Start Recording",
		Description: "Start video recording into the recordings directory",
		Tags:        []string{"recording"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 500},
	}, func(ctx context.Context, input *RecordingStartInput) (*RecordingResponse, error) {
		filename := input.Body.Filename
		if filename == "" {
			filename = time.Now().Format("20060102-150405") + ".avi"
		}

		dir := s.options.RecordingsDir
		if dir == "" {
			dir = "recordings"
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, huma.Error500InternalServerError("failed to create recordings directory", err)
		}

		path := filepath.Join(dir, filename)
		vc := camera.VideoConfig{
			FPS:         input.Body.FPS,
			BitRate:     input.Body.BitRate,
			MaxDuration: time.Duration(input.Body.MaxDuration * float64(time.Second)),
		}

		if err := s.view.StartVideoRecording(path, vc); err != nil {
			return nil, huma.Error409Conflict("failed to start recording", err)
		}

		return &RecordingResponse{
			Body: RecordingData{Status: "recording", Path: path},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "recording-pause",
		Method:      http.MethodPost,
		Path:        "/api/camera/recording/pause",
		Summary:     "Pause Recording",
		Tags:        []string{"recording"},
		Security:    withAuth(),
		Errors:      []int{401, 409},
	}, func(ctx context.Context, input *struct{}) (*MessageResponse, error) {
		if err := s.view.PauseVideoRecording(); err != nil {
			return nil, huma.Error409Conflict("failed to pause recording", err)
		}
		return okMessage("recording paused"), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "recording-resume",
		Method:      http.MethodPost,
		Path:        "/api/camera/recording/resume",
		Summary:     "Resume Recording",
		Tags:        []string{"recording"},
		Security:    withAuth(),
		Errors:      []int{401, 409},
	}, func(ctx context.Context, input *struct{}) (*MessageResponse, error) {
		if err := s.view.ResumeVideoRecording(); err != nil {
			return nil, huma.Error409Conflict("failed to resume recording", err)
		}
		return okMessage("recording resumed"), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "recording-stop",
		Method:      http.MethodPost,
		Path:        "/api/camera/recording/stop",
		Summary:     "Stop Recording",
		Description: "Finish the recording and finalize the output file",
		Tags:        []string{"recording"},
		Security:    withAuth(),
		Errors:      []int{401, 409},
	}, func(ctx context.Context, input *struct{}) (*MessageResponse, error) {
		if err := s.view.StopVideoRecording(); err != nil {
			return nil, huma.Error409Conflict("failed to stop recording", err)
		}
		return okMessage("recording stopped"), nil
	})
}

// captureAndWait triggers a capture and waits for the picture event.
func (s *Server) captureAndWait(ctx context.Context) ([]byte, error) {
	pictures := make(chan []byte, 1)
	unsub := s.view.Hub().OnPictureTaken(func(data []byte) {
		select {
		case pictures <- data:
		default:
		}
	})
	defer unsub()

	if err := s.view.Capture(); err != nil {
		return nil, huma.Error409Conflict("failed to take picture", err)
	}

	select {
	case data := <-pictures:
		return data, nil
	case <-ctx.Done():
		return nil, huma.Error500InternalServerError("request cancelled", ctx.Err())
	case <-time.After(captureWait):
		return nil, huma.Error500InternalServerError("timed out waiting for picture")
	}
}

// writePicture stores a captured still under the pictures directory.
func (s *Server) writePicture(data []byte) (string, error) {
	dir := s.options.PicturesDir
	if dir == "" {
		dir = "pictures"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, time.Now().Format("20060102-150405.000")+".jpg")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// mergeSettings overlays the provided fields onto the current settings.
func mergeSettings(cur config.CameraSettings, update UpdateSettingsBody) config.CameraSettings {
	if update.AspectRatio != nil {
		cur.AspectRatio = *update.AspectRatio
	}
	if update.OutputFormat != nil {
		cur.OutputFormat = *update.OutputFormat
	}
	if update.JPEGQuality != nil {
		cur.JPEGQuality = *update.JPEGQuality
	}
	if update.Facing != nil {
		cur.Facing = *update.Facing
	}
	if update.Focus != nil {
		cur.Focus = *update.Focus
	}
	if update.TouchToFocus != nil {
		cur.TouchToFocus = *update.TouchToFocus
	}
	if update.PinchToZoom != nil {
		cur.PinchToZoom = *update.PinchToZoom
	}
	if update.DigitalZoom != nil {
		cur.DigitalZoom = *update.DigitalZoom
	}
	if update.WhiteBalance != nil {
		cur.WhiteBalance = *update.WhiteBalance
	}
	if update.Flash != nil {
		cur.Flash = *update.Flash
	}
	if update.OpticalStabilization != nil {
		cur.OpticalStabilization = *update.OpticalStabilization
	}
	if update.NoiseReduction != nil {
		cur.NoiseReduction = *update.NoiseReduction
	}
	if update.ShutterSpeedMicros != nil {
		cur.ShutterSpeedMicros = *update.ShutterSpeedMicros
	}
	if update.ZeroShutterLag != nil {
		cur.ZeroShutterLag = *update.ZeroShutterLag
	}
	if update.Modes != nil {
		cur.Modes = update.Modes
	}
	return cur
}

func okMessage(msg string) *MessageResponse {
	return &MessageResponse{
		Body: MessageData{Status: "ok", Message: msg},
	}
}
