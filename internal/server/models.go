package server

import (
	"github.com/KorsanSoftware/camview/internal/config"
)

// HealthData represents health check response data
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Health status"`
	Message string `json:"message" example:"API is healthy" doc:"Health message"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Body HealthData
}

// VersionData represents version information
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc123" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-01T00:00:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go version used for build"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target platform"`
}

// VersionResponse represents the version response
type VersionResponse struct {
	Body VersionData
}

// DeviceInfo represents a single capture device
type DeviceInfo struct {
	Path       string   `json:"path" example:"/dev/video0" doc:"Device node path"`
	Name       string   `json:"name" example:"HD Pro Webcam C920" doc:"Device name from the driver"`
	Generation string   `json:"generation" example:"v4l2-controls" doc:"Backend tier the device qualifies for"`
	MaxZoom    float64  `json:"max_zoom" example:"4.0" doc:"Maximum digital zoom factor"`
	FrameSizes []string `json:"frame_sizes,omitempty" doc:"Discrete MJPEG frame sizes, largest first"`
	Controls   []string `json:"controls,omitempty" doc:"Supported control names"`
}

// DeviceListData represents the device list
type DeviceListData struct {
	Devices []DeviceInfo `json:"devices" doc:"Available capture devices"`
	Count   int          `json:"count" example:"1" doc:"Number of devices"`
}

// DeviceListResponse represents the device list response
type DeviceListResponse struct {
	Body DeviceListData
}

// CameraStatusData represents the camera widget state
type CameraStatusData struct {
	Opened          bool     `json:"opened" example:"true" doc:"True when a capture session is open"`
	Recording       bool     `json:"recording" example:"false" doc:"True while video recording is in progress"`
	Generation      string   `json:"generation" example:"v4l2-streaming" doc:"Active backend tier"`
	MaxZoom         float64  `json:"max_zoom" example:"4.0" doc:"Maximum digital zoom of the active backend"`
	SupportedRatios []string `json:"supported_ratios" doc:"Aspect ratios the active backend offers"`
	DeviceRotation  int      `json:"device_rotation" example:"0" doc:"Device rotation hint in degrees"`
}

// CameraStatusResponse represents the camera status response
type CameraStatusResponse struct {
	Body CameraStatusData
}

// SettingsResponse carries the full camera settings document
type SettingsResponse struct {
	Body config.CameraSettings
}

// UpdateSettingsBody is a partial settings update. Only provided fields
// are applied.
type UpdateSettingsBody struct {
	AspectRatio          *string  `json:"aspect_ratio,omitempty" example:"16:9" doc:"Preview aspect ratio"`
	OutputFormat         *string  `json:"output_format,omitempty" example:"jpeg" enum:"jpeg,yuv,rgb" doc:"Picture output format"`
	JPEGQuality          *int     `json:"jpeg_quality,omitempty" example:"90" minimum:"0" maximum:"100" doc:"JPEG compression quality"`
	Facing               *string  `json:"facing,omitempty" example:"back" enum:"back,front" doc:"Which camera to drive"`
	Focus                *string  `json:"focus,omitempty" example:"continuous" enum:"manual,auto,continuous" doc:"Focus mode"`
	TouchToFocus         *bool    `json:"touch_to_focus,omitempty" doc:"Tap-to-focus gesture"`
	PinchToZoom          *bool    `json:"pinch_to_zoom,omitempty" doc:"Pinch-to-zoom gesture"`
	DigitalZoom          *float64 `json:"digital_zoom,omitempty" example:"2.0" minimum:"1" doc:"Digital zoom factor"`
	WhiteBalance         *string  `json:"white_balance,omitempty" example:"auto" enum:"off,auto,incandescent,fluorescent,daylight,cloudy" doc:"White balance mode"`
	Flash                *string  `json:"flash,omitempty" example:"off" enum:"off,on,torch,auto,red-eye" doc:"Flash mode"`
	OpticalStabilization *bool    `json:"optical_stabilization,omitempty" doc:"Optical image stabilization"`
	NoiseReduction       *string  `json:"noise_reduction,omitempty" example:"off" enum:"off,fast,high-quality" doc:"Noise reduction profile"`
	ShutterSpeedMicros   *int64   `json:"shutter_speed_micros,omitempty" example:"10000" minimum:"0" doc:"Shutter speed in microseconds, 0 for auto"`
	ZeroShutterLag       *bool    `json:"zero_shutter_lag,omitempty" doc:"Serve captures from the live stream"`
	Modes                []string `json:"modes,omitempty" example:"single" doc:"Capture pipelines to keep ready: single, continuous, video"`
}

// UpdateSettingsInput wraps the partial settings body
type UpdateSettingsInput struct {
	Body UpdateSettingsBody
}

// MessageData is a generic status message
type MessageData struct {
	Status  string `json:"status" example:"ok" doc:"Operation status"`
	Message string `json:"message,omitempty" doc:"Human-readable detail"`
}

// MessageResponse is a generic status response
type MessageResponse struct {
	Body MessageData
}

// PictureData describes a captured still
type PictureData struct {
	Status string `json:"status" example:"ok" doc:"Capture status"`
	Path   string `json:"path" example:"pictures/20250101-120000.jpg" doc:"Where the picture was written"`
	Size   int    `json:"size" example:"245760" doc:"Picture size in bytes"`
	Image  string `json:"image,omitempty" doc:"Base64-encoded JPEG when inline=true"`
}

// PictureResponse represents the capture response
type PictureResponse struct {
	Body PictureData
}

// CaptureInput carries capture options
type CaptureInput struct {
	Inline bool `query:"inline" doc:"Include the base64-encoded image in the response"`
}

// RecordingStartBody parameterizes a recording session
type RecordingStartBody struct {
	Filename    string  `json:"filename,omitempty" example:"clip.avi" doc:"Output filename, generated when empty"`
	FPS         int     `json:"fps,omitempty" example:"30" minimum:"0" doc:"Recording frame rate"`
	BitRate     int     `json:"bit_rate,omitempty" example:"4000000" minimum:"0" doc:"Target bitrate in bits per second (legacy backend only)"`
	MaxDuration float64 `json:"max_duration_seconds,omitempty" example:"60" minimum:"0" doc:"Automatic stop after this many seconds"`
}

// RecordingStartInput wraps the recording start body
type RecordingStartInput struct {
	Body RecordingStartBody
}

// RecordingData describes a recording in progress
type RecordingData struct {
	Status string `json:"status" example:"recording" doc:"Recording status"`
	Path   string `json:"path" example:"recordings/clip.avi" doc:"Output file path"`
}

// RecordingResponse represents the recording start response
type RecordingResponse struct {
	Body RecordingData
}

// LogEntryData is one buffered log line
type LogEntryData struct {
	Timestamp  string         `json:"timestamp" doc:"Entry timestamp, RFC 3339"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"camera" doc:"Originating module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured attributes"`
}

// LogsData is the buffered log history
type LogsData struct {
	Entries []LogEntryData `json:"entries" doc:"Buffered log entries, oldest first"`
	Count   int            `json:"count" doc:"Number of entries"`
}

// LogsResponse represents the log history response
type LogsResponse struct {
	Body LogsData
}

// CameraLifecycleEvent reports an open, close, or recording transition
type CameraLifecycleEvent struct {
	Kind    string `json:"kind" example:"opened" doc:"Event kind"`
	Success *bool  `json:"success,omitempty" doc:"Recording outcome, present on record-stopped"`
}

// CameraErrorData reports an error surfaced by the widget
type CameraErrorData struct {
	Error    string `json:"error" doc:"Error text"`
	Severity string `json:"severity" example:"warning" enum:"warning,critical" doc:"Error severity"`
}
