package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/KorsanSoftware/camview/internal/camconfig"
	"github.com/pelletier/go-toml/v2"
)

// CameraSettings is the TOML-facing form of a camera configuration
// snapshot. Enumerated values are stored as strings so the file stays
// hand-editable.
type CameraSettings struct {
	AspectRatio          string   `toml:"aspect_ratio" json:"aspect_ratio"`
	OutputFormat         string   `toml:"output_format" json:"output_format"`
	JPEGQuality          int      `toml:"jpeg_quality" json:"jpeg_quality"`
	Facing               string   `toml:"facing" json:"facing"`
	Focus                string   `toml:"focus" json:"focus"`
	TouchToFocus         bool     `toml:"touch_to_focus" json:"touch_to_focus"`
	PinchToZoom          bool     `toml:"pinch_to_zoom" json:"pinch_to_zoom"`
	DigitalZoom          float64  `toml:"digital_zoom" json:"digital_zoom"`
	WhiteBalance         string   `toml:"white_balance" json:"white_balance"`
	Flash                string   `toml:"flash" json:"flash"`
	OpticalStabilization bool     `toml:"optical_stabilization" json:"optical_stabilization"`
	NoiseReduction       string   `toml:"noise_reduction" json:"noise_reduction"`
	ShutterSpeedMicros   int64    `toml:"shutter_speed_micros" json:"shutter_speed_micros"`
	ZeroShutterLag       bool     `toml:"zero_shutter_lag" json:"zero_shutter_lag"`
	Modes                []string `toml:"modes" json:"modes"`
}

// SettingsFile is the complete persisted settings document.
type SettingsFile struct {
	Version int            `toml:"version" json:"version"`
	Camera  CameraSettings `toml:"camera" json:"camera"`
}

// SettingsManager persists camera settings to a TOML file.
type SettingsManager struct {
	path string
}

// NewSettingsManager creates a settings manager for the given file path.
func NewSettingsManager(path string) *SettingsManager {
	if path == "" {
		path = "camera.toml"
	}
	return &SettingsManager{path: path}
}

// Path returns the settings file path.
func (sm *SettingsManager) Path() string {
	return sm.path
}

// Load reads the settings file and converts it to a configuration
// snapshot. A missing file yields the default snapshot.
func (sm *SettingsManager) Load() (camconfig.Snapshot, error) {
	return LoadSettings(sm.path)
}

// Save writes the snapshot to the settings file, creating the directory
// if needed.
func (sm *SettingsManager) Save(snapshot camconfig.Snapshot) error {
	doc := SettingsFile{
		Version: 1,
		Camera:  SettingsFromSnapshot(snapshot),
	}

	dir := filepath.Dir(sm.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(sm.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}

	return nil
}

// LoadSettings reads a settings file into a configuration snapshot.
// A missing file yields the default snapshot. This is the loader used
// with the config file watcher.
func LoadSettings(path string) (camconfig.Snapshot, error) {
	defaults := camconfig.New().Snapshot()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaults, nil
		}
		return defaults, fmt.Errorf("failed to read settings: %w", err)
	}

	doc := SettingsFile{Camera: SettingsFromSnapshot(defaults)}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return defaults, fmt.Errorf("failed to parse settings: %w", err)
	}

	return doc.Camera.Snapshot()
}

// SettingsFromSnapshot converts a snapshot to its TOML-facing form.
func SettingsFromSnapshot(s camconfig.Snapshot) CameraSettings {
	return CameraSettings{
		AspectRatio:          s.AspectRatio.String(),
		OutputFormat:         s.OutputFormat.String(),
		JPEGQuality:          s.JPEGQuality,
		Facing:               s.Facing.String(),
		Focus:                s.Focus.String(),
		TouchToFocus:         s.TouchToFocus,
		PinchToZoom:          s.PinchToZoom,
		DigitalZoom:          s.DigitalZoom,
		WhiteBalance:         s.WhiteBalance.String(),
		Flash:                s.Flash.String(),
		OpticalStabilization: s.OpticalStabilization,
		NoiseReduction:       s.NoiseReduction.String(),
		ShutterSpeedMicros:   s.ShutterSpeedNanos / int64(time.Microsecond),
		ZeroShutterLag:       s.ZeroShutterLag,
		Modes:                modesToStrings(s.Mode),
	}
}

// Snapshot converts the TOML-facing settings back to a snapshot,
// validating every enumerated value.
func (cs CameraSettings) Snapshot() (camconfig.Snapshot, error) {
	var s camconfig.Snapshot
	var err error

	if s.AspectRatio, err = camconfig.ParseRatio(cs.AspectRatio); err != nil {
		return s, err
	}
	if s.OutputFormat, err = parseOutputFormat(cs.OutputFormat); err != nil {
		return s, err
	}
	if cs.JPEGQuality < 0 || cs.JPEGQuality > 100 {
		return s, fmt.Errorf("invalid jpeg_quality %d", cs.JPEGQuality)
	}
	s.JPEGQuality = cs.JPEGQuality
	if s.Facing, err = parseFacing(cs.Facing); err != nil {
		return s, err
	}
	if s.Focus, err = parseFocus(cs.Focus); err != nil {
		return s, err
	}
	s.TouchToFocus = cs.TouchToFocus
	s.PinchToZoom = cs.PinchToZoom
	if cs.DigitalZoom < 1.0 {
		return s, fmt.Errorf("invalid digital_zoom %v", cs.DigitalZoom)
	}
	s.DigitalZoom = cs.DigitalZoom
	if s.WhiteBalance, err = parseWhiteBalance(cs.WhiteBalance); err != nil {
		return s, err
	}
	if s.Flash, err = parseFlash(cs.Flash); err != nil {
		return s, err
	}
	s.OpticalStabilization = cs.OpticalStabilization
	if s.NoiseReduction, err = parseNoiseReduction(cs.NoiseReduction); err != nil {
		return s, err
	}
	if cs.ShutterSpeedMicros < 0 {
		return s, fmt.Errorf("invalid shutter_speed_micros %d", cs.ShutterSpeedMicros)
	}
	s.ShutterSpeedNanos = cs.ShutterSpeedMicros * int64(time.Microsecond)
	s.ZeroShutterLag = cs.ZeroShutterLag
	if s.Mode, err = parseModes(cs.Modes); err != nil {
		return s, err
	}

	return s, nil
}

func parseOutputFormat(s string) (camconfig.OutputFormat, error) {
	switch s {
	case "jpeg", "":
		return camconfig.OutputJPEG, nil
	case "yuv":
		return camconfig.OutputYUV, nil
	case "rgb":
		return camconfig.OutputRGB, nil
	}
	return 0, fmt.Errorf("invalid output_format %q", s)
}

func parseFacing(s string) (camconfig.Facing, error) {
	switch s {
	case "back", "":
		return camconfig.FacingBack, nil
	case "front":
		return camconfig.FacingFront, nil
	}
	return 0, fmt.Errorf("invalid facing %q", s)
}

func parseFocus(s string) (camconfig.FocusMode, error) {
	switch s {
	case "manual":
		return camconfig.FocusManual, nil
	case "auto":
		return camconfig.FocusAuto, nil
	case "continuous", "":
		return camconfig.FocusContinuous, nil
	}
	return 0, fmt.Errorf("invalid focus %q", s)
}

func parseWhiteBalance(s string) (camconfig.WhiteBalanceMode, error) {
	switch s {
	case "off":
		return camconfig.WhiteBalanceOff, nil
	case "auto", "":
		return camconfig.WhiteBalanceAuto, nil
	case "incandescent":
		return camconfig.WhiteBalanceIncandescent, nil
	case "fluorescent":
		return camconfig.WhiteBalanceFluorescent, nil
	case "daylight":
		return camconfig.WhiteBalanceDaylight, nil
	case "cloudy":
		return camconfig.WhiteBalanceCloudy, nil
	}
	return 0, fmt.Errorf("invalid white_balance %q", s)
}

func parseFlash(s string) (camconfig.FlashMode, error) {
	switch s {
	case "off", "":
		return camconfig.FlashOff, nil
	case "on":
		return camconfig.FlashOn, nil
	case "torch":
		return camconfig.FlashTorch, nil
	case "auto":
		return camconfig.FlashAuto, nil
	case "red-eye":
		return camconfig.FlashRedEye, nil
	}
	return 0, fmt.Errorf("invalid flash %q", s)
}

func parseNoiseReduction(s string) (camconfig.NoiseReductionMode, error) {
	switch s {
	case "off", "":
		return camconfig.NoiseReductionOff, nil
	case "fast":
		return camconfig.NoiseReductionFast, nil
	case "high-quality":
		return camconfig.NoiseReductionHighQuality, nil
	}
	return 0, fmt.Errorf("invalid noise_reduction %q", s)
}

func modesToStrings(mode camconfig.CameraMode) []string {
	var out []string
	if mode.Has(camconfig.ModeSingleCapture) {
		out = append(out, "single")
	}
	if mode.Has(camconfig.ModeContinuousFrame) {
		out = append(out, "continuous")
	}
	if mode.Has(camconfig.ModeVideoCapture) {
		out = append(out, "video")
	}
	return out
}

func parseModes(modes []string) (camconfig.CameraMode, error) {
	if len(modes) == 0 {
		return camconfig.ModeSingleCapture, nil
	}
	var mode camconfig.CameraMode
	for _, m := range modes {
		switch m {
		case "single":
			mode |= camconfig.ModeSingleCapture
		case "continuous":
			mode |= camconfig.ModeContinuousFrame
		case "video":
			mode |= camconfig.ModeVideoCapture
		default:
			return 0, fmt.Errorf("invalid mode %q", m)
		}
	}
	return mode, nil
}
