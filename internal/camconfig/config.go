package camconfig

import "time"

// Default values applied when a field was never set.
const (
	DefaultJPEGQuality = 90
	DefaultDigitalZoom = 1.0
)

// Config is the widget's configuration store: one observable field per
// setting. It is created once per widget, shared between the public
// property accessors and the active backend's observers, and destroyed with
// the widget. Fields may be mutated from any goroutine; backend reactions
// are marshaled onto the camera dispatch context by the observers
// themselves.
type Config struct {
	AspectRatio          *Field[Ratio]
	OutputFormat         *Field[OutputFormat]
	JPEGQuality          *Field[int]
	Facing               *Field[Facing]
	Focus                *Field[FocusMode]
	TouchToFocus         *Field[bool]
	PinchToZoom          *Field[bool]
	DigitalZoom          *Field[float64]
	WhiteBalance         *Field[WhiteBalanceMode]
	Flash                *Field[FlashMode]
	OpticalStabilization *Field[bool]
	NoiseReduction       *Field[NoiseReductionMode]
	ShutterSpeed         *Field[time.Duration]
	ZeroShutterLag       *Field[bool]
	Mode                 *Field[CameraMode]
}

// New returns a Config with every field at its default.
func New() *Config {
	return &Config{
		AspectRatio:          NewField(RatioStandard),
		OutputFormat:         NewField(OutputJPEG),
		JPEGQuality:          NewField(DefaultJPEGQuality),
		Facing:               NewField(FacingBack),
		Focus:                NewField(FocusContinuous),
		TouchToFocus:         NewField(false),
		PinchToZoom:          NewField(false),
		DigitalZoom:          NewField(DefaultDigitalZoom),
		WhiteBalance:         NewField(WhiteBalanceAuto),
		Flash:                NewField(FlashOff),
		OpticalStabilization: NewField(false),
		NoiseReduction:       NewField(NoiseReductionOff),
		ShutterSpeed:         NewField(time.Duration(0)),
		ZeroShutterLag:       NewField(false),
		Mode:                 NewField(ModeSingleCapture),
	}
}

// Snapshot is an immutable copy of every configuration value. It survives
// backend replacement during fallback and serializes to TOML for saved-state
// persistence across widget re-creation.
type Snapshot struct {
	AspectRatio          Ratio              `toml:"aspect_ratio"`
	OutputFormat         OutputFormat       `toml:"output_format"`
	JPEGQuality          int                `toml:"jpeg_quality"`
	Facing               Facing             `toml:"facing"`
	Focus                FocusMode          `toml:"focus"`
	TouchToFocus         bool               `toml:"touch_to_focus"`
	PinchToZoom          bool               `toml:"pinch_to_zoom"`
	DigitalZoom          float64            `toml:"digital_zoom"`
	WhiteBalance         WhiteBalanceMode   `toml:"white_balance"`
	Flash                FlashMode          `toml:"flash"`
	OpticalStabilization bool               `toml:"optical_stabilization"`
	NoiseReduction       NoiseReductionMode `toml:"noise_reduction"`
	ShutterSpeedNanos    int64              `toml:"shutter_speed_nanos"`
	ZeroShutterLag       bool               `toml:"zero_shutter_lag"`
	Mode                 CameraMode         `toml:"camera_mode"`
}

// Snapshot captures the current value of every field.
func (c *Config) Snapshot() Snapshot {
	return Snapshot{
		AspectRatio:          c.AspectRatio.Get(),
		OutputFormat:         c.OutputFormat.Get(),
		JPEGQuality:          c.JPEGQuality.Get(),
		Facing:               c.Facing.Get(),
		Focus:                c.Focus.Get(),
		TouchToFocus:         c.TouchToFocus.Get(),
		PinchToZoom:          c.PinchToZoom.Get(),
		DigitalZoom:          c.DigitalZoom.Get(),
		WhiteBalance:         c.WhiteBalance.Get(),
		Flash:                c.Flash.Get(),
		OpticalStabilization: c.OpticalStabilization.Get(),
		NoiseReduction:       c.NoiseReduction.Get(),
		ShutterSpeedNanos:    c.ShutterSpeed.Get().Nanoseconds(),
		ZeroShutterLag:       c.ZeroShutterLag.Get(),
		Mode:                 c.Mode.Get(),
	}
}

// Apply writes every snapshot value back into the store. Fields already
// holding the snapshot value fire no notifications.
func (c *Config) Apply(s Snapshot) {
	c.AspectRatio.Set(s.AspectRatio)
	c.OutputFormat.Set(s.OutputFormat)
	c.JPEGQuality.Set(s.JPEGQuality)
	c.Facing.Set(s.Facing)
	c.Focus.Set(s.Focus)
	c.TouchToFocus.Set(s.TouchToFocus)
	c.PinchToZoom.Set(s.PinchToZoom)
	c.DigitalZoom.Set(s.DigitalZoom)
	c.WhiteBalance.Set(s.WhiteBalance)
	c.Flash.Set(s.Flash)
	c.OpticalStabilization.Set(s.OpticalStabilization)
	c.NoiseReduction.Set(s.NoiseReduction)
	c.ShutterSpeed.Set(time.Duration(s.ShutterSpeedNanos))
	c.ZeroShutterLag.Set(s.ZeroShutterLag)
	c.Mode.Set(s.Mode)
}
