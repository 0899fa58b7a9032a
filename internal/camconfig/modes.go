package camconfig

// Facing selects which physical camera the widget drives. On Linux this
// resolves to a V4L2 device node via the device prober.
type Facing int

const (
	FacingBack Facing = iota
	FacingFront
)

func (f Facing) String() string {
	if f == FacingFront {
		return "front"
	}
	return "back"
}

// FocusMode controls the auto-focus behaviour of the active backend.
type FocusMode int

const (
	FocusManual FocusMode = iota
	FocusAuto
	FocusContinuous
)

func (m FocusMode) String() string {
	switch m {
	case FocusAuto:
		return "auto"
	case FocusContinuous:
		return "continuous"
	default:
		return "manual"
	}
}

// FlashMode controls the flash/torch unit, where present.
type FlashMode int

const (
	FlashOff FlashMode = iota
	FlashOn
	FlashTorch
	FlashAuto
	FlashRedEye
)

func (m FlashMode) String() string {
	switch m {
	case FlashOn:
		return "on"
	case FlashTorch:
		return "torch"
	case FlashAuto:
		return "auto"
	case FlashRedEye:
		return "red-eye"
	default:
		return "off"
	}
}

// WhiteBalanceMode controls automatic white balance.
type WhiteBalanceMode int

const (
	WhiteBalanceOff WhiteBalanceMode = iota
	WhiteBalanceAuto
	WhiteBalanceIncandescent
	WhiteBalanceFluorescent
	WhiteBalanceDaylight
	WhiteBalanceCloudy
)

func (m WhiteBalanceMode) String() string {
	switch m {
	case WhiteBalanceAuto:
		return "auto"
	case WhiteBalanceIncandescent:
		return "incandescent"
	case WhiteBalanceFluorescent:
		return "fluorescent"
	case WhiteBalanceDaylight:
		return "daylight"
	case WhiteBalanceCloudy:
		return "cloudy"
	default:
		return "off"
	}
}

// NoiseReductionMode selects the driver noise reduction profile.
type NoiseReductionMode int

const (
	NoiseReductionOff NoiseReductionMode = iota
	NoiseReductionFast
	NoiseReductionHighQuality
)

func (m NoiseReductionMode) String() string {
	switch m {
	case NoiseReductionFast:
		return "fast"
	case NoiseReductionHighQuality:
		return "high-quality"
	default:
		return "off"
	}
}

// OutputFormat is the pixel format delivered to picture and frame listeners.
type OutputFormat int

const (
	OutputJPEG OutputFormat = iota
	OutputYUV
	OutputRGB
)

func (f OutputFormat) String() string {
	switch f {
	case OutputYUV:
		return "yuv"
	case OutputRGB:
		return "rgb"
	default:
		return "jpeg"
	}
}

// CameraMode is a bitmask of the capture pipelines the widget keeps ready.
type CameraMode int

const (
	ModeSingleCapture CameraMode = 1 << iota
	ModeContinuousFrame
	ModeVideoCapture
)

// Has reports whether every bit of m is set.
func (c CameraMode) Has(m CameraMode) bool {
	return c&m == m
}
