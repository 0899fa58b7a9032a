package camera

import (
	"github.com/KorsanSoftware/camview/internal/camconfig"
	"github.com/KorsanSoftware/camview/internal/devices"
)

// Factory constructs a backend for the given dependencies. The widget holds
// one for initial construction and falls back to NewLegacy on its own.
type Factory func(deps Deps) (Camera, error)

// New probes the system and constructs the most capable backend the
// configured facing's device qualifies for. Probe failure or a device
// without streaming I/O lands on the legacy backend rather than erroring:
// the subprocess path is assumed always obtainable.
func New(deps Deps) (Camera, error) {
	infos, err := devices.List()
	if err != nil || len(infos) == 0 {
		deps.Logger.Warn("No usable V4L2 devices, using legacy backend", "error", err)
		return NewLegacy(deps), nil
	}

	front := deps.Config.Facing.Get() == camconfig.FacingFront
	info, err := devices.ResolveFacing(infos, front)
	if err != nil {
		return NewLegacy(deps), nil
	}

	gen := Classify(info)
	deps.Logger.Info("Selected camera backend",
		"device", info.Path,
		"name", info.Name,
		"generation", gen.String())

	switch gen {
	case GenerationV4L2Streaming:
		return NewV4L2Streaming(info, deps), nil
	case GenerationV4L2Controls:
		return NewV4L2Controls(info, deps), nil
	case GenerationV4L2:
		return NewV4L2(info, deps), nil
	default:
		return NewLegacy(deps), nil
	}
}

// Classify maps probe results to the highest qualifying generation. MJPEG
// frame sizes are required for every modern tier; a camera that cannot
// stream compressed frames goes through the subprocess pipeline instead.
func Classify(info devices.Info) Generation {
	if !info.Streaming || len(info.FrameSizes) == 0 {
		return GenerationLegacy
	}
	switch {
	case info.HasStreamingParams && info.HasCameraControls:
		return GenerationV4L2Streaming
	case info.HasCameraControls:
		return GenerationV4L2Controls
	default:
		return GenerationV4L2
	}
}
