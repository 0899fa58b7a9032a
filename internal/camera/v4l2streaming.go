package camera

import (
	"context"
	"fmt"
	"time"

	"github.com/KorsanSoftware/camview/internal/camconfig"
	"github.com/KorsanSoftware/camview/internal/devices"
)

// V4L2_CID_EXPOSURE_AUTO values (linux/v4l2-controls.h). UVC cameras
// typically implement manual and aperture-priority only.
const (
	exposureModeManual           = 1
	exposureModeAperturePriority = 3
)

// exposureUnit is the granularity of V4L2_CID_EXPOSURE_ABSOLUTE.
const exposureUnit = 100 * time.Microsecond

// NewV4L2Streaming constructs the streaming-parameters backend: everything
// the controls tier does plus absolute shutter speed, driver noise
// reduction, and zero-shutter-lag capture.
func NewV4L2Streaming(info devices.Info, deps Deps) Camera {
	return newV4L2Camera(GenerationV4L2Streaming, tierCaps{controls: true, streaming: true}, info, deps, defaultResolver, openMJPEG)
}

func (c *v4l2Camera) applyStreamingTier() {
	cfg := c.deps.Config
	if err := c.applyShutterSpeed(cfg.ShutterSpeed.Get()); err != nil {
		c.deps.Logger.Warn("Failed to apply control", "control", "shutter speed", "error", err)
	}
	if err := c.applyNoiseReduction(cfg.NoiseReduction.Get()); err != nil {
		c.deps.Logger.Warn("Failed to apply control", "control", "noise reduction", "error", err)
	}
}

func (c *v4l2Camera) observeStreamingTier(ctx context.Context) {
	cfg := c.deps.Config

	cfg.ShutterSpeed.Observe(ctx, func(d time.Duration) {
		c.react(cfg.ShutterSpeed, func() error { return c.applyShutterSpeed(d) })
	})
	cfg.NoiseReduction.Observe(ctx, func(m camconfig.NoiseReductionMode) {
		c.react(cfg.NoiseReduction, func() error { return c.applyNoiseReduction(m) })
	})
	cfg.ZeroShutterLag.Observe(ctx, func(on bool) {
		c.deps.Dispatch(func() error {
			if c.stream != nil {
				c.stream.zsl.Store(on)
			}
			return nil
		})
	})
}

// applyShutterSpeed sets absolute exposure in 100µs units. Zero hands
// exposure back to the driver.
func (c *v4l2Camera) applyShutterSpeed(d time.Duration) error {
	if d == 0 {
		return c.setControl(devices.CtrlExposureAuto, "exposure mode", exposureModeAperturePriority)
	}
	if d < 0 {
		return fmt.Errorf("negative shutter speed %s", d)
	}
	if err := c.setControl(devices.CtrlExposureAuto, "exposure mode", exposureModeManual); err != nil {
		return err
	}
	units := int32(d / exposureUnit)
	if units < 1 {
		units = 1
	}
	return c.setControl(devices.CtrlExposureAbsolute, "absolute exposure", units)
}

// applyNoiseReduction drives the vendor ISP noise reduction control, found
// by name since there is no standard control ID for it.
func (c *v4l2Camera) applyNoiseReduction(m camconfig.NoiseReductionMode) error {
	ctrl, ok := c.info.FindControlByName("noise reduction")
	if !ok {
		if m == camconfig.NoiseReductionOff {
			return nil
		}
		return fmt.Errorf("noise reduction: %w by %s", ErrUnsupportedSetting, c.info.Path)
	}

	var value int32
	switch m {
	case camconfig.NoiseReductionOff:
		value = ctrl.Min
	case camconfig.NoiseReductionFast:
		value = ctrl.Default
	case camconfig.NoiseReductionHighQuality:
		value = ctrl.Max
	}
	return c.setControl(ctrl.ID, "noise reduction", value)
}
