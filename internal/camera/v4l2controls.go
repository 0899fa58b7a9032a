package camera

import (
	"context"
	"fmt"

	"github.com/vladimirvivien/go4vl/v4l2"

	"github.com/KorsanSoftware/camview/internal/camconfig"
	"github.com/KorsanSoftware/camview/internal/devices"
)

// White balance presets in Kelvin for V4L2_CID_WHITE_BALANCE_TEMPERATURE.
const (
	kelvinIncandescent = 2800
	kelvinFluorescent  = 4000
	kelvinDaylight     = 5500
	kelvinCloudy       = 6500
)

// V4L2_CID_FLASH_LED_MODE values (linux/v4l2-controls.h).
const (
	flashLEDModeNone  = 0
	flashLEDModeFlash = 1
	flashLEDModeTorch = 2
)

// NewV4L2Controls constructs the camera-controls backend: everything the
// basic tier does plus zoom, focus, white balance, stabilization, JPEG
// quality, and flash through device controls.
func NewV4L2Controls(info devices.Info, deps Deps) Camera {
	return newV4L2Camera(GenerationV4L2Controls, tierCaps{controls: true}, info, deps, defaultResolver, openMJPEG)
}

// applyControlTier pushes the control-tier fields onto a freshly opened
// device. Individual failures are logged, not fatal: the value was accepted
// into the store earlier against a device that may since have been swapped.
func (c *v4l2Camera) applyControlTier() {
	cfg := c.deps.Config
	apply := func(what string, err error) {
		if err != nil {
			c.deps.Logger.Warn("Failed to apply control", "control", what, "error", err)
		}
	}
	apply("zoom", c.applyZoom(cfg.DigitalZoom.Get()))
	apply("focus", c.applyFocus(cfg.Focus.Get()))
	apply("white balance", c.applyWhiteBalance(cfg.WhiteBalance.Get()))
	apply("stabilization", c.applyStabilization(cfg.OpticalStabilization.Get()))
	apply("jpeg quality", c.applyJPEGQuality(cfg.JPEGQuality.Get()))
	apply("flash", c.applyFlash(cfg.Flash.Get()))
}

func (c *v4l2Camera) observeControlTier(ctx context.Context) {
	cfg := c.deps.Config

	cfg.DigitalZoom.Observe(ctx, func(factor float64) {
		c.react(cfg.DigitalZoom, func() error { return c.applyZoom(factor) })
	})
	cfg.Focus.Observe(ctx, func(m camconfig.FocusMode) {
		c.react(cfg.Focus, func() error { return c.applyFocus(m) })
	})
	cfg.WhiteBalance.Observe(ctx, func(m camconfig.WhiteBalanceMode) {
		c.react(cfg.WhiteBalance, func() error { return c.applyWhiteBalance(m) })
	})
	cfg.OpticalStabilization.Observe(ctx, func(on bool) {
		c.react(cfg.OpticalStabilization, func() error { return c.applyStabilization(on) })
	})
	cfg.JPEGQuality.Observe(ctx, func(q int) {
		c.react(cfg.JPEGQuality, func() error { return c.applyJPEGQuality(q) })
	})
	cfg.Flash.Observe(ctx, func(m camconfig.FlashMode) {
		c.react(cfg.Flash, func() error { return c.applyFlash(m) })
	})
}

// setControl writes a device control, clamped to its advertised range. With
// the device closed this is a no-op: Start re-applies the whole store.
func (c *v4l2Camera) setControl(id v4l2.CtrlID, name string, value int32) error {
	ctrl, ok := c.info.Controls[id]
	if !ok {
		return fmt.Errorf("%s: %w by %s", name, ErrUnsupportedSetting, c.info.Path)
	}
	if value < ctrl.Min {
		value = ctrl.Min
	}
	if value > ctrl.Max {
		value = ctrl.Max
	}
	if c.stream == nil {
		return nil
	}
	if err := c.stream.dev.SetControlValue(id, v4l2.CtrlValue(value)); err != nil {
		return fmt.Errorf("failed to set %s to %d: %w", name, value, err)
	}
	return nil
}

// applyZoom maps the zoom factor onto the absolute zoom control, with 1.0 at
// the control minimum and MaxDigitalZoom at its maximum.
func (c *v4l2Camera) applyZoom(factor float64) error {
	ctrl, ok := c.info.Controls[devices.CtrlZoomAbsolute]
	if !ok {
		if factor == camconfig.DefaultDigitalZoom {
			return nil
		}
		return fmt.Errorf("digital zoom: %w by %s", ErrUnsupportedSetting, c.info.Path)
	}
	maxZoom := c.info.MaxZoom()
	if factor < 1.0 || factor > maxZoom {
		return fmt.Errorf("zoom factor %.2f outside [1.0, %.2f]", factor, maxZoom)
	}
	span := float64(ctrl.Max - ctrl.Min)
	value := float64(ctrl.Min)
	if maxZoom > 1.0 {
		value += (factor - 1.0) / (maxZoom - 1.0) * span
	}
	return c.setControl(devices.CtrlZoomAbsolute, "zoom", int32(value))
}

func (c *v4l2Camera) applyFocus(m camconfig.FocusMode) error {
	// V4L2 has no distinct single-shot vs continuous AF control; both
	// auto modes map to autofocus on.
	auto := int32(1)
	if m == camconfig.FocusManual {
		auto = 0
	}
	return c.setControl(devices.CtrlFocusAuto, "autofocus", auto)
}

func (c *v4l2Camera) applyWhiteBalance(m camconfig.WhiteBalanceMode) error {
	if m == camconfig.WhiteBalanceAuto {
		return c.setControl(devices.CtrlAutoWhiteBalance, "auto white balance", 1)
	}
	if err := c.setControl(devices.CtrlAutoWhiteBalance, "auto white balance", 0); err != nil {
		return err
	}
	var kelvin int32
	switch m {
	case camconfig.WhiteBalanceOff:
		return nil
	case camconfig.WhiteBalanceIncandescent:
		kelvin = kelvinIncandescent
	case camconfig.WhiteBalanceFluorescent:
		kelvin = kelvinFluorescent
	case camconfig.WhiteBalanceDaylight:
		kelvin = kelvinDaylight
	case camconfig.WhiteBalanceCloudy:
		kelvin = kelvinCloudy
	}
	return c.setControl(devices.CtrlWhiteBalanceTemp, "white balance temperature", kelvin)
}

func (c *v4l2Camera) applyStabilization(on bool) error {
	if !c.info.HasControl(devices.CtrlImageStabilization) && !on {
		return nil
	}
	value := int32(0)
	if on {
		value = 1
	}
	return c.setControl(devices.CtrlImageStabilization, "image stabilization", value)
}

func (c *v4l2Camera) applyJPEGQuality(quality int) error {
	if quality < 0 || quality > 100 {
		return fmt.Errorf("JPEG quality %d outside [0, 100]", quality)
	}
	if !c.info.HasControl(devices.CtrlJPEGQuality) && quality == camconfig.DefaultJPEGQuality {
		return nil
	}
	return c.setControl(devices.CtrlJPEGQuality, "JPEG compression quality", int32(quality))
}

func (c *v4l2Camera) applyFlash(m camconfig.FlashMode) error {
	var value int32
	switch m {
	case camconfig.FlashOff:
		if !c.info.HasControl(devices.CtrlFlashLEDMode) {
			return nil
		}
		value = flashLEDModeNone
	case camconfig.FlashOn:
		value = flashLEDModeFlash
	case camconfig.FlashTorch:
		value = flashLEDModeTorch
	default:
		return fmt.Errorf("flash mode %s: %w by %s backend", m, ErrUnsupportedSetting, c.gen)
	}
	return c.setControl(devices.CtrlFlashLEDMode, "flash LED mode", value)
}
