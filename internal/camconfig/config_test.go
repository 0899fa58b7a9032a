package camconfig

import (
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
)

func TestConfig_SnapshotRoundTrip(t *testing.T) {
	cfg := New()
	cfg.AspectRatio.Set(Ratio{16, 9})
	cfg.Facing.Set(FacingFront)
	cfg.DigitalZoom.Set(2.5)
	cfg.Flash.Set(FlashTorch)
	cfg.ShutterSpeed.Set(8 * time.Millisecond)
	cfg.Mode.Set(ModeSingleCapture | ModeVideoCapture)

	snap := cfg.Snapshot()

	fresh := New()
	fresh.Apply(snap)

	if fresh.Snapshot() != snap {
		t.Errorf("Snapshot round-trip mismatch:\n got %+v\nwant %+v", fresh.Snapshot(), snap)
	}
	if got := fresh.ShutterSpeed.Get(); got != 8*time.Millisecond {
		t.Errorf("Shutter speed not restored, got %v", got)
	}
}

func TestConfig_SnapshotTOMLRoundTrip(t *testing.T) {
	cfg := New()
	cfg.AspectRatio.Set(Ratio{21, 9})
	cfg.WhiteBalance.Set(WhiteBalanceDaylight)
	snap := cfg.Snapshot()

	data, err := toml.Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var restored Snapshot
	if err := toml.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if restored != snap {
		t.Errorf("TOML round-trip mismatch:\n got %+v\nwant %+v", restored, snap)
	}
}

func TestParseRatio(t *testing.T) {
	tests := []struct {
		in      string
		want    Ratio
		wantErr bool
	}{
		{"4:3", Ratio{4, 3}, false},
		{"16:9", Ratio{16, 9}, false},
		{" 21 : 9 ", Ratio{21, 9}, false},
		{"0:3", Ratio{}, true},
		{"4:-3", Ratio{}, true},
		{"wide", Ratio{}, true},
		{"4", Ratio{}, true},
	}

	for _, tt := range tests {
		got, err := ParseRatio(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseRatio(%q) expected error, got %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRatio(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRatio(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRatio_Matches(t *testing.T) {
	if !RatioWide.Matches(1920, 1080) {
		t.Error("16:9 should match 1920x1080")
	}
	if RatioWide.Matches(640, 480) {
		t.Error("16:9 should not match 640x480")
	}
	if got := RatioOf(1280, 720); got != RatioWide {
		t.Errorf("RatioOf(1280,720) = %v, want 16:9", got)
	}
}

func TestCameraMode_Has(t *testing.T) {
	m := ModeSingleCapture | ModeContinuousFrame
	if !m.Has(ModeSingleCapture) || !m.Has(ModeContinuousFrame) {
		t.Error("Composed mode should contain both bits")
	}
	if m.Has(ModeVideoCapture) {
		t.Error("Composed mode should not contain video capture")
	}
}
