package camconfig

import (
	"fmt"
	"strconv"
	"strings"
)

// Ratio is an aspect ratio expressed as width:height.
type Ratio struct {
	Width  int
	Height int
}

// Common preview aspect ratios.
var (
	RatioStandard = Ratio{4, 3}
	RatioWide     = Ratio{16, 9}
)

// ParseRatio parses "16:9" style strings.
func ParseRatio(s string) (Ratio, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return Ratio{}, fmt.Errorf("invalid aspect ratio %q", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Ratio{}, fmt.Errorf("invalid aspect ratio %q: %w", s, err)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Ratio{}, fmt.Errorf("invalid aspect ratio %q: %w", s, err)
	}
	r := Ratio{Width: w, Height: h}
	if !r.Valid() {
		return Ratio{}, fmt.Errorf("invalid aspect ratio %q", s)
	}
	return r, nil
}

// RatioOf reduces a frame size to its aspect ratio.
func RatioOf(width, height int) Ratio {
	if width <= 0 || height <= 0 {
		return Ratio{}
	}
	d := gcd(width, height)
	return Ratio{Width: width / d, Height: height / d}
}

// Valid reports whether both terms are positive.
func (r Ratio) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// Float returns width/height.
func (r Ratio) Float() float64 {
	if r.Height == 0 {
		return 0
	}
	return float64(r.Width) / float64(r.Height)
}

// Matches reports whether a frame size reduces to this ratio.
func (r Ratio) Matches(width, height int) bool {
	return r.Valid() && RatioOf(width, height) == r
}

func (r Ratio) String() string {
	return fmt.Sprintf("%d:%d", r.Width, r.Height)
}

// MarshalText implements encoding.TextMarshaler so snapshots serialize
// ratios as "4:3" strings in TOML.
func (r Ratio) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Ratio) UnmarshalText(text []byte) error {
	parsed, err := ParseRatio(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
