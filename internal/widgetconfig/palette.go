package widgetconfig

import (
	"fmt"
	"strconv"
)

// RGB is one theme colour.
type RGB struct {
	R, G, B int
}

func (c RGB) String() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
}

// Palette is the primary colour with its light and dark variants.
type Palette struct {
	Primary string `json:"primary"`
	Light   string `json:"light"`
	Dark    string `json:"dark"`
}

// Palette derives the theme variants (+/-20 per channel). ok is false when
// the theme colour is not #rrggbb.
func (c Config) Palette() (Palette, bool) {
	rgb, ok := parseHex(c.ThemeColor)
	if !ok {
		return Palette{Primary: c.ThemeColor}, false
	}
	light := RGB{R: clamp(rgb.R + 20), G: clamp(rgb.G + 20), B: clamp(rgb.B + 20)}
	dark := RGB{R: clamp(rgb.R - 20), G: clamp(rgb.G - 20), B: clamp(rgb.B - 20)}
	return Palette{Primary: c.ThemeColor, Light: light.String(), Dark: dark.String()}, true
}

func parseHex(hex string) (RGB, bool) {
	if len(hex) == 7 && hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return RGB{}, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGB{}, false
	}
	return RGB{R: int(v >> 16 & 0xff), G: int(v >> 8 & 0xff), B: int(v & 0xff)}, true
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
