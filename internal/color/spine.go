// Package color derives stable display colors for book spines.
package color

import (
	"fmt"
	"unicode/utf16"
)

// Spine saturation and lightness, as percentages.
const (
	spineSaturation = 35
	spineLightness  = 72
)

// Spine is the color of a book on the shelf.
type Spine struct {
	Hue int
}

// ForTitle returns the spine color of a title. The same title always gets the same hue.
//
// The hash walks UTF-16 code units computing h = c + (h<<5 - h), where the shift
// operates on h truncated to 32 bits and the subtraction does not. Keeping that
// shape makes hues match those produced by browsers for the same titles.
func ForTitle(title string) Spine {
	var h int64
	for _, c := range utf16.Encode([]rune(title)) {
		h = int64(c) + int64(int32(h)<<5) - h
	}
	if h < 0 {
		h = -h
	}
	return Spine{Hue: int(h % 360)}
}

// CSS returns the color as a CSS hsl() value.
func (s Spine) CSS() string {
	return fmt.Sprintf("hsl(%d, %d%%, %d%%)", s.Hue, spineSaturation, spineLightness)
}

// Hex returns the color as #RRGGBB.
func (s Spine) Hex() string {
	r, g, b := hslToRGB(float64(s.Hue), spineSaturation/100.0, spineLightness/100.0)
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}

// hslToRGB converts HSL color space to RGB.
// h: hue (0-360), s: saturation (0-1), l: lightness (0-1)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(l * 255)
		return v, v, v
	}

	h /= 360.0
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q

	r = uint8(hueToRGB(p, q, h+1.0/3.0)*255 + 0.5)
	g = uint8(hueToRGB(p, q, h)*255 + 0.5)
	b = uint8(hueToRGB(p, q, h-1.0/3.0)*255 + 0.5)
	return r, g, b
}

func hueToRGB(p, q, t float64) float64 {
	switch {
	case t < 0:
		t++
	case t > 1:
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	default:
		return p
	}
}
