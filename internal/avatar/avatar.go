// Package avatar derives deterministic badge colors and initials for contacts.
// The colors are presentation only and never persisted.
package avatar

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf16"

	colorful "github.com/lucasb-eyer/go-colorful"
)

const (
	saturation = 0.65
	lightness  = 0.45
)

// Hash folds seed into a 32-bit value: hash = c + (hash<<5 - hash) for each
// UTF-16 code unit c, wrapping on overflow.
func Hash(seed string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(seed)) {
		h = int32(c) + (h<<5 - h)
	}
	return h
}

// Hue maps seed to a hue in [0, 360).
func Hue(seed string) int {
	h := int64(Hash(seed))
	if h < 0 {
		h = -h
	}
	return int(h % 360)
}

// Seed picks the color seed for a contact: email, then first name, then "".
func Seed(email, firstName string) string {
	if email != "" {
		return email
	}
	return firstName
}

// HSL is a color with fixed saturation and lightness.
type HSL struct {
	Hue int
}

// Color returns the badge color for seed.
func Color(seed string) HSL {
	return HSL{Hue: Hue(seed)}
}

// String renders the CSS form, e.g. "hsl(212, 65%, 45%)".
func (c HSL) String() string {
	return fmt.Sprintf("hsl(%d, %d%%, %d%%)", c.Hue, int(saturation*100), int(lightness*100))
}

// Hex renders the color as #rrggbb for terminal styling.
func (c HSL) Hex() string {
	return colorful.Hsl(float64(c.Hue), saturation, lightness).Clamped().Hex()
}

// Initials returns the upper-cased first letters of first and last name.
func Initials(firstName, lastName string) string {
	var b strings.Builder
	for _, s := range []string{firstName, lastName} {
		for _, r := range s {
			b.WriteRune(unicode.ToUpper(r))
			break
		}
	}
	return b.String()
}
