package app

import (
	"image/color"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// accentTheme paints primary and hyperlink colours with the configured accent.
type accentTheme struct {
	fyne.Theme
	accent color.Color
}

func newAccentTheme(hex string) fyne.Theme {
	c, ok := parseHexColor(hex)
	if !ok {
		return theme.DefaultTheme()
	}
	return &accentTheme{Theme: theme.DefaultTheme(), accent: c}
}

func (t *accentTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary, theme.ColorNameHyperlink:
		return t.accent
	}
	return t.Theme.Color(name, variant)
}

// parseHexColor accepts #RGB and #RRGGBB.
func parseHexColor(s string) (color.NRGBA, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.NRGBA{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, true
}
