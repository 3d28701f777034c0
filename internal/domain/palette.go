package domain

import (
	"regexp"
	"strings"
)

const (
	DefaultColor = "#007AFF"
	ColorAll     = "ALL"
)

// Category is a named color tag of the fixed palette.
type Category struct {
	Label string
	Color string
	Emoji string
}

// Categories is the filter palette; the first entry is the "all" wildcard.
var Categories = []Category{
	{Label: "Vše", Color: ColorAll, Emoji: "🌈"},
	{Label: "Práce", Color: "#007AFF", Emoji: "🔵"},
	{Label: "Osobní", Color: "#34C759", Emoji: "🟢"},
	{Label: "Důležité", Color: "#FF3B30", Emoji: "🔴"},
	{Label: "Ostatní", Color: "#FF9500", Emoji: "🟠"},
	{Label: "Zábava", Color: "#AF52DE", Emoji: "🟣"},
}

// Palette returns the selectable colors (categories without the wildcard).
func Palette() []Category {
	return Categories[1:]
}

func CategoryFor(color string) (Category, bool) {
	for _, c := range Palette() {
		if strings.EqualFold(c.Color, color) {
			return c, true
		}
	}
	return Category{}, false
}

func ColorEmoji(color string) string {
	if c, ok := CategoryFor(color); ok {
		return c.Emoji
	}
	return "⚪"
}

// ColorLabel is the palette name of a color or "Vlastní barva" for custom ones.
func ColorLabel(color string) string {
	if c, ok := CategoryFor(color); ok {
		return c.Label
	}
	return "Vlastní barva"
}

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

func IsHexColor(s string) bool {
	return hexColor.MatchString(s)
}
