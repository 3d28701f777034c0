package domain

import "time"

// StoredCookie is a cookie the kalendar service set for a chat.
type StoredCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// StoredSession is the persisted login of one Telegram chat.
type StoredSession struct {
	ChatID    int64
	Username  string
	Cookies   []StoredCookie
	UpdatedAt time.Time
}

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func (t Theme) IsDark() bool {
	return t == ThemeDark
}

func (t Theme) Toggled() Theme {
	if t.IsDark() {
		return ThemeLight
	}
	return ThemeDark
}

// ToggleIcon is the glyph of the theme switch: the sun leads out of the dark.
func (t Theme) ToggleIcon() string {
	if t.IsDark() {
		return "☀️"
	}
	return "🌙"
}

// TodayMark frames today's day number in the grid.
func (t Theme) TodayMark(day string) string {
	if t.IsDark() {
		return "【" + day + "】"
	}
	return "[" + day + "]"
}

// Dot marks a day that has reminders.
func (t Theme) Dot() string {
	if t.IsDark() {
		return "•"
	}
	return "·"
}

// Blank fills the cells before the first day of the month.
func (t Theme) Blank() string {
	if t.IsDark() {
		return "▪"
	}
	return "⠀"
}

// Preferences are the per-chat client settings.
type Preferences struct {
	ChatID int64
	Theme  Theme
	Digest bool
}
