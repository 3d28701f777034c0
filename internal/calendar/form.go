package calendar

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tazhate/kalendarbot/internal/domain"
)

var (
	ErrLocked      = errors.New("form is read-only")
	ErrInvalidTime = errors.New("invalid time")
	ErrBadColor    = errors.New("invalid color")
)

type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

// Form is the create/edit dialog of one reminder.
type Form struct {
	Token       string
	Mode        Mode
	ReminderID  int64
	Title       string
	Description string
	Date        string
	Time        string // HH:MM, empty when all-day
	AllDay      bool
	Color       string
	Selected    []string // participants other than the current user
	Search      string
	Owner       bool

	username string
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// SmartTime is the next full hour after now, "23:xx" rolls over to "00:00".
func SmartTime(now time.Time) string {
	return fmt.Sprintf("%02d:00", (now.Hour()+1)%24)
}

// NewCreateForm opens an empty form on date.
func NewCreateForm(date, username string, now time.Time) *Form {
	return &Form{
		Token:    newToken(),
		Mode:     ModeCreate,
		Date:     date,
		Time:     SmartTime(now),
		Color:    domain.Palette()[0].Color,
		Owner:    true,
		username: username,
	}
}

// NewEditForm opens r for editing; ownership is decided once here.
func NewEditForm(r *domain.Reminder, username string) *Form {
	f := &Form{
		Token:       newToken(),
		Mode:        ModeEdit,
		ReminderID:  r.ID,
		Title:       r.Title,
		Description: r.Description,
		Date:        r.ReminderDate,
		Time:        r.TimeShort(),
		AllDay:      r.AllDay,
		Color:       r.ColorOrDefault(),
		Owner:       r.IsOwner(username),
		username:    username,
	}
	for _, name := range r.ParticipantNames() {
		if name != username {
			f.Selected = append(f.Selected, name)
		}
	}
	return f
}

func (f *Form) Username() string {
	return f.username
}

// Locked reports a non-owner looking at someone else's reminder.
func (f *Form) Locked() bool {
	return f.Mode == ModeEdit && !f.Owner
}

// CanSave is true iff the trimmed title is not empty.
func (f *Form) CanSave() bool {
	return strings.TrimSpace(f.Title) != ""
}

// ShowSave hides the save control from non-owners entirely.
func (f *Form) ShowSave() bool {
	return !f.Locked()
}

func (f *Form) SetTitle(s string) error {
	if f.Locked() {
		return ErrLocked
	}
	f.Title = s
	return nil
}

func (f *Form) SetDescription(s string) error {
	if f.Locked() {
		return ErrLocked
	}
	f.Description = s
	return nil
}

var clockTime = regexp.MustCompile(`^([01]?\d|2[0-3])[:.]([0-5]\d)$`)

// SetTime accepts "H:MM", "HH:MM" or "HH.MM".
func (f *Form) SetTime(s string) error {
	if f.Locked() {
		return ErrLocked
	}
	if f.AllDay {
		return ErrInvalidTime
	}
	m := clockTime.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return ErrInvalidTime
	}
	h, _ := strconv.Atoi(m[1])
	f.Time = fmt.Sprintf("%02d:%s", h, m[2])
	return nil
}

// SetAllDay switching on clears the time.
func (f *Form) SetAllDay(on bool) error {
	if f.Locked() {
		return ErrLocked
	}
	f.AllDay = on
	if on {
		f.Time = ""
	}
	return nil
}

func (f *Form) SetColor(c string) error {
	if f.Locked() {
		return ErrLocked
	}
	if !domain.IsHexColor(c) {
		return ErrBadColor
	}
	f.Color = strings.ToUpper(c)
	return nil
}

func (f *Form) SetSearch(s string) error {
	if f.Locked() {
		return ErrLocked
	}
	f.Search = strings.TrimSpace(s)
	return nil
}

func (f *Form) IsSelected(name string) bool {
	for _, s := range f.Selected {
		if s == name {
			return true
		}
	}
	return false
}

// Toggle adds or removes a participant. The current user is never toggled.
func (f *Form) Toggle(name string) error {
	if f.Locked() {
		return ErrLocked
	}
	if name == f.username {
		return nil
	}
	for i, s := range f.Selected {
		if s == name {
			f.Selected = append(f.Selected[:i:i], f.Selected[i+1:]...)
			return nil
		}
	}
	f.Selected = append(f.Selected, name)
	return nil
}

// Candidates lists the users the picker offers, filtered by Search.
func (f *Form) Candidates(users []domain.User) []domain.User {
	return FilterUsers(users, f.username, f.Search)
}

// Payload builds the save body. The current user is always a participant.
func (f *Form) Payload() domain.ReminderInput {
	in := domain.ReminderInput{
		Title:       strings.TrimSpace(f.Title),
		Description: strings.TrimSpace(f.Description),
		Date:        f.Date,
		AllDay:      f.AllDay,
		Color:       f.Color,
	}
	if !f.AllDay && f.Time != "" {
		t := f.Time + ":00"
		in.Time = &t
	}
	names := make([]string, 0, len(f.Selected)+1)
	names = append(names, f.Selected...)
	if !f.IsSelected(f.username) {
		names = append(names, f.username)
	}
	in.Usernames = names
	return in
}
