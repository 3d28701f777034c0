package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

type OwnerKind int

const (
	OwnerUnknown OwnerKind = iota
	OwnerFlag              // "isOwner": true|false, already resolved by the server
	OwnerName              // "owner": "alice" or "owner": {"username": "alice"}
)

// Owner is the normalized owner designation of a reminder.
type Owner struct {
	Kind     OwnerKind
	Flag     bool
	Username string
}

// Is reports whether username owns the reminder.
func (o Owner) Is(username string) bool {
	switch o.Kind {
	case OwnerFlag:
		return o.Flag
	case OwnerName:
		return username != "" && o.Username == username
	default:
		return false
	}
}

type Reminder struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description,omitempty"`
	ReminderDate string  `json:"reminderDate"`
	ReminderTime *string `json:"reminderTime"`
	AllDay       bool    `json:"allDay"`
	Color        string  `json:"color,omitempty"`
	Participants []User  `json:"participants"`
	Owner        Owner   `json:"-"`
}

// UnmarshalJSON accepts the three owner encodings the service has used
// and folds them into Owner.
func (r *Reminder) UnmarshalJSON(data []byte) error {
	type plain Reminder
	var raw struct {
		plain
		IsOwner *bool           `json:"isOwner"`
		OwnerV  json.RawMessage `json:"owner"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Reminder(raw.plain)

	owner, err := decodeOwner(raw.IsOwner, raw.OwnerV)
	if err != nil {
		return fmt.Errorf("reminder %d: %w", r.ID, err)
	}
	r.Owner = owner
	return nil
}

// decodeOwner ORs the encodings: a false flag still lets a matching owner
// name through.
func decodeOwner(flag *bool, raw json.RawMessage) (Owner, error) {
	noName := len(raw) == 0 || string(raw) == "null"
	if flag != nil && (*flag || noName) {
		return Owner{Kind: OwnerFlag, Flag: *flag}, nil
	}
	if noName {
		return Owner{}, nil
	}

	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return Owner{Kind: OwnerName, Username: name}, nil
	}

	var obj struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Owner{}, fmt.Errorf("decode owner: %w", err)
	}
	return Owner{Kind: OwnerName, Username: obj.Username}, nil
}

func (r *Reminder) IsOwner(username string) bool {
	return r.Owner.Is(username)
}

func (r *Reminder) IsShared() bool {
	return len(r.Participants) > 1
}

func (r *Reminder) HasParticipant(username string) bool {
	for _, p := range r.Participants {
		if p.Username == username {
			return true
		}
	}
	return false
}

func (r *Reminder) ParticipantNames() []string {
	return Usernames(r.Participants)
}

// ColorOrDefault returns the reminder color, falling back to the accent color.
func (r *Reminder) ColorOrDefault() string {
	if r.Color == "" {
		return DefaultColor
	}
	return r.Color
}

// TimeShort returns the time as HH:MM, or "" for all-day reminders.
func (r *Reminder) TimeShort() string {
	if r.ReminderTime == nil {
		return ""
	}
	t := *r.ReminderTime
	if len(t) > 5 {
		t = t[:5]
	}
	return t
}

func (r *Reminder) Day() (time.Time, error) {
	return time.Parse(DateLayout, r.ReminderDate)
}

// FormatDate renders the reminder date the way the Czech UI shows it.
func (r *Reminder) FormatDate() string {
	d, err := r.Day()
	if err != nil {
		return r.ReminderDate
	}
	return FormatDay(d)
}

// Input converts the reminder into a full-replace payload.
func (r *Reminder) Input() ReminderInput {
	return ReminderInput{
		Title:       r.Title,
		Description: r.Description,
		Date:        r.ReminderDate,
		Time:        r.ReminderTime,
		AllDay:      r.AllDay,
		Usernames:   r.ParticipantNames(),
		Color:       r.Color,
	}
}

// ReminderInput is the body of POST /reminders and PUT /reminders/{id}.
type ReminderInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Date        string   `json:"date"`
	Time        *string  `json:"time"`
	AllDay      bool     `json:"allDay"`
	Usernames   []string `json:"usernames"`
	Color       string   `json:"color"`
}

func FormatDay(d time.Time) string {
	return fmt.Sprintf("%d. %d. %d", d.Day(), int(d.Month()), d.Year())
}
