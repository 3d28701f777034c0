package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tazhate/kalendarbot/internal/clients/caldav"
	"github.com/tazhate/kalendarbot/internal/domain"
	"github.com/tazhate/kalendarbot/internal/session"
)

var ErrCalDAVNotConfigured = errors.New("CalDAV not configured")

const (
	uidPrefix = "kalendar-"
	uidSuffix = "@kalendarbot"
)

// CalDAVPusher is the part of the CalDAV client a sync needs.
type CalDAVPusher interface {
	IsConfigured() bool
	CalendarPath(ctx context.Context) (string, error)
	ListUIDs(ctx context.Context, calendarPath string, from, to time.Time) ([]string, error)
	PutEvent(ctx context.Context, calendarPath string, event *caldav.Event) error
	DeleteEvent(ctx context.Context, calendarPath, uid string) error
}

// ExportService turns a user's reminders into iCalendar data.
type ExportService struct {
	caldav   CalDAVPusher
	timezone *time.Location
}

func NewExportService(client CalDAVPusher, tz *time.Location) *ExportService {
	if tz == nil {
		tz = time.UTC
	}
	return &ExportService{caldav: client, timezone: tz}
}

// ReminderUID is the stable iCalendar UID of a reminder as exported for
// username. Several users may sync into one calendar.
func ReminderUID(id int64, username string) string {
	return fmt.Sprintf("%s%d.%s%s", uidPrefix, id, username, uidSuffix)
}

// uidOwner returns the username encoded in a UID made by ReminderUID.
func uidOwner(uid string) (string, bool) {
	rest, ok := strings.CutPrefix(uid, uidPrefix)
	if !ok {
		return "", false
	}
	rest, ok = strings.CutSuffix(rest, uidSuffix)
	if !ok {
		return "", false
	}
	id, name, ok := strings.Cut(rest, ".")
	if !ok || id == "" || strings.Trim(id, "0123456789") != "" {
		return "", false
	}
	return name, true
}

// ToEvent maps a reminder to a calendar event. Timed reminders last an
// hour, all-day ones the whole day.
func (e *ExportService) ToEvent(r *domain.Reminder, username string) (*caldav.Event, error) {
	day, err := time.ParseInLocation(domain.DateLayout, r.ReminderDate, e.timezone)
	if err != nil {
		return nil, fmt.Errorf("reminder %d date: %w", r.ID, err)
	}

	event := &caldav.Event{
		UID:         ReminderUID(r.ID, username),
		Summary:     r.Title,
		Description: r.Description,
		Category:    domain.ColorLabel(r.ColorOrDefault()),
	}
	if r.IsShared() {
		who := "Účastníci: " + strings.Join(r.ParticipantNames(), ", ")
		if event.Description != "" {
			event.Description += "\n\n"
		}
		event.Description += who
	}

	if r.AllDay || r.ReminderTime == nil {
		event.AllDay = true
		event.StartTime = day
		event.EndTime = day.AddDate(0, 0, 1)
		return event, nil
	}

	clock, err := time.Parse(domain.TimeLayout, *r.ReminderTime)
	if err != nil {
		return nil, fmt.Errorf("reminder %d time: %w", r.ID, err)
	}
	event.StartTime = time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, e.timezone)
	event.EndTime = event.StartTime.Add(time.Hour)
	return event, nil
}

func (e *ExportService) events(reminders []domain.Reminder, username string) ([]*caldav.Event, []error) {
	var events []*caldav.Event
	var errs []error
	for i := range reminders {
		ev, err := e.ToEvent(&reminders[i], username)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		events = append(events, ev)
	}
	return events, errs
}

// ICS renders reminders as one .ics file. Reminders with malformed dates
// are skipped.
func (e *ExportService) ICS(reminders []domain.Reminder, username string) ([]byte, error) {
	events, _ := e.events(reminders, username)
	return caldav.Encode(caldav.NewCalendar(events...))
}

// Export fetches every reminder of the session user as .ics data.
func (e *ExportService) Export(ctx context.Context, s *session.Session) ([]byte, int, error) {
	reminders := s.API.AllReminders(ctx)
	data, err := e.ICS(reminders, s.Username())
	if err != nil {
		return nil, 0, err
	}
	return data, len(reminders), nil
}

func (e *ExportService) CalDAVConfigured() bool {
	return e.caldav != nil && e.caldav.IsConfigured()
}

// SyncResult contains sync operation results
type SyncResult struct {
	Pushed  int
	Deleted int
	Errors  []string
}

// Sync mirrors the user's reminders into the CalDAV calendar. Every reminder
// is put; events this bot created earlier for the same user whose reminder
// is gone are removed.
func (e *ExportService) Sync(ctx context.Context, s *session.Session) (*SyncResult, error) {
	if !e.CalDAVConfigured() {
		return nil, ErrCalDAVNotConfigured
	}

	path, err := e.caldav.CalendarPath(ctx)
	if err != nil {
		return nil, fmt.Errorf("calendar path: %w", err)
	}

	username := s.Username()
	events, errs := e.events(s.API.AllReminders(ctx), username)
	result := &SyncResult{}
	for _, err := range errs {
		result.Errors = append(result.Errors, err.Error())
	}

	seen := make(map[string]bool, len(events))
	from := time.Now().In(e.timezone)
	to := from
	for _, ev := range events {
		seen[ev.UID] = true
		if ev.StartTime.Before(from) {
			from = ev.StartTime
		}
		if ev.EndTime.After(to) {
			to = ev.EndTime
		}
		if err := e.caldav.PutEvent(ctx, path, ev); err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Pushed++
	}

	// Look a year around today and the pushed range for leftovers of
	// deleted reminders, also when nothing is left to push.
	uids, err := e.caldav.ListUIDs(ctx, path, from.AddDate(-1, 0, 0), to.AddDate(1, 0, 0))
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result, nil
	}
	for _, uid := range uids {
		owner, ok := uidOwner(uid)
		if !ok || owner != username || seen[uid] {
			continue
		}
		if err := e.caldav.DeleteEvent(ctx, path, uid); err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Deleted++
	}
	return result, nil
}
