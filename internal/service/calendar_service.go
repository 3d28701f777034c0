package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/tazhate/kalendarbot/internal/calendar"
	"github.com/tazhate/kalendarbot/internal/domain"
	"github.com/tazhate/kalendarbot/internal/session"
)

var (
	ErrNotFound     = errors.New("reminder not found")
	ErrEmptyTitle   = errors.New("empty title")
	ErrSaveFailed   = errors.New("save failed")
	ErrMoveFailed   = errors.New("move failed")
	ErrDeleteFailed = errors.New("delete failed")
	ErrLeaveFailed  = errors.New("leave failed")
	ErrNoForm       = errors.New("no open form")
)

// CalendarService connects chat sessions, the kalendar API and the render
// model.
type CalendarService struct {
	timezone *time.Location
	now      func() time.Time
}

func NewCalendarService(tz *time.Location) *CalendarService {
	if tz == nil {
		tz = time.UTC
	}
	return &CalendarService{
		timezone: tz,
		now:      func() time.Time { return time.Now().In(tz) },
	}
}

func (c *CalendarService) Now() time.Time {
	return c.now()
}

// Render draws the session's month. ErrStaleRender means a newer render
// owns the screen.
func (c *CalendarService) Render(ctx context.Context, s *session.Session) (*calendar.Grid, error) {
	s.Lock()
	month := s.Month
	s.Unlock()
	return s.Board.Render(ctx, month, s.Username(), c.now(), s.API)
}

// ShiftMonth moves the displayed month by delta months; zero goes to today.
func (c *CalendarService) ShiftMonth(s *session.Session, delta int) calendar.Month {
	s.Lock()
	defer s.Unlock()
	switch {
	case delta == 0:
		s.Month = calendar.MonthOf(c.now())
	case delta > 0:
		for i := 0; i < delta; i++ {
			s.Month = s.Month.Next()
		}
	default:
		for i := 0; i > delta; i-- {
			s.Month = s.Month.Prev()
		}
	}
	return s.Month
}

func (c *CalendarService) SetMonth(s *session.Session, m calendar.Month) {
	s.Lock()
	s.Month = m
	s.Unlock()
}

// Day lists the user's reminders of a date in display order.
func (c *CalendarService) Day(ctx context.Context, s *session.Session, date string) []domain.Reminder {
	return calendar.DayList(s.API.RemindersOn(ctx, date), s.Username())
}

// Today is Day for the current date.
func (c *CalendarService) Today(ctx context.Context, s *session.Session) []domain.Reminder {
	return c.Day(ctx, s, c.now().Format(domain.DateLayout))
}

// Find loads a reminder fresh from the service so ownership is never judged
// on stale data.
func (c *CalendarService) Find(ctx context.Context, s *session.Session, date string, id int64) (*domain.Reminder, error) {
	for _, r := range s.API.RemindersOn(ctx, date) {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

// OpenCreate opens an empty form on date and makes it the chat's form.
func (c *CalendarService) OpenCreate(s *session.Session, date string) *calendar.Form {
	f := calendar.NewCreateForm(date, s.Username(), c.now())
	s.Lock()
	s.Form = f
	s.Awaiting = session.InputTitle
	s.Unlock()
	return f
}

func (c *CalendarService) OpenEdit(ctx context.Context, s *session.Session, date string, id int64) (*calendar.Form, error) {
	r, err := c.Find(ctx, s, date, id)
	if err != nil {
		return nil, err
	}
	f := calendar.NewEditForm(r, s.Username())
	s.Lock()
	s.Form = f
	s.Awaiting = session.InputNone
	s.Unlock()
	return f, nil
}

// CurrentForm returns the open form if its token matches.
func (c *CalendarService) CurrentForm(s *session.Session, token string) (*calendar.Form, error) {
	s.Lock()
	defer s.Unlock()
	if s.Form == nil || (token != "" && s.Form.Token != token) {
		return nil, ErrNoForm
	}
	return s.Form, nil
}

func (c *CalendarService) CloseForm(s *session.Session) {
	s.Lock()
	s.Form = nil
	s.FormMsgID = 0
	s.Awaiting = session.InputNone
	s.Unlock()
}

// Save creates or updates the reminder of f.
func (c *CalendarService) Save(ctx context.Context, s *session.Session, f *calendar.Form) error {
	if f.Locked() {
		return calendar.ErrLocked
	}
	s.Lock()
	valid := f.CanSave()
	in := f.Payload()
	s.Unlock()
	if !valid {
		return ErrEmptyTitle
	}

	var ok bool
	if f.Mode == calendar.ModeEdit {
		ok = s.API.UpdateReminder(ctx, f.ReminderID, in)
	} else {
		ok = s.API.CreateReminder(ctx, in)
	}
	if !ok {
		return ErrSaveFailed
	}
	return nil
}

// StartMove remembers the reminder picked up for a move. Only owners may
// pick a reminder up.
func (c *CalendarService) StartMove(ctx context.Context, s *session.Session, date string, id int64) (*domain.Reminder, error) {
	r, err := c.Find(ctx, s, date, id)
	if err != nil {
		return nil, err
	}
	if !r.IsOwner(s.Username()) {
		return nil, calendar.ErrNotOwner
	}
	s.Lock()
	s.Moving = r
	s.Unlock()
	return r, nil
}

// Moving returns the reminder being moved, if any.
func (c *CalendarService) Moving(s *session.Session) *domain.Reminder {
	s.Lock()
	defer s.Unlock()
	return s.Moving
}

func (c *CalendarService) CancelMove(s *session.Session) {
	s.Lock()
	s.Moving = nil
	s.Unlock()
}

// Drop moves the picked up reminder to date. Dropping it on its own date
// sends nothing and returns calendar.ErrSameDate.
func (c *CalendarService) Drop(ctx context.Context, s *session.Session, date string) (*domain.Reminder, error) {
	s.Lock()
	r := s.Moving
	s.Moving = nil
	s.Unlock()
	if r == nil {
		return nil, ErrNotFound
	}
	return r, c.Move(ctx, s, r, date)
}

// Move sends a full update of r with only the date changed.
func (c *CalendarService) Move(ctx context.Context, s *session.Session, r *domain.Reminder, date string) error {
	in, err := calendar.MoveInput(r, s.Username(), date)
	if err != nil {
		return err
	}
	if !s.API.UpdateReminder(ctx, r.ID, in) {
		return ErrMoveFailed
	}
	return nil
}

// PrepareDelete resolves what a delete press on the reminder does.
func (c *CalendarService) PrepareDelete(ctx context.Context, s *session.Session, date string, id int64) (*domain.Reminder, calendar.DeleteAction, error) {
	r, err := c.Find(ctx, s, date, id)
	if err != nil {
		return nil, calendar.DeleteOwn, err
	}
	return r, calendar.ResolveDelete(r, s.Username()), nil
}

// Delete carries out a confirmed delete: a hard delete for owners and sole
// participants, a leave for everyone else.
func (c *CalendarService) Delete(ctx context.Context, s *session.Session, date string, id int64) (calendar.DeleteAction, error) {
	r, action, err := c.PrepareDelete(ctx, s, date, id)
	if err != nil {
		return action, err
	}

	if action == calendar.Leave {
		if !s.API.UpdateReminder(ctx, r.ID, calendar.LeaveInput(r, s.Username())) {
			return action, ErrLeaveFailed
		}
		return action, nil
	}
	if !s.API.DeleteReminder(ctx, r.ID) {
		return action, ErrDeleteFailed
	}
	return action, nil
}

// OpenAll refetches every reminder of the user and resets both filters.
func (c *CalendarService) OpenAll(ctx context.Context, s *session.Session) []domain.Reminder {
	all := s.API.AllReminders(ctx)
	s.Lock()
	defer s.Unlock()
	s.Reminders = all
	s.Search = ""
	s.Color = domain.ColorAll
	return calendar.FilterReminders(s.Reminders, s.Search, s.Color)
}

// Filtered re-derives the list from the cached reminders.
func (c *CalendarService) Filtered(s *session.Session) []domain.Reminder {
	s.Lock()
	defer s.Unlock()
	return calendar.FilterReminders(s.Reminders, s.Search, s.Color)
}

func (c *CalendarService) SetSearch(s *session.Session, query string) []domain.Reminder {
	s.Lock()
	s.Search = query
	s.Awaiting = session.InputNone
	s.Unlock()
	return c.Filtered(s)
}

func (c *CalendarService) SetColorFilter(s *session.Session, color string) []domain.Reminder {
	s.Lock()
	s.Color = color
	s.Unlock()
	return c.Filtered(s)
}

// FormatReminder is the one-line form used in lists and the digest.
func FormatReminder(r *domain.Reminder) string {
	when := "celý den"
	if !r.AllDay && r.TimeShort() != "" {
		when = r.TimeShort()
	}
	line := fmt.Sprintf("%s <b>%s</b> · %s", domain.ColorEmoji(r.ColorOrDefault()), html.EscapeString(r.Title), when)
	if r.IsShared() {
		line += fmt.Sprintf(" · 👥 %d", len(r.Participants))
	}
	return line
}
