package session

import (
	"context"
	"net/http"
	"sync"

	"github.com/tazhate/kalendarbot/internal/calendar"
	"github.com/tazhate/kalendarbot/internal/domain"
)

// API is the kalendar service as seen through one chat's cookie session.
type API interface {
	Register(ctx context.Context, username, password string) bool
	Login(ctx context.Context, username, password string) *domain.User
	Logout(ctx context.Context)
	CurrentUser(ctx context.Context) *domain.User
	Users(ctx context.Context) []domain.User
	RemindersOn(ctx context.Context, date string) []domain.Reminder
	AllReminders(ctx context.Context) []domain.Reminder
	CreateReminder(ctx context.Context, in domain.ReminderInput) bool
	UpdateReminder(ctx context.Context, id int64, in domain.ReminderInput) bool
	DeleteReminder(ctx context.Context, id int64) bool
}

// Checker is implemented by clients that can tell an expired session from
// a service that could not be reached.
type Checker interface {
	Me(ctx context.Context) (*domain.User, error)
}

// Input is what the next plain text message of a chat is read as.
type Input int

const (
	InputNone Input = iota
	InputCredentials
	InputTitle
	InputDescription
	InputTime
	InputColor
	InputUserSearch
	InputReminderSearch
)

// AuthScreen is the login/register toggle.
type AuthScreen int

const (
	ScreenLogin AuthScreen = iota
	ScreenRegister
)

// Session is everything kalendarbot knows about one chat. Fields below mu
// are view state and must only be touched under Lock.
type Session struct {
	ChatID int64
	API    API
	Jar    http.CookieJar
	Board  *calendar.Board

	mu sync.Mutex

	User       *domain.User
	Screen     AuthScreen
	Awaiting   Input
	Month      calendar.Month
	Form       *calendar.Form
	FormMsgID  int
	ListMsgID  int
	Moving     *domain.Reminder
	Search     string
	Color      string
	users      []domain.User
	usersReady bool
	Reminders  []domain.Reminder
}

func New(chatID int64, api API, jar http.CookieJar, fetchLimit int) *Session {
	return &Session{
		ChatID: chatID,
		API:    api,
		Jar:    jar,
		Board:  calendar.NewBoard(fetchLimit),
		Color:  domain.ColorAll,
	}
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Username returns the logged in user's name or "".
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.User == nil {
		return ""
	}
	return s.User.Username
}

func (s *Session) LoggedIn() bool {
	return s.Username() != ""
}

func (s *Session) SetUser(u *domain.User) {
	s.mu.Lock()
	s.User = u
	s.mu.Unlock()
}

// CachedUsers returns the user list loaded on first use. It is never
// refreshed for the life of the session.
func (s *Session) CachedUsers(ctx context.Context) []domain.User {
	s.mu.Lock()
	if s.usersReady {
		users := s.users
		s.mu.Unlock()
		return users
	}
	s.mu.Unlock()

	users := s.API.Users(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.usersReady && len(users) > 0 {
		s.users = users
		s.usersReady = true
	}
	return users
}
