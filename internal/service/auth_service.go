package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/tazhate/kalendarbot/internal/domain"
	"github.com/tazhate/kalendarbot/internal/session"
)

var (
	ErrEmptyCredentials = errors.New("empty credentials")
	ErrBadCredentials   = errors.New("bad credentials")
	ErrUserExists       = errors.New("user exists")
)

// AuthService drives login, registration and logout of a chat.
type AuthService struct {
	sessions *session.Manager
}

func NewAuthService(sessions *session.Manager) *AuthService {
	return &AuthService{sessions: sessions}
}

// ParseCredentials splits "name password". Extra words stay in the password.
func ParseCredentials(text string) (string, string) {
	fields := strings.Fields(text)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}

// Login authenticates the chat. Any failure of the service is reported as
// ErrBadCredentials.
func (a *AuthService) Login(ctx context.Context, s *session.Session, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrEmptyCredentials
	}

	user := s.API.Login(ctx, username, password)
	if user == nil {
		return nil, ErrBadCredentials
	}

	s.Lock()
	s.User = user
	s.Awaiting = session.InputNone
	s.Unlock()

	if err := a.sessions.Persist(s); err != nil {
		log.Printf("Error persisting session %d: %v", s.ChatID, err)
	}
	return user, nil
}

// Register creates the account and logs straight in with it.
func (a *AuthService) Register(ctx context.Context, s *session.Session, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrEmptyCredentials
	}

	if !s.API.Register(ctx, username, password) {
		return nil, ErrUserExists
	}
	return a.Login(ctx, s, username, password)
}

// Logout notifies the service and starts the chat over from scratch.
func (a *AuthService) Logout(ctx context.Context, s *session.Session) *session.Session {
	s.API.Logout(ctx)
	fresh, err := a.sessions.Reset(s.ChatID)
	if err != nil {
		log.Printf("Error clearing session %d: %v", s.ChatID, err)
	}
	return fresh
}

// ToggleScreen flips between the login and register screens.
func (a *AuthService) ToggleScreen(s *session.Session) session.AuthScreen {
	s.Lock()
	defer s.Unlock()
	if s.Screen == session.ScreenLogin {
		s.Screen = session.ScreenRegister
	} else {
		s.Screen = session.ScreenLogin
	}
	s.Awaiting = session.InputCredentials
	return s.Screen
}
