package session

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/tazhate/kalendarbot/internal/calendar"
	"github.com/tazhate/kalendarbot/internal/domain"
)

// Store persists logins across restarts.
type Store interface {
	SaveSession(ss *domain.StoredSession) error
	GetSession(chatID int64) (*domain.StoredSession, error)
	ListSessions() ([]*domain.StoredSession, error)
	DeleteSession(chatID int64) error
}

// ClientFactory builds the API client of a chat around its cookie jar.
type ClientFactory func(jar http.CookieJar) API

// Manager hands out one Session per chat.
type Manager struct {
	baseURL    *url.URL
	store      Store
	newClient  ClientFactory
	fetchLimit int
	now        func() time.Time

	mu        sync.Mutex
	sessions  map[int64]*Session
	restoring map[int64]chan struct{}
}

func NewManager(baseURL string, store Store, newClient ClientFactory, fetchLimit int, loc *time.Location) (*Manager, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Manager{
		baseURL:    u,
		store:      store,
		newClient:  newClient,
		fetchLimit: fetchLimit,
		now:        func() time.Time { return time.Now().In(loc) },
		sessions:   make(map[int64]*Session),
		restoring:  make(map[int64]chan struct{}),
	}, nil
}

// Now is the current time in the configured timezone.
func (m *Manager) Now() time.Time {
	return m.now()
}

func (m *Manager) create(chatID int64) *Session {
	jar, _ := cookiejar.New(nil)
	s := New(chatID, m.newClient(jar), jar, m.fetchLimit)
	s.Month = calendar.MonthOf(m.now())
	return s
}

// Get returns the chat's session. A chat seen for the first time since
// startup gets its stored cookies back and is checked once; concurrent
// callers wait for that check instead of seeing a half restored session.
func (m *Manager) Get(ctx context.Context, chatID int64) *Session {
	for {
		m.mu.Lock()
		if s, ok := m.sessions[chatID]; ok {
			m.mu.Unlock()
			return s
		}
		done, busy := m.restoring[chatID]
		if !busy {
			done = make(chan struct{})
			m.restoring[chatID] = done
		}
		m.mu.Unlock()

		if busy {
			<-done
			continue
		}

		s, keep := m.load(ctx, chatID)
		m.mu.Lock()
		delete(m.restoring, chatID)
		if keep {
			m.sessions[chatID] = s
		}
		m.mu.Unlock()
		close(done)
		return s
	}
}

// load builds the chat's session from its stored row. keep is false when
// the service could not be reached; the session is then not cached so the
// next update tries again.
func (m *Manager) load(ctx context.Context, chatID int64) (s *Session, keep bool) {
	s = m.create(chatID)
	stored, err := m.store.GetSession(chatID)
	if err != nil {
		log.Printf("Error loading session %d: %v", chatID, err)
		return s, true
	}
	if stored == nil {
		return s, true
	}
	return s, m.restore(ctx, s, stored) != restoreUnreachable
}

// Restore reloads and checks every stored session. Rows the service could
// not vouch for because it was unreachable stay stored and are retried
// lazily by Get.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	stored, err := m.store.ListSessions()
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	restored := 0
	for _, ss := range stored {
		s := m.create(ss.ChatID)
		if m.restore(ctx, s, ss) == restoreValid {
			m.mu.Lock()
			m.sessions[ss.ChatID] = s
			m.mu.Unlock()
			restored++
		}
	}
	return restored, nil
}

type restoreResult int

const (
	restoreValid restoreResult = iota
	restoreExpired
	restoreUnreachable
)

// restore puts the stored cookies into the jar and asks the service who
// we are. Only an answer without a user drops the row.
func (m *Manager) restore(ctx context.Context, s *Session, ss *domain.StoredSession) restoreResult {
	cookies := make([]*http.Cookie, 0, len(ss.Cookies))
	for _, c := range ss.Cookies {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	s.Jar.SetCookies(m.baseURL, cookies)

	user, err := whoami(ctx, s.API)
	if err != nil {
		log.Printf("Error checking session %d, keeping it: %v", ss.ChatID, err)
		return restoreUnreachable
	}
	if user == nil {
		if err := m.store.DeleteSession(ss.ChatID); err != nil {
			log.Printf("Error dropping session %d: %v", ss.ChatID, err)
		}
		return restoreExpired
	}
	s.SetUser(user)
	return restoreValid
}

func whoami(ctx context.Context, api API) (*domain.User, error) {
	if c, ok := api.(Checker); ok {
		return c.Me(ctx)
	}
	return api.CurrentUser(ctx), nil
}

// Persist stores the chat's current cookies.
func (m *Manager) Persist(s *Session) error {
	username := s.Username()
	if username == "" {
		return nil
	}
	var cookies []domain.StoredCookie
	for _, c := range s.Jar.Cookies(m.baseURL) {
		cookies = append(cookies, domain.StoredCookie{Name: c.Name, Value: c.Value})
	}
	return m.store.SaveSession(&domain.StoredSession{
		ChatID:   s.ChatID,
		Username: username,
		Cookies:  cookies,
	})
}

// Reset forgets everything about the chat and returns a fresh session.
func (m *Manager) Reset(chatID int64) (*Session, error) {
	s := m.create(chatID)
	m.mu.Lock()
	m.sessions[chatID] = s
	m.mu.Unlock()

	if err := m.store.DeleteSession(chatID); err != nil {
		return s, fmt.Errorf("delete session %d: %w", chatID, err)
	}
	return s, nil
}

// Recheck asks the service about every logged in chat and logs out those
// whose session expired. It returns the chats that were dropped. Chats are
// left alone while the service is unreachable.
func (m *Manager) Recheck(ctx context.Context) []int64 {
	var dropped []int64
	for _, s := range m.Active() {
		user, err := whoami(ctx, s.API)
		if err != nil {
			log.Printf("Error checking session %d: %v", s.ChatID, err)
			continue
		}
		if user != nil {
			continue
		}
		if _, err := m.Reset(s.ChatID); err != nil {
			log.Printf("Error resetting session %d: %v", s.ChatID, err)
		}
		dropped = append(dropped, s.ChatID)
	}
	return dropped
}

// Active returns the sessions with a logged in user.
func (m *Manager) Active() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.LoggedIn() {
			out = append(out, s)
		}
	}
	return out
}
