package service

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/tazhate/kalendarbot/internal/domain"
	"github.com/tazhate/kalendarbot/internal/session"
)

type update struct {
	id int64
	in domain.ReminderInput
}

// fakeAPI is an in-memory kalendar service for one user.
type fakeAPI struct {
	mu        sync.Mutex
	accounts  map[string]string
	byDate    map[string][]domain.Reminder
	all       []domain.Reminder
	creates   []domain.ReminderInput
	updates   []update
	deletes   []int64
	logouts   int
	failWrite bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		accounts: map[string]string{"alice": "secret"},
		byDate:   map[string][]domain.Reminder{},
	}
}

func (f *fakeAPI) add(r domain.Reminder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byDate[r.ReminderDate] = append(f.byDate[r.ReminderDate], r)
	f.all = append(f.all, r)
}

func (f *fakeAPI) Register(_ context.Context, username, password string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[username]; ok {
		return false
	}
	f.accounts[username] = password
	return true
}

func (f *fakeAPI) Login(_ context.Context, username, password string) *domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.accounts[username]; !ok || p != password {
		return nil
	}
	return &domain.User{Username: username}
}

func (f *fakeAPI) Logout(context.Context) {
	f.mu.Lock()
	f.logouts++
	f.mu.Unlock()
}

func (f *fakeAPI) CurrentUser(context.Context) *domain.User { return nil }

func (f *fakeAPI) Users(context.Context) []domain.User {
	return []domain.User{{Username: "alice"}, {Username: "bob"}}
}

func (f *fakeAPI) RemindersOn(_ context.Context, date string) []domain.Reminder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Reminder(nil), f.byDate[date]...)
}

func (f *fakeAPI) AllReminders(context.Context) []domain.Reminder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Reminder(nil), f.all...)
}

func (f *fakeAPI) CreateReminder(_ context.Context, in domain.ReminderInput) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, in)
	return !f.failWrite
}

func (f *fakeAPI) UpdateReminder(_ context.Context, id int64, in domain.ReminderInput) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update{id, in})
	return !f.failWrite
}

func (f *fakeAPI) DeleteReminder(_ context.Context, id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	return !f.failWrite
}

type memStore struct {
	mu       sync.Mutex
	sessions map[int64]*domain.StoredSession
	prefs    map[int64]*domain.Preferences
}

func newMemStore() *memStore {
	return &memStore{
		sessions: map[int64]*domain.StoredSession{},
		prefs:    map[int64]*domain.Preferences{},
	}
}

func (m *memStore) SaveSession(ss *domain.StoredSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ss
	m.sessions[ss.ChatID] = &cp
	return nil
}

func (m *memStore) GetSession(chatID int64) (*domain.StoredSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[chatID], nil
}

func (m *memStore) ListSessions() ([]*domain.StoredSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.StoredSession
	for _, ss := range m.sessions {
		out = append(out, ss)
	}
	return out, nil
}

func (m *memStore) DeleteSession(chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
	return nil
}

func (m *memStore) GetPreferences(chatID int64) (*domain.Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.prefs[chatID]; ok {
		cp := *p
		return &cp, nil
	}
	return &domain.Preferences{ChatID: chatID, Theme: domain.ThemeLight, Digest: true}, nil
}

func (m *memStore) pref(chatID int64) *domain.Preferences {
	p, ok := m.prefs[chatID]
	if !ok {
		p = &domain.Preferences{ChatID: chatID, Theme: domain.ThemeLight, Digest: true}
		m.prefs[chatID] = p
	}
	return p
}

func (m *memStore) SetTheme(chatID int64, theme domain.Theme) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pref(chatID).Theme = theme
	return nil
}

func (m *memStore) SetDigest(chatID int64, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pref(chatID).Digest = on
	return nil
}

// newTestSession returns a session of chat 1 on api, logged in as username
// unless it is empty.
func newTestSession(t *testing.T, api *fakeAPI, store *memStore, username string) (*session.Manager, *session.Session) {
	t.Helper()
	m, err := session.NewManager("http://kalendar.test/api", store, func(http.CookieJar) session.API {
		return api
	}, 4, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	s := m.Get(context.Background(), 1)
	if username != "" {
		s.SetUser(&domain.User{Username: username})
	}
	return m, s
}

func people(names ...string) []domain.User {
	var users []domain.User
	for _, n := range names {
		users = append(users, domain.User{Username: n})
	}
	return users
}
