package storage

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/tazhate/kalendarbot/internal/domain"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrateTwice(t *testing.T) {
	s := newTestStorage(t)
	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStorage(t)

	got, err := s.GetSession(42)
	if err != nil || got != nil {
		t.Fatalf("missing session = %+v, %v", got, err)
	}

	ss := &domain.StoredSession{
		ChatID:   42,
		Username: "alice",
		Cookies:  []domain.StoredCookie{{Name: "JSESSIONID", Value: "abc"}},
	}
	if err := s.SaveSession(ss); err != nil {
		t.Fatal(err)
	}
	ss.Cookies[0].Value = "def"
	if err := s.SaveSession(ss); err != nil {
		t.Fatal(err)
	}

	got, err = s.GetSession(42)
	if err != nil {
		t.Fatal(err)
	}
	if got.Username != "alice" || !reflect.DeepEqual(got.Cookies, ss.Cookies) {
		t.Errorf("GetSession = %+v", got)
	}

	if err := s.SaveSession(&domain.StoredSession{ChatID: 7, Username: "bob"}); err != nil {
		t.Fatal(err)
	}
	all, err := s.ListSessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].ChatID != 7 || all[1].ChatID != 42 {
		t.Errorf("ListSessions = %+v", all)
	}

	if err := s.DeleteSession(42); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.GetSession(42); got != nil {
		t.Errorf("session survived delete: %+v", got)
	}
}

func TestPreferences(t *testing.T) {
	s := newTestStorage(t)

	p, err := s.GetPreferences(1)
	if err != nil {
		t.Fatal(err)
	}
	if p.Theme != domain.ThemeLight || !p.Digest {
		t.Errorf("defaults = %+v", p)
	}

	if err := s.SetTheme(1, domain.ThemeDark); err != nil {
		t.Fatal(err)
	}
	if err := s.SetDigest(1, false); err != nil {
		t.Fatal(err)
	}
	p, err = s.GetPreferences(1)
	if err != nil {
		t.Fatal(err)
	}
	if p.Theme != domain.ThemeDark || p.Digest {
		t.Errorf("stored = %+v", p)
	}

	if err := s.SetTheme(1, domain.ThemeLight); err != nil {
		t.Fatal(err)
	}
	if p, _ := s.GetPreferences(1); p.Theme != domain.ThemeLight || p.Digest {
		t.Errorf("theme update touched digest: %+v", p)
	}
}
