package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/tazhate/kalendarbot/internal/calendar"
	"github.com/tazhate/kalendarbot/internal/clients/caldav"
	"github.com/tazhate/kalendarbot/internal/domain"
	"github.com/tazhate/kalendarbot/internal/session"
)

func TestParseCredentials(t *testing.T) {
	tests := []struct {
		in, user, pass string
	}{
		{"alice secret", "alice", "secret"},
		{"  alice   two words ", "alice", "two words"},
		{"alice", "alice", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		u, p := ParseCredentials(tt.in)
		if u != tt.user || p != tt.pass {
			t.Errorf("ParseCredentials(%q) = %q, %q", tt.in, u, p)
		}
	}
}

func TestLogin(t *testing.T) {
	api := newFakeAPI()
	store := newMemStore()
	m, s := newTestSession(t, api, store, "")
	auth := NewAuthService(m)
	ctx := context.Background()

	if _, err := auth.Login(ctx, s, "", "x"); !errors.Is(err, ErrEmptyCredentials) {
		t.Errorf("empty name err = %v", err)
	}
	if _, err := auth.Login(ctx, s, "alice", "wrong"); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("bad password err = %v", err)
	}
	if s.LoggedIn() {
		t.Fatal("failed login must not log in")
	}

	u, err := auth.Login(ctx, s, "alice", "secret")
	if err != nil || u.Username != "alice" {
		t.Fatalf("login = %+v, %v", u, err)
	}
	if s.Username() != "alice" {
		t.Errorf("session user = %q", s.Username())
	}
	if ss, _ := store.GetSession(1); ss == nil || ss.Username != "alice" {
		t.Errorf("login was not persisted: %+v", ss)
	}
}

func TestRegisterLogsIn(t *testing.T) {
	api := newFakeAPI()
	m, s := newTestSession(t, api, newMemStore(), "")
	auth := NewAuthService(m)
	ctx := context.Background()

	if _, err := auth.Register(ctx, s, "alice", "other"); !errors.Is(err, ErrUserExists) {
		t.Errorf("existing user err = %v", err)
	}
	u, err := auth.Register(ctx, s, "bob", "pw")
	if err != nil || u.Username != "bob" || s.Username() != "bob" {
		t.Fatalf("register = %+v, %v", u, err)
	}
}

func TestLogoutResets(t *testing.T) {
	api := newFakeAPI()
	store := newMemStore()
	m, s := newTestSession(t, api, store, "")
	auth := NewAuthService(m)
	if _, err := auth.Login(context.Background(), s, "alice", "secret"); err != nil {
		t.Fatal(err)
	}

	fresh := auth.Logout(context.Background(), s)
	if api.logouts != 1 {
		t.Errorf("logout calls = %d", api.logouts)
	}
	if fresh == s || fresh.LoggedIn() {
		t.Error("logout must start a fresh session")
	}
	if ss, _ := store.GetSession(1); ss != nil {
		t.Error("stored session survived logout")
	}
}

func TestToggleScreen(t *testing.T) {
	m, s := newTestSession(t, newFakeAPI(), newMemStore(), "")
	auth := NewAuthService(m)
	if auth.ToggleScreen(s) != session.ScreenRegister {
		t.Error("first toggle should show register")
	}
	if auth.ToggleScreen(s) != session.ScreenLogin {
		t.Error("second toggle should show login")
	}
}

func sharedReminder(owner string, names ...string) domain.Reminder {
	return domain.Reminder{
		ID: 10, Title: "Party", ReminderDate: "2025-05-01", Color: "#AF52DE",
		Participants: people(names...),
		Owner:        domain.Owner{Kind: domain.OwnerName, Username: owner},
	}
}

func TestDeleteSoleParticipantHardDeletes(t *testing.T) {
	api := newFakeAPI()
	api.add(sharedReminder("bob", "alice"))
	_, s := newTestSession(t, api, newMemStore(), "alice")

	action, err := NewCalendarService(time.UTC).Delete(context.Background(), s, "2025-05-01", 10)
	if err != nil || action != calendar.DeleteOwn {
		t.Fatalf("Delete = %v, %v", action, err)
	}
	if !reflect.DeepEqual(api.deletes, []int64{10}) || len(api.updates) != 0 {
		t.Errorf("deletes = %v updates = %v", api.deletes, api.updates)
	}
}

func TestDeleteSharedNonOwnerLeaves(t *testing.T) {
	api := newFakeAPI()
	api.add(sharedReminder("bob", "bob", "alice", "carol"))
	_, s := newTestSession(t, api, newMemStore(), "alice")

	action, err := NewCalendarService(time.UTC).Delete(context.Background(), s, "2025-05-01", 10)
	if err != nil || action != calendar.Leave {
		t.Fatalf("Delete = %v, %v", action, err)
	}
	if len(api.deletes) != 0 {
		t.Errorf("delete endpoint called: %v", api.deletes)
	}
	if len(api.updates) != 1 || !reflect.DeepEqual(api.updates[0].in.Usernames, []string{"bob", "carol"}) {
		t.Errorf("updates = %+v", api.updates)
	}
}

func TestDeleteSharedOwnerDeletesForAll(t *testing.T) {
	api := newFakeAPI()
	api.add(sharedReminder("alice", "alice", "bob"))
	_, s := newTestSession(t, api, newMemStore(), "alice")
	svc := NewCalendarService(time.UTC)

	_, action, err := svc.PrepareDelete(context.Background(), s, "2025-05-01", 10)
	if err != nil || action != calendar.DeleteForAll {
		t.Fatalf("PrepareDelete = %v, %v", action, err)
	}
	if _, err := svc.Delete(context.Background(), s, "2025-05-01", 10); err != nil {
		t.Fatal(err)
	}
	if len(api.deletes) != 1 {
		t.Errorf("deletes = %v", api.deletes)
	}
}

func TestDeleteFailures(t *testing.T) {
	api := newFakeAPI()
	api.failWrite = true
	api.add(sharedReminder("bob", "bob", "alice"))
	_, s := newTestSession(t, api, newMemStore(), "alice")
	svc := NewCalendarService(time.UTC)

	if _, err := svc.Delete(context.Background(), s, "2025-05-01", 10); !errors.Is(err, ErrLeaveFailed) {
		t.Errorf("leave err = %v", err)
	}
	if _, err := svc.Delete(context.Background(), s, "2025-05-01", 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}
}

func TestMoveAndDrop(t *testing.T) {
	api := newFakeAPI()
	tm := "18:00:00"
	gym := domain.Reminder{
		ID: 5, Title: "Gym", Description: "legs", ReminderDate: "2025-03-14", ReminderTime: &tm,
		Color: "#34C759", Participants: people("alice"), Owner: domain.Owner{Kind: domain.OwnerFlag, Flag: true},
	}
	api.add(gym)
	_, s := newTestSession(t, api, newMemStore(), "alice")
	svc := NewCalendarService(time.UTC)
	ctx := context.Background()

	if _, err := svc.StartMove(ctx, s, "2025-03-14", 5); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Drop(ctx, s, "2025-03-14"); !errors.Is(err, calendar.ErrSameDate) {
		t.Errorf("same date drop err = %v", err)
	}
	if len(api.updates) != 0 {
		t.Fatalf("same date drop sent %v", api.updates)
	}
	if svc.Moving(s) != nil {
		t.Error("drop must clear the picked up reminder")
	}

	if _, err := svc.StartMove(ctx, s, "2025-03-14", 5); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Drop(ctx, s, "2025-03-20"); err != nil {
		t.Fatal(err)
	}
	want := gym.Input()
	want.Date = "2025-03-20"
	if len(api.updates) != 1 || api.updates[0].id != 5 || !reflect.DeepEqual(api.updates[0].in, want) {
		t.Errorf("updates = %+v, want %+v", api.updates, want)
	}
}

func TestStartMoveRequiresOwner(t *testing.T) {
	api := newFakeAPI()
	api.add(sharedReminder("bob", "bob", "alice"))
	_, s := newTestSession(t, api, newMemStore(), "alice")
	if _, err := NewCalendarService(time.UTC).StartMove(context.Background(), s, "2025-05-01", 10); !errors.Is(err, calendar.ErrNotOwner) {
		t.Errorf("err = %v", err)
	}
}

func TestSaveForm(t *testing.T) {
	api := newFakeAPI()
	_, s := newTestSession(t, api, newMemStore(), "alice")
	svc := NewCalendarService(time.UTC)
	ctx := context.Background()

	f := svc.OpenCreate(s, "2025-03-14")
	if err := svc.Save(ctx, s, f); !errors.Is(err, ErrEmptyTitle) {
		t.Errorf("empty title err = %v", err)
	}
	_ = f.SetTitle("Meeting")
	_ = f.Toggle("bob")
	if err := svc.Save(ctx, s, f); err != nil {
		t.Fatal(err)
	}
	if len(api.creates) != 1 || !reflect.DeepEqual(api.creates[0].Usernames, []string{"bob", "alice"}) {
		t.Errorf("creates = %+v", api.creates)
	}

	if _, err := svc.CurrentForm(s, "stale"); !errors.Is(err, ErrNoForm) {
		t.Errorf("stale token err = %v", err)
	}
	if got, err := svc.CurrentForm(s, f.Token); err != nil || got != f {
		t.Errorf("CurrentForm = %v, %v", got, err)
	}

	api.failWrite = true
	if err := svc.Save(ctx, s, f); !errors.Is(err, ErrSaveFailed) {
		t.Errorf("failed save err = %v", err)
	}
}

func TestEditFormOfNonOwnerCannotSave(t *testing.T) {
	api := newFakeAPI()
	api.add(sharedReminder("bob", "bob", "alice"))
	_, s := newTestSession(t, api, newMemStore(), "alice")
	svc := NewCalendarService(time.UTC)

	f, err := svc.OpenEdit(context.Background(), s, "2025-05-01", 10)
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Save(context.Background(), s, f); !errors.Is(err, calendar.ErrLocked) {
		t.Errorf("err = %v", err)
	}
	if len(api.updates) != 0 {
		t.Errorf("locked form sent %v", api.updates)
	}
}

func TestAllRemindersFilter(t *testing.T) {
	api := newFakeAPI()
	api.add(domain.Reminder{ID: 1, Title: "Gym", ReminderDate: "2025-03-14", Color: "#34C759"})
	api.add(domain.Reminder{ID: 2, Title: "Call mom", ReminderDate: "2025-03-15", Color: "#007AFF"})
	_, s := newTestSession(t, api, newMemStore(), "alice")
	svc := NewCalendarService(time.UTC)

	if got := svc.OpenAll(context.Background(), s); len(got) != 2 {
		t.Fatalf("OpenAll = %+v", got)
	}
	got := svc.SetColorFilter(s, "#34C759")
	if len(got) != 1 || got[0].Title != "Gym" {
		t.Errorf("color filter = %+v", got)
	}
	if got := svc.SetSearch(s, "mom"); len(got) != 0 {
		t.Errorf("filters must combine, got %+v", got)
	}

	api.add(domain.Reminder{ID: 3, Title: "Gym again", ReminderDate: "2025-03-16", Color: "#34C759"})
	if got := svc.OpenAll(context.Background(), s); len(got) != 3 {
		t.Errorf("reopen must refetch and reset filters, got %+v", got)
	}
}

func TestShiftMonth(t *testing.T) {
	_, s := newTestSession(t, newFakeAPI(), newMemStore(), "alice")
	svc := NewCalendarService(time.UTC)
	svc.SetMonth(s, calendar.Month{Year: 2025, Month: time.January})
	if m := svc.ShiftMonth(s, -1); m != (calendar.Month{Year: 2024, Month: time.December}) {
		t.Errorf("prev = %v", m)
	}
	if m := svc.ShiftMonth(s, 2); m != (calendar.Month{Year: 2025, Month: time.February}) {
		t.Errorf("next = %v", m)
	}
}

func TestThemeToggle(t *testing.T) {
	store := newMemStore()
	svc := NewThemeService(store)
	if svc.Theme(1) != domain.ThemeLight || svc.Theme(1).ToggleIcon() != "🌙" {
		t.Error("default theme should be light with the moon toggle")
	}
	next, err := svc.Toggle(1)
	if err != nil || next != domain.ThemeDark || svc.Theme(1).ToggleIcon() != "☀️" {
		t.Errorf("Toggle = %v, %v", next, err)
	}
	if on, _ := svc.ToggleDigest(1); on {
		t.Error("digest should be switched off")
	}
}

type fakePusher struct {
	put      []string
	deleted  []string
	remote   []string
	from, to time.Time
}

func (f *fakePusher) IsConfigured() bool { return true }
func (f *fakePusher) CalendarPath(context.Context) (string, error) {
	return "/cal/", nil
}
func (f *fakePusher) ListUIDs(_ context.Context, _ string, from, to time.Time) ([]string, error) {
	f.from, f.to = from, to
	return f.remote, nil
}
func (f *fakePusher) PutEvent(_ context.Context, _ string, e *caldav.Event) error {
	f.put = append(f.put, e.UID)
	return nil
}
func (f *fakePusher) DeleteEvent(_ context.Context, _ string, uid string) error {
	f.deleted = append(f.deleted, uid)
	return nil
}

func TestExportICS(t *testing.T) {
	tm := "18:30:00"
	reminders := []domain.Reminder{
		{ID: 1, Title: "Gym", ReminderDate: "2025-03-14", ReminderTime: &tm, Color: "#34C759"},
		{ID: 2, Title: "Trip", ReminderDate: "2025-03-15", AllDay: true, Participants: people("alice", "bob")},
		{ID: 3, Title: "Broken", ReminderDate: "soon"},
	}
	prague, err := time.LoadLocation("Europe/Prague")
	if err != nil {
		t.Skip("tzdata not available")
	}
	data, err := NewExportService(nil, prague).ICS(reminders, "alice")
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{
		"UID:kalendar-1.alice@kalendarbot",
		"DTSTART:20250314T173000Z",
		"CATEGORIES:Osobní",
		"DTSTART;VALUE=DATE:20250315",
		"Účastníci: alice",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("ics lacks %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Broken") {
		t.Error("malformed reminder should be skipped")
	}
}

func TestSyncRemovesOwnLeftoversOnly(t *testing.T) {
	api := newFakeAPI()
	api.add(domain.Reminder{ID: 1, Title: "Gym", ReminderDate: "2025-03-14", AllDay: true})
	_, s := newTestSession(t, api, newMemStore(), "alice")

	pusher := &fakePusher{remote: []string{
		ReminderUID(1, "alice"),
		ReminderUID(2, "alice"),
		ReminderUID(3, "bob"),
		"foreign-event@example.com",
	}}
	res, err := NewExportService(pusher, time.UTC).Sync(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if res.Pushed != 1 || res.Deleted != 1 || len(res.Errors) != 0 {
		t.Errorf("result = %+v", res)
	}
	if !reflect.DeepEqual(pusher.deleted, []string{"kalendar-2.alice@kalendarbot"}) {
		t.Errorf("deleted = %v", pusher.deleted)
	}
}

func TestSyncCleansUpWhenNothingLeft(t *testing.T) {
	_, s := newTestSession(t, newFakeAPI(), newMemStore(), "alice")

	pusher := &fakePusher{remote: []string{
		ReminderUID(1, "alice"),
		ReminderUID(2, "bob"),
	}}
	res, err := NewExportService(pusher, time.UTC).Sync(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if res.Pushed != 0 || res.Deleted != 1 {
		t.Errorf("result = %+v", res)
	}
	if !reflect.DeepEqual(pusher.deleted, []string{"kalendar-1.alice@kalendarbot"}) {
		t.Errorf("deleted = %v", pusher.deleted)
	}
	now := time.Now()
	if !pusher.from.Before(now) || !pusher.to.After(now) {
		t.Errorf("window %v..%v does not cover today", pusher.from, pusher.to)
	}
}

func TestSyncNotConfigured(t *testing.T) {
	_, s := newTestSession(t, newFakeAPI(), newMemStore(), "alice")
	if _, err := NewExportService(caldav.NewClient("", "", "", ""), time.UTC).Sync(context.Background(), s); !errors.Is(err, ErrCalDAVNotConfigured) {
		t.Errorf("err = %v", err)
	}
}

func TestFormatReminder(t *testing.T) {
	tm := "09:15:00"
	r := domain.Reminder{Title: "A<b>", ReminderTime: &tm, Participants: people("a", "b")}
	if got := FormatReminder(&r); got != "🔵 <b>A&lt;b&gt;</b> · 09:15 · 👥 2" {
		t.Errorf("FormatReminder = %q", got)
	}
}
