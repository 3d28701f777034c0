package scheduler

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tazhate/kalendarbot/config"
	"github.com/tazhate/kalendarbot/internal/domain"
	"github.com/tazhate/kalendarbot/internal/service"
	"github.com/tazhate/kalendarbot/internal/session"
)

type MessageSender interface {
	SendMessage(chatID int64, text string) error
}

type Scheduler struct {
	cron            *cron.Cron
	cfg             *config.Config
	sessions        *session.Manager
	calendarService *service.CalendarService
	themeService    *service.ThemeService
	sender          MessageSender
}

func New(cfg *config.Config, sessions *session.Manager, calendarSvc *service.CalendarService, themeSvc *service.ThemeService) *Scheduler {
	c := cron.New(cron.WithLocation(cfg.Timezone))

	return &Scheduler{
		cron:            c,
		cfg:             cfg,
		sessions:        sessions,
		calendarService: calendarSvc,
		themeService:    themeSvc,
	}
}

func (s *Scheduler) SetSender(sender MessageSender) {
	s.sender = sender
}

func (s *Scheduler) Start(ctx context.Context) error {
	if spec := s.cfg.DigestSpec(); spec != "" {
		if _, err := s.cron.AddFunc(spec, func() { s.morningDigest(ctx) }); err != nil {
			return fmt.Errorf("add morning digest: %w", err)
		}
	}

	if _, err := s.cron.AddFunc(s.cfg.SessionCheck, func() { s.recheckSessions(ctx) }); err != nil {
		return fmt.Errorf("add session check: %w", err)
	}

	s.cron.Start()
	log.Printf("Scheduler started (TZ: %s, digest: %s, session check: %s)",
		s.cfg.Timezone, s.cfg.DigestTime, s.cfg.SessionCheck)

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Scheduler stopped")
}

func (s *Scheduler) morningDigest(ctx context.Context) {
	if s.sender == nil {
		return
	}

	for _, sess := range s.sessions.Active() {
		if !s.themeService.DigestEnabled(sess.ChatID) {
			continue
		}
		s.sendDigestTo(ctx, sess)
	}
}

func (s *Scheduler) sendDigestTo(ctx context.Context, sess *session.Session) {
	reminders := s.calendarService.Today(ctx, sess)
	text := DigestText(sess.Username(), s.calendarService.Now().Format(domain.DateLayout), reminders)
	if err := s.sender.SendMessage(sess.ChatID, text); err != nil {
		log.Printf("Error sending digest to %d: %v", sess.ChatID, err)
	}
}

// DigestText is the morning message for one user.
func DigestText(username, date string, reminders []domain.Reminder) string {
	day := date
	if d, err := time.Parse(domain.DateLayout, date); err == nil {
		day = domain.FormatDay(d)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "☀️ <b>Dobré ráno, %s!</b>\n<i>%s</i>\n\n", html.EscapeString(username), day)
	if len(reminders) == 0 {
		sb.WriteString("Dnes nemáte žádné události.")
		return sb.String()
	}
	fmt.Fprintf(&sb, "<b>Dnes máte %d:</b>\n", len(reminders))
	for i := range reminders {
		sb.WriteString(service.FormatReminder(&reminders[i]))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (s *Scheduler) recheckSessions(ctx context.Context) {
	dropped := s.sessions.Recheck(ctx)
	for _, chatID := range dropped {
		log.Printf("Session of chat %d expired", chatID)
		if s.sender == nil {
			continue
		}
		if err := s.sender.SendMessage(chatID, "🔒 Vaše přihlášení vypršelo. Přihlaste se znovu: /login"); err != nil {
			log.Printf("Error notifying %d: %v", chatID, err)
		}
	}
}
