package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tazhate/kalendarbot/config"
	"github.com/tazhate/kalendarbot/internal/bot"
	"github.com/tazhate/kalendarbot/internal/clients/caldav"
	"github.com/tazhate/kalendarbot/internal/clients/kalendar"
	"github.com/tazhate/kalendarbot/internal/scheduler"
	"github.com/tazhate/kalendarbot/internal/service"
	"github.com/tazhate/kalendarbot/internal/session"
	"github.com/tazhate/kalendarbot/internal/storage"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to init storage: %v", err)
	}
	defer store.Close()

	sessions, err := session.NewManager(cfg.KalendarURL, store, func(jar http.CookieJar) session.API {
		return kalendar.NewClient(cfg.KalendarURL, jar)
	}, cfg.FetchConcurrency, cfg.Timezone)
	if err != nil {
		log.Fatalf("Failed to init sessions: %v", err)
	}

	restored, err := sessions.Restore(context.Background())
	if err != nil {
		log.Printf("Error restoring sessions: %v", err)
	}
	log.Printf("Restored %d sessions", restored)

	caldavClient := caldav.NewClient(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword, cfg.CalDAVCalendar)

	authSvc := service.NewAuthService(sessions)
	calendarSvc := service.NewCalendarService(cfg.Timezone)
	themeSvc := service.NewThemeService(store)
	exportSvc := service.NewExportService(caldavClient, cfg.Timezone)

	tgBot, err := bot.New(cfg, sessions, authSvc, calendarSvc, themeSvc, exportSvc)
	if err != nil {
		log.Fatalf("Failed to init bot: %v", err)
	}

	if err := tgBot.SetupWebhook(); err != nil {
		log.Fatalf("Failed to setup webhook: %v", err)
	}

	sched := scheduler.New(cfg, sessions, calendarSvc, themeSvc)
	sched.SetSender(tgBot)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sched.Start(ctx); err != nil {
			log.Printf("Scheduler error: %v", err)
		}
	}()

	go func() {
		if err := tgBot.Start(ctx); err != nil {
			log.Printf("Bot error: %v", err)
		}
	}()

	log.Println("KalendarBot started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := tgBot.Stop(shutdownCtx); err != nil {
		log.Printf("Error stopping bot: %v", err)
	}

	log.Println("KalendarBot stopped")
}
