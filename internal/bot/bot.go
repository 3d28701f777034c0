package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/kalendarbot/config"
	"github.com/tazhate/kalendarbot/internal/service"
	"github.com/tazhate/kalendarbot/internal/session"
	"github.com/tazhate/kalendarbot/internal/toast"
)

type Bot struct {
	api             *tgbotapi.BotAPI
	cfg             *config.Config
	sessions        *session.Manager
	authService     *service.AuthService
	calendarService *service.CalendarService
	themeService    *service.ThemeService
	exportService   *service.ExportService
	toast           *toast.Notifier
	server          *http.Server
	ctx             context.Context
}

func New(cfg *config.Config, sessions *session.Manager, authSvc *service.AuthService, calendarSvc *service.CalendarService, themeSvc *service.ThemeService, exportSvc *service.ExportService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	api.Debug = cfg.Debug

	log.Printf("Authorized as @%s", api.Self.UserName)

	bot := &Bot{
		api:             api,
		cfg:             cfg,
		sessions:        sessions,
		authService:     authSvc,
		calendarService: calendarSvc,
		themeService:    themeSvc,
		exportService:   exportSvc,
		ctx:             context.Background(),
	}
	bot.toast = toast.New(bot, cfg.ToastDelay)

	bot.setCommands()

	return bot, nil
}

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "start", Description: "📅 Kalendář"},
		{Command: "today", Description: "☀️ Dnešní události"},
		{Command: "new", Description: "➕ Nová událost"},
		{Command: "all", Description: "🔍 Všechny události"},
		{Command: "login", Description: "🔐 Přihlásit se"},
		{Command: "register", Description: "📝 Registrovat"},
		{Command: "logout", Description: "🚪 Odhlásit se"},
		{Command: "theme", Description: "🌙 Přepnout motiv"},
		{Command: "digest", Description: "⏰ Ranní přehled zap/vyp"},
		{Command: "export", Description: "📤 Export do .ics"},
		{Command: "sync", Description: "🔁 Synchronizace s CalDAV"},
		{Command: "help", Description: "❓ Nápověda"},
	}

	cfg := tgbotapi.NewSetMyCommands(commands...)
	if _, err := b.api.Request(cfg); err != nil {
		log.Printf("Failed to set commands: %v", err)
	}
}

// SetupWebhook registers WEBHOOK_URL/bot with Telegram, or removes any
// webhook when the bot runs on long polling.
func (b *Bot) SetupWebhook() error {
	if !b.cfg.UseWebhook() {
		if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			return fmt.Errorf("delete webhook: %w", err)
		}
		log.Println("Webhook removed, using long polling")
		return nil
	}

	webhookURL := b.cfg.WebhookURL + "/bot"

	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}

	_, err = b.api.Request(wh)
	if err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	info, err := b.api.GetWebhookInfo()
	if err != nil {
		return fmt.Errorf("get webhook info: %w", err)
	}

	if info.LastErrorDate != 0 {
		log.Printf("Webhook last error: %s", info.LastErrorMessage)
	}

	log.Printf("Webhook set to: %s", webhookURL)
	return nil
}

func (b *Bot) router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if b.cfg.UseWebhook() {
		r.Post("/bot", b.handleWebhook)
	}
	return r
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		log.Printf("Error reading webhook update: %v", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	go b.handleUpdate(*update)
}

func (b *Bot) Start(ctx context.Context) error {
	b.ctx = ctx

	b.server = &http.Server{
		Addr:    ":" + b.cfg.ServerPort,
		Handler: b.router(),
	}

	go func() {
		log.Printf("Starting HTTP server on :%s", b.cfg.ServerPort)
		if err := b.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	if b.cfg.UseWebhook() {
		<-ctx.Done()
		return nil
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			go b.handleUpdate(update)
		}
	}
}

func (b *Bot) Stop(ctx context.Context) error {
	if b.server != nil {
		return b.server.Shutdown(ctx)
	}
	return nil
}

func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	msg.ReplyMarkup = keyboard
	sent, err := b.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// EditMessageWithKeyboard redraws a screen in place.
func (b *Bot) EditMessageWithKeyboard(chatID int64, msgID int, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, text, keyboard)
	edit.ParseMode = "HTML"
	_, err := b.api.Send(edit)
	return err
}

// Send posts a plain message and returns its id. Used by toasts.
func (b *Bot) Send(chatID int64, text string) (int, error) {
	sent, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (b *Bot) Delete(chatID int64, msgID int) error {
	_, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, msgID))
	return err
}
