package bot

import (
	"errors"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/kalendarbot/internal/domain"
	"github.com/tazhate/kalendarbot/internal/service"
	"github.com/tazhate/kalendarbot/internal/session"
)

func (b *Bot) handleCommand(s *session.Session, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())

	switch cmd {
	case "start":
		b.cmdStart(s)
		return
	case "help":
		b.cmdHelp(chatID)
		return
	case "login":
		b.cmdAuth(s, msg, session.ScreenLogin, args)
		return
	case "register":
		b.cmdAuth(s, msg, session.ScreenRegister, args)
		return
	}

	if !s.LoggedIn() {
		b.showAuth(s, 0)
		return
	}

	b.calendarService.CancelMove(s)

	switch cmd {
	case "logout":
		b.cmdLogout(s)
	case "today":
		b.showDay(s, 0, b.calendarService.Now().Format(domain.DateLayout), true)
	case "all":
		b.showAll(s, 0, b.calendarService.OpenAll(b.ctx, s))
	case "new":
		b.cmdNew(s, args)
	case "theme":
		b.cmdTheme(s)
	case "digest":
		b.cmdDigest(chatID)
	case "export":
		b.cmdExport(s)
	case "sync":
		b.cmdSync(s)
	default:
		b.SendMessage(chatID, "Neznámý příkaz. /help pro seznam příkazů")
	}
}

func (b *Bot) cmdStart(s *session.Session) {
	if !s.LoggedIn() {
		b.showAuth(s, 0)
		return
	}
	b.calendarService.CancelMove(s)
	b.calendarService.ShiftMonth(s, 0)
	b.showCalendar(s, 0)
}

func (b *Bot) cmdHelp(chatID int64) {
	text := `<b>Příkazy:</b>

<b>Účet</b>
/login jméno heslo — přihlášení
/register jméno heslo — registrace
/logout — odhlášení

<b>Kalendář</b>
/start — měsíční kalendář
/today — dnešní události
/new název — nová událost na dnešek
/all — všechny události s hledáním

<b>Nastavení</b>
/theme — světlý/tmavý motiv
/digest — ranní přehled zap/vyp

<b>Export</b>
/export — soubor .ics
/sync — nahrát do CalDAV kalendáře

💡 Klepněte na den v kalendáři pro detail a novou událost.`

	b.SendMessage(chatID, text)
}

// cmdAuth switches to the login or register screen. Credentials given as
// arguments are submitted at once and the message is removed.
func (b *Bot) cmdAuth(s *session.Session, msg *tgbotapi.Message, screen session.AuthScreen, args string) {
	s.Lock()
	s.Screen = screen
	s.Unlock()

	if args == "" {
		b.showAuth(s, 0)
		return
	}

	b.deleteMessage(msg.Chat.ID, msg.MessageID)
	username, password := service.ParseCredentials(args)
	b.submitCredentials(s, username, password)
}

func (b *Bot) cmdLogout(s *session.Session) {
	fresh := b.authService.Logout(b.ctx, s)
	b.SendMessage(s.ChatID, "👋 Odhlášeno.")
	b.showAuth(fresh, 0)
}

func (b *Bot) cmdNew(s *session.Session, title string) {
	f := b.calendarService.OpenCreate(s, b.calendarService.Now().Format(domain.DateLayout))
	s.Lock()
	s.FormMsgID = 0
	if title != "" && f.SetTitle(title) == nil {
		s.Awaiting = session.InputNone
	}
	s.Unlock()
	b.showForm(s)
}

func (b *Bot) cmdTheme(s *session.Session) {
	theme, err := b.themeService.Toggle(s.ChatID)
	if err != nil {
		log.Printf("Error toggling theme of %d: %v", s.ChatID, err)
		b.toast.Error(s.ChatID, "Chyba při ukládání.")
		return
	}
	if theme.IsDark() {
		b.toast.Success(s.ChatID, "Tmavý motiv")
	} else {
		b.toast.Success(s.ChatID, "Světlý motiv")
	}
	b.showCalendar(s, 0)
}

func (b *Bot) cmdDigest(chatID int64) {
	on, err := b.themeService.ToggleDigest(chatID)
	if err != nil {
		log.Printf("Error toggling digest of %d: %v", chatID, err)
		b.toast.Error(chatID, "Chyba při ukládání.")
		return
	}
	if on {
		b.SendMessage(chatID, fmt.Sprintf("⏰ Ranní přehled zapnut (%s).", b.cfg.DigestTime))
	} else {
		b.SendMessage(chatID, "⏰ Ranní přehled vypnut.")
	}
}

func (b *Bot) cmdExport(s *session.Session) {
	data, count, err := b.exportService.Export(b.ctx, s)
	if err != nil {
		log.Printf("Error exporting reminders of %d: %v", s.ChatID, err)
		b.toast.Error(s.ChatID, "Chyba při exportu.")
		return
	}

	doc := tgbotapi.NewDocument(s.ChatID, tgbotapi.FileBytes{Name: "kalendar.ics", Bytes: data})
	doc.Caption = fmt.Sprintf("📤 Událostí: %d", count)
	if _, err := b.api.Send(doc); err != nil {
		log.Printf("Error sending export to %d: %v", s.ChatID, err)
	}
}

func (b *Bot) cmdSync(s *session.Session) {
	if !b.exportService.CalDAVConfigured() {
		b.SendMessage(s.ChatID, "CalDAV není nastaven.")
		return
	}

	b.SendMessage(s.ChatID, "🔁 Synchronizuji...")
	result, err := b.exportService.Sync(b.ctx, s)
	if errors.Is(err, service.ErrCalDAVNotConfigured) {
		b.SendMessage(s.ChatID, "CalDAV není nastaven.")
		return
	}
	if err != nil {
		log.Printf("Error syncing %d: %v", s.ChatID, err)
		b.SendMessage(s.ChatID, "❌ Synchronizace selhala.")
		return
	}

	text := fmt.Sprintf("✅ Synchronizace hotova\n\nNahráno: %d\nSmazáno: %d", result.Pushed, result.Deleted)
	if len(result.Errors) > 0 {
		text += fmt.Sprintf("\nChyby: %d", len(result.Errors))
		for _, e := range result.Errors {
			log.Printf("Sync error in %d: %s", s.ChatID, e)
		}
	}
	b.SendMessage(s.ChatID, text)
}
