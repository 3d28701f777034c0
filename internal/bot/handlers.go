package bot

import (
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/kalendarbot/internal/calendar"
	"github.com/tazhate/kalendarbot/internal/domain"
	"github.com/tazhate/kalendarbot/internal/service"
	"github.com/tazhate/kalendarbot/internal/session"
)

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(update.CallbackQuery)
		return
	}

	if update.Message != nil {
		b.handleMessage(update.Message)
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	s := b.sessions.Get(b.ctx, chatID)

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	if msg.IsCommand() {
		b.handleCommand(s, msg)
		return
	}

	s.Lock()
	awaiting := s.Awaiting
	s.Unlock()

	switch awaiting {
	case session.InputCredentials:
		b.deleteMessage(chatID, msg.MessageID)
		username, password := service.ParseCredentials(text)
		b.submitCredentials(s, username, password)
	case session.InputTitle, session.InputDescription, session.InputTime, session.InputColor:
		b.deleteMessage(chatID, msg.MessageID)
		b.handleFormInput(s, awaiting, text)
	case session.InputUserSearch:
		b.deleteMessage(chatID, msg.MessageID)
		b.handleUserSearch(s, text)
	case session.InputReminderSearch:
		b.deleteMessage(chatID, msg.MessageID)
		list := b.calendarService.SetSearch(s, text)
		s.Lock()
		msgID := s.ListMsgID
		s.Unlock()
		b.showAll(s, msgID, list)
	default:
		if !s.LoggedIn() {
			b.showAuth(s, 0)
			return
		}
		b.SendMessage(chatID, "Nevím, co s tím. Kalendář: /start, nápověda: /help")
	}
}

// submitCredentials logs in or registers depending on the auth screen.
func (b *Bot) submitCredentials(s *session.Session, username, password string) {
	chatID := s.ChatID

	s.Lock()
	screen := s.Screen
	s.Unlock()

	var user *domain.User
	var err error
	if screen == session.ScreenRegister {
		user, err = b.authService.Register(b.ctx, s, username, password)
		if err == nil || errors.Is(err, service.ErrBadCredentials) {
			b.toast.Success(chatID, "Registrace úspěšná! Přihlašuji...")
		}
	} else {
		user, err = b.authService.Login(b.ctx, s, username, password)
	}

	switch {
	case errors.Is(err, service.ErrEmptyCredentials):
		b.toast.Error(chatID, "Vyplňte údaje!")
	case errors.Is(err, service.ErrUserExists):
		b.toast.Error(chatID, "Uživatel již existuje.")
	case err != nil:
		b.toast.Error(chatID, "Špatné jméno nebo heslo!")
	default:
		b.toast.Success(chatID, "Vítejte, "+user.Username+"!")
		b.calendarService.ShiftMonth(s, 0)
		b.showCalendar(s, 0)
	}
}

func (b *Bot) handleFormInput(s *session.Session, awaiting session.Input, text string) {
	f, err := b.calendarService.CurrentForm(s, "")
	if err != nil {
		s.Lock()
		s.Awaiting = session.InputNone
		s.Unlock()
		return
	}

	s.Lock()
	switch awaiting {
	case session.InputTitle:
		err = f.SetTitle(text)
	case session.InputDescription:
		err = f.SetDescription(text)
	case session.InputTime:
		err = f.SetTime(text)
	case session.InputColor:
		err = f.SetColor(text)
	}
	if err == nil {
		s.Awaiting = session.InputNone
	}
	s.Unlock()

	switch {
	case errors.Is(err, calendar.ErrInvalidTime):
		b.toast.Error(s.ChatID, "Neplatný čas, použijte HH:MM.")
	case errors.Is(err, calendar.ErrBadColor):
		b.toast.Error(s.ChatID, "Neplatná barva, použijte #RRGGBB.")
	case errors.Is(err, calendar.ErrLocked):
		b.toast.Error(s.ChatID, "Událost může upravit jen vlastník.")
	}

	b.showForm(s)
}

func (b *Bot) handleUserSearch(s *session.Session, text string) {
	f, err := b.calendarService.CurrentForm(s, "")
	if err != nil {
		return
	}
	s.Lock()
	err = f.SetSearch(text)
	s.Awaiting = session.InputNone
	s.Unlock()
	if err != nil {
		b.toast.Error(s.ChatID, "Událost může upravit jen vlastník.")
		return
	}
	b.showPicker(s)
}

func (b *Bot) handleCallback(callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil {
		return
	}
	chatID := callback.Message.Chat.ID
	msgID := callback.Message.MessageID
	data := callback.Data

	s := b.sessions.Get(b.ctx, chatID)

	switch data {
	case "noop":
		b.answer(callback, "")
		return
	case "auth:toggle":
		b.authService.ToggleScreen(s)
		b.answer(callback, "")
		b.showAuth(s, msgID)
		return
	}

	if !s.LoggedIn() {
		b.answer(callback, "Nejdřív se přihlaste.")
		b.showAuth(s, msgID)
		return
	}

	parts := strings.SplitN(data, ":", 3)
	verb := parts[0]
	arg := ""
	if len(parts) > 1 {
		arg = parts[1]
	}

	// Anything but the grid ends a pending move.
	switch verb {
	case "cal", "day", "mv":
	default:
		b.calendarService.CancelMove(s)
	}

	switch verb {
	case "cal":
		switch arg {
		case "prev":
			b.calendarService.ShiftMonth(s, -1)
		case "next":
			b.calendarService.ShiftMonth(s, 1)
		case "today":
			b.calendarService.ShiftMonth(s, 0)
		}
		b.answer(callback, "")
		b.showCalendar(s, msgID)

	case "back":
		b.answer(callback, "")
		b.showCalendar(s, msgID)

	case "theme":
		if _, err := b.themeService.Toggle(chatID); err != nil {
			log.Printf("Error toggling theme of %d: %v", chatID, err)
			b.answer(callback, "Chyba při ukládání.")
			return
		}
		b.answer(callback, "")
		b.showCalendar(s, msgID)

	case "logout":
		b.answer(callback, "")
		fresh := b.authService.Logout(b.ctx, s)
		b.showAuth(fresh, msgID)

	case "day":
		if b.calendarService.Moving(s) != nil {
			b.drop(s, callback, arg)
			return
		}
		b.answer(callback, "")
		b.showDay(s, msgID, arg, false)

	case "dayall":
		b.answer(callback, "")
		b.showDay(s, msgID, arg, true)

	case "mv":
		b.calendarService.CancelMove(s)
		b.answer(callback, "")
		b.showCalendar(s, msgID)

	case "new":
		b.calendarService.OpenCreate(s, arg)
		s.Lock()
		s.FormMsgID = msgID
		s.Unlock()
		b.answer(callback, "")
		b.showForm(s)

	case "rem", "edit", "view", "move", "del", "delok":
		id, ok := refID(parts)
		if !ok {
			b.answer(callback, "")
			return
		}
		b.handleReminderCallback(s, callback, verb, arg, id)

	case "all":
		list := b.calendarService.OpenAll(b.ctx, s)
		b.answer(callback, "")
		b.showAll(s, msgID, list)

	case "allc":
		idx, err := strconv.Atoi(arg)
		if err != nil || idx < 0 || idx >= len(domain.Categories) {
			b.answer(callback, "")
			return
		}
		list := b.calendarService.SetColorFilter(s, domain.Categories[idx].Color)
		b.answer(callback, "")
		b.showAll(s, msgID, list)

	case "alls":
		s.Lock()
		s.Awaiting = session.InputReminderSearch
		s.ListMsgID = msgID
		s.Unlock()
		b.answer(callback, "Napište hledaný text.")

	case "f":
		if len(parts) < 3 {
			b.answer(callback, "")
			return
		}
		b.handleFormCallback(s, callback, arg, parts[2])

	default:
		b.answer(callback, "")
	}
}

func (b *Bot) handleReminderCallback(s *session.Session, callback *tgbotapi.CallbackQuery, verb, date string, id int64) {
	chatID := s.ChatID
	msgID := callback.Message.MessageID

	switch verb {
	case "rem":
		b.answer(callback, "")
		b.showReminder(s, msgID, date, id)

	case "edit", "view":
		if _, err := b.calendarService.OpenEdit(b.ctx, s, date, id); err != nil {
			b.answer(callback, "Událost nenalezena.")
			b.showDay(s, msgID, date, false)
			return
		}
		s.Lock()
		s.FormMsgID = msgID
		s.Unlock()
		b.answer(callback, "")
		b.showForm(s)

	case "move":
		r, err := b.calendarService.StartMove(b.ctx, s, date, id)
		switch {
		case errors.Is(err, calendar.ErrNotOwner):
			b.answer(callback, "Přesouvat může jen vlastník.")
			return
		case err != nil:
			b.answer(callback, "Událost nenalezena.")
			b.showDay(s, msgID, date, false)
			return
		}
		if m, err := monthOfDate(r.ReminderDate); err == nil {
			b.calendarService.SetMonth(s, m)
		}
		b.answer(callback, "Vyberte nový den.")
		b.showCalendar(s, msgID)

	case "del":
		r, action, err := b.calendarService.PrepareDelete(b.ctx, s, date, id)
		if err != nil {
			b.answer(callback, "Událost nenalezena.")
			b.showDay(s, msgID, date, false)
			return
		}
		b.answer(callback, "")
		text, kb := confirmView(r, action)
		b.show(chatID, msgID, text, kb)

	case "delok":
		action, err := b.calendarService.Delete(b.ctx, s, date, id)
		b.answer(callback, "")
		switch {
		case errors.Is(err, service.ErrLeaveFailed):
			b.toast.Error(chatID, "Chyba při opouštění.")
		case errors.Is(err, service.ErrDeleteFailed):
			b.toast.Error(chatID, "Chyba při mazání.")
		case errors.Is(err, service.ErrNotFound):
			b.toast.Error(chatID, "Událost nenalezena.")
		case action == calendar.Leave:
			b.toast.Success(chatID, "Opustili jste událost.")
		default:
			b.toast.Success(chatID, "Smazáno.")
		}
		b.showDay(s, msgID, date, false)
	}
}

// drop finishes a move on the tapped date.
func (b *Bot) drop(s *session.Session, callback *tgbotapi.CallbackQuery, date string) {
	chatID := s.ChatID
	_, err := b.calendarService.Drop(b.ctx, s, date)
	b.answer(callback, "")

	switch {
	case errors.Is(err, calendar.ErrSameDate):
	case errors.Is(err, calendar.ErrNotOwner):
		b.toast.Error(chatID, "Přesouvat může jen vlastník.")
	case errors.Is(err, service.ErrMoveFailed):
		b.toast.Error(chatID, "Chyba při přesunu")
	case err != nil:
		log.Printf("Error moving reminder in %d: %v", chatID, err)
	default:
		b.toast.Success(chatID, "Přesunuto na "+formatDate(date))
	}
	b.showCalendar(s, callback.Message.MessageID)
}

func (b *Bot) handleFormCallback(s *session.Session, callback *tgbotapi.CallbackQuery, token, data string) {
	f, err := b.calendarService.CurrentForm(s, token)
	if err != nil {
		b.answer(callback, "Formulář už není otevřený.")
		return
	}
	action, arg, _ := strings.Cut(data, ":")

	s.Lock()
	s.FormMsgID = callback.Message.MessageID
	s.Unlock()

	editable := action == "close" || action == "form" || !f.Locked()
	if !editable {
		b.answer(callback, "Jen pro čtení.")
		return
	}

	switch action {
	case "title", "desc", "time", "custom", "usearch":
		input := map[string]session.Input{
			"title":   session.InputTitle,
			"desc":    session.InputDescription,
			"time":    session.InputTime,
			"custom":  session.InputColor,
			"usearch": session.InputUserSearch,
		}[action]
		s.Lock()
		s.Awaiting = input
		s.Unlock()
		if action == "usearch" {
			b.answer(callback, "Napište část jména.")
			return
		}
		b.answer(callback, "")
		b.showForm(s)

	case "allday":
		s.Lock()
		err = f.SetAllDay(!f.AllDay)
		s.Unlock()
		b.answer(callback, "")
		b.showForm(s)

	case "color":
		idx, convErr := strconv.Atoi(arg)
		palette := domain.Palette()
		if convErr != nil || idx < 0 || idx >= len(palette) {
			b.answer(callback, "")
			return
		}
		s.Lock()
		err = f.SetColor(palette[idx].Color)
		s.Unlock()
		b.answer(callback, "")
		b.showForm(s)

	case "users":
		b.answer(callback, "")
		b.showPicker(s)

	case "u":
		idx, convErr := strconv.Atoi(arg)
		users := s.CachedUsers(b.ctx)
		s.Lock()
		candidates := f.Candidates(users)
		if convErr == nil && idx >= 0 && idx < len(candidates) {
			err = f.Toggle(candidates[idx].Username)
		}
		s.Unlock()
		b.answer(callback, "")
		b.showPicker(s)

	case "form":
		s.Lock()
		s.Awaiting = session.InputNone
		s.Unlock()
		b.answer(callback, "")
		b.showForm(s)

	case "save":
		err = b.calendarService.Save(b.ctx, s, f)
		switch {
		case errors.Is(err, service.ErrEmptyTitle):
			b.answer(callback, "Zadejte název události!")
			return
		case err != nil:
			b.answer(callback, "")
			b.toast.Error(s.ChatID, "Chyba při ukládání.")
			return
		}
		b.answer(callback, "")
		b.toast.Success(s.ChatID, "Uloženo!")
		b.calendarService.CloseForm(s)
		if m, err := monthOfDate(f.Date); err == nil {
			b.calendarService.SetMonth(s, m)
		}
		b.showCalendar(s, callback.Message.MessageID)

	case "close":
		b.calendarService.CloseForm(s)
		b.answer(callback, "")
		b.showCalendar(s, callback.Message.MessageID)

	default:
		b.answer(callback, "")
	}

	if err != nil && !errors.Is(err, calendar.ErrLocked) {
		log.Printf("Error updating form in %d: %v", s.ChatID, err)
	}
}

func (b *Bot) answer(callback *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, text)); err != nil {
		log.Printf("Error answering callback: %v", err)
	}
}

func (b *Bot) deleteMessage(chatID int64, msgID int) {
	if err := b.Delete(chatID, msgID); err != nil {
		log.Printf("Error deleting message %d in %d: %v", msgID, chatID, err)
	}
}

// show edits msgID in place, or sends a new message when msgID is 0. It
// returns the id of the message holding the screen.
func (b *Bot) show(chatID int64, msgID int, text string, kb tgbotapi.InlineKeyboardMarkup) int {
	if msgID != 0 {
		err := b.EditMessageWithKeyboard(chatID, msgID, text, kb)
		if err != nil && !strings.Contains(err.Error(), "message is not modified") {
			log.Printf("Error editing message %d in %d: %v", msgID, chatID, err)
		}
		return msgID
	}
	id, err := b.SendMessageWithKeyboard(chatID, text, kb)
	if err != nil {
		log.Printf("Error sending message to %d: %v", chatID, err)
	}
	return id
}

func (b *Bot) showAuth(s *session.Session, msgID int) {
	s.Lock()
	s.Awaiting = session.InputCredentials
	screen := s.Screen
	s.Unlock()

	text, kb := authView(screen)
	b.show(s.ChatID, msgID, text, kb)
}

// showCalendar renders the session's month. A render overtaken by a newer
// one draws nothing.
func (b *Bot) showCalendar(s *session.Session, msgID int) {
	grid, err := b.calendarService.Render(b.ctx, s)
	if errors.Is(err, calendar.ErrStaleRender) {
		return
	}
	if err != nil {
		log.Printf("Error rendering calendar of %d: %v", s.ChatID, err)
		return
	}

	theme := b.themeService.Theme(s.ChatID)
	text, kb := gridView(grid, theme, s.Username(), b.calendarService.Moving(s))
	b.show(s.ChatID, msgID, text, kb)
}

func (b *Bot) showDay(s *session.Session, msgID int, date string, full bool) {
	reminders := b.calendarService.Day(b.ctx, s, date)
	text, kb := dayView(date, reminders, full)
	b.show(s.ChatID, msgID, text, kb)
}

func (b *Bot) showReminder(s *session.Session, msgID int, date string, id int64) {
	r, err := b.calendarService.Find(b.ctx, s, date, id)
	if err != nil {
		b.toast.Error(s.ChatID, "Událost nenalezena.")
		b.showDay(s, msgID, date, false)
		return
	}
	text, kb := reminderView(r, s.Username())
	b.show(s.ChatID, msgID, text, kb)
}

// showForm redraws the open form on its message, sending a new one when it
// has none yet.
func (b *Bot) showForm(s *session.Session) {
	s.Lock()
	if s.Form == nil {
		s.Unlock()
		return
	}
	text, kb := formView(s.Form, s.Awaiting)
	msgID := s.FormMsgID
	s.Unlock()

	id := b.show(s.ChatID, msgID, text, kb)

	s.Lock()
	if s.FormMsgID == 0 {
		s.FormMsgID = id
	}
	s.Unlock()
}

func (b *Bot) showPicker(s *session.Session) {
	users := s.CachedUsers(b.ctx)

	s.Lock()
	if s.Form == nil {
		s.Unlock()
		return
	}
	text, kb := pickerView(s.Form, s.Form.Candidates(users))
	msgID := s.FormMsgID
	s.Unlock()

	b.show(s.ChatID, msgID, text, kb)
}

func (b *Bot) showAll(s *session.Session, msgID int, list []domain.Reminder) {
	s.Lock()
	query, color := s.Search, s.Color
	s.Unlock()

	text, kb := allView(list, query, color)
	id := b.show(s.ChatID, msgID, text, kb)

	s.Lock()
	s.ListMsgID = id
	s.Unlock()
}

// refID reads the id of a "verb:date:id" callback.
func refID(parts []string) (int64, bool) {
	if len(parts) != 3 {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func monthOfDate(date string) (calendar.Month, error) {
	t, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		return calendar.Month{}, err
	}
	return calendar.MonthOf(t), nil
}
