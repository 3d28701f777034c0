package bot

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/kalendarbot/internal/calendar"
	"github.com/tazhate/kalendarbot/internal/domain"
	"github.com/tazhate/kalendarbot/internal/service"
	"github.com/tazhate/kalendarbot/internal/session"
)

// maxListButtons caps reminder buttons in one list message.
const maxListButtons = 20

// maxMessageLen is Telegram's text limit, counted in UTF-16 units.
const maxMessageLen = 4096

// trailerRoom is kept free for the "…a N dalších" line.
const trailerRoom = 64

func button(text, data string) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(text, data)
}

func reminderRef(verb, date string, id int64) string {
	return fmt.Sprintf("%s:%s:%d", verb, date, id)
}

func formRef(token, action string) string {
	return "f:" + token + ":" + action
}

// authView is the login or register screen.
func authView(screen session.AuthScreen) (string, tgbotapi.InlineKeyboardMarkup) {
	if screen == session.ScreenRegister {
		text := "📝 <b>Registrace</b>\n\nPošlete nové jméno a heslo v jedné zprávě:\n<code>jméno heslo</code>"
		return text, tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(button("🔐 Už máte účet? Přihlásit se", "auth:toggle")),
		)
	}
	text := "🔐 <b>Přihlášení</b>\n\nPošlete jméno a heslo v jedné zprávě:\n<code>jméno heslo</code>"
	return text, tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button("📝 Nemáte účet? Registrovat", "auth:toggle")),
	)
}

// cellLabel is the text of one day button: the day number, a dot per
// visible reminder and "+" when more are hidden.
func cellLabel(c calendar.Cell, theme domain.Theme) string {
	day := strconv.Itoa(c.Day)
	if c.Today {
		day = theme.TodayMark(day)
	}
	label := day + strings.Repeat(theme.Dot(), len(c.Visible))
	if c.Hidden > 0 {
		label += "+"
	}
	return label
}

// gridView draws a month. While a reminder is being moved the day buttons
// become drop targets.
func gridView(grid *calendar.Grid, theme domain.Theme, username string, moving *domain.Reminder) (string, tgbotapi.InlineKeyboardMarkup) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 <b>%s</b>\n👤 %s", grid.Month.Title(), html.EscapeString(username))
	if moving != nil {
		fmt.Fprintf(&sb, "\n\n✋ Přesouváte <b>%s</b> (%s). Klepněte na nový den.",
			html.EscapeString(moving.Title), moving.FormatDate())
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		button("◀️", "cal:prev"),
		button(grid.Month.Title(), "cal:today"),
		button("▶️", "cal:next"),
	))

	header := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for _, wd := range calendar.Weekdays {
		header = append(header, button(wd, "noop"))
	}
	rows = append(rows, header)

	row := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for i := 0; i < grid.Leading; i++ {
		row = append(row, button(theme.Blank(), "noop"))
	}
	for _, c := range grid.Cells {
		row = append(row, button(cellLabel(c, theme), "day:"+c.Date))
		if len(row) == 7 {
			rows = append(rows, row)
			row = make([]tgbotapi.InlineKeyboardButton, 0, 7)
		}
	}
	if len(row) > 0 {
		for len(row) < 7 {
			row = append(row, button(theme.Blank(), "noop"))
		}
		rows = append(rows, row)
	}

	if moving != nil {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button("✖️ Zrušit přesun", "mv:cancel")))
	} else {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			button("🔍 Všechny", "all"),
			button("🔄", "cal:refresh"),
			button(theme.ToggleIcon(), "theme"),
			button("🚪 Odhlásit", "logout"),
		))
	}
	return sb.String(), tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func reminderButtonText(r *domain.Reminder) string {
	when := "celý den"
	if !r.AllDay && r.TimeShort() != "" {
		when = r.TimeShort()
	}
	return truncate(fmt.Sprintf("%s %s %s", domain.ColorEmoji(r.ColorOrDefault()), when, r.Title), 40)
}

// dayView is the cell of one date: the first calendar.MaxVisible reminders
// and a "+N dalších" button when there are more. full lists up to
// maxListButtons and counts the rest in the text.
func dayView(date string, reminders []domain.Reminder, full bool) (string, tgbotapi.InlineKeyboardMarkup) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🗓 <b>%s</b>\n\n", formatDate(date))
	if len(reminders) == 0 {
		sb.WriteString("Žádné události.")
	}

	limit := maxListButtons
	if !full {
		limit = calendar.MaxVisible
	}
	lines := make([]string, len(reminders))
	for i := range reminders {
		lines[i] = service.FormatReminder(&reminders[i]) + "\n"
	}
	n := writeCapped(&sb, lines, limit)
	hidden := len(reminders) - n
	if hidden > 0 && full {
		moreLine(&sb, hidden)
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for i := range reminders[:n] {
		rm := &reminders[i]
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			button(reminderButtonText(rm), reminderRef("rem", date, rm.ID)),
		))
	}
	if hidden > 0 && !full {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			button(fmt.Sprintf("+%d dalších", hidden), "dayall:"+date),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		button("➕ Nová událost", "new:"+date),
		button("⬅️ Kalendář", "back"),
	))
	return sb.String(), tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// reminderView is the detail of one reminder with the actions its
// ownership allows.
func reminderView(r *domain.Reminder, username string) (string, tgbotapi.InlineKeyboardMarkup) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s <b>%s</b>\n", domain.ColorEmoji(r.ColorOrDefault()), html.EscapeString(r.Title))
	fmt.Fprintf(&sb, "📆 %s", r.FormatDate())
	if !r.AllDay && r.TimeShort() != "" {
		fmt.Fprintf(&sb, " · 🕒 %s", r.TimeShort())
	} else {
		sb.WriteString(" · celý den")
	}
	fmt.Fprintf(&sb, "\n🎨 %s", domain.ColorLabel(r.ColorOrDefault()))
	if r.Description != "" {
		fmt.Fprintf(&sb, "\n\n%s", html.EscapeString(r.Description))
	}
	if r.IsShared() {
		fmt.Fprintf(&sb, "\n\n👥 %d lidé: %s", len(r.Participants), html.EscapeString(strings.Join(r.ParticipantNames(), ", ")))
	}
	if r.IsOwner(username) {
		sb.WriteString("\n👑 Vlastník: vy")
	}

	caps := calendar.CapabilitiesFor(r, username)
	action := calendar.ResolveDelete(r, username)

	var rows [][]tgbotapi.InlineKeyboardButton
	var first []tgbotapi.InlineKeyboardButton
	if caps.Edit {
		first = append(first, button("✏️ Upravit", reminderRef("edit", r.ReminderDate, r.ID)))
	}
	if caps.Move {
		first = append(first, button("↔️ Přesunout", reminderRef("move", r.ReminderDate, r.ID)))
	}
	if caps.View {
		first = append(first, button("👁 Zobrazit", reminderRef("view", r.ReminderDate, r.ID)))
	}
	if len(first) > 0 {
		rows = append(rows, first)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		button(action.Button(), reminderRef("del", r.ReminderDate, r.ID)),
	))
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(button("⬅️ Zpět", "day:"+r.ReminderDate)))
	return sb.String(), tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func confirmView(r *domain.Reminder, action calendar.DeleteAction) (string, tgbotapi.InlineKeyboardMarkup) {
	text := "⚠️ " + html.EscapeString(action.Confirm(r))
	return text, tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			button("✅ Ano", reminderRef("delok", r.ReminderDate, r.ID)),
			button("✖️ Ne", reminderRef("rem", r.ReminderDate, r.ID)),
		),
	)
}

// formView draws the create/edit dialog. A locked form only shows values.
func formView(f *calendar.Form, awaiting session.Input) (string, tgbotapi.InlineKeyboardMarkup) {
	var sb strings.Builder
	if f.Mode == calendar.ModeEdit {
		sb.WriteString("✏️ <b>Upravit událost</b>")
	} else {
		sb.WriteString("➕ <b>Nová událost</b>")
	}
	if f.Locked() {
		sb.WriteString("\n🔒 Jen pro čtení")
	}

	title := f.Title
	if strings.TrimSpace(title) == "" {
		title = "—"
	}
	fmt.Fprintf(&sb, "\n\n<b>Název:</b> %s", html.EscapeString(title))
	if f.Description != "" {
		fmt.Fprintf(&sb, "\n<b>Popis:</b> %s", html.EscapeString(f.Description))
	}
	fmt.Fprintf(&sb, "\n<b>Datum:</b> %s", formatDate(f.Date))
	if f.AllDay {
		sb.WriteString("\n<b>Čas:</b> celý den")
	} else {
		fmt.Fprintf(&sb, "\n<b>Čas:</b> %s", f.Time)
	}
	fmt.Fprintf(&sb, "\n<b>Barva:</b> %s %s", domain.ColorEmoji(f.Color), domain.ColorLabel(f.Color))
	if len(f.Selected) > 0 {
		fmt.Fprintf(&sb, "\n<b>Účastníci:</b> %s", html.EscapeString(strings.Join(f.Selected, ", ")))
	}

	switch awaiting {
	case session.InputTitle:
		sb.WriteString("\n\n✍️ Napište název události.")
	case session.InputDescription:
		sb.WriteString("\n\n✍️ Napište popis události.")
	case session.InputTime:
		sb.WriteString("\n\n✍️ Napište čas ve tvaru HH:MM.")
	case session.InputColor:
		sb.WriteString("\n\n✍️ Napište barvu ve tvaru #RRGGBB.")
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	if f.Locked() {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button("✖️ Zavřít", formRef(f.Token, "close"))))
		return sb.String(), tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		button("✏️ Název", formRef(f.Token, "title")),
		button("📝 Popis", formRef(f.Token, "desc")),
	))

	allDay := "⬜ Celý den"
	if f.AllDay {
		allDay = "✅ Celý den"
	}
	timeRow := tgbotapi.NewInlineKeyboardRow(button(allDay, formRef(f.Token, "allday")))
	if !f.AllDay {
		timeRow = append([]tgbotapi.InlineKeyboardButton{button("🕒 "+f.Time, formRef(f.Token, "time"))}, timeRow...)
	}
	rows = append(rows, timeRow)

	palette := make([]tgbotapi.InlineKeyboardButton, 0, len(domain.Palette()))
	for i, c := range domain.Palette() {
		label := c.Emoji
		if strings.EqualFold(c.Color, f.Color) {
			label = "✔" + label
		}
		palette = append(palette, button(label, formRef(f.Token, "color:"+strconv.Itoa(i))))
	}
	rows = append(rows, palette)

	custom := "🎨 Vlastní barva"
	if _, ok := domain.CategoryFor(f.Color); !ok {
		custom = "✔🎨 " + f.Color
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		button(custom, formRef(f.Token, "custom")),
		button(fmt.Sprintf("👥 Účastníci (%d)", len(f.Selected)), formRef(f.Token, "users")),
	))

	var last []tgbotapi.InlineKeyboardButton
	if f.ShowSave() {
		save := "💾 Uložit"
		if !f.CanSave() {
			save = "💾 Uložit (chybí název)"
		}
		last = append(last, button(save, formRef(f.Token, "save")))
	}
	last = append(last, button("✖️ Zavřít", formRef(f.Token, "close")))
	rows = append(rows, last)
	return sb.String(), tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// pickerView lets the owner toggle participants of the form.
func pickerView(f *calendar.Form, candidates []domain.User) (string, tgbotapi.InlineKeyboardMarkup) {
	var sb strings.Builder
	sb.WriteString("👥 <b>Účastníci</b>")
	if f.Search != "" {
		fmt.Fprintf(&sb, "\n🔍 %s", html.EscapeString(f.Search))
	}
	if len(candidates) == 0 {
		sb.WriteString("\n\nNikdo neodpovídá.")
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for i, u := range candidates {
		if i == maxListButtons {
			break
		}
		mark := "⬜"
		if f.IsSelected(u.Username) {
			mark = "✅"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			button(mark+" "+u.Username, formRef(f.Token, "u:"+strconv.Itoa(i))),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		button("🔍 Hledat", formRef(f.Token, "usearch")),
		button("⬅️ Zpět", formRef(f.Token, "form")),
	))
	return sb.String(), tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// allView is the searchable list of every reminder of the user.
func allView(reminders []domain.Reminder, query, color string) (string, tgbotapi.InlineKeyboardMarkup) {
	var sb strings.Builder
	sb.WriteString("🔍 <b>Všechny události</b>")
	if query != "" {
		fmt.Fprintf(&sb, "\nHledáte: <i>%s</i>", html.EscapeString(query))
	}
	sb.WriteString("\n\n")
	if len(reminders) == 0 {
		sb.WriteString("Žádné úkoly neodpovídají.")
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	chips := make([]tgbotapi.InlineKeyboardButton, 0, 3)
	for i, c := range domain.Categories {
		label := c.Emoji
		if strings.EqualFold(c.Color, color) {
			label = "✔" + label
		}
		chips = append(chips, button(label, "allc:"+strconv.Itoa(i)))
		if len(chips) == 3 {
			rows = append(rows, chips)
			chips = make([]tgbotapi.InlineKeyboardButton, 0, 3)
		}
	}
	if len(chips) > 0 {
		rows = append(rows, chips)
	}

	lines := make([]string, len(reminders))
	for i := range reminders {
		r := &reminders[i]
		lines[i] = fmt.Sprintf("%s · %s\n", r.FormatDate(), service.FormatReminder(r))
	}
	n := writeCapped(&sb, lines, maxListButtons)
	if hidden := len(reminders) - n; hidden > 0 {
		moreLine(&sb, hidden)
	}
	for i := range reminders[:n] {
		r := &reminders[i]
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			button(r.FormatDate()+" "+reminderButtonText(r), reminderRef("rem", r.ReminderDate, r.ID)),
		))
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		button("🔍 Hledat", "alls"),
		button("⬅️ Kalendář", "back"),
	))
	return sb.String(), tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// writeCapped appends at most limit lines and stops early once the next
// line would push the message past maxMessageLen. It returns how many
// lines were written.
func writeCapped(sb *strings.Builder, lines []string, limit int) int {
	used := textLen(sb.String())
	for i, line := range lines {
		l := textLen(line)
		if i == limit || used+l+trailerRoom > maxMessageLen {
			return i
		}
		sb.WriteString(line)
		used += l
	}
	return len(lines)
}

func moreLine(sb *strings.Builder, hidden int) {
	fmt.Fprintf(sb, "…a %d dalších\n", hidden)
}

func textLen(s string) int {
	return len(utf16.Encode([]rune(s)))
}

func formatDate(date string) string {
	r := domain.Reminder{ReminderDate: date}
	return r.FormatDate()
}

// truncate shortens a string to maxLen runes.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
