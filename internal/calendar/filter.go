package calendar

import (
	"strings"

	"github.com/tazhate/kalendarbot/internal/domain"
)

// FilterReminders keeps reminders whose title contains query (any case) and
// whose color equals color. domain.ColorAll matches every color; a reminder
// without a color counts as domain.DefaultColor.
func FilterReminders(all []domain.Reminder, query, color string) []domain.Reminder {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.Reminder, 0, len(all))
	for _, r := range all {
		if q != "" && !strings.Contains(strings.ToLower(r.Title), q) {
			continue
		}
		if color != "" && color != domain.ColorAll && !strings.EqualFold(r.ColorOrDefault(), color) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// FilterUsers drops exclude and keeps usernames containing query (any case).
func FilterUsers(users []domain.User, exclude, query string) []domain.User {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.User, 0, len(users))
	for _, u := range users {
		if u.Username == exclude {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(u.Username), q) {
			continue
		}
		out = append(out, u)
	}
	return out
}
