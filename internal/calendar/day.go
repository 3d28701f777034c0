package calendar

import (
	"sort"

	"github.com/tazhate/kalendarbot/internal/domain"
)

// MaxVisible is how many reminders a day cell shows before collapsing the
// rest into "+N dalších".
const MaxVisible = 2

// Cell is the render model of one day of the grid.
type Cell struct {
	Day     int
	Date    string
	Today   bool
	Visible []domain.Reminder
	Hidden  int
}

// Total is the number of reminders the user has on the day.
func (c Cell) Total() int {
	return len(c.Visible) + c.Hidden
}

// DayList keeps the reminders username participates in, all-day first.
// The order within each group is the service's order.
func DayList(reminders []domain.Reminder, username string) []domain.Reminder {
	out := make([]domain.Reminder, 0, len(reminders))
	for _, r := range reminders {
		if r.HasParticipant(username) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AllDay && !out[j].AllDay
	})
	return out
}

// BuildDay turns a day's reminders into a cell.
func BuildDay(day int, date string, reminders []domain.Reminder, username string, today bool) Cell {
	list := DayList(reminders, username)
	cell := Cell{Day: day, Date: date, Today: today}
	if len(list) > MaxVisible {
		cell.Visible = list[:MaxVisible]
		cell.Hidden = len(list) - MaxVisible
	} else {
		cell.Visible = list
	}
	return cell
}
