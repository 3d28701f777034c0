package calendar

import (
	"fmt"
	"time"

	"github.com/tazhate/kalendarbot/internal/domain"
)

var monthNames = [...]string{
	"Leden", "Únor", "Březen", "Duben", "Květen", "Červen",
	"Červenec", "Srpen", "Září", "Říjen", "Listopad", "Prosinec",
}

// Weekdays are the grid header, Monday first.
var Weekdays = [7]string{"Po", "Út", "St", "Čt", "Pá", "So", "Ne"}

// Month is a displayed calendar month.
type Month struct {
	Year  int
	Month time.Month
}

func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	return MonthOf(t), nil
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) Title() string {
	return fmt.Sprintf("%s %d", monthNames[m.Month-1], m.Year)
}

func (m Month) first() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Days returns the number of days in the month.
func (m Month) Days() int {
	return m.first().AddDate(0, 1, -1).Day()
}

// Offset returns the number of empty cells before day 1 in a Monday-first
// week. Sunday counts as weekday 7, so a month starting on Sunday has six.
func (m Month) Offset() int {
	wd := int(m.first().Weekday())
	if wd == 0 {
		wd = 7
	}
	return wd - 1
}

func (m Month) Next() Month {
	return MonthOf(m.first().AddDate(0, 1, 0))
}

func (m Month) Prev() Month {
	return MonthOf(m.first().AddDate(0, -1, 0))
}

// Date returns the YYYY-MM-DD string of a day of the month.
func (m Month) Date(day int) string {
	return time.Date(m.Year, m.Month, day, 0, 0, 0, 0, time.UTC).Format(domain.DateLayout)
}

// Contains reports whether t falls into the month.
func (m Month) Contains(t time.Time) bool {
	return t.Year() == m.Year && t.Month() == m.Month
}
