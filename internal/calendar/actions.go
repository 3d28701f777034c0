package calendar

import (
	"errors"
	"fmt"

	"github.com/tazhate/kalendarbot/internal/domain"
)

var (
	ErrNotOwner = errors.New("not the owner")
	ErrSameDate = errors.New("same date")
)

// DeleteAction is what a single "delete" press resolves to.
type DeleteAction int

const (
	// DeleteOwn removes a reminder nobody else takes part in.
	DeleteOwn DeleteAction = iota
	// DeleteForAll removes a shared reminder for every participant.
	DeleteForAll
	// Leave strips the current user from a shared reminder they do not own.
	Leave
)

// ResolveDelete decides how a delete press on r is carried out for username.
func ResolveDelete(r *domain.Reminder, username string) DeleteAction {
	if len(r.Participants) <= 1 {
		return DeleteOwn
	}
	if r.IsOwner(username) {
		return DeleteForAll
	}
	return Leave
}

// Confirm is the question shown before the action runs.
func (a DeleteAction) Confirm(r *domain.Reminder) string {
	switch a {
	case DeleteForAll:
		return fmt.Sprintf("Událost „%s“ je sdílená. Smazáním ji odstraníte všem účastníkům. Opravdu smazat?", r.Title)
	case Leave:
		return fmt.Sprintf("Opustit událost „%s“? Ostatním účastníkům zůstane.", r.Title)
	default:
		return fmt.Sprintf("Opravdu smazat „%s“?", r.Title)
	}
}

// Button is the label of the action in the reminder menu.
func (a DeleteAction) Button() string {
	if a == Leave {
		return "🚪 Opustit událost"
	}
	return "🗑 Smazat"
}

// Capabilities gates the reminder menu by ownership.
type Capabilities struct {
	Edit  bool
	Move  bool
	View  bool
	Leave bool
}

func CapabilitiesFor(r *domain.Reminder, username string) Capabilities {
	if r.IsOwner(username) {
		return Capabilities{Edit: true, Move: true}
	}
	return Capabilities{View: true, Leave: ResolveDelete(r, username) == Leave}
}

// LeaveInput resends every field of r with username removed from the
// participants.
func LeaveInput(r *domain.Reminder, username string) domain.ReminderInput {
	in := r.Input()
	names := make([]string, 0, len(in.Usernames))
	for _, n := range in.Usernames {
		if n != username {
			names = append(names, n)
		}
	}
	in.Usernames = names
	return in
}

// MoveInput resends every field of r with only the date replaced. Ownership
// is checked again here even though only owners are offered the move.
func MoveInput(r *domain.Reminder, username, date string) (domain.ReminderInput, error) {
	if r.ReminderDate == date {
		return domain.ReminderInput{}, ErrSameDate
	}
	if !r.IsOwner(username) {
		return domain.ReminderInput{}, ErrNotOwner
	}
	in := r.Input()
	in.Date = date
	return in, nil
}
