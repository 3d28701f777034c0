package toast

import (
	"log"
	"time"
)

// Sender is the part of the bot a toast needs.
type Sender interface {
	Send(chatID int64, text string) (int, error)
	Delete(chatID int64, messageID int) error
}

// Notifier posts short messages that disappear by themselves. Toasts are
// independent: several may be visible at once.
type Notifier struct {
	sender Sender
	delay  time.Duration
}

func New(sender Sender, delay time.Duration) *Notifier {
	return &Notifier{sender: sender, delay: delay}
}

func (n *Notifier) Success(chatID int64, text string) {
	n.Show(chatID, "✅ "+text)
}

func (n *Notifier) Error(chatID int64, text string) {
	n.Show(chatID, "❌ "+text)
}

// Show sends text and schedules its removal. It never blocks on the timer.
func (n *Notifier) Show(chatID int64, text string) *time.Timer {
	msgID, err := n.sender.Send(chatID, text)
	if err != nil {
		log.Printf("Error sending toast to %d: %v", chatID, err)
		return nil
	}
	return time.AfterFunc(n.delay, func() {
		if err := n.sender.Delete(chatID, msgID); err != nil {
			log.Printf("Error deleting toast %d in %d: %v", msgID, chatID, err)
		}
	})
}
