package toast

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	next    int
	sent    []string
	deleted chan int
	fail    bool
}

func (r *recorder) Send(chatID int64, text string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return 0, errors.New("telegram down")
	}
	r.next++
	r.sent = append(r.sent, text)
	return r.next, nil
}

func (r *recorder) Delete(chatID int64, messageID int) error {
	r.deleted <- messageID
	return nil
}

func TestToastIsDeletedAfterDelay(t *testing.T) {
	rec := &recorder{deleted: make(chan int, 2)}
	n := New(rec, 20*time.Millisecond)

	start := time.Now()
	n.Success(1, "Uloženo!")
	n.Error(1, "Chyba při ukládání.")

	got := map[int]bool{}
	for i := 0; i < 2; i++ {
		select {
		case id := <-rec.deleted:
			got[id] = true
		case <-time.After(2 * time.Second):
			t.Fatal("toast was never deleted")
		}
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("deleted after %v, before the delay", elapsed)
	}
	if !got[1] || !got[2] {
		t.Errorf("deleted = %v, want both toasts", got)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.sent[0] != "✅ Uloženo!" || rec.sent[1] != "❌ Chyba při ukládání." {
		t.Errorf("sent = %q", rec.sent)
	}
}

func TestToastSendFailure(t *testing.T) {
	rec := &recorder{deleted: make(chan int, 1), fail: true}
	if timer := New(rec, time.Millisecond).Show(1, "x"); timer != nil {
		t.Error("no timer expected when the send failed")
	}
}
