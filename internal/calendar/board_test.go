package calendar

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tazhate/kalendarbot/internal/domain"
)

type fetchFunc func(ctx context.Context, date string) []domain.Reminder

func (f fetchFunc) RemindersOn(ctx context.Context, date string) []domain.Reminder {
	return f(ctx, date)
}

func TestBoardRenderFillsCells(t *testing.T) {
	m := Month{2025, time.March}
	today := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	var calls atomic.Int32
	f := fetchFunc(func(_ context.Context, date string) []domain.Reminder {
		calls.Add(1)
		if date != "2025-03-14" {
			return nil
		}
		return []domain.Reminder{{ID: 1, Title: "Gym", ReminderDate: date, Participants: participants("alice")}}
	})

	grid, err := NewBoard(4).Render(context.Background(), m, "alice", today, f)
	if err != nil {
		t.Fatal(err)
	}
	if int(calls.Load()) != 31 {
		t.Errorf("fetches = %d, want 31", calls.Load())
	}
	if grid.Leading != 5 || len(grid.Cells) != 31 {
		t.Errorf("grid shape leading=%d cells=%d", grid.Leading, len(grid.Cells))
	}
	cell := grid.Cells[13]
	if !cell.Today || len(cell.Visible) != 1 || cell.Visible[0].Title != "Gym" {
		t.Errorf("cell 14 = %+v", cell)
	}
	if grid.Cells[0].Today || len(grid.Cells[0].Visible) != 0 {
		t.Errorf("cell 1 = %+v", grid.Cells[0])
	}
}

func TestBoardDropsStaleRender(t *testing.T) {
	board := NewBoard(2)
	m := Month{2025, time.March}
	today := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var staleFetches atomic.Int32

	first := fetchFunc(func(_ context.Context, date string) []domain.Reminder {
		staleFetches.Add(1)
		once.Do(func() { close(started) })
		<-release
		return []domain.Reminder{{ID: 1, Title: "stale", ReminderDate: date, Participants: participants("alice")}}
	})
	second := fetchFunc(func(_ context.Context, date string) []domain.Reminder {
		return []domain.Reminder{{ID: 2, Title: "fresh", ReminderDate: date, Participants: participants("alice")}}
	})

	var firstErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, firstErr = board.Render(context.Background(), m, "alice", today, first)
	}()

	<-started
	grid, err := board.Render(context.Background(), m, "alice", today, second)
	if err != nil {
		t.Fatalf("second render: %v", err)
	}
	close(release)
	<-done

	if !errors.Is(firstErr, ErrStaleRender) {
		t.Errorf("first render err = %v, want ErrStaleRender", firstErr)
	}
	if n := staleFetches.Load(); n > 2 {
		t.Errorf("superseded render kept fetching: %d calls", n)
	}

	for _, g := range []*Grid{grid, board.Snapshot()} {
		for _, c := range g.Cells {
			if len(c.Visible) != 1 || c.Visible[0].Title != "fresh" {
				t.Fatalf("day %d = %+v, stale result leaked into the grid", c.Day, c.Visible)
			}
		}
	}
	if board.Generation() != 2 {
		t.Errorf("generation = %d", board.Generation())
	}
}

func TestBoardHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := fetchFunc(func(context.Context, string) []domain.Reminder {
		t.Error("fetch after cancel")
		return nil
	})
	if _, err := NewBoard(3).Render(ctx, Month{2025, time.April}, "alice", time.Now(), f); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
