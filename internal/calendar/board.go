package calendar

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tazhate/kalendarbot/internal/domain"
)

// ErrStaleRender is returned by Render when a newer render started before
// this one finished. The caller must not draw its result.
var ErrStaleRender = errors.New("render superseded")

// DayFetcher loads the reminders of one date.
type DayFetcher interface {
	RemindersOn(ctx context.Context, date string) []domain.Reminder
}

// Grid is a rendered month.
type Grid struct {
	Month   Month
	Leading int
	Cells   []Cell
}

func (g *Grid) clone() *Grid {
	cp := &Grid{Month: g.Month, Leading: g.Leading, Cells: make([]Cell, len(g.Cells))}
	copy(cp.Cells, g.Cells)
	return cp
}

// Board owns the grid of one chat. Every Render bumps the generation; day
// results of an older generation are dropped and its remaining days are
// never fetched.
type Board struct {
	mu    sync.Mutex
	gen   uint64
	grid  *Grid
	limit int
}

func NewBoard(limit int) *Board {
	if limit <= 0 {
		limit = 1
	}
	return &Board{limit: limit}
}

// Render lays out m and fills every day cell from f, at most limit fetches
// at a time.
func (b *Board) Render(ctx context.Context, m Month, username string, today time.Time, f DayFetcher) (*Grid, error) {
	days := m.Days()
	grid := &Grid{Month: m, Leading: m.Offset(), Cells: make([]Cell, days)}
	for i := range grid.Cells {
		date := m.Date(i + 1)
		grid.Cells[i] = Cell{Day: i + 1, Date: date, Today: date == today.Format(domain.DateLayout)}
	}

	b.mu.Lock()
	b.gen++
	gen := b.gen
	b.grid = grid
	b.mu.Unlock()

	g := new(errgroup.Group)
	g.SetLimit(b.limit)
	for i := range grid.Cells {
		if !b.current(gen) {
			break
		}
		cell := grid.Cells[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !b.current(gen) {
				return nil
			}
			reminders := f.RemindersOn(ctx, cell.Date)
			b.apply(gen, i, BuildDay(cell.Day, cell.Date, reminders, username, cell.Today))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gen != gen {
		return nil, ErrStaleRender
	}
	return b.grid.clone(), nil
}

func (b *Board) current(gen uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gen == gen
}

func (b *Board) apply(gen uint64, i int, cell Cell) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gen != gen {
		return
	}
	b.grid.Cells[i] = cell
}

// Snapshot returns a copy of the latest grid, or nil before the first render.
func (b *Board) Snapshot() *Grid {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.grid == nil {
		return nil
	}
	return b.grid.clone()
}

// Generation returns the current render generation.
func (b *Board) Generation() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gen
}
