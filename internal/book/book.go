// Package book holds the shared position book.
//
// Every position, open or closed, lives here behind a single mutex. Closed
// positions are kept as history and are never deleted.
package book

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/atmx/liquidation-engine/internal/contract"
	"github.com/atmx/liquidation-engine/internal/metrics"
	"github.com/atmx/liquidation-engine/internal/model"
)

var (
	// ErrInvalidPosition is returned when a seeded position violates the
	// position invariants.
	ErrInvalidPosition = errors.New("book: invalid position")

	// ErrDuplicatePosition is returned when a seeded id is already present.
	ErrDuplicatePosition = errors.New("book: duplicate position id")

	// ErrNotFound is returned when no position has the requested id.
	ErrNotFound = errors.New("book: position not found")
)

// Book is the shared, mutable collection of positions. Readers receive
// copies; only Update hands out pointers, and only while the lock is held.
type Book struct {
	mu        sync.Mutex
	positions []model.Position
	index     map[uuid.UUID]int
}

// New creates an empty book.
func New() *Book {
	return &Book{index: make(map[uuid.UUID]int)}
}

// Validate checks a position against the creation-time invariants. A zero
// id is allowed; Seed assigns one.
func Validate(p model.Position) error {
	switch {
	case p.Owner == "":
		return fmt.Errorf("%w: owner is required", ErrInvalidPosition)
	case !p.Side.Valid():
		return fmt.Errorf("%w: side must be long or short, got %q", ErrInvalidPosition, p.Side)
	case p.Size <= 0:
		return fmt.Errorf("%w: size must be positive, got %d", ErrInvalidPosition, p.Size)
	case p.EntryPrice <= 0:
		return fmt.Errorf("%w: entry price must be positive, got %d", ErrInvalidPosition, p.EntryPrice)
	case p.Margin < 0:
		return fmt.Errorf("%w: margin cannot be negative, got %d", ErrInvalidPosition, p.Margin)
	case p.Leverage < model.MinLeverage || p.Leverage > model.MaxLeverage:
		return fmt.Errorf("%w: leverage must be in [%d, %d], got %d",
			ErrInvalidPosition, model.MinLeverage, model.MaxLeverage, p.Leverage)
	}
	if err := contract.Validate(p.Symbol); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPosition, err)
	}
	return nil
}

// Seed adds starting positions. It is meant to run before the engine loops
// start. Each position is validated, opened, and given an id if it has none.
// Seeding is all-or-nothing: on error the book is unchanged.
func (b *Book) Seed(positions ...model.Position) ([]model.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	seen := make(map[uuid.UUID]bool, len(positions))
	added := make([]model.Position, 0, len(positions))
	for _, p := range positions {
		if err := Validate(p); err != nil {
			return nil, err
		}
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if _, exists := b.index[p.ID]; exists || seen[p.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePosition, p.ID)
		}
		seen[p.ID] = true
		p.Open = true
		added = append(added, p)
	}

	for _, p := range added {
		b.index[p.ID] = len(b.positions)
		b.positions = append(b.positions, p)
	}
	metrics.OpenPositions.Set(float64(b.openCountLocked()))
	return added, nil
}

// Snapshot returns a point-in-time copy of every position.
func (b *Book) Snapshot() []model.Position {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]model.Position, len(b.positions))
	copy(out, b.positions)
	return out
}

// OpenSnapshot returns a point-in-time copy of the open positions.
func (b *Book) OpenSnapshot() []model.Position {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]model.Position, 0, len(b.positions))
	for _, p := range b.positions {
		if p.Open {
			out = append(out, p)
		}
	}
	return out
}

// Get returns a copy of one position.
func (b *Book) Get(id uuid.UUID) (model.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i, ok := b.index[id]
	if !ok {
		return model.Position{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return b.positions[i], nil
}

// Update calls fn for every open position while holding the book lock for
// the whole pass, so readers never observe a partially mutated position.
// fn must not block on external I/O. Positions fn closes are never passed to
// a later Update.
func (b *Book) Update(fn func(p *model.Position)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.positions {
		if !b.positions[i].Open {
			continue
		}
		fn(&b.positions[i])
	}
	metrics.OpenPositions.Set(float64(b.openCountLocked()))
}

// Len returns the number of positions, open and closed.
func (b *Book) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.positions)
}

func (b *Book) openCountLocked() int {
	n := 0
	for _, p := range b.positions {
		if p.Open {
			n++
		}
	}
	return n
}
