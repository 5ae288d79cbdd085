package client

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// PrefetchThreshold is how close to the end of the loaded items a consumer
// may get before the next page should be requested
const PrefetchThreshold = 5

// ErrSuperseded is returned by a load whose result was discarded because a
// newer first-page load started while it was running
var ErrSuperseded = errors.New("page load superseded")

// PageFunc fetches a 1-based page
type PageFunc[T any] func(ctx context.Context, page int) ([]T, error)

// Cursor is the pagination state of one list
type Cursor struct {
	CurrentPage int  `json:"currentPage"`
	PageSize    int  `json:"pageSize"`
	HasMore     bool `json:"hasMore"`
	InFlight    bool `json:"inFlight"`
}

// Pager accumulates the pages of one list. It is the only place that decides
// whether another page may be requested.
type Pager[T any] struct {
	fetch PageFunc[T]

	mu         sync.Mutex
	cursor     Cursor
	loaded     bool
	items      []T
	generation uint64
	onChange   func(Cursor)
}

// NewPager creates a pager that has not loaded anything yet
func NewPager[T any](pageSize int, fetch PageFunc[T]) *Pager[T] {
	return &Pager[T]{
		fetch:  fetch,
		cursor: Cursor{CurrentPage: 1, PageSize: pageSize, HasMore: true},
	}
}

// OnChange registers fn to run after every cursor transition. It must be
// called before the pager is shared.
func (p *Pager[T]) OnChange(fn func(Cursor)) {
	p.onChange = fn
}

// Seed replaces the loaded items with a page 1 fetched elsewhere, as when
// several lists are loaded together. Loads in flight are discarded.
func (p *Pager[T]) Seed(items []T) {
	p.mu.Lock()
	p.generation++
	p.items = append([]T(nil), items...)
	p.loaded = true
	p.cursor = Cursor{
		CurrentPage: 1,
		PageSize:    p.cursor.PageSize,
		HasMore:     len(items) >= p.cursor.PageSize,
	}
	cursor := p.cursor
	p.mu.Unlock()
	p.notify(cursor)
}

// LoadFirst fetches page 1 and replaces the loaded items. It always runs,
// superseding any load in flight.
func (p *Pager[T]) LoadFirst(ctx context.Context) ([]T, error) {
	p.mu.Lock()
	gen, cursor := p.beginFirstLocked()
	p.mu.Unlock()
	return p.finishFirst(ctx, gen, cursor)
}

// beginFirstLocked marks a page 1 load as in flight. p.mu must be held.
func (p *Pager[T]) beginFirstLocked() (uint64, Cursor) {
	p.generation++
	p.cursor.InFlight = true
	return p.generation, p.cursor
}

func (p *Pager[T]) finishFirst(ctx context.Context, gen uint64, cursor Cursor) ([]T, error) {
	p.notify(cursor)

	items, err := p.fetch(ctx, 1)

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return nil, ErrSuperseded
	}
	p.cursor.InFlight = false
	if err == nil {
		p.items = append([]T(nil), items...)
		p.loaded = true
		p.cursor.CurrentPage = 1
		p.cursor.HasMore = len(items) >= p.cursor.PageSize
	}
	cursor = p.cursor
	p.mu.Unlock()
	p.notify(cursor)

	if err != nil {
		return nil, err
	}
	return items, nil
}

// LoadMore fetches the page after the current one and appends it. It is a
// no-op returning ok=false when there is nothing more or a load is in flight.
// Before anything is loaded it loads page 1, unless that is already in flight;
// only LoadFirst supersedes a running load.
func (p *Pager[T]) LoadMore(ctx context.Context) (items []T, ok bool, err error) {
	p.mu.Lock()
	if !p.loaded {
		if p.cursor.InFlight {
			p.mu.Unlock()
			log.Debug().Msg("load more skipped, first page in flight")
			return nil, false, nil
		}
		gen, cursor := p.beginFirstLocked()
		p.mu.Unlock()
		items, err := p.finishFirst(ctx, gen, cursor)
		return items, err == nil, err
	}
	if !p.cursor.HasMore || p.cursor.InFlight {
		cursor := p.cursor
		p.mu.Unlock()
		log.Debug().Bool("hasMore", cursor.HasMore).Bool("inFlight", cursor.InFlight).Msg("load more skipped")
		return nil, false, nil
	}
	gen := p.generation
	next := p.cursor.CurrentPage + 1
	p.cursor.InFlight = true
	cursor := p.cursor
	p.mu.Unlock()
	p.notify(cursor)

	items, err = p.fetch(ctx, next)

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return nil, false, ErrSuperseded
	}
	p.cursor.InFlight = false
	if err == nil {
		p.items = append(p.items, items...)
		p.cursor.CurrentPage = next
		p.cursor.HasMore = len(items) >= p.cursor.PageSize
	}
	cursor = p.cursor
	p.mu.Unlock()
	p.notify(cursor)

	if err != nil {
		return nil, false, err
	}
	return items, true, nil
}

// ShouldPrefetch reports whether a consumer looking at index is close enough
// to the end to request the next page
func (p *Pager[T]) ShouldPrefetch(index int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded || !p.cursor.HasMore || p.cursor.InFlight {
		return false
	}
	return index >= len(p.items)-PrefetchThreshold
}

// Items returns a copy of everything loaded so far
func (p *Pager[T]) Items() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]T(nil), p.items...)
}

// Item returns the loaded item at index
func (p *Pager[T]) Item(index int) (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var zero T
	if index < 0 || index >= len(p.items) {
		return zero, false
	}
	return p.items[index], true
}

// Cursor returns the current pagination state
func (p *Pager[T]) Cursor() Cursor {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Reset drops all items. Loads in flight are discarded when they complete.
func (p *Pager[T]) Reset() {
	p.mu.Lock()
	p.generation++
	p.items = nil
	p.loaded = false
	p.cursor = Cursor{CurrentPage: 1, PageSize: p.cursor.PageSize, HasMore: true}
	cursor := p.cursor
	p.mu.Unlock()
	p.notify(cursor)
}

func (p *Pager[T]) notify(c Cursor) {
	if p.onChange != nil {
		p.onChange(c)
	}
}
