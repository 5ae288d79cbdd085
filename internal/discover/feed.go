// Package discover assembles the launch screen: the first page of companies,
// game engines and games, plus paging through the games.
package discover

import (
	"context"
	"errors"
	"sync"

	"github.com/erauner12/gamesdb/internal/catalog"
	"github.com/erauner12/gamesdb/internal/client"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Source fetches catalog pages. *client.Fetcher implements it.
type Source interface {
	Companies(ctx context.Context, page int) ([]catalog.Company, error)
	GameEngines(ctx context.Context, page int) ([]catalog.GameEngine, error)
	Games(ctx context.Context, page int) ([]catalog.Game, error)
	PageSize() int
}

// Configurer prepares the catalog session. *session.Configurator implements it.
type Configurer interface {
	Configure(ctx context.Context) error
}

// State is the feed's loading and error state
type State struct {
	Loading     bool  `json:"loading"`
	LoadingMore bool  `json:"loadingMore"`
	Err         error `json:"-"`
}

// Snapshot is everything the feed currently shows
type Snapshot struct {
	Companies   []catalog.Company    `json:"companies"`
	GameEngines []catalog.GameEngine `json:"gameEngines"`
	Games       []catalog.Game       `json:"games"`
	GamesCursor client.Cursor        `json:"gamesCursor"`
	State       State                `json:"state"`
	Error       string               `json:"error,omitempty"`
}

// Feed holds the discover lists. All methods are safe for concurrent use.
type Feed struct {
	source   Source
	sessions Configurer
	games    *client.Pager[catalog.Game]

	mu        sync.RWMutex
	companies []catalog.Company
	engines   []catalog.GameEngine
	state     State
	loadGen   uint64

	subsMu  sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// New creates an empty feed
func New(source Source, sessions Configurer) *Feed {
	f := &Feed{
		source:   source,
		sessions: sessions,
		games:    client.NewPager[catalog.Game](source.PageSize(), source.Games),
		subs:     make(map[int]func(State)),
	}
	f.games.OnChange(func(c client.Cursor) {
		f.update(func(s *State) { s.LoadingMore = c.InFlight })
	})
	return f
}

// LoadInitial fetches page 1 of all three lists concurrently. Results are
// applied only when all three succeed.
func (f *Feed) LoadInitial(ctx context.Context) error {
	f.mu.Lock()
	f.loadGen++
	gen := f.loadGen
	f.mu.Unlock()
	f.update(func(s *State) { s.Loading = true; s.Err = nil })

	var (
		companies []catalog.Company
		engines   []catalog.GameEngine
		games     []catalog.Game
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		companies, err = f.source.Companies(gctx, 1)
		return err
	})
	g.Go(func() (err error) {
		engines, err = f.source.GameEngines(gctx, 1)
		return err
	})
	g.Go(func() (err error) {
		games, err = f.source.Games(gctx, 1)
		return err
	})
	err := g.Wait()

	f.mu.Lock()
	if gen != f.loadGen {
		f.mu.Unlock()
		return client.ErrSuperseded
	}
	if err == nil {
		f.companies = companies
		f.engines = engines
	}
	f.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Msg("discover: initial load failed")
		f.update(func(s *State) { s.Loading = false; s.Err = err })
		return err
	}

	f.games.Seed(games)
	f.update(func(s *State) { s.Loading = false })

	log.Info().
		Int("companies", len(companies)).
		Int("gameEngines", len(engines)).
		Int("games", len(games)).
		Msg("discover: initial load completed")
	return nil
}

// LoadMoreGames appends the next page of games. It is a no-op while the
// initial load runs, while another page is loading or when there is nothing
// more to load.
func (f *Feed) LoadMoreGames(ctx context.Context) (loaded int, err error) {
	if f.State().Loading {
		return 0, nil
	}

	items, ok, err := f.games.LoadMore(ctx)
	if errors.Is(err, client.ErrSuperseded) {
		return 0, nil
	}
	if err != nil {
		log.Warn().Err(err).Msg("discover: load more games failed")
		f.update(func(s *State) { s.Err = err })
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	if f.State().Err != nil {
		f.update(func(s *State) { s.Err = nil })
	}
	return len(items), nil
}

// Refresh drops the games and reloads every list from page 1
func (f *Feed) Refresh(ctx context.Context) error {
	f.games.Reset()
	return f.LoadInitial(ctx)
}

// Foreground reconfigures the catalog session once when the app returns to
// the foreground. A ready session makes it a no-op. Success clears a
// previously published error.
func (f *Feed) Foreground(ctx context.Context) error {
	if err := f.sessions.Configure(ctx); err != nil {
		log.Warn().Err(err).Msg("discover: foreground configuration failed")
		f.update(func(s *State) { s.Err = err })
		return err
	}
	if f.State().Err != nil {
		f.update(func(s *State) { s.Err = nil })
	}
	return nil
}

// SelectGame returns the loaded game at index
func (f *Feed) SelectGame(index int) (catalog.Game, bool) {
	return f.games.Item(index)
}

// ShouldPrefetch reports whether a consumer showing game index should load
// the next page
func (f *Feed) ShouldPrefetch(index int) bool {
	return !f.State().Loading && f.games.ShouldPrefetch(index)
}

// Prefetch starts loading the next page of games in the background when
// index is near the end of the list. It returns nil when nothing was started.
func (f *Feed) Prefetch(ctx context.Context, index int) *client.Handle {
	if !f.ShouldPrefetch(index) {
		return nil
	}
	return client.Go(ctx, f.LoadMoreGames, func(n int, err error) {
		if err == nil {
			log.Debug().Int("index", index).Int("loaded", n).Msg("discover: prefetched games")
		}
	})
}

// Snapshot returns copies of the lists and the current state
func (f *Feed) Snapshot() Snapshot {
	f.mu.RLock()
	snap := Snapshot{
		Companies:   append([]catalog.Company(nil), f.companies...),
		GameEngines: append([]catalog.GameEngine(nil), f.engines...),
		State:       f.state,
	}
	f.mu.RUnlock()

	snap.Games = f.games.Items()
	snap.GamesCursor = f.games.Cursor()
	if snap.State.Err != nil {
		snap.Error = snap.State.Err.Error()
	}
	return snap
}

// State returns the current loading and error state
func (f *Feed) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Subscribe registers fn for every state change and returns a function that
// removes it. fn runs on the goroutine making the change.
func (f *Feed) Subscribe(fn func(State)) (unsubscribe func()) {
	f.subsMu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	f.subsMu.Unlock()

	return func() {
		f.subsMu.Lock()
		delete(f.subs, id)
		f.subsMu.Unlock()
	}
}

func (f *Feed) update(change func(*State)) {
	f.mu.Lock()
	change(&f.state)
	after := f.state
	f.mu.Unlock()

	f.subsMu.Lock()
	fns := make([]func(State), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.subsMu.Unlock()

	for _, fn := range fns {
		fn(after)
	}
}
