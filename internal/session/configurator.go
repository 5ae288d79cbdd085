package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/erauner12/gamesdb/internal/auth"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DefaultConfigureTimeout bounds how long callers wait for a ready session
const DefaultConfigureTimeout = 30 * time.Second

// ErrConfigurationTimeout is returned when no session became ready in time
var ErrConfigurationTimeout = errors.New("session configuration timed out")

// Phase is a step of the configuration state machine
type Phase int

const (
	Unconfigured Phase = iota
	Configuring
	Ready
	Failed
)

func (p Phase) String() string {
	switch p {
	case Configuring:
		return "configuring"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unconfigured"
	}
}

// MarshalText renders the phase by name in JSON
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a phase name
func (p *Phase) UnmarshalText(text []byte) error {
	for _, candidate := range []Phase{Unconfigured, Configuring, Ready, Failed} {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown session phase %q", text)
}

// State is a snapshot of the configurator
type State struct {
	Phase   Phase
	Session *Session // set when Ready
	Err     error    // set when Failed
}

// Configurator makes sure exactly one authenticated session exists.
//
// Concurrent callers while a configuration attempt is running join that
// attempt instead of starting another one. Failed is not sticky: the next
// Configure starts a clean attempt.
type Configurator struct {
	store    auth.Store
	acquirer auth.Acquirer
	opts     Options
	timeout  time.Duration

	group singleflight.Group

	mu           sync.RWMutex
	state        State
	forceAcquire bool   // skip the stored token on the next attempt
	epoch        uint64 // bumped by Reset and Renew; attempts from an older epoch are not installed

	subsMu  sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// NewConfigurator creates a configurator. timeout <= 0 uses DefaultConfigureTimeout.
func NewConfigurator(store auth.Store, acquirer auth.Acquirer, opts Options, timeout time.Duration) *Configurator {
	if timeout <= 0 {
		timeout = DefaultConfigureTimeout
	}
	return &Configurator{
		store:    store,
		acquirer: acquirer,
		opts:     opts,
		timeout:  timeout,
		subs:     make(map[int]func(State)),
	}
}

// Configure ensures a ready session exists. It returns immediately when one
// does, otherwise it starts or joins the single in-flight attempt.
func (c *Configurator) Configure(ctx context.Context) error {
	_, err := c.configure(ctx)
	return err
}

// Session returns the ready session, configuring first if needed. Waiting is
// bounded by the configure timeout, after which ErrConfigurationTimeout is returned.
func (c *Configurator) Session(ctx context.Context) (*Session, error) {
	if s := c.current(); s != nil {
		return s, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	s, err := c.configure(waitCtx)
	if err != nil {
		if ctx.Err() == nil && waitCtx.Err() != nil {
			log.Warn().Dur("timeout", c.timeout).Msg("gave up waiting for session configuration")
			return nil, ErrConfigurationTimeout
		}
		return nil, err
	}
	return s, nil
}

// Renew discards stale after the API rejected its token and returns a session
// built on a freshly acquired token. If stale was already replaced the
// current session is returned instead.
func (c *Configurator) Renew(ctx context.Context, stale *Session) (*Session, error) {
	c.mu.Lock()
	renewed := false
	if c.state.Phase == Ready && c.state.Session == stale {
		c.state = State{Phase: Unconfigured}
		c.forceAcquire = true
		c.epoch++
		renewed = true
	}
	c.mu.Unlock()

	if renewed {
		log.Warn().Str("sessionId", stale.ID).Msg("session token rejected, renewing")
		c.publish(State{Phase: Unconfigured})
	}
	return c.Session(ctx)
}

// Reset drops the current session. The next call configures from scratch.
// An attempt still running delivers its result to the callers waiting on it
// but does not become the current session.
func (c *Configurator) Reset() {
	c.mu.Lock()
	c.state = State{Phase: Unconfigured}
	c.forceAcquire = false
	c.epoch++
	c.mu.Unlock()

	log.Info().Msg("session reset")
	c.publish(State{Phase: Unconfigured})
}

// State returns the current state
func (c *Configurator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Subscribe registers fn for every state transition and returns a function
// that removes it. fn runs synchronously on the goroutine making the transition.
func (c *Configurator) Subscribe(fn func(State)) (unsubscribe func()) {
	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subsMu.Unlock()

	return func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
	}
}

func (c *Configurator) current() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state.Phase == Ready {
		return c.state.Session
	}
	return nil
}

func (c *Configurator) configure(ctx context.Context) (*Session, error) {
	if s := c.current(); s != nil {
		return s, nil
	}

	// The attempt is shared, so it must not die with the first caller's context
	attemptCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan("configure", func() (any, error) {
		return c.attempt(attemptCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Session), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Configurator) attempt(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	// Double-check: a previous attempt may have finished while we were scheduled
	if c.state.Phase == Ready {
		s := c.state.Session
		c.mu.Unlock()
		return s, nil
	}
	force := c.forceAcquire
	epoch := c.epoch
	c.state = State{Phase: Configuring}
	c.mu.Unlock()
	c.publish(State{Phase: Configuring})

	token, err := c.obtainToken(ctx, force)
	if err != nil {
		c.mu.Lock()
		current := epoch == c.epoch
		if current {
			c.state = State{Phase: Failed, Err: err}
		}
		c.mu.Unlock()

		log.Error().Err(err).Bool("discarded", !current).Msg("session configuration failed")
		if current {
			c.publish(State{Phase: Failed, Err: err})
		}
		return nil, err
	}

	s := New(token, c.opts)
	ready := State{Phase: Ready, Session: s}

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		log.Info().Str("sessionId", s.ID).Msg("session reset while configuring, not installing")
		return s, nil
	}
	c.state = ready
	c.forceAcquire = false
	c.mu.Unlock()

	log.Info().
		Str("sessionId", s.ID).
		Time("expiresAt", s.ExpiresAt).
		Msg("session configured")
	c.publish(ready)
	return s, nil
}

// obtainToken prefers a stored token and falls back to acquiring one
func (c *Configurator) obtainToken(ctx context.Context, force bool) (auth.Token, error) {
	if !force {
		stored, err := c.store.Load(ctx)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("token store unavailable, acquiring a new token")
		case stored != nil:
			log.Debug().Time("expiresAt", stored.ExpiresAt).Msg("using stored access token")
			return *stored, nil
		}
	}

	token, err := c.acquirer.Acquire(ctx)
	if err != nil {
		return auth.Token{}, err
	}

	if err := c.store.Save(ctx, token); err != nil {
		// The token is still good for this process
		log.Warn().Err(err).Msg("failed to persist access token")
	}
	return token, nil
}

func (c *Configurator) publish(s State) {
	c.subsMu.Lock()
	fns := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subsMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
