package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/campuschat/campuschat/internal/provider"
	"github.com/campuschat/campuschat/internal/stats"
)

const (
	// SessionTTL is the absolute session lifetime.
	SessionTTL = 7 * 24 * time.Hour
	// RefreshInterval is the maximum age of the credential token before a
	// forced refresh.
	RefreshInterval = 10 * time.Hour
	// PollInterval is the cadence of the background validity check.
	PollInterval = 10 * time.Minute
)

type state int

const (
	stateUnauthenticated state = iota
	stateActive
	stateExpired
)

// Guard owns the session timestamps and enforces bounded session lifetime
// independent of the UI. It is created once per process and passed explicitly
// to the components that gate on it.
type Guard struct {
	creds provider.CredentialProvider
	log   *log.Logger
	stats stats.StatsProvider

	mu            sync.Mutex
	st            state
	startedAt     time.Time
	lastRefreshAt time.Time
	expireFns     []func()
	stop          chan struct{}

	now func() time.Time
}

func NewGuard(creds provider.CredentialProvider, logger *log.Logger) *Guard {
	return &Guard{
		creds: creds,
		log:   logger,
		now:   time.Now,
	}
}

// SetStats wires an optional metrics sink for refresh and expiry counts.
func (g *Guard) SetStats(su stats.StatsProvider) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stats = su
}

func (g *Guard) incr(name string) {
	g.mu.Lock()
	su := g.stats
	g.mu.Unlock()

	if su != nil {
		su.Incr(name)
	}
}

// OnExpire registers a callback invoked once when the session transitions to
// the terminal expired state.
func (g *Guard) OnExpire(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.expireFns = append(g.expireFns, fn)
}

// Activate starts a fresh session after a successful login and spawns the
// background validity timer. Any previous timer is cancelled first, so at
// most one timer runs per process.
func (g *Guard) Activate(ctx context.Context) {
	g.mu.Lock()
	if g.stop != nil {
		close(g.stop)
	}
	now := g.now()
	g.st = stateActive
	g.startedAt = now
	g.lastRefreshAt = now
	g.stop = make(chan struct{})
	stop := g.stop
	g.mu.Unlock()

	go g.runTimer(ctx, stop)
}

// MarkRefreshed records a successful credential refresh.
func (g *Guard) MarkRefreshed() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.lastRefreshAt = g.now()
}

// Active reports whether a session currently exists.
func (g *Guard) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.st == stateActive
}

// IsValid checks the absolute TTL and the refresh interval. A breached
// refresh interval triggers exactly one refresh attempt via the credential
// provider; a breached TTL is never recoverable. IsValid does not itself
// tear the session down, so a gated caller (the composer) simply sees false.
func (g *Guard) IsValid(ctx context.Context) bool {
	g.mu.Lock()
	if g.st != stateActive {
		g.mu.Unlock()
		return false
	}

	now := g.now()
	if now.Sub(g.startedAt) >= SessionTTL {
		g.mu.Unlock()
		return false
	}

	needsRefresh := now.Sub(g.lastRefreshAt) > RefreshInterval
	g.mu.Unlock()

	if !needsRefresh {
		return true
	}

	if _, err := g.creds.RefreshToken(ctx, true); err != nil {
		// Non-fatal on its own, but the interval is already breached.
		g.log.Println("token refresh failed:", err)
		return false
	}

	g.MarkRefreshed()
	g.incr(stats.TokenRefreshes)
	return true
}

// Expire forces the terminal transition: state is cleared, the credentials
// are revoked, the timer is cancelled and the registered callbacks fire.
// Safe to call more than once.
func (g *Guard) Expire() {
	g.mu.Lock()
	if g.st != stateActive {
		g.mu.Unlock()
		return
	}
	g.st = stateExpired
	g.startedAt = time.Time{}
	g.lastRefreshAt = time.Time{}
	if g.stop != nil {
		close(g.stop)
		g.stop = nil
	}
	fns := g.expireFns
	g.mu.Unlock()

	if err := g.creds.Revoke(context.Background()); err != nil {
		g.log.Println("revoke on expiry:", err)
	}

	g.incr(stats.SessionExpiries)
	for _, fn := range fns {
		fn()
	}
}

// Deactivate ends the session without firing expiry callbacks. Used on
// explicit logout, where the caller drives the cleanup itself.
func (g *Guard) Deactivate() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.st = stateUnauthenticated
	g.startedAt = time.Time{}
	g.lastRefreshAt = time.Time{}
	if g.stop != nil {
		close(g.stop)
		g.stop = nil
	}
}

func (g *Guard) runTimer(ctx context.Context, stop chan struct{}) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !g.IsValid(ctx) {
				g.log.Println("session no longer valid, forcing logout")
				g.Expire()
				return
			}
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}
