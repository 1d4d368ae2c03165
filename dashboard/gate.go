// Package dashboard drives one dashboard page: the auth gate guarding it, the
// portfolio sync holding its snapshot, and the upload coordinator.
//
// A page instance is one CLI invocation or one web request. Components are
// safe for concurrent use; they only block inside backend calls.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/etnz/loandash"
	"github.com/etnz/loandash/api"
	"github.com/etnz/loandash/session"
)

// Authenticator validates a token.
type Authenticator interface {
	CheckAuth(ctx context.Context, token string) (loandash.Identity, error)
}

// Fetcher retrieves the masters document.
type Fetcher interface {
	FetchPortfolio(ctx context.Context, token string) (*loandash.Snapshot, error)
}

// CSVUploader submits a statement export.
type CSVUploader interface {
	UploadCSV(ctx context.Context, token, filename string, content io.Reader, month string) (api.UploadResult, error)
}

// Backend is everything a page needs from the backend. *api.Client is one.
type Backend interface {
	Authenticator
	Fetcher
	CSVUploader
}

// Navigator takes the user to the login entry point.
type Navigator interface {
	ToLogin(reason string)
}

// NavigatorFunc adapts a function to a Navigator.
type NavigatorFunc func(reason string)

func (f NavigatorFunc) ToLogin(reason string) { f(reason) }

// State of a Gate.
type State int

const (
	Unchecked State = iota
	Checking
	Authenticated
	Rejected
)

func (s State) String() string {
	switch s {
	case Unchecked:
		return "unchecked"
	case Checking:
		return "checking"
	case Authenticated:
		return "authenticated"
	case Rejected:
		return "rejected"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ExpiredReason is given to the Navigator when the backend refuses the token.
const ExpiredReason = "Session expired, please log in again"

// Gate guards the protected operations of a page.
//
// Rejected is terminal: once rejected the session is cleared, the user has
// been sent to login and nothing protected runs again on this page.
type Gate struct {
	store  session.Store
	auth   Authenticator
	nav    Navigator
	logger *zap.Logger

	mu       sync.Mutex
	state    State
	identity loandash.Identity
}

// NewGate returns an Unchecked gate.
func NewGate(store session.Store, auth Authenticator, nav Navigator, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{store: store, auth: auth, nav: nav, logger: logger.Named("gate")}
}

// Enter validates the stored session. Only the first call does anything,
// later calls return the current state.
func (g *Gate) Enter(ctx context.Context) State {
	g.mu.Lock()
	if g.state != Unchecked {
		defer g.mu.Unlock()
		return g.state
	}
	s := g.store.Get()
	if !s.Authenticated() {
		g.mu.Unlock()
		g.Reject("Please log in")
		return Rejected
	}
	g.state = Checking
	g.mu.Unlock()

	id, err := g.auth.CheckAuth(ctx, s.Token)
	if err != nil {
		g.logger.Info("session rejected", zap.Error(err))
		reason := ExpiredReason
		if !errors.Is(err, loandash.ErrUnauthorized) {
			reason = "Cannot verify the session, please log in again"
		}
		g.Reject(reason)
		return Rejected
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Checking {
		// rejected while checking
		return g.state
	}
	if err := g.store.Set(s.Token, id.UserID, id.Email); err != nil {
		g.logger.Warn("cannot save identity", zap.Error(err))
	}
	g.identity = id
	g.state = Authenticated
	return g.state
}

// Reject clears the session and sends the user to login. Every component that
// meets a 401 on a protected page ends up here.
func (g *Gate) Reject(reason string) {
	g.mu.Lock()
	if g.state == Rejected {
		g.mu.Unlock()
		return
	}
	g.state = Rejected
	g.identity = loandash.Identity{}
	g.mu.Unlock()

	endSession(g.store, g.nav, g.logger, reason)
}

// rejectSession handles a 401: through gate when the page is protected,
// directly on a public page.
func rejectSession(gate *Gate, store session.Store, nav Navigator, logger *zap.Logger) {
	if gate != nil {
		gate.Reject(ExpiredReason)
		return
	}
	endSession(store, nav, logger, ExpiredReason)
}

// endSession clears the stored session, then sends the user to login.
func endSession(store session.Store, nav Navigator, logger *zap.Logger, reason string) {
	if err := store.Clear(); err != nil {
		logger.Error("cannot clear session", zap.Error(err))
	}
	if nav != nil {
		nav.ToLogin(reason)
	}
}

// Allowed reports whether protected operations may run.
func (g *Gate) Allowed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == Authenticated
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Identity returns the identity validated by Enter.
func (g *Gate) Identity() loandash.Identity {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.identity
}
