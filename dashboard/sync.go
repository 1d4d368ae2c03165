package dashboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/etnz/loandash"
	"github.com/etnz/loandash/session"
)

// LoadErrorMessage is shown when a fetch fails for a transient reason.
const LoadErrorMessage = "Error loading loan data"

// outcomes orders the notices of every Sync and Uploader.
var outcomes atomic.Uint64

// notice is a message for the user. seq orders it against the other notices
// of the page; the zero notice is "nothing to say".
type notice struct {
	message string
	failed  bool
	seq     uint64
}

func newNotice(message string, failed bool) notice {
	return notice{message: message, failed: failed, seq: outcomes.Add(1)}
}

// latest returns the most recent of the non-empty notices.
func latest(a, b notice) notice {
	if a.message == "" || (b.message != "" && b.seq > a.seq) {
		return b
	}
	return a
}

// Sync holds the page's snapshot and (re)fetches it.
//
// With a gate, Sync is protected: it does not fetch before the gate allows it
// and a 401 goes through Gate.Reject. Without a gate (public dashboard) a 401
// still clears the session and sends the user to login.
type Sync struct {
	fetch  Fetcher
	store  session.Store
	gate   *Gate
	nav    Navigator
	logger *zap.Logger

	mu       sync.Mutex
	snapshot *loandash.Snapshot
	note     notice
	inflight int
	issued   uint64 // sequence of the last fetch issued
	applied  uint64 // sequence of the fetch whose outcome is on display
	closed   bool
}

// NewSync returns a Sync. gate is nil for a public dashboard, nav is only used
// then.
func NewSync(fetch Fetcher, store session.Store, gate *Gate, nav Navigator, logger *zap.Logger) *Sync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sync{fetch: fetch, store: store, gate: gate, nav: nav, logger: logger.Named("sync")}
}

// Load fetches the snapshot and replaces the current one wholesale.
//
// Failures never escape: a transient failure keeps the previous snapshot and
// sets Message. When fetches overlap, the response of the most recently
// issued one wins; an older response arriving late is dropped.
func (s *Sync) Load(ctx context.Context) {
	if s.gate != nil && !s.gate.Allowed() {
		s.logger.Debug("fetch refused, gate is closed")
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.issued++
	seq := s.issued
	s.inflight++
	s.mu.Unlock()

	snapshot, err := s.fetch.FetchPortfolio(ctx, s.store.Get().Token)

	s.mu.Lock()
	s.inflight--
	if s.closed || seq < s.applied {
		s.mu.Unlock()
		s.logger.Debug("late response dropped", zap.Uint64("seq", seq))
		return
	}
	s.applied = seq
	unauthorized := errors.Is(err, loandash.ErrUnauthorized)
	switch {
	case err == nil:
		s.snapshot = snapshot
		s.note = notice{}
	case unauthorized:
		s.note = notice{}
	default:
		s.logger.Warn("fetch failed", zap.Error(err))
		s.note = newNotice(LoadErrorMessage, true)
	}
	s.mu.Unlock()

	if unauthorized {
		rejectSession(s.gate, s.store, s.nav, s.logger)
	}
}

// Refresh is Load, called after a mutating action.
func (s *Sync) Refresh(ctx context.Context) { s.Load(ctx) }

// Snapshot returns the snapshot on display, nil before the first success.
func (s *Sync) Snapshot() *loandash.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Loading reports whether a fetch is in flight.
func (s *Sync) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// Message returns the last fetch failure, "" when the last fetch succeeded.
func (s *Sync) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.note.message
}

func (s *Sync) lastNotice() notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.note
}

// Close stops every in-flight or future fetch from changing the state.
func (s *Sync) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
