package dashboard

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/etnz/loandash"
	"github.com/etnz/loandash/session"
)

// Options configure a Page.
type Options struct {
	// Public serves the dashboard without authentication: no gate, and the
	// token, if any, is sent as is. A 401 still ends the session.
	Public bool
	// Prompt asks for the month label of an upload submitted without one.
	Prompt Prompter
	// Now is the clock used for the default month label.
	Now    func() time.Time
	Logger *zap.Logger
}

// Page is one page instance: a gate, a sync and an uploader wired together.
type Page struct {
	Gate   *Gate // nil when public
	Sync   *Sync
	Upload *Uploader

	ctx    context.Context
	cancel context.CancelFunc
	left   atomic.Bool // the user was sent to login
}

// NewPage wires a page. Backend calls made through the page are cancelled by
// Close or by the cancellation of parent.
func NewPage(parent context.Context, backend Backend, store session.Store, nav Navigator, opts Options) *Page {
	ctx, cancel := context.WithCancel(parent)
	p := &Page{ctx: ctx, cancel: cancel}
	toLogin := NavigatorFunc(func(reason string) {
		p.left.Store(true)
		if nav != nil {
			nav.ToLogin(reason)
		}
	})
	if !opts.Public {
		p.Gate = NewGate(store, backend, toLogin, opts.Logger)
	}
	p.Sync = NewSync(backend, store, p.Gate, toLogin, opts.Logger)
	p.Upload = NewUploader(backend, store, p.Gate, toLogin, p.Sync, opts.Prompt, opts.Now, opts.Logger)
	return p
}

// Open runs the gate, then the initial load. It reports whether the page may
// render loan data; when it returns false the user has been sent to login.
func (p *Page) Open() bool {
	if p.Gate != nil && p.Gate.Enter(p.ctx) != Authenticated {
		return false
	}
	p.Sync.Load(p.ctx)
	return p.Allowed()
}

// Allowed reports whether loan data may be rendered. It is false once the
// user has been sent to login, public page included.
func (p *Page) Allowed() bool {
	if p.left.Load() {
		return false
	}
	return p.Gate == nil || p.Gate.Allowed()
}

// Submit forwards to the uploader with the page context.
func (p *Page) Submit(file *File, label string) {
	if p.left.Load() {
		return
	}
	p.Upload.Submit(p.ctx, file, label)
}

// Refresh reloads the snapshot.
func (p *Page) Refresh() {
	if p.left.Load() {
		return
	}
	p.Sync.Refresh(p.ctx)
}

// Status is what a page shows besides the loan data.
type Status struct {
	Email     string // of the validated identity
	Loading   bool
	Uploading bool
	Message   string // latest upload or fetch outcome
	Error     bool   // Message reports a failure
}

// Status snapshots the page state.
func (p *Page) Status() Status {
	st := Status{
		Loading:   p.Sync.Loading(),
		Uploading: p.Upload.InFlight(),
	}
	if p.Gate != nil {
		st.Email = p.Gate.Identity().Email
	}
	n := latest(p.Sync.lastNotice(), p.Upload.lastNotice())
	st.Message, st.Error = n.message, n.failed
	return st
}

// Snapshot returns the snapshot to render, nil when there is none or when the
// page may not render loan data.
func (p *Page) Snapshot() *loandash.Snapshot {
	if !p.Allowed() {
		return nil
	}
	return p.Sync.Snapshot()
}

// Close abandons the page: in-flight calls are cancelled and their late
// responses ignored.
func (p *Page) Close() {
	p.Sync.Close()
	p.Upload.Close()
	p.cancel()
}
