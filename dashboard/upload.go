package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/etnz/loandash"
	"github.com/etnz/loandash/session"
)

// BusyMessage is reported when a submit arrives while another one is in flight.
const BusyMessage = "An upload is already in progress"

// File is a CSV chosen by the user.
type File struct {
	Name    string
	Content io.Reader
}

// Prompter asks the user for a month label. It receives the default label
// and may return "" to accept it.
type Prompter interface {
	MonthLabel(ctx context.Context, def string) (string, error)
}

// PrompterFunc adapts a function to a Prompter.
type PrompterFunc func(ctx context.Context, def string) (string, error)

func (f PrompterFunc) MonthLabel(ctx context.Context, def string) (string, error) { return f(ctx, def) }

// Refresher is the part of Sync an upload needs.
type Refresher interface {
	Refresh(ctx context.Context)
}

// Uploader submits one CSV at a time and refreshes the snapshot after each
// accepted upload.
type Uploader struct {
	backend CSVUploader
	store   session.Store
	gate    *Gate // nil for a public dashboard
	nav     Navigator
	refresh Refresher
	prompt  Prompter
	now     func() time.Time
	logger  *zap.Logger

	inflight atomic.Bool

	mu     sync.Mutex
	note   notice
	closed bool
}

// NewUploader returns an Uploader. gate and prompt may be nil, now defaults
// to time.Now. nav is used for a 401 on a public dashboard.
func NewUploader(backend CSVUploader, store session.Store, gate *Gate, nav Navigator, refresh Refresher, prompt Prompter, now func() time.Time, logger *zap.Logger) *Uploader {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{
		backend: backend,
		store:   store,
		gate:    gate,
		nav:     nav,
		refresh: refresh,
		prompt:  prompt,
		now:     now,
		logger:  logger.Named("upload"),
	}
}

// Submit uploads file for the month label.
//
// A nil file is ignored. An empty label is asked to the Prompter, if any, and
// falls back to the current month ("feb26"). On success the confirmation
// becomes the Message and the snapshot is refreshed exactly once; on failure
// the Message is "Error: " followed by the reason and nothing is refreshed.
// The previous outcome is cleared when the upload starts.
func (u *Uploader) Submit(ctx context.Context, file *File, label string) {
	if file == nil {
		return
	}
	if u.gate != nil && !u.gate.Allowed() {
		u.logger.Debug("upload refused, gate is closed")
		return
	}
	label = u.monthLabel(ctx, label)

	if !u.inflight.CompareAndSwap(false, true) {
		u.setNotice(newNotice(BusyMessage, false))
		return
	}
	defer u.inflight.Store(false)
	u.setNotice(notice{})

	u.logger.Info("uploading", zap.String("file", file.Name), zap.String("month", label))
	res, err := u.backend.UploadCSV(ctx, u.store.Get().Token, file.Name, file.Content, label)

	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return
	}
	var ve *loandash.ValidationError
	unauthorized := errors.Is(err, loandash.ErrUnauthorized)
	switch {
	case err == nil:
		u.note = newNotice(fmt.Sprintf("Success! Parsed %d loans. Files: %s", res.LoansParsed, strings.Join(res.FilesGenerated, ", ")), false)
	case unauthorized:
		u.note = notice{}
	case errors.As(err, &ve):
		u.note = newNotice("Error: "+ve.Message, true)
	default:
		u.logger.Warn("upload failed", zap.Error(err))
		u.note = newNotice("Error: "+err.Error(), true)
	}
	u.mu.Unlock()

	switch {
	case err == nil:
		u.refresh.Refresh(ctx)
	case unauthorized:
		rejectSession(u.gate, u.store, u.nav, u.logger)
	}
}

func (u *Uploader) monthLabel(ctx context.Context, label string) string {
	if l := loandash.MonthLabel(label); l != "" {
		return l
	}
	def := loandash.DefaultMonthLabel(u.now())
	if u.prompt == nil {
		return def
	}
	l, err := u.prompt.MonthLabel(ctx, def)
	if err != nil {
		u.logger.Debug("prompt failed, using the default month", zap.Error(err))
		return def
	}
	if l = loandash.MonthLabel(l); l != "" {
		return l
	}
	return def
}

func (u *Uploader) setNotice(n notice) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.closed {
		u.note = n
	}
}

// InFlight reports whether an upload is running. The upload control must be
// disabled while it is true.
func (u *Uploader) InFlight() bool { return u.inflight.Load() }

// Message returns the outcome of the last upload.
func (u *Uploader) Message() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.note.message
}

func (u *Uploader) lastNotice() notice {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.note
}

// Close stops late upload responses from changing the state.
func (u *Uploader) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.closed = true
}
