package draft

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/participadf/ouvidoria/internal/manifestation"
)

// DefaultDebounce is the quiescence window before a burst of edits is committed.
const DefaultDebounce = 450 * time.Millisecond

// Saver commits a snapshot to durable storage. *Store implements it.
type Saver interface {
	Save(ctx context.Context, snap manifestation.DraftSnapshot) error
}

// Status is the non-blocking save hint shown next to the form.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusSaving Status = "saving"
	StatusSaved  Status = "saved"
	StatusError  Status = "error"
)

// Hint returns the user-facing copy for s.
func (s Status) Hint() string {
	switch s {
	case StatusSaving:
		return "Salvando rascunho…"
	case StatusSaved:
		return "Rascunho salvo."
	case StatusError:
		return "Não foi possível salvar o rascunho."
	}
	return ""
}

// Autosaver coalesces form changes into debounced draft commits.
//
// A single background goroutine owns the pending snapshot and the debounce
// timer. Schedule replaces any pending, not-yet-fired save and restarts the
// timer, so a burst of edits commits once with the last payload. A commit in
// progress is never cancelled; changes scheduled meanwhile are committed after it.
//
// All methods are safe to call from multiple goroutines.
type Autosaver struct {
	saver    Saver
	debounce time.Duration
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	dirtyCh      chan struct{}
	timerFiredCh chan uint64
	flushNowCh   chan flushRequest
	cancelCh     chan chan struct{}
	shutdownCh   chan chan error

	wg           sync.WaitGroup
	shutdownOnce sync.Once

	mu       sync.Mutex
	latest   *manifestation.DraftSnapshot
	seq      uint64 // bumped by every Schedule
	status   Status
	lastErr  error
	onStatus func(Status)
}

type flushRequest struct {
	ctx        context.Context
	responseCh chan error
}

// Option configures an Autosaver.
type Option func(*Autosaver)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(a *Autosaver) {
		if d > 0 {
			a.debounce = d
		}
	}
}

// WithLogger sets the logger used for failed commits.
func WithLogger(l *slog.Logger) Option {
	return func(a *Autosaver) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithStatusHook registers fn to receive every status change.
func WithStatusHook(fn func(Status)) Option {
	return func(a *Autosaver) { a.onStatus = fn }
}

// NewAutosaver starts the background goroutine. Stop it with Shutdown.
func NewAutosaver(saver Saver, opts ...Option) *Autosaver {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Autosaver{
		saver:        saver,
		debounce:     DefaultDebounce,
		logger:       slog.Default(),
		ctx:          ctx,
		cancel:       cancel,
		dirtyCh:      make(chan struct{}, 1),
		timerFiredCh: make(chan uint64),
		flushNowCh:   make(chan flushRequest),
		cancelCh:     make(chan chan struct{}),
		shutdownCh:   make(chan chan error),
		status:       StatusIdle,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.wg.Add(1)
	go a.run()

	return a
}

// Schedule records f's attachment-free snapshot as the pending save and
// restarts the debounce window. It never blocks on storage.
func (a *Autosaver) Schedule(f manifestation.FormState) {
	if a.ctx.Err() != nil {
		return
	}
	snap := f.Snapshot()

	a.mu.Lock()
	a.latest = &snap
	a.seq++
	notify := a.transitionLocked(StatusSaving, nil)
	a.mu.Unlock()
	notify()

	// Coalesce: one queued signal is enough, the loop reads the latest snapshot
	select {
	case a.dirtyCh <- struct{}{}:
	default:
	}
}

// Flush commits the pending snapshot now, bypassing the debounce window.
func (a *Autosaver) Flush(ctx context.Context) error {
	req := flushRequest{ctx: ctx, responseCh: make(chan error, 1)}
	select {
	case a.flushNowCh <- req:
		return <-req.responseCh
	case <-a.ctx.Done():
		return fmt.Errorf("autosaver shut down")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel drops any pending save. When it returns no commit is running or pending.
func (a *Autosaver) Cancel() {
	done := make(chan struct{})
	select {
	case a.cancelCh <- done:
		<-done
	case <-a.ctx.Done():
	}
}

// Status returns the current save hint and the error of the last failed commit.
func (a *Autosaver) Status() (Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status, a.lastErr
}

// Shutdown commits any pending snapshot and stops the goroutine.
// Subsequent calls return nil immediately.
func (a *Autosaver) Shutdown() error {
	var shutdownErr error
	a.shutdownOnce.Do(func() {
		responseCh := make(chan error, 1)
		a.shutdownCh <- responseCh
		shutdownErr = <-responseCh
		a.wg.Wait()
		a.cancel()
	})
	return shutdownErr
}

// run is the event loop. It owns the timer and the generation counter.
func (a *Autosaver) run() {
	defer a.wg.Done()

	var (
		timer *time.Timer
		gen   uint64
		dirty bool
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
		}
		// Invalidate a callback that already fired but has not been received
		gen++
	}
	defer stopTimer()

	for {
		select {
		case <-a.dirtyCh:
			dirty = true
			stopTimer()
			fired := gen
			timer = time.AfterFunc(a.debounce, func() {
				select {
				case a.timerFiredCh <- fired:
				case <-a.ctx.Done():
				}
			})

		case fired := <-a.timerFiredCh:
			if fired != gen || !dirty {
				continue // superseded by a newer schedule
			}
			timer = nil
			dirty = false
			_ = a.commit(a.ctx)

		case req := <-a.flushNowCh:
			stopTimer()
			drainSignal(a.dirtyCh, &dirty)
			if !dirty {
				req.responseCh <- nil
				continue
			}
			dirty = false
			req.responseCh <- a.commit(req.ctx)

		case done := <-a.cancelCh:
			stopTimer()
			drainSignal(a.dirtyCh, &dirty)
			dirty = false
			a.mu.Lock()
			a.latest = nil
			a.mu.Unlock()
			a.setStatus(StatusIdle, nil)
			close(done)

		case responseCh := <-a.shutdownCh:
			stopTimer()
			drainSignal(a.dirtyCh, &dirty)
			var err error
			if dirty {
				err = a.commit(a.ctx)
			}
			responseCh <- err
			return
		}
	}
}

// drainSignal consumes a queued dirty signal so it is handled by the current request.
func drainSignal(ch chan struct{}, dirty *bool) {
	select {
	case <-ch:
		*dirty = true
	default:
	}
}

// commit saves the latest snapshot. Called only from run.
func (a *Autosaver) commit(ctx context.Context) error {
	a.mu.Lock()
	if a.latest == nil {
		a.mu.Unlock()
		return nil
	}
	snap := *a.latest
	seq := a.seq
	a.mu.Unlock()

	if err := a.saver.Save(ctx, snap); err != nil {
		a.logger.Warn("draft save failed", "error", err)
		a.setStatus(StatusError, err)
		return err
	}

	// Any Schedule since the snapshot was taken keeps the hint at saving,
	// even when it carried an identical payload
	a.mu.Lock()
	notify := func() {}
	if a.seq == seq {
		notify = a.transitionLocked(StatusSaved, nil)
	}
	a.mu.Unlock()
	notify()
	return nil
}

func (a *Autosaver) setStatus(s Status, err error) {
	a.mu.Lock()
	notify := a.transitionLocked(s, err)
	a.mu.Unlock()
	notify()
}

// transitionLocked updates the status and returns the hook call to run
// after a.mu is released. Caller holds a.mu.
func (a *Autosaver) transitionLocked(s Status, err error) func() {
	changed := a.status != s
	a.status = s
	a.lastErr = err
	hook := a.onStatus
	if !changed || hook == nil {
		return func() {}
	}
	return func() { hook(s) }
}
