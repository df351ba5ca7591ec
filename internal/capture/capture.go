// Package capture drives a single audio recording session from device
// acquisition to a finished attachment.
package capture

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/participadf/ouvidoria/internal/errors"
	"github.com/participadf/ouvidoria/internal/manifestation"
)

// Status is the recorder state.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusRecording   Status = "recording"
	StatusReady       Status = "ready"
	StatusError       Status = "error"
	StatusUnsupported Status = "unsupported"
)

// Defaults for session bounds.
const (
	DefaultMaxBytes    int64 = 25 << 20
	DefaultMaxDuration       = 5 * time.Minute
	FallbackMimeType         = "audio/webm"
)

// User-facing messages.
const (
	MsgUnsupported    = "Gravação não suportada neste dispositivo. Use \"Enviar arquivo de áudio\"."
	MsgAccessDenied   = "Não foi possível acessar o microfone."
	MsgRecording      = "Gravação iniciada."
	MsgStopped        = "Gravação finalizada."
	MsgRecordingError = "Erro durante a gravação."
	MsgLimitReached   = "Limite de gravação atingido."
	MsgCleared        = "Gravação removida."
	MsgBusy           = "Já existe uma gravação em andamento."
	MsgNotRecording   = "Nenhuma gravação em andamento."
)

var (
	// ErrNotRecording is returned by Stop outside a recording session.
	ErrNotRecording = stderrors.New("no recording in progress")
	// ErrClosed is returned after Close.
	ErrClosed = stderrors.New("capture controller closed")
)

// Controller is the recorder state machine.
//
//	idle/ready/error --Start ok--> recording
//	idle/ready/error --Start fails--> error
//	recording --Stop, source end, limit--> ready
//	recording --device error--> error
//	ready/error --Clear--> idle
//
// Leaving recording always passes through releaseLocked, so the device is
// freed exactly once per session whatever the exit.
type Controller struct {
	device      Device
	maxBytes    int64
	maxDuration time.Duration
	logger      *slog.Logger
	now         func() time.Time
	onCaptured  func(*manifestation.Attachment)
	onCleared   func()

	mu       sync.Mutex
	status   Status
	message  string
	starting bool
	closed   bool

	// Session state, valid while recording.
	session  string
	handle   Handle
	mimeType string
	started  time.Time
	chunks   [][]byte
	size     int64
	limited  bool
	done     chan struct{}

	artifact *manifestation.Attachment
}

// Option configures a Controller.
type Option func(*Controller)

// WithMaxBytes bounds the recorded size. Zero or less disables the bound.
func WithMaxBytes(n int64) Option {
	return func(c *Controller) { c.maxBytes = n }
}

// WithMaxDuration bounds the recording length. Zero or less disables the bound.
func WithMaxDuration(d time.Duration) Option {
	return func(c *Controller) { c.maxDuration = d }
}

// WithLogger sets the logger for session transitions.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// OnCaptured registers fn to receive each finished recording.
func OnCaptured(fn func(*manifestation.Attachment)) Option {
	return func(c *Controller) { c.onCaptured = fn }
}

// OnCleared registers fn to run when a recording is discarded.
func OnCleared(fn func()) Option {
	return func(c *Controller) { c.onCleared = fn }
}

// New creates a Controller. A nil device means recording is not supported;
// the controller stays in StatusUnsupported for its lifetime.
func New(device Device, opts ...Option) *Controller {
	c := &Controller{
		device:      device,
		maxBytes:    DefaultMaxBytes,
		maxDuration: DefaultMaxDuration,
		logger:      slog.Default(),
		now:         time.Now,
		status:      StatusIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	if device == nil {
		c.status = StatusUnsupported
		c.message = MsgUnsupported
	}
	return c
}

// Status returns the current state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Message returns the user-facing message for the last transition.
func (c *Controller) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

// Artifact returns the finished recording, or nil.
func (c *Controller) Artifact() *manifestation.Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.artifact
}

// Start acquires the device and begins a session.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return errors.NewCapture(MsgUnsupported, ErrClosed)
	case c.status == StatusUnsupported:
		c.mu.Unlock()
		return errors.NewCapture(MsgUnsupported, nil)
	case c.status == StatusRecording || c.starting:
		c.mu.Unlock()
		return errors.NewCapture(MsgBusy, ErrDeviceBusy)
	}
	c.starting = true
	c.mu.Unlock()

	h, err := c.device.Acquire(ctx, KindAudio)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.starting = false

	if err != nil {
		c.status = StatusError
		c.message = MsgAccessDenied
		c.logger.Warn("capture acquire failed", "error", err)
		return errors.NewCapture(MsgAccessDenied, err)
	}
	if c.closed {
		if rerr := h.Release(); rerr != nil {
			c.logger.Warn("capture release failed", "error", rerr)
		}
		return errors.NewCapture(MsgUnsupported, ErrClosed)
	}

	c.session = ulid.Make().String()
	c.handle = h
	c.mimeType = h.MimeType()
	if c.mimeType == "" {
		c.mimeType = FallbackMimeType
	}
	c.started = c.now()
	c.chunks = nil
	c.size = 0
	c.limited = false
	c.artifact = nil
	c.done = make(chan struct{})
	c.status = StatusRecording
	c.message = MsgRecording

	c.logger.Debug("capture started", "session", c.session, "mime", c.mimeType)
	go c.collect(h, c.done)
	return nil
}

// Stop ends the session and returns the recording. Chunks already produced
// by the device are kept in arrival order.
func (c *Controller) Stop() (*manifestation.Attachment, error) {
	c.mu.Lock()
	if c.status != StatusRecording {
		c.mu.Unlock()
		return nil, errors.NewCapture(MsgNotRecording, ErrNotRecording)
	}
	c.releaseLocked()
	done := c.done
	c.mu.Unlock()

	<-done

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusReady {
		return nil, errors.NewCapture(c.message, ErrNotRecording)
	}
	return c.artifact, nil
}

// Wait blocks until the current session ends on its own (source end, limit
// or device error) and returns the recording.
func (c *Controller) Wait(ctx context.Context) (*manifestation.Attachment, error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil, errors.NewCapture(MsgNotRecording, ErrNotRecording)
	}

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusReady || c.artifact == nil {
		return nil, errors.NewCapture(c.message, nil)
	}
	return c.artifact, nil
}

// Clear discards the recording and returns to idle.
func (c *Controller) Clear() error {
	c.mu.Lock()
	switch c.status {
	case StatusUnsupported:
		c.mu.Unlock()
		return nil
	case StatusRecording:
		c.mu.Unlock()
		return errors.NewCapture(MsgBusy, ErrDeviceBusy)
	}
	c.artifact = nil
	c.chunks = nil
	c.size = 0
	c.status = StatusIdle
	c.message = MsgCleared
	cb := c.onCleared
	c.mu.Unlock()

	if cb != nil {
		cb()
	}
	return nil
}

// Close tears the controller down, releasing the device if a session is
// active. No callback runs after Close returns. It is safe to call twice.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	var done chan struct{}
	if c.status == StatusRecording {
		c.releaseLocked()
		done = c.done
	}
	c.mu.Unlock()

	if done != nil {
		<-done
	}
	return nil
}

// releaseLocked frees the device held by the current session. Every exit
// from recording goes through here. Callers hold c.mu.
func (c *Controller) releaseLocked() {
	if c.handle == nil {
		return
	}
	if err := c.handle.Release(); err != nil {
		c.logger.Warn("capture release failed", "session", c.session, "error", err)
	}
	c.handle = nil
	c.logger.Debug("capture device released", "session", c.session)
}

// collect drains the device until its chunk stream closes or it fails.
func (c *Controller) collect(h Handle, done chan struct{}) {
	var deadline <-chan time.Time
	if c.maxDuration > 0 {
		t := time.NewTimer(c.maxDuration)
		defer t.Stop()
		deadline = t.C
	}

	chunks, errs := h.Chunks(), h.Err()
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				c.finish(nil, done)
				return
			}
			c.append(chunk)

		case err := <-errs:
			if c.stopping() {
				// Late device errors after a stop do not spoil the recording
				errs = nil
				continue
			}
			c.finish(err, done)
			return

		case <-deadline:
			deadline = nil
			c.mu.Lock()
			c.limited = true
			c.releaseLocked()
			c.mu.Unlock()
		}
	}
}

func (c *Controller) stopping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle == nil
}

func (c *Controller) append(chunk []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.limited {
		return
	}
	if c.maxBytes > 0 && c.size+int64(len(chunk)) > c.maxBytes {
		c.limited = true
		c.releaseLocked()
		return
	}
	c.chunks = append(c.chunks, chunk)
	c.size += int64(len(chunk))
}

// finish ends the session. A nil cause produces the artifact.
func (c *Controller) finish(cause error, done chan struct{}) {
	c.mu.Lock()
	c.releaseLocked()

	var (
		captured *manifestation.Attachment
		cb       func(*manifestation.Attachment)
	)
	switch {
	case c.closed:
		c.status = StatusIdle
		c.message = ""
	case cause != nil:
		c.status = StatusError
		c.message = MsgRecordingError
		c.logger.Warn("capture failed", "session", c.session, "error", cause)
	default:
		c.artifact = c.assemble()
		c.status = StatusReady
		c.message = MsgStopped
		if c.limited {
			c.message = MsgLimitReached
		}
		captured, cb = c.artifact, c.onCaptured
		c.logger.Debug("capture finished", "session", c.session,
			"bytes", c.size, "duration", c.now().Sub(c.started), "limited", c.limited)
	}
	c.chunks = nil
	c.mu.Unlock()

	if captured != nil && cb != nil {
		cb(captured)
	}
	close(done)
}

// assemble concatenates the session's chunks. Callers hold c.mu.
func (c *Controller) assemble() *manifestation.Attachment {
	data := make([]byte, 0, c.size)
	for _, chunk := range c.chunks {
		data = append(data, chunk...)
	}
	return &manifestation.Attachment{
		Data:     data,
		MimeType: c.mimeType,
		Filename: fmt.Sprintf("relato-%d.%s", c.started.UnixMilli(), extension(c.mimeType)),
	}
}

// extension maps a recorder mime type to a file extension.
func extension(mimeType string) string {
	base, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		base = mimeType
	}
	switch base {
	case "audio/ogg":
		return "ogg"
	case "audio/mp4", "audio/x-m4a":
		return "m4a"
	case "audio/mpeg":
		return "mp3"
	case "audio/wav", "audio/x-wav":
		return "wav"
	}
	if sub, ok := strings.CutPrefix(base, "audio/"); ok && sub != "" && !strings.ContainsAny(sub, "+.") {
		return sub
	}
	return "webm"
}
