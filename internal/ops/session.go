package ops

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/participadf/ouvidoria/internal/api"
	"github.com/participadf/ouvidoria/internal/capture"
	"github.com/participadf/ouvidoria/internal/config"
	"github.com/participadf/ouvidoria/internal/draft"
	"github.com/participadf/ouvidoria/internal/errors"
	"github.com/participadf/ouvidoria/internal/manifestation"
	"github.com/participadf/ouvidoria/internal/submission"
	"github.com/participadf/ouvidoria/internal/wizard"
)

// SessionInput contains parameters for OpenSession.
type SessionInput struct {
	AudioFrom string // recording source; empty disables recording
	MimeType  string // default: guessed from AudioFrom, else audio/webm
}

// Session is one interactive intake. Every form edit goes through the wizard
// and is autosaved as a draft; a finished recording fills the audio slot;
// a successful submission drops the draft and starts a fresh form.
type Session struct {
	machine  *wizard.Machine
	saver    *draft.Autosaver
	recorder *capture.Controller
	coord    *submission.Coordinator
	restored bool
	source   *os.File

	// settling mutes the recorder callbacks while a submitted form is reset
	settling atomic.Bool
}

// OpenSession restores the saved draft, if any, and starts the autosaver.
// Close the session to flush the pending draft.
func OpenSession(ctx context.Context, database *sql.DB, cfg *config.Config, input SessionInput) (*Session, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	store := draft.NewStore(database)
	rec, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	state := manifestation.Defaults()
	if rec != nil {
		state = rec.Data.FormState()
	}

	s := &Session{restored: rec != nil}

	var device capture.Device
	if strings.TrimSpace(input.AudioFrom) != "" {
		src, err := openFileNoFollowRead(input.AudioFrom)
		if err != nil {
			return nil, err
		}
		s.source = src
		device = capture.NewReaderDevice(src, recordingMimeType(input.AudioFrom, input.MimeType), 0)
	}

	v := validatorFor(cfg)
	s.machine = wizard.New(v, state)
	s.saver = draft.NewAutosaver(store,
		draft.WithDebounce(cfg.DraftDebounce()),
		draft.WithLogger(slog.Default()),
	)
	s.machine.OnChange(s.saver.Schedule)

	s.recorder = capture.New(device,
		capture.WithMaxBytes(cfg.MaxAudioBytes),
		capture.WithMaxDuration(cfg.MaxCaptureDuration()),
		capture.WithLogger(slog.Default()),
		capture.OnCaptured(func(a *manifestation.Attachment) {
			s.setAudio(a)
		}),
		capture.OnCleared(func() {
			s.setAudio(nil)
		}),
	)

	s.coord = submission.New(api.New(cfg.APIBaseURL, cfg.RequestTimeout()),
		submission.WithValidator(v),
		submission.WithDrafts(store),
		submission.WithAutosaver(s.saver),
		submission.WithLogger(slog.Default()),
	)
	return s, nil
}

func (s *Session) setAudio(a *manifestation.Attachment) {
	if s.settling.Load() {
		return
	}
	s.machine.Update(func(f *manifestation.FormState) { f.Audio = a })
}

// Restored reports whether the session started from a saved draft.
func (s *Session) Restored() bool { return s.restored }

// Step returns the current wizard step.
func (s *Session) Step() wizard.Step { return s.machine.Step() }

// State returns a copy of the form.
func (s *Session) State() manifestation.FormState { return s.machine.State() }

// Update edits the form and schedules a draft save.
func (s *Session) Update(fn func(*manifestation.FormState)) { s.machine.Update(fn) }

// Next advances the wizard when the current step is valid.
func (s *Session) Next() wizard.Transition { return s.machine.Next() }

// Back returns to the previous step.
func (s *Session) Back() wizard.Step { return s.machine.Back() }

// SaveStatus returns the draft save hint and the last save error.
func (s *Session) SaveStatus() (draft.Status, error) { return s.saver.Status() }

// Recorder returns the audio recorder. It is unsupported when the session
// was opened without a recording source.
func (s *Session) Recorder() *capture.Controller { return s.recorder }

// Review renders the summary of the current form.
func (s *Session) Review() (*ReviewOutput, error) {
	return reviewForm(s.machine.State(), s.machine.Errors())
}

// Submit sends the form. It is only available at the review step. On
// success the draft is gone and the session holds a fresh form at Step1;
// on failure nothing changes so the user can retry.
func (s *Session) Submit(ctx context.Context) (*SubmitOutput, error) {
	if !s.machine.CanSubmit() {
		return nil, errors.NewInvalidRequest("submission is only available at the review step")
	}
	res, err := s.coord.Submit(ctx, s.machine.State())
	if err != nil {
		return nil, err
	}

	s.settling.Store(true)
	if err := s.recorder.Clear(); err != nil {
		slog.Default().Warn("recorder not cleared after submission", "error", err)
	}
	s.settling.Store(false)
	s.machine.Reset()

	return &SubmitOutput{Protocol: res.TrackingID, CreatedAt: res.CreatedAt}, nil
}

// Close stops the recorder and commits any pending draft.
func (s *Session) Close() error {
	if err := s.recorder.Close(); err != nil {
		slog.Default().Warn("recorder close failed", "error", err)
	}
	if s.source != nil {
		_ = s.source.Close()
	}
	return s.saver.Shutdown()
}
