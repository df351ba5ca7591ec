// Package submission sends a completed manifestation to the service and
// settles the local draft afterwards.
package submission

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"

	"github.com/participadf/ouvidoria/internal/api"
	"github.com/participadf/ouvidoria/internal/errors"
	"github.com/participadf/ouvidoria/internal/manifestation"
	"github.com/participadf/ouvidoria/internal/validation"
)

// Service creates manifestations. *api.Client implements it.
type Service interface {
	CreateManifestation(ctx context.Context, p api.Payload) (*api.CreateResponse, error)
}

// DraftClearer empties the draft slot. *draft.Store implements it.
type DraftClearer interface {
	Clear(ctx context.Context) error
}

// PendingCanceller drops unfired draft saves. *draft.Autosaver implements it.
type PendingCanceller interface {
	Cancel()
}

// Result is a successful submission.
type Result struct {
	TrackingID string `json:"protocol"`
	CreatedAt  string `json:"createdAt"`
}

// Coordinator runs a submission: validate, send once, then clear the draft.
type Coordinator struct {
	validator *validation.Validator
	service   Service
	drafts    DraftClearer
	autosaver PendingCanceller
	logger    *slog.Logger

	mu         sync.Mutex
	submitting bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithValidator overrides the default validation limits.
func WithValidator(v *validation.Validator) Option {
	return func(c *Coordinator) {
		if v != nil {
			c.validator = v
		}
	}
}

// WithDrafts sets the draft slot cleared after a successful submission.
func WithDrafts(d DraftClearer) Option {
	return func(c *Coordinator) { c.drafts = d }
}

// WithAutosaver sets the autosaver whose pending save is dropped on success.
func WithAutosaver(a PendingCanceller) Option {
	return func(c *Coordinator) { c.autosaver = a }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Coordinator.
func New(service Service, opts ...Option) *Coordinator {
	c := &Coordinator{
		validator: validation.New(validation.DefaultLimits()),
		service:   service,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit validates f and sends it. An invalid form is a VALIDATION error and
// nothing is sent. A failed send is a SUBMISSION error; the form and draft are
// left as they were so the user can retry. The service is called at most once.
func (c *Coordinator) Submit(ctx context.Context, f manifestation.FormState) (*Result, error) {
	if errs := c.validator.Validate(f); !errs.Valid() {
		return nil, errors.NewValidation(errs)
	}

	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return nil, errors.NewInvalidRequest("submission already in progress")
	}
	c.submitting = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.submitting = false
		c.mu.Unlock()
	}()

	resp, err := c.service.CreateManifestation(ctx, api.NewPayload(f))
	if err != nil {
		status := 0
		var he *api.HTTPError
		if stderrors.As(err, &he) {
			status = he.Status
		}
		c.logger.Warn("submission failed", "status", status, "error", err)
		return nil, errors.NewSubmission(status, err)
	}

	// Cancel first so a pending save cannot recreate the slot after the clear
	if c.autosaver != nil {
		c.autosaver.Cancel()
	}
	if c.drafts != nil {
		if err := c.drafts.Clear(ctx); err != nil {
			c.logger.Warn("draft clear after submission failed", "protocol", resp.Protocol, "error", err)
		}
	}

	c.logger.Info("manifestation submitted", "protocol", resp.Protocol)
	return &Result{TrackingID: resp.Protocol, CreatedAt: resp.CreatedAt}, nil
}
