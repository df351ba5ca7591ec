package ops

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/participadf/ouvidoria/internal/api"
	"github.com/participadf/ouvidoria/internal/config"
	"github.com/participadf/ouvidoria/internal/draft"
	"github.com/participadf/ouvidoria/internal/submission"
)

// SubmitInput contains parameters for the Submit operation.
type SubmitInput struct {
	Form FormInput
}

// SubmitOutput contains the result of the Submit operation.
type SubmitOutput struct {
	Protocol  string `json:"protocol"`
	CreatedAt string `json:"createdAt"`
}

// Submit sends the manifestation and clears the stored draft on success.
// A nil database skips the draft step.
func Submit(ctx context.Context, database *sql.DB, cfg *config.Config, input SubmitInput) (*SubmitOutput, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	form, err := input.Form.Form(cfg)
	if err != nil {
		return nil, err
	}

	opts := []submission.Option{
		submission.WithValidator(validatorFor(cfg)),
		submission.WithLogger(slog.Default()),
	}
	if database != nil {
		opts = append(opts, submission.WithDrafts(draft.NewStore(database)))
	}
	coord := submission.New(api.New(cfg.APIBaseURL, cfg.RequestTimeout()), opts...)

	res, err := coord.Submit(ctx, form)
	if err != nil {
		return nil, err
	}
	return &SubmitOutput{Protocol: res.TrackingID, CreatedAt: res.CreatedAt}, nil
}
