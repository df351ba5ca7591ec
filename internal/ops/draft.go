package ops

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/participadf/ouvidoria/internal/config"
	"github.com/participadf/ouvidoria/internal/draft"
	"github.com/participadf/ouvidoria/internal/manifestation"
)

// DraftShowOutput contains the result of the DraftShow operation.
type DraftShowOutput struct {
	Found     bool                         `json:"found"`
	UpdatedAt string                       `json:"updated_at,omitempty"`
	Draft     *manifestation.DraftSnapshot `json:"draft,omitempty"`
}

// DraftShow returns the stored draft, if any.
func DraftShow(ctx context.Context, database *sql.DB) (*DraftShowOutput, error) {
	rec, err := draft.NewStore(database).Load(ctx)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return &DraftShowOutput{Found: false}, nil
	}
	return &DraftShowOutput{
		Found:     true,
		UpdatedAt: rec.UpdatedAt.UTC().Format(time.RFC3339),
		Draft:     &rec.Data,
	}, nil
}

// DraftSaveInput contains parameters for the DraftSave operation.
// Attachment paths are ignored; drafts never carry attachments.
type DraftSaveInput struct {
	Form FormInput
}

// DraftSaveOutput contains the result of the DraftSave operation.
type DraftSaveOutput struct {
	Status string `json:"status"`
	Hint   string `json:"hint"`
}

// DraftSave stores the text fields of the form through the autosaver and
// waits for the commit.
func DraftSave(ctx context.Context, database *sql.DB, cfg *config.Config, input DraftSaveInput) (*DraftSaveOutput, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	saver := draft.NewAutosaver(draft.NewStore(database),
		draft.WithDebounce(cfg.DraftDebounce()),
		draft.WithLogger(slog.Default()),
	)
	defer saver.Shutdown()

	saver.Schedule(input.Form.textForm())
	if err := saver.Flush(ctx); err != nil {
		return nil, err
	}
	status, _ := saver.Status()
	return &DraftSaveOutput{Status: string(status), Hint: status.Hint()}, nil
}

// DraftClearOutput contains the result of the DraftClear operation.
type DraftClearOutput struct {
	Cleared bool `json:"cleared"`
}

// DraftClear empties the draft slot. Clearing an empty slot succeeds.
func DraftClear(ctx context.Context, database *sql.DB) (*DraftClearOutput, error) {
	if err := draft.NewStore(database).Clear(ctx); err != nil {
		return nil, err
	}
	return &DraftClearOutput{Cleared: true}, nil
}
