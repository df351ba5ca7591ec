package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/participadf/ouvidoria/internal/config"
	"github.com/participadf/ouvidoria/internal/errors"
	"github.com/participadf/ouvidoria/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db  *sql.DB
	cfg *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config) *Handlers {
	return &Handlers{db: db, cfg: cfg}
}

// TrackRequest represents the arguments for manifestation_track.
type TrackRequest struct {
	Protocol string `json:"protocol"`
}

// HandleValidate handles the manifestation_validate tool call.
func (h *Handlers) HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	form, err := decode[ops.FormInput](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Validate(h.cfg, ops.ValidateInput{Form: form})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleReview handles the manifestation_review tool call.
func (h *Handlers) HandleReview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	form, err := decode[ops.FormInput](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Review(h.cfg, ops.ReviewInput{Form: form})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSubmit handles the manifestation_submit tool call.
func (h *Handlers) HandleSubmit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	form, err := decode[ops.FormInput](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Submit(ctx, h.db, h.cfg, ops.SubmitInput{Form: form})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleTrack handles the manifestation_track tool call.
func (h *Handlers) HandleTrack(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TrackRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Track(ctx, h.cfg, ops.TrackInput{Protocol: input.Protocol})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDraftLoad handles the draft_load tool call.
func (h *Handlers) HandleDraftLoad(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.DraftShow(ctx, h.db)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDraftSave handles the draft_save tool call.
func (h *Handlers) HandleDraftSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	form, err := decode[ops.FormInput](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.DraftSave(ctx, h.db, h.cfg, ops.DraftSaveInput{Form: form})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDraftClear handles the draft_clear tool call.
func (h *Handlers) HandleDraftClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.DraftClear(ctx, h.db)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var iErr *errors.IntakeError
	if stderrors.As(err, &iErr) {
		msg := iErr.Message
		// keep wrapper context such as "audio_path: ..."
		if prefix := strings.TrimSuffix(err.Error(), iErr.Error()); prefix != err.Error() {
			msg = prefix + msg
		}
		errorObj := map[string]any{
			"code":    iErr.Code,
			"message": msg,
			"status":  iErr.Status,
		}
		if iErr.Code != errors.ErrInternal && len(iErr.Details) > 0 {
			errorObj["details"] = iErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
