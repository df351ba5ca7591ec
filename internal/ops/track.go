package ops

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/participadf/ouvidoria/internal/api"
	"github.com/participadf/ouvidoria/internal/config"
	"github.com/participadf/ouvidoria/internal/errors"
)

// TrackInput contains parameters for the Track operation.
type TrackInput struct {
	Protocol string
}

// TrackOutput contains the result of the Track operation.
type TrackOutput struct {
	Protocol  string `json:"protocol"`
	CreatedAt string `json:"createdAt"`
	Status    string `json:"status"`
	Subject   string `json:"subject,omitempty"`
}

// Track looks up the status of a submitted manifestation.
func Track(ctx context.Context, cfg *config.Config, input TrackInput) (*TrackOutput, error) {
	protocol := strings.TrimSpace(input.Protocol)
	if protocol == "" {
		return nil, errors.NewInvalidRequest("protocol is required")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	client := api.New(cfg.APIBaseURL, cfg.RequestTimeout())
	st, err := client.GetManifestationStatus(ctx, protocol)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		status := 0
		var he *api.HTTPError
		if stderrors.As(err, &he) {
			status = he.Status
		}
		return nil, errors.NewSubmission(status, err)
	}

	return &TrackOutput{
		Protocol:  st.Protocol,
		CreatedAt: st.CreatedAt,
		Status:    st.Status,
		Subject:   st.Subject,
	}, nil
}
