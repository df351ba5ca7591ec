package ops

import (
	"github.com/participadf/ouvidoria/internal/config"
	"github.com/participadf/ouvidoria/internal/manifestation"
	"github.com/participadf/ouvidoria/internal/review"
	"github.com/participadf/ouvidoria/internal/validation"
)

// ReviewInput contains parameters for the Review operation.
type ReviewInput struct {
	Form FormInput
}

// ReviewOutput contains the result of the Review operation.
type ReviewOutput struct {
	review.Summary
	Markdown string            `json:"markdown"`
	HTML     string            `json:"html"`
	Valid    bool              `json:"valid"`
	Errors   map[string]string `json:"errors,omitempty"`
}

// Review renders the final-step summary and reports whether the form can be sent.
func Review(cfg *config.Config, input ReviewInput) (*ReviewOutput, error) {
	form, err := input.Form.Form(cfg)
	if err != nil {
		return nil, err
	}

	return reviewForm(form, validatorFor(cfg).Validate(form))
}

// reviewForm renders form and attaches its validation result.
func reviewForm(form manifestation.FormState, errs validation.Result) (*ReviewOutput, error) {
	summary := review.Build(form)
	html, err := summary.HTML()
	if err != nil {
		return nil, err
	}

	out := &ReviewOutput{
		Summary:  summary,
		Markdown: summary.Markdown(),
		HTML:     html,
		Valid:    errs.Valid(),
	}
	if !errs.Valid() {
		out.Errors = errs
	}
	return out, nil
}
