package ops

import (
	"github.com/participadf/ouvidoria/internal/config"
	"github.com/participadf/ouvidoria/internal/wizard"
)

// ValidateInput contains parameters for the Validate operation.
type ValidateInput struct {
	Form FormInput
}

// ValidateOutput contains the result of the Validate operation.
type ValidateOutput struct {
	Valid     bool              `json:"valid"`
	Step      int               `json:"step"`
	StepTitle string            `json:"step_title"`
	Focus     string            `json:"focus,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
	Fields    []string          `json:"fields,omitempty"`
}

// Validate walks the wizard as far as the form allows.
// Step is the furthest step reached; Focus is the field that blocked it.
func Validate(cfg *config.Config, input ValidateInput) (*ValidateOutput, error) {
	form, err := input.Form.Form(cfg)
	if err != nil {
		return nil, err
	}

	m := wizard.New(validatorFor(cfg), form)
	var focus string
	for !m.CanSubmit() {
		t := m.Next()
		if !t.Moved {
			focus = t.Focus
			break
		}
	}

	errs := m.Errors()
	out := &ValidateOutput{
		Valid:     errs.Valid(),
		Step:      int(m.Step()),
		StepTitle: m.Step().Title(),
		Focus:     focus,
		Fields:    errs.Fields(),
	}
	if !errs.Valid() {
		out.Errors = errs
	}
	return out, nil
}
