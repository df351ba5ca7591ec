// Package wizard drives the three-step manifestation form and tracks the
// current step and per-field errors.
package wizard

import (
	"sync"

	"github.com/participadf/ouvidoria/internal/manifestation"
	"github.com/participadf/ouvidoria/internal/validation"
)

// Transition is the outcome of a Next call.
// When Moved is false, Focus names the first invalid field of the step that was checked.
type Transition struct {
	From   Step
	To     Step
	Moved  bool
	Focus  string
	Errors validation.Result
}

// Machine holds the current step and the form being filled in.
// It is safe for concurrent use; observers run outside the lock.
type Machine struct {
	mu        sync.Mutex
	validator *validation.Validator
	step      Step
	form      manifestation.FormState
	errors    validation.Result
	observers []func(manifestation.FormState)
}

// New creates a Machine at Step1 holding state.
// A nil validator uses the default attachment limits.
func New(v *validation.Validator, state manifestation.FormState) *Machine {
	if v == nil {
		v = validation.New(validation.DefaultLimits())
	}
	return &Machine{
		validator: v,
		step:      Step1,
		form:      state,
		errors:    v.Validate(state),
	}
}

// OnChange registers fn to receive every form mutation made through Update.
func (m *Machine) OnChange(fn func(manifestation.FormState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Step returns the current step.
func (m *Machine) Step() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

// State returns a copy of the form.
func (m *Machine) State() manifestation.FormState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.form.Clone()
}

// Errors returns the full-form validation result for the current state.
// Errors outside the current step never block Next but are kept for submit.
func (m *Machine) Errors() validation.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(validation.Result, len(m.errors))
	for k, v := range m.errors {
		out[k] = v
	}
	return out
}

// Update applies fn to the form, re-validates and notifies observers.
func (m *Machine) Update(fn func(*manifestation.FormState)) {
	m.mu.Lock()
	fn(&m.form)
	m.errors = m.validator.Validate(m.form)
	snapshot := m.form.Clone()
	observers := append([]func(manifestation.FormState){}, m.observers...)
	m.mu.Unlock()

	for _, obs := range observers {
		obs(snapshot)
	}
}

// Next advances one step iff the current step's fields are valid.
func (m *Machine) Next() Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := Transition{From: m.step, To: m.step}
	if m.step.Terminal() {
		return t
	}

	scoped := m.errors.Restrict(m.step.Fields())
	if !scoped.Valid() {
		t.Errors = scoped
		t.Focus, _ = scoped.First(m.step.Fields())
		return t
	}

	m.step++
	t.To = m.step
	t.Moved = true
	return t
}

// Back moves one step back without validating. At Step1 it does nothing.
// Later-step data is kept.
func (m *Machine) Back() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step > Step1 {
		m.step--
	}
	return m.step
}

// CanSubmit reports whether submit is available, which is only at Step3.
func (m *Machine) CanSubmit() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step.Terminal()
}

// Reset restores the default form and returns to Step1. Observers are not notified.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.form = manifestation.Defaults()
	m.errors = m.validator.Validate(m.form)
	m.step = Step1
}
