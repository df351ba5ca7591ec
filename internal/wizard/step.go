package wizard

import "github.com/participadf/ouvidoria/internal/manifestation"

// Step is one page of the intake wizard. Each step owns the fields it gates on.
type Step int

const (
	Step1 Step = iota + 1 // classification
	Step2                 // narrative + attachments
	Step3                 // review + submit
)

var stepFields = map[Step][]string{
	Step1: {manifestation.FieldKind, manifestation.FieldSubject},
	Step2: {
		manifestation.FieldDescriptionText,
		manifestation.FieldAudioFile,
		manifestation.FieldAudioTranscript,
		manifestation.FieldImageFile,
		manifestation.FieldImageAlt,
		manifestation.FieldVideoFile,
		manifestation.FieldVideoDescription,
	},
	Step3: {manifestation.FieldAnonymous},
}

// Fields returns the field names owned by s, in form order.
func (s Step) Fields() []string {
	return append([]string(nil), stepFields[s]...)
}

// Title returns the stepper label.
func (s Step) Title() string {
	switch s {
	case Step1:
		return "1. Tipo"
	case Step2:
		return "2. Relato e anexos"
	case Step3:
		return "3. Revisão e envio"
	}
	return ""
}

// Valid reports whether s is one of the three wizard steps.
func (s Step) Valid() bool {
	return s >= Step1 && s <= Step3
}

// Terminal reports whether s is the submit step.
func (s Step) Terminal() bool {
	return s == Step3
}
