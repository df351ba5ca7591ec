// Package validation checks a manifestation form and reports one message per
// invalid field.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/participadf/ouvidoria/internal/manifestation"
)

const (
	MinSubjectChars     = 3
	MinDescriptionChars = 10
)

// Messages shown next to the offending field.
const (
	MsgSubject          = "Informe um assunto (mín. 3 caracteres)."
	MsgDescription      = "Escreva o relato (mín. 10 caracteres) ou envie/grave um áudio."
	MsgAudioTranscript  = "Para acessibilidade, informe a transcrição/resumo do áudio."
	MsgImageAlt         = "Para acessibilidade, descreva a imagem (texto alternativo)."
	MsgVideoDescription = "Para acessibilidade, descreva o vídeo (legenda/descrição)."
	MsgKind             = "Selecione o tipo de manifestação."
)

// Result maps a field name to its single error message. An empty Result is valid.
type Result map[string]string

// Valid reports whether no field has an error.
func (r Result) Valid() bool { return len(r) == 0 }

// Restrict returns the subset of r owned by fields.
func (r Result) Restrict(fields []string) Result {
	out := Result{}
	for _, f := range fields {
		if msg, ok := r[f]; ok {
			out[f] = msg
		}
	}
	return out
}

// Fields returns the invalid field names in canonical form order.
func (r Result) Fields() []string {
	var out []string
	for _, f := range manifestation.FieldOrder {
		if _, ok := r[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// First returns the first invalid field in order.
func (r Result) First(order []string) (string, bool) {
	for _, f := range order {
		if _, ok := r[f]; ok {
			return f, true
		}
	}
	return "", false
}

// Limits bounds attachment payloads. A zero limit disables that check.
type Limits struct {
	MaxAudioBytes int64
	MaxImageBytes int64
	MaxVideoBytes int64
}

// DefaultLimits mirrors the config defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxAudioBytes: 25 << 20,
		MaxImageBytes: 10 << 20,
		MaxVideoBytes: 100 << 20,
	}
}

// Validator applies the cross-field rules plus attachment limits.
type Validator struct {
	Limits Limits
}

// New creates a Validator with the given limits.
func New(limits Limits) *Validator {
	return &Validator{Limits: limits}
}

var defaultValidator = New(DefaultLimits())

// Validate checks f with the default limits.
func Validate(f manifestation.FormState) Result {
	return defaultValidator.Validate(f)
}

// Validate checks f. It is deterministic and has no side effects.
func (v *Validator) Validate(f manifestation.FormState) Result {
	r := Result{}

	if !isKnownKind(f.Kind) {
		r[manifestation.FieldKind] = MsgKind
	}

	if trimmedLen(f.Subject) < MinSubjectChars {
		r[manifestation.FieldSubject] = MsgSubject
	}

	if trimmedLen(f.DescriptionText) < MinDescriptionChars && !f.HasAudio() {
		r[manifestation.FieldDescriptionText] = MsgDescription
	}

	if f.HasAudio() && isBlank(f.AudioTranscript) {
		r[manifestation.FieldAudioTranscript] = MsgAudioTranscript
	}
	if f.HasImage() && isBlank(f.ImageAlt) {
		r[manifestation.FieldImageAlt] = MsgImageAlt
	}
	if f.HasVideo() && isBlank(f.VideoDescription) {
		r[manifestation.FieldVideoDescription] = MsgVideoDescription
	}

	checkAttachment(r, manifestation.FieldAudioFile, f.Audio, "audio/", v.Limits.MaxAudioBytes)
	checkAttachment(r, manifestation.FieldImageFile, f.Image, "image/", v.Limits.MaxImageBytes)
	checkAttachment(r, manifestation.FieldVideoFile, f.Video, "video/", v.Limits.MaxVideoBytes)

	return r
}

// checkAttachment flags a payload whose mime family or size is out of bounds.
func checkAttachment(r Result, field string, a *manifestation.Attachment, family string, max int64) {
	if a == nil {
		return
	}
	if !strings.HasPrefix(strings.ToLower(a.MimeType), family) {
		r[field] = fmt.Sprintf("Arquivo inválido: esperado %s*, recebido %q.", family, a.MimeType)
		return
	}
	if max > 0 && a.Size() > max {
		r[field] = fmt.Sprintf("Arquivo muito grande (máx. %d MB).", max>>20)
	}
}

func isKnownKind(k manifestation.Kind) bool {
	for _, known := range manifestation.Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// trimmedLen counts runes, not bytes, after trimming.
func trimmedLen(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
