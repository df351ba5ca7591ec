package manifestation

import (
	"fmt"
	"strings"
)

// Kind classifies a manifestation. Values are the service's wire values.
type Kind string

const (
	KindComplaint    Kind = "reclamacao"
	KindDenunciation Kind = "denuncia"
	KindSuggestion   Kind = "sugestao"
	KindPraise       Kind = "elogio"
)

// Kinds lists every kind in display order.
var Kinds = []Kind{KindComplaint, KindDenunciation, KindSuggestion, KindPraise}

// ParseKind validates a wire value. Blank input yields the default kind.
func ParseKind(s string) (Kind, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return KindComplaint, nil
	}
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown manifestation kind %q (want one of reclamacao, denuncia, sugestao, elogio)", s)
}

// Label returns the Portuguese display label.
func (k Kind) Label() string {
	switch k {
	case KindComplaint:
		return "Reclamação"
	case KindDenunciation:
		return "Denúncia"
	case KindSuggestion:
		return "Sugestão"
	case KindPraise:
		return "Elogio"
	}
	return string(k)
}

// Field names shared by validation, the wizard and the service payload.
const (
	FieldKind             = "kind"
	FieldSubject          = "subject"
	FieldDescriptionText  = "descriptionText"
	FieldAudioFile        = "audioFile"
	FieldAudioTranscript  = "audioTranscript"
	FieldImageFile        = "imageFile"
	FieldImageAlt         = "imageAlt"
	FieldVideoFile        = "videoFile"
	FieldVideoDescription = "videoDescription"
	FieldAnonymous        = "anonymous"
)

// FieldOrder is the canonical field order, matching the order fields appear in the form.
var FieldOrder = []string{
	FieldKind,
	FieldSubject,
	FieldDescriptionText,
	FieldAudioFile,
	FieldAudioTranscript,
	FieldImageFile,
	FieldImageAlt,
	FieldVideoFile,
	FieldVideoDescription,
	FieldAnonymous,
}

// Attachment is a binary media payload. It is never persisted in a draft.
type Attachment struct {
	Data     []byte `json:"-"`
	MimeType string `json:"mime_type"`
	Filename string `json:"filename"`
}

// Size returns the payload length in bytes.
func (a *Attachment) Size() int64 {
	if a == nil {
		return 0
	}
	return int64(len(a.Data))
}

// FormState is the full in-progress manifestation, including attachments.
type FormState struct {
	Kind             Kind        `json:"kind"`
	Subject          string      `json:"subject"`
	DescriptionText  string      `json:"descriptionText"`
	Audio            *Attachment `json:"audio,omitempty"`
	AudioTranscript  string      `json:"audioTranscript"`
	Image            *Attachment `json:"image,omitempty"`
	ImageAlt         string      `json:"imageAlt"`
	Video            *Attachment `json:"video,omitempty"`
	VideoDescription string      `json:"videoDescription"`
	Anonymous        bool        `json:"anonymous"`
}

// Defaults returns the state a new manifestation starts from.
func Defaults() FormState {
	return FormState{Kind: KindComplaint}
}

// HasAudio reports whether an audio attachment is present.
func (f FormState) HasAudio() bool { return f.Audio != nil }

// HasImage reports whether an image attachment is present.
func (f FormState) HasImage() bool { return f.Image != nil }

// HasVideo reports whether a video attachment is present.
func (f FormState) HasVideo() bool { return f.Video != nil }

// Clone returns a copy whose attachments do not share backing arrays with f.
func (f FormState) Clone() FormState {
	out := f
	out.Audio = cloneAttachment(f.Audio)
	out.Image = cloneAttachment(f.Image)
	out.Video = cloneAttachment(f.Video)
	return out
}

func cloneAttachment(a *Attachment) *Attachment {
	if a == nil {
		return nil
	}
	c := *a
	c.Data = append([]byte(nil), a.Data...)
	return &c
}
