package manifestation

import "time"

// DraftKey is the single slot every draft is stored under.
const DraftKey = "new_manifestation"

// DraftSnapshot is the serializable projection of FormState: every attachment is dropped.
type DraftSnapshot struct {
	Kind             Kind   `json:"kind"`
	Subject          string `json:"subject"`
	DescriptionText  string `json:"descriptionText"`
	AudioTranscript  string `json:"audioTranscript"`
	ImageAlt         string `json:"imageAlt"`
	VideoDescription string `json:"videoDescription"`
	Anonymous        bool   `json:"anonymous"`
}

// DraftRecord is what the draft slot holds.
type DraftRecord struct {
	ID        string        `json:"id"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Data      DraftSnapshot `json:"data"`
}

// Snapshot projects f onto its persistable fields.
func (f FormState) Snapshot() DraftSnapshot {
	return DraftSnapshot{
		Kind:             f.Kind,
		Subject:          f.Subject,
		DescriptionText:  f.DescriptionText,
		AudioTranscript:  f.AudioTranscript,
		ImageAlt:         f.ImageAlt,
		VideoDescription: f.VideoDescription,
		Anonymous:        f.Anonymous,
	}
}

// FormState restores a draft over Defaults. Attachment slots are always empty.
func (s DraftSnapshot) FormState() FormState {
	f := Defaults()
	if s.Kind != "" {
		f.Kind = s.Kind
	}
	f.Subject = s.Subject
	f.DescriptionText = s.DescriptionText
	f.AudioTranscript = s.AudioTranscript
	f.ImageAlt = s.ImageAlt
	f.VideoDescription = s.VideoDescription
	f.Anonymous = s.Anonymous
	return f
}
