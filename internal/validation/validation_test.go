package validation

import (
	"strings"
	"testing"

	"github.com/participadf/ouvidoria/internal/manifestation"
)

func validForm() manifestation.FormState {
	f := manifestation.Defaults()
	f.Subject = "Buraco na rua"
	f.DescriptionText = "Há um buraco enorme na via em frente ao número 123."
	return f
}

func audio() *manifestation.Attachment {
	return &manifestation.Attachment{Data: []byte("RIFF"), MimeType: "audio/webm", Filename: "relato.webm"}
}

func TestValidate_ValidForm(t *testing.T) {
	r := Validate(validForm())
	if !r.Valid() {
		t.Fatalf("Validate() = %v, want no errors", r)
	}
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*manifestation.FormState)
		wantField string
		wantMsg   string
	}{
		{
			name:      "subject empty",
			mutate:    func(f *manifestation.FormState) { f.Subject = "" },
			wantField: manifestation.FieldSubject,
			wantMsg:   MsgSubject,
		},
		{
			name:      "subject only whitespace around two chars",
			mutate:    func(f *manifestation.FormState) { f.Subject = "   ab   " },
			wantField: manifestation.FieldSubject,
			wantMsg:   MsgSubject,
		},
		{
			name:      "description empty without audio",
			mutate:    func(f *manifestation.FormState) { f.DescriptionText = "" },
			wantField: manifestation.FieldDescriptionText,
			wantMsg:   MsgDescription,
		},
		{
			name:      "description nine chars padded with whitespace",
			mutate:    func(f *manifestation.FormState) { f.DescriptionText = "   123456789      " },
			wantField: manifestation.FieldDescriptionText,
			wantMsg:   MsgDescription,
		},
		{
			name: "audio without transcript",
			mutate: func(f *manifestation.FormState) {
				f.Audio = audio()
				f.AudioTranscript = "   "
			},
			wantField: manifestation.FieldAudioTranscript,
			wantMsg:   MsgAudioTranscript,
		},
		{
			name: "image without alt",
			mutate: func(f *manifestation.FormState) {
				f.Image = &manifestation.Attachment{Data: []byte{0x89}, MimeType: "image/png", Filename: "foto.png"}
			},
			wantField: manifestation.FieldImageAlt,
			wantMsg:   MsgImageAlt,
		},
		{
			name: "video without description",
			mutate: func(f *manifestation.FormState) {
				f.Video = &manifestation.Attachment{Data: []byte{0}, MimeType: "video/mp4", Filename: "v.mp4"}
			},
			wantField: manifestation.FieldVideoDescription,
			wantMsg:   MsgVideoDescription,
		},
		{
			name:      "unknown kind",
			mutate:    func(f *manifestation.FormState) { f.Kind = "complaint" },
			wantField: manifestation.FieldKind,
			wantMsg:   MsgKind,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validForm()
			tt.mutate(&f)
			r := Validate(f)
			if len(r) != 1 {
				t.Fatalf("Validate() = %v, want exactly one error", r)
			}
			if r[tt.wantField] != tt.wantMsg {
				t.Errorf("r[%s] = %q, want %q", tt.wantField, r[tt.wantField], tt.wantMsg)
			}
		})
	}
}

func TestValidate_DescriptionBoundary(t *testing.T) {
	f := validForm()
	f.DescriptionText = "  1234567890  "
	if r := Validate(f); !r.Valid() {
		t.Errorf("exactly 10 trimmed chars should pass, got %v", r)
	}

	f.DescriptionText = "ação ação " // 9 runes after trim, 13 bytes
	if r := Validate(f); r[manifestation.FieldDescriptionText] == "" {
		t.Error("rune count, not byte count, must be compared")
	}
}

func TestValidate_AudioSatisfiesDescription(t *testing.T) {
	f := validForm()
	f.DescriptionText = ""
	f.Audio = audio()
	f.AudioTranscript = "Relato sobre o buraco."

	if r := Validate(f); !r.Valid() {
		t.Errorf("audio with transcript should replace the text description, got %v", r)
	}
}

// Every form with empty text and no audio reports descriptionText, whatever else is set.
func TestValidate_EmptyDescriptionNoAudioAlwaysFlagged(t *testing.T) {
	subjects := []string{"", "ab", "Iluminação pública"}
	for _, subject := range subjects {
		for _, kind := range manifestation.Kinds {
			for _, anon := range []bool{true, false} {
				for _, withImage := range []bool{true, false} {
					f := manifestation.FormState{Kind: kind, Subject: subject, Anonymous: anon}
					if withImage {
						f.Image = &manifestation.Attachment{MimeType: "image/jpeg"}
						f.ImageAlt = "alt"
					}
					if Validate(f)[manifestation.FieldDescriptionText] == "" {
						t.Fatalf("no descriptionText error for %+v", f)
					}
				}
			}
		}
	}
}

// An image without alt text is flagged regardless of the other fields.
func TestValidate_ImageWithoutAltAlwaysFlagged(t *testing.T) {
	forms := []manifestation.FormState{
		{},
		validForm(),
		{Kind: manifestation.KindPraise, Audio: audio(), AudioTranscript: "ok"},
	}
	for _, f := range forms {
		f.Image = &manifestation.Attachment{Data: []byte{1}, MimeType: "image/png"}
		f.ImageAlt = ""
		if Validate(f)[manifestation.FieldImageAlt] != MsgImageAlt {
			t.Errorf("no imageAlt error for %+v", f)
		}
	}
}

func TestValidate_AttachmentLimits(t *testing.T) {
	v := New(Limits{MaxImageBytes: 4})
	f := validForm()
	f.Image = &manifestation.Attachment{Data: []byte("12345"), MimeType: "image/png"}
	f.ImageAlt = "foto"

	r := v.Validate(f)
	if !strings.Contains(r[manifestation.FieldImageFile], "muito grande") {
		t.Errorf("r[imageFile] = %q, want size error", r[manifestation.FieldImageFile])
	}

	f.Image.Data = []byte("1234")
	if r := v.Validate(f); !r.Valid() {
		t.Errorf("payload at the limit should pass, got %v", r)
	}
}

func TestValidate_AttachmentMimeFamily(t *testing.T) {
	f := validForm()
	f.Audio = &manifestation.Attachment{Data: []byte{1}, MimeType: "video/webm"}
	f.AudioTranscript = "resumo"

	r := Validate(f)
	if !strings.Contains(r[manifestation.FieldAudioFile], "audio/*") {
		t.Errorf("r[audioFile] = %q, want mime family error", r[manifestation.FieldAudioFile])
	}
}

func TestValidate_Deterministic(t *testing.T) {
	f := manifestation.FormState{Image: &manifestation.Attachment{MimeType: "image/png"}}
	a, b := Validate(f), Validate(f)
	if len(a) != len(b) {
		t.Fatalf("results differ: %v vs %v", a, b)
	}
	for k, v := range a {
		if b[k] != v {
			t.Errorf("field %s differs: %q vs %q", k, v, b[k])
		}
	}
}

func TestResult_RestrictFieldsFirst(t *testing.T) {
	r := Result{
		manifestation.FieldVideoDescription: "v",
		manifestation.FieldSubject:          "s",
		manifestation.FieldImageAlt:         "i",
	}

	sub := r.Restrict([]string{manifestation.FieldImageAlt, manifestation.FieldVideoDescription, manifestation.FieldDescriptionText})
	if len(sub) != 2 {
		t.Fatalf("Restrict() = %v, want 2 entries", sub)
	}
	if _, ok := sub[manifestation.FieldSubject]; ok {
		t.Error("Restrict() kept a field outside the subset")
	}

	fields := r.Fields()
	want := []string{manifestation.FieldSubject, manifestation.FieldImageAlt, manifestation.FieldVideoDescription}
	for i := range want {
		if fields[i] != want[i] {
			t.Fatalf("Fields() = %v, want %v", fields, want)
		}
	}

	first, ok := sub.First(manifestation.FieldOrder)
	if !ok || first != manifestation.FieldImageAlt {
		t.Errorf("First() = %q, %v; want imageAlt", first, ok)
	}
	if _, ok := (Result{}).First(manifestation.FieldOrder); ok {
		t.Error("First() on empty result should report false")
	}
}
