package ops

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/participadf/ouvidoria/internal/config"
	"github.com/participadf/ouvidoria/internal/errors"
	"github.com/participadf/ouvidoria/internal/manifestation"
	"github.com/participadf/ouvidoria/internal/validation"
)

// FormInput is a manifestation as supplied on the CLI or over MCP.
// Attachments are referenced by file path and loaded on demand.
type FormInput struct {
	Kind             string `json:"kind"`
	Subject          string `json:"subject"`
	DescriptionText  string `json:"descriptionText"`
	AudioTranscript  string `json:"audioTranscript"`
	ImageAlt         string `json:"imageAlt"`
	VideoDescription string `json:"videoDescription"`
	Anonymous        bool   `json:"anonymous"`

	AudioPath string `json:"audio_path,omitempty"`
	ImagePath string `json:"image_path,omitempty"`
	VideoPath string `json:"video_path,omitempty"`
}

// FromDraft fills the text fields from a stored draft. Attachment paths are kept.
func (in FormInput) FromDraft(s manifestation.DraftSnapshot) FormInput {
	out := in
	out.Kind = string(s.Kind)
	out.Subject = s.Subject
	out.DescriptionText = s.DescriptionText
	out.AudioTranscript = s.AudioTranscript
	out.ImageAlt = s.ImageAlt
	out.VideoDescription = s.VideoDescription
	out.Anonymous = s.Anonymous
	return out
}

// textForm returns the form without attachments.
// A blank kind takes the default; an unknown one is left for validation to report.
func (in FormInput) textForm() manifestation.FormState {
	f := manifestation.Defaults()
	if k := strings.TrimSpace(in.Kind); k != "" {
		f.Kind = manifestation.Kind(k)
	}
	f.Subject = in.Subject
	f.DescriptionText = in.DescriptionText
	f.AudioTranscript = in.AudioTranscript
	f.ImageAlt = in.ImageAlt
	f.VideoDescription = in.VideoDescription
	f.Anonymous = in.Anonymous
	return f
}

// Form loads the referenced attachments and returns the full form.
func (in FormInput) Form(cfg *config.Config) (manifestation.FormState, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	f := in.textForm()

	var err error
	if f.Audio, err = loadAttachment(manifestation.FieldAudioFile, in.AudioPath, "audio", cfg.MaxAudioBytes); err != nil {
		return f, err
	}
	if f.Image, err = loadAttachment(manifestation.FieldImageFile, in.ImagePath, "image", cfg.MaxImageBytes); err != nil {
		return f, err
	}
	if f.Video, err = loadAttachment(manifestation.FieldVideoFile, in.VideoPath, "video", cfg.MaxVideoBytes); err != nil {
		return f, err
	}
	return f, nil
}

// validatorFor returns a validator enforcing the configured attachment limits.
func validatorFor(cfg *config.Config) *validation.Validator {
	if cfg == nil {
		return validation.New(validation.DefaultLimits())
	}
	return validation.New(validation.Limits{
		MaxAudioBytes: cfg.MaxAudioBytes,
		MaxImageBytes: cfg.MaxImageBytes,
		MaxVideoBytes: cfg.MaxVideoBytes,
	})
}

// loadAttachment reads path as the attachment for field. An empty path means no attachment.
func loadAttachment(field, path, family string, max int64) (*manifestation.Attachment, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}

	f, err := openFileNoFollowRead(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if !info.Mode().IsRegular() {
		return nil, errors.NewInvalidRequest(field + ": not a regular file: " + path)
	}
	if max > 0 && info.Size() > max {
		return nil, errors.NewAttachmentTooLarge(field, max, info.Size())
	}

	r := io.Reader(f)
	if max > 0 {
		r = io.LimitReader(f, max+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if max > 0 && int64(len(data)) > max {
		return nil, errors.NewAttachmentTooLarge(field, max, int64(len(data)))
	}

	return &manifestation.Attachment{
		Data:     data,
		MimeType: detectMimeType(path, data, family),
		Filename: filepath.Base(path),
	}, nil
}

// mediaTypes covers recording formats missing from the platform mime tables.
var mediaTypes = map[string]string{
	".webm": "video/webm",
	".weba": "audio/webm",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".ogv":  "video/ogg",
	".opus": "audio/ogg",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".wav":  "audio/wav",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".heic": "image/heic",
}

// detectMimeType guesses a media type from the extension, then the content.
// Containers shared by audio and video (webm, ogg, mp4) take the expected family.
func detectMimeType(path string, data []byte, family string) string {
	ext := strings.ToLower(filepath.Ext(path))
	mt, ok := mediaTypes[ext]
	if !ok {
		mt = mime.TypeByExtension(ext)
	}
	if mt == "" {
		mt = http.DetectContentType(data)
	}
	base, _, err := mime.ParseMediaType(mt)
	if err != nil {
		return mt
	}
	fam, sub, _ := strings.Cut(base, "/")
	if fam == family || !isAV(fam) || !isAV(family) {
		return base
	}
	switch sub {
	case "webm", "ogg", "mp4":
		return family + "/" + sub
	}
	return base
}

func isAV(family string) bool {
	return family == "audio" || family == "video"
}
