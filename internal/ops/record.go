package ops

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/participadf/ouvidoria/internal/capture"
	"github.com/participadf/ouvidoria/internal/config"
	"github.com/participadf/ouvidoria/internal/errors"
)

// RecordInput contains parameters for the Record operation.
type RecordInput struct {
	From     string // source stream, read to its end
	MimeType string // default: guessed from From, else audio/webm
	Out      string // default: the generated filename in the current directory
}

// RecordOutput contains the result of the Record operation.
type RecordOutput struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Bytes    int    `json:"bytes"`
	Message  string `json:"message"`
}

// Record runs a capture session over a file source and writes the recording.
// The configured size and duration caps stop the session early.
func Record(ctx context.Context, cfg *config.Config, input RecordInput) (*RecordOutput, error) {
	if strings.TrimSpace(input.From) == "" {
		return nil, errors.NewInvalidRequest("from is required")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	src, err := openFileNoFollowRead(input.From)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	ctrl := capture.New(capture.NewReaderDevice(src, recordingMimeType(input.From, input.MimeType), 0),
		capture.WithMaxBytes(cfg.MaxAudioBytes),
		capture.WithMaxDuration(cfg.MaxCaptureDuration()),
		capture.WithLogger(slog.Default()),
	)
	defer ctrl.Close()

	if err := ctrl.Start(ctx); err != nil {
		return nil, err
	}
	art, err := ctrl.Wait(ctx)
	if err != nil {
		return nil, err
	}

	out := input.Out
	if strings.TrimSpace(out) == "" {
		out = art.Filename
	}
	f, err := openFileNoFollow(filepath.Clean(out), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(art.Data); err != nil {
		f.Close()
		return nil, errors.NewInternal(err)
	}
	if err := f.Close(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return &RecordOutput{
		Path:     out,
		Filename: art.Filename,
		MimeType: art.MimeType,
		Bytes:    len(art.Data),
		Message:  ctrl.Message(),
	}, nil
}

// recordingMimeType returns explicit when set, else the audio type implied by
// the source name, else the recorder fallback.
func recordingMimeType(path, explicit string) string {
	if mt := strings.TrimSpace(explicit); mt != "" {
		return mt
	}
	mt := detectMimeType(path, nil, "audio")
	if !strings.HasPrefix(mt, "audio/") {
		return capture.FallbackMimeType
	}
	return mt
}
