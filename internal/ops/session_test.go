package ops

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/participadf/ouvidoria/internal/capture"
	"github.com/participadf/ouvidoria/internal/db"
	"github.com/participadf/ouvidoria/internal/draft"
	"github.com/participadf/ouvidoria/internal/errors"
	"github.com/participadf/ouvidoria/internal/manifestation"
	"github.com/participadf/ouvidoria/internal/wizard"
)

func writeRecording(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relato.ogg")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func waitSaved(t *testing.T, s *Session) {
	t.Helper()
	require.Eventually(t, func() bool {
		st, _ := s.SaveStatus()
		return st == draft.StatusSaved
	}, 2*time.Second, 5*time.Millisecond)
}

// TestSession_TypeRecordSubmit drives one intake end to end:
// type → autosave → record → review → submit → draft gone, form reset
func TestSession_TypeRecordSubmit(t *testing.T) {
	ctx := context.Background()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()
	cfg := newMockService(t)

	s, err := OpenSession(ctx, database, cfg, SessionInput{AudioFrom: writeRecording(t, "OggS-relato")})
	require.NoError(t, err)
	defer s.Close()
	require.False(t, s.Restored())

	// 1. Typing is committed once the debounce window passes
	s.Update(func(f *manifestation.FormState) {
		f.Kind = manifestation.KindDenunciation
		f.Subject = "Obra sem placa"
	})
	require.True(t, s.Next().Moved)
	waitSaved(t, s)

	show, err := DraftShow(ctx, database)
	require.NoError(t, err)
	require.True(t, show.Found)
	require.Equal(t, "Obra sem placa", show.Draft.Subject)

	// 2. A finished recording fills the audio slot
	require.NoError(t, s.Recorder().Start(ctx))
	art, err := s.Recorder().Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, "audio/ogg", art.MimeType)
	require.Equal(t, []byte("OggS-relato"), s.State().Audio.Data)

	// The audio stands in for the written account once it has a transcript
	tr := s.Next()
	require.False(t, tr.Moved)
	require.Equal(t, manifestation.FieldAudioTranscript, tr.Focus)
	s.Update(func(f *manifestation.FormState) { f.AudioTranscript = "Obra na quadra 10" })
	require.True(t, s.Next().Moved)
	require.Equal(t, wizard.Step3, s.Step())

	rv, err := s.Review()
	require.NoError(t, err)
	require.True(t, rv.Valid)

	// 3. Submit clears the draft and starts over
	out, err := s.Submit(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, out.Protocol)

	show, err = DraftShow(ctx, database)
	require.NoError(t, err)
	require.False(t, show.Found)
	require.Equal(t, manifestation.Defaults(), s.State())
	require.Equal(t, wizard.Step1, s.Step())
	require.Equal(t, capture.StatusIdle, s.Recorder().Status())

	// No late save recreates the slot
	time.Sleep(5 * cfg.DraftDebounce())
	show, err = DraftShow(ctx, database)
	require.NoError(t, err)
	require.False(t, show.Found)

	// The submission is visible to tracking
	tracked, err := Track(ctx, cfg, TrackInput{Protocol: out.Protocol})
	require.NoError(t, err)
	require.Equal(t, out.Protocol, tracked.Protocol)
}

func TestSession_RestoresDraft(t *testing.T) {
	ctx := context.Background()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()
	cfg := newMockService(t)

	_, err = DraftSave(ctx, database, cfg, DraftSaveInput{Form: FormInput{Kind: "elogio", Subject: "Atendimento"}})
	require.NoError(t, err)

	s, err := OpenSession(ctx, database, cfg, SessionInput{})
	require.NoError(t, err)
	defer s.Close()

	require.True(t, s.Restored())
	require.Equal(t, manifestation.KindPraise, s.State().Kind)
	require.Equal(t, "Atendimento", s.State().Subject)
	require.Equal(t, wizard.Step1, s.Step())
	require.Equal(t, capture.StatusUnsupported, s.Recorder().Status())
}

func TestSession_SubmitOnlyAtReview(t *testing.T) {
	ctx := context.Background()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()
	cfg := newMockService(t)

	s, err := OpenSession(ctx, database, cfg, SessionInput{})
	require.NoError(t, err)
	defer s.Close()

	s.Update(func(f *manifestation.FormState) {
		f.Subject = "Buraco na via"
		f.DescriptionText = "Buraco grande em frente à escola."
	})
	_, err = s.Submit(ctx)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	require.Equal(t, "Buraco na via", s.State().Subject)
}

func TestSession_ClearedRecordingLeavesForm(t *testing.T) {
	ctx := context.Background()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()
	cfg := newMockService(t)

	s, err := OpenSession(ctx, database, cfg, SessionInput{AudioFrom: writeRecording(t, "OggS")})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Recorder().Start(ctx))
	_, err = s.Recorder().Wait(ctx)
	require.NoError(t, err)
	require.True(t, s.State().HasAudio())

	require.NoError(t, s.Recorder().Clear())
	require.False(t, s.State().HasAudio())
}

func TestSession_CloseFlushesPendingDraft(t *testing.T) {
	ctx := context.Background()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()
	cfg := newMockService(t)
	cfg.DraftDebounceMillis = int(time.Hour / time.Millisecond)

	s, err := OpenSession(ctx, database, cfg, SessionInput{})
	require.NoError(t, err)
	s.Update(func(f *manifestation.FormState) { f.Subject = "Iluminação pública" })
	require.NoError(t, s.Close())

	show, err := DraftShow(ctx, database)
	require.NoError(t, err)
	require.True(t, show.Found)
	require.Equal(t, "Iluminação pública", show.Draft.Subject)
}
