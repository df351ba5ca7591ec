package submission

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/participadf/ouvidoria/internal/api"
	"github.com/participadf/ouvidoria/internal/db"
	"github.com/participadf/ouvidoria/internal/draft"
	"github.com/participadf/ouvidoria/internal/errors"
	"github.com/participadf/ouvidoria/internal/manifestation"
)

type fakeService struct {
	mu      sync.Mutex
	calls   []api.Payload
	err     error
	resp    *api.CreateResponse
	block   chan struct{}
	entered chan struct{}
}

func (s *fakeService) CreateManifestation(ctx context.Context, p api.Payload) (*api.CreateResponse, error) {
	s.mu.Lock()
	s.calls = append(s.calls, p)
	s.mu.Unlock()
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.resp != nil {
		return s.resp, nil
	}
	return &api.CreateResponse{Protocol: "DF-2026-123456", CreatedAt: "2026-10-18T12:00:00Z"}, nil
}

func (s *fakeService) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newDrafts(t *testing.T) *draft.Store {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return draft.NewStore(database)
}

func validForm() manifestation.FormState {
	return manifestation.FormState{
		Kind:            manifestation.KindComplaint,
		Subject:         "Iluminação",
		DescriptionText: "Poste apagado há duas semanas na quadra 5.",
	}
}

func TestSubmit_SuccessClearsDraft(t *testing.T) {
	ctx := context.Background()
	store := newDrafts(t)
	autosaver := draft.NewAutosaver(store, draft.WithDebounce(30*time.Millisecond))
	defer autosaver.Shutdown()

	form := validForm()
	require.NoError(t, store.Save(ctx, form.Snapshot()))
	// A save still pending when the submission lands must not resurrect the draft
	autosaver.Schedule(form)

	svc := &fakeService{}
	c := New(svc, WithDrafts(store), WithAutosaver(autosaver))

	res, err := c.Submit(ctx, form)
	require.NoError(t, err)
	require.Equal(t, "DF-2026-123456", res.TrackingID)
	require.Equal(t, "2026-10-18T12:00:00Z", res.CreatedAt)
	require.Equal(t, 1, svc.callCount())

	time.Sleep(80 * time.Millisecond)
	rec, err := store.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestSubmit_AudioOnlyWithTranscript(t *testing.T) {
	svc := &fakeService{}
	c := New(svc)

	form := manifestation.FormState{
		Kind:            manifestation.KindComplaint,
		Subject:         "Barulho",
		Audio:           &manifestation.Attachment{Data: []byte("a"), MimeType: "audio/webm", Filename: "relato-1.webm"},
		AudioTranscript: "barulho",
	}
	res, err := c.Submit(context.Background(), form)
	require.NoError(t, err)
	require.NotEmpty(t, res.TrackingID)
	require.Equal(t, 1, svc.callCount())
	require.Len(t, svc.calls[0].Files, 1)
	require.Equal(t, manifestation.FieldAudioFile, svc.calls[0].Files[0].Field)
}

func TestSubmit_InvalidFormSendsNothing(t *testing.T) {
	svc := &fakeService{}
	c := New(svc)

	form := manifestation.FormState{
		Kind:            manifestation.KindComplaint,
		Subject:         "X",
		Audio:           &manifestation.Attachment{Data: []byte("a"), MimeType: "audio/webm"},
		AudioTranscript: "barulho",
	}
	_, err := c.Submit(context.Background(), form)
	require.True(t, errors.Is(err, errors.ErrValidation))
	require.Contains(t, errors.FieldErrors(err), manifestation.FieldSubject)
	require.Zero(t, svc.callCount())
}

func TestSubmit_FailureKeepsDraft(t *testing.T) {
	ctx := context.Background()
	store := newDrafts(t)
	form := validForm()
	require.NoError(t, store.Save(ctx, form.Snapshot()))
	before := form.Clone()

	svc := &fakeService{err: &api.HTTPError{Status: 503, Body: "down"}}
	c := New(svc, WithDrafts(store))

	_, err := c.Submit(ctx, form)
	require.True(t, errors.Is(err, errors.ErrSubmission))
	var ie *errors.IntakeError
	require.ErrorAs(t, err, &ie)
	require.Equal(t, "Não foi possível enviar agora. Verifique sua conexão e tente novamente.", ie.Message)
	require.Equal(t, 503, ie.Details["upstream_status"])
	require.Equal(t, 1, svc.callCount())

	require.Equal(t, before, form)
	rec, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, form.Snapshot(), rec.Data)
}

func TestSubmit_TransportFailure(t *testing.T) {
	svc := &fakeService{err: stderrors.New("connection refused")}
	_, err := New(svc).Submit(context.Background(), validForm())
	require.True(t, errors.Is(err, errors.ErrSubmission))
	require.Equal(t, 1, svc.callCount())
}

type failingClearer struct{ calls int }

func (f *failingClearer) Clear(context.Context) error {
	f.calls++
	return stderrors.New("disk gone")
}

func TestSubmit_DraftClearFailureIsNotFatal(t *testing.T) {
	clearer := &failingClearer{}
	res, err := New(&fakeService{}, WithDrafts(clearer)).Submit(context.Background(), validForm())
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Equal(t, 1, clearer.calls)
}

func TestSubmit_RejectsConcurrentSubmission(t *testing.T) {
	svc := &fakeService{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	c := New(svc)

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), validForm())
		errCh <- err
	}()
	<-svc.entered

	_, err := c.Submit(context.Background(), validForm())
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	close(svc.block)
	require.NoError(t, <-errCh)
	require.Equal(t, 1, svc.callCount())
}
