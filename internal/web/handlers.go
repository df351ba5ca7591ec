package web

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/participadf/ouvidoria/internal/api"
	"github.com/participadf/ouvidoria/internal/config"
	"github.com/participadf/ouvidoria/internal/errors"
	"github.com/participadf/ouvidoria/internal/manifestation"
)

// Record is a stored manifestation as the service reports it.
type Record = api.StatusResponse

// Records is the in-memory manifestation table.
type Records struct {
	mu   sync.Mutex
	byID map[string]Record
	now  func() time.Time
	seq  func() int
}

// NewRecords creates an empty table.
func NewRecords() *Records {
	return &Records{
		byID: make(map[string]Record),
		now:  time.Now,
		seq:  func() int { return rand.IntN(900000) + 100000 },
	}
}

// Create stores a new manifestation with status Recebido and returns it.
func (r *Records) Create(subject string) Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	var protocol string
	for {
		protocol = fmt.Sprintf("DF-%d-%06d", now.Year(), r.seq())
		if _, taken := r.byID[protocol]; !taken {
			break
		}
	}
	rec := Record{
		Protocol:  protocol,
		CreatedAt: now.Format(time.RFC3339Nano),
		Status:    api.StatusReceived,
		Subject:   subject,
	}
	r.byID[protocol] = rec
	return rec
}

// Get returns the record for protocol.
func (r *Records) Get(protocol string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[protocol]
	return rec, ok
}

// SetStatus moves a record to status.
func (r *Records) SetStatus(protocol, status string) (Record, error) {
	switch status {
	case api.StatusReceived, api.StatusInReview, api.StatusResponded:
	default:
		return Record{}, errors.NewInvalidRequest(fmt.Sprintf("unknown status %q", status))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[protocol]
	if !ok {
		return Record{}, errors.NewNotFound(protocol)
	}
	rec.Status = status
	r.byID[protocol] = rec
	return rec, nil
}

// Handlers contains HTTP route handlers for the mock service.
type Handlers struct {
	records  *Records
	cfg      *config.Config
	renderer *Renderer
	logger   *slog.Logger
}

// maxUploadBytes bounds a whole submission: every attachment at its limit plus form fields.
func (h *Handlers) maxUploadBytes() int64 {
	cfg := h.cfg
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return cfg.MaxAudioBytes + cfg.MaxImageBytes + cfg.MaxVideoBytes + 1<<20
}

// HandleCreate handles POST /api/manifestations.
func (h *Handlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	limit := h.maxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			h.renderer.renderError(w, r, errors.NewAttachmentTooLarge("body", limit, r.ContentLength))
			return
		}
		h.renderer.renderError(w, r, errors.NewInvalidRequest("expected multipart/form-data: "+err.Error()))
		return
	}
	defer r.MultipartForm.RemoveAll()

	rec := h.records.Create(strings.TrimSpace(r.FormValue(manifestation.FieldSubject)))
	h.logger.Info("manifestation received",
		"protocol", rec.Protocol,
		"kind", r.FormValue(manifestation.FieldKind),
		"anonymous", r.FormValue(manifestation.FieldAnonymous),
		"files", attachedFiles(r),
	)

	renderJSON(w, http.StatusCreated, api.CreateResponse{Protocol: rec.Protocol, CreatedAt: rec.CreatedAt})
}

func attachedFiles(r *http.Request) []string {
	var names []string
	for _, field := range []string{manifestation.FieldAudioFile, manifestation.FieldImageFile, manifestation.FieldVideoFile} {
		if fhs := r.MultipartForm.File[field]; len(fhs) > 0 {
			names = append(names, field)
		}
	}
	return names
}

// HandleGet handles GET /api/manifestations/{protocol}. Browsers get an HTML page.
func (h *Handlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	protocol := r.PathValue("protocol")
	rec, ok := h.records.Get(protocol)
	if !ok {
		h.renderer.renderError(w, r, errors.NewNotFound(protocol))
		return
	}

	if wantsHTML(r) {
		h.renderer.renderPage(w, http.StatusOK, "protocol", ProtocolPageData{
			PageData: PageData{Title: "Detalhes do protocolo"},
			Record:   rec,
		})
		return
	}
	renderJSON(w, http.StatusOK, rec)
}

// HandleSetStatus handles PUT /api/manifestations/{protocol}/status with body {"status": "..."}.
func (h *Handlers) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&body); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid JSON body: "+err.Error()))
		return
	}

	rec, err := h.records.SetStatus(r.PathValue("protocol"), body.Status)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, rec)
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
