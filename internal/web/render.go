package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/participadf/ouvidoria/internal/errors"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title string
}

// ProtocolPageData is the template data for the protocol details page.
type ProtocolPageData struct {
	PageData
	Record Record
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS) *Renderer {
	funcMap := template.FuncMap{
		"formatTime": formatTime,
	}

	// Parse layout as the base template
	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"protocol": "protocol.html",
		"error":    "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{templates: templates}
}

// renderPage renders a named page template with the given data and HTTP status code.
func (r *Renderer) renderPage(w http.ResponseWriter, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		slog.Error("template not found", "name", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("template execution failed", "name", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
// JSON bodies carry the message the intake client shows for the status.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	var iErr *errors.IntakeError
	if !stderrors.As(err, &iErr) {
		iErr = errors.NewInternal(err)
	}

	status := iErr.Status
	message := iErr.Message
	if iErr.Code == errors.ErrNotFound {
		message = "Protocolo não encontrado"
	}

	if wantsHTML(req) {
		r.renderPage(w, status, "error", ErrorPageData{
			PageData:   PageData{Title: fmt.Sprintf("Erro %d", status)},
			StatusCode: status,
			Message:    message,
		})
		return
	}

	renderJSON(w, status, map[string]any{
		"message": message,
		"code":    string(iErr.Code),
	})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

var saoPaulo = loadLocation("America/Sao_Paulo")

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// formatTime formats an RFC 3339 timestamp the way Brazilian readers expect.
// Unparseable input is returned unchanged.
func formatTime(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return t.In(saoPaulo).Format("02/01/2006 15:04")
}
