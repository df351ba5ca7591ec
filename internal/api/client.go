// Package api is the HTTP client for the manifestation service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/participadf/ouvidoria/internal/errors"
	"github.com/participadf/ouvidoria/internal/manifestation"
)

// DefaultBaseURL is the service root used when none is configured.
const DefaultBaseURL = "http://localhost:8787/api"

// Tracking statuses reported by the service.
const (
	StatusReceived  = "Recebido"
	StatusInReview  = "Em análise"
	StatusResponded = "Respondido"
)

// Client is a minimal manifestation service client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults. A blank baseURL uses DefaultBaseURL.
func New(baseURL string, timeout time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{BaseURL: baseURL, Timeout: timeout}
}

// CreateResponse is returned by POST /manifestations.
type CreateResponse struct {
	Protocol  string `json:"protocol"`
	CreatedAt string `json:"createdAt"`
}

// StatusResponse is returned by GET /manifestations/{protocol}.
type StatusResponse struct {
	Protocol  string `json:"protocol"`
	CreatedAt string `json:"createdAt"`
	Status    string `json:"status"`
	Subject   string `json:"subject,omitempty"`
}

// HTTPError wraps non-2xx responses.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("Erro HTTP %d", e.Status)
}

// Field is a text part of the submission.
type Field struct {
	Name  string
	Value string
}

// File is a binary part of the submission.
type File struct {
	Field    string
	Filename string
	MimeType string
	Data     []byte
}

// Payload is the multipart body of a submission, in wire order.
type Payload struct {
	Fields []Field
	Files  []File
}

// NewPayload maps a form to its wire representation. Text fields are always
// sent, empty when unset; file parts only when an attachment is present.
func NewPayload(f manifestation.FormState) Payload {
	p := Payload{Fields: []Field{
		{manifestation.FieldKind, string(f.Kind)},
		{manifestation.FieldSubject, f.Subject},
		{manifestation.FieldDescriptionText, f.DescriptionText},
		{manifestation.FieldAnonymous, strconv.FormatBool(f.Anonymous)},
		{manifestation.FieldAudioTranscript, f.AudioTranscript},
		{manifestation.FieldImageAlt, f.ImageAlt},
		{manifestation.FieldVideoDescription, f.VideoDescription},
	}}
	for _, a := range []struct {
		field string
		att   *manifestation.Attachment
	}{
		{manifestation.FieldAudioFile, f.Audio},
		{manifestation.FieldImageFile, f.Image},
		{manifestation.FieldVideoFile, f.Video},
	} {
		if a.att == nil {
			continue
		}
		p.Files = append(p.Files, File{
			Field:    a.field,
			Filename: a.att.Filename,
			MimeType: a.att.MimeType,
			Data:     a.att.Data,
		})
	}
	return p
}

// encode writes p as multipart/form-data and returns the content type.
func (p Payload) encode(w io.Writer) (string, error) {
	mw := multipart.NewWriter(w)
	for _, f := range p.Fields {
		if err := mw.WriteField(f.Name, f.Value); err != nil {
			return "", err
		}
	}
	for _, f := range p.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, filename(f)))
		ct := f.MimeType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return "", err
		}
		if _, err := part.Write(f.Data); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}
	return mw.FormDataContentType(), nil
}

func filename(f File) string {
	if f.Filename != "" {
		return f.Filename
	}
	return f.Field
}

// CreateManifestation submits a manifestation. It is never retried.
func (c *Client) CreateManifestation(ctx context.Context, p Payload) (*CreateResponse, error) {
	var body bytes.Buffer
	contentType, err := p.encode(&body)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	var resp CreateResponse
	if err := c.do(ctx, http.MethodPost, "manifestations", contentType, &body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetManifestationStatus looks up a protocol. An unknown protocol is a NOT_FOUND error.
func (c *Client) GetManifestationStatus(ctx context.Context, protocol string) (*StatusResponse, error) {
	var resp StatusResponse
	endpoint := "manifestations/" + url.PathEscape(protocol)
	if err := c.do(ctx, http.MethodGet, endpoint, "", nil, &resp); err != nil {
		if he, ok := err.(*HTTPError); ok && he.Status == http.StatusNotFound {
			return nil, errors.NewNotFound(protocol)
		}
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, endpoint, contentType string, body io.Reader, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	u := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &HTTPError{Status: resp.StatusCode, Body: string(b)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
