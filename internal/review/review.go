// Package review builds the summary shown on the last wizard step.
package review

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/participadf/ouvidoria/internal/manifestation"
)

// AnonymityNotice is shown when the manifestation is sent anonymously.
const AnonymityNotice = "Se marcar anonimato, evite inserir dados pessoais no texto e nas descrições de mídia."

// Item is one line of the review list.
type Item struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Summary is the review of a form, in display order.
type Summary struct {
	Items  []Item `json:"items"`
	Notice string `json:"notice,omitempty"`
}

// Build summarizes f. Attachments are reported as present or absent, never inlined.
func Build(f manifestation.FormState) Summary {
	subject := f.Subject
	if strings.TrimSpace(subject) == "" {
		subject = "(não informado)"
	}
	text := "Não informado (ok se houver áudio)"
	if strings.TrimSpace(f.DescriptionText) != "" {
		text = "Informado"
	}

	s := Summary{Items: []Item{
		{"Tipo", f.Kind.Label()},
		{"Assunto", subject},
		{"Texto", text},
		{"Áudio", attached(f.HasAudio(), "Anexado", "Não anexado")},
		{"Imagem", attached(f.HasImage(), "Anexada", "Não anexada")},
		{"Vídeo", attached(f.HasVideo(), "Anexado", "Não anexado")},
		{"Anônimo", attached(f.Anonymous, "Sim", "Não")},
	}}
	if f.Anonymous {
		s.Notice = AnonymityNotice
	}
	return s
}

func attached(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

// Markdown renders the summary as a Markdown document.
func (s Summary) Markdown() string {
	var b strings.Builder
	b.WriteString("## Revisão\n\n")
	for _, it := range s.Items {
		fmt.Fprintf(&b, "- **%s:** %s\n", it.Label, escape(it.Value))
	}
	if s.Notice != "" {
		fmt.Fprintf(&b, "\n> %s\n", escape(s.Notice))
	}
	return b.String()
}

// HTML renders the summary through goldmark. Raw HTML in user input is not passed through.
func (s Summary) HTML() (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(s.Markdown()), &buf); err != nil {
		return "", fmt.Errorf("render review: %w", err)
	}
	return buf.String(), nil
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`,
	"[", `\[`, "]", `\]`, "<", `\<`, ">", `\>`,
	"#", `\#`, "|", `\|`, "\n", " ",
)

// escape keeps user text literal inside a list item.
func escape(s string) string {
	return markdownEscaper.Replace(strings.TrimSpace(s))
}
