package main

import (
	"bufio"
	"database/sql"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/participadf/ouvidoria/internal/capture"
	"github.com/participadf/ouvidoria/internal/config"
	"github.com/participadf/ouvidoria/internal/errors"
	"github.com/participadf/ouvidoria/internal/manifestation"
	"github.com/participadf/ouvidoria/internal/ops"
	"github.com/participadf/ouvidoria/internal/validation"
	"github.com/participadf/ouvidoria/internal/wizard"
)

// errInputEnded stops the wizard when stdin runs out before submission.
var errInputEnded = stderrors.New("input ended before submission; the draft was kept")

// newCmd creates the interactive new command.
func newCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "new",
		Usage: "Fill in a manifestation step by step; edits are kept as a draft until it is sent",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "audio-from", Usage: "Source to record the audio account from (file or named pipe)"},
			&cli.StringFlag{Name: "mime", Usage: "Recording mime type (default: from the source extension, else audio/webm)"},
		},
		Action: func(c *cli.Context) error {
			sess, err := ops.OpenSession(c.Context, db, cfg, ops.SessionInput{
				AudioFrom: c.String("audio-from"),
				MimeType:  c.String("mime"),
			})
			if err != nil {
				return outputError(err)
			}

			var prompts io.Writer = os.Stderr
			if c.App.ErrWriter != nil {
				prompts = c.App.ErrWriter
			}
			p := &prompter{in: bufio.NewScanner(c.App.Reader), out: prompts}
			output, runErr := runWizard(c, sess, p)
			if err := sess.Close(); err != nil && runErr == nil {
				runErr = err
			}
			if runErr != nil {
				return outputError(runErr)
			}
			return outputJSON(c, output)
		},
	}
}

// runWizard walks the steps until the form is sent.
func runWizard(c *cli.Context, sess *ops.Session, p *prompter) (*ops.SubmitOutput, error) {
	if sess.Restored() {
		p.say("Rascunho restaurado.")
	}
	for {
		step := sess.Step()
		p.say("\n" + step.Title())

		switch step {
		case wizard.Step1:
			if err := askClassification(sess, p); err != nil {
				return nil, err
			}
		case wizard.Step2:
			if err := askNarrative(c, sess, p); err != nil {
				return nil, err
			}
		case wizard.Step3:
			out, done, err := confirmAndSend(c, sess, p)
			if err != nil || done {
				return out, err
			}
			continue
		}

		if t := sess.Next(); !t.Moved {
			p.fieldErrors(t.Errors, step.Fields())
		}
		if st, _ := sess.SaveStatus(); st.Hint() != "" {
			p.say(st.Hint())
		}
	}
}

func askClassification(sess *ops.Session, p *prompter) error {
	cur := sess.State()
	kind, err := p.ask("Tipo (reclamacao|denuncia|sugestao|elogio)", string(cur.Kind))
	if err != nil {
		return err
	}
	subject, err := p.ask("Assunto", cur.Subject)
	if err != nil {
		return err
	}
	sess.Update(func(f *manifestation.FormState) {
		f.Kind = manifestation.Kind(kind)
		f.Subject = subject
	})
	return nil
}

func askNarrative(c *cli.Context, sess *ops.Session, p *prompter) error {
	cur := sess.State()
	text, err := p.ask("Relato", cur.DescriptionText)
	if err != nil {
		return err
	}
	sess.Update(func(f *manifestation.FormState) { f.DescriptionText = text })

	rec := sess.Recorder()
	if rec.Status() != capture.StatusUnsupported && !cur.HasAudio() {
		ok, err := p.confirm("Gravar relato em áudio?")
		if err != nil {
			return err
		}
		if ok {
			if err := rec.Start(c.Context); err != nil {
				return err
			}
			if _, err := rec.Wait(c.Context); err != nil {
				p.say(describeError(err))
			} else {
				p.say(rec.Message())
			}
		}
	}

	if sess.State().HasAudio() {
		transcript, err := p.ask("Transcrição ou resumo do áudio", sess.State().AudioTranscript)
		if err != nil {
			return err
		}
		sess.Update(func(f *manifestation.FormState) { f.AudioTranscript = transcript })
	}
	return nil
}

// confirmAndSend shows the review and submits on confirmation. done is
// false when the user went back or the send failed and may be retried.
func confirmAndSend(c *cli.Context, sess *ops.Session, p *prompter) (*ops.SubmitOutput, bool, error) {
	anonymous, err := p.confirm("Enviar de forma anônima?")
	if err != nil {
		return nil, false, err
	}
	sess.Update(func(f *manifestation.FormState) { f.Anonymous = anonymous })

	rv, err := sess.Review()
	if err != nil {
		return nil, false, err
	}
	p.say(rv.Markdown)

	answer, err := p.ask("Enviar? (s = enviar, v = voltar)", "")
	if err != nil {
		return nil, false, err
	}
	switch strings.ToLower(answer) {
	case "s", "sim":
	case "v", "voltar":
		sess.Back()
		return nil, false, nil
	default:
		return nil, false, nil
	}

	out, err := sess.Submit(c.Context)
	if err != nil {
		p.say(describeError(err))
		return nil, false, nil
	}
	return out, true, nil
}

// prompter reads one answer per line.
type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func (p *prompter) say(msg string) {
	fmt.Fprintln(p.out, msg)
}

// ask prompts for a value. A blank answer keeps current.
func (p *prompter) ask(label, current string) (string, error) {
	if current != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, current)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", errors.NewInternal(err)
		}
		return "", errInputEnded
	}
	if v := strings.TrimSpace(p.in.Text()); v != "" {
		return v, nil
	}
	return current, nil
}

func (p *prompter) confirm(label string) (bool, error) {
	v, err := p.ask(label+" (s/N)", "")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(v) {
	case "s", "sim", "y", "yes":
		return true, nil
	}
	return false, nil
}

// fieldErrors lists the step's errors in form order.
func (p *prompter) fieldErrors(errs validation.Result, order []string) {
	for _, name := range order {
		if msg, ok := errs[name]; ok {
			fmt.Fprintf(p.out, "  %s: %s\n", name, msg)
		}
	}
}

// describeError renders err the way outputError does, without exiting.
func describeError(err error) string {
	var iErr *errors.IntakeError
	if !stderrors.As(err, &iErr) {
		return err.Error()
	}
	return fmt.Sprintf("[%s] %s", iErr.Code, iErr.Message)
}
