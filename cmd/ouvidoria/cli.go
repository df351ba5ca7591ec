package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/participadf/ouvidoria/internal/config"
	"github.com/participadf/ouvidoria/internal/errors"
	"github.com/participadf/ouvidoria/internal/manifestation"
	"github.com/participadf/ouvidoria/internal/ops"
	"github.com/participadf/ouvidoria/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config, logLevel *slog.LevelVar) *cli.App {
	app := &cli.App{
		Name:    "ouvidoria",
		Usage:   "Registro e acompanhamento de manifestações",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "home", Usage: "Data directory (default: $" + EnvHome + " or ~/.ouvidoria)"},
			&cli.BoolFlag{Name: "verbose", Usage: "Log debug output to stderr"},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") && logLevel != nil {
				logLevel.Set(slog.LevelDebug)
			}
			return nil
		},
		Commands: []*cli.Command{
			newCmd(db, cfg),
			validateCmd(cfg),
			reviewCmd(cfg),
			submitCmd(db, cfg),
			draftCmd(db, cfg),
			trackCmd(cfg),
			recordCmd(cfg),
			serveMockCmd(cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// formFlags override fields of the form read from stdin.
func formFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "reclamacao|denuncia|sugestao|elogio"},
		&cli.StringFlag{Name: "subject", Aliases: []string{"s"}, Usage: "Subject (min. 3 characters)"},
		&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Written account (min. 10 characters unless --audio is given)"},
		&cli.StringFlag{Name: "audio", Usage: "Audio file to attach"},
		&cli.StringFlag{Name: "audio-transcript", Usage: "Transcript or summary of the audio"},
		&cli.StringFlag{Name: "image", Usage: "Image file to attach"},
		&cli.StringFlag{Name: "image-alt", Usage: "Alternative text for the image"},
		&cli.StringFlag{Name: "video", Usage: "Video file to attach"},
		&cli.StringFlag{Name: "video-description", Usage: "Caption or description of the video"},
		&cli.BoolFlag{Name: "anonymous", Usage: "Submit without identification"},
	}
}

// readForm decodes a form from stdin (JSON, optional) and applies flag overrides.
func readForm(c *cli.Context) (ops.FormInput, error) {
	var form ops.FormInput

	data, err := readInput(c)
	if err != nil {
		return form, errors.NewInternal(err)
	}
	if len(data) > 0 {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&form); err != nil {
			return form, errors.NewInvalidRequest("invalid form JSON on stdin: " + err.Error())
		}
	}

	overrides := []struct {
		flag string
		dst  *string
	}{
		{"kind", &form.Kind},
		{"subject", &form.Subject},
		{"description", &form.DescriptionText},
		{"audio", &form.AudioPath},
		{"audio-transcript", &form.AudioTranscript},
		{"image", &form.ImagePath},
		{"image-alt", &form.ImageAlt},
		{"video", &form.VideoPath},
		{"video-description", &form.VideoDescription},
	}
	for _, o := range overrides {
		if c.IsSet(o.flag) {
			*o.dst = c.String(o.flag)
		}
	}
	if c.IsSet("anonymous") {
		form.Anonymous = c.Bool("anonymous")
	}
	return form, nil
}

// validateCmd creates the validate command.
func validateCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Check a manifestation step by step (reads form JSON from stdin)",
		Flags: formFlags(),
		Action: func(c *cli.Context) error {
			form, err := readForm(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Validate(cfg, ops.ValidateInput{Form: form})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// reviewCmd creates the review command.
func reviewCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "review",
		Usage: "Show the summary presented before submission",
		Flags: append(formFlags(),
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "markdown", Usage: "Output format: markdown|html|json"},
		),
		Action: func(c *cli.Context) error {
			form, err := readForm(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Review(cfg, ops.ReviewInput{Form: form})
			if err != nil {
				return outputError(err)
			}

			switch c.String("format") {
			case "markdown":
				_, err = io.WriteString(c.App.Writer, output.Markdown)
			case "html":
				_, err = io.WriteString(c.App.Writer, output.HTML)
			case "json":
				err = outputJSON(c, output)
			default:
				return outputError(errors.NewInvalidRequest("format must be markdown, html or json"))
			}
			return err
		},
	}
}

// submitCmd creates the submit command.
func submitCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "submit",
		Usage: "Validate and send a manifestation; prints the tracking protocol",
		Flags: formFlags(),
		Action: func(c *cli.Context) error {
			form, err := readForm(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Submit(c.Context, db, cfg, ops.SubmitInput{Form: form})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, output)
		},
	}
}

// draftCmd creates the draft command and its subcommands.
func draftCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "draft",
		Usage: "Manage the saved draft",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the saved draft",
				Action: func(c *cli.Context) error {
					output, err := ops.DraftShow(c.Context, db)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
			{
				Name:  "save",
				Usage: "Save the text fields of a form as the draft (reads form JSON from stdin)",
				Flags: formFlags(),
				Action: func(c *cli.Context) error {
					form, err := readForm(c)
					if err != nil {
						return outputError(err)
					}
					output, err := ops.DraftSave(c.Context, db, cfg, ops.DraftSaveInput{Form: form})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
			{
				Name:  "clear",
				Usage: "Discard the saved draft",
				Action: func(c *cli.Context) error {
					output, err := ops.DraftClear(c.Context, db)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
		},
	}
}

// trackCmd creates the track command.
func trackCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "track",
		Usage:     "Show the status of a submitted manifestation",
		ArgsUsage: "<protocol>",
		Action: func(c *cli.Context) error {
			output, err := ops.Track(c.Context, cfg, ops.TrackInput{Protocol: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// recordCmd creates the record command.
func recordCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "record",
		Usage: "Record audio from a file or stream into an attachment file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Required: true, Usage: "Source file or stream (e.g. a named pipe)"},
			&cli.StringFlag{Name: "mime", Usage: "Recording mime type (default: from the source extension, else audio/webm)"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file (default: relato-<timestamp>.<ext>)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Record(c.Context, cfg, ops.RecordInput{
				From:     c.String("from"),
				MimeType: c.String("mime"),
				Out:      c.String("out"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// serveMockCmd creates the serve-mock command.
func serveMockCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve-mock",
		Usage: "Run an in-memory manifestation service for local development",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8787, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv := web.NewServer(cfg, slog.Default(), c.String("bind"), c.Int("port"))
			return web.Run(srv, slog.Default())
		},
	}
}

// Helper functions

// outputJSON marshals result to the app writer as JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI. Field errors are listed one per line, in form order.
func outputError(err error) error {
	var iErr *errors.IntakeError
	if !stderrors.As(err, &iErr) {
		return cli.Exit(err.Error(), 1)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", iErr.Code, iErr.Message)
	fields := errors.FieldErrors(err)
	for _, name := range manifestation.FieldOrder {
		if msg, ok := fields[name]; ok {
			fmt.Fprintf(&b, "\n  %s: %s", name, msg)
		}
	}
	return cli.Exit(b.String(), 1)
}

// readInput reads stdin when it is piped. A terminal yields no input.
func readInput(c *cli.Context) ([]byte, error) {
	r := c.App.Reader
	if f, ok := r.(*os.File); ok && !stdinHasData(f) {
		return nil, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return bytes.TrimSpace(data), nil
}

// stdinHasData returns true if f has piped data (not a terminal).
func stdinHasData(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}
