package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/participadf/ouvidoria/internal/config"
	"github.com/participadf/ouvidoria/internal/db"
	"github.com/participadf/ouvidoria/internal/ops"
	"github.com/participadf/ouvidoria/internal/web"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	cleanup := func() {
		database.Close()
	}
	return database, cleanup
}

// testConfig returns a config pointing at a running mock service.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	srv := httptest.NewServer(web.NewServer(nil, nil, "127.0.0.1", 0).Handler)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.APIBaseURL = srv.URL + "/api"
	cfg.DraftDebounceMillis = 5
	return cfg
}

// runCLI runs the app with stdin as input and returns stdout.
func runCLI(t *testing.T, database *sql.DB, cfg *config.Config, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newCLIApp(database, cfg, nil)
	app.Reader = strings.NewReader(stdin)
	app.Writer = &out
	err := app.Run(append([]string{"ouvidoria"}, args...))
	return out.String(), err
}

const validFormJSON = `{"kind":"reclamacao","subject":"Buraco na via","descriptionText":"Buraco grande na quadra 102."}`

func TestCommandArg(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"ouvidoria"}, ""},
		{[]string{"ouvidoria", "submit"}, "submit"},
		{[]string{"ouvidoria", "--home", "/tmp/x", "draft", "show"}, "draft"},
		{[]string{"ouvidoria", "--home=/tmp/x", "--verbose", "track"}, "track"},
		{[]string{"ouvidoria", "--help"}, "--help"},
	}
	for _, tt := range tests {
		if got := commandArg(tt.args); got != tt.want {
			t.Errorf("commandArg(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}

	if !isCLIMode([]string{"ouvidoria", "--home=/x", "serve-mock"}) {
		t.Error("serve-mock should be CLI mode")
	}
	if isCLIMode([]string{"ouvidoria", "--verbose"}) {
		t.Error("flags alone should start the MCP server")
	}
	if !isHelpOrVersion([]string{"ouvidoria", "-v"}) {
		t.Error("-v should be a version request")
	}
}

func TestHomeDir(t *testing.T) {
	t.Setenv(EnvHome, "/env/home")

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"ouvidoria", "--home", "/flag/home", "draft"}, "/flag/home"},
		{[]string{"ouvidoria", "--home=/flag/eq", "draft"}, "/flag/eq"},
		{[]string{"ouvidoria", "draft", "show"}, "/env/home"},
		// --home after the command belongs to nobody
		{[]string{"ouvidoria", "submit", "--home", "/late"}, "/env/home"},
	}
	for _, tt := range tests {
		got, err := homeDir(tt.args)
		if err != nil {
			t.Fatalf("homeDir(%v): %v", tt.args, err)
		}
		if got != tt.want {
			t.Errorf("homeDir(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}

	t.Setenv(EnvHome, "")
	got, err := homeDir([]string{"ouvidoria"})
	if err != nil {
		t.Fatalf("homeDir: %v", err)
	}
	if filepath.Base(got) != ".ouvidoria" {
		t.Errorf("default home = %q, want ~/.ouvidoria", got)
	}
}

func TestCLIValidate(t *testing.T) {
	out, err := runCLI(t, nil, nil, `{"subject":"Buraco"}`, "validate", "--description", "curto")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	var result ops.ValidateOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("failed to parse output: %v\n%s", err, out)
	}
	if result.Valid || result.Step != 2 || result.Focus != "descriptionText" {
		t.Errorf("result = %+v", result)
	}
}

func TestCLIValidate_BadJSON(t *testing.T) {
	_, err := runCLI(t, nil, nil, `{"subject":`, "validate")
	if err == nil || !strings.Contains(err.Error(), "[INVALID_REQUEST]") {
		t.Fatalf("err = %v, want INVALID_REQUEST", err)
	}
}

func TestCLIReview(t *testing.T) {
	out, err := runCLI(t, nil, nil, validFormJSON, "review", "--anonymous")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	for _, want := range []string{"## Revisão", "**Tipo:** Reclamação", "**Anônimo:** Sim"} {
		if !strings.Contains(out, want) {
			t.Errorf("review missing %q:\n%s", want, out)
		}
	}

	out, err = runCLI(t, nil, nil, validFormJSON, "review", "--format", "html")
	if err != nil {
		t.Fatalf("review html: %v", err)
	}
	if !strings.Contains(out, "<h2>Revisão</h2>") {
		t.Errorf("html review = %s", out)
	}

	if _, err := runCLI(t, nil, nil, validFormJSON, "review", "--format", "pdf"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestCLISubmitAndTrack(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()
	cfg := testConfig(t)

	if _, err := runCLI(t, database, cfg, validFormJSON, "draft", "save"); err != nil {
		t.Fatalf("draft save: %v", err)
	}

	out, err := runCLI(t, database, cfg, validFormJSON, "submit")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	var submitted ops.SubmitOutput
	if err := json.Unmarshal([]byte(out), &submitted); err != nil {
		t.Fatalf("failed to parse output: %v\n%s", err, out)
	}
	if !strings.HasPrefix(submitted.Protocol, "DF-") {
		t.Fatalf("protocol = %q", submitted.Protocol)
	}

	out, err = runCLI(t, database, cfg, "", "draft", "show")
	if err != nil {
		t.Fatalf("draft show: %v", err)
	}
	if !strings.Contains(out, `"found": false`) {
		t.Errorf("draft should be cleared after submit: %s", out)
	}

	out, err = runCLI(t, database, cfg, "", "track", submitted.Protocol)
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	var tracked ops.TrackOutput
	if err := json.Unmarshal([]byte(out), &tracked); err != nil {
		t.Fatalf("failed to parse output: %v\n%s", err, out)
	}
	if tracked.Status != "Recebido" || tracked.Subject != "Buraco na via" {
		t.Errorf("tracked = %+v", tracked)
	}

	_, err = runCLI(t, database, cfg, "", "track", "DF-2000-000000")
	if err == nil || !strings.Contains(err.Error(), "[NOT_FOUND]") {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}

func TestCLISubmit_ValidationErrorsListed(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := runCLI(t, database, testConfig(t), `{"subject":"X"}`, "submit")
	if err == nil {
		t.Fatal("expected validation error")
	}
	exitErr, ok := err.(cli.ExitCoder)
	if !ok || exitErr.ExitCode() != 1 {
		t.Fatalf("err = %#v, want exit code 1", err)
	}
	msg := err.Error()
	for _, want := range []string{"[VALIDATION]", "subject: Informe um assunto", "descriptionText: Escreva o relato"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error missing %q:\n%s", want, msg)
		}
	}
	if strings.Index(msg, "subject:") > strings.Index(msg, "descriptionText:") {
		t.Errorf("field errors should follow form order:\n%s", msg)
	}
}

func TestCLIDraft(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()
	cfg := testConfig(t)

	out, err := runCLI(t, database, cfg, "", "draft", "save", "--subject", "Poda", "--anonymous")
	if err != nil {
		t.Fatalf("draft save: %v", err)
	}
	if !strings.Contains(out, `"Rascunho salvo."`) {
		t.Errorf("save output = %s", out)
	}

	out, err = runCLI(t, database, cfg, "", "draft", "show")
	if err != nil {
		t.Fatalf("draft show: %v", err)
	}
	var shown ops.DraftShowOutput
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("failed to parse output: %v\n%s", err, out)
	}
	if !shown.Found || shown.Draft.Subject != "Poda" || !shown.Draft.Anonymous {
		t.Errorf("shown = %+v", shown)
	}

	if _, err := runCLI(t, database, cfg, "", "draft", "clear"); err != nil {
		t.Fatalf("draft clear: %v", err)
	}
	out, _ = runCLI(t, database, cfg, "", "draft", "show")
	if !strings.Contains(out, `"found": false`) {
		t.Errorf("draft not cleared: %s", out)
	}
}

func TestCLIRecord(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "mic.wav")
	if err := os.WriteFile(src, []byte("RIFF....WAVE"), 0o600); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "relato.wav")

	out, err := runCLI(t, nil, nil, "", "record", "--from", src, "--out", dst)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	var rec ops.RecordOutput
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("failed to parse output: %v\n%s", err, out)
	}
	if rec.Bytes != 12 || rec.Path != dst {
		t.Errorf("rec = %+v", rec)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Errorf("output not written: %v", err)
	}
}

func TestCLIRecord_RequiresFrom(t *testing.T) {
	if _, err := runCLI(t, nil, nil, "", "record"); err == nil {
		t.Fatal("expected error without --from")
	}
}

// runInteractive runs the new command with one answer per line and returns stdout and the prompts.
func runInteractive(t *testing.T, database *sql.DB, cfg *config.Config, answers ...string) (string, string, error) {
	t.Helper()
	var out, prompts bytes.Buffer
	app := newCLIApp(database, cfg, nil)
	app.Reader = strings.NewReader(strings.Join(answers, "\n") + "\n")
	app.Writer = &out
	app.ErrWriter = &prompts
	err := app.Run([]string{"ouvidoria", "new"})
	return out.String(), prompts.String(), err
}

func TestNewCommand_WalksStepsAndSubmits(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()
	cfg := testConfig(t)

	out, prompts, err := runInteractive(t, database, cfg,
		"x", "ab", // rejected at step 1
		"denuncia", "Obra sem placa",
		"Obra irregular na quadra 10 sem licença.",
		"n", "s",
	)
	if err != nil {
		t.Fatalf("new failed: %v\n%s", err, prompts)
	}
	if !strings.Contains(prompts, "subject: ") {
		t.Errorf("step 1 errors not shown:\n%s", prompts)
	}
	if !strings.Contains(prompts, "3. Revisão e envio") {
		t.Errorf("review step not reached:\n%s", prompts)
	}

	var sub ops.SubmitOutput
	if err := json.Unmarshal([]byte(out), &sub); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if sub.Protocol == "" {
		t.Fatal("expected a protocol")
	}

	show, err := ops.DraftShow(t.Context(), database)
	if err != nil {
		t.Fatal(err)
	}
	if show.Found {
		t.Errorf("draft should be gone after submission, got %+v", show.Draft)
	}
}

func TestNewCommand_InputEndKeepsDraft(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()
	cfg := testConfig(t)

	_, _, err := runInteractive(t, database, cfg, "reclamacao", "Buraco na via")
	if err == nil || !strings.Contains(err.Error(), "input ended") {
		t.Fatalf("expected input-ended error, got %v", err)
	}

	show, err := ops.DraftShow(t.Context(), database)
	if err != nil {
		t.Fatal(err)
	}
	if !show.Found || show.Draft.Subject != "Buraco na via" {
		t.Fatalf("draft not kept: %+v", show)
	}

	// The next session resumes from it
	_, prompts, _ := runInteractive(t, database, cfg)
	if !strings.Contains(prompts, "Rascunho restaurado.") || !strings.Contains(prompts, "[Buraco na via]") {
		t.Errorf("draft not restored:\n%s", prompts)
	}
}
