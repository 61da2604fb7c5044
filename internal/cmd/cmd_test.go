package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hejijunhao/droidlog/internal/prefs"
	"github.com/hejijunhao/droidlog/internal/testdata"
)

// executeCommand runs a fresh command tree with args and returns captured
// stdout.
func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// isolate points config and prefs at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("DROIDLOG_PREFS", filepath.Join(dir, "prefs.toml"))
	t.Setenv("DROIDLOG_LOG_LEVEL", "error")
	return dir
}

func writeCapture(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "capture.log")
	if err := os.WriteFile(path, []byte(testdata.Threadtime()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRootCommand(t *testing.T) {
	root := NewRootCmd()
	if root.Use != "droidlog" {
		t.Errorf("Use = %q", root.Use)
	}
	want := map[string]bool{"stream": false, "open": false, "match": false, "prefs": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestMatchArgs(t *testing.T) {
	isolate(t)
	out, err := executeCommand(t, "", "match", "hello and world", "hello world", "bye world", "HELLO big WORLD")
	if err != nil {
		t.Fatal(err)
	}
	if want := "hello world\nHELLO big WORLD\n"; out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestMatchStdinInvert(t *testing.T) {
	isolate(t)
	out, err := executeCommand(t, "alpha\nbeta\ngamma\n", "match", "-v", "alpha || gamma")
	if err != nil {
		t.Fatal(err)
	}
	if out != "beta\n" {
		t.Errorf("output = %q, want beta", out)
	}
}

func TestOpenFiltersCapture(t *testing.T) {
	dir := isolate(t)
	path := writeCapture(t, dir)

	out, err := executeCommand(t, "", "open", path, "--format", "raw", "--tag", "libc")
	if err != nil {
		t.Fatal(err)
	}
	lines := testdata.ThreadtimeLines()
	if want := lines[len(lines)-1] + "\n"; out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestOpenSaveToFileIsLossless(t *testing.T) {
	dir := isolate(t)
	in := strings.Join([]string{
		"01-15 10:00:00.123  1234  5678 I ActivityManager: Start proc",
		"01-15 10:00:00.300  4321  4350 E AndroidRuntime: FATAL EXCEPTION: main",
		"\tat com.example.Main.run(Main.java:12)",
		"01-15 10:00:01.020   555   560 F libc    : Fatal signal 6 (SIGABRT)",
	}, "\n") + "\n"
	inPath := filepath.Join(dir, "in.log")
	if err := os.WriteFile(inPath, []byte(in), 0o644); err != nil {
		t.Fatal(err)
	}
	outPath := filepath.Join(dir, "out.log")

	if _, err := executeCommand(t, "", "open", inPath, "-o", outPath, "--no-prefs"); err != nil {
		t.Fatal(err)
	}
	saved, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(saved) != in {
		t.Fatalf("saved file differs from input:\n%s\n---\n%s", saved, in)
	}

	// Reloading the saved file yields real records, not Unknown ones.
	out, err := executeCommand(t, "", "open", outPath, "--format", "json", "--no-prefs")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, `"tag":"Unknown"`) || strings.Count(out, "\n") != 3 {
		t.Errorf("reloaded records:\n%s", out)
	}
}

func TestOpenExplicitFormatWinsForFiles(t *testing.T) {
	dir := isolate(t)
	outPath := filepath.Join(dir, "out.txt")
	if _, err := executeCommand(t, "", "open", writeCapture(t, dir), "-o", outPath, "--format", "text", "--tag", "libc", "--no-prefs"); err != nil {
		t.Fatal(err)
	}
	saved, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(saved), " Fatal libc: ") {
		t.Errorf("text output = %q", saved)
	}
}

func TestOpenStdin(t *testing.T) {
	isolate(t)
	out, err := executeCommand(t, testdata.Threadtime(), "open", "-", "--format", "json", "--hide", "v,d,i,w")
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(out, "\n"); n != 2 {
		t.Errorf("got %d JSON records, want 2:\n%s", n, out)
	}
	if !strings.Contains(out, `"tag":"AndroidRuntime"`) || !strings.Contains(out, `"tag":"libc"`) {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestOpenRejectsUnknownLevel(t *testing.T) {
	dir := isolate(t)
	if _, err := executeCommand(t, "", "open", writeCapture(t, dir), "--hide", "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestOpenSavesAndAppliesPrefs(t *testing.T) {
	dir := isolate(t)
	path := writeCapture(t, dir)

	if _, err := executeCommand(t, "", "open", path, "--tag", "chatty", "--save-prefs"); err != nil {
		t.Fatal(err)
	}
	p := prefs.Load(filepath.Join(dir, "prefs.toml"))
	if p.Tag != "chatty" || len(p.History.Tag) != 1 {
		t.Fatalf("saved prefs = %+v", p)
	}

	// The saved tag filter applies to the next run.
	out, err := executeCommand(t, "", "open", path, "--format", "raw")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "chatty") || strings.Count(out, "\n") != 1 {
		t.Errorf("output = %q, want only the chatty line", out)
	}

	// --no-prefs ignores it.
	out, err = executeCommand(t, "", "open", path, "--format", "raw", "--no-prefs")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(out, "\n") < testdata.ThreadtimeRecords {
		t.Errorf("--no-prefs output has %d lines", strings.Count(out, "\n"))
	}
}

func TestStreamStdinSave(t *testing.T) {
	dir := isolate(t)
	saveDir := filepath.Join(dir, "captures")
	if err := os.Mkdir(saveDir, 0o755); err != nil {
		t.Fatal(err)
	}

	out, err := executeCommand(t, testdata.Threadtime(),
		"stream", "-p", "stdin", "--format", "raw", "--message", "fatal", "--save", saveDir)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "FATAL EXCEPTION") || !strings.Contains(out, "Fatal signal 6") {
		t.Errorf("stream output = %q", out)
	}

	entries, err := os.ReadDir(saveDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "logcat_") {
		t.Fatalf("saved files = %v", entries)
	}
	saved, err := os.ReadFile(filepath.Join(saveDir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	if string(saved) != out {
		t.Errorf("saved view differs from streamed output:\n%s\n---\n%s", saved, out)
	}
}

func TestStreamUnknownProvider(t *testing.T) {
	isolate(t)
	if _, err := executeCommand(t, "", "stream", "-p", "carrier-pigeon"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestPrefsResetAndShow(t *testing.T) {
	dir := isolate(t)
	p := prefs.Default()
	p.Message = "anr"
	if err := prefs.Save(filepath.Join(dir, "prefs.toml"), p); err != nil {
		t.Fatal(err)
	}

	out, err := executeCommand(t, "", "prefs", "show")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "anr") {
		t.Errorf("prefs show = %q", out)
	}

	if _, err := executeCommand(t, "", "prefs", "reset"); err != nil {
		t.Fatal(err)
	}
	if got := prefs.Load(filepath.Join(dir, "prefs.toml")); got.Message != "" {
		t.Errorf("Message after reset = %q", got.Message)
	}

	out, err = executeCommand(t, "", "prefs", "path")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != filepath.Join(dir, "prefs.toml") {
		t.Errorf("prefs path = %q", out)
	}
}

func TestPrefsClearHistory(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "prefs.toml")
	p := prefs.Default()
	p.Tag = "chatty"
	p.History.Tag = []string{"chatty", "libc"}
	p.History.PID = []string{"4321"}
	if err := prefs.Save(path, p); err != nil {
		t.Fatal(err)
	}

	if _, err := executeCommand(t, "", "prefs", "clear-history"); err != nil {
		t.Fatal(err)
	}
	got := prefs.Load(path)
	if got.Tag != "chatty" {
		t.Errorf("Tag = %q, want the filter kept", got.Tag)
	}
	if len(got.History.Tag) != 0 || len(got.History.PID) != 0 {
		t.Errorf("History = %+v, want empty", got.History)
	}
}

func TestOpenWebhookLevel(t *testing.T) {
	dir := isolate(t)

	var mu sync.Mutex
	var tags []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var env struct {
			Records []struct {
				Tag string `json:"tag"`
			} `json:"records"`
		}
		json.Unmarshal(body, &env)
		mu.Lock()
		for _, rec := range env.Records {
			tags = append(tags, rec.Tag)
		}
		mu.Unlock()
	}))
	defer srv.Close()

	path := writeCapture(t, dir)
	if _, err := executeCommand(t, "", "open", path, "--no-prefs", "--webhook", srv.URL, "--webhook-level", "error"); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(tags, ",") != "AndroidRuntime,libc" {
		t.Errorf("posted tags = %v, want the error and fatal records", tags)
	}

	if _, err := executeCommand(t, "", "open", path, "--webhook", srv.URL, "--webhook-level", "loud"); err == nil {
		t.Error("expected error for unknown webhook level")
	}
}
