package cli

import (
	"bytes"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/me/gocoro/internal/server"
	"github.com/me/gocoro/pkg/coro"
)

// runCLI executes the root command and returns what it wrote to stdout.
// Log output is discarded.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(io.Discard)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// testEnv isolates HOME and returns a temp dir plus a journal path inside it.
func testEnv(t *testing.T) (dir, db string) {
	t.Helper()
	dir = t.TempDir()
	t.Setenv("HOME", dir)
	return dir, filepath.Join(dir, "journal.db")
}

const greeterWorkload = `
name: greeter
capacity: 2
tasks:
  - name: greeter
    steps:
      - log: hello
      - wait: 0.005
      - log: "bye from slot $(task.slot)"
  - name: helper
    autostart: false
    steps:
      - log: unused
`

var runIDPattern = regexp.MustCompile(`Run (run_[0-9a-f-]+) `)

func TestValidateCommand(t *testing.T) {
	dir, _ := testEnv(t)
	good := writeFile(t, dir, "good.yaml", greeterWorkload)
	out, err := runCLI(t, "validate", good)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	for _, want := range []string{`Workload "greeter" is valid`, "Tasks:     2 (4 steps)", "Autostart: 1 instances", "Capacity:  2"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got: %s", want, out)
		}
	}

	bad := writeFile(t, dir, "bad.yaml", "name: broken\ntasks: [{name: a, steps: [{spawn: ghost}]}]\n")
	out, err = runCLI(t, "validate", bad)
	if err == nil {
		t.Fatal("expected error for invalid workload")
	}
	if !strings.Contains(out, "tasks[0].steps[0].spawn") {
		t.Errorf("expected field detail in output, got: %s", out)
	}
}

func TestRunCommand_JournalHistoryEvents(t *testing.T) {
	dir, db := testEnv(t)
	path := writeFile(t, dir, "greeter.yaml", greeterWorkload)

	out, err := runCLI(t, "--db", db, "run", path, "--tick", "1ms")
	if err != nil {
		t.Fatalf("run: %v\noutput: %s", err, out)
	}
	for _, want := range []string{"greeter: hello\n", "greeter: bye from slot 0\n", "COMPLETED", "1 tasks started, 1 finished"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in run output, got: %s", want, out)
		}
	}
	m := runIDPattern.FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("no run ID in output: %s", out)
	}
	runID := m[1]

	out, err = runCLI(t, "--db", db, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, runID) || !strings.Contains(out, "COMPLETED") || !strings.Contains(out, "greeter") {
		t.Errorf("history output missing run: %s", out)
	}

	out, err = runCLI(t, "--db", db, "events", runID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	for _, want := range []string{"Run:      " + runID, "STARTED", "COMPLETED", "greeter"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in events output, got: %s", want, out)
		}
	}
}

func TestRunCommand_ScriptFailure(t *testing.T) {
	dir, db := testEnv(t)
	path := writeFile(t, dir, "bad.yaml", `
name: failing
tasks:
  - name: bad
    steps:
      - exec: "undefinedFunction()"
`)
	out, err := runCLI(t, "--db", db, "run", path, "--tick", "1ms")
	if err == nil {
		t.Fatalf("expected run failure, output: %s", out)
	}
	if !strings.Contains(out, "FAILED") || !strings.Contains(out, "task bad step 0") {
		t.Errorf("expected failure summary, got: %s", out)
	}

	out, err = runCLI(t, "--db", db, "history", "--state", "FAILED")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "failing") {
		t.Errorf("failed run missing from history: %s", out)
	}
}

func TestRunCommand_MaxTicksNoJournal(t *testing.T) {
	dir, db := testEnv(t)
	path := writeFile(t, dir, "spin.yaml", `
name: spin
tasks:
  - name: spinner
    steps:
      - while: "true"
`)
	out, err := runCLI(t, "--db", db, "run", path, "--tick", "1ms", "--max-ticks", "3", "--no-journal")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "CANCELLED after 3 ticks") || !strings.Contains(out, "stopped: max_ticks") {
		t.Errorf("unexpected output: %s", out)
	}
	if _, err := os.Stat(db); !os.IsNotExist(err) {
		t.Errorf("journal created despite --no-journal: %v", err)
	}
}

func TestRunCommand_BadCapacity(t *testing.T) {
	dir, db := testEnv(t)
	path := writeFile(t, dir, "w.yaml", greeterWorkload)
	_, err := runCLI(t, "--db", db, "run", path, "--capacity", "-1")
	if err == nil || !strings.Contains(err.Error(), "initialize scheduler") {
		t.Errorf("run --capacity -1 error = %v", err)
	}
}

func TestRunCommand_ConfigCapacityTooSmall(t *testing.T) {
	dir, db := testEnv(t)
	cfgPath := writeFile(t, dir, "gocoro.yaml", "capacity: 2\ntick_interval: 1ms\ndb: "+db+"\n")
	path := writeFile(t, dir, "fleet.yaml", `
name: fleet
tasks:
  - name: worker
    count: 3
    steps:
      - log: hi
`)
	out, err := runCLI(t, "--config", cfgPath, "run", path)
	if err == nil {
		t.Fatalf("expected failure starting 3 instances in 2 slots, output: %s", out)
	}
	if !strings.Contains(out, "scheduler full") {
		t.Errorf("expected scheduler full message, got: %s", out)
	}
	if _, err := os.Stat(db); err != nil {
		t.Errorf("journal from config not created: %v", err)
	}
}

func TestHistoryCommand_Empty(t *testing.T) {
	_, db := testEnv(t)
	out, err := runCLI(t, "--db", db, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "No runs found.") {
		t.Errorf("output = %q", out)
	}

	if _, err := runCLI(t, "--db", db, "history", "--state", "DONE"); err == nil {
		t.Error("expected error for unknown state")
	}
}

func TestEventsCommand_NotFound(t *testing.T) {
	_, db := testEnv(t)
	_, err := runCLI(t, "--db", db, "events", "run_missing")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("events error = %v", err)
	}
}

type staticSource coro.Snapshot

func (s staticSource) Snapshot() coro.Snapshot { return coro.Snapshot(s) }

func TestStatusCommand(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	src := staticSource{
		Active: true, Capacity: 4, ActiveCount: 1, Passes: 42,
		Tasks: []coro.TaskStatus{{Slot: 1, Name: "blink", Cursor: 1, FinalCursor: 3, Steps: 40, State: coro.TaskStateActive}},
	}
	ts := httptest.NewServer(server.New(logger, server.WithSnapshotSource(src, "run_live")).Handler())
	defer ts.Close()

	out, err := runCLI(t, "--server", ts.URL, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"Run:      run_live", "Slots:    1/4 in use", "Passes:   42", "blink", "1/3"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got: %s", want, out)
		}
	}
}

func TestStatusCommand_Unavailable(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := httptest.NewServer(server.New(logger).Handler())
	defer ts.Close()

	if _, err := runCLI(t, "--server", ts.URL, "status"); err == nil {
		t.Error("expected error when the server has no scheduler")
	}
}

func TestTerminateLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	prev := logger
	logger = slog.New(slog.NewTextHandler(&buf, nil))
	defer func() { logger = prev }()

	terminate(coro.New())
	if got := buf.String(); !strings.Contains(got, "terminate") || !strings.Contains(got, "not initialized") {
		t.Errorf("log = %q, want terminate warning with the scheduler error", got)
	}
}
