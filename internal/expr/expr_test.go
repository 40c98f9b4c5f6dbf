package expr

import (
	"strings"
	"testing"
)

func newEval(t *testing.T, lib ...string) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(lib...)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	return e
}

func TestProgram_Exec(t *testing.T) {
	e := newEval(t)
	env := &Env{
		Task: TaskInfo{Name: "blink", Cursor: 2, Ticks: 10, Elapsed: 0.5, Slot: 1},
		Vars: map[string]any{"n": int64(3)},
	}

	tests := []struct {
		name string
		src  string
		want any
	}{
		{"arithmetic", "vars.n * 2", int64(6)},
		{"task name", "task.name", "blink"},
		{"task slot", "task.slot + 1", int64(2)},
		{"elapsed", "task.elapsed", 0.5},
		{"statement list", "var x = 1; x + vars.n", int64(4)},
		{"object literal", "{a: 1}", map[string]any{"a": int64(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := e.Compile(tt.src)
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			got, err := p.Exec(env)
			if err != nil {
				t.Fatalf("Exec: %v", err)
			}
			if m, ok := tt.want.(map[string]any); ok {
				gm, ok := got.(map[string]any)
				if !ok || gm["a"] != m["a"] {
					t.Errorf("Exec() = %#v, want %#v", got, tt.want)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Exec() = %#v (%T), want %#v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestProgram_ExecMutatesVars(t *testing.T) {
	e := newEval(t)
	p, err := e.Compile("vars.count = (vars.count || 0) + 1")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	env := &Env{Vars: map[string]any{}}
	for i := 0; i < 3; i++ {
		if _, err := p.Exec(env); err != nil {
			t.Fatalf("Exec: %v", err)
		}
	}
	if got := env.Vars["count"]; got != int64(3) {
		t.Errorf("vars.count = %#v, want 3", got)
	}
}

func TestProgram_Bool(t *testing.T) {
	e := newEval(t)
	env := &Env{Vars: map[string]any{"n": int64(2)}}

	tests := []struct {
		src     string
		want    bool
		wantErr bool
	}{
		{"vars.n < 3", true, false},
		{"vars.n > 3", false, false},
		{"vars.missing", false, false},
		{"null", false, false},
		{"vars.n", false, true},
		{"nosuchfn()", false, true},
	}
	for _, tt := range tests {
		p, err := e.Compile(tt.src)
		if err != nil {
			t.Fatalf("Compile(%q): %v", tt.src, err)
		}
		got, err := p.Bool(env)
		if (err != nil) != tt.wantErr {
			t.Errorf("Bool(%q) error = %v, wantErr %v", tt.src, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Bool(%q) = %v, want %v", tt.src, got, tt.want)
		}
	}
}

func TestCompile_Errors(t *testing.T) {
	e := newEval(t)
	for _, src := range []string{"", "   ", "vars.n <", "function ("} {
		if _, err := e.Compile(src); err == nil {
			t.Errorf("Compile(%q) expected error", src)
		}
	}
}

func TestEvaluator_Library(t *testing.T) {
	e := newEval(t, "function double(x) { return x * 2; }")
	p, err := e.Compile("double(vars.n)")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	got, err := p.Exec(&Env{Vars: map[string]any{"n": int64(21)}})
	if err != nil || got != int64(42) {
		t.Errorf("Exec() = %v, %v, want 42", got, err)
	}

	if _, err := NewEvaluator("function ("); err == nil {
		t.Error("expected error for broken library")
	}
}

func TestTemplate_Render(t *testing.T) {
	e := newEval(t)
	env := &Env{
		Task: TaskInfo{Name: "pump", Cursor: 1},
		Vars: map[string]any{"n": int64(7), "list": []any{int64(1), int64(2)}},
	}

	tests := []struct {
		tmpl string
		want string
	}{
		{"plain text", "plain text"},
		{"$(task.name) at $(task.cursor)", "pump at 1"},
		{"n=$(vars.n * (1 + 1))", "n=14"},
		{"list=$(vars.list)", "list=[1,2]"},
		{`cost \$(5)`, "cost $(5)"},
		{"ratio $(vars.n / 2)", "ratio 3.5"},
	}
	for _, tt := range tests {
		tm, err := e.CompileTemplate(tt.tmpl)
		if err != nil {
			t.Fatalf("CompileTemplate(%q): %v", tt.tmpl, err)
		}
		got, err := tm.Render(env)
		if err != nil {
			t.Fatalf("Render(%q): %v", tt.tmpl, err)
		}
		if got != tt.want {
			t.Errorf("Render(%q) = %q, want %q", tt.tmpl, got, tt.want)
		}
	}
}

func TestCompileTemplate_Error(t *testing.T) {
	e := newEval(t)
	_, err := e.CompileTemplate("bad $(vars.n +)")
	if err == nil || !strings.Contains(err.Error(), "compile") {
		t.Errorf("CompileTemplate error = %v", err)
	}
}
