// Package expr evaluates the JavaScript snippets embedded in workload files
// using goja. Programs are compiled once at load time and run in a fresh
// runtime per evaluation.
package expr

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dop251/goja"
)

// TaskInfo is the read-only view of the running task exposed as `task`.
type TaskInfo struct {
	Name    string
	Cursor  uint
	Ticks   uint64  // scheduler passes seen so far
	Elapsed float64 // seconds since the scheduler's previous pass
	Slot    int
}

// Env is the evaluation environment for one step.
// Vars is shared with the script: assignments to vars.x are visible to Go.
type Env struct {
	Task TaskInfo
	Vars map[string]any
}

// Evaluator compiles scripts against an optional prelude library.
type Evaluator struct {
	lib []*goja.Program
}

// NewEvaluator creates an evaluator. Each library entry is compiled
// immediately and runs before every program.
func NewEvaluator(lib ...string) (*Evaluator, error) {
	e := &Evaluator{}
	for i, src := range lib {
		p, err := goja.Compile(fmt.Sprintf("lib[%d]", i), src, false)
		if err != nil {
			return nil, fmt.Errorf("lib[%d]: %w", i, err)
		}
		e.lib = append(e.lib, p)
	}
	return e, nil
}

// Program is a compiled script.
type Program struct {
	src  string
	prog *goja.Program
	eval *Evaluator
}

// Source returns the script text.
func (p *Program) Source() string { return p.src }

// Compile parses src. Syntax errors are reported here rather than at run time.
func (e *Evaluator) Compile(src string) (*Program, error) {
	code := strings.TrimSpace(src)
	if code == "" {
		return nil, fmt.Errorf("empty expression")
	}
	// Bare object literals parse as blocks unless parenthesized.
	if strings.HasPrefix(code, "{") {
		code = "(" + code + ")"
	}
	prog, err := goja.Compile("", code, false)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", src, err)
	}
	return &Program{src: src, prog: prog, eval: e}, nil
}

// setupVM creates a runtime with the library loaded and env bound.
func (e *Evaluator) setupVM(env *Env) (*goja.Runtime, error) {
	vm := goja.New()

	for i, lib := range e.lib {
		if _, err := vm.RunProgram(lib); err != nil {
			return nil, fmt.Errorf("lib[%d]: %w", i, err)
		}
	}

	if env == nil {
		env = &Env{}
	}
	if env.Vars == nil {
		env.Vars = map[string]any{}
	}
	if err := vm.Set("vars", env.Vars); err != nil {
		return nil, fmt.Errorf("set vars: %w", err)
	}
	taskMap := map[string]any{
		"name":    env.Task.Name,
		"cursor":  env.Task.Cursor,
		"ticks":   env.Task.Ticks,
		"elapsed": env.Task.Elapsed,
		"slot":    env.Task.Slot,
	}
	if err := vm.Set("task", taskMap); err != nil {
		return nil, fmt.Errorf("set task: %w", err)
	}
	return vm, nil
}

func (p *Program) run(env *Env) (goja.Value, error) {
	vm, err := p.eval.setupVM(env)
	if err != nil {
		return nil, err
	}
	val, err := vm.RunProgram(p.prog)
	if err != nil {
		return nil, fmt.Errorf("JavaScript error in %q: %w", p.src, err)
	}
	return val, nil
}

// Exec runs the program and returns its completion value.
func (p *Program) Exec(env *Env) (any, error) {
	val, err := p.run(env)
	if err != nil {
		return nil, err
	}
	if val == nil || goja.IsUndefined(val) {
		return nil, nil
	}
	return val.Export(), nil
}

// Bool runs the program and requires a boolean result.
// undefined and null count as false.
func (p *Program) Bool(env *Env) (bool, error) {
	val, err := p.run(env)
	if err != nil {
		return false, err
	}
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return false, nil
	}
	b, ok := val.Export().(bool)
	if !ok {
		return false, fmt.Errorf("expression %q did not return boolean: %T", p.src, val.Export())
	}
	return b, nil
}

// Template is a string with embedded $(expr) placeholders.
type Template struct {
	parts []templatePart
}

type templatePart struct {
	text string
	prog *Program // nil for literal text
}

// CompileTemplate compiles every $(expr) placeholder in s. A backslash
// before $( keeps it literal.
func (e *Evaluator) CompileTemplate(s string) (*Template, error) {
	t := &Template{}
	last := 0
	for _, m := range findExpressions(s) {
		if m.start > last {
			t.parts = append(t.parts, templatePart{text: unescape(s[last:m.start])})
		}
		prog, err := e.Compile(m.expr)
		if err != nil {
			return nil, err
		}
		t.parts = append(t.parts, templatePart{prog: prog})
		last = m.end
	}
	if last < len(s) {
		t.parts = append(t.parts, templatePart{text: unescape(s[last:])})
	}
	return t, nil
}

// Render evaluates the placeholders and joins the result.
func (t *Template) Render(env *Env) (string, error) {
	var b strings.Builder
	for _, part := range t.parts {
		if part.prog == nil {
			b.WriteString(part.text)
			continue
		}
		v, err := part.prog.Exec(env)
		if err != nil {
			return "", err
		}
		b.WriteString(toString(v))
	}
	return b.String(), nil
}

type exprMatch struct {
	start int    // index of "$("
	end   int    // index after the closing ")"
	expr  string // content between the parentheses
}

// findExpressions finds all unescaped $(expr) patterns, honoring nested parentheses.
func findExpressions(s string) []exprMatch {
	var matches []exprMatch
	i := 0
	for i < len(s)-1 {
		if s[i] == '$' && s[i+1] == '(' && (i == 0 || s[i-1] != '\\') {
			depth := 1
			j := i + 2
			for j < len(s) && depth > 0 {
				switch s[j] {
				case '(':
					depth++
				case ')':
					depth--
				}
				j++
			}
			if depth == 0 {
				matches = append(matches, exprMatch{start: i, end: j, expr: s[i+2 : j-1]})
				i = j
				continue
			}
		}
		i++
	}
	return matches
}

func unescape(s string) string {
	return strings.ReplaceAll(s, "\\$(", "$(")
}

// toString renders an exported JavaScript value for log output.
func toString(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", val)
	}
}
