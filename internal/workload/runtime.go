package workload

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/me/gocoro/internal/expr"
	"github.com/me/gocoro/internal/logging"
	"github.com/me/gocoro/pkg/coro"
)

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger used for step output and script errors.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) { r.logger = logging.Component(l, "workload") }
}

// WithOutput echoes rendered log steps to w as "task: message" lines.
func WithOutput(w io.Writer) Option {
	return func(r *Runtime) { r.out = w }
}

// Runtime turns a validated workload into tasks on one scheduler.
// It is driven from the scheduler's goroutine and is not safe for concurrent use.
type Runtime struct {
	workload *Workload
	sched    *coro.Scheduler
	defs     map[string]*taskDef
	logger   *slog.Logger
	out      io.Writer

	spawned map[string]int
	started int
	errs    []error
}

type taskDef struct {
	spec  *TaskSpec
	steps []stepDef
}

type stepDef struct {
	kind   string
	tmpl   *expr.Template
	prog   *expr.Program
	wait   float64
	target string
}

// Instance is one activation record created from a TaskSpec.
type Instance struct {
	Name string
	Vars map[string]any

	rt     *Runtime
	def    *taskDef
	task   *coro.Task
	handle coro.Handle
}

// Task returns the scheduler record of the instance.
func (in *Instance) Task() *coro.Task { return in.task }

// Handle returns the handle of the instance's activation.
func (in *Instance) Handle() coro.Handle { return in.handle }

// Build validates w and compiles its expressions for use on sched.
func Build(w *Workload, sched *coro.Scheduler, opts ...Option) (*Runtime, error) {
	if apiErr := Validate(w); apiErr != nil {
		return nil, apiErr
	}
	ev, err := expr.NewEvaluator(w.Lib...)
	if err != nil {
		return nil, fmt.Errorf("workload %s: %w", w.Name, err)
	}

	rt := &Runtime{
		workload: w,
		sched:    sched,
		defs:     make(map[string]*taskDef, len(w.Tasks)),
		logger:   logging.Component(nil, "workload"),
		spawned:  make(map[string]int),
	}
	for _, o := range opts {
		o(rt)
	}

	for i := range w.Tasks {
		spec := &w.Tasks[i]
		def := &taskDef{spec: spec, steps: make([]stepDef, len(spec.Steps))}
		for j, s := range spec.Steps {
			sd := stepDef{kind: s.Kind(), target: s.Spawn}
			switch sd.kind {
			case "log":
				sd.tmpl, err = ev.CompileTemplate(s.Log)
			case "wait":
				sd.wait = *s.Wait
			case "while":
				sd.prog, err = ev.Compile(s.While)
			case "exec":
				sd.prog, err = ev.Compile(s.Exec)
			}
			if err != nil {
				return nil, fmt.Errorf("task %s step %d: %w", spec.Name, j, err)
			}
			def.steps[j] = sd
		}
		rt.defs[spec.Name] = def
	}
	return rt, nil
}

// Workload returns the definition the runtime was built from.
func (rt *Runtime) Workload() *Workload { return rt.workload }

// Started returns how many instances have been started.
func (rt *Runtime) Started() int { return rt.started }

// Errors returns the script errors that stopped tasks so far.
func (rt *Runtime) Errors() []error { return rt.errs }

// StartAutostart starts every autostart task, Count instances each.
func (rt *Runtime) StartAutostart() ([]*Instance, error) {
	var out []*Instance
	for i := range rt.workload.Tasks {
		spec := &rt.workload.Tasks[i]
		if !spec.StartsAutomatically() {
			continue
		}
		n := spec.Instances()
		for k := 1; k <= n; k++ {
			name := spec.Name
			if n > 1 {
				name = fmt.Sprintf("%s#%d", spec.Name, k)
			}
			in, err := rt.start(spec.Name, name)
			if err != nil {
				return out, err
			}
			out = append(out, in)
		}
	}
	return out, nil
}

// Spawn starts a new instance of the named task. It may be called from
// inside a step function.
func (rt *Runtime) Spawn(task string) (*Instance, error) {
	if _, ok := rt.defs[task]; !ok {
		return nil, fmt.Errorf("spawn: unknown task %q", task)
	}
	rt.spawned[task]++
	in, err := rt.start(task, fmt.Sprintf("%s@%d", task, rt.spawned[task]))
	if err != nil {
		rt.spawned[task]--
		return nil, err
	}
	return in, nil
}

func (rt *Runtime) start(task, name string) (*Instance, error) {
	def := rt.defs[task]
	in := &Instance{
		Name: name,
		Vars: copyVars(def.spec.Vars),
		rt:   rt,
		def:  def,
	}

	handlers := make([]coro.Handler, len(def.steps))
	for i := range def.steps {
		idx := i
		handlers[i] = func(data any) coro.Cursor {
			return data.(*Instance).step(idx)
		}
	}
	in.task = coro.NewSequenceTask(in, def.spec.FreeOnFinish, handlers, coro.WithName(name))

	h, err := rt.sched.Start(in.task)
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}
	in.handle = h
	rt.started++
	return in, nil
}

func (in *Instance) env() *expr.Env {
	s := in.rt.sched
	slot, _ := s.CurrentID()
	return &expr.Env{
		Task: expr.TaskInfo{
			Name:    in.Name,
			Cursor:  uint(in.task.Cursor()),
			Ticks:   s.Passes(),
			Elapsed: s.TickDelta().Seconds(),
			Slot:    slot,
		},
		Vars: in.Vars,
	}
}

func (in *Instance) step(idx int) coro.Cursor {
	s := in.rt.sched
	sd := in.def.steps[idx]

	switch sd.kind {
	case "log":
		msg, err := sd.tmpl.Render(in.env())
		if err != nil {
			return in.fail(idx, err)
		}
		in.rt.emit(in.Name, msg)
		return s.ReturnNow()
	case "wait":
		return s.WaitForSeconds(sd.wait)
	case "while":
		hold, err := sd.prog.Bool(in.env())
		if err != nil {
			return in.fail(idx, err)
		}
		return s.ReturnWhile(hold)
	case "exec":
		if _, err := sd.prog.Exec(in.env()); err != nil {
			return in.fail(idx, err)
		}
		return s.ReturnNow()
	case "spawn":
		_, err := in.rt.Spawn(sd.target)
		if errors.Is(err, coro.ErrSchedulerFull) {
			// retry on the next pass once a slot frees up
			in.rt.logger.Debug("spawn deferred", "task", in.Name, "target", sd.target)
			return coro.Cursor(idx)
		}
		if err != nil {
			return in.fail(idx, err)
		}
		return s.ReturnNow()
	case "stop":
		s.StopCurrent()
		return coro.Cursor(idx)
	}
	return in.fail(idx, fmt.Errorf("unknown step kind %q", sd.kind))
}

func (in *Instance) fail(idx int, err error) coro.Cursor {
	in.rt.logger.Error("step failed", "task", in.Name, "step", idx, "error", err)
	in.rt.errs = append(in.rt.errs, fmt.Errorf("task %s step %d: %w", in.Name, idx, err))
	in.rt.sched.StopCurrent()
	return coro.Cursor(idx)
}

func (rt *Runtime) emit(task, msg string) {
	rt.logger.Info("task log", "task", task, "message", msg)
	if rt.out != nil {
		fmt.Fprintf(rt.out, "%s: %s\n", task, msg)
	}
}

// copyVars deep-copies a task's initial variables so that instances never
// share nested maps or lists with each other or with the definition.
func copyVars(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = copyValue(v)
	}
	return dst
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyVars(val)
	case map[any]any:
		m := make(map[any]any, len(val))
		for k, e := range val {
			m[k] = copyValue(e)
		}
		return m
	case []any:
		l := make([]any, len(val))
		for i, e := range val {
			l[i] = copyValue(e)
		}
		return l
	default:
		return v
	}
}
