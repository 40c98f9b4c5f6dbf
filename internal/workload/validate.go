package workload

import (
	"fmt"
	"math"
	"strings"

	"github.com/me/gocoro/internal/expr"
	"github.com/me/gocoro/pkg/coro"
	"github.com/me/gocoro/pkg/model"
)

// maxWaitSeconds is the longest wait that still fits in a time.Duration.
var maxWaitSeconds = float64(math.MaxInt64) / 1e9

// Validate checks the structure of a workload and compiles every expression.
// Returns nil if valid, or a *model.APIError with FieldError details.
func Validate(w *Workload) *model.APIError {
	var errs []model.FieldError

	errs = append(errs, validateHeader(w)...)
	errs = append(errs, validateTasks(w)...)
	errs = append(errs, validateExpressions(w)...)

	if len(errs) == 0 {
		return nil
	}
	return model.NewValidationError("workload validation failed", errs...)
}

func validateHeader(w *Workload) []model.FieldError {
	var errs []model.FieldError
	if strings.TrimSpace(w.Name) == "" {
		errs = append(errs, model.FieldError{Field: "name", Message: "name is required"})
	}
	if w.Capacity < 0 || w.Capacity > coro.DefaultMaxCapacity {
		errs = append(errs, model.FieldError{
			Field:   "capacity",
			Message: fmt.Sprintf("capacity %d out of range [1, %d]", w.Capacity, coro.DefaultMaxCapacity),
		})
	}
	if len(w.Tasks) == 0 {
		errs = append(errs, model.FieldError{Field: "tasks", Message: "at least one task is required"})
	}
	return errs
}

func validateTasks(w *Workload) []model.FieldError {
	var errs []model.FieldError
	seen := make(map[string]int)
	for i, t := range w.Tasks {
		field := fmt.Sprintf("tasks[%d]", i)
		switch {
		case t.Name == "":
			errs = append(errs, model.FieldError{Field: field + ".name", Message: "task name is required"})
		case strings.ContainsAny(t.Name, "#@ "):
			errs = append(errs, model.FieldError{Field: field + ".name", Message: fmt.Sprintf("task name %q must not contain '#', '@' or spaces", t.Name)})
		default:
			if prev, dup := seen[t.Name]; dup {
				errs = append(errs, model.FieldError{Field: field + ".name", Message: fmt.Sprintf("duplicate task name %q (also tasks[%d])", t.Name, prev)})
			}
			seen[t.Name] = i
		}
		if t.Count < 0 {
			errs = append(errs, model.FieldError{Field: field + ".count", Message: "count must not be negative"})
		}
		if len(t.Steps) == 0 {
			errs = append(errs, model.FieldError{Field: field + ".steps", Message: "at least one step is required"})
		}
		for j, s := range t.Steps {
			sf := fmt.Sprintf("%s.steps[%d]", field, j)
			switch kinds := s.kinds(); len(kinds) {
			case 0:
				errs = append(errs, model.FieldError{Field: sf, Message: "step has no action (log, wait, while, exec, spawn, stop)"})
			case 1:
			default:
				errs = append(errs, model.FieldError{Field: sf, Message: fmt.Sprintf("step has multiple actions: %s", strings.Join(kinds, ", "))})
			}
			if s.Wait != nil {
				switch v := *s.Wait; {
				case math.IsNaN(v) || math.IsInf(v, 0):
					errs = append(errs, model.FieldError{Field: sf + ".wait", Message: "wait must be a finite number of seconds"})
				case v < 0:
					errs = append(errs, model.FieldError{Field: sf + ".wait", Message: "wait must not be negative"})
				case v > maxWaitSeconds:
					errs = append(errs, model.FieldError{Field: sf + ".wait", Message: fmt.Sprintf("wait must not exceed %.0f seconds", maxWaitSeconds)})
				}
			}
			if s.Spawn != "" {
				if _, ok := w.Task(s.Spawn); !ok {
					errs = append(errs, model.FieldError{Field: sf + ".spawn", Message: fmt.Sprintf("unknown task %q", s.Spawn)})
				}
			}
		}
	}
	return errs
}

func validateExpressions(w *Workload) []model.FieldError {
	ev, err := expr.NewEvaluator(w.Lib...)
	if err != nil {
		return []model.FieldError{{Field: "lib", Message: err.Error()}}
	}
	var errs []model.FieldError
	for i, t := range w.Tasks {
		for j, s := range t.Steps {
			sf := fmt.Sprintf("tasks[%d].steps[%d]", i, j)
			if s.Log != "" {
				if _, err := ev.CompileTemplate(s.Log); err != nil {
					errs = append(errs, model.FieldError{Field: sf + ".log", Message: err.Error()})
				}
			}
			for _, src := range []struct{ field, code string }{{"while", s.While}, {"exec", s.Exec}} {
				if src.code == "" {
					continue
				}
				if _, err := ev.Compile(src.code); err != nil {
					errs = append(errs, model.FieldError{Field: sf + "." + src.field, Message: err.Error()})
				}
			}
		}
	}
	return errs
}
