package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/me/gocoro/pkg/model"
)

// parseListOptions reads limit, offset, state and workload from the query string.
func parseListOptions(q url.Values) (model.ListOptions, *model.APIError) {
	opts := model.DefaultListOptions()
	var errs []model.FieldError

	for _, f := range []struct {
		name string
		dst  *int
	}{{"limit", &opts.Limit}, {"offset", &opts.Offset}} {
		v := q.Get(f.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs = append(errs, model.FieldError{Field: f.name, Message: fmt.Sprintf("%q is not a non-negative integer", v)})
			continue
		}
		*f.dst = n
	}
	if v := q.Get("state"); v != "" {
		st, ok := model.ParseRunState(v)
		if !ok {
			errs = append(errs, model.FieldError{Field: "state", Message: fmt.Sprintf("unknown run state %q", v)})
		}
		opts.State = st.String()
	}
	opts.Workload = q.Get("workload")

	if len(errs) > 0 {
		return opts, model.NewValidationError("invalid query parameters", errs...)
	}
	opts.Clamp()
	return opts, nil
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if s.store == nil {
		respondError(w, reqID, http.StatusServiceUnavailable, model.NewUnavailableError("journal"))
		return
	}

	opts, apiErr := parseListOptions(r.URL.Query())
	if apiErr != nil {
		respondError(w, reqID, http.StatusBadRequest, apiErr)
		return
	}

	runs, total, err := s.store.ListRuns(r.Context(), opts)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if runs == nil {
		runs = []*model.Run{}
	}
	respondList(w, reqID, runs, model.NewPagination(total, opts))
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if s.store == nil {
		respondError(w, reqID, http.StatusServiceUnavailable, model.NewUnavailableError("journal"))
		return
	}
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if run == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", id))
		return
	}

	events, err := s.store.ListEvents(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if events == nil {
		events = []model.TaskEvent{}
	}
	respondOK(w, reqID, model.RunDetail{Run: *run, Events: events})
}
