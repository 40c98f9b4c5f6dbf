package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "gocoro API",
		Version:     "v1",
		Description: "Status of a bounded cooperative task scheduler and its run journal",
		Endpoints: []endpointInfo{
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
			{"/api/v1/scheduler", []string{"GET"}, "Live snapshot of the scheduler slots"},
			{"/api/v1/sse/scheduler", []string{"GET"}, "Scheduler snapshots as Server-Sent Events"},
			{"/api/v1/runs", []string{"GET"}, "Journaled runs, newest first. Filters: state, workload, limit, offset"},
			{"/api/v1/runs/{id}", []string{"GET"}, "Single run with its task events"},
		},
	})
}
