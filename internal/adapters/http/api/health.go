package api

import "net/http"

// HealthProvider reports whether the inbound origin connection is up.
type HealthProvider interface {
	Connected() bool
}

type healthResponse struct {
	Status           string `json:"status"`
	InboundConnected bool   `json:"inbound_connected"`
}

// HandleHealth handles GET /healthz. The process is live whenever it answers;
// a down inbound connection is reported as degraded.
func (s *Server) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", InboundConnected: true}
	if s.health != nil && !s.health.Connected() {
		resp.Status = "degraded"
		resp.InboundConnected = false
	}
	writeJSON(w, http.StatusOK, resp)
}
