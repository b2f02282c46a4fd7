package rendezvous

import (
	"encoding/json"
	"net/http"

	"github.com/pion/logging"
)

// apiRequest is the single envelope every /api action arrives in (spec §6
// "Rendezvous API").
type apiRequest struct {
	Action      string `json:"action"`
	DeviceID    string `json:"device_id"`
	PublicAddr  *Addr  `json:"public_addr"`
	LocalAddr   *Addr  `json:"local_addr"`
	RequesterID string `json:"requester_id"`
	TargetID    string `json:"target_id"`
	Timestamp   int64  `json:"timestamp"`
}

type apiResponse struct {
	Status   string           `json:"status"`
	Device   *DeviceRecord    `json:"device_info,omitempty"`
	Target   *DeviceRecord    `json:"target_info,omitempty"`
	Requests []ConnectRequest `json:"requests,omitempty"`
	Cleared  *bool            `json:"cleared,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Server exposes a Registry over HTTP: a single action-dispatched POST
// endpoint plus GET /stats and GET /health (spec §6).
type Server struct {
	registry *Registry
	log      logging.LeveledLogger
}

// NewServer wraps registry for HTTP serving.
func NewServer(registry *Registry, loggerFactory logging.LoggerFactory) *Server {
	s := &Server{registry: registry}
	if loggerFactory != nil {
		s.log = loggerFactory.NewLogger("rendezvous-server")
	}
	return s
}

// Handler returns the http.Handler to mount, e.g. via http.ListenAndServe.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api", s.handleAPI)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	var req apiRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Status: "error", Error: "invalid request body"})
		return
	}

	switch req.Action {
	case "register":
		s.handleRegister(w, req)
	case "heartbeat":
		s.handleHeartbeat(w, req)
	case "lookup":
		s.handleLookup(w, req)
	case "unregister":
		s.handleUnregister(w, req)
	case "connect_request":
		s.handleConnectRequest(w, req)
	case "get_connect_requests":
		s.handleGetConnectRequests(w, req)
	case "clear_connect_request":
		s.handleClearConnectRequest(w, req)
	default:
		writeJSON(w, http.StatusBadRequest, apiResponse{Status: "error", Error: "unknown action"})
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, req apiRequest) {
	if req.PublicAddr == nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Status: "error", Error: "public_addr is required"})
		return
	}
	s.registry.Register(req.DeviceID, *req.PublicAddr, req.LocalAddr)
	writeJSON(w, http.StatusOK, apiResponse{Status: "ok"})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, req apiRequest) {
	ok := s.registry.Heartbeat(req.DeviceID, req.PublicAddr, req.LocalAddr)
	if !ok {
		writeJSON(w, http.StatusNotFound, apiResponse{Status: "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Status: "ok"})
}

func (s *Server) handleLookup(w http.ResponseWriter, req apiRequest) {
	rec, err := s.registry.Lookup(req.DeviceID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, apiResponse{Status: "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Status: "ok", Device: &rec})
}

func (s *Server) handleUnregister(w http.ResponseWriter, req apiRequest) {
	s.registry.Unregister(req.DeviceID)
	writeJSON(w, http.StatusOK, apiResponse{Status: "ok"})
}

func (s *Server) handleConnectRequest(w http.ResponseWriter, req apiRequest) {
	target, err := s.registry.ConnectRequest(req.RequesterID, req.TargetID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, apiResponse{Status: "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Status: "ok", Target: &target})
}

func (s *Server) handleGetConnectRequests(w http.ResponseWriter, req apiRequest) {
	reqs := s.registry.GetConnectRequests(req.DeviceID)
	writeJSON(w, http.StatusOK, apiResponse{Status: "ok", Requests: reqs})
}

func (s *Server) handleClearConnectRequest(w http.ResponseWriter, req apiRequest) {
	cleared := s.registry.ClearConnectRequest(req.TargetID, req.RequesterID)
	writeJSON(w, http.StatusOK, apiResponse{Status: "ok", Cleared: &cleared})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
