package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/teranos/warden/schedule"
	"github.com/teranos/warden/supervisor"
)

// StatusResponse is the /api/status payload. The artifact is the persisted
// startup error verbatim; clients key on its error field.
type StatusResponse struct {
	Phase      supervisor.Phase     `json:"phase"`
	Pid        int                  `json:"pid,omitempty"`
	UptimeMs   int64                `json:"uptimeMs,omitempty"`
	CrashCount int                  `json:"crashCount"`
	Artifact   *supervisor.Artifact `json:"startupError,omitempty"`
}

// JobsResponse is the /api/jobs payload, mirroring the runtime store envelope
type JobsResponse struct {
	Jobs []schedule.ScheduledJob `json:"jobs"`
}

// SetSupervisor attaches the supervisor after construction. The server and
// the supervisor reference each other (the server is the supervisor's event
// sink), so one side has to be wired late.
func (s *Server) SetSupervisor(sup *supervisor.Supervisor) {
	s.mu.Lock()
	s.supervisor = sup
	s.mu.Unlock()
}

func (s *Server) getSupervisor() *supervisor.Supervisor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.supervisor
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := StatusResponse{Phase: supervisor.PhaseIdle}

	if sup := s.getSupervisor(); sup != nil {
		resp.Phase = sup.Phase()
		if child := sup.Child(); child != nil {
			resp.Pid = child.Pid
			resp.UptimeMs = time.Since(child.StartedAt).Milliseconds()
		}
	}
	if s.breaker != nil {
		resp.CrashCount = s.breaker.CrashCount()
	}

	artifact, err := s.artifacts.Read()
	if err != nil {
		s.logger.Warnw("Failed to read startup error artifact", "error", err)
	} else {
		resp.Artifact = artifact
	}

	s.writeJSON(w, resp)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobs, err := s.store.LoadRuntime()
	if err != nil {
		http.Error(w, "failed to load jobs", http.StatusInternalServerError)
		return
	}
	if jobs == nil {
		jobs = []schedule.ScheduledJob{}
	}

	s.writeJSON(w, JobsResponse{Jobs: jobs})
}

func (s *Server) writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Debugw("Failed to encode response", "error", err)
	}
}
