package apiserver

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// writeJSON serialises data as JSON and writes it to the response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.orchestrator.Conversation().Snapshot()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"state":          s.orchestrator.State(),
		"network":        s.network,
		"turns":          len(snap.Turns),
		"tokens_used":    snap.TokensUsed,
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	snap := s.orchestrator.Conversation().Snapshot()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"turns":       snap.Turns,
		"tokens_used": snap.TokensUsed,
	})
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"tools": s.registry.Declarations(),
	})
}

func (s *Server) handleConfirmations(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{}
	if pending, ok := s.gate.PendingDescription(); ok {
		resp["pending"] = pending
	}
	if d, ok := s.gate.LastDecision(); ok {
		resp["last"] = d
	}
	s.writeJSON(w, http.StatusOK, resp)
}
