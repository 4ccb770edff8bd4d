// internal/credapi/handlers.go
package credapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"tryit/pkg/credentials"
)

// GET /workspace/credentials?workspace=<id>
//
// 200 WorkspaceCredentials JSON; 400 {error} when no workspace can be
// determined or none of the sources knows it; 500 {error, message} on an
// unexpected resolver failure.
func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request) {
	workspace := r.URL.Query().Get("workspace")
	if workspace == "" {
		workspace = s.cfg.DefaultWorkspace
	}
	if workspace == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no workspace could be determined"})
		return
	}

	creds, err := s.resolver.Resolve(r.Context(), workspace)
	if err != nil {
		var nf *credentials.NotFoundError
		if errors.As(err, &nf) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": nf.Error()})
			return
		}
		s.log.Errorw("credential resolution failed", "workspace", workspace, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "credential resolution failed",
			"message": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, creds)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
