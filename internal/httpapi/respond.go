package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kapu/arena-live-go/internal/obslog"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func internalError(w http.ResponseWriter, op string, err error) {
	obslog.L().Error("http_"+op+"_failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

// identity extracts the authenticated user id. Token validation happened
// upstream; an absent id means the request never passed the gate.
func identity(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return "", false
	}
	return userID, true
}
