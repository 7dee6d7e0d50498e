package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/vxgate/vxgate/internal/apierror"
	"github.com/vxgate/vxgate/internal/metrics"
)

// Pipeline header names.
const (
	APIKeyHeader    = "X-API-Key"
	ClientKeyHeader = "X-API-Client-Key"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// reject ends the chain with msg and counts the rejection.
func reject(w http.ResponseWriter, r *http.Request, logger *slog.Logger, recorder metrics.Recorder, msg apierror.Message, reason string) {
	if logger != nil {
		logger.Warn("request rejected",
			slog.String("reason", reason),
			slog.String("code", msg.Code),
			slog.String("endpoint", r.Method+" "+r.URL.Path),
			slog.String("ip", r.RemoteAddr),
			slog.String("request_id", GetRequestID(r.Context())),
		)
	}
	if recorder != nil {
		recorder.IncRejection(string(msg.Kind))
	}
	apierror.Write(w, msg, nil)
}
