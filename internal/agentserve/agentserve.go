// Package agentserve adapts Bedrock action-group handlers to plain HTTP
// so each agent can run as a standalone service during development and
// behind a proxy in deployment.
package agentserve

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/envelope"
)

const maxEventBytes = 4 << 20

// HandleFunc services one decoded Bedrock action event.
type HandleFunc func(ctx context.Context, req *envelope.ActionRequest) *envelope.ActionResponse

// HTTPHandler wraps an agent handler: it decodes the action event from
// the request body, tags the run with a request id, and writes the
// action response back as JSON.
func HTTPHandler(logger *slog.Logger, handle HandleFunc) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()

		raw, err := io.ReadAll(io.LimitReader(r.Body, maxEventBytes))
		if err != nil {
			logger.Warn("agent_event_read_failed", "request_id", requestID, "error", err.Error())
			writeError(w, http.StatusBadRequest, "event body read failed")
			return
		}
		var req envelope.ActionRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			logger.Warn("agent_event_decode_failed", "request_id", requestID, "error", err.Error())
			writeError(w, http.StatusBadRequest, "invalid action event")
			return
		}

		resp := handle(r.Context(), &req)

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Request-Id", requestID)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Warn("agent_response_write_failed", "request_id", requestID, "error", err.Error())
			return
		}
		logger.Info("agent_event_served",
			"request_id", requestID,
			"api_path", req.APIPath,
			"status", resp.Response.HTTPStatusCode)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": message})
}
