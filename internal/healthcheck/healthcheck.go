// Package healthcheck runs the optional liveness listener the serve
// commands expose next to their main port.
package healthcheck

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// NormalizeListen turns a bare port ("8081" or ":8081") into a listen
// address; empty input stays empty, which disables the listener.
func NormalizeListen(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, ":") {
		return raw
	}
	return ":" + raw
}

// Server is a running health listener.
type Server struct {
	httpServer *http.Server
	addr       string
}

// Addr returns the bound address, useful when the listen port was 0.
func (s *Server) Addr() string { return s.addr }

// Shutdown stops the listener, waiting briefly for in-flight probes.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// StartServer binds the listener and serves GET /health with the
// component name. Returns immediately; serving happens in background.
func StartServer(ctx context.Context, logger *slog.Logger, listen, component string) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","component":"` + component + `"}`))
	})

	listener, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, err
	}
	server := &Server{
		httpServer: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		addr:       listener.Addr().String(),
	}
	go func() {
		if err := server.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("healthcheck_serve_failed", "component", component, "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()
	logger.Info("healthcheck_listening", "component", component, "addr", server.addr)
	return server, nil
}
