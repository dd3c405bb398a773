package healthcheck

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestNormalizeListen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  ", ""},
		{"8081", ":8081"},
		{":8081", ":8081"},
		{"127.0.0.1:8081", "127.0.0.1:8081"},
	}
	for _, tt := range tests {
		if got := NormalizeListen(tt.in); got != tt.want {
			t.Fatalf("NormalizeListen(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStartServerServesHealth(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server, err := StartServer(ctx, nil, "127.0.0.1:0", "costagent")
	if err != nil {
		t.Fatalf("StartServer() error = %v", err)
	}
	t.Cleanup(func() { _ = server.Shutdown(context.Background()) })

	resp, err := http.Get("http://" + server.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "costagent") {
		t.Fatalf("body = %s", body)
	}
}
