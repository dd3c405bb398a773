package slackclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := New(Options{
		HTTPClient: server.Client(),
		BaseURL:    server.URL,
		BotToken:   "xoxb-test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestPostMessage(t *testing.T) {
	t.Parallel()

	var gotBody postMessageRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat.postMessage" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer xoxb-test" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"ok":true,"ts":"123.456"}`))
	}))

	if err := client.PostMessage(context.Background(), "C123", "hello", ""); err != nil {
		t.Fatalf("PostMessage() error = %v", err)
	}
	if gotBody.Channel != "C123" || gotBody.Text != "hello" {
		t.Fatalf("request body = %+v", gotBody)
	}
}

func TestPostMessageRetriesRateLimit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"ok":false,"error":"ratelimited"}`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))

	if err := client.PostMessage(context.Background(), "C123", "hello", ""); err != nil {
		t.Fatalf("PostMessage() error = %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("server saw %d calls, want 2", got)
	}
}

func TestPostMessageDoesNotRetryAPIErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))

	err := client.PostMessage(context.Background(), "C404", "hello", "")
	if err == nil {
		t.Fatal("PostMessage() error = nil")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("server saw %d calls, want 1 (200-with-error is not retryable)", got)
	}
}

func TestUploadFileThreeSteps(t *testing.T) {
	t.Parallel()

	var uploadedBytes []byte
	mux := http.NewServeMux()
	var serverURL string
	mux.HandleFunc("/files.getUploadURLExternal", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		if r.PostFormValue("filename") != "report.xlsx" {
			t.Errorf("filename = %q", r.PostFormValue("filename"))
		}
		if r.PostFormValue("length") != "4" {
			t.Errorf("length = %q", r.PostFormValue("length"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ok":         true,
			"upload_url": serverURL + "/upload-target",
			"file_id":    "F001",
		})
	})
	mux.HandleFunc("/upload-target", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("upload method = %q, want PUT", r.Method)
		}
		uploadedBytes, _ = io.ReadAll(r.Body)
	})
	mux.HandleFunc("/files.completeUploadExternal", func(w http.ResponseWriter, r *http.Request) {
		var req completeUploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode complete request: %v", err)
		}
		if req.ChannelID != "C123" || len(req.Files) != 1 || req.Files[0].ID != "F001" {
			t.Errorf("complete request = %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ok":    true,
			"files": []map[string]any{{"id": "F001", "permalink": "https://slack.example/f/F001"}},
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	serverURL = server.URL
	client, err := New(Options{HTTPClient: server.Client(), BaseURL: server.URL, BotToken: "xoxb-test"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result, err := client.UploadFile(context.Background(), "C123", "report.xlsx", "monthly report", []byte("xlsx"))
	if err != nil {
		t.Fatalf("UploadFile() error = %v", err)
	}
	if string(uploadedBytes) != "xlsx" {
		t.Fatalf("uploaded bytes = %q", uploadedBytes)
	}
	if result.FileID != "F001" || result.Permalink != "https://slack.example/f/F001" {
		t.Fatalf("result = %+v", result)
	}
}

func TestUploadFileChannelErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code string
		want error
	}{
		{"not_in_channel", ErrNotInChannel},
		{"channel_not_found", ErrChannelNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			t.Parallel()
			mux := http.NewServeMux()
			var serverURL string
			mux.HandleFunc("/files.getUploadURLExternal", func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"ok": true, "upload_url": serverURL + "/upload-target", "file_id": "F001"})
			})
			mux.HandleFunc("/upload-target", func(w http.ResponseWriter, r *http.Request) {})
			mux.HandleFunc("/files.completeUploadExternal", func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": tt.code})
			})
			server := httptest.NewServer(mux)
			t.Cleanup(server.Close)
			serverURL = server.URL
			client, err := New(Options{HTTPClient: server.Client(), BaseURL: server.URL, BotToken: "xoxb-test"})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			_, err = client.UploadFile(context.Background(), "C123", "report.xlsx", "", []byte("xlsx"))
			if !errors.Is(err, tt.want) {
				t.Fatalf("UploadFile() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	if _, err := New(Options{}); err == nil {
		t.Fatal("New() error = nil, want missing token error")
	}
}
