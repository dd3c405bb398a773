package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/dateparam"
)

type fakeInvoker struct {
	calls      int
	sessionID  string
	inputText  string
	attrs      map[string]string
	completion string
	err        error
}

func (f *fakeInvoker) Invoke(ctx context.Context, sessionID, inputText string, sessionAttrs map[string]string) (string, error) {
	f.calls++
	f.sessionID = sessionID
	f.inputText = inputText
	f.attrs = sessionAttrs
	return f.completion, f.err
}

type fakeMessenger struct {
	calls   int
	channel string
	text    string
}

func (f *fakeMessenger) PostMessage(ctx context.Context, channelID, text, threadTS string) error {
	f.calls++
	f.channel = channelID
	f.text = text
	return nil
}

type fakeVerifier struct{ err error }

func (f *fakeVerifier) Verify(signature, timestamp string, body []byte) error { return f.err }

func newTestHandler(t *testing.T, invoker *fakeInvoker, messenger *fakeMessenger, verifier *fakeVerifier) *Handler {
	t.Helper()
	h, err := NewHandler(Options{
		Invoker:   invoker,
		Messenger: messenger,
		Verifier:  verifier,
		Clock: func() dateparam.Clock {
			return dateparam.ClockAt(time.Date(2025, time.June, 15, 12, 0, 0, 0, dateparam.KST))
		},
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	return h
}

func postEvent(t *testing.T, h *Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

const userMessage = `{
	"type": "event_callback",
	"api_app_id": "A111",
	"event": {
		"type": "message",
		"client_msg_id": "m-1",
		"user": "U123",
		"channel": "C456",
		"text": "5월 비용 알려줘"
	}
}`

func TestHandleEventsInvokesAgentAndReplies(t *testing.T) {
	t.Parallel()

	invoker := &fakeInvoker{completion: "5월 총 비용은 $120입니다."}
	messenger := &fakeMessenger{}
	h := newTestHandler(t, invoker, messenger, &fakeVerifier{})

	rec := postEvent(t, h, userMessage, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if invoker.calls != 1 {
		t.Fatalf("invoker called %d times", invoker.calls)
	}
	if invoker.sessionID != "U123-C456" {
		t.Fatalf("session id = %q", invoker.sessionID)
	}
	if invoker.attrs["current_year"] != "2025" {
		t.Fatalf("session attrs = %v", invoker.attrs)
	}
	if invoker.attrs["current_date"] != "2025년 06월 15일" {
		t.Fatalf("current_date = %q", invoker.attrs["current_date"])
	}
	if messenger.channel != "C456" || messenger.text != "5월 총 비용은 $120입니다." {
		t.Fatalf("reply = %q to %q", messenger.text, messenger.channel)
	}
}

func TestHandleEventsIgnoresRetries(t *testing.T) {
	t.Parallel()

	invoker := &fakeInvoker{}
	h := newTestHandler(t, invoker, &fakeMessenger{}, &fakeVerifier{})

	rec := postEvent(t, h, userMessage, map[string]string{"X-Slack-Retry-Num": "1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if invoker.calls != 0 {
		t.Fatalf("invoker called %d times on retry delivery", invoker.calls)
	}
}

func TestHandleEventsAnswersChallenge(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, &fakeInvoker{}, &fakeMessenger{}, &fakeVerifier{})

	rec := postEvent(t, h, `{"type":"url_verification","challenge":"chal-123"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if string(body) != "chal-123" {
		t.Fatalf("body = %q", body)
	}
}

func TestHandleEventsRejectsBadSignature(t *testing.T) {
	t.Parallel()

	invoker := &fakeInvoker{}
	h := newTestHandler(t, invoker, &fakeMessenger{}, &fakeVerifier{err: io.ErrUnexpectedEOF})

	rec := postEvent(t, h, userMessage, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if invoker.calls != 0 {
		t.Fatalf("invoker called %d times after rejected signature", invoker.calls)
	}
}

func TestHandleEventsFiltersNonUserMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"bot id", `{"type":"event_callback","event":{"type":"message","bot_id":"B1","channel":"C1","text":"hi"}}`},
		{"bot subtype", `{"type":"event_callback","event":{"type":"message","subtype":"bot_message","channel":"C1","text":"hi"}}`},
		{"slackbot", `{"type":"event_callback","event":{"type":"message","client_msg_id":"m","user":"USLACKBOT","channel":"C1","text":"hi"}}`},
		{"own app echo", `{"type":"event_callback","api_app_id":"A1","event":{"type":"message","client_msg_id":"m","app_id":"A1","user":"U1","channel":"C1","text":"hi"}}`},
		{"no client msg id", `{"type":"event_callback","event":{"type":"message","user":"U1","channel":"C1","text":"hi"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			invoker := &fakeInvoker{}
			h := newTestHandler(t, invoker, &fakeMessenger{}, &fakeVerifier{})
			rec := postEvent(t, h, tt.body, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if invoker.calls != 0 {
				t.Fatalf("invoker called %d times for filtered event", invoker.calls)
			}
		})
	}
}

func TestHandleEventsStripsMention(t *testing.T) {
	t.Parallel()

	invoker := &fakeInvoker{completion: "done"}
	h := newTestHandler(t, invoker, &fakeMessenger{}, &fakeVerifier{})

	body := `{
		"type": "event_callback",
		"authed_users": ["UBOT"],
		"event": {
			"type": "app_mention",
			"user": "U123",
			"channel": "C456",
			"text": "<@UBOT> 지난달 청구서 보여줘"
		}
	}`
	postEvent(t, h, body, nil)
	if invoker.inputText != "지난달 청구서 보여줘" {
		t.Fatalf("inputText = %q", invoker.inputText)
	}
}

func TestHandleEventsGreetsOnEmptyText(t *testing.T) {
	t.Parallel()

	invoker := &fakeInvoker{}
	messenger := &fakeMessenger{}
	h := newTestHandler(t, invoker, messenger, &fakeVerifier{})

	body := `{
		"type": "event_callback",
		"authed_users": ["UBOT"],
		"event": {
			"type": "app_mention",
			"user": "U123",
			"channel": "C456",
			"text": "<@UBOT>"
		}
	}`
	postEvent(t, h, body, nil)
	if invoker.calls != 0 {
		t.Fatalf("invoker called %d times for empty text", invoker.calls)
	}
	if !strings.Contains(messenger.text, "안녕하세요") || !strings.Contains(messenger.text, "U123") {
		t.Fatalf("greeting = %q", messenger.text)
	}
}

func TestHandleEventsApologizesOnAgentFailure(t *testing.T) {
	t.Parallel()

	invoker := &fakeInvoker{err: io.ErrUnexpectedEOF}
	messenger := &fakeMessenger{}
	h := newTestHandler(t, invoker, messenger, &fakeVerifier{})

	postEvent(t, h, userMessage, nil)
	if messenger.calls != 1 {
		t.Fatalf("messenger called %d times", messenger.calls)
	}
	if !strings.Contains(messenger.text, "오류가 발생했습니다") {
		t.Fatalf("reply = %q", messenger.text)
	}
}
