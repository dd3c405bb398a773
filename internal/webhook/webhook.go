// Package webhook serves the Slack Events API endpoint: it filters and
// verifies inbound events, forwards user text to the Bedrock agent, and
// posts the completion back to the channel.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/agentruntime"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/dateparam"
)

// Messenger posts replies back into Slack.
type Messenger interface {
	PostMessage(ctx context.Context, channelID, text, threadTS string) error
}

// Verifier checks the inbound request signature.
type Verifier interface {
	Verify(signature, timestamp string, body []byte) error
}

type Handler struct {
	invoker   agentruntime.Invoker
	messenger Messenger
	verifier  Verifier
	logger    *slog.Logger
	clock     func() dateparam.Clock
}

type Options struct {
	Invoker   agentruntime.Invoker
	Messenger Messenger
	Verifier  Verifier
	Logger    *slog.Logger
	Clock     func() dateparam.Clock
}

func NewHandler(opts Options) (*Handler, error) {
	if opts.Invoker == nil {
		return nil, errors.New("webhook: invoker is required")
	}
	if opts.Messenger == nil {
		return nil, errors.New("webhook: messenger is required")
	}
	if opts.Verifier == nil {
		return nil, errors.New("webhook: verifier is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = dateparam.NewClock
	}
	return &Handler{
		invoker:   opts.Invoker,
		messenger: opts.Messenger,
		verifier:  opts.Verifier,
		logger:    logger,
		clock:     clock,
	}, nil
}

// RegisterRoutes mounts the events endpoint.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /slack/events", h.handleEvents)
}

type eventCallback struct {
	Type        string      `json:"type"`
	Challenge   string      `json:"challenge,omitempty"`
	APIAppID    string      `json:"api_app_id,omitempty"`
	AuthedUsers []string    `json:"authed_users,omitempty"`
	Event       *innerEvent `json:"event,omitempty"`
}

type innerEvent struct {
	Type        string `json:"type"`
	Subtype     string `json:"subtype,omitempty"`
	BotID       string `json:"bot_id,omitempty"`
	AppID       string `json:"app_id,omitempty"`
	ClientMsgID string `json:"client_msg_id,omitempty"`
	User        string `json:"user,omitempty"`
	Channel     string `json:"channel,omitempty"`
	Text        string `json:"text,omitempty"`
	ThreadTS    string `json:"thread_ts,omitempty"`
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	// Slack redelivers on slow responses; a retry means the first
	// delivery is already being handled.
	if r.Header.Get("X-Slack-Retry-Num") != "" {
		h.logger.Info("slack_retry_ignored", "retry_num", r.Header.Get("X-Slack-Retry-Num"))
		writeOK(w)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read failed", http.StatusBadRequest)
		return
	}

	var callback eventCallback
	if err := json.Unmarshal(body, &callback); err != nil {
		h.logger.Warn("slack_event_decode_failed", "error", err)
		writeOK(w)
		return
	}

	if callback.Type == "url_verification" && callback.Challenge != "" {
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, callback.Challenge)
		return
	}

	if err := h.verifier.Verify(
		r.Header.Get("X-Slack-Signature"),
		r.Header.Get("X-Slack-Request-Timestamp"),
		body,
	); err != nil {
		h.logger.Warn("slack_signature_rejected", "error", err)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	event := callback.Event
	if event == nil {
		writeOK(w)
		return
	}
	if isNonUserMessage(&callback, event) {
		h.logger.Info("slack_event_filtered", "type", event.Type, "subtype", event.Subtype)
		writeOK(w)
		return
	}

	h.processUserMessage(r.Context(), &callback, event)
	writeOK(w)
}

// HandleSocketPayload processes one Socket Mode events_api payload. The
// websocket handshake already authenticated the app, so there is no
// signature or retry handling on this path.
func (h *Handler) HandleSocketPayload(ctx context.Context, payload []byte) error {
	var callback eventCallback
	if err := json.Unmarshal(payload, &callback); err != nil {
		return err
	}
	if callback.Event == nil {
		return nil
	}
	if isNonUserMessage(&callback, callback.Event) {
		h.logger.Debug("slack_event_filtered", "type", callback.Event.Type, "subtype", callback.Event.Subtype)
		return nil
	}
	h.processUserMessage(ctx, &callback, callback.Event)
	return nil
}

// isNonUserMessage filters bot echoes, Slackbot, our own app's messages,
// and system messages without a client id.
func isNonUserMessage(callback *eventCallback, event *innerEvent) bool {
	if event.BotID != "" || event.Subtype == "bot_message" {
		return true
	}
	if event.User == "USLACKBOT" {
		return true
	}
	if event.Type == "message" {
		if callback.APIAppID != "" && callback.APIAppID == event.AppID {
			return true
		}
		if event.ClientMsgID == "" {
			return true
		}
	}
	return false
}

func (h *Handler) processUserMessage(ctx context.Context, callback *eventCallback, event *innerEvent) {
	text := strings.TrimSpace(event.Text)
	if event.Type == "app_mention" && len(callback.AuthedUsers) > 0 {
		text = strings.TrimSpace(strings.ReplaceAll(text, "<@"+callback.AuthedUsers[0]+">", ""))
	}

	if text == "" {
		h.reply(ctx, event, fmt.Sprintf("안녕하세요, <@%s>님! 무엇을 도와드릴까요?", event.User))
		return
	}

	clock := h.clock()
	sessionAttrs := map[string]string{
		"current_date": fmt.Sprintf("%d년 %02d월 %02d일", clock.Year, clock.Month, clock.Day),
		"current_year": fmt.Sprintf("%d", clock.Year),
	}
	sessionID := event.User + "-" + event.Channel

	h.logger.Info("agent_invoke",
		"session_id", sessionID,
		"channel", event.Channel,
		"text_len", len(text))

	completion, err := h.invoker.Invoke(ctx, sessionID, text, sessionAttrs)
	if err != nil {
		h.logger.Error("agent_invoke_failed", "session_id", sessionID, "error", err)
		h.reply(ctx, event, fmt.Sprintf("죄송합니다, <@%s>님. 처리 중 오류가 발생했습니다.", event.User))
		return
	}
	if completion == "" {
		completion = "죄송합니다. 응답을 생성할 수 없습니다."
	}
	h.reply(ctx, event, completion)
}

func (h *Handler) reply(ctx context.Context, event *innerEvent, text string) {
	if err := h.messenger.PostMessage(ctx, event.Channel, text, event.ThreadTS); err != nil {
		h.logger.Error("slack_reply_failed", "channel", event.Channel, "error", err)
	}
}

func writeOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "OK")
}
