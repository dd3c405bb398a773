// Package slackclient is a minimal Slack Web API client covering what the
// bot needs: posting replies, verifying inbound request signatures, and
// the three-step external file upload.
package slackclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://slack.com/api"

// Sentinel errors for upload completion, so callers can tell the user to
// fix the channel rather than retry.
var (
	ErrNotInChannel    = errors.New("slack: bot is not a member of the channel")
	ErrChannelNotFound = errors.New("slack: channel not found")
)

type Client struct {
	http     *http.Client
	baseURL  string
	botToken string
}

type Options struct {
	HTTPClient *http.Client
	BaseURL    string
	BotToken   string
}

func New(opts Options) (*Client, error) {
	token := strings.TrimSpace(opts.BotToken)
	if token == "" {
		return nil, fmt.Errorf("slack bot token is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimSpace(strings.TrimRight(opts.BaseURL, "/"))
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{http: httpClient, baseURL: baseURL, botToken: token}, nil
}

type postMessageRequest struct {
	Channel  string `json:"channel"`
	Text     string `json:"text"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

type postMessageResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	TS    string `json:"ts,omitempty"`
}

// PostMessage sends text to a channel, retrying on rate limits and 5xx.
func (c *Client) PostMessage(ctx context.Context, channelID, text, threadTS string) error {
	channelID = strings.TrimSpace(channelID)
	text = strings.TrimSpace(text)
	if channelID == "" {
		return fmt.Errorf("channel_id is required")
	}
	if text == "" {
		return fmt.Errorf("text is required")
	}
	const maxAttempts = 3
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		body, status, headers, err := c.postJSON(ctx, "/chat.postMessage", postMessageRequest{
			Channel:  channelID,
			Text:     text,
			ThreadTS: strings.TrimSpace(threadTS),
		})
		if err != nil {
			lastErr = err
		} else {
			var out postMessageResponse
			if parseErr := json.Unmarshal(body, &out); parseErr != nil {
				lastErr = parseErr
			} else if status < 200 || status >= 300 {
				lastErr = fmt.Errorf("slack chat.postMessage http %d", status)
			} else if out.OK {
				return nil
			} else {
				lastErr = fmt.Errorf("slack chat.postMessage failed: %s", errorCode(out.Error))
			}
		}

		if attempt >= maxAttempts {
			break
		}
		wait, retryable := retryDelay(status, headers, attempt)
		if !retryable {
			break
		}
		if err := sleepWithContext(ctx, wait); err != nil {
			return err
		}
	}
	return lastErr
}

// UploadResult describes a completed external upload.
type UploadResult struct {
	FileID    string
	Permalink string
	Title     string
}

type getUploadURLResponse struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	UploadURL string `json:"upload_url,omitempty"`
	FileID    string `json:"file_id,omitempty"`
}

type completeUploadRequest struct {
	Files          []completeUploadFile `json:"files"`
	ChannelID      string               `json:"channel_id"`
	InitialComment string               `json:"initial_comment,omitempty"`
}

type completeUploadFile struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type completeUploadResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Files []struct {
		ID        string `json:"id"`
		Permalink string `json:"permalink,omitempty"`
	} `json:"files,omitempty"`
}

// UploadFile runs the three-step external upload: reserve an upload URL,
// push the bytes, then complete and share into the channel.
func (c *Client) UploadFile(ctx context.Context, channelID, filename, comment string, content []byte) (UploadResult, error) {
	channelID = strings.TrimSpace(channelID)
	filename = strings.TrimSpace(filename)
	if channelID == "" {
		return UploadResult{}, fmt.Errorf("channel_id is required")
	}
	if filename == "" {
		return UploadResult{}, fmt.Errorf("filename is required")
	}
	if len(content) == 0 {
		return UploadResult{}, fmt.Errorf("file content is empty")
	}

	uploadURL, fileID, err := c.getUploadURL(ctx, filename, len(content))
	if err != nil {
		return UploadResult{}, err
	}
	if err := c.putFileContent(ctx, uploadURL, content); err != nil {
		return UploadResult{}, err
	}
	return c.completeUpload(ctx, channelID, fileID, filename, comment)
}

func (c *Client) getUploadURL(ctx context.Context, filename string, length int) (string, string, error) {
	form := url.Values{}
	form.Set("filename", filename)
	form.Set("length", strconv.Itoa(length))

	body, status, _, err := c.postForm(ctx, "/files.getUploadURLExternal", form)
	if err != nil {
		return "", "", err
	}
	if status < 200 || status >= 300 {
		return "", "", fmt.Errorf("slack files.getUploadURLExternal http %d", status)
	}
	var out getUploadURLResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", "", err
	}
	if !out.OK {
		return "", "", fmt.Errorf("slack files.getUploadURLExternal failed: %s", errorCode(out.Error))
	}
	if out.UploadURL == "" || out.FileID == "" {
		return "", "", fmt.Errorf("slack files.getUploadURLExternal returned empty url or file id")
	}
	return out.UploadURL, out.FileID, nil
}

func (c *Client) putFileContent(ctx context.Context, uploadURL string, content []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(content))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack file content upload http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}

func (c *Client) completeUpload(ctx context.Context, channelID, fileID, title, comment string) (UploadResult, error) {
	body, status, _, err := c.postJSON(ctx, "/files.completeUploadExternal", completeUploadRequest{
		Files:          []completeUploadFile{{ID: fileID, Title: title}},
		ChannelID:      channelID,
		InitialComment: strings.TrimSpace(comment),
	})
	if err != nil {
		return UploadResult{}, err
	}
	if status < 200 || status >= 300 {
		return UploadResult{}, fmt.Errorf("slack files.completeUploadExternal http %d", status)
	}
	var out completeUploadResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return UploadResult{}, err
	}
	if !out.OK {
		switch errorCode(out.Error) {
		case "not_in_channel":
			return UploadResult{}, ErrNotInChannel
		case "channel_not_found":
			return UploadResult{}, ErrChannelNotFound
		default:
			return UploadResult{}, fmt.Errorf("slack files.completeUploadExternal failed: %s", errorCode(out.Error))
		}
	}
	result := UploadResult{FileID: fileID, Title: title}
	if len(out.Files) > 0 {
		if out.Files[0].ID != "" {
			result.FileID = out.Files[0].ID
		}
		result.Permalink = out.Files[0].Permalink
	}
	return result, nil
}

func errorCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return "unknown_error"
	}
	return code
}

func retryDelay(status int, headers http.Header, attempt int) (time.Duration, bool) {
	switch {
	case status == http.StatusTooManyRequests:
		retryAfter := strings.TrimSpace(headers.Get("Retry-After"))
		if retryAfter == "" {
			return 1 * time.Second, true
		}
		secs, err := strconv.Atoi(retryAfter)
		if err != nil || secs <= 0 {
			return 1 * time.Second, true
		}
		return time.Duration(secs) * time.Second, true
	case status >= 500 && status <= 599:
		switch attempt {
		case 1:
			return 300 * time.Millisecond, true
		case 2:
			return 1 * time.Second, true
		default:
			return 2 * time.Second, true
		}
	default:
		return 0, false
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) ([]byte, int, http.Header, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, nil, err
	}
	return c.post(ctx, path, "application/json", bytes.NewReader(raw))
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) ([]byte, int, http.Header, error) {
	return c.post(ctx, path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) ([]byte, int, http.Header, error) {
	return c.postWithToken(ctx, c.botToken, path, contentType, body)
}

func (c *Client) postWithToken(ctx context.Context, token, path, contentType string, body io.Reader) ([]byte, int, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, resp.StatusCode, resp.Header, readErr
	}
	return raw, resp.StatusCode, resp.Header, nil
}
