package billing

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/dateparam"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/fault"
)

const (
	maxCallAttempts   = 3
	defaultRetryDelay = 2 * time.Second
)

// Client talks to the FitCloud billing API. Requests are form-encoded
// POSTs authenticated with a bearer token supplied per call.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retryDelay time.Duration
}

// ClientOptions configures NewClient. HTTPClient and RetryDelay are
// optional; per-endpoint timeouts are applied via the request context.
type ClientOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	RetryDelay time.Duration
}

func NewClient(opts ClientOptions) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("billing: base URL is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	return &Client{baseURL: base, httpClient: httpClient, retryDelay: delay}, nil
}

// Call POSTs the given parameters to the endpoint and returns the raw
// response body. Server-side failures (500/502/504) are retried up to
// maxCallAttempts with a fixed delay; client errors and auth failures are
// returned immediately.
func (c *Client) Call(ctx context.Context, spec Spec, params dateparam.Bag, token string) ([]byte, error) {
	form := url.Values{}
	for key, value := range params {
		if strings.TrimSpace(value) == "" {
			continue
		}
		form.Set(key, value)
	}

	ctx, cancel := context.WithTimeout(ctx, spec.Timeout())
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= maxCallAttempts; attempt++ {
		body, retryable, err := c.post(ctx, spec.Path, form, token)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable || attempt == maxCallAttempts {
			break
		}
		if err := sleepWithContext(ctx, c.retryDelay); err != nil {
			return nil, classifyTransport(err, spec.Path)
		}
	}
	return nil, lastErr
}

func (c *Client) post(ctx context.Context, path string, form url.Values, token string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, false, fault.Wrap(fault.KindUnexpected, err, "billing request build failed")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		classified := classifyTransport(err, path)
		return nil, fault.Retryable(classified), classified
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		classified := classifyTransport(err, path)
		return nil, fault.Retryable(classified), classified
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, false, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, false, fault.New(fault.KindUpstreamAuth, "FitCloud 인증이 거부되었습니다 (status %d)", resp.StatusCode)
	case resp.StatusCode == http.StatusInternalServerError,
		resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusGatewayTimeout:
		return nil, true, fault.New(fault.KindUpstreamConnection, "FitCloud 서버 오류 (status %d): %s", resp.StatusCode, snippet(body))
	default:
		return nil, false, fault.New(fault.KindUpstreamBusiness, "FitCloud 호출 실패 (status %d): %s", resp.StatusCode, snippet(body))
	}
}

func classifyTransport(err error, path string) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fault.Wrap(fault.KindUpstreamTimeout, err, "FitCloud 응답 시간이 초과되었습니다 (%s)", path)
	case isTimeout(err):
		return fault.Wrap(fault.KindUpstreamTimeout, err, "FitCloud 응답 시간이 초과되었습니다 (%s)", path)
	case errors.Is(err, context.Canceled):
		return fault.Wrap(fault.KindUpstreamConnection, err, "FitCloud 호출이 취소되었습니다 (%s)", path)
	default:
		return fault.Wrap(fault.KindUpstreamConnection, err, "FitCloud 서버에 연결할 수 없습니다 (%s)", path)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		return "(empty body)"
	}
	return s
}
