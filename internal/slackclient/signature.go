package slackclient

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// maxSignatureSkew bounds how old a signed request may be; anything older
// is treated as a replay.
const maxSignatureSkew = 5 * time.Minute

// SignatureVerifier checks Slack's v0 request signatures. The zero value
// is unusable; construct with NewSignatureVerifier.
type SignatureVerifier struct {
	signingSecret []byte
	now           func() time.Time
}

func NewSignatureVerifier(signingSecret string) (*SignatureVerifier, error) {
	secret := strings.TrimSpace(signingSecret)
	if secret == "" {
		return nil, fmt.Errorf("slack signing secret is required")
	}
	return &SignatureVerifier{signingSecret: []byte(secret), now: time.Now}, nil
}

// Verify checks the X-Slack-Signature / X-Slack-Request-Timestamp pair
// against the raw request body.
func (v *SignatureVerifier) Verify(signature, timestamp string, body []byte) error {
	signature = strings.TrimSpace(signature)
	timestamp = strings.TrimSpace(timestamp)
	if signature == "" || timestamp == "" {
		return fmt.Errorf("slack signature headers are missing")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("slack timestamp is not a number: %q", timestamp)
	}
	age := v.now().Sub(time.Unix(ts, 0))
	if age > maxSignatureSkew || age < -maxSignatureSkew {
		return fmt.Errorf("slack request timestamp outside allowed window")
	}

	mac := hmac.New(sha256.New, v.signingSecret)
	fmt.Fprintf(mac, "v0:%s:%s", timestamp, body)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("slack signature mismatch")
	}
	return nil
}
