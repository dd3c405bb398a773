// Package secretstore provides the FitCloud bearer token out of AWS
// Secrets Manager, fetched once per process and cached until a caller
// invalidates it after an auth rejection.
package secretstore

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/goccy/go-json"

	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/fault"
)

// TokenKey is the field inside the JSON SecretString carrying the token.
const TokenKey = "fitcloud_api_token"

// SecretsAPI is the slice of the Secrets Manager client the provider
// needs; the SDK client satisfies it.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// TokenProvider caches one bearer token. Safe for concurrent use.
type TokenProvider struct {
	api      SecretsAPI
	secretID string

	mu    sync.Mutex
	token string
}

func NewTokenProvider(api SecretsAPI, secretID string) (*TokenProvider, error) {
	if api == nil {
		return nil, errors.New("secretstore: api is required")
	}
	if strings.TrimSpace(secretID) == "" {
		return nil, errors.New("secretstore: secret id is required")
	}
	return &TokenProvider{api: api, secretID: secretID}, nil
}

// Token returns the cached token, fetching from Secrets Manager on the
// first call or after Invalidate.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" {
		return p.token, nil
	}
	token, err := p.fetch(ctx)
	if err != nil {
		return "", err
	}
	p.token = token
	return token, nil
}

// Invalidate drops the cached token. The next Token call re-fetches;
// callers do this after FitCloud rejects the token as expired.
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	p.token = ""
	p.mu.Unlock()
}

func (p *TokenProvider) fetch(ctx context.Context) (string, error) {
	out, err := p.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(p.secretID),
	})
	if err != nil {
		return "", fault.Wrap(fault.KindUpstreamConnection, err, "secret fetch failed: %s", p.secretID)
	}
	if out.SecretString == nil || *out.SecretString == "" {
		return "", fault.New(fault.KindUpstreamAuth, "secret %s has no string value", p.secretID)
	}

	var fields map[string]string
	if err := json.Unmarshal([]byte(*out.SecretString), &fields); err != nil {
		return "", fault.Wrap(fault.KindUpstreamAuth, err, "secret %s is not a JSON object", p.secretID)
	}
	token := strings.TrimSpace(fields[TokenKey])
	if token == "" {
		return "", fault.New(fault.KindUpstreamAuth, "secret %s is missing %s", p.secretID, TokenKey)
	}
	return token, nil
}
