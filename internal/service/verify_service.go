package service

import (
	"context"
	"io"
	"net/http"
	"strings"

	"catalog-lens/internal/pkg/logger"
)

const (
	verifyModule = "Verifier"
	VerifyPath   = "/api/auth/verify"
)

type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

type tokenSourceKey struct{}

// WithTokenSource binds a request-scoped token source. Services that find one
// on the context use it instead of the source they were built with.
func WithTokenSource(ctx context.Context, tokens TokenSource) context.Context {
	return context.WithValue(ctx, tokenSourceKey{}, tokens)
}

func tokenFrom(ctx context.Context, fallback TokenSource) (string, bool) {
	if tokens, ok := ctx.Value(tokenSourceKey{}).(TokenSource); ok && tokens != nil {
		return tokens.Token(ctx)
	}
	if fallback == nil {
		return "", false
	}
	return fallback.Token(ctx)
}

// SessionVerifier asks the backend whether the held token is still valid.
// It never mutates local state and never returns an error: anything short of
// a 2xx answer is "not valid".
type SessionVerifier struct {
	baseURL string
	tokens  TokenSource
	client  *http.Client
	logger  logger.ILogger
}

func NewSessionVerifier(baseURL string, tokens TokenSource, client *http.Client, log logger.ILogger) *SessionVerifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &SessionVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		client:  client,
		logger:  log,
	}
}

func (v *SessionVerifier) Verify(ctx context.Context) bool {
	token, ok := tokenFrom(ctx, v.tokens)
	if !ok {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+VerifyPath, nil)
	if err != nil {
		v.logger.Error(verifyModule, "Failed to build verify request", map[string]interface{}{"error": err.Error()})
		return false
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Error(verifyModule, "Token verification request failed", map[string]interface{}{"error": err.Error()})
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	valid := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !valid {
		v.logger.Info(verifyModule, "Token rejected by backend", map[string]interface{}{"status": resp.StatusCode})
	}
	return valid
}
