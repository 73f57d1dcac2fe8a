package net

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const (
	maxIdleConns        = 10
	idleTimeoutSeconds  = 60
	timeoutDefault      = 60 * time.Second
	clientAgent         = "walletrisk/1.0 (+https://github.com/TanushreeHiremath/wallet-risk-scoring)"
	bearerTokenType     = "Bearer"
	userAgentHeaderName = "User-Agent"
)

// GetHTTPClient returns a client with the shared transport. A zero timeout
// uses the default.
func GetHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = timeoutDefault
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &agentTransport{
			base: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConns:          maxIdleConns,
				IdleConnTimeout:       idleTimeoutSeconds * time.Second,
				ResponseHeaderTimeout: timeout,
			},
		},
	}
}

// GetBearerClient wraps base so every request carries the token as a
// bearer Authorization header.
func GetBearerClient(ctx context.Context, base *http.Client, token string) *http.Client {
	if base == nil {
		base = GetHTTPClient(0)
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{
			TokenType:   bearerTokenType,
			AccessToken: token,
		},
	)
	c := oauth2.NewClient(ctx, ts)
	c.Timeout = base.Timeout
	return c
}

type agentTransport struct {
	base http.RoundTripper
}

func (t *agentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if r.Header.Get(userAgentHeaderName) == "" {
		r.Header.Set(userAgentHeaderName, clientAgent)
	}
	return t.base.RoundTrip(r)
}
