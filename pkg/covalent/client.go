package covalent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/TanushreeHiremath/wallet-risk-scoring/pkg/net"
	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultBaseURL is the Covalent API endpoint.
	DefaultBaseURL = "https://api.covalenthq.com"
	// DefaultChainID is Ethereum mainnet.
	DefaultChainID = 1
	// DefaultPageSize is the largest page the API serves.
	DefaultPageSize = 10000
	// DefaultMaxPages limits history to the most recent page.
	DefaultMaxPages = 1
	// DefaultProtocol is the keyword a transaction must mention to be kept.
	DefaultProtocol = "compound"

	maxRetries           = 3
	retryIntervalDefault = 500 * time.Millisecond
	errorBodyLimit       = 512
)

var (
	// ErrMissingAPIKey is returned when a client is created without a key.
	ErrMissingAPIKey = errors.New("covalent API key is required")

	errWalletRequired = errors.New("wallet address is required")
)

// APIError is a failure reported by the API, either as an HTTP status or as
// an error flag in the response envelope.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("covalent API error (status: %d): %s", e.StatusCode, e.Message)
}

// Client retrieves wallet transaction history from the Covalent API.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	chainID       int
	pageSize      int
	maxPages      int
	protocol      string
	retryInterval time.Duration
}

// Option configures a Client.
type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithChainID(id int) Option {
	return func(c *Client) { c.chainID = id }
}

func WithPageSize(n int) Option {
	return func(c *Client) { c.pageSize = n }
}

func WithMaxPages(n int) Option {
	return func(c *Client) { c.maxPages = n }
}

// WithProtocol sets the keyword filter. An empty keyword keeps every
// transaction.
func WithProtocol(keyword string) Option {
	return func(c *Client) { c.protocol = strings.ToLower(strings.TrimSpace(keyword)) }
}

// WithHTTPClient sets the base client used under the bearer auth wrapper.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryInterval sets the initial backoff between retries.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) { c.retryInterval = d }
}

// NewClient creates a client authenticated with apiKey.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}

	c := &Client{
		baseURL:       DefaultBaseURL,
		chainID:       DefaultChainID,
		pageSize:      DefaultPageSize,
		maxPages:      DefaultMaxPages,
		protocol:      DefaultProtocol,
		retryInterval: retryIntervalDefault,
	}
	for _, o := range opts {
		o(c)
	}

	if c.chainID <= 0 {
		return nil, fmt.Errorf("invalid chain id: %d", c.chainID)
	}
	if c.pageSize <= 0 {
		c.pageSize = DefaultPageSize
	}
	if c.maxPages <= 0 {
		c.maxPages = DefaultMaxPages
	}

	c.httpClient = net.GetBearerClient(context.Background(), c.httpClient, apiKey)
	return c, nil
}

// ChainID returns the network the client queries.
func (c *Client) ChainID() int {
	return c.chainID
}

type envelope struct {
	Data *struct {
		Items      []json.RawMessage `json:"items"`
		Pagination *struct {
			HasMore bool `json:"has_more"`
		} `json:"pagination"`
	} `json:"data"`
	Error        bool   `json:"error"`
	ErrorMessage string `json:"error_message"`
	ErrorCode    int    `json:"error_code"`
}

// Transactions returns the wallet's transactions that mention the client's
// protocol keyword, as raw JSON records.
func (c *Client) Transactions(ctx context.Context, wallet string) ([]json.RawMessage, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return nil, errWalletRequired
	}

	list := make([]json.RawMessage, 0)
	for page := 0; page < c.maxPages; page++ {
		env, err := c.getPage(ctx, wallet, page)
		if err != nil {
			return nil, fmt.Errorf("error getting page %d for %s: %w", page, wallet, err)
		}
		if env.Data == nil {
			break
		}

		for _, item := range env.Data.Items {
			if c.matchesProtocol(item) {
				list = append(list, item)
			}
		}

		slog.Debug("transactions page",
			"wallet", wallet,
			"page", page,
			"items", len(env.Data.Items),
			"kept", len(list),
		)

		if env.Data.Pagination == nil || !env.Data.Pagination.HasMore {
			break
		}
	}

	return list, nil
}

func (c *Client) matchesProtocol(item json.RawMessage) bool {
	if c.protocol == "" {
		return true
	}
	return bytes.Contains(bytes.ToLower(item), []byte(c.protocol))
}

func (c *Client) pageURL(wallet string, page int) string {
	q := url.Values{}
	q.Set("page-size", fmt.Sprint(c.pageSize))
	q.Set("page-number", fmt.Sprint(page))
	return fmt.Sprintf("%s/v1/%d/address/%s/transactions_v2/?%s",
		c.baseURL, c.chainID, url.PathEscape(wallet), q.Encode())
}

func (c *Client) getPage(ctx context.Context, wallet string, page int) (*envelope, error) {
	u := c.pageURL(wallet, page)

	var env *envelope
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("making request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			net.PrintHTTPResponse(resp)
			apiErr := &APIError{StatusCode: resp.StatusCode, Message: readErrorBody(resp.Body)}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}

		var e envelope
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding response: %w", err))
		}
		if e.Error {
			return backoff.Permanent(&APIError{StatusCode: e.ErrorCode, Message: e.ErrorMessage})
		}
		env = &e
		return nil
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.retryInterval
	b := backoff.WithContext(backoff.WithMaxRetries(exp, maxRetries), ctx)

	notify := func(err error, wait time.Duration) {
		slog.Warn("retrying transactions request", "wallet", wallet, "page", page, "wait", wait.String(), "error", err)
	}

	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return env, nil
}

func readErrorBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, errorBodyLimit))
	if err != nil {
		return ""
	}
	var e envelope
	if json.Unmarshal(b, &e) == nil && e.ErrorMessage != "" {
		return e.ErrorMessage
	}
	return strings.TrimSpace(string(b))
}
