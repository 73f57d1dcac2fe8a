package covalent_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TanushreeHiremath/wallet-risk-scoring/pkg/covalent"
)

const testWallet = "0x1111111111111111111111111111111111111111"

func newTestClient(t *testing.T, server *httptest.Server, opts ...covalent.Option) *covalent.Client {
	t.Helper()

	opts = append([]covalent.Option{
		covalent.WithHTTPClient(server.Client()),
		covalent.WithBaseURL(server.URL),
		covalent.WithRetryInterval(time.Millisecond),
	}, opts...)

	client, err := covalent.NewClient("cqt_test", opts...)
	require.NoError(t, err)
	return client
}

func writeBody(t *testing.T, w http.ResponseWriter, status int, body string) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write([]byte(body))
	require.NoError(t, err)
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := covalent.NewClient("  ")
	assert.ErrorIs(t, err, covalent.ErrMissingAPIKey)
}

func TestNewClient_InvalidChain(t *testing.T) {
	_, err := covalent.NewClient("key", covalent.WithChainID(-1))
	assert.Error(t, err)
}

func TestTransactions_FiltersProtocolAndAuthenticates(t *testing.T) {
	t.Parallel()

	var gotAuth, gotPath, gotPageSize string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotPageSize = r.URL.Query().Get("page-size")
		writeBody(t, w, http.StatusOK, `{
			"data": {"items": [
				{"tx_hash": "0x01", "to_address_label": "Compound: cUSDC", "log_events": [{"decoded": {"name": "Mint"}}]},
				{"tx_hash": "0x02", "to_address_label": "Uniswap", "log_events": []},
				{"tx_hash": "0x03", "log_events": [{"sender_name": "COMPOUND", "decoded": {"name": "Borrow"}}]}
			], "pagination": {"has_more": false}},
			"error": false
		}`)
	}))
	defer server.Close()

	client := newTestClient(t, server)

	items, err := client.Transactions(context.Background(), testWallet)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Contains(t, string(items[0]), "0x01")
	assert.Contains(t, string(items[1]), "0x03")

	assert.Equal(t, "Bearer cqt_test", gotAuth)
	assert.Equal(t, fmt.Sprintf("/v1/1/address/%s/transactions_v2/", testWallet), gotPath)
	assert.Equal(t, "10000", gotPageSize)
}

func TestTransactions_NoProtocolFilter(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeBody(t, w, http.StatusOK, `{"data": {"items": [{"a": 1}, {"b": 2}]}, "error": false}`)
	}))
	defer server.Close()

	client := newTestClient(t, server, covalent.WithProtocol(""), covalent.WithChainID(137))
	assert.Equal(t, 137, client.ChainID())

	items, err := client.Transactions(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestTransactions_FollowsPagination(t *testing.T) {
	t.Parallel()

	var pages []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page-number")
		pages = append(pages, page)
		hasMore := page != "2"
		writeBody(t, w, http.StatusOK, fmt.Sprintf(
			`{"data": {"items": [{"page": %s}], "pagination": {"has_more": %t}}, "error": false}`, page, hasMore))
	}))
	defer server.Close()

	client := newTestClient(t, server, covalent.WithProtocol(""), covalent.WithMaxPages(5), covalent.WithPageSize(1))

	items, err := client.Transactions(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.Equal(t, []string{"0", "1", "2"}, pages)
}

func TestTransactions_MaxPagesLimit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeBody(t, w, http.StatusOK, `{"data": {"items": [{"x": 1}], "pagination": {"has_more": true}}, "error": false}`)
	}))
	defer server.Close()

	client := newTestClient(t, server, covalent.WithProtocol(""))

	items, err := client.Transactions(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTransactions_NoData(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeBody(t, w, http.StatusOK, `{"data": null, "error": false}`)
	}))
	defer server.Close()

	items, err := newTestClient(t, server).Transactions(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestTransactions_EnvelopeError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeBody(t, w, http.StatusOK, `{"data": null, "error": true, "error_message": "Malformed address", "error_code": 400}`)
	}))
	defer server.Close()

	_, err := newTestClient(t, server).Transactions(context.Background(), testWallet)
	var apiErr *covalent.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Equal(t, "Malformed address", apiErr.Message)
}

func TestTransactions_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeBody(t, w, http.StatusServiceUnavailable, `{"error": true, "error_message": "busy"}`)
			return
		}
		writeBody(t, w, http.StatusOK, `{"data": {"items": [{"compound": "borrow"}]}, "error": false}`)
	}))
	defer server.Close()

	items, err := newTestClient(t, server).Transactions(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestTransactions_GivesUpAfterRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeBody(t, w, http.StatusTooManyRequests, `{"error": true, "error_message": "slow down"}`)
	}))
	defer server.Close()

	_, err := newTestClient(t, server).Transactions(context.Background(), testWallet)
	var apiErr *covalent.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, int32(4), calls.Load())
}

func TestTransactions_ClientErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeBody(t, w, http.StatusUnauthorized, `{"error": true, "error_message": "Invalid API key"}`)
	}))
	defer server.Close()

	_, err := newTestClient(t, server).Transactions(context.Background(), testWallet)
	var apiErr *covalent.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid API key", apiErr.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTransactions_EmptyWallet(t *testing.T) {
	client, err := covalent.NewClient("key")
	require.NoError(t, err)

	_, err = client.Transactions(context.Background(), " ")
	assert.Error(t, err)
}
