package net

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPClient(t *testing.T) {
	client := GetHTTPClient(0)
	require.NotNil(t, client)
	assert.Equal(t, timeoutDefault, client.Timeout)

	client = GetHTTPClient(5 * time.Second)
	assert.Equal(t, 5*time.Second, client.Timeout)
}

func TestGetHTTPClient_SetsUserAgent(t *testing.T) {
	var agent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	resp, err := GetHTTPClient(0).Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, clientAgent, agent)
}

func TestGetBearerClient(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	client := GetBearerClient(context.Background(), GetHTTPClient(time.Second), "cqt_test")
	assert.Equal(t, time.Second, client.Timeout)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "Bearer cqt_test", auth)
}

func TestPrintHTTPResponse_Nil(t *testing.T) {
	// should not panic
	PrintHTTPResponse(nil)
}

func TestPrintHTTPResponse_WithResponse(t *testing.T) {
	resp := &http.Response{
		StatusCode: 200,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("{}")),
	}
	// should not panic
	PrintHTTPResponse(resp)
}
