package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domai "github.com/bryanwahyu/solidity-audit/internal/domain/ai"
)

const successBody = `{
  "id": "chatcmpl-test",
  "object": "chat.completion",
  "model": "gpt-4",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "**Security Vulnerabilities**\n- none"}, "finish_reason": "stop"}]
}`

const errorBody = `{"error": {"message": "boom", "type": "server_error"}}`

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{
		APIKey:      "test-key",
		BaseURL:     srv.URL + "/v1",
		Model:       "gpt-4",
		MaxAttempts: 3,
		CallTimeout: 5 * time.Second,
		RetryBase:   time.Millisecond,
	})
	require.NoError(t, err)
	return c, srv
}

func testRequest() domai.Request {
	return domai.Request{
		ContractName: "token.sol",
		CodeHash:     "abc123def456",
		Mode:         "detailed",
		System:       "auditor",
		User:         "audit this",
		MaxTokens:    1800,
	}
}

func TestNewClientMissingKey(t *testing.T) {
	_, err := NewClient(Options{})
	assert.ErrorIs(t, err, domai.ErrConfiguration)
}

func TestAnalyzeSuccess(t *testing.T) {
	var calls int32
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(successBody))
	})

	out, err := c.Analyze(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Contains(t, out, "Security Vulnerabilities")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestAnalyzeRetriesTransientFailures(t *testing.T) {
	var calls int32
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		if n <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(errorBody))
			return
		}
		w.Write([]byte(successBody))
	})

	out, err := c.Analyze(context.Background(), testRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestAnalyzeAuthFailureIsPermanent(t *testing.T) {
	var calls int32
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "invalid api key", "type": "invalid_request_error"}}`))
	})

	_, err := c.Analyze(context.Background(), testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, domai.ErrConfiguration)
	assert.NotErrorIs(t, err, domai.ErrAnalysisFailed)
	// no retry on auth failure
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestAnalyzeExhaustsRetries(t *testing.T) {
	var calls int32
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(errorBody))
	})

	_, err := c.Analyze(context.Background(), testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, domai.ErrAnalysisFailed)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestAnalyzeQuotaExceeded(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limit", "type": "insufficient_quota"}}`))
	})

	_, err := c.Analyze(context.Background(), testRequest())
	require.Error(t, err)
	// retried to exhaustion, last cause stays visible
	assert.ErrorIs(t, err, domai.ErrAnalysisFailed)
	assert.ErrorIs(t, err, domai.ErrQuotaExceeded)
}

func TestAnalyzeBadRequestNotRetried(t *testing.T) {
	var calls int32
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "context length exceeded", "type": "invalid_request_error"}}`))
	})

	_, err := c.Analyze(context.Background(), testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, domai.ErrAnalysisFailed)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
