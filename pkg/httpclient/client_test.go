package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCollector struct {
	requests int
	errors   int
	statuses []int
}

func (c *countingCollector) RecordRequestDuration(method, path string, statusCode int, duration time.Duration) {
}

func (c *countingCollector) RecordRequestCount(method, path string, statusCode int) {
	c.requests++
	c.statuses = append(c.statuses, statusCode)
}

func (c *countingCollector) RecordRequestError(method, path string) {
	c.errors++
}

func TestHTTPClient_Headers(t *testing.T) {
	t.Run("sends JSON headers and bearer token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			w.Write([]byte(`{"ok":true}`))
		}))
		defer server.Close()

		client := NewHTTPClient(WithBaseURL(server.URL+"/"), WithBearerToken("secret"))
		body, err := client.Get(context.Background(), "ping")
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, string(body))
	})

	t.Run("omits authorization without a token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.Header.Get("Authorization"))
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		client := NewHTTPClient(WithBaseURL(server.URL), WithBearerToken(""))
		_, err := client.Get(context.Background(), "/ping")
		require.NoError(t, err)
	})
}

func TestHTTPClient_QueryAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, []string{"a", "b"}, r.URL.Query()["ids"])

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "value", payload["key"])
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewHTTPClient(WithBaseURL(server.URL))
	_, err := client.Post(context.Background(), "/echo", map[string]string{"key": "value"},
		WithQueryParam("ids", "a"), WithQueryParam("ids", "b"))
	require.NoError(t, err)
}

func TestHTTPClient_Errors(t *testing.T) {
	t.Run("non-2xx returns HTTPError with status and body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("bad mint"))
		}))
		defer server.Close()

		collector := &countingCollector{}
		client := NewHTTPClient(WithBaseURL(server.URL), WithMetricsCollector(collector))
		_, err := client.Get(context.Background(), "/quote")
		require.Error(t, err)

		var httpErr *HTTPError
		require.True(t, errors.As(err, &httpErr))
		assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
		assert.Equal(t, "bad mint", httpErr.Body)
		assert.Contains(t, err.Error(), "400")
		assert.Contains(t, err.Error(), "bad mint")
		assert.Equal(t, 1, collector.requests)
		assert.Equal(t, 1, collector.errors)
		assert.Equal(t, []int{http.StatusBadRequest}, collector.statuses)
	})

	t.Run("transport failure is wrapped", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		client := NewHTTPClient(WithBaseURL(url))
		_, err := client.Get(context.Background(), "/quote")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "http request failed")

		var httpErr *HTTPError
		assert.False(t, errors.As(err, &httpErr))
	})
}

func TestHTTPClient_Retry(t *testing.T) {
	t.Run("no retry by default", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := NewHTTPClient(WithBaseURL(server.URL))
		_, err := client.Get(context.Background(), "/quote")
		require.Error(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("bounded retry recovers from a transient status", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`{"ok":true}`))
		}))
		defer server.Close()

		retry := DefaultRetryConfig()
		retry.InitialInterval = time.Millisecond
		client := NewHTTPClient(WithBaseURL(server.URL), WithRetryConfig(retry))
		body, err := client.Get(context.Background(), "/quote")
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, string(body))
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		retry := DefaultRetryConfig()
		retry.InitialInterval = time.Millisecond
		client := NewHTTPClient(WithBaseURL(server.URL), WithRetryConfig(retry))
		_, err := client.Get(context.Background(), "/missing")

		var httpErr *HTTPError
		require.True(t, errors.As(err, &httpErr))
		assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})
}

func TestDecodeJSON(t *testing.T) {
	var out map[string]any
	require.NoError(t, DecodeJSON([]byte(`{"amount": 1500000000}`), &out))
	assert.Equal(t, json.Number("1500000000"), out["amount"])

	err := DecodeJSON([]byte(`not json`), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")

	for _, body := range []string{`{"a":1} not json`, `{"a":1}{"b":2}`, `{"a":1} 7`} {
		err := DecodeJSON([]byte(body), &out)
		require.Error(t, err, body)
		assert.Contains(t, err.Error(), "unexpected data after JSON value")
	}

	require.NoError(t, DecodeJSON([]byte("{\"a\":1}\n  "), &out))
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestHTTPClient_RetryDoesNotCarryStatus(t *testing.T) {
	var calls int
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		if calls == 1 {
			return &http.Response{
				StatusCode: http.StatusServiceUnavailable,
				Status:     "503 Service Unavailable",
				Body:       io.NopCloser(strings.NewReader("busy")),
				Header:     make(http.Header),
				Request:    req,
			}, nil
		}
		return nil, errors.New("connection reset")
	})

	retry := DefaultRetryConfig()
	retry.InitialInterval = time.Millisecond
	collector := &countingCollector{}
	client := NewHTTPClient(
		WithBaseURL("http://agentdex.test"),
		WithTransport(transport),
		WithRetryConfig(retry),
		WithMetricsCollector(collector),
	)

	_, err := client.Get(context.Background(), "/quote")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, 2, calls)
	assert.Equal(t, []int{0}, collector.statuses)
	assert.Equal(t, 1, collector.errors)
}

func TestHTTPClient_HeaderOptions(t *testing.T) {
	var seen http.Header
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		seen = req.Header.Clone()
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{}`)),
			Header:     make(http.Header),
			Request:    req,
		}, nil
	})

	client := NewHTTPClient(
		WithBaseURL("http://agentdex.test"),
		WithTransport(transport),
		WithDefaultHeader("User-Agent", "agentdex-test"),
	)

	_, err := client.Get(context.Background(), "/prices", WithHeader("Cache-Control", "no-cache"))
	require.NoError(t, err)
	assert.Equal(t, "agentdex-test", seen.Get("User-Agent"))
	assert.Equal(t, "no-cache", seen.Get("Cache-Control"))
	assert.Equal(t, "application/json", seen.Get("Accept"))
}
