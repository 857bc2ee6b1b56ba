package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/auth"
	"github.com/BaSui01/mediaflow/types"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, Multiplier: 2.0}
}

func TestDoRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"output":{"task_id":"t-1"}}`))
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, zap.NewNop(), WithRetryPolicy(fastPolicy()))
	resp, err := c.Do(context.Background(), &Request{Method: http.MethodPost, URL: srv.URL, Body: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "t-1")
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"InvalidParameter"}`))
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, zap.NewNop(), WithRetryPolicy(fastPolicy()))
	resp, err := c.Do(context.Background(), &Request{Method: http.MethodPost, URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoReturnsLastTransientResponse(t *testing.T) {
	// Once retries are exhausted the caller still gets the response so
	// it can classify the failure itself.
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, zap.NewNop(), WithRetryPolicy(fastPolicy()))
	resp, err := c.Do(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoConnectionErrorExhaustsRetries(t *testing.T) {
	c := NewClient(time.Second, zap.NewNop(), WithRetryPolicy(fastPolicy()))
	_, err := c.Do(context.Background(), &Request{Method: http.MethodGet, URL: "http://127.0.0.1:1"})
	require.Error(t, err)
	assert.Equal(t, types.ErrProviderRejected, types.KindOf(err))
	assert.True(t, types.IsRetryable(err))
}

func TestDoAppliesAuthEveryAttempt(t *testing.T) {
	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Authorization"))
		if len(keys) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	strategy, err := auth.For(auth.KindBearer, auth.Credentials{APIKey: "sk-1"}, zap.NewNop())
	require.NoError(t, err)

	c := NewClient(5*time.Second, zap.NewNop(), WithRetryPolicy(fastPolicy()))
	_, err = c.Do(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL, Auth: strategy})
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "Bearer sk-1", keys[0])
	assert.Equal(t, "Bearer sk-1", keys[1])
}

func TestDoContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := NewClient(5*time.Second, zap.NewNop(), WithRetryPolicy(fastPolicy()))
	_, err := c.Do(ctx, &Request{Method: http.MethodGet, URL: srv.URL})
	require.Error(t, err)
	assert.Equal(t, types.ErrTimeout, types.KindOf(err))
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("tls: handshake failure")
}

func TestImpersonationFallsBackToPlainClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, zap.NewNop(),
		WithRetryPolicy(fastPolicy()),
		WithHTTPClients(srv.Client(), &http.Client{Transport: failingTransport{}}))

	resp, err := c.Do(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL, Impersonate: true})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
}

func TestStreamClassifiesChallengePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`<html><title>Just a moment...</title></html>`))
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, zap.NewNop(), WithRetryPolicy(fastPolicy()))
	_, err := c.Stream(context.Background(), &Request{Method: http.MethodPost, URL: srv.URL})
	require.Error(t, err)
	assert.Equal(t, types.ErrAuthChallenge, types.KindOf(err))
}

func TestStreamDeliversLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{\"progress\":10}\n{\"progress\":60}\n{\"videoUrl\":\"https://cdn/video.mp4\"}\n"))
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, zap.NewNop(), WithRetryPolicy(fastPolicy()))
	stream, err := c.Stream(context.Background(), &Request{Method: http.MethodPost, URL: srv.URL})
	require.NoError(t, err)
	defer stream.Close()

	var lines []string
	for {
		line, err := stream.Next()
		if err != nil {
			break
		}
		lines = append(lines, string(line))
	}
	require.Len(t, lines, 3)
	assert.Contains(t, lines[2], "videoUrl")
}
