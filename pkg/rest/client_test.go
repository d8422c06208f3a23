package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClient_Do(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/echo", r.URL.Path)
		require.Equal(t, "7", r.URL.Query().Get("n"))
		require.Equal(t, "secret", r.Header.Get("X-Api-Key"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": body["value"]})
	}))
	defer server.Close()

	client := New(server.URL, WithHeader("X-Api-Key", "secret"))

	var out struct {
		Echo string `json:"echo"`
	}
	err := client.Do(context.Background(), http.MethodPost, "/v1/echo", url.Values{"n": {"7"}},
		map[string]string{"value": "hello"}, &out)
	require.NoError(t, err)
	require.Equal(t, "hello", out.Echo)
}

func TestClient_RetriesTemporaryFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := New(server.URL, WithAttempts(3), WithBackoff(time.Millisecond, 5*time.Millisecond))
	require.NoError(t, client.Do(context.Background(), http.MethodGet, "/", nil, nil, nil))
	require.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad token", http.StatusBadRequest)
	}))
	defer server.Close()

	client := New(server.URL, WithBackoff(time.Millisecond, time.Millisecond))
	err := client.Do(context.Background(), http.MethodGet, "/", nil, nil, nil)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadRequest, statusErr.Code)
	require.Equal(t, "bad token", statusErr.Body)
	require.Equal(t, int32(1), calls.Load())
}
