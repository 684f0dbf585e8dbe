package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/perkscan/benefit-radar/internal/llm"
	"github.com/stretchr/testify/require"
)

func generateHandler(t *testing.T, respond func(w http.ResponseWriter, calls int64)) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/generate", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, false, req["stream"])

		respond(w, calls.Add(1))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestGenerateSuccess(t *testing.T) {
	srv, calls := generateHandler(t, func(w http.ResponseWriter, _ int64) {
		json.NewEncoder(w).Encode(map[string]string{"response": `[{"title": "x"}]`})
	})

	client := &llm.Client{BaseURL: srv.URL, Model: "test-model"}
	out, err := client.Generate(context.Background(), "prompt", llm.GenerateParams{MaxTokens: 64})
	require.NoError(t, err)
	require.Equal(t, `[{"title": "x"}]`, out)
	require.Equal(t, int64(1), calls.Load())
}

func TestGenerateRetriesThenSucceeds(t *testing.T) {
	srv, calls := generateHandler(t, func(w http.ResponseWriter, n int64) {
		if n < 3 {
			http.Error(w, "busy", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"response": "ok"})
	})

	client := &llm.Client{
		BaseURL:      srv.URL,
		Model:        "test-model",
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}

	out, err := client.Generate(context.Background(), "prompt", llm.GenerateParams{})
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.Equal(t, int64(3), calls.Load())
}

func TestGenerateExhaustsRetries(t *testing.T) {
	srv, calls := generateHandler(t, func(w http.ResponseWriter, _ int64) {
		http.Error(w, "busy", http.StatusInternalServerError)
	})

	client := &llm.Client{
		BaseURL:      srv.URL,
		Model:        "test-model",
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}

	_, err := client.Generate(context.Background(), "prompt", llm.GenerateParams{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "after 3 attempts")
	require.Equal(t, int64(3), calls.Load())
}

func TestGenerateFailsFastWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	client := &llm.Client{
		BaseURL:      addr,
		Model:        "test-model",
		MaxRetries:   5,
		RetryBackoff: time.Millisecond,
	}

	start := time.Now()
	_, err := client.Generate(context.Background(), "prompt", llm.GenerateParams{})
	require.ErrorIs(t, err, llm.ErrModelUnavailable)
	// No backoff sequence: an unreachable backend is not retried.
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestGenerateTimeoutClassification(t *testing.T) {
	srv, _ := generateHandler(t, func(w http.ResponseWriter, _ int64) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]string{"response": "too late"})
	})

	client := &llm.Client{
		BaseURL:      srv.URL,
		Model:        "test-model",
		Timeout:      20 * time.Millisecond,
		RetryBackoff: time.Millisecond,
	}

	_, err := client.Generate(context.Background(), "prompt", llm.GenerateParams{})
	require.ErrorIs(t, err, llm.ErrModelTimeout)
}

func TestGenerateModelErrorField(t *testing.T) {
	srv, _ := generateHandler(t, func(w http.ResponseWriter, _ int64) {
		json.NewEncoder(w).Encode(map[string]string{"error": "model not found"})
	})

	client := &llm.Client{BaseURL: srv.URL, Model: "missing", RetryBackoff: time.Millisecond}
	_, err := client.Generate(context.Background(), "prompt", llm.GenerateParams{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "model not found")
}

func TestGenerateHoldsGateAcrossCall(t *testing.T) {
	gate := llm.NewGate(1)
	srv, _ := generateHandler(t, func(w http.ResponseWriter, _ int64) {
		json.NewEncoder(w).Encode(map[string]string{"response": "ok"})
	})

	client := &llm.Client{BaseURL: srv.URL, Model: "test-model", Gate: gate}
	_, err := client.Generate(context.Background(), "prompt", llm.GenerateParams{})
	require.NoError(t, err)
	require.Equal(t, 0, gate.InUse())
	require.Equal(t, 1, gate.Peak())
}

func TestGenerateRequiresConfiguration(t *testing.T) {
	client := &llm.Client{}
	_, err := client.Generate(context.Background(), "prompt", llm.GenerateParams{})
	require.Error(t, err)
}
