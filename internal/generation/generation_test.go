package generation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-receptionist/internal/common/config"
	"restaurant-receptionist/internal/common/logger"
)

type stubClient struct {
	text  string
	err   error
	delay time.Duration
	calls int32
}

func (s *stubClient) Complete(ctx context.Context, req Request) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.delay > 0 {
		// ignores ctx on purpose
		time.Sleep(s.delay)
	}
	return s.text, s.err
}

func TestHTTPClient_Complete(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai/generate", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "  We open at 11am.  "})
	}))
	defer server.Close()

	client := NewHTTPClient(HTTPConfig{BaseURL: server.URL, APIKey: "secret", Timeout: time.Second}, logger.NewTestLogger(t))
	text, err := client.Complete(context.Background(), Request{Prompt: "hours?", System: "be brief", MaxTokens: 150, Temperature: 0.3})

	require.NoError(t, err)
	assert.Equal(t, "We open at 11am.", text)
	assert.Equal(t, "hours?", gotBody["prompt"])
	assert.Equal(t, "be brief", gotBody["system"])
	assert.Equal(t, float64(150), gotBody["max_tokens"])
}

func TestHTTPClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "quota",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			want: ErrQuota,
		},
		{
			name: "server error after retries",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			want: ErrUnavailable,
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("{not json"))
			},
			want: ErrMalformed,
		},
		{
			name: "empty text",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"text":"   "}`))
			},
			want: ErrMalformed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewHTTPClient(HTTPConfig{BaseURL: server.URL, MaxRetries: 1, Timeout: time.Second}, logger.NewNoOpLogger())
			_, err := client.Complete(context.Background(), Request{Prompt: "x"})
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestHTTPClient_RetriesThenSucceeds(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"text":"ok"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(HTTPConfig{BaseURL: server.URL, MaxRetries: 2, Timeout: time.Second}, logger.NewNoOpLogger())
	text, err := client.Complete(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestHTTPClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	client := NewHTTPClient(HTTPConfig{BaseURL: server.URL, Timeout: 5 * time.Second}, logger.NewNoOpLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestInvoke_Outcomes(t *testing.T) {
	tests := []struct {
		name   string
		client *stubClient
		want   Outcome
	}{
		{"success", &stubClient{text: "hi"}, OutcomeSuccess},
		{"quota", &stubClient{err: ErrQuota}, OutcomeQuota},
		{"malformed", &stubClient{err: ErrMalformed}, OutcomeMalformed},
		{"unavailable", &stubClient{err: ErrUnavailable}, OutcomeError},
		{"deadline", &stubClient{err: context.DeadlineExceeded}, OutcomeTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Invoke(context.Background(), tt.client, "test", Request{Timeout: time.Second})
			assert.Equal(t, tt.want, res.Outcome)
			assert.Equal(t, tt.want == OutcomeSuccess, res.OK())
		})
	}
}

func TestInvoke_TimesOutWhenClientIgnoresContext(t *testing.T) {
	slow := &stubClient{text: "late", delay: 500 * time.Millisecond}

	start := time.Now()
	res := Invoke(context.Background(), slow, "test", Request{Timeout: 30 * time.Millisecond})

	assert.Equal(t, OutcomeTimeout, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrTimeout)
	assert.Empty(t, res.Text)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestRateLimited(t *testing.T) {
	next := &stubClient{text: "ok"}
	limited := NewRateLimited(next, 0.001, 1)

	_, err := limited.Complete(context.Background(), Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = limited.Complete(ctx, Request{})
	assert.ErrorIs(t, err, ErrQuota)
	assert.Equal(t, int32(1), atomic.LoadInt32(&next.calls))
}

func TestNew_Providers(t *testing.T) {
	log := logger.NewNoOpLogger()

	c, err := New(context.Background(), config.GenAIConfig{Provider: "none"}, log)
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrUnavailable)

	c, err = New(context.Background(), config.GenAIConfig{Provider: "http"}, log)
	require.NoError(t, err)
	assert.IsType(t, Unconfigured{}, c)

	c, err = New(context.Background(), config.GenAIConfig{Provider: "http", BaseURL: "http://localhost:1", RateLimitRPS: 2, Burst: 1}, log)
	require.NoError(t, err)
	assert.IsType(t, &RateLimited{}, c)
}
