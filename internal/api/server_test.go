package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-receptionist/internal/common/logger"
	"restaurant-receptionist/internal/models"
	"restaurant-receptionist/internal/receptionist"
	"restaurant-receptionist/internal/session"
)

type fakeReceptionist struct {
	turns   []receptionist.Turn
	started []string
	result  receptionist.TurnResult
	err     error
	known   map[string]bool
}

func (f *fakeReceptionist) StartSession(_ context.Context, id string, channel models.Channel, callerID string) receptionist.SessionInfo {
	if id == "" {
		id = "generated-id"
	}
	if channel == "" {
		channel = models.ChannelChat
	}
	f.started = append(f.started, id)
	return receptionist.SessionInfo{
		SessionID: id,
		Channel:   channel,
		CallerID:  callerID,
		Greeting:  "Thanks for calling Cedar Garden Lebanese Kitchen!",
		CreatedAt: time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC),
	}
}

func (f *fakeReceptionist) EndSession(_ context.Context, id string) bool {
	return f.known[id]
}

func (f *fakeReceptionist) HandleTurn(_ context.Context, turn receptionist.Turn) (receptionist.TurnResult, error) {
	f.turns = append(f.turns, turn)
	if f.err != nil {
		return receptionist.TurnResult{}, f.err
	}
	res := f.result
	res.SessionID = turn.SessionID
	return res, nil
}

func newTestServer(t *testing.T, f *fakeReceptionist, opts ...Option) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(f, logger.NewTestLogger(t), opts...).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func errorCode(body map[string]interface{}) string {
	e, _ := body["error"].(map[string]interface{})
	code, _ := e["code"].(string)
	return code
}

func TestStartSession(t *testing.T) {
	f := &fakeReceptionist{}
	srv := newTestServer(t, f)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantID     string
		wantChan   string
	}{
		{"empty body", "", http.StatusCreated, "generated-id", "chat"},
		{"explicit id and voice", `{"sessionId":"call-1","channel":"voice","callerId":"+12175550100"}`, http.StatusCreated, "call-1", "voice"},
		{"bad channel", `{"channel":"fax"}`, http.StatusBadRequest, "", ""},
		{"not json", `hello`, http.StatusBadRequest, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodPost, srv.URL+"/api/sessions", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus != http.StatusCreated {
				assert.Equal(t, "INVALID_REQUEST", errorCode(body))
				return
			}
			assert.Equal(t, tt.wantID, body["sessionId"])
			assert.Equal(t, tt.wantChan, body["channel"])
			assert.Contains(t, body["greeting"], "Cedar Garden")
		})
	}
}

func TestHandleTurn(t *testing.T) {
	f := &fakeReceptionist{result: receptionist.TurnResult{
		Reply:      "We're open 11 AM to 10 PM today.",
		Source:     "direct_fact.hours",
		Intent:     models.IntentHours,
		Confidence: 1,
		Provenance: models.ProvenanceRule,
	}}
	srv := newTestServer(t, f)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/sessions/abc/turns", `{"text":"what are your hours","callerId":"+12175550100"}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "abc", body["sessionId"])
	assert.Equal(t, "direct_fact.hours", body["source"])
	assert.Equal(t, "hours", body["intent"])
	require.Len(t, f.turns, 1)
	assert.Equal(t, "abc", f.turns[0].SessionID)
	assert.Equal(t, "+12175550100", f.turns[0].CallerID)
}

func TestHandleTurn_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"missing text", `{"channel":"chat"}`, nil, http.StatusBadRequest, "INVALID_REQUEST"},
		{"empty text", `{"text":""}`, nil, http.StatusBadRequest, "INVALID_REQUEST"},
		{"blank utterance", `{"text":"   "}`, receptionist.ErrEmptyUtterance, http.StatusBadRequest, "INVALID_REQUEST"},
		{"busy", `{"text":"hi"}`, fmt.Errorf("acquire: %w", session.ErrSessionBusy), http.StatusConflict, "SESSION_BUSY"},
		{"ended", `{"text":"hi"}`, fmt.Errorf("turn discarded: %w", session.ErrSessionEnded), http.StatusGone, "SESSION_ENDED"},
		{"unexpected", `{"text":"hi"}`, errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeReceptionist{err: tt.err})
			resp, body := do(t, http.MethodPost, srv.URL+"/api/sessions/abc/turns", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCode, errorCode(body))
		})
	}
}

func TestEndSession(t *testing.T) {
	srv := newTestServer(t, &fakeReceptionist{known: map[string]bool{"abc": true}})

	resp, body := do(t, http.MethodDelete, srv.URL+"/api/sessions/abc", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ended"])

	_, body = do(t, http.MethodDelete, srv.URL+"/api/sessions/missing", "")
	assert.Equal(t, false, body["ended"])
}

func TestHealthAndReady(t *testing.T) {
	var failing atomic.Bool
	srv := newTestServer(t, &fakeReceptionist{}, WithReadinessCheck("database", func(context.Context) error {
		if failing.Load() {
			return errors.New("connection refused")
		}
		return nil
	}))

	resp, body := do(t, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])

	resp, body = do(t, http.MethodGet, srv.URL+"/ready", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body["status"])

	failing.Store(true)
	resp, body = do(t, http.MethodGet, srv.URL+"/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "not_ready", body["status"])
	assert.Contains(t, body["failures"], "database")
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeReceptionist{})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t, &fakeReceptionist{})

	resp, _ := do(t, http.MethodGet, srv.URL+"/api/sessions/abc/turns", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
