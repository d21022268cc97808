// test/e2e/e2e_test.go
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"restaurant-receptionist/internal/api"
	"restaurant-receptionist/internal/app"
	"restaurant-receptionist/internal/common/config"
	"restaurant-receptionist/internal/common/logger"
	"restaurant-receptionist/internal/generation"
	"restaurant-receptionist/internal/receptionist"
)

const cateringAnswer = "Yes, we host birthday parties in our back room. Give us a call to plan the menu."

// scriptedLLM labels every fallback prompt general_question and answers
// everything else with cateringAnswer.
type scriptedLLM struct {
	mu    sync.Mutex
	calls int
}

func (s *scriptedLLM) Complete(ctx context.Context, req generation.Request) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if strings.HasSuffix(req.Prompt, "Label:") {
		return "general_question", nil
	}
	return cateringAnswer, nil
}

type stack struct {
	server *httptest.Server
	deps   *app.Dependencies
	app    *app.Application
}

// newStack runs the shipped config, business data and templates against a
// throwaway SQLite database.
func newStack(t *testing.T) stack {
	t.Helper()
	root := filepath.Join("..", "..")

	cfg, err := config.LoadFromFile(filepath.Join(root, "configs", "config.yaml"))
	require.NoError(t, err)
	cfg.Database.SQLite.Path = filepath.Join(t.TempDir(), "receptionist.db")
	cfg.Business.DataPath = filepath.Join(root, "data", "business_data.json")
	cfg.Business.TemplatesPath = filepath.Join(root, "data", "templates.yaml")
	cfg.Business.Timezone = "UTC"
	cfg.Cascade.RegistryPath = filepath.Join(t.TempDir(), "registry.json")

	ctx := context.Background()
	log := logger.NewTestLogger(t)

	deps, err := app.Connect(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	application, err := app.Build(ctx, cfg, deps, log, app.WithGenerationClient(&scriptedLLM{}))
	require.NoError(t, err)

	engine := receptionist.New(application.Sessions, application.Cascade, application.Responder, log,
		receptionist.WithTurnTimeout(config.GetDuration(cfg.Server.TurnTimeout)))
	server := httptest.NewServer(api.NewServer(engine, log, deps.ReadinessChecks()...).Handler())

	t.Cleanup(func() {
		server.Close()
		application.Sessions.Shutdown()
		application.Pipeline.Wait()
		deps.Close(zaptest.NewLogger(t))
	})
	return stack{server: server, deps: deps, app: application}
}

func (s stack) post(t *testing.T, path string, body interface{}) map[string]interface{} {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(s.server.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Less(t, resp.StatusCode, 300, "POST %s returned %d", path, resp.StatusCode)

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (s stack) say(t *testing.T, sessionID, text string) map[string]interface{} {
	t.Helper()
	return s.post(t, "/api/sessions/"+sessionID+"/turns", map[string]string{"text": text, "callerId": "+12175550100"})
}

func TestFullE2E(t *testing.T) {
	s := newStack(t)

	session := s.post(t, "/api/sessions", map[string]string{"channel": "voice"})
	id, _ := session["sessionId"].(string)
	require.NotEmpty(t, id)
	assert.Contains(t, session["greeting"], "Cedar Garden Lebanese Kitchen")

	t.Run("hours come straight from business data", func(t *testing.T) {
		res := s.say(t, id, "what time do you close on friday?")
		assert.Equal(t, "direct_fact.hours", res["source"])
		assert.Contains(t, res["reply"], "11pm")
	})

	t.Run("order is accumulated and committed", func(t *testing.T) {
		res := s.say(t, id, "can I get 2 chicken shawarma wraps and 1 baklava")
		assert.Equal(t, "accumulator.order", res["source"])

		res = s.say(t, id, "that's all")
		assert.Equal(t, true, res["committed"])
		confirmation, _ := res["confirmationId"].(string)
		assert.True(t, strings.HasPrefix(confirmation, "ORD-"), confirmation)

		var total int64
		require.NoError(t, s.deps.SQL().DB.QueryRow(
			`SELECT total_cents FROM orders WHERE id = $1`, confirmation,
		).Scan(&total))
		assert.Equal(t, int64(3700), total)
	})

	t.Run("reservation is confirmed before booking", func(t *testing.T) {
		res := s.say(t, id, "I'd like a table for 4 tomorrow at 7pm")
		assert.Equal(t, "accumulator.reservation", res["source"])
		assert.Contains(t, res["reply"], "Shall I book it?")

		res = s.say(t, id, "yes")
		assert.Equal(t, true, res["committed"])
		confirmation, _ := res["confirmationId"].(string)
		assert.True(t, strings.HasPrefix(confirmation, "RES-"), confirmation)

		var party int
		require.NoError(t, s.deps.SQL().DB.QueryRow(
			`SELECT party_size FROM reservations WHERE id = $1`, confirmation,
		).Scan(&party))
		assert.Equal(t, 4, party)
	})

	t.Run("open question falls through to generation", func(t *testing.T) {
		res := s.say(t, id, "can you host a birthday lunch for my mom")
		assert.Equal(t, "rag.generated", res["source"])
		assert.Equal(t, cateringAnswer, res["reply"])
		assert.Equal(t, "generative_fallback", res["provenance"])
	})

	t.Run("ending the session", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodDelete, s.server.URL+"/api/sessions/"+id, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		var out map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, true, out["ended"])
	})
}

func TestReadiness(t *testing.T) {
	s := newStack(t)

	resp, err := http.Get(s.server.URL + "/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
