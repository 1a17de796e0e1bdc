package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/herodotus/internal/agent"
	"github.com/rahul/herodotus/internal/app"
	"github.com/rahul/herodotus/internal/llm"
	"github.com/rahul/herodotus/internal/llm/llmtest"
	"github.com/rahul/herodotus/internal/store"
	"github.com/rahul/herodotus/pkg/config"
)

func newTestServer(t *testing.T, completer *llmtest.Completer) *httptest.Server {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Providers = map[string]config.ProviderConfig{
		"openai": {APIKey: "test-key", Model: "test-model", Enabled: true},
	}
	db, err := store.Open(filepath.Join(dir, "herodotus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := app.New(cfg, app.Deps{
		Completers: func(string, config.ProviderConfig) (llm.Completer, error) { return completer, nil },
		History:    store.NewHistoryStore(db),
		Workflows:  store.NewWorkflowStore(filepath.Join(dir, "workflows.json")),
	})
	ts := httptest.NewServer(New(svc, nil).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func call(t *testing.T, ts *httptest.Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestProcess(t *testing.T) {
	ts := newTestServer(t, llmtest.New("The Persian Wars."))

	code, out := call(t, ts, http.MethodPost, "/api/process",
		`{"task": "What are the Histories about?", "settings": {"agents": {"reasoning": true}}}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, "The Persian Wars.", out["result"])
	steps, ok := out["steps"].([]any)
	require.True(t, ok)
	assert.Len(t, steps, 1)
}

func TestProcess_ExplicitSteps(t *testing.T) {
	ts := newTestServer(t, llmtest.New("Solon visited Croesus."))

	code, out := call(t, ts, http.MethodPost, "/api/process",
		`{"task": "Who visited Croesus?", "settings": {"agents": {"reasoning": true}}, "steps": [{"agent": "reasoning", "task": "name the visitor"}]}`)
	require.Equal(t, http.StatusOK, code)
	steps := out["steps"].([]any)
	require.Len(t, steps, 1)
	assert.Equal(t, "name the visitor", steps[0].(map[string]any)["task"])

	code, _ = call(t, ts, http.MethodPost, "/api/process",
		`{"task": "t", "settings": {"agents": {"reasoning": true}}, "steps": [{"agent": "oracle", "task": "t"}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestProcess_BadRequests(t *testing.T) {
	ts := newTestServer(t, llmtest.New())

	for name, body := range map[string]string{
		"empty task":          `{"task": "  "}`,
		"malformed body":      `{"task":`,
		"invalid temperature": `{"task": "t", "settings": {"temperature": 9}}`,
	} {
		t.Run(name, func(t *testing.T) {
			code, out := call(t, ts, http.MethodPost, "/api/process", body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, "error", out["status"])
			assert.NotEmpty(t, out["message"])
		})
	}
}

func TestProcess_UnitFailureIsBadGateway(t *testing.T) {
	c := llmtest.New().Push(llmtest.Reply{Err: errors.New("upstream down")})
	ts := newTestServer(t, c)

	code, out := call(t, ts, http.MethodPost, "/api/process", `{"task": "t", "settings": {"agents": {"reasoning": true}}}`)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Contains(t, out["message"], "upstream down")
}

func TestWorkflowRoundTrip(t *testing.T) {
	ts := newTestServer(t, llmtest.New("draft", "polished"))

	code, out := call(t, ts, http.MethodPost, "/api/workflow",
		`{"name": "draft and polish", "steps": [{"agents": {"reasoning": true}}, {"agents": {"reasoning": true}, "reasoning_techniques": ["reflection"]}]}`)
	require.Equal(t, http.StatusCreated, code)
	wf := out["workflow"].(map[string]any)
	id := wf["id"].(string)
	require.NotEmpty(t, id)

	code, out = call(t, ts, http.MethodGet, "/api/workflow", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, out["workflows"], 1)

	code, out = call(t, ts, http.MethodPost, fmt.Sprintf("/api/workflow/%s/execute", id), `{"task": "describe Thermopylae"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "polished", out["result"])
	assert.Len(t, out["steps"], 2)

	code, _ = call(t, ts, http.MethodDelete, "/api/workflow/"+id, "")
	assert.Equal(t, http.StatusOK, code)

	code, out = call(t, ts, http.MethodGet, "/api/workflow", "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, out["workflows"])
}

func TestWorkflow_Errors(t *testing.T) {
	ts := newTestServer(t, llmtest.New())

	code, _ := call(t, ts, http.MethodPost, "/api/workflow", `{"name": "", "steps": []}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, ts, http.MethodPost, "/api/workflow", `{"name": "w", "steps": [{"top_p": 3}]}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, ts, http.MethodDelete, "/api/workflow/nope", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = call(t, ts, http.MethodPost, "/api/workflow/nope/execute", `{"task": "t"}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = call(t, ts, http.MethodPost, "/api/workflow/nope/execute", `{"task": ""}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStatus(t *testing.T) {
	ts := newTestServer(t, llmtest.New("ok"))

	_, _ = call(t, ts, http.MethodPost, "/api/process", `{"task": "t", "settings": {"agents": {"reasoning": true}}}`)
	code, out := call(t, ts, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, out["completed_pipelines"])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(&agent.PipelineError{Kind: agent.UnknownUnit, Err: agent.ErrNotFound}))
	assert.Equal(t, http.StatusBadRequest, StatusFor(fmt.Errorf("x: %w", app.ErrEmptyTask)))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(context.Canceled))
}
