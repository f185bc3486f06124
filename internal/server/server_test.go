package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/luminos-app/agentcore/internal/auth"
	"github.com/luminos-app/agentcore/internal/registry"
	"github.com/luminos-app/agentcore/internal/storage"
	"github.com/luminos-app/agentcore/internal/trust"
	"go.uber.org/zap"
)

const testAPIKey = "agk_test_key_0001"

type captureWriter struct {
	mu     sync.Mutex
	events []*storage.ActionEvent
}

func (w *captureWriter) Write(event *storage.ActionEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, event)
}

func (w *captureWriter) Close() {}

func (w *captureWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.events)
}

type testEnv struct {
	server *httptest.Server
	writer *captureWriter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	writer := &captureWriter{}
	deps := &Dependencies{
		Registry: registry.New(logger),
		Writer:   writer,
		Auth:     auth.NewStaticAuthenticator(),
		Logger:   logger,
	}
	srv := httptest.NewServer(NewRouter(deps))
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, writer: writer}
}

// do sends an authenticated JSON request and decodes the response into out
// (skipped when out is nil). Returns the status code.
func (e *testEnv) do(t *testing.T, method, path string, body, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// newFeatureBackend runs a fake feature service whose execute endpoint
// returns the given result and counts invocations.
func newFeatureBackend(t *testing.T, result registry.ActionResult, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /execute", func(w http.ResponseWriter, r *http.Request) {
		var req webhookExecuteReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad execute payload: %v", err)
		}
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	})
	mux.HandleFunc("GET /context", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "3 new stories from friends")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (e *testEnv) registerFeedPage(t *testing.T, backend *httptest.Server) {
	t.Helper()
	status := e.do(t, http.MethodPost, "/v1/pages", RegisterPageReq{
		PageID: "feed",
		Name:   "Feed",
		Actions: []WebhookActionDef{
			{
				ID:       "feed.like",
				Label:    "Like a story",
				Category: trust.CategorySocial,
				Parameters: []registry.ActionParameter{
					{Name: "storyId", Type: registry.ParameterString, Required: true},
				},
				ExecuteURL: backend.URL + "/execute",
			},
		},
		ContextURL: backend.URL + "/context",
	}, nil)
	if status != http.StatusCreated {
		t.Fatalf("register page: status %d", status)
	}
}

func proposeLike(userID string) ProposeActionReq {
	return ProposeActionReq{
		UserID:     userID,
		ToolName:   "feed.like",
		ToolCallID: "call-1",
		Label:      "Like a story",
		Params:     map[string]any{"storyId": "story-42"},
	}
}

func TestServer_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/v1/capabilities")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestServer_HealthzIsPublic(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestServer_ProposeApproveFlow(t *testing.T) {
	env := newTestEnv(t)
	var calls atomic.Int64
	backend := newFeatureBackend(t, registry.ActionResult{Success: true, Message: "Story liked! ❤️"}, &calls)
	env.registerFeedPage(t, backend)

	var proposed ActionResp
	status := env.do(t, http.MethodPost, "/v1/actions", proposeLike("user-1"), &proposed)
	if status != http.StatusAccepted {
		t.Fatalf("propose status = %d, want 202", status)
	}
	if proposed.Status != "proposed" {
		t.Fatalf("action status = %s, want proposed", proposed.Status)
	}
	if calls.Load() != 0 {
		t.Fatal("nothing may execute before approval")
	}

	var approved ActionResp
	status = env.do(t, http.MethodPost, "/v1/actions/"+proposed.ActionID+"/approve",
		ApproveActionReq{UserID: "user-1"}, &approved)
	if status != http.StatusOK {
		t.Fatalf("approve status = %d, want 200", status)
	}
	if approved.Status != "executed" {
		t.Fatalf("action status = %s, want executed", approved.Status)
	}
	if approved.Result == nil || approved.Result.Message != "Story liked! ❤️" {
		t.Fatalf("unexpected result: %+v", approved.Result)
	}
	if calls.Load() != 1 {
		t.Fatalf("webhook called %d times, want 1", calls.Load())
	}
	if env.writer.count() != 1 {
		t.Fatalf("audit entries = %d, want 1", env.writer.count())
	}

	// The confirmation was consumed: a second approve finds nothing.
	status = env.do(t, http.MethodPost, "/v1/actions/"+proposed.ActionID+"/approve",
		ApproveActionReq{UserID: "user-1"}, nil)
	if status != http.StatusNotFound {
		t.Fatalf("replayed approve status = %d, want 404", status)
	}
}

func TestServer_DenyFlow(t *testing.T) {
	env := newTestEnv(t)
	var calls atomic.Int64
	backend := newFeatureBackend(t, registry.ActionResult{Success: true, Message: "ok"}, &calls)
	env.registerFeedPage(t, backend)

	var proposed ActionResp
	env.do(t, http.MethodPost, "/v1/actions", proposeLike("user-1"), &proposed)

	var denied ActionResp
	status := env.do(t, http.MethodPost, "/v1/actions/"+proposed.ActionID+"/deny",
		DenyActionReq{UserID: "user-1"}, &denied)
	if status != http.StatusOK {
		t.Fatalf("deny status = %d, want 200", status)
	}
	if denied.Status != "denied" {
		t.Fatalf("action status = %s, want denied", denied.Status)
	}
	if calls.Load() != 0 {
		t.Fatal("denied action reached the webhook")
	}
}

func TestServer_AutoTrustExecutesInline(t *testing.T) {
	env := newTestEnv(t)
	var calls atomic.Int64
	backend := newFeatureBackend(t, registry.ActionResult{Success: true, Message: "Story liked! ❤️"}, &calls)
	env.registerFeedPage(t, backend)

	status := env.do(t, http.MethodPut, "/v1/trust",
		UpdateTrustReq{UserID: "user-1", Category: "social", Level: "auto"}, nil)
	if status != http.StatusOK {
		t.Fatalf("trust update status = %d", status)
	}

	var resp ActionResp
	status = env.do(t, http.MethodPost, "/v1/actions", proposeLike("user-1"), &resp)
	if status != http.StatusOK {
		t.Fatalf("propose status = %d, want 200 for auto-trusted", status)
	}
	if resp.Status != "executed" {
		t.Fatalf("action status = %s, want executed", resp.Status)
	}
	if calls.Load() != 1 {
		t.Fatal("auto-trusted action should have executed inline")
	}
}

func TestServer_TrustIsPerUser(t *testing.T) {
	env := newTestEnv(t)
	var calls atomic.Int64
	backend := newFeatureBackend(t, registry.ActionResult{Success: true, Message: "ok"}, &calls)
	env.registerFeedPage(t, backend)

	env.do(t, http.MethodPut, "/v1/trust",
		UpdateTrustReq{UserID: "alice", Category: "social", Level: "auto"}, nil)

	// Bob still needs confirmation.
	var resp ActionResp
	status := env.do(t, http.MethodPost, "/v1/actions", proposeLike("bob"), &resp)
	if status != http.StatusAccepted || resp.Status != "proposed" {
		t.Fatalf("bob got alice's trust: status=%d action=%s", status, resp.Status)
	}
}

func TestServer_ProposeValidatesParams(t *testing.T) {
	env := newTestEnv(t)
	var calls atomic.Int64
	backend := newFeatureBackend(t, registry.ActionResult{Success: true, Message: "ok"}, &calls)
	env.registerFeedPage(t, backend)

	req := proposeLike("user-1")
	req.Params = map[string]any{"storyId": 42}
	status := env.do(t, http.MethodPost, "/v1/actions", req, nil)
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 for a type violation", status)
	}

	req.Params = nil
	status = env.do(t, http.MethodPost, "/v1/actions", req, nil)
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 for missing required param", status)
	}
}

func TestServer_ProposeRequiredFields(t *testing.T) {
	env := newTestEnv(t)

	status := env.do(t, http.MethodPost, "/v1/actions",
		ProposeActionReq{ToolName: "feed.like", ToolCallID: "call-1"}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 without user_id", status)
	}
}

func TestServer_DropSessionResetsTrust(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPut, "/v1/trust",
		UpdateTrustReq{UserID: "user-1", Category: "social", Level: "auto"}, nil)

	var before TrustResp
	env.do(t, http.MethodGet, "/v1/trust?user_id=user-1", nil, &before)
	if before.Settings["social"] != "auto" {
		t.Fatal("precondition: social elevated")
	}

	status := env.do(t, http.MethodDelete, "/v1/sessions/user-1", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("drop session status = %d, want 200", status)
	}

	// No local cache is configured, so the next request starts a fresh
	// session with ask-everything defaults.
	var after TrustResp
	env.do(t, http.MethodGet, "/v1/trust?user_id=user-1", nil, &after)
	if after.Settings["social"] != "ask" {
		t.Fatalf("social = %s after logout, want ask", after.Settings["social"])
	}

	status = env.do(t, http.MethodDelete, "/v1/sessions/ghost", nil, nil)
	if status != http.StatusNotFound {
		t.Fatalf("drop unknown session status = %d, want 404", status)
	}
}

func TestServer_TrustEndpoints(t *testing.T) {
	env := newTestEnv(t)

	var initial TrustResp
	status := env.do(t, http.MethodGet, "/v1/trust?user_id=user-1", nil, &initial)
	if status != http.StatusOK {
		t.Fatalf("get trust status = %d", status)
	}
	if len(initial.Settings) != len(trust.Categories) {
		t.Fatalf("settings has %d categories, want %d", len(initial.Settings), len(trust.Categories))
	}
	for c, l := range initial.Settings {
		if l != "ask" {
			t.Fatalf("%s defaults to %s, want ask", c, l)
		}
	}

	var updated TrustResp
	env.do(t, http.MethodPut, "/v1/trust",
		UpdateTrustReq{UserID: "user-1", Category: "navigation", Level: "auto"}, &updated)
	if updated.Settings["navigation"] != "auto" {
		t.Fatalf("navigation = %s, want auto", updated.Settings["navigation"])
	}

	status = env.do(t, http.MethodPut, "/v1/trust",
		UpdateTrustReq{UserID: "user-1", Category: "telemetry", Level: "auto"}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("unknown category status = %d, want 400", status)
	}

	var revoked TrustResp
	env.do(t, http.MethodPost, "/v1/trust/revoke", RevokeTrustReq{UserID: "user-1"}, &revoked)
	if revoked.Settings["navigation"] != "ask" {
		t.Fatal("revoke should reset navigation to ask")
	}
}

func TestServer_PageLifecycle(t *testing.T) {
	env := newTestEnv(t)
	var calls atomic.Int64
	backend := newFeatureBackend(t, registry.ActionResult{Success: true, Message: "ok"}, &calls)
	env.registerFeedPage(t, backend)

	var capabilities TextResp
	env.do(t, http.MethodGet, "/v1/capabilities", nil, &capabilities)
	if !bytes.Contains([]byte(capabilities.Text), []byte("feed.like")) {
		t.Fatalf("capabilities missing feed.like:\n%s", capabilities.Text)
	}

	status := env.do(t, http.MethodPost, "/v1/pages/feed/activate", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("activate status = %d", status)
	}

	var context TextResp
	env.do(t, http.MethodGet, "/v1/context", nil, &context)
	if !bytes.Contains([]byte(context.Text), []byte("3 new stories from friends")) {
		t.Fatalf("context missing backend output:\n%s", context.Text)
	}

	status = env.do(t, http.MethodDelete, "/v1/pages/feed", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("unregister status = %d", status)
	}
	status = env.do(t, http.MethodDelete, "/v1/pages/feed", nil, nil)
	if status != http.StatusNotFound {
		t.Fatalf("second unregister status = %d, want 404", status)
	}

	// Proposals against the gone page fail softly as executed failures.
	var resp ActionResp
	status = env.do(t, http.MethodPost, "/v1/actions", func() ProposeActionReq {
		r := proposeLike("user-1")
		r.Category = trust.CategorySocial
		return r
	}(), &resp)
	if status != http.StatusAccepted {
		t.Fatalf("propose status = %d, want 202 (social still asks)", status)
	}
}

func TestServer_RegisterPageValidation(t *testing.T) {
	env := newTestEnv(t)

	status := env.do(t, http.MethodPost, "/v1/pages", RegisterPageReq{Name: "Feed"}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("missing page_id status = %d, want 400", status)
	}

	status = env.do(t, http.MethodPost, "/v1/pages", RegisterPageReq{
		PageID: "feed",
		Name:   "Feed",
		Actions: []WebhookActionDef{
			{ID: "feed.like", ExecuteURL: "not a url"},
		},
	}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("bad execute_url status = %d, want 400", status)
	}
}

func TestServer_UnknownToolFailsSoftly(t *testing.T) {
	env := newTestEnv(t)

	// No page registered; content_write defaults to ask, so the proposal
	// parks first, then fails on approval because nothing owns the tool.
	req := ProposeActionReq{
		UserID:     "user-1",
		ToolName:   "food.place_order",
		ToolCallID: "call-9",
	}
	var proposed ActionResp
	status := env.do(t, http.MethodPost, "/v1/actions", req, &proposed)
	if status != http.StatusAccepted {
		t.Fatalf("propose status = %d, want 202", status)
	}

	var approved ActionResp
	env.do(t, http.MethodPost, "/v1/actions/"+proposed.ActionID+"/approve",
		ApproveActionReq{UserID: "user-1"}, &approved)
	if approved.Status != "failed" {
		t.Fatalf("action status = %s, want failed", approved.Status)
	}
	if approved.Result == nil || approved.Result.Success {
		t.Fatalf("expected a failure result, got %+v", approved.Result)
	}
}
