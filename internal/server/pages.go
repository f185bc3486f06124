package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/luminos-app/agentcore/internal/registry"
	"github.com/luminos-app/agentcore/internal/trust"
)

const (
	webhookTimeout = 10 * time.Second
	contextTimeout = 2 * time.Second
	maxWebhookBody = 1 << 20 // 1 MiB
)

// handleRegisterPage registers (or replaces) a webhook-backed page. Each
// declared action executes by POSTing to its execute_url; the feature
// service answers with an ActionResult.
func (d *Dependencies) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	var req RegisterPageReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.PageID == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "page_id and name are required"})
		return
	}

	actions := make([]registry.ActionDefinition, 0, len(req.Actions))
	for _, a := range req.Actions {
		if a.ID == "" || a.ExecuteURL == "" {
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "every action needs an id and an execute_url"})
			return
		}
		if _, err := url.ParseRequestURI(a.ExecuteURL); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: fmt.Sprintf("action %s: invalid execute_url", a.ID)})
			return
		}
		category := a.Category
		if !category.Valid() {
			category = trust.ResolveCategory(a.ID)
		}
		actions = append(actions, registry.ActionDefinition{
			ID:                   a.ID,
			Label:                a.Label,
			Description:          a.Description,
			Category:             category,
			RequiresConfirmation: a.RequiresConfirmation,
			Parameters:           a.Parameters,
			Execute:              d.webhookExecutor(a.ID, a.ExecuteURL),
		})
	}

	page := &registry.PageRegistration{
		PageID:       req.PageID,
		Name:         req.Name,
		Capabilities: req.Capabilities,
		Actions:      actions,
	}
	if req.ContextURL != "" {
		page.GetContext = d.webhookContext(req.ContextURL)
	}

	d.Registry.Register(page)
	writeJSON(w, http.StatusCreated, PageResp{
		PageID:  page.PageID,
		Name:    page.Name,
		Actions: len(page.Actions),
	})
}

// handleUnregisterPage removes a page. Proposals referencing its actions
// resolve to not-found from here on, which the pipeline treats as a normal
// failure.
func (d *Dependencies) handleUnregisterPage(w http.ResponseWriter, r *http.Request) {
	pageID := r.PathValue("page_id")
	if d.Registry.Page(pageID) == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "No page with that id"})
		return
	}
	d.Registry.Unregister(pageID)
	writeJSON(w, http.StatusOK, map[string]string{"page_id": pageID, "status": "unregistered"})
}

// handleActivatePage marks a page as currently in view.
func (d *Dependencies) handleActivatePage(w http.ResponseWriter, r *http.Request) {
	pageID := r.PathValue("page_id")
	if d.Registry.Page(pageID) == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "No page with that id"})
		return
	}
	d.Registry.SetActive(pageID)
	writeJSON(w, http.StatusOK, map[string]string{"page_id": pageID, "status": "active"})
}

// webhookExecutor builds the ExecuteFunc for a webhook-backed action.
// Transport failures surface as errors and normalize to failed results in
// the pipeline; the feature reports business failures in the result body.
func (d *Dependencies) webhookExecutor(actionID, executeURL string) registry.ExecuteFunc {
	client := &http.Client{Timeout: webhookTimeout}

	return func(ctx context.Context, params map[string]any, userID string) (*registry.ActionResult, error) {
		body, err := json.Marshal(webhookExecuteReq{
			ActionID: actionID,
			UserID:   userID,
			Params:   params,
		})
		if err != nil {
			return nil, fmt.Errorf("webhook %s: marshal request: %w", actionID, err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, executeURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("webhook %s: build request: %w", actionID, err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("webhook %s: %w", actionID, err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("webhook %s: status %d", actionID, resp.StatusCode)
		}

		var result registry.ActionResult
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxWebhookBody)).Decode(&result); err != nil {
			return nil, fmt.Errorf("webhook %s: decode result: %w", actionID, err)
		}
		return &result, nil
	}
}

// webhookContext builds the ContextFunc for a page with a context_url.
// Kept on a short timeout: context building must never stall the pipeline.
func (d *Dependencies) webhookContext(contextURL string) registry.ContextFunc {
	client := &http.Client{Timeout: contextTimeout}

	return func() (string, error) {
		resp, err := client.Get(contextURL)
		if err != nil {
			return "", err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("context endpoint: status %d", resp.StatusCode)
		}
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxWebhookBody))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
