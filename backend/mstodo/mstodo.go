// Package mstodo provides a provider implementation for the Microsoft Graph API To Do.
package mstodo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"done/backend"
	"done/internal/config"
	"done/internal/credentials"
	"done/internal/oauth"
	"done/internal/ratelimit"
	"done/internal/utils"
)

const (
	// DefaultBaseURL is the Microsoft Graph API base URL
	DefaultBaseURL = "https://graph.microsoft.com"
)

// Scopes are the delegated permissions requested at login.
var Scopes = []string{"Tasks.ReadWrite", "offline_access"}

// Config holds Microsoft To Do connection settings
type Config struct {
	ClientID     string
	ClientSecret string
	Tenant       string // default: "common"
	RedirectURL  string
	BaseURL      string          // Override for testing
	Endpoint     oauth2.Endpoint // Override for testing
	Credentials  *credentials.Manager
	Opener       oauth.Opener
	Stats        *ratelimit.Stats
}

// Provider implements backend.Provider using Microsoft Graph API To Do
type Provider struct {
	baseURL string
	flow    *oauth.Flow

	mu     sync.Mutex
	client *http.Client
}

// New creates a new Microsoft To Do provider
func New(cfg Config) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("microsoft client id is required")
	}
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("credential manager is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	tenant := cfg.Tenant
	if tenant == "" {
		tenant = "common"
	}
	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = microsoft.AzureADEndpoint(tenant)
	}

	// Graph throttles with 503 as well as 429, both carrying Retry-After.
	transport := ratelimit.NewTransport(ratelimit.Config{
		Service:  string(backend.ServiceMicrosoft),
		Statuses: []int{http.StatusTooManyRequests, http.StatusServiceUnavailable},
		Stats:    cfg.Stats,
		Jitter:   true,
	})

	opts := []oauth.Option{oauth.WithTransport(transport)}
	if cfg.Opener != nil {
		opts = append(opts, oauth.WithOpener(cfg.Opener))
	}

	flow := oauth.NewFlow(&oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     endpoint,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       Scopes,
	}, oauth.NewStore(cfg.Credentials, string(backend.ServiceMicrosoft)), opts...)

	return &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		flow:    flow,
	}, nil
}

// =============================================================================
// Authentication
// =============================================================================

// Login starts the browser based authorization-code flow. The token arrives
// later through HandleURIParams.
func (p *Provider) Login(ctx context.Context) error {
	if _, err := p.flow.Begin(ctx); err != nil {
		return backend.AuthError(backend.ServiceMicrosoft, "login", err)
	}
	return nil
}

// Logout forgets the stored token
func (p *Provider) Logout(ctx context.Context) error {
	p.resetClient()
	if err := p.flow.Logout(ctx); err != nil {
		return backend.AuthError(backend.ServiceMicrosoft, "logout", err)
	}
	return nil
}

// HandleURIParams completes the login with the redirect URI
func (p *Provider) HandleURIParams(ctx context.Context, uri *url.URL) error {
	if _, err := p.flow.Complete(ctx, uri); err != nil {
		return backend.AuthError(backend.ServiceMicrosoft, "handle redirect", err)
	}
	p.resetClient()
	utils.Infof("Logged in to Microsoft To Do")
	return nil
}

// Available reports whether a token is stored
func (p *Provider) Available() bool {
	return p.flow.Authorized()
}

// StreamSupport is true: task pages are streamed as they arrive
func (p *Provider) StreamSupport() bool { return true }

// Close releases idle connections
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.CloseIdleConnections()
		p.client = nil
	}
	return nil
}

func (p *Provider) resetClient() {
	_ = p.Close()
}

// httpClient returns the authenticated client, building it on first use
func (p *Provider) httpClient(ctx context.Context, op string) (*http.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	client, err := p.flow.Client(ctx)
	if err != nil {
		return nil, backend.AuthError(backend.ServiceMicrosoft, op, err)
	}
	p.client = client
	return client, nil
}

// doRequest performs an authenticated Microsoft Graph API request. path is
// either relative to the base URL or an absolute @odata.nextLink.
func (p *Provider) doRequest(ctx context.Context, op, method, path string, body interface{}) (*http.Response, error) {
	client, err := p.httpClient(ctx, op)
	if err != nil {
		return nil, err
	}

	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = p.baseURL + path
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", config.Info().UserAgent())

	resp, err := client.Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, backend.AuthError(backend.ServiceMicrosoft, op, err)
		}
		return nil, backend.TransportError(backend.ServiceMicrosoft, op, err)
	}
	return resp, nil
}

// decode checks the status and decodes the JSON body into out (if non-nil)
func decode(resp *http.Response, op, id string, out interface{}) error {
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return backend.AuthError(backend.ServiceMicrosoft, op, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return backend.NotFoundError(backend.ServiceMicrosoft, op, id)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return backend.TransportError(backend.ServiceMicrosoft, op,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backend.TransportError(backend.ServiceMicrosoft, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (p *Provider) call(ctx context.Context, op, id, method, path string, body, out interface{}) error {
	resp, err := p.doRequest(ctx, op, method, path, body)
	if err != nil {
		return err
	}
	return decode(resp, op, id, out)
}

// =============================================================================
// List (TaskList) Operations
// =============================================================================

// ReadLists returns all Microsoft To Do task lists
func (p *Provider) ReadLists(ctx context.Context) ([]backend.List, error) {
	var lists []backend.List
	next := "/v1.0/me/todo/lists"
	for next != "" {
		var page struct {
			Value    []msTaskList `json:"value"`
			NextLink string       `json:"@odata.nextLink"`
		}
		if err := p.call(ctx, "read lists", "", http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}
		for _, item := range page.Value {
			lists = append(lists, item.toList())
		}
		next = page.NextLink
	}
	return lists, nil
}

// GetLists serves the bulk result as a sequence; list counts are small
func (p *Provider) GetLists(ctx context.Context) (iter.Seq2[backend.List, error], error) {
	lists, err := p.ReadLists(ctx)
	if err != nil {
		return nil, err
	}
	return backend.SliceSeq(lists), nil
}

// ReadList returns a specific task list by ID
func (p *Provider) ReadList(ctx context.Context, listID string) (*backend.List, error) {
	var item msTaskList
	if err := p.call(ctx, "read list", listID, http.MethodGet, "/v1.0/me/todo/lists/"+url.PathEscape(listID), nil, &item); err != nil {
		return nil, err
	}
	list := item.toList()
	return &list, nil
}

// CreateList creates a new Microsoft To Do task list
func (p *Provider) CreateList(ctx context.Context, list *backend.List) (*backend.List, error) {
	var item msTaskList
	body := map[string]string{"displayName": list.Name}
	if err := p.call(ctx, "create list", list.Name, http.MethodPost, "/v1.0/me/todo/lists", body, &item); err != nil {
		return nil, err
	}
	created := item.toList()
	return &created, nil
}

// UpdateList renames a task list
func (p *Provider) UpdateList(ctx context.Context, list *backend.List) (*backend.List, error) {
	var item msTaskList
	body := map[string]string{"displayName": list.Name}
	if err := p.call(ctx, "update list", list.ID, http.MethodPatch, "/v1.0/me/todo/lists/"+url.PathEscape(list.ID), body, &item); err != nil {
		return nil, err
	}
	updated := item.toList()
	return &updated, nil
}

// DeleteList deletes a Microsoft To Do task list (permanent deletion)
func (p *Provider) DeleteList(ctx context.Context, listID string) error {
	return p.call(ctx, "delete list", listID, http.MethodDelete, "/v1.0/me/todo/lists/"+url.PathEscape(listID), nil, nil)
}

// =============================================================================
// Task Operations
// =============================================================================

func tasksPath(listID string) string {
	return "/v1.0/me/todo/lists/" + url.PathEscape(listID) + "/tasks"
}

func taskPath(listID, taskID string) string {
	return tasksPath(listID) + "/" + url.PathEscape(taskID)
}

// GetTasks streams the tasks of a list page by page, following
// @odata.nextLink. No request is made until the sequence is ranged over.
func (p *Provider) GetTasks(ctx context.Context, listID string) (iter.Seq2[backend.Task, error], error) {
	return func(yield func(backend.Task, error) bool) {
		next := tasksPath(listID) + "?$expand=checklistItems"
		for next != "" {
			var page struct {
				Value    []msTask `json:"value"`
				NextLink string   `json:"@odata.nextLink"`
			}
			if err := p.call(ctx, "get tasks", listID, http.MethodGet, next, nil, &page); err != nil {
				yield(backend.Task{}, err)
				return
			}
			for _, item := range page.Value {
				if !yield(item.toTask(listID), nil) {
					return
				}
			}
			next = page.NextLink
		}
	}, nil
}

// ReadTasksFromList returns all tasks in a task list
func (p *Provider) ReadTasksFromList(ctx context.Context, listID string) ([]backend.Task, error) {
	seq, _ := p.GetTasks(ctx, listID)
	tasks := []backend.Task{}
	for task, err := range seq {
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// ReadTasks returns the tasks of every list
func (p *Provider) ReadTasks(ctx context.Context) ([]backend.Task, error) {
	lists, err := p.ReadLists(ctx)
	if err != nil {
		return nil, err
	}
	tasks := []backend.Task{}
	for _, l := range lists {
		listTasks, err := p.ReadTasksFromList(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, listTasks...)
	}
	return tasks, nil
}

// ReadTask returns a specific task by ID
func (p *Provider) ReadTask(ctx context.Context, listID, taskID string) (*backend.Task, error) {
	var item msTask
	if err := p.call(ctx, "read task", taskID, http.MethodGet, taskPath(listID, taskID)+"?$expand=checklistItems", nil, &item); err != nil {
		return nil, err
	}
	task := item.toTask(listID)
	return &task, nil
}

// CreateTask creates a new task in its parent list, including checklist items
func (p *Provider) CreateTask(ctx context.Context, task *backend.Task) (*backend.Task, error) {
	body := taskBody(task)
	if len(task.SubTasks) > 0 {
		items := make([]map[string]interface{}, len(task.SubTasks))
		for i, st := range task.SubTasks {
			items[i] = checklistBody(st)
		}
		body["checklistItems"] = items
	}

	var item msTask
	if err := p.call(ctx, "create task", task.Title, http.MethodPost, tasksPath(task.Parent), body, &item); err != nil {
		return nil, err
	}
	created := item.toTask(task.Parent)
	return &created, nil
}

// UpdateTask patches the task and reconciles its checklist items
func (p *Provider) UpdateTask(ctx context.Context, task *backend.Task) (*backend.Task, error) {
	if err := p.syncChecklist(ctx, task); err != nil {
		return nil, err
	}

	var item msTask
	if err := p.call(ctx, "update task", task.ID, http.MethodPatch, taskPath(task.Parent, task.ID), taskBody(task), &item); err != nil {
		return nil, err
	}
	return p.ReadTask(ctx, task.Parent, item.ID)
}

// syncChecklist creates, updates and deletes checklist items so the remote
// checklist matches task.SubTasks
func (p *Provider) syncChecklist(ctx context.Context, task *backend.Task) error {
	path := taskPath(task.Parent, task.ID) + "/checklistItems"

	var current struct {
		Value []msChecklistItem `json:"value"`
	}
	if err := p.call(ctx, "read checklist", task.ID, http.MethodGet, path, nil, &current); err != nil {
		return err
	}

	remote := make(map[string]msChecklistItem, len(current.Value))
	for _, item := range current.Value {
		remote[item.ID] = item
	}

	for _, st := range task.SubTasks {
		if st.ID == "" {
			if err := p.call(ctx, "create checklist item", st.Title, http.MethodPost, path, checklistBody(st), nil); err != nil {
				return err
			}
			continue
		}
		existing, ok := remote[st.ID]
		delete(remote, st.ID)
		if ok && existing.DisplayName == st.Title && existing.IsChecked == (st.Status == backend.StatusCompleted) {
			continue
		}
		if err := p.call(ctx, "update checklist item", st.ID, http.MethodPatch, path+"/"+url.PathEscape(st.ID), checklistBody(st), nil); err != nil {
			return err
		}
	}

	for id := range remote {
		if err := p.call(ctx, "delete checklist item", id, http.MethodDelete, path+"/"+url.PathEscape(id), nil, nil); err != nil {
			return err
		}
	}
	return nil
}

// DeleteTask removes a task
func (p *Provider) DeleteTask(ctx context.Context, listID, taskID string) error {
	return p.call(ctx, "delete task", taskID, http.MethodDelete, taskPath(listID, taskID), nil, nil)
}

// Verify interface compliance at compile time
var _ backend.Provider = (*Provider)(nil)
