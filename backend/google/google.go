// Package google provides a provider implementation for the Google Tasks API v1.
package google

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"done/backend"
	"done/internal/config"
	"done/internal/credentials"
	"done/internal/oauth"
	"done/internal/ratelimit"
	"done/internal/utils"
)

// PageSize is the number of items requested per page.
const PageSize = 100

// errStopped ends paging when the consumer of a stream breaks early
var errStopped = errors.New("stream stopped")

// Config holds Google Tasks connection settings
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	BaseURL      string          // Override for testing
	Endpoint     oauth2.Endpoint // Override for testing
	Credentials  *credentials.Manager
	Opener       oauth.Opener
	Stats        *ratelimit.Stats
}

// Provider implements backend.Provider using Google Tasks API v1
type Provider struct {
	baseURL string
	flow    *oauth.Flow

	mu     sync.Mutex
	client *http.Client
	svc    *tasks.Service
}

// New creates a new Google Tasks provider
func New(cfg Config) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("google client id is required")
	}
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("credential manager is required")
	}

	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = googleoauth.Endpoint
	}

	transport := ratelimit.NewTransport(ratelimit.Config{
		Service: string(backend.ServiceGoogle),
		Stats:   cfg.Stats,
		Jitter:  true,
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
		Scopes:       []string{tasks.TasksScope},
	}, oauth.NewStore(cfg.Credentials, string(backend.ServiceGoogle)), opts...)

	return &Provider{baseURL: cfg.BaseURL, flow: flow}, nil
}

// =============================================================================
// Authentication
// =============================================================================

// Login starts the browser based authorization-code flow
func (p *Provider) Login(ctx context.Context) error {
	if _, err := p.flow.Begin(ctx); err != nil {
		return backend.AuthError(backend.ServiceGoogle, "login", err)
	}
	return nil
}

// Logout forgets the stored token
func (p *Provider) Logout(ctx context.Context) error {
	_ = p.Close()
	if err := p.flow.Logout(ctx); err != nil {
		return backend.AuthError(backend.ServiceGoogle, "logout", err)
	}
	return nil
}

// HandleURIParams completes the login with the redirect URI
func (p *Provider) HandleURIParams(ctx context.Context, uri *url.URL) error {
	if _, err := p.flow.Complete(ctx, uri); err != nil {
		return backend.AuthError(backend.ServiceGoogle, "handle redirect", err)
	}
	_ = p.Close()
	utils.Infof("Logged in to Google Tasks")
	return nil
}

// Available reports whether a token is stored
func (p *Provider) Available() bool {
	return p.flow.Authorized()
}

// StreamSupport is true: task pages are streamed as they arrive
func (p *Provider) StreamSupport() bool { return true }

// Close releases idle connections and drops the cached service
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.CloseIdleConnections()
	}
	p.client = nil
	p.svc = nil
	return nil
}

// service returns the Tasks API client, building it on first use
func (p *Provider) service(ctx context.Context, op string) (*tasks.Service, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.svc != nil {
		return p.svc, nil
	}

	client, err := p.flow.Client(ctx)
	if err != nil {
		return nil, backend.AuthError(backend.ServiceGoogle, op, err)
	}

	opts := []option.ClientOption{
		option.WithHTTPClient(client),
		option.WithUserAgent(config.Info().UserAgent()),
	}
	if p.baseURL != "" {
		opts = append(opts, option.WithEndpoint(p.baseURL))
	}
	svc, err := tasks.NewService(ctx, opts...)
	if err != nil {
		return nil, backend.TransportError(backend.ServiceGoogle, op, err)
	}
	p.client = client
	p.svc = svc
	return svc, nil
}

// wrapError maps API failures onto the provider error kinds
func wrapError(op, id string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return backend.AuthError(backend.ServiceGoogle, op, err)
		case http.StatusNotFound:
			return backend.NotFoundError(backend.ServiceGoogle, op, id)
		}
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return backend.AuthError(backend.ServiceGoogle, op, err)
	}
	return backend.TransportError(backend.ServiceGoogle, op, err)
}

// =============================================================================
// List (TaskList) Operations
// =============================================================================

// ReadLists returns all Google task lists
func (p *Provider) ReadLists(ctx context.Context) ([]backend.List, error) {
	svc, err := p.service(ctx, "read lists")
	if err != nil {
		return nil, err
	}

	var lists []backend.List
	err = svc.Tasklists.List().MaxResults(PageSize).Pages(ctx, func(page *tasks.TaskLists) error {
		for _, item := range page.Items {
			lists = append(lists, toList(item))
		}
		return nil
	})
	if err != nil {
		return nil, wrapError("read lists", "", err)
	}
	return lists, nil
}

// GetLists serves the bulk result as a sequence
func (p *Provider) GetLists(ctx context.Context) (iter.Seq2[backend.List, error], error) {
	lists, err := p.ReadLists(ctx)
	if err != nil {
		return nil, err
	}
	return backend.SliceSeq(lists), nil
}

// ReadList returns a specific task list by ID
func (p *Provider) ReadList(ctx context.Context, listID string) (*backend.List, error) {
	svc, err := p.service(ctx, "read list")
	if err != nil {
		return nil, err
	}
	item, err := svc.Tasklists.Get(listID).Context(ctx).Do()
	if err != nil {
		return nil, wrapError("read list", listID, err)
	}
	list := toList(item)
	return &list, nil
}

// CreateList creates a new Google task list
func (p *Provider) CreateList(ctx context.Context, list *backend.List) (*backend.List, error) {
	svc, err := p.service(ctx, "create list")
	if err != nil {
		return nil, err
	}
	item, err := svc.Tasklists.Insert(&tasks.TaskList{Title: list.Name}).Context(ctx).Do()
	if err != nil {
		return nil, wrapError("create list", list.Name, err)
	}
	created := toList(item)
	return &created, nil
}

// UpdateList renames a task list
func (p *Provider) UpdateList(ctx context.Context, list *backend.List) (*backend.List, error) {
	svc, err := p.service(ctx, "update list")
	if err != nil {
		return nil, err
	}
	item, err := svc.Tasklists.Patch(list.ID, &tasks.TaskList{Title: list.Name}).Context(ctx).Do()
	if err != nil {
		return nil, wrapError("update list", list.ID, err)
	}
	updated := toList(item)
	return &updated, nil
}

// DeleteList deletes a Google task list (permanent deletion)
func (p *Provider) DeleteList(ctx context.Context, listID string) error {
	svc, err := p.service(ctx, "delete list")
	if err != nil {
		return err
	}
	if err := svc.Tasklists.Delete(listID).Context(ctx).Do(); err != nil {
		return wrapError("delete list", listID, err)
	}
	return nil
}

// =============================================================================
// Task Operations
// =============================================================================

// GetTasks streams the top-level tasks of a list. Google returns sub-tasks as
// separate items carrying a parent ID; they are folded into their parent.
// Each page is held back until the next one has been read so that sub-tasks
// on the following page still reach their parent.
func (p *Provider) GetTasks(ctx context.Context, listID string) (iter.Seq2[backend.Task, error], error) {
	return func(yield func(backend.Task, error) bool) {
		svc, err := p.service(ctx, "get tasks")
		if err != nil {
			yield(backend.Task{}, err)
			return
		}

		var pending []*backend.Task
		index := make(map[string]*backend.Task)
		orphans := make(map[string][]backend.SubTask)

		flush := func() bool {
			for _, t := range pending {
				delete(index, t.ID)
				if !yield(*t, nil) {
					return false
				}
			}
			pending = nil
			return true
		}

		err = svc.Tasks.List(listID).
			MaxResults(PageSize).
			ShowCompleted(true).
			ShowHidden(true).
			Pages(ctx, func(page *tasks.Tasks) error {
				var fresh []*backend.Task
				for _, item := range page.Items {
					if item.Deleted {
						continue
					}
					if item.Parent != "" {
						st := toSubTask(item)
						if parent, ok := index[item.Parent]; ok {
							parent.SubTasks = append(parent.SubTasks, st)
						} else {
							orphans[item.Parent] = append(orphans[item.Parent], st)
						}
						continue
					}
					t := toTask(item, listID)
					t.SubTasks = append(t.SubTasks, orphans[t.ID]...)
					delete(orphans, t.ID)
					fresh = append(fresh, &t)
					index[t.ID] = &t
				}
				if !flush() {
					return errStopped
				}
				pending = fresh
				return nil
			})
		if errors.Is(err, errStopped) {
			return
		}
		if err != nil {
			yield(backend.Task{}, wrapError("get tasks", listID, err))
			return
		}
		if !flush() {
			return
		}
		if len(orphans) > 0 {
			utils.Debugf("google: dropped sub-tasks of %d parents outside the page window", len(orphans))
		}
	}, nil
}

// ReadTasksFromList returns all tasks in a task list
func (p *Provider) ReadTasksFromList(ctx context.Context, listID string) ([]backend.Task, error) {
	seq, _ := p.GetTasks(ctx, listID)
	result := []backend.Task{}
	for task, err := range seq {
		if err != nil {
			return nil, err
		}
		result = append(result, task)
	}
	return result, nil
}

// ReadTasks returns the tasks of every list
func (p *Provider) ReadTasks(ctx context.Context) ([]backend.Task, error) {
	lists, err := p.ReadLists(ctx)
	if err != nil {
		return nil, err
	}
	result := []backend.Task{}
	for _, l := range lists {
		listTasks, err := p.ReadTasksFromList(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, listTasks...)
	}
	return result, nil
}

// ReadTask returns a specific task with its sub-tasks
func (p *Provider) ReadTask(ctx context.Context, listID, taskID string) (*backend.Task, error) {
	all, err := p.ReadTasksFromList(ctx, listID)
	if err != nil {
		return nil, err
	}
	for _, t := range all {
		if t.ID == taskID {
			return &t, nil
		}
	}
	return nil, backend.NotFoundError(backend.ServiceGoogle, "read task", taskID)
}

// CreateTask inserts a task and then each of its sub-tasks under it
func (p *Provider) CreateTask(ctx context.Context, task *backend.Task) (*backend.Task, error) {
	svc, err := p.service(ctx, "create task")
	if err != nil {
		return nil, err
	}

	item, err := svc.Tasks.Insert(task.Parent, fromTask(task)).Context(ctx).Do()
	if err != nil {
		return nil, wrapError("create task", task.Title, err)
	}
	created := toTask(item, task.Parent)

	for _, st := range task.SubTasks {
		child, err := svc.Tasks.Insert(task.Parent, fromSubTask(st)).Parent(item.Id).Context(ctx).Do()
		if err != nil {
			return nil, wrapError("create sub-task", st.Title, err)
		}
		created.SubTasks = append(created.SubTasks, toSubTask(child))
	}
	return &created, nil
}

// UpdateTask patches the task and reconciles its sub-tasks
func (p *Provider) UpdateTask(ctx context.Context, task *backend.Task) (*backend.Task, error) {
	svc, err := p.service(ctx, "update task")
	if err != nil {
		return nil, err
	}

	current, err := p.ReadTask(ctx, task.Parent, task.ID)
	if err != nil {
		return nil, err
	}

	if _, err := svc.Tasks.Patch(task.Parent, task.ID, fromTask(task)).Context(ctx).Do(); err != nil {
		return nil, wrapError("update task", task.ID, err)
	}

	remote := make(map[string]backend.SubTask, len(current.SubTasks))
	for _, st := range current.SubTasks {
		remote[st.ID] = st
	}
	for _, st := range task.SubTasks {
		if st.ID == "" {
			if _, err := svc.Tasks.Insert(task.Parent, fromSubTask(st)).Parent(task.ID).Context(ctx).Do(); err != nil {
				return nil, wrapError("create sub-task", st.Title, err)
			}
			continue
		}
		existing, ok := remote[st.ID]
		delete(remote, st.ID)
		if ok && existing == st {
			continue
		}
		if _, err := svc.Tasks.Patch(task.Parent, st.ID, fromSubTask(st)).Context(ctx).Do(); err != nil {
			return nil, wrapError("update sub-task", st.ID, err)
		}
	}
	for id := range remote {
		if err := svc.Tasks.Delete(task.Parent, id).Context(ctx).Do(); err != nil {
			return nil, wrapError("delete sub-task", id, err)
		}
	}

	return p.ReadTask(ctx, task.Parent, task.ID)
}

// DeleteTask removes a task; Google removes its sub-tasks with it
func (p *Provider) DeleteTask(ctx context.Context, listID, taskID string) error {
	svc, err := p.service(ctx, "delete task")
	if err != nil {
		return err
	}
	if err := svc.Tasks.Delete(listID, taskID).Context(ctx).Do(); err != nil {
		return wrapError("delete task", taskID, err)
	}
	return nil
}

// =============================================================================
// Conversion Functions
// =============================================================================

func toList(item *tasks.TaskList) backend.List {
	return backend.List{
		ID:      item.Id,
		Name:    item.Title,
		Service: backend.ServiceGoogle,
	}
}

func toTask(item *tasks.Task, listID string) backend.Task {
	task := backend.Task{
		ID:       item.Id,
		Parent:   listID,
		Title:    item.Title,
		Notes:    item.Notes,
		Status:   googleToBackendStatus(item.Status),
		Priority: backend.PriorityNormal,
		DueDate:  parseTime(item.Due),
	}
	if item.Completed != nil {
		task.CompletedOn = parseTime(*item.Completed)
	}
	if modified := parseTime(item.Updated); modified != nil {
		task.Modified = *modified
	}
	return task
}

func toSubTask(item *tasks.Task) backend.SubTask {
	return backend.SubTask{
		ID:     item.Id,
		Title:  item.Title,
		Status: googleToBackendStatus(item.Status),
	}
}

// fromTask builds the API body for insert and patch. Cleared fields are sent
// as explicit nulls so a patch removes them.
func fromTask(task *backend.Task) *tasks.Task {
	item := &tasks.Task{
		Title:           task.Title,
		Notes:           task.Notes,
		Status:          backendToGoogleStatus(task.Status),
		ForceSendFields: []string{"Notes"},
	}
	if task.DueDate != nil {
		// Google Tasks stores only the date part of due
		item.Due = task.DueDate.UTC().Format(time.RFC3339)
	} else {
		item.NullFields = append(item.NullFields, "Due")
	}
	if task.IsCompleted() && task.CompletedOn != nil {
		completed := task.CompletedOn.UTC().Format(time.RFC3339)
		item.Completed = &completed
	} else if !task.IsCompleted() {
		item.NullFields = append(item.NullFields, "Completed")
	}
	return item
}

func fromSubTask(st backend.SubTask) *tasks.Task {
	item := &tasks.Task{
		Title:  st.Title,
		Status: backendToGoogleStatus(st.Status),
	}
	if st.Status != backend.StatusCompleted {
		item.NullFields = []string{"Completed"}
	}
	return item
}

func parseTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &t
}

// =============================================================================
// Status Conversion Functions
// =============================================================================

// googleToBackendStatus converts Google Tasks status to backend status
func googleToBackendStatus(status string) backend.TaskStatus {
	switch status {
	case "completed":
		return backend.StatusCompleted
	default:
		return backend.StatusNotStarted
	}
}

// backendToGoogleStatus converts backend status to Google Tasks status
func backendToGoogleStatus(status backend.TaskStatus) string {
	switch status {
	case backend.StatusCompleted:
		return "completed"
	default:
		return "needsAction"
	}
}

// Verify interface compliance at compile time
var _ backend.Provider = (*Provider)(nil)
