// Package smart provides the null provider that backs the built-in virtual
// lists. It performs no I/O and is never available.
package smart

import (
	"context"
	"iter"
	"net/url"

	"done/backend"
)

// Provider implements backend.Provider with empty results
type Provider struct{}

// New creates the null provider
func New() *Provider {
	return &Provider{}
}

func (p *Provider) Login(ctx context.Context) error  { return nil }
func (p *Provider) Logout(ctx context.Context) error { return nil }

func (p *Provider) HandleURIParams(ctx context.Context, uri *url.URL) error { return nil }

func (p *Provider) Available() bool     { return false }
func (p *Provider) StreamSupport() bool { return false }

func (p *Provider) ReadTasks(ctx context.Context) ([]backend.Task, error) {
	return []backend.Task{}, nil
}

func (p *Provider) ReadTasksFromList(ctx context.Context, listID string) ([]backend.Task, error) {
	return []backend.Task{}, nil
}

// GetTasks always fails: the null provider does not stream.
func (p *Provider) GetTasks(ctx context.Context, listID string) (iter.Seq2[backend.Task, error], error) {
	return nil, backend.UnsupportedError(backend.ServiceSmart, "get tasks")
}

func (p *Provider) ReadTask(ctx context.Context, listID, taskID string) (*backend.Task, error) {
	return &backend.Task{}, nil
}

func (p *Provider) CreateTask(ctx context.Context, task *backend.Task) (*backend.Task, error) {
	return &backend.Task{}, nil
}

func (p *Provider) UpdateTask(ctx context.Context, task *backend.Task) (*backend.Task, error) {
	return &backend.Task{}, nil
}

func (p *Provider) DeleteTask(ctx context.Context, listID, taskID string) error { return nil }

func (p *Provider) ReadLists(ctx context.Context) ([]backend.List, error) {
	return []backend.List{}, nil
}

// GetLists always fails: the null provider does not stream.
func (p *Provider) GetLists(ctx context.Context) (iter.Seq2[backend.List, error], error) {
	return nil, backend.UnsupportedError(backend.ServiceSmart, "get lists")
}

func (p *Provider) ReadList(ctx context.Context, listID string) (*backend.List, error) {
	return &backend.List{}, nil
}

func (p *Provider) CreateList(ctx context.Context, list *backend.List) (*backend.List, error) {
	return &backend.List{}, nil
}

func (p *Provider) UpdateList(ctx context.Context, list *backend.List) (*backend.List, error) {
	return &backend.List{}, nil
}

func (p *Provider) DeleteList(ctx context.Context, listID string) error { return nil }

func (p *Provider) Close() error { return nil }

var _ backend.Provider = (*Provider)(nil)
