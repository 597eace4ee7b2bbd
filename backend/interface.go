package backend

import (
	"context"
	"iter"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"done/backend/recurrence"
)

// Service identifies a provider implementation.
type Service string

const (
	ServiceSmart     Service = "smart"
	ServiceMicrosoft Service = "mstodo"
	ServiceGoogle    Service = "google"
	ServiceLocal     Service = "local"
)

// Task represents a todo item
type Task struct {
	ID          string
	Parent      string // ID of the owning list
	Title       string
	Notes       string
	Status      TaskStatus
	Priority    Priority
	DueDate     *time.Time
	CompletedOn *time.Time
	Favorite    bool
	Today       bool
	Recurrence  *recurrence.Recurrence
	SubTasks    []SubTask
	Created     time.Time
	Modified    time.Time
}

// SubTask is a checklist entry nested under a task
type SubTask struct {
	ID     string
	Title  string
	Status TaskStatus
}

// TaskStatus represents the completion state of a task
type TaskStatus string

const (
	StatusNotStarted TaskStatus = "NOT-STARTED"
	StatusInProgress TaskStatus = "IN-PROGRESS"
	StatusCompleted  TaskStatus = "COMPLETED"
)

// Priority mirrors the importance levels offered by remote services
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// IsCompleted reports whether the task is done.
func (t *Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// ToggleCompleted flips the completion state and stamps CompletedOn.
func (t *Task) ToggleCompleted(now time.Time) {
	if t.IsCompleted() {
		t.Status = StatusNotStarted
		t.CompletedOn = nil
		return
	}
	t.Status = StatusCompleted
	t.CompletedOn = &now
}

// List represents a task list
type List struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Smart       bool // true for built-in virtual lists
	Service     Service
}

// Provider is the contract every task service implements. Callers check
// Available before issuing any other operation and StreamSupport before
// calling GetTasks or GetLists.
type Provider interface {
	// Authentication
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	HandleURIParams(ctx context.Context, uri *url.URL) error

	// Capabilities
	Available() bool
	StreamSupport() bool

	// Task operations
	ReadTasks(ctx context.Context) ([]Task, error)
	ReadTasksFromList(ctx context.Context, listID string) ([]Task, error)
	GetTasks(ctx context.Context, listID string) (iter.Seq2[Task, error], error)
	ReadTask(ctx context.Context, listID, taskID string) (*Task, error)
	CreateTask(ctx context.Context, task *Task) (*Task, error)
	UpdateTask(ctx context.Context, task *Task) (*Task, error)
	DeleteTask(ctx context.Context, listID, taskID string) error

	// List operations
	ReadLists(ctx context.Context) ([]List, error)
	GetLists(ctx context.Context) (iter.Seq2[List, error], error)
	ReadList(ctx context.Context, listID string) (*List, error)
	CreateList(ctx context.Context, list *List) (*List, error)
	UpdateList(ctx context.Context, list *List) (*List, error)
	DeleteList(ctx context.Context, listID string) error

	// Connection management
	Close() error
}

// FindListByName searches for a list by name (case-insensitive) in a slice of lists.
// Returns nil if no match is found.
func FindListByName(lists []List, name string) *List {
	for _, l := range lists {
		if strings.EqualFold(l.Name, name) {
			return &l
		}
	}
	return nil
}

// GenerateID generates a unique identifier using UUID v4.
// This is used by providers that need to generate task/list IDs locally.
func GenerateID() string {
	return uuid.New().String()
}

// SliceSeq adapts an already fetched slice to the streaming form. Providers
// use it to serve GetLists from a single bulk call.
func SliceSeq[T any](items []T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}
