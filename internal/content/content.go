// Package content holds the task pane state machine. It selects lists,
// fetches their tasks from the active provider and keeps the visible task
// collection in sync with the mutations issued from the UI.
//
// Model is driven by the bubbletea update loop: intents arrive as messages,
// provider I/O runs in commands, and every load-related result carries the
// epoch it was issued under so superseded fetches are dropped.
package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"done/backend"
	"done/internal/smartlist"
	"done/internal/utils"
)

// State of the task pane.
type State int

const (
	Unselected State = iota
	Loading
	Empty
	TasksLoaded
)

func (s State) String() string {
	switch s {
	case Unselected:
		return "unselected"
	case Loading:
		return "loading"
	case Empty:
		return "empty"
	case TasksLoaded:
		return "tasks-loaded"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// streamBuffer bounds how far a streaming fetch may run ahead of the loop.
const streamBuffer = 64

// Intents accepted by Update.
type (
	SelectListMsg struct {
		List    smartlist.SidebarList
		Service backend.Service
	}
	AddTaskMsg struct {
		Task backend.Task
	}
	UpdateTaskMsg struct {
		Task backend.Task
	}
	RemoveTaskMsg struct {
		Index int
	}
	ExpandSubTasksMsg struct {
		Expand bool
	}
	ServiceDisabledMsg struct {
		Service backend.Service
	}
	CollapseSidebarMsg struct{}
	SetStateMsg        struct {
		State State
	}
	CleanMsg struct{}
)

// CollapseSidebarRequestedMsg is emitted for the parent model.
type CollapseSidebarRequestedMsg struct{}

// Results of commands issued by the model.
type (
	tasksLoadedMsg struct {
		epoch   int
		entries []smartlist.Entry
		err     error
	}
	streamItemMsg struct {
		epoch int
		entry smartlist.Entry
		ch    <-chan tea.Msg
	}
	streamEndMsg struct {
		epoch int
		err   error
	}
	taskAddedMsg struct {
		epoch int
		entry smartlist.Entry
		err   error
	}
	taskUpdatedMsg struct {
		epoch int
		entry smartlist.Entry
		err   error
	}
	taskRemovedMsg struct {
		epoch  int
		taskID string
		err    error
	}
)

// Option configures a Model.
type Option func(*Model)

// WithClock overrides the clock used by the date based smart lists.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// WithContext sets the parent context of every provider call.
func WithContext(ctx context.Context) Option {
	return func(m *Model) { m.ctx = ctx }
}

// Model is the orchestrator of the task pane.
type Model struct {
	registry *backend.Registry
	ctx      context.Context
	now      func() time.Time

	state     State
	service   backend.Service
	parent    *smartlist.SidebarList
	entries   []smartlist.Entry
	streaming bool

	epoch  int
	cancel context.CancelFunc

	expandSubTasks bool
}

// New creates an orchestrator reading providers from registry.
func New(registry *backend.Registry, opts ...Option) *Model {
	m := &Model{
		registry: registry,
		ctx:      context.Background(),
		now:      time.Now,
		state:    Unselected,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Model) State() State { return m.state }

// Tasks returns the visible tasks with their owning lists.
func (m *Model) Tasks() []smartlist.Entry { return m.entries }

// ParentList returns the selected list, or nil.
func (m *Model) ParentList() *smartlist.SidebarList { return m.parent }

// Service returns the active provider's service.
func (m *Model) Service() backend.Service { return m.service }

// ExpandSubTasks reports whether sub-tasks are shown expanded.
func (m *Model) ExpandSubTasks() bool { return m.expandSubTasks }

// Streaming reports whether a streaming fetch is still delivering tasks.
func (m *Model) Streaming() bool { return m.streaming }

// Update applies one message and returns the command to run next.
func (m *Model) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case SelectListMsg:
		return m.selectList(msg.List, msg.Service)

	case tasksLoadedMsg:
		if msg.epoch != m.epoch {
			return nil
		}
		m.finishLoad(msg.entries, msg.err)
		return nil

	case streamItemMsg:
		if msg.epoch != m.epoch {
			return nil
		}
		m.entries = append(m.entries, msg.entry)
		m.state = TasksLoaded
		return listen(msg.ch)

	case streamEndMsg:
		if msg.epoch != m.epoch {
			return nil
		}
		m.streaming = false
		m.stopFetch()
		if msg.err != nil {
			utils.Errorf("Stream of list %s ended: %v", m.parentKey(), msg.err)
		}
		if len(m.entries) == 0 {
			m.state = Empty
		}
		return nil

	case AddTaskMsg:
		return m.addTask(msg.Task)
	case taskAddedMsg:
		if msg.epoch != m.epoch {
			return nil
		}
		if msg.err != nil {
			utils.Errorf("Failed to create task: %v", msg.err)
			return nil
		}
		m.entries = append(m.entries, msg.entry)
		m.state = TasksLoaded
		return nil

	case UpdateTaskMsg:
		return m.updateTask(msg.Task)
	case taskUpdatedMsg:
		if msg.epoch != m.epoch {
			return nil
		}
		if msg.err != nil {
			utils.Errorf("Failed to update task: %v", msg.err)
			return nil
		}
		for i, e := range m.entries {
			if e.Task.ID == msg.entry.Task.ID {
				m.entries[i] = msg.entry
				break
			}
		}
		return nil

	case RemoveTaskMsg:
		return m.removeTask(msg.Index)
	case taskRemovedMsg:
		if msg.epoch != m.epoch {
			return nil
		}
		if msg.err != nil {
			utils.Errorf("Failed to delete task: %v", msg.err)
			return nil
		}
		for i, e := range m.entries {
			if e.Task.ID == msg.taskID {
				m.entries = append(m.entries[:i], m.entries[i+1:]...)
				break
			}
		}
		if len(m.entries) == 0 && m.state == TasksLoaded {
			m.state = Empty
		}
		return nil

	case ExpandSubTasksMsg:
		m.expandSubTasks = msg.Expand
		return nil

	case ServiceDisabledMsg:
		if msg.Service == m.service {
			// results already in flight carry the old epoch and are dropped
			m.stopFetch()
			m.epoch++
			m.streaming = false
			m.entries = nil
			m.state = Unselected
		}
		return nil

	case CollapseSidebarMsg:
		return func() tea.Msg { return CollapseSidebarRequestedMsg{} }

	case SetStateMsg:
		m.state = msg.State
		return nil

	case CleanMsg:
		m.stopFetch()
		m.epoch++
		m.streaming = false
		m.entries = nil
		m.state = Unselected
		return nil
	}
	return nil
}

// Close aborts any fetch still in flight.
func (m *Model) Close() {
	m.stopFetch()
}

func (m *Model) stopFetch() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Model) parentKey() string {
	if m.parent == nil {
		return ""
	}
	return m.parent.Key()
}

func (m *Model) selectList(list smartlist.SidebarList, service backend.Service) tea.Cmd {
	// the previous handle is released before a new one is stored
	m.stopFetch()
	m.epoch++
	m.state = Loading
	m.streaming = false

	m.entries = nil
	m.service = service
	m.parent = &list

	p, ok := m.registry.Get(service)
	if !ok {
		utils.Errorf("No provider registered for %s", service)
		m.finishLoad(nil, backend.NotFoundError(service, "select list", string(service)))
		return nil
	}

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	epoch := m.epoch

	if list.Smart() {
		return loadSmartList(ctx, epoch, p, list, m.now())
	}
	if p.StreamSupport() {
		m.streaming = true
		return startStream(ctx, epoch, p, list.List)
	}
	return loadCustomList(ctx, epoch, p, list.List)
}

// finishLoad settles the state after a bulk load.
func (m *Model) finishLoad(entries []smartlist.Entry, err error) {
	m.stopFetch()
	if err != nil {
		utils.Errorf("Failed to load tasks of %s: %v", m.parentKey(), err)
		entries = nil
	}
	m.entries = entries

	if m.parent != nil && !m.parent.Smart() {
		if len(entries) == 0 {
			m.state = Empty
		} else {
			m.state = TasksLoaded
		}
	}
	if len(m.entries) == 0 && m.state != Loading {
		m.state = Empty
	}
	if m.parent == nil || m.parent.Smart() {
		m.state = Unselected
	}
}

func loadSmartList(ctx context.Context, epoch int, p backend.Provider, list smartlist.SidebarList, now time.Time) tea.Cmd {
	return func() tea.Msg {
		tasks, err := p.ReadTasks(ctx)
		if err != nil {
			return tasksLoadedMsg{epoch: epoch, err: err}
		}
		entries, err := smartlist.Resolve(ctx, p, smartlist.Filter(tasks, list, now))
		return tasksLoadedMsg{epoch: epoch, entries: entries, err: err}
	}
}

func loadCustomList(ctx context.Context, epoch int, p backend.Provider, list backend.List) tea.Cmd {
	return func() tea.Msg {
		tasks, err := p.ReadTasksFromList(ctx, list.ID)
		if err != nil {
			return tasksLoadedMsg{epoch: epoch, err: err}
		}
		entries := make([]smartlist.Entry, 0, len(tasks))
		for _, t := range tasks {
			entries = append(entries, smartlist.Entry{Task: t, List: list})
		}
		return tasksLoadedMsg{epoch: epoch, entries: entries}
	}
}

// startStream ranges over the provider stream in its own goroutine. Items
// are handed to the loop one at a time through ch.
func startStream(ctx context.Context, epoch int, p backend.Provider, list backend.List) tea.Cmd {
	ch := make(chan tea.Msg, streamBuffer)
	send := func(msg tea.Msg) bool {
		select {
		case ch <- msg:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(ch)
		seq, err := p.GetTasks(ctx, list.ID)
		if err != nil {
			send(streamEndMsg{epoch: epoch, err: err})
			return
		}
		for task, err := range seq {
			if err != nil {
				send(streamEndMsg{epoch: epoch, err: err})
				return
			}
			if !send(streamItemMsg{epoch: epoch, entry: smartlist.Entry{Task: task, List: list}, ch: ch}) {
				return
			}
		}
		if ctx.Err() == nil {
			send(streamEndMsg{epoch: epoch})
		}
	}()
	return listen(ch)
}

func listen(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

var errNoList = errors.New("no list selected")

func (m *Model) provider(op string) (backend.Provider, error) {
	p, ok := m.registry.Get(m.service)
	if !ok {
		return nil, backend.NotFoundError(m.service, op, string(m.service))
	}
	return p, nil
}

func (m *Model) addTask(task backend.Task) tea.Cmd {
	if m.parent == nil || m.parent.Smart() {
		utils.Warnf("Tasks can only be added to a provider list")
		return nil
	}
	p, err := m.provider("create task")
	if err != nil {
		utils.Errorf("Failed to create task: %v", err)
		return nil
	}
	list := m.parent.List
	task.Parent = list.ID
	epoch, ctx := m.epoch, m.ctx
	return func() tea.Msg {
		created, err := p.CreateTask(ctx, &task)
		if err != nil {
			return taskAddedMsg{epoch: epoch, err: err}
		}
		return taskAddedMsg{epoch: epoch, entry: smartlist.Entry{Task: *created, List: list}}
	}
}

func (m *Model) updateTask(task backend.Task) tea.Cmd {
	p, err := m.provider("update task")
	if err != nil {
		utils.Errorf("Failed to update task: %v", err)
		return nil
	}
	list, ok := m.owner(task.ID)
	if !ok {
		utils.Errorf("Failed to update task: %v", utils.ErrTaskNotFound(task.Title))
		return nil
	}
	epoch, ctx := m.epoch, m.ctx
	return func() tea.Msg {
		updated, err := p.UpdateTask(ctx, &task)
		if err != nil {
			return taskUpdatedMsg{epoch: epoch, err: err}
		}
		return taskUpdatedMsg{epoch: epoch, entry: smartlist.Entry{Task: *updated, List: list}}
	}
}

func (m *Model) removeTask(index int) tea.Cmd {
	if index < 0 || index >= len(m.entries) {
		utils.Errorf("Failed to delete task: index %d out of range", index)
		return nil
	}
	p, err := m.provider("delete task")
	if err != nil {
		utils.Errorf("Failed to delete task: %v", err)
		return nil
	}
	task := m.entries[index].Task
	if task.Parent == "" {
		utils.Errorf("Failed to delete task %s: %v", task.ID, errNoList)
		return nil
	}
	epoch, ctx := m.epoch, m.ctx
	return func() tea.Msg {
		err := p.DeleteTask(ctx, task.Parent, task.ID)
		return taskRemovedMsg{epoch: epoch, taskID: task.ID, err: err}
	}
}

func (m *Model) owner(taskID string) (backend.List, bool) {
	for _, e := range m.entries {
		if e.Task.ID == taskID {
			return e.List, true
		}
	}
	return backend.List{}, false
}
