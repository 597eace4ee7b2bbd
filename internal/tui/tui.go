// Package tui provides a terminal user interface for task management.
package tui

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"done/backend"
	"done/backend/recurrence"
	"done/internal/content"
	"done/internal/smartlist"
	"done/internal/utils"
)

// Focus indicates which pane has focus
type Focus int

const (
	FocusLists Focus = iota
	FocusTasks
)

// Mode indicates the current input mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeAdd
	ModeAddSubTask
	ModeEdit
	ModeDueDate
	ModeRecurrence
	ModeFilter
	ModeHelp
	ModeConfirmDelete
)

// sidebarItem is a selectable sidebar row. Header rows name a service.
type sidebarItem struct {
	service backend.Service
	list    smartlist.SidebarList
	header  bool
}

// row is a visible line of the task pane; sub is -1 for the task itself.
type row struct {
	entry int
	sub   int
}

// Model represents the TUI state
type Model struct {
	registry *backend.Registry
	ctx      context.Context
	content  *content.Model
	now      func() time.Time

	// Sidebar
	sidebar       []sidebarItem
	defaultList   string
	selectedOnce  bool
	sidebarHidden bool

	expandSubTasks bool

	// Selection
	listCursor int
	taskCursor int
	focus      Focus

	// Mode and input
	mode      Mode
	textInput textinput.Model
	filter    string
	status    string

	// UI dimensions
	width  int
	height int

	// Styles
	listPaneStyle  lipgloss.Style
	taskPaneStyle  lipgloss.Style
	selectedStyle  lipgloss.Style
	completedStyle lipgloss.Style
	subtaskStyle   lipgloss.Style
	headerStyle    lipgloss.Style
	helpStyle      lipgloss.Style
	dialogStyle    lipgloss.Style
	statusBarStyle lipgloss.Style
}

// Message types
type listsLoadedMsg struct {
	service backend.Service
	lists   []backend.List
	err     error
}

// Option configures the TUI
type Option func(*Model)

// WithContext sets the context of every provider call.
func WithContext(ctx context.Context) Option {
	return func(m *Model) { m.ctx = ctx }
}

// WithClock overrides the clock used for smart lists and completion stamps.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// WithDefaultList selects a smart list key or a list name on startup.
func WithDefaultList(name string) Option {
	return func(m *Model) { m.defaultList = name }
}

// WithExpandSubTasks shows sub-tasks from the start.
func WithExpandSubTasks(expand bool) Option {
	return func(m *Model) { m.expandSubTasks = expand }
}

// WithSidebarCollapsed starts with the sidebar hidden.
func WithSidebarCollapsed(collapsed bool) Option {
	return func(m *Model) { m.sidebarHidden = collapsed }
}

// New creates a new TUI model over the available providers of registry.
func New(registry *backend.Registry, opts ...Option) *Model {
	ti := textinput.New()
	ti.Placeholder = "Enter text..."
	ti.CharLimit = 256

	m := &Model{
		registry:  registry,
		ctx:       context.Background(),
		now:       time.Now,
		textInput: ti,
		focus:     FocusLists,
		mode:      ModeNormal,
		listPaneStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		taskPaneStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		selectedStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		completedStyle: lipgloss.NewStyle().
			Strikethrough(true).
			Foreground(lipgloss.Color("240")),
		subtaskStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),
		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")),
		helpStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		dialogStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2),
		statusBarStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.content = content.New(registry, content.WithContext(m.ctx), content.WithClock(m.clock))
	m.content.Update(content.ExpandSubTasksMsg{Expand: m.expandSubTasks})
	return m
}

func (m *Model) clock() time.Time { return m.now() }

// Content exposes the task pane state machine.
func (m *Model) Content() *content.Model { return m.content }

// Init initializes the TUI
func (m *Model) Init() tea.Cmd {
	services := m.registry.Available()
	cmds := make([]tea.Cmd, 0, len(services))
	for _, s := range services {
		m.sidebar = append(m.sidebar, sidebarItem{service: s, header: true})
		for _, sl := range smartlist.SmartLists() {
			m.sidebar = append(m.sidebar, sidebarItem{service: s, list: sl})
		}
		cmds = append(cmds, m.loadLists(s))
	}
	m.listCursor = m.nextSelectable(-1, 1)
	return tea.Batch(cmds...)
}

func (m *Model) loadLists(service backend.Service) tea.Cmd {
	p, ok := m.registry.Get(service)
	if !ok {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		lists, err := p.ReadLists(ctx)
		return listsLoadedMsg{service: service, lists: lists, err: err}
	}
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case listsLoadedMsg:
		return m, m.handleListsLoaded(msg)

	case content.CollapseSidebarRequestedMsg:
		m.sidebarHidden = !m.sidebarHidden
		if m.sidebarHidden {
			m.focus = FocusTasks
		}
		return m, nil

	case tea.KeyMsg:
		// Handle mode-specific input
		switch m.mode {
		case ModeAdd, ModeAddSubTask, ModeEdit, ModeDueDate, ModeRecurrence:
			return m.handleInputMode(msg)
		case ModeFilter:
			return m.handleFilterMode(msg)
		case ModeHelp:
			return m.handleHelpMode(msg)
		case ModeConfirmDelete:
			return m.handleConfirmDeleteMode(msg)
		}
		return m.handleNormalMode(msg)

	default:
		// results of the task pane's own commands
		cmds = append(cmds, m.content.Update(msg))
		m.clampTaskCursor()
	}

	// Update text input for modes that use it
	if m.usesInput() {
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleListsLoaded(msg listsLoadedMsg) tea.Cmd {
	if msg.err != nil {
		utils.Errorf("Failed to load lists of %s: %v", msg.service, msg.err)
		if errors.Is(msg.err, backend.ErrAuth) {
			m.status = string(msg.service) + ": not logged in"
			m.dropService(msg.service)
			return m.content.Update(content.ServiceDisabledMsg{Service: msg.service})
		}
		return nil
	}

	// insert after the service's smart lists
	at := len(m.sidebar)
	for i, item := range m.sidebar {
		if item.service == msg.service {
			at = i + 1
		}
	}
	items := make([]sidebarItem, 0, len(msg.lists))
	for _, l := range msg.lists {
		l.Service = msg.service
		items = append(items, sidebarItem{service: msg.service, list: smartlist.Custom(l)})
	}
	m.sidebar = slices.Insert(m.sidebar, at, items...)
	if m.listCursor >= at {
		m.listCursor += len(items)
	}

	if !m.selectedOnce {
		if i, ok := m.findDefault(); ok {
			m.listCursor = i
			return m.selectCurrent()
		}
	}
	return nil
}

func (m *Model) dropService(service backend.Service) {
	m.sidebar = slices.DeleteFunc(m.sidebar, func(item sidebarItem) bool { return item.service == service })
	m.listCursor = m.nextSelectable(-1, 1)
}

// findDefault locates the configured start list in the first service.
func (m *Model) findDefault() (int, bool) {
	key := m.defaultList
	if key == "" {
		key = smartlist.All.Key()
	}
	smart, isSmart := smartlist.Parse(key)
	for i, item := range m.sidebar {
		if item.header {
			continue
		}
		if isSmart && item.list == smart {
			return i, true
		}
		if !isSmart && !item.list.Smart() && strings.EqualFold(item.list.Name(), key) {
			return i, true
		}
	}
	return 0, false
}

func (m *Model) selectCurrent() tea.Cmd {
	if m.listCursor < 0 || m.listCursor >= len(m.sidebar) || m.sidebar[m.listCursor].header {
		return nil
	}
	item := m.sidebar[m.listCursor]
	m.selectedOnce = true
	m.taskCursor = 0
	return m.content.Update(content.SelectListMsg{List: item.list, Service: item.service})
}

// nextSelectable returns the next non-header row from i in direction dir.
func (m *Model) nextSelectable(i, dir int) int {
	for j := i + dir; j >= 0 && j < len(m.sidebar); j += dir {
		if !m.sidebar[j].header {
			return j
		}
	}
	if i < 0 {
		return 0
	}
	return i
}

func (m *Model) usesInput() bool {
	switch m.mode {
	case ModeAdd, ModeAddSubTask, ModeEdit, ModeDueDate, ModeRecurrence, ModeFilter:
		return true
	}
	return false
}

func (m *Model) handleNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""
	switch msg.String() {
	case "q", "ctrl+c":
		m.content.Close()
		return m, tea.Quit

	case "tab":
		if m.focus == FocusLists || m.sidebarHidden {
			m.focus = FocusTasks
		} else {
			m.focus = FocusLists
		}
		return m, nil

	case "up", "k":
		if m.focus == FocusLists {
			if next := m.nextSelectable(m.listCursor, -1); next != m.listCursor {
				m.listCursor = next
				return m, m.selectCurrent()
			}
		} else if m.taskCursor > 0 {
			m.taskCursor--
		}
		return m, nil

	case "down", "j":
		if m.focus == FocusLists {
			if next := m.nextSelectable(m.listCursor, 1); next != m.listCursor {
				m.listCursor = next
				return m, m.selectCurrent()
			}
		} else if m.taskCursor < len(m.rows())-1 {
			m.taskCursor++
		}
		return m, nil

	case "enter":
		if m.focus == FocusLists {
			return m, m.selectCurrent()
		}
		return m, nil

	case "b":
		return m, m.content.Update(content.CollapseSidebarMsg{})

	case "x":
		return m, m.content.Update(content.ExpandSubTasksMsg{Expand: !m.content.ExpandSubTasks()})

	case "a":
		parent := m.content.ParentList()
		if parent == nil || parent.Smart() {
			m.status = "Select a list to add tasks"
			return m, nil
		}
		return m, m.openInput(ModeAdd, "New task name...", "")

	case "A":
		if _, ok := m.selectedRow(); ok {
			return m, m.openInput(ModeAddSubTask, "New sub-task...", "")
		}
		return m, nil

	case "e":
		if task, r, ok := m.selectedTask(); ok {
			title := task.Title
			if r.sub >= 0 {
				title = task.SubTasks[r.sub].Title
			}
			return m, m.openInput(ModeEdit, "Title", title)
		}
		return m, nil

	case "t":
		if task, r, ok := m.selectedTask(); ok && r.sub < 0 {
			due := ""
			if task.DueDate != nil {
				due = task.DueDate.Format("2006-01-02")
			}
			return m, m.openInput(ModeDueDate, "today, fri, 3d, 2026-06-10 (empty clears)", due)
		}
		return m, nil

	case "r":
		if task, r, ok := m.selectedTask(); ok && r.sub < 0 {
			rec := ""
			if task.Recurrence != nil {
				rec = task.Recurrence.String()
			}
			return m, m.openInput(ModeRecurrence, "Mon, Wed (empty clears)", rec)
		}
		return m, nil

	case "c", " ":
		if task, r, ok := m.selectedTask(); ok {
			if r.sub >= 0 {
				task.SubTasks = slices.Clone(task.SubTasks)
				st := &task.SubTasks[r.sub]
				if st.Status == backend.StatusCompleted {
					st.Status = backend.StatusNotStarted
				} else {
					st.Status = backend.StatusCompleted
				}
			} else {
				task.ToggleCompleted(m.now())
			}
			return m, m.content.Update(content.UpdateTaskMsg{Task: task})
		}
		return m, nil

	case "s":
		if task, r, ok := m.selectedTask(); ok && r.sub < 0 {
			task.Favorite = !task.Favorite
			return m, m.content.Update(content.UpdateTaskMsg{Task: task})
		}
		return m, nil

	case "d":
		if _, _, ok := m.selectedTask(); ok {
			m.mode = ModeConfirmDelete
		}
		return m, nil

	case "/":
		return m, m.openInput(ModeFilter, "Search...", "")

	case "?":
		m.mode = ModeHelp
		return m, nil
	}
	return m, nil
}

func (m *Model) openInput(mode Mode, placeholder, value string) tea.Cmd {
	m.mode = mode
	m.textInput.Reset()
	m.textInput.Placeholder = placeholder
	m.textInput.SetValue(value)
	m.textInput.Focus()
	return textinput.Blink
}

func (m *Model) handleInputMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.Type {
	case tea.KeyEnter:
		mode := m.mode
		m.mode = ModeNormal
		return m, m.submit(mode, strings.TrimSpace(m.textInput.Value()))

	case tea.KeyEsc:
		m.mode = ModeNormal
		return m, nil
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

// submit turns a confirmed dialog into a task pane intent.
func (m *Model) submit(mode Mode, value string) tea.Cmd {
	if mode == ModeAdd {
		if value == "" {
			return nil
		}
		return m.content.Update(content.AddTaskMsg{Task: backend.Task{
			Title:    value,
			Status:   backend.StatusNotStarted,
			Priority: backend.PriorityNormal,
		}})
	}

	task, r, ok := m.selectedTask()
	if !ok {
		return nil
	}
	switch mode {
	case ModeAddSubTask:
		if value == "" {
			return nil
		}
		task.SubTasks = append(slices.Clone(task.SubTasks), backend.SubTask{Title: value, Status: backend.StatusNotStarted})
	case ModeEdit:
		if value == "" {
			return nil
		}
		if r.sub >= 0 {
			task.SubTasks = slices.Clone(task.SubTasks)
			task.SubTasks[r.sub].Title = value
		} else {
			task.Title = value
		}
	case ModeDueDate:
		due, err := utils.ParseDueDate(value, m.now())
		if err != nil {
			m.status = err.Error()
			return nil
		}
		task.DueDate = due
	case ModeRecurrence:
		rec := recurrence.FromString(value)
		task.Recurrence = &rec
		if rec.IsEmpty() {
			task.Recurrence = nil
		}
	default:
		return nil
	}
	return m.content.Update(content.UpdateTaskMsg{Task: task})
}

func (m *Model) handleFilterMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.Type {
	case tea.KeyEnter:
		m.filter = m.textInput.Value()
		m.mode = ModeNormal
		m.clampTaskCursor()
		return m, nil

	case tea.KeyEsc:
		m.filter = ""
		m.mode = ModeNormal
		m.clampTaskCursor()
		return m, nil
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m *Model) handleHelpMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyEnter:
		m.mode = ModeNormal
		return m, nil
	}

	if msg.String() == "q" {
		m.mode = ModeNormal
	}
	return m, nil
}

func (m *Model) handleConfirmDeleteMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.mode = ModeNormal
		task, r, ok := m.selectedTask()
		if !ok {
			return m, nil
		}
		if r.sub >= 0 {
			task.SubTasks = slices.Delete(slices.Clone(task.SubTasks), r.sub, r.sub+1)
			return m, m.content.Update(content.UpdateTaskMsg{Task: task})
		}
		return m, m.content.Update(content.RemoveTaskMsg{Index: r.entry})

	case "n", "N", "esc":
		m.mode = ModeNormal
		return m, nil
	}
	return m, nil
}

func (m *Model) matchesFilter(task backend.Task) bool {
	return m.filter == "" || strings.Contains(strings.ToLower(task.Title), strings.ToLower(m.filter))
}

// rows lists the visible task pane lines in display order.
func (m *Model) rows() []row {
	var rows []row
	for i, e := range m.content.Tasks() {
		if !m.matchesFilter(e.Task) {
			continue
		}
		rows = append(rows, row{entry: i, sub: -1})
		if m.content.ExpandSubTasks() {
			for j := range e.Task.SubTasks {
				rows = append(rows, row{entry: i, sub: j})
			}
		}
	}
	return rows
}

func (m *Model) selectedRow() (row, bool) {
	rows := m.rows()
	if m.taskCursor < 0 || m.taskCursor >= len(rows) {
		return row{}, false
	}
	return rows[m.taskCursor], true
}

// selectedTask returns a copy of the task under the cursor.
func (m *Model) selectedTask() (backend.Task, row, bool) {
	r, ok := m.selectedRow()
	if !ok {
		return backend.Task{}, row{}, false
	}
	return m.content.Tasks()[r.entry].Task, r, true
}

func (m *Model) clampTaskCursor() {
	if n := len(m.rows()); m.taskCursor >= n {
		m.taskCursor = max(n-1, 0)
	}
}

// View renders the TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		m.width = 80
		m.height = 24
	}

	// Overlay dialogs
	switch m.mode {
	case ModeAdd:
		return m.renderInputDialog("Add New Task")
	case ModeAddSubTask:
		return m.renderInputDialog("Add Sub-task")
	case ModeEdit:
		return m.renderInputDialog("Edit Task")
	case ModeDueDate:
		return m.renderInputDialog("Due Date")
	case ModeRecurrence:
		return m.renderInputDialog("Repeat Weekly On")
	case ModeFilter:
		return m.renderInputDialog("Search/Filter Tasks")
	case ModeHelp:
		return m.renderHelpDialog()
	case ModeConfirmDelete:
		return m.renderConfirmDeleteDialog()
	}

	var b strings.Builder
	var mainView string
	if m.sidebarHidden {
		taskWidth := m.width - 2
		mainView = m.taskPaneStyle.Width(taskWidth).Height(m.height - 4).Render(m.renderTaskPane(taskWidth - 4))
	} else {
		listWidth := m.width / 4
		taskWidth := m.width - listWidth - 4
		listPane := m.listPaneStyle.Width(listWidth).Height(m.height - 4).Render(m.renderListPane(listWidth - 4))
		taskPane := m.taskPaneStyle.Width(taskWidth).Height(m.height - 4).Render(m.renderTaskPane(taskWidth - 4))
		mainView = lipgloss.JoinHorizontal(lipgloss.Top, listPane, taskPane)
	}

	b.WriteString(mainView)
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m *Model) renderListPane(width int) string {
	var b strings.Builder
	b.WriteString("Lists\n")
	b.WriteString(strings.Repeat("─", max(width, 0)))
	b.WriteString("\n")

	for i, item := range m.sidebar {
		if item.header {
			b.WriteString(m.headerStyle.Render(string(item.service)) + "\n")
			continue
		}
		cursor := " "
		name := item.list.Name()
		if i == m.listCursor {
			if m.focus == FocusLists {
				cursor = ">"
			}
			name = m.selectedStyle.Render(name)
		}
		b.WriteString(cursor + " " + name + "\n")
	}
	return b.String()
}

func (m *Model) renderTaskPane(width int) string {
	var b strings.Builder
	title := "Tasks"
	if parent := m.content.ParentList(); parent != nil {
		title = parent.Name()
	}
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("─", max(width, 0)))
	b.WriteString("\n")

	rows := m.rows()
	if len(rows) == 0 {
		switch m.content.State() {
		case content.Loading:
			b.WriteString("Loading...\n")
		case content.Unselected:
			if m.content.ParentList() == nil {
				b.WriteString("Select a list\n")
			} else {
				b.WriteString("No tasks\n")
			}
		default:
			b.WriteString("No tasks\n")
		}
		return b.String()
	}

	entries := m.content.Tasks()
	showList := m.content.ParentList() != nil && m.content.ParentList().Smart()
	for i, r := range rows {
		e := entries[r.entry]
		selected := i == m.taskCursor && m.focus == FocusTasks
		if r.sub >= 0 {
			b.WriteString(m.renderSubTask(e.Task.SubTasks[r.sub], selected) + "\n")
			continue
		}
		b.WriteString(m.renderTask(e, selected, showList) + "\n")
	}
	return b.String()
}

func statusIcon(status backend.TaskStatus) string {
	switch status {
	case backend.StatusCompleted:
		return "[✓]"
	case backend.StatusInProgress:
		return "[~]"
	}
	return "[ ]"
}

func (m *Model) renderTask(e smartlist.Entry, selected, showList bool) string {
	cursor := " "
	if selected {
		cursor = ">"
	}
	task := e.Task

	title := task.Title
	if task.IsCompleted() {
		title = m.completedStyle.Render(title)
	} else if selected {
		title = m.selectedStyle.Render(title)
	}

	var extra []string
	if task.Favorite {
		extra = append(extra, "★")
	}
	if task.DueDate != nil {
		extra = append(extra, "due "+task.DueDate.Format("Jan 2"))
	}
	if task.Recurrence != nil && !task.Recurrence.IsEmpty() {
		extra = append(extra, "↻ "+task.Recurrence.String())
	}
	if n := len(task.SubTasks); n > 0 && !m.content.ExpandSubTasks() {
		extra = append(extra, subTaskProgress(task.SubTasks))
	}
	if showList {
		extra = append(extra, "("+e.List.Name+")")
	}

	line := cursor + " " + statusIcon(task.Status) + " " + title
	if len(extra) > 0 {
		line += " " + m.helpStyle.Render(strings.Join(extra, " "))
	}
	return line
}

func subTaskProgress(subs []backend.SubTask) string {
	done := 0
	for _, st := range subs {
		if st.Status == backend.StatusCompleted {
			done++
		}
	}
	return "[" + strconv.Itoa(done) + "/" + strconv.Itoa(len(subs)) + "]"
}

func (m *Model) renderSubTask(st backend.SubTask, selected bool) string {
	cursor := " "
	if selected {
		cursor = ">"
	}
	title := st.Title
	if st.Status == backend.StatusCompleted {
		title = m.completedStyle.Render(title)
	} else {
		title = m.subtaskStyle.Render(title)
	}
	return cursor + "   └─" + statusIcon(st.Status) + " " + title
}

func (m *Model) renderStatusBar() string {
	left := ""
	if parent := m.content.ParentList(); parent != nil {
		left = string(m.content.Service()) + " / " + parent.Name()
	}
	if m.status != "" {
		left = m.status
	}

	right := "q:quit  ?:help"
	if m.filter != "" {
		right = "Filter: " + m.filter + "  " + right
	}

	padding := m.width - len(left) - len(right) - 2
	if padding < 1 {
		padding = 1
	}

	return m.statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", padding) + right)
}

func (m *Model) renderInputDialog(title string) string {
	if task, r, ok := m.selectedTask(); ok && m.mode != ModeAdd && m.mode != ModeFilter {
		name := task.Title
		if r.sub >= 0 {
			name = task.SubTasks[r.sub].Title
		}
		title += ": " + name
	}
	hint := "Enter: confirm  Esc: cancel"
	if m.mode == ModeFilter {
		hint = "Enter: filter  Esc: clear"
	}
	dialog := m.dialogStyle.Render(
		title + "\n\n" +
			m.textInput.View() + "\n\n" +
			m.helpStyle.Render(hint),
	)
	return m.centerDialog(dialog)
}

func (m *Model) renderHelpDialog() string {
	help := `Help - Key Bindings

Navigation:
  j/↓    Move down
  k/↑    Move up
  Tab    Switch focus between lists/tasks
  b      Show/hide the sidebar

Actions:
  a      Add new task
  A      Add sub-task to selected task
  e      Edit title
  c      Toggle completion
  s      Toggle star
  t      Set due date
  r      Set weekly recurrence
  x      Expand/collapse sub-tasks
  d      Delete (with confirm)
  /      Search/filter tasks

General:
  ?      Show this help
  q      Quit

Press any key to close`

	return m.centerDialog(m.dialogStyle.Render(help))
}

func (m *Model) renderConfirmDeleteDialog() string {
	dialog := m.dialogStyle.Render(
		"Delete selected task?\n\n" +
			m.helpStyle.Render("y: yes  n: no"),
	)
	return m.centerDialog(dialog)
}

func (m *Model) centerDialog(dialog string) string {
	lines := strings.Split(dialog, "\n")
	dialogHeight := len(lines)
	dialogWidth := 0
	for _, line := range lines {
		dialogWidth = max(dialogWidth, lipgloss.Width(line))
	}

	topPad := max((m.height-dialogHeight)/2, 0)
	leftPad := max((m.width-dialogWidth)/2, 0)

	var b strings.Builder
	for i := 0; i < topPad; i++ {
		b.WriteString("\n")
	}
	for _, line := range lines {
		b.WriteString(strings.Repeat(" ", leftPad))
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
