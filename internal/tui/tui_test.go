package tui_test

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"

	"done/backend"
	"done/backend/sqlite"
	"done/internal/tui"
)

// sendKeyAndWait sends a key message and waits briefly for processing.
func sendKeyAndWait(tm *teatest.TestModel, key tea.KeyMsg) {
	tm.Send(key)
	time.Sleep(20 * time.Millisecond)
}

// sendRunesAndWait sends a rune key message and waits briefly for processing.
func sendRunesAndWait(tm *teatest.TestModel, runes []rune) {
	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyRunes, Runes: runes})
}

func typeText(tm *teatest.TestModel, text string) {
	for _, r := range text {
		tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

type fixture struct {
	local    *sqlite.Provider
	registry *backend.Registry
	work     *backend.List
	personal *backend.List
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	local, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = local.Close() })

	work, err := local.CreateList(ctx, &backend.List{Name: "Work"})
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
	personal, err := local.CreateList(ctx, &backend.List{Name: "Personal"})
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
	for _, task := range []backend.Task{
		{Parent: work.ID, Title: "Review PR", Status: backend.StatusNotStarted},
		{Parent: work.ID, Title: "Write tests", Status: backend.StatusInProgress},
		{Parent: personal.ID, Title: "Buy groceries", Status: backend.StatusNotStarted},
	} {
		if _, err := local.CreateTask(ctx, &task); err != nil {
			t.Fatalf("create task: %v", err)
		}
	}

	reg := backend.NewRegistry()
	reg.RegisterWithPriority(backend.ServiceLocal, local, 10)
	return &fixture{local: local, registry: reg, work: work, personal: personal}
}

func (f *fixture) start(t *testing.T, opts ...tui.Option) *teatest.TestModel {
	t.Helper()
	opts = append([]tui.Option{tui.WithDefaultList("Work")}, opts...)
	tm := teatest.NewTestModel(t, tui.New(f.registry, opts...), teatest.WithInitialTermSize(100, 30))
	// lists and tasks load from the in-memory store
	time.Sleep(150 * time.Millisecond)
	return tm
}

func (f *fixture) workTasks(t *testing.T) []backend.Task {
	t.Helper()
	tasks, err := f.local.ReadTasksFromList(context.Background(), f.work.ID)
	if err != nil {
		t.Fatalf("read tasks: %v", err)
	}
	return tasks
}

// eventually polls cond until it holds or a second has passed.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func waitForText(t *testing.T, tm *teatest.TestModel, text string) {
	t.Helper()
	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return bytes.Contains(b, []byte(text))
	}, teatest.WithDuration(2*time.Second), teatest.WithCheckInterval(10*time.Millisecond))
}

func quit(t *testing.T, tm *teatest.TestModel) []byte {
	t.Helper()
	sendRunesAndWait(tm, []rune{'q'})
	out, err := io.ReadAll(tm.FinalOutput(t, teatest.WithFinalTimeout(time.Second)))
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	return out
}

func TestTUILaunchShowsSidebar(t *testing.T) {
	f := newFixture(t)
	tm := f.start(t)

	out := quit(t, tm)
	for _, want := range []string{"Review PR", "local", "All", "Today", "Starred", "Next 7 Days", "Done", "Work", "Personal"} {
		if !bytes.Contains(out, []byte(want)) {
			t.Errorf("expected sidebar entry %q", want)
		}
	}
}

func TestTUIListNavigation(t *testing.T) {
	f := newFixture(t)
	tm := f.start(t)

	// Work is followed by Personal
	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyDown})
	waitForText(t, tm, "Buy groceries")
	quit(t, tm)
}

func TestTUISmartListShowsOwningList(t *testing.T) {
	f := newFixture(t)
	tm := f.start(t, tui.WithDefaultList("all"))

	waitForText(t, tm, "(Personal)")
	quit(t, tm)
}

func TestTUIAddTask(t *testing.T) {
	f := newFixture(t)
	tm := f.start(t)

	sendRunesAndWait(tm, []rune{'a'})
	typeText(tm, "New test task")
	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyEnter})

	waitForText(t, tm, "New test task")
	quit(t, tm)

	eventually(t, func() bool { return len(f.workTasks(t)) == 3 }, "expected task to be stored")
}

func TestTUIEditTask(t *testing.T) {
	f := newFixture(t)
	tm := f.start(t)

	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyTab})
	sendRunesAndWait(tm, []rune{'e'})
	for range "Review PR" {
		tm.Send(tea.KeyMsg{Type: tea.KeyBackspace})
	}
	typeText(tm, "Merge PR")
	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyEnter})

	waitForText(t, tm, "Merge PR")
	quit(t, tm)
}

func TestTUICompleteTask(t *testing.T) {
	f := newFixture(t)
	tm := f.start(t)

	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyTab})
	sendRunesAndWait(tm, []rune{'c'})
	waitForText(t, tm, "[✓]")
	quit(t, tm)

	eventually(t, func() bool {
		for _, task := range f.workTasks(t) {
			if task.Title == "Review PR" {
				return task.IsCompleted() && task.CompletedOn != nil
			}
		}
		return false
	}, "expected task to be completed")
}

func TestTUIStarTask(t *testing.T) {
	f := newFixture(t)
	tm := f.start(t)

	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyTab})
	sendRunesAndWait(tm, []rune{'s'})
	waitForText(t, tm, "★")
	quit(t, tm)
}

func TestTUIRecurrenceEditor(t *testing.T) {
	f := newFixture(t)
	tm := f.start(t)

	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyTab})
	sendRunesAndWait(tm, []rune{'r'})
	typeText(tm, "friday monday")
	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyEnter})

	waitForText(t, tm, "↻ Mon, Fri")
	quit(t, tm)
}

func TestTUIDueDateWeekday(t *testing.T) {
	f := newFixture(t)
	// a Wednesday
	now := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	tm := f.start(t, tui.WithClock(func() time.Time { return now }))

	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyTab})
	sendRunesAndWait(tm, []rune{'t'})
	typeText(tm, "fri")
	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyEnter})
	quit(t, tm)

	eventually(t, func() bool {
		for _, task := range f.workTasks(t) {
			if task.Title == "Review PR" {
				return task.DueDate != nil && task.DueDate.UTC().Format("2006-01-02") == "2026-03-13"
			}
		}
		return false
	}, "expected due date on the coming Friday")
}

func TestTUIDeleteTask(t *testing.T) {
	f := newFixture(t)
	tm := f.start(t)

	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyTab})
	sendRunesAndWait(tm, []rune{'d'})
	sendRunesAndWait(tm, []rune{'y'})
	quit(t, tm)

	eventually(t, func() bool {
		tasks := f.workTasks(t)
		return len(tasks) == 1 && tasks[0].Title == "Write tests"
	}, "expected task to be deleted")
}

func TestTUISubTasks(t *testing.T) {
	f := newFixture(t)
	_, err := f.local.CreateTask(context.Background(), &backend.Task{
		Parent:   f.work.ID,
		Title:    "Parent task",
		SubTasks: []backend.SubTask{{Title: "Child task", Status: backend.StatusNotStarted}},
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	tm := f.start(t)

	waitForText(t, tm, "[0/1]")
	sendRunesAndWait(tm, []rune{'x'})
	waitForText(t, tm, "Child task")
	quit(t, tm)
}

func TestTUIFilterTasks(t *testing.T) {
	f := newFixture(t)
	tm := f.start(t)

	sendRunesAndWait(tm, []rune{'/'})
	typeText(tm, "Write")
	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyEnter})

	waitForText(t, tm, "Filter: Write")
	quit(t, tm)
}

func TestTUICollapseSidebar(t *testing.T) {
	f := newFixture(t)
	tm := f.start(t, tui.WithSidebarCollapsed(true))

	out := quit(t, tm)
	if bytes.Contains(out, []byte("Next 7 Days")) {
		t.Error("expected the sidebar to be hidden")
	}
}

func TestTUIKeyBindings(t *testing.T) {
	f := newFixture(t)
	tm := f.start(t)

	sendRunesAndWait(tm, []rune{'?'})
	waitForText(t, tm, "Key Bindings")
	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyEsc})
	quit(t, tm)
}

func TestTUIQuit(t *testing.T) {
	f := newFixture(t)
	tm := f.start(t)

	sendRunesAndWait(tm, []rune{'q'})
	tm.WaitFinished(t, teatest.WithFinalTimeout(time.Second))
}
