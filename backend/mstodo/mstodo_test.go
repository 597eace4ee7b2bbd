package mstodo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"done/backend"
	"done/backend/recurrence"
	"done/internal/credentials"
)

// =============================================================================
// Microsoft Graph API Mock Server for Tests
// =============================================================================

const testToken = "test-token"

// mockMSGraphServer simulates the Microsoft Graph API for To Do
type mockMSGraphServer struct {
	server     *httptest.Server
	mu         sync.Mutex
	lists      []*msTaskList
	tasks      map[string][]*msTask // listID -> tasks in insertion order
	pageSize   int
	nextID     int
	requestLog []string
	lastPatch  map[string]json.RawMessage
}

func newMockMSGraphServer(t *testing.T) *mockMSGraphServer {
	m := &mockMSGraphServer{
		tasks:    make(map[string][]*msTask),
		pageSize: 2,
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handler))
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockMSGraphServer) URL() string {
	return m.server.URL
}

func (m *mockMSGraphServer) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *mockMSGraphServer) AddTaskList(id, displayName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists = append(m.lists, &msTaskList{ID: id, DisplayName: displayName, IsOwner: true})
}

func (m *mockMSGraphServer) AddTask(listID string, task msTask) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task.CreatedDateTime == "" {
		task.CreatedDateTime = time.Now().UTC().Format(time.RFC3339)
		task.LastModifiedDateTime = task.CreatedDateTime
	}
	m.tasks[listID] = append(m.tasks[listID], &task)
}

func (m *mockMSGraphServer) Requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requestLog...)
}

func (m *mockMSGraphServer) findList(id string) *msTaskList {
	for _, l := range m.lists {
		if l.ID == id {
			return l
		}
	}
	return nil
}

func (m *mockMSGraphServer) findTask(listID, taskID string) *msTask {
	for _, t := range m.tasks[listID] {
		if t.ID == taskID {
			return t
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (m *mockMSGraphServer) handler(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestLog = append(m.requestLog, r.Method+" "+r.URL.Path)

	if r.Header.Get("Authorization") != "Bearer "+testToken {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "InvalidAuthenticationToken"})
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/v1.0/me/todo/lists"), "/")
	// parts[0] is always ""; then listID, "tasks", taskID, "checklistItems", itemID
	switch len(parts) {
	case 1:
		m.handleLists(w, r)
	case 2:
		m.handleList(w, r, parts[1])
	case 3:
		m.handleTasks(w, r, parts[1])
	case 4:
		m.handleTask(w, r, parts[1], parts[3])
	case 5, 6:
		task := m.findTask(parts[1], parts[3])
		if task == nil {
			http.NotFound(w, r)
			return
		}
		itemID := ""
		if len(parts) == 6 {
			itemID = parts[5]
		}
		m.handleChecklist(w, r, task, itemID)
	default:
		http.NotFound(w, r)
	}
}

func (m *mockMSGraphServer) handleLists(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]interface{}{"value": m.lists})
	case http.MethodPost:
		var body struct {
			DisplayName string `json:"displayName"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		list := &msTaskList{ID: m.id("list"), DisplayName: body.DisplayName, IsOwner: true}
		m.lists = append(m.lists, list)
		writeJSON(w, http.StatusCreated, list)
	}
}

func (m *mockMSGraphServer) handleList(w http.ResponseWriter, r *http.Request, listID string) {
	list := m.findList(listID)
	if list == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "ErrorItemNotFound"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, list)
	case http.MethodPatch:
		var body struct {
			DisplayName string `json:"displayName"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		list.DisplayName = body.DisplayName
		writeJSON(w, http.StatusOK, list)
	case http.MethodDelete:
		for i, l := range m.lists {
			if l.ID == listID {
				m.lists = append(m.lists[:i], m.lists[i+1:]...)
				break
			}
		}
		delete(m.tasks, listID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (m *mockMSGraphServer) handleTasks(w http.ResponseWriter, r *http.Request, listID string) {
	if m.findList(listID) == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "ErrorItemNotFound"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		skip, _ := strconv.Atoi(r.URL.Query().Get("$skip"))
		all := m.tasks[listID]
		end := skip + m.pageSize
		if end > len(all) {
			end = len(all)
		}
		page := map[string]interface{}{"value": all[skip:end]}
		if end < len(all) {
			page["@odata.nextLink"] = fmt.Sprintf("%s/v1.0/me/todo/lists/%s/tasks?$expand=checklistItems&$skip=%d", m.server.URL, listID, end)
		}
		writeJSON(w, http.StatusOK, page)
	case http.MethodPost:
		var task msTask
		_ = json.NewDecoder(r.Body).Decode(&task)
		task.ID = m.id("task")
		for i := range task.ChecklistItems {
			task.ChecklistItems[i].ID = m.id("item")
		}
		m.tasks[listID] = append(m.tasks[listID], &task)
		writeJSON(w, http.StatusCreated, task)
	}
}

func (m *mockMSGraphServer) handleTask(w http.ResponseWriter, r *http.Request, listID, taskID string) {
	task := m.findTask(listID, taskID)
	if task == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "ErrorItemNotFound"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, task)
	case http.MethodPatch:
		var fields map[string]json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&fields)
		m.lastPatch = fields
		for key, raw := range fields {
			switch key {
			case "title":
				_ = json.Unmarshal(raw, &task.Title)
			case "status":
				_ = json.Unmarshal(raw, &task.Status)
			case "importance":
				_ = json.Unmarshal(raw, &task.Importance)
			case "body":
				_ = json.Unmarshal(raw, &task.Body)
			case "dueDateTime":
				task.DueDateTime = nil
				_ = json.Unmarshal(raw, &task.DueDateTime)
			case "recurrence":
				task.Recurrence = nil
				_ = json.Unmarshal(raw, &task.Recurrence)
			}
		}
		writeJSON(w, http.StatusOK, task)
	case http.MethodDelete:
		tasks := m.tasks[listID]
		for i, t := range tasks {
			if t.ID == taskID {
				m.tasks[listID] = append(tasks[:i], tasks[i+1:]...)
				break
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (m *mockMSGraphServer) handleChecklist(w http.ResponseWriter, r *http.Request, task *msTask, itemID string) {
	switch {
	case itemID == "" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]interface{}{"value": task.ChecklistItems})
	case itemID == "" && r.Method == http.MethodPost:
		var item msChecklistItem
		_ = json.NewDecoder(r.Body).Decode(&item)
		item.ID = m.id("item")
		task.ChecklistItems = append(task.ChecklistItems, item)
		writeJSON(w, http.StatusCreated, item)
	case r.Method == http.MethodPatch:
		for i := range task.ChecklistItems {
			if task.ChecklistItems[i].ID == itemID {
				_ = json.NewDecoder(r.Body).Decode(&task.ChecklistItems[i])
				task.ChecklistItems[i].ID = itemID
				writeJSON(w, http.StatusOK, task.ChecklistItems[i])
				return
			}
		}
		http.NotFound(w, r)
	case r.Method == http.MethodDelete:
		for i := range task.ChecklistItems {
			if task.ChecklistItems[i].ID == itemID {
				task.ChecklistItems = append(task.ChecklistItems[:i], task.ChecklistItems[i+1:]...)
				break
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// =============================================================================
// Helpers
// =============================================================================

func newTestProvider(t *testing.T, m *mockMSGraphServer, token string) *Provider {
	t.Helper()
	creds := credentials.NewManager(
		credentials.WithKeyring(credentials.NewMockKeyring()),
		credentials.WithEnv(func(string) string { return "" }),
	)
	if token != "" {
		if err := creds.Set(context.Background(), string(backend.ServiceMicrosoft), credentials.DefaultAccount, token); err != nil {
			t.Fatalf("failed to store token: %v", err)
		}
	}
	p, err := New(Config{
		ClientID:    "client",
		RedirectURL: "http://localhost:8085/oauth/mstodo/callback",
		BaseURL:     m.URL(),
		Endpoint: oauth2.Endpoint{
			AuthURL:  m.URL() + "/authorize",
			TokenURL: m.URL() + "/token",
		},
		Credentials: creds,
		Opener:      func(string) error { return nil },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// =============================================================================
// Tests
// =============================================================================

func TestNewRequiresClientID(t *testing.T) {
	if _, err := New(Config{Credentials: credentials.NewManager()}); err == nil {
		t.Error("expected error without client id")
	}
	if _, err := New(Config{ClientID: "x"}); err == nil {
		t.Error("expected error without credential manager")
	}
}

func TestCapabilities(t *testing.T) {
	m := newMockMSGraphServer(t)

	p := newTestProvider(t, m, "")
	if p.Available() {
		t.Error("provider without token should be unavailable")
	}
	if !p.StreamSupport() {
		t.Error("mstodo provider streams tasks")
	}

	p = newTestProvider(t, m, testToken)
	if !p.Available() {
		t.Error("provider with token should be available")
	}
}

func TestReadLists(t *testing.T) {
	m := newMockMSGraphServer(t)
	m.AddTaskList("l1", "Tasks")
	m.AddTaskList("l2", "Groceries")
	p := newTestProvider(t, m, testToken)

	lists, err := p.ReadLists(context.Background())
	if err != nil {
		t.Fatalf("ReadLists() error = %v", err)
	}
	if len(lists) != 2 {
		t.Fatalf("expected 2 lists, got %d", len(lists))
	}
	if lists[1].Name != "Groceries" || lists[1].Service != backend.ServiceMicrosoft {
		t.Errorf("unexpected list %+v", lists[1])
	}

	seq, err := p.GetLists(context.Background())
	if err != nil {
		t.Fatalf("GetLists() error = %v", err)
	}
	count := 0
	for _, err := range seq {
		if err != nil {
			t.Fatal(err)
		}
		count++
	}
	if count != 2 {
		t.Errorf("GetLists yielded %d lists, want 2", count)
	}
}

func TestListCRUD(t *testing.T) {
	m := newMockMSGraphServer(t)
	p := newTestProvider(t, m, testToken)
	ctx := context.Background()

	created, err := p.CreateList(ctx, &backend.List{Name: "Work"})
	if err != nil {
		t.Fatalf("CreateList() error = %v", err)
	}
	if created.ID == "" || created.Name != "Work" {
		t.Errorf("unexpected created list %+v", created)
	}

	created.Name = "Office"
	updated, err := p.UpdateList(ctx, created)
	if err != nil {
		t.Fatalf("UpdateList() error = %v", err)
	}
	if updated.Name != "Office" {
		t.Errorf("expected renamed list, got %s", updated.Name)
	}

	got, err := p.ReadList(ctx, created.ID)
	if err != nil || got.Name != "Office" {
		t.Errorf("ReadList() = %+v, %v", got, err)
	}

	if err := p.DeleteList(ctx, created.ID); err != nil {
		t.Fatalf("DeleteList() error = %v", err)
	}
	_, err = p.ReadList(ctx, created.ID)
	if !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
}

func TestGetTasksFollowsNextLink(t *testing.T) {
	m := newMockMSGraphServer(t)
	m.AddTaskList("l1", "Tasks")
	for i := 1; i <= 5; i++ {
		m.AddTask("l1", msTask{ID: fmt.Sprintf("t%d", i), Title: fmt.Sprintf("Task %d", i), Status: "notStarted"})
	}
	p := newTestProvider(t, m, testToken)

	seq, err := p.GetTasks(context.Background(), "l1")
	if err != nil {
		t.Fatalf("GetTasks() error = %v", err)
	}
	if len(m.Requests()) != 0 {
		t.Error("GetTasks must not issue requests before iteration")
	}

	var titles []string
	for task, err := range seq {
		if err != nil {
			t.Fatalf("stream error: %v", err)
		}
		if task.Parent != "l1" {
			t.Errorf("task %s has parent %q", task.ID, task.Parent)
		}
		titles = append(titles, task.Title)
	}
	if len(titles) != 5 || titles[4] != "Task 5" {
		t.Errorf("unexpected titles %v", titles)
	}
	if got := len(m.Requests()); got != 3 {
		t.Errorf("expected 3 page requests, got %d", got)
	}
}

func TestGetTasksEarlyBreak(t *testing.T) {
	m := newMockMSGraphServer(t)
	m.AddTaskList("l1", "Tasks")
	for i := 1; i <= 5; i++ {
		m.AddTask("l1", msTask{ID: fmt.Sprintf("t%d", i), Title: "x"})
	}
	p := newTestProvider(t, m, testToken)

	seq, _ := p.GetTasks(context.Background(), "l1")
	for range seq {
		break
	}
	if got := len(m.Requests()); got != 1 {
		t.Errorf("early break should stop paging, got %d requests", got)
	}
}

func TestGetTasksUnauthorized(t *testing.T) {
	m := newMockMSGraphServer(t)
	m.AddTaskList("l1", "Tasks")
	p := newTestProvider(t, m, "wrong-token")

	seq, _ := p.GetTasks(context.Background(), "l1")
	var gotErr error
	for _, err := range seq {
		gotErr = err
	}
	if !errors.Is(gotErr, backend.ErrAuth) {
		t.Errorf("expected auth error, got %v", gotErr)
	}
}

func TestOperationsWithoutToken(t *testing.T) {
	m := newMockMSGraphServer(t)
	p := newTestProvider(t, m, "")

	_, err := p.ReadLists(context.Background())
	if !errors.Is(err, backend.ErrAuth) {
		t.Errorf("expected auth error without token, got %v", err)
	}
	if len(m.Requests()) != 0 {
		t.Error("no request should reach the server without a token")
	}
}

func TestReadTasksAcrossLists(t *testing.T) {
	m := newMockMSGraphServer(t)
	m.AddTaskList("l1", "Tasks")
	m.AddTaskList("l2", "Other")
	m.AddTask("l1", msTask{ID: "a", Title: "A"})
	m.AddTask("l2", msTask{ID: "b", Title: "B"})
	m.AddTask("l2", msTask{ID: "c", Title: "C"})
	p := newTestProvider(t, m, testToken)

	tasks, err := p.ReadTasks(context.Background())
	if err != nil {
		t.Fatalf("ReadTasks() error = %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	if tasks[1].Parent != "l2" {
		t.Errorf("expected task b in l2, got %s", tasks[1].Parent)
	}
}

func TestTaskMapping(t *testing.T) {
	m := newMockMSGraphServer(t)
	m.AddTaskList("l1", "Tasks")
	m.AddTask("l1", msTask{
		ID:                "t1",
		Title:             "Water plants",
		Body:              &msTaskBody{Content: "balcony", ContentType: "text"},
		Status:            "completed",
		Importance:        "high",
		DueDateTime:       &msDateTime{DateTime: "2024-03-15T00:00:00.0000000", TimeZone: "UTC"},
		CompletedDateTime: &msDateTime{DateTime: "2024-03-14T10:00:00.0000000", TimeZone: "UTC"},
		Recurrence: &msRecurrence{
			Pattern: msPattern{Type: "weekly", Interval: 1, DaysOfWeek: []string{"monday", "Thursday"}},
			Range:   msRange{Type: "noEnd", StartDate: "2024-03-15"},
		},
		ChecklistItems: []msChecklistItem{
			{ID: "c1", DisplayName: "Fill can", IsChecked: true},
			{ID: "c2", DisplayName: "Pour"},
		},
	})
	p := newTestProvider(t, m, testToken)

	task, err := p.ReadTask(context.Background(), "l1", "t1")
	if err != nil {
		t.Fatalf("ReadTask() error = %v", err)
	}
	if task.Notes != "balcony" || !task.IsCompleted() {
		t.Errorf("unexpected notes/status: %q %s", task.Notes, task.Status)
	}
	if !task.Favorite || task.Priority != backend.PriorityHigh {
		t.Errorf("high importance should map to favorite + high priority, got %v %s", task.Favorite, task.Priority)
	}
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if task.DueDate == nil || !task.DueDate.Equal(want) {
		t.Errorf("unexpected due date %v", task.DueDate)
	}
	if task.CompletedOn == nil {
		t.Error("expected completion time")
	}
	if task.Recurrence == nil || task.Recurrence.String() != "Mon, Thu" {
		t.Errorf("unexpected recurrence %v", task.Recurrence)
	}
	if len(task.SubTasks) != 2 || task.SubTasks[0].Status != backend.StatusCompleted || task.SubTasks[1].Status != backend.StatusNotStarted {
		t.Errorf("unexpected sub-tasks %+v", task.SubTasks)
	}

	_, err = p.ReadTask(context.Background(), "l1", "missing")
	if !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestCreateTask(t *testing.T) {
	m := newMockMSGraphServer(t)
	m.AddTaskList("l1", "Tasks")
	p := newTestProvider(t, m, testToken)

	due := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	rec := recurrence.FromString("Mon, Fri")
	created, err := p.CreateTask(context.Background(), &backend.Task{
		Parent:     "l1",
		Title:      "Standup",
		Priority:   backend.PriorityLow,
		DueDate:    &due,
		Recurrence: &rec,
		SubTasks:   []backend.SubTask{{Title: "notes"}},
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if created.ID == "" || created.Parent != "l1" {
		t.Errorf("unexpected created task %+v", created)
	}
	if created.Priority != backend.PriorityLow || created.Favorite {
		t.Errorf("unexpected priority %s favorite %v", created.Priority, created.Favorite)
	}
	if created.Recurrence == nil || *created.Recurrence != rec {
		t.Errorf("recurrence not round-tripped: %v", created.Recurrence)
	}
	if len(created.SubTasks) != 1 || created.SubTasks[0].ID == "" {
		t.Errorf("expected created checklist item, got %+v", created.SubTasks)
	}

	m.mu.Lock()
	stored := m.findTask("l1", created.ID)
	m.mu.Unlock()
	if stored.DueDateTime == nil || stored.DueDateTime.DateTime != "2024-05-01T09:00:00.0000000" {
		t.Errorf("unexpected stored due date %+v", stored.DueDateTime)
	}
	if stored.Recurrence.Range.StartDate != "2024-05-01" {
		t.Errorf("recurrence should start at the due date, got %s", stored.Recurrence.Range.StartDate)
	}
}

func TestUpdateTaskSyncsChecklist(t *testing.T) {
	m := newMockMSGraphServer(t)
	m.AddTaskList("l1", "Tasks")
	m.AddTask("l1", msTask{
		ID:         "t1",
		Title:      "Trip",
		Status:     "notStarted",
		Importance: "normal",
		ChecklistItems: []msChecklistItem{
			{ID: "keep", DisplayName: "Passport"},
			{ID: "edit", DisplayName: "Tickts"},
			{ID: "drop", DisplayName: "Umbrella"},
		},
		Recurrence: &msRecurrence{Pattern: msPattern{Type: "weekly", DaysOfWeek: []string{"sunday"}}},
	})
	p := newTestProvider(t, m, testToken)
	ctx := context.Background()

	task, err := p.ReadTask(ctx, "l1", "t1")
	if err != nil {
		t.Fatal(err)
	}
	task.Title = "Trip to Rome"
	task.Favorite = true
	task.Recurrence = nil
	task.SubTasks = []backend.SubTask{
		{ID: "keep", Title: "Passport"},
		{ID: "edit", Title: "Tickets", Status: backend.StatusCompleted},
		{Title: "Charger"},
	}

	updated, err := p.UpdateTask(ctx, task)
	if err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if updated.Title != "Trip to Rome" || !updated.Favorite {
		t.Errorf("unexpected updated task %+v", updated)
	}
	if updated.Recurrence != nil {
		t.Errorf("expected recurrence cleared, got %v", updated.Recurrence)
	}

	var titles []string
	for _, st := range updated.SubTasks {
		titles = append(titles, st.Title)
	}
	if strings.Join(titles, ",") != "Passport,Tickets,Charger" {
		t.Errorf("unexpected checklist %v", titles)
	}
	if updated.SubTasks[1].Status != backend.StatusCompleted {
		t.Error("expected edited item checked")
	}

	var patchedKeep bool
	for _, req := range m.Requests() {
		if req == "PATCH /v1.0/me/todo/lists/l1/tasks/t1/checklistItems/keep" {
			patchedKeep = true
		}
	}
	if patchedKeep {
		t.Error("unchanged checklist items should not be patched")
	}
}

func TestDeleteTask(t *testing.T) {
	m := newMockMSGraphServer(t)
	m.AddTaskList("l1", "Tasks")
	m.AddTask("l1", msTask{ID: "t1", Title: "x"})
	p := newTestProvider(t, m, testToken)

	if err := p.DeleteTask(context.Background(), "l1", "t1"); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	tasks, err := p.ReadTasksFromList(context.Background(), "l1")
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 0 {
		t.Errorf("expected no tasks, got %d", len(tasks))
	}
}

func TestServerErrorIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := &mockMSGraphServer{server: srv}
	p := newTestProvider(t, m, testToken)

	_, err := p.ReadLists(context.Background())
	if !errors.Is(err, backend.ErrTransport) {
		t.Errorf("expected transport error, got %v", err)
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestLoginAndHandleURIParams(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("code_verifier") == "" {
			http.Error(w, "missing verifier", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access_token": testToken,
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenSrv.Close()

	m := newMockMSGraphServer(t)
	m.AddTaskList("l1", "Tasks")

	var opened string
	creds := credentials.NewManager(
		credentials.WithKeyring(credentials.NewMockKeyring()),
		credentials.WithEnv(func(string) string { return "" }),
	)
	p, err := New(Config{
		ClientID:    "client",
		RedirectURL: "http://localhost:8085/oauth/mstodo/callback",
		BaseURL:     m.URL(),
		Endpoint: oauth2.Endpoint{
			AuthURL:   tokenSrv.URL + "/authorize",
			TokenURL:  tokenSrv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Credentials: creds,
		Opener:      func(u string) error { opened = u; return nil },
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := p.Login(ctx); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	authURL, err := url.Parse(opened)
	if err != nil {
		t.Fatalf("invalid auth URL %q", opened)
	}
	if !strings.Contains(authURL.Query().Get("scope"), "Tasks.ReadWrite") {
		t.Errorf("expected Tasks.ReadWrite scope, got %s", authURL.Query().Get("scope"))
	}

	bad, _ := url.Parse("http://localhost:8085/oauth/mstodo/callback?code=abc&state=forged")
	if err := p.HandleURIParams(ctx, bad); !errors.Is(err, backend.ErrAuth) {
		t.Errorf("expected auth error for forged state, got %v", err)
	}

	redirect, _ := url.Parse("http://localhost:8085/oauth/mstodo/callback?code=abc&state=" + authURL.Query().Get("state"))
	if err := p.HandleURIParams(ctx, redirect); err != nil {
		t.Fatalf("HandleURIParams() error = %v", err)
	}
	if !p.Available() {
		t.Fatal("expected provider available after login")
	}

	lists, err := p.ReadLists(ctx)
	if err != nil || len(lists) != 1 {
		t.Errorf("ReadLists after login = %v, %v", lists, err)
	}

	if err := p.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if p.Available() {
		t.Error("expected provider unavailable after logout")
	}
}

func TestPatternWeekdays(t *testing.T) {
	p := msPattern{DaysOfWeek: []string{"Monday", "sunday", "bogus"}}
	got := recurrence.FromPattern(p)
	if got.String() != "Mon, Sun" {
		t.Errorf("FromPattern(msPattern) = %q", got.String())
	}

	out := toMSRecurrence(got, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if strings.Join(out.Pattern.DaysOfWeek, ",") != "monday,sunday" {
		t.Errorf("unexpected outbound days %v", out.Pattern.DaysOfWeek)
	}
	if recurrence.FromPattern(out.Pattern) != got {
		t.Error("pattern round trip changed the day set")
	}
}

func TestParseMSDateTime(t *testing.T) {
	tests := []struct {
		name string
		in   *msDateTime
		want string
	}{
		{"nil", nil, ""},
		{"empty", &msDateTime{}, ""},
		{"graph", &msDateTime{DateTime: "2024-01-02T03:04:05.0000000", TimeZone: "UTC"}, "2024-01-02T03:04:05Z"},
		{"rfc3339", &msDateTime{DateTime: "2024-01-02T03:04:05Z"}, "2024-01-02T03:04:05Z"},
		{"garbage", &msDateTime{DateTime: "tomorrow"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseMSDateTime(tt.in)
			if tt.want == "" {
				if got != nil {
					t.Errorf("expected nil, got %v", got)
				}
				return
			}
			if got == nil || got.UTC().Format(time.RFC3339) != tt.want {
				t.Errorf("parseMSDateTime() = %v, want %s", got, tt.want)
			}
		})
	}
}

func TestImportanceMapping(t *testing.T) {
	tests := []struct {
		priority backend.Priority
		favorite bool
		want     string
	}{
		{backend.PriorityLow, false, "low"},
		{backend.PriorityNormal, false, "normal"},
		{backend.PriorityHigh, false, "high"},
		{backend.PriorityLow, true, "high"},
		{"", false, "normal"},
	}
	for _, tt := range tests {
		if got := priorityToImportance(tt.priority, tt.favorite); got != tt.want {
			t.Errorf("priorityToImportance(%s, %v) = %s, want %s", tt.priority, tt.favorite, got, tt.want)
		}
	}
	if importanceToPriority("bogus") != backend.PriorityNormal {
		t.Error("unknown importance should be normal")
	}
}

func TestUpdateTaskClearsRecurrence(t *testing.T) {
	m := newMockMSGraphServer(t)
	m.AddTaskList("l1", "Tasks")
	m.AddTask("l1", msTask{
		ID:         "t1",
		Title:      "Water plants",
		Status:     "notStarted",
		Importance: "normal",
		Recurrence: &msRecurrence{Pattern: msPattern{Type: "weekly", DaysOfWeek: []string{"monday", "friday"}}},
	})
	p := newTestProvider(t, m, testToken)
	ctx := context.Background()

	task, err := p.ReadTask(ctx, "l1", "t1")
	if err != nil {
		t.Fatal(err)
	}
	if task.Recurrence == nil || task.Recurrence.IsEmpty() {
		t.Fatalf("expected a recurrence to start with, got %v", task.Recurrence)
	}

	for name, rec := range map[string]*recurrence.Recurrence{"nil": nil, "empty": {}} {
		task.Recurrence = rec
		updated, err := p.UpdateTask(ctx, task)
		if err != nil {
			t.Fatalf("%s: UpdateTask() error = %v", name, err)
		}

		m.mu.Lock()
		raw, sent := m.lastPatch["recurrence"]
		m.mu.Unlock()
		if !sent || string(raw) != "null" {
			t.Errorf("%s: PATCH recurrence = %q (sent %v), want null", name, raw, sent)
		}
		if updated.Recurrence != nil && !updated.Recurrence.IsEmpty() {
			t.Errorf("%s: recurrence came back as %v", name, updated.Recurrence)
		}
	}
}
