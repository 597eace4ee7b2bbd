// Package sqlite provides the local provider, a task store in a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"done/backend"
	"done/backend/recurrence"
)

// Provider implements backend.Provider using SQLite
type Provider struct {
	db          *sql.DB
	defaultList string
}

// Option configures the local provider
type Option func(*Provider)

// WithDefaultList creates a list with this name when the store has none.
func WithDefaultList(name string) Option {
	return func(p *Provider) { p.defaultList = name }
}

// New opens the database at path and initializes the schema
func New(path string, opts ...Option) (*Provider, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	p := &Provider{db: db}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := p.seedDefaultList(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

// initSchema creates the database tables if they don't exist
func (p *Provider) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS task_lists (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT DEFAULT '',
			icon TEXT DEFAULT '',
			created TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			list_id TEXT NOT NULL,
			title TEXT NOT NULL,
			notes TEXT DEFAULT '',
			status TEXT NOT NULL DEFAULT 'NOT-STARTED',
			priority TEXT NOT NULL DEFAULT 'normal',
			due_date TEXT,
			completed TEXT,
			favorite INTEGER NOT NULL DEFAULT 0,
			today INTEGER NOT NULL DEFAULT 0,
			recurrence TEXT,
			created TEXT NOT NULL,
			modified TEXT NOT NULL,
			FOREIGN KEY (list_id) REFERENCES task_lists(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS subtasks (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			title TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'NOT-STARTED',
			FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_list_id ON tasks(list_id);
		CREATE INDEX IF NOT EXISTS idx_subtasks_task_id ON subtasks(task_id);
	`

	// Enable foreign keys
	if _, err := p.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}

	_, err := p.db.Exec(schema)
	return err
}

func (p *Provider) seedDefaultList() error {
	if p.defaultList == "" {
		return nil
	}
	var count int
	if err := p.db.QueryRow("SELECT COUNT(*) FROM task_lists").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err := p.db.Exec("INSERT INTO task_lists (id, name, icon, created) VALUES (?, ?, ?, ?)",
		uuid.New().String(), p.defaultList, "view-list-symbolic", time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

func transportErr(op string, err error) error {
	return backend.TransportError(backend.ServiceLocal, op, err)
}

// =============================================================================
// Authentication and capabilities
// =============================================================================

// Login is a no-op: the local store needs no account
func (p *Provider) Login(ctx context.Context) error { return nil }

// Logout is a no-op
func (p *Provider) Logout(ctx context.Context) error { return nil }

// HandleURIParams is a no-op
func (p *Provider) HandleURIParams(ctx context.Context, uri *url.URL) error { return nil }

// Available is always true
func (p *Provider) Available() bool { return true }

// StreamSupport is false; callers use the bulk reads
func (p *Provider) StreamSupport() bool { return false }

// =============================================================================
// List Operations
// =============================================================================

// ReadLists returns all task lists ordered by creation
func (p *Provider) ReadLists(ctx context.Context) ([]backend.List, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT id, name, description, icon FROM task_lists ORDER BY created, name")
	if err != nil {
		return nil, transportErr("read lists", err)
	}
	defer func() { _ = rows.Close() }()

	lists := []backend.List{}
	for rows.Next() {
		l := backend.List{Service: backend.ServiceLocal}
		if err := rows.Scan(&l.ID, &l.Name, &l.Description, &l.Icon); err != nil {
			return nil, transportErr("read lists", err)
		}
		lists = append(lists, l)
	}
	if err := rows.Err(); err != nil {
		return nil, transportErr("read lists", err)
	}
	return lists, nil
}

// GetLists always fails: the local provider does not stream.
func (p *Provider) GetLists(ctx context.Context) (iter.Seq2[backend.List, error], error) {
	return nil, backend.UnsupportedError(backend.ServiceLocal, "get lists")
}

// ReadList returns a specific list by ID
func (p *Provider) ReadList(ctx context.Context, listID string) (*backend.List, error) {
	l := backend.List{Service: backend.ServiceLocal}
	err := p.db.QueryRowContext(ctx,
		"SELECT id, name, description, icon FROM task_lists WHERE id = ?", listID,
	).Scan(&l.ID, &l.Name, &l.Description, &l.Icon)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, backend.NotFoundError(backend.ServiceLocal, "read list", listID)
	}
	if err != nil {
		return nil, transportErr("read list", err)
	}
	return &l, nil
}

// CreateList creates a new list with a generated ID
func (p *Provider) CreateList(ctx context.Context, list *backend.List) (*backend.List, error) {
	if strings.TrimSpace(list.Name) == "" {
		return nil, transportErr("create list", fmt.Errorf("list name is required"))
	}
	created := backend.List{
		ID:          uuid.New().String(),
		Name:        list.Name,
		Description: list.Description,
		Icon:        list.Icon,
		Service:     backend.ServiceLocal,
	}
	_, err := p.db.ExecContext(ctx,
		"INSERT INTO task_lists (id, name, description, icon, created) VALUES (?, ?, ?, ?, ?)",
		created.ID, created.Name, created.Description, created.Icon, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, transportErr("create list", err)
	}
	return &created, nil
}

// UpdateList changes name, description and icon
func (p *Provider) UpdateList(ctx context.Context, list *backend.List) (*backend.List, error) {
	res, err := p.db.ExecContext(ctx,
		"UPDATE task_lists SET name = ?, description = ?, icon = ? WHERE id = ?",
		list.Name, list.Description, list.Icon, list.ID,
	)
	if err != nil {
		return nil, transportErr("update list", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, backend.NotFoundError(backend.ServiceLocal, "update list", list.ID)
	}
	return p.ReadList(ctx, list.ID)
}

// DeleteList removes a list and, by cascade, its tasks
func (p *Provider) DeleteList(ctx context.Context, listID string) error {
	res, err := p.db.ExecContext(ctx, "DELETE FROM task_lists WHERE id = ?", listID)
	if err != nil {
		return transportErr("delete list", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return backend.NotFoundError(backend.ServiceLocal, "delete list", listID)
	}
	return nil
}

// =============================================================================
// Task Operations
// =============================================================================

const taskColumns = `id, list_id, title, notes, status, priority, due_date, completed,
	favorite, today, recurrence, created, modified`

// ReadTasks returns every task in the store
func (p *Provider) ReadTasks(ctx context.Context) ([]backend.Task, error) {
	return p.queryTasks(ctx, "read tasks", "SELECT "+taskColumns+" FROM tasks ORDER BY created")
}

// ReadTasksFromList returns the tasks of one list
func (p *Provider) ReadTasksFromList(ctx context.Context, listID string) ([]backend.Task, error) {
	return p.queryTasks(ctx, "read tasks from list",
		"SELECT "+taskColumns+" FROM tasks WHERE list_id = ? ORDER BY created", listID)
}

// GetTasks always fails: the local provider does not stream.
func (p *Provider) GetTasks(ctx context.Context, listID string) (iter.Seq2[backend.Task, error], error) {
	return nil, backend.UnsupportedError(backend.ServiceLocal, "get tasks")
}

// ReadTask returns a specific task by ID
func (p *Provider) ReadTask(ctx context.Context, listID, taskID string) (*backend.Task, error) {
	found, err := p.queryTasks(ctx, "read task",
		"SELECT "+taskColumns+" FROM tasks WHERE list_id = ? AND id = ?", listID, taskID)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, backend.NotFoundError(backend.ServiceLocal, "read task", taskID)
	}
	return &found[0], nil
}

// CreateTask adds a new task to its parent list
func (p *Provider) CreateTask(ctx context.Context, task *backend.Task) (*backend.Task, error) {
	if _, err := p.ReadList(ctx, task.Parent); err != nil {
		return nil, err
	}

	created := *task
	created.ID = uuid.New().String()
	now := time.Now().UTC()
	created.Created = now
	created.Modified = now
	if created.Status == "" {
		created.Status = backend.StatusNotStarted
	}
	if created.Priority == "" {
		created.Priority = backend.PriorityNormal
	}
	created.SubTasks = assignSubTaskIDs(task.SubTasks)

	err := p.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			created.ID, created.Parent, created.Title, created.Notes, created.Status, created.Priority,
			timeToNullString(created.DueDate), timeToNullString(created.CompletedOn),
			created.Favorite, created.Today, recurrenceToNullString(created.Recurrence),
			now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
		)
		if err != nil {
			return err
		}
		return insertSubTasks(ctx, tx, created.ID, created.SubTasks)
	})
	if err != nil {
		return nil, transportErr("create task", err)
	}
	return &created, nil
}

// UpdateTask rewrites all fields of an existing task, including its sub-tasks
func (p *Provider) UpdateTask(ctx context.Context, task *backend.Task) (*backend.Task, error) {
	nowStr := time.Now().UTC().Format(time.RFC3339Nano)
	var missing bool

	err := p.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE tasks SET title = ?, notes = ?, status = ?, priority = ?, due_date = ?, completed = ?,
			 favorite = ?, today = ?, recurrence = ?, modified = ?
			 WHERE id = ? AND list_id = ?`,
			task.Title, task.Notes, task.Status, task.Priority,
			timeToNullString(task.DueDate), timeToNullString(task.CompletedOn),
			task.Favorite, task.Today, recurrenceToNullString(task.Recurrence), nowStr,
			task.ID, task.Parent,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			missing = true
			return nil
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM subtasks WHERE task_id = ?", task.ID); err != nil {
			return err
		}
		return insertSubTasks(ctx, tx, task.ID, assignSubTaskIDs(task.SubTasks))
	})
	if err != nil {
		return nil, transportErr("update task", err)
	}
	if missing {
		return nil, backend.NotFoundError(backend.ServiceLocal, "update task", task.ID)
	}

	// Fetch the updated task to get all fields including Created
	return p.ReadTask(ctx, task.Parent, task.ID)
}

// DeleteTask removes a task and its sub-tasks
func (p *Provider) DeleteTask(ctx context.Context, listID, taskID string) error {
	res, err := p.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ? AND list_id = ?", taskID, listID)
	if err != nil {
		return transportErr("delete task", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return backend.NotFoundError(backend.ServiceLocal, "delete task", taskID)
	}
	return nil
}

// Close closes the database connection
func (p *Provider) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func (p *Provider) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// queryTasks runs a task query and attaches the sub-tasks of every result
func (p *Provider) queryTasks(ctx context.Context, op, query string, args ...any) ([]backend.Task, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, transportErr(op, err)
	}

	result := []backend.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			_ = rows.Close()
			return nil, transportErr(op, err)
		}
		result = append(result, *t)
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, transportErr(op, err)
	}

	if err := p.attachSubTasks(ctx, result); err != nil {
		return nil, transportErr(op, err)
	}
	return result, nil
}

func (p *Provider) attachSubTasks(ctx context.Context, tasks []backend.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	index := make(map[string]int, len(tasks))
	placeholders := make([]string, len(tasks))
	args := make([]any, len(tasks))
	for i, t := range tasks {
		index[t.ID] = i
		placeholders[i] = "?"
		args[i] = t.ID
	}

	rows, err := p.db.QueryContext(ctx,
		"SELECT task_id, id, title, status FROM subtasks WHERE task_id IN ("+strings.Join(placeholders, ",")+") ORDER BY task_id, position",
		args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var taskID string
		var st backend.SubTask
		if err := rows.Scan(&taskID, &st.ID, &st.Title, &st.Status); err != nil {
			return err
		}
		i := index[taskID]
		tasks[i].SubTasks = append(tasks[i].SubTasks, st)
	}
	return rows.Err()
}

func insertSubTasks(ctx context.Context, tx *sql.Tx, taskID string, subTasks []backend.SubTask) error {
	for i, st := range subTasks {
		status := st.Status
		if status == "" {
			status = backend.StatusNotStarted
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO subtasks (id, task_id, position, title, status) VALUES (?, ?, ?, ?, ?)",
			st.ID, taskID, i, st.Title, status,
		); err != nil {
			return err
		}
	}
	return nil
}

// assignSubTaskIDs returns a copy with IDs generated for new sub-tasks
func assignSubTaskIDs(subTasks []backend.SubTask) []backend.SubTask {
	if len(subTasks) == 0 {
		return nil
	}
	out := make([]backend.SubTask, len(subTasks))
	for i, st := range subTasks {
		if st.ID == "" {
			st.ID = uuid.New().String()
		}
		if st.Status == "" {
			st.Status = backend.StatusNotStarted
		}
		out[i] = st
	}
	return out
}

// timeToNullString converts a *time.Time to sql.NullString for database storage.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}

// parseOptionalDate parses a nullable date string and returns a pointer to time.Time.
func parseOptionalDate(str sql.NullString) *time.Time {
	if str.Valid && str.String != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, str.String); err == nil {
			return &parsed
		}
	}
	return nil
}

// recurrenceToNullString stores the recurrence in its text form; empty is NULL
func recurrenceToNullString(r *recurrence.Recurrence) sql.NullString {
	if r == nil || r.IsEmpty() {
		return sql.NullString{}
	}
	return sql.NullString{String: r.String(), Valid: true}
}

// scanner is an interface satisfied by both *sql.Rows and *sql.Row
type scanner interface {
	Scan(dest ...any) error
}

// scanTask scans a task row in taskColumns order
func scanTask(s scanner) (*backend.Task, error) {
	var t backend.Task
	var dueDateStr, completedStr, recurrenceStr sql.NullString
	var createdStr, modifiedStr string

	err := s.Scan(
		&t.ID, &t.Parent, &t.Title, &t.Notes, &t.Status, &t.Priority,
		&dueDateStr, &completedStr, &t.Favorite, &t.Today, &recurrenceStr,
		&createdStr, &modifiedStr,
	)
	if err != nil {
		return nil, err
	}

	t.DueDate = parseOptionalDate(dueDateStr)
	t.CompletedOn = parseOptionalDate(completedStr)
	t.Created, _ = time.Parse(time.RFC3339Nano, createdStr)
	t.Modified, _ = time.Parse(time.RFC3339Nano, modifiedStr)
	if recurrenceStr.Valid {
		var r recurrence.Recurrence
		if err := r.UnmarshalText([]byte(recurrenceStr.String)); err == nil && !r.IsEmpty() {
			t.Recurrence = &r
		}
	}
	return &t, nil
}

// Verify interface compliance at compile time
var _ backend.Provider = (*Provider)(nil)
