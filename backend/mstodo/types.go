package mstodo

import (
	"strings"
	"time"

	"done/backend"
	"done/backend/recurrence"
)

// msDateTimeLayout is the layout Graph uses inside dateTimeTimeZone values
const msDateTimeLayout = "2006-01-02T15:04:05.0000000"

type msTaskList struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	IsOwner           bool   `json:"isOwner"`
	IsShared          bool   `json:"isShared"`
	WellknownListName string `json:"wellknownListName,omitempty"`
}

type msTask struct {
	ID                   string            `json:"id"`
	Title                string            `json:"title"`
	Body                 *msTaskBody       `json:"body,omitempty"`
	Status               string            `json:"status"`     // notStarted, inProgress, completed
	Importance           string            `json:"importance"` // low, normal, high
	DueDateTime          *msDateTime       `json:"dueDateTime,omitempty"`
	CompletedDateTime    *msDateTime       `json:"completedDateTime,omitempty"`
	Recurrence           *msRecurrence     `json:"recurrence,omitempty"`
	CreatedDateTime      string            `json:"createdDateTime"`
	LastModifiedDateTime string            `json:"lastModifiedDateTime"`
	ChecklistItems       []msChecklistItem `json:"checklistItems,omitempty"`
}

type msTaskBody struct {
	Content     string `json:"content"`
	ContentType string `json:"contentType"` // text or html
}

type msDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type msChecklistItem struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	IsChecked   bool   `json:"isChecked"`
}

type msRecurrence struct {
	Pattern msPattern `json:"pattern"`
	Range   msRange   `json:"range"`
}

type msPattern struct {
	Type           string   `json:"type"`
	Interval       int      `json:"interval"`
	DaysOfWeek     []string `json:"daysOfWeek,omitempty"`
	FirstDayOfWeek string   `json:"firstDayOfWeek,omitempty"`
}

type msRange struct {
	Type      string `json:"type"`
	StartDate string `json:"startDate"`
}

// Weekdays lets the recurrence model read the pattern's day set
func (p msPattern) Weekdays() []time.Weekday {
	var days []time.Weekday
	for _, name := range p.DaysOfWeek {
		if d, ok := weekdayNames[strings.ToLower(name)]; ok {
			days = append(days, d)
		}
	}
	return days
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func (l msTaskList) toList() backend.List {
	list := backend.List{
		ID:      l.ID,
		Name:    l.DisplayName,
		Service: backend.ServiceMicrosoft,
	}
	switch l.WellknownListName {
	case "defaultList":
		list.Icon = "view-list-symbolic"
	case "flaggedEmails":
		list.Icon = "mail-mark-important-symbolic"
	}
	if l.IsShared {
		list.Description = "Shared list"
	}
	return list
}

func (t msTask) toTask(listID string) backend.Task {
	task := backend.Task{
		ID:          t.ID,
		Parent:      listID,
		Title:       t.Title,
		Status:      msToBackendStatus(t.Status),
		Priority:    importanceToPriority(t.Importance),
		Favorite:    t.Importance == "high",
		DueDate:     parseMSDateTime(t.DueDateTime),
		CompletedOn: parseMSDateTime(t.CompletedDateTime),
	}
	if t.Body != nil {
		task.Notes = t.Body.Content
	}
	if t.Recurrence != nil {
		r := recurrence.FromPattern(t.Recurrence.Pattern)
		task.Recurrence = &r
	}
	if created, err := time.Parse(time.RFC3339Nano, t.CreatedDateTime); err == nil {
		task.Created = created
	}
	if modified, err := time.Parse(time.RFC3339Nano, t.LastModifiedDateTime); err == nil {
		task.Modified = modified
	}
	for _, item := range t.ChecklistItems {
		status := backend.StatusNotStarted
		if item.IsChecked {
			status = backend.StatusCompleted
		}
		task.SubTasks = append(task.SubTasks, backend.SubTask{
			ID:     item.ID,
			Title:  item.DisplayName,
			Status: status,
		})
	}
	return task
}

// taskBody builds the JSON body shared by create and update
func taskBody(task *backend.Task) map[string]interface{} {
	body := map[string]interface{}{
		"title":      task.Title,
		"status":     backendToMSStatus(task.Status),
		"importance": priorityToImportance(task.Priority, task.Favorite),
		"body": msTaskBody{
			Content:     task.Notes,
			ContentType: "text",
		},
	}

	if task.DueDate != nil {
		body["dueDateTime"] = formatMSDateTime(*task.DueDate)
	} else {
		body["dueDateTime"] = nil
	}
	if task.Status == backend.StatusCompleted && task.CompletedOn != nil {
		body["completedDateTime"] = formatMSDateTime(*task.CompletedOn)
	}

	if task.Recurrence != nil && !task.Recurrence.IsEmpty() {
		start := time.Now().UTC()
		if task.DueDate != nil {
			start = task.DueDate.UTC()
		}
		body["recurrence"] = toMSRecurrence(*task.Recurrence, start)
	} else {
		// Graph keeps the old schedule unless it is nulled explicitly
		body["recurrence"] = nil
	}
	return body
}

func checklistBody(st backend.SubTask) map[string]interface{} {
	return map[string]interface{}{
		"displayName": st.Title,
		"isChecked":   st.Status == backend.StatusCompleted,
	}
}

func toMSRecurrence(r recurrence.Recurrence, start time.Time) msRecurrence {
	days := make([]string, 0, 7)
	for _, w := range r.Weekdays() {
		days = append(days, strings.ToLower(w.String()))
	}
	return msRecurrence{
		Pattern: msPattern{
			Type:           "weekly",
			Interval:       1,
			DaysOfWeek:     days,
			FirstDayOfWeek: "monday",
		},
		Range: msRange{
			Type:      "noEnd",
			StartDate: start.Format(time.DateOnly),
		},
	}
}

// =============================================================================
// Status and Priority Conversion Functions
// =============================================================================

// msToBackendStatus converts Microsoft To Do status to backend status
func msToBackendStatus(status string) backend.TaskStatus {
	switch status {
	case "completed":
		return backend.StatusCompleted
	case "inProgress":
		return backend.StatusInProgress
	default: // notStarted, waitingOnOthers, deferred
		return backend.StatusNotStarted
	}
}

// backendToMSStatus converts backend status to Microsoft To Do status
func backendToMSStatus(status backend.TaskStatus) string {
	switch status {
	case backend.StatusCompleted:
		return "completed"
	case backend.StatusInProgress:
		return "inProgress"
	default:
		return "notStarted"
	}
}

// importanceToPriority converts Microsoft importance to priority
func importanceToPriority(importance string) backend.Priority {
	switch importance {
	case "high":
		return backend.PriorityHigh
	case "low":
		return backend.PriorityLow
	default:
		return backend.PriorityNormal
	}
}

// priorityToImportance converts priority to Microsoft importance. Graph has
// no separate star, so favorites are stored as high importance.
func priorityToImportance(priority backend.Priority, favorite bool) string {
	switch {
	case favorite || priority == backend.PriorityHigh:
		return "high"
	case priority == backend.PriorityLow:
		return "low"
	default:
		return "normal"
	}
}

func formatMSDateTime(t time.Time) msDateTime {
	return msDateTime{
		DateTime: t.UTC().Format(msDateTimeLayout),
		TimeZone: "UTC",
	}
}

// parseMSDateTime parses Microsoft dateTime format to Go time.Time
func parseMSDateTime(dt *msDateTime) *time.Time {
	if dt == nil || dt.DateTime == "" {
		return nil
	}

	loc := time.UTC
	if dt.TimeZone != "" && dt.TimeZone != "UTC" {
		if l, err := time.LoadLocation(dt.TimeZone); err == nil {
			loc = l
		}
	}

	formats := []string{
		msDateTimeLayout,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05Z",
		time.RFC3339,
		"2006-01-02T15:04:05",
	}

	for _, format := range formats {
		if t, err := time.ParseInLocation(format, dt.DateTime, loc); err == nil {
			return &t
		}
	}

	return nil
}
