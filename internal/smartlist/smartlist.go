// Package smartlist computes the built-in virtual lists (All, Today, Starred,
// Next 7 Days, Done) from a provider's task set.
package smartlist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"done/backend"
)

// Kind selects a virtual list or a provider list.
type Kind int

const (
	KindAll Kind = iota
	KindToday
	KindStarred
	KindNext7Days
	KindDone
	KindCustom
)

// Next7DaysWindow is the look-ahead of the Next 7 Days list.
const Next7DaysWindow = 7 * 24 * time.Hour

type kindInfo struct {
	key         string
	name        string
	icon        string
	description string
}

var kinds = map[Kind]kindInfo{
	KindAll:       {"all", "All", "edit-paste-symbolic", "All the tasks in this provider"},
	KindToday:     {"today", "Today", "sun-alt-symbolic", "Tasks marked for today or due today"},
	KindStarred:   {"starred", "Starred", "star-outline-rounded-symbolic", "Tasks you starred"},
	KindNext7Days: {"next7days", "Next 7 Days", "work-week-symbolic", "Tasks due in the next seven days"},
	KindDone:      {"done", "Done", "check-round-outline-symbolic", "Completed tasks"},
}

// SidebarList is a selectable entry of the sidebar.
type SidebarList struct {
	Kind Kind
	List backend.List // set for KindCustom only
}

// Smart lists in sidebar order.
var (
	All       = SidebarList{Kind: KindAll}
	Today     = SidebarList{Kind: KindToday}
	Starred   = SidebarList{Kind: KindStarred}
	Next7Days = SidebarList{Kind: KindNext7Days}
	Done      = SidebarList{Kind: KindDone}
)

// SmartLists returns the virtual lists in sidebar order.
func SmartLists() []SidebarList {
	return []SidebarList{All, Today, Starred, Next7Days, Done}
}

// Custom wraps a provider list.
func Custom(list backend.List) SidebarList {
	return SidebarList{Kind: KindCustom, List: list}
}

// Parse maps a configuration key ("all", "today", ...) to its virtual list.
func Parse(key string) (SidebarList, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for k, info := range kinds {
		if info.key == key {
			return SidebarList{Kind: k}, true
		}
	}
	return SidebarList{}, false
}

// Smart reports whether the entry is a virtual list.
func (s SidebarList) Smart() bool { return s.Kind != KindCustom }

// Key is the configuration name of a virtual list, or the list ID.
func (s SidebarList) Key() string {
	if s.Kind == KindCustom {
		return s.List.ID
	}
	return kinds[s.Kind].key
}

func (s SidebarList) Name() string {
	if s.Kind == KindCustom {
		return s.List.Name
	}
	return kinds[s.Kind].name
}

func (s SidebarList) Icon() string {
	if s.Kind == KindCustom {
		return s.List.Icon
	}
	return kinds[s.Kind].icon
}

func (s SidebarList) Description() string {
	if s.Kind == KindCustom {
		return s.List.Description
	}
	return kinds[s.Kind].description
}

func (s SidebarList) String() string {
	return s.Name()
}

// Matches reports whether task belongs to the list at instant now.
func (s SidebarList) Matches(task backend.Task, now time.Time) bool {
	switch s.Kind {
	case KindAll:
		return true
	case KindToday:
		return task.Today || (task.DueDate != nil && sameUTCDate(*task.DueDate, now))
	case KindStarred:
		return task.Favorite
	case KindNext7Days:
		return task.DueDate != nil && withinNext7Days(*task.DueDate, now)
	case KindDone:
		return task.Status == backend.StatusCompleted
	case KindCustom:
		return task.Parent == s.List.ID
	}
	return false
}

// Filter returns the tasks of the list in their original order.
func Filter(tasks []backend.Task, list SidebarList, now time.Time) []backend.Task {
	out := make([]backend.Task, 0, len(tasks))
	for _, t := range tasks {
		if list.Matches(t, now) {
			out = append(out, t)
		}
	}
	return out
}

func sameUTCDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func withinNext7Days(due, now time.Time) bool {
	return !due.Before(now) && !due.After(now.Add(Next7DaysWindow))
}

// ListReader looks up a list by ID.
type ListReader interface {
	ReadList(ctx context.Context, listID string) (*backend.List, error)
}

// Entry is a task together with the list that owns it.
type Entry struct {
	Task backend.Task
	List backend.List
}

// Resolve looks up the owning list of every task, one ReadList call per task
// in order. The first failing lookup aborts resolution.
func Resolve(ctx context.Context, reader ListReader, tasks []backend.Task) ([]Entry, error) {
	entries := make([]Entry, 0, len(tasks))
	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		list, err := reader.ReadList(ctx, t.Parent)
		if err != nil {
			return nil, fmt.Errorf("resolve list of task %s: %w", t.ID, err)
		}
		entries = append(entries, Entry{Task: t, List: *list})
	}
	return entries, nil
}
