package smart_test

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"done/backend"
	"done/backend/smart"
)

func TestCapabilities(t *testing.T) {
	p := smart.New()
	if p.Available() {
		t.Error("smart provider must never be available")
	}
	if p.StreamSupport() {
		t.Error("smart provider must not support streaming")
	}
}

func TestEmptyResults(t *testing.T) {
	ctx := context.Background()
	p := smart.New()

	tasks, err := p.ReadTasks(ctx)
	if err != nil || len(tasks) != 0 {
		t.Errorf("ReadTasks: expected empty, got %v, %v", tasks, err)
	}
	tasks, err = p.ReadTasksFromList(ctx, "any")
	if err != nil || len(tasks) != 0 {
		t.Errorf("ReadTasksFromList: expected empty, got %v, %v", tasks, err)
	}
	lists, err := p.ReadLists(ctx)
	if err != nil || len(lists) != 0 {
		t.Errorf("ReadLists: expected empty, got %v, %v", lists, err)
	}
	list, err := p.ReadList(ctx, "any")
	if err != nil || list.ID != "" {
		t.Errorf("ReadList: expected default list, got %+v, %v", list, err)
	}
	if err := p.Login(ctx); err != nil {
		t.Errorf("Login: %v", err)
	}
	if err := p.HandleURIParams(ctx, &url.URL{}); err != nil {
		t.Errorf("HandleURIParams: %v", err)
	}
}

func TestStreamingIsUnsupported(t *testing.T) {
	p := smart.New()

	if _, err := p.GetTasks(context.Background(), "any"); !errors.Is(err, backend.ErrUnsupported) {
		t.Errorf("GetTasks: expected ErrUnsupported, got %v", err)
	}
	if _, err := p.GetLists(context.Background()); !errors.Is(err, backend.ErrUnsupported) {
		t.Errorf("GetLists: expected ErrUnsupported, got %v", err)
	}
}
