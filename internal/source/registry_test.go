package source

import (
	"context"
	"testing"
)

type stubAdapter struct{}

func (stubAdapter) List(context.Context) ([]Descriptor, error)      { return nil, nil }
func (stubAdapter) Fetch(context.Context, string) (*Content, error) { return nil, nil }

func TestRegistry_RegisterAndNew(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("file_system", func(config map[string]any) (Adapter, error) {
		return stubAdapter{}, nil
	})

	adapter, err := r.New("file_system", map[string]any{"root_path": "/tmp"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if adapter == nil {
		t.Fatal("expected a non-nil adapter")
	}
}

func TestRegistry_New_UnknownTag(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if _, err := r.New("sharepoint", nil); err == nil {
		t.Fatal("expected error for unregistered source type")
	}
}

func TestRegistry_Register_DuplicateTagPanics(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("file_system", func(map[string]any) (Adapter, error) { return stubAdapter{}, nil })

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	r.Register("file_system", func(map[string]any) (Adapter, error) { return stubAdapter{}, nil })
}
