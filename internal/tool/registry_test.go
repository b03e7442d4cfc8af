package tool

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func noopHandler(ctx context.Context, args map[string]any) (map[string]any, error) {
	return map[string]any{}, nil
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	decl := Declaration{Name: "get_node_info", Description: "node info"}

	if err := r.Register(decl, noopHandler); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	err := r.Register(decl, noopHandler)
	if !errors.Is(err, ErrDuplicateTool) {
		t.Fatalf("expected ErrDuplicateTool, got %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
}

func TestRegisterRejectsEmptyNameAndNilHandler(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Declaration{}, noopHandler); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := r.Register(Declaration{Name: "x"}, nil); err == nil {
		t.Fatal("expected error for nil handler")
	}
}

func TestDeclarationsPreserveRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	names := []string{"get_wallet_balance", "list_channels", "open_channel", "get_node_info"}
	for _, name := range names {
		if err := r.Register(Declaration{Name: name}, noopHandler); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}

	decls := r.Declarations()
	if len(decls) != len(names) {
		t.Fatalf("got %d declarations, want %d", len(decls), len(names))
	}
	for i, name := range names {
		if decls[i].Name != name {
			t.Errorf("Declarations()[%d] = %s, want %s", i, decls[i].Name, name)
		}
	}
}

func TestDeclarationsReturnsCopy(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(Declaration{Name: "list_peers"}, noopHandler)

	decls := r.Declarations()
	decls[0].Name = "mutated"

	again := r.Declarations()
	if again[0].Name != "list_peers" {
		t.Fatalf("registry declaration mutated through returned slice: %s", again[0].Name)
	}
}

func TestRegisterDefaultsKindToReadOnly(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(Declaration{Name: "get_fee_recommendations"}, noopHandler)
	r.MustRegister(Declaration{Name: "open_channel", Kind: StateChanging}, noopHandler)

	decl, err := r.Lookup("get_fee_recommendations")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if decl.Kind != ReadOnly {
		t.Errorf("default Kind = %s, want %s", decl.Kind, ReadOnly)
	}

	decl, err = r.Lookup("open_channel")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if decl.Kind != StateChanging {
		t.Errorf("Kind = %s, want %s", decl.Kind, StateChanging)
	}
}

func TestLookupUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup("no_such_tool")
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(Declaration{Name: "connect_peer"}, noopHandler)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic from duplicate MustRegister")
		}
	}()
	r.MustRegister(Declaration{Name: "connect_peer"}, noopHandler)
}

func TestRegistryScalesPastDozens(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 100; i++ {
		r.MustRegister(Declaration{Name: fmt.Sprintf("tool_%03d", i)}, noopHandler)
	}
	if r.Len() != 100 {
		t.Fatalf("Len = %d, want 100", r.Len())
	}
	decl, err := r.Lookup("tool_057")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if decl.Name != "tool_057" {
		t.Fatalf("Lookup returned %s", decl.Name)
	}
}
