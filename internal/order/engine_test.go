package order

import (
	"reflect"
	"testing"
)

func columnScopes() []Scope {
	return []Scope{
		{ID: "col-a", Items: []string{"t1", "t2", "t3", "t4"}},
		{ID: "col-b", Items: []string{"t5", "t6"}},
		{ID: "col-c", Items: []string{}},
	}
}

func TestResolveNoDropTarget(t *testing.T) {
	if _, ok := Resolve("t1", "", columnScopes()); ok {
		t.Error("expected no-op when over is empty")
	}
}

func TestResolveDropOnSelf(t *testing.T) {
	if _, ok := Resolve("t1", "t1", columnScopes()); ok {
		t.Error("expected no-op when dropping an item on itself")
	}
}

func TestResolveUnknownActive(t *testing.T) {
	if _, ok := Resolve("missing", "t2", columnScopes()); ok {
		t.Error("expected no-op when the moved item is not in any scope")
	}
}

func TestResolveDropOnOwnContainer(t *testing.T) {
	if _, ok := Resolve("t1", "col-a", columnScopes()); ok {
		t.Error("expected no-op when dropping on the source container")
	}
}

func TestResolveDropOnOtherContainerAppends(t *testing.T) {
	move, ok := Resolve("t1", "col-b", columnScopes())
	if !ok {
		t.Fatal("expected a move")
	}
	want := Move{ItemID: "t1", ScopeID: "col-b", Index: 2}
	if move != want {
		t.Errorf("expected %+v, got %+v", want, move)
	}
}

func TestResolveDropOnEmptyContainer(t *testing.T) {
	move, ok := Resolve("t6", "col-c", columnScopes())
	if !ok {
		t.Fatal("expected a move")
	}
	want := Move{ItemID: "t6", ScopeID: "col-c", Index: 0}
	if move != want {
		t.Errorf("expected %+v, got %+v", want, move)
	}
}

// Moving down within one column: dragging the first task onto the third
// lands it after the third once the source slot is spliced out.
func TestResolveSameColumnMovingDown(t *testing.T) {
	move, ok := Resolve("t1", "t3", columnScopes())
	if !ok {
		t.Fatal("expected a move")
	}
	if move.ScopeID != "col-a" || move.Index != 2 {
		t.Fatalf("expected index 2 in col-a, got %+v", move)
	}

	got := Splice(columnScopes()[0].Items, 0, move.Index)
	want := []string{"t2", "t3", "t1", "t4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

// Moving up within one column: dragging the last task onto the second lands
// it at the second's position.
func TestResolveSameColumnMovingUp(t *testing.T) {
	move, ok := Resolve("t4", "t2", columnScopes())
	if !ok {
		t.Fatal("expected a move")
	}
	if move.ScopeID != "col-a" || move.Index != 1 {
		t.Fatalf("expected index 1 in col-a, got %+v", move)
	}

	got := Splice(columnScopes()[0].Items, 3, move.Index)
	want := []string{"t1", "t4", "t2", "t3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestResolveCrossColumnOnSibling(t *testing.T) {
	move, ok := Resolve("t1", "t6", columnScopes())
	if !ok {
		t.Fatal("expected a move")
	}
	want := Move{ItemID: "t1", ScopeID: "col-b", Index: 1}
	if move != want {
		t.Errorf("expected %+v, got %+v", want, move)
	}
}

func TestResolveFlat(t *testing.T) {
	tests := []struct {
		name     string
		activeID string
		overID   string
		want     []string
		wantOK   bool
	}{
		{name: "move down", activeID: "b1", overID: "b3", want: []string{"b2", "b3", "b1", "b4"}, wantOK: true},
		{name: "move up", activeID: "b4", overID: "b2", want: []string{"b1", "b4", "b2", "b3"}, wantOK: true},
		{name: "drop on self", activeID: "b2", overID: "b2", wantOK: false},
		{name: "no target", activeID: "b2", overID: "", wantOK: false},
		{name: "unknown target", activeID: "b2", overID: "b9", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, ok := ResolveFlat(tt.activeID, tt.overID, []string{"b1", "b2", "b3", "b4"})
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if !ok {
				return
			}
			if len(plan) != 4 {
				t.Fatalf("expected a full renumbering of 4 items, got %d", len(plan))
			}
			got := make([]string, len(plan))
			for _, p := range plan {
				if p.Index < 0 || p.Index >= len(got) {
					t.Fatalf("index %d out of range", p.Index)
				}
				got[p.Index] = p.ID
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

// Every reorder is a permutation: the id multiset is unchanged, only
// positions move.
func TestResolveFlatIsPermutation(t *testing.T) {
	ids := []string{"b1", "b2", "b3", "b4", "b5"}
	plan, ok := ResolveFlat("b5", "b1", ids)
	if !ok {
		t.Fatal("expected a plan")
	}

	seen := make(map[string]bool, len(plan))
	for _, p := range plan {
		if seen[p.ID] {
			t.Fatalf("id %s assigned twice", p.ID)
		}
		seen[p.ID] = true
	}
	for _, id := range ids {
		if !seen[id] {
			t.Errorf("id %s missing from plan", id)
		}
	}
}

func TestSpliceDoesNotMutateInput(t *testing.T) {
	in := []string{"a", "b", "c"}
	Splice(in, 0, 2)
	if !reflect.DeepEqual(in, []string{"a", "b", "c"}) {
		t.Errorf("input mutated: %v", in)
	}
}

func TestInsertClampsIndex(t *testing.T) {
	got := Insert([]string{"a", "b"}, "c", 10)
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("expected append at end, got %v", got)
	}
	got = Insert([]string{"a", "b"}, "c", -1)
	if !reflect.DeepEqual(got, []string{"c", "a", "b"}) {
		t.Errorf("expected insert at start, got %v", got)
	}
}

func TestRemove(t *testing.T) {
	got := Remove([]string{"a", "b", "c"}, "b")
	if !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("expected [a c], got %v", got)
	}
	got = Remove([]string{"a"}, "missing")
	if !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("expected [a], got %v", got)
	}
}
