package agent

import "testing"

func TestSpanTreeParentChild(t *testing.T) {
	tree := NewSpanTree()
	root := tree.Begin("turn", "")
	child := tree.Begin("round.1", root)
	tree.End(child)
	tree.End(root)

	spans := tree.Snapshot()
	if len(spans) != 2 {
		t.Fatalf("spans = %d, want 2", len(spans))
	}
	if spans[0].Name != "turn" || spans[0].ParentID != "" {
		t.Errorf("root span = %+v", spans[0])
	}
	if spans[1].ParentID != spans[0].ID {
		t.Errorf("child parent = %q, want %q", spans[1].ParentID, spans[0].ID)
	}
	if spans[1].StartMs > spans[1].EndMs {
		t.Errorf("child interval inverted: %d > %d", spans[1].StartMs, spans[1].EndMs)
	}
}

func TestSpanTreeMarkFirstWriteWins(t *testing.T) {
	tree := NewSpanTree()
	id := tree.Begin("round.1", "")
	tree.Mark(id, "first_token")
	first := tree.Snapshot()[0].Markers["first_token"]
	tree.Mark(id, "first_token")
	if got := tree.Snapshot()[0].Markers["first_token"]; got != first {
		t.Errorf("marker rewritten: %d then %d", first, got)
	}
}

func TestSpanTreeUnknownIDIgnored(t *testing.T) {
	tree := NewSpanTree()
	tree.End("missing")
	tree.Mark("missing", "x")
	if len(tree.Snapshot()) != 0 {
		t.Error("operations on an unknown id created spans")
	}
}
