package stream

import (
	"reflect"
	"testing"
)

func TestRegistry_AddUnion(t *testing.T) {
	r := NewRegistry()

	added := r.Add("quotes", []string{"AAPL", "TSLA"})
	if !reflect.DeepEqual(added, []string{"AAPL", "TSLA"}) {
		t.Errorf("added = %v, want [AAPL TSLA]", added)
	}

	// Duplicate symbols merge, not append.
	added = r.Add("quotes", []string{"TSLA", "NVDA"})
	if !reflect.DeepEqual(added, []string{"NVDA"}) {
		t.Errorf("added = %v, want [NVDA]", added)
	}

	got := r.Symbols("quotes")
	want := []string{"AAPL", "NVDA", "TSLA"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Symbols = %v, want %v", got, want)
	}
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	r.Add("quotes", []string{"AAPL", "TSLA"})

	r.Remove("quotes", []string{"AAPL"})
	if got := r.Symbols("quotes"); !reflect.DeepEqual(got, []string{"TSLA"}) {
		t.Errorf("Symbols = %v, want [TSLA]", got)
	}

	// Removing the last symbol drops the channel entirely.
	r.Remove("quotes", []string{"TSLA"})
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
	if _, ok := r.Snapshot()["quotes"]; ok {
		t.Error("empty channel should not appear in snapshot")
	}

	// Removing from an unknown channel is a no-op.
	r.Remove("unknown", []string{"AAPL"})
}

func TestRegistry_SubscribeThenUnsubscribeBeforeAck(t *testing.T) {
	r := NewRegistry()

	r.Add("quotes", []string{"AAPL"})
	r.Remove("quotes", []string{"AAPL"})

	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0 after add+remove", r.Len())
	}
	if len(r.Snapshot()) != 0 {
		t.Errorf("Snapshot = %v, want empty", r.Snapshot())
	}
}

func TestRegistry_SnapshotFullSets(t *testing.T) {
	r := NewRegistry()
	r.Add("quotes", []string{"TSLA", "AAPL"})
	r.Add("analysis", []string{"AAPL"})

	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot has %d channels, want 2", len(snap))
	}
	if !reflect.DeepEqual(snap["quotes"], []string{"AAPL", "TSLA"}) {
		t.Errorf("quotes = %v, want sorted [AAPL TSLA]", snap["quotes"])
	}
	if !reflect.DeepEqual(snap["analysis"], []string{"AAPL"}) {
		t.Errorf("analysis = %v, want [AAPL]", snap["analysis"])
	}

	// Snapshot is a copy; mutating it must not affect the registry.
	snap["quotes"][0] = "MUTATED"
	if got := r.Symbols("quotes"); got[0] != "AAPL" {
		t.Errorf("registry mutated through snapshot: %v", got)
	}
}
