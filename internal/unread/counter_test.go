package unread

import (
	"maps"
	"testing"
)

func TestSnapshotReplacesWholesale(t *testing.T) {
	c := NewCounter()
	c.ApplyServerSnapshot(map[string]int{"A": 2, "B": 5})
	c.ApplyServerSnapshot(map[string]int{"C": 1})

	want := map[string]int{"C": 1}
	if got := c.Snapshot(); !maps.Equal(got, want) {
		t.Errorf("Snapshot() = %v, want %v", got, want)
	}
	if c.Count("A") != 0 {
		t.Errorf("Count(A) = %d, want 0 after replace", c.Count("A"))
	}
}

func TestSnapshotClampsNegative(t *testing.T) {
	c := NewCounter()
	c.ApplyServerSnapshot(map[string]int{"A": -3, "B": 4})
	if c.Count("A") != 0 || c.Count("B") != 4 {
		t.Errorf("counts = %v, want A=0 B=4", c.Snapshot())
	}
	if c.Total() != 4 {
		t.Errorf("Total() = %d, want 4", c.Total())
	}
}

func TestSnapshotIsCopied(t *testing.T) {
	c := NewCounter()
	in := map[string]int{"A": 1}
	c.ApplyServerSnapshot(in)
	in["A"] = 9
	out := c.Snapshot()
	out["A"] = 7
	if c.Count("A") != 1 {
		t.Errorf("Count(A) = %d, want 1; caller maps must not alias", c.Count("A"))
	}
}

func TestZero(t *testing.T) {
	c := NewCounter()
	c.ApplyServerSnapshot(map[string]int{"A": 3})

	if !c.Zero("A") {
		t.Error("Zero(A) = false, want true for non-zero count")
	}
	if c.Count("A") != 0 {
		t.Errorf("Count(A) = %d, want 0", c.Count("A"))
	}
	if c.Zero("A") {
		t.Error("second Zero(A) reported a change")
	}
	if c.Zero("unknown") {
		t.Error("Zero on unknown counterparty reported a change")
	}
}

func TestNewerSnapshotSupersedesZero(t *testing.T) {
	c := NewCounter()
	c.ApplyServerSnapshot(map[string]int{"A": 3})
	c.Zero("A")
	c.ApplyServerSnapshot(map[string]int{"A": 1})
	if c.Count("A") != 1 {
		t.Errorf("Count(A) = %d, want 1 from fresher snapshot", c.Count("A"))
	}
}

func TestReset(t *testing.T) {
	c := NewCounter()
	c.ApplyServerSnapshot(map[string]int{"A": 3})
	c.Reset()
	if len(c.Snapshot()) != 0 {
		t.Errorf("Snapshot() = %v after Reset", c.Snapshot())
	}
}
