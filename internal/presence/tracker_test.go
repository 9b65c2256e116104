package presence

import (
	"slices"
	"testing"
)

func userIDs(us []User) []string {
	out := make([]string, 0, len(us))
	for _, u := range us {
		out = append(out, u.UserID)
	}
	return out
}

func TestSnapshotExcludesSelf(t *testing.T) {
	tr := NewTracker()
	tr.ApplySnapshot("X", []User{{UserID: "X"}, {UserID: "Y", UserName: "Yara", UserRole: "nurse"}})

	got := tr.Users()
	if len(got) != 1 || got[0].UserID != "Y" {
		t.Fatalf("Users() = %v, want only Y", got)
	}
	if got[0].UserName != "Yara" || got[0].UserRole != "nurse" {
		t.Errorf("user fields lost: %+v", got[0])
	}
	if tr.IsOnline("X") {
		t.Error("self reported online")
	}
}

func TestSnapshotReplacesWholesale(t *testing.T) {
	tr := NewTracker()
	tr.ApplySnapshot("me", []User{{UserID: "A"}, {UserID: "B"}})
	tr.ApplySnapshot("me", []User{{UserID: "C"}})

	if got := userIDs(tr.Users()); !slices.Equal(got, []string{"C"}) {
		t.Errorf("Users() = %v, want [C]", got)
	}
	if tr.IsOnline("A") {
		t.Error("A should have been dropped by the newer snapshot")
	}
}

func TestSnapshotKeepsOrderAndCollapsesDuplicates(t *testing.T) {
	tr := NewTracker()
	tr.ApplySnapshot("me", []User{{UserID: "B"}, {UserID: "A"}, {UserID: "B", UserName: "again"}, {UserID: ""}})

	got := tr.Users()
	if !slices.Equal(userIDs(got), []string{"B", "A"}) {
		t.Errorf("Users() = %v, want [B A]", userIDs(got))
	}
	if got[0].UserName == "again" {
		t.Error("first entry for a repeated id should win")
	}
}

func TestEmptySnapshotClears(t *testing.T) {
	tr := NewTracker()
	tr.ApplySnapshot("me", []User{{UserID: "A"}})
	tr.ApplySnapshot("me", nil)
	if len(tr.Users()) != 0 {
		t.Errorf("Users() = %v, want empty", tr.Users())
	}
}

func TestUsersReturnsCopy(t *testing.T) {
	tr := NewTracker()
	tr.ApplySnapshot("me", []User{{UserID: "A"}})
	us := tr.Users()
	us[0].UserID = "mutated"
	if !tr.IsOnline("A") {
		t.Error("caller mutation leaked into tracker")
	}
}

func TestReset(t *testing.T) {
	tr := NewTracker()
	tr.ApplySnapshot("me", []User{{UserID: "A"}})
	tr.Reset()
	if tr.IsOnline("A") || len(tr.Users()) != 0 {
		t.Error("Reset did not clear the tracker")
	}
}
