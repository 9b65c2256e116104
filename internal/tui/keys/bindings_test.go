package keys

import (
	"slices"
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestHandleEventPrefersPane(t *testing.T) {
	r := NewRegistry()
	var got []string
	r.AddGlobal(&Action{Key: tcell.KeyRune, Rune: 'q', Description: "q:quit", Handler: func() { got = append(got, "quit") }})
	r.AddGlobal(&Action{Key: tcell.KeyTab, Handler: func() { got = append(got, "tab") }})
	r.AddPane("roster", &Action{Key: tcell.KeyRune, Rune: 'q', Description: "q:close", Handler: func() { got = append(got, "close") }})

	r.HandleEvent("roster", tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone))
	r.HandleEvent("conversation", tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone))
	r.HandleEvent("roster", tcell.NewEventKey(tcell.KeyTab, 0, tcell.ModNone))
	if r.HandleEvent("roster", tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)) {
		t.Error("unbound key reported as handled")
	}

	if want := []string{"close", "quit", "tab"}; !slices.Equal(got, want) {
		t.Errorf("handled = %v, want %v", got, want)
	}
}

func TestHints(t *testing.T) {
	r := NewRegistry()
	r.AddGlobal(&Action{Key: tcell.KeyRune, Rune: 'q', Description: "q:quit", Handler: func() {}})
	r.AddGlobal(&Action{Key: tcell.KeyTab, Handler: func() {}})
	r.AddPane("roster", &Action{Key: tcell.KeyEnter, Description: "enter:open", Handler: func() {}})

	if got, want := r.Hints("roster"), []string{"enter:open", "q:quit"}; !slices.Equal(got, want) {
		t.Errorf("Hints(roster) = %v, want %v", got, want)
	}
	if got, want := r.Hints("conversation"), []string{"q:quit"}; !slices.Equal(got, want) {
		t.Errorf("Hints(conversation) = %v, want %v", got, want)
	}
}
