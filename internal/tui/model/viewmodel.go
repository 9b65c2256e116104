package model

import (
	"slices"
	"strings"

	"github.com/matheus3301/clinicchat/internal/ledger"
	"github.com/matheus3301/clinicchat/internal/presence"
	"github.com/matheus3301/clinicchat/internal/profile"
	"github.com/matheus3301/clinicchat/internal/status"
)

// Source is the read side of the chat manager the TUI renders from.
type Source interface {
	Self() (profile.Identity, bool)
	State() status.State
	OnlineUsers() []presence.User
	UnreadCounts() map[string]int
	Selected() string
	Conversation() []ledger.Message
}

// RosterRow is one counterparty in the roster.
type RosterRow struct {
	UserID string
	Name   string
	Role   string
	Online bool
	Unread int
}

// Label is the display name, falling back to the id.
func (r RosterRow) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.UserID
}

// ViewModel is a snapshot of everything the TUI draws.
type ViewModel struct {
	Self         profile.Identity
	State        status.State
	Roster       []RosterRow
	Selected     string
	SelectedName string
	Messages     []ledger.Message
	Flash        Flash
}

// Refresh re-reads all state from src.
func (vm *ViewModel) Refresh(src Source) {
	vm.Self, _ = src.Self()
	vm.State = src.State()
	vm.Roster = BuildRoster(src.OnlineUsers(), src.UnreadCounts())
	vm.Selected = src.Selected()
	vm.Messages = src.Conversation()
	vm.SelectedName = vm.Selected
	for _, r := range vm.Roster {
		if r.UserID == vm.Selected {
			vm.SelectedName = r.Label()
			break
		}
	}
}

// BuildRoster lists online users in snapshot order, followed by offline
// counterparties that still have unread messages, sorted by id.
func BuildRoster(online []presence.User, unread map[string]int) []RosterRow {
	rows := make([]RosterRow, 0, len(online)+len(unread))
	seen := make(map[string]bool, len(online))
	for _, u := range online {
		seen[u.UserID] = true
		rows = append(rows, RosterRow{
			UserID: u.UserID,
			Name:   u.UserName,
			Role:   u.UserRole,
			Online: true,
			Unread: unread[u.UserID],
		})
	}

	var offline []RosterRow
	for id, n := range unread {
		if n > 0 && !seen[id] {
			offline = append(offline, RosterRow{UserID: id, Unread: n})
		}
	}
	slices.SortFunc(offline, func(a, b RosterRow) int { return strings.Compare(a.UserID, b.UserID) })
	return append(rows, offline...)
}

// TotalUnread sums the roster badges.
func (vm *ViewModel) TotalUnread() int {
	total := 0
	for _, r := range vm.Roster {
		total += r.Unread
	}
	return total
}
