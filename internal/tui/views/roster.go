package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/clinicchat/internal/tui/model"
	"github.com/matheus3301/clinicchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// Roster lists counterparties with presence and unread badges.
type Roster struct {
	*tview.Table
	rows []model.RosterRow
}

// NewRoster creates the roster table.
func NewRoster(theme *ui.Theme) *Roster {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Online ")
	table.SetBorderColor(theme.BorderColor)
	table.SetTitleColor(theme.TitleColor)
	table.SetBackgroundColor(theme.BgColor)
	return &Roster{Table: table}
}

// Update redraws the roster, keeping the cursor on the same user when possible.
func (r *Roster) Update(rows []model.RosterRow, selected string) {
	current := r.SelectedUser()
	r.rows = rows
	r.Clear()

	for i, row := range rows {
		r.SetCell(i, 0, tview.NewTableCell(presenceDot(row.Online)))
		r.SetCell(i, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(row.Label()))).
			SetMaxWidth(24).SetExpansion(1))
		r.SetCell(i, 2, tview.NewTableCell(badge(row.Unread)).SetAlign(tview.AlignRight))
		if row.UserID == selected {
			r.GetCell(i, 1).SetAttributes(tcell.AttrBold)
		}
	}
	r.SetTitle(fmt.Sprintf(" Online (%d) ", countOnline(rows)))

	for i, row := range rows {
		if row.UserID == current {
			r.Select(i, 0)
			return
		}
	}
}

// SelectedUser returns the user id under the cursor.
func (r *Roster) SelectedUser() string {
	row, _ := r.GetSelection()
	return r.userAt(row)
}

func (r *Roster) userAt(row int) string {
	if row >= 0 && row < len(r.rows) {
		return r.rows[row].UserID
	}
	return ""
}

func presenceDot(online bool) string {
	if online {
		return "[green]●[-]"
	}
	return "[gray]○[-]"
}

func badge(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf("[black:yellow] %d [-:-]", n)
}

func countOnline(rows []model.RosterRow) int {
	n := 0
	for _, r := range rows {
		if r.Online {
			n++
		}
	}
	return n
}
