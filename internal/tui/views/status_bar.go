package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/clinicchat/internal/status"
	"github.com/rivo/tview"
)

// StatusBar shows who we are, the connection indicator and a flash line.
type StatusBar struct {
	*tview.TextView
	identity string
	state    status.State
	unread   int
	flash    string
	hints    []string
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv, state: status.Disconnected}
}

// SetIdentity updates the identity label.
func (sb *StatusBar) SetIdentity(label string) {
	sb.identity = label
	sb.render()
}

// SetState updates the connection indicator.
func (sb *StatusBar) SetState(s status.State) {
	sb.state = s
	sb.render()
}

// SetUnread updates the total unread counter.
func (sb *StatusBar) SetUnread(n int) {
	sb.unread = n
	sb.render()
}

// SetFlash sets a temporary message.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

// SetHints sets the key hints shown at the end of the bar.
func (sb *StatusBar) SetHints(hints []string) {
	sb.hints = hints
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()
	_, _ = fmt.Fprint(sb, sb.line())
}

func (sb *StatusBar) line() string {
	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s", tview.Escape(sb.identity), stateLabel(sb.state))
	if sb.unread > 0 {
		line += fmt.Sprintf(" | [yellow]%d unread[-]", sb.unread)
	}
	if sb.flash != "" {
		line += fmt.Sprintf(" | [yellow]%s[-]", tview.Escape(sb.flash))
	}
	if len(sb.hints) > 0 {
		line += " | [gray]" + strings.Join(sb.hints, " ") + "[-]"
	}
	return line
}

func stateLabel(s status.State) string {
	switch s {
	case status.Connected:
		return "[green]● connected[-]"
	case status.Connecting:
		return "[yellow]◌ connecting[-]"
	default:
		return "[red]○ disconnected[-]"
	}
}
