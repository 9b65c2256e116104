package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/matheus3301/clinicchat/internal/ledger"
	"github.com/matheus3301/clinicchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// Conversation shows the messages exchanged with the selected counterparty.
type Conversation struct {
	*tview.TextView
}

// NewConversation creates the conversation pane.
func NewConversation(theme *ui.Theme) *Conversation {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Select someone to chat with ")
	tv.SetBorderColor(theme.BorderColor)
	tv.SetTitleColor(theme.TitleColor)
	tv.SetBackgroundColor(theme.BgColor)
	return &Conversation{TextView: tv}
}

// Update redraws the pane. Messages are shown in the order given.
func (c *Conversation) Update(self, name string, msgs []ledger.Message, now time.Time) {
	c.Clear()
	if name == "" {
		c.SetTitle(" Select someone to chat with ")
		return
	}
	c.SetTitle(fmt.Sprintf(" %s ", tview.Escape(sanitizeForTerminal(name))))
	_, _ = fmt.Fprint(c, renderMessages(self, msgs, now))
	c.ScrollToEnd()
}

func renderMessages(self string, msgs []ledger.Message, now time.Time) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(formatMessage(self, m, now))
	}
	return b.String()
}

func formatMessage(self string, m ledger.Message, now time.Time) string {
	sender := m.SenderName
	if sender == "" {
		sender = m.SenderID
	}
	tick := ""
	if m.SenderID == self {
		sender = "You"
		tick = " [gray]✓[-]"
		if m.Read {
			tick = " [blue]✓✓[-]"
		}
	}
	return fmt.Sprintf("[::b]%s[-:-:-] [::d]%s[-:-:-]%s\n%s\n\n",
		tview.Escape(sanitizeForTerminal(sender)),
		relativeTime(m.Time(), now),
		tick,
		tview.Escape(sanitizeForTerminal(m.Text)))
}

func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	if now.Sub(t) < time.Minute && now.Sub(t) > -time.Minute {
		return "just now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
