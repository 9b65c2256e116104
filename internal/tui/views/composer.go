package views

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/clinicchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// Composer is the text input for sending messages.
type Composer struct {
	*tview.InputField
	onSend func(text string) error
}

// NewComposer creates a new message composer.
func NewComposer(theme *ui.Theme) *Composer {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	input.SetBorder(true).SetTitle(" Compose (i to focus) ")
	input.SetBorderColor(theme.BorderColor)
	input.SetTitleColor(theme.TitleColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	c := &Composer{InputField: input}
	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			c.submit()
		}
	})
	return c
}

// SetOnSend sets the callback run on Enter. The text is kept when it returns an error.
func (c *Composer) SetOnSend(fn func(text string) error) {
	c.onSend = fn
}

func (c *Composer) submit() {
	text := c.GetText()
	if c.onSend == nil || strings.TrimSpace(text) == "" {
		return
	}
	if err := c.onSend(text); err != nil {
		return
	}
	c.SetText("")
}
