package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/clinicchat/internal/bus"
	"github.com/matheus3301/clinicchat/internal/tui/keys"
	"github.com/matheus3301/clinicchat/internal/tui/model"
	"github.com/matheus3301/clinicchat/internal/tui/ui"
	"github.com/matheus3301/clinicchat/internal/tui/views"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

const (
	paneRoster       = "roster"
	paneConversation = "conversation"
	paneComposer     = "composer"

	flashFor = 5 * time.Second
)

// Chat is what the widget needs from the chat manager.
type Chat interface {
	model.Source
	SelectCounterparty(c string) error
	SendMessage(text string) error
}

// App is the terminal chat widget. It only reads manager state and forwards
// user actions; every redraw re-reads the manager.
type App struct {
	app      *tview.Application
	chat     Chat
	bus      *bus.Bus
	logger   *zap.Logger
	vm       *model.ViewModel
	registry *keys.Registry

	roster       *views.Roster
	conversation *views.Conversation
	composer     *views.Composer
	statusBar    *views.StatusBar

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(c Chat, b *bus.Bus, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:          tview.NewApplication(),
		chat:         c,
		bus:          b,
		logger:       logger,
		vm:           &model.ViewModel{},
		registry:     keys.NewRegistry(),
		roster:       views.NewRoster(theme),
		conversation: views.NewConversation(theme),
		composer:     views.NewComposer(theme),
		statusBar:    views.NewStatusBar(),
		ctx:          ctx,
		cancel:       cancel,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyTab, Description: "tab:switch",
		Handler: a.cycleFocus,
	})
	a.registry.AddPane(paneRoster, &keys.Action{
		Key: tcell.KeyEnter, Description: "enter:open",
		Handler: func() { a.selectCounterparty(a.roster.SelectedUser()) },
	})
	a.registry.AddPane(paneRoster, &keys.Action{
		Key: tcell.KeyRune, Rune: 'q', Description: "q:quit",
		Handler: a.app.Stop,
	})
	a.registry.AddPane(paneConversation, &keys.Action{
		Key: tcell.KeyRune, Rune: 'i', Description: "i:compose",
		Handler: func() { a.focus(a.composer.InputField) },
	})
	a.registry.AddPane(paneConversation, &keys.Action{
		Key: tcell.KeyEscape, Description: "esc:close",
		Handler: func() {
			a.selectCounterparty("")
			a.focus(a.roster.Table)
		},
	})
	a.registry.AddPane(paneComposer, &keys.Action{
		Key: tcell.KeyEscape, Description: "esc:back",
		Handler: func() { a.focus(a.conversation.TextView) },
	})
}

func (a *App) setupCallbacks() {
	a.composer.SetOnSend(func(text string) error {
		if err := a.chat.SendMessage(text); err != nil {
			a.vm.Flash.Set("Send failed: "+err.Error(), flashFor)
			a.render()
			return err
		}
		return nil
	})
}

func (a *App) setupLayout() {
	right := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.conversation, 0, 1, false).
		AddItem(a.composer, 3, 0, false)

	main := tview.NewFlex().
		AddItem(a.roster, 32, 0, true).
		AddItem(right, 0, 1, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(main, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true).SetFocus(a.roster.Table)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		pane := a.focusedPane()
		// The composer keeps every key except its own bindings.
		if pane == paneComposer && event.Key() != tcell.KeyEscape && event.Key() != tcell.KeyTab {
			return event
		}
		if a.registry.HandleEvent(pane, event) {
			return nil
		}
		return event
	})
}

func (a *App) focusedPane() string {
	switch a.app.GetFocus() {
	case a.composer.InputField:
		return paneComposer
	case a.conversation.TextView:
		return paneConversation
	default:
		return paneRoster
	}
}

func (a *App) focus(p tview.Primitive) {
	a.app.SetFocus(p)
	a.statusBar.SetHints(a.registry.Hints(a.focusedPane()))
}

func (a *App) cycleFocus() {
	switch a.focusedPane() {
	case paneRoster:
		a.focus(a.conversation.TextView)
	case paneConversation:
		a.focus(a.composer.InputField)
	default:
		a.focus(a.roster.Table)
	}
}

func (a *App) selectCounterparty(id string) {
	if err := a.chat.SelectCounterparty(id); err != nil {
		a.vm.Flash.Set(err.Error(), flashFor)
	}
	a.render()
	if id != "" {
		a.focus(a.composer.InputField)
	}
}

// render copies manager state into the view model and redraws every pane.
// Must run on the tview event loop.
func (a *App) render() {
	a.vm.Refresh(a.chat)
	if a.vm.Self.ID != "" {
		a.statusBar.SetIdentity(fmt.Sprintf("%s (%s)", a.vm.Self.Name, a.vm.Self.Role))
	}
	a.statusBar.SetState(a.vm.State)
	a.statusBar.SetUnread(a.vm.TotalUnread())
	a.statusBar.SetFlash(a.vm.Flash.Get())
	a.roster.Update(a.vm.Roster, a.vm.Selected)
	a.conversation.Update(a.vm.Self.ID, a.vm.SelectedName, a.vm.Messages, time.Now())
}

// watch redraws on every manager notification, and once a second so relative
// timestamps and flash messages age.
func (a *App) watch(events <-chan bus.Event) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			if evt.Kind == bus.ChatSendRejected {
				if reason, ok := evt.Payload.(string); ok {
					a.vm.Flash.Set("Send failed: "+reason, flashFor)
				}
			}
			a.logger.Debug("redraw", zap.String("event", evt.Kind))
			a.app.QueueUpdateDraw(a.render)
		case <-ticker.C:
			a.app.QueueUpdateDraw(a.render)
		case <-a.ctx.Done():
			return
		}
	}
}

// Run starts the TUI and blocks until the user quits or Stop is called.
func (a *App) Run() error {
	events, unsub := a.bus.Subscribe("", 64)
	defer unsub()
	defer a.cancel()
	go a.watch(events)

	a.app.QueueUpdateDraw(func() {
		a.render()
		a.statusBar.SetHints(a.registry.Hints(paneRoster))
	})
	return a.app.Run()
}

// Stop shuts the TUI down.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
