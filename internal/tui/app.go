package tui

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/springsconnect/springs/internal/bus"
	"github.com/springsconnect/springs/internal/media"
	"github.com/springsconnect/springs/internal/message"
	"github.com/springsconnect/springs/internal/rpc"
	"github.com/springsconnect/springs/internal/tui/keys"
	"github.com/springsconnect/springs/internal/tui/model"
	"github.com/springsconnect/springs/internal/tui/ui"
	"github.com/springsconnect/springs/internal/tui/views"
)

const (
	refreshInterval = 5 * time.Second
	watchBackoff    = time.Second
)

// Client is the daemon connection the TUI needs.
type Client interface {
	model.Client
	WatchEvents(ctx context.Context, prefix string, fn func(*rpc.Event)) error
}

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	client   Client
	vm       *model.ViewModel
	registry *keys.Registry
	theme    *ui.Theme
	flash    *ui.FlashModel

	main      *tview.Flex
	pages     *ui.Pages
	crumbs    *ui.Crumbs
	menu      *ui.Menu
	logo      *ui.Logo
	info      *ui.ProfileInfo
	prompt    *ui.Prompt
	flashBar  *ui.FlashBar
	statusBar *views.StatusBar

	convList *views.ConversationList
	thread   *views.MessageThread
	details  *views.PeerDetails
	help     *views.HelpView

	components map[string]ui.Component

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(c Client, profileName string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:       tview.NewApplication(),
		client:    c,
		vm:        model.NewViewModel(c),
		registry:  keys.NewRegistry(),
		theme:     theme,
		flash:     ui.NewFlashModel(nil),
		pages:     ui.NewPages(ui.PageConversations),
		crumbs:    ui.NewCrumbs(theme),
		menu:      ui.NewMenu(theme),
		logo:      ui.NewLogo(theme),
		info:      ui.NewProfileInfo(theme),
		prompt:    ui.NewPrompt(theme),
		flashBar:  ui.NewFlashBar(theme),
		statusBar: views.NewStatusBar(theme),
		convList:  views.NewConversationList(theme),
		thread:    views.NewMessageThread(theme, media.NewCoordinator()),
		details:   views.NewPeerDetails(theme),
		help:      views.NewHelpView(theme),
		ctx:       ctx,
		cancel:    cancel,
	}
	a.components = map[string]ui.Component{
		ui.PageConversations: a.convList,
		ui.PageThread:        a.thread,
		ui.PageDetails:       a.details,
		ui.PageHelp:          a.help,
	}

	a.statusBar.SetProfile(profileName)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: a.Stop,
	})
	a.registry.AddGlobal("help", &keys.Action{
		Rune: '?', Key: tcell.KeyRune,
		Description: "?:help", Visible: true,
		Handler: func() { a.push(ui.PageHelp) },
	})
	a.registry.AddGlobal("command", &keys.Action{
		Rune: ':', Key: tcell.KeyRune,
		Description: ":command",
		Handler: func() { a.showPrompt(ui.PromptCommand) },
	})

	a.registry.AddView(ui.PageConversations, "filter", &keys.Action{
		Rune: '/', Key: tcell.KeyRune,
		Description: "/:filter", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptFilter) },
	})
	a.registry.AddView(ui.PageConversations, "open", &keys.Action{
		Rune: 'o', Key: tcell.KeyRune,
		Description: "o:open", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptOpen) },
	})
	a.registry.AddView(ui.PageConversations, "clear", &keys.Action{
		Rune: '0', Key: tcell.KeyRune,
		Description: "0:all",
		Handler: a.convList.ClearFilter,
	})

	a.registry.AddView(ui.PageThread, "compose", &keys.Action{
		Rune: 'i', Key: tcell.KeyRune,
		Description: "i:compose", Visible: true,
		Handler: func() { a.app.SetFocus(a.thread.Composer()) },
	})
	a.registry.AddView(ui.PageThread, "next", &keys.Action{
		Rune: 'j', Key: tcell.KeyRune,
		Description: "j:next",
		Handler: a.thread.SelectNext,
	})
	a.registry.AddView(ui.PageThread, "prev", &keys.Action{
		Rune: 'k', Key: tcell.KeyRune,
		Description: "k:prev",
		Handler: a.thread.SelectPrev,
	})
	a.registry.AddView(ui.PageThread, "retry", &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:retry", Visible: true,
		Handler: a.retrySelected,
	})
	a.registry.AddView(ui.PageThread, "unmute", &keys.Action{
		Rune: 'm', Key: tcell.KeyRune,
		Description: "m:unmute", Visible: true,
		Handler: func() {
			if !a.thread.Unmute() {
				a.flash.Warn("Select a voice message to unmute")
			}
		},
	})
	a.registry.AddView(ui.PageThread, "record", &keys.Action{
		Rune: 'R', Key: tcell.KeyRune,
		Description: "R:record", Visible: true,
		Handler: a.toggleRecording,
	})
	a.registry.AddView(ui.PageThread, "details", &keys.Action{
		Rune: 'd', Key: tcell.KeyRune,
		Description: "d:details", Visible: true,
		Handler: func() {
			a.details.Update(a.vm.ChatID(), a.vm.Peer(), len(a.vm.Messages()))
			a.pages.SetLabel(ui.PageDetails, "Details")
			a.push(ui.PageDetails)
		},
	})
}

func (a *App) setupCallbacks() {
	a.convList.SetSelectedFunc(func(row, col int) {
		if peer := a.convList.PeerByIndex(row); peer != "" {
			a.openChat(peer)
		}
	})

	a.thread.SetOnSend(func(text string) {
		go func() {
			if err := a.vm.SendText(a.ctx, text); err != nil {
				a.flash.Err(err)
			}
		}()
	})
	a.thread.SetOnTyping(func() {
		go func() { _ = a.vm.Typing(a.ctx) }()
	})
	a.thread.SetOnSeen(func(id string) {
		go func() {
			if err := a.vm.MarkRead(a.ctx, id); err != nil {
				a.flash.Err(err)
			}
		}()
	})
	a.thread.SetOnRefresh(func() {
		go a.app.QueueUpdateDraw(a.thread.Refresh)
	})
	a.thread.Composer().SetOnLeave(func() {
		a.app.SetFocus(a.thread.Messages())
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptCommand:
			a.runCommand(ParseCommand(text))
		case ui.PromptFilter:
			a.convList.SetFilter(text)
		case ui.PromptOpen:
			a.runCommand(Command{Name: "open", Args: text})
		}
	})
	a.prompt.SetOnCancel(a.hidePrompt)
	a.prompt.SetCompleter(func(mode ui.PromptMode, text string) []string {
		if mode == ui.PromptOpen {
			return a.convList.CompletePeers(text)
		}
		return CompleteCommand(text, a.convList.CompletePeers)
	})

	a.pages.SetOnChange(func(trail []ui.Crumb) {
		a.crumbs.Update(trail)
		a.refreshMenu()
	})
}

func (a *App) setupLayout() {
	for _, name := range []string{ui.PageConversations, ui.PageThread, ui.PageDetails, ui.PageHelp} {
		c := a.components[name]
		a.pages.Add(name, c.Name(), c.(tview.Primitive))
	}

	header := tview.NewFlex().
		AddItem(a.info, 0, 1, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(a.logo, 20, 0, false)

	a.main = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 7, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(a.main, true)

	a.app.SetAfterDrawFunc(func(tcell.Screen) {
		if a.pages.Current() == ui.PageThread {
			a.thread.ReportVisibility()
		}
	})

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		// Let text input widgets handle all keys normally.
		if a.prompt.HasFocus() || a.thread.Composer().HasFocus() {
			return event
		}

		current := a.pages.Current()
		if event.Key() == tcell.KeyEscape {
			a.back()
			return nil
		}
		if current == ui.PageConversations && event.Key() == tcell.KeyRune {
			if r := event.Rune(); r >= '1' && r <= '9' {
				if peer := a.convList.PeerByIndex(int(r - '0')); peer != "" {
					a.openChat(peer)
				}
				return nil
			}
		}
		if a.registry.HandleEvent(current, event) {
			return nil
		}
		return event
	})
}

func (a *App) push(page string) {
	if a.pages.Open(page) {
		a.focusCurrent()
	}
}

func (a *App) back() {
	top, ok := a.pages.Back()
	if !ok {
		return
	}
	if top == ui.PageThread {
		a.closeThread()
	}
	a.focusCurrent()
}

func (a *App) closeThread() {
	a.thread.Stop()
	a.vm.Close()
	a.statusBar.SetPeer(nil)
}

func (a *App) refreshMenu() {
	if c, ok := a.components[a.pages.Current()]; ok {
		a.menu.Update(c.Hints())
	}
}

func (a *App) focusCurrent() {
	switch a.pages.Current() {
	case ui.PageConversations:
		a.app.SetFocus(a.convList)
	case ui.PageThread:
		a.app.SetFocus(a.thread.Messages())
	case ui.PageDetails:
		a.app.SetFocus(a.details)
	case ui.PageHelp:
		a.app.SetFocus(a.help)
	}
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.main.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.main.ResizeItem(a.prompt, 0, 0)
	a.focusCurrent()
}

func (a *App) runCommand(cmd Command) {
	cmd, err := Resolve(cmd)
	if err != nil {
		a.flash.Warn(err.Error())
		return
	}
	switch cmd.Name {
	case "open":
		peer := a.convList.FindPeer(cmd.Args)
		if peer == "" {
			peer = cmd.Args
		}
		a.openChat(peer)
	case "retry":
		if a.pages.Current() != ui.PageThread {
			a.flash.Warn("Open a conversation to retry a message")
			return
		}
		a.retrySelected()
	case "record":
		a.toggleRecording()
	case "help":
		a.push(ui.PageHelp)
	case "quit":
		a.Stop()
	}
}

func (a *App) openChat(peerID string) {
	go func() {
		if err := a.vm.Open(a.ctx, peerID); err != nil {
			a.flash.Err(err)
			return
		}
		peer := a.vm.Peer()
		msgs := a.vm.Messages()
		me := ""
		if st := a.vm.Status(); st != nil {
			me = st.UserID
		}
		a.app.QueueUpdateDraw(func() {
			a.thread.Stop()
			a.thread.SetMe(me)
			a.thread.SetPeer(peer)
			a.thread.Update(msgs)
			a.statusBar.SetPeer(&peer)
			a.pages.SetLabel(ui.PageThread, a.thread.Name())
			if a.pages.Current() != ui.PageThread {
				a.pages.Reset(ui.PageThread)
			}
			a.refreshMenu()
			a.focusCurrent()
		})
	}()
}

func (a *App) retrySelected() {
	sel := a.thread.SelectedMessage()
	if sel == nil || sel.Status != message.StatusFailed {
		a.flash.Warn("Select a failed message to retry")
		return
	}
	id := sel.ID
	go func() {
		if err := a.vm.Retry(a.ctx, id); err != nil {
			a.flash.Err(err)
		}
	}()
}

func (a *App) toggleRecording() {
	if a.vm.ChatID() == "" {
		a.flash.Warn("Open a conversation before recording")
		return
	}
	go func() {
		on, err := a.vm.ToggleRecording(a.ctx)
		if err != nil {
			a.flash.Err(err)
		}
		since := time.Time{}
		if on {
			since = time.Now()
		}
		a.app.QueueUpdateDraw(func() { a.statusBar.SetRecording(since) })
	}()
}

// Run starts the TUI application.
func (a *App) Run() error {
	go func() {
		if err := a.vm.LoadStatus(a.ctx); err != nil {
			a.flash.Err(err)
		}
		if err := a.vm.LoadConversations(a.ctx); err != nil {
			a.flash.Err(err)
		}
		a.app.QueueUpdateDraw(a.renderOverview)

		go a.watchFlash()
		go a.watchEvents()
		a.startRefreshLoop()
	}()

	return a.app.Run()
}

func (a *App) renderOverview() {
	a.convList.Update(a.vm.Conversations())
	st := a.vm.Status()
	if st == nil {
		return
	}
	a.statusBar.SetState(st.State)
	a.logo.SetState(st.State)
	a.info.Update(&ui.ProfileData{
		Profile:       st.Profile,
		UserID:        st.UserID,
		State:         st.State,
		Conversations: st.ConversationCount,
		Failed:        st.FailedCount,
		Uptime:        time.Duration(st.UptimeMs) * time.Millisecond,
	})
}

func (a *App) startRefreshLoop() {
	refresh := time.NewTicker(refreshInterval)
	tick := time.NewTicker(time.Second)
	go func() {
		defer refresh.Stop()
		defer tick.Stop()
		for {
			select {
			case <-refresh.C:
				_ = a.vm.LoadStatus(a.ctx)
				_ = a.vm.LoadConversations(a.ctx)
				a.app.QueueUpdateDraw(a.renderOverview)
			case <-tick.C:
				a.app.QueueUpdateDraw(func() {
					a.statusBar.Tick()
					a.flashBar.Update(a.flash.GetMessage())
					a.refreshMenu()
				})
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

func (a *App) watchFlash() {
	for {
		select {
		case m := <-a.flash.Watch():
			a.app.QueueUpdateDraw(func() { a.flashBar.Update(&m) })
		case <-a.ctx.Done():
			return
		}
	}
}

// watchEvents follows the daemon event stream, reconnecting until the app stops.
func (a *App) watchEvents() {
	for {
		err := a.client.WatchEvents(a.ctx, "", a.handleEvent)
		if a.ctx.Err() != nil {
			return
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			a.flash.Warn("event stream lost: " + err.Error())
		}
		select {
		case <-time.After(watchBackoff):
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) handleEvent(ev *rpc.Event) {
	a.flash.FromEvent(ev.Kind, ev.Payload)
	switch {
	case strings.HasPrefix(ev.Kind, "message."):
		var ref bus.MessageRef
		if err := json.Unmarshal(ev.Payload, &ref); err != nil {
			return
		}
		if ref.ChatID != "" && ref.ChatID == a.vm.ChatID() {
			if err := a.vm.ReloadMessages(a.ctx); err != nil {
				return
			}
			msgs := a.vm.Messages()
			a.app.QueueUpdateDraw(func() { a.thread.Update(msgs) })
		}
	case ev.Kind == bus.TypingChanged || ev.Kind == bus.PresenceChanged:
		if a.vm.ChatID() == "" || a.vm.ReloadPeer(a.ctx) != nil {
			return
		}
		peer := a.vm.Peer()
		a.app.QueueUpdateDraw(func() {
			a.thread.SetPeer(peer)
			a.statusBar.SetPeer(&peer)
		})
	case ev.Kind == bus.RecordingStarted:
		var st bus.RecordingState
		_ = json.Unmarshal(ev.Payload, &st)
		since := time.UnixMilli(ev.OccurredAtMs).Add(-st.Elapsed)
		a.app.QueueUpdateDraw(func() { a.statusBar.SetRecording(since) })
	case ev.Kind == bus.RecordingStopped:
		// Our own capture hit its limit and still has to be sent.
		if a.vm.Recording() && a.vm.ChatID() != "" {
			a.toggleRecording()
			return
		}
		a.vm.SetRecording(false)
		a.app.QueueUpdateDraw(func() { a.statusBar.SetRecording(time.Time{}) })
	case ev.Kind == bus.ConnectionChanged:
		if a.vm.LoadStatus(a.ctx) != nil {
			return
		}
		a.app.QueueUpdateDraw(a.renderOverview)
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.thread.Stop()
	a.cancel()
	a.app.Stop()
}
