package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/springsconnect/springs/internal/tui/ui"
)

// Composer is the text input for sending messages. Every edit is reported
// so the daemon can debounce typing notifications.
type Composer struct {
	*tview.InputField
	onSend   func(text string)
	onTyping func()
	onLeave  func()
}

// NewComposer creates a new message composer.
func NewComposer(theme *ui.Theme) *Composer {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	input.SetBorder(true)
	input.SetBorderColor(theme.BorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)
	input.SetTitle(" Compose (i to focus) ")
	input.SetTitleColor(theme.TitleColor)

	c := &Composer{InputField: input}

	input.SetChangedFunc(func(text string) {
		if text != "" && c.onTyping != nil {
			c.onTyping()
		}
	})
	input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			text := c.GetText()
			if text != "" && c.onSend != nil {
				c.onSend(text)
			}
			c.SetText("")
		case tcell.KeyEscape:
			if c.onLeave != nil {
				c.onLeave()
			}
		}
	})

	return c
}

// SetOnSend sets the callback when a message is submitted.
func (c *Composer) SetOnSend(fn func(text string)) { c.onSend = fn }

// SetOnTyping sets the callback fired on every non-empty edit.
func (c *Composer) SetOnTyping(fn func()) { c.onTyping = fn }

// SetOnLeave sets the callback fired when Esc leaves the composer.
func (c *Composer) SetOnLeave(fn func()) { c.onLeave = fn }
