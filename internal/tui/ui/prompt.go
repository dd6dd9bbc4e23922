package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// PromptMode selects what the input bar is for.
type PromptMode int

const (
	// PromptCommand runs ":open ada", ":retry" and the like.
	PromptCommand PromptMode = iota
	// PromptFilter narrows the conversation list.
	PromptFilter
	// PromptOpen asks for the peer whose chat to open.
	PromptOpen
)

var promptLabels = map[PromptMode]struct{ label, title string }{
	PromptCommand: {":", " Command "},
	PromptFilter:  {"/", " Filter "},
	PromptOpen:    {"open> ", " Open chat "},
}

// Completer returns suggestions for the text typed so far in mode.
type Completer func(mode PromptMode, text string) []string

// Prompt is the input bar above the pages.
type Prompt struct {
	*tview.InputField
	theme    *Theme
	mode     PromptMode
	complete Completer
	onSubmit func(mode PromptMode, text string)
	onCancel func()
}

// NewPrompt creates the input bar.
func NewPrompt(theme *Theme) *Prompt {
	input := tview.NewInputField()
	input.SetBorder(true)
	input.SetBorderColor(theme.PromptBorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	p := &Prompt{InputField: input, theme: theme}

	input.SetAutocompleteFunc(p.suggest)
	input.SetAutocompletedFunc(func(text string, _ int, source int) bool {
		if source == tview.AutocompletedNavigate {
			return false
		}
		p.SetText(text)
		return true
	})
	input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			text := p.GetText()
			p.SetText("")
			if p.onSubmit != nil && text != "" {
				p.onSubmit(p.mode, text)
			}
		case tcell.KeyEscape:
			p.SetText("")
			if p.onCancel != nil {
				p.onCancel()
			}
		}
	})
	return p
}

// SetCompleter sets the suggestion source. Filter mode never completes.
func (p *Prompt) SetCompleter(fn Completer) {
	p.complete = fn
}

// SetOnSubmit sets the callback for Enter on non-empty text.
func (p *Prompt) SetOnSubmit(fn func(mode PromptMode, text string)) {
	p.onSubmit = fn
}

// SetOnCancel sets the callback for Escape.
func (p *Prompt) SetOnCancel(fn func()) {
	p.onCancel = fn
}

// Activate clears the bar and switches it to mode.
func (p *Prompt) Activate(mode PromptMode) {
	p.mode = mode
	p.SetText("")
	l := promptLabels[mode]
	p.SetLabel(l.label)
	p.SetTitle(l.title)
}

// Mode returns the current mode.
func (p *Prompt) Mode() PromptMode {
	return p.mode
}

func (p *Prompt) suggest(text string) []string {
	if p.complete == nil || p.mode == PromptFilter || text == "" {
		return nil
	}
	return p.complete(p.mode, text)
}
