package ui

import "github.com/rivo/tview"

// Page names of the chat client.
const (
	PageConversations = "conversations"
	PageThread        = "thread"
	PageDetails       = "details"
	PageHelp          = "help"
)

// Pages is the navigation stack. The root page is never popped, and a page
// appears at most once: opening one already on the stack returns to it.
type Pages struct {
	*tview.Pages
	root     string
	stack    []string
	labels   map[string]string
	onChange func(trail []Crumb)
}

// NewPages creates a stack that starts at root once root is added.
func NewPages(root string) *Pages {
	return &Pages{
		Pages:  tview.NewPages(),
		root:   root,
		labels: make(map[string]string),
	}
}

// SetOnChange sets the callback run with the crumb trail after every change.
func (p *Pages) SetOnChange(fn func(trail []Crumb)) {
	p.onChange = fn
}

// Add registers a page with its crumb label. Adding the root shows it.
func (p *Pages) Add(name, label string, item tview.Primitive) {
	p.labels[name] = label
	p.AddPage(name, item, true, false)
	if name == p.root && len(p.stack) == 0 {
		p.stack = []string{name}
		p.show(name)
		p.notify()
	}
}

// SetLabel renames a page in the crumb trail, e.g. the thread after the peer
// it shows.
func (p *Pages) SetLabel(name, label string) {
	if p.labels[name] == label {
		return
	}
	p.labels[name] = label
	if p.Contains(name) {
		p.notify()
	}
}

// Open shows name on top of the stack. It reports whether the stack changed.
func (p *Pages) Open(name string) bool {
	if p.Current() == name {
		return false
	}
	if i := p.index(name); i >= 0 {
		for _, n := range p.stack[i+1:] {
			p.HidePage(n)
		}
		p.stack = p.stack[:i+1]
	} else {
		p.HidePage(p.Current())
		p.stack = append(p.stack, name)
	}
	p.show(name)
	p.notify()
	return true
}

// Back pops the top page and returns it. It refuses to pop the root.
func (p *Pages) Back() (string, bool) {
	if len(p.stack) <= 1 {
		return "", false
	}
	top := p.stack[len(p.stack)-1]
	p.HidePage(top)
	p.stack = p.stack[:len(p.stack)-1]
	p.show(p.Current())
	p.notify()
	return top, true
}

// Reset returns to the root and then opens each of names in order.
func (p *Pages) Reset(names ...string) {
	for _, n := range p.stack {
		p.HidePage(n)
	}
	p.stack = []string{p.root}
	for _, n := range names {
		if n != p.root && p.index(n) < 0 {
			p.stack = append(p.stack, n)
		}
	}
	p.show(p.Current())
	p.notify()
}

// Current returns the top page.
func (p *Pages) Current() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

// Contains reports whether name is anywhere on the stack.
func (p *Pages) Contains(name string) bool { return p.index(name) >= 0 }

// Depth returns the stack size.
func (p *Pages) Depth() int { return len(p.stack) }

// Trail returns the crumbs for the stack, root first.
func (p *Pages) Trail() []Crumb {
	trail := make([]Crumb, 0, len(p.stack))
	for _, n := range p.stack {
		label := p.labels[n]
		if label == "" {
			label = n
		}
		trail = append(trail, Crumb{Page: n, Label: label})
	}
	return trail
}

func (p *Pages) index(name string) int {
	for i, n := range p.stack {
		if n == name {
			return i
		}
	}
	return -1
}

func (p *Pages) show(name string) {
	p.ShowPage(name)
	p.SendToFront(name)
}

func (p *Pages) notify() {
	if p.onChange != nil {
		p.onChange(p.Trail())
	}
}
