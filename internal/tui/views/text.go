package views

import (
	"strings"

	"github.com/rivo/uniseg"
)

// cleanText prepares chat text for a tcell screen. Emoji modifiers, joiners
// and variation selectors are dropped so an emoji keeps a two-cell width.
// Tabs become a space and other control characters are removed, except
// newline.
func cleanText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n':
			b.WriteRune(r)
		case r == '\t':
			b.WriteByte(' ')
		case r < 0x20 || r == 0x7f || (r >= 0x80 && r < 0xa0):
		case emojiModifier(r):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// cleanLine is cleanText for single-line cells such as names and previews.
// Line breaks collapse to one space and the result is cut to max cells with
// an ellipsis. max <= 0 disables the cut.
func cleanLine(s string, max int) string {
	s = strings.Join(strings.Fields(cleanText(s)), " ")
	if max <= 0 || uniseg.StringWidth(s) <= max {
		return s
	}
	used := 0
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		if used+g.Width() > max-1 {
			from, _ := g.Positions()
			return s[:from] + "…"
		}
		used += g.Width()
	}
	return s
}

func emojiModifier(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF: // skin tones
		return true
	case r == 0x200D: // zero width joiner
		return true
	case r >= 0xFE00 && r <= 0xFE0F:
		return true
	case r >= 0xE0100 && r <= 0xE01EF:
		return true
	}
	return false
}
