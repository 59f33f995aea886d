package humanizer

import (
	"strings"
	"time"
)

// Keystroke is one entry of a typing trace. A LineBreak keystroke stands for
// a newline that must be sent as a line-break control action.
type Keystroke struct {
	Char      rune
	LineBreak bool
	PreDelay  time.Duration
}

const (
	thinkingChance = 0.04
	punctuation    = ".!?,;:"
	sentenceEnd    = ".!?"
)

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// NormalizeLineEndings turns CRLF and lone CR into LF. A CR typed into the
// page would arrive as Enter.
func NormalizeLineEndings(s string) string { return lineEndings.Replace(s) }

// TypingTrace returns one keystroke per rune of text, in order, after line
// endings are normalized. Pauses caused by punctuation are carried onto the
// following keystroke.
func (h *Humanizer) TypingTrace(text string) []Keystroke {
	runes := []rune(NormalizeLineEndings(text))
	trace := make([]Keystroke, 0, len(runes))
	var carry time.Duration

	for i, r := range runes {
		k := Keystroke{Char: r}
		if r == '\n' {
			k.LineBreak = true
			k.PreDelay = carry + h.Duration(ms(100), ms(300))
		} else {
			k.PreDelay = carry + h.Duration(ms(40), ms(180))
			if h.Chance(thinkingChance) {
				k.PreDelay += h.Duration(ms(400), ms(1200))
			}
		}
		carry = 0

		if strings.ContainsRune(punctuation, r) {
			carry += h.Duration(ms(100), ms(400))
		}
		if strings.ContainsRune(sentenceEnd, r) && i+1 < len(runes) && runes[i+1] == ' ' {
			carry += h.Duration(ms(200), ms(600))
		}
		trace = append(trace, k)
	}
	return trace
}

// Text reassembles the characters of a trace.
func Text(trace []Keystroke) string {
	var b strings.Builder
	for _, k := range trace {
		b.WriteRune(k.Char)
	}
	return b.String()
}
