package engine

import "strings"

// Mark is the binary compliance symbol attached to one rule.
type Mark int

const (
	Fail Mark = iota
	Pass
)

const (
	passSymbol   = "✓"
	failSymbol   = "✗"
	manualSymbol = "  "
)

// MarkOf converts a rule outcome into a Mark.
func MarkOf(ok bool) Mark {
	if ok {
		return Pass
	}
	return Fail
}

// Symbol returns the glyph rendered between brackets in a checklist.
func (m Mark) Symbol() string {
	if m == Pass {
		return passSymbol
	}
	return failSymbol
}

func (m Mark) String() string {
	if m == Pass {
		return "pass"
	}
	return "fail"
}

// Item is one line of a checklist. Manual items are requirements the engine
// cannot verify from host state and are always rendered unmarked.
type Item struct {
	Text   string
	Mark   Mark
	Manual bool
}

// Checked builds an item whose mark is derived from ok.
func Checked(ok bool, text string) Item {
	return Item{Text: text, Mark: MarkOf(ok)}
}

// Unchecked builds a manual item.
func Unchecked(text string) Item {
	return Item{Text: text, Manual: true}
}

// Checklist renders as one "[<mark>]<text>" line per item.
type Checklist []Item

func (c Checklist) String() string {
	var sb strings.Builder
	for i, item := range c {
		if i > 0 {
			sb.WriteByte('\n')
		}
		symbol := manualSymbol
		if !item.Manual {
			symbol = item.Mark.Symbol()
		}
		sb.WriteString("[" + symbol + "]" + item.Text)
	}
	return sb.String()
}

// Tally counts the rendered marks in a Finding's text.
type Tally struct {
	Pass   int `json:"pass" yaml:"pass"`
	Fail   int `json:"fail" yaml:"fail"`
	Manual int `json:"manual" yaml:"manual"`
}

// Add accumulates the marks found in text.
func (t *Tally) Add(text string) {
	t.Pass += strings.Count(text, "["+passSymbol+"]")
	t.Fail += strings.Count(text, "["+failSymbol+"]")
	t.Manual += strings.Count(text, "["+manualSymbol+"]")
}
