// Package textfield holds the state model of a live text field: the
// immutable State value, the composing Region owned by the host, and the
// Store that owns the current State.
//
// All offsets are rune offsets into the text.
package textfield

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrInvalidSelection is returned when selection offsets fall outside the text.
var ErrInvalidSelection = errors.New("selection out of range")

// State is one immutable snapshot of the field.
type State struct {
	// Text is the full buffer content.
	Text string

	// SelectionStart and SelectionEnd bound the selection. They are equal
	// when the selection is collapsed to a caret.
	SelectionStart int
	SelectionEnd   int

	// UserEditCount increases by one for every user-originated edit.
	// Transforms never change it.
	UserEditCount int64
}

// New returns the startup state: empty text, caret at 0, counter 0.
func New() State {
	return State{}
}

// Len returns the text length in runes.
func (s State) Len() int {
	return utf8.RuneCountInString(s.Text)
}

// ContentEquals reports whether two states have the same text and
// selection. UserEditCount is bookkeeping and is not compared.
func (s State) ContentEquals(other State) bool {
	return s.Text == other.Text &&
		s.SelectionStart == other.SelectionStart &&
		s.SelectionEnd == other.SelectionEnd
}

// Validate checks 0 <= SelectionStart <= SelectionEnd <= Len().
func (s State) Validate() error {
	n := s.Len()
	if s.SelectionStart < 0 || s.SelectionStart > s.SelectionEnd || s.SelectionEnd > n {
		return fmt.Errorf("%w: [%d,%d] in text of length %d",
			ErrInvalidSelection, s.SelectionStart, s.SelectionEnd, n)
	}
	return nil
}

// WithText returns a copy of s with the text replaced. Selection and
// counter are kept as they are.
func (s State) WithText(text string) State {
	s.Text = text
	return s
}

func (s State) String() string {
	return fmt.Sprintf("(%q, %d, %d, %d)", s.Text, s.SelectionStart, s.SelectionEnd, s.UserEditCount)
}
