// Package host provides Field, an in-memory text widget that implements
// reconcile.Host and reconcile.Notifier.
//
// Field behaves like a platform edit control: user input (Insert, Compose,
// Backspace) and programmatic replacement both fire change listeners, a
// full-text replacement drops the composing region, and selection changes
// alone do not notify.
package host

import (
	"errors"
	"fmt"
	"sync"

	"fieldsync/internal/reconcile"
	"fieldsync/internal/textfield"
)

var (
	_ reconcile.Host     = (*Field)(nil)
	_ reconcile.Notifier = (*Field)(nil)
)

// ErrOutOfRange is returned when offsets fall outside the current text.
var ErrOutOfRange = errors.New("offset out of range")

type listener struct {
	id int
	fn func()
}

// Field is an in-memory text field. Offsets are runes.
type Field struct {
	mu        sync.RWMutex
	text      []rune
	selStart  int
	selEnd    int
	composing textfield.Region

	listeners      []listener
	nextListenerID int
}

// NewField creates a field holding text with the caret at its end.
func NewField(text string) *Field {
	runes := []rune(text)
	return &Field{
		text:      runes,
		selStart:  len(runes),
		selEnd:    len(runes),
		composing: textfield.NoRegion,
	}
}

// Text returns the current content.
func (f *Field) Text() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return string(f.text)
}

// Selection returns the selection bounds.
func (f *Field) Selection() (start, end int) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.selStart, f.selEnd
}

// ComposingRegion returns the active composition or textfield.NoRegion.
func (f *Field) ComposingRegion() textfield.Region {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.composing
}

// ReplaceAll replaces the whole content, drops the composing region and
// puts the caret at the end.
func (f *Field) ReplaceAll(text string) {
	f.mu.Lock()
	f.text = []rune(text)
	f.composing = textfield.NoRegion
	f.selStart, f.selEnd = len(f.text), len(f.text)
	f.mu.Unlock()
	f.notify()
}

// SetComposingRegion marks [start, end) as composing.
func (f *Field) SetComposingRegion(start, end int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkRange(start, end); err != nil {
		return err
	}
	f.composing = textfield.Region{Start: start, End: end}
	return nil
}

// MarkComposingText replaces the composing region (or the selection when
// nothing is composing) with text, marks the result as composing and puts
// the caret at cursorHint, clamped to the text.
func (f *Field) MarkComposingText(text string, cursorHint int) error {
	f.mu.Lock()
	start, end := f.editRange()
	runes := []rune(text)
	f.splice(start, end, runes)
	f.composing = textfield.Region{Start: start, End: start + len(runes)}
	caret := min(max(cursorHint, 0), len(f.text))
	f.selStart, f.selEnd = caret, caret
	f.mu.Unlock()
	f.notify()
	return nil
}

// SetSelection moves the selection. Reversed bounds are accepted.
func (f *Field) SetSelection(start, end int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if start > end {
		start, end = end, start
	}
	if err := f.checkRange(start, end); err != nil {
		return err
	}
	f.selStart, f.selEnd = start, end
	return nil
}

// Insert commits text as the user typing it: it replaces the composing
// region if there is one, otherwise the selection, and ends composition.
func (f *Field) Insert(text string) {
	f.mu.Lock()
	start, end := f.editRange()
	runes := []rune(text)
	f.splice(start, end, runes)
	f.composing = textfield.NoRegion
	caret := start + len(runes)
	f.selStart, f.selEnd = caret, caret
	f.mu.Unlock()
	f.notify()
}

// Compose sets the in-progress composition to text, the way an input
// method does while the user is still choosing a word.
func (f *Field) Compose(text string) {
	f.mu.Lock()
	start, end := f.editRange()
	runes := []rune(text)
	f.splice(start, end, runes)
	f.composing = textfield.Region{Start: start, End: start + len(runes)}
	caret := start + len(runes)
	f.selStart, f.selEnd = caret, caret
	f.mu.Unlock()
	f.notify()
}

// FinishComposing commits the composition as plain text. The text itself
// does not change, so listeners are not notified.
func (f *Field) FinishComposing() {
	f.mu.Lock()
	f.composing = textfield.NoRegion
	f.mu.Unlock()
}

// Backspace deletes the selection, or n runes before the caret when the
// selection is collapsed.
func (f *Field) Backspace(n int) {
	f.mu.Lock()
	start, end := f.selStart, f.selEnd
	if start == end {
		start = max(end-n, 0)
	}
	if start == end {
		f.mu.Unlock()
		return
	}
	f.splice(start, end, nil)
	f.composing = textfield.NoRegion
	f.selStart, f.selEnd = start, start
	f.mu.Unlock()
	f.notify()
}

// OnChange registers fn to run after every text change. It returns a func
// that removes the listener.
func (f *Field) OnChange(fn func()) (remove func()) {
	f.mu.Lock()
	id := f.nextListenerID
	f.nextListenerID++
	f.listeners = append(f.listeners, listener{id: id, fn: fn})
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, l := range f.listeners {
			if l.id == id {
				f.listeners = append(f.listeners[:i], f.listeners[i+1:]...)
				return
			}
		}
	}
}

// notify calls the listeners without holding the lock, so listeners may
// read the field back.
func (f *Field) notify() {
	f.mu.RLock()
	fns := make([]func(), len(f.listeners))
	for i, l := range f.listeners {
		fns[i] = l.fn
	}
	f.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

// editRange is the span user input replaces. Callers hold the lock.
func (f *Field) editRange() (start, end int) {
	if f.composing.Present() {
		r := f.composing.Clamp(len(f.text))
		return r.Start, r.End
	}
	return f.selStart, f.selEnd
}

// splice replaces text[start:end] with repl. Callers hold the lock.
func (f *Field) splice(start, end int, repl []rune) {
	out := make([]rune, 0, len(f.text)-(end-start)+len(repl))
	out = append(out, f.text[:start]...)
	out = append(out, repl...)
	out = append(out, f.text[end:]...)
	f.text = out
}

func (f *Field) checkRange(start, end int) error {
	if start < 0 || start > end || end > len(f.text) {
		return fmt.Errorf("%w: [%d,%d] in text of length %d", ErrOutOfRange, start, end, len(f.text))
	}
	return nil
}
