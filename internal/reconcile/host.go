package reconcile

import "fieldsync/internal/textfield"

// Host is the text widget the reconciler writes into. Offsets are runes.
type Host interface {
	// Text returns the full current content.
	Text() string

	// Selection returns the current selection bounds.
	Selection() (start, end int)

	// ComposingRegion returns the active composition, or textfield.NoRegion.
	ComposingRegion() textfield.Region

	// ReplaceAll replaces the whole content. Hosts may drop the composing
	// region as part of the replacement.
	ReplaceAll(text string)

	// SetComposingRegion marks [start, end) of the current text as composing.
	SetComposingRegion(start, end int) error

	// MarkComposingText sets the composing region's text and places the
	// caret according to cursorHint.
	MarkComposingText(text string, cursorHint int) error

	// SetSelection moves the selection.
	SetSelection(start, end int) error
}

// Notifier delivers change notifications after every user-visible edit of
// the host text. The listener reads the new text and selection back from
// the host.
type Notifier interface {
	OnChange(fn func()) (remove func())
}
