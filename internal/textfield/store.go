package textfield

// Store owns the authoritative current State of one field.
//
// A Store is not safe for concurrent use. The session confines it to its
// task loop, the same way the host confines its widget to one thread.
type Store struct {
	current State
}

// NewStore returns a store holding New().
func NewStore() *Store {
	return &Store{current: New()}
}

// Current returns the adopted state.
func (s *Store) Current() State {
	return s.current
}

// UserEdit builds the candidate state for a user edit read back from the
// host. The counter is the current one plus one. The store is not modified;
// the caller decides whether to Adopt the candidate.
func (s *Store) UserEdit(text string, selStart, selEnd int) State {
	if selStart > selEnd {
		selStart, selEnd = selEnd, selStart
	}
	return State{
		Text:           text,
		SelectionStart: selStart,
		SelectionEnd:   selEnd,
		UserEditCount:  s.current.UserEditCount + 1,
	}
}

// Adopt replaces the current state unconditionally.
func (s *Store) Adopt(st State) {
	s.current = st
}

// IsContentEqual compares text and selection, ignoring UserEditCount.
func IsContentEqual(a, b State) bool {
	return a.ContentEquals(b)
}
