package pipeline

import (
	"fmt"
	"strings"
)

// Mode selects how the quiet period treats rapid submissions.
type Mode int

const (
	// ModePerItem delays every dequeued item independently. Superseded
	// items are still transformed and emitted.
	ModePerItem Mode = iota

	// ModeLatest keeps only the newest pending item. A submission during
	// an item's quiet period cancels that item and restarts the period.
	ModeLatest
)

func (m Mode) String() string {
	switch m {
	case ModePerItem:
		return "per-item"
	case ModeLatest:
		return "latest"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "per-item" or "latest". The empty string is per-item.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "per-item", "per_item", "peritem":
		return ModePerItem, nil
	case "latest":
		return ModeLatest, nil
	default:
		return ModePerItem, fmt.Errorf("unknown pipeline mode: %s", s)
	}
}
