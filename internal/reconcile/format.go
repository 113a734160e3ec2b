package reconcile

import (
	"strings"

	"fieldsync/internal/textfield"
)

// FormatComposing renders text on one line and, below it, a marker line
// with '^' at the composing boundaries and '~' inside the region. Without
// a composition the marker line is blank.
//
//	hello
//	^~~~~^
func FormatComposing(text string, region textfield.Region) string {
	runes := []rune(text)

	var sb strings.Builder
	sb.WriteString(text)
	sb.WriteByte('\n')
	for i := 0; i <= len(runes); i++ {
		switch {
		case !region.Present() || i < region.Start || i > region.End:
			sb.WriteByte(' ')
		case i == region.Start || i == region.End:
			sb.WriteByte('^')
		default:
			sb.WriteByte('~')
		}
	}
	return strings.TrimRight(sb.String(), " ")
}
