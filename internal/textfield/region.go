package textfield

// Region is a half-open [Start, End) span of the host text, in runes.
// It marks text the input method is still composing.
type Region struct {
	Start int
	End   int
}

// NoRegion is the sentinel for "no active composition".
var NoRegion = Region{Start: -1, End: -1}

// Present reports whether the region describes an active composition.
func (r Region) Present() bool {
	return r.Start != -1 && r.End != -1
}

// Len returns the number of runes in the region, or 0 when absent.
func (r Region) Len() int {
	if !r.Present() || r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

// Clamp bounds the region to a text of n runes. An absent region stays absent.
func (r Region) Clamp(n int) Region {
	if !r.Present() {
		return r
	}
	if r.Start > r.End {
		r.Start, r.End = r.End, r.Start
	}
	r.Start = min(max(r.Start, 0), n)
	r.End = min(max(r.End, 0), n)
	return r
}
