package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldsync/internal/textfield"
)

func TestNewField(t *testing.T) {
	f := NewField("héllo")
	assert.Equal(t, "héllo", f.Text())
	start, end := f.Selection()
	assert.Equal(t, 5, start)
	assert.Equal(t, 5, end)
	assert.Equal(t, textfield.NoRegion, f.ComposingRegion())
}

func TestInsertReplacesSelection(t *testing.T) {
	f := NewField("hello world")
	require.NoError(t, f.SetSelection(6, 11))

	f.Insert("there")
	assert.Equal(t, "hello there", f.Text())
	start, end := f.Selection()
	assert.Equal(t, 11, start)
	assert.Equal(t, 11, end)
}

func TestComposeThenCommit(t *testing.T) {
	f := NewField("say ")

	f.Compose("he")
	assert.Equal(t, "say he", f.Text())
	assert.Equal(t, textfield.Region{Start: 4, End: 6}, f.ComposingRegion())

	f.Compose("hello")
	assert.Equal(t, "say hello", f.Text())
	assert.Equal(t, textfield.Region{Start: 4, End: 9}, f.ComposingRegion())

	f.Insert("hello!")
	assert.Equal(t, "say hello!", f.Text())
	assert.False(t, f.ComposingRegion().Present())
}

func TestFinishComposingDoesNotNotify(t *testing.T) {
	f := NewField("")
	f.Compose("ab")

	calls := 0
	f.OnChange(func() { calls++ })
	f.FinishComposing()

	assert.Equal(t, 0, calls)
	assert.False(t, f.ComposingRegion().Present())
	assert.Equal(t, "ab", f.Text())
}

func TestBackspace(t *testing.T) {
	f := NewField("abcdef")
	f.Backspace(2)
	assert.Equal(t, "abcd", f.Text())

	require.NoError(t, f.SetSelection(1, 3))
	f.Backspace(1)
	assert.Equal(t, "ad", f.Text())
	start, end := f.Selection()
	assert.Equal(t, 1, start)
	assert.Equal(t, 1, end)

	require.NoError(t, f.SetSelection(0, 0))
	calls := 0
	f.OnChange(func() { calls++ })
	f.Backspace(1)
	assert.Equal(t, "ad", f.Text())
	assert.Equal(t, 0, calls, "backspace at start changes nothing")
}

func TestReplaceAllDropsComposing(t *testing.T) {
	f := NewField("")
	f.Compose("hello")

	f.ReplaceAll("HELLO")
	assert.Equal(t, "HELLO", f.Text())
	assert.False(t, f.ComposingRegion().Present())
}

func TestMarkComposingText(t *testing.T) {
	f := NewField("HELLO")
	require.NoError(t, f.SetComposingRegion(0, 5))
	require.NoError(t, f.MarkComposingText("HELLO", 5))

	assert.Equal(t, "HELLO", f.Text())
	assert.Equal(t, textfield.Region{Start: 0, End: 5}, f.ComposingRegion())
	start, _ := f.Selection()
	assert.Equal(t, 5, start)
}

func TestRangeChecks(t *testing.T) {
	f := NewField("abc")
	assert.ErrorIs(t, f.SetComposingRegion(1, 4), ErrOutOfRange)
	assert.ErrorIs(t, f.SetComposingRegion(-1, 2), ErrOutOfRange)
	assert.ErrorIs(t, f.SetSelection(0, 9), ErrOutOfRange)

	require.NoError(t, f.SetSelection(3, 1))
	start, end := f.Selection()
	assert.Equal(t, 1, start)
	assert.Equal(t, 3, end)
}

func TestListeners(t *testing.T) {
	f := NewField("")
	var seen []string
	remove := f.OnChange(func() { seen = append(seen, f.Text()) })

	f.Insert("a")
	f.Insert("b")
	f.ReplaceAll("AB")
	require.NoError(t, f.SetSelection(0, 0))
	remove()
	f.Insert("c")

	assert.Equal(t, []string{"a", "ab", "AB"}, seen)
}
