package transform

import (
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldsync/internal/textfield"
)

func TestUppercase(t *testing.T) {
	in := textfield.State{Text: "hello wörld", SelectionStart: 2, SelectionEnd: 5, UserEditCount: 7}

	out, err := Uppercase.Apply(in)
	require.NoError(t, err)

	assert.Equal(t, "HELLO WÖRLD", out.Text)
	assert.Equal(t, in.SelectionStart, out.SelectionStart)
	assert.Equal(t, in.SelectionEnd, out.SelectionEnd)
	assert.Equal(t, in.UserEditCount, out.UserEditCount)
}

func TestUppercaseIdempotent(t *testing.T) {
	inputs := []string{"", "ab", "Hello, World!", "straße", "ǆemal", "ıi", "日本語 abc"}
	for _, text := range inputs {
		t.Run(text, func(t *testing.T) {
			once, err := Uppercase.Apply(textfield.State{Text: text})
			require.NoError(t, err)
			twice, err := Uppercase.Apply(once)
			require.NoError(t, err)
			assert.Equal(t, once.Text, twice.Text)
		})
	}
}

func TestUppercasePreservesRuneCount(t *testing.T) {
	inputs := []string{"abc", "ıi", "ǆ", "ﬀ", "\xff\xfe"}
	for _, text := range inputs {
		out, err := Uppercase.Apply(textfield.State{Text: text})
		require.NoError(t, err)
		assert.Equal(t, utf8.RuneCountInString(text), utf8.RuneCountInString(out.Text), "input %q", text)
	}
}

func TestInsertSeparatorsFailsFast(t *testing.T) {
	in := textfield.State{Text: "1234", UserEditCount: 1}
	_, err := InsertSeparators.Apply(in)
	assert.ErrorIs(t, err, ErrNotImplemented)

	chain := Chain{Uppercase, InsertSeparators}
	out, err := chain.Apply(in)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotImplemented)

	var terr *Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "separators", terr.Name)
	assert.Equal(t, in, out, "failed chain must not return a partial result")
}

func TestChainOrder(t *testing.T) {
	appendX := Transform{Name: "x", Apply: func(s textfield.State) (textfield.State, error) {
		return s.WithText(s.Text + "x"), nil
	}}

	out, err := Chain{appendX, Uppercase}.Apply(textfield.State{Text: "a"})
	require.NoError(t, err)
	assert.Equal(t, "AX", out.Text)

	out, err = Chain{Uppercase, appendX}.Apply(textfield.State{Text: "a"})
	require.NoError(t, err)
	assert.Equal(t, "Ax", out.Text)
}

func TestChainRejectsCounterChange(t *testing.T) {
	bump := Transform{Name: "bump", Apply: func(s textfield.State) (textfield.State, error) {
		s.UserEditCount++
		return s, nil
	}}
	_, err := Chain{bump}.Apply(textfield.State{UserEditCount: 3})
	assert.ErrorIs(t, err, ErrCounterChanged)
}

func TestEmptyChainPassesThrough(t *testing.T) {
	in := textfield.State{Text: "abc", SelectionStart: 1, SelectionEnd: 1, UserEditCount: 2}
	out, err := Chain(nil).Apply(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestBuild(t *testing.T) {
	chain, err := Build([]string{"uppercase", " Separators "})
	require.NoError(t, err)
	assert.Equal(t, []string{"uppercase", "separators"}, chain.Names())

	_, err = Build([]string{"uppercase", "reverse"})
	assert.ErrorIs(t, err, ErrUnknown)
	assert.Contains(t, err.Error(), "reverse")
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"separators", "uppercase"}, Names())
}
