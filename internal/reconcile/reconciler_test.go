package reconcile_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldsync/internal/host"
	"fieldsync/internal/reconcile"
	"fieldsync/internal/textfield"
)

func newReconciler(field *host.Field) (*reconcile.Reconciler, *textfield.Store) {
	store := textfield.NewStore()
	return reconcile.New(store, field, &reconcile.Guard{}, nil), store
}

func TestApplyPreservesComposingRegion(t *testing.T) {
	field := host.NewField("")
	field.Compose("hello")
	require.Equal(t, textfield.Region{Start: 0, End: 5}, field.ComposingRegion())

	rec, store := newReconciler(field)
	store.Adopt(store.UserEdit(field.Text(), 5, 5))

	applied, err := rec.Apply(textfield.State{Text: "HELLO", SelectionStart: 5, SelectionEnd: 5, UserEditCount: 1})
	require.NoError(t, err)
	assert.True(t, applied)

	assert.Equal(t, "HELLO", field.Text())
	assert.Equal(t, textfield.Region{Start: 0, End: 5}, field.ComposingRegion())
	start, end := field.Selection()
	assert.Equal(t, 5, start)
	assert.Equal(t, 5, end)
	assert.Equal(t, "HELLO", store.Current().Text)
}

func TestApplyPreservesInnerComposingRegion(t *testing.T) {
	field := host.NewField("one ")
	field.Compose("two")
	require.NoError(t, field.SetSelection(7, 7))

	rec, store := newReconciler(field)
	store.Adopt(store.UserEdit(field.Text(), 7, 7))

	_, err := rec.Apply(textfield.State{Text: "ONE TWO", SelectionStart: 7, SelectionEnd: 7, UserEditCount: 1})
	require.NoError(t, err)

	region := field.ComposingRegion()
	assert.Equal(t, textfield.Region{Start: 4, End: 7}, region)
	assert.Equal(t, "TWO", string([]rune(field.Text())[region.Start:region.End]))
}

func TestApplyWithoutComposingRegion(t *testing.T) {
	field := host.NewField("ab")
	rec, store := newReconciler(field)
	store.Adopt(store.UserEdit("ab", 2, 2))

	applied, err := rec.Apply(textfield.State{Text: "AB", SelectionStart: 1, SelectionEnd: 2, UserEditCount: 1})
	require.NoError(t, err)
	assert.True(t, applied)

	assert.Equal(t, "AB", field.Text())
	assert.False(t, field.ComposingRegion().Present())
	start, end := field.Selection()
	assert.Equal(t, 1, start)
	assert.Equal(t, 2, end)
}

func TestApplyClampsComposingRegionToShorterText(t *testing.T) {
	field := host.NewField("")
	field.Compose("hello")
	rec, store := newReconciler(field)
	store.Adopt(store.UserEdit("hello", 5, 5))

	_, err := rec.Apply(textfield.State{Text: "HEL", SelectionStart: 3, SelectionEnd: 3, UserEditCount: 1})
	require.NoError(t, err)
	assert.Equal(t, textfield.Region{Start: 0, End: 3}, field.ComposingRegion())
}

func TestApplyDiscardsStaleResult(t *testing.T) {
	field := host.NewField("abcdef")
	rec, store := newReconciler(field)
	newer := textfield.State{Text: "abcdef", SelectionStart: 6, SelectionEnd: 6, UserEditCount: 6}
	store.Adopt(newer)

	applied, err := rec.Apply(textfield.State{Text: "ABCDE", SelectionStart: 5, SelectionEnd: 5, UserEditCount: 5})
	require.NoError(t, err, "stale results are not errors")
	assert.False(t, applied)

	assert.Equal(t, "abcdef", field.Text())
	start, _ := field.Selection()
	assert.Equal(t, 6, start)
	assert.Equal(t, newer, store.Current())
	assert.Equal(t, uint64(1), rec.Stats().Stale)
	assert.Zero(t, rec.Stats().Applied)
}

func TestApplyAcceptsSameGeneration(t *testing.T) {
	field := host.NewField("ab")
	rec, store := newReconciler(field)
	store.Adopt(textfield.State{Text: "ab", SelectionStart: 2, SelectionEnd: 2, UserEditCount: 1})

	applied, err := rec.Apply(textfield.State{Text: "AB", SelectionStart: 2, SelectionEnd: 2, UserEditCount: 1})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "AB", field.Text())
}

func TestApplyInvalidStateLeavesHostAndReleasesGuard(t *testing.T) {
	field := host.NewField("ab")
	rec, store := newReconciler(field)
	before := store.Current()

	applied, err := rec.Apply(textfield.State{Text: "AB", SelectionStart: 0, SelectionEnd: 9, UserEditCount: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, textfield.ErrInvalidSelection)
	assert.False(t, applied)

	assert.Equal(t, "ab", field.Text())
	assert.Equal(t, before, store.Current())
	assert.Equal(t, reconcile.Idle, rec.Guard().Phase())
	assert.Equal(t, uint64(1), rec.Stats().Failed)
}

func TestHostNotificationsSeeReconcilingPhase(t *testing.T) {
	field := host.NewField("")
	field.Compose("hi")
	rec, store := newReconciler(field)
	store.Adopt(store.UserEdit("hi", 2, 2))

	var phases []reconcile.Phase
	field.OnChange(func() { phases = append(phases, rec.Guard().Phase()) })

	_, err := rec.Apply(textfield.State{Text: "HI", SelectionStart: 2, SelectionEnd: 2, UserEditCount: 1})
	require.NoError(t, err)

	require.NotEmpty(t, phases)
	for _, p := range phases {
		assert.Equal(t, reconcile.Reconciling, p)
	}
	assert.Equal(t, reconcile.Idle, rec.Guard().Phase())
}

func TestReentrantApplyPanicsAndReleasesGuard(t *testing.T) {
	field := host.NewField("ab")
	rec, store := newReconciler(field)
	store.Adopt(store.UserEdit("ab", 2, 2))

	remove := field.OnChange(func() {
		_, _ = rec.Apply(textfield.State{Text: "XX", UserEditCount: 1})
	})

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		_, _ = rec.Apply(textfield.State{Text: "AB", SelectionStart: 2, SelectionEnd: 2, UserEditCount: 1})
	}()
	remove()

	var rerr *reconcile.ReentrancyError
	require.NotNil(t, recovered)
	err, ok := recovered.(error)
	require.True(t, ok)
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, reconcile.Idle, rec.Guard().Phase())

	applied, err := rec.Apply(textfield.State{Text: "AB", SelectionStart: 2, SelectionEnd: 2, UserEditCount: 1})
	require.NoError(t, err)
	assert.True(t, applied, "the next attempt proceeds after a failed one")
}

func TestGuard(t *testing.T) {
	var g reconcile.Guard
	assert.Equal(t, reconcile.Idle, g.Phase())

	release := g.Enter("test")
	assert.True(t, g.Reconciling())
	assert.Panics(t, func() { g.Enter("test") })
	release()
	assert.False(t, g.Reconciling())

	assert.Equal(t, "idle", reconcile.Idle.String())
	assert.Equal(t, "reconciling", reconcile.Reconciling.String())
}

func TestFormatComposing(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		region textfield.Region
		want   string
	}{
		{"whole word", "hello", textfield.Region{Start: 0, End: 5}, "hello\n^~~~~^"},
		{"inner", "one two", textfield.Region{Start: 4, End: 7}, "one two\n    ^~~^"},
		{"empty region", "ab", textfield.Region{Start: 1, End: 1}, "ab\n ^"},
		{"absent", "ab", textfield.NoRegion, "ab\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reconcile.FormatComposing(tt.text, tt.region))
		})
	}
}

type selectionRefusingHost struct {
	*host.Field
}

var errSelectionRefused = errors.New("selection refused")

func (h selectionRefusingHost) SetSelection(start, end int) error {
	return errSelectionRefused
}

func TestApplyHostFailureAfterReplaceDoesNotAdopt(t *testing.T) {
	field := host.NewField("ab")
	store := textfield.NewStore()
	rec := reconcile.New(store, selectionRefusingHost{field}, &reconcile.Guard{}, nil)
	before := store.Current()

	applied, err := rec.Apply(textfield.State{Text: "AB", SelectionStart: 2, SelectionEnd: 2, UserEditCount: 1})
	require.ErrorIs(t, err, errSelectionRefused)
	assert.False(t, applied)

	assert.Equal(t, "AB", field.Text())
	assert.Equal(t, before, store.Current())
	assert.Equal(t, reconcile.Idle, rec.Guard().Phase())

	next := store.UserEdit(field.Text(), 2, 2)
	assert.Equal(t, "AB", next.Text)
	assert.Equal(t, before.UserEditCount+1, next.UserEditCount)
}
