// Package transform defines the pure text transforms applied by the
// pipeline and the ordered Chain that runs them.
//
// A transform derives a new textfield.State from its input. It must not
// hold shared mutable state, must keep UserEditCount, and must keep rune
// positions stable so that offsets recorded against the input (selection,
// composing region) stay meaningful against the output.
package transform

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"fieldsync/internal/textfield"
)

var (
	// ErrNotImplemented is returned by transforms that are declared but
	// have no implementation yet.
	ErrNotImplemented = errors.New("transform not implemented")

	// ErrCounterChanged is returned when a transform altered UserEditCount.
	ErrCounterChanged = errors.New("transform changed user edit count")

	// ErrUnknown is returned by Build for names missing from the registry.
	ErrUnknown = errors.New("unknown transform")
)

// Func derives a new state from its input.
type Func func(textfield.State) (textfield.State, error)

// Transform is a named Func.
type Transform struct {
	Name  string
	Apply Func
}

// Error reports which transform of a chain failed.
type Error struct {
	Name string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transform %s: %v", e.Name, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Uppercase maps every rune of the text to upper case. Selection and
// counter are untouched and the rune count is preserved.
var Uppercase = Transform{
	Name: "uppercase",
	Apply: func(s textfield.State) (textfield.State, error) {
		return s.WithText(strings.ToUpper(s.Text)), nil
	},
}

// InsertSeparators is meant to insert separator characters into the text.
// It has no implementation; applying it fails with ErrNotImplemented
// instead of passing the state through.
var InsertSeparators = Transform{
	Name: "separators",
	Apply: func(s textfield.State) (textfield.State, error) {
		return s, ErrNotImplemented
	},
}

var registry = map[string]Transform{
	Uppercase.Name:        Uppercase,
	InsertSeparators.Name: InsertSeparators,
}

// Names lists the registered transform names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the registered transform with the given name.
func Lookup(name string) (Transform, bool) {
	t, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

// Chain is an ordered list of transforms.
type Chain []Transform

// Build resolves names into a chain, in order.
func Build(names []string) (Chain, error) {
	chain := make(Chain, 0, len(names))
	for _, name := range names {
		t, ok := Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknown, name, strings.Join(Names(), ", "))
		}
		chain = append(chain, t)
	}
	return chain, nil
}

// Apply runs every transform in order, feeding each the previous output.
// It stops at the first failure and returns it as an *Error.
func (c Chain) Apply(s textfield.State) (textfield.State, error) {
	for _, t := range c {
		out, err := t.Apply(s)
		if err != nil {
			return s, &Error{Name: t.Name, Err: err}
		}
		if out.UserEditCount != s.UserEditCount {
			return s, &Error{Name: t.Name, Err: ErrCounterChanged}
		}
		s = out
	}
	return s, nil
}

// Names returns the transform names of the chain.
func (c Chain) Names() []string {
	names := make([]string, len(c))
	for i, t := range c {
		names[i] = t.Name
	}
	return names
}
