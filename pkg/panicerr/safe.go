// Package panicerr turns panics in long-running goroutines into errors so
// a pool can shut the process down cleanly instead of crashing it.
package panicerr

import (
	"context"
	"errors"
	"fmt"

	"github.com/sourcegraph/conc/panics"
)

// ErrPanic matches every error produced from a recovered panic.
var ErrPanic = errors.New("panic")

// Safe runs fn and converts a panic into an error naming the task.
func Safe(name string, fn func() error) func() error {
	return func() error {
		return run(name, fn)
	}
}

// SafeContext is Safe for functions taking a context.
func SafeContext(name string, fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		return run(name, func() error { return fn(ctx) })
	}
}

func run(name string, fn func() error) error {
	var (
		catcher panics.Catcher
		err     error
	)
	catcher.Try(func() {
		err = fn()
	})
	if r := catcher.Recovered(); r != nil {
		return fmt.Errorf("%s: %w: %w", name, ErrPanic, r.AsError())
	}
	return err
}
