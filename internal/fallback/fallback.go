// Package fallback evaluates ordered strategy lists until one produces a result.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var ErrExhausted = errors.New("all strategies failed")

// Strategy is one named way of producing a T.
type Strategy[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Chain runs strategies in order. Accept, when set, rejects results that returned no
// error but are still unusable (empty text, empty list).
type Chain[T any] struct {
	Strategies []Strategy[T]
	Accept     func(T) bool
	Logger     *slog.Logger
}

// Result carries the value and the name of the strategy that produced it.
type Result[T any] struct {
	Value    T
	Strategy string
}

func New[T any](logger *slog.Logger, strategies ...Strategy[T]) *Chain[T] {
	return &Chain[T]{Strategies: strategies, Logger: logger}
}

// WithAccept sets the acceptance predicate and returns the chain.
func (c *Chain[T]) WithAccept(accept func(T) bool) *Chain[T] {
	c.Accept = accept
	return c
}

func (c *Chain[T]) Run(ctx context.Context) (Result[T], error) {
	var errs []error
	for _, s := range c.Strategies {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		v, err := s.Run(ctx)
		if err == nil && (c.Accept == nil || c.Accept(v)) {
			return Result[T]{Value: v, Strategy: s.Name}, nil
		}
		if err == nil {
			err = fmt.Errorf("%s: result rejected", s.Name)
		} else {
			err = fmt.Errorf("%s: %w", s.Name, err)
		}
		errs = append(errs, err)
		if c.Logger != nil {
			c.Logger.Debug("fallback strategy failed", "strategy", s.Name, "error", err)
		}
	}

	var zero T
	return Result[T]{Value: zero}, fmt.Errorf("%w: %w", ErrExhausted, errors.Join(errs...))
}

// Static is a strategy that always returns v.
func Static[T any](name string, v T) Strategy[T] {
	return Strategy[T]{
		Name: name,
		Run: func(context.Context) (T, error) {
			return v, nil
		},
	}
}

// NonEmptyString accepts strings with content.
func NonEmptyString(s string) bool { return s != "" }

// NonEmptySlice accepts slices with at least one element.
func NonEmptySlice[E any](s []E) bool { return len(s) > 0 }
