// Package publish fans stored readings out to downstream sinks.
package publish

import (
	"context"
	"errors"
	"fmt"

	"boilertemp/internal/readings/types"
)

type Publisher interface {
	Publish(ctx context.Context, r types.Reading) error
}

// Named pairs a sink with the name used in error messages.
type Named struct {
	Name string
	Publisher
}

// Multi publishes to every sink and joins the failures. One sink failing does
// not stop the others.
type Multi []Named

func (m Multi) Publish(ctx context.Context, r types.Reading) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
		}
	}
	return errors.Join(errs...)
}
