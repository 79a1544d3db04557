// Package adapters holds helpers shared by the concrete port adapters in its
// subpackages (memory, file, redis, sqlite, http, mcp).
package adapters

import (
	"context"
	"errors"

	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/afo-kingdom/chancellor/pkg/ports"
)

// MultiSink fans a verdict out to several sinks. Every sink is attempted;
// the errors of those that failed are joined.
type MultiSink struct {
	sinks []ports.VerdictSink
}

// NewMultiSink skips nil sinks.
func NewMultiSink(sinks ...ports.VerdictSink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Publish implements ports.VerdictSink.
func (m *MultiSink) Publish(ctx context.Context, event domain.VerdictEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len reports the number of sinks.
func (m *MultiSink) Len() int {
	return len(m.sinks)
}
