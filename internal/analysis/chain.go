// internal/analysis/chain.go
package analysis

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// Chain tries providers in priority order and falls back to the heuristic.
type Chain struct {
	analyzers []Analyzer
	fallback  Heuristic
}

// NewChain builds a chain over the given providers. Nil entries are ignored.
func NewChain(analyzers ...Analyzer) *Chain {
	c := &Chain{}
	for _, a := range analyzers {
		if a != nil {
			c.analyzers = append(c.analyzers, a)
		}
	}
	return c
}

// Providers returns the provider names in the order they are tried.
func (c *Chain) Providers() []string {
	names := make([]string, 0, len(c.analyzers)+1)
	for _, a := range c.analyzers {
		names = append(names, a.Name())
	}
	return append(names, c.fallback.Name())
}

// Analyze returns the first valid provider result, or the heuristic result
// when every provider fails. It never returns nil.
func (c *Chain) Analyze(ctx context.Context, in Input) *Result {
	for _, a := range c.analyzers {
		if ctx.Err() != nil {
			break
		}

		result, err := a.Analyze(ctx, in)
		if err == nil && !valid(result) {
			err = ErrEmptyResponse
		}
		if err != nil {
			entry := logrus.WithField("provider", a.Name())
			if errors.Is(err, ErrNotConfigured) {
				entry.Debug("Analysis provider not configured, skipping")
			} else {
				entry.WithError(err).Warn("Analysis provider failed, trying next")
			}
			continue
		}

		if result.Provider == "" {
			result.Provider = a.Name()
		}
		return Normalize(result, in)
	}

	return Normalize(c.fallback.Evaluate(in), in)
}
