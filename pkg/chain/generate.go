package chain

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultMaxSteps bounds a single generation unless overridden with
// WithMaxSteps. Termination is probabilistic, so a table whose reachable
// contexts never assign weight to the terminator would otherwise loop
// forever.
const DefaultMaxSteps = 4096

// generateOptions is used by the generate functions to configure default options.
type generateOptions struct {
	maxSteps int
}

// GenerateOption configures a single generation call. It's used as a
// variadic argument in generation functions like Generate and GenerateStream.
type GenerateOption func(*generateOptions)

// WithMaxSteps caps the number of characters a generation may emit before it
// is cut off with ErrBudgetExceeded. A value of 0 or less removes the cap.
func WithMaxSteps(n int) GenerateOption {
	return func(o *generateOptions) { o.maxSteps = n }
}

func newGenerateOptions(opts ...GenerateOption) *generateOptions {
	options := &generateOptions{maxSteps: DefaultMaxSteps}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// Generate samples one string from the model, starting from the empty
// context and stopping when the terminator is drawn. The terminator itself
// is never part of the returned string.
//
// Generation is read-only and safe to run concurrently once training is
// done. It fails with ErrUnseenContext if the current window has no trained
// record (in particular, on a model that was never trained), and with
// ErrBudgetExceeded when the step cap is hit; in the latter case the
// truncated output is returned alongside the error for callers that want to
// keep it.
func (m *Model) Generate(ctx context.Context, opts ...GenerateOption) (string, error) {
	return m.generate(ctx, nil, newGenerateOptions(opts...))
}

// GenerateFrom continues generation from seed: the seed primes the output
// buffer and the context window, and sampling proceeds as in Generate. The
// trailing characters of the seed must form a trained context, or the first
// lookup fails with ErrUnseenContext.
func (m *Model) GenerateFrom(ctx context.Context, seed string, opts ...GenerateOption) (string, error) {
	return m.generate(ctx, []rune(seed), newGenerateOptions(opts...))
}

// GenerateN runs n independent generations and returns their results in
// order. It stops at the first failure, returning the results collected so
// far together with the error.
func (m *Model) GenerateN(ctx context.Context, n int, opts ...GenerateOption) ([]string, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfig, n)
	}

	options := newGenerateOptions(opts...)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		s, err := m.generate(ctx, nil, options)
		if err != nil {
			return out, fmt.Errorf("generation %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// generate contains the main loop shared by the blocking generate functions.
func (m *Model) generate(ctx context.Context, seed []rune, options *generateOptions) (string, error) {
	rng := m.childRNG()

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := seed
	window := lastN(out, m.order)
	steps := 0
	for {
		if err := ctx.Err(); err != nil {
			return string(out), err
		}
		if options.maxSteps > 0 && steps >= options.maxSteps {
			m.logger.Debug("generation cut off by step budget",
				slog.Int("max_steps", options.maxSteps),
				slog.Int("generated_length", len(out)),
			)
			return string(out), fmt.Errorf("%w: %d steps", ErrBudgetExceeded, steps)
		}

		rec, ok := m.table.lookup(string(window))
		if !ok {
			return string(out), fmt.Errorf("%w: %q", ErrUnseenContext, string(window))
		}

		c := Sample(rec, rng)
		if c == m.terminator {
			return string(out), nil
		}
		out = append(out, c)
		if len(window) == m.order {
			copy(window, window[1:])
			window[m.order-1] = c
		} else {
			window = append(window, c)
		}
		steps++
	}
}

// lastN returns an owned copy of the trailing n runes of s, or all of them
// if s is shorter.
func lastN(s []rune, n int) []rune {
	start := len(s) - n
	if start < 0 {
		start = 0
	}
	window := make([]rune, len(s)-start, n)
	copy(window, s[start:])
	return window
}
