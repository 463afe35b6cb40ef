package chain

import (
	"context"
	"log/slog"
)

// GenerateStream samples one string from the model and delivers it one
// character at a time over the returned channel. The channel is closed once
// the terminator is drawn, the step budget runs out, the context is
// cancelled, or an unseen context is reached; the last two are logged rather
// than surfaced, matching the fire-and-forget nature of a stream. Useful for
// drip-feeding very long outputs without buffering them.
func (m *Model) GenerateStream(ctx context.Context, opts ...GenerateOption) <-chan rune {
	options := newGenerateOptions(opts...)
	out := make(chan rune)

	go func() {
		defer close(out)

		rng := m.childRNG()

		m.mu.RLock()
		defer m.mu.RUnlock()

		window := make([]rune, 0, m.order)
		steps := 0
		for {
			select {
			case <-ctx.Done():
				m.logger.DebugContext(ctx, "generation stream cancelled by context")
				return
			default:
			}
			if options.maxSteps > 0 && steps >= options.maxSteps {
				m.logger.DebugContext(ctx, "generation stream cut off by step budget",
					slog.Int("max_steps", options.maxSteps))
				return
			}

			rec, ok := m.table.lookup(string(window))
			if !ok {
				m.logger.ErrorContext(ctx, "generation stream reached an unseen context",
					slog.String("context", string(window)))
				return
			}

			c := Sample(rec, rng)
			if c == m.terminator {
				return
			}

			select {
			case <-ctx.Done():
				return
			case out <- c:
			}

			if len(window) == m.order {
				copy(window, window[1:])
				window[m.order-1] = c
			} else {
				window = append(window, c)
			}
			steps++
		}
	}()

	return out
}
