package chain

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"
)

// ExportedModel is the serializable representation of a trained model,
// used for JSON-based import and export.
type ExportedModel struct {
	Order       int                  `json:"order"`
	Terminator  string               `json:"terminator"`
	Transitions []ExportedTransition `json:"transitions"`
}

// ExportedTransition is one context -> outcome observation with its count,
// used within an ExportedModel.
type ExportedTransition struct {
	Context string `json:"context"`
	Outcome string `json:"outcome"`
	Count   int    `json:"count"`
}

// Export serializes the model as indented JSON and writes it to w.
// Transitions are written in the model's deterministic iteration order, so
// exporting the same model twice yields identical bytes. Useful for backups
// or for moving a trained model between processes.
func (m *Model) Export(w io.Writer) error {
	exported := ExportedModel{
		Order:      m.order,
		Terminator: string(m.terminator),
	}
	m.Each(func(context string, outcome rune, count int) bool {
		exported.Transitions = append(exported.Transitions, ExportedTransition{
			Context: context,
			Outcome: string(outcome),
			Count:   count,
		})
		return true
	})

	m.logger.Info("model exported",
		slog.Int("order", exported.Order),
		slog.Int("transitions", len(exported.Transitions)),
	)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exported)
}

// Import reads a JSON model representation from r and rebuilds a Model from
// it. Any model options (for example WithSeed) apply to the new model.
func Import(r io.Reader, opts ...ModelOption) (*Model, error) {
	var exported ExportedModel
	if err := json.NewDecoder(r).Decode(&exported); err != nil {
		return nil, fmt.Errorf("failed to decode json model: %w", err)
	}

	terminator, err := singleRune(exported.Terminator)
	if err != nil {
		return nil, fmt.Errorf("terminator: %w", err)
	}

	m, err := New(exported.Order, terminator, opts...)
	if err != nil {
		return nil, err
	}

	for _, tr := range exported.Transitions {
		outcome, err := singleRune(tr.Outcome)
		if err != nil {
			return nil, fmt.Errorf("transition for context %q: %w", tr.Context, err)
		}
		if err := m.Observe(tr.Context, outcome, tr.Count); err != nil {
			return nil, fmt.Errorf("transition %q -> %q: %w", tr.Context, tr.Outcome, err)
		}
	}
	return m, nil
}

// singleRune decodes s as exactly one character.
func singleRune(s string) (rune, error) {
	c, size := utf8.DecodeRuneInString(s)
	if size == 0 || size != len(s) || (c == utf8.RuneError && size == 1) {
		return 0, fmt.Errorf("%w: expected a single character, got %q", ErrInvalidConfig, s)
	}
	return c, nil
}
