package chain

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"unicode/utf8"
)

var (
	// ErrInvalidConfig reports a configuration problem: a non-positive
	// lookback order or batch size, a terminator showing up inside training
	// input, or malformed import data.
	ErrInvalidConfig = errors.New("chain: invalid configuration")

	// ErrUnseenContext reports that generation reached a context window with
	// no trained record. It indicates a never-trained model, a pruned-apart
	// table, or an unsynchronized train/generate interleaving.
	ErrUnseenContext = errors.New("chain: context never trained")

	// ErrBudgetExceeded reports that a generation hit its step budget before
	// drawing the terminator. The truncated output is returned alongside it.
	ErrBudgetExceeded = errors.New("chain: generation step budget exceeded")
)

// Model is a character-level Markov chain of a fixed lookback order. All of
// its learned state lives in its context table; training mutates the table
// under a write lock and generation reads it under a read lock, so a trained
// model can serve any number of concurrent generations.
type Model struct {
	order      int
	terminator rune

	mu    sync.RWMutex
	table *contextTable

	rngMu sync.Mutex
	rng   *rand.Rand

	logger *slog.Logger
}

// ModelOption configures a Model at construction time.
type ModelOption func(*Model)

// WithSeed makes the model's random source deterministic, so repeated runs
// over the same trained state generate the same outputs.
func WithSeed(seed uint64) ModelOption {
	return func(m *Model) { m.rng = rand.New(rand.NewPCG(seed, 1)) }
}

// WithRand sets the random source used for sampling.
func WithRand(rng *rand.Rand) ModelOption {
	return func(m *Model) { m.rng = rng }
}

// New creates a model with the given lookback order and terminator
// character. The terminator must never occur in legitimate training input;
// Train rejects samples that contain it.
func New(order int, terminator rune, opts ...ModelOption) (*Model, error) {
	if order < 1 {
		return nil, fmt.Errorf("%w: lookback order must be positive, got %d", ErrInvalidConfig, order)
	}
	m := &Model{
		order:      order,
		terminator: terminator,
		table:      newContextTable(),
		rng:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Order returns the lookback order the model was built with.
func (m *Model) Order() int {
	return m.order
}

// Terminator returns the reserved end-of-sequence character.
func (m *Model) Terminator() rune {
	return m.terminator
}

// SetLogger sets the logger for the model. By default, all logs are discarded.
func (m *Model) SetLogger(logger *slog.Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Train feeds one sample into the model: the terminator is conceptually
// appended to the sample, and every character of that extended sequence is
// recorded under the window of up to Order characters preceding it. A sample
// of length L produces exactly L+1 occurrence records; training the same
// sample again doubles every count it touches, which is how relative
// frequency accumulates over a corpus.
//
// The empty sample is valid and records a single terminator occurrence under
// the empty context. The only rejected input is a sample containing the
// terminator itself, which would make termination ambiguous.
func (m *Model) Train(sample string) error {
	if strings.ContainsRune(sample, m.terminator) {
		return fmt.Errorf("%w: sample %q contains the terminator %q", ErrInvalidConfig, sample, m.terminator)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	window := make([]rune, 0, m.order)
	record := func(c rune) {
		m.table.recordOccurrence(string(window), c)
		if len(window) == m.order {
			copy(window, window[1:])
			window[m.order-1] = c
		} else {
			window = append(window, c)
		}
	}
	for _, c := range sample {
		record(c)
	}
	record(m.terminator)
	return nil
}

// TrainCorpus trains on each sample in order, stopping at the first invalid
// one.
func (m *Model) TrainCorpus(samples []string) error {
	for i, sample := range samples {
		if err := m.Train(sample); err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
	}

	st := m.Stats()
	m.logger.Info("corpus trained",
		slog.Int("samples", len(samples)),
		slog.Int("contexts", st.Contexts),
		slog.Int("transitions", st.Transitions),
	)
	return nil
}

// Observe records count occurrences of outcome following context. It is the
// low-level loading primitive behind Import and persistence; for training
// actual text, Train is the right call.
func (m *Model) Observe(context string, outcome rune, count int) error {
	if count < 1 {
		return fmt.Errorf("%w: occurrence count must be positive, got %d", ErrInvalidConfig, count)
	}
	if utf8.RuneCountInString(context) > m.order {
		return fmt.Errorf("%w: context %q is longer than the lookback order %d", ErrInvalidConfig, context, m.order)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.table.add(context, outcome, count)
	return nil
}

// Lookup returns the frequency record for an exact context key, or false if
// that context was never trained on. The record is live model state: do not
// read it concurrently with training.
func (m *Model) Lookup(context string) (*FreqRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.table.lookup(context)
}

// Each visits every (context, outcome, count) transition under a read lock,
// in deterministic order: contexts in insertion order, outcomes in
// first-seen order. Iteration stops early if fn returns false.
func (m *Model) Each(fn func(context string, outcome rune, count int) bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	m.table.each(func(key string, rec *FreqRecord) bool {
		keep := true
		rec.Each(func(c rune, n int) bool {
			keep = fn(key, c, n)
			return keep
		})
		return keep
	})
}

// childRNG derives an independent random source for one generation, so
// concurrent generations never share a rand.Rand and seeded models stay
// reproducible.
func (m *Model) childRNG() *rand.Rand {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return rand.New(rand.NewPCG(m.rng.Uint64(), m.rng.Uint64()))
}
