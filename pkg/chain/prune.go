package chain

import "log/slog"

// Prune removes every transition whose count is less than or equal to
// minCount, dropping context records that end up empty. This shrinks a model
// by discarding rare, and often noisy, transitions. It returns the number of
// transitions removed.
//
// Pruning keeps the count/total invariant intact but can disconnect the
// table: a context whose only path to the terminator was pruned away will
// fail generation with ErrUnseenContext or run into the step budget.
func (m *Model) Prune(minCount int) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	keptKeys := m.table.keys[:0]
	for _, key := range m.table.keys {
		rec := m.table.records[key]
		keptOutcomes := rec.outcomes[:0]
		for _, c := range rec.outcomes {
			n := rec.counts[c]
			if n <= minCount {
				delete(rec.counts, c)
				rec.total -= n
				removed++
				continue
			}
			keptOutcomes = append(keptOutcomes, c)
		}
		rec.outcomes = keptOutcomes
		if rec.Len() == 0 {
			delete(m.table.records, key)
			continue
		}
		keptKeys = append(keptKeys, key)
	}
	m.table.keys = keptKeys

	m.logger.Info("model pruned",
		slog.Int("min_count", minCount),
		slog.Int("transitions_removed", removed),
	)
	return removed
}
