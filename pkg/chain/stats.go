package chain

// ModelStats holds aggregated statistics for a single model.
type ModelStats struct {
	Order          int `json:"order"`
	Contexts       int `json:"contexts"`        // unique context keys
	Transitions    int `json:"transitions"`     // unique context -> outcome links
	TotalFrequency int `json:"total_frequency"` // sum of all counts; the total number of trained occurrences
	Samples        int `json:"samples"`         // training calls seen so far (the empty context's total)
	StartingChars  int `json:"starting_chars"`  // unique characters that can begin an output
}

// Stats returns a snapshot of the model's aggregate statistics.
func (m *Model) Stats() ModelStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := ModelStats{
		Order:    m.order,
		Contexts: m.table.len(),
	}
	m.table.each(func(_ string, rec *FreqRecord) bool {
		st.Transitions += rec.Len()
		st.TotalFrequency += rec.Total()
		return true
	})

	// Every Train call records exactly one occurrence under the empty
	// context, so its total is the sample count.
	if rec, ok := m.table.lookup(""); ok {
		st.Samples = rec.Total()
		st.StartingChars = rec.Len()
		if rec.Count(m.terminator) > 0 {
			// Empty samples terminate immediately; they start nothing.
			st.StartingChars--
		}
	}
	return st
}
