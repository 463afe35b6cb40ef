package chain

import "testing"

func TestStats(t *testing.T) {
	m := newTestModel(t, 1)
	mustTrain(t, m, "ab", "ab", "")
	// State: "" -> {a:2, term:1}, "a" -> {b:2}, "b" -> {term:2}.

	st := m.Stats()
	if st.Order != 1 {
		t.Errorf("Order = %d, want 1", st.Order)
	}
	if st.Contexts != 3 {
		t.Errorf("Contexts = %d, want 3", st.Contexts)
	}
	if st.Transitions != 4 {
		t.Errorf("Transitions = %d, want 4", st.Transitions)
	}
	if st.TotalFrequency != 7 {
		t.Errorf("TotalFrequency = %d, want 7", st.TotalFrequency)
	}
	if st.Samples != 3 {
		t.Errorf("Samples = %d, want 3", st.Samples)
	}
	// 'a' starts outputs; the terminator observed under the empty context
	// does not count as a starter.
	if st.StartingChars != 1 {
		t.Errorf("StartingChars = %d, want 1", st.StartingChars)
	}
}

func TestStatsEmptyModel(t *testing.T) {
	m := newTestModel(t, 2)
	st := m.Stats()
	if st.Contexts != 0 || st.Samples != 0 || st.TotalFrequency != 0 {
		t.Errorf("untrained model stats not zero: %+v", st)
	}
}
