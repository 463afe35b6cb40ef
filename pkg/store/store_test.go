package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kmcd77/glossa/pkg/chain"
)

func setupTestDB(t *testing.T) (*sql.DB, *Store) {
	t.Helper()
	dbFile := filepath.Join(t.TempDir(), "test_store.db")
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=-4000")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	if err = SetupSchema(db); err != nil {
		t.Fatalf("Failed to set up schema: %v", err)
	}

	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(s.Close)

	return db, s
}

func newTrainedModel(t *testing.T, order int, samples ...string) *chain.Model {
	t.Helper()
	m, err := chain.New(order, '\n')
	if err != nil {
		t.Fatalf("Failed to create model: %v", err)
	}
	for _, sample := range samples {
		if err = m.Train(sample); err != nil {
			t.Fatalf("Failed to train on %q: %v", sample, err)
		}
	}
	return m
}

func dumpModel(m *chain.Model) map[string]map[rune]int {
	dump := make(map[string]map[rune]int)
	m.Each(func(context string, outcome rune, count int) bool {
		if dump[context] == nil {
			dump[context] = make(map[rune]int)
		}
		dump[context][outcome] = count
		return true
	})
	return dump
}

func TestSetupSchemaIdempotent(t *testing.T) {
	db, _ := setupTestDB(t)
	if err := SetupSchema(db); err != nil {
		t.Fatalf("second SetupSchema failed: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	_, s := setupTestDB(t)
	ctx := context.Background()

	m := newTrainedModel(t, 2, "Catalina", "Carlsbad", "Carmel")
	if err := s.Save(ctx, "towns", m); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := s.Load(ctx, "towns")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Order() != m.Order() {
		t.Errorf("loaded order = %d, want %d", loaded.Order(), m.Order())
	}
	if loaded.Terminator() != m.Terminator() {
		t.Errorf("loaded terminator = %q, want %q", loaded.Terminator(), m.Terminator())
	}

	want := dumpModel(m)
	got := dumpModel(loaded)
	if len(got) != len(want) {
		t.Fatalf("loaded model has %d contexts, want %d", len(got), len(want))
	}
	for context, outcomes := range want {
		for outcome, count := range outcomes {
			if got[context][outcome] != count {
				t.Errorf("transition %q -> %q: count %d, want %d", context, outcome, got[context][outcome], count)
			}
		}
	}

	// A loaded model should be immediately usable for generation.
	if _, err = loaded.Generate(ctx); err != nil && !errors.Is(err, chain.ErrBudgetExceeded) {
		t.Errorf("Generate on loaded model failed: %v", err)
	}
}

func TestSaveReplaces(t *testing.T) {
	_, s := setupTestDB(t)
	ctx := context.Background()

	m := newTrainedModel(t, 1, "ab")
	if err := s.Save(ctx, "m", m); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}
	if err := s.Save(ctx, "m", m); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	loaded, err := s.Load(ctx, "m")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := dumpModel(m)
	got := dumpModel(loaded)
	for context, outcomes := range want {
		for outcome, count := range outcomes {
			if got[context][outcome] != count {
				t.Errorf("transition %q -> %q: count %d after re-save, want %d", context, outcome, got[context][outcome], count)
			}
		}
	}
}

func TestSaveRejectsMismatchedShape(t *testing.T) {
	_, s := setupTestDB(t)
	ctx := context.Background()

	if err := s.Save(ctx, "m", newTrainedModel(t, 1, "ab")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Save(ctx, "m", newTrainedModel(t, 3, "ab")); err == nil {
		t.Error("saving a different order under the same name should fail")
	}
}

func TestList(t *testing.T) {
	_, s := setupTestDB(t)
	ctx := context.Background()

	models, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(models) != 0 {
		t.Fatalf("fresh store lists %d models, want 0", len(models))
	}

	if err = s.Save(ctx, "towns", newTrainedModel(t, 2, "Carmel")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err = s.Save(ctx, "rivers", newTrainedModel(t, 3, "Merced")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	models, err = s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("List returned %d models, want 2", len(models))
	}
	if info := models["towns"]; info.Order != 2 || info.Terminator != "\n" {
		t.Errorf("towns info = %+v, want order 2, terminator \"\\n\"", info)
	}
	if info := models["rivers"]; info.Order != 3 {
		t.Errorf("rivers info = %+v, want order 3", info)
	}
}

func TestDelete(t *testing.T) {
	_, s := setupTestDB(t)
	ctx := context.Background()

	if err := s.Save(ctx, "doomed", newTrainedModel(t, 1, "ab")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	info, err := s.Get(ctx, "doomed")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if err = s.Delete(ctx, info); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err = s.Get(ctx, "doomed"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Get after delete: error = %v, want sql.ErrNoRows", err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.Transitions != 0 {
		t.Errorf("%d transitions survive the model's deletion, want 0", st.Transitions)
	}
}

func TestLoadMissing(t *testing.T) {
	_, s := setupTestDB(t)
	if _, err := s.Load(context.Background(), "nope"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Load of missing model: error = %v, want sql.ErrNoRows", err)
	}
}

func TestStats(t *testing.T) {
	_, s := setupTestDB(t)
	ctx := context.Background()

	m := newTrainedModel(t, 1, "ab", "ab")
	// State: "" -> {a:2}, "a" -> {b:2}, "b" -> {term:2}.
	if err := s.Save(ctx, "m", m); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.Models != 1 {
		t.Errorf("Models = %d, want 1", st.Models)
	}
	if st.Contexts != 3 {
		t.Errorf("Contexts = %d, want 3", st.Contexts)
	}
	if st.Transitions != 3 {
		t.Errorf("Transitions = %d, want 3", st.Transitions)
	}
	if st.TotalFrequency != 6 {
		t.Errorf("TotalFrequency = %d, want 6", st.TotalFrequency)
	}
}

func BenchmarkSave(b *testing.B) {
	dbFile := filepath.Join(b.TempDir(), "bench_store.db")
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=-4000")
	if err != nil {
		b.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()
	if err = SetupSchema(db); err != nil {
		b.Fatalf("Failed to set up schema: %v", err)
	}
	s, err := NewStore(db)
	if err != nil {
		b.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	m, err := chain.New(3, '\n')
	if err != nil {
		b.Fatalf("Failed to create model: %v", err)
	}
	names := []string{"Catalina", "Carlsbad", "Carmel", "Corona", "Calexico", "Monterey", "Modesto", "Madera", "Malibu"}
	for _, name := range names {
		if err = m.Train(name); err != nil {
			b.Fatalf("Failed to train: %v", err)
		}
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err = s.Save(ctx, "bench", m); err != nil {
			b.Fatalf("Save failed: %v", err)
		}
	}
}
