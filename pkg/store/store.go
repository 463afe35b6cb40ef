// Package store persists trained chain models in a SQLite database, so a
// service can reload them across restarts. One database holds any number of
// named models.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"

	"github.com/kmcd77/glossa/pkg/chain"
)

// SetupSchema initializes the necessary tables in the provided database.
// This function should be called once on a new database before any other
// operations are performed. It is idempotent and safe to call on an
// already-initialized database.
func SetupSchema(db *sql.DB) error {
	const (
		schemaModels = `
CREATE TABLE IF NOT EXISTS chain_models (
    model_id INTEGER PRIMARY KEY,
    model_name TEXT NOT NULL UNIQUE,
    model_order INTEGER NOT NULL,
    terminator TEXT NOT NULL
);
`
		schemaTransitions = `
CREATE TABLE IF NOT EXISTS chain_transitions (
    model_id INTEGER NOT NULL,
    context TEXT NOT NULL,
    outcome TEXT NOT NULL,
    frequency INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (model_id, context, outcome)
);
`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaModels); err != nil {
		return fmt.Errorf("could not create models schema: %w", err)
	}
	if _, err = tx.Exec(schemaTransitions); err != nil {
		return fmt.Errorf("could not create transitions schema: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// ModelInfo holds the stored metadata for one model: its row id, name,
// lookback order and terminator character.
type ModelInfo struct {
	Id         int    `json:"id"`
	Name       string `json:"name"`
	Order      int    `json:"order"`
	Terminator string `json:"terminator"`
}

// Store reads and writes chain models in a SQLite database. It holds the
// database connection and prepared SQL statements for the hot paths.
type Store struct {
	db                 *sql.DB
	stmtGetModel       *sql.Stmt
	stmtListModels     *sql.Stmt
	stmtGetTransitions *sql.Stmt
	stmtCountModels    *sql.Stmt
	stmtCountContexts  *sql.Stmt
	stmtCountLinks     *sql.Stmt
	stmtTotalFrequency *sql.Stmt
	logger             *slog.Logger
}

// NewStore creates a Store over db, pre-compiling its SQL statements. It
// returns an error if any preparation fails.
func NewStore(db *sql.DB) (*Store, error) {
	stmtGetModel, err := db.Prepare(`SELECT model_id, model_order, terminator FROM chain_models WHERE model_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtListModels, err := db.Prepare(`SELECT model_id, model_name, model_order, terminator FROM chain_models;`)
	if err != nil {
		return nil, err
	}

	stmtGetTransitions, err := db.Prepare(`SELECT context, outcome, frequency FROM chain_transitions WHERE model_id = ? ORDER BY rowid;`)
	if err != nil {
		return nil, err
	}

	stmtCountModels, err := db.Prepare(`SELECT COUNT(*) FROM chain_models;`)
	if err != nil {
		return nil, err
	}

	stmtCountContexts, err := db.Prepare(`SELECT COUNT(DISTINCT context) FROM chain_transitions;`)
	if err != nil {
		return nil, err
	}

	stmtCountLinks, err := db.Prepare(`SELECT COUNT(*) FROM chain_transitions;`)
	if err != nil {
		return nil, err
	}

	stmtTotalFrequency, err := db.Prepare(`SELECT coalesce(SUM(frequency), 0) FROM chain_transitions;`)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:                 db,
		stmtGetModel:       stmtGetModel,
		stmtListModels:     stmtListModels,
		stmtGetTransitions: stmtGetTransitions,
		stmtCountModels:    stmtCountModels,
		stmtCountContexts:  stmtCountContexts,
		stmtCountLinks:     stmtCountLinks,
		stmtTotalFrequency: stmtTotalFrequency,
		logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases all prepared SQL statements held by the Store.
func (s *Store) Close() {
	_ = s.stmtGetModel.Close()
	_ = s.stmtListModels.Close()
	_ = s.stmtGetTransitions.Close()
	_ = s.stmtCountModels.Close()
	_ = s.stmtCountContexts.Close()
	_ = s.stmtCountLinks.Close()
	_ = s.stmtTotalFrequency.Close()
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Get retrieves the stored metadata for a single model by name. A missing
// model surfaces as sql.ErrNoRows.
func (s *Store) Get(ctx context.Context, name string) (ModelInfo, error) {
	var info ModelInfo
	err := s.stmtGetModel.QueryRowContext(ctx, name).Scan(&info.Id, &info.Order, &info.Terminator)
	if err != nil {
		return ModelInfo{}, err
	}
	info.Name = name
	return info, nil
}

// List retrieves metadata for all stored models, keyed by model name.
func (s *Store) List(ctx context.Context) (map[string]ModelInfo, error) {
	rows, err := s.stmtListModels.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	models := make(map[string]ModelInfo)
	for rows.Next() {
		var info ModelInfo
		if err = rows.Scan(&info.Id, &info.Name, &info.Order, &info.Terminator); err != nil {
			return nil, err
		}
		models[info.Name] = info
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return models, nil
}

// Save writes the model's full transition table under the given name,
// replacing whatever was stored for that name before. The model row is
// created on first save; a later save under the same name must carry the
// same order and terminator. The entire operation is transactional.
func (s *Store) Save(ctx context.Context, name string, m *chain.Model) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction for save: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var modelID, storedOrder int
	var storedTerminator string
	err = tx.QueryRowContext(ctx, `SELECT model_id, model_order, terminator FROM chain_models WHERE model_name = ?`, name).
		Scan(&modelID, &storedOrder, &storedTerminator)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx, `INSERT INTO chain_models (model_name, model_order, terminator) VALUES (?, ?, ?)`,
			name, m.Order(), string(m.Terminator()))
		if err != nil {
			return fmt.Errorf("failed to insert model '%s': %w", name, err)
		}
		newID, _ := res.LastInsertId()
		modelID = int(newID)
	case err != nil:
		return fmt.Errorf("failed to query for model '%s': %w", name, err)
	default:
		if storedOrder != m.Order() || storedTerminator != string(m.Terminator()) {
			return fmt.Errorf("stored model '%s' has order %d and terminator %q, cannot overwrite with order %d and terminator %q",
				name, storedOrder, storedTerminator, m.Order(), m.Terminator())
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM chain_transitions WHERE model_id = ?`, modelID); err != nil {
		return fmt.Errorf("failed to clear transitions for model %d: %w", modelID, err)
	}

	stmtInsert, err := tx.PrepareContext(ctx, `INSERT INTO chain_transitions (model_id, context, outcome, frequency) VALUES (?, ?, ?, ?);`)
	if err != nil {
		return fmt.Errorf("failed to prepare transition insert statement: %w", err)
	}
	defer func(stmt *sql.Stmt) {
		_ = stmt.Close()
	}(stmtInsert)

	var transitions int
	var insertErr error
	m.Each(func(context string, outcome rune, count int) bool {
		if _, insertErr = stmtInsert.ExecContext(ctx, modelID, context, string(outcome), count); insertErr != nil {
			return false
		}
		transitions++
		return true
	})
	if insertErr != nil {
		return fmt.Errorf("failed during insert of transitions: %w", insertErr)
	}

	s.logger.InfoContext(ctx, "model saved",
		slog.String("model_name", name),
		slog.Int("model_id", modelID),
		slog.Int("transitions_saved", transitions),
	)

	return tx.Commit()
}

// Load rebuilds a chain model from its stored transitions. Transitions are
// replayed in the order they were saved, so the rebuilt model iterates and
// exports identically to the one that was stored. Model options (for
// example chain.WithSeed) apply to the rebuilt model.
func (s *Store) Load(ctx context.Context, name string, opts ...chain.ModelOption) (*chain.Model, error) {
	info, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	terminator, size := utf8.DecodeRuneInString(info.Terminator)
	if size == 0 || size != len(info.Terminator) {
		return nil, fmt.Errorf("stored model '%s' has a malformed terminator %q", name, info.Terminator)
	}

	m, err := chain.New(info.Order, terminator, opts...)
	if err != nil {
		return nil, fmt.Errorf("stored model '%s': %w", name, err)
	}

	rows, err := s.stmtGetTransitions.QueryContext(ctx, info.Id)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var transitions int
	for rows.Next() {
		var context, outcomeText string
		var frequency int
		if err = rows.Scan(&context, &outcomeText, &frequency); err != nil {
			return nil, err
		}
		outcome, size := utf8.DecodeRuneInString(outcomeText)
		if size == 0 || size != len(outcomeText) {
			return nil, fmt.Errorf("stored model '%s' has a malformed outcome %q", name, outcomeText)
		}
		if err = m.Observe(context, outcome, frequency); err != nil {
			return nil, fmt.Errorf("stored model '%s' transition %q -> %q: %w", name, context, outcomeText, err)
		}
		transitions++
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "model loaded",
		slog.String("model_name", name),
		slog.Int("model_id", info.Id),
		slog.Int("transitions_loaded", transitions),
	)

	return m, nil
}

// Delete removes a model and all of its transitions from the database. The
// operation is performed within a transaction.
func (s *Store) Delete(ctx context.Context, info ModelInfo) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction for delete: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.ExecContext(ctx, `DELETE FROM chain_transitions WHERE model_id = ?`, info.Id); err != nil {
		return fmt.Errorf("failed to remove transitions for model %d: %w", info.Id, err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM chain_models WHERE model_id = ?`, info.Id); err != nil {
		return fmt.Errorf("failed to remove model %d: %w", info.Id, err)
	}

	s.logger.InfoContext(ctx, "model removed",
		slog.String("model_name", info.Name),
		slog.Int("model_id", info.Id),
	)

	return tx.Commit()
}

// StoreStats holds aggregated statistics for the entire database.
type StoreStats struct {
	Models         int `json:"models"`
	Contexts       int `json:"contexts"`
	Transitions    int `json:"transitions"`
	TotalFrequency int `json:"total_frequency"`
}

// Stats returns a snapshot of statistics across all stored models.
func (s *Store) Stats(ctx context.Context) (StoreStats, error) {
	var st StoreStats
	if err := s.stmtCountModels.QueryRowContext(ctx).Scan(&st.Models); err != nil {
		return StoreStats{}, err
	}
	if err := s.stmtCountContexts.QueryRowContext(ctx).Scan(&st.Contexts); err != nil {
		return StoreStats{}, err
	}
	if err := s.stmtCountLinks.QueryRowContext(ctx).Scan(&st.Transitions); err != nil {
		return StoreStats{}, err
	}
	if err := s.stmtTotalFrequency.QueryRowContext(ctx).Scan(&st.TotalFrequency); err != nil {
		return StoreStats{}, err
	}
	return st, nil
}
