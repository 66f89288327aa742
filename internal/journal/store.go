// Package journal records batch runs and their outcomes in SQLite. The
// pipeline only writes to it; nothing read back influences a later run.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tgbatch/internal/bus"
	"tgbatch/internal/domain"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed run journal.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Run summarizes one batch run.
type Run struct {
	ID         string     `json:"id"`
	Operation  string     `json:"operation"`
	Binary     bool       `json:"binary"`
	Items      int        `json:"items"`
	Records    int        `json:"records"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Entry is one journaled outcome record.
type Entry struct {
	RunID     string `json:"run_id"`
	ItemIndex int    `json:"item_index"`
	Seq       int    `json:"seq"`
	Status    string `json:"status"`
	Response  string `json:"response,omitempty"`
	Error     string `json:"error,omitempty"`
	// DurationMS is the item's dispatch time, shared by all its records.
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// ErrRunNotFound is returned by GetRun for unknown ids.
var ErrRunNotFound = errors.New("run not found")

func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create journal directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, logger: logger}
	if err := runMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, operation, binary_mode, items, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Operation, run.Binary, run.Items, run.StartedAt,
	)
	return err
}

// AppendOutcomes stores the records produced by one item and updates the
// run's counters. dispatch is the item's time in the Bot API call.
func (s *Store) AppendOutcomes(ctx context.Context, runID string, outcomes []domain.Outcome, dispatch time.Duration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var seq int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM outcomes WHERE run_id = ?`, runID).Scan(&seq); err != nil {
		return err
	}

	failed := 0
	for _, o := range outcomes {
		status := "succeeded"
		var response sql.NullString
		if o.Failed() {
			status = "failed"
			failed++
		} else {
			data, err := json.Marshal(o.JSON)
			if err != nil {
				return fmt.Errorf("encode outcome: %w", err)
			}
			response = sql.NullString{String: string(data), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO outcomes (run_id, item_index, seq, status, response, error, duration_ms) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, o.Index, seq, status, response, nullString(o.Error), dispatch.Milliseconds(),
		); err != nil {
			return err
		}
		seq++
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE runs SET records = records + ?, failed = failed + ? WHERE id = ?`,
		len(outcomes), failed, runID,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// FinishRun marks a run done; runErr is the abort cause, if any.
func (s *Store) FinishRun(ctx context.Context, runID string, runErr error) error {
	var msg sql.NullString
	if runErr != nil {
		msg = sql.NullString{String: runErr.Error(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, error = ? WHERE id = ?`,
		time.Now(), msg, runID,
	)
	return err
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, operation, binary_mode, items, records, failed, error, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, operation, binary_mode, items, records, failed, error, started_at, finished_at
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return run, err
}

func (s *Store) Entries(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, item_index, seq, status, response, error, duration_ms, created_at
		 FROM outcomes WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			response sql.NullString
			errMsg   sql.NullString
		)
		if err := rows.Scan(&e.RunID, &e.ItemIndex, &e.Seq, &e.Status, &response, &errMsg, &e.DurationMS, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Response = response.String
		e.Error = errMsg.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run      Run
		errMsg   sql.NullString
		finished sql.NullTime
	)
	if err := sc.Scan(&run.ID, &run.Operation, &run.Binary, &run.Items, &run.Records, &run.Failed,
		&errMsg, &run.StartedAt, &finished); err != nil {
		return nil, err
	}
	run.Error = errMsg.String
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Attach records runs as the executor emits lifecycle events. Write errors
// are logged and never fail the batch.
func (s *Store) Attach(eb *bus.EventBus) {
	eb.On(bus.EventBatchStarted, func(e bus.Event) {
		err := s.BeginRun(context.Background(), Run{
			ID:        e.RunID,
			Operation: e.Operation.String(),
			Binary:    e.Binary,
			Items:     e.Items,
			StartedAt: e.Timestamp,
		})
		if err != nil {
			s.logger.Error("journal: begin run", "run_id", e.RunID, "err", err)
		}
	})
	eb.On(bus.EventItemState, func(e bus.Event) {
		if !e.State.Terminal() || len(e.Outcomes) == 0 {
			return
		}
		if err := s.AppendOutcomes(context.Background(), e.RunID, e.Outcomes, e.Duration); err != nil {
			s.logger.Error("journal: append outcomes", "run_id", e.RunID, "index", e.Index, "err", err)
		}
	})
	eb.On(bus.EventBatchFinished, func(e bus.Event) {
		if err := s.FinishRun(context.Background(), e.RunID, e.Err); err != nil {
			s.logger.Error("journal: finish run", "run_id", e.RunID, "err", err)
		}
	})
}
