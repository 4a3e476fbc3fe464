package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/user/credit-sentinel/pkg/covenant"
	"github.com/user/credit-sentinel/pkg/monitor"
)

const schema = `
CREATE TABLE IF NOT EXISTS covenants (
    loan_id   TEXT NOT NULL,
    position  INTEGER NOT NULL,
    name      TEXT NOT NULL,
    threshold REAL NOT NULL,
    operator  TEXT NOT NULL,
    category  TEXT NOT NULL,
    clause    TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (loan_id, position)
);
CREATE TABLE IF NOT EXISTS reports (
    id           TEXT PRIMARY KEY,
    loan_id      TEXT NOT NULL,
    generated_at TEXT NOT NULL,
    body         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_loan ON reports(loan_id);
`

// SQLite persists covenants and reports in a SQLite database
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases coherent and serialises writers
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// SaveCovenants replaces the loan's covenant set in one transaction
func (s *SQLite) SaveCovenants(ctx context.Context, loanID string, defs []covenant.Definition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM covenants WHERE loan_id = ?`, loanID); err != nil {
		return err
	}
	for i, d := range defs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO covenants (loan_id, position, name, threshold, operator, category, clause)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			loanID, i, d.Name, d.Threshold, string(d.Operator), string(d.Category), d.SourceClause,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLite) Covenants(ctx context.Context, loanID string) ([]covenant.Definition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, threshold, operator, category, clause
		 FROM covenants
		 WHERE loan_id = ?
		 ORDER BY position`,
		loanID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	defs := []covenant.Definition{}
	for rows.Next() {
		var d covenant.Definition
		var op, category string
		if err := rows.Scan(&d.Name, &d.Threshold, &op, &category, &d.SourceClause); err != nil {
			return nil, err
		}
		d.Operator = covenant.Operator(op)
		d.Category = covenant.Category(category)
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

func (s *SQLite) SaveReport(ctx context.Context, r monitor.Report) error {
	body, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (id, loan_id, generated_at, body) VALUES (?, ?, ?, ?)`,
		r.ID, r.LoanID, r.GeneratedAt.UTC().Format(time.RFC3339Nano), string(body),
	)
	return err
}

func (s *SQLite) LatestReport(ctx context.Context, loanID string) (monitor.Report, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM reports WHERE loan_id = ? ORDER BY rowid DESC LIMIT 1`,
		loanID,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return monitor.Report{}, fmt.Errorf("%w: %s", monitor.ErrNoReport, loanID)
	}
	if err != nil {
		return monitor.Report{}, err
	}
	return decodeReport(body)
}

func (s *SQLite) Reports(ctx context.Context, loanID string) ([]monitor.Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM reports WHERE loan_id = ? ORDER BY rowid`,
		loanID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []monitor.Report{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		r, err := decodeReport(body)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func decodeReport(body string) (monitor.Report, error) {
	var r monitor.Report
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return monitor.Report{}, fmt.Errorf("corrupt report row: %w", err)
	}
	return r, nil
}
