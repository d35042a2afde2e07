// Package sqlite implements the record store on SQLite via modernc.org/sqlite.
//
// Useful when downstream consumers want SQL access to the captured registry
// instead of tailing the JSONL file. Idempotency relies on the
// registration_id primary key plus INSERT OR IGNORE.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"regetl/internal/record"
	"regetl/internal/store"
)

func init() {
	store.Register("sqlite", New)
}

const defaultTable = "registry_records"

// Store persists records in a single SQLite table keyed by registration_id.
type Store struct {
	db    *sql.DB
	table string
}

// New opens the database at cfg.DSN and ensures the records table exists.
func New(ctx context.Context, cfg store.Config) (store.Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sqlite: missing DSN")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	table := cfg.Table
	if table == "" {
		table = defaultTable
	}

	s := &Store{db: db, table: table}
	if _, err := db.ExecContext(ctx, createTableSQL(table)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: create table %s: %w", table, err)
	}
	return s, nil
}

func createTableSQL(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + table + ` (
	registration_id TEXT PRIMARY KEY,
	business_name   TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT '',
	filing_date     TEXT NOT NULL DEFAULT '',
	agent_details   TEXT NOT NULL DEFAULT '',
	agent_name      TEXT NOT NULL DEFAULT '',
	agent_address   TEXT NOT NULL DEFAULT '',
	agent_email     TEXT NOT NULL DEFAULT ''
)`
}

func (s *Store) LoadSeenKeys(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT registration_id FROM `+s.table)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load seen keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scan seen key: %w", err)
		}
		keys[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate seen keys: %w", err)
	}
	return keys, nil
}

// Append inserts the record. OR IGNORE keeps reprocessing idempotent at the
// storage layer even if the caller's in-memory dedup missed one.
func (s *Store) Append(ctx context.Context, rec record.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO `+s.table+` (
			registration_id, business_name, status, filing_date,
			agent_details, agent_name, agent_address, agent_email
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RegistrationID, rec.BusinessName, rec.Status, rec.FilingDate,
		rec.AgentDetails, rec.AgentName, rec.AgentAddress, rec.AgentEmail,
	)
	if err != nil {
		return fmt.Errorf("sqlite: append record %s: %w", rec.RegistrationID, err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

var _ store.Store = (*Store)(nil)
