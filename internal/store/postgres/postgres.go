// Package postgres implements the record store on PostgreSQL via pgx.
//
// Idempotency uses the registration_id primary key with
// INSERT ... ON CONFLICT DO NOTHING, matching the SQLite backend's
// INSERT OR IGNORE semantics.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"regetl/internal/record"
	"regetl/internal/store"
)

func init() {
	store.Register("postgres", New)
}

const defaultTable = "registry_records"

// Store persists records in a single Postgres table keyed by registration_id.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

// New connects to cfg.DSN and ensures the records table exists.
func New(ctx context.Context, cfg store.Config) (store.Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres: missing DSN")
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: pool: %w", err)
	}

	table := cfg.Table
	if table == "" {
		table = defaultTable
	}

	s := &Store{pool: pool, table: table}
	if _, err := pool.Exec(ctx, createTableSQL(table)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: create table %s: %w", table, err)
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

func insertSQL(table string) string {
	return `INSERT INTO ` + table + ` (
	registration_id, business_name, status, filing_date,
	agent_details, agent_name, agent_address, agent_email
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (registration_id) DO NOTHING`
}

func (s *Store) LoadSeenKeys(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT registration_id FROM `+s.table)
	if err != nil {
		return nil, fmt.Errorf("postgres: load seen keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan seen key: %w", err)
		}
		keys[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate seen keys: %w", err)
	}
	return keys, nil
}

func (s *Store) Append(ctx context.Context, rec record.Record) error {
	_, err := s.pool.Exec(ctx, insertSQL(s.table),
		rec.RegistrationID, rec.BusinessName, rec.Status, rec.FilingDate,
		rec.AgentDetails, rec.AgentName, rec.AgentAddress, rec.AgentEmail,
	)
	if err != nil {
		return fmt.Errorf("postgres: append record %s: %w", rec.RegistrationID, err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

var _ store.Store = (*Store)(nil)
