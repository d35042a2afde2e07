// Package mssql implements the record store on SQL Server.
//
// Idempotency avoids MERGE: the insert is guarded with a NOT EXISTS
// anti-semi join, which behaves well under concurrent reprocessing and is
// easier to reason about.
package mssql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"

	"regetl/internal/record"
	"regetl/internal/store"
)

func init() {
	store.Register("mssql", New)
}

const defaultTable = "registry_records"

// Store persists records in a single SQL Server table keyed by
// registration_id.
type Store struct {
	db    *sql.DB
	table string
}

// New connects to cfg.DSN and ensures the records table exists.
func New(ctx context.Context, cfg store.Config) (store.Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("mssql: missing DSN")
	}

	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mssql: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mssql: ping: %w", err)
	}

	table := cfg.Table
	if table == "" {
		table = defaultTable
	}

	s := &Store{db: db, table: table}
	if _, err := db.ExecContext(ctx, createTableSQL(table)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mssql: create table %s: %w", table, err)
	}
	return s, nil
}

// createTableSQL uses an object_id guard: SQL Server has no
// CREATE TABLE IF NOT EXISTS.
func createTableSQL(table string) string {
	return `IF OBJECT_ID(N'` + table + `', N'U') IS NULL
CREATE TABLE ` + table + ` (
	registration_id NVARCHAR(128) NOT NULL PRIMARY KEY,
	business_name   NVARCHAR(512) NOT NULL,
	status          NVARCHAR(128) NOT NULL DEFAULT '',
	filing_date     NVARCHAR(64)  NOT NULL DEFAULT '',
	agent_details   NVARCHAR(MAX) NOT NULL DEFAULT '',
	agent_name      NVARCHAR(256) NOT NULL DEFAULT '',
	agent_address   NVARCHAR(512) NOT NULL DEFAULT '',
	agent_email     NVARCHAR(256) NOT NULL DEFAULT ''
)`
}

func insertSQL(table string) string {
	return `INSERT INTO ` + table + ` (
	registration_id, business_name, status, filing_date,
	agent_details, agent_name, agent_address, agent_email
)
SELECT @p1, @p2, @p3, @p4, @p5, @p6, @p7, @p8
WHERE NOT EXISTS (
	SELECT 1 FROM ` + table + ` WHERE registration_id = @p1
)`
}

func (s *Store) LoadSeenKeys(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT registration_id FROM `+s.table)
	if err != nil {
		return nil, fmt.Errorf("mssql: load seen keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("mssql: scan seen key: %w", err)
		}
		keys[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mssql: iterate seen keys: %w", err)
	}
	return keys, nil
}

func (s *Store) Append(ctx context.Context, rec record.Record) error {
	_, err := s.db.ExecContext(ctx, insertSQL(s.table),
		rec.RegistrationID, rec.BusinessName, rec.Status, rec.FilingDate,
		rec.AgentDetails, rec.AgentName, rec.AgentAddress, rec.AgentEmail,
	)
	if err != nil {
		return fmt.Errorf("mssql: append record %s: %w", rec.RegistrationID, err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

var _ store.Store = (*Store)(nil)
