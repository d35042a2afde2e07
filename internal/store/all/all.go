// Package all registers every store backend with the factory.
//
// The command imports this package blank; pipeline config selects which
// backend actually runs.
package all

import (
	_ "regetl/internal/store/jsonl"
	_ "regetl/internal/store/mssql"
	_ "regetl/internal/store/postgres"
	_ "regetl/internal/store/sqlite"
)
