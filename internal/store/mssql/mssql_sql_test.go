package mssql

import (
	"strings"
	"testing"
)

func TestCreateTableSQL_Guarded(t *testing.T) {
	t.Parallel()

	sql := createTableSQL("registry_records")
	if !strings.Contains(sql, "IF OBJECT_ID") {
		t.Fatalf("create must be guarded for idempotent startup: %s", sql)
	}
	if !strings.Contains(sql, "registration_id NVARCHAR(128) NOT NULL PRIMARY KEY") {
		t.Fatalf("registration_id must be the primary key: %s", sql)
	}
}

func TestInsertSQL_AntiSemiJoin(t *testing.T) {
	t.Parallel()

	sql := insertSQL("registry_records")
	if !strings.Contains(sql, "WHERE NOT EXISTS") {
		t.Fatalf("insert must be guarded with NOT EXISTS: %s", sql)
	}
	if strings.Contains(sql, "MERGE") {
		t.Fatalf("MERGE is intentionally avoided: %s", sql)
	}
	if got := strings.Count(sql, "@p"); got != 9 { // 8 values + repeated @p1 in the guard
		t.Fatalf("parameter count=%d, want 9", got)
	}
}
