package driver

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeExtract splits the page body on commas: "a,b" becomes one row per item
// with a single cell. Keeps these tests independent of the HTML parser.
func fakeExtract(html, _ string) ([]RawRow, error) {
	var rows []RawRow
	for _, part := range strings.Split(strings.TrimSpace(html), ",") {
		if part == "" {
			continue
		}
		rows = append(rows, RawRow{Cells: []string{part}})
	}
	return rows, nil
}

func writeSnapshotDir(t *testing.T, pages map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range pages {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("WriteFile(%q) err=%v", name, err)
		}
	}
	return dir
}

func TestSnapshot_PagesInFilenameOrder(t *testing.T) {
	t.Parallel()

	dir := writeSnapshotDir(t, map[string]string{
		"page_02.html": "c,d",
		"page_01.html": "a,b",
		"notes.txt":    "ignored",
	})

	s, err := NewSnapshot(dir, "", fakeExtract)
	if err != nil {
		t.Fatalf("NewSnapshot() err=%v", err)
	}

	ctx := context.Background()

	rows, err := s.ListVisibleRows(ctx)
	if err != nil {
		t.Fatalf("ListVisibleRows() err=%v", err)
	}
	if len(rows) != 2 || rows[0].Cells[0] != "a" {
		t.Fatalf("first page rows=%v, want [a b]", rows)
	}

	ok, err := s.ClickNext(ctx)
	if err != nil || !ok {
		t.Fatalf("ClickNext()=(%v,%v), want (true,nil)", ok, err)
	}

	rows, err = s.ListVisibleRows(ctx)
	if err != nil {
		t.Fatalf("ListVisibleRows() err=%v", err)
	}
	if len(rows) != 2 || rows[0].Cells[0] != "c" {
		t.Fatalf("second page rows=%v, want [c d]", rows)
	}

	ok, err = s.ClickNext(ctx)
	if err != nil {
		t.Fatalf("ClickNext() err=%v", err)
	}
	if ok {
		t.Fatalf("ClickNext()=true past last page, want false")
	}
}

func TestSnapshot_EmptyDir(t *testing.T) {
	t.Parallel()

	s, err := NewSnapshot(t.TempDir(), "", fakeExtract)
	if err != nil {
		t.Fatalf("NewSnapshot() err=%v", err)
	}

	ctx := context.Background()

	rows, err := s.ListVisibleRows(ctx)
	if err != nil {
		t.Fatalf("ListVisibleRows() err=%v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rows=%v, want none", rows)
	}

	ok, err := s.ClickNext(ctx)
	if err != nil || ok {
		t.Fatalf("ClickNext()=(%v,%v), want (false,nil)", ok, err)
	}

	if err := s.WaitForManualReady(ctx); err != nil {
		t.Fatalf("WaitForManualReady() err=%v", err)
	}
	if err := s.WaitForRender(ctx, time.Second); err != nil {
		t.Fatalf("WaitForRender() err=%v", err)
	}
}

func TestSnapshot_MissingDir(t *testing.T) {
	t.Parallel()

	if _, err := NewSnapshot(filepath.Join(t.TempDir(), "absent"), "", fakeExtract); err == nil {
		t.Fatalf("NewSnapshot() err=nil, want error for missing directory")
	}
}
