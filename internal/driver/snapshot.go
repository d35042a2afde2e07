package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Snapshot serves a directory of saved HTML pages as a paginated table.
//
// Pages are visited in stable filename order; ClickNext advances to the next
// file and returns false past the last one. There is no manual gate and no
// render latency, which also makes Snapshot the collaborator of choice for
// orchestrator tests.
type Snapshot struct {
	rowSelector string
	pages       []string
	idx         int

	extract func(html, rowSelector string) ([]RawRow, error)
}

// NewSnapshot lists the HTML files under dir, sorted by name.
//
// extract converts one page's markup into rows; callers pass
// tablehtml.ExtractRows (kept as a parameter to avoid an import cycle and to
// let tests substitute a fake).
func NewSnapshot(dir, rowSelector string, extract func(html, rowSelector string) ([]RawRow, error)) (*Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read snapshot dir: %w", err)
	}

	var pages []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if ext := strings.ToLower(filepath.Ext(name)); ext != ".html" && ext != ".htm" {
			continue
		}
		pages = append(pages, filepath.Join(dir, name))
	}
	sort.Strings(pages)

	return &Snapshot{
		rowSelector: rowSelector,
		pages:       pages,
		extract:     extract,
	}, nil
}

// WaitForManualReady is a no-op: snapshots need no human handoff.
func (s *Snapshot) WaitForManualReady(ctx context.Context) error { return ctx.Err() }

func (s *Snapshot) ListVisibleRows(ctx context.Context) ([]RawRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.idx >= len(s.pages) {
		return nil, nil
	}

	b, err := os.ReadFile(s.pages[s.idx])
	if err != nil {
		return nil, fmt.Errorf("read snapshot page %s: %w", s.pages[s.idx], err)
	}
	return s.extract(string(b), s.rowSelector)
}

func (s *Snapshot) ClickNext(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s.idx+1 >= len(s.pages) {
		return false, nil
	}
	s.idx++
	return true, nil
}

// WaitForRender returns immediately: files do not render lazily.
func (s *Snapshot) WaitForRender(ctx context.Context, timeout time.Duration) error {
	return ctx.Err()
}

var _ Driver = (*Snapshot)(nil)
