// Package jsonl implements the default record store: one JSON object per
// line, UTF-8, newline-terminated, no enclosing array.
//
// This is the resume format: the ids read back at startup are what makes
// reruns idempotent. Load is deliberately tolerant (skip bad lines, keep
// going) while append is strict (any write failure is surfaced).
package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"regetl/internal/record"
	"regetl/internal/store"
)

func init() {
	store.Register("jsonl", New)
}

// Store appends records to a newline-delimited JSON file.
type Store struct {
	path string
	f    *os.File
	log  zerolog.Logger
}

// New opens (creating if absent) the JSONL file at cfg.DSN for appending.
func New(ctx context.Context, cfg store.Config) (store.Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("jsonl: missing output path")
	}

	f, err := os.OpenFile(cfg.DSN, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("jsonl: open %s: %w", cfg.DSN, err)
	}

	return &Store{path: cfg.DSN, f: f, log: cfg.Logger}, nil
}

// LoadSeenKeys scans the whole file and collects every registration id.
//
// Edge cases:
//   - An absent file yields an empty set (first run).
//   - A malformed line, or a line whose record has no registration id, is
//     skipped with a warning; the remaining lines still resume correctly.
func (s *Store) LoadSeenKeys(ctx context.Context) (map[string]struct{}, error) {
	keys := make(map[string]struct{})

	rf, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return keys, nil
		}
		return nil, fmt.Errorf("jsonl: open %s for resume: %w", s.path, err)
	}
	defer rf.Close()

	sc := bufio.NewScanner(rf)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec record.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			s.log.Warn().Int("line", lineNo).Err(err).Msg("skipped malformed line in record store")
			continue
		}
		if rec.RegistrationID == "" {
			s.log.Warn().Int("line", lineNo).Msg("skipped record with empty registration_id")
			continue
		}
		keys[rec.RegistrationID] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("jsonl: scan %s: %w", s.path, err)
	}

	return keys, nil
}

// Append serializes rec as one line and writes it, terminator included, as a
// single write followed by an fsync. A crash can therefore lose at most the
// line being written; it cannot corrupt lines already on disk.
func (s *Store) Append(ctx context.Context, rec record.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("jsonl: marshal record %s: %w", rec.RegistrationID, err)
	}
	b = append(b, '\n')

	if _, err := s.f.Write(b); err != nil {
		return fmt.Errorf("jsonl: append record %s: %w", rec.RegistrationID, err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("jsonl: sync %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) Close() error { return s.f.Close() }

var _ store.Store = (*Store)(nil)
