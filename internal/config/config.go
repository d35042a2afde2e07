// Package config defines the pipeline configuration document and its
// validation. A pipeline names the page target, the record store, and the
// pacing/retry behavior of a harvest run.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Target kinds.
const (
	TargetChrome   = "chrome"
	TargetSnapshot = "snapshot"
)

// Pipeline is the top-level config document, loaded from JSON.
type Pipeline struct {
	Job    string `json:"job"`
	Target Target `json:"target"`
	Store  Store  `json:"store"`
	Pacing Pacing `json:"pacing"`
	Retry  Retry  `json:"retry"`
}

// Target describes where rows come from.
type Target struct {
	Kind string `json:"kind"` // chrome or snapshot

	// chrome target
	URL         string `json:"url"`
	SearchQuery string `json:"search_query"`
	Headless    bool   `json:"headless"`

	// snapshot target
	SnapshotDir string `json:"snapshot_dir"`

	// RowSelector overrides the default table row selector for both kinds.
	RowSelector string `json:"row_selector"`
}

// Store describes the record store backend.
type Store struct {
	Kind  string `json:"kind"` // jsonl, sqlite, postgres, mssql
	DSN   string `json:"dsn"`
	Table string `json:"table"`
}

// Pacing bounds the randomized wait between page visits.
type Pacing struct {
	MinMs int `json:"min_ms"`
	MaxMs int `json:"max_ms"`
}

// Retry controls row-materialization retries per page.
type Retry struct {
	MaxAttempts     int `json:"max_attempts"`
	WaitMs          int `json:"wait_ms"`
	RenderTimeoutMs int `json:"render_timeout_ms"`
}

// Load reads and decodes a pipeline config from a JSON file.
func Load(path string) (Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	var p Pipeline
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Pipeline{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return p, nil
}

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
)

// Issue is a single validation finding with a config path like "target.url".
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func errorf(path, format string, a ...any) Issue {
	return Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, a...)}
}

func warnf(path, format string, a ...any) Issue {
	return Issue{Severity: SeverityWarn, Path: path, Message: fmt.Sprintf(format, a...)}
}

// ValidatePipeline checks a pipeline document and returns all findings.
// Callers decide whether warnings block; errors always should.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if p.Job == "" {
		issues = append(issues, warnf("job", "empty; metrics will report under the default job name"))
	}

	switch p.Target.Kind {
	case TargetChrome:
		if p.Target.URL == "" {
			issues = append(issues, errorf("target.url", "required for the chrome target"))
		}
		if p.Target.SnapshotDir != "" {
			issues = append(issues, warnf("target.snapshot_dir", "ignored by the chrome target"))
		}
	case TargetSnapshot:
		if p.Target.SnapshotDir == "" {
			issues = append(issues, errorf("target.snapshot_dir", "required for the snapshot target"))
		}
		if p.Target.URL != "" {
			issues = append(issues, warnf("target.url", "ignored by the snapshot target"))
		}
	case "":
		issues = append(issues, errorf("target.kind", "required; one of %q or %q", TargetChrome, TargetSnapshot))
	default:
		issues = append(issues, errorf("target.kind", "unknown kind %q; one of %q or %q", p.Target.Kind, TargetChrome, TargetSnapshot))
	}

	if p.Store.Kind == "" {
		issues = append(issues, errorf("store.kind", "required"))
	}
	if p.Store.DSN == "" {
		issues = append(issues, errorf("store.dsn", "required; file path or connection string"))
	}

	if p.Pacing.MinMs < 0 || p.Pacing.MaxMs < 0 {
		issues = append(issues, errorf("pacing", "negative durations are not allowed"))
	} else if p.Pacing.MaxMs > 0 && p.Pacing.MinMs > p.Pacing.MaxMs {
		issues = append(issues, errorf("pacing", "min_ms %d exceeds max_ms %d", p.Pacing.MinMs, p.Pacing.MaxMs))
	}

	if p.Retry.MaxAttempts < 0 {
		issues = append(issues, errorf("retry.max_attempts", "must be >= 0"))
	}
	if p.Retry.WaitMs < 0 {
		issues = append(issues, errorf("retry.wait_ms", "must be >= 0"))
	}
	if p.Retry.RenderTimeoutMs < 0 {
		issues = append(issues, errorf("retry.render_timeout_ms", "must be >= 0"))
	}

	return issues
}

// HasError reports whether any issue is severity error.
func HasError(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}
