// Package record defines the normalized business-registry record and the
// pure parsing step that maps one raw table row into it.
package record

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// AgentDelimiter separates the agent sub-fields inside AgentDetails.
const AgentDelimiter = "|"

// Record is one normalized business-registry entry.
//
// JSON field names are the persisted wire format (one object per line in the
// JSONL store); renames are breaking changes for downstream consumers.
type Record struct {
	BusinessName   string `json:"business_name"`
	RegistrationID string `json:"registration_id"`
	Status         string `json:"status"`
	FilingDate     string `json:"filing_date"`
	AgentDetails   string `json:"agent_details"`
	AgentName      string `json:"agent_name"`
	AgentAddress   string `json:"agent_address"`
	AgentEmail     string `json:"agent_email"`
}

// Key returns the identity key used for deduplication.
func (r Record) Key() string { return r.RegistrationID }

// ParseError reports a row that lacks mandatory structure.
//
// It carries a snapshot of the raw cells so the caller can log enough context
// to diagnose the page without re-reading it. A ParseError is recoverable:
// callers skip the row and continue.
type ParseError struct {
	Cells  []string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse row: %s (cells=%d)", e.Reason, len(e.Cells))
}

// Column positions in the registry results table.
//
// Indices: 0=Name, 1=ID, 2=Status, 3=Filing date, 4+=Agent info.
const (
	colBusinessName = 0
	colRegistration = 1
	colStatus       = 2
	colFilingDate   = 3
	colAgentStart   = 4
)

// FromCells maps one row's cell texts into a Record.
//
// Behavior:
//   - Each cell is normalized (NFC, NBSP collapsed, trimmed) before mapping.
//   - Cells 4..n are joined with " | " into AgentDetails, then split back into
//     up to three sub-fields. Missing sub-fields are empty strings, never an
//     error.
//   - A missing or empty registration id or business name is a *ParseError.
//
// FromCells is pure: no I/O, no mutation of its input.
func FromCells(cells []string) (Record, error) {
	cleaned := make([]string, len(cells))
	for i, c := range cells {
		cleaned[i] = NormalizeCell(c)
	}

	if len(cleaned) <= colRegistration {
		return Record{}, &ParseError{Cells: cleaned, Reason: "too few cells"}
	}

	rec := Record{
		BusinessName:   cleaned[colBusinessName],
		RegistrationID: cleaned[colRegistration],
	}
	if rec.RegistrationID == "" {
		return Record{}, &ParseError{Cells: cleaned, Reason: "missing registration_id"}
	}
	if rec.BusinessName == "" {
		return Record{}, &ParseError{Cells: cleaned, Reason: "missing business_name"}
	}

	if len(cleaned) > colStatus {
		rec.Status = cleaned[colStatus]
	}
	if len(cleaned) > colFilingDate {
		rec.FilingDate = cleaned[colFilingDate]
	}
	if len(cleaned) > colAgentStart {
		rec.AgentDetails = strings.Join(cleaned[colAgentStart:], " "+AgentDelimiter+" ")
	}

	rec.AgentName, rec.AgentAddress, rec.AgentEmail = SplitAgentDetails(rec.AgentDetails)
	return rec, nil
}

// SplitAgentDetails derives the agent sub-fields from the combined
// pipe-delimited agent text.
//
// Fewer than three segments pad the remaining sub-fields with empty strings.
// Segments beyond the third are ignored, matching the fixed three-column
// agent layout.
func SplitAgentDetails(details string) (name, address, email string) {
	if strings.TrimSpace(details) == "" {
		return "", "", ""
	}

	parts := strings.Split(details, AgentDelimiter)
	get := func(i int) string {
		if i < len(parts) {
			return strings.TrimSpace(parts[i])
		}
		return ""
	}
	return get(0), get(1), get(2)
}

// NormalizeCell canonicalizes one cell's text: Unicode NFC normalization,
// non-breaking spaces collapsed to plain spaces, surrounding whitespace
// trimmed. Dynamic renderers are inconsistent about both.
func NormalizeCell(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, " ", " ")
	return strings.TrimSpace(s)
}
