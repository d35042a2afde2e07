package record

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestFromCells(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		cells      []string
		want       Record
		wantReason string
	}{
		{
			name:  "full_row",
			cells: []string{"Acme LLC", "12345", "Active", "2021-03-04", "John Doe", "123 Main St", "john@example.com"},
			want: Record{
				BusinessName:   "Acme LLC",
				RegistrationID: "12345",
				Status:         "Active",
				FilingDate:     "2021-03-04",
				AgentDetails:   "John Doe | 123 Main St | john@example.com",
				AgentName:      "John Doe",
				AgentAddress:   "123 Main St",
				AgentEmail:     "john@example.com",
			},
		},
		{
			name:  "agent_column_missing",
			cells: []string{"Acme LLC", "12345", "Active", "2021-03-04"},
			want: Record{
				BusinessName:   "Acme LLC",
				RegistrationID: "12345",
				Status:         "Active",
				FilingDate:     "2021-03-04",
			},
		},
		{
			name:  "single_agent_segment",
			cells: []string{"Acme LLC", "12345", "Active", "2021-03-04", "Jane Smith"},
			want: Record{
				BusinessName:   "Acme LLC",
				RegistrationID: "12345",
				Status:         "Active",
				FilingDate:     "2021-03-04",
				AgentDetails:   "Jane Smith",
				AgentName:      "Jane Smith",
			},
		},
		{
			name:  "whitespace_and_nbsp_normalized",
			cells: []string{"  Acme LLC ", " 12345\n", "Active", "2021-03-04"},
			want: Record{
				BusinessName:   "Acme LLC",
				RegistrationID: "12345",
				Status:         "Active",
				FilingDate:     "2021-03-04",
			},
		},
		{
			name:       "missing_registration_id",
			cells:      []string{"Acme LLC", "   ", "Active"},
			wantReason: "missing registration_id",
		},
		{
			name:       "missing_business_name",
			cells:      []string{"", "12345"},
			wantReason: "missing business_name",
		},
		{
			name:       "too_few_cells",
			cells:      []string{"Acme LLC"},
			wantReason: "too few cells",
		},
		{
			name:       "empty_row",
			cells:      nil,
			wantReason: "too few cells",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := FromCells(tc.cells)
			if tc.wantReason != "" {
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Fatalf("FromCells() err=%v, want *ParseError", err)
				}
				if pe.Reason != tc.wantReason {
					t.Fatalf("ParseError.Reason=%q, want %q", pe.Reason, tc.wantReason)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromCells() err=%v, want nil", err)
			}
			if got != tc.want {
				t.Fatalf("FromCells()=%+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestSplitAgentDetails(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                      string
		details                   string
		wantName, wantAddr, wantE string
	}{
		{
			name:     "three_segments",
			details:  "John Doe | 123 Main St | john@example.com",
			wantName: "John Doe", wantAddr: "123 Main St", wantE: "john@example.com",
		},
		{
			name:     "one_segment",
			details:  "Jane Smith",
			wantName: "Jane Smith",
		},
		{
			name:     "two_segments",
			details:  "Jane Smith | 9 Elm Rd",
			wantName: "Jane Smith", wantAddr: "9 Elm Rd",
		},
		{
			name:    "empty",
			details: "   ",
		},
		{
			name:     "extra_segments_ignored",
			details:  "a|b|c|d",
			wantName: "a", wantAddr: "b", wantE: "c",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			n, a, e := SplitAgentDetails(tc.details)
			if n != tc.wantName || a != tc.wantAddr || e != tc.wantE {
				t.Fatalf("SplitAgentDetails(%q)=(%q,%q,%q), want (%q,%q,%q)",
					tc.details, n, a, e, tc.wantName, tc.wantAddr, tc.wantE)
			}
		})
	}
}

// TestRecordJSONFieldNames pins the persisted wire format: these names are
// what resume reads back, so a rename silently breaks deduplication.
func TestRecordJSONFieldNames(t *testing.T) {
	t.Parallel()

	rec := Record{
		BusinessName:   "Acme LLC",
		RegistrationID: "12345",
		Status:         "Active",
		FilingDate:     "2021-03-04",
		AgentDetails:   "John Doe | 123 Main St | john@example.com",
		AgentName:      "John Doe",
		AgentAddress:   "123 Main St",
		AgentEmail:     "john@example.com",
	}

	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal() err=%v", err)
	}

	for _, field := range []string{
		"business_name", "registration_id", "status", "filing_date",
		"agent_details", "agent_name", "agent_address", "agent_email",
	} {
		if !strings.Contains(string(b), `"`+field+`"`) {
			t.Fatalf("marshaled record missing field %q: %s", field, b)
		}
	}

	var back Record
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal() err=%v", err)
	}
	if back != rec {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", back, rec)
	}
}
