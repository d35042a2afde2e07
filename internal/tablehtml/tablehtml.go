// Package tablehtml extracts table rows from HTML fragments.
//
// Both page drivers funnel their markup through ExtractRows so row
// materialization behaves identically for live pages and saved snapshots.
package tablehtml

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"regetl/internal/driver"
)

// DefaultRowSelector matches the data rows of the registry results table.
const DefaultRowSelector = "table tbody tr"

// ExtractRows parses html and returns one RawRow per element matched by
// rowSelector, cell texts in DOM order.
//
// Resilience:
//   - Rows with zero <td> cells (header rows, spacer rows) are skipped.
//   - Missing selectors produce an empty result, not an error; only malformed
//     HTML that goquery cannot parse is an error.
func ExtractRows(html, rowSelector string) ([]driver.RawRow, error) {
	if strings.TrimSpace(rowSelector) == "" {
		rowSelector = DefaultRowSelector
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var rows []driver.RawRow
	doc.Find(rowSelector).Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(td.Text()))
		})
		if len(cells) == 0 {
			return
		}
		rows = append(rows, driver.RawRow{Cells: cells})
	})

	return rows, nil
}
