// Package quality runs data expectations over raw submissions and reporting
// tables, the same checks the downstream validation checkpoints apply.
package quality

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/f3peakcity/f3-bot/internal/domain/model"
	"github.com/f3peakcity/f3-bot/internal/domain/report"
)

// Expectation names.
const (
	ExpectIDPresent       = "submission_id_present"
	ExpectDatePresent     = "event_date_present"
	ExpectPaxPaired       = "pax_names_and_ids_paired"
	ExpectCountNonNeg     = "count_non_negative"
	ExpectRowWidth        = "row_width"
	ExpectDateFormat      = "date_format"
	ExpectTimestampFormat = "timestamp_format"
	ExpectNoBlankCells    = "no_blank_cells"
	ExpectCellKind        = "cell_kind"
)

// ErrExpectationFailed is returned by Err when findings exist.
var ErrExpectationFailed = errors.New("data expectation failed")

// Finding is one failed expectation.
type Finding struct {
	Expectation string `json:"expectation"`
	Table       string `json:"table,omitempty"`
	Record      string `json:"record,omitempty"`
	Row         int    `json:"row"`
	Column      string `json:"column,omitempty"`
	Detail      string `json:"detail"`
}

func (f Finding) String() string {
	var where []string
	if f.Table != "" {
		where = append(where, "table="+f.Table)
	}
	if f.Record != "" {
		where = append(where, "record="+f.Record)
	}
	where = append(where, fmt.Sprintf("row=%d", f.Row))
	if f.Column != "" {
		where = append(where, "column="+f.Column)
	}
	return fmt.Sprintf("%s (%s): %s", f.Expectation, strings.Join(where, " "), f.Detail)
}

// Err folds findings into one error, or nil when there are none.
func Err(findings []Finding) error {
	if len(findings) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(findings))
	for _, f := range findings {
		msgs = append(msgs, f.String())
	}
	return fmt.Errorf("%w: %s", ErrExpectationFailed, strings.Join(msgs, "; "))
}

// CheckRecords applies the raw submission expectations.
func CheckRecords(records []model.Submission) []Finding {
	var out []Finding
	for i, r := range records {
		add := func(exp, detail string) {
			out = append(out, Finding{Expectation: exp, Record: r.ID, Row: i, Detail: detail})
		}
		if strings.TrimSpace(r.ID) == "" {
			add(ExpectIDPresent, "submission id is blank")
		}
		if r.EventDate.IsZero() {
			add(ExpectDatePresent, "event date is missing")
		}
		if len(r.ParticipantNames) != len(r.ParticipantIDs) {
			add(ExpectPaxPaired, fmt.Sprintf("%d names, %d ids", len(r.ParticipantNames), len(r.ParticipantIDs)))
		}
		if len(r.NewParticipantNames) != len(r.NewParticipantIDs) {
			add(ExpectPaxPaired, fmt.Sprintf("%d new names, %d new ids", len(r.NewParticipantNames), len(r.NewParticipantIDs)))
		}
		if r.VisitingCount < 0 {
			add(ExpectCountNonNeg, fmt.Sprintf("visiting count %d", r.VisitingCount))
		}
	}
	return out
}

// CheckTable applies the reporting table expectations.
func CheckTable(t report.Table) []Finding {
	var out []Finding
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			out = append(out, Finding{Expectation: ExpectRowWidth, Table: t.Name, Row: i,
				Detail: fmt.Sprintf("%d cells for %d columns", len(row), len(t.Columns))})
			continue
		}
		for j, col := range t.Columns {
			if f, ok := checkCell(col, row[j]); !ok {
				f.Table, f.Row, f.Column = t.Name, i, col.Key
				out = append(out, f)
			}
		}
	}
	return out
}

func checkCell(col report.Column, v any) (Finding, bool) {
	if col.Kind == report.KindInt {
		n, ok := v.(int)
		if !ok {
			return Finding{Expectation: ExpectCellKind, Detail: fmt.Sprintf("want int, got %T", v)}, false
		}
		if n < 0 {
			return Finding{Expectation: ExpectCountNonNeg, Detail: fmt.Sprintf("value %d", n)}, false
		}
		return Finding{}, true
	}

	s, ok := v.(string)
	if !ok {
		return Finding{Expectation: ExpectCellKind, Detail: fmt.Sprintf("want text, got %T", v)}, false
	}
	if strings.TrimSpace(s) == "" {
		return Finding{Expectation: ExpectNoBlankCells, Detail: "blank text cell"}, false
	}
	switch col.Key {
	case report.ColDate:
		if _, err := time.Parse(report.DateLayout, s); err != nil {
			return Finding{Expectation: ExpectDateFormat, Detail: fmt.Sprintf("%q", s)}, false
		}
	case report.ColBackblastTS:
		if s == report.Placeholder {
			break
		}
		if _, err := time.Parse(report.TimestampLayout, s); err != nil {
			return Finding{Expectation: ExpectTimestampFormat, Detail: fmt.Sprintf("%q", s)}, false
		}
	}
	return Finding{}, true
}
