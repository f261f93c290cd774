// Package sheets reads the reference venue table from a Google spreadsheet
// and writes the reporting tables back to it.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/f3peakcity/f3-bot/internal/adapters/sink"
	"github.com/f3peakcity/f3-bot/internal/domain/model"
	"github.com/f3peakcity/f3-bot/internal/domain/report"
	"github.com/f3peakcity/f3-bot/pkg/logger"
)

const (
	valueInputRaw   = "RAW"
	defaultRefRange = "__REFERENCE_AO_INFO!A1:H"
	defaultRawRange = "__RAW"

	appendAttempts = 3
	appendBackoff  = 250 * time.Millisecond
)

// Reference sheet headers.
const (
	headerLabel    = "ao"
	headerIdentity = "ao_display_name"
	headerCategory = "category"
	headerRegion   = "region"
	headerWeekday  = "day_of_week_int"
	headerLat      = "lat"
	headerLon      = "lon"
)

// Client talks to one spreadsheet.
type Client struct {
	svc           *gsheets.Service
	spreadsheetID string
	refRange      string
	rawRange      string
	log           logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithReferenceRange sets the A1 range holding the venue table.
func WithReferenceRange(r string) Option {
	return func(c *Client) {
		if r != "" {
			c.refRange = r
		}
	}
}

// WithRawRange sets the range stored submissions are appended to.
func WithRawRange(r string) Option {
	return func(c *Client) {
		if r != "" {
			c.rawRange = r
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New builds a client for spreadsheetID. clientOpts are passed to the
// Sheets service, typically option.WithCredentialsFile.
func New(ctx context.Context, spreadsheetID string, clientOpts []option.ClientOption, opts ...Option) (*Client, error) {
	if spreadsheetID == "" {
		return nil, ErrNoSpreadsheet
	}
	svc, err := gsheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	c := &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		refRange:      defaultRefRange,
		rawRange:      defaultRawRange,
		log:           logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// LoadVenues reads the reference range. The first row is the header; columns
// are matched by name so the sheet may reorder them.
func (c *Client) LoadVenues(ctx context.Context) (model.VenueTable, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.refRange).Context(ctx).Do()
	if err != nil {
		return nil, classify(fmt.Errorf("read %s: %w", c.refRange, err))
	}
	if len(resp.Values) == 0 {
		return model.VenueTable{}, nil
	}

	index := make(map[string]int)
	for i, h := range resp.Values[0] {
		index[strings.ToLower(strings.TrimSpace(fmt.Sprint(h)))] = i
	}
	if _, ok := index[headerLabel]; !ok {
		return nil, fmt.Errorf("%w: %s has no %q column", ErrBadReference, c.refRange, headerLabel)
	}
	cell := func(row []any, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(row[i]))
	}

	venues := make([]model.Venue, 0, len(resp.Values)-1)
	for n, row := range resp.Values[1:] {
		v := model.Venue{
			Label:    cell(row, headerLabel),
			Identity: cell(row, headerIdentity),
			Category: cell(row, headerCategory),
			Region:   cell(row, headerRegion),
		}
		if s := cell(row, headerWeekday); s != "" {
			d, err := strconv.Atoi(s)
			if err != nil || !model.ValidWeekday(d) {
				c.log.Warn(ctx, "ignoring bad weekday in reference sheet",
					logger.Int("row", n+2), logger.String("value", s))
			} else {
				v.Weekday = &d
			}
		}
		v.Lat = parseCoord(cell(row, headerLat))
		v.Lon = parseCoord(cell(row, headerLon))
		venues = append(venues, v)
	}
	return model.NewVenueTable(venues), nil
}

func parseCoord(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// Replace stages every table, reads the extent each sheet currently uses and
// writes all of them in a single batch update. Cells beyond the new content
// are overwritten with blanks in that same request, so no sheet is cleared
// before the write lands; a failed update leaves every sheet as it was.
func (c *Client) Replace(ctx context.Context, tables ...report.Table) error {
	if len(tables) == 0 {
		return nil
	}
	ranges := make([]string, 0, len(tables))
	data := make([]*gsheets.ValueRange, 0, len(tables))
	for _, t := range tables {
		values := make([][]any, 0, len(t.Rows)+1)
		header := make([]any, len(t.Columns))
		for i, h := range t.Header() {
			header[i] = h
		}
		values = append(values, header)
		for _, row := range t.Rows {
			values = append(values, append([]any(nil), row...))
		}
		ranges = append(ranges, quoteSheet(t.Name))
		data = append(data, &gsheets.ValueRange{
			Range:          quoteSheet(t.Name) + "!A1",
			MajorDimension: "ROWS",
			Values:         values,
		})
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	current, err := c.svc.Spreadsheets.Values.BatchGet(c.spreadsheetID).
		Ranges(ranges...).MajorDimension("ROWS").Context(ctx).Do()
	if err != nil {
		return classify(fmt.Errorf("read extent: %w", err))
	}
	for i, vr := range current.ValueRanges {
		if i < len(data) && vr != nil {
			data[i].Values = padValues(data[i].Values, vr.Values)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err = c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, &gsheets.BatchUpdateValuesRequest{
		ValueInputOption: valueInputRaw,
		Data:             data,
	}).Context(ctx).Do()
	if err != nil {
		return classify(fmt.Errorf("update: %w", err))
	}
	c.log.Debug(ctx, "sheets replaced", logger.Int("tables", len(tables)))
	return nil
}

// padValues extends values with empty strings so it covers every cell of
// old. An empty string clears a cell under RAW input; nil would skip it, so
// nil cells become empty strings too.
func padValues(values, old [][]any) [][]any {
	rows := max(len(values), len(old))
	width := max(maxWidth(values), maxWidth(old))
	out := make([][]any, rows)
	for i := range out {
		row := make([]any, width)
		for j := range row {
			row[j] = ""
		}
		if i < len(values) {
			for j, v := range values[i] {
				if v != nil {
					row[j] = v
				}
			}
		}
		out[i] = row
	}
	return out
}

func maxWidth(values [][]any) int {
	w := 0
	for _, row := range values {
		w = max(w, len(row))
	}
	return w
}

// Table reads a sheet back through the same header mapping the XLSX sink
// uses.
func (c *Client) Table(ctx context.Context, name string) (report.Table, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, quoteSheet(name)).Context(ctx).Do()
	if err != nil {
		return report.Table{}, classify(fmt.Errorf("read %s: %w", name, err))
	}
	cells := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells[i] = make([]string, len(row))
		for j, v := range row {
			cells[i][j] = fmt.Sprint(v)
		}
	}
	return sink.TableFromCells(name, cells)
}

// AppendSubmission appends one row per attendee of s to the raw range.
// Transient failures are retried a few times before giving up.
func (c *Client) AppendSubmission(ctx context.Context, s model.Submission) error { //nolint:gocritic // hugeParam: matches the worker mirror signature
	body := &gsheets.ValueRange{Values: RawRows(s)}
	b := retry.WithMaxRetries(appendAttempts-1, retry.NewConstant(appendBackoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.rawRange, body).
			ValueInputOption(valueInputRaw).Context(ctx).Do()
		if err == nil {
			return nil
		}
		err = classify(fmt.Errorf("append %s: %w", s.ID, err))
		if sink.IsTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return err
	}
	c.log.Debug(ctx, "submission mirrored", logger.String("backblast_id", s.ID), logger.Int("rows", len(body.Values)))
	return nil
}

// RawRows lays s out the way the raw log sheet stores it: one row per
// attendee, with the event values repeated on every row.
func RawRows(s model.Submission) [][]any { //nolint:gocritic // hugeParam
	people := report.People(s)
	paxCount := len(people)
	if paxCount == 0 {
		people = []report.Person{{}}
	}
	recorded := report.Placeholder
	if !s.RecordedAt.IsZero() {
		recorded = s.RecordedAt.UTC().Format(time.RFC3339Nano)
	}
	unregistered := s.UnregisteredParticipants
	if strings.TrimSpace(unregistered) == "" {
		unregistered = report.Placeholder
	}
	fngs := report.NewParticipantCount(s)

	rows := make([][]any, 0, len(people))
	for i, p := range people {
		fng := report.Placeholder
		if i < len(s.NewParticipantNames) {
			fng = s.NewParticipantNames[i]
		}
		rows = append(rows, []any{
			s.EventDate.Format(model.DateLayout),
			s.OrganizerName,
			s.VenueLabel,
			paxCount,
			p.Name,
			p.ID,
			fngs,
			fng,
			unregistered,
			s.VisitingCount,
			s.SubmittedByName,
			s.SubmittedByID,
			s.ID,
			recorded,
			s.OrganizerID,
			s.TeamID,
		})
	}
	return rows
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// classify maps API failures onto the sink error classes: rate limiting and
// server errors are transient, everything else is permanent.
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusTooManyRequests || gerr.Code >= http.StatusInternalServerError {
			return sink.Transient(err)
		}
		return sink.Permanent(err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	// transport failures before any response
	return sink.Transient(err)
}
