// Package sheets provides a Google Sheets-backed row store. One
// spreadsheet row per target, addressed by its 1-based row number.
package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/yoshidak/webwatch/internal/watch"
)

// Config controls the sheets client.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	SheetID         int64
	CredentialsFile string
}

// Store implements watch.RowStore on a Google Sheet.
type Store struct {
	svc *sheets.Service
	cfg Config

	mu      sync.Mutex
	columns map[string]int
}

// Header names recognized in the sheet's first row. Legacy sheets use
// memo and count for what the monitor calls source and frequency.
var columnAliases = map[string]string{
	"word":      "word",
	"url":       "url",
	"memo":      "source",
	"source":    "source",
	"count":     "frequency",
	"frequency": "frequency",
	"prev_hash": "prev_hash",
	"prev_len":  "prev_len",
}

// New creates a sheets-backed store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "Sheet1"
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Store{svc: svc, cfg: cfg}, nil
}

// List reads the full sheet and maps every data row to a target.
func (s *Store) List(ctx context.Context) ([]watch.MonitorTarget, error) {
	resp, err := s.svc.Spreadsheets.Values.
		Get(s.cfg.SpreadsheetID, s.cfg.SheetName).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}

	columns := s.mapColumns(resp.Values[0])
	col := func(name string) int {
		if i, ok := columns[name]; ok {
			return i
		}
		return -1
	}

	var targets []watch.MonitorTarget
	for i, row := range resp.Values[1:] {
		t := watch.MonitorTarget{
			// Row 1 is the header, data starts at row 2.
			Ref:       watch.RowRef(strconv.Itoa(i + 2)),
			Word:      cellString(row, col("word")),
			URL:       cellString(row, col("url")),
			Source:    cellString(row, col("source")),
			Frequency: cellInt(row, col("frequency")),
		}
		t.PrevFingerprint = cellString(row, col("prev_hash"))
		t.PrevLength = cellInt(row, col("prev_len"))
		if t.Word == "" && t.URL == "" {
			continue
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// UpdateCell writes a single cell of a data row.
func (s *Store) UpdateCell(ctx context.Context, ref watch.RowRef, field watch.Field, value string) error {
	rowNum, err := rowNumber(ref)
	if err != nil {
		return err
	}
	col, err := s.columnIndex(ctx, field)
	if err != nil {
		return err
	}

	cell := fmt.Sprintf("%s!%s%d", s.cfg.SheetName, columnLetter(col), rowNum)
	_, err = s.svc.Spreadsheets.Values.
		Update(s.cfg.SpreadsheetID, cell, &sheets.ValueRange{Values: [][]any{{value}}}).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update cell %s: %w", cell, err)
	}
	return nil
}

// UpdateState writes fingerprint and length in one batch call so a cycle
// crash cannot leave only half the pair behind.
func (s *Store) UpdateState(ctx context.Context, ref watch.RowRef, fingerprint string, length int) error {
	rowNum, err := rowNumber(ref)
	if err != nil {
		return err
	}
	hashCol, err := s.columnIndex(ctx, watch.FieldFingerprint)
	if err != nil {
		return err
	}
	lenCol, err := s.columnIndex(ctx, watch.FieldLength)
	if err != nil {
		return err
	}

	req := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data: []*sheets.ValueRange{
			{
				Range:  fmt.Sprintf("%s!%s%d", s.cfg.SheetName, columnLetter(hashCol), rowNum),
				Values: [][]any{{fingerprint}},
			},
			{
				Range:  fmt.Sprintf("%s!%s%d", s.cfg.SheetName, columnLetter(lenCol), rowNum),
				Values: [][]any{{strconv.Itoa(length)}},
			},
		},
	}
	_, err = s.svc.Spreadsheets.Values.
		BatchUpdate(s.cfg.SpreadsheetID, req).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update state row %d: %w", rowNum, err)
	}
	return nil
}

// DeleteRow removes a sheet row. Later refs shift up, so callers must
// re-List before further writes.
func (s *Store) DeleteRow(ctx context.Context, ref watch.RowRef) error {
	rowNum, err := rowNumber(ref)
	if err != nil {
		return err
	}
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    s.cfg.SheetID,
					Dimension:  "ROWS",
					StartIndex: int64(rowNum - 1),
					EndIndex:   int64(rowNum),
				},
			},
		}},
	}
	_, err = s.svc.Spreadsheets.
		BatchUpdate(s.cfg.SpreadsheetID, req).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("delete row %d: %w", rowNum, err)
	}
	return nil
}

// columnIndex resolves a field to its 0-based sheet column, reading the
// header row once and caching the mapping.
func (s *Store) columnIndex(ctx context.Context, field watch.Field) (int, error) {
	canonical, ok := map[watch.Field]string{
		watch.FieldURL:         "url",
		watch.FieldFingerprint: "prev_hash",
		watch.FieldLength:      "prev_len",
	}[field]
	if !ok {
		return 0, fmt.Errorf("unknown field %q", field)
	}

	s.mu.Lock()
	columns := s.columns
	s.mu.Unlock()

	if columns == nil {
		resp, err := s.svc.Spreadsheets.Values.
			Get(s.cfg.SpreadsheetID, fmt.Sprintf("%s!1:1", s.cfg.SheetName)).
			Context(ctx).Do()
		if err != nil {
			return 0, fmt.Errorf("read header row: %w", err)
		}
		if len(resp.Values) == 0 {
			return 0, fmt.Errorf("sheet has no header row")
		}
		columns = s.mapColumns(resp.Values[0])
	}

	idx, ok := columns[canonical]
	if !ok {
		return 0, fmt.Errorf("sheet has no %q column", canonical)
	}
	return idx, nil
}

func (s *Store) mapColumns(header []any) map[string]int {
	columns := make(map[string]int, len(header))
	for i, cell := range header {
		name := strings.ToLower(strings.TrimSpace(fmt.Sprint(cell)))
		if canonical, ok := columnAliases[name]; ok {
			if _, dup := columns[canonical]; !dup {
				columns[canonical] = i
			}
		}
	}
	s.mu.Lock()
	s.columns = columns
	s.mu.Unlock()
	return columns
}

func rowNumber(ref watch.RowRef) (int, error) {
	n, err := strconv.Atoi(string(ref))
	if err != nil || n < 2 {
		return 0, fmt.Errorf("invalid sheet row ref %q", ref)
	}
	return n, nil
}

func cellString(row []any, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[idx]))
}

func cellInt(row []any, idx int) int {
	n, err := strconv.Atoi(cellString(row, idx))
	if err != nil {
		return 0
	}
	return n
}

func columnLetter(idx int) string {
	letters := ""
	for idx >= 0 {
		letters = string(rune('A'+idx%26)) + letters
		idx = idx/26 - 1
	}
	return letters
}
