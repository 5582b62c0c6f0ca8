// Package loader reads campaign CSV extracts into typed raw records.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aluiziolira/campaign-insights/models"
)

// MissingColumnError reports required columns absent from the header.
type MissingColumnError struct {
	Columns []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Columns, ", "))
}

// ReadError indicates the CSV stream itself could not be read.
type ReadError struct {
	Line int
	Err  error
}

func (e *ReadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("read csv line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("read csv: %v", e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// ErrEmptyInput is returned when the source has no header row.
var ErrEmptyInput = errors.New("loader: input has no header row")

// Header maps each required column to its position in a CSV header.
type Header map[string]int

// ParseHeader validates a header row. Column order is irrelevant and extra
// columns are ignored.
func ParseHeader(row []string) (Header, error) {
	positions := make(map[string]int, len(row))
	for i, name := range row {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if _, dup := positions[name]; !dup {
			positions[name] = i
		}
	}

	header := make(Header, len(models.RequiredColumns))
	var missing []string
	for _, col := range models.RequiredColumns {
		idx, ok := positions[col]
		if !ok {
			missing = append(missing, col)
			continue
		}
		header[col] = idx
	}
	if len(missing) > 0 {
		return nil, &MissingColumnError{Columns: missing}
	}
	return header, nil
}

// Record builds a CampaignRecord from one CSV row.
func (h Header) Record(row []string, line int) models.CampaignRecord {
	return models.CampaignRecord{
		Line:            line,
		CampaignType:    row[h[models.ColCampaignType]],
		ChannelUsed:     row[h[models.ColChannelUsed]],
		TargetAudience:  row[h[models.ColTargetAudience]],
		CustomerSegment: row[h[models.ColCustomerSegment]],
		Location:        row[h[models.ColLocation]],
		Language:        row[h[models.ColLanguage]],
		AcquisitionCost: row[h[models.ColAcquisitionCost]],
		Duration:        row[h[models.ColDuration]],
		Date:            row[h[models.ColDate]],
		Clicks:          row[h[models.ColClicks]],
		Impressions:     row[h[models.ColImpressions]],
		ConversionRate:  row[h[models.ColConversionRate]],
		ROI:             row[h[models.ColROI]],
		EngagementScore: row[h[models.ColEngagementScore]],
	}
}

// Read loads every row of r. The header is validated before any data row is
// consumed.
func Read(r io.Reader) ([]models.CampaignRecord, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	first, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, &ReadError{Line: 1, Err: err}
	}

	header, err := ParseHeader(first)
	if err != nil {
		return nil, err
	}

	var records []models.CampaignRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				line = parseErr.StartLine
			}
			return nil, &ReadError{Line: line, Err: err}
		}
		line, _ := reader.FieldPos(0)
		records = append(records, header.Record(row, line))
	}
	return records, nil
}
