package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/aluiziolira/campaign-insights/config"
	"github.com/aluiziolira/campaign-insights/models"
	"github.com/aluiziolira/campaign-insights/parser"
)

// IndexColumn is the leading row-index column of the CSV snapshot.
const IndexColumn = "index"

// SnapshotHeader lists the CSV snapshot columns in order: the row index, the
// raw input columns, then the derived ones.
var SnapshotHeader = append(append([]string{IndexColumn}, models.RequiredColumns...),
	models.ColAcquisitionCostValue,
	models.ColDurationDays,
	models.ColParsedDate,
	models.ColDay,
	models.ColMonth,
	models.ColCTR,
	models.ColMonthYear,
)

// CSVWriter writes cleaned records to CSV. Rows go to a staging file created
// on the first Write; Close moves it over filename and Abort drops it, so a
// failed run leaves any previous snapshot in place.
type CSVWriter struct {
	filename string
	file     *stagedFile
	writer   *csv.Writer
	next     int
	closed   bool
	mu       sync.Mutex
}

// NewCSVWriter prepares a CSV writer for filename.
func NewCSVWriter(filename string) *CSVWriter {
	return &CSVWriter{filename: filename}
}

func (cw *CSVWriter) open() error {
	f, err := createStaged(cw.filename)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(SnapshotHeader); err != nil {
		f.discard()
		return fmt.Errorf("write csv header: %w", err)
	}

	cw.file = f
	cw.writer = writer
	return nil
}

// Write appends records, numbering them from zero across calls.
func (cw *CSVWriter) Write(records []models.CleanedRecord) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.closed {
		return ErrWriterClosed
	}
	if cw.file == nil {
		if err := cw.open(); err != nil {
			return err
		}
	}

	for i := range records {
		if err := cw.writer.Write(csvRow(cw.next, &records[i])); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
		cw.next++
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes the rows and publishes the file. Closing an unused writer is
// a no-op.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.closed || cw.file == nil {
		cw.closed = true
		return nil
	}
	cw.closed = true

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		cw.file.discard()
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.commit()
}

// Abort discards everything written so far. It is a no-op after Close.
func (cw *CSVWriter) Abort() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.closed || cw.file == nil {
		cw.closed = true
		return nil
	}
	cw.closed = true
	return cw.file.discard()
}

// Validate ensures at least one record follows the header.
func (cw *CSVWriter) Validate() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.file == nil {
		return fmt.Errorf("csv file %s was never written", cw.filename)
	}
	if cw.next == 0 {
		return fmt.Errorf("csv file has no records")
	}
	info, err := cw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

func csvRow(index int, rec *models.CleanedRecord) []string {
	return []string{
		strconv.Itoa(index),
		rec.CampaignType,
		rec.ChannelUsed,
		rec.TargetAudience,
		rec.CustomerSegment,
		rec.Location,
		rec.Language,
		rec.AcquisitionCost,
		rec.Duration,
		rec.Date,
		rec.Clicks,
		rec.Impressions,
		rec.ConversionRate,
		rec.ROI,
		rec.EngagementScore,
		formatFloat(rec.AcquisitionCostValue),
		strconv.Itoa(rec.DurationDays),
		rec.ParsedDate.Format(parser.DefaultDateLayout),
		strconv.Itoa(rec.Day),
		strconv.Itoa(rec.Month),
		formatFloat(rec.CTR),
		rec.MonthYear,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// jsonRecord is the JSONL shape of a cleaned record.
type jsonRecord struct {
	Index int `json:"index"`
	models.CleanedRecord
}

// JSONWriter writes newline-delimited JSON records, staged like CSVWriter.
type JSONWriter struct {
	filename string
	file     *stagedFile
	writer   *bufio.Writer
	encoder  *json.Encoder
	next     int
	closed   bool
	mu       sync.Mutex
}

// NewJSONWriter prepares a JSONL writer for filename.
func NewJSONWriter(filename string) *JSONWriter {
	return &JSONWriter{filename: filename}
}

func (jw *JSONWriter) open() error {
	f, err := createStaged(jw.filename)
	if err != nil {
		return fmt.Errorf("create json file: %w", err)
	}

	jw.file = f
	jw.writer = bufio.NewWriter(f)
	jw.encoder = json.NewEncoder(jw.writer)
	return nil
}

// Write appends records in JSONL format.
func (jw *JSONWriter) Write(records []models.CleanedRecord) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}
	if jw.file == nil {
		if err := jw.open(); err != nil {
			return err
		}
	}

	for _, rec := range records {
		if err := jw.encoder.Encode(jsonRecord{Index: jw.next, CleanedRecord: rec}); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
		jw.next++
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// Close flushes buffers and publishes the file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed || jw.file == nil {
		jw.closed = true
		return nil
	}
	jw.closed = true

	if err := jw.writer.Flush(); err != nil {
		jw.file.discard()
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.commit()
}

// Abort discards everything written so far. It is a no-op after Close.
func (jw *JSONWriter) Abort() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed || jw.file == nil {
		jw.closed = true
		return nil
	}
	jw.closed = true
	return jw.file.discard()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.file == nil {
		return fmt.Errorf("json file %s was never written", jw.filename)
	}
	info, err := jw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("json file is empty")
	}
	return nil
}

// NewWriter returns the snapshot writer selected by cfg, or nil when no
// snapshot file is configured.
func NewWriter(cfg *config.Config) (OutputWriter, error) {
	if cfg.SnapshotFile == "" {
		return nil, nil
	}
	switch cfg.SnapshotFormat {
	case "csv":
		return NewCSVWriter(cfg.SnapshotFile), nil
	case "json":
		return NewJSONWriter(cfg.SnapshotFile), nil
	case "dual":
		return NewDualWriter(cfg.SnapshotFile, JSONCompanion(cfg.SnapshotFile)), nil
	case "sqlite":
		return NewSQLiteWriter(cfg.SnapshotFile), nil
	default:
		return nil, fmt.Errorf("unsupported snapshot format: %s", cfg.SnapshotFormat)
	}
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
