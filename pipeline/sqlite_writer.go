package pipeline

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/aluiziolira/campaign-insights/models"
	"github.com/aluiziolira/campaign-insights/parser"
)

// SnapshotTable is the table the SQLite snapshot is written to.
const SnapshotTable = "cleaned_records"

const createSnapshotTable = `CREATE TABLE cleaned_records (
	row_index              INTEGER PRIMARY KEY,
	campaign_type          TEXT NOT NULL,
	channel_used           TEXT NOT NULL,
	target_audience        TEXT NOT NULL,
	customer_segment       TEXT NOT NULL,
	location               TEXT NOT NULL,
	language               TEXT NOT NULL,
	acquisition_cost       REAL NOT NULL,
	duration_days          INTEGER NOT NULL,
	date                   TEXT NOT NULL,
	day                    INTEGER NOT NULL,
	month                  INTEGER NOT NULL,
	month_year             TEXT NOT NULL,
	clicks                 INTEGER NOT NULL,
	impressions            INTEGER NOT NULL,
	ctr                    REAL NOT NULL,
	conversion_rate        REAL,
	roi                    REAL,
	engagement_score       REAL
)`

const insertSnapshotRow = `INSERT INTO cleaned_records (
	row_index, campaign_type, channel_used, target_audience, customer_segment,
	location, language, acquisition_cost, duration_days, date, day, month,
	month_year, clicks, impressions, ctr, conversion_rate, roi, engagement_score
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLiteWriter stores the cleaned table in a SQLite database. The first
// Write opens one transaction that drops and recreates the table; every row
// is inserted in it, Close commits it and Abort rolls it back, so readers
// never see a half-replaced table. Missing metrics are stored as NULL.
type SQLiteWriter struct {
	filename string
	conn     *sql.DB
	tx       *sql.Tx
	stmt     *sql.Stmt
	created  bool
	next     int
	closed   bool
	mu       sync.Mutex
}

// NewSQLiteWriter prepares a SQLite writer for filename.
func NewSQLiteWriter(filename string) *SQLiteWriter {
	return &SQLiteWriter{filename: filename}
}

func (sw *SQLiteWriter) open() error {
	if err := ensureDir(sw.filename); err != nil {
		return err
	}
	_, statErr := os.Stat(sw.filename)
	created := errors.Is(statErr, fs.ErrNotExist)

	conn, err := sql.Open("sqlite", sw.filename)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	tx, err := conn.Begin()
	if err != nil {
		conn.Close()
		return fmt.Errorf("begin transaction: %w", err)
	}
	fail := func(err error) error {
		tx.Rollback() //nolint:errcheck
		conn.Close()
		if created {
			os.Remove(sw.filename)
		}
		return err
	}
	if _, err := tx.Exec("DROP TABLE IF EXISTS " + SnapshotTable); err != nil {
		return fail(fmt.Errorf("dropping snapshot table: %w", err))
	}
	if _, err := tx.Exec(createSnapshotTable); err != nil {
		return fail(fmt.Errorf("creating snapshot table: %w", err))
	}
	stmt, err := tx.Prepare(insertSnapshotRow)
	if err != nil {
		return fail(fmt.Errorf("prepare insert: %w", err))
	}

	sw.conn = conn
	sw.tx = tx
	sw.stmt = stmt
	sw.created = created
	return nil
}

// Write inserts records into the run's transaction.
func (sw *SQLiteWriter) Write(records []models.CleanedRecord) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.closed {
		return ErrWriterClosed
	}
	if sw.conn == nil {
		if err := sw.open(); err != nil {
			return err
		}
	}

	for i := range records {
		rec := &records[i]
		_, err := sw.stmt.Exec(
			sw.next,
			rec.CampaignType,
			rec.ChannelUsed,
			rec.TargetAudience,
			rec.CustomerSegment,
			rec.Location,
			rec.Language,
			rec.AcquisitionCostValue,
			rec.DurationDays,
			rec.ParsedDate.Format(parser.DefaultDateLayout),
			rec.Day,
			rec.Month,
			rec.MonthYear,
			rec.ClicksValue,
			rec.ImpressionsValue,
			rec.CTR,
			nullable(rec.ConversionRateValue),
			nullable(rec.ROIValue),
			nullable(rec.EngagementScoreValue),
		)
		if err != nil {
			return fmt.Errorf("insert row %d: %w", sw.next, err)
		}
		sw.next++
	}
	return nil
}

// Close commits the snapshot and closes the database connection.
func (sw *SQLiteWriter) Close() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.closed || sw.conn == nil {
		sw.closed = true
		return nil
	}
	sw.closed = true

	sw.stmt.Close()
	if err := sw.tx.Commit(); err != nil {
		sw.conn.Close()
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return sw.conn.Close()
}

// Abort rolls back the run, leaving the previous table as it was. A database
// file created by this run is removed. It is a no-op after Close.
func (sw *SQLiteWriter) Abort() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.closed || sw.conn == nil {
		sw.closed = true
		return nil
	}
	sw.closed = true

	sw.stmt.Close()
	var errs []error
	if err := sw.tx.Rollback(); err != nil {
		errs = append(errs, fmt.Errorf("rollback snapshot: %w", err))
	}
	if err := sw.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	if sw.created {
		if err := os.Remove(sw.filename); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove database: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Validate checks that the table holds every written row.
func (sw *SQLiteWriter) Validate() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.conn == nil {
		return fmt.Errorf("sqlite snapshot %s was never written", sw.filename)
	}
	if sw.closed {
		return ErrWriterClosed
	}
	var count int
	if err := sw.tx.QueryRow("SELECT COUNT(*) FROM " + SnapshotTable).Scan(&count); err != nil {
		return fmt.Errorf("count snapshot rows: %w", err)
	}
	if count != sw.next {
		return fmt.Errorf("snapshot has %d rows, want %d", count, sw.next)
	}
	if count == 0 {
		return fmt.Errorf("snapshot table is empty")
	}
	return nil
}

func nullable(m models.Metric) sql.NullFloat64 {
	return sql.NullFloat64{Float64: m.Value, Valid: m.Valid}
}
