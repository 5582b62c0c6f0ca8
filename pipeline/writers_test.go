package pipeline

import (
	"bufio"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/campaign-insights/config"
	"github.com/aluiziolira/campaign-insights/models"
)

func cleanedRecord(channel string, cost float64, roi models.Metric) models.CleanedRecord {
	date := time.Date(2021, 1, 5, 0, 0, 0, 0, time.UTC)
	return models.CleanedRecord{
		CampaignRecord: models.CampaignRecord{
			Line:            2,
			CampaignType:    "Email",
			ChannelUsed:     channel,
			TargetAudience:  "Men 18-24",
			CustomerSegment: "Foodies",
			Location:        "Chicago",
			Language:        "English",
			AcquisitionCost: "$16,174.00",
			Duration:        "30 days",
			Date:            "2021-01-05",
			Clicks:          "506",
			Impressions:     "1922",
			ConversionRate:  "0.04",
			ROI:             "6.29",
			EngagementScore: "",
		},
		AcquisitionCostValue: cost,
		DurationDays:         30,
		ParsedDate:           date,
		Day:                  5,
		Month:                1,
		ClicksValue:          506,
		ImpressionsValue:     1922,
		ConversionRateValue:  models.Some(0.04),
		ROIValue:             roi,
		CTR:                  0.25,
		MonthYear:            "2021-01",
	}
}

func TestCSVWriterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cleaned.csv")
	writer := NewCSVWriter(path)

	require.NoError(t, writer.Write([]models.CleanedRecord{cleanedRecord("Email", 16174, models.Some(6.29))}))
	require.NoError(t, writer.Write([]models.CleanedRecord{cleanedRecord("SMS", 0.5, models.Some(1))}))
	require.NoError(t, writer.Validate())
	require.NoError(t, writer.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, IndexColumn, rows[0][0])
	assert.Equal(t, SnapshotHeader, rows[0])

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[name] = i
	}
	first := rows[1]
	assert.Equal(t, "0", first[col[IndexColumn]])
	assert.Equal(t, "$16,174.00", first[col[models.ColAcquisitionCost]])
	assert.Equal(t, "16174", first[col[models.ColAcquisitionCostValue]])
	assert.Equal(t, "30", first[col[models.ColDurationDays]])
	assert.Equal(t, "2021-01-05", first[col[models.ColParsedDate]])
	assert.Equal(t, "0.25", first[col[models.ColCTR]])
	assert.Equal(t, "2021-01", first[col[models.ColMonthYear]])
	assert.Equal(t, "", first[col[models.ColEngagementScore]])

	assert.Equal(t, "1", rows[2][0])
	assert.Equal(t, "0.5", rows[2][col[models.ColAcquisitionCostValue]])
}

func TestCSVWriterLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cleaned.csv")
	writer := NewCSVWriter(path)

	assert.Error(t, writer.Validate())
	require.NoError(t, writer.Close())
	require.NoError(t, writer.Abort())
	assert.NoFileExists(t, path)
	assert.ErrorIs(t, writer.Write(nil), ErrWriterClosed)
}

func TestCSVWriterStagesUntilClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cleaned.csv")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	writer := NewCSVWriter(path)
	require.NoError(t, writer.Write([]models.CleanedRecord{cleanedRecord("Email", 1, models.Some(1))}))
	require.NoError(t, writer.Validate())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old\n", string(data), "rows stay staged until Close")

	require.NoError(t, writer.Abort())
	require.NoError(t, writer.Close())

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old\n", string(data))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staging file must be removed")
}

func TestJSONWriterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cleaned.jsonl")
	writer := NewJSONWriter(path)

	records := []models.CleanedRecord{
		cleanedRecord("Email", 10, models.Some(2)),
		cleanedRecord("SMS", 20, models.Metric{}),
	}
	require.NoError(t, writer.Write(records))
	require.NoError(t, writer.Validate())
	require.NoError(t, writer.Close())
	require.NoError(t, writer.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 2)

	assert.Equal(t, 0.0, lines[0]["index"])
	assert.Equal(t, "Email", lines[0]["channel_used"])
	assert.Equal(t, 2.0, lines[0]["roi_value"])
	assert.Equal(t, 1.0, lines[1]["index"])
	assert.Nil(t, lines[1]["roi_value"])
	assert.Nil(t, lines[1]["engagement_score_value"])
}

func TestDualWriterWritesBoth(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "cleaned.csv")
	jsonPath := JSONCompanion(csvPath)
	assert.Equal(t, filepath.Join(dir, "cleaned.jsonl"), jsonPath)

	writer := NewDualWriter(csvPath, jsonPath)
	require.NoError(t, writer.Write([]models.CleanedRecord{cleanedRecord("Email", 1, models.Some(1))}))
	require.NoError(t, writer.Validate())
	require.NoError(t, writer.Close())

	assert.FileExists(t, csvPath)
	assert.FileExists(t, jsonPath)
}

func TestDualWriterAbort(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "cleaned.csv")
	writer := NewDualWriter(csvPath, JSONCompanion(csvPath))
	require.NoError(t, writer.Write([]models.CleanedRecord{cleanedRecord("Email", 1, models.Some(1))}))
	require.NoError(t, writer.Abort())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSQLiteWriterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.db")

	for run := 0; run < 2; run++ {
		writer := NewSQLiteWriter(path)
		records := []models.CleanedRecord{
			cleanedRecord("Email", 10, models.Some(2)),
			cleanedRecord("SMS", 20, models.Metric{}),
		}
		require.NoError(t, writer.Write(records))
		require.NoError(t, writer.Validate())
		require.NoError(t, writer.Close())
	}

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+SnapshotTable).Scan(&count))
	assert.Equal(t, 2, count, "each run replaces the table")

	var (
		channel string
		cost    float64
		roi     sql.NullFloat64
		month   string
	)
	require.NoError(t, db.QueryRow(
		"SELECT channel_used, acquisition_cost, roi, month_year FROM "+SnapshotTable+" WHERE row_index = 1",
	).Scan(&channel, &cost, &roi, &month))
	assert.Equal(t, "SMS", channel)
	assert.Equal(t, 20.0, cost)
	assert.False(t, roi.Valid)
	assert.Equal(t, "2021-01", month)
}

func TestSQLiteWriterAbortKeepsPreviousTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.db")

	first := NewSQLiteWriter(path)
	require.NoError(t, first.Write([]models.CleanedRecord{cleanedRecord("Email", 10, models.Some(2))}))
	require.NoError(t, first.Close())

	second := NewSQLiteWriter(path)
	require.NoError(t, second.Write([]models.CleanedRecord{
		cleanedRecord("SMS", 20, models.Some(1)),
		cleanedRecord("Display", 30, models.Some(1)),
	}))
	require.NoError(t, second.Validate())
	require.NoError(t, second.Abort())
	require.NoError(t, second.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var channel string
	require.NoError(t, db.QueryRow("SELECT channel_used FROM "+SnapshotTable).Scan(&channel))
	assert.Equal(t, "Email", channel)
	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+SnapshotTable).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSQLiteWriterAbortRemovesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.db")
	writer := NewSQLiteWriter(path)
	require.NoError(t, writer.Write([]models.CleanedRecord{cleanedRecord("Email", 10, models.Some(2))}))
	require.NoError(t, writer.Abort())
	assert.NoFileExists(t, path)
}

func TestNewWriter(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		format   string
		file     string
		expected any
		wantErr  bool
	}{
		{format: "csv", file: "a.csv", expected: &CSVWriter{}},
		{format: "json", file: "a.jsonl", expected: &JSONWriter{}},
		{format: "dual", file: "a.csv", expected: &DualWriter{}},
		{format: "sqlite", file: "a.db", expected: &SQLiteWriter{}},
		{format: "xml", file: "a.xml", wantErr: true},
		{format: "csv", file: "", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.format+"_"+tt.file, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.SnapshotFormat = tt.format
			cfg.SnapshotFile = ""
			if tt.file != "" {
				cfg.SnapshotFile = filepath.Join(dir, tt.file)
			}

			writer, err := NewWriter(cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.expected == nil {
				assert.Nil(t, writer)
				return
			}
			assert.IsType(t, tt.expected, writer)
		})
	}
}

func TestWriteSummaries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "summaries.json")
	tables := []models.SummaryTable{{
		Name:    "acquisition_cost_by_channel",
		GroupBy: models.ColChannelUsed,
		Metrics: []string{models.ColAcquisitionCost},
		Rows: []models.SummaryRow{
			{Key: "Email", Count: 2, Values: map[string]float64{models.ColAcquisitionCost: 200}},
			{Key: "SMS", Count: 1, Values: map[string]float64{models.ColAcquisitionCost: 50}},
		},
	}}

	require.NoError(t, WriteSummaries(path, nil))
	require.NoError(t, WriteSummaries(path, tables))

	got, err := ReadSummaries(path)
	require.NoError(t, err)
	assert.Equal(t, tables, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no staging files left behind")
}
