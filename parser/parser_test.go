package parser

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/aluiziolira/campaign-insights/models"
)

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
		wantErr  bool
	}{
		{name: "symbol and separators", input: "$16,174.00", expected: 16174.00},
		{name: "zero", input: "$0.00", expected: 0},
		{name: "no symbol", input: "1234.5", expected: 1234.5},
		{name: "separators only", input: "1,000", expected: 1000},
		{name: "whitespace", input: "  $12.25  ", expected: 12.25},
		{name: "multiple symbols", input: "$$5,0,0", expected: 500},
		{name: "not numeric", input: "$abc", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "symbol only", input: "$", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCurrency(tt.input)
			if tt.wantErr {
				if KindOf(err) != MalformedCurrency {
					t.Fatalf("ParseCurrency(%q) error = %v, want %s", tt.input, err, MalformedCurrency)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCurrency(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ParseCurrency(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeCurrency(t *testing.T) {
	if got := NormalizeCurrency(" $16,174.00 "); got != "16174.00" {
		t.Fatalf("NormalizeCurrency = %q, want %q", got, "16174.00")
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
		wantErr  bool
	}{
		{name: "days suffix", input: "30 days", expected: 30},
		{name: "bare number", input: "5", expected: 5},
		{name: "leading text", input: "about 45 days", expected: 45},
		{name: "first run only", input: "15 days 20 hours", expected: 15},
		{name: "leading zeros", input: "007 days", expected: 7},
		{name: "no digits", input: "thirty days", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			if tt.wantErr {
				if KindOf(err) != MalformedDuration {
					t.Fatalf("ParseDuration(%q) error = %v, want %s", tt.input, err, MalformedDuration)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDuration(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ParseDuration(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2024-03-07", DefaultDateLayout)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	want := time.Date(2024, time.March, 7, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("ParseDate = %v, want %v", got, want)
	}

	for _, bad := range []string{"07/03/2024", "2024-13-01", "", "yesterday"} {
		if _, err := ParseDate(bad, DefaultDateLayout); KindOf(err) != MalformedDate {
			t.Errorf("ParseDate(%q) error = %v, want %s", bad, err, MalformedDate)
		}
	}
}

func TestComputeCTR(t *testing.T) {
	tests := []struct {
		name        string
		clicks      int64
		impressions int64
		expected    float64
	}{
		{name: "zero impressions", clicks: 50, impressions: 0, expected: 0},
		{name: "quarter", clicks: 50, impressions: 200, expected: 0.25},
		{name: "no clicks", clicks: 0, impressions: 10, expected: 0},
		{name: "both zero", clicks: 0, impressions: 0, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeCTR(tt.clicks, tt.impressions)
			if math.IsNaN(got) || math.IsInf(got, 0) {
				t.Fatalf("ComputeCTR(%d, %d) is not finite", tt.clicks, tt.impressions)
			}
			if got != tt.expected {
				t.Errorf("ComputeCTR(%d, %d) = %v, want %v", tt.clicks, tt.impressions, got, tt.expected)
			}
		})
	}
}

func TestMonthYearZeroPads(t *testing.T) {
	for month := time.January; month <= time.December; month++ {
		date := time.Date(2024, month, 15, 0, 0, 0, 0, time.UTC)
		got := MonthYear(date)
		want := date.Format("2006-01")
		if got != want {
			t.Errorf("MonthYear(%s) = %q, want %q", date.Format(time.DateOnly), got, want)
		}
	}
	if got := MonthYear(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)); got != "2024-03" {
		t.Fatalf("MonthYear(March 2024) = %q, want 2024-03", got)
	}
}

func TestParseCount(t *testing.T) {
	if n, err := ParseCount(models.ColClicks, " 42 "); err != nil || n != 42 {
		t.Fatalf("ParseCount = %d, %v; want 42, nil", n, err)
	}
	for _, bad := range []string{"", "-1", "4.5", "many"} {
		if _, err := ParseCount(models.ColClicks, bad); KindOf(err) != MalformedNumber {
			t.Errorf("ParseCount(%q) error = %v, want %s", bad, err, MalformedNumber)
		}
	}
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric(models.ColROI, "")
	if err != nil || m.Valid {
		t.Fatalf("empty metric = %+v, %v; want missing", m, err)
	}
	m, err = ParseMetric(models.ColROI, "6.29")
	if err != nil || !m.Valid || m.Value != 6.29 {
		t.Fatalf("ParseMetric = %+v, %v; want 6.29", m, err)
	}
	for _, bad := range []string{"NaN", "Inf", "-Inf", "high"} {
		if _, err := ParseMetric(models.ColROI, bad); KindOf(err) != MalformedNumber {
			t.Errorf("ParseMetric(%q) error = %v, want %s", bad, err, MalformedNumber)
		}
	}
}

func TestFieldErrorUnwrap(t *testing.T) {
	_, err := ParseDuration("none")
	var fe *FieldError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FieldError, got %T", err)
	}
	if fe.Field != models.ColDuration || fe.Value != "none" {
		t.Fatalf("unexpected field error: %+v", fe)
	}
	if !errors.Is(err, errNoDigits) {
		t.Fatalf("expected wrapped errNoDigits")
	}
}

func sampleRecord() models.CampaignRecord {
	return models.CampaignRecord{
		Line:            2,
		CampaignType:    "Email",
		ChannelUsed:     "Google Ads",
		TargetAudience:  "Men 18-24",
		CustomerSegment: "Tech Enthusiasts",
		Location:        "Chicago",
		Language:        "Spanish",
		AcquisitionCost: "$16,174.00",
		Duration:        "30 days",
		Date:            "2021-01-01",
		Clicks:          "506",
		Impressions:     "1922",
		ConversionRate:  "0.04",
		ROI:             "6.29",
		EngagementScore: "6",
	}
}

func TestTransform(t *testing.T) {
	tr, err := NewTransformer(DefaultDateLayout, 16)
	if err != nil {
		t.Fatalf("new transformer: %v", err)
	}

	got, err := tr.Transform(sampleRecord())
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	want := models.CleanedRecord{
		CampaignRecord:       sampleRecord(),
		AcquisitionCostValue: 16174,
		DurationDays:         30,
		ParsedDate:           time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC),
		Day:                  1,
		Month:                1,
		ClicksValue:          506,
		ImpressionsValue:     1922,
		ConversionRateValue:  models.Some(0.04),
		ROIValue:             models.Some(6.29),
		EngagementScoreValue: models.Some(6),
		CTR:                  506.0 / 1922.0,
		MonthYear:            "2021-01",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Transform mismatch (-want +got):\n%s", diff)
	}
}

func TestTransformIsIdempotent(t *testing.T) {
	for _, size := range []int{0, 4} {
		tr, err := NewTransformer("", size)
		if err != nil {
			t.Fatalf("new transformer: %v", err)
		}
		first, err := tr.Transform(sampleRecord())
		if err != nil {
			t.Fatalf("first transform: %v", err)
		}
		second, err := tr.Transform(sampleRecord())
		if err != nil {
			t.Fatalf("second transform: %v", err)
		}
		if diff := cmp.Diff(first, second); diff != "" {
			t.Fatalf("cache size %d: transforms differ (-first +second):\n%s", size, diff)
		}
	}
}

func TestTransformCachesDates(t *testing.T) {
	tr, err := NewTransformer(DefaultDateLayout, 8)
	if err != nil {
		t.Fatalf("new transformer: %v", err)
	}

	dates := []string{"2021-01-01", "2021-01-02", "2021-01-01", "2021-01-01", "2021-01-02"}
	for _, date := range dates {
		rec := sampleRecord()
		rec.Date = date
		if _, err := tr.Transform(rec); err != nil {
			t.Fatalf("transform %s: %v", date, err)
		}
	}
	if got := tr.dates.Len(); got != 2 {
		t.Fatalf("cached dates = %d, want 2", got)
	}
	cached, ok := tr.dates.Peek("2021-01-02")
	if !ok || !cached.Equal(time.Date(2021, time.January, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("cached 2021-01-02 = %v (present %v)", cached, ok)
	}

	rec := sampleRecord()
	rec.Date = "not a date"
	if _, err := tr.Transform(rec); KindOf(err) != MalformedDate {
		t.Fatalf("expected malformed date, got %v", err)
	}
	if got := tr.dates.Len(); got != 2 {
		t.Fatalf("failed parse was cached: %d entries", got)
	}
}

func TestTransformDateCacheBounded(t *testing.T) {
	tr, _ := NewTransformer(DefaultDateLayout, 1)
	for _, date := range []string{"2021-01-01", "2021-01-02", "2021-01-03"} {
		rec := sampleRecord()
		rec.Date = date
		if _, err := tr.Transform(rec); err != nil {
			t.Fatalf("transform %s: %v", date, err)
		}
	}
	if got := tr.dates.Len(); got != 1 {
		t.Fatalf("cached dates = %d, want 1", got)
	}
	if !tr.dates.Contains("2021-01-03") {
		t.Fatal("most recent date should be cached")
	}

	uncached, _ := NewTransformer(DefaultDateLayout, 0)
	if uncached.dates != nil {
		t.Fatal("cache size 0 should disable memoization")
	}
}

func TestTransformZeroImpressions(t *testing.T) {
	tr, _ := NewTransformer(DefaultDateLayout, 0)
	rec := sampleRecord()
	rec.Clicks = "50"
	rec.Impressions = "0"

	got, err := tr.Transform(rec)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if got.CTR != 0 {
		t.Fatalf("CTR = %v, want 0", got.CTR)
	}
}

func TestTransformErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.CampaignRecord)
		kind   Kind
	}{
		{name: "currency", mutate: func(r *models.CampaignRecord) { r.AcquisitionCost = "free" }, kind: MalformedCurrency},
		{name: "duration", mutate: func(r *models.CampaignRecord) { r.Duration = "a month" }, kind: MalformedDuration},
		{name: "date", mutate: func(r *models.CampaignRecord) { r.Date = "01/01/2021" }, kind: MalformedDate},
		{name: "clicks", mutate: func(r *models.CampaignRecord) { r.Clicks = "-3" }, kind: MalformedNumber},
		{name: "roi", mutate: func(r *models.CampaignRecord) { r.ROI = "n/a" }, kind: MalformedNumber},
	}

	tr, _ := NewTransformer(DefaultDateLayout, 8)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := sampleRecord()
			tt.mutate(&rec)
			if _, err := tr.Transform(rec); KindOf(err) != tt.kind {
				t.Fatalf("Transform error = %v, want kind %s", err, tt.kind)
			}
		})
	}
}

func TestTransformMissingMetricStaysMissing(t *testing.T) {
	tr, _ := NewTransformer(DefaultDateLayout, 0)
	rec := sampleRecord()
	rec.EngagementScore = ""

	got, err := tr.Transform(rec)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if got.EngagementScoreValue.Valid {
		t.Fatalf("engagement score should be missing, got %+v", got.EngagementScoreValue)
	}
}
