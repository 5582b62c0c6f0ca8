package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aluiziolira/campaign-insights/models"
)

// DefaultDateLayout matches the ISO dates found in campaign exports.
const DefaultDateLayout = "2006-01-02"

// NormalizeCurrency removes every currency symbol and thousands separator
// along with surrounding whitespace.
func NormalizeCurrency(value string) string {
	value = strings.ReplaceAll(value, "$", "")
	value = strings.ReplaceAll(value, ",", "")
	return strings.TrimSpace(value)
}

// ParseCurrency converts "$16,174.00" into 16174.
func ParseCurrency(value string) (float64, error) {
	cleaned := NormalizeCurrency(value)
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fieldErr(MalformedCurrency, models.ColAcquisitionCost, value, err)
	}
	return d.InexactFloat64(), nil
}

// ParseDuration extracts the first run of ASCII digits, so "30 days" is 30.
func ParseDuration(value string) (int, error) {
	start := strings.IndexFunc(value, isDigit)
	if start < 0 {
		return 0, fieldErr(MalformedDuration, models.ColDuration, value, errNoDigits)
	}
	end := start
	for end < len(value) && isDigit(rune(value[end])) {
		end++
	}
	days, err := strconv.Atoi(value[start:end])
	if err != nil {
		return 0, fieldErr(MalformedDuration, models.ColDuration, value, err)
	}
	return days, nil
}

// ParseDate parses value with a single fixed layout.
func ParseDate(value, layout string) (time.Time, error) {
	t, err := time.Parse(layout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fieldErr(MalformedDate, models.ColDate, value, err)
	}
	return t, nil
}

// ParseCount parses a non-negative integer such as Clicks or Impressions.
func ParseCount(field, value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fieldErr(MalformedNumber, field, value, errEmptyNumber)
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fieldErr(MalformedNumber, field, value, err)
	}
	if n < 0 {
		return 0, fieldErr(MalformedNumber, field, value, errNegative)
	}
	return n, nil
}

// ParseMetric parses an optional score. An empty cell is a missing value,
// not zero.
func ParseMetric(field, value string) (models.Metric, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return models.Metric{}, nil
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return models.Metric{}, fieldErr(MalformedNumber, field, value, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return models.Metric{}, fieldErr(MalformedNumber, field, value, errNotFinite)
	}
	return models.Some(v), nil
}

// ComputeCTR returns clicks/impressions. Zero impressions is treated as an
// undefined rate and reported as 0.
func ComputeCTR(clicks, impressions int64) float64 {
	if impressions == 0 {
		return 0
	}
	return float64(clicks) / float64(impressions)
}

// MonthYear formats the year-month bucket of t as YYYY-MM.
func MonthYear(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
