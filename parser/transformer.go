package parser

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/campaign-insights/models"
)

// Transformer maps raw campaign rows to cleaned rows. Transform holds no
// state across rows apart from a memo of successful date parses, which never
// changes a result.
type Transformer struct {
	layout string
	dates  *lru.Cache[string, time.Time]
}

// NewTransformer builds a transformer for the given date layout. A cacheSize
// of zero disables date memoization.
func NewTransformer(layout string, cacheSize int) (*Transformer, error) {
	if layout == "" {
		layout = DefaultDateLayout
	}
	t := &Transformer{layout: layout}
	if cacheSize > 0 {
		cache, err := lru.New[string, time.Time](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create date cache: %w", err)
		}
		t.dates = cache
	}
	return t, nil
}

// Transform parses and derives every field of rec. The first field that
// fails to parse is returned as a *FieldError.
func (t *Transformer) Transform(rec models.CampaignRecord) (models.CleanedRecord, error) {
	out := models.CleanedRecord{CampaignRecord: rec}

	cost, err := ParseCurrency(rec.AcquisitionCost)
	if err != nil {
		return models.CleanedRecord{}, err
	}
	out.AcquisitionCostValue = cost

	days, err := ParseDuration(rec.Duration)
	if err != nil {
		return models.CleanedRecord{}, err
	}
	out.DurationDays = days

	date, err := t.parseDate(rec.Date)
	if err != nil {
		return models.CleanedRecord{}, err
	}
	out.ParsedDate = date
	out.Day = date.Day()
	out.Month = int(date.Month())
	out.MonthYear = MonthYear(date)

	if out.ClicksValue, err = ParseCount(models.ColClicks, rec.Clicks); err != nil {
		return models.CleanedRecord{}, err
	}
	if out.ImpressionsValue, err = ParseCount(models.ColImpressions, rec.Impressions); err != nil {
		return models.CleanedRecord{}, err
	}
	out.CTR = ComputeCTR(out.ClicksValue, out.ImpressionsValue)

	if out.ConversionRateValue, err = ParseMetric(models.ColConversionRate, rec.ConversionRate); err != nil {
		return models.CleanedRecord{}, err
	}
	if out.ROIValue, err = ParseMetric(models.ColROI, rec.ROI); err != nil {
		return models.CleanedRecord{}, err
	}
	if out.EngagementScoreValue, err = ParseMetric(models.ColEngagementScore, rec.EngagementScore); err != nil {
		return models.CleanedRecord{}, err
	}

	return out, nil
}

func (t *Transformer) parseDate(value string) (time.Time, error) {
	if t.dates != nil {
		if cached, ok := t.dates.Get(value); ok {
			return cached, nil
		}
	}
	parsed, err := ParseDate(value, t.layout)
	if err != nil {
		return time.Time{}, err
	}
	if t.dates != nil {
		t.dates.Add(value, parsed)
	}
	return parsed, nil
}
