package aggregate

import "github.com/aluiziolira/campaign-insights/models"

var (
	byCampaignType    = Dimension{Name: models.ColCampaignType, Key: func(r *models.CleanedRecord) string { return r.CampaignType }}
	byChannel         = Dimension{Name: models.ColChannelUsed, Key: func(r *models.CleanedRecord) string { return r.ChannelUsed }}
	byTargetAudience  = Dimension{Name: models.ColTargetAudience, Key: func(r *models.CleanedRecord) string { return r.TargetAudience }}
	byCustomerSegment = Dimension{Name: models.ColCustomerSegment, Key: func(r *models.CleanedRecord) string { return r.CustomerSegment }}
	byLocation        = Dimension{Name: models.ColLocation, Key: func(r *models.CleanedRecord) string { return r.Location }}
	byLanguage        = Dimension{Name: models.ColLanguage, Key: func(r *models.CleanedRecord) string { return r.Language }}
	byMonthYear       = Dimension{Name: models.ColMonthYear, Key: func(r *models.CleanedRecord) string { return r.MonthYear }}
)

var (
	conversionRate = metric(models.ColConversionRate, func(r *models.CleanedRecord) models.Metric { return r.ConversionRateValue })
	roi            = metric(models.ColROI, func(r *models.CleanedRecord) models.Metric { return r.ROIValue })
	engagement     = metric(models.ColEngagementScore, func(r *models.CleanedRecord) models.Metric { return r.EngagementScoreValue })

	acquisitionCost = Measure{
		Name:  models.ColAcquisitionCost,
		Value: func(r *models.CleanedRecord) (float64, bool) { return r.AcquisitionCostValue, true },
	}
)

func metric(name string, get func(*models.CleanedRecord) models.Metric) Measure {
	return Measure{
		Name: name,
		Value: func(r *models.CleanedRecord) (float64, bool) {
			m := get(r)
			return m.Value, m.Valid
		},
	}
}

// Definitions lists the summaries produced by All. Temporal trends comes
// last; it is charted as a time series rather than a categorical bar.
func Definitions() []Definition {
	return []Definition{
		{Name: CampaignPerformance, GroupBy: byCampaignType, Measures: []Measure{conversionRate, roi}},
		{Name: AcquisitionCostByChannel, GroupBy: byChannel, Measures: []Measure{acquisitionCost}},
		{Name: AudienceSegmentation, GroupBy: byTargetAudience, Measures: []Measure{conversionRate, engagement}},
		{Name: CustomerSegmentation, GroupBy: byCustomerSegment, Measures: []Measure{conversionRate, engagement}},
		{Name: ChannelEffectiveness, GroupBy: byChannel, Measures: []Measure{conversionRate, roi}},
		{Name: GeographicalInsights, GroupBy: byLocation, Measures: []Measure{roi}},
		{Name: LanguageInfluence, GroupBy: byLanguage, Measures: []Measure{conversionRate}},
		{Name: TemporalTrends, GroupBy: byMonthYear, Measures: []Measure{conversionRate}},
	}
}
