// Package models defines data structures for the campaign pipeline.
package models

import (
	"encoding/json"
	"time"
)

// Input column names as they appear in the CSV header.
const (
	ColCampaignType    = "Campaign_Type"
	ColChannelUsed     = "Channel_Used"
	ColTargetAudience  = "Target_Audience"
	ColCustomerSegment = "Customer_Segment"
	ColLocation        = "Location"
	ColLanguage        = "Language"
	ColAcquisitionCost = "Acquisition_Cost"
	ColDuration        = "Duration"
	ColDate            = "Date"
	ColClicks          = "Clicks"
	ColImpressions     = "Impressions"
	ColConversionRate  = "Conversion_Rate"
	ColROI             = "ROI"
	ColEngagementScore = "Engagement_Score"
)

// Derived column names written to snapshots.
const (
	ColAcquisitionCostValue = "Acquisition_Cost_Value"
	ColDurationDays         = "Duration_Days"
	ColParsedDate           = "Parsed_Date"
	ColDay                  = "Day"
	ColMonth                = "Month"
	ColCTR                  = "CTR"
	ColMonthYear            = "Month_Year"
)

// RequiredColumns lists every column the loader insists on.
var RequiredColumns = []string{
	ColCampaignType,
	ColChannelUsed,
	ColTargetAudience,
	ColCustomerSegment,
	ColLocation,
	ColLanguage,
	ColAcquisitionCost,
	ColDuration,
	ColDate,
	ColClicks,
	ColImpressions,
	ColConversionRate,
	ColROI,
	ColEngagementScore,
}

// CampaignRecord is one raw input row. Every value is kept as text; parsing
// happens in the transformer.
type CampaignRecord struct {
	Line int `json:"line"`

	CampaignType    string `csv:"Campaign_Type" json:"campaign_type"`
	ChannelUsed     string `csv:"Channel_Used" json:"channel_used"`
	TargetAudience  string `csv:"Target_Audience" json:"target_audience"`
	CustomerSegment string `csv:"Customer_Segment" json:"customer_segment"`
	Location        string `csv:"Location" json:"location"`
	Language        string `csv:"Language" json:"language"`
	AcquisitionCost string `csv:"Acquisition_Cost" json:"acquisition_cost"`
	Duration        string `csv:"Duration" json:"duration"`
	Date            string `csv:"Date" json:"date"`
	Clicks          string `csv:"Clicks" json:"clicks"`
	Impressions     string `csv:"Impressions" json:"impressions"`
	ConversionRate  string `csv:"Conversion_Rate" json:"conversion_rate"`
	ROI             string `csv:"ROI" json:"roi"`
	EngagementScore string `csv:"Engagement_Score" json:"engagement_score"`
}

// Metric is a numeric score that may be absent from the source row.
type Metric struct {
	Value float64
	Valid bool
}

// Some wraps a present metric value.
func Some(v float64) Metric {
	return Metric{Value: v, Valid: true}
}

// MarshalJSON encodes a missing metric as null.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

// CleanedRecord is a CampaignRecord with parsed and derived fields.
type CleanedRecord struct {
	CampaignRecord

	AcquisitionCostValue float64   `json:"acquisition_cost_value"`
	DurationDays         int       `json:"duration_days"`
	ParsedDate           time.Time `json:"parsed_date"`
	Day                  int       `json:"day"`
	Month                int       `json:"month"`
	ClicksValue          int64     `json:"clicks_value"`
	ImpressionsValue     int64     `json:"impressions_value"`
	ConversionRateValue  Metric    `json:"conversion_rate_value"`
	ROIValue             Metric    `json:"roi_value"`
	EngagementScoreValue Metric    `json:"engagement_score_value"`
	CTR                  float64   `json:"ctr"`
	MonthYear            string    `json:"month_year"`
}

// SummaryRow holds the means of one group. Metrics without a contributing
// value for this key are absent from Values.
type SummaryRow struct {
	Key    string             `json:"key"`
	Count  int                `json:"count"`
	Values map[string]float64 `json:"values"`
}

// SummaryTable is a grouped-and-averaged projection of the cleaned table.
type SummaryTable struct {
	Name    string       `json:"name"`
	GroupBy string       `json:"group_by"`
	Metrics []string     `json:"metrics"`
	Rows    []SummaryRow `json:"rows"`
}

// Means returns key -> metric -> mean, ignoring row order.
func (t SummaryTable) Means() map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(t.Rows))
	for _, row := range t.Rows {
		values := make(map[string]float64, len(row.Values))
		for k, v := range row.Values {
			values[k] = v
		}
		out[row.Key] = values
	}
	return out
}

// Keys returns the group keys in table order.
func (t SummaryTable) Keys() []string {
	keys := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		keys = append(keys, row.Key)
	}
	return keys
}

// Result holds the overall result of a pipeline run.
type Result struct {
	RunID        string
	Source       string
	Records      []CleanedRecord
	Summaries    []SummaryTable
	StartTime    time.Time
	EndTime      time.Time
	RowCount     int
	SnapshotPath string
}
