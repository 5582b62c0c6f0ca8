// Package aggregate computes grouped means over cleaned campaign records.
package aggregate

import (
	"github.com/shopspring/decimal"

	"github.com/aluiziolira/campaign-insights/models"
)

// Summary table names, in the order All returns them.
const (
	CampaignPerformance      = "campaign_performance"
	AcquisitionCostByChannel = "acquisition_cost_by_channel"
	AudienceSegmentation     = "audience_segmentation"
	CustomerSegmentation     = "customer_segmentation"
	ChannelEffectiveness     = "channel_effectiveness"
	GeographicalInsights     = "geographical_insights"
	LanguageInfluence        = "language_influence"
	TemporalTrends           = "temporal_trends"
)

// Dimension extracts a grouping key from a record.
type Dimension struct {
	Name string
	Key  func(*models.CleanedRecord) string
}

// Measure extracts a numeric value from a record. ok is false when the
// value is missing and must not contribute to the mean.
type Measure struct {
	Name  string
	Value func(*models.CleanedRecord) (v float64, ok bool)
}

// Definition describes one summary table.
type Definition struct {
	Name     string
	GroupBy  Dimension
	Measures []Measure
}

// accumulator sums in exact decimal arithmetic so a mean does not depend on
// the order rows arrive in.
type accumulator struct {
	key    string
	rows   int
	sums   []decimal.Decimal
	counts []int
}

// GroupMean averages every measure of def per distinct key. Rows keep the
// order in which keys were first seen.
func GroupMean(def Definition, records []models.CleanedRecord) models.SummaryTable {
	index := make(map[string]int)
	var groups []*accumulator

	for i := range records {
		rec := &records[i]
		key := def.GroupBy.Key(rec)
		pos, ok := index[key]
		if !ok {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, &accumulator{
				key:    key,
				sums:   make([]decimal.Decimal, len(def.Measures)),
				counts: make([]int, len(def.Measures)),
			})
		}
		acc := groups[pos]
		acc.rows++
		for m, measure := range def.Measures {
			v, ok := measure.Value(rec)
			if !ok {
				continue
			}
			acc.sums[m] = acc.sums[m].Add(decimal.NewFromFloat(v))
			acc.counts[m]++
		}
	}

	table := models.SummaryTable{
		Name:    def.Name,
		GroupBy: def.GroupBy.Name,
		Metrics: make([]string, 0, len(def.Measures)),
		Rows:    make([]models.SummaryRow, 0, len(groups)),
	}
	for _, measure := range def.Measures {
		table.Metrics = append(table.Metrics, measure.Name)
	}
	for _, acc := range groups {
		row := models.SummaryRow{
			Key:    acc.key,
			Count:  acc.rows,
			Values: make(map[string]float64, len(def.Measures)),
		}
		for m, measure := range def.Measures {
			if acc.counts[m] == 0 {
				continue
			}
			mean := acc.sums[m].Div(decimal.NewFromInt(int64(acc.counts[m])))
			row.Values[measure.Name] = mean.InexactFloat64()
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// All computes the eight campaign summaries.
func All(records []models.CleanedRecord) []models.SummaryTable {
	defs := Definitions()
	tables := make([]models.SummaryTable, 0, len(defs))
	for _, def := range defs {
		tables = append(tables, GroupMean(def, records))
	}
	return tables
}

// Find returns the table called name.
func Find(tables []models.SummaryTable, name string) (models.SummaryTable, bool) {
	for _, t := range tables {
		if t.Name == name {
			return t, true
		}
	}
	return models.SummaryTable{}, false
}
