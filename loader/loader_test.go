package loader

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/campaign-insights/models"
)

const fullHeader = "Campaign_ID,Company,Campaign_Type,Target_Audience,Duration,Channel_Used,Conversion_Rate,Acquisition_Cost,ROI,Location,Language,Clicks,Impressions,Engagement_Score,Customer_Segment,Date"

func TestReadMapsColumnsByName(t *testing.T) {
	input := fullHeader + "\n" +
		`1,Innovate Industries,Email,Men 18-24,30 days,Google Ads,0.04,"$16,174.00",6.29,Chicago,Spanish,506,1922,6,Health & Wellness,2021-01-01` + "\n"

	records, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, 2, got.Line)
	assert.Equal(t, "Email", got.CampaignType)
	assert.Equal(t, "Google Ads", got.ChannelUsed)
	assert.Equal(t, "Men 18-24", got.TargetAudience)
	assert.Equal(t, "Health & Wellness", got.CustomerSegment)
	assert.Equal(t, "Chicago", got.Location)
	assert.Equal(t, "Spanish", got.Language)
	assert.Equal(t, "$16,174.00", got.AcquisitionCost)
	assert.Equal(t, "30 days", got.Duration)
	assert.Equal(t, "2021-01-01", got.Date)
	assert.Equal(t, "506", got.Clicks)
	assert.Equal(t, "1922", got.Impressions)
	assert.Equal(t, "0.04", got.ConversionRate)
	assert.Equal(t, "6.29", got.ROI)
	assert.Equal(t, "6", got.EngagementScore)
}

func TestReadMissingColumns(t *testing.T) {
	header := strings.Replace(fullHeader, "ROI,", "", 1)
	header = strings.Replace(header, ",Date", "", 1)

	_, err := Read(strings.NewReader(header + "\n"))
	var missing *MissingColumnError
	require.True(t, errors.As(err, &missing), "expected MissingColumnError, got %v", err)
	assert.ElementsMatch(t, []string{models.ColROI, models.ColDate}, missing.Columns)
	assert.Contains(t, err.Error(), "ROI")
}

func TestReadMissingColumnBeforeRows(t *testing.T) {
	// the ragged row would fail to read; the header check must win
	input := "Campaign_Type,Channel_Used\nEmail\n"
	_, err := Read(strings.NewReader(input))
	var missing *MissingColumnError
	require.ErrorAs(t, err, &missing)
}

func TestReadHeaderWhitespaceAndBOM(t *testing.T) {
	header := "\ufeff" + strings.ReplaceAll(fullHeader, ",", " , ")
	input := header + "\n" +
		`1,Acme,Social Media,All Ages,15 days,Email,0.1,$100.00,2,Miami,English,10,100,5,Foodies,2022-02-02` + "\n"

	records, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Social Media", records[0].CampaignType)
}

func TestReadEmptyInput(t *testing.T) {
	_, err := Read(strings.NewReader(""))
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestReadRaggedRow(t *testing.T) {
	input := fullHeader + "\n1,2,3\n"
	_, err := Read(strings.NewReader(input))
	var readErr *ReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, 2, readErr.Line)
}

func TestReadPreservesRowOrder(t *testing.T) {
	var b strings.Builder
	b.WriteString(fullHeader + "\n")
	for _, channel := range []string{"Email", "SMS", "Email", "Website"} {
		b.WriteString("1,Acme,Email,All,5 days," + channel + ",0.1,$1.00,1,Miami,English,1,1,1,Foodies,2022-02-02\n")
	}

	records, err := Read(strings.NewReader(b.String()))
	require.NoError(t, err)
	var channels []string
	for _, r := range records {
		channels = append(channels, r.ChannelUsed)
	}
	assert.Equal(t, []string{"Email", "SMS", "Email", "Website"}, channels)
}
