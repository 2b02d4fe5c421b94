package model

// SignalType names the strongest evidence behind an attribution row. The
// constants are declared in descending confidence order and the string
// values are part of the public JSON contract.
type SignalType string

// Signal types, strongest first.
const (
	SignalClickID      SignalType = "click_id"
	SignalUTMWithSpend SignalType = "utm_with_spend"
	SignalUTMNoSpend   SignalType = "utm_no_spend"
	SignalUTMOnly      SignalType = "utm_only"
	SignalPlatformOnly SignalType = "platform_only"
	SignalDirect       SignalType = "direct"
)

// SignalTypes lists every signal type in descending confidence order.
var SignalTypes = []SignalType{
	SignalClickID,
	SignalUTMWithSpend,
	SignalUTMNoSpend,
	SignalUTMOnly,
	SignalPlatformOnly,
	SignalDirect,
}

// Rank returns the position of t in SignalTypes (0 is strongest), or -1.
func (t SignalType) Rank() int {
	for i, s := range SignalTypes {
		if s == t {
			return i
		}
	}
	return -1
}

// DataQuality grades how independently a row's numbers were verified.
type DataQuality string

// Data quality grades.
const (
	QualityVerified     DataQuality = "verified"
	QualityCorroborated DataQuality = "corroborated"
	QualitySingleSource DataQuality = "single_source"
	QualityEstimated    DataQuality = "estimated"
)

// SmartAttribution is one channel's reconciled attribution.
type SmartAttribution struct {
	Channel     string         `json:"channel"`
	Platform    *string        `json:"platform"`
	Medium      *string        `json:"medium"`
	Campaign    *string        `json:"campaign"`
	Conversions float64        `json:"conversions"`
	Revenue     float64        `json:"revenue"`
	Confidence  int            `json:"confidence"`
	SignalType  SignalType     `json:"signal_type"`
	DataQuality DataQuality    `json:"data_quality"`
	Signals     ChannelSignals `json:"signals"`
	Explanation string         `json:"explanation"`
}

// SignalBreakdown is the conversions-weighted share of one signal type.
type SignalBreakdown struct {
	Count       int     `json:"count"`
	Conversions float64 `json:"conversions"`
	Percentage  float64 `json:"percentage"`
}

// AttributionSummary rolls the attribution rows up into headline numbers.
type AttributionSummary struct {
	TotalConversions     float64                        `json:"total_conversions"`
	TotalRevenue         float64                        `json:"total_revenue"`
	ChannelCount         int                            `json:"channel_count"`
	SignalBreakdown      map[SignalType]SignalBreakdown `json:"signal_breakdown"`
	DataCompleteness     float64                        `json:"data_completeness"`
	ConnectorConversions float64                        `json:"connector_conversions"`
	ConnectorRevenue     float64                        `json:"connector_revenue"`
}

// AttributionResult is the engine output for one SignalSet.
type AttributionResult struct {
	Attributions []SmartAttribution `json:"attributions"`
	Summary      AttributionSummary `json:"summary"`
}

// DailyChannel is one channel's figures within a TimeSeriesEntry.
type DailyChannel struct {
	Channel     string  `json:"channel"`
	Conversions float64 `json:"conversions"`
	Revenue     float64 `json:"revenue"`
	Spend       float64 `json:"spend"`
	Share       float64 `json:"share"`
	Source      string  `json:"source"`
}

// TimeSeriesEntry is the reconciled result for one calendar day.
type TimeSeriesEntry struct {
	Date                 string         `json:"date"`
	TotalConversions     float64        `json:"total_conversions"`
	TotalRevenue         float64        `json:"total_revenue"`
	UTMConversions       float64        `json:"utm_conversions"`
	ConnectorConversions float64        `json:"connector_conversions"`
	RevenueSource        string         `json:"revenue_source"`
	Channels             []DailyChannel `json:"channels"`
}

// Recommendation is one actionable setup suggestion.
type Recommendation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DataQualityReport summarizes which sources are present.
type DataQualityReport struct {
	HasPlatformData  bool             `json:"has_platform_data"`
	HasTagData       bool             `json:"has_tag_data"`
	HasClickIDs      bool             `json:"has_click_ids"`
	HasConnectorData bool             `json:"has_connector_data"`
	Recommendations  []Recommendation `json:"recommendations"`
}

// Report is the full response for one attribution request.
type Report struct {
	OrganizationID string             `json:"organization_id"`
	StartDate      string             `json:"start_date"`
	EndDate        string             `json:"end_date"`
	Attributions   []SmartAttribution `json:"attributions"`
	Summary        AttributionSummary `json:"summary"`
	TimeSeries     []TimeSeriesEntry  `json:"time_series"`
	DataQuality    DataQualityReport  `json:"data_quality"`
}
