package model

import "time"

// DateRange is an inclusive calendar-day window. Both bounds are
// truncated to UTC midnight by NewDateRange.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateRange builds a DateRange from two instants, truncating to UTC days.
func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: Day(start), End: Day(end)}
}

// Days returns the inclusive number of calendar days, or 0 when End < Start.
func (r DateRange) Days() int {
	if r.End.Before(r.Start) {
		return 0
	}
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// EndExclusive returns the instant just after the last day, for half-open
// SQL predicates.
func (r DateRange) EndExclusive() time.Time {
	return r.End.AddDate(0, 0, 1)
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// PlatformMetricsRow is one ad platform's self-reported totals for a window.
type PlatformMetricsRow struct {
	Platform    string  `json:"platform"`
	Spend       float64 `json:"spend"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Conversions float64 `json:"conversions"`
	Revenue     float64 `json:"revenue"`
}

// UTMRow is tag-observed session performance for one source/medium/campaign.
// An empty UTMSource means the sessions arrived without a source.
type UTMRow struct {
	UTMSource   string  `json:"utm_source"`
	UTMMedium   string  `json:"utm_medium"`
	UTMCampaign string  `json:"utm_campaign"`
	Sessions    int64   `json:"sessions"`
	Conversions float64 `json:"conversions"`
	Revenue     float64 `json:"revenue"`
}

// ConnectorRow is ground-truth new-conversion revenue from one payment or
// e-commerce integration.
type ConnectorRow struct {
	Source      string  `json:"source"`
	Conversions float64 `json:"conversions"`
	Revenue     float64 `json:"revenue"`
}

// ClickIDStats summarizes click-ID matches for a window.
type ClickIDStats struct {
	HasClickIDs  bool             `json:"has_click_ids"`
	ClickIDCount int64            `json:"click_id_count"`
	ByType       map[string]int64 `json:"by_type"`
}

// FunnelStage is one conversion goal's position in the funnel and the
// visitors each channel delivered to it.
type FunnelStage struct {
	GoalID            string           `json:"goal_id"`
	GoalName          string           `json:"goal_name"`
	FunnelPosition    int              `json:"funnel_position"`
	ConversionRate    float64          `json:"conversion_rate"`
	VisitorsByChannel map[string]int64 `json:"visitors_by_channel"`
}

// DailyUTMRow is tag-observed performance for one source on one day.
type DailyUTMRow struct {
	Date        time.Time `json:"date"`
	UTMSource   string    `json:"utm_source"`
	Sessions    int64     `json:"sessions"`
	Conversions float64   `json:"conversions"`
	Revenue     float64   `json:"revenue"`
}

// DailyConnectorRow is ground-truth conversions for one day, summed across
// connectors.
type DailyConnectorRow struct {
	Date        time.Time `json:"date"`
	Conversions float64   `json:"conversions"`
	Revenue     float64   `json:"revenue"`
}

// DailyPlatformRow is one platform's self-reported figures for one day.
type DailyPlatformRow struct {
	Date        time.Time `json:"date"`
	Platform    string    `json:"platform"`
	Spend       float64   `json:"spend"`
	Conversions float64   `json:"conversions"`
	Revenue     float64   `json:"revenue"`
}

// DailySignals bundles the per-day rows consumed by the time-series reconciler.
type DailySignals struct {
	UTM       []DailyUTMRow       `json:"utm"`
	Connector []DailyConnectorRow `json:"connector"`
	Platform  []DailyPlatformRow  `json:"platform"`
}
