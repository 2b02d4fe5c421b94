package model

// FunnelTouch records a funnel stage a channel's visitors reached.
type FunnelTouch struct {
	StagePosition       int     `json:"stage_position"`
	StageConversionRate float64 `json:"stage_conversion_rate"`
	VisitorsAtStage     int64   `json:"visitors_at_stage"`
}

// ChannelSignals is the merged evidence for one canonical channel over one
// reporting window. Numeric fields are never nil: a missing source is zero
// evidence.
type ChannelSignals struct {
	Channel  string  `json:"channel"`
	Platform *string `json:"platform"`
	Medium   *string `json:"medium"`
	Campaign *string `json:"campaign"`

	ClickIDCount int64    `json:"click_id_count"`
	ClickIDTypes []string `json:"click_id_types"`

	Sessions       int64   `json:"sessions"`
	UTMConversions float64 `json:"utm_conversions"`
	UTMRevenue     float64 `json:"utm_revenue"`

	Spend               float64 `json:"spend"`
	Impressions         int64   `json:"impressions"`
	Clicks              int64   `json:"clicks"`
	PlatformConversions float64 `json:"platform_conversions"`
	PlatformRevenue     float64 `json:"platform_revenue"`

	ConnectorConversions float64 `json:"connector_conversions"`
	ConnectorRevenue     float64 `json:"connector_revenue"`
	ConnectorSource      string  `json:"connector_source"`

	Funnel []FunnelTouch `json:"funnel"`
}

// HasTagEvidence reports whether the channel was observed by the site tag.
func (c ChannelSignals) HasTagEvidence() bool {
	return c.Sessions > 0 || c.UTMConversions > 0 || c.ClickIDCount > 0
}

// HasPlatformClaim reports whether the ad platform spent or claimed
// conversions for this channel.
func (c ChannelSignals) HasPlatformClaim() bool {
	return c.Spend > 0 || c.PlatformConversions > 0 || c.PlatformRevenue > 0
}

// HasEvidence reports whether any source contributed to the channel.
func (c ChannelSignals) HasEvidence() bool {
	return c.HasTagEvidence() || c.HasPlatformClaim() ||
		c.Impressions > 0 || c.Clicks > 0 ||
		c.ConnectorConversions > 0 || c.ConnectorRevenue > 0
}

// FunnelBonus is Σ stagePosition × stageConversionRate over reached stages.
func (c ChannelSignals) FunnelBonus() float64 {
	var bonus float64
	for _, t := range c.Funnel {
		if t.VisitorsAtStage <= 0 {
			continue
		}
		bonus += float64(t.StagePosition) * t.StageConversionRate
	}
	return bonus
}

// FunnelWeight is sessions × (1 + FunnelBonus).
func (c ChannelSignals) FunnelWeight() float64 {
	return float64(c.Sessions) * (1 + c.FunnelBonus())
}

// Presence records which signal sources returned data, for the quality
// assessor.
type Presence struct {
	TagInstalled     bool         `json:"tag_installed"`
	PlatformRows     int          `json:"platform_rows"`
	UTMRows          int          `json:"utm_rows"`
	ConnectorSources int          `json:"connector_sources"`
	FunnelStages     int          `json:"funnel_stages"`
	ClickIDs         ClickIDStats `json:"click_ids"`
}

// SignalTotals are window-wide sums across all channels.
type SignalTotals struct {
	ClickIDs             int64   `json:"total_click_ids"`
	UTMSessions          int64   `json:"total_utm_sessions"`
	UTMConversions       float64 `json:"total_utm_conversions"`
	UTMRevenue           float64 `json:"total_utm_revenue"`
	PlatformSpend        float64 `json:"total_platform_spend"`
	PlatformConversions  float64 `json:"total_platform_conversions"`
	ConnectorConversions float64 `json:"total_connector_conversions"`
	ConnectorRevenue     float64 `json:"total_connector_revenue"`
}

// SignalSet is the aggregated evidence for one organization and window.
// It is built once per request and treated as read-only afterwards.
type SignalSet struct {
	OrganizationID   string           `json:"organization_id"`
	Range            DateRange        `json:"range"`
	OrgTag           string           `json:"org_tag,omitempty"`
	Channels         []ChannelSignals `json:"channels"`
	Totals           SignalTotals     `json:"totals"`
	ConnectorSources []string         `json:"connector_sources"`
	Presence         Presence         `json:"presence"`
}

// HasGroundTruth reports whether connector conversions or revenue exist.
func (s SignalSet) HasGroundTruth() bool {
	return s.Totals.ConnectorConversions > 0 || s.Totals.ConnectorRevenue > 0
}
