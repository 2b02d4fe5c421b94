package model

import "time"

// ConversionEvent is one raw tracked event as accepted by the bulk loader.
type ConversionEvent struct {
	ID              string    `json:"id"`
	OrganizationID  string    `json:"organization_id"`
	EventID         string    `json:"event_id"`
	Timestamp       time.Time `json:"timestamp"`
	EventType       string    `json:"event_type"`
	EventValue      float64   `json:"event_value"`
	Currency        string    `json:"currency"`
	UserID          string    `json:"user_id"`
	SessionID       string    `json:"session_id"`
	UTMSource       string    `json:"utm_source,omitempty"`
	UTMMedium       string    `json:"utm_medium,omitempty"`
	UTMCampaign     string    `json:"utm_campaign,omitempty"`
	DeviceType      string    `json:"device_type,omitempty"`
	Browser         string    `json:"browser,omitempty"`
	Country         string    `json:"country,omitempty"`
	AttributionPath string    `json:"attribution_path,omitempty"`
}

// ConversionEventColumns is the column order used when writing events.
var ConversionEventColumns = []string{
	"id", "organization_id", "event_id", "occurred_at", "event_type",
	"event_value", "currency", "user_id", "session_id",
	"utm_source", "utm_medium", "utm_campaign",
	"device_type", "browser", "country", "attribution_path",
}

// Values returns the event's fields in ConversionEventColumns order.
func (e ConversionEvent) Values() []any {
	return []any{
		e.ID, e.OrganizationID, e.EventID, e.Timestamp, e.EventType,
		e.EventValue, e.Currency, e.UserID, e.SessionID,
		e.UTMSource, e.UTMMedium, e.UTMCampaign,
		e.DeviceType, e.Browser, e.Country, e.AttributionPath,
	}
}
