package loader

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/attribution-cli/internal/model"
)

// Defaults applied to missing event fields.
const (
	DefaultEventType = "conversion"
	DefaultCurrency  = "USD"
	DefaultUserID    = "unknown"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02",
}

// Normalize turns a raw record into an event for orgID. Missing identifiers
// are generated with newID and a missing timestamp becomes now.
func Normalize(rec Record, orgID string, now time.Time, newID func() string) (model.ConversionEvent, error) {
	ev := model.ConversionEvent{
		ID:              orDefault(rec["id"], newID),
		OrganizationID:  orgID,
		EventID:         orDefault(rec["event_id"], newID),
		EventType:       orValue(rec["event_type"], DefaultEventType),
		Currency:        strings.ToUpper(orValue(rec["currency"], DefaultCurrency)),
		UserID:          orValue(rec["user_id"], DefaultUserID),
		SessionID:       orDefault(rec["session_id"], newID),
		UTMSource:       rec["utm_source"],
		UTMMedium:       rec["utm_medium"],
		UTMCampaign:     rec["utm_campaign"],
		DeviceType:      rec["device_type"],
		Browser:         rec["browser"],
		Country:         rec["country"],
		AttributionPath: rec["attribution_path"],
	}

	if raw, ok := rec["timestamp"]; ok {
		ts, err := parseTimestamp(raw)
		if err != nil {
			return model.ConversionEvent{}, err
		}
		ev.Timestamp = ts
	} else {
		ev.Timestamp = now.UTC()
	}

	if raw, ok := rec["event_value"]; ok {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return model.ConversionEvent{}, eris.Errorf("loader: event_value %q is not numeric", raw)
		}
		ev.EventValue = v
	}

	return ev, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, eris.Errorf("loader: unrecognized timestamp %q", raw)
}

func orValue(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDefault(v string, gen func() string) string {
	if v == "" {
		return gen()
	}
	return v
}
