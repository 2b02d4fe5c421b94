// Package timeseries reconciles per-day signals into a gap-free daily
// series.
package timeseries

import (
	"math"
	"sort"
	"time"

	"github.com/sells-group/attribution-cli/internal/aggregate"
	"github.com/sells-group/attribution-cli/internal/model"
)

// Revenue and channel sources reported on each entry.
const (
	RevenueConnector = "connector"
	RevenueUTM       = "utm"
	RevenueNone      = "none"

	ChannelSourceUTM      = "utm"
	ChannelSourcePlatform = "platform"
)

const dateLayout = "2006-01-02"

type dayChannel struct {
	utmConv, utmRev                  float64
	spend, platformConv, platformRev float64
	hasUTM, hasPlatform              bool
}

type day struct {
	utmConv, utmRev   float64
	connConv, connRev float64
	channels          map[string]*dayChannel
}

// Reconcile merges per-day UTM, connector and platform rows into one entry
// per calendar day from start to end inclusive. Days without data are
// zero-filled. An end before start yields an empty series.
//
// A day's conversions are the larger of the tag and connector counts, never
// their sum. Revenue prefers the connector when it recorded any.
func Reconcile(utm []model.DailyUTMRow, connector []model.DailyConnectorRow, platform []model.DailyPlatformRow, start, end time.Time) []model.TimeSeriesEntry {
	first, last := model.Day(start), model.Day(end)
	if last.Before(first) {
		return []model.TimeSeriesEntry{}
	}

	days := make(map[string]*day)
	bucket := func(t time.Time) *day {
		d := model.Day(t)
		if d.Before(first) || d.After(last) {
			return nil
		}
		key := d.Format(dateLayout)
		b, ok := days[key]
		if !ok {
			b = &day{channels: make(map[string]*dayChannel)}
			days[key] = b
		}
		return b
	}
	channel := func(b *day, key string) *dayChannel {
		c, ok := b.channels[key]
		if !ok {
			c = &dayChannel{}
			b.channels[key] = c
		}
		return c
	}

	for _, r := range utm {
		b := bucket(r.Date)
		if b == nil {
			continue
		}
		conv, rev := nonNegative(r.Conversions), nonNegative(r.Revenue)
		b.utmConv += conv
		b.utmRev += rev
		c := channel(b, aggregate.NormalizeChannel(r.UTMSource))
		c.utmConv += conv
		c.utmRev += rev
		c.hasUTM = true
	}

	for _, r := range connector {
		b := bucket(r.Date)
		if b == nil {
			continue
		}
		b.connConv += nonNegative(r.Conversions)
		b.connRev += nonNegative(r.Revenue)
	}

	for _, r := range platform {
		b := bucket(r.Date)
		if b == nil {
			continue
		}
		c := channel(b, aggregate.NormalizeChannel(r.Platform))
		c.spend += nonNegative(r.Spend)
		c.platformConv += nonNegative(r.Conversions)
		c.platformRev += nonNegative(r.Revenue)
		c.hasPlatform = true
	}

	n := int(last.Sub(first).Hours()/24) + 1
	out := make([]model.TimeSeriesEntry, 0, n)
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)
		entry := model.TimeSeriesEntry{
			Date:          key,
			RevenueSource: RevenueNone,
			Channels:      []model.DailyChannel{},
		}
		if b, ok := days[key]; ok {
			fill(&entry, b)
		}
		out = append(out, entry)
	}
	return out
}

func fill(entry *model.TimeSeriesEntry, b *day) {
	entry.UTMConversions = round2(b.utmConv)
	entry.ConnectorConversions = round2(b.connConv)
	entry.TotalConversions = round2(math.Max(b.utmConv, b.connConv))

	switch {
	case b.connRev > 0:
		entry.TotalRevenue = round2(b.connRev)
		entry.RevenueSource = RevenueConnector
	case b.utmRev > 0:
		entry.TotalRevenue = round2(b.utmRev)
		entry.RevenueSource = RevenueUTM
	}

	keys := make([]string, 0, len(b.channels))
	for key := range b.channels {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sum float64
	for _, key := range keys {
		c := b.channels[key]
		dc := model.DailyChannel{Channel: key, Spend: round2(c.spend), Source: ChannelSourceUTM}
		switch {
		case c.utmConv > 0:
			dc.Conversions = round2(c.utmConv)
			dc.Revenue = round2(c.utmRev)
		case c.hasPlatform && (c.spend > 0 || c.platformConv > 0):
			dc.Conversions = round2(c.platformConv)
			dc.Revenue = round2(c.platformRev)
			dc.Source = ChannelSourcePlatform
		case !c.hasUTM:
			dc.Source = ChannelSourcePlatform
		}
		sum += dc.Conversions
		entry.Channels = append(entry.Channels, dc)
	}

	for i := range entry.Channels {
		if sum > 0 {
			entry.Channels[i].Share = math.Round(entry.Channels[i].Conversions/sum*10000) / 10000
		}
	}
	sort.SliceStable(entry.Channels, func(i, j int) bool {
		a, c := entry.Channels[i], entry.Channels[j]
		if a.Conversions != c.Conversions {
			return a.Conversions > c.Conversions
		}
		return a.Channel < c.Channel
	})
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
