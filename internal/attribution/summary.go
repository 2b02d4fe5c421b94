package attribution

import "github.com/sells-group/attribution-cli/internal/model"

// Summarize rolls rows up into headline totals. Every ratio falls back to
// zero when its denominator is zero.
func Summarize(rows []model.SmartAttribution, totals model.SignalTotals) model.AttributionSummary {
	s := model.AttributionSummary{
		SignalBreakdown:      make(map[model.SignalType]model.SignalBreakdown),
		ConnectorConversions: round2(totals.ConnectorConversions),
		ConnectorRevenue:     round2(totals.ConnectorRevenue),
	}

	var independent float64
	for _, r := range rows {
		s.TotalConversions += r.Conversions
		s.TotalRevenue += r.Revenue
		if r.Channel != UnattributedChannel {
			s.ChannelCount++
		}
		if r.SignalType != model.SignalPlatformOnly && r.SignalType != model.SignalDirect {
			independent += r.Conversions
		}
		b := s.SignalBreakdown[r.SignalType]
		b.Count++
		b.Conversions += r.Conversions
		s.SignalBreakdown[r.SignalType] = b
	}
	s.TotalConversions = round2(s.TotalConversions)
	s.TotalRevenue = round2(s.TotalRevenue)

	for st, b := range s.SignalBreakdown {
		b.Conversions = round2(b.Conversions)
		if s.TotalConversions > 0 {
			b.Percentage = round2(100 * b.Conversions / s.TotalConversions)
		}
		s.SignalBreakdown[st] = b
	}
	if s.TotalConversions > 0 {
		s.DataCompleteness = round2(100 * independent / s.TotalConversions)
	}
	return s
}
