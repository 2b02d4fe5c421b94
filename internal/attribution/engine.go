// Package attribution reconciles merged channel evidence into one
// attribution row per channel, each with a confidence score and an
// explanation built from the numbers behind it.
package attribution

import (
	"math"
	"sort"
	"strings"

	"github.com/sells-group/attribution-cli/internal/model"
)

// UnattributedChannel is the channel key of the remainder row that
// reconciles attributed totals to connector ground truth.
const UnattributedChannel = "(unattributed)"

// Engine applies the signal hierarchy. It holds no per-request state and is
// safe for concurrent use.
type Engine struct {
	policy Policy
}

// NewEngine creates an Engine with the given policy.
func NewEngine(p Policy) *Engine {
	return &Engine{policy: p}
}

// Attribute builds attribution rows and the summary for set. The same set
// always yields the same result.
func (e *Engine) Attribute(set model.SignalSet) model.AttributionResult {
	var (
		rows     []model.SmartAttribution
		direct   []model.ChannelSignals
		pending  []model.ChannelSignals
		platform []model.ChannelSignals
	)
	for _, ch := range set.Channels {
		switch {
		case ch.UTMConversions > 0:
			direct = append(direct, ch)
		case ch.HasTagEvidence():
			pending = append(pending, ch)
		case ch.HasPlatformClaim() || ch.Impressions > 0 || ch.Clicks > 0:
			platform = append(platform, ch)
		}
	}

	// Step 1: tag-observed conversions are reported as-is.
	var claimedConv, claimedRev float64
	for _, ch := range direct {
		rows = append(rows, e.directRow(ch))
		claimedConv += ch.UTMConversions
		claimedRev += ch.UTMRevenue
	}

	// Step 2: distribute the ground truth the direct rows did not claim
	// across the remaining channels by funnel-weighted session share.
	var exposure []model.ChannelSignals
	if set.HasGroundTruth() && set.Totals.UTMSessions > 0 {
		var pool []model.ChannelSignals
		var totalWeight float64
		for _, ch := range pending {
			if w := ch.FunnelWeight(); w > 0 {
				pool = append(pool, ch)
				totalWeight += w
			} else {
				exposure = append(exposure, ch)
			}
		}
		residualConv := math.Max(0, round2(set.Totals.ConnectorConversions-claimedConv))
		residualRev := math.Max(0, round2(set.Totals.ConnectorRevenue-claimedRev))
		// Nothing left to share when the direct rows claimed all ground truth.
		if totalWeight > 0 && (residualConv > 0 || residualRev > 0) {
			sources := strings.Join(set.ConnectorSources, ",")
			for _, ch := range pool {
				share := ch.FunnelWeight() / totalWeight
				rows = append(rows, e.probabilisticRow(ch, share, residualConv, residualRev, sources))
			}
		} else {
			exposure = append(exposure, pool...)
		}
	} else {
		exposure = pending
	}

	// Step 3: visible exposure without fabricated conversions.
	for _, ch := range exposure {
		rows = append(rows, e.exposureRow(ch))
	}

	// Step 4: platforms the tag never saw keep their self-reported numbers.
	for _, ch := range platform {
		rows = append(rows, e.platformRow(ch))
	}

	// Step 5: reconcile to ground truth.
	if set.HasGroundTruth() {
		var sumConv, sumRev float64
		for _, r := range rows {
			sumConv += r.Conversions
			sumRev += r.Revenue
		}
		leftConv := round2(set.Totals.ConnectorConversions - sumConv)
		leftRev := round2(set.Totals.ConnectorRevenue - sumRev)
		tol := e.policy.RemainderTolerance
		if leftConv > tol || leftRev > tol {
			rows = append(rows, e.remainderRow(set, math.Max(0, leftConv), math.Max(0, leftRev)))
		}
	}

	sortRows(rows)
	if rows == nil {
		rows = []model.SmartAttribution{}
	}
	return model.AttributionResult{
		Attributions: rows,
		Summary:      Summarize(rows, set.Totals),
	}
}

func (e *Engine) directRow(ch model.ChannelSignals) model.SmartAttribution {
	var st model.SignalType
	var q model.DataQuality
	switch {
	case ch.ClickIDCount > 0:
		st, q = model.SignalClickID, model.QualityVerified
	case ch.Platform != nil && ch.Spend > 0:
		st, q = model.SignalUTMWithSpend, model.QualityCorroborated
	case ch.Platform != nil:
		st, q = model.SignalUTMNoSpend, model.QualitySingleSource
	default:
		st, q = model.SignalUTMOnly, model.QualitySingleSource
	}
	row := newRow(ch, st, q, e.policy.Base(st))
	row.Conversions = round2(ch.UTMConversions)
	row.Revenue = round2(ch.UTMRevenue)
	row.Explanation = explainDirect(ch, st)
	return row
}

func (e *Engine) probabilisticRow(ch model.ChannelSignals, share, conv, rev float64, sources string) model.SmartAttribution {
	hasSpend := ch.Spend > 0
	st := model.SignalUTMOnly
	if hasSpend {
		st = model.SignalUTMWithSpend
	}
	bonus := ch.FunnelBonus()
	confidence := e.policy.probabilisticConfidence(hasSpend, bonus > 0)

	snapshot := ch
	snapshot.ConnectorConversions = round2(conv * share)
	snapshot.ConnectorRevenue = round2(rev * share)
	snapshot.ConnectorSource = sources

	row := newRow(snapshot, st, model.QualityEstimated, confidence)
	row.Conversions = snapshot.ConnectorConversions
	row.Revenue = snapshot.ConnectorRevenue
	row.Explanation = explainProbabilistic(ch, share, conv, bonus)
	return row
}

func (e *Engine) exposureRow(ch model.ChannelSignals) model.SmartAttribution {
	row := newRow(ch, model.SignalUTMOnly, model.QualityEstimated, e.policy.ExposureOnly)
	row.Explanation = explainExposure(ch)
	return row
}

func (e *Engine) platformRow(ch model.ChannelSignals) model.SmartAttribution {
	row := newRow(ch, model.SignalPlatformOnly, model.QualitySingleSource, e.policy.Base(model.SignalPlatformOnly))
	if row.Platform == nil {
		row.Platform = strPtr(ch.Channel)
	}
	row.Conversions = round2(ch.PlatformConversions)
	row.Revenue = round2(ch.PlatformRevenue)
	row.Explanation = explainPlatform(ch)
	return row
}

func (e *Engine) remainderRow(set model.SignalSet, conv, rev float64) model.SmartAttribution {
	signals := model.ChannelSignals{
		Channel:              UnattributedChannel,
		ConnectorConversions: round2(set.Totals.ConnectorConversions),
		ConnectorRevenue:     round2(set.Totals.ConnectorRevenue),
		ConnectorSource:      strings.Join(set.ConnectorSources, ","),
	}
	row := newRow(signals, model.SignalDirect, model.QualityEstimated, e.policy.Base(model.SignalDirect))
	row.Conversions = conv
	row.Revenue = rev
	row.Explanation = explainRemainder(conv, rev, set.ConnectorSources)
	return row
}

func newRow(ch model.ChannelSignals, st model.SignalType, q model.DataQuality, confidence int) model.SmartAttribution {
	return model.SmartAttribution{
		Channel:     ch.Channel,
		Platform:    ch.Platform,
		Medium:      ch.Medium,
		Campaign:    ch.Campaign,
		Confidence:  clampConfidence(confidence),
		SignalType:  st,
		DataQuality: q,
		Signals:     ch,
	}
}

// sortRows orders by revenue, confidence and conversions (all descending),
// then by channel key.
func sortRows(rows []model.SmartAttribution) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Revenue != b.Revenue {
			return a.Revenue > b.Revenue
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Conversions != b.Conversions {
			return a.Conversions > b.Conversions
		}
		return a.Channel < b.Channel
	})
}

func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}

func clampConfidence(c int) int {
	return max(0, min(100, c))
}

func strPtr(s string) *string { return &s }
