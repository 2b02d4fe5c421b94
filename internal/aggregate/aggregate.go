// Package aggregate fans out to the signal sources for one organization and
// window and merges their rows into per-channel evidence.
package aggregate

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/attribution-cli/internal/model"
	"github.com/sells-group/attribution-cli/internal/source"
)

// Aggregator builds SignalSets from a source.Reader.
type Aggregator struct {
	reader  source.Reader
	timeout time.Duration
}

// New creates an Aggregator. A non-positive timeout leaves reads bounded
// only by the caller's context.
func New(reader source.Reader, timeout time.Duration) *Aggregator {
	return &Aggregator{reader: reader, timeout: timeout}
}

// Sources holds one result per signal source, as read for a single window.
type Sources struct {
	Platform  source.Result[[]model.PlatformMetricsRow]
	UTM       source.Result[[]model.UTMRow]
	Connector source.Result[[]model.ConnectorRow]
	ClickIDs  source.Result[model.ClickIDStats]
	Funnel    source.Result[[]model.FunnelStage]
}

// ResolveTag looks up the organization's tracking tag. An empty string means
// no tag is installed.
func (a *Aggregator) ResolveTag(ctx context.Context, orgID string) string {
	rctx, cancel := a.bounded(ctx)
	defer cancel()
	return a.reader.OrgTag(rctx, orgID).Or("")
}

// Aggregate resolves the tag and collects every source for the window.
func (a *Aggregator) Aggregate(ctx context.Context, orgID string, rng model.DateRange) model.SignalSet {
	return a.Collect(ctx, orgID, a.ResolveTag(ctx, orgID), rng)
}

// Collect reads the five signal sources concurrently using an already
// resolved tag and merges them. Source failures are absorbed by the reader.
func (a *Aggregator) Collect(ctx context.Context, orgID, tag string, rng model.DateRange) model.SignalSet {
	var in Sources

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rctx, cancel := a.bounded(gCtx)
		defer cancel()
		in.Platform = a.reader.PlatformMetrics(rctx, orgID, rng)
		return nil
	})

	g.Go(func() error {
		rctx, cancel := a.bounded(gCtx)
		defer cancel()
		in.Connector = a.reader.ConnectorRevenue(rctx, orgID, rng)
		return nil
	})

	g.Go(func() error {
		rctx, cancel := a.bounded(gCtx)
		defer cancel()
		in.ClickIDs = a.reader.ClickIDs(rctx, orgID, rng)
		return nil
	})

	if tag != "" {
		g.Go(func() error {
			rctx, cancel := a.bounded(gCtx)
			defer cancel()
			in.UTM = a.reader.UTMPerformance(rctx, tag, rng)
			return nil
		})

		g.Go(func() error {
			rctx, cancel := a.bounded(gCtx)
			defer cancel()
			in.Funnel = a.reader.Funnel(rctx, orgID, rng)
			return nil
		})
	}

	_ = g.Wait()

	set := Build(orgID, rng, tag, in)
	zap.L().Debug("aggregate: signals collected",
		zap.String("org_id", orgID),
		zap.Bool("tag_installed", tag != ""),
		zap.Int("channels", len(set.Channels)),
		zap.Float64("connector_conversions", set.Totals.ConnectorConversions),
	)
	return set
}

// FetchDaily reads the three per-day sources concurrently.
func (a *Aggregator) FetchDaily(ctx context.Context, orgID, tag string, rng model.DateRange) model.DailySignals {
	var out model.DailySignals

	g, gCtx := errgroup.WithContext(ctx)

	if tag != "" {
		g.Go(func() error {
			rctx, cancel := a.bounded(gCtx)
			defer cancel()
			out.UTM = a.reader.DailyUTM(rctx, tag, rng).Value()
			return nil
		})
	}

	g.Go(func() error {
		rctx, cancel := a.bounded(gCtx)
		defer cancel()
		out.Connector = a.reader.DailyConnector(rctx, orgID, rng).Value()
		return nil
	})

	g.Go(func() error {
		rctx, cancel := a.bounded(gCtx)
		defer cancel()
		out.Platform = a.reader.DailyPlatform(rctx, orgID, rng).Value()
		return nil
	})

	_ = g.Wait()
	return out
}

func (a *Aggregator) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

// channelAcc accumulates one channel while rows are merged.
type channelAcc struct {
	signals     model.ChannelSignals
	clickTypes  map[string]bool
	campaigns   map[string]bool
	utmRows     int
	platRows    int
	bestMedium  string
	bestSession int64
}

// Build merges source results into a SignalSet. It is pure: the same
// inputs always produce the same output, with channels sorted by key.
func Build(orgID string, rng model.DateRange, tag string, in Sources) model.SignalSet {
	accs := make(map[string]*channelAcc)
	get := func(key string) *channelAcc {
		acc, ok := accs[key]
		if !ok {
			acc = &channelAcc{
				signals:    model.ChannelSignals{Channel: key},
				clickTypes: make(map[string]bool),
				campaigns:  make(map[string]bool),
			}
			accs[key] = acc
		}
		return acc
	}

	set := model.SignalSet{
		OrganizationID: orgID,
		Range:          rng,
		OrgTag:         tag,
	}

	platformRows := in.Platform.Value()
	for _, p := range platformRows {
		acc := get(NormalizeChannel(p.Platform))
		acc.platRows++
		s := &acc.signals
		s.Spend += nonNegative(p.Spend)
		s.Impressions += max(p.Impressions, 0)
		s.Clicks += max(p.Clicks, 0)
		s.PlatformConversions += nonNegative(p.Conversions)
		s.PlatformRevenue += nonNegative(p.Revenue)
	}

	// UTM and funnel evidence only exists when the tag is installed.
	var utmRows []model.UTMRow
	var stages []model.FunnelStage
	if tag != "" {
		utmRows = in.UTM.Value()
		stages = in.Funnel.Value()
	}
	for _, u := range utmRows {
		acc := get(NormalizeChannel(u.UTMSource))
		s := &acc.signals
		sessions := max(u.Sessions, 0)
		s.Sessions += sessions
		s.UTMConversions += nonNegative(u.Conversions)
		s.UTMRevenue += nonNegative(u.Revenue)

		acc.utmRows++
		acc.campaigns[u.UTMCampaign] = true
		if u.UTMMedium != "" {
			if acc.bestMedium == "" || sessions > acc.bestSession ||
				(sessions == acc.bestSession && u.UTMMedium < acc.bestMedium) {
				acc.bestMedium = u.UTMMedium
				acc.bestSession = sessions
			}
		}
	}

	clicks := in.ClickIDs.Value()
	for kind, count := range clicks.ByType {
		if count <= 0 {
			continue
		}
		ch, ok := ClickIDChannel(kind)
		if !ok {
			continue
		}
		acc := get(ch)
		acc.signals.ClickIDCount += count
		acc.clickTypes[strings.ToLower(kind)] = true
	}

	connectorRows := in.Connector.Value()
	var sourceNames []string
	seenSource := make(map[string]bool)
	for _, c := range connectorRows {
		set.Totals.ConnectorConversions += nonNegative(c.Conversions)
		set.Totals.ConnectorRevenue += nonNegative(c.Revenue)
		if c.Source != "" && !seenSource[c.Source] {
			seenSource[c.Source] = true
			sourceNames = append(sourceNames, c.Source)
		}
	}
	sort.Strings(sourceNames)
	set.ConnectorSources = sourceNames

	for _, st := range stages {
		rate := clamp01(st.ConversionRate)
		perChannel := make(map[string]int64)
		for raw, visitors := range st.VisitorsByChannel {
			if visitors > 0 {
				perChannel[NormalizeChannel(raw)] += visitors
			}
		}
		for key, visitors := range perChannel {
			acc, ok := accs[key]
			if !ok {
				continue
			}
			acc.signals.Funnel = append(acc.signals.Funnel, model.FunnelTouch{
				StagePosition:       st.FunnelPosition,
				StageConversionRate: rate,
				VisitorsAtStage:     visitors,
			})
		}
	}

	keys := make([]string, 0, len(accs))
	for k := range accs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	set.Channels = make([]model.ChannelSignals, 0, len(keys))
	for _, k := range keys {
		acc := accs[k]
		s := acc.signals
		// A channel is platform-matched only when platform metrics were read for it.
		if acc.platRows > 0 {
			s.Platform = ptr(k)
		}
		if acc.bestMedium != "" {
			s.Medium = ptr(acc.bestMedium)
		}
		if acc.utmRows > 0 && len(acc.campaigns) == 1 {
			for c := range acc.campaigns {
				if c != "" {
					s.Campaign = ptr(c)
				}
			}
		}
		s.ClickIDTypes = sortedKeys(acc.clickTypes)
		sort.SliceStable(s.Funnel, func(i, j int) bool {
			return s.Funnel[i].StagePosition < s.Funnel[j].StagePosition
		})

		set.Totals.UTMSessions += s.Sessions
		set.Totals.UTMConversions += s.UTMConversions
		set.Totals.UTMRevenue += s.UTMRevenue
		set.Totals.PlatformSpend += s.Spend
		set.Totals.PlatformConversions += s.PlatformConversions
		set.Channels = append(set.Channels, s)
	}
	set.Totals.ClickIDs = max(clicks.ClickIDCount, 0)

	set.Presence = model.Presence{
		TagInstalled:     tag != "",
		PlatformRows:     len(platformRows),
		UTMRows:          len(utmRows),
		ConnectorSources: len(set.ConnectorSources),
		FunnelStages:     len(stages),
		ClickIDs:         clicks,
	}
	return set
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func ptr(s string) *string { return &s }
