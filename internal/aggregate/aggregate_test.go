package aggregate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/attribution-cli/internal/model"
	"github.com/sells-group/attribution-cli/internal/source"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var testRange = model.NewDateRange(
	time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC),
)

// fakeReader is an in-memory source.Reader. A non-nil fail entry makes that
// source return Empty with the error.
type fakeReader struct {
	tag       string
	platform  []model.PlatformMetricsRow
	utm       []model.UTMRow
	connector []model.ConnectorRow
	clicks    model.ClickIDStats
	funnel    []model.FunnelStage

	dailyUTM       []model.DailyUTMRow
	dailyConnector []model.DailyConnectorRow
	dailyPlatform  []model.DailyPlatformRow

	fail      map[string]error
	utmCalls  atomic.Int32
	sawTags   atomic.Value
	blockOn   string
	blockSeen atomic.Bool
}

func result[T any](f *fakeReader, name string, v T) source.Result[T] {
	if err, ok := f.fail[name]; ok {
		return source.Empty[T](err)
	}
	return source.Ok(v)
}

func (f *fakeReader) wait(ctx context.Context, name string) bool {
	if f.blockOn != name {
		return false
	}
	<-ctx.Done()
	f.blockSeen.Store(true)
	return true
}

func (f *fakeReader) OrgTag(_ context.Context, _ string) source.Result[string] {
	if f.tag == "" {
		return source.Empty[string](nil)
	}
	return result(f, source.NameOrgTag, f.tag)
}

func (f *fakeReader) PlatformMetrics(ctx context.Context, _ string, _ model.DateRange) source.Result[[]model.PlatformMetricsRow] {
	if f.wait(ctx, source.NamePlatform) {
		return source.Empty[[]model.PlatformMetricsRow](ctx.Err())
	}
	return result(f, source.NamePlatform, f.platform)
}

func (f *fakeReader) UTMPerformance(_ context.Context, tag string, _ model.DateRange) source.Result[[]model.UTMRow] {
	f.utmCalls.Add(1)
	f.sawTags.Store(tag)
	return result(f, source.NameUTM, f.utm)
}

func (f *fakeReader) ConnectorRevenue(_ context.Context, _ string, _ model.DateRange) source.Result[[]model.ConnectorRow] {
	return result(f, source.NameConnector, f.connector)
}

func (f *fakeReader) ClickIDs(_ context.Context, _ string, _ model.DateRange) source.Result[model.ClickIDStats] {
	return result(f, source.NameClickIDs, f.clicks)
}

func (f *fakeReader) Funnel(_ context.Context, _ string, _ model.DateRange) source.Result[[]model.FunnelStage] {
	return result(f, source.NameFunnel, f.funnel)
}

func (f *fakeReader) DailyUTM(_ context.Context, _ string, _ model.DateRange) source.Result[[]model.DailyUTMRow] {
	return result(f, source.NameDailyUTM, f.dailyUTM)
}

func (f *fakeReader) DailyConnector(_ context.Context, _ string, _ model.DateRange) source.Result[[]model.DailyConnectorRow] {
	return result(f, source.NameDailyConnector, f.dailyConnector)
}

func (f *fakeReader) DailyPlatform(_ context.Context, _ string, _ model.DateRange) source.Result[[]model.DailyPlatformRow] {
	return result(f, source.NameDailyPlatform, f.dailyPlatform)
}

// channelOf returns the signals for key and whether the set has them.
func channelOf(set model.SignalSet, key string) (model.ChannelSignals, bool) {
	for _, c := range set.Channels {
		if c.Channel == key {
			return c, true
		}
	}
	return model.ChannelSignals{}, false
}

func TestAggregate_MergesSynonymsAndSources(t *testing.T) {
	r := &fakeReader{
		tag: "abc123",
		platform: []model.PlatformMetricsRow{
			{Platform: "google_ads", Spend: 30, Impressions: 1000, Clicks: 40, Conversions: 2, Revenue: 150},
			{Platform: "AdWords", Spend: 20, Impressions: 500, Clicks: 10, Conversions: 1, Revenue: 50},
			{Platform: "meta", Spend: 1000, Conversions: 12, Revenue: 1800},
		},
		utm: []model.UTMRow{
			{UTMSource: "google", UTMMedium: "cpc", UTMCampaign: "spring", Sessions: 8, Conversions: 2, Revenue: 200},
			{UTMSource: "Google", UTMMedium: "display", UTMCampaign: "spring", Sessions: 2, Conversions: 1, Revenue: 100},
			{UTMSource: "fb", UTMMedium: "paid_social", UTMCampaign: "a", Sessions: 25},
			{UTMSource: "instagram", UTMMedium: "paid_social", UTMCampaign: "b", Sessions: 15},
			{UTMSource: "", Sessions: 60},
		},
		connector: []model.ConnectorRow{
			{Source: "stripe", Conversions: 8, Revenue: 700},
			{Source: "shopify", Conversions: 2, Revenue: 300},
		},
		clicks: model.ClickIDStats{
			HasClickIDs:  true,
			ClickIDCount: 7,
			ByType:       map[string]int64{"gclid": 3, "wbraid": 1, "mystery": 3},
		},
	}

	set := New(r, time.Second).Aggregate(context.Background(), "org-1", testRange)

	assert.Equal(t, "org-1", set.OrganizationID)
	assert.Equal(t, "abc123", set.OrgTag)
	require.Len(t, set.Channels, 3)
	assert.Equal(t, []string{DirectChannel, "facebook", "google"},
		[]string{set.Channels[0].Channel, set.Channels[1].Channel, set.Channels[2].Channel})

	g, ok := channelOf(set, "google")
	require.True(t, ok)
	require.NotNil(t, g.Platform)
	assert.Equal(t, "google", *g.Platform)
	assert.InDelta(t, 50.0, g.Spend, 1e-9)
	assert.Equal(t, int64(1500), g.Impressions)
	assert.InDelta(t, 3.0, g.PlatformConversions, 1e-9)
	assert.Equal(t, int64(10), g.Sessions)
	assert.InDelta(t, 3.0, g.UTMConversions, 1e-9)
	assert.InDelta(t, 300.0, g.UTMRevenue, 1e-9)
	require.NotNil(t, g.Medium)
	assert.Equal(t, "cpc", *g.Medium)
	require.NotNil(t, g.Campaign)
	assert.Equal(t, "spring", *g.Campaign)
	assert.Equal(t, int64(4), g.ClickIDCount)
	assert.Equal(t, []string{"gclid", "wbraid"}, g.ClickIDTypes)

	fb, _ := channelOf(set, "facebook")
	assert.Equal(t, int64(40), fb.Sessions)
	assert.Nil(t, fb.Campaign, "mixed campaigns leave campaign unset")
	require.NotNil(t, fb.Medium)
	assert.Equal(t, "paid_social", *fb.Medium)

	direct, _ := channelOf(set, DirectChannel)
	assert.Nil(t, direct.Platform)
	assert.Nil(t, direct.Medium)
	assert.Equal(t, int64(60), direct.Sessions)

	assert.Equal(t, int64(7), set.Totals.ClickIDs)
	assert.Equal(t, int64(110), set.Totals.UTMSessions)
	assert.InDelta(t, 1050.0, set.Totals.PlatformSpend, 1e-9)
	assert.InDelta(t, 10.0, set.Totals.ConnectorConversions, 1e-9)
	assert.InDelta(t, 1000.0, set.Totals.ConnectorRevenue, 1e-9)
	assert.Equal(t, []string{"shopify", "stripe"}, set.ConnectorSources)

	assert.True(t, set.Presence.TagInstalled)
	assert.Equal(t, 3, set.Presence.PlatformRows)
	assert.Equal(t, 5, set.Presence.UTMRows)
	assert.Equal(t, 2, set.Presence.ConnectorSources)
}

func TestAggregate_NoTagSkipsUTMAndFunnel(t *testing.T) {
	r := &fakeReader{
		utm:      []model.UTMRow{{UTMSource: "google", Sessions: 10, Conversions: 3}},
		platform: []model.PlatformMetricsRow{{Platform: "facebook", Spend: 100, Conversions: 4}},
	}

	set := New(r, time.Second).Aggregate(context.Background(), "org-1", testRange)

	assert.Equal(t, int32(0), r.utmCalls.Load())
	assert.False(t, set.Presence.TagInstalled)
	require.Len(t, set.Channels, 1)
	assert.Equal(t, "facebook", set.Channels[0].Channel)
	assert.Zero(t, set.Totals.UTMSessions)
}

func TestAggregate_SourceFailuresDegrade(t *testing.T) {
	boom := errors.New("boom")
	r := &fakeReader{
		tag:      "abc123",
		platform: []model.PlatformMetricsRow{{Platform: "google", Spend: 50}},
		utm:      []model.UTMRow{{UTMSource: "google", Sessions: 10, Conversions: 3}},
		fail: map[string]error{
			source.NamePlatform:  boom,
			source.NameConnector: boom,
			source.NameClickIDs:  boom,
			source.NameFunnel:    boom,
		},
	}

	set := New(r, time.Second).Aggregate(context.Background(), "org-1", testRange)

	require.Len(t, set.Channels, 1)
	g := set.Channels[0]
	assert.Equal(t, int64(10), g.Sessions)
	assert.Zero(t, g.Spend)
	assert.Zero(t, set.Totals.ConnectorConversions)
	assert.False(t, set.Presence.ClickIDs.HasClickIDs)
	assert.Equal(t, 0, set.Presence.PlatformRows)
}

func TestAggregate_AllSourcesFail(t *testing.T) {
	boom := errors.New("boom")
	r := &fakeReader{
		tag: "abc123",
		fail: map[string]error{
			source.NamePlatform:  boom,
			source.NameUTM:       boom,
			source.NameConnector: boom,
			source.NameClickIDs:  boom,
			source.NameFunnel:    boom,
		},
	}

	set := New(r, time.Second).Aggregate(context.Background(), "org-1", testRange)
	assert.Empty(t, set.Channels)
	assert.Equal(t, model.SignalTotals{}, set.Totals)
}

func TestAggregate_PerSourceTimeout(t *testing.T) {
	r := &fakeReader{
		tag:     "abc123",
		utm:     []model.UTMRow{{UTMSource: "google", Sessions: 4}},
		blockOn: source.NamePlatform,
	}

	set := New(r, 20*time.Millisecond).Aggregate(context.Background(), "org-1", testRange)

	assert.True(t, r.blockSeen.Load())
	require.Len(t, set.Channels, 1)
	assert.Equal(t, int64(4), set.Channels[0].Sessions)
}

func TestBuild_FunnelAttachment(t *testing.T) {
	in := Sources{
		UTM: source.Ok([]model.UTMRow{
			{UTMSource: "facebook", Sessions: 40},
			{UTMSource: "", Sessions: 60},
		}),
		Funnel: source.Ok([]model.FunnelStage{
			{GoalID: "g2", FunnelPosition: 2, ConversionRate: 1.7, VisitorsByChannel: map[string]int64{"meta": 5}},
			{GoalID: "g1", FunnelPosition: 1, ConversionRate: 0.2, VisitorsByChannel: map[string]int64{"fb": 10, "facebook": 20, "email": 3}},
		}),
	}

	set := Build("org-1", testRange, "abc123", in)

	fb, ok := channelOf(set, "facebook")
	require.True(t, ok)
	require.Len(t, fb.Funnel, 2)
	assert.Equal(t, model.FunnelTouch{StagePosition: 1, StageConversionRate: 0.2, VisitorsAtStage: 30}, fb.Funnel[0])
	assert.Equal(t, model.FunnelTouch{StagePosition: 2, StageConversionRate: 1, VisitorsAtStage: 5}, fb.Funnel[1])
	assert.InDelta(t, 2.2, fb.FunnelBonus(), 1e-9)

	_, ok = channelOf(set, "email")
	assert.False(t, ok, "funnel visitors alone do not create a channel")

	direct, _ := channelOf(set, DirectChannel)
	assert.Empty(t, direct.Funnel)
	assert.Equal(t, 2, set.Presence.FunnelStages)
}

func TestBuild_NegativeInputsClamped(t *testing.T) {
	in := Sources{
		Platform: source.Ok([]model.PlatformMetricsRow{{Platform: "google", Spend: -5, Conversions: -1, Impressions: -3}}),
		UTM:      source.Ok([]model.UTMRow{{UTMSource: "google", Sessions: -2, Conversions: -1}}),
	}
	set := Build("org-1", testRange, "abc123", in)
	require.Len(t, set.Channels, 1)
	g := set.Channels[0]
	assert.Zero(t, g.Spend)
	assert.Zero(t, g.Impressions)
	assert.Zero(t, g.Sessions)
	assert.Zero(t, g.UTMConversions)
}

func TestBuild_Deterministic(t *testing.T) {
	in := Sources{
		UTM: source.Ok([]model.UTMRow{
			{UTMSource: "tiktok", Sessions: 3},
			{UTMSource: "bing", Sessions: 2},
			{UTMSource: "newsletter", Sessions: 1},
		}),
		ClickIDs: source.Ok(model.ClickIDStats{ClickIDCount: 3, HasClickIDs: true,
			ByType: map[string]int64{"msclkid": 1, "ttclid": 1, "twclid": 1}}),
	}
	first := Build("org-1", testRange, "t", in)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Build("org-1", testRange, "t", in))
	}
	assert.Equal(t, "microsoft", first.Channels[0].Channel)
	assert.Equal(t, "newsletter", first.Channels[1].Channel)
	assert.Nil(t, first.Channels[1].Platform)
}

func TestFetchDaily(t *testing.T) {
	day := testRange.Start
	r := &fakeReader{
		tag:            "abc123",
		dailyUTM:       []model.DailyUTMRow{{Date: day, UTMSource: "google", Conversions: 5}},
		dailyConnector: []model.DailyConnectorRow{{Date: day, Conversions: 8}},
		dailyPlatform:  []model.DailyPlatformRow{{Date: day, Platform: "google", Spend: 10}},
	}
	a := New(r, time.Second)

	daily := a.FetchDaily(context.Background(), "org-1", "abc123", testRange)
	assert.Len(t, daily.UTM, 1)
	assert.Len(t, daily.Connector, 1)
	assert.Len(t, daily.Platform, 1)

	noTag := a.FetchDaily(context.Background(), "org-1", "", testRange)
	assert.Empty(t, noTag.UTM)
	assert.Len(t, noTag.Connector, 1)
}
