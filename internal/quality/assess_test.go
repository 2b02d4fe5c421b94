package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/attribution-cli/internal/model"
)

func codes(r model.DataQualityReport) []string {
	out := []string{}
	for _, rec := range r.Recommendations {
		out = append(out, rec.Code)
	}
	return out
}

func TestAssess(t *testing.T) {
	clicks := model.ClickIDStats{HasClickIDs: true, ClickIDCount: 3}

	tests := []struct {
		name   string
		set    model.SignalSet
		clicks model.ClickIDStats
		want   []string
	}{
		{
			name: "nothing connected",
			set:  model.SignalSet{},
			want: []string{CodeInstallTag, CodeConnectRevenueSource},
		},
		{
			name: "tag without utm",
			set:  model.SignalSet{Presence: model.Presence{TagInstalled: true, ConnectorSources: 1}},
			want: []string{CodeAddUTMParameters},
		},
		{
			name: "platform spend without tag data or conversions",
			set: model.SignalSet{
				Presence: model.Presence{TagInstalled: true, PlatformRows: 2, ConnectorSources: 1},
				Totals:   model.SignalTotals{PlatformSpend: 500},
			},
			want: []string{CodeAddUTMParameters, CodeVerifyPlatformClaims, CodeCheckConversionTracking, CodeEnableAutoTagging},
		},
		{
			name: "platform data with click ids",
			set: model.SignalSet{
				Presence: model.Presence{TagInstalled: true, UTMRows: 4, PlatformRows: 1, ConnectorSources: 1},
				Totals:   model.SignalTotals{PlatformSpend: 50, PlatformConversions: 2},
			},
			clicks: clicks,
			want:   []string{},
		},
		{
			name: "every rule",
			set: model.SignalSet{
				Presence: model.Presence{PlatformRows: 1},
				Totals:   model.SignalTotals{PlatformSpend: 10},
			},
			want: []string{
				CodeInstallTag, CodeConnectRevenueSource, CodeVerifyPlatformClaims,
				CodeCheckConversionTracking, CodeEnableAutoTagging,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, codes(Assess(tt.set, tt.clicks)))
		})
	}
}

func TestAssess_PresenceFlags(t *testing.T) {
	set := model.SignalSet{Presence: model.Presence{TagInstalled: true, UTMRows: 2, PlatformRows: 1, ConnectorSources: 2}}
	r := Assess(set, model.ClickIDStats{HasClickIDs: true})

	assert.True(t, r.HasPlatformData)
	assert.True(t, r.HasTagData)
	assert.True(t, r.HasClickIDs)
	assert.True(t, r.HasConnectorData)

	empty := Assess(model.SignalSet{}, model.ClickIDStats{})
	assert.False(t, empty.HasPlatformData)
	assert.False(t, empty.HasTagData)
	assert.False(t, empty.HasClickIDs)
	assert.False(t, empty.HasConnectorData)
}

func TestAssess_MessagesSet(t *testing.T) {
	for _, r := range rules {
		assert.NotEmpty(t, r.message, r.code)
	}
	assert.Len(t, rules, 6)
}
