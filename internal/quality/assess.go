// Package quality inspects which signal sources are present and recommends
// setup steps that would raise attribution confidence.
package quality

import "github.com/sells-group/attribution-cli/internal/model"

// Recommendation codes, in the order they are evaluated.
const (
	CodeInstallTag              = "install_tag"
	CodeAddUTMParameters        = "add_utm_parameters"
	CodeConnectRevenueSource    = "connect_revenue_source"
	CodeVerifyPlatformClaims    = "verify_platform_claims"
	CodeCheckConversionTracking = "check_conversion_tracking"
	CodeEnableAutoTagging       = "enable_auto_tagging"
)

type rule struct {
	code    string
	message string
	fires   func(set model.SignalSet, clicks model.ClickIDStats) bool
}

var rules = []rule{
	{
		code:    CodeInstallTag,
		message: "Install the tracking tag on your site to observe sessions and conversions directly.",
		fires: func(set model.SignalSet, _ model.ClickIDStats) bool {
			return !set.Presence.TagInstalled
		},
	},
	{
		code:    CodeAddUTMParameters,
		message: "The tracking tag is installed but no UTM-tagged sessions were seen. Add UTM parameters to campaign links.",
		fires: func(set model.SignalSet, _ model.ClickIDStats) bool {
			return set.Presence.TagInstalled && set.Presence.UTMRows == 0
		},
	},
	{
		code:    CodeConnectRevenueSource,
		message: "Connect a payment or e-commerce source so attribution can reconcile against actual revenue.",
		fires: func(set model.SignalSet, _ model.ClickIDStats) bool {
			return set.Presence.ConnectorSources == 0
		},
	},
	{
		code:    CodeVerifyPlatformClaims,
		message: "Ad platforms report spend but no UTM data exists to verify their claims. Add UTM parameters to paid campaigns.",
		fires: func(set model.SignalSet, _ model.ClickIDStats) bool {
			return set.Totals.PlatformSpend > 0 && set.Presence.UTMRows == 0
		},
	},
	{
		code:    CodeCheckConversionTracking,
		message: "Ad platforms report spend but no conversions. Check conversion tracking in your ad accounts.",
		fires: func(set model.SignalSet, _ model.ClickIDStats) bool {
			return set.Totals.PlatformSpend > 0 && set.Totals.PlatformConversions == 0
		},
	},
	{
		code:    CodeEnableAutoTagging,
		message: "No click IDs were matched despite ad platform activity. Enable auto-tagging (gclid, fbclid) in your ad accounts.",
		fires: func(set model.SignalSet, clicks model.ClickIDStats) bool {
			return !clicks.HasClickIDs && set.Presence.PlatformRows > 0
		},
	},
}

// Assess reports source presence and the recommendations that apply. Every
// rule is independent and the output follows rule order.
func Assess(set model.SignalSet, clicks model.ClickIDStats) model.DataQualityReport {
	report := model.DataQualityReport{
		HasPlatformData:  set.Presence.PlatformRows > 0,
		HasTagData:       set.Presence.TagInstalled && set.Presence.UTMRows > 0,
		HasClickIDs:      clicks.HasClickIDs,
		HasConnectorData: set.Presence.ConnectorSources > 0,
		Recommendations:  []model.Recommendation{},
	}
	for _, r := range rules {
		if r.fires(set, clicks) {
			report.Recommendations = append(report.Recommendations, model.Recommendation{
				Code:    r.code,
				Message: r.message,
			})
		}
	}
	return report
}
