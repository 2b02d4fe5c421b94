package attribution

import (
	"fmt"
	"strings"

	"github.com/sells-group/attribution-cli/internal/model"
)

// Explanations are built only from fields already on the row, so identical
// evidence always produces identical text.

func explainDirect(ch model.ChannelSignals, st model.SignalType) string {
	observed := fmt.Sprintf("%s conversions ($%s revenue) observed by the site tag across %d sessions",
		num(ch.UTMConversions), money(ch.UTMRevenue), ch.Sessions)

	switch st {
	case model.SignalClickID:
		return fmt.Sprintf("%s, verified by %d click IDs (%s).",
			capitalize(observed), ch.ClickIDCount, strings.Join(ch.ClickIDTypes, ", "))
	case model.SignalUTMWithSpend:
		return fmt.Sprintf("%s, corroborated by $%s of %s ad spend.",
			capitalize(observed), money(ch.Spend), deref(ch.Platform))
	case model.SignalUTMNoSpend:
		return fmt.Sprintf("%s; %s reported no ad spend for the period.",
			capitalize(observed), deref(ch.Platform))
	default:
		return fmt.Sprintf("%s; no ad platform data for this source.", capitalize(observed))
	}
}

func explainProbabilistic(ch model.ChannelSignals, share, pool, bonus float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Estimated %s%% share of %s unmatched connector conversions, weighted by %d sessions",
		num(share*100), num(pool), ch.Sessions)
	if bonus > 0 {
		fmt.Fprintf(&b, " and a funnel bonus of %s", num(bonus))
	}
	b.WriteString(".")
	if ch.Spend > 0 {
		fmt.Fprintf(&b, " Platform spend of $%s corroborates the channel.", money(ch.Spend))
	}
	return b.String()
}

func explainExposure(ch model.ChannelSignals) string {
	if ch.Sessions == 0 && ch.ClickIDCount > 0 {
		return fmt.Sprintf("%d click IDs matched with no sessions or conversions to attribute.", ch.ClickIDCount)
	}
	return fmt.Sprintf("%d sessions observed by the site tag with no conversions to attribute.", ch.Sessions)
}

func explainPlatform(ch model.ChannelSignals) string {
	return fmt.Sprintf("%s self-reports %s conversions ($%s revenue) on $%s spend; not observed by the site tag.",
		ch.Channel, num(ch.PlatformConversions), money(ch.PlatformRevenue), money(ch.Spend))
}

func explainRemainder(conv, rev float64, sources []string) string {
	from := "connected sources"
	if len(sources) > 0 {
		from = strings.Join(sources, ", ")
	}
	return fmt.Sprintf("%s conversions ($%s revenue) recorded by %s could not be matched to a channel.",
		num(conv), money(rev), from)
}

// num formats v with at most two decimals and no trailing zeros.
func num(v float64) string {
	s := fmt.Sprintf("%.2f", round2(v))
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", round2(v))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
