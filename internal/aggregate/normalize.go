package aggregate

import (
	"strings"

	"golang.org/x/text/cases"
)

// Channel keys with special meaning.
const (
	DirectChannel = "(direct)"
)

// channelSynonyms maps folded source spellings onto canonical channel keys.
var channelSynonyms = map[string]string{
	"google":     "google",
	"google_ads": "google",
	"googleads":  "google",
	"adwords":    "google",
	"google-ads": "google",
	"gads":       "google",

	"facebook":     "facebook",
	"fb":           "facebook",
	"meta":         "facebook",
	"facebook_ads": "facebook",
	"instagram":    "facebook",
	"ig":           "facebook",

	"tiktok":     "tiktok",
	"tiktok_ads": "tiktok",
	"tt":         "tiktok",

	"linkedin":     "linkedin",
	"linkedin_ads": "linkedin",
	"li":           "linkedin",

	"microsoft":     "microsoft",
	"bing":          "microsoft",
	"bing_ads":      "microsoft",
	"microsoft_ads": "microsoft",
	"msads":         "microsoft",

	"twitter": "twitter",
	"x":       "twitter",

	"(direct)": DirectChannel,
	"direct":   DirectChannel,
	"(none)":   DirectChannel,
}

// clickIDChannels maps click-ID kinds to the channel that issued them.
var clickIDChannels = map[string]string{
	"gclid":     "google",
	"gbraid":    "google",
	"wbraid":    "google",
	"fbclid":    "facebook",
	"ttclid":    "tiktok",
	"li_fat_id": "linkedin",
	"msclkid":   "microsoft",
	"twclid":    "twitter",
}

// NormalizeChannel maps a raw source or platform name onto its canonical
// channel key. Unknown names pass through case-folded; blank names are
// direct traffic.
func NormalizeChannel(raw string) string {
	key := strings.TrimSpace(raw)
	if key == "" {
		return DirectChannel
	}
	key = cases.Fold().String(key)
	key = strings.Join(strings.Fields(key), "_")
	if canonical, ok := channelSynonyms[key]; ok {
		return canonical
	}
	return key
}

// ClickIDChannel returns the channel that issues the given click-ID kind.
func ClickIDChannel(kind string) (string, bool) {
	ch, ok := clickIDChannels[cases.Fold().String(strings.TrimSpace(kind))]
	return ch, ok
}
