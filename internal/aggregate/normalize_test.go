package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeChannel(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"google", "google"},
		{"google_ads", "google"},
		{"GoogleAds", "google"},
		{"adwords", "google"},
		{"google-ads", "google"},
		{"gads", "google"},
		{"fb", "facebook"},
		{"Meta", "facebook"},
		{"facebook_ads", "facebook"},
		{"instagram", "facebook"},
		{"IG", "facebook"},
		{"tiktok_ads", "tiktok"},
		{"tt", "tiktok"},
		{"linkedin_ads", "linkedin"},
		{"li", "linkedin"},
		{"bing", "microsoft"},
		{"bing_ads", "microsoft"},
		{"microsoft_ads", "microsoft"},
		{"msads", "microsoft"},
		{"twitter", "twitter"},
		{"X", "twitter"},
		{"", DirectChannel},
		{"   ", DirectChannel},
		{"(direct)", DirectChannel},
		{"(none)", DirectChannel},
		{"Newsletter", "newsletter"},
		{"  Partner Site ", "partner_site"},
		{"STRASSE", "strasse"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeChannel(tt.raw))
		})
	}
}

func TestNormalizeChannel_Idempotent(t *testing.T) {
	for raw := range channelSynonyms {
		once := NormalizeChannel(raw)
		assert.Equal(t, once, NormalizeChannel(once), raw)
	}
}

func TestClickIDChannel(t *testing.T) {
	tests := []struct {
		kind string
		want string
		ok   bool
	}{
		{"gclid", "google", true},
		{"GBRAID", "google", true},
		{"wbraid", "google", true},
		{"fbclid", "facebook", true},
		{"ttclid", "tiktok", true},
		{"li_fat_id", "linkedin", true},
		{"msclkid", "microsoft", true},
		{"twclid", "twitter", true},
		{"dclid", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			got, ok := ClickIDChannel(tt.kind)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
