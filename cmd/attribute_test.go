package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/attribution-cli/internal/model"
)

const cmdFixture = `{
  "org_tag": "abc123",
  "platform_metrics": [{"platform": "google_ads", "spend": 50, "conversions": 4}],
  "utm_performance": [
    {"utm_source": "google", "utm_medium": "cpc", "sessions": 10, "conversions": 3, "revenue": 300},
    {"utm_source": "", "sessions": 90}
  ],
  "connector_revenue": [{"source": "stripe", "conversions": 8, "revenue": 800}],
  "click_ids": {"has_click_ids": true, "click_id_count": 1, "by_type": {"gclid": 1}}
}`

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.json")
	require.NoError(t, os.WriteFile(path, []byte(cmdFixture), 0o600))
	return path
}

func TestParseWindow(t *testing.T) {
	cfg = testConfig()

	start, end, err := parseWindow("2025-03-01", "2025-03-31")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), end)

	tests := []struct {
		name       string
		start, end string
		msg        string
	}{
		{"bad start", "March 1", "2025-03-02", "invalid --start"},
		{"bad end", "2025-03-01", "2025/03/02", "invalid --end"},
		{"inverted", "2025-03-05", "2025-03-01", "before --start"},
		{"too long", "2025-03-01", "2025-04-01", "exceeds attribution.max_range_days"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseWindow(tt.start, tt.end)
			assert.ErrorContains(t, err, tt.msg)
		})
	}
}

func TestAttributeOffline(t *testing.T) {
	cfg = testConfig()

	env, err := initOfflineReport(writeFixture(t))
	require.NoError(t, err)
	defer env.Close()
	assert.Nil(t, env.Pool)

	var buf bytes.Buffer
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, writeReport(context.Background(), env.Service, &buf, "org-1", start, start.AddDate(0, 0, 2), false))

	var rep model.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rep))
	assert.Equal(t, "org-1", rep.OrganizationID)
	assert.Equal(t, 8.0, rep.Summary.TotalConversions)
	assert.Len(t, rep.TimeSeries, 3)
	require.NotEmpty(t, rep.Attributions)

	var signals []model.SignalType
	for _, a := range rep.Attributions {
		signals = append(signals, a.SignalType)
	}
	assert.Contains(t, signals, model.SignalClickID)
}

func TestAttributeOffline_PolicyFile(t *testing.T) {
	cfg = testConfig()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_confidence:\n  click_id: 99\n"), 0o600))
	cfg.Attribution.PolicyFile = path

	env, err := initOfflineReport(writeFixture(t))
	require.NoError(t, err)

	var buf bytes.Buffer
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, writeReport(context.Background(), env.Service, &buf, "org-1", start, start, false))
	assert.Contains(t, buf.String(), `"confidence":99`)
}

func TestAttributeOffline_Errors(t *testing.T) {
	cfg = testConfig()
	_, err := initOfflineReport(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "source: read fixture")

	cfg.Attribution.PolicyFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = initOfflineReport(writeFixture(t))
	assert.ErrorContains(t, err, "attribution: read policy")

	cfg = testConfig()
	env, err := initOfflineReport(writeFixture(t))
	require.NoError(t, err)
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	err = writeReport(context.Background(), env.Service, &bytes.Buffer{}, " ", start, start, true)
	assert.ErrorContains(t, err, "invalid request")
}

func TestInitReport_RequiresDatabase(t *testing.T) {
	cfg = testConfig()
	_, err := initReport(context.Background(), "attribute")
	assert.ErrorContains(t, err, "store.database_url is required")
}
