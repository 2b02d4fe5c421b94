package source

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/attribution-cli/internal/model"
)

// Fixture is a captured set of source rows for one organization. Rows are
// returned as-is regardless of the requested window, except the daily rows
// which are filtered to it.
type Fixture struct {
	OrgTag         string                     `json:"org_tag"`
	Platform       []model.PlatformMetricsRow `json:"platform_metrics"`
	UTM            []model.UTMRow             `json:"utm_performance"`
	Connector      []model.ConnectorRow       `json:"connector_revenue"`
	ClickIDs       model.ClickIDStats         `json:"click_ids"`
	Funnel         []model.FunnelStage        `json:"funnel"`
	DailyUTM       []model.DailyUTMRow        `json:"daily_utm"`
	DailyConnector []model.DailyConnectorRow  `json:"daily_connector"`
	DailyPlatform  []model.DailyPlatformRow   `json:"daily_platform"`

	// Unavailable lists source names that should behave as failed reads.
	Unavailable []string `json:"unavailable,omitempty"`
}

// MemoryReader serves a Fixture through the Reader interface. It backs the
// offline CLI mode and tests.
type MemoryReader struct {
	fx   Fixture
	down map[string]bool
}

var (
	_ Reader = (*MemoryReader)(nil)
	_ Reader = (*PostgresReader)(nil)
)

// NewMemoryReader creates a reader over fx.
func NewMemoryReader(fx Fixture) *MemoryReader {
	down := make(map[string]bool, len(fx.Unavailable))
	for _, name := range fx.Unavailable {
		down[name] = true
	}
	return &MemoryReader{fx: fx, down: down}
}

// LoadFixture reads a JSON fixture file.
func LoadFixture(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, eris.Wrapf(err, "source: read fixture %s", path)
	}
	var fx Fixture
	if err := json.Unmarshal(data, &fx); err != nil {
		return Fixture{}, eris.Wrapf(err, "source: parse fixture %s", path)
	}
	return fx, nil
}

func memory[T any](ctx context.Context, m *MemoryReader, name string, v T) Result[T] {
	if err := ctx.Err(); err != nil {
		return fail[T](name, "memory", err)
	}
	if m.down[name] {
		return fail[T](name, "memory", eris.Errorf("source: %s unavailable", name))
	}
	return Ok(v)
}

func (m *MemoryReader) OrgTag(ctx context.Context, _ string) Result[string] {
	if m.fx.OrgTag == "" {
		return Empty[string](nil)
	}
	return memory(ctx, m, NameOrgTag, m.fx.OrgTag)
}

func (m *MemoryReader) PlatformMetrics(ctx context.Context, _ string, _ model.DateRange) Result[[]model.PlatformMetricsRow] {
	return memory(ctx, m, NamePlatform, m.fx.Platform)
}

func (m *MemoryReader) UTMPerformance(ctx context.Context, _ string, _ model.DateRange) Result[[]model.UTMRow] {
	return memory(ctx, m, NameUTM, m.fx.UTM)
}

func (m *MemoryReader) ConnectorRevenue(ctx context.Context, _ string, _ model.DateRange) Result[[]model.ConnectorRow] {
	return memory(ctx, m, NameConnector, m.fx.Connector)
}

func (m *MemoryReader) ClickIDs(ctx context.Context, _ string, _ model.DateRange) Result[model.ClickIDStats] {
	return memory(ctx, m, NameClickIDs, m.fx.ClickIDs)
}

func (m *MemoryReader) Funnel(ctx context.Context, _ string, _ model.DateRange) Result[[]model.FunnelStage] {
	return memory(ctx, m, NameFunnel, m.fx.Funnel)
}

func (m *MemoryReader) DailyUTM(ctx context.Context, _ string, rng model.DateRange) Result[[]model.DailyUTMRow] {
	return memory(ctx, m, NameDailyUTM, within(m.fx.DailyUTM, rng, func(r model.DailyUTMRow) time.Time { return r.Date }))
}

func (m *MemoryReader) DailyConnector(ctx context.Context, _ string, rng model.DateRange) Result[[]model.DailyConnectorRow] {
	return memory(ctx, m, NameDailyConnector, within(m.fx.DailyConnector, rng, func(r model.DailyConnectorRow) time.Time { return r.Date }))
}

func (m *MemoryReader) DailyPlatform(ctx context.Context, _ string, rng model.DateRange) Result[[]model.DailyPlatformRow] {
	return memory(ctx, m, NameDailyPlatform, within(m.fx.DailyPlatform, rng, func(r model.DailyPlatformRow) time.Time { return r.Date }))
}

// within keeps rows whose date falls in rng.
func within[T any](rows []T, rng model.DateRange, date func(T) time.Time) []T {
	var out []T
	for _, r := range rows {
		d := model.Day(date(r))
		if d.Before(rng.Start) || d.After(rng.End) {
			continue
		}
		out = append(out, r)
	}
	return out
}
