// Package source reads the independent attribution signal sources. Every
// read is best-effort: a failing query is logged, counted, and returned as
// an Empty result instead of an error.
package source

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/attribution-cli/internal/db"
	"github.com/sells-group/attribution-cli/internal/metrics"
	"github.com/sells-group/attribution-cli/internal/model"
)

// Source names used in logs and metrics.
const (
	NameOrgTag         = "org_tag"
	NamePlatform       = "platform_metrics"
	NameUTM            = "utm_performance"
	NameConnector      = "connector_revenue"
	NameClickIDs       = "click_ids"
	NameFunnel         = "funnel"
	NameDailyUTM       = "daily_utm"
	NameDailyConnector = "daily_connector"
	NameDailyPlatform  = "daily_platform"
)

// Reader is the read-only contract for every signal source.
type Reader interface {
	OrgTag(ctx context.Context, orgID string) Result[string]
	PlatformMetrics(ctx context.Context, orgID string, rng model.DateRange) Result[[]model.PlatformMetricsRow]
	UTMPerformance(ctx context.Context, orgTag string, rng model.DateRange) Result[[]model.UTMRow]
	ConnectorRevenue(ctx context.Context, orgID string, rng model.DateRange) Result[[]model.ConnectorRow]
	ClickIDs(ctx context.Context, orgID string, rng model.DateRange) Result[model.ClickIDStats]
	Funnel(ctx context.Context, orgID string, rng model.DateRange) Result[[]model.FunnelStage]
	DailyUTM(ctx context.Context, orgTag string, rng model.DateRange) Result[[]model.DailyUTMRow]
	DailyConnector(ctx context.Context, orgID string, rng model.DateRange) Result[[]model.DailyConnectorRow]
	DailyPlatform(ctx context.Context, orgID string, rng model.DateRange) Result[[]model.DailyPlatformRow]
}

// PostgresReader implements Reader over a pgx pool.
type PostgresReader struct {
	pool db.Pool
}

// NewPostgresReader creates a reader over pool.
func NewPostgresReader(pool db.Pool) (*PostgresReader, error) {
	if pool == nil {
		return nil, eris.New("source: database pool is required")
	}
	return &PostgresReader{pool: pool}, nil
}

const (
	orgTagSQL = `SELECT short_tag FROM organization_tags WHERE organization_id = $1`

	platformMetricsSQL = `
		SELECT platform,
		       COALESCE(SUM(spend), 0)::float8,
		       COALESCE(SUM(impressions), 0)::bigint,
		       COALESCE(SUM(clicks), 0)::bigint,
		       COALESCE(SUM(conversions), 0)::float8,
		       COALESCE(SUM(conversion_value), 0)::float8
		FROM ad_platform_metrics
		WHERE organization_id = $1 AND metric_date >= $2 AND metric_date < $3
		GROUP BY platform
		ORDER BY platform`

	utmPerformanceSQL = `
		SELECT COALESCE(utm_source, ''), COALESCE(utm_medium, ''), COALESCE(utm_campaign, ''),
		       COUNT(*)::bigint,
		       COUNT(*) FILTER (WHERE converted)::float8,
		       COALESCE(SUM(conversion_value) FILTER (WHERE converted), 0)::float8
		FROM tag_sessions
		WHERE org_tag = $1 AND started_at >= $2 AND started_at < $3
		GROUP BY 1, 2, 3
		ORDER BY 1, 2, 3`

	connectorRevenueSQL = `
		SELECT source,
		       COUNT(*)::float8,
		       COALESCE(SUM(amount), 0)::float8
		FROM connector_events
		WHERE organization_id = $1 AND occurred_at >= $2 AND occurred_at < $3
		  AND NOT is_recurring
		  AND event_type NOT IN ('renewal', 'subscription_renewal', 'recurring_charge')
		GROUP BY source
		ORDER BY source`

	clickIDsSQL = `
		SELECT click_id_type, COUNT(DISTINCT click_id)::bigint
		FROM click_id_matches
		WHERE organization_id = $1 AND matched_at >= $2 AND matched_at < $3
		GROUP BY click_id_type
		ORDER BY click_id_type`

	funnelSQL = `
		SELECT g.id::text, g.name, g.funnel_position,
		       COALESCE(v.channel, ''),
		       COALESCE(SUM(v.visitors), 0)::bigint,
		       COALESCE(SUM(v.conversions), 0)::bigint
		FROM conversion_goals g
		LEFT JOIN goal_channel_visits v
		  ON v.goal_id = g.id AND v.visit_date >= $2 AND v.visit_date < $3
		WHERE g.organization_id = $1 AND g.is_active AND g.funnel_position IS NOT NULL
		GROUP BY g.id, g.name, g.funnel_position, v.channel
		ORDER BY g.funnel_position, g.id, 4`

	dailyUTMSQL = `
		SELECT date_trunc('day', started_at AT TIME ZONE 'UTC')::date,
		       COALESCE(utm_source, ''),
		       COUNT(*)::bigint,
		       COUNT(*) FILTER (WHERE converted)::float8,
		       COALESCE(SUM(conversion_value) FILTER (WHERE converted), 0)::float8
		FROM tag_sessions
		WHERE org_tag = $1 AND started_at >= $2 AND started_at < $3
		GROUP BY 1, 2
		ORDER BY 1, 2`

	dailyConnectorSQL = `
		SELECT date_trunc('day', occurred_at AT TIME ZONE 'UTC')::date,
		       COUNT(*)::float8,
		       COALESCE(SUM(amount), 0)::float8
		FROM connector_events
		WHERE organization_id = $1 AND occurred_at >= $2 AND occurred_at < $3
		  AND NOT is_recurring
		  AND event_type NOT IN ('renewal', 'subscription_renewal', 'recurring_charge')
		GROUP BY 1
		ORDER BY 1`

	dailyPlatformSQL = `
		SELECT metric_date, platform,
		       COALESCE(SUM(spend), 0)::float8,
		       COALESCE(SUM(conversions), 0)::float8,
		       COALESCE(SUM(conversion_value), 0)::float8
		FROM ad_platform_metrics
		WHERE organization_id = $1 AND metric_date >= $2 AND metric_date < $3
		GROUP BY 1, 2
		ORDER BY 1, 2`
)

// OrgTag resolves the organization's short tag. A missing tag is an
// expected state and yields Empty with a nil cause.
func (r *PostgresReader) OrgTag(ctx context.Context, orgID string) Result[string] {
	start := time.Now()
	defer observe(NameOrgTag, start)

	var tag string
	err := r.pool.QueryRow(ctx, orgTagSQL, orgID).Scan(&tag)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			zap.L().Debug("source: no tracking tag installed", zap.String("org_id", orgID))
			return Empty[string](nil)
		}
		return fail[string](NameOrgTag, orgID, err)
	}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return Empty[string](nil)
	}
	return Ok(tag)
}

// PlatformMetrics reads ad-platform self-reported totals per platform.
func (r *PostgresReader) PlatformMetrics(ctx context.Context, orgID string, rng model.DateRange) Result[[]model.PlatformMetricsRow] {
	return readAll(ctx, r.pool, NamePlatform, orgID, func(rows pgx.Rows) (model.PlatformMetricsRow, error) {
		var p model.PlatformMetricsRow
		err := rows.Scan(&p.Platform, &p.Spend, &p.Impressions, &p.Clicks, &p.Conversions, &p.Revenue)
		return p, err
	}, platformMetricsSQL, orgID, rng.Start, rng.EndExclusive())
}

// UTMPerformance reads tag-observed sessions grouped by source, medium and
// campaign. Sessions without a source come back with an empty UTMSource.
func (r *PostgresReader) UTMPerformance(ctx context.Context, orgTag string, rng model.DateRange) Result[[]model.UTMRow] {
	return readAll(ctx, r.pool, NameUTM, orgTag, func(rows pgx.Rows) (model.UTMRow, error) {
		var u model.UTMRow
		err := rows.Scan(&u.UTMSource, &u.UTMMedium, &u.UTMCampaign, &u.Sessions, &u.Conversions, &u.Revenue)
		return u, err
	}, utmPerformanceSQL, orgTag, rng.Start, rng.EndExclusive())
}

// ConnectorRevenue reads new-conversion ground truth per connector.
// Renewals and recurring billing are excluded.
func (r *PostgresReader) ConnectorRevenue(ctx context.Context, orgID string, rng model.DateRange) Result[[]model.ConnectorRow] {
	return readAll(ctx, r.pool, NameConnector, orgID, func(rows pgx.Rows) (model.ConnectorRow, error) {
		var c model.ConnectorRow
		err := rows.Scan(&c.Source, &c.Conversions, &c.Revenue)
		return c, err
	}, connectorRevenueSQL, orgID, rng.Start, rng.EndExclusive())
}

// ClickIDs reads distinct click-ID matches grouped by kind.
func (r *PostgresReader) ClickIDs(ctx context.Context, orgID string, rng model.DateRange) Result[model.ClickIDStats] {
	type kindCount struct {
		kind  string
		count int64
	}
	res := readAll(ctx, r.pool, NameClickIDs, orgID, func(rows pgx.Rows) (kindCount, error) {
		var k kindCount
		err := rows.Scan(&k.kind, &k.count)
		return k, err
	}, clickIDsSQL, orgID, rng.Start, rng.EndExclusive())
	if !res.OK() {
		return Empty[model.ClickIDStats](res.Err())
	}

	stats := model.ClickIDStats{ByType: make(map[string]int64)}
	for _, k := range res.Value() {
		kind := strings.ToLower(strings.TrimSpace(k.kind))
		if kind == "" || k.count <= 0 {
			continue
		}
		stats.ByType[kind] += k.count
		stats.ClickIDCount += k.count
	}
	stats.HasClickIDs = stats.ClickIDCount > 0
	return Ok(stats)
}

// Funnel reads active funnel goals with per-channel visitors. Each goal's
// conversion rate is its conversions over visitors across all channels.
func (r *PostgresReader) Funnel(ctx context.Context, orgID string, rng model.DateRange) Result[[]model.FunnelStage] {
	type funnelRow struct {
		goalID, goalName string
		position         int
		channel          string
		visitors         int64
		conversions      int64
	}
	res := readAll(ctx, r.pool, NameFunnel, orgID, func(rows pgx.Rows) (funnelRow, error) {
		var f funnelRow
		err := rows.Scan(&f.goalID, &f.goalName, &f.position, &f.channel, &f.visitors, &f.conversions)
		return f, err
	}, funnelSQL, orgID, rng.Start, rng.EndExclusive())
	if !res.OK() {
		return Empty[[]model.FunnelStage](res.Err())
	}

	var stages []model.FunnelStage
	index := make(map[string]int)
	totals := make(map[string][2]int64) // goal -> {visitors, conversions}
	for _, f := range res.Value() {
		i, ok := index[f.goalID]
		if !ok {
			i = len(stages)
			index[f.goalID] = i
			stages = append(stages, model.FunnelStage{
				GoalID:            f.goalID,
				GoalName:          f.goalName,
				FunnelPosition:    f.position,
				VisitorsByChannel: make(map[string]int64),
			})
		}
		if f.channel != "" && f.visitors > 0 {
			stages[i].VisitorsByChannel[f.channel] += f.visitors
		}
		t := totals[f.goalID]
		t[0] += f.visitors
		t[1] += f.conversions
		totals[f.goalID] = t
	}
	for i := range stages {
		t := totals[stages[i].GoalID]
		if t[0] > 0 {
			stages[i].ConversionRate = float64(t[1]) / float64(t[0])
		}
	}
	return Ok(stages)
}

// DailyUTM reads tag-observed performance per source per day.
func (r *PostgresReader) DailyUTM(ctx context.Context, orgTag string, rng model.DateRange) Result[[]model.DailyUTMRow] {
	return readAll(ctx, r.pool, NameDailyUTM, orgTag, func(rows pgx.Rows) (model.DailyUTMRow, error) {
		var d model.DailyUTMRow
		err := rows.Scan(&d.Date, &d.UTMSource, &d.Sessions, &d.Conversions, &d.Revenue)
		return d, err
	}, dailyUTMSQL, orgTag, rng.Start, rng.EndExclusive())
}

// DailyConnector reads new-conversion ground truth per day.
func (r *PostgresReader) DailyConnector(ctx context.Context, orgID string, rng model.DateRange) Result[[]model.DailyConnectorRow] {
	return readAll(ctx, r.pool, NameDailyConnector, orgID, func(rows pgx.Rows) (model.DailyConnectorRow, error) {
		var d model.DailyConnectorRow
		err := rows.Scan(&d.Date, &d.Conversions, &d.Revenue)
		return d, err
	}, dailyConnectorSQL, orgID, rng.Start, rng.EndExclusive())
}

// DailyPlatform reads platform self-reports per platform per day.
func (r *PostgresReader) DailyPlatform(ctx context.Context, orgID string, rng model.DateRange) Result[[]model.DailyPlatformRow] {
	return readAll(ctx, r.pool, NameDailyPlatform, orgID, func(rows pgx.Rows) (model.DailyPlatformRow, error) {
		var d model.DailyPlatformRow
		err := rows.Scan(&d.Date, &d.Platform, &d.Spend, &d.Conversions, &d.Revenue)
		return d, err
	}, dailyPlatformSQL, orgID, rng.Start, rng.EndExclusive())
}

// readAll runs a query and scans every row, converting any failure into an
// Empty result.
func readAll[T any](ctx context.Context, pool db.Pool, name, subject string, scan func(pgx.Rows) (T, error), sql string, args ...any) Result[[]T] {
	start := time.Now()
	defer observe(name, start)

	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return fail[[]T](name, subject, eris.Wrapf(err, "source: query %s", name))
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return fail[[]T](name, subject, eris.Wrapf(err, "source: scan %s", name))
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return fail[[]T](name, subject, eris.Wrapf(err, "source: iterate %s", name))
	}
	return Ok(out)
}

func fail[T any](name, subject string, err error) Result[T] {
	metrics.SourceFailures.WithLabelValues(name).Inc()
	zap.L().Warn("source: read failed, using empty evidence",
		zap.String("source", name),
		zap.String("subject", subject),
		zap.Error(err),
	)
	return Empty[T](err)
}

func observe(name string, start time.Time) {
	metrics.SourceDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}
