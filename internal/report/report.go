// Package report produces the full attribution report for one organization
// and date window.
package report

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/attribution-cli/internal/aggregate"
	"github.com/sells-group/attribution-cli/internal/attribution"
	"github.com/sells-group/attribution-cli/internal/metrics"
	"github.com/sells-group/attribution-cli/internal/model"
	"github.com/sells-group/attribution-cli/internal/quality"
	"github.com/sells-group/attribution-cli/internal/timeseries"
)

// ErrInvalidRequest marks caller errors such as a missing organization or an
// inverted date range.
var ErrInvalidRequest = eris.New("report: invalid request")

// DateLayout is the calendar-date format used on input and output.
const DateLayout = "2006-01-02"

// Runner produces reports. The HTTP API and CLI depend on this interface.
type Runner interface {
	Run(ctx context.Context, orgID string, start, end time.Time) (*model.Report, error)
}

// Service wires the aggregator, engine, reconciler and assessor together.
type Service struct {
	agg    *aggregate.Aggregator
	engine *attribution.Engine
}

// NewService creates a report Service.
func NewService(agg *aggregate.Aggregator, engine *attribution.Engine) *Service {
	return &Service{agg: agg, engine: engine}
}

// Run builds the report. Source failures never fail the report; only
// invalid input returns an error.
func (s *Service) Run(ctx context.Context, orgID string, start, end time.Time) (*model.Report, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, eris.Wrap(ErrInvalidRequest, "organization id is required")
	}
	rng := model.NewDateRange(start, end)
	if rng.End.Before(rng.Start) {
		return nil, eris.Wrapf(ErrInvalidRequest, "end date %s is before start date %s",
			rng.End.Format(DateLayout), rng.Start.Format(DateLayout))
	}

	began := time.Now()
	log := zap.L().With(zap.String("org_id", orgID),
		zap.String("start", rng.Start.Format(DateLayout)),
		zap.String("end", rng.End.Format(DateLayout)))

	tag := s.agg.ResolveTag(ctx, orgID)

	var (
		set   model.SignalSet
		daily model.DailySignals
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		set = s.agg.Collect(gCtx, orgID, tag, rng)
		return nil
	})
	g.Go(func() error {
		daily = s.agg.FetchDaily(gCtx, orgID, tag, rng)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "report: canceled")
	}

	result := s.engine.Attribute(set)
	for _, row := range result.Attributions {
		metrics.AttributionRows.WithLabelValues(string(row.SignalType)).Inc()
	}

	rep := &model.Report{
		OrganizationID: orgID,
		StartDate:      rng.Start.Format(DateLayout),
		EndDate:        rng.End.Format(DateLayout),
		Attributions:   result.Attributions,
		Summary:        result.Summary,
		TimeSeries:     timeseries.Reconcile(daily.UTM, daily.Connector, daily.Platform, rng.Start, rng.End),
		DataQuality:    quality.Assess(set, set.Presence.ClickIDs),
	}

	elapsed := time.Since(began)
	metrics.ReportDuration.Observe(elapsed.Seconds())
	log.Info("report: attribution complete",
		zap.Int("rows", len(rep.Attributions)),
		zap.Float64("total_conversions", rep.Summary.TotalConversions),
		zap.Float64("data_completeness", rep.Summary.DataCompleteness),
		zap.Int("recommendations", len(rep.DataQuality.Recommendations)),
		zap.Duration("elapsed", elapsed),
	)
	return rep, nil
}
