package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopledger/shopledger/internal/clock"
	"github.com/shopledger/shopledger/internal/dailymetrics/domain"
	"github.com/shopledger/shopledger/internal/observability/metrics"
	"github.com/shopledger/shopledger/internal/runlog"
	snapshotdomain "github.com/shopledger/shopledger/internal/snapshot/domain"
	"github.com/shopledger/shopledger/internal/warehouse"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Warehouse warehouse.Repository
	Snapshots snapshotdomain.Repository
	Metrics   domain.Repository
	Runs      runlog.Recorder
	Config    Config `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	warehouse warehouse.Repository
	snapshots snapshotdomain.Repository
	metrics   domain.Repository
	runs      runlog.Recorder
	cfg       Config
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("dailymetrics.aggregator"),
		clock:     p.Clock,
		warehouse: p.Warehouse,
		snapshots: p.Snapshots,
		metrics:   p.Metrics,
		runs:      p.Runs,
		cfg:       p.Config.withDefaults(),
	}
}

// RebuildDailyMetrics folds snapshots into one daily row per calendar day
// in [start, end]. Days run in parallel since each targets a distinct row.
// A day with zero snapshots is skipped, never zeroed out, so partial reruns
// cannot erase legitimately absent days.
func (s *Service) RebuildDailyMetrics(ctx context.Context, shopTMID int64, start, end time.Time) (domain.RebuildResult, error) {
	m := metrics.Pipeline()
	runStart := s.clock.Now()
	defer func() {
		m.ObserveRunDuration(metrics.JobDailyMetrics, s.clock.Now().Sub(runStart))
	}()

	result := domain.RebuildResult{ShopTMID: shopTMID}

	shop, err := s.warehouse.FindShopByTMID(ctx, shopTMID)
	if err != nil {
		m.IncRun(metrics.JobDailyMetrics, metrics.ResultError)
		return result, err
	}
	if shop == nil {
		m.IncRun(metrics.JobDailyMetrics, metrics.ResultError)
		return result, fmt.Errorf("%w: %d", snapshotdomain.ErrShopNotFound, shopTMID)
	}

	runID, err := s.runs.Start(ctx, shop.ID, runlog.RunTypeDailyMetrics)
	if err != nil {
		s.log.Warn("failed to open run ledger entry", zap.Error(err))
		runID = 0
	}

	first := dateOnly(start)
	last := dateOnly(end)

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Workers)

	for day := first; !day.After(last); day = day.Add(24 * time.Hour) {
		if ctx.Err() != nil {
			break
		}
		result.DaysProcessed++

		day := day
		g.Go(func() error {
			dayCtx, cancel := context.WithTimeout(context.Background(), s.cfg.RowTimeout)
			defer cancel()

			created, skipped, err := s.rebuildDay(dayCtx, shop.ID, day)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Errors++
				if len(result.ErrorDetails) < s.cfg.MaxErrorDetail {
					result.ErrorDetails = append(result.ErrorDetails, domain.ErrorDetail{
						Date:  day.Format("2006-01-02"),
						Error: err.Error(),
					})
				}
				s.log.Warn("failed to rebuild daily metrics",
					zap.String("metric_date", day.Format("2006-01-02")),
					zap.Error(err),
				)
			case skipped:
				result.SkippedDays++
			case created:
				result.Created++
			default:
				result.Updated++
			}
			return nil
		})
	}
	_ = g.Wait()

	m.AddUnits(metrics.JobDailyMetrics, metrics.ResultCreated, result.Created)
	m.AddUnits(metrics.JobDailyMetrics, metrics.ResultUpdated, result.Updated)
	m.AddUnits(metrics.JobDailyMetrics, metrics.ResultSkipped, result.SkippedDays)
	m.AddUnits(metrics.JobDailyMetrics, metrics.ResultError, result.Errors)
	m.IncRun(metrics.JobDailyMetrics, runStatus(ctx))

	s.completeRun(runID, runStatus(ctx), result)

	s.log.Info("daily metrics rebuild finished",
		zap.Int64("shop_id", shopTMID),
		zap.Int("days_processed", result.DaysProcessed),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped_days", result.SkippedDays),
		zap.Int("errors", result.Errors),
	)

	return result, ctx.Err()
}

func (s *Service) rebuildDay(ctx context.Context, shopID snowflake.ID, day time.Time) (created, skipped bool, err error) {
	snaps, err := s.snapshots.ForDate(ctx, s.db, shopID, day)
	if err != nil {
		return false, false, fmt.Errorf("load snapshots: %w", err)
	}
	if len(snaps) == 0 {
		return false, true, nil
	}

	metric := Aggregate(shopID, day, snaps)
	created, err = s.metrics.Upsert(ctx, s.db, metric)
	return created, false, err
}

// Aggregate folds one day's snapshots into a daily metric row. Sums are
// exact integer sums; derived ratios are guarded against division by zero
// and left nil when undefined.
func Aggregate(shopID snowflake.ID, day time.Time, snaps []snapshotdomain.Snapshot) *domain.DailyMetric {
	metric := &domain.DailyMetric{
		ShopID:              shopID,
		MetricDate:          day,
		ROCount:             len(snaps),
		SourceSnapshotCount: len(snaps),
		CalculationMethod:   domain.CalculationMethodSnapshots,
	}

	for _, snap := range snaps {
		switch snap.SnapshotTrigger {
		case snapshotdomain.TriggerPosted:
			metric.ROPostedCount++
		case snapshotdomain.TriggerCompleted:
			metric.ROCompletedCount++
		}

		metric.AuthorizedRevenue += snap.AuthorizedRevenue
		metric.AuthorizedCost += snap.AuthorizedCost
		metric.AuthorizedProfit += snap.AuthorizedProfit
		metric.AuthorizedJobCount += snap.AuthorizedJobCount

		metric.PartsRevenue += snap.PartsRevenue
		metric.PartsCost += snap.PartsCost
		metric.PartsProfit += snap.PartsProfit
		metric.LaborRevenue += snap.LaborRevenue
		metric.LaborCost += snap.LaborCost
		metric.LaborProfit += snap.LaborProfit
		metric.LaborHours = metric.LaborHours.Add(snap.LaborHours)
		metric.SubletRevenue += snap.SubletRevenue
		metric.SubletCost += snap.SubletCost
		metric.FeesTotal += snap.FeesTotal
		metric.TaxTotal += snap.TaxTotal

		metric.PotentialRevenue += snap.PotentialRevenue
		metric.PotentialJobCount += snap.PotentialJobCount
	}

	if metric.AuthorizedRevenue > 0 {
		gp := round2(float64(metric.AuthorizedProfit) / float64(metric.AuthorizedRevenue) * 100)
		metric.AuthorizedGPPercent = &gp
	}

	if metric.PotentialRevenue > 0 {
		rate := round2(float64(metric.AuthorizedRevenue) / float64(metric.PotentialRevenue) * 100)
		metric.AuthorizationRate = &rate
	}

	if metric.ROCount > 0 {
		avgValue := metric.AuthorizedRevenue / int64(metric.ROCount)
		avgProfit := metric.AuthorizedProfit / int64(metric.ROCount)
		metric.AvgROValue = &avgValue
		metric.AvgROProfit = &avgProfit
	}

	if metric.LaborHours.IsPositive() {
		avgRate := decimalDiv(metric.LaborRevenue, metric.LaborHours)
		gpPerHour := decimalDiv(metric.LaborProfit, metric.LaborHours)
		metric.AvgLaborRate = &avgRate
		metric.GPPerLaborHour = &gpPerHour
	}

	return metric
}

func (s *Service) completeRun(runID snowflake.ID, status string, result domain.RebuildResult) {
	if runID == 0 {
		return
	}
	details := make([]runlog.ErrorDetail, 0, len(result.ErrorDetails))
	for _, d := range result.ErrorDetails {
		details = append(details, runlog.ErrorDetail{
			Unit:  "day:" + d.Date,
			Error: d.Error,
		})
	}
	ledgerCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.runs.Complete(ledgerCtx, runID, status, result.Created, result.Updated, result.SkippedDays, details); err != nil {
		s.log.Warn("failed to close run ledger entry", zap.Error(err))
	}
}

func runStatus(ctx context.Context) string {
	if ctx.Err() != nil {
		return runlog.StatusFailed
	}
	return runlog.StatusCompleted
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
