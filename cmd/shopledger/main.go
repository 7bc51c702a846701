package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopledger/shopledger/internal/clock"
	"github.com/shopledger/shopledger/internal/config"
	"github.com/shopledger/shopledger/internal/dailymetrics"
	dailymetricsdomain "github.com/shopledger/shopledger/internal/dailymetrics/domain"
	"github.com/shopledger/shopledger/internal/gp"
	"github.com/shopledger/shopledger/internal/ingest"
	"github.com/shopledger/shopledger/internal/logger"
	"github.com/shopledger/shopledger/internal/migration"
	"github.com/shopledger/shopledger/internal/runlog"
	"github.com/shopledger/shopledger/internal/shopconfig"
	"github.com/shopledger/shopledger/internal/snapshot"
	snapshotdomain "github.com/shopledger/shopledger/internal/snapshot/domain"
	"github.com/shopledger/shopledger/internal/tmclient"
	"github.com/shopledger/shopledger/internal/warehouse"
	"github.com/shopledger/shopledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		clock.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,

		// Functional domains
		tmclient.Module,
		shopconfig.Module,
		gp.Module,
		warehouse.Module,
		runlog.Module,
		ingest.Module,
		snapshot.Module,
		dailymetrics.Module,

		fx.Invoke(runSync),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

type syncParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Log        *zap.Logger
	Clock      clock.Clock
	Config     config.Config
	Ingest     *ingest.Service
	Snapshots  snapshotdomain.Service
	Metrics    dailymetricsdomain.Service
}

// runSync runs one batch pass: an optional single-RO ingest, a snapshot
// build, then a metrics rebuild over the same window, and shuts the process
// down. Periodic invocation is the scheduler's job, not ours.
func runSync(p syncParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				err := execute(p)
				if err != nil {
					p.Log.Error("sync run failed", zap.Error(err))
				}
				_ = p.Shutdowner.Shutdown()
			}()
			return nil
		},
	})
}

func execute(p syncParams) error {
	if p.Config.Sync.ShopTMID == 0 {
		return fmt.Errorf("SYNC_SHOP_TM_ID is required")
	}

	start, end, err := resolveWindow(p.Config.Sync, p.Clock.Now())
	if err != nil {
		return err
	}

	ctx := context.Background()
	log := p.Log.Named("sync")
	log.Info("starting sync run",
		zap.Int64("shop_id", p.Config.Sync.ShopTMID),
		zap.String("start", start.Format("2006-01-02")),
		zap.String("end", end.Format("2006-01-02")),
	)

	if p.Config.Sync.ROTMID != 0 {
		ingestResult, err := p.Ingest.IngestRepairOrder(ctx, p.Config.Sync.ShopTMID, p.Config.Sync.ROTMID)
		if err != nil {
			return fmt.Errorf("ingest repair order: %w", err)
		}
		log.Info("repair order ingested",
			zap.Int64("ro_id", p.Config.Sync.ROTMID),
			zap.Bool("created", ingestResult.Created),
			zap.Int("jobs", ingestResult.Jobs),
		)
	}

	snapResult, err := p.Snapshots.BuildSnapshotsForPeriod(ctx, p.Config.Sync.ShopTMID, start, end)
	if err != nil {
		return fmt.Errorf("build snapshots: %w", err)
	}
	log.Info("snapshots built",
		zap.Int("qualifying_ros", snapResult.QualifyingROs),
		zap.Int("created", snapResult.Created),
		zap.Int("updated", snapResult.Updated),
		zap.Int("errors", snapResult.Errors),
	)

	metricResult, err := p.Metrics.RebuildDailyMetrics(ctx, p.Config.Sync.ShopTMID, start, end)
	if err != nil {
		return fmt.Errorf("rebuild daily metrics: %w", err)
	}
	log.Info("daily metrics rebuilt",
		zap.Int("days_processed", metricResult.DaysProcessed),
		zap.Int("created", metricResult.Created),
		zap.Int("updated", metricResult.Updated),
		zap.Int("skipped_days", metricResult.SkippedDays),
		zap.Int("errors", metricResult.Errors),
	)

	return nil
}

func resolveWindow(sync config.SyncConfig, now time.Time) (time.Time, time.Time, error) {
	if sync.StartDate != "" && sync.EndDate != "" {
		start, err := time.ParseInLocation("2006-01-02", sync.StartDate, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse SYNC_START_DATE: %w", err)
		}
		end, err := time.ParseInLocation("2006-01-02", sync.EndDate, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse SYNC_END_DATE: %w", err)
		}
		if end.Before(start) {
			return time.Time{}, time.Time{}, fmt.Errorf("sync window end %s before start %s", sync.EndDate, sync.StartDate)
		}
		return start, end, nil
	}

	daysBack := sync.DaysBack
	if daysBack <= 0 {
		daysBack = 3
	}
	end := now.UTC()
	start := end.AddDate(0, 0, -daysBack)
	return start, end, nil
}
