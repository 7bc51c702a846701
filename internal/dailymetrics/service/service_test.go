package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopledger/shopledger/internal/clock"
	"github.com/shopledger/shopledger/internal/dailymetrics/domain"
	metricsrepo "github.com/shopledger/shopledger/internal/dailymetrics/repository"
	"github.com/shopledger/shopledger/internal/runlog"
	snapshotdomain "github.com/shopledger/shopledger/internal/snapshot/domain"
	snapshotrepo "github.com/shopledger/shopledger/internal/snapshot/repository"
	"github.com/shopledger/shopledger/internal/warehouse"
	"github.com/shopledger/shopledger/pkg/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var day = time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

func TestAggregateSums(t *testing.T) {
	shopID := snowflake.ID(7)
	snaps := []snapshotdomain.Snapshot{
		{
			SnapshotTrigger:    snapshotdomain.TriggerPosted,
			AuthorizedRevenue:  10000,
			AuthorizedCost:     6000,
			AuthorizedProfit:   4000,
			AuthorizedJobCount: 2,
			PartsRevenue:       4000,
			PartsCost:          2500,
			PartsProfit:        1500,
			LaborRevenue:       6000,
			LaborCost:          2000,
			LaborProfit:        4000,
			LaborHours:         decimal.RequireFromString("2"),
			PotentialRevenue:   12000,
			PotentialJobCount:  3,
		},
		{
			SnapshotTrigger:    snapshotdomain.TriggerCompleted,
			AuthorizedRevenue:  20000,
			AuthorizedCost:     11000,
			AuthorizedProfit:   9000,
			AuthorizedJobCount: 1,
			LaborRevenue:       8000,
			LaborCost:          3000,
			LaborProfit:        5000,
			LaborHours:         decimal.RequireFromString("1.5"),
			PotentialRevenue:   20000,
			PotentialJobCount:  1,
		},
	}

	metric := Aggregate(shopID, day, snaps)

	assert.Equal(t, 2, metric.ROCount)
	assert.Equal(t, 1, metric.ROPostedCount)
	assert.Equal(t, 1, metric.ROCompletedCount)
	assert.Equal(t, 2, metric.SourceSnapshotCount)
	assert.Equal(t, domain.CalculationMethodSnapshots, metric.CalculationMethod)

	assert.Equal(t, int64(30000), metric.AuthorizedRevenue)
	assert.Equal(t, int64(13000), metric.AuthorizedProfit)
	assert.Equal(t, 3, metric.AuthorizedJobCount)
	assert.True(t, metric.LaborHours.Equal(decimal.RequireFromString("3.5")))

	// Weighted, not averaged: 13000/30000.
	require.NotNil(t, metric.AuthorizedGPPercent)
	assert.InDelta(t, 43.33, *metric.AuthorizedGPPercent, 0.001)

	// 30000 authorized of 32000 potential.
	require.NotNil(t, metric.AuthorizationRate)
	assert.InDelta(t, 93.75, *metric.AuthorizationRate, 0.001)

	require.NotNil(t, metric.AvgROValue)
	assert.Equal(t, int64(15000), *metric.AvgROValue)
	require.NotNil(t, metric.AvgROProfit)
	assert.Equal(t, int64(6500), *metric.AvgROProfit)

	// 14000 labor revenue over 3.5 hours.
	require.NotNil(t, metric.AvgLaborRate)
	assert.Equal(t, int64(4000), *metric.AvgLaborRate)
	require.NotNil(t, metric.GPPerLaborHour)
	assert.Equal(t, int64(2571), *metric.GPPerLaborHour)
}

func TestAggregateGuards(t *testing.T) {
	metric := Aggregate(snowflake.ID(7), day, []snapshotdomain.Snapshot{
		{SnapshotTrigger: snapshotdomain.TriggerManual},
	})

	assert.Equal(t, 1, metric.ROCount)
	assert.Zero(t, metric.ROPostedCount)
	assert.Zero(t, metric.ROCompletedCount)
	assert.Nil(t, metric.AuthorizedGPPercent)
	assert.Nil(t, metric.AuthorizationRate)
	assert.Nil(t, metric.AvgLaborRate)
	assert.Nil(t, metric.GPPerLaborHour)
	require.NotNil(t, metric.AvgROValue)
	assert.Zero(t, *metric.AvgROValue)
}

type metricsEnv struct {
	db    *gorm.DB
	node  *snowflake.Node
	svc   domain.Service
	repo  domain.Repository
	shop  warehouse.Shop
	snaps snapshotdomain.Repository
}

func newMetricsEnv(t *testing.T) *metricsEnv {
	t.Helper()

	gdb, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&warehouse.Shop{},
		&snapshotdomain.Snapshot{},
		&domain.DailyMetric{},
		&runlog.Run{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	snaps := snapshotrepo.Provide(snapshotrepo.Params{Clock: clk, GenID: node})
	repo := metricsrepo.Provide(metricsrepo.Params{Clock: clk, GenID: node})
	svc := NewService(Params{
		DB:        gdb,
		Log:       log,
		Clock:     clk,
		Warehouse: warehouse.NewRepository(warehouse.Params{DB: gdb}),
		Snapshots: snaps,
		Metrics:   repo,
		Runs:      runlog.NewRecorder(runlog.Params{DB: gdb, Log: log, Clock: clk, GenID: node}),
		Config:    Config{Workers: 2},
	})

	shop := warehouse.Shop{ID: node.Generate(), TMID: 42, Name: "Main Street Auto"}
	require.NoError(t, gdb.Create(&shop).Error)

	return &metricsEnv{db: gdb, node: node, svc: svc, repo: repo, shop: shop, snaps: snaps}
}

func (e *metricsEnv) createSnapshot(t *testing.T, snapDate time.Time, revenue, profit int64) {
	t.Helper()
	_, err := e.snaps.Upsert(context.Background(), e.db, &snapshotdomain.Snapshot{
		ShopID:            e.shop.ID,
		RepairOrderID:     e.node.Generate(),
		SnapshotDate:      snapDate,
		SnapshotTrigger:   snapshotdomain.TriggerPosted,
		ROStatus:          "POSTED",
		AuthorizedRevenue: revenue,
		AuthorizedProfit:  profit,
		AuthorizedCost:    revenue - profit,
		CalculationMethod: snapshotdomain.CalculationMethodTrueGP,
	})
	require.NoError(t, err)
}

func TestRebuildDailyMetrics(t *testing.T) {
	env := newMetricsEnv(t)
	env.createSnapshot(t, day, 10000, 4000)
	env.createSnapshot(t, day, 20000, 9000)

	// Three-day window: only one day has snapshots.
	start := day.Add(-24 * time.Hour)
	end := day.Add(24 * time.Hour)

	result, err := env.svc.RebuildDailyMetrics(context.Background(), 42, start, end)
	require.NoError(t, err)
	assert.Equal(t, 3, result.DaysProcessed)
	assert.Equal(t, 1, result.Created)
	assert.Zero(t, result.Updated)
	assert.Equal(t, 2, result.SkippedDays)
	assert.Zero(t, result.Errors)

	rows, err := env.repo.Range(context.Background(), env.db, env.shop.ID, start, end)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	metric := rows[0]
	assert.Equal(t, 2, metric.ROCount)
	assert.Equal(t, int64(30000), metric.AuthorizedRevenue)
	assert.Equal(t, int64(13000), metric.AuthorizedProfit)
	require.NotNil(t, metric.AuthorizedGPPercent)
	assert.InDelta(t, 43.33, *metric.AuthorizedGPPercent, 0.001)
	assert.Equal(t, 2, metric.SourceSnapshotCount)
	assert.Equal(t, domain.CalculationMethodSnapshots, metric.CalculationMethod)

	// Rerunning the same window updates in place.
	result, err = env.svc.RebuildDailyMetrics(context.Background(), 42, start, end)
	require.NoError(t, err)
	assert.Zero(t, result.Created)
	assert.Equal(t, 1, result.Updated)

	var count int64
	require.NoError(t, env.db.Raw(`SELECT COUNT(*) FROM daily_shop_metrics`).Scan(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRebuildDailyMetricsShopNotFound(t *testing.T) {
	env := newMetricsEnv(t)

	_, err := env.svc.RebuildDailyMetrics(context.Background(), 999, day, day)
	assert.ErrorIs(t, err, snapshotdomain.ErrShopNotFound)
}

func TestRebuildDailyMetricsRecordsRun(t *testing.T) {
	env := newMetricsEnv(t)
	env.createSnapshot(t, day, 10000, 4000)

	_, err := env.svc.RebuildDailyMetrics(context.Background(), 42, day, day)
	require.NoError(t, err)

	var run runlog.Run
	require.NoError(t, env.db.Raw(
		`SELECT * FROM sync_runs WHERE run_type = ?`, runlog.RunTypeDailyMetrics,
	).Scan(&run).Error)
	assert.Equal(t, runlog.StatusCompleted, run.Status)
	assert.Equal(t, 1, run.Created)
	assert.Zero(t, run.Skipped)
}
