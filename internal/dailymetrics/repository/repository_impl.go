package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopledger/shopledger/internal/clock"
	"github.com/shopledger/shopledger/internal/dailymetrics/domain"
	pkgdb "github.com/shopledger/shopledger/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Clock clock.Clock
	GenID *snowflake.Node
}

type repo struct {
	clock clock.Clock
	genID *snowflake.Node
}

func Provide(p Params) domain.Repository {
	return &repo{clock: p.Clock, genID: p.GenID}
}

// Upsert writes the metric row by (shop_id, metric_date). A racing insert
// from an overlapping run retries once and takes the update path.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, metric *domain.DailyMetric) (bool, error) {
	created, err := r.upsert(ctx, db, metric)
	if err != nil && pkgdb.IsDuplicateKeyErr(err) {
		return r.upsert(ctx, db, metric)
	}
	return created, err
}

func (r *repo) upsert(ctx context.Context, db *gorm.DB, metric *domain.DailyMetric) (bool, error) {
	created := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existingID snowflake.ID
		if err := tx.Raw(
			`SELECT id FROM daily_shop_metrics WHERE shop_id = ? AND metric_date = ?`,
			metric.ShopID,
			metric.MetricDate,
		).Scan(&existingID).Error; err != nil {
			return err
		}

		now := r.clock.Now()
		metric.UpdatedAt = now

		if existingID != 0 {
			metric.ID = existingID
			return tx.Exec(
				`UPDATE daily_shop_metrics SET
				   ro_count = ?, ro_posted_count = ?, ro_completed_count = ?,
				   authorized_revenue = ?, authorized_cost = ?, authorized_profit = ?,
				   authorized_gp_percent = ?, authorized_job_count = ?,
				   parts_revenue = ?, parts_cost = ?, parts_profit = ?,
				   labor_revenue = ?, labor_cost = ?, labor_profit = ?, labor_hours = ?,
				   sublet_revenue = ?, sublet_cost = ?, fees_total = ?, tax_total = ?,
				   avg_ro_value = ?, avg_ro_profit = ?, avg_labor_rate = ?, gp_per_labor_hour = ?,
				   potential_revenue = ?, potential_job_count = ?, authorization_rate = ?,
				   calculation_method = ?, source_snapshot_count = ?, updated_at = ?
				 WHERE id = ?`,
				metric.ROCount, metric.ROPostedCount, metric.ROCompletedCount,
				metric.AuthorizedRevenue, metric.AuthorizedCost, metric.AuthorizedProfit,
				metric.AuthorizedGPPercent, metric.AuthorizedJobCount,
				metric.PartsRevenue, metric.PartsCost, metric.PartsProfit,
				metric.LaborRevenue, metric.LaborCost, metric.LaborProfit, metric.LaborHours,
				metric.SubletRevenue, metric.SubletCost, metric.FeesTotal, metric.TaxTotal,
				metric.AvgROValue, metric.AvgROProfit, metric.AvgLaborRate, metric.GPPerLaborHour,
				metric.PotentialRevenue, metric.PotentialJobCount, metric.AuthorizationRate,
				metric.CalculationMethod, metric.SourceSnapshotCount, metric.UpdatedAt,
				existingID,
			).Error
		}

		metric.ID = r.genID.Generate()
		metric.CreatedAt = now
		created = true
		return tx.Exec(
			`INSERT INTO daily_shop_metrics (
			   id, shop_id, metric_date,
			   ro_count, ro_posted_count, ro_completed_count,
			   authorized_revenue, authorized_cost, authorized_profit,
			   authorized_gp_percent, authorized_job_count,
			   parts_revenue, parts_cost, parts_profit,
			   labor_revenue, labor_cost, labor_profit, labor_hours,
			   sublet_revenue, sublet_cost, fees_total, tax_total,
			   avg_ro_value, avg_ro_profit, avg_labor_rate, gp_per_labor_hour,
			   potential_revenue, potential_job_count, authorization_rate,
			   calculation_method, source_snapshot_count, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			metric.ID, metric.ShopID, metric.MetricDate,
			metric.ROCount, metric.ROPostedCount, metric.ROCompletedCount,
			metric.AuthorizedRevenue, metric.AuthorizedCost, metric.AuthorizedProfit,
			metric.AuthorizedGPPercent, metric.AuthorizedJobCount,
			metric.PartsRevenue, metric.PartsCost, metric.PartsProfit,
			metric.LaborRevenue, metric.LaborCost, metric.LaborProfit, metric.LaborHours,
			metric.SubletRevenue, metric.SubletCost, metric.FeesTotal, metric.TaxTotal,
			metric.AvgROValue, metric.AvgROProfit, metric.AvgLaborRate, metric.GPPerLaborHour,
			metric.PotentialRevenue, metric.PotentialJobCount, metric.AuthorizationRate,
			metric.CalculationMethod, metric.SourceSnapshotCount, metric.CreatedAt, metric.UpdatedAt,
		).Error
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (r *repo) Range(ctx context.Context, db *gorm.DB, shopID snowflake.ID, start, end time.Time) ([]domain.DailyMetric, error) {
	var rows []domain.DailyMetric
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM daily_shop_metrics
		 WHERE shop_id = ? AND metric_date >= ? AND metric_date <= ?
		 ORDER BY metric_date DESC`,
		shopID,
		start,
		end,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
