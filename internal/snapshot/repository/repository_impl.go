package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopledger/shopledger/internal/clock"
	"github.com/shopledger/shopledger/internal/snapshot/domain"
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

// Upsert writes the snapshot by its natural key inside one transaction.
// Select-then-write rather than ON CONFLICT so the caller learns whether
// the row was created or replaced. Overlapping runs can race the insert
// into the unique index; the loser retries once and takes the update path.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, snap *domain.Snapshot) (bool, error) {
	created, err := r.upsert(ctx, db, snap)
	if err != nil && pkgdb.IsDuplicateKeyErr(err) {
		return r.upsert(ctx, db, snap)
	}
	return created, err
}

func (r *repo) upsert(ctx context.Context, db *gorm.DB, snap *domain.Snapshot) (bool, error) {
	created := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existingID snowflake.ID
		if err := tx.Raw(
			`SELECT id FROM ro_snapshots
			 WHERE shop_id = ? AND repair_order_id = ? AND snapshot_date = ? AND snapshot_trigger = ?`,
			snap.ShopID,
			snap.RepairOrderID,
			snap.SnapshotDate,
			snap.SnapshotTrigger,
		).Scan(&existingID).Error; err != nil {
			return err
		}

		now := r.clock.Now()
		snap.UpdatedAt = now

		if existingID != 0 {
			snap.ID = existingID
			return tx.Exec(
				`UPDATE ro_snapshots SET
				   tm_repair_order_id = ?, ro_status = ?, ro_number = ?,
				   customer_name = ?, vehicle_description = ?, advisor_name = ?,
				   authorized_revenue = ?, authorized_cost = ?, authorized_profit = ?,
				   authorized_gp_percent = ?, authorized_job_count = ?,
				   parts_revenue = ?, parts_cost = ?, parts_profit = ?,
				   labor_revenue = ?, labor_cost = ?, labor_profit = ?, labor_hours = ?,
				   sublet_revenue = ?, sublet_cost = ?, fees_total = ?, tax_total = ?,
				   potential_revenue = ?, potential_job_count = ?,
				   tm_reported_gp_percent = ?, variance_percent = ?, variance_reason = ?,
				   calculation_method = ?, updated_at = ?
				 WHERE id = ?`,
				snap.TMRepairOrderID, snap.ROStatus, snap.RONumber,
				snap.CustomerName, snap.VehicleDescription, snap.AdvisorName,
				snap.AuthorizedRevenue, snap.AuthorizedCost, snap.AuthorizedProfit,
				snap.AuthorizedGPPercent, snap.AuthorizedJobCount,
				snap.PartsRevenue, snap.PartsCost, snap.PartsProfit,
				snap.LaborRevenue, snap.LaborCost, snap.LaborProfit, snap.LaborHours,
				snap.SubletRevenue, snap.SubletCost, snap.FeesTotal, snap.TaxTotal,
				snap.PotentialRevenue, snap.PotentialJobCount,
				snap.TMReportedGPPercent, snap.VariancePercent, snap.VarianceReason,
				snap.CalculationMethod, snap.UpdatedAt,
				existingID,
			).Error
		}

		snap.ID = r.genID.Generate()
		snap.CreatedAt = now
		created = true
		return tx.Exec(
			`INSERT INTO ro_snapshots (
			   id, shop_id, repair_order_id, tm_repair_order_id,
			   snapshot_date, snapshot_trigger, ro_status, ro_number,
			   customer_name, vehicle_description, advisor_name,
			   authorized_revenue, authorized_cost, authorized_profit,
			   authorized_gp_percent, authorized_job_count,
			   parts_revenue, parts_cost, parts_profit,
			   labor_revenue, labor_cost, labor_profit, labor_hours,
			   sublet_revenue, sublet_cost, fees_total, tax_total,
			   potential_revenue, potential_job_count,
			   tm_reported_gp_percent, variance_percent, variance_reason,
			   calculation_method, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.ID, snap.ShopID, snap.RepairOrderID, snap.TMRepairOrderID,
			snap.SnapshotDate, snap.SnapshotTrigger, snap.ROStatus, snap.RONumber,
			snap.CustomerName, snap.VehicleDescription, snap.AdvisorName,
			snap.AuthorizedRevenue, snap.AuthorizedCost, snap.AuthorizedProfit,
			snap.AuthorizedGPPercent, snap.AuthorizedJobCount,
			snap.PartsRevenue, snap.PartsCost, snap.PartsProfit,
			snap.LaborRevenue, snap.LaborCost, snap.LaborProfit, snap.LaborHours,
			snap.SubletRevenue, snap.SubletCost, snap.FeesTotal, snap.TaxTotal,
			snap.PotentialRevenue, snap.PotentialJobCount,
			snap.TMReportedGPPercent, snap.VariancePercent, snap.VarianceReason,
			snap.CalculationMethod, snap.CreatedAt, snap.UpdatedAt,
		).Error
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (r *repo) ForDate(ctx context.Context, db *gorm.DB, shopID snowflake.ID, date time.Time) ([]domain.Snapshot, error) {
	var snaps []domain.Snapshot
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM ro_snapshots
		 WHERE shop_id = ? AND snapshot_date = ?
		 ORDER BY id ASC`,
		shopID,
		date,
	).Scan(&snaps).Error
	if err != nil {
		return nil, err
	}
	return snaps, nil
}
