package warehouse

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopledger/shopledger/internal/clock"
	pkgdb "github.com/shopledger/shopledger/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Writer persists ingested repair orders. The header upserts by
// (shop_id, tm_id); line items are replaced wholesale per RO so a re-ingest
// can never leave stale lines behind.
type Writer interface {
	EnsureShop(ctx context.Context, tmID int64, name string) (*Shop, error)
	UpsertRepairOrder(ctx context.Context, ro *RepairOrder) (created bool, err error)
	ReplaceLineItems(ctx context.Context, shopID, repairOrderID snowflake.ID, items LineItems) error
}

type WriterParams struct {
	fx.In

	DB    *gorm.DB
	Clock clock.Clock
	GenID *snowflake.Node
}

type writer struct {
	db    *gorm.DB
	clock clock.Clock
	genID *snowflake.Node
}

func NewWriter(p WriterParams) Writer {
	return &writer{db: p.DB, clock: p.Clock, genID: p.GenID}
}

func (w *writer) EnsureShop(ctx context.Context, tmID int64, name string) (*Shop, error) {
	var shop Shop
	err := w.db.WithContext(ctx).Raw(
		`SELECT id, tm_id, name, created_at FROM shops WHERE tm_id = ?`,
		tmID,
	).Scan(&shop).Error
	if err != nil {
		return nil, err
	}
	if shop.ID != 0 {
		return &shop, nil
	}

	shop = Shop{
		ID:        w.genID.Generate(),
		TMID:      tmID,
		Name:      name,
		CreatedAt: w.clock.Now(),
	}
	err = w.db.WithContext(ctx).Exec(
		`INSERT INTO shops (id, tm_id, name, created_at) VALUES (?, ?, ?, ?)`,
		shop.ID, shop.TMID, shop.Name, shop.CreatedAt,
	).Error
	if err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return w.EnsureShop(ctx, tmID, name)
		}
		return nil, err
	}
	return &shop, nil
}

func (w *writer) UpsertRepairOrder(ctx context.Context, ro *RepairOrder) (bool, error) {
	created, err := w.upsertRepairOrder(ctx, ro)
	if err != nil && pkgdb.IsDuplicateKeyErr(err) {
		return w.upsertRepairOrder(ctx, ro)
	}
	return created, err
}

func (w *writer) upsertRepairOrder(ctx context.Context, ro *RepairOrder) (bool, error) {
	created := false
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existingID snowflake.ID
		if err := tx.Raw(
			`SELECT id FROM repair_orders WHERE shop_id = ? AND tm_id = ?`,
			ro.ShopID, ro.TMID,
		).Scan(&existingID).Error; err != nil {
			return err
		}

		now := w.clock.Now()
		ro.UpdatedAt = now

		if existingID != 0 {
			ro.ID = existingID
			return tx.Exec(
				`UPDATE repair_orders SET
				   ro_number = ?, status = ?, posted_date = ?, completed_date = ?,
				   customer_id = ?, vehicle_id = ?, service_advisor_id = ?,
				   authorized_revenue = ?, authorized_cost = ?, authorized_profit = ?,
				   authorized_gp_percent = ?, authorized_job_count = ?,
				   authorized_total = ?, authorized_tax = ?,
				   potential_total = ?, potential_job_count = ?, potential_tax = ?,
				   updated_at = ?
				 WHERE id = ?`,
				ro.RONumber, ro.Status, ro.PostedDate, ro.CompletedDate,
				ro.CustomerID, ro.VehicleID, ro.ServiceAdvisorID,
				ro.AuthorizedRevenue, ro.AuthorizedCost, ro.AuthorizedProfit,
				ro.AuthorizedGPPercent, ro.AuthorizedJobCount,
				ro.AuthorizedTotal, ro.AuthorizedTax,
				ro.PotentialTotal, ro.PotentialJobCount, ro.PotentialTax,
				ro.UpdatedAt,
				existingID,
			).Error
		}

		ro.ID = w.genID.Generate()
		ro.CreatedAt = now
		created = true
		return tx.Exec(
			`INSERT INTO repair_orders (
			   id, shop_id, tm_id, ro_number, status, posted_date, completed_date,
			   customer_id, vehicle_id, service_advisor_id,
			   authorized_revenue, authorized_cost, authorized_profit,
			   authorized_gp_percent, authorized_job_count,
			   authorized_total, authorized_tax,
			   potential_total, potential_job_count, potential_tax,
			   created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ro.ID, ro.ShopID, ro.TMID, ro.RONumber, ro.Status, ro.PostedDate, ro.CompletedDate,
			ro.CustomerID, ro.VehicleID, ro.ServiceAdvisorID,
			ro.AuthorizedRevenue, ro.AuthorizedCost, ro.AuthorizedProfit,
			ro.AuthorizedGPPercent, ro.AuthorizedJobCount,
			ro.AuthorizedTotal, ro.AuthorizedTax,
			ro.PotentialTotal, ro.PotentialJobCount, ro.PotentialTax,
			ro.CreatedAt, ro.UpdatedAt,
		).Error
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (w *writer) ReplaceLineItems(ctx context.Context, shopID, repairOrderID snowflake.ID, items LineItems) error {
	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"job_fees", "job_sublets", "job_labor", "job_parts", "jobs"} {
			if err := tx.Exec(
				`DELETE FROM `+table+` WHERE shop_id = ? AND repair_order_id = ?`,
				shopID, repairOrderID,
			).Error; err != nil {
				return err
			}
		}

		for _, job := range items.Jobs {
			if err := tx.Exec(
				`INSERT INTO jobs (id, shop_id, repair_order_id, tm_id, name, authorized)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				job.ID, shopID, repairOrderID, job.TMID, job.Name, job.Authorized,
			).Error; err != nil {
				return err
			}
		}
		for _, part := range items.Parts {
			if err := tx.Exec(
				`INSERT INTO job_parts (id, shop_id, repair_order_id, job_id, tm_id, retail, cost, quantity, total)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				part.ID, shopID, repairOrderID, part.JobID, part.TMID,
				part.Retail, part.Cost, part.Quantity, part.Total,
			).Error; err != nil {
				return err
			}
		}
		for _, labor := range items.Labor {
			if err := tx.Exec(
				`INSERT INTO job_labor (id, shop_id, repair_order_id, job_id, tm_id, hours, rate, total, labor_cost, technician_name)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				labor.ID, shopID, repairOrderID, labor.JobID, labor.TMID,
				labor.Hours, labor.Rate, labor.Total, labor.LaborCost, labor.TechnicianName,
			).Error; err != nil {
				return err
			}
		}
		for _, sublet := range items.Sublets {
			if err := tx.Exec(
				`INSERT INTO job_sublets (id, shop_id, repair_order_id, job_id, tm_id, retail, cost)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				sublet.ID, shopID, repairOrderID, sublet.JobID, sublet.TMID,
				sublet.Retail, sublet.Cost,
			).Error; err != nil {
				return err
			}
		}
		for _, fee := range items.Fees {
			if err := tx.Exec(
				`INSERT INTO job_fees (id, shop_id, repair_order_id, job_id, total)
				 VALUES (?, ?, ?, ?, ?)`,
				fee.ID, shopID, repairOrderID, fee.JobID, fee.Total,
			).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
