package warehouse

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// LineItems is everything persisted for one repair order, grouped the way
// the snapshot builder consumes it.
type LineItems struct {
	Jobs    []Job
	Parts   []JobPart
	Labor   []JobLabor
	Sublets []JobSublet
	Fees    []JobFee
}

// AuthorizedJobIDs returns the set of job ids whose authorized flag is set.
func (li LineItems) AuthorizedJobIDs() map[snowflake.ID]struct{} {
	ids := make(map[snowflake.ID]struct{}, len(li.Jobs))
	for _, job := range li.Jobs {
		if job.Authorized {
			ids[job.ID] = struct{}{}
		}
	}
	return ids
}

// Repository reads the warehoused source tables.
type Repository interface {
	FindShopByTMID(ctx context.Context, tmID int64) (*Shop, error)
	QualifyingRepairOrders(ctx context.Context, shopID snowflake.ID, start, endExclusive time.Time) ([]RepairOrder, error)
	LineItems(ctx context.Context, shopID, repairOrderID snowflake.ID) (LineItems, error)
	CustomerName(ctx context.Context, id *snowflake.ID) string
	VehicleDescription(ctx context.Context, id *snowflake.ID) string
	AdvisorName(ctx context.Context, id *snowflake.ID) string
}

type Params struct {
	fx.In

	DB *gorm.DB
}

type repo struct {
	db *gorm.DB
}

func NewRepository(p Params) Repository {
	return &repo{db: p.DB}
}

func (r *repo) FindShopByTMID(ctx context.Context, tmID int64) (*Shop, error) {
	var shop Shop
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, tm_id, name, created_at FROM shops WHERE tm_id = ?`,
		tmID,
	).Scan(&shop).Error
	if err != nil {
		return nil, err
	}
	if shop.ID == 0 {
		return nil, nil
	}
	return &shop, nil
}

// QualifyingRepairOrders returns ROs whose posted date OR completed date
// falls in [start, endExclusive).
func (r *repo) QualifyingRepairOrders(ctx context.Context, shopID snowflake.ID, start, endExclusive time.Time) ([]RepairOrder, error) {
	var ros []RepairOrder
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, shop_id, tm_id, ro_number, status, posted_date, completed_date,
		        customer_id, vehicle_id, service_advisor_id,
		        authorized_revenue, authorized_cost, authorized_profit, authorized_gp_percent,
		        authorized_job_count, authorized_total, authorized_tax,
		        potential_total, potential_job_count, potential_tax
		 FROM repair_orders
		 WHERE shop_id = ?
		   AND ((posted_date >= ? AND posted_date < ?)
		     OR (completed_date >= ? AND completed_date < ?))
		 ORDER BY id ASC`,
		shopID,
		start, endExclusive,
		start, endExclusive,
	).Scan(&ros).Error
	if err != nil {
		return nil, err
	}
	return ros, nil
}

func (r *repo) LineItems(ctx context.Context, shopID, repairOrderID snowflake.ID) (LineItems, error) {
	var items LineItems

	if err := r.db.WithContext(ctx).Raw(
		`SELECT id, shop_id, repair_order_id, tm_id, name, authorized
		 FROM jobs WHERE shop_id = ? AND repair_order_id = ?`,
		shopID, repairOrderID,
	).Scan(&items.Jobs).Error; err != nil {
		return LineItems{}, err
	}

	if err := r.db.WithContext(ctx).Raw(
		`SELECT id, shop_id, repair_order_id, job_id, tm_id, retail, cost, quantity, total
		 FROM job_parts WHERE shop_id = ? AND repair_order_id = ?`,
		shopID, repairOrderID,
	).Scan(&items.Parts).Error; err != nil {
		return LineItems{}, err
	}

	if err := r.db.WithContext(ctx).Raw(
		`SELECT id, shop_id, repair_order_id, job_id, tm_id, hours, rate, total, labor_cost, technician_name
		 FROM job_labor WHERE shop_id = ? AND repair_order_id = ?`,
		shopID, repairOrderID,
	).Scan(&items.Labor).Error; err != nil {
		return LineItems{}, err
	}

	if err := r.db.WithContext(ctx).Raw(
		`SELECT id, shop_id, repair_order_id, job_id, tm_id, retail, cost
		 FROM job_sublets WHERE shop_id = ? AND repair_order_id = ?`,
		shopID, repairOrderID,
	).Scan(&items.Sublets).Error; err != nil {
		return LineItems{}, err
	}

	if err := r.db.WithContext(ctx).Raw(
		`SELECT id, shop_id, repair_order_id, job_id, total
		 FROM job_fees WHERE shop_id = ? AND repair_order_id = ?`,
		shopID, repairOrderID,
	).Scan(&items.Fees).Error; err != nil {
		return LineItems{}, err
	}

	return items, nil
}

// Display-name lookups fall back to "Unknown" on any miss or failure; a
// snapshot is never blocked on display metadata.

func (r *repo) CustomerName(ctx context.Context, id *snowflake.ID) string {
	if id == nil || *id == 0 {
		return unknownName
	}
	var row Customer
	if err := r.db.WithContext(ctx).Raw(
		`SELECT id, first_name, last_name FROM customers WHERE id = ?`,
		*id,
	).Scan(&row).Error; err != nil || row.ID == 0 {
		return unknownName
	}
	return personName(row.FirstName, row.LastName)
}

func (r *repo) VehicleDescription(ctx context.Context, id *snowflake.ID) string {
	if id == nil || *id == 0 {
		return unknownName
	}
	var row Vehicle
	if err := r.db.WithContext(ctx).Raw(
		`SELECT id, year, make, model FROM vehicles WHERE id = ?`,
		*id,
	).Scan(&row).Error; err != nil || row.ID == 0 {
		return unknownName
	}
	parts := make([]string, 0, 3)
	if row.Year > 0 {
		parts = append(parts, strconv.Itoa(row.Year))
	}
	if row.Make != "" {
		parts = append(parts, row.Make)
	}
	if row.Model != "" {
		parts = append(parts, row.Model)
	}
	if len(parts) == 0 {
		return unknownName
	}
	return strings.Join(parts, " ")
}

func (r *repo) AdvisorName(ctx context.Context, id *snowflake.ID) string {
	if id == nil || *id == 0 {
		return unknownName
	}
	var row Employee
	if err := r.db.WithContext(ctx).Raw(
		`SELECT id, first_name, last_name FROM employees WHERE id = ?`,
		*id,
	).Scan(&row).Error; err != nil || row.ID == 0 {
		return unknownName
	}
	return personName(row.FirstName, row.LastName)
}

const unknownName = "Unknown"

func personName(first, last string) string {
	name := strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
	if name == "" {
		return unknownName
	}
	return name
}
