package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrShopNotFound aborts a build run: no useful work can proceed without a
// resolvable shop.
var ErrShopNotFound = errors.New("shop_not_found")

// CalculationMethodTrueGP marks rows produced by this pipeline, as opposed
// to figures copied from the upstream system's own aggregates.
const CalculationMethodTrueGP = "TRUE_GP"

// Trigger is the event that produced a snapshot.
type Trigger string

const (
	TriggerPosted    Trigger = "posted"
	TriggerCompleted Trigger = "completed"
	TriggerManual    Trigger = "manual"
)

// Snapshot is one persisted point-in-time GP result for a repair order.
// Uniquely identified by (shop_id, repair_order_id, snapshot_date,
// snapshot_trigger); rebuilds overwrite the whole row, never patch it.
type Snapshot struct {
	ID              snowflake.ID `gorm:"column:id;primaryKey"`
	ShopID          snowflake.ID `gorm:"column:shop_id"`
	RepairOrderID   snowflake.ID `gorm:"column:repair_order_id"`
	TMRepairOrderID int64        `gorm:"column:tm_repair_order_id"`
	SnapshotDate    time.Time    `gorm:"column:snapshot_date"`
	SnapshotTrigger Trigger      `gorm:"column:snapshot_trigger"`

	ROStatus string `gorm:"column:ro_status"`
	RONumber int64  `gorm:"column:ro_number"`

	CustomerName       string `gorm:"column:customer_name"`
	VehicleDescription string `gorm:"column:vehicle_description"`
	AdvisorName        string `gorm:"column:advisor_name"`

	AuthorizedRevenue   int64    `gorm:"column:authorized_revenue"`
	AuthorizedCost      int64    `gorm:"column:authorized_cost"`
	AuthorizedProfit    int64    `gorm:"column:authorized_profit"`
	AuthorizedGPPercent *float64 `gorm:"column:authorized_gp_percent"`
	AuthorizedJobCount  int      `gorm:"column:authorized_job_count"`

	PartsRevenue  int64           `gorm:"column:parts_revenue"`
	PartsCost     int64           `gorm:"column:parts_cost"`
	PartsProfit   int64           `gorm:"column:parts_profit"`
	LaborRevenue  int64           `gorm:"column:labor_revenue"`
	LaborCost     int64           `gorm:"column:labor_cost"`
	LaborProfit   int64           `gorm:"column:labor_profit"`
	LaborHours    decimal.Decimal `gorm:"column:labor_hours;type:numeric"`
	SubletRevenue int64           `gorm:"column:sublet_revenue"`
	SubletCost    int64           `gorm:"column:sublet_cost"`
	FeesTotal     int64           `gorm:"column:fees_total"`
	TaxTotal      int64           `gorm:"column:tax_total"`

	PotentialRevenue  int64 `gorm:"column:potential_revenue"`
	PotentialJobCount int   `gorm:"column:potential_job_count"`

	TMReportedGPPercent *float64 `gorm:"column:tm_reported_gp_percent"`
	VariancePercent     *float64 `gorm:"column:variance_percent"`
	VarianceReason      *string  `gorm:"column:variance_reason"`

	CalculationMethod string    `gorm:"column:calculation_method"`
	CreatedAt         time.Time `gorm:"column:created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
}

func (Snapshot) TableName() string { return "ro_snapshots" }

// ErrorDetail is one recorded per-RO failure in a build run.
type ErrorDetail struct {
	ROID  int64  `json:"ro_id"`
	Error string `json:"error"`
}

// BuildResult summarizes one build run. Partial success is the expected
// steady state for a multi-hundred-RO batch.
type BuildResult struct {
	ShopTMID      int64
	QualifyingROs int
	Created       int
	Updated       int
	Errors        int
	ErrorDetails  []ErrorDetail
}

// Repository persists snapshots.
type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, snap *Snapshot) (created bool, err error)
	ForDate(ctx context.Context, db *gorm.DB, shopID snowflake.ID, date time.Time) ([]Snapshot, error)
}

// Service builds snapshots for all qualifying repair orders in a window.
type Service interface {
	BuildSnapshotsForPeriod(ctx context.Context, shopTMID int64, start, end time.Time) (BuildResult, error)
}
