package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CalculationMethodSnapshots marks rows derived from the snapshot table.
// Daily metrics are never computed from raw line items; the snapshot table
// is the single source of truth for every reporting layer above it.
const CalculationMethodSnapshots = "FROM_RO_SNAPSHOTS"

// DailyMetric is the per-shop per-date roll-up of snapshots. Uniquely
// identified by (shop_id, metric_date); rebuilds overwrite the whole row.
type DailyMetric struct {
	ID         snowflake.ID `gorm:"column:id;primaryKey"`
	ShopID     snowflake.ID `gorm:"column:shop_id"`
	MetricDate time.Time    `gorm:"column:metric_date"`

	ROCount          int `gorm:"column:ro_count"`
	ROPostedCount    int `gorm:"column:ro_posted_count"`
	ROCompletedCount int `gorm:"column:ro_completed_count"`

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

	AvgROValue     *int64 `gorm:"column:avg_ro_value"`
	AvgROProfit    *int64 `gorm:"column:avg_ro_profit"`
	AvgLaborRate   *int64 `gorm:"column:avg_labor_rate"`
	GPPerLaborHour *int64 `gorm:"column:gp_per_labor_hour"`

	PotentialRevenue  int64    `gorm:"column:potential_revenue"`
	PotentialJobCount int      `gorm:"column:potential_job_count"`
	AuthorizationRate *float64 `gorm:"column:authorization_rate"`

	CalculationMethod   string    `gorm:"column:calculation_method"`
	SourceSnapshotCount int       `gorm:"column:source_snapshot_count"`
	CreatedAt           time.Time `gorm:"column:created_at"`
	UpdatedAt           time.Time `gorm:"column:updated_at"`
}

func (DailyMetric) TableName() string { return "daily_shop_metrics" }

// ErrorDetail is one recorded per-day failure in a rebuild run.
type ErrorDetail struct {
	Date  string `json:"date"`
	Error string `json:"error"`
}

// RebuildResult summarizes one rebuild run.
type RebuildResult struct {
	ShopTMID      int64
	DaysProcessed int
	Created       int
	Updated       int
	SkippedDays   int
	Errors        int
	ErrorDetails  []ErrorDetail
}

// Repository persists daily metrics.
type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, metric *DailyMetric) (created bool, err error)
	Range(ctx context.Context, db *gorm.DB, shopID snowflake.ID, start, end time.Time) ([]DailyMetric, error)
}

// Service rebuilds daily metrics from snapshots for a date range.
type Service interface {
	RebuildDailyMetrics(ctx context.Context, shopTMID int64, start, end time.Time) (RebuildResult, error)
}
