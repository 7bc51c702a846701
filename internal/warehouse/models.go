package warehouse

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Persisted source tables the snapshot builder reads. Rows are written by
// internal/ingest; the snapshot and daily-metric pipelines treat everything
// here as read-only.

// Shop maps the upstream shop identifier to the local row.
type Shop struct {
	ID        snowflake.ID `gorm:"column:id;primaryKey"`
	TMID      int64        `gorm:"column:tm_id"`
	Name      string       `gorm:"column:name"`
	CreatedAt time.Time    `gorm:"column:created_at"`
}

func (Shop) TableName() string { return "shops" }

// RepairOrder is the warehoused transaction header. The authorized_* totals
// were computed at ingestion time from the upstream profit endpoint and are
// carried through into snapshots; category splits are re-derived from line
// items instead.
type RepairOrder struct {
	ID            snowflake.ID `gorm:"column:id;primaryKey"`
	ShopID        snowflake.ID `gorm:"column:shop_id"`
	TMID          int64        `gorm:"column:tm_id"`
	RONumber      int64        `gorm:"column:ro_number"`
	Status        string       `gorm:"column:status"`
	PostedDate    *time.Time   `gorm:"column:posted_date"`
	CompletedDate *time.Time   `gorm:"column:completed_date"`

	CustomerID       *snowflake.ID `gorm:"column:customer_id"`
	VehicleID        *snowflake.ID `gorm:"column:vehicle_id"`
	ServiceAdvisorID *snowflake.ID `gorm:"column:service_advisor_id"`

	AuthorizedRevenue   int64    `gorm:"column:authorized_revenue"`
	AuthorizedCost      int64    `gorm:"column:authorized_cost"`
	AuthorizedProfit    int64    `gorm:"column:authorized_profit"`
	AuthorizedGPPercent *float64 `gorm:"column:authorized_gp_percent"`
	AuthorizedJobCount  int      `gorm:"column:authorized_job_count"`
	AuthorizedTotal     int64    `gorm:"column:authorized_total"`
	AuthorizedTax       int64    `gorm:"column:authorized_tax"`

	PotentialTotal    int64 `gorm:"column:potential_total"`
	PotentialJobCount int   `gorm:"column:potential_job_count"`
	PotentialTax      int64 `gorm:"column:potential_tax"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (RepairOrder) TableName() string { return "repair_orders" }

// Job is a warehoused unit of work within a repair order.
type Job struct {
	ID            snowflake.ID `gorm:"column:id;primaryKey"`
	ShopID        snowflake.ID `gorm:"column:shop_id"`
	RepairOrderID snowflake.ID `gorm:"column:repair_order_id"`
	TMID          int64        `gorm:"column:tm_id"`
	Name          string       `gorm:"column:name"`
	Authorized    bool         `gorm:"column:authorized"`
}

func (Job) TableName() string { return "jobs" }

// JobPart is a warehoused parts line. Cost is per unit; Total is the line
// retail total.
type JobPart struct {
	ID            snowflake.ID    `gorm:"column:id;primaryKey"`
	ShopID        snowflake.ID    `gorm:"column:shop_id"`
	RepairOrderID snowflake.ID    `gorm:"column:repair_order_id"`
	JobID         snowflake.ID    `gorm:"column:job_id"`
	TMID          int64           `gorm:"column:tm_id"`
	Retail        int64           `gorm:"column:retail"`
	Cost          int64           `gorm:"column:cost"`
	Quantity      decimal.Decimal `gorm:"column:quantity;type:numeric"`
	Total         int64           `gorm:"column:total"`
}

func (JobPart) TableName() string { return "job_parts" }

// JobLabor is a warehoused labor line with the cost already resolved
// through the rate fallback chain at ingestion time.
type JobLabor struct {
	ID             snowflake.ID    `gorm:"column:id;primaryKey"`
	ShopID         snowflake.ID    `gorm:"column:shop_id"`
	RepairOrderID  snowflake.ID    `gorm:"column:repair_order_id"`
	JobID          snowflake.ID    `gorm:"column:job_id"`
	TMID           int64           `gorm:"column:tm_id"`
	Hours          decimal.Decimal `gorm:"column:hours;type:numeric"`
	Rate           int64           `gorm:"column:rate"`
	Total          int64           `gorm:"column:total"`
	LaborCost      int64           `gorm:"column:labor_cost"`
	TechnicianName string          `gorm:"column:technician_name"`
}

func (JobLabor) TableName() string { return "job_labor" }

// JobSublet is a warehoused sublet line.
type JobSublet struct {
	ID            snowflake.ID `gorm:"column:id;primaryKey"`
	ShopID        snowflake.ID `gorm:"column:shop_id"`
	RepairOrderID snowflake.ID `gorm:"column:repair_order_id"`
	JobID         snowflake.ID `gorm:"column:job_id"`
	TMID          int64        `gorm:"column:tm_id"`
	Retail        int64        `gorm:"column:retail"`
	Cost          int64        `gorm:"column:cost"`
}

func (JobSublet) TableName() string { return "job_sublets" }

// JobFee is a warehoused fee line. Fees carry no cost.
type JobFee struct {
	ID            snowflake.ID `gorm:"column:id;primaryKey"`
	ShopID        snowflake.ID `gorm:"column:shop_id"`
	RepairOrderID snowflake.ID `gorm:"column:repair_order_id"`
	JobID         snowflake.ID `gorm:"column:job_id"`
	Total         int64        `gorm:"column:total"`
}

func (JobFee) TableName() string { return "job_fees" }

// Customer holds display metadata for snapshots.
type Customer struct {
	ID        snowflake.ID `gorm:"column:id;primaryKey"`
	ShopID    snowflake.ID `gorm:"column:shop_id"`
	FirstName string       `gorm:"column:first_name"`
	LastName  string       `gorm:"column:last_name"`
}

func (Customer) TableName() string { return "customers" }

// Vehicle holds display metadata for snapshots.
type Vehicle struct {
	ID     snowflake.ID `gorm:"column:id;primaryKey"`
	ShopID snowflake.ID `gorm:"column:shop_id"`
	Year   int          `gorm:"column:year"`
	Make   string       `gorm:"column:make"`
	Model  string       `gorm:"column:model"`
}

func (Vehicle) TableName() string { return "vehicles" }

// Employee holds display metadata for snapshots (service advisors).
type Employee struct {
	ID        snowflake.ID `gorm:"column:id;primaryKey"`
	ShopID    snowflake.ID `gorm:"column:shop_id"`
	FirstName string       `gorm:"column:first_name"`
	LastName  string       `gorm:"column:last_name"`
}

func (Employee) TableName() string { return "employees" }
