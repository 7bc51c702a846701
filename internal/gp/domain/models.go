package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// All monetary values are int64 minor units (cents). Floating point is used
// only for percentages in result structures.

// DefaultTechRateCents is the last-resort hourly cost rate when no
// technician is assigned and no shop average is known. Without it a labor
// line with no technician would carry zero cost and report 100% margin.
const DefaultTechRateCents int64 = 2500

// DefaultTaxRate is assumed when the upstream document carries no tax rate.
const DefaultTaxRate = 0.075

// Part is a parts line item as reported upstream. Cost and Retail may be
// per-unit or pre-multiplied line totals depending on which upstream
// endpoint produced the record; the normalizer resolves that.
type Part struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	Cost     int64           `json:"cost"`
	Retail   int64           `json:"retail"`
	Total    int64           `json:"total"`
}

// Technician is the inline technician reference on a labor line.
type Technician struct {
	ID         int64  `json:"id"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	HourlyRate int64  `json:"hourlyRate"`
}

// LaborEntry is a labor line item. Rate is the retail (billed) hourly rate;
// the cost rate is resolved through the technician fallback chain.
type LaborEntry struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Hours      decimal.Decimal `json:"hours"`
	Rate       int64           `json:"rate"`
	Technician *Technician     `json:"technician"`
}

// Vendor is the sublet vendor reference.
type Vendor struct {
	Name string `json:"name"`
}

// Sublet is outsourced work billed through the RO.
type Sublet struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Vendor *Vendor `json:"vendor"`
	Cost   int64   `json:"cost"`
	Retail int64   `json:"retail"`
}

// Fee is an RO-level fee. Percentage-based fees are computed against the
// pre-fee subtotal and optionally capped; fees carry no cost.
type Fee struct {
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
	Cap        int64   `json:"cap"`
	Taxable    bool    `json:"taxable"`
	Amount     int64   `json:"amount"`
}

// FeeList matches the upstream envelope {"fees": {"data": [...]}}.
type FeeList struct {
	Data []Fee `json:"data"`
}

// Job is a unit of proposed or authorized work within a repair order.
// Fees here are job-scoped line items persisted by ingestion; RO-level
// fees live in RepairOrder.Fees and drive the fee attribution.
type Job struct {
	ID             int64        `json:"id"`
	Name           string       `json:"name"`
	Authorized     bool         `json:"authorized"`
	AuthorizedDate string       `json:"authorizedDate"`
	Parts          []Part       `json:"parts"`
	Labor          []LaborEntry `json:"labor"`
	Sublets        []Sublet     `json:"sublets"`
	Fees           []Fee        `json:"fees"`
	Discount       int64        `json:"discount"`
	PartsTaxTotal  int64        `json:"partsTaxTotal"`
	LaborTaxTotal  int64        `json:"laborTaxTotal"`
	FeesTaxTotal   int64        `json:"feesTaxTotal"`
}

// Person is a customer or service-writer reference on the RO document.
type Person struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Vehicle is the vehicle reference on the RO document.
type Vehicle struct {
	Year  int    `json:"year"`
	Make  string `json:"make"`
	Model string `json:"model"`
}

// ROStatus is the upstream status reference on the RO document.
type ROStatus struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// RepairOrder is the upstream transaction document (estimate). Absent,
// null, or mistyped money fields decode to zero values; that is the
// contract with the source system, not an error condition. PostedDate and CompletedDate are ISO
// timestamps; only the date portion is meaningful downstream.
type RepairOrder struct {
	ID                int64     `json:"id"`
	RepairOrderNumber int64     `json:"repairOrderNumber"`
	Status            *ROStatus `json:"repairOrderStatus"`
	PostedDate        string    `json:"postedDate"`
	CompletedDate     string    `json:"completedDate"`
	Customer          *Person   `json:"customer"`
	Vehicle           *Vehicle  `json:"vehicle"`
	ServiceWriter     *Person   `json:"serviceWriter"`
	Jobs              []Job     `json:"jobs"`
	Fees              FeeList   `json:"fees"`
	Tax               int64     `json:"tax"`
	TaxRate           float64   `json:"taxRate"`
	Discount          int64     `json:"discount"`
	BalanceDue        int64     `json:"balanceDue"`
}

// ShopConfig is the cached per-shop rate table consumed by the rate
// resolver. Built once per TTL window and shared read-only across
// concurrent calculations.
type ShopConfig struct {
	ShopID      string
	ShopName    string
	AvgTechRate int64
	TechRates   map[int64]int64
	TechNames   map[int64]string
	TaxRate     float64
	CachedAt    time.Time
}

// DefaultShopConfig returns a config populated with fallback values only,
// used when the upstream employee fetch fails.
func DefaultShopConfig(shopID string, now time.Time) *ShopConfig {
	return &ShopConfig{
		ShopID:      shopID,
		AvgTechRate: DefaultTechRateCents,
		TechRates:   map[int64]int64{},
		TechNames:   map[int64]string{},
		TaxRate:     DefaultTaxRate,
		CachedAt:    now,
	}
}
