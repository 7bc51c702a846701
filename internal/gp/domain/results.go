package domain

import "github.com/shopspring/decimal"

// Computed GP structures. These are ephemeral: built fresh per calculation
// call and never persisted directly (the snapshot row is the persisted form).

// PartProfit is the normalized per-part result.
type PartProfit struct {
	PartID        int64
	Name          string
	Quantity      decimal.Decimal
	CostPerUnit   int64
	RetailPerUnit int64
	TotalCost     int64
	TotalRetail   int64
	Profit        int64
	MarginPct     float64
	Format        CostFormat
}

// LaborProfit is the per-labor-line result with the resolved cost rate.
type LaborProfit struct {
	LaborID     int64
	Name        string
	Hours       decimal.Decimal
	Rate        int64
	TechRate    int64
	RateSource  RateSource
	TechName    string
	TotalRetail int64
	TotalCost   int64
	Profit      int64
	MarginPct   float64
}

// SubletProfit is the per-sublet result.
type SubletProfit struct {
	SubletID  int64
	Name      string
	Vendor    string
	Cost      int64
	Retail    int64
	Profit    int64
	MarginPct float64
}

// FeeDetail is one categorized fee. Profit always equals Amount: fees carry
// no cost and hold a 100% margin.
type FeeDetail struct {
	Name       string
	Category   FeeCategory
	Amount     int64
	Profit     int64
	Percentage float64
	Cap        int64
	Taxable    bool
}

// FeeBreakdown aggregates all RO-level fees.
type FeeBreakdown struct {
	Fees           []FeeDetail
	TotalFees      int64
	TotalFeeProfit int64
	TaxableFees    int64
	ByCategory     map[FeeCategory]int64
}

// TaxBreakdown attributes the reported total tax across categories. The
// category sums always equal TotalTax exactly.
type TaxBreakdown struct {
	PartsTax  int64
	LaborTax  int64
	FeesTax   int64
	SubletTax int64
	TotalTax  int64
	TaxRate   float64
}

// JobGP is the job-level computed result.
type JobGP struct {
	JobID          int64
	JobName        string
	Authorized     bool
	AuthorizedDate string

	PartsRetail  int64
	PartsCost    int64
	PartsProfit  int64
	LaborRetail  int64
	LaborCost    int64
	LaborProfit  int64
	SubletRetail int64
	SubletCost   int64
	SubletProfit int64

	DiscountAmount int64
	Subtotal       int64
	GrossProfit    int64
	MarginPct      float64

	PartsDetail  []PartProfit
	LaborDetail  []LaborProfit
	SubletDetail []SubletProfit
}

// ROTrueGP is the transaction-level computed result.
type ROTrueGP struct {
	ROID               int64
	RONumber           int64
	CustomerName       string
	VehicleDescription string
	AdvisorID          int64
	AdvisorName        string

	TotalRetail int64
	TotalCost   int64
	GrossProfit int64
	MarginPct   float64

	PartsRetail  int64
	PartsCost    int64
	PartsProfit  int64
	LaborRetail  int64
	LaborCost    int64
	LaborProfit  int64
	SubletRetail int64
	SubletCost   int64
	SubletProfit int64

	FeeBreakdown FeeBreakdown
	FeeProfit    int64

	TaxBreakdown TaxBreakdown
	TaxTotal     int64

	JobDiscounts  int64
	RODiscount    int64
	DiscountTotal int64

	BalanceDue int64

	Jobs               []JobGP
	AuthorizedJobCount int
	TotalJobCount      int

	// CalculationNotes documents every fallback or attribution decision
	// taken. It is an audit trail, not an error channel.
	CalculationNotes []string
}
