package service

import (
	"testing"

	gpdomain "github.com/shopledger/shopledger/internal/gp/domain"
	"github.com/stretchr/testify/assert"
)

func TestCalculateTaxBreakdownExplicitTotals(t *testing.T) {
	ro := gpdomain.RepairOrder{
		Tax:     1200,
		TaxRate: 0.08,
		Jobs: []gpdomain.Job{
			{Authorized: true, PartsTaxTotal: 500, LaborTaxTotal: 400, FeesTaxTotal: 100},
			{Authorized: false, PartsTaxTotal: 9000}, // unauthorized, ignored
		},
	}

	breakdown := CalculateTaxBreakdown(ro, 10000, 8000, 2000, 3000)

	assert.Equal(t, int64(500), breakdown.PartsTax)
	assert.Equal(t, int64(400), breakdown.LaborTax)
	assert.Equal(t, int64(100), breakdown.FeesTax)
	// Remainder lands on sublet so categories sum to the reported total.
	assert.Equal(t, int64(200), breakdown.SubletTax)
	assert.Equal(t, breakdown.TotalTax, breakdown.PartsTax+breakdown.LaborTax+breakdown.FeesTax+breakdown.SubletTax)
	assert.Equal(t, 0.08, breakdown.TaxRate)
}

func TestCalculateTaxBreakdownProportional(t *testing.T) {
	ro := gpdomain.RepairOrder{
		Tax: 1000,
		Jobs: []gpdomain.Job{
			{Authorized: true},
		},
	}

	breakdown := CalculateTaxBreakdown(ro, 5000, 3000, 1000, 1000)

	assert.Equal(t, int64(500), breakdown.PartsTax)
	assert.Equal(t, int64(300), breakdown.LaborTax)
	assert.Equal(t, int64(100), breakdown.FeesTax)
	assert.Equal(t, int64(100), breakdown.SubletTax)
	assert.Equal(t, breakdown.TotalTax, breakdown.PartsTax+breakdown.LaborTax+breakdown.FeesTax+breakdown.SubletTax)
}

func TestCalculateTaxBreakdownProportionalRemainder(t *testing.T) {
	// Floor division leaves cents over; they land on sublet so the category
	// sums still equal the reported total exactly.
	ro := gpdomain.RepairOrder{Tax: 100}

	breakdown := CalculateTaxBreakdown(ro, 1000, 1000, 0, 1000)

	assert.Equal(t, int64(33), breakdown.PartsTax)
	assert.Equal(t, int64(33), breakdown.LaborTax)
	assert.Equal(t, int64(0), breakdown.FeesTax)
	assert.Equal(t, int64(34), breakdown.SubletTax)
	assert.Equal(t, breakdown.TotalTax, breakdown.PartsTax+breakdown.LaborTax+breakdown.FeesTax+breakdown.SubletTax)
}

func TestCalculateTaxBreakdownZeroTax(t *testing.T) {
	breakdown := CalculateTaxBreakdown(gpdomain.RepairOrder{}, 5000, 3000, 0, 0)

	assert.Zero(t, breakdown.TotalTax)
	assert.Zero(t, breakdown.PartsTax+breakdown.LaborTax+breakdown.FeesTax+breakdown.SubletTax)
	assert.Equal(t, gpdomain.DefaultTaxRate, breakdown.TaxRate)
}
