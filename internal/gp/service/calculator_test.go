package service

import (
	"testing"

	gpdomain "github.com/shopledger/shopledger/internal/gp/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCalculator() *Calculator {
	return NewCalculator(Params{Log: zap.NewNop()})
}

func testRepairOrder() gpdomain.RepairOrder {
	return gpdomain.RepairOrder{
		ID:                900,
		RepairOrderNumber: 1042,
		Customer:          &gpdomain.Person{ID: 1, FirstName: "Sam", LastName: "Lee"},
		Vehicle:           &gpdomain.Vehicle{Year: 2019, Make: "Honda", Model: "Civic"},
		ServiceWriter:     &gpdomain.Person{ID: 2, FirstName: "Ana", LastName: "Ruiz"},
		Tax:               2000,
		Jobs: []gpdomain.Job{
			{
				ID:         1,
				Name:       "Brakes",
				Authorized: true,
				Parts: []gpdomain.Part{
					{Quantity: decimal.NewFromInt(2), Cost: 3000, Retail: 6000},
				},
				Labor: []gpdomain.LaborEntry{
					{Hours: decimal.NewFromInt(2), Rate: 12000},
				},
			},
			{
				ID:         2,
				Name:       "Declined Work",
				Authorized: false,
				Parts: []gpdomain.Part{
					{Quantity: decimal.NewFromInt(1), Cost: 100000, Retail: 200000},
				},
			},
		},
		Fees: gpdomain.FeeList{Data: []gpdomain.Fee{
			{Name: "Shop Supplies", Percentage: 5, Cap: 500, Taxable: true},
		}},
	}
}

func TestCalculateJobGP(t *testing.T) {
	calc := newTestCalculator()
	cfg := testShopConfig()

	job := gpdomain.Job{
		ID:         1,
		Name:       "Brakes",
		Authorized: true,
		Discount:   1000,
		Parts: []gpdomain.Part{
			{Quantity: decimal.NewFromInt(2), Cost: 3000, Retail: 6000},
		},
		Labor: []gpdomain.LaborEntry{
			{Hours: decimal.NewFromInt(2), Rate: 12000},
		},
		Sublets: []gpdomain.Sublet{
			{Cost: 5000, Retail: 8000},
		},
	}

	result := calc.CalculateJobGP(job, cfg)

	assert.Equal(t, int64(12000), result.PartsRetail)
	assert.Equal(t, int64(6000), result.PartsCost)
	assert.Equal(t, int64(24000), result.LaborRetail)
	assert.Equal(t, int64(9000), result.LaborCost) // 2h at the 4500 shop average
	assert.Equal(t, int64(8000), result.SubletRetail)
	assert.Equal(t, int64(5000), result.SubletCost)

	// subtotal = 12000 + 24000 + 8000 - 1000 discount
	assert.Equal(t, int64(43000), result.Subtotal)
	assert.Equal(t, int64(43000-20000), result.GrossProfit)
	assert.Equal(t, result.Subtotal-(result.PartsCost+result.LaborCost+result.SubletCost), result.GrossProfit)
}

func TestCalculateROTrueGPAuthorizedOnly(t *testing.T) {
	calc := newTestCalculator()
	cfg := testShopConfig()

	result := calc.CalculateROTrueGP(testRepairOrder(), cfg, true)

	assert.Equal(t, 1, result.AuthorizedJobCount)
	assert.Equal(t, 2, result.TotalJobCount)
	require.Len(t, result.Jobs, 1)

	// Declined job contributes nothing.
	assert.Equal(t, int64(12000), result.PartsRetail)
	assert.Equal(t, int64(24000), result.LaborRetail)

	// subtotal before fees 36000; 5% = 1800, capped at 500.
	assert.Equal(t, int64(500), result.FeeBreakdown.TotalFees)
	assert.Equal(t, int64(36500), result.TotalRetail)
	assert.Equal(t, int64(15000), result.TotalCost)
	assert.Equal(t, int64(21500), result.GrossProfit)
	assert.Equal(t, result.TotalRetail-result.TotalCost, result.GrossProfit)

	assert.Equal(t, "Sam Lee", result.CustomerName)
	assert.Equal(t, "2019 Honda Civic", result.VehicleDescription)
	assert.Equal(t, "Ana Ruiz", result.AdvisorName)

	require.NotEmpty(t, result.CalculationNotes)
	assert.Contains(t, result.CalculationNotes[0], "Authorized jobs: 1/2")
}

func TestCalculateROTrueGPAllJobs(t *testing.T) {
	calc := newTestCalculator()
	cfg := testShopConfig()

	result := calc.CalculateROTrueGP(testRepairOrder(), cfg, false)

	assert.Equal(t, 2, result.AuthorizedJobCount)
	assert.Equal(t, int64(212000), result.PartsRetail)
	assert.Equal(t, result.TotalRetail-result.TotalCost, result.GrossProfit)
}

func TestCalculateROTrueGPRODiscount(t *testing.T) {
	calc := newTestCalculator()
	cfg := testShopConfig()

	ro := testRepairOrder()
	ro.Discount = 2500

	result := calc.CalculateROTrueGP(ro, cfg, true)

	assert.Equal(t, int64(2500), result.RODiscount)
	assert.Equal(t, int64(36500-2500), result.TotalRetail)

	found := false
	for _, note := range result.CalculationNotes {
		if note == "RO-level discount: $25.00" {
			found = true
		}
	}
	assert.True(t, found, "expected an RO discount note, got %v", result.CalculationNotes)
}

func TestCalculateROTrueGPTaxSumsExactly(t *testing.T) {
	calc := newTestCalculator()
	cfg := testShopConfig()

	result := calc.CalculateROTrueGP(testRepairOrder(), cfg, true)

	tb := result.TaxBreakdown
	assert.Equal(t, tb.TotalTax, tb.PartsTax+tb.LaborTax+tb.FeesTax+tb.SubletTax)
	assert.Equal(t, int64(2000), tb.TotalTax)
}

func TestCalculateROTrueGPEmptyRO(t *testing.T) {
	calc := newTestCalculator()

	result := calc.CalculateROTrueGP(gpdomain.RepairOrder{}, testShopConfig(), true)

	assert.Zero(t, result.TotalRetail)
	assert.Zero(t, result.GrossProfit)
	assert.Equal(t, 0.0, result.MarginPct)
}
