package service

import (
	"math"

	gpdomain "github.com/shopledger/shopledger/internal/gp/domain"
	"github.com/shopspring/decimal"
)

// DefaultDetectTolerance is the relative tolerance used when matching a
// reported line total against retail*quantity. Chosen empirically; override
// via Options when a shop's data proves noisier.
const DefaultDetectTolerance = 0.01

// DetectCostFormat resolves whether a part's cost/retail fields are per-unit
// or pre-multiplied line totals. Some upstream endpoints return one, some
// the other, under the same field names. Always succeeds; the returned tag
// records which branch fired for auditability.
func DetectCostFormat(part gpdomain.Part, tolerance float64) (costPerUnit, retailPerUnit int64, format gpdomain.CostFormat) {
	if tolerance <= 0 {
		tolerance = DefaultDetectTolerance
	}

	quantity := part.Quantity
	if quantity.Sign() <= 0 {
		quantity = decimal.NewFromInt(1)
	}

	if part.Total > 0 && quantity.GreaterThan(decimal.NewFromInt(1)) {
		calculated := decimal.NewFromInt(part.Retail).Mul(quantity)
		if withinTolerance(calculated.InexactFloat64(), float64(part.Total), tolerance) {
			return part.Cost, part.Retail, gpdomain.CostFormatPerUnitValidated
		}
		if withinTolerance(float64(part.Retail), float64(part.Total), tolerance) {
			return decimal.NewFromInt(part.Cost).Div(quantity).IntPart(),
				decimal.NewFromInt(part.Retail).Div(quantity).IntPart(),
				gpdomain.CostFormatTotalDivided
		}
	}

	return part.Cost, part.Retail, gpdomain.CostFormatAssumedPerUnit
}

// CalculatePartProfit normalizes a part line and computes quantity-aware
// totals.
func CalculatePartProfit(part gpdomain.Part, tolerance float64) gpdomain.PartProfit {
	quantity := part.Quantity
	if quantity.Sign() <= 0 {
		quantity = decimal.NewFromInt(1)
	}

	costPerUnit, retailPerUnit, format := DetectCostFormat(part, tolerance)

	totalCost := decimal.NewFromInt(costPerUnit).Mul(quantity).IntPart()
	totalRetail := decimal.NewFromInt(retailPerUnit).Mul(quantity).IntPart()
	profit := totalRetail - totalCost

	name := part.Name
	if name == "" {
		name = "Unknown Part"
	}

	return gpdomain.PartProfit{
		PartID:        part.ID,
		Name:          name,
		Quantity:      quantity,
		CostPerUnit:   costPerUnit,
		RetailPerUnit: retailPerUnit,
		TotalCost:     totalCost,
		TotalRetail:   totalRetail,
		Profit:        profit,
		MarginPct:     marginPct(profit, totalRetail),
		Format:        format,
	}
}

// CalculateSubletProfit computes sublet profit. Sublet fields need no
// normalization; retail and cost are line totals.
func CalculateSubletProfit(sublet gpdomain.Sublet) gpdomain.SubletProfit {
	name := sublet.Name
	if name == "" {
		name = "Sublet"
	}
	vendor := ""
	if sublet.Vendor != nil {
		vendor = sublet.Vendor.Name
	}

	profit := sublet.Retail - sublet.Cost
	return gpdomain.SubletProfit{
		SubletID:  sublet.ID,
		Name:      name,
		Vendor:    vendor,
		Cost:      sublet.Cost,
		Retail:    sublet.Retail,
		Profit:    profit,
		MarginPct: marginPct(profit, sublet.Retail),
	}
}

func withinTolerance(value, reference, tolerance float64) bool {
	if reference <= 0 {
		return false
	}
	return math.Abs(value-reference)/reference < tolerance
}

func marginPct(profit, retail int64) float64 {
	if retail <= 0 {
		return 0
	}
	return math.Round(float64(profit)/float64(retail)*10000) / 100
}
