package domain

import "strings"

// CostFormat tags how a part's cost/retail fields were interpreted.
type CostFormat string

const (
	CostFormatPerUnitValidated CostFormat = "per_unit_validated"
	CostFormatTotalDivided     CostFormat = "total_divided"
	CostFormatAssumedPerUnit   CostFormat = "assumed_per_unit"
)

// RateSource tags which rung of the fallback chain produced a labor cost rate.
type RateSource string

const (
	RateSourceAssigned    RateSource = "assigned"
	RateSourceShopAverage RateSource = "shop_average"
	RateSourceDefault     RateSource = "default"
)

// FeeCategory classifies RO-level fees for reporting.
type FeeCategory string

const (
	FeeCategoryShopSupplies   FeeCategory = "shop_supplies"
	FeeCategoryEnvironmental  FeeCategory = "environmental"
	FeeCategoryHazardousWaste FeeCategory = "hazardous_waste"
	FeeCategoryDisposal       FeeCategory = "disposal"
	FeeCategoryOther          FeeCategory = "other"
)

// ClassifyFee maps a fee name to a category by substring matching. The
// source data has no authoritative category field, so this is a best-effort
// heuristic, not a guaranteed mapping.
func ClassifyFee(name string) FeeCategory {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "shop") && strings.Contains(lower, "suppl"):
		return FeeCategoryShopSupplies
	case strings.Contains(lower, "environ"):
		return FeeCategoryEnvironmental
	case strings.Contains(lower, "hazard"), strings.Contains(lower, "haz"):
		return FeeCategoryHazardousWaste
	case strings.Contains(lower, "dispos"):
		return FeeCategoryDisposal
	default:
		return FeeCategoryOther
	}
}
