package service

import (
	gpdomain "github.com/shopledger/shopledger/internal/gp/domain"
)

// CalculateTaxBreakdown attributes the RO's reported total tax across
// categories. When authorized jobs carry explicit per-category tax totals,
// those are summed and the remainder is assigned to sublet so the category
// sums equal the reported total exactly. Otherwise the total is distributed
// proportionally by each category's share of taxable retail; that fallback
// is an approximation of the upstream tax engine, not a guarantee.
func CalculateTaxBreakdown(ro gpdomain.RepairOrder, partsRetail, laborRetail, taxableFees, subletRetail int64) gpdomain.TaxBreakdown {
	totalTax := ro.Tax
	taxRate := ro.TaxRate
	if taxRate == 0 {
		taxRate = gpdomain.DefaultTaxRate
	}

	var partsTax, laborTax, feesTax, subletTax int64

	for _, job := range ro.Jobs {
		if !job.Authorized {
			continue
		}
		partsTax += job.PartsTaxTotal
		laborTax += job.LaborTaxTotal
		feesTax += job.FeesTaxTotal
	}

	attributed := partsTax + laborTax + feesTax
	if attributed > 0 {
		subletTax = totalTax - attributed
	} else {
		taxableTotal := partsRetail + laborRetail + taxableFees + subletRetail
		if taxableTotal > 0 && totalTax > 0 {
			partsTax = totalTax * partsRetail / taxableTotal
			laborTax = totalTax * laborRetail / taxableTotal
			feesTax = totalTax * taxableFees / taxableTotal
			subletTax = totalTax - partsTax - laborTax - feesTax
		}
	}

	return gpdomain.TaxBreakdown{
		PartsTax:  partsTax,
		LaborTax:  laborTax,
		FeesTax:   feesTax,
		SubletTax: subletTax,
		TotalTax:  totalTax,
		TaxRate:   taxRate,
	}
}
