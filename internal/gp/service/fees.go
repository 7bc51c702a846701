package service

import (
	gpdomain "github.com/shopledger/shopledger/internal/gp/domain"
)

// CalculateFeeDetail computes one fee against the pre-fee subtotal.
// Percentage fees are capped when a positive cap is present; flat fees use
// the reported amount. Fee profit always equals the fee amount.
func CalculateFeeDetail(fee gpdomain.Fee, subtotal int64) gpdomain.FeeDetail {
	name := fee.Name
	if name == "" {
		name = "Fee"
	}

	amount := fee.Amount
	if fee.Percentage > 0 && subtotal > 0 {
		calculated := int64(float64(subtotal) * fee.Percentage / 100)
		amount = calculated
		if fee.Cap > 0 && calculated > fee.Cap {
			amount = fee.Cap
		}
	}

	return gpdomain.FeeDetail{
		Name:       name,
		Category:   gpdomain.ClassifyFee(name),
		Amount:     amount,
		Profit:     amount,
		Percentage: fee.Percentage,
		Cap:        fee.Cap,
		Taxable:    fee.Taxable,
	}
}

// CalculateFeeBreakdown computes the complete categorized fee breakdown.
func CalculateFeeBreakdown(fees []gpdomain.Fee, subtotal int64) gpdomain.FeeBreakdown {
	breakdown := gpdomain.FeeBreakdown{
		ByCategory: map[gpdomain.FeeCategory]int64{},
	}

	for _, fee := range fees {
		detail := CalculateFeeDetail(fee, subtotal)
		breakdown.Fees = append(breakdown.Fees, detail)
		breakdown.TotalFees += detail.Amount
		if detail.Taxable {
			breakdown.TaxableFees += detail.Amount
		}
		breakdown.ByCategory[detail.Category] += detail.Amount
	}

	breakdown.TotalFeeProfit = breakdown.TotalFees
	return breakdown
}
