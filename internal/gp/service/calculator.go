package service

import (
	"fmt"
	"strings"

	gpdomain "github.com/shopledger/shopledger/internal/gp/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Options tunes the calculator heuristics.
type Options struct {
	// DetectTolerance is the relative tolerance of the cost-format
	// detection (§ normalizer). Zero means the default.
	DetectTolerance float64
}

func (o Options) withDefaults() Options {
	if o.DetectTolerance <= 0 {
		o.DetectTolerance = DefaultDetectTolerance
	}
	return o
}

type Params struct {
	fx.In

	Log     *zap.Logger
	Options Options `optional:"true"`
}

// Calculator composes normalized line items into job-level and RO-level
// profit structures. Pure computation over the provided document and the
// read-only shop config; safe for concurrent use.
type Calculator struct {
	opts Options
	log  *zap.Logger
}

func NewCalculator(p Params) *Calculator {
	return &Calculator{
		opts: p.Options.withDefaults(),
		log:  p.Log.Named("gp.calculator"),
	}
}

// CalculateJobGP computes GP for a single job including all line items.
func (c *Calculator) CalculateJobGP(job gpdomain.Job, cfg *gpdomain.ShopConfig) gpdomain.JobGP {
	name := job.Name
	if name == "" {
		name = "Unknown Job"
	}

	result := gpdomain.JobGP{
		JobID:          job.ID,
		JobName:        name,
		Authorized:     job.Authorized,
		AuthorizedDate: job.AuthorizedDate,
		DiscountAmount: job.Discount,
	}

	for _, part := range job.Parts {
		pp := CalculatePartProfit(part, c.opts.DetectTolerance)
		result.PartsDetail = append(result.PartsDetail, pp)
		result.PartsRetail += pp.TotalRetail
		result.PartsCost += pp.TotalCost
	}
	result.PartsProfit = result.PartsRetail - result.PartsCost

	for _, labor := range job.Labor {
		lp := CalculateLaborProfit(labor, cfg)
		result.LaborDetail = append(result.LaborDetail, lp)
		result.LaborRetail += lp.TotalRetail
		result.LaborCost += lp.TotalCost
	}
	result.LaborProfit = result.LaborRetail - result.LaborCost

	for _, sublet := range job.Sublets {
		sp := CalculateSubletProfit(sublet)
		result.SubletDetail = append(result.SubletDetail, sp)
		result.SubletRetail += sp.Retail
		result.SubletCost += sp.Cost
	}
	result.SubletProfit = result.SubletRetail - result.SubletCost

	result.Subtotal = result.PartsRetail + result.LaborRetail + result.SubletRetail - result.DiscountAmount
	totalCost := result.PartsCost + result.LaborCost + result.SubletCost
	result.GrossProfit = result.Subtotal - totalCost
	result.MarginPct = marginPct(result.GrossProfit, result.Subtotal)

	return result
}

// CalculateROTrueGP computes true GP for an entire repair order. When
// authorizedOnly is true (the default posture), only authorized jobs
// contribute to the totals.
func (c *Calculator) CalculateROTrueGP(ro gpdomain.RepairOrder, cfg *gpdomain.ShopConfig, authorizedOnly bool) gpdomain.ROTrueGP {
	result := gpdomain.ROTrueGP{
		ROID:          ro.ID,
		RONumber:      ro.RepairOrderNumber,
		TotalJobCount: len(ro.Jobs),
		BalanceDue:    ro.BalanceDue,
	}

	if ro.Customer != nil {
		result.CustomerName = fullName(ro.Customer.FirstName, ro.Customer.LastName)
	}
	if ro.Vehicle != nil {
		result.VehicleDescription = strings.TrimSpace(fmt.Sprintf("%d %s %s", ro.Vehicle.Year, ro.Vehicle.Make, ro.Vehicle.Model))
	}
	if ro.ServiceWriter != nil {
		result.AdvisorID = ro.ServiceWriter.ID
		result.AdvisorName = fullName(ro.ServiceWriter.FirstName, ro.ServiceWriter.LastName)
	}

	var notes []string

	for _, job := range ro.Jobs {
		jobGP := c.CalculateJobGP(job, cfg)

		if authorizedOnly && !jobGP.Authorized {
			continue
		}

		result.Jobs = append(result.Jobs, jobGP)
		result.AuthorizedJobCount++

		result.PartsRetail += jobGP.PartsRetail
		result.PartsCost += jobGP.PartsCost
		result.LaborRetail += jobGP.LaborRetail
		result.LaborCost += jobGP.LaborCost
		result.SubletRetail += jobGP.SubletRetail
		result.SubletCost += jobGP.SubletCost
		result.JobDiscounts += jobGP.DiscountAmount
	}

	result.PartsProfit = result.PartsRetail - result.PartsCost
	result.LaborProfit = result.LaborRetail - result.LaborCost
	result.SubletProfit = result.SubletRetail - result.SubletCost

	subtotalBeforeFees := result.PartsRetail + result.LaborRetail + result.SubletRetail - result.JobDiscounts

	result.FeeBreakdown = CalculateFeeBreakdown(ro.Fees.Data, subtotalBeforeFees)
	result.FeeProfit = result.FeeBreakdown.TotalFeeProfit
	for _, fee := range result.FeeBreakdown.Fees {
		if fee.Amount > 0 {
			notes = append(notes, fmt.Sprintf("Fee %q (%s): $%.2f", fee.Name, fee.Category, float64(fee.Amount)/100))
		}
	}

	result.RODiscount = ro.Discount
	result.DiscountTotal = result.JobDiscounts + result.RODiscount
	if result.RODiscount > 0 {
		notes = append(notes, fmt.Sprintf("RO-level discount: $%.2f", float64(result.RODiscount)/100))
	}

	result.TotalRetail = subtotalBeforeFees + result.FeeBreakdown.TotalFees - result.RODiscount
	result.TotalCost = result.PartsCost + result.LaborCost + result.SubletCost
	result.GrossProfit = result.TotalRetail - result.TotalCost
	result.MarginPct = marginPct(result.GrossProfit, result.TotalRetail)

	result.TaxBreakdown = CalculateTaxBreakdown(ro, result.PartsRetail, result.LaborRetail, result.FeeBreakdown.TaxableFees, result.SubletRetail)
	result.TaxTotal = result.TaxBreakdown.TotalTax

	if authorizedOnly {
		notes = append([]string{fmt.Sprintf("Authorized jobs: %d/%d", result.AuthorizedJobCount, result.TotalJobCount)}, notes...)
	}
	result.CalculationNotes = notes

	return result
}
