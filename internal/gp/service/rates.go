package service

import (
	"strings"

	gpdomain "github.com/shopledger/shopledger/internal/gp/domain"
	"github.com/shopspring/decimal"
)

// ResolveTechRate resolves a labor line's hourly cost rate through the
// fallback chain: assigned technician rate (inline or via the shop rate
// table), then the shop average, then the fixed default.
func ResolveTechRate(labor gpdomain.LaborEntry, cfg *gpdomain.ShopConfig) (rate int64, source gpdomain.RateSource, techName string) {
	if tech := labor.Technician; tech != nil {
		if tech.HourlyRate > 0 {
			return tech.HourlyRate, gpdomain.RateSourceAssigned, fullName(tech.FirstName, tech.LastName)
		}
		if cfg != nil {
			if known, ok := cfg.TechRates[tech.ID]; ok {
				return known, gpdomain.RateSourceAssigned, cfg.TechNames[tech.ID]
			}
		}
	}

	if cfg != nil && cfg.AvgTechRate > 0 {
		return cfg.AvgTechRate, gpdomain.RateSourceShopAverage, ""
	}
	return gpdomain.DefaultTechRateCents, gpdomain.RateSourceDefault, ""
}

// CalculateLaborProfit computes labor profit using the resolved cost rate.
func CalculateLaborProfit(labor gpdomain.LaborEntry, cfg *gpdomain.ShopConfig) gpdomain.LaborProfit {
	name := labor.Name
	if name == "" {
		name = "Labor"
	}

	techRate, source, techName := ResolveTechRate(labor, cfg)

	totalRetail := labor.Hours.Mul(decimal.NewFromInt(labor.Rate)).IntPart()
	totalCost := labor.Hours.Mul(decimal.NewFromInt(techRate)).IntPart()
	profit := totalRetail - totalCost

	return gpdomain.LaborProfit{
		LaborID:     labor.ID,
		Name:        name,
		Hours:       labor.Hours,
		Rate:        labor.Rate,
		TechRate:    techRate,
		RateSource:  source,
		TechName:    techName,
		TotalRetail: totalRetail,
		TotalCost:   totalCost,
		Profit:      profit,
		MarginPct:   marginPct(profit, totalRetail),
	}
}

func fullName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}
