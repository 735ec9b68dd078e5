package payout

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Summary is a read-only rollup of an allocation.
type Summary struct {
	PoolTips             decimal.Decimal
	PoolGratuity         decimal.Decimal
	TotalReceiverPercent decimal.Decimal
	ContributorCount     int
	ReceiverCount        int
	PaidReceiverCount    int

	TotalTips      decimal.Decimal // sum of own collected tips
	TotalGratuity  decimal.Decimal
	PayoutTips     decimal.Decimal // signed sum of deltas
	PayoutGratuity decimal.Decimal
	NetPayout      decimal.Decimal

	MissingRoles []string
}

// Summarize totals the allocation's line items.
func Summarize(alloc Allocation) Summary {
	s := Summary{
		PoolTips:             money(alloc.PoolTips),
		PoolGratuity:         money(alloc.PoolGratuity),
		TotalReceiverPercent: percent(alloc.TotalReceiverPercent),
		MissingRoles:         alloc.MissingRoles,
	}
	for _, it := range alloc.Items {
		if it.IsContributor == FlagContributor {
			s.ContributorCount++
		} else {
			s.ReceiverCount++
			if it.PayoutTips.Add(it.PayoutGratuity).IsPositive() {
				s.PaidReceiverCount++
			}
		}
		s.TotalTips = s.TotalTips.Add(it.TotalTips)
		s.TotalGratuity = s.TotalGratuity.Add(it.TotalGratuity)
		s.PayoutTips = s.PayoutTips.Add(it.PayoutTips)
		s.PayoutGratuity = s.PayoutGratuity.Add(it.PayoutGratuity)
		s.NetPayout = s.NetPayout.Add(it.NetPayout)
	}
	return s
}

// EligiblePool applies the schedule's fund triggers to the pool.
func EligiblePool(cfg ScheduleConfig, alloc Allocation) (tips, gratuity decimal.Decimal) {
	hundred := decimal.NewFromInt(100)
	tips = money(alloc.PoolTips).Mul(decimal.NewFromFloat(cfg.FundTriggers.TipsPercent)).Div(hundred).Round(2)
	gratuity = money(alloc.PoolGratuity).Mul(decimal.NewFromFloat(cfg.FundTriggers.GratuityPercent)).Div(hundred).Round(2)
	return tips, gratuity
}

// SortForPresentation orders items contributors first, then by name.
// The calculator's order is not significant; this is for display only.
func SortForPresentation(items []PayoutLineItem) []PayoutLineItem {
	out := make([]PayoutLineItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := out[i].IsContributor == FlagContributor, out[j].IsContributor == FlagContributor
		if ci != cj {
			return ci
		}
		return strings.ToLower(out[i].EmployeeName) < strings.ToLower(out[j].EmployeeName)
	})
	return out
}
