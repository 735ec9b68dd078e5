/*
calculator.go - Allocation of the tip/gratuity pool to line items

PURPOSE:
  Turns one ScheduleInstance (aggregated figures plus per-employee records)
  into one PayoutLineItem per record. Pure and deterministic: no I/O, no
  clock, and the same input always yields identical figures.

ALGORITHM:
  1. Partition records into contributors ("Yes") and receivers ("No")
  2. Pool = first record carrying OverallTips/OverallGratuity, else the
     instance totals
  3. Build read-only role tables once (counts, percentages), counting only
     role-based receivers who have worked
  4. Receiver share: role percentage / role headcount for every rule kind,
     or the record's own PayoutPercentage for manual receivers
  5. Receivers take share% of the pool
  6. Contributors give away (sum of paying receiver shares)% of their own
     collected tips and gratuity
  7. NetPayout = own tips + gratuity + payout deltas, floored at zero

ROUNDING:
  Every monetary step is rounded to cents with RoundCents. Percentages are
  never rounded. Figures are lifted into decimal.Decimal only on output.

NOTE ON THE CONTRIBUTOR FORMULA:
  Contributors fund receivers in proportion to what they personally
  collected, while receivers are paid from the pool. The asymmetry is the
  source system's behavior and is kept as is.
*/
package payout

import (
	"math"
	"sort"
)

// Allocation is the calculator output for one instance.
type Allocation struct {
	Key                  Key
	Items                []PayoutLineItem
	MissingRoles         []string
	TotalReceiverPercent float64
	PoolTips             float64
	PoolGratuity         float64
}

// roleTables are built once per instance and only read afterwards.
type roleTables struct {
	counts      map[string]int
	percentages map[string]float64
}

func buildRoleTables(cfg ScheduleConfig, records []ContributorRecord) roleTables {
	t := roleTables{
		counts:      make(map[string]int),
		percentages: cfg.RolePercentages(),
	}
	for _, r := range records {
		if r.IsContributorRecord() || r.IsManualReceiver() || !r.HasWorked() {
			continue
		}
		t.counts[r.RoleKey()]++
	}
	return t
}

// share returns the receiver percentage for r.
func (t roleTables) share(r ContributorRecord) float64 {
	if r.IsManualReceiver() {
		return *r.PayoutPercentage
	}
	if !r.HasWorked() {
		return 0
	}
	role := r.RoleKey()
	n := t.counts[role]
	if n == 0 {
		return 0
	}
	return t.percentages[role] / float64(n)
}

// pool picks the distribution base.
func pool(inst ScheduleInstance) (tips, gratuity float64) {
	tips, gratuity = inst.TotalTips, inst.TotalGratuity
	for _, r := range inst.Contributors {
		if r.OverallTips != nil || r.OverallGratuity != nil {
			if r.OverallTips != nil {
				tips = *r.OverallTips
			}
			if r.OverallGratuity != nil {
				gratuity = *r.OverallGratuity
			}
			return tips, gratuity
		}
	}
	return tips, gratuity
}

type computed struct {
	share          float64
	payoutTips     float64
	payoutGratuity float64
}

// ComputeLineItems allocates the instance pool according to cfg.
func ComputeLineItems(cfg ScheduleConfig, inst ScheduleInstance) Allocation {
	poolTips, poolGratuity := pool(inst)
	tables := buildRoleTables(cfg, inst.Contributors)

	results := make([]computed, len(inst.Contributors))

	// Receivers first: contributors' giveaway depends on which receivers
	// actually end up paid.
	totalReceiverPercent := 0.0
	for i, r := range inst.Contributors {
		if r.IsContributorRecord() {
			continue
		}
		s := tables.share(r)
		c := computed{
			share:          s,
			payoutTips:     RoundCents((s / 100) * poolTips),
			payoutGratuity: RoundCents((s / 100) * poolGratuity),
		}
		if RoundCents(c.payoutTips+c.payoutGratuity) > 0 {
			totalReceiverPercent += s
		}
		results[i] = c
	}

	for i, r := range inst.Contributors {
		if !r.IsContributorRecord() {
			continue
		}
		if r.TotalTips+r.TotalGratuity <= 0 {
			continue
		}
		results[i] = computed{
			share:          totalReceiverPercent,
			payoutTips:     RoundCents(-(totalReceiverPercent / 100) * r.TotalTips),
			payoutGratuity: RoundCents(-(totalReceiverPercent / 100) * r.TotalGratuity),
		}
	}

	items := make([]PayoutLineItem, len(inst.Contributors))
	for i, r := range inst.Contributors {
		items[i] = lineItem(r, results[i], poolTips, poolGratuity)
	}

	return Allocation{
		Key:                  inst.Key(),
		Items:                items,
		MissingRoles:         MissingRoles(cfg, inst),
		TotalReceiverPercent: totalReceiverPercent,
		PoolTips:             poolTips,
		PoolGratuity:         poolGratuity,
	}
}

func lineItem(r ContributorRecord, c computed, poolTips, poolGratuity float64) PayoutLineItem {
	net := RoundCents(r.TotalTips + r.TotalGratuity + c.payoutTips + c.payoutGratuity)
	if net < 0 {
		net = 0
	}
	receiverID := r.PayoutReceiverID
	if receiverID == "" {
		receiverID = r.JobTitle
	}
	return PayoutLineItem{
		EmployeeGUID:     r.EmployeeGUID,
		EmployeeName:     r.EmployeeName,
		JobTitle:         r.JobTitle,
		IsContributor:    r.IsContributor,
		PayoutReceiverID: receiverID,
		PayoutPercentage: percent(c.share),
		TotalSales:       money(r.TotalSales),
		NetSales:         money(r.NetSales),
		TotalTips:        money(r.TotalTips),
		TotalGratuity:    money(r.TotalGratuity),
		OverallTips:      money(poolTips),
		OverallGratuity:  money(poolGratuity),
		PayoutTips:       money(c.payoutTips),
		PayoutGratuity:   money(c.payoutGratuity),
		NetPayout:        money(net),
	}
}

// MissingRoles lists receiver roles that carry a percentage but have no
// record of that role in the instance. Warnings only: they never change
// totals and never block approval.
func MissingRoles(cfg ScheduleConfig, inst ScheduleInstance) []string {
	present := make(map[string]bool)
	for _, r := range inst.Contributors {
		present[r.RoleKey()] = true
		present[NormalizeRole(r.JobTitle)] = true
	}
	var missing []string
	for _, role := range cfg.ConfiguredRoles() {
		if cfg.ReceiverRolePercentages[role] <= 0 {
			continue
		}
		if !present[NormalizeRole(role)] {
			missing = append(missing, role)
		}
	}
	sort.Strings(missing)
	return missing
}

// roundHalfUp rounds to the nearest integer, halves toward +Inf.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
