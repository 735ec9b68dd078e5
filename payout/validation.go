package payout

import "math"

// PercentageTolerance is the accepted deviation from 100.
const PercentageTolerance = 0.01

// floatSlack absorbs binary representation error, e.g. 100-99.99.
const floatSlack = 1e-9

// ValidatePercentages checks that the contributor share plus the receiver
// percentages reconcile to 100 within PercentageTolerance.
//
// Only job_weighted and custom schedules are checked, and only when at least
// one target is selected. All contributors carry the same percentage, so the
// first selected contributor's entry is the contributor share. Receivers that
// are also selected as contributors are counted once, as contributors.
func ValidatePercentages(kind RuleKind, contributors, receivers []string, percentages map[string]float64) error {
	if !kind.RequiresPercentages() {
		return nil
	}
	if len(contributors) == 0 && len(receivers) == 0 {
		return nil
	}

	lookup := make(map[string]float64, len(percentages))
	for k, v := range percentages {
		lookup[NormalizeRole(k)] = v
	}

	contributorSet := make(map[string]bool, len(contributors))
	for _, c := range contributors {
		contributorSet[NormalizeRole(c)] = true
	}

	contributorShare := 0.0
	if len(contributors) > 0 {
		contributorShare = lookup[NormalizeRole(contributors[0])]
	}

	receiverTotal := 0.0
	seen := make(map[string]bool, len(receivers))
	for _, r := range receivers {
		key := NormalizeRole(r)
		if contributorSet[key] || seen[key] {
			continue
		}
		seen[key] = true
		receiverTotal += lookup[key]
	}

	total := contributorShare + receiverTotal
	if math.Abs(total-100) > PercentageTolerance+floatSlack {
		return &PercentageMismatchError{
			ContributorShare: contributorShare,
			ReceiverTotal:    receiverTotal,
			Total:            total,
		}
	}
	return nil
}

// ValidateSchedule runs structural validation and then the percentage gate
// over the schedule's own role selections.
func ValidateSchedule(cfg ScheduleConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return ValidatePercentages(cfg.RuleKind, cfg.ContributorRoles, cfg.ReceiverRoles, cfg.SelectionPercentages())
}
