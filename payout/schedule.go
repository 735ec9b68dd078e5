/*
schedule.go - Payout schedule configuration

PURPOSE:
  A ScheduleConfig declares who contributes, who receives, and what share
  each receiving role is entitled to. It is pure data; the calculator reads
  it, nothing in this file performs I/O.

RULE KINDS:
  equal         Role share split equally among working receivers of the role
  hour_based    Same per-head split; only receivers with hours count
  job_weighted  Percentages declared per role (validated to reconcile to 100)
  custom        Like job_weighted, plus custom individual/group percentages

LIFECYCLE:
  Created and edited by an administrator. Once any instance of a schedule
  has been approved the config is locked; edits bump Version and only
  affect instances approved afterwards.

SEE ALSO:
  - validation.go: Percentage reconciliation gate
  - factory/schedule.go: JSON to ScheduleConfig conversion
*/
package payout

import (
	"fmt"
	"sort"
	"time"
)

type RuleKind string

const (
	RuleEqual       RuleKind = "equal"
	RuleHourBased   RuleKind = "hour_based"
	RuleJobWeighted RuleKind = "job_weighted"
	RuleCustom      RuleKind = "custom"
)

func (k RuleKind) Valid() bool {
	switch k {
	case RuleEqual, RuleHourBased, RuleJobWeighted, RuleCustom:
		return true
	}
	return false
}

// RequiresPercentages reports whether the distribution is declared via
// explicit percentages (and therefore goes through the validation gate).
func (k RuleKind) RequiresPercentages() bool {
	return k == RuleJobWeighted || k == RuleCustom
}

// Window restricts which part of the week/day a schedule covers.
// All fields are optional.
type Window struct {
	StartDay  *time.Weekday
	EndDay    *time.Weekday
	StartTime string // HH:MM
	EndTime   string // HH:MM
}

// FundTriggers are the share of each pool that is eligible at all.
type FundTriggers struct {
	GratuityPercent float64
	TipsPercent     float64
}

type ScheduleConfig struct {
	ID           ScheduleID
	RestaurantID RestaurantID
	Name         string
	RuleKind     RuleKind
	Window       Window
	FundTriggers FundTriggers

	ContributorRoles        []string
	ReceiverRoles           []string
	ReceiverRolePercentages map[string]float64

	// ContributorPercentage is the share every contributor role carries in
	// the percentage form. Only read by the validation gate.
	ContributorPercentage float64

	CustomIndividualPayout  *float64
	CustomGroupContribution *float64

	Version   int
	Locked    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks structural invariants. Percentage reconciliation is
// separate (ValidatePercentages) because it depends on the selected targets.
func (c ScheduleConfig) Validate() error {
	if c.ID == "" {
		return &ConfigError{Field: "id", Reason: "required"}
	}
	if !c.RuleKind.Valid() {
		return &ConfigError{Field: "rule_kind", Reason: fmt.Sprintf("unknown rule kind %q", c.RuleKind)}
	}
	if err := checkPercent("fund_triggers.gratuity_percent", c.FundTriggers.GratuityPercent); err != nil {
		return err
	}
	if err := checkPercent("fund_triggers.tips_percent", c.FundTriggers.TipsPercent); err != nil {
		return err
	}

	if err := checkPercent("contributor_percentage", c.ContributorPercentage); err != nil {
		return err
	}

	receivers := make(map[string]bool, len(c.ReceiverRoles))
	for _, r := range c.ReceiverRoles {
		receivers[NormalizeRole(r)] = true
	}
	seen := make(map[string]string, len(c.ReceiverRolePercentages))
	for _, role := range sortedKeys(c.ReceiverRolePercentages) {
		pct := c.ReceiverRolePercentages[role]
		norm := NormalizeRole(role)
		if prev, dup := seen[norm]; dup {
			return &ConfigError{Field: "receiver_role_percentages", Reason: fmt.Sprintf("roles %q and %q are the same role", prev, role)}
		}
		seen[norm] = role
		if !receivers[norm] {
			return &ConfigError{Field: "receiver_role_percentages", Reason: fmt.Sprintf("role %q is not a receiver role", role)}
		}
		if err := checkPercent("receiver_role_percentages."+role, pct); err != nil {
			return err
		}
	}

	if c.RuleKind == RuleCustom {
		if c.CustomIndividualPayout != nil {
			if err := checkPercent("custom_individual_payout", *c.CustomIndividualPayout); err != nil {
				return err
			}
		}
		if c.CustomGroupContribution != nil {
			if err := checkPercent("custom_group_contribution", *c.CustomGroupContribution); err != nil {
				return err
			}
		}
	}
	return nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func checkPercent(field string, v float64) error {
	if v < 0 || v > 100 {
		return &ConfigError{Field: field, Reason: fmt.Sprintf("%v is outside 0-100", v)}
	}
	return nil
}

// SelectionPercentages merges contributor and receiver entries into the
// form-level map the validation gate reads.
func (c ScheduleConfig) SelectionPercentages() map[string]float64 {
	out := make(map[string]float64, len(c.ContributorRoles)+len(c.ReceiverRolePercentages))
	for _, role := range c.ContributorRoles {
		out[NormalizeRole(role)] = c.ContributorPercentage
	}
	for role, pct := range c.ReceiverRolePercentages {
		if _, ok := out[NormalizeRole(role)]; ok {
			continue
		}
		out[NormalizeRole(role)] = pct
	}
	return out
}

// RolePercentages returns the normalized role -> percentage table.
func (c ScheduleConfig) RolePercentages() map[string]float64 {
	out := make(map[string]float64, len(c.ReceiverRolePercentages))
	for role, pct := range c.ReceiverRolePercentages {
		out[NormalizeRole(role)] = pct
	}
	return out
}

// ConfiguredRoles lists receiver roles that carry a percentage, sorted.
func (c ScheduleConfig) ConfiguredRoles() []string {
	roles := make([]string, 0, len(c.ReceiverRolePercentages))
	for role := range c.ReceiverRolePercentages {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}
