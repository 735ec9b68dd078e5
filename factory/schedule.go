/*
Package factory provides JSON to Go schedule conversion.

PURPOSE:
  Converts JSON schedule definitions, as submitted by the admin form or
  stored alongside an instance, into payout.ScheduleConfig. Structural
  checks run through validator tags first, then the engine's own
  Validate and percentage gate.

JSON SCHEMA:
  {
    "id": "dinner-pool",
    "name": "Dinner tip pool",
    "rule_kind": "job_weighted",
    "window": {"start_day": "monday", "end_day": "sunday",
               "start_time": "16:00", "end_time": "23:59"},
    "fund_triggers": {"gratuity_percent": 100, "tips_percent": 100},
    "contributor_roles": ["Bartender"],
    "contributor_percentage": 60,
    "receiver_roles": ["Server", "Host"],
    "receiver_role_percentages": {"Server": 30, "Host": 10}
  }

USAGE:
  f := factory.NewScheduleFactory()
  cfg, err := f.ParseSchedule(body)

SEE ALSO:
  - payout/schedule.go: ScheduleConfig definition
  - payout/validation.go: Percentage reconciliation gate
*/
package factory

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/warp/payout-engine/payout"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ScheduleJSON is the JSON representation of a schedule.
type ScheduleJSON struct {
	ID           string           `json:"id" validate:"required,max=64"`
	RestaurantID string           `json:"restaurant_id,omitempty"`
	Name         string           `json:"name" validate:"max=120"`
	RuleKind     string           `json:"rule_kind" validate:"required,oneof=equal hour_based job_weighted custom"`
	Window       *WindowJSON      `json:"window,omitempty"`
	FundTriggers FundTriggersJSON `json:"fund_triggers"`

	ContributorRoles        []string           `json:"contributor_roles" validate:"dive,required"`
	ContributorPercentage   float64            `json:"contributor_percentage" validate:"gte=0,lte=100"`
	ReceiverRoles           []string           `json:"receiver_roles" validate:"dive,required"`
	ReceiverRolePercentages map[string]float64 `json:"receiver_role_percentages" validate:"dive,gte=0,lte=100"`

	CustomIndividualPayout  *float64 `json:"custom_individual_payout,omitempty" validate:"omitempty,gte=0,lte=100"`
	CustomGroupContribution *float64 `json:"custom_group_contribution,omitempty" validate:"omitempty,gte=0,lte=100"`

	Version int  `json:"version,omitempty"`
	Locked  bool `json:"locked,omitempty"`
}

// WindowJSON limits the days and hours a schedule covers.
type WindowJSON struct {
	StartDay  string `json:"start_day,omitempty" validate:"omitempty,oneof=sunday monday tuesday wednesday thursday friday saturday"`
	EndDay    string `json:"end_day,omitempty" validate:"omitempty,oneof=sunday monday tuesday wednesday thursday friday saturday"`
	StartTime string `json:"start_time,omitempty" validate:"omitempty,datetime=15:04"`
	EndTime   string `json:"end_time,omitempty" validate:"omitempty,datetime=15:04"`
}

// FundTriggersJSON is the eligible share of each pool. Omitted means 100.
type FundTriggersJSON struct {
	GratuityPercent *float64 `json:"gratuity_percent,omitempty" validate:"omitempty,gte=0,lte=100"`
	TipsPercent     *float64 `json:"tips_percent,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// =============================================================================
// SCHEDULE FACTORY
// =============================================================================

// ScheduleFactory converts JSON schedules to payout.ScheduleConfig.
type ScheduleFactory struct {
	validate *validator.Validate
}

func NewScheduleFactory() *ScheduleFactory {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &ScheduleFactory{validate: v}
}

// ParseSchedule parses a JSON document into a validated ScheduleConfig.
func (f *ScheduleFactory) ParseSchedule(data []byte) (payout.ScheduleConfig, error) {
	var sj ScheduleJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return payout.ScheduleConfig{}, fmt.Errorf("%w: failed to parse schedule JSON: %v", payout.ErrInvalidConfig, err)
	}
	return f.FromJSON(sj)
}

// FromJSON validates sj and converts it. Validation failures unwrap to
// payout.ErrInvalidConfig or payout.ErrPercentageMismatch.
func (f *ScheduleFactory) FromJSON(sj ScheduleJSON) (payout.ScheduleConfig, error) {
	if err := f.validate.Struct(sj); err != nil {
		return payout.ScheduleConfig{}, mapValidationError(err)
	}

	cfg := payout.ScheduleConfig{
		ID:                      payout.ScheduleID(strings.TrimSpace(sj.ID)),
		RestaurantID:            payout.RestaurantID(sj.RestaurantID),
		Name:                    strings.TrimSpace(sj.Name),
		RuleKind:                payout.RuleKind(sj.RuleKind),
		FundTriggers:            parseFundTriggers(sj.FundTriggers),
		ContributorRoles:        trimAll(sj.ContributorRoles),
		ReceiverRoles:           trimAll(sj.ReceiverRoles),
		ReceiverRolePercentages: make(map[string]float64, len(sj.ReceiverRolePercentages)),
		ContributorPercentage:   sj.ContributorPercentage,
		CustomIndividualPayout:  sj.CustomIndividualPayout,
		CustomGroupContribution: sj.CustomGroupContribution,
		Version:                 sj.Version,
		Locked:                  sj.Locked,
	}
	for role, pct := range sj.ReceiverRolePercentages {
		cfg.ReceiverRolePercentages[strings.TrimSpace(role)] = pct
	}
	if sj.Window != nil {
		cfg.Window = parseWindow(*sj.Window)
	}

	if err := payout.ValidateSchedule(cfg); err != nil {
		return payout.ScheduleConfig{}, err
	}
	return cfg, nil
}

// ToJSON converts a ScheduleConfig back to its JSON form.
func (f *ScheduleFactory) ToJSON(cfg payout.ScheduleConfig) ScheduleJSON {
	gratuity, tips := cfg.FundTriggers.GratuityPercent, cfg.FundTriggers.TipsPercent
	sj := ScheduleJSON{
		ID:                      string(cfg.ID),
		RestaurantID:            string(cfg.RestaurantID),
		Name:                    cfg.Name,
		RuleKind:                string(cfg.RuleKind),
		FundTriggers:            FundTriggersJSON{GratuityPercent: &gratuity, TipsPercent: &tips},
		ContributorRoles:        cfg.ContributorRoles,
		ContributorPercentage:   cfg.ContributorPercentage,
		ReceiverRoles:           cfg.ReceiverRoles,
		ReceiverRolePercentages: cfg.ReceiverRolePercentages,
		CustomIndividualPayout:  cfg.CustomIndividualPayout,
		CustomGroupContribution: cfg.CustomGroupContribution,
		Version:                 cfg.Version,
		Locked:                  cfg.Locked,
	}
	w := cfg.Window
	if w.StartDay != nil || w.EndDay != nil || w.StartTime != "" || w.EndTime != "" {
		sj.Window = &WindowJSON{StartTime: w.StartTime, EndTime: w.EndTime}
		if w.StartDay != nil {
			sj.Window.StartDay = strings.ToLower(w.StartDay.String())
		}
		if w.EndDay != nil {
			sj.Window.EndDay = strings.ToLower(w.EndDay.String())
		}
	}
	return sj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseFundTriggers(fj FundTriggersJSON) payout.FundTriggers {
	ft := payout.FundTriggers{GratuityPercent: 100, TipsPercent: 100}
	if fj.GratuityPercent != nil {
		ft.GratuityPercent = *fj.GratuityPercent
	}
	if fj.TipsPercent != nil {
		ft.TipsPercent = *fj.TipsPercent
	}
	return ft
}

func parseWindow(wj WindowJSON) payout.Window {
	return payout.Window{
		StartDay:  parseWeekday(wj.StartDay),
		EndDay:    parseWeekday(wj.EndDay),
		StartTime: wj.StartTime,
		EndTime:   wj.EndTime,
	}
}

func parseWeekday(s string) *time.Weekday {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) {
			day := d
			return &day
		}
	}
	return nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// mapValidationError reports the first failing field as a ConfigError.
func mapValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", payout.ErrInvalidConfig, err)
	}
	e := verrs[0]
	field := strings.TrimPrefix(e.Namespace(), "ScheduleJSON.")
	switch e.Tag() {
	case "required":
		return &payout.ConfigError{Field: field, Reason: "required"}
	case "oneof":
		return &payout.ConfigError{Field: field, Reason: fmt.Sprintf("must be one of [%s]", e.Param())}
	case "gte", "lte":
		return &payout.ConfigError{Field: field, Reason: "must be between 0 and 100"}
	default:
		return &payout.ConfigError{Field: field, Reason: fmt.Sprintf("failed %q check", e.Tag())}
	}
}
