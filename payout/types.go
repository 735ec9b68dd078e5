/*
Package payout provides the tip and gratuity distribution engine.

PURPOSE:
  For a configured payout schedule and one business date, this package
  splits the pool of collected tips and gratuity between contributors and
  receivers, validates percentage configuration, computes each employee's
  net payout and drives the approval workflow that gates settlement.

KEY CONCEPTS IN THIS FILE (types.go):
  - ScheduleInstance: one schedule's aggregated figures for a business date
  - ContributorRecord: one employee's participation in an instance
  - PayoutLineItem: the computed, persisted payout row for one employee
  - Key: (schedule, business date) identity used by approval

DESIGN PRINCIPLES:
  1. The calculator is pure: no I/O, no clock, no randomness
  2. Records are validated at ingestion (ingest.go), never inside the math
  3. Line items carry decimal.Decimal so persisted figures are exact
  4. Approval is monotonic: Approved is terminal

SEE ALSO:
  - schedule.go: Schedule configuration
  - calculator.go: Allocation algorithm
  - approval.go: Approval state machine
*/
package payout

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ScheduleID string
type RestaurantID string
type UserID string
type EmployeeGUID string

// Key identifies one approvable schedule occurrence.
type Key struct {
	ScheduleID   ScheduleID
	BusinessDate BusinessDate
}

func (k Key) String() string {
	return string(k.ScheduleID) + "@" + k.BusinessDate.String()
}

// =============================================================================
// BUSINESS DATE - Operational day, always day granularity in UTC
// =============================================================================

const DateLayout = "2006-01-02"

type BusinessDate struct {
	Time time.Time
}

func NewBusinessDate(year int, month time.Month, day int) BusinessDate {
	return BusinessDate{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseBusinessDate parses YYYY-MM-DD.
func ParseBusinessDate(s string) (BusinessDate, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return BusinessDate{}, err
	}
	return BusinessDate{Time: t.UTC()}, nil
}

func (d BusinessDate) IsZero() bool   { return d.Time.IsZero() }
func (d BusinessDate) String() string { return d.Time.Format(DateLayout) }
func (d BusinessDate) Equal(o BusinessDate) bool {
	return d.String() == o.String()
}

func (d BusinessDate) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte(""), nil
	}
	return []byte(d.String()), nil
}

func (d *BusinessDate) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = BusinessDate{}
		return nil
	}
	parsed, err := ParseBusinessDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// CONTRIBUTOR RECORD - One employee in one schedule instance
// =============================================================================

type ContributorFlag string

const (
	FlagContributor ContributorFlag = "Yes"
	FlagReceiver    ContributorFlag = "No"
)

// ContributorRecord is the strict, validated form of an employee row.
// Nullable source fields are pointers; everything else is required.
type ContributorRecord struct {
	EmployeeGUID     EmployeeGUID
	EmployeeName     string
	JobTitle         string
	IsContributor    ContributorFlag
	PayoutReceiverID string   // role key for percentage lookup, defaults to JobTitle
	PayoutPercentage *float64 // manual override

	TotalSales    float64
	NetSales      float64
	TotalTips     float64
	TotalGratuity float64

	// Pool-wide totals. When present on any record they replace the
	// instance totals as the percentage base.
	OverallTips     *float64
	OverallGratuity *float64

	HoursWorked *float64
	InTime      *time.Time
	OutTime     *time.Time
}

func (r ContributorRecord) IsContributorRecord() bool { return r.IsContributor == FlagContributor }

// RoleKey is the normalized role used for percentage lookups.
func (r ContributorRecord) RoleKey() string {
	if k := NormalizeRole(r.PayoutReceiverID); k != "" {
		return k
	}
	return NormalizeRole(r.JobTitle)
}

// IsManualReceiver reports whether the record bypasses role-proportional
// splitting and uses its own PayoutPercentage.
func (r ContributorRecord) IsManualReceiver() bool {
	return r.IsContributor == FlagReceiver &&
		r.PayoutPercentage != nil && *r.PayoutPercentage > 0 &&
		r.TotalTips == 0 && r.TotalGratuity == 0 &&
		r.InTime == nil && r.OutTime == nil
}

// HasWorked: manual receivers always count; everyone else needs hours > 0.
func (r ContributorRecord) HasWorked() bool {
	if r.IsManualReceiver() {
		return true
	}
	return r.HoursWorked != nil && *r.HoursWorked > 0
}

func NormalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// =============================================================================
// SCHEDULE INSTANCE - One schedule on one business date
// =============================================================================

type ScheduleInstance struct {
	ScheduleID    ScheduleID
	BusinessDate  BusinessDate
	TotalSales    float64
	NetSales      float64
	TotalTips     float64
	TotalGratuity float64
	OrderCount    int
	IsApproved    bool
	Contributors  []ContributorRecord
}

func (i ScheduleInstance) Key() Key {
	return Key{ScheduleID: i.ScheduleID, BusinessDate: i.BusinessDate}
}

// =============================================================================
// PAYOUT LINE ITEM - Calculator output, persisted on approval
// =============================================================================

type PayoutLineItem struct {
	EmployeeGUID     EmployeeGUID    `json:"employee_guid"`
	EmployeeName     string          `json:"employee_name"`
	JobTitle         string          `json:"job_title"`
	IsContributor    ContributorFlag `json:"is_contributor"`
	PayoutReceiverID string          `json:"payout_receiver_id"`
	PayoutPercentage decimal.Decimal `json:"payout_percentage"`

	TotalSales      decimal.Decimal `json:"total_sales"`
	NetSales        decimal.Decimal `json:"net_sales"`
	TotalTips       decimal.Decimal `json:"total_tips"`
	TotalGratuity   decimal.Decimal `json:"total_gratuity"`
	OverallTips     decimal.Decimal `json:"overall_tips"`
	OverallGratuity decimal.Decimal `json:"overall_gratuity"`

	PayoutTips     decimal.Decimal `json:"payout_tips"`
	PayoutGratuity decimal.Decimal `json:"payout_gratuity"`
	NetPayout      decimal.Decimal `json:"net_payout"`
}

// =============================================================================
// MONEY
// =============================================================================

// RoundCents rounds to two decimals, halves toward positive infinity.
// Applied at every intermediate monetary step so recomputed figures match
// what was persisted on approval.
func RoundCents(v float64) float64 {
	return roundHalfUp(v*100) / 100
}

func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

func percent(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(4)
}
