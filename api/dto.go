/*
dto.go - Data Transfer Objects for API requests/responses

PURPOSE:
  Defines the JSON shapes the HTTP API speaks. These are separate from the
  payout types so the wire format can evolve without touching the engine.

TYPES:
  Schedules:
    ScheduleDTO       - Schedule config plus version/lock metadata

  Instances:
    InstanceDTO       - One schedule on one business date, with approval status
    PreviewDTO        - Computed line items, summary and warnings (not persisted)
    SummaryDTO        - Decimal rollup of a preview
    PayoutsDTO        - Persisted line items of an approved instance

  Approvals:
    ApprovalDTO       - Approval record for one key

  Common:
    ScenarioDTO       - Demo scenario metadata
    ErrorResponse     - Standard error format

MONEY:
  Every amount is a decimal serialized as a JSON string ("40.25"), never a
  float, so clients see exactly what was persisted.

SEE ALSO:
  - handlers.go: Uses these DTOs
  - factory/schedule.go: ScheduleJSON embedded in ScheduleDTO
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/factory"
	"github.com/warp/payout-engine/payout"
)

// ScheduleDTO represents a stored schedule.
type ScheduleDTO struct {
	factory.ScheduleJSON
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// InstanceDTO represents a schedule instance and its approval state.
type InstanceDTO struct {
	ScheduleID       string          `json:"schedule_id"`
	BusinessDate     string          `json:"business_date"`
	TotalSales       decimal.Decimal `json:"total_sales"`
	NetSales         decimal.Decimal `json:"net_sales"`
	TotalTips        decimal.Decimal `json:"total_tips"`
	TotalGratuity    decimal.Decimal `json:"total_gratuity"`
	OrderCount       int             `json:"order_count"`
	ContributorCount int             `json:"contributor_count"`
	IsApproved       bool            `json:"is_approved"`
	Status           string          `json:"status"`
	CanApprove       bool            `json:"can_approve"`
}

// SummaryDTO is the rollup shown above the line items.
type SummaryDTO struct {
	PoolTips             decimal.Decimal `json:"pool_tips"`
	PoolGratuity         decimal.Decimal `json:"pool_gratuity"`
	EligibleTips         decimal.Decimal `json:"eligible_tips"`
	EligibleGratuity     decimal.Decimal `json:"eligible_gratuity"`
	TotalReceiverPercent decimal.Decimal `json:"total_receiver_percent"`
	ContributorCount     int             `json:"contributor_count"`
	ReceiverCount        int             `json:"receiver_count"`
	PaidReceiverCount    int             `json:"paid_receiver_count"`
	TotalTips            decimal.Decimal `json:"total_tips"`
	TotalGratuity        decimal.Decimal `json:"total_gratuity"`
	PayoutTips           decimal.Decimal `json:"payout_tips"`
	PayoutGratuity       decimal.Decimal `json:"payout_gratuity"`
	NetPayout            decimal.Decimal `json:"net_payout"`
}

// PreviewDTO is a computed, unpersisted allocation.
type PreviewDTO struct {
	ScheduleID   string                  `json:"schedule_id"`
	BusinessDate string                  `json:"business_date"`
	RuleKind     string                  `json:"rule_kind"`
	Status       string                  `json:"status"`
	CanApprove   bool                    `json:"can_approve"`
	Items        []payout.PayoutLineItem `json:"items"`
	Summary      SummaryDTO              `json:"summary"`
	MissingRoles []string                `json:"missing_roles"`
}

// PayoutsDTO is what settlement reads for an approved instance.
type PayoutsDTO struct {
	ScheduleID   string                  `json:"schedule_id"`
	BusinessDate string                  `json:"business_date"`
	Items        []payout.PayoutLineItem `json:"items"`
}

// ApprovalDTO represents an approval record.
type ApprovalDTO struct {
	ID           string  `json:"id,omitempty"`
	ScheduleID   string  `json:"schedule_id"`
	BusinessDate string  `json:"business_date"`
	Status       string  `json:"status"`
	ApprovedBy   string  `json:"approved_by,omitempty"`
	ApprovedAt   *string `json:"approved_at,omitempty"`
	Attempts     int     `json:"attempts"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// ErrorResponse is the standard error format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toScheduleDTO(f *factory.ScheduleFactory, cfg payout.ScheduleConfig) ScheduleDTO {
	dto := ScheduleDTO{ScheduleJSON: f.ToJSON(cfg)}
	if !cfg.CreatedAt.IsZero() {
		dto.CreatedAt = cfg.CreatedAt.Format(time.RFC3339)
	}
	if !cfg.UpdatedAt.IsZero() {
		dto.UpdatedAt = cfg.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}

func toInstanceDTO(inst payout.ScheduleInstance, status payout.ApprovalStatus) InstanceDTO {
	if inst.IsApproved {
		status = payout.StatusApproved
	}
	return InstanceDTO{
		ScheduleID:       string(inst.ScheduleID),
		BusinessDate:     inst.BusinessDate.String(),
		TotalSales:       decimal.NewFromFloat(inst.TotalSales).Round(2),
		NetSales:         decimal.NewFromFloat(inst.NetSales).Round(2),
		TotalTips:        decimal.NewFromFloat(inst.TotalTips).Round(2),
		TotalGratuity:    decimal.NewFromFloat(inst.TotalGratuity).Round(2),
		OrderCount:       inst.OrderCount,
		ContributorCount: len(inst.Contributors),
		IsApproved:       inst.IsApproved,
		Status:           string(status),
		CanApprove:       status == payout.StatusUnapproved,
	}
}

func toSummaryDTO(s payout.Summary, eligibleTips, eligibleGratuity decimal.Decimal) SummaryDTO {
	return SummaryDTO{
		PoolTips:             s.PoolTips,
		PoolGratuity:         s.PoolGratuity,
		EligibleTips:         eligibleTips,
		EligibleGratuity:     eligibleGratuity,
		TotalReceiverPercent: s.TotalReceiverPercent,
		ContributorCount:     s.ContributorCount,
		ReceiverCount:        s.ReceiverCount,
		PaidReceiverCount:    s.PaidReceiverCount,
		TotalTips:            s.TotalTips,
		TotalGratuity:        s.TotalGratuity,
		PayoutTips:           s.PayoutTips,
		PayoutGratuity:       s.PayoutGratuity,
		NetPayout:            s.NetPayout,
	}
}

func toApprovalDTO(rec payout.ApprovalRecord) ApprovalDTO {
	dto := ApprovalDTO{
		ID:           rec.ID,
		ScheduleID:   string(rec.Key.ScheduleID),
		BusinessDate: rec.Key.BusinessDate.String(),
		Status:       string(rec.Status),
		ApprovedBy:   string(rec.ApprovedBy),
		Attempts:     rec.Attempts,
	}
	if rec.ApprovedAt != nil {
		at := rec.ApprovedAt.Format(time.RFC3339)
		dto.ApprovedAt = &at
	}
	return dto
}
