/*
approval.go - Per-key approval state machine

STATES:
  ┌────────────┐  Approve   ┌───────────┐  saveOverrides + approve ok  ┌──────────┐
  │ Unapproved │ ─────────▶ │ Approving │ ───────────────────────────▶ │ Approved │
  └────────────┘            └───────────┘                              └──────────┘
        ▲                         │
        └──── any step fails ─────┘

  Keyed by (restaurantId, scheduleId, businessDate). Approved is terminal.

ORDERING:
  For one key the steps run strictly in sequence:
    1. compute line items (pure)
    2. Source.SaveOverrides
    3. Source.Approve
    4. mark Approved, refresh every instance from the Source
  Persistence always completes before approve is issued.

CONCURRENCY:
  The records map is the only shared mutable state. begin() does an atomic
  check-and-set under one mutex, so at most one approval per key is in
  flight; re-entrant calls are rejected with ErrApprovalInFlight before any
  collaborator call. Different keys proceed independently. An optional
  Locker extends the same exclusion across processes.

CANCELLATION:
  Once started, an approval is detached from the caller's context. A client
  going away does not abort it; the next refresh reconciles state.

RETRIES:
  None. On failure the key returns to Unapproved and the caller re-invokes
  Approve. SaveOverrides overwrites by key, so re-running it is safe.
*/
package payout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type ApprovalStatus string

const (
	StatusUnapproved ApprovalStatus = "unapproved"
	StatusApproving  ApprovalStatus = "approving"
	StatusApproved   ApprovalStatus = "approved"
)

// ApprovalRecord is the engine's view of one key.
type ApprovalRecord struct {
	ID           string
	Key          Key
	RestaurantID RestaurantID
	Status       ApprovalStatus
	ApprovedBy   UserID
	ApprovedAt   *time.Time
	LastError    string
	Attempts     int
}

// Actor is the restaurant/user context every operation runs under.
type Actor struct {
	RestaurantID RestaurantID
	UserID       UserID
}

func (a Actor) Valid() bool { return a.RestaurantID != "" && a.UserID != "" }

// Approver drives approvals against a Source.
type Approver struct {
	Source    Source
	Locker    Locker    // optional
	Publisher Publisher // optional
	Logger    *zap.Logger
	Now       func() time.Time

	mu      sync.Mutex
	records map[recordKey]*ApprovalRecord
	refresh singleflight.Group
}

// recordKey scopes a Key to its restaurant; schedule ids are only unique
// within one.
type recordKey struct {
	restaurant RestaurantID
	key        Key
}

func NewApprover(source Source, logger *zap.Logger) *Approver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Approver{
		Source:  source,
		Logger:  logger.Named("approval"),
		Now:     time.Now,
		records: make(map[recordKey]*ApprovalRecord),
	}
}

// Approve computes, persists and approves one instance.
//
// Already-approved keys (locally, or as reported by the instance) return
// their record without touching the Source.
func (a *Approver) Approve(ctx context.Context, actor Actor, cfg ScheduleConfig, inst ScheduleInstance) (*ApprovalRecord, error) {
	if !actor.Valid() || inst.ScheduleID == "" || inst.BusinessDate.IsZero() {
		return nil, ErrMissingContext
	}
	key := inst.Key()
	rk := recordKey{restaurant: actor.RestaurantID, key: key}
	log := a.Logger.With(
		zap.String("restaurant_id", string(actor.RestaurantID)),
		zap.String("schedule_id", string(key.ScheduleID)),
		zap.String("business_date", key.BusinessDate.String()),
	)

	rec, started, err := a.begin(rk, inst.IsApproved)
	if err != nil {
		log.Info("approve rejected", zap.Error(err))
		return nil, err
	}
	if !started {
		log.Debug("approve skipped, key already approved")
		return rec, nil
	}

	ctx = context.WithoutCancel(ctx)

	if a.Locker != nil {
		release, ok, err := a.Locker.TryLock(ctx, "payout:approve:"+string(actor.RestaurantID)+":"+key.String())
		if err != nil {
			a.reset(rk, err)
			return nil, fmt.Errorf("acquire approval lock: %w", err)
		}
		if !ok {
			a.reset(rk, ErrApprovalInFlight)
			return nil, ErrApprovalInFlight
		}
		defer release()
	}

	alloc := ComputeLineItems(cfg, inst)
	if len(alloc.MissingRoles) > 0 {
		log.Warn("receiver roles configured without staff", zap.Strings("roles", alloc.MissingRoles))
	}

	if err := a.Source.SaveOverrides(ctx, actor.RestaurantID, key.ScheduleID, key.BusinessDate, alloc.Items); err != nil {
		stepErr := &StepError{Key: key, Step: "save_overrides", Kind: ErrPersistenceFailure, Err: err}
		a.reset(rk, stepErr)
		log.Error("save overrides failed", zap.Error(err))
		return nil, stepErr
	}

	ok, err := a.Source.Approve(ctx, actor.RestaurantID, key.ScheduleID, key.BusinessDate, actor.UserID)
	if err != nil || !ok {
		stepErr := &StepError{Key: key, Step: "approve", Kind: ErrApprovalFailure, Err: err}
		a.reset(rk, stepErr)
		log.Error("approve call failed", zap.Error(err), zap.Bool("success", ok))
		return nil, stepErr
	}

	rec = a.complete(rk, actor.UserID)
	log.Info("schedule approved",
		zap.String("approved_by", string(actor.UserID)),
		zap.Int("line_items", len(alloc.Items)),
	)

	a.publish(ctx, log, rec, alloc)

	if _, err := a.Refresh(ctx, actor); err != nil {
		log.Warn("refresh after approval failed", zap.Error(err))
	}
	return rec, nil
}

// begin performs the atomic check-and-set. started=false with a nil error
// means the key is already approved.
func (a *Approver) begin(rk recordKey, instanceApproved bool) (*ApprovalRecord, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec := a.recordLocked(rk)
	if instanceApproved && rec.Status != StatusApproved {
		rec.Status = StatusApproved
	}
	switch rec.Status {
	case StatusApproved:
		cp := *rec
		return &cp, false, nil
	case StatusApproving:
		return nil, false, ErrApprovalInFlight
	}
	rec.Status = StatusApproving
	rec.Attempts++
	rec.LastError = ""
	cp := *rec
	return &cp, true, nil
}

func (a *Approver) recordLocked(rk recordKey) *ApprovalRecord {
	rec, ok := a.records[rk]
	if !ok {
		rec = &ApprovalRecord{
			ID:           uuid.NewString(),
			Key:          rk.key,
			RestaurantID: rk.restaurant,
			Status:       StatusUnapproved,
		}
		a.records[rk] = rec
	}
	return rec
}

// reset returns an approving key to Unapproved. A key that a refresh has
// meanwhile reported approved stays approved.
func (a *Approver) reset(rk recordKey, cause error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.records[rk]
	if !ok {
		return
	}
	if cause != nil && !errors.Is(cause, ErrApprovalInFlight) {
		rec.LastError = cause.Error()
	}
	if rec.Status == StatusApproving {
		rec.Status = StatusUnapproved
	}
}

func (a *Approver) complete(rk recordKey, by UserID) *ApprovalRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec := a.recordLocked(rk)
	now := a.Now().UTC()
	rec.Status = StatusApproved
	rec.ApprovedBy = by
	rec.ApprovedAt = &now
	rec.LastError = ""
	cp := *rec
	return &cp
}

func (a *Approver) publish(ctx context.Context, log *zap.Logger, rec *ApprovalRecord, alloc Allocation) {
	if a.Publisher == nil {
		return
	}
	event := ApprovedEvent{
		ID:           uuid.NewString(),
		RestaurantID: rec.RestaurantID,
		ScheduleID:   rec.Key.ScheduleID,
		BusinessDate: rec.Key.BusinessDate,
		ApprovedBy:   rec.ApprovedBy,
		ApprovedAt:   *rec.ApprovedAt,
		ItemCount:    len(alloc.Items),
		NetPayout:    Summarize(alloc).NetPayout.StringFixed(2),
	}
	if err := a.Publisher.PublishApproved(ctx, event); err != nil {
		// The items are already persisted; settlement reads them regardless.
		log.Error("publish approved event failed", zap.Error(err))
	}
}

// Refresh fetches every instance from the Source and reconciles local
// state with the approvals it reports. Concurrent refreshes for the same
// actor share one fetch.
func (a *Approver) Refresh(ctx context.Context, actor Actor) ([]ScheduleInstance, error) {
	if !actor.Valid() {
		return nil, ErrMissingContext
	}
	ctx = context.WithoutCancel(ctx)
	v, err, _ := a.refresh.Do(string(actor.RestaurantID)+"/"+string(actor.UserID), func() (any, error) {
		return a.Source.FetchScheduleInstances(ctx, actor.RestaurantID, actor.UserID)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch schedule instances: %w", err)
	}
	instances := v.([]ScheduleInstance)

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, inst := range instances {
		if !inst.IsApproved {
			continue
		}
		rec := a.recordLocked(recordKey{restaurant: actor.RestaurantID, key: inst.Key()})
		rec.Status = StatusApproved
	}
	out := make([]ScheduleInstance, len(instances))
	copy(out, instances)
	return out, nil
}

// Status reports the restaurant's view of key.
func (a *Approver) Status(restaurantID RestaurantID, key Key) ApprovalStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	if rec, ok := a.records[recordKey{restaurant: restaurantID, key: key}]; ok {
		return rec.Status
	}
	return StatusUnapproved
}

// Record returns a copy of the key's record, if any.
func (a *Approver) Record(restaurantID RestaurantID, key Key) (ApprovalRecord, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.records[recordKey{restaurant: restaurantID, key: key}]
	if !ok {
		return ApprovalRecord{}, false
	}
	return *rec, true
}

// Reset drops every local record. Used when the backing store is wiped.
func (a *Approver) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = make(map[recordKey]*ApprovalRecord)
}

// CanApprove is what a consumer uses to enable or disable the approve action.
func (a *Approver) CanApprove(restaurantID RestaurantID, key Key) bool {
	return a.Status(restaurantID, key) == StatusUnapproved
}
