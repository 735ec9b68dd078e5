/*
store.go - Collaborator interfaces consumed by the engine

PURPOSE:
  The engine never owns durable state. It reads instances from, and writes
  line items and approvals to, an external collaborator through Source.
  Durable consistency is the collaborator's job; the engine only orders the
  calls and tracks which keys are in flight.

KEY INTERFACES:
  Source:          fetchScheduleInstances / saveOverrides / approve
  SettlementStore: read-back of persisted line items for approved keys
  ScheduleStore:   schedule configuration persistence
  InstanceStore:   ingestion of aggregated instances
  Locker:          optional cross-process keyed lock
  Publisher:       optional approved-key event sink

IMPLEMENTATIONS:
  - payout/store/memory.go: In-memory, with call counters for tests
  - store/sqlite/sqlite.go: SQLite
*/
package payout

import (
	"context"
	"time"
)

// Source is the external system behind the approval workflow.
type Source interface {
	// FetchScheduleInstances returns every instance visible to the user.
	FetchScheduleInstances(ctx context.Context, restaurantID RestaurantID, userID UserID) ([]ScheduleInstance, error)

	// SaveOverrides persists the computed items, overwriting by key.
	SaveOverrides(ctx context.Context, restaurantID RestaurantID, scheduleID ScheduleID, date BusinessDate, items []PayoutLineItem) error

	// Approve marks the key approved. A false result with a nil error is a
	// refusal, treated the same as an error.
	Approve(ctx context.Context, restaurantID RestaurantID, scheduleID ScheduleID, date BusinessDate, userID UserID) (bool, error)
}

// SettlementStore exposes persisted items to the nightly settlement job.
type SettlementStore interface {
	// ApprovedLineItems returns ErrNotApproved for keys not yet approved.
	ApprovedLineItems(ctx context.Context, restaurantID RestaurantID, scheduleID ScheduleID, date BusinessDate) ([]PayoutLineItem, error)
}

// ScheduleStore persists schedule configuration. SaveSchedule assigns
// Version (1 on create, previous+1 on update) and returns the stored config.
// A schedule becomes Locked once any of its instances is approved; locked
// schedules can still be edited but not deleted.
type ScheduleStore interface {
	SaveSchedule(ctx context.Context, cfg ScheduleConfig) (*ScheduleConfig, error)
	GetSchedule(ctx context.Context, restaurantID RestaurantID, id ScheduleID) (*ScheduleConfig, error)
	ListSchedules(ctx context.Context, restaurantID RestaurantID) ([]ScheduleConfig, error)
	DeleteSchedule(ctx context.Context, restaurantID RestaurantID, id ScheduleID) error
}

// InstanceStore accepts ingested instances. Re-ingesting an approved
// instance returns ErrAlreadyApproved.
type InstanceStore interface {
	SaveInstance(ctx context.Context, restaurantID RestaurantID, inst ScheduleInstance) error
	GetInstance(ctx context.Context, restaurantID RestaurantID, scheduleID ScheduleID, date BusinessDate) (*ScheduleInstance, error)
}

// Locker is a keyed try-lock. ok=false means another holder has the key.
type Locker interface {
	TryLock(ctx context.Context, key string) (release func(), ok bool, err error)
}

// ApprovedEvent is emitted once per key after a successful approval.
type ApprovedEvent struct {
	ID           string       `json:"id"`
	RestaurantID RestaurantID `json:"restaurant_id"`
	ScheduleID   ScheduleID   `json:"schedule_id"`
	BusinessDate BusinessDate `json:"business_date"`
	ApprovedBy   UserID       `json:"approved_by"`
	ApprovedAt   time.Time    `json:"approved_at"`
	ItemCount    int          `json:"item_count"`
	NetPayout    string       `json:"net_payout"`
}

type Publisher interface {
	PublishApproved(ctx context.Context, event ApprovedEvent) error
}
