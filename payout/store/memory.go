// Package store provides in-memory collaborator implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/payout-engine/payout"
)

// =============================================================================
// MEMORY - In-memory Source, SettlementStore and ScheduleStore (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	instances map[instanceKey]payout.ScheduleInstance
	overrides map[instanceKey][]payout.PayoutLineItem
	schedules map[scheduleKey]payout.ScheduleConfig

	// Failure injection for tests.
	SaveErr     error
	ApproveErr  error
	ApproveDeny bool
	FetchErr    error

	// Hooks run inside the call, before it completes. Used to hold a call
	// open while a test probes concurrent behavior.
	BeforeSave    func()
	BeforeApprove func()

	// Now stamps schedule versions. Defaults to time.Now.
	Now func() time.Time

	calls Calls
}

// Calls counts collaborator invocations.
type Calls struct {
	Fetch   int
	Save    int
	Approve int
}

type instanceKey struct {
	RestaurantID payout.RestaurantID
	ScheduleID   payout.ScheduleID
	Date         string
}

type scheduleKey struct {
	RestaurantID payout.RestaurantID
	ID           payout.ScheduleID
}

func NewMemory() *Memory {
	return &Memory{
		instances: make(map[instanceKey]payout.ScheduleInstance),
		overrides: make(map[instanceKey][]payout.PayoutLineItem),
		schedules: make(map[scheduleKey]payout.ScheduleConfig),
	}
}

func (m *Memory) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func key(restaurantID payout.RestaurantID, scheduleID payout.ScheduleID, date payout.BusinessDate) instanceKey {
	return instanceKey{RestaurantID: restaurantID, ScheduleID: scheduleID, Date: date.String()}
}

// PutInstance seeds or replaces an instance.
func (m *Memory) PutInstance(restaurantID payout.RestaurantID, inst payout.ScheduleInstance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[key(restaurantID, inst.ScheduleID, inst.BusinessDate)] = inst
}

// MarkApproved flips an instance as if another client had approved it.
func (m *Memory) MarkApproved(restaurantID payout.RestaurantID, scheduleID payout.ScheduleID, date payout.BusinessDate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(restaurantID, scheduleID, date)
	if inst, ok := m.instances[k]; ok {
		inst.IsApproved = true
		m.instances[k] = inst
	}
}

// Reset clears all stored data. Failure injection and hooks are kept.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances = make(map[instanceKey]payout.ScheduleInstance)
	m.overrides = make(map[instanceKey][]payout.PayoutLineItem)
	m.schedules = make(map[scheduleKey]payout.ScheduleConfig)
	return nil
}

func (m *Memory) Calls() Calls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

func (m *Memory) FetchScheduleInstances(_ context.Context, restaurantID payout.RestaurantID, _ payout.UserID) ([]payout.ScheduleInstance, error) {
	m.mu.Lock()
	m.calls.Fetch++
	err := m.FetchErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []payout.ScheduleInstance
	for k, inst := range m.instances {
		if k.RestaurantID == restaurantID {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduleID != out[j].ScheduleID {
			return out[i].ScheduleID < out[j].ScheduleID
		}
		return out[i].BusinessDate.String() < out[j].BusinessDate.String()
	})
	return out, nil
}

func (m *Memory) SaveInstance(_ context.Context, restaurantID payout.RestaurantID, inst payout.ScheduleInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(restaurantID, inst.ScheduleID, inst.BusinessDate)
	if existing, ok := m.instances[k]; ok && existing.IsApproved {
		return payout.ErrAlreadyApproved
	}
	m.instances[k] = inst
	return nil
}

// GetInstance returns one instance.
func (m *Memory) GetInstance(_ context.Context, restaurantID payout.RestaurantID, scheduleID payout.ScheduleID, date payout.BusinessDate) (*payout.ScheduleInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[key(restaurantID, scheduleID, date)]
	if !ok {
		return nil, payout.ErrInstanceNotFound
	}
	return &inst, nil
}

func (m *Memory) SaveOverrides(_ context.Context, restaurantID payout.RestaurantID, scheduleID payout.ScheduleID, date payout.BusinessDate, items []payout.PayoutLineItem) error {
	m.mu.Lock()
	m.calls.Save++
	hook, err := m.BeforeSave, m.SaveErr
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]payout.PayoutLineItem, len(items))
	copy(cp, items)
	m.overrides[key(restaurantID, scheduleID, date)] = cp
	return nil
}

func (m *Memory) Approve(_ context.Context, restaurantID payout.RestaurantID, scheduleID payout.ScheduleID, date payout.BusinessDate, _ payout.UserID) (bool, error) {
	m.mu.Lock()
	m.calls.Approve++
	hook, err, deny := m.BeforeApprove, m.ApproveErr, m.ApproveDeny
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return false, err
	}
	if deny {
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(restaurantID, scheduleID, date)
	inst, ok := m.instances[k]
	if !ok {
		return false, payout.ErrInstanceNotFound
	}
	inst.IsApproved = true
	m.instances[k] = inst
	sk := scheduleKey{RestaurantID: restaurantID, ID: scheduleID}
	if cfg, ok := m.schedules[sk]; ok {
		cfg.Locked = true
		m.schedules[sk] = cfg
	}
	return true, nil
}

// Overrides returns the last persisted items for a key, approved or not.
func (m *Memory) Overrides(restaurantID payout.RestaurantID, scheduleID payout.ScheduleID, date payout.BusinessDate) []payout.PayoutLineItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.overrides[key(restaurantID, scheduleID, date)]
}

func (m *Memory) ApprovedLineItems(_ context.Context, restaurantID payout.RestaurantID, scheduleID payout.ScheduleID, date payout.BusinessDate) ([]payout.PayoutLineItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k := key(restaurantID, scheduleID, date)
	inst, ok := m.instances[k]
	if !ok {
		return nil, payout.ErrInstanceNotFound
	}
	if !inst.IsApproved {
		return nil, payout.ErrNotApproved
	}
	items := m.overrides[k]
	out := make([]payout.PayoutLineItem, len(items))
	copy(out, items)
	return out, nil
}

// =============================================================================
// SCHEDULES
// =============================================================================

func (m *Memory) SaveSchedule(_ context.Context, cfg payout.ScheduleConfig) (*payout.ScheduleConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sk := scheduleKey{RestaurantID: cfg.RestaurantID, ID: cfg.ID}
	now := m.now().UTC()
	if prev, ok := m.schedules[sk]; ok {
		cfg.Version = prev.Version + 1
		cfg.Locked = prev.Locked
		cfg.CreatedAt = prev.CreatedAt
	} else {
		cfg.Version = 1
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now
	m.schedules[sk] = cfg
	return &cfg, nil
}

func (m *Memory) DeleteSchedule(_ context.Context, restaurantID payout.RestaurantID, id payout.ScheduleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sk := scheduleKey{RestaurantID: restaurantID, ID: id}
	cfg, ok := m.schedules[sk]
	if !ok {
		return payout.ErrScheduleNotFound
	}
	if cfg.Locked {
		return payout.ErrScheduleLocked
	}
	delete(m.schedules, sk)
	return nil
}

func (m *Memory) GetSchedule(_ context.Context, restaurantID payout.RestaurantID, id payout.ScheduleID) (*payout.ScheduleConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.schedules[scheduleKey{RestaurantID: restaurantID, ID: id}]
	if !ok {
		return nil, payout.ErrScheduleNotFound
	}
	return &cfg, nil
}

func (m *Memory) ListSchedules(_ context.Context, restaurantID payout.RestaurantID) ([]payout.ScheduleConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []payout.ScheduleConfig
	for k, cfg := range m.schedules {
		if k.RestaurantID == restaurantID {
			out = append(out, cfg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var (
	_ payout.Source          = (*Memory)(nil)
	_ payout.SettlementStore = (*Memory)(nil)
	_ payout.ScheduleStore   = (*Memory)(nil)
	_ payout.InstanceStore   = (*Memory)(nil)
)
