package payout_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/payout"
	"github.com/warp/payout-engine/payout/store"
)

var actor = payout.Actor{RestaurantID: "rest-1", UserID: "mgr-1"}

func approvalFixture(t *testing.T) (*payout.Approver, *store.Memory, payout.ScheduleConfig, payout.ScheduleInstance) {
	t.Helper()
	mem := store.NewMemory()
	cfg := jobWeighted(map[string]float64{"Server": 40})
	inst := instance(100, 0,
		contributor("bart", "Bartender Lead", 100, 0),
		receiver("s1", "Server", 6),
	)
	mem.PutInstance(actor.RestaurantID, inst)
	approver := payout.NewApprover(mem, nil)
	return approver, mem, cfg, inst
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []payout.ApprovedEvent
	err    error
}

func (p *recordingPublisher) PublishApproved(_ context.Context, e payout.ApprovedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

type busyLocker struct{ err error }

func (l busyLocker) TryLock(context.Context, string) (func(), bool, error) {
	return func() {}, false, l.err
}

// =============================================================================
// HAPPY PATH
// =============================================================================

func TestApprove_PersistsThenApproves(t *testing.T) {
	// GIVEN: An unapproved instance
	approver, mem, cfg, inst := approvalFixture(t)

	var sawOverrides bool
	mem.BeforeApprove = func() {
		sawOverrides = len(mem.Overrides(actor.RestaurantID, inst.ScheduleID, inst.BusinessDate)) > 0
	}

	// WHEN: Approving
	rec, err := approver.Approve(context.Background(), actor, cfg, inst)

	// THEN: Items were persisted before approve, and state is Approved
	require.NoError(t, err)
	assert.True(t, sawOverrides, "line items must be persisted before approve")
	assert.Equal(t, payout.StatusApproved, rec.Status)
	assert.Equal(t, actor.UserID, rec.ApprovedBy)
	require.NotNil(t, rec.ApprovedAt)
	assert.Equal(t, payout.StatusApproved, approver.Status(actor.RestaurantID, inst.Key()))
	assert.False(t, approver.CanApprove(actor.RestaurantID, inst.Key()))

	calls := mem.Calls()
	assert.Equal(t, 1, calls.Save)
	assert.Equal(t, 1, calls.Approve)
	assert.Equal(t, 1, calls.Fetch, "refresh follows a successful approval")

	items, err := mem.ApprovedLineItems(context.Background(), actor.RestaurantID, inst.ScheduleID, inst.BusinessDate)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestApprove_AlreadyApprovedIsNoop(t *testing.T) {
	// GIVEN: A key approved once
	approver, mem, cfg, inst := approvalFixture(t)
	_, err := approver.Approve(context.Background(), actor, cfg, inst)
	require.NoError(t, err)
	before := mem.Calls()

	// WHEN: Approving again with a stale instance
	rec, err := approver.Approve(context.Background(), actor, cfg, inst)

	// THEN: Record returned, no collaborator calls
	require.NoError(t, err)
	assert.Equal(t, payout.StatusApproved, rec.Status)
	assert.Equal(t, before, mem.Calls())
}

func TestApprove_InstanceReportedApproved(t *testing.T) {
	approver, mem, cfg, inst := approvalFixture(t)
	inst.IsApproved = true

	rec, err := approver.Approve(context.Background(), actor, cfg, inst)

	require.NoError(t, err)
	assert.Equal(t, payout.StatusApproved, rec.Status)
	assert.Equal(t, store.Calls{}, mem.Calls())
}

func TestApprove_DetachedFromCallerContext(t *testing.T) {
	approver, _, cfg, inst := approvalFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec, err := approver.Approve(ctx, actor, cfg, inst)

	require.NoError(t, err)
	assert.Equal(t, payout.StatusApproved, rec.Status)
}

// =============================================================================
// FAILURES
// =============================================================================

func TestApprove_MissingContext(t *testing.T) {
	approver, mem, cfg, inst := approvalFixture(t)

	_, err := approver.Approve(context.Background(), payout.Actor{RestaurantID: "rest-1"}, cfg, inst)
	assert.ErrorIs(t, err, payout.ErrMissingContext)

	inst.BusinessDate = payout.BusinessDate{}
	_, err = approver.Approve(context.Background(), actor, cfg, inst)
	assert.ErrorIs(t, err, payout.ErrMissingContext)

	assert.Equal(t, store.Calls{}, mem.Calls())
}

func TestApprove_PersistenceFailureSkipsApprove(t *testing.T) {
	// GIVEN: saveOverrides fails
	approver, mem, cfg, inst := approvalFixture(t)
	mem.SaveErr = errors.New("disk full")

	// WHEN: Approving
	_, err := approver.Approve(context.Background(), actor, cfg, inst)

	// THEN: PersistenceFailure, approve never called, key back to Unapproved
	require.Error(t, err)
	assert.ErrorIs(t, err, payout.ErrPersistenceFailure)
	assert.True(t, payout.IsRetryable(err))
	var stepErr *payout.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, "save_overrides", stepErr.Step)
	assert.Equal(t, 0, mem.Calls().Approve)
	assert.True(t, approver.CanApprove(actor.RestaurantID, inst.Key()))

	rec, ok := approver.Record(actor.RestaurantID, inst.Key())
	require.True(t, ok)
	assert.Contains(t, rec.LastError, "disk full")

	// AND: A retry succeeds once the collaborator recovers
	mem.SaveErr = nil
	rec2, err := approver.Approve(context.Background(), actor, cfg, inst)
	require.NoError(t, err)
	assert.Equal(t, payout.StatusApproved, rec2.Status)
	assert.Equal(t, 2, rec2.Attempts)
}

func TestApprove_ApprovalFailure(t *testing.T) {
	approver, mem, cfg, inst := approvalFixture(t)
	mem.ApproveErr = errors.New("upstream 503")

	_, err := approver.Approve(context.Background(), actor, cfg, inst)

	assert.ErrorIs(t, err, payout.ErrApprovalFailure)
	assert.Equal(t, 1, mem.Calls().Save)
	assert.Equal(t, 1, mem.Calls().Approve)
	assert.Equal(t, 0, mem.Calls().Fetch)
	assert.Equal(t, payout.StatusUnapproved, approver.Status(actor.RestaurantID, inst.Key()))
}

func TestApprove_RefusalIsApprovalFailure(t *testing.T) {
	approver, mem, cfg, inst := approvalFixture(t)
	mem.ApproveDeny = true

	_, err := approver.Approve(context.Background(), actor, cfg, inst)

	assert.ErrorIs(t, err, payout.ErrApprovalFailure)
	assert.True(t, approver.CanApprove(actor.RestaurantID, inst.Key()))
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestApprove_ReentrantCallRejected(t *testing.T) {
	// GIVEN: An approval held open inside saveOverrides
	approver, mem, cfg, inst := approvalFixture(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	mem.BeforeSave = func() {
		close(entered)
		<-release
	}

	done := make(chan error, 1)
	go func() {
		_, err := approver.Approve(context.Background(), actor, cfg, inst)
		done <- err
	}()
	<-entered

	// WHEN: A second approve arrives for the same key
	_, err := approver.Approve(context.Background(), actor, cfg, inst)

	// THEN: Rejected without any extra collaborator call
	assert.ErrorIs(t, err, payout.ErrApprovalInFlight)
	assert.Equal(t, payout.StatusApproving, approver.Status(actor.RestaurantID, inst.Key()))
	assert.False(t, approver.CanApprove(actor.RestaurantID, inst.Key()))
	assert.Equal(t, 1, mem.Calls().Save)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, payout.StatusApproved, approver.Status(actor.RestaurantID, inst.Key()))
	assert.Equal(t, 1, mem.Calls().Approve)
}

func TestApprove_DifferentKeysIndependent(t *testing.T) {
	approver, mem, cfg, inst := approvalFixture(t)
	other := inst
	other.BusinessDate = payout.NewBusinessDate(2025, time.March, 15)
	mem.PutInstance(actor.RestaurantID, other)

	var first atomic.Bool
	entered := make(chan struct{})
	release := make(chan struct{})
	mem.BeforeSave = func() {
		if first.CompareAndSwap(false, true) {
			close(entered)
			<-release
		}
	}

	done := make(chan error, 1)
	go func() {
		_, err := approver.Approve(context.Background(), actor, cfg, inst)
		done <- err
	}()
	<-entered

	rec, err := approver.Approve(context.Background(), actor, cfg, other)
	require.NoError(t, err)
	assert.Equal(t, payout.StatusApproved, rec.Status)
	assert.Equal(t, payout.StatusApproving, approver.Status(actor.RestaurantID, inst.Key()))

	close(release)
	require.NoError(t, <-done)
}

func TestApprove_LockHeldElsewhere(t *testing.T) {
	approver, mem, cfg, inst := approvalFixture(t)
	approver.Locker = busyLocker{}

	_, err := approver.Approve(context.Background(), actor, cfg, inst)

	assert.ErrorIs(t, err, payout.ErrApprovalInFlight)
	assert.Equal(t, 0, mem.Calls().Save)
	assert.True(t, approver.CanApprove(actor.RestaurantID, inst.Key()))
}

func TestApprove_LockerError(t *testing.T) {
	approver, mem, cfg, inst := approvalFixture(t)
	approver.Locker = busyLocker{err: errors.New("redis down")}

	_, err := approver.Approve(context.Background(), actor, cfg, inst)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "acquire approval lock")
	assert.Equal(t, 0, mem.Calls().Save)
	assert.Equal(t, payout.StatusUnapproved, approver.Status(actor.RestaurantID, inst.Key()))
}

// =============================================================================
// EVENTS AND REFRESH
// =============================================================================

func TestApprove_PublishesOnce(t *testing.T) {
	approver, _, cfg, inst := approvalFixture(t)
	pub := &recordingPublisher{}
	approver.Publisher = pub

	_, err := approver.Approve(context.Background(), actor, cfg, inst)
	require.NoError(t, err)
	_, err = approver.Approve(context.Background(), actor, cfg, inst)
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	e := pub.events[0]
	assert.Equal(t, inst.ScheduleID, e.ScheduleID)
	assert.True(t, inst.BusinessDate.Equal(e.BusinessDate))
	assert.Equal(t, 2, e.ItemCount)
	assert.NotEmpty(t, e.ID)
}

func TestApprove_PublishFailureDoesNotFailApproval(t *testing.T) {
	approver, _, cfg, inst := approvalFixture(t)
	approver.Publisher = &recordingPublisher{err: errors.New("broker unavailable")}

	rec, err := approver.Approve(context.Background(), actor, cfg, inst)

	require.NoError(t, err)
	assert.Equal(t, payout.StatusApproved, rec.Status)
}

func TestRefresh_ReconcilesExternalApprovals(t *testing.T) {
	// GIVEN: Another client approved the instance
	approver, mem, _, inst := approvalFixture(t)
	mem.MarkApproved(actor.RestaurantID, inst.ScheduleID, inst.BusinessDate)

	// WHEN: Refreshing
	instances, err := approver.Refresh(context.Background(), actor)

	// THEN: Local state follows
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, payout.StatusApproved, approver.Status(actor.RestaurantID, inst.Key()))
}

func TestRefresh_FetchError(t *testing.T) {
	approver, mem, _, _ := approvalFixture(t)
	mem.FetchErr = errors.New("timeout")

	_, err := approver.Refresh(context.Background(), actor)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch schedule instances")
}

func TestRefresh_RequiresActor(t *testing.T) {
	approver, _, _, _ := approvalFixture(t)
	_, err := approver.Refresh(context.Background(), payout.Actor{})
	assert.ErrorIs(t, err, payout.ErrMissingContext)
}

// =============================================================================
// RESTAURANT SCOPE
// =============================================================================

func TestApprove_SameKeyInTwoRestaurants(t *testing.T) {
	// GIVEN: Two restaurants holding an instance with the same schedule and date
	approver, mem, cfg, inst := approvalFixture(t)
	other := payout.Actor{RestaurantID: "rest-2", UserID: "mgr-2"}
	mem.PutInstance(other.RestaurantID, inst)

	// WHEN: Both approve
	_, err := approver.Approve(context.Background(), actor, cfg, inst)
	require.NoError(t, err)
	rec, err := approver.Approve(context.Background(), other, cfg, inst)
	require.NoError(t, err)

	// THEN: The second restaurant ran its own save and approve
	assert.Equal(t, other.RestaurantID, rec.RestaurantID)
	assert.Equal(t, other.UserID, rec.ApprovedBy)
	calls := mem.Calls()
	assert.Equal(t, 2, calls.Save)
	assert.Equal(t, 2, calls.Approve)

	items, err := mem.ApprovedLineItems(context.Background(), other.RestaurantID, inst.ScheduleID, inst.BusinessDate)
	require.NoError(t, err)
	assert.Len(t, items, len(inst.Contributors))
}

func TestRefresh_DoesNotLeakAcrossRestaurants(t *testing.T) {
	// GIVEN: rest-1 approved at the source, rest-2 has the same key unapproved
	approver, mem, _, inst := approvalFixture(t)
	other := payout.Actor{RestaurantID: "rest-2", UserID: "mgr-2"}
	mem.PutInstance(other.RestaurantID, inst)
	mem.MarkApproved(actor.RestaurantID, inst.ScheduleID, inst.BusinessDate)

	// WHEN: rest-1 refreshes
	_, err := approver.Refresh(context.Background(), actor)
	require.NoError(t, err)

	// THEN: Only rest-1 sees the key approved
	assert.Equal(t, payout.StatusApproved, approver.Status(actor.RestaurantID, inst.Key()))
	assert.True(t, approver.CanApprove(other.RestaurantID, inst.Key()))
	_, ok := approver.Record(other.RestaurantID, inst.Key())
	assert.False(t, ok)
}

func TestApprove_InFlightDoesNotBlockOtherRestaurant(t *testing.T) {
	// GIVEN: rest-1 held open inside saveOverrides
	approver, mem, cfg, inst := approvalFixture(t)
	other := payout.Actor{RestaurantID: "rest-2", UserID: "mgr-2"}
	mem.PutInstance(other.RestaurantID, inst)

	var saves atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	mem.BeforeSave = func() {
		if saves.Add(1) == 1 {
			close(entered)
			<-release
		}
	}

	done := make(chan error, 1)
	go func() {
		_, err := approver.Approve(context.Background(), actor, cfg, inst)
		done <- err
	}()
	<-entered

	// WHEN: rest-2 approves the same schedule and date
	rec, err := approver.Approve(context.Background(), other, cfg, inst)

	// THEN: It completes on its own
	require.NoError(t, err)
	assert.Equal(t, payout.StatusApproved, rec.Status)
	assert.Equal(t, payout.StatusApproving, approver.Status(actor.RestaurantID, inst.Key()))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 2, mem.Calls().Approve)
}
