package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/payout"
)

var day = payout.NewBusinessDate(2025, time.March, 14)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func hours(v float64) *float64 { return &v }

func seedInstance(t *testing.T, s *Store) payout.ScheduleInstance {
	t.Helper()
	inst := payout.ScheduleInstance{
		ScheduleID:   "dinner",
		BusinessDate: day,
		TotalTips:    100,
		OrderCount:   12,
		Contributors: []payout.ContributorRecord{
			{EmployeeGUID: "e1", EmployeeName: "Ana", JobTitle: "Bartender", IsContributor: payout.FlagContributor, TotalTips: 100, HoursWorked: hours(8)},
			{EmployeeGUID: "e2", EmployeeName: "Ben", JobTitle: "Server", IsContributor: payout.FlagReceiver, PayoutReceiverID: "Server", HoursWorked: hours(6)},
		},
	}
	require.NoError(t, s.SaveInstance(context.Background(), "r1", inst))
	return inst
}

func TestStore_InstanceRoundTrip(t *testing.T) {
	s := newTestStore(t)
	inst := seedInstance(t, s)

	got, err := s.GetInstance(context.Background(), "r1", "dinner", day)
	require.NoError(t, err)
	assert.Equal(t, inst.Key(), got.Key())
	assert.Equal(t, 12, got.OrderCount)
	require.Len(t, got.Contributors, 2)
	assert.Equal(t, 6.0, *got.Contributors[1].HoursWorked)

	_, err = s.GetInstance(context.Background(), "r1", "dinner", payout.NewBusinessDate(2025, time.March, 15))
	assert.ErrorIs(t, err, payout.ErrInstanceNotFound)

	all, err := s.FetchScheduleInstances(context.Background(), "r1", "mgr")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	other, err := s.FetchScheduleInstances(context.Background(), "r2", "mgr")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStore_ApproveFlow(t *testing.T) {
	// GIVEN: A schedule and an instance
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.SaveSchedule(ctx, payout.ScheduleConfig{ID: "dinner", RestaurantID: "r1", RuleKind: payout.RuleEqual})
	require.NoError(t, err)
	inst := seedInstance(t, s)

	cfg := payout.ScheduleConfig{
		ID: "dinner", RuleKind: payout.RuleJobWeighted,
		ReceiverRoles:           []string{"Server"},
		ReceiverRolePercentages: map[string]float64{"Server": 40},
	}
	items := payout.ComputeLineItems(cfg, inst).Items

	// WHEN: Saving overrides twice (retry) and approving
	require.NoError(t, s.SaveOverrides(ctx, "r1", "dinner", day, items))
	_, err = s.ApprovedLineItems(ctx, "r1", "dinner", day)
	assert.ErrorIs(t, err, payout.ErrNotApproved)

	require.NoError(t, s.SaveOverrides(ctx, "r1", "dinner", day, items))
	ok, err := s.Approve(ctx, "r1", "dinner", day, "mgr")
	require.NoError(t, err)
	require.True(t, ok)

	// THEN: Items read back exactly once, in order, with exact decimals
	got, err := s.ApprovedLineItems(ctx, "r1", "dinner", day)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, payout.EmployeeGUID("e1"), got[0].EmployeeGUID)
	assert.True(t, got[0].PayoutTips.Equal(decimal.NewFromInt(-40)), got[0].PayoutTips.String())
	assert.True(t, got[1].NetPayout.Equal(decimal.NewFromInt(40)), got[1].NetPayout.String())

	// AND: The schedule is locked, the instance frozen, approve is idempotent
	sched, err := s.GetSchedule(ctx, "r1", "dinner")
	require.NoError(t, err)
	assert.True(t, sched.Locked)
	assert.ErrorIs(t, s.DeleteSchedule(ctx, "r1", "dinner"), payout.ErrScheduleLocked)
	assert.ErrorIs(t, s.SaveInstance(ctx, "r1", inst), payout.ErrAlreadyApproved)

	ok, err = s.Approve(ctx, "r1", "dinner", day, "mgr-2")
	require.NoError(t, err)
	assert.True(t, ok)

	audit, err := s.ApprovalAudit(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, "mgr", audit[0].ApprovedBy)
}

func TestStore_ApproveUnknownInstance(t *testing.T) {
	s := newTestStore(t)
	ok, err := s.Approve(context.Background(), "r1", "nope", day, "mgr")
	assert.False(t, ok)
	assert.ErrorIs(t, err, payout.ErrInstanceNotFound)
}

func TestStore_ScheduleVersioning(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	cfg := payout.ScheduleConfig{
		ID: "brunch", RestaurantID: "r1", Name: "Brunch", RuleKind: payout.RuleCustom,
		ContributorRoles:        []string{"Server"},
		ContributorPercentage:   80,
		ReceiverRoles:           []string{"Busser"},
		ReceiverRolePercentages: map[string]float64{"Busser": 20},
	}

	saved, err := s.SaveSchedule(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Version)
	assert.Equal(t, 20.0, saved.ReceiverRolePercentages["Busser"])

	cfg.Name = "Sunday brunch"
	saved, err = s.SaveSchedule(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Version)
	assert.Equal(t, "Sunday brunch", saved.Name)

	list, err := s.ListSchedules(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.DeleteSchedule(ctx, "r1", "brunch"))
	_, err = s.GetSchedule(ctx, "r1", "brunch")
	assert.ErrorIs(t, err, payout.ErrScheduleNotFound)
}

func TestStore_Reset(t *testing.T) {
	s := newTestStore(t)
	seedInstance(t, s)

	require.NoError(t, s.Reset(context.Background()))

	all, err := s.FetchScheduleInstances(context.Background(), "r1", "mgr")
	require.NoError(t, err)
	assert.Empty(t, all)
}
