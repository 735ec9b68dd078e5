/*
handlers_test.go - HTTP tests for API handlers

Tests for:
- Actor header enforcement
- Schedule CRUD, validation gate and locking
- Preview, approval, settlement read and export
- Error status mapping
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/payout"
	"github.com/warp/payout-engine/payout/store"
	"github.com/warp/payout-engine/store/sqlite"
	"go.uber.org/zap"
)

const (
	testRestaurant = "rest-1"
	testUser       = "mgr-1"
)

func setupTestServer(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return newServer(s)
}

func newServer(s Store) (*Handler, http.Handler) {
	h := NewHandler(s, payout.NewApprover(s, zap.NewNop()), zap.NewNop())
	return h, NewRouter(h, []string{"http://localhost:5173"})
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderRestaurantID, testRestaurant)
	req.Header.Set(HeaderUserID, testUser)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func loadScenario(t *testing.T, router http.Handler, id string) {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/scenarios/load", `{"scenario_id":"`+id+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msg string) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "%s: want %s, got %s", msg, want, got)
}

// =============================================================================
// CONTEXT
// =============================================================================

func TestRequireActor_MissingHeaders(t *testing.T) {
	_, router := setupTestServer(t)

	for _, missing := range []string{HeaderRestaurantID, HeaderUserID} {
		req := httptest.NewRequest(http.MethodGet, "/api/schedules", nil)
		req.Header.Set(HeaderRestaurantID, testRestaurant)
		req.Header.Set(HeaderUserID, testUser)
		req.Header.Del(missing)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, missing)
		assert.Equal(t, "missing_context", decode[ErrorResponse](t, rec).Code)
	}
}

func TestHealth_NoActorRequired(t *testing.T) {
	_, router := setupTestServer(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// SCHEDULES
// =============================================================================

const brunchSchedule = `{
  "id": "brunch", "name": "Brunch", "rule_kind": "custom",
  "contributor_roles": ["Server"], "contributor_percentage": 80,
  "receiver_roles": ["Busser"], "receiver_role_percentages": {"Busser": 20}
}`

func TestCreateSchedule_PercentageMismatch(t *testing.T) {
	// GIVEN: A custom schedule whose percentages total 95
	_, router := setupTestServer(t)
	body := strings.Replace(brunchSchedule, `"Busser": 20`, `"Busser": 15`, 1)

	// WHEN: Creating it
	rec := do(t, router, http.MethodPost, "/api/schedules", body)

	// THEN: Rejected with 400 and nothing is stored
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "percentage_mismatch", decode[ErrorResponse](t, rec).Code)

	list := do(t, router, http.MethodGet, "/api/schedules", "")
	assert.Empty(t, decode[[]ScheduleDTO](t, list))
}

func TestCreateSchedule_InvalidBody(t *testing.T) {
	_, router := setupTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/schedules", `{"id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_config", decode[ErrorResponse](t, rec).Code)

	rec = do(t, router, http.MethodPost, "/api/schedules", `{"id":"x","rule_kind":"weekly"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_config", decode[ErrorResponse](t, rec).Code)
}

func TestScheduleCRUD(t *testing.T) {
	_, router := setupTestServer(t)

	// Create
	rec := do(t, router, http.MethodPost, "/api/schedules", brunchSchedule)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[ScheduleDTO](t, rec)
	assert.Equal(t, 1, created.Version)
	assert.Equal(t, testRestaurant, created.RestaurantID)

	// Duplicate
	rec = do(t, router, http.MethodPost, "/api/schedules", brunchSchedule)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Update bumps the version; the path id wins over the body
	update := strings.Replace(brunchSchedule, `"id": "brunch"`, `"id": "ignored"`, 1)
	update = strings.Replace(update, `"name": "Brunch"`, `"name": "Sunday brunch"`, 1)
	rec = do(t, router, http.MethodPut, "/api/schedules/brunch", update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[ScheduleDTO](t, rec)
	assert.Equal(t, "brunch", updated.ID)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "Sunday brunch", updated.Name)

	// Get
	rec = do(t, router, http.MethodGet, "/api/schedules/brunch", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Sunday brunch", decode[ScheduleDTO](t, rec).Name)

	// Delete
	rec = do(t, router, http.MethodDelete, "/api/schedules/brunch", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, router, http.MethodGet, "/api/schedules/brunch", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "schedule_not_found", decode[ErrorResponse](t, rec).Code)
}

func TestUpdateSchedule_Unknown(t *testing.T) {
	_, router := setupTestServer(t)
	rec := do(t, router, http.MethodPut, "/api/schedules/nope", brunchSchedule)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// INSTANCES
// =============================================================================

func TestIngestInstance_Malformed(t *testing.T) {
	_, router := setupTestServer(t)
	body := `{"scheduleId":"bar-pool","businessDate":"2025-03-14",
		"contributors":[{"employeeGuid":"e1","isContributor":"Yes","totalTips":"lots"}]}`

	rec := do(t, router, http.MethodPost, "/api/instances", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "malformed_record", resp.Code)
	assert.Contains(t, resp.Details, "totalTips")
}

func TestIngestInstance_MissingDate(t *testing.T) {
	_, router := setupTestServer(t)
	rec := do(t, router, http.MethodPost, "/api/instances", `{"scheduleId":"bar-pool","contributors":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_context", decode[ErrorResponse](t, rec).Code)
}

func TestPreview(t *testing.T) {
	// GIVEN: A bartender with 200 in tips, two servers at 30% and a host at 10%
	_, router := setupTestServer(t)
	loadScenario(t, router, "job-weighted")

	// WHEN: Previewing the instance
	rec := do(t, router, http.MethodGet, "/api/instances/bar-pool/2025-03-14/preview", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	preview := decode[PreviewDTO](t, rec)

	// THEN: Contributors first, the giveaway is 40% of own tips, and the
	// payout deltas cancel out
	require.Len(t, preview.Items, 4)
	assert.Equal(t, payout.FlagContributor, preview.Items[0].IsContributor)
	assertDecimal(t, "-80", preview.Items[0].PayoutTips, "bartender giveaway")
	assertDecimal(t, "120", preview.Items[0].NetPayout, "bartender net")

	byName := make(map[string]payout.PayoutLineItem)
	for _, it := range preview.Items {
		byName[it.EmployeeName] = it
	}
	assertDecimal(t, "30", byName["Ben Okafor"].PayoutTips, "server")
	assertDecimal(t, "30", byName["Cleo Park"].PayoutTips, "server")
	assertDecimal(t, "20", byName["Dev Shah"].PayoutTips, "host")

	assertDecimal(t, "0", preview.Summary.PayoutTips, "deltas")
	assertDecimal(t, "200", preview.Summary.NetPayout, "net")
	assertDecimal(t, "40", preview.Summary.TotalReceiverPercent, "receiver percent")
	assert.Equal(t, 3, preview.Summary.PaidReceiverCount)
	assert.Empty(t, preview.MissingRoles)
	assert.Equal(t, "unapproved", preview.Status)
	assert.True(t, preview.CanApprove)
}

func TestPreview_Errors(t *testing.T) {
	_, router := setupTestServer(t)
	loadScenario(t, router, "job-weighted")

	rec := do(t, router, http.MethodGet, "/api/instances/bar-pool/2025-03-20/preview", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "instance_not_found", decode[ErrorResponse](t, rec).Code)

	rec = do(t, router, http.MethodGet, "/api/instances/bar-pool/14-03-2025/preview", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_context", decode[ErrorResponse](t, rec).Code)

	rec = do(t, router, http.MethodGet, "/api/instances/lunch/2025-03-14/preview", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "schedule_not_found", decode[ErrorResponse](t, rec).Code)
}

func TestApproveFlow(t *testing.T) {
	// GIVEN: An unapproved instance
	_, router := setupTestServer(t)
	loadScenario(t, router, "job-weighted")

	// Settlement cannot read it yet
	rec := do(t, router, http.MethodGet, "/api/instances/bar-pool/2025-03-14/payouts", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not_approved", decode[ErrorResponse](t, rec).Code)

	// WHEN: Approving
	rec = do(t, router, http.MethodPost, "/api/instances/bar-pool/2025-03-14/approve", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approval := decode[ApprovalDTO](t, rec)

	// THEN: The record is approved by the caller
	assert.Equal(t, "approved", approval.Status)
	assert.Equal(t, testUser, approval.ApprovedBy)
	assert.NotNil(t, approval.ApprovedAt)

	// AND: Settlement reads the persisted items
	rec = do(t, router, http.MethodGet, "/api/instances/bar-pool/2025-03-14/payouts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	payouts := decode[PayoutsDTO](t, rec)
	require.Len(t, payouts.Items, 4)
	assertDecimal(t, "-80", payouts.Items[0].PayoutTips, "persisted giveaway")

	// AND: The listing reports it approved
	rec = do(t, router, http.MethodGet, "/api/instances", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]InstanceDTO](t, rec)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsApproved)
	assert.Equal(t, "approved", list[0].Status)
	assert.False(t, list[0].CanApprove)

	// AND: Approving again is a no-op
	rec = do(t, router, http.MethodPost, "/api/instances/bar-pool/2025-03-14/approve", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "approved", decode[ApprovalDTO](t, rec).Status)

	// AND: The schedule is locked and the instance frozen
	rec = do(t, router, http.MethodDelete, "/api/schedules/bar-pool", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "schedule_locked", decode[ErrorResponse](t, rec).Code)

	rec = do(t, router, http.MethodPost, "/api/instances", `{"scheduleId":"bar-pool","businessDate":"2025-03-14","contributors":[]}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_approved", decode[ErrorResponse](t, rec).Code)
}

func TestExport(t *testing.T) {
	_, router := setupTestServer(t)
	loadScenario(t, router, "job-weighted")
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/api/instances/bar-pool/2025-03-14/approve", "").Code)

	rec := do(t, router, http.MethodGet, "/api/instances/bar-pool/2025-03-14/export", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "payouts_bar-pool_2025-03-14.xlsx")
	assert.NotZero(t, rec.Body.Len())
}

func TestApprove_PersistenceFailure(t *testing.T) {
	// GIVEN: A store whose save call fails
	mem := store.NewMemory()
	_, router := newServer(mem)
	loadScenario(t, router, "job-weighted")
	mem.SaveErr = errors.New("connection reset")

	// WHEN: Approving
	rec := do(t, router, http.MethodPost, "/api/instances/bar-pool/2025-03-14/approve", "")

	// THEN: 502, nothing approved, and a retry succeeds once the store recovers
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "persistence_failure", decode[ErrorResponse](t, rec).Code)
	assert.Zero(t, mem.Calls().Approve)

	mem.SaveErr = nil
	rec = do(t, router, http.MethodPost, "/api/instances/bar-pool/2025-03-14/approve", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApprove_Refused(t *testing.T) {
	mem := store.NewMemory()
	_, router := newServer(mem)
	loadScenario(t, router, "job-weighted")
	mem.ApproveDeny = true

	rec := do(t, router, http.MethodPost, "/api/instances/bar-pool/2025-03-14/approve", "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "approval_failure", decode[ErrorResponse](t, rec).Code)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&payout.PercentageMismatchError{Total: 95}, http.StatusBadRequest, "percentage_mismatch"},
		{&payout.StepError{Kind: payout.ErrPersistenceFailure, Err: payout.ErrInstanceNotFound}, http.StatusBadGateway, "persistence_failure"},
		{payout.ErrApprovalInFlight, http.StatusConflict, "approval_in_flight"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, c := range cases {
		status, code := classify(c.err)
		assert.Equal(t, c.status, status, c.err.Error())
		assert.Equal(t, c.code, code, c.err.Error())
	}
}
