/*
scenarios.go - Demo scenarios for testing and demonstration

PURPOSE:
  Provides pre-built scenarios that seed schedules and instances for the
  calling restaurant, so each rule kind can be previewed and approved
  without a live source system.

SCENARIOS:
  job-weighted:      Bartender pool shared with servers and a host
  hour-based:        Brunch pool shared by receivers who clocked hours
  equal-split:       Flat per-head split of a lunch pool
  manual-receiver:   Custom schedule with a fixed-percentage receiver
  missing-role:      Configured Host role with nobody on shift
  approved-history:  Two days, one already approved at the source

HOW IT WORKS:
  1. Reset the store
  2. Parse schedule JSON through the schedule factory (validation gate)
  3. Parse instance JSON through loose ingestion
  4. Save both under the caller's restaurant

SEE ALSO:
  - handlers.go: API handlers
  - factory/schedule.go: Schedule JSON
  - payout/ingest.go: Instance JSON
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/payout-engine/payout"
	"go.uber.org/zap"
)

// scenarios is the list of available demo scenarios.
var scenarios = []ScenarioDTO{
	{
		ID:          "job-weighted",
		Name:        "Bar Pool",
		Description: "A bartender tips out two servers and a host by role percentage",
		Category:    "basic",
	},
	{
		ID:          "hour-based",
		Name:        "Brunch by Hours",
		Description: "Servers and bussers who clocked hours share a pool per head",
		Category:    "basic",
	},
	{
		ID:          "equal-split",
		Name:        "Equal Lunch Split",
		Description: "Every receiver in a role gets the same share",
		Category:    "basic",
	},
	{
		ID:          "manual-receiver",
		Name:        "Custom with Fixed Share",
		Description: "A dishwasher receives a fixed 5% regardless of role tables",
		Category:    "advanced",
	},
	{
		ID:          "missing-role",
		Name:        "Missing Host",
		Description: "The host role is configured but nobody worked it; preview warns",
		Category:    "warnings",
	},
	{
		ID:          "approved-history",
		Name:        "Approval History",
		Description: "Two business dates, one already approved at the source",
		Category:    "approval",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	loader, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	actor := actorFrom(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		h.fail(w, r, "Failed to reset store", err)
		return
	}
	h.Approver.Reset()
	h.currentScenario = ""

	if err := loader(h, ctx, actor.RestaurantID); err != nil {
		h.fail(w, r, fmt.Sprintf("Failed to load scenario %s", req.ScenarioID), err)
		return
	}
	h.currentScenario = req.ScenarioID

	h.Logger.Info("scenario loaded",
		zap.String("scenario", req.ScenarioID),
		zap.String("restaurant_id", string(actor.RestaurantID)),
	)
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

type scenarioLoader func(h *Handler, ctx context.Context, rid payout.RestaurantID) error

var scenarioLoaders = map[string]scenarioLoader{
	"job-weighted":     (*Handler).loadJobWeightedScenario,
	"hour-based":       (*Handler).loadHourBasedScenario,
	"equal-split":      (*Handler).loadEqualSplitScenario,
	"manual-receiver":  (*Handler).loadManualReceiverScenario,
	"missing-role":     (*Handler).loadMissingRoleScenario,
	"approved-history": (*Handler).loadApprovedHistoryScenario,
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

const barPoolJSON = `{
  "id": "bar-pool",
  "name": "Bar pool",
  "rule_kind": "job_weighted",
  "window": {"start_day": "monday", "end_day": "sunday", "start_time": "16:00", "end_time": "23:59"},
  "contributor_roles": ["Bartender"],
  "contributor_percentage": 60,
  "receiver_roles": ["Server", "Host"],
  "receiver_role_percentages": {"Server": 30, "Host": 10}
}`

// loadJobWeightedScenario: 200 in tips, servers split 30%, host takes 10%.
func (h *Handler) loadJobWeightedScenario(ctx context.Context, rid payout.RestaurantID) error {
	if err := h.seedSchedule(ctx, rid, barPoolJSON); err != nil {
		return err
	}
	return h.seedInstance(ctx, rid, `{
	  "scheduleId": "bar-pool", "businessDate": "2025-03-14",
	  "totalSales": 2400, "netSales": "2150.50", "totalTips": 200, "orderCount": 61,
	  "contributors": [
	    {"employeeGuid": "e-ana", "employeeName": "Ana Ruiz", "jobTitle": "Bartender", "isContributor": "Yes", "totalTips": 200, "hoursWorked": 8},
	    {"employeeGuid": "e-ben", "employeeName": "Ben Okafor", "jobTitle": "Server", "isContributor": "No", "hoursWorked": 6},
	    {"employeeGuid": "e-cleo", "employeeName": "Cleo Park", "jobTitle": "Server", "isContributor": "No", "hoursWorked": "6"},
	    {"employeeGuid": "e-dev", "employeeName": "Dev Shah", "jobTitle": "Host", "isContributor": "No", "hoursWorked": 5}
	  ]
	}`)
}

func (h *Handler) loadHourBasedScenario(ctx context.Context, rid payout.RestaurantID) error {
	err := h.seedSchedule(ctx, rid, `{
	  "id": "brunch", "name": "Weekend brunch", "rule_kind": "hour_based",
	  "window": {"start_day": "saturday", "end_day": "sunday", "start_time": "09:00", "end_time": "15:00"},
	  "fund_triggers": {"tips_percent": 100, "gratuity_percent": 50},
	  "contributor_roles": ["Bartender"],
	  "receiver_roles": ["Server", "Busser"],
	  "receiver_role_percentages": {"Server": 30, "Busser": 10}
	}`)
	if err != nil {
		return err
	}
	return h.seedInstance(ctx, rid, `{
	  "scheduleId": "brunch", "businessDate": "2025-03-16",
	  "totalSales": 1800, "totalTips": 300, "totalGratuity": 60, "orderCount": 44,
	  "contributors": [
	    {"employeeGuid": "e-ana", "employeeName": "Ana Ruiz", "jobTitle": "Bartender", "isContributor": true, "totalTips": 300, "totalGratuity": 60, "hoursWorked": 7},
	    {"employeeGuid": "e-ben", "employeeName": "Ben Okafor", "jobTitle": "Server", "isContributor": false, "hoursWorked": 4},
	    {"employeeGuid": "e-cleo", "employeeName": "Cleo Park", "jobTitle": "Server", "isContributor": false, "hoursWorked": 6},
	    {"employeeGuid": "e-eli", "employeeName": "Eli Moreau", "jobTitle": "Busser", "isContributor": false, "hoursWorked": 5}
	  ]
	}`)
}

func (h *Handler) loadEqualSplitScenario(ctx context.Context, rid payout.RestaurantID) error {
	err := h.seedSchedule(ctx, rid, `{
	  "id": "lunch", "name": "Lunch", "rule_kind": "equal",
	  "contributor_roles": ["Server"],
	  "receiver_roles": ["Busser", "Runner"],
	  "receiver_role_percentages": {"Busser": 10, "Runner": 10}
	}`)
	if err != nil {
		return err
	}
	return h.seedInstance(ctx, rid, `{
	  "scheduleId": "lunch", "businessDate": "2025-03-13",
	  "totalTips": 150, "orderCount": 38,
	  "contributors": [
	    {"employeeGuid": "e-ben", "employeeName": "Ben Okafor", "jobTitle": "Server", "isContributor": "Yes", "totalTips": 90, "hoursWorked": 5},
	    {"employeeGuid": "e-cleo", "employeeName": "Cleo Park", "jobTitle": "Server", "isContributor": "Yes", "totalTips": 60, "hoursWorked": 5},
	    {"employeeGuid": "e-eli", "employeeName": "Eli Moreau", "jobTitle": "Busser", "isContributor": "No", "hoursWorked": 5},
	    {"employeeGuid": "e-fay", "employeeName": "Fay Lind", "jobTitle": "Runner", "isContributor": "No", "hoursWorked": 4},
	    {"employeeGuid": "e-gus", "employeeName": "Gus Hale", "jobTitle": "Runner", "isContributor": "No", "hoursWorked": 0}
	  ]
	}`)
}

func (h *Handler) loadManualReceiverScenario(ctx context.Context, rid payout.RestaurantID) error {
	err := h.seedSchedule(ctx, rid, `{
	  "id": "patio", "name": "Patio", "rule_kind": "custom",
	  "contributor_roles": ["Server"],
	  "contributor_percentage": 80,
	  "receiver_roles": ["Busser"],
	  "receiver_role_percentages": {"Busser": 20},
	  "custom_individual_payout": 5
	}`)
	if err != nil {
		return err
	}
	return h.seedInstance(ctx, rid, `{
	  "scheduleId": "patio", "businessDate": "2025-03-15",
	  "totalTips": 400, "orderCount": 72,
	  "contributors": [
	    {"employeeGuid": "e-ben", "employeeName": "Ben Okafor", "jobTitle": "Server", "isContributor": "Yes", "totalTips": 400, "hoursWorked": 9},
	    {"employeeGuid": "e-eli", "employeeName": "Eli Moreau", "jobTitle": "Busser", "isContributor": "No", "hoursWorked": 8},
	    {"employeeGuid": "e-hal", "employeeName": "Hal Dorsey", "jobTitle": "Dishwasher", "isContributor": "No", "payoutReceiverId": "Dishwasher", "payoutPercentage": "5"}
	  ]
	}`)
}

func (h *Handler) loadMissingRoleScenario(ctx context.Context, rid payout.RestaurantID) error {
	if err := h.seedSchedule(ctx, rid, barPoolJSON); err != nil {
		return err
	}
	return h.seedInstance(ctx, rid, `{
	  "scheduleId": "bar-pool", "businessDate": "2025-03-17",
	  "totalTips": 150, "orderCount": 40,
	  "contributors": [
	    {"employeeGuid": "e-ana", "employeeName": "Ana Ruiz", "jobTitle": "Bartender", "isContributor": "Yes", "totalTips": 150, "hoursWorked": 8},
	    {"employeeGuid": "e-ben", "employeeName": "Ben Okafor", "jobTitle": "Server", "isContributor": "No", "hoursWorked": 7}
	  ]
	}`)
}

func (h *Handler) loadApprovedHistoryScenario(ctx context.Context, rid payout.RestaurantID) error {
	if err := h.seedSchedule(ctx, rid, barPoolJSON); err != nil {
		return err
	}
	for _, day := range []struct {
		date     string
		approved bool
	}{
		{"2025-03-10", true},
		{"2025-03-11", false},
	} {
		err := h.seedInstance(ctx, rid, fmt.Sprintf(`{
		  "scheduleId": "bar-pool", "businessDate": %q, "isApproved": %t,
		  "totalTips": 120, "orderCount": 30,
		  "contributors": [
		    {"employeeGuid": "e-ana", "employeeName": "Ana Ruiz", "jobTitle": "Bartender", "isContributor": "Yes", "totalTips": 120, "hoursWorked": 8},
		    {"employeeGuid": "e-ben", "employeeName": "Ben Okafor", "jobTitle": "Server", "isContributor": "No", "hoursWorked": 6},
		    {"employeeGuid": "e-dev", "employeeName": "Dev Shah", "jobTitle": "Host", "isContributor": "No", "hoursWorked": 6}
		  ]
		}`, day.date, day.approved))
		if err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) seedSchedule(ctx context.Context, rid payout.RestaurantID, data string) error {
	cfg, err := h.Schedules.ParseSchedule([]byte(data))
	if err != nil {
		return err
	}
	cfg.RestaurantID = rid
	_, err = h.Store.SaveSchedule(ctx, cfg)
	return err
}

func (h *Handler) seedInstance(ctx context.Context, rid payout.RestaurantID, data string) error {
	inst, err := payout.ParseInstance([]byte(data))
	if err != nil {
		return err
	}
	return h.Store.SaveInstance(ctx, rid, inst)
}
