/*
handlers.go - HTTP API handlers for the payout engine

PURPOSE:
  Exposes schedule configuration, instance ingestion, preview and the
  approval workflow via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to the payout package.

ENDPOINTS:
  Schedules:
    GET    /api/schedules                 List schedules
    POST   /api/schedules                 Create schedule (percentage gate)
    GET    /api/schedules/{id}            Get schedule
    PUT    /api/schedules/{id}            Update schedule (gate, version bump)
    DELETE /api/schedules/{id}            Delete unlocked schedule

  Instances:
    GET    /api/instances                             Refresh and list
    POST   /api/instances                             Ingest one instance
    GET    /api/instances/{scheduleID}/{date}/preview Compute without persisting
    POST   /api/instances/{scheduleID}/{date}/approve Approve
    GET    /api/instances/{scheduleID}/{date}/payouts Persisted line items
    GET    /api/instances/{scheduleID}/{date}/export  Line items as xlsx

  Scenarios:
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/load         Load a demo scenario

CONTEXT:
  Every /api route runs under an actor read from the X-Restaurant-ID and
  X-User-ID headers. A request missing either is rejected with 400 before
  any handler runs.

ERROR HANDLING:
  Errors are returned as JSON {error, code, details} with HTTP status:
  - 400: Percentage mismatch, invalid config, malformed record, missing context
  - 404: Schedule or instance not found
  - 409: Approval in flight, schedule locked, already approved, not approved
  - 502: Persistence or approve call failed (retryable)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/warp/payout-engine/export"
	"github.com/warp/payout-engine/factory"
	"github.com/warp/payout-engine/payout"
	"go.uber.org/zap"
)

const (
	HeaderRestaurantID = "X-Restaurant-ID"
	HeaderUserID       = "X-User-ID"
)

// maxBodyBytes bounds schedule and instance payloads.
const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is everything the handlers need from persistence.
type Store interface {
	payout.Source
	payout.SettlementStore
	payout.ScheduleStore
	payout.InstanceStore
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     Store
	Approver  *payout.Approver
	Schedules *factory.ScheduleFactory
	Logger    *zap.Logger

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler. The approver must drive the same store.
func NewHandler(store Store, approver *payout.Approver, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:     store,
		Approver:  approver,
		Schedules: factory.NewScheduleFactory(),
		Logger:    logger.Named("api"),
	}
}

type actorKey struct{}

// RequireActor reads the actor headers into the request context.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := payout.Actor{
			RestaurantID: payout.RestaurantID(strings.TrimSpace(r.Header.Get(HeaderRestaurantID))),
			UserID:       payout.UserID(strings.TrimSpace(r.Header.Get(HeaderUserID))),
		}
		if !actor.Valid() {
			writeError(w, http.StatusBadRequest, "Missing restaurant or user context", payout.ErrMissingContext)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func actorFrom(ctx context.Context) payout.Actor {
	actor, _ := ctx.Value(actorKey{}).(payout.Actor)
	return actor
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// ListSchedules returns the restaurant's schedules.
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	cfgs, err := h.Store.ListSchedules(r.Context(), actor.RestaurantID)
	if err != nil {
		h.fail(w, r, "Failed to list schedules", err)
		return
	}

	dtos := make([]ScheduleDTO, len(cfgs))
	for i, cfg := range cfgs {
		dtos[i] = toScheduleDTO(h.Schedules, cfg)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSchedule returns one schedule.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	cfg, err := h.Store.GetSchedule(r.Context(), actor.RestaurantID, payout.ScheduleID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to get schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDTO(h.Schedules, *cfg))
}

// CreateSchedule validates and stores a new schedule.
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := actorFrom(ctx)

	var sj factory.ScheduleJSON
	if err := decodeBody(r, &sj); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	cfg, err := h.parseSchedule(actor, sj)
	if err != nil {
		h.fail(w, r, "Invalid schedule", err)
		return
	}

	if _, err := h.Store.GetSchedule(ctx, actor.RestaurantID, cfg.ID); err == nil {
		writeError(w, http.StatusConflict, "Schedule already exists", nil)
		return
	} else if !errors.Is(err, payout.ErrScheduleNotFound) {
		h.fail(w, r, "Failed to check schedule", err)
		return
	}

	saved, err := h.Store.SaveSchedule(ctx, cfg)
	if err != nil {
		h.fail(w, r, "Failed to save schedule", err)
		return
	}
	h.Logger.Info("schedule created",
		zap.String("restaurant_id", string(actor.RestaurantID)),
		zap.String("schedule_id", string(saved.ID)),
		zap.String("rule_kind", string(saved.RuleKind)),
	)
	writeJSON(w, http.StatusCreated, toScheduleDTO(h.Schedules, *saved))
}

// UpdateSchedule replaces an existing schedule. The path id wins over the body.
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := actorFrom(ctx)
	id := payout.ScheduleID(chi.URLParam(r, "id"))

	if _, err := h.Store.GetSchedule(ctx, actor.RestaurantID, id); err != nil {
		h.fail(w, r, "Failed to get schedule", err)
		return
	}

	var sj factory.ScheduleJSON
	if err := decodeBody(r, &sj); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	sj.ID = string(id)
	cfg, err := h.parseSchedule(actor, sj)
	if err != nil {
		h.fail(w, r, "Invalid schedule", err)
		return
	}

	saved, err := h.Store.SaveSchedule(ctx, cfg)
	if err != nil {
		h.fail(w, r, "Failed to save schedule", err)
		return
	}
	h.Logger.Info("schedule updated",
		zap.String("restaurant_id", string(actor.RestaurantID)),
		zap.String("schedule_id", string(saved.ID)),
		zap.Int("version", saved.Version),
	)
	writeJSON(w, http.StatusOK, toScheduleDTO(h.Schedules, *saved))
}

// DeleteSchedule removes a schedule no approval references.
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	id := payout.ScheduleID(chi.URLParam(r, "id"))
	if err := h.Store.DeleteSchedule(r.Context(), actor.RestaurantID, id); err != nil {
		h.fail(w, r, "Failed to delete schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": string(id)})
}

// parseSchedule scopes sj to the actor's restaurant and runs it through the
// factory. Version and lock state belong to the store.
func (h *Handler) parseSchedule(actor payout.Actor, sj factory.ScheduleJSON) (payout.ScheduleConfig, error) {
	sj.RestaurantID = string(actor.RestaurantID)
	sj.Version = 0
	sj.Locked = false
	return h.Schedules.FromJSON(sj)
}

// =============================================================================
// INSTANCE HANDLERS
// =============================================================================

// ListInstances refreshes from the source and lists every visible instance.
func (h *Handler) ListInstances(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	instances, err := h.Approver.Refresh(r.Context(), actor)
	if err != nil {
		h.fail(w, r, "Failed to refresh instances", err)
		return
	}

	dtos := make([]InstanceDTO, len(instances))
	for i, inst := range instances {
		dtos[i] = toInstanceDTO(inst, h.Approver.Status(actor.RestaurantID, inst.Key()))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// IngestInstance accepts one loosely typed instance payload.
func (h *Handler) IngestInstance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := actorFrom(ctx)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}
	inst, err := payout.ParseInstance(body)
	if err != nil {
		h.fail(w, r, "Invalid instance", err)
		return
	}
	if err := h.Store.SaveInstance(ctx, actor.RestaurantID, inst); err != nil {
		h.fail(w, r, "Failed to save instance", err)
		return
	}

	h.Logger.Info("instance ingested",
		zap.String("restaurant_id", string(actor.RestaurantID)),
		zap.String("schedule_id", string(inst.ScheduleID)),
		zap.String("business_date", inst.BusinessDate.String()),
		zap.Int("contributors", len(inst.Contributors)),
	)
	writeJSON(w, http.StatusCreated, toInstanceDTO(inst, h.Approver.Status(actor.RestaurantID, inst.Key())))
}

// PreviewInstance computes line items and the summary without persisting.
func (h *Handler) PreviewInstance(w http.ResponseWriter, r *http.Request) {
	cfg, inst, err := h.loadInstance(r)
	if err != nil {
		h.fail(w, r, "Failed to load instance", err)
		return
	}

	alloc := payout.ComputeLineItems(*cfg, *inst)
	tips, gratuity := payout.EligiblePool(*cfg, alloc)
	status := h.Approver.Status(actorFrom(r.Context()).RestaurantID, inst.Key())
	if inst.IsApproved {
		status = payout.StatusApproved
	}

	missing := alloc.MissingRoles
	if missing == nil {
		missing = []string{}
	}
	writeJSON(w, http.StatusOK, PreviewDTO{
		ScheduleID:   string(inst.ScheduleID),
		BusinessDate: inst.BusinessDate.String(),
		RuleKind:     string(cfg.RuleKind),
		Status:       string(status),
		CanApprove:   status == payout.StatusUnapproved,
		Items:        payout.SortForPresentation(alloc.Items),
		Summary:      toSummaryDTO(payout.Summarize(alloc), tips, gratuity),
		MissingRoles: missing,
	})
}

// ApproveInstance persists the computed items and approves the instance.
func (h *Handler) ApproveInstance(w http.ResponseWriter, r *http.Request) {
	cfg, inst, err := h.loadInstance(r)
	if err != nil {
		h.fail(w, r, "Failed to load instance", err)
		return
	}

	rec, err := h.Approver.Approve(r.Context(), actorFrom(r.Context()), *cfg, *inst)
	if err != nil {
		h.fail(w, r, "Approval failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toApprovalDTO(*rec))
}

// GetPayouts returns the persisted items of an approved instance.
func (h *Handler) GetPayouts(w http.ResponseWriter, r *http.Request) {
	key, err := keyFromPath(r)
	if err != nil {
		h.fail(w, r, "Invalid instance key", err)
		return
	}
	items, err := h.Store.ApprovedLineItems(r.Context(), actorFrom(r.Context()).RestaurantID, key.ScheduleID, key.BusinessDate)
	if err != nil {
		h.fail(w, r, "Failed to get payouts", err)
		return
	}
	writeJSON(w, http.StatusOK, PayoutsDTO{
		ScheduleID:   string(key.ScheduleID),
		BusinessDate: key.BusinessDate.String(),
		Items:        payout.SortForPresentation(items),
	})
}

// ExportPayouts streams the persisted items as an xlsx workbook.
func (h *Handler) ExportPayouts(w http.ResponseWriter, r *http.Request) {
	key, err := keyFromPath(r)
	if err != nil {
		h.fail(w, r, "Invalid instance key", err)
		return
	}
	items, err := h.Store.ApprovedLineItems(r.Context(), actorFrom(r.Context()).RestaurantID, key.ScheduleID, key.BusinessDate)
	if err != nil {
		h.fail(w, r, "Failed to get payouts", err)
		return
	}

	buf, filename, err := export.LineItems(key, items)
	if err != nil {
		h.fail(w, r, "Failed to export payouts", err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.Logger.Warn("write export failed", zap.Error(err))
	}
}

func (h *Handler) loadInstance(r *http.Request) (*payout.ScheduleConfig, *payout.ScheduleInstance, error) {
	key, err := keyFromPath(r)
	if err != nil {
		return nil, nil, err
	}
	ctx := r.Context()
	actor := actorFrom(ctx)

	cfg, err := h.Store.GetSchedule(ctx, actor.RestaurantID, key.ScheduleID)
	if err != nil {
		return nil, nil, err
	}
	inst, err := h.Store.GetInstance(ctx, actor.RestaurantID, key.ScheduleID, key.BusinessDate)
	if err != nil {
		return nil, nil, err
	}
	return cfg, inst, nil
}

func keyFromPath(r *http.Request) (payout.Key, error) {
	id := strings.TrimSpace(chi.URLParam(r, "scheduleID"))
	date, err := payout.ParseBusinessDate(chi.URLParam(r, "date"))
	if id == "" || err != nil {
		return payout.Key{}, fmt.Errorf("%w: schedule id and YYYY-MM-DD date required", payout.ErrMissingContext)
	}
	return payout.Key{ScheduleID: payout.ScheduleID(id), BusinessDate: date}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		_, resp.Code = classify(err)
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// fail maps a domain error to its status and writes it. Server-side
// failures are logged with the request id.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error(message,
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("code", code),
			zap.Error(err),
		)
	}
	writeError(w, status, message, err)
}

// errorClasses is checked in order. Step failures come first because a
// StepError also unwraps to the collaborator's own error.
var errorClasses = []struct {
	err    error
	status int
	code   string
}{
	{payout.ErrPersistenceFailure, http.StatusBadGateway, "persistence_failure"},
	{payout.ErrApprovalFailure, http.StatusBadGateway, "approval_failure"},
	{payout.ErrPercentageMismatch, http.StatusBadRequest, "percentage_mismatch"},
	{payout.ErrInvalidConfig, http.StatusBadRequest, "invalid_config"},
	{payout.ErrMalformedRecord, http.StatusBadRequest, "malformed_record"},
	{payout.ErrMissingContext, http.StatusBadRequest, "missing_context"},
	{payout.ErrScheduleNotFound, http.StatusNotFound, "schedule_not_found"},
	{payout.ErrInstanceNotFound, http.StatusNotFound, "instance_not_found"},
	{payout.ErrApprovalInFlight, http.StatusConflict, "approval_in_flight"},
	{payout.ErrScheduleLocked, http.StatusConflict, "schedule_locked"},
	{payout.ErrAlreadyApproved, http.StatusConflict, "already_approved"},
	{payout.ErrNotApproved, http.StatusConflict, "not_approved"},
	{export.ErrNoItems, http.StatusNotFound, "no_items"},
}

func classify(err error) (int, string) {
	for _, c := range errorClasses {
		if errors.Is(err, c.err) {
			return c.status, c.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// decodeBody decodes a JSON body. Decode errors unwrap to ErrInvalidConfig.
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", payout.ErrInvalidConfig, err)
	}
	return nil
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
