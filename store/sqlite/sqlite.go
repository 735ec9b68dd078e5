/*
Package sqlite provides a SQLite-backed implementation of the payout collaborator.

PURPOSE:
  Implements every persistence interface the engine consumes (Source,
  SettlementStore, ScheduleStore, InstanceStore) on SQLite. The same schema
  ports to PostgreSQL with minor dialect changes.

INTERFACES IMPLEMENTED:
  payout.Source:          fetch instances, save overrides, approve
  payout.SettlementStore: approved line items for the settlement job
  payout.ScheduleStore:   versioned schedule configs
  payout.InstanceStore:   ingestion of aggregated instances

OVERWRITE BY KEY:
  SaveOverrides replaces every line item for (restaurant, schedule, date)
  inside one transaction, so a retried approval never duplicates rows.

KEY TABLES:
  schedules:  Schedule configs (versioned, locked once approved)
  instances:  Aggregated instance figures plus contributor records
  line_items: Persisted payout rows, amounts as decimal TEXT
  approvals:  Audit of successful approve calls

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

USAGE:
  store, err := sqlite.New("./data/payout.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  approver := payout.NewApprover(store, logger)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - payout/store.go: Interface definitions
  - payout/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/payout"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to ":memory:" is its own database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping is used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schedules (
		restaurant_id TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		rule_kind TEXT NOT NULL,
		config_json TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		locked BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (restaurant_id, id)
	);

	CREATE TABLE IF NOT EXISTS instances (
		restaurant_id TEXT NOT NULL,
		schedule_id TEXT NOT NULL,
		business_date TEXT NOT NULL,
		total_sales REAL NOT NULL DEFAULT 0,
		net_sales REAL NOT NULL DEFAULT 0,
		total_tips REAL NOT NULL DEFAULT 0,
		total_gratuity REAL NOT NULL DEFAULT 0,
		order_count INTEGER NOT NULL DEFAULT 0,
		contributors_json TEXT NOT NULL,
		is_approved BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (restaurant_id, schedule_id, business_date)
	);

	CREATE INDEX IF NOT EXISTS idx_instances_restaurant_date
		ON instances(restaurant_id, business_date);

	CREATE TABLE IF NOT EXISTS line_items (
		restaurant_id TEXT NOT NULL,
		schedule_id TEXT NOT NULL,
		business_date TEXT NOT NULL,
		position INTEGER NOT NULL,
		employee_guid TEXT NOT NULL,
		employee_name TEXT NOT NULL,
		job_title TEXT NOT NULL,
		is_contributor TEXT NOT NULL,
		payout_receiver_id TEXT NOT NULL,
		payout_percentage TEXT NOT NULL,
		total_sales TEXT NOT NULL,
		net_sales TEXT NOT NULL,
		total_tips TEXT NOT NULL,
		total_gratuity TEXT NOT NULL,
		overall_tips TEXT NOT NULL,
		overall_gratuity TEXT NOT NULL,
		payout_tips TEXT NOT NULL,
		payout_gratuity TEXT NOT NULL,
		net_payout TEXT NOT NULL,
		saved_at TEXT NOT NULL,
		PRIMARY KEY (restaurant_id, schedule_id, business_date, position)
	);

	CREATE TABLE IF NOT EXISTS approvals (
		id TEXT PRIMARY KEY,
		restaurant_id TEXT NOT NULL,
		schedule_id TEXT NOT NULL,
		business_date TEXT NOT NULL,
		approved_by TEXT NOT NULL,
		approved_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_approvals_key
		ON approvals(restaurant_id, schedule_id, business_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// SOURCE (payout.Source interface)
// =============================================================================

// FetchScheduleInstances returns every instance of the restaurant, ordered
// by schedule then date.
func (s *Store) FetchScheduleInstances(ctx context.Context, restaurantID payout.RestaurantID, _ payout.UserID) ([]payout.ScheduleInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT schedule_id, business_date, total_sales, net_sales, total_tips, total_gratuity,
		       order_count, contributors_json, is_approved
		FROM instances
		WHERE restaurant_id = ?
		ORDER BY schedule_id, business_date
	`, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}
	defer rows.Close()

	var out []payout.ScheduleInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// SaveOverrides replaces the line items stored for the key.
func (s *Store) SaveOverrides(ctx context.Context, restaurantID payout.RestaurantID, scheduleID payout.ScheduleID, date payout.BusinessDate, items []payout.PayoutLineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM line_items WHERE restaurant_id = ? AND schedule_id = ? AND business_date = ?",
		restaurantID, scheduleID, date.String(),
	); err != nil {
		return fmt.Errorf("failed to clear line items: %w", err)
	}

	query := `
		INSERT INTO line_items
		(restaurant_id, schedule_id, business_date, position, employee_guid, employee_name, job_title,
		 is_contributor, payout_receiver_id, payout_percentage, total_sales, net_sales, total_tips,
		 total_gratuity, overall_tips, overall_gratuity, payout_tips, payout_gratuity, net_payout, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := s.now().UTC().Format(time.RFC3339)
	for i, it := range items {
		if _, err := tx.ExecContext(ctx, query,
			restaurantID, scheduleID, date.String(), i,
			it.EmployeeGUID, it.EmployeeName, it.JobTitle, string(it.IsContributor), it.PayoutReceiverID,
			it.PayoutPercentage.String(),
			it.TotalSales.StringFixed(2), it.NetSales.StringFixed(2),
			it.TotalTips.StringFixed(2), it.TotalGratuity.StringFixed(2),
			it.OverallTips.StringFixed(2), it.OverallGratuity.StringFixed(2),
			it.PayoutTips.StringFixed(2), it.PayoutGratuity.StringFixed(2),
			it.NetPayout.StringFixed(2),
			now,
		); err != nil {
			return fmt.Errorf("failed to insert line item %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Approve flags the instance approved, locks its schedule and records who
// approved it. Approving an approved instance is a successful no-op.
func (s *Store) Approve(ctx context.Context, restaurantID payout.RestaurantID, scheduleID payout.ScheduleID, date payout.BusinessDate, userID payout.UserID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	approved, err := instanceApproved(ctx, tx, restaurantID, scheduleID, date)
	if err != nil {
		return false, err
	}
	if approved {
		return true, nil
	}

	now := s.now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, `
		UPDATE instances SET is_approved = TRUE, updated_at = ?
		WHERE restaurant_id = ? AND schedule_id = ? AND business_date = ?
	`, now, restaurantID, scheduleID, date.String()); err != nil {
		return false, fmt.Errorf("failed to approve instance: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE schedules SET locked = TRUE WHERE restaurant_id = ? AND id = ?",
		restaurantID, scheduleID,
	); err != nil {
		return false, fmt.Errorf("failed to lock schedule: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO approvals (id, restaurant_id, schedule_id, business_date, approved_by, approved_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), restaurantID, scheduleID, date.String(), userID, now); err != nil {
		return false, fmt.Errorf("failed to record approval: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func instanceApproved(ctx context.Context, db execer, restaurantID payout.RestaurantID, scheduleID payout.ScheduleID, date payout.BusinessDate) (bool, error) {
	var approved bool
	err := db.QueryRowContext(ctx,
		"SELECT is_approved FROM instances WHERE restaurant_id = ? AND schedule_id = ? AND business_date = ?",
		restaurantID, scheduleID, date.String(),
	).Scan(&approved)
	if errors.Is(err, sql.ErrNoRows) {
		return false, payout.ErrInstanceNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to read instance: %w", err)
	}
	return approved, nil
}

// =============================================================================
// SETTLEMENT (payout.SettlementStore interface)
// =============================================================================

// ApprovedLineItems returns the persisted items of an approved key in the
// order they were computed.
func (s *Store) ApprovedLineItems(ctx context.Context, restaurantID payout.RestaurantID, scheduleID payout.ScheduleID, date payout.BusinessDate) ([]payout.PayoutLineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	approved, err := instanceApproved(ctx, s.db, restaurantID, scheduleID, date)
	if err != nil {
		return nil, err
	}
	if !approved {
		return nil, payout.ErrNotApproved
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_guid, employee_name, job_title, is_contributor, payout_receiver_id,
		       payout_percentage, total_sales, net_sales, total_tips, total_gratuity,
		       overall_tips, overall_gratuity, payout_tips, payout_gratuity, net_payout
		FROM line_items
		WHERE restaurant_id = ? AND schedule_id = ? AND business_date = ?
		ORDER BY position
	`, restaurantID, scheduleID, date.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query line items: %w", err)
	}
	defer rows.Close()

	var items []payout.PayoutLineItem
	for rows.Next() {
		it, err := scanLineItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanLineItem(rows *sql.Rows) (payout.PayoutLineItem, error) {
	var it payout.PayoutLineItem
	var guid, flag string
	var pct, sales, net, tips, grat, overallTips, overallGrat, payTips, payGrat, netPayout string
	if err := rows.Scan(&guid, &it.EmployeeName, &it.JobTitle, &flag, &it.PayoutReceiverID,
		&pct, &sales, &net, &tips, &grat, &overallTips, &overallGrat, &payTips, &payGrat, &netPayout,
	); err != nil {
		return it, fmt.Errorf("failed to scan line item: %w", err)
	}
	it.EmployeeGUID = payout.EmployeeGUID(guid)
	it.IsContributor = payout.ContributorFlag(flag)

	var err error
	fields := []struct {
		dst *decimal.Decimal
		src string
	}{
		{&it.PayoutPercentage, pct},
		{&it.TotalSales, sales}, {&it.NetSales, net},
		{&it.TotalTips, tips}, {&it.TotalGratuity, grat},
		{&it.OverallTips, overallTips}, {&it.OverallGratuity, overallGrat},
		{&it.PayoutTips, payTips}, {&it.PayoutGratuity, payGrat},
		{&it.NetPayout, netPayout},
	}
	for _, f := range fields {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return it, fmt.Errorf("corrupt amount %q for %s: %w", f.src, guid, err)
		}
	}
	return it, nil
}

// =============================================================================
// INSTANCES (payout.InstanceStore interface)
// =============================================================================

// SaveInstance upserts an ingested instance. Approved instances are frozen.
func (s *Store) SaveInstance(ctx context.Context, restaurantID payout.RestaurantID, inst payout.ScheduleInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	approved, err := instanceApproved(ctx, s.db, restaurantID, inst.ScheduleID, inst.BusinessDate)
	if err != nil && !errors.Is(err, payout.ErrInstanceNotFound) {
		return err
	}
	if approved {
		return payout.ErrAlreadyApproved
	}

	contributors, err := json.Marshal(inst.Contributors)
	if err != nil {
		return fmt.Errorf("failed to encode contributors: %w", err)
	}

	now := s.now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO instances
		(restaurant_id, schedule_id, business_date, total_sales, net_sales, total_tips, total_gratuity,
		 order_count, contributors_json, is_approved, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(restaurant_id, schedule_id, business_date) DO UPDATE SET
			total_sales = excluded.total_sales,
			net_sales = excluded.net_sales,
			total_tips = excluded.total_tips,
			total_gratuity = excluded.total_gratuity,
			order_count = excluded.order_count,
			contributors_json = excluded.contributors_json,
			is_approved = excluded.is_approved,
			updated_at = excluded.updated_at
	`,
		restaurantID, inst.ScheduleID, inst.BusinessDate.String(),
		inst.TotalSales, inst.NetSales, inst.TotalTips, inst.TotalGratuity, inst.OrderCount,
		string(contributors), inst.IsApproved, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save instance: %w", err)
	}
	return nil
}

// GetInstance retrieves one instance.
func (s *Store) GetInstance(ctx context.Context, restaurantID payout.RestaurantID, scheduleID payout.ScheduleID, date payout.BusinessDate) (*payout.ScheduleInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT schedule_id, business_date, total_sales, net_sales, total_tips, total_gratuity,
		       order_count, contributors_json, is_approved
		FROM instances
		WHERE restaurant_id = ? AND schedule_id = ? AND business_date = ?
	`, restaurantID, scheduleID, date.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query instance: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, payout.ErrInstanceNotFound
	}
	inst, err := scanInstance(rows)
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func scanInstance(rows *sql.Rows) (payout.ScheduleInstance, error) {
	var inst payout.ScheduleInstance
	var scheduleID, date, contributors string
	if err := rows.Scan(&scheduleID, &date, &inst.TotalSales, &inst.NetSales, &inst.TotalTips,
		&inst.TotalGratuity, &inst.OrderCount, &contributors, &inst.IsApproved,
	); err != nil {
		return inst, fmt.Errorf("failed to scan instance: %w", err)
	}
	inst.ScheduleID = payout.ScheduleID(scheduleID)
	bd, err := payout.ParseBusinessDate(date)
	if err != nil {
		return inst, fmt.Errorf("corrupt business date %q: %w", date, err)
	}
	inst.BusinessDate = bd
	if err := json.Unmarshal([]byte(contributors), &inst.Contributors); err != nil {
		return inst, fmt.Errorf("failed to decode contributors for %s: %w", inst.Key(), err)
	}
	return inst, nil
}

// =============================================================================
// SCHEDULES (payout.ScheduleStore interface)
// =============================================================================

// SaveSchedule upserts a schedule, bumping its version on update. The
// locked flag is owned by Approve and never cleared here.
func (s *Store) SaveSchedule(ctx context.Context, cfg payout.ScheduleConfig) (*payout.ScheduleConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schedule: %w", err)
	}

	query := `
		INSERT INTO schedules (restaurant_id, id, name, rule_kind, config_json, version, locked, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, FALSE, ?, ?)
		ON CONFLICT(restaurant_id, id) DO UPDATE SET
			name = excluded.name,
			rule_kind = excluded.rule_kind,
			config_json = excluded.config_json,
			version = schedules.version + 1,
			updated_at = excluded.updated_at
	`
	now := s.now().UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx, query,
		cfg.RestaurantID, cfg.ID, cfg.Name, string(cfg.RuleKind), string(configJSON), now, now,
	); err != nil {
		return nil, fmt.Errorf("failed to save schedule: %w", err)
	}

	return s.getSchedule(ctx, cfg.RestaurantID, cfg.ID)
}

// GetSchedule retrieves a schedule by ID.
func (s *Store) GetSchedule(ctx context.Context, restaurantID payout.RestaurantID, id payout.ScheduleID) (*payout.ScheduleConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getSchedule(ctx, restaurantID, id)
}

func (s *Store) getSchedule(ctx context.Context, restaurantID payout.RestaurantID, id payout.ScheduleID) (*payout.ScheduleConfig, error) {
	var configJSON, createdAt, updatedAt string
	var version int
	var locked bool
	err := s.db.QueryRowContext(ctx,
		"SELECT config_json, version, locked, created_at, updated_at FROM schedules WHERE restaurant_id = ? AND id = ?",
		restaurantID, id,
	).Scan(&configJSON, &version, &locked, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, payout.ErrScheduleNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeSchedule(configJSON, version, locked, createdAt, updatedAt)
}

// ListSchedules returns the restaurant's schedules ordered by ID.
func (s *Store) ListSchedules(ctx context.Context, restaurantID payout.RestaurantID) ([]payout.ScheduleConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT config_json, version, locked, created_at, updated_at FROM schedules WHERE restaurant_id = ? ORDER BY id",
		restaurantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []payout.ScheduleConfig
	for rows.Next() {
		var configJSON, createdAt, updatedAt string
		var version int
		var locked bool
		if err := rows.Scan(&configJSON, &version, &locked, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		cfg, err := decodeSchedule(configJSON, version, locked, createdAt, updatedAt)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *cfg)
	}
	return schedules, rows.Err()
}

// DeleteSchedule removes an unlocked schedule.
func (s *Store) DeleteSchedule(ctx context.Context, restaurantID payout.RestaurantID, id payout.ScheduleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var locked bool
	err := s.db.QueryRowContext(ctx,
		"SELECT locked FROM schedules WHERE restaurant_id = ? AND id = ?", restaurantID, id,
	).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return payout.ErrScheduleNotFound
	}
	if err != nil {
		return err
	}
	if locked {
		return payout.ErrScheduleLocked
	}
	_, err = s.db.ExecContext(ctx, "DELETE FROM schedules WHERE restaurant_id = ? AND id = ?", restaurantID, id)
	return err
}

func decodeSchedule(configJSON string, version int, locked bool, createdAt, updatedAt string) (*payout.ScheduleConfig, error) {
	var cfg payout.ScheduleConfig
	if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode schedule: %w", err)
	}
	cfg.Version = version
	cfg.Locked = locked
	cfg.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	cfg.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &cfg, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"approvals", "line_items", "instances", "schedules"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// ApprovalAudit lists who approved what for a restaurant, newest first.
func (s *Store) ApprovalAudit(ctx context.Context, restaurantID payout.RestaurantID) ([]AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, schedule_id, business_date, approved_by, approved_at
		FROM approvals WHERE restaurant_id = ?
		ORDER BY approved_at DESC, schedule_id
	`, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var approvedAt string
		if err := rows.Scan(&e.ID, &e.ScheduleID, &e.BusinessDate, &e.ApprovedBy, &approvedAt); err != nil {
			return nil, err
		}
		e.ApprovedAt, _ = time.Parse(time.RFC3339, approvedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// AuditEntry is one row of the approvals table.
type AuditEntry struct {
	ID           string
	ScheduleID   string
	BusinessDate string
	ApprovedBy   string
	ApprovedAt   time.Time
}

var (
	_ payout.Source          = (*Store)(nil)
	_ payout.SettlementStore = (*Store)(nil)
	_ payout.ScheduleStore   = (*Store)(nil)
	_ payout.InstanceStore   = (*Store)(nil)
)
