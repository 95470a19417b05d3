package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fleetops/internal/availability"
	"fleetops/internal/dateutil"
	"fleetops/internal/models"
)

// ConflictCheck re-validates a candidate against the store it is given.
// TryReserve runs it inside the write transaction so the decision and
// the write commit or abort together.
type ConflictCheck func(ctx context.Context, store availability.Store) (*availability.Result, error)

// Txn is the transaction-scoped surface handed to write callbacks:
// conflict reads plus the vehicle writes that must commit or abort
// together with the reservation.
type Txn interface {
	availability.Store
	GetVehicle(ctx context.Context, id string) (*models.Vehicle, error)
	UpdateVehicle(ctx context.Context, v *models.Vehicle) error
}

// TxApply runs dependent writes inside the reservation transaction.
// Returning an error rolls back the reservation write as well.
type TxApply func(ctx context.Context, tx Txn) error

// CreateReservation inserts a reservation, assigning an id when the
// caller did not provide one.
func (db *DB) CreateReservation(ctx context.Context, res *models.Reservation) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := saveReservation(ctx, tx, res, true); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// UpdateReservation rewrites a reservation and its day/resource rows.
func (db *DB) UpdateReservation(ctx context.Context, res *models.Reservation) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := saveReservation(ctx, tx, res, false); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// TryReserve writes the reservation and re-validates conflicts inside
// the same transaction, converting the advisory client-side check into
// an enforced invariant. On conflict the write is rolled back, the
// blocking result is returned together with ErrConflict. The apply
// callback, when given, runs dependent writes (the vehicle maintenance
// summary patch) over the same transaction, so a vehicle-side failure
// aborts the reservation write too.
func (db *DB) TryReserve(ctx context.Context, res *models.Reservation, check ConflictCheck, apply TxApply) (*availability.Result, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	store := &txStore{q: tx}

	isNew := res.ID == ""
	if err := saveReservation(ctx, tx, res, isNew); err != nil {
		return nil, err
	}

	result, err := check(ctx, store)
	if err != nil {
		return nil, err
	}
	if !result.Available {
		return result, ErrConflict
	}

	if apply != nil {
		if err := apply(ctx, store); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return result, nil
}

// DeleteReservation removes a reservation and its child rows. The apply
// callback runs in the same transaction, so clearing a linked vehicle
// summary commits or aborts together with the delete.
func (db *DB) DeleteReservation(ctx context.Context, id string, apply TxApply) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteReservationRows(ctx, tx, id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	if apply != nil {
		if err := apply(ctx, &txStore{q: tx}); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetReservation fetches one reservation by id.
func (db *DB) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	return getReservation(ctx, db.DB, id)
}

// ListReservations returns all reservations of a kind that reference
// the (normalized) resource key. Implements availability.Store.
func (db *DB) ListReservations(ctx context.Context, kind models.ReservationKind, resType models.ResourceType, resourceKey string) ([]models.Reservation, error) {
	return listReservations(ctx, db.DB, kind, resType, resourceKey)
}

// ListReservationsInRange returns reservations of any kind with at
// least one day inside [start, end], for schedule reports.
func (db *DB) ListReservationsInRange(ctx context.Context, start, end string) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT r.id, r.kind, r.status, r.window_mode, r.window_date, r.window_start, r.window_end,
		       r.window_dates, r.title, r.client, r.maint_type, r.vehicle_id, r.provider,
		       r.booking_ref, r.location, r.cost, r.notes, r.created_at, r.updated_at
		FROM reservations r
		JOIN reservation_days d ON d.reservation_id = r.id
		WHERE d.day >= ? AND d.day <= ?
		ORDER BY r.created_at`,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("list reservations in range: %w", err)
	}
	defer rows.Close()
	return scanReservations(rows)
}

// ResourceExists reports whether a key resolves to a known vehicle,
// equipment item or employee. Implements availability.Store.
func (db *DB) ResourceExists(ctx context.Context, resType models.ResourceType, resourceKey string) (bool, error) {
	return resourceExists(ctx, db.DB, resType, resourceKey)
}

// txStore adapts an open transaction to the Txn surface so conflict
// re-validation sees the uncommitted candidate rows and vehicle writes
// join the same transaction.
type txStore struct {
	q querier
}

func (s *txStore) ListReservations(ctx context.Context, kind models.ReservationKind, resType models.ResourceType, resourceKey string) ([]models.Reservation, error) {
	return listReservations(ctx, s.q, kind, resType, resourceKey)
}

func (s *txStore) ResourceExists(ctx context.Context, resType models.ResourceType, resourceKey string) (bool, error) {
	return resourceExists(ctx, s.q, resType, resourceKey)
}

func (s *txStore) GetVehicle(ctx context.Context, id string) (*models.Vehicle, error) {
	return getVehicleWhere(ctx, s.q, `id = ?`, id)
}

func (s *txStore) UpdateVehicle(ctx context.Context, v *models.Vehicle) error {
	return updateVehicle(ctx, s.q, v)
}

func saveReservation(ctx context.Context, q querier, res *models.Reservation, isNew bool) error {
	days, err := res.Days()
	if err != nil {
		return err
	}

	now := time.Now()
	if isNew {
		if res.ID == "" {
			res.ID = uuid.NewString()
		}
		res.CreatedAt = now
	}
	res.UpdatedAt = now

	var datesJSON []byte
	if len(res.Window.Dates) > 0 {
		datesJSON, err = json.Marshal(res.Window.Dates)
		if err != nil {
			return fmt.Errorf("marshal window dates: %w", err)
		}
	}

	if isNew {
		_, err = q.ExecContext(ctx, `
			INSERT INTO reservations (
				id, kind, status, window_mode, window_date, window_start, window_end, window_dates,
				title, client, maint_type, vehicle_id, provider, booking_ref, location, cost, notes,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.ID, res.Kind, res.Status, res.Window.Mode, res.Window.Date, res.Window.Start,
			res.Window.End, string(datesJSON), res.Title, res.Client, res.MaintType, res.VehicleID,
			res.Provider, res.BookingRef, res.Location, res.Cost, res.Notes, res.CreatedAt, res.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}
	} else {
		result, err := q.ExecContext(ctx, `
			UPDATE reservations SET
				kind = ?, status = ?, window_mode = ?, window_date = ?, window_start = ?,
				window_end = ?, window_dates = ?, title = ?, client = ?, maint_type = ?,
				vehicle_id = ?, provider = ?, booking_ref = ?, location = ?, cost = ?, notes = ?,
				updated_at = ?
			WHERE id = ?`,
			res.Kind, res.Status, res.Window.Mode, res.Window.Date, res.Window.Start,
			res.Window.End, string(datesJSON), res.Title, res.Client, res.MaintType,
			res.VehicleID, res.Provider, res.BookingRef, res.Location, res.Cost, res.Notes,
			res.UpdatedAt, res.ID,
		)
		if err != nil {
			return fmt.Errorf("update reservation: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		if err := deleteReservationRows(ctx, q, res.ID); err != nil {
			return err
		}
	}

	for _, day := range days.Sorted() {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO reservation_days (reservation_id, day) VALUES (?, ?)`,
			res.ID, day,
		); err != nil {
			return fmt.Errorf("insert reservation day: %w", err)
		}
	}

	for _, ref := range res.Resources {
		key := dateutil.NormalizeResourceKey(ref.Key)
		if key == "" {
			continue
		}
		if _, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO reservation_resources (reservation_id, resource_type, resource_key) VALUES (?, ?, ?)`,
			res.ID, ref.Type, key,
		); err != nil {
			return fmt.Errorf("insert reservation resource: %w", err)
		}
	}
	return nil
}

func deleteReservationRows(ctx context.Context, q querier, id string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM reservation_days WHERE reservation_id = ?`, id); err != nil {
		return fmt.Errorf("delete reservation days: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM reservation_resources WHERE reservation_id = ?`, id); err != nil {
		return fmt.Errorf("delete reservation resources: %w", err)
	}
	return nil
}

func getReservation(ctx context.Context, q querier, id string) (*models.Reservation, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, kind, status, window_mode, window_date, window_start, window_end, window_dates,
		       title, client, maint_type, vehicle_id, provider, booking_ref, location, cost, notes,
		       created_at, updated_at
		FROM reservations WHERE id = ?`, id)

	res, err := scanReservationRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}

	if err := loadResources(ctx, q, res); err != nil {
		return nil, err
	}
	return res, nil
}

func listReservations(ctx context.Context, q querier, kind models.ReservationKind, resType models.ResourceType, resourceKey string) ([]models.Reservation, error) {
	key := dateutil.NormalizeResourceKey(resourceKey)
	rows, err := q.QueryContext(ctx, `
		SELECT r.id, r.kind, r.status, r.window_mode, r.window_date, r.window_start, r.window_end,
		       r.window_dates, r.title, r.client, r.maint_type, r.vehicle_id, r.provider,
		       r.booking_ref, r.location, r.cost, r.notes, r.created_at, r.updated_at
		FROM reservations r
		JOIN reservation_resources rr ON rr.reservation_id = r.id
		WHERE r.kind = ? AND rr.resource_type = ? AND rr.resource_key = ?
		ORDER BY r.created_at`,
		kind, resType, key,
	)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	reservations, err := scanReservations(rows)
	if err != nil {
		return nil, err
	}
	for i := range reservations {
		if err := loadResources(ctx, q, &reservations[i]); err != nil {
			return nil, err
		}
	}
	return reservations, nil
}

func loadResources(ctx context.Context, q querier, res *models.Reservation) error {
	rows, err := q.QueryContext(ctx, `
		SELECT resource_type, resource_key FROM reservation_resources
		WHERE reservation_id = ? ORDER BY resource_type, resource_key`,
		res.ID,
	)
	if err != nil {
		return fmt.Errorf("load resources: %w", err)
	}
	defer rows.Close()

	res.Resources = nil
	for rows.Next() {
		var ref models.ResourceRef
		if err := rows.Scan(&ref.Type, &ref.Key); err != nil {
			return err
		}
		res.Resources = append(res.Resources, ref)
	}
	return rows.Err()
}

func resourceExists(ctx context.Context, q querier, resType models.ResourceType, resourceKey string) (bool, error) {
	key := dateutil.NormalizeResourceKey(resourceKey)

	var query string
	args := []any{key}
	switch resType {
	case models.ResourceVehicle:
		// Vehicles match on registration or display name.
		query = `SELECT COUNT(*) FROM vehicles
			WHERE registration_key = ? OR name_key = ?`
		args = append(args, key)
	case models.ResourceEmployee:
		query = `SELECT COUNT(*) FROM employees WHERE name_key = ?`
	case models.ResourceEquipment:
		query = `SELECT COUNT(*) FROM equipment WHERE name_key = ?`
	default:
		return false, nil
	}

	var count int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("resource exists: %w", err)
	}
	return count > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservationRow(row rowScanner) (*models.Reservation, error) {
	var res models.Reservation
	var windowDate, windowStart, windowEnd, windowDates sql.NullString
	var title, client, maintType, vehicleID, provider, bookingRef, location, cost, notes sql.NullString

	err := row.Scan(
		&res.ID, &res.Kind, &res.Status, &res.Window.Mode, &windowDate, &windowStart, &windowEnd,
		&windowDates, &title, &client, &maintType, &vehicleID, &provider,
		&bookingRef, &location, &cost, &notes, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	res.Window.Date = windowDate.String
	res.Window.Start = windowStart.String
	res.Window.End = windowEnd.String
	if windowDates.String != "" {
		if err := json.Unmarshal([]byte(windowDates.String), &res.Window.Dates); err != nil {
			return nil, fmt.Errorf("unmarshal window dates: %w", err)
		}
	}
	res.Title = title.String
	res.Client = client.String
	res.MaintType = models.MaintenanceType(maintType.String)
	res.VehicleID = vehicleID.String
	res.Provider = provider.String
	res.BookingRef = bookingRef.String
	res.Location = location.String
	res.Cost = cost.String
	res.Notes = notes.String
	return &res, nil
}

func scanReservations(rows *sql.Rows) ([]models.Reservation, error) {
	var reservations []models.Reservation
	for rows.Next() {
		res, err := scanReservationRow(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, *res)
	}
	return reservations, rows.Err()
}
