package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fleetops/internal/dateutil"
	"fleetops/internal/models"
)

// CreateVehicle inserts a vehicle, assigning an id when missing.
func (db *DB) CreateVehicle(ctx context.Context, v *models.Vehicle) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	now := time.Now()
	v.CreatedAt = now
	v.UpdatedAt = now

	motJSON, serviceJSON, err := marshalSummaries(v)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO vehicles (
			id, registration, registration_key, name, name_key,
			mot_freq_weeks, service_freq_weeks,
			last_mot, next_mot, last_service, next_service,
			mot_summary, service_summary, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Registration, dateutil.NormalizeResourceKey(v.Registration),
		v.Name, dateutil.NormalizeResourceKey(v.Name),
		v.MOTFreqWeeks, v.ServiceFreqWeeks,
		v.LastMOT, v.NextMOT, v.LastService, v.NextService,
		motJSON, serviceJSON, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert vehicle: %w", err)
	}
	return nil
}

// UpdateVehicle rewrites the mutable vehicle fields, including the
// maintenance summary blocks. Implements maintenance.VehicleStore.
func (db *DB) UpdateVehicle(ctx context.Context, v *models.Vehicle) error {
	return updateVehicle(ctx, db.DB, v)
}

func updateVehicle(ctx context.Context, q querier, v *models.Vehicle) error {
	motJSON, serviceJSON, err := marshalSummaries(v)
	if err != nil {
		return err
	}
	v.UpdatedAt = time.Now()

	result, err := q.ExecContext(ctx, `
		UPDATE vehicles SET
			registration = ?, registration_key = ?, name = ?, name_key = ?,
			mot_freq_weeks = ?, service_freq_weeks = ?,
			last_mot = ?, next_mot = ?, last_service = ?, next_service = ?,
			mot_summary = ?, service_summary = ?, updated_at = ?
		WHERE id = ?`,
		v.Registration, dateutil.NormalizeResourceKey(v.Registration),
		v.Name, dateutil.NormalizeResourceKey(v.Name),
		v.MOTFreqWeeks, v.ServiceFreqWeeks,
		v.LastMOT, v.NextMOT, v.LastService, v.NextService,
		motJSON, serviceJSON, v.UpdatedAt, v.ID,
	)
	if err != nil {
		return fmt.Errorf("update vehicle: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetVehicle fetches a vehicle by id. Implements maintenance.VehicleStore.
func (db *DB) GetVehicle(ctx context.Context, id string) (*models.Vehicle, error) {
	return getVehicleWhere(ctx, db.DB, `id = ?`, id)
}

// GetVehicleByRegistration fetches a vehicle by normalized registration.
func (db *DB) GetVehicleByRegistration(ctx context.Context, registration string) (*models.Vehicle, error) {
	key := dateutil.NormalizeResourceKey(registration)
	return getVehicleWhere(ctx, db.DB, `registration_key = ?`, key)
}

// ListVehicles returns every vehicle, ordered by registration.
func (db *DB) ListVehicles(ctx context.Context) ([]models.Vehicle, error) {
	rows, err := db.QueryContext(ctx, vehicleSelect+` ORDER BY registration`)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []models.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, *v)
	}
	return vehicles, rows.Err()
}

// CreateEmployee inserts a crew member.
func (db *DB) CreateEmployee(ctx context.Context, e *models.Employee) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO employees (id, name, name_key, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Name, dateutil.NormalizeResourceKey(e.Name), e.Role, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert employee: %w", err)
	}
	return nil
}

// CreateEquipment inserts an equipment item.
func (db *DB) CreateEquipment(ctx context.Context, e *models.Equipment) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO equipment (id, name, name_key, created_at) VALUES (?, ?, ?, ?)`,
		e.ID, e.Name, dateutil.NormalizeResourceKey(e.Name), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert equipment: %w", err)
	}
	return nil
}

const vehicleSelect = `
	SELECT id, registration, name, mot_freq_weeks, service_freq_weeks,
	       last_mot, next_mot, last_service, next_service,
	       mot_summary, service_summary, created_at, updated_at
	FROM vehicles`

func getVehicleWhere(ctx context.Context, q querier, where string, arg any) (*models.Vehicle, error) {
	row := q.QueryRowContext(ctx, vehicleSelect+` WHERE `+where, arg)
	v, err := scanVehicle(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get vehicle: %w", err)
	}
	return v, nil
}

func scanVehicle(row rowScanner) (*models.Vehicle, error) {
	var v models.Vehicle
	var lastMOT, nextMOT, lastService, nextService sql.NullString
	var motJSON, serviceJSON string

	err := row.Scan(
		&v.ID, &v.Registration, &v.Name, &v.MOTFreqWeeks, &v.ServiceFreqWeeks,
		&lastMOT, &nextMOT, &lastService, &nextService,
		&motJSON, &serviceJSON, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	v.LastMOT = lastMOT.String
	v.NextMOT = nextMOT.String
	v.LastService = lastService.String
	v.NextService = nextService.String

	if motJSON != "" {
		if err := json.Unmarshal([]byte(motJSON), &v.MOTSummary); err != nil {
			return nil, fmt.Errorf("unmarshal mot summary: %w", err)
		}
	}
	if serviceJSON != "" {
		if err := json.Unmarshal([]byte(serviceJSON), &v.ServiceSummary); err != nil {
			return nil, fmt.Errorf("unmarshal service summary: %w", err)
		}
	}
	return &v, nil
}

func marshalSummaries(v *models.Vehicle) (string, string, error) {
	motJSON, err := json.Marshal(v.MOTSummary)
	if err != nil {
		return "", "", fmt.Errorf("marshal mot summary: %w", err)
	}
	serviceJSON, err := json.Marshal(v.ServiceSummary)
	if err != nil {
		return "", "", fmt.Errorf("marshal service summary: %w", err)
	}
	return string(motJSON), string(serviceJSON), nil
}
