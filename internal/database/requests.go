package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"muadati/internal/models"
)

type requestRow struct {
	ID            int64     `db:"id"`
	CustomerID    int64     `db:"customer_id"`
	EquipmentID   int64     `db:"equipment_id"`
	Lat           float64   `db:"lat"`
	Lng           float64   `db:"lng"`
	CustomerPhone string    `db:"customer_phone"`
	Notes         string    `db:"notes"`
	Status        string    `db:"status"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`

	CustomerName      sql.NullString `db:"customer_name"`
	CustomerUserPhone sql.NullString `db:"customer_user_phone"`
	CustomerCity      sql.NullString `db:"customer_city"`

	EquipmentOwnerID  sql.NullInt64     `db:"equipment_owner_id"`
	EquipmentTitle    sql.NullString    `db:"equipment_title"`
	EquipmentCategory sql.NullString    `db:"equipment_category"`
	EquipmentCity     sql.NullString    `db:"equipment_city"`
	EquipmentPrice    sql.NullFloat64   `db:"equipment_price"`
	EquipmentImages   models.StringList `db:"equipment_images"`
	EquipmentStatus   sql.NullString    `db:"equipment_status"`
}

func (r *requestRow) toModel() *models.Request {
	req := &models.Request{
		ID:            r.ID,
		CustomerID:    r.CustomerID,
		EquipmentID:   r.EquipmentID,
		Location:      models.Location{Lat: r.Lat, Lng: r.Lng},
		CustomerPhone: r.CustomerPhone,
		Notes:         r.Notes,
		Status:        models.RequestStatus(r.Status),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.CustomerName.Valid {
		req.Customer = &models.UserSummary{
			ID:    r.CustomerID,
			Name:  r.CustomerName.String,
			Phone: r.CustomerUserPhone.String,
			City:  r.CustomerCity.String,
		}
	}
	if r.EquipmentOwnerID.Valid {
		images := r.EquipmentImages
		if images == nil {
			images = models.StringList{}
		}
		req.Equipment = &models.EquipmentSummary{
			ID:          r.EquipmentID,
			OwnerID:     r.EquipmentOwnerID.Int64,
			Title:       r.EquipmentTitle.String,
			Category:    models.Category(r.EquipmentCategory.String),
			City:        r.EquipmentCity.String,
			PricePerDay: r.EquipmentPrice.Float64,
			Images:      images,
			Status:      models.EquipmentStatus(r.EquipmentStatus.String),
		}
	}
	return req
}

const requestSelect = `SELECT r.id, r.customer_id, r.equipment_id, r.lat, r.lng, r.customer_phone,
       r.notes, r.status, r.created_at, r.updated_at,
       u.name AS customer_name, u.phone AS customer_user_phone, u.city AS customer_city,
       e.owner_id AS equipment_owner_id, e.title AS equipment_title, e.category AS equipment_category,
       e.city AS equipment_city, e.price_per_day AS equipment_price, e.images AS equipment_images,
       e.status AS equipment_status
FROM requests r
LEFT JOIN users u ON u.id = r.customer_id
LEFT JOIN equipment e ON e.id = r.equipment_id`

// CreateRequestGuarded inserts a pending request only if the equipment exists
// and is available. The check and the insert share one immediate transaction.
func (db *DB) CreateRequestGuarded(ctx context.Context, req *models.Request) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var status models.EquipmentStatus
	err = tx.GetContext(ctx, &status, `SELECT status FROM equipment WHERE id = ?`, req.EquipmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to check equipment in tx: %w", err)
	}
	if status != models.EquipmentAvailable {
		return ErrEquipmentBusy
	}

	query := `INSERT INTO requests (
                customer_id, equipment_id, lat, lng, customer_phone, notes, status, created_at, updated_at
              ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, query,
		req.CustomerID,
		req.EquipmentID,
		req.Location.Lat,
		req.Location.Lng,
		req.CustomerPhone,
		req.Notes,
		models.RequestPending,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert request in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit request: %w", err)
	}

	req.ID = id
	req.Status = models.RequestPending
	req.CreatedAt = now
	req.UpdatedAt = now
	return nil
}

func (db *DB) GetRequest(ctx context.Context, id int64) (*models.Request, error) {
	var row requestRow
	if err := db.GetContext(ctx, &row, requestSelect+` WHERE r.id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return row.toModel(), nil
}

func (db *DB) ListRequestsByCustomer(ctx context.Context, customerID int64) ([]*models.Request, error) {
	return db.listRequests(ctx, requestSelect+` WHERE r.customer_id = ? ORDER BY r.created_at DESC, r.id DESC`, customerID)
}

// ListRequestsByOwner returns requests against any listing the owner holds.
func (db *DB) ListRequestsByOwner(ctx context.Context, ownerID int64) ([]*models.Request, error) {
	return db.listRequests(ctx, requestSelect+` WHERE e.owner_id = ? ORDER BY r.created_at DESC, r.id DESC`, ownerID)
}

func (db *DB) listRequests(ctx context.Context, query string, args ...any) ([]*models.Request, error) {
	var rows []requestRow
	if err := db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	out := make([]*models.Request, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

// RequestSnapshot is the state a transition decision observes inside the
// transaction that will apply it.
type RequestSnapshot struct {
	RequestID       int64
	CustomerID      int64
	EquipmentID     int64
	OwnerID         int64
	Status          models.RequestStatus
	EquipmentStatus models.EquipmentStatus
}

// TransitionFunc picks the target status, or rejects the change.
type TransitionFunc func(snap RequestSnapshot) (models.RequestStatus, error)

// TransitionResult describes what a committed transition changed.
type TransitionResult struct {
	From          models.RequestStatus
	To            models.RequestStatus
	EquipmentFrom models.EquipmentStatus
	EquipmentTo   models.EquipmentStatus
	Changed       bool
}

// TransitionRequest loads the request, asks decide for a target status and
// applies it together with the equipment availability sync in one
// transaction. Equipment is busy exactly when one of its requests is accepted.
func (db *DB) TransitionRequest(ctx context.Context, id int64, decide TransitionFunc) (*TransitionResult, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var row struct {
		CustomerID      int64          `db:"customer_id"`
		EquipmentID     int64          `db:"equipment_id"`
		Status          string         `db:"status"`
		OwnerID         sql.NullInt64  `db:"owner_id"`
		EquipmentStatus sql.NullString `db:"equipment_status"`
	}
	err = tx.GetContext(ctx, &row, `SELECT r.customer_id, r.equipment_id, r.status,
                e.owner_id AS owner_id, e.status AS equipment_status
            FROM requests r LEFT JOIN equipment e ON e.id = r.equipment_id
            WHERE r.id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load request in tx: %w", err)
	}

	snap := RequestSnapshot{
		RequestID:       id,
		CustomerID:      row.CustomerID,
		EquipmentID:     row.EquipmentID,
		OwnerID:         row.OwnerID.Int64,
		Status:          models.RequestStatus(row.Status),
		EquipmentStatus: models.EquipmentStatus(row.EquipmentStatus.String),
	}

	target, err := decide(snap)
	if err != nil {
		return nil, err
	}

	result := &TransitionResult{
		From:          snap.Status,
		To:            target,
		EquipmentFrom: snap.EquipmentStatus,
		EquipmentTo:   snap.EquipmentStatus,
	}
	if target == snap.Status {
		return result, nil
	}

	if target == models.RequestAccepted {
		var accepted int
		err = tx.GetContext(ctx, &accepted,
			`SELECT COUNT(*) FROM requests WHERE equipment_id = ? AND status = ? AND id <> ?`,
			snap.EquipmentID, models.RequestAccepted, id)
		if err != nil {
			return nil, fmt.Errorf("failed to check accepted requests in tx: %w", err)
		}
		if accepted > 0 {
			return nil, ErrEquipmentBusy
		}
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE requests SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		target, now, id, snap.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to update request status in tx: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrConcurrentModification
	}

	_, err = tx.ExecContext(ctx, `UPDATE equipment
            SET status = CASE WHEN EXISTS (
                    SELECT 1 FROM requests WHERE equipment_id = equipment.id AND status = ?
                ) THEN ? ELSE ? END,
                updated_at = ?
            WHERE id = ?`,
		models.RequestAccepted, models.EquipmentBusy, models.EquipmentAvailable, now, snap.EquipmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to sync equipment status in tx: %w", err)
	}

	if row.OwnerID.Valid {
		var eqStatus models.EquipmentStatus
		if err := tx.GetContext(ctx, &eqStatus, `SELECT status FROM equipment WHERE id = ?`, snap.EquipmentID); err != nil {
			return nil, fmt.Errorf("failed to read equipment status in tx: %w", err)
		}
		result.EquipmentTo = eqStatus
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}

	result.Changed = true
	return result, nil
}
