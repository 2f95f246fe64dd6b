package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"muadati/internal/models"
)

type equipmentRow struct {
	models.Equipment
	OwnerName  sql.NullString `db:"owner_name"`
	OwnerPhone sql.NullString `db:"owner_phone"`
	OwnerCity  sql.NullString `db:"owner_city"`
}

func (r *equipmentRow) toModel() *models.Equipment {
	eq := r.Equipment
	if r.OwnerName.Valid {
		eq.Owner = &models.UserSummary{
			ID:    eq.OwnerID,
			Name:  r.OwnerName.String,
			Phone: r.OwnerPhone.String,
			City:  r.OwnerCity.String,
		}
	}
	if eq.Images == nil {
		eq.Images = models.StringList{}
	}
	return &eq
}

const equipmentSelect = `SELECT e.id, e.owner_id, e.title, e.category, e.description, e.price_per_day,
       e.price_per_hour, e.city, e.images, e.phone_number, e.status, e.created_at, e.updated_at,
       u.name AS owner_name, u.phone AS owner_phone, u.city AS owner_city
FROM equipment e
LEFT JOIN users u ON u.id = e.owner_id`

func (db *DB) CreateEquipment(ctx context.Context, eq *models.Equipment) error {
	if eq.Status == "" {
		eq.Status = models.EquipmentAvailable
	}
	if eq.Images == nil {
		eq.Images = models.StringList{}
	}

	query := `INSERT INTO equipment (
                owner_id, title, category, description, price_per_day, price_per_hour,
                city, images, phone_number, status, created_at, updated_at
              ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		eq.OwnerID,
		eq.Title,
		eq.Category,
		eq.Description,
		eq.PricePerDay,
		eq.PricePerHour,
		eq.City,
		eq.Images,
		eq.PhoneNumber,
		eq.Status,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create equipment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	eq.ID = id
	eq.CreatedAt = now
	eq.UpdatedAt = now
	return nil
}

func (db *DB) GetEquipment(ctx context.Context, id int64) (*models.Equipment, error) {
	var row equipmentRow
	if err := db.GetContext(ctx, &row, equipmentSelect+` WHERE e.id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get equipment: %w", err)
	}
	return row.toModel(), nil
}

// ListEquipment returns listings matching the filter, newest first.
func (db *DB) ListEquipment(ctx context.Context, filter models.EquipmentFilter) ([]*models.Equipment, error) {
	var (
		where []string
		args  []any
	)
	if filter.City != "" {
		where = append(where, "e.city = ?")
		args = append(args, filter.City)
	}
	if filter.Category != "" {
		where = append(where, "e.category = ?")
		args = append(args, filter.Category)
	}
	if filter.Status != "" {
		where = append(where, "e.status = ?")
		args = append(args, filter.Status)
	}
	if filter.OwnerID != 0 {
		where = append(where, "e.owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		where = append(where, `(lower(e.title) LIKE ? ESCAPE '\' OR lower(e.description) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}

	query := equipmentSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY e.created_at DESC, e.id DESC"

	var rows []equipmentRow
	if err := db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list equipment: %w", err)
	}

	out := make([]*models.Equipment, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

// UpdateEquipment rewrites the descriptive fields and image list.
// Availability is owned by the request workflow and is left untouched.
func (db *DB) UpdateEquipment(ctx context.Context, eq *models.Equipment) error {
	query := `UPDATE equipment SET title = ?, category = ?, description = ?, price_per_day = ?,
                price_per_hour = ?, city = ?, images = ?, phone_number = ?, updated_at = ?
              WHERE id = ?`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		eq.Title,
		eq.Category,
		eq.Description,
		eq.PricePerDay,
		eq.PricePerHour,
		eq.City,
		eq.Images,
		eq.PhoneNumber,
		now,
		eq.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update equipment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	eq.UpdatedAt = now
	return nil
}

// DeleteEquipment removes a listing unless a pending or accepted request
// still references it. It returns the image references of the deleted row.
func (db *DB) DeleteEquipment(ctx context.Context, id int64) (models.StringList, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var images models.StringList
	if err := tx.GetContext(ctx, &images, `SELECT images FROM equipment WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load equipment in tx: %w", err)
	}

	var active int
	err = tx.GetContext(ctx, &active,
		`SELECT COUNT(*) FROM requests WHERE equipment_id = ? AND status IN (?, ?)`,
		id, models.RequestPending, models.RequestAccepted)
	if err != nil {
		return nil, fmt.Errorf("failed to count active requests in tx: %w", err)
	}
	if active > 0 {
		return nil, ErrEquipmentEngaged
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM equipment WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to delete equipment in tx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit delete: %w", err)
	}
	return images, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
