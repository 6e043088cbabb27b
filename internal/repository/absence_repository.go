package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/RayenAkrich/EduLink-sub000/internal/models"
)

// AbsenceRepository provides persistence for student absences.
type AbsenceRepository struct {
	db *sqlx.DB
}

// NewAbsenceRepository creates the repository.
func NewAbsenceRepository(db *sqlx.DB) *AbsenceRepository {
	return &AbsenceRepository{db: db}
}

// List returns absences based on filters with total count.
func (r *AbsenceRepository) List(ctx context.Context, filter models.AbsenceFilter) ([]models.AbsenceDetail, int, error) {
	baseQuery := `FROM absences a
JOIN students s ON s.id = a.student_id
WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.StudentID > 0 {
		conditions = append(conditions, fmt.Sprintf("a.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID > 0 {
		conditions = append(conditions, fmt.Sprintf("s.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Justified != nil {
		conditions = append(conditions, fmt.Sprintf("a.justified = $%d", len(args)+1))
		args = append(args, *filter.Justified)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("a.date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("a.date <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT a.id, a.student_id, a.date, a.justified, a.reason, a.created_at, a.updated_at,
s.full_name AS student_name, s.class_id AS class_id
%s ORDER BY a.date DESC, a.id DESC LIMIT %d OFFSET %d`, baseQuery, pageSize, offset)

	var absences []models.AbsenceDetail
	if err := r.db.SelectContext(ctx, &absences, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list absences: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count absences: %w", err)
	}

	return absences, total, nil
}

// FindByID returns an absence by identifier.
func (r *AbsenceRepository) FindByID(ctx context.Context, id int64) (*models.Absence, error) {
	const query = `SELECT id, student_id, date, justified, reason, created_at, updated_at FROM absences WHERE id = $1 LIMIT 1`
	var absence models.Absence
	if err := r.db.GetContext(ctx, &absence, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find absence by id: %w", err)
	}
	return &absence, nil
}

// Create inserts a new absence and fills in the generated identifier.
func (r *AbsenceRepository) Create(ctx context.Context, absence *models.Absence) error {
	now := time.Now().UTC()
	if absence.CreatedAt.IsZero() {
		absence.CreatedAt = now
	}
	absence.UpdatedAt = now
	const query = `INSERT INTO absences (student_id, date, justified, reason, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	if err := r.db.GetContext(ctx, &absence.ID, query, absence.StudentID, absence.Date, absence.Justified, absence.Reason, absence.CreatedAt, absence.UpdatedAt); err != nil {
		return fmt.Errorf("create absence: %w", err)
	}
	return nil
}

// Update modifies an existing absence.
func (r *AbsenceRepository) Update(ctx context.Context, absence *models.Absence) error {
	absence.UpdatedAt = time.Now().UTC()
	const query = `UPDATE absences SET student_id = :student_id, date = :date, justified = :justified, reason = :reason, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, absence); err != nil {
		return fmt.Errorf("update absence: %w", err)
	}
	return nil
}

// Delete removes an absence permanently.
func (r *AbsenceRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM absences WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete absence: %w", err)
	}
	return nil
}
