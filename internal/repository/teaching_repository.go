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

// TeachingRepository provides persistence for teaching assignments.
type TeachingRepository struct {
	db *sqlx.DB
}

// NewTeachingRepository creates the repository.
func NewTeachingRepository(db *sqlx.DB) *TeachingRepository {
	return &TeachingRepository{db: db}
}

// List returns teachings based on filters with total count.
func (r *TeachingRepository) List(ctx context.Context, filter models.TeachingFilter) ([]models.TeachingDetail, int, error) {
	baseQuery := `FROM teachings t
JOIN classes c ON c.id = t.class_id
JOIN users u ON u.id = t.teacher_id
WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.ClassID > 0 {
		conditions = append(conditions, fmt.Sprintf("t.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.TeacherID > 0 {
		conditions = append(conditions, fmt.Sprintf("t.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(t.subject) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Subject)+"%")
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

	listQuery := fmt.Sprintf(`SELECT t.id, t.subject, t.class_id, t.teacher_id, t.coefficient, t.created_at, t.updated_at,
c.name AS class_name, u.full_name AS teacher_name
%s ORDER BY t.subject ASC LIMIT %d OFFSET %d`, baseQuery, pageSize, offset)

	var teachings []models.TeachingDetail
	if err := r.db.SelectContext(ctx, &teachings, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list teachings: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count teachings: %w", err)
	}

	return teachings, total, nil
}

// FindByID returns a teaching by identifier.
func (r *TeachingRepository) FindByID(ctx context.Context, id int64) (*models.Teaching, error) {
	const query = `SELECT id, subject, class_id, teacher_id, coefficient, created_at, updated_at FROM teachings WHERE id = $1 LIMIT 1`
	var teaching models.Teaching
	if err := r.db.GetContext(ctx, &teaching, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find teaching by id: %w", err)
	}
	return &teaching, nil
}

// ListByClass returns all teachings for a class in subject order.
func (r *TeachingRepository) ListByClass(ctx context.Context, classID int64) ([]models.Teaching, error) {
	const query = `SELECT id, subject, class_id, teacher_id, coefficient, created_at, updated_at FROM teachings WHERE class_id = $1 ORDER BY subject ASC`
	var teachings []models.Teaching
	if err := r.db.SelectContext(ctx, &teachings, query, classID); err != nil {
		return nil, fmt.Errorf("list teachings by class: %w", err)
	}
	return teachings, nil
}

// TeacherHasClass reports whether the teacher has at least one teaching in the class.
func (r *TeachingRepository) TeacherHasClass(ctx context.Context, teacherID, classID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM teachings WHERE teacher_id = $1 AND class_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, teacherID, classID); err != nil {
		return false, fmt.Errorf("check teacher class: %w", err)
	}
	return exists, nil
}

// Create inserts a new teaching and fills in the generated identifier.
func (r *TeachingRepository) Create(ctx context.Context, teaching *models.Teaching) error {
	now := time.Now().UTC()
	if teaching.CreatedAt.IsZero() {
		teaching.CreatedAt = now
	}
	teaching.UpdatedAt = now
	const query = `INSERT INTO teachings (subject, class_id, teacher_id, coefficient, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	if err := r.db.GetContext(ctx, &teaching.ID, query, teaching.Subject, teaching.ClassID, teaching.TeacherID, teaching.Coefficient, teaching.CreatedAt, teaching.UpdatedAt); err != nil {
		return fmt.Errorf("create teaching: %w", err)
	}
	return nil
}

// Update modifies an existing teaching.
func (r *TeachingRepository) Update(ctx context.Context, teaching *models.Teaching) error {
	teaching.UpdatedAt = time.Now().UTC()
	const query = `UPDATE teachings SET subject = :subject, class_id = :class_id, teacher_id = :teacher_id, coefficient = :coefficient, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, teaching); err != nil {
		return fmt.Errorf("update teaching: %w", err)
	}
	return nil
}

// Delete removes a teaching permanently.
func (r *TeachingRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM teachings WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete teaching: %w", err)
	}
	return nil
}
