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

// NoteRepository provides persistence for assessment scores.
type NoteRepository struct {
	db *sqlx.DB
}

// NewNoteRepository creates the repository.
func NewNoteRepository(db *sqlx.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

// List returns notes based on filters.
func (r *NoteRepository) List(ctx context.Context, filter models.NoteFilter) ([]models.NoteDetail, error) {
	baseQuery := `SELECT n.id, n.student_id, n.teaching_id, n.type, n.term, n.value, n.date, n.created_at, n.updated_at,
t.subject AS subject, s.full_name AS student_name
FROM notes n
JOIN teachings t ON t.id = n.teaching_id
JOIN students s ON s.id = n.student_id
WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.StudentID > 0 {
		conditions = append(conditions, fmt.Sprintf("n.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.TeachingID > 0 {
		conditions = append(conditions, fmt.Sprintf("n.teaching_id = $%d", len(args)+1))
		args = append(args, filter.TeachingID)
	}
	if filter.ClassID > 0 {
		conditions = append(conditions, fmt.Sprintf("t.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Term > 0 {
		conditions = append(conditions, fmt.Sprintf("n.term = $%d", len(args)+1))
		args = append(args, filter.Term)
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("n.type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}

	query := baseQuery
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY n.date DESC, n.id DESC"

	var notes []models.NoteDetail
	if err := r.db.SelectContext(ctx, &notes, query, args...); err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

// ListByStudentTerm returns all of a student's notes for a term joined with
// the teaching subject and coefficient. Duplicates are returned as stored;
// reconciliation happens at the aggregation layer.
func (r *NoteRepository) ListByStudentTerm(ctx context.Context, studentID int64, term int) ([]models.NoteDetail, error) {
	const query = `SELECT n.id, n.student_id, n.teaching_id, n.type, n.term, n.value, n.date, n.created_at, n.updated_at,
t.subject AS subject, s.full_name AS student_name
FROM notes n
JOIN teachings t ON t.id = n.teaching_id
JOIN students s ON s.id = n.student_id
WHERE n.student_id = $1 AND n.term = $2
ORDER BY n.teaching_id ASC, n.date DESC, n.id DESC`
	var notes []models.NoteDetail
	if err := r.db.SelectContext(ctx, &notes, query, studentID, term); err != nil {
		return nil, fmt.Errorf("list notes by student term: %w", err)
	}
	return notes, nil
}

// FindByID returns a note by identifier.
func (r *NoteRepository) FindByID(ctx context.Context, id int64) (*models.Note, error) {
	const query = `SELECT id, student_id, teaching_id, type, term, value, date, created_at, updated_at FROM notes WHERE id = $1 LIMIT 1`
	var note models.Note
	if err := r.db.GetContext(ctx, &note, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find note by id: %w", err)
	}
	return &note, nil
}

// Create inserts a new note and fills in the generated identifier.
func (r *NoteRepository) Create(ctx context.Context, note *models.Note) error {
	now := time.Now().UTC()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	note.UpdatedAt = now
	const query = `INSERT INTO notes (student_id, teaching_id, type, term, value, date, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	if err := r.db.GetContext(ctx, &note.ID, query, note.StudentID, note.TeachingID, note.Type, note.Term, note.Value, note.Date, note.CreatedAt, note.UpdatedAt); err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	return nil
}

// Update modifies an existing note.
func (r *NoteRepository) Update(ctx context.Context, note *models.Note) error {
	note.UpdatedAt = time.Now().UTC()
	const query = `UPDATE notes SET student_id = :student_id, teaching_id = :teaching_id, type = :type, term = :term, value = :value, date = :date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, note); err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	return nil
}

// Delete removes a note permanently.
func (r *NoteRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM notes WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}
