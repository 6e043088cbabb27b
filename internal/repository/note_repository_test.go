package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RayenAkrich/EduLink-sub000/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func noteColumns() []string {
	return []string{"id", "student_id", "teaching_id", "type", "term", "value", "date", "created_at", "updated_at", "subject", "student_name"}
}

func TestNoteRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewNoteRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(noteColumns()).
		AddRow(1, 10, 100, "controle", 1, 14.5, now, now, now, "Math", "Student Ten")
	mock.ExpectQuery(regexp.QuoteMeta("n.student_id = $1 AND n.term = $2")).
		WithArgs(int64(10), 1).
		WillReturnRows(rows)

	notes, err := repo.List(context.Background(), models.NoteFilter{StudentID: 10, Term: 1})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Math", notes[0].Subject)
	assert.Equal(t, 14.5, notes[0].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoteRepositoryListByStudentTerm(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewNoteRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(noteColumns()).
		AddRow(1, 10, 100, "controle", 2, 12.0, now, now, now, "Math", "Student Ten").
		AddRow(2, 10, 100, "synthese", 2, 15.0, now, now, now, "Math", "Student Ten")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE n.student_id = $1 AND n.term = $2")).
		WithArgs(int64(10), 2).
		WillReturnRows(rows)

	notes, err := repo.ListByStudentTerm(context.Background(), 10, 2)
	require.NoError(t, err)
	assert.Len(t, notes, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoteRepositoryCreateReturnsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewNoteRepository(db)

	mock.ExpectQuery("INSERT INTO notes").
		WithArgs(int64(10), int64(100), "synthese", 1, 15.0, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	note := &models.Note{StudentID: 10, TeachingID: 100, Type: models.NoteSynthese, Term: 1, Value: 15, Date: time.Now()}
	require.NoError(t, repo.Create(context.Background(), note))
	assert.Equal(t, int64(42), note.ID)
	assert.False(t, note.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoteRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewNoteRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM notes WHERE id = $1")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}
