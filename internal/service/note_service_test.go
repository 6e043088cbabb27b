package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/RayenAkrich/EduLink-sub000/internal/models"
	appErrors "github.com/RayenAkrich/EduLink-sub000/pkg/errors"
)

func f(v float64) *float64 { return &v }

type mockNoteRepo struct {
	notes      map[int64]*models.Note
	listResult []models.NoteDetail
	byTerm     []models.NoteDetail
	created    []*models.Note
	deleted    []int64
}

func (m *mockNoteRepo) List(ctx context.Context, filter models.NoteFilter) ([]models.NoteDetail, error) {
	return m.listResult, nil
}

func (m *mockNoteRepo) ListByStudentTerm(ctx context.Context, studentID int64, term int) ([]models.NoteDetail, error) {
	return m.byTerm, nil
}

func (m *mockNoteRepo) FindByID(ctx context.Context, id int64) (*models.Note, error) {
	if n, ok := m.notes[id]; ok {
		cp := *n
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockNoteRepo) Create(ctx context.Context, note *models.Note) error {
	note.ID = int64(len(m.created) + 1)
	m.created = append(m.created, note)
	return nil
}

func (m *mockNoteRepo) Update(ctx context.Context, note *models.Note) error {
	if m.notes == nil {
		m.notes = make(map[int64]*models.Note)
	}
	cp := *note
	m.notes[note.ID] = &cp
	return nil
}

func (m *mockNoteRepo) Delete(ctx context.Context, id int64) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockTeachingDir struct {
	teachings map[int64]*models.Teaching
	byClass   []models.Teaching
}

func (m *mockTeachingDir) FindByID(ctx context.Context, id int64) (*models.Teaching, error) {
	if t, ok := m.teachings[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTeachingDir) ListByClass(ctx context.Context, classID int64) ([]models.Teaching, error) {
	return m.byClass, nil
}

type mockStudentDir struct {
	students map[int64]*models.Student
}

func (m *mockStudentDir) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type mockReportCache struct {
	entries  map[string]models.TermReport
	sets     []string
	deleted  []string
	getCalls int
}

func (m *mockReportCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.getCalls++
	if report, ok := m.entries[key]; ok {
		*(dest.(*models.TermReport)) = report
		return nil
	}
	return appErrors.ErrCacheMiss
}

func (m *mockReportCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.sets = append(m.sets, key)
	return nil
}

func (m *mockReportCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deleted = append(m.deleted, pattern)
	return nil
}

func TestComputeSubjectAverage(t *testing.T) {
	tests := []struct {
		name     string
		oral     *float64
		controle *float64
		synthese *float64
		want     *float64
	}{
		{"no scores", nil, nil, nil, nil},
		{"controle only", nil, f(12), nil, nil},
		{"synthese only", nil, nil, f(12), nil},
		{"oral without synthese", f(15), f(12), nil, nil},
		{"controle and synthese", nil, f(12), f(15), f(14)},
		{"all three", f(10), f(12), f(15), f(13)},
		{"rounded repeating", nil, f(11), f(12), f(11.67)},
		{"zero is a score", f(0), f(0), f(0), f(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeSubjectAverage(tt.oral, tt.controle, tt.synthese)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 0.001)
		})
	}
}

func TestComputeOverallAverage(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Nil(t, ComputeOverallAverage(nil))
	})

	t.Run("no computable subject", func(t *testing.T) {
		subjects := []models.SubjectAverage{
			{TeachingID: 1, Coefficient: 5},
			{TeachingID: 2, Coefficient: 3},
		}
		assert.Nil(t, ComputeOverallAverage(subjects))
	})

	t.Run("weighted, incomputable excluded", func(t *testing.T) {
		subjects := []models.SubjectAverage{
			{TeachingID: 1, Coefficient: 5, Average: f(12)},
			{TeachingID: 2, Coefficient: 3},
			{TeachingID: 3, Coefficient: 2, Average: f(9)},
		}
		// (12*5 + 9*2) / 7 = 78/7
		got := ComputeOverallAverage(subjects)
		require.NotNil(t, got)
		assert.InDelta(t, 11.14, *got, 0.001)
	})
}

func noteDetail(id, studentID, teachingID int64, noteType models.NoteType, term int, value float64, date time.Time) models.NoteDetail {
	return models.NoteDetail{Note: models.Note{
		ID:         id,
		StudentID:  studentID,
		TeachingID: teachingID,
		Type:       noteType,
		Term:       term,
		Value:      value,
		Date:       date,
	}}
}

func TestDedupeNotes(t *testing.T) {
	day1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 7)

	notes := []models.NoteDetail{
		noteDetail(1, 10, 100, models.NoteControle, 1, 8, day1),
		noteDetail(2, 10, 100, models.NoteControle, 1, 14, day2),
		noteDetail(3, 10, 100, models.NoteSynthese, 1, 11, day1),
		noteDetail(4, 10, 100, models.NoteSynthese, 1, 12, day1),
	}

	deduped := DedupeNotes(notes)
	require.Len(t, deduped, 2)
	// Later date wins for the controle, higher id wins the same-day tie.
	assert.Equal(t, 14.0, deduped[0].Value)
	assert.Equal(t, 12.0, deduped[1].Value)

	// Reversed input yields the same survivors.
	reversed := []models.NoteDetail{notes[3], notes[2], notes[1], notes[0]}
	again := DedupeNotes(reversed)
	require.Len(t, again, 2)
	values := []float64{again[0].Value, again[1].Value}
	assert.ElementsMatch(t, []float64{14, 12}, values)
}

func TestBuildTermReport(t *testing.T) {
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	teachings := []models.Teaching{
		{ID: 100, Subject: "Math", ClassID: 1, Coefficient: 5},
		{ID: 200, Subject: "French", ClassID: 1, Coefficient: 2},
		{ID: 300, Subject: "Sport", ClassID: 1, Coefficient: 1},
	}
	notes := []models.NoteDetail{
		noteDetail(1, 10, 100, models.NoteOral, 1, 10, day),
		noteDetail(2, 10, 100, models.NoteControle, 1, 12, day),
		noteDetail(3, 10, 100, models.NoteSynthese, 1, 15, day),
		noteDetail(4, 10, 200, models.NoteControle, 1, 11, day),
		noteDetail(5, 10, 200, models.NoteSynthese, 1, 12, day),
		// Noise: other term and other student never count.
		noteDetail(6, 10, 300, models.NoteSynthese, 2, 20, day),
		noteDetail(7, 99, 300, models.NoteControle, 1, 20, day),
	}

	report := BuildTermReport(10, 1, teachings, notes)
	require.Len(t, report.Subjects, 3)

	math := report.Subjects[0]
	require.NotNil(t, math.Average)
	assert.InDelta(t, 13.0, *math.Average, 0.001)

	french := report.Subjects[1]
	require.NotNil(t, french.Average)
	assert.InDelta(t, 11.67, *french.Average, 0.001)

	sport := report.Subjects[2]
	assert.Nil(t, sport.Average)

	// (13*5 + 11.67*2) / 7 = 88.34/7
	require.NotNil(t, report.OverallAverage)
	assert.InDelta(t, 12.62, *report.OverallAverage, 0.001)
}

func newNoteServiceFixture() (*NoteService, *mockNoteRepo, *mockTeachingDir, *mockStudentDir, *mockReportCache) {
	parentID := int64(7)
	repo := &mockNoteRepo{}
	teachings := &mockTeachingDir{teachings: map[int64]*models.Teaching{
		100: {ID: 100, Subject: "Math", ClassID: 1, TeacherID: 5, Coefficient: 5},
	}}
	students := &mockStudentDir{students: map[int64]*models.Student{
		10: {ID: 10, FullName: "Student Ten", ClassID: 1, ParentID: &parentID, Active: true},
	}}
	cache := &mockReportCache{}
	svc := NewNoteService(repo, teachings, students, cache, time.Minute, validator.New(), zap.NewNop())
	return svc, repo, teachings, students, cache
}

func TestNoteServiceCreate(t *testing.T) {
	svc, repo, _, _, cache := newNoteServiceFixture()

	note, err := svc.Create(context.Background(), Actor{ID: 5, Role: models.RoleTeacher}, CreateNoteRequest{
		StudentID:  10,
		TeachingID: 100,
		Type:       models.NoteControle,
		Term:       1,
		Value:      14.5,
		Date:       time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, 14.5, note.Value)
	assert.Len(t, repo.created, 1)
	assert.Equal(t, []string{"report:student:10:*"}, cache.deleted)
}

func TestNoteServiceCreateForeignTeaching(t *testing.T) {
	svc, repo, _, _, _ := newNoteServiceFixture()

	_, err := svc.Create(context.Background(), Actor{ID: 99, Role: models.RoleTeacher}, CreateNoteRequest{
		StudentID:  10,
		TeachingID: 100,
		Type:       models.NoteControle,
		Term:       1,
		Value:      14,
		Date:       time.Now(),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestNoteServiceCreateClassMismatch(t *testing.T) {
	svc, _, _, students, _ := newNoteServiceFixture()
	students.students[10].ClassID = 2

	_, err := svc.Create(context.Background(), Actor{ID: 5, Role: models.RoleTeacher}, CreateNoteRequest{
		StudentID:  10,
		TeachingID: 100,
		Type:       models.NoteSynthese,
		Term:       1,
		Value:      14,
		Date:       time.Now(),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestNoteServiceCreateRejectsUnknownType(t *testing.T) {
	svc, _, _, _, _ := newNoteServiceFixture()

	_, err := svc.Create(context.Background(), Actor{ID: 1, Role: models.RoleAdmin}, CreateNoteRequest{
		StudentID:  10,
		TeachingID: 100,
		Type:       "homework",
		Term:       1,
		Value:      14,
		Date:       time.Now(),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestNoteServiceTermReport(t *testing.T) {
	svc, repo, teachings, _, cache := newNoteServiceFixture()
	teachings.byClass = []models.Teaching{{ID: 100, Subject: "Math", ClassID: 1, Coefficient: 5}}
	repo.byTerm = []models.NoteDetail{
		noteDetail(1, 10, 100, models.NoteControle, 1, 12, time.Now()),
		noteDetail(2, 10, 100, models.NoteSynthese, 1, 15, time.Now()),
	}

	report, err := svc.TermReport(context.Background(), Actor{ID: 1, Role: models.RoleAdmin}, 10, 1)
	require.NoError(t, err)
	require.NotNil(t, report.OverallAverage)
	assert.InDelta(t, 14.0, *report.OverallAverage, 0.001)
	assert.Equal(t, []string{"report:student:10:term:1"}, cache.sets)
}

func TestNoteServiceTermReportServesCache(t *testing.T) {
	svc, _, _, _, cache := newNoteServiceFixture()
	cache.entries = map[string]models.TermReport{
		"report:student:10:term:2": {StudentID: 10, Term: 2, OverallAverage: f(16)},
	}

	report, err := svc.TermReport(context.Background(), Actor{ID: 7, Role: models.RoleParent}, 10, 2)
	require.NoError(t, err)
	require.NotNil(t, report.OverallAverage)
	assert.Equal(t, 16.0, *report.OverallAverage)
	assert.Empty(t, cache.sets)
}

func TestNoteServiceTermReportParentScope(t *testing.T) {
	svc, _, _, _, _ := newNoteServiceFixture()

	_, err := svc.TermReport(context.Background(), Actor{ID: 42, Role: models.RoleParent}, 10, 1)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.TermReport(context.Background(), Actor{ID: 1, Role: models.RoleAdmin}, 10, 4)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestNoteServiceDeleteInvalidatesReports(t *testing.T) {
	svc, repo, _, _, cache := newNoteServiceFixture()
	repo.notes = map[int64]*models.Note{
		3: {ID: 3, StudentID: 10, TeachingID: 100, Type: models.NoteOral, Term: 1, Value: 9},
	}

	err := svc.Delete(context.Background(), Actor{ID: 5, Role: models.RoleTeacher}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, repo.deleted)
	assert.Equal(t, []string{"report:student:10:*"}, cache.deleted)
}
