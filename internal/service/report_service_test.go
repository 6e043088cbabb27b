package service

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/RayenAkrich/EduLink-sub000/internal/models"
	appErrors "github.com/RayenAkrich/EduLink-sub000/pkg/errors"
	"github.com/RayenAkrich/EduLink-sub000/pkg/export"
	"github.com/RayenAkrich/EduLink-sub000/pkg/jobs"
	"github.com/RayenAkrich/EduLink-sub000/pkg/storage"
)

type mockReportStudents struct {
	students map[int64]*models.Student
	inClass  []models.StudentDetail
}

func (m *mockReportStudents) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReportStudents) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	return m.inClass, len(m.inClass), nil
}

func newReportFixture(t *testing.T) (*ReportService, *jobs.Queue) {
	t.Helper()
	parentID := int64(7)
	student := &models.Student{ID: 10, FullName: "Student Ten", ClassID: 1, ParentID: &parentID, Active: true}
	students := &mockReportStudents{
		students: map[int64]*models.Student{10: student},
		inClass:  []models.StudentDetail{{Student: *student}},
	}
	teachings := &mockTeachingDir{byClass: []models.Teaching{
		{ID: 100, Subject: "Math", ClassID: 1, Coefficient: 5},
	}}
	notes := &mockNoteRepo{byTerm: []models.NoteDetail{
		noteDetail(1, 10, 100, models.NoteControle, 1, 12, time.Now()),
		noteDetail(2, 10, 100, models.NoteSynthese, 1, 15, time.Now()),
	}}

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)

	svc := NewReportService(students, teachings, notes, export.NewPDFExporter(), export.NewCSVExporter(), store, signer, zap.NewNop())
	queue := jobs.NewQueue("reports", svc.HandleJob, jobs.QueueConfig{Workers: 1})
	svc.AttachQueue(queue)
	queue.Start(context.Background())
	t.Cleanup(queue.Stop)
	return svc, queue
}

func waitForStatus(t *testing.T, svc *ReportService, actor Actor, jobID string, want models.ReportJobStatus) (*models.ReportJob, *SignedDownload) {
	t.Helper()
	var job *models.ReportJob
	var download *SignedDownload
	require.Eventually(t, func() bool {
		var err error
		job, download, err = svc.Status(actor, jobID)
		return err == nil && job.Status == want
	}, 5*time.Second, 20*time.Millisecond)
	return job, download
}

func TestReportServiceBulletinLifecycle(t *testing.T) {
	svc, _ := newReportFixture(t)
	parent := Actor{ID: 7, Role: models.RoleParent}

	job, err := svc.RequestBulletin(context.Background(), parent, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, models.ReportBulletinPDF, job.Kind)

	completed, download := waitForStatus(t, svc, parent, job.ID, models.ReportStatusCompleted)
	assert.NotEmpty(t, completed.FilePath)
	require.NotNil(t, download)
	assert.Contains(t, download.URL, "/reports/download?token=")

	token := download.URL[len("/reports/download?token="):]
	file, relPath, err := svc.Download(token)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, completed.FilePath, relPath)

	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.NotEmpty(t, content)
}

func TestReportServiceClassCSVLifecycle(t *testing.T) {
	svc, _ := newReportFixture(t)
	teacher := Actor{ID: 5, Role: models.RoleTeacher}

	job, err := svc.RequestClassCSV(context.Background(), teacher, 1, 1)
	require.NoError(t, err)

	completed, download := waitForStatus(t, svc, teacher, job.ID, models.ReportStatusCompleted)
	require.NotNil(t, download)

	token := download.URL[len("/reports/download?token="):]
	file, _, err := svc.Download(token)
	require.NoError(t, err)
	defer file.Close()

	content, err := io.ReadAll(file)
	require.NoError(t, err)
	csv := string(content)
	assert.Contains(t, csv, "Student Ten")
	assert.Contains(t, csv, "14.00")
	_ = completed
}

func TestReportServiceRequestValidation(t *testing.T) {
	svc, _ := newReportFixture(t)
	admin := Actor{ID: 1, Role: models.RoleAdmin}

	_, err := svc.RequestBulletin(context.Background(), admin, 10, 0)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.RequestBulletin(context.Background(), admin, 404, 1)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.RequestBulletin(context.Background(), Actor{ID: 99, Role: models.RoleParent}, 10, 1)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReportServiceStatusOwnership(t *testing.T) {
	svc, _ := newReportFixture(t)
	parent := Actor{ID: 7, Role: models.RoleParent}

	job, err := svc.RequestBulletin(context.Background(), parent, 10, 1)
	require.NoError(t, err)

	_, _, err = svc.Status(Actor{ID: 8, Role: models.RoleParent}, job.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, _, err = svc.Status(Actor{ID: 1, Role: models.RoleAdmin}, job.ID)
	require.NoError(t, err)

	_, _, err = svc.Status(parent, "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReportServiceDownloadRejectsBadToken(t *testing.T) {
	svc, _ := newReportFixture(t)

	_, _, err := svc.Download("garbage")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
