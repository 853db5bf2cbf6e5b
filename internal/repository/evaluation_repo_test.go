package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/evalia-go-api/internal/models"
	"github.com/noah-isme/evalia-go-api/pkg/ai"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Evaluation{}, &models.EvaluationSubmission{}))

	return db
}

func TestSaveRubric(t *testing.T) {
	db := openTestDB(t)
	repo := NewEvaluationRepository(db)

	evaluation := models.Evaluation{Title: "Midterm", MaxMarks: 50, Status: models.EvaluationStatusRubricsGenerating}
	require.NoError(t, db.Create(&evaluation).Error)

	rubric := ai.Rubric{
		TotalMarks: 50,
		Questions: []ai.RubricQuestion{
			{QuestionID: "1", QuestionText: "Define osmosis.", MaxMarks: 50, KeyPoints: []string{"water movement"}},
		},
	}
	require.NoError(t, repo.SaveRubric(context.Background(), evaluation.ID, rubric, models.EvaluationStatusUploadPending))

	stored, err := repo.GetByID(context.Background(), evaluation.ID)
	require.NoError(t, err)
	require.True(t, stored.RubricGenerated)
	require.Equal(t, models.EvaluationStatusUploadPending, stored.Status)
	require.NotNil(t, stored.Rubric)
	require.Equal(t, rubric, stored.Rubric.Data())
}

func TestFinalizeIfComplete(t *testing.T) {
	db := openTestDB(t)
	repo := NewEvaluationRepository(db)

	evaluation := models.Evaluation{Status: models.EvaluationStatusEvaluating}
	require.NoError(t, db.Create(&evaluation).Error)

	submissions := []models.EvaluationSubmission{
		{EvaluationID: evaluation.ID, StudentID: 1, Status: models.SubmissionStatusEvaluated},
		{EvaluationID: evaluation.ID, StudentID: 2, Status: models.SubmissionStatusUploaded},
		{EvaluationID: evaluation.ID, StudentID: 3, Status: models.SubmissionStatusAbsent},
	}
	for i := range submissions {
		require.NoError(t, db.Create(&submissions[i]).Error)
	}

	finalized, err := repo.FinalizeIfComplete(context.Background(), evaluation.ID)
	require.NoError(t, err)
	require.False(t, finalized)

	stored, err := repo.GetByID(context.Background(), evaluation.ID)
	require.NoError(t, err)
	require.Equal(t, models.EvaluationStatusEvaluating, stored.Status)

	require.NoError(t, db.Model(&submissions[1]).Update("status", models.SubmissionStatusEvaluated).Error)

	finalized, err = repo.FinalizeIfComplete(context.Background(), evaluation.ID)
	require.NoError(t, err)
	require.True(t, finalized)

	stored, err = repo.GetByID(context.Background(), evaluation.ID)
	require.NoError(t, err)
	require.Equal(t, models.EvaluationStatusEvaluated, stored.Status)

	// The flip is one-shot: redundant completion checks report false.
	finalized, err = repo.FinalizeIfComplete(context.Background(), evaluation.ID)
	require.NoError(t, err)
	require.False(t, finalized)
}

func TestFinalizeIfCompleteFailedSubmissionBlocks(t *testing.T) {
	db := openTestDB(t)
	repo := NewEvaluationRepository(db)

	evaluation := models.Evaluation{Status: models.EvaluationStatusEvaluating}
	require.NoError(t, db.Create(&evaluation).Error)
	require.NoError(t, db.Create(&models.EvaluationSubmission{
		EvaluationID: evaluation.ID,
		StudentID:    1,
		Status:       models.SubmissionStatusFailed,
	}).Error)

	// Failed is not terminal: a human retries or skips it first.
	finalized, err := repo.FinalizeIfComplete(context.Background(), evaluation.ID)
	require.NoError(t, err)
	require.False(t, finalized)
}

func TestCountPending(t *testing.T) {
	db := openTestDB(t)
	repo := NewSubmissionRepository(db)

	evaluation := models.Evaluation{Status: models.EvaluationStatusEvaluating}
	require.NoError(t, db.Create(&evaluation).Error)

	for _, status := range []string{
		models.SubmissionStatusEvaluated,
		models.SubmissionStatusSkipped,
		models.SubmissionStatusAbsent,
		models.SubmissionStatusUploaded,
		models.SubmissionStatusFailed,
		models.SubmissionStatusNotUploaded,
	} {
		require.NoError(t, db.Create(&models.EvaluationSubmission{
			EvaluationID: evaluation.ID,
			StudentID:    1,
			Status:       status,
		}).Error)
	}

	pending, err := repo.CountPending(context.Background(), evaluation.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, pending)
}

func TestGetWithSubmissions(t *testing.T) {
	db := openTestDB(t)
	repo := NewEvaluationRepository(db)

	evaluation := models.Evaluation{Title: "Midterm", Status: models.EvaluationStatusEvaluating}
	require.NoError(t, db.Create(&evaluation).Error)
	for student := uint(1); student <= 3; student++ {
		require.NoError(t, db.Create(&models.EvaluationSubmission{
			EvaluationID: evaluation.ID,
			StudentID:    student,
			Status:       models.SubmissionStatusUploaded,
		}).Error)
	}

	stored, err := repo.GetWithSubmissions(context.Background(), evaluation.ID)
	require.NoError(t, err)
	require.Len(t, stored.Submissions, 3)
}

func TestSaveResult(t *testing.T) {
	db := openTestDB(t)
	repo := NewSubmissionRepository(db)

	evaluation := models.Evaluation{Status: models.EvaluationStatusEvaluating}
	require.NoError(t, db.Create(&evaluation).Error)
	submission := models.EvaluationSubmission{
		EvaluationID: evaluation.ID,
		StudentID:    1,
		Status:       models.SubmissionStatusUploaded,
	}
	require.NoError(t, db.Create(&submission).Error)

	result := ai.GradingResult{
		TotalAwarded:  18,
		TotalPossible: 25,
		Questions: []ai.QuestionGrade{
			{QuestionID: "1", MarksPossible: 25, MarksAwarded: 18, Feedback: "Solid work.", Confidence: 90},
		},
	}
	require.NoError(t, repo.SaveResult(context.Background(), submission.ID, result, 18, "Solid work."))

	stored, err := repo.GetByID(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusEvaluated, stored.Status)
	require.NotNil(t, stored.TotalMark)
	require.Equal(t, 18, *stored.TotalMark)
	require.Equal(t, "Solid work.", stored.Feedback)
	require.NotNil(t, stored.Result)
	require.Equal(t, result, stored.Result.Data())
}
