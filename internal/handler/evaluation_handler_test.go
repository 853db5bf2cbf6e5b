package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/evalia-go-api/internal/dto"
	"github.com/noah-isme/evalia-go-api/internal/service"
	"github.com/noah-isme/evalia-go-api/internal/utils"
)

type stubService struct {
	evaluation    dto.EvaluationResponse
	err           error
	rubricStarts  []uint
	gradingStarts []uint
}

func (s *stubService) Create(_ context.Context, req dto.CreateEvaluationRequest) (dto.EvaluationResponse, error) {
	if s.err != nil {
		return dto.EvaluationResponse{}, s.err
	}
	return dto.EvaluationResponse{ID: 1, Title: req.Title, Subject: req.Subject, MaxMarks: req.MaxMarks, Status: "not-started"}, nil
}

func (s *stubService) AddSubmission(_ context.Context, evaluationID uint, req dto.CreateSubmissionRequest) (dto.SubmissionResponse, error) {
	if s.err != nil {
		return dto.SubmissionResponse{}, s.err
	}
	return dto.SubmissionResponse{ID: 1, StudentID: req.StudentID, Status: "uploaded"}, nil
}

func (s *stubService) StartRubricGeneration(_ context.Context, evaluationID uint) error {
	if s.err != nil {
		return s.err
	}
	s.rubricStarts = append(s.rubricStarts, evaluationID)
	return nil
}

func (s *stubService) StartGrading(_ context.Context, evaluationID uint) error {
	if s.err != nil {
		return s.err
	}
	s.gradingStarts = append(s.gradingStarts, evaluationID)
	return nil
}

func (s *stubService) MaybeFinalize(context.Context, uint) (bool, error) {
	return false, s.err
}

func (s *stubService) Get(_ context.Context, evaluationID uint) (dto.EvaluationResponse, error) {
	if s.err != nil {
		return dto.EvaluationResponse{}, s.err
	}
	return s.evaluation, nil
}

func newTestApp(svc service.EvaluationService) *fiber.App {
	app := fiber.New()
	handler := NewEvaluationHandler(svc, zerolog.Nop())
	handler.Register(app.Group("/evaluations"))
	return app
}

func decodeResponse(t *testing.T, resp *http.Response) utils.APIResponse {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var envelope utils.APIResponse
	require.NoError(t, json.Unmarshal(body, &envelope))
	return envelope
}

func TestGetEvaluation(t *testing.T) {
	svc := &stubService{evaluation: dto.EvaluationResponse{ID: 3, Title: "Midterm", Status: "evaluating"}}
	app := newTestApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/evaluations/3", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	envelope := decodeResponse(t, resp)
	require.True(t, envelope.Success)
}

func TestGetEvaluationNotFound(t *testing.T) {
	svc := &stubService{err: service.ErrEvaluationNotFound}
	app := newTestApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/evaluations/3", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetEvaluationInvalidID(t *testing.T) {
	app := newTestApp(&stubService{})

	for _, id := range []string{"0", "abc", "-1"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/evaluations/"+id, nil))
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
}

func TestGenerateRubricsAccepted(t *testing.T) {
	svc := &stubService{}
	app := newTestApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/evaluations/5/rubrics", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, []uint{5}, svc.rubricStarts)
}

func TestGradeAccepted(t *testing.T) {
	svc := &stubService{}
	app := newTestApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/evaluations/5/grade", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, []uint{5}, svc.gradingStarts)
}

func TestCreateEvaluationValidation(t *testing.T) {
	app := newTestApp(&stubService{})

	payload, err := json.Marshal(dto.CreateEvaluationRequest{Title: "Midterm"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/evaluations/", bytes.NewReader(payload))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	envelope := decodeResponse(t, resp)
	require.False(t, envelope.Success)
}

func TestCreateEvaluation(t *testing.T) {
	app := newTestApp(&stubService{})

	payload, err := json.Marshal(dto.CreateEvaluationRequest{
		Title:             "Midterm",
		Subject:           "Biology",
		QuestionPaperPath: "/docs/paper.pdf",
		MaxMarks:          50,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/evaluations/", bytes.NewReader(payload))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestAddSubmissionValidation(t *testing.T) {
	app := newTestApp(&stubService{})

	req := httptest.NewRequest(http.MethodPost, "/evaluations/1/submissions", bytes.NewReader([]byte(`{"script_path": "/docs/s.pdf"}`)))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
