package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
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

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// stubAnalyzer records every interaction with the inference service and
// serves canned responses.
type stubAnalyzer struct {
	mu        sync.Mutex
	uploads   []string
	deletes   []string
	requests  []ai.GenerateRequest
	response  string
	genErr    error
	uploadErr map[string]error
}

func (s *stubAnalyzer) Upload(_ context.Context, path, mimeType string) (ai.FileHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.uploadErr[path]; ok {
		return ai.FileHandle{}, err
	}

	name := "files/" + filepath.Base(path)
	s.uploads = append(s.uploads, name)
	return ai.FileHandle{Name: name, URI: "stub://" + name, MIMEType: mimeType}, nil
}

func (s *stubAnalyzer) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deletes = append(s.deletes, name)
	return nil
}

func (s *stubAnalyzer) Generate(_ context.Context, req ai.GenerateRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if s.genErr != nil {
		return "", s.genErr
	}
	return s.response, nil
}

func (s *stubAnalyzer) uploadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads)
}

func (s *stubAnalyzer) releasedAll(t *testing.T) {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()
	require.ElementsMatch(t, s.uploads, s.deletes, "every uploaded document must be released")
}

type stubStarter struct {
	started []uint
	err     error
}

func (s *stubStarter) StartGrading(_ context.Context, evaluationID uint) error {
	s.started = append(s.started, evaluationID)
	return s.err
}

type stubEnqueuer struct{}

func (stubEnqueuer) EnqueueRubricJob(context.Context, uint) error { return nil }

func (stubEnqueuer) EnqueueGradingJobs(context.Context, uint, []uint) error { return nil }
