package controller_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	whisperbatch "whisperqueue/internal/batch"
	"whisperqueue/internal/batch/fake"
	"whisperqueue/internal/controller"
	"whisperqueue/internal/domain"
	"whisperqueue/internal/store/sqlstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig is a fixed controller.Config for the §8 scenarios, which
// all quote N_max = 2.
type testConfig struct{ nMax int }

func (c testConfig) MaxProcessingJobs() int { return c.nMax }

type ControllerTestSuite struct {
	suite.Suite
	s    *sqlstore.SQLStore
	exec *fake.Executor
	ctrl *controller.Controller
}

func (s *ControllerTestSuite) SetupTest() {
	store, err := sqlstore.Open(filepath.Join(s.T().TempDir(), "controller.db"))
	s.Require().NoError(err)
	s.s = store
	s.exec = fake.New()
	s.ctrl = controller.New(store, s.exec, testConfig{nMax: 2}, discardLogger())
}

func (s *ControllerTestSuite) TearDownTest() {
	_ = s.s.Close()
}

func (s *ControllerTestSuite) seedQueued(jobID string, createdAt time.Time) {
	s.Require().NoError(s.s.Seed(context.Background(), domain.Job{
		JobID:     jobID,
		Status:    domain.StatusQueued,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
		AudioPath: "in/" + jobID,
	}))
}

func (s *ControllerTestSuite) seedProcessing(jobID string, startedAt time.Time) {
	job := domain.Job{
		JobID:            jobID,
		Status:           domain.StatusProcessing,
		CreatedAt:        startedAt,
		UpdatedAt:        startedAt,
		ProcessStartedAt: &startedAt,
	}
	s.Require().NoError(s.s.Seed(context.Background(), job))
}

// Scenario 1: happy path — j1, j2 claimed, j3 stays queued, C2 called twice.
func (s *ControllerTestSuite) TestHappyPathClaimsUpToFreeSlots() {
	base := time.Now().UTC().Add(-time.Hour)
	s.seedQueued("j1", base)
	s.seedQueued("j2", base.Add(time.Second))
	s.seedQueued("j3", base.Add(2*time.Second))

	claimed, err := s.ctrl.Dispatch(context.Background())
	s.Require().NoError(err)
	s.Require().Len(claimed, 2)
	s.Equal("j1", claimed[0].JobID)
	s.Equal("j2", claimed[1].JobID)

	j1, _ := s.s.Get(context.Background(), "j1")
	s.Equal(domain.StatusProcessing, j1.Status)
	s.NotNil(j1.ProcessStartedAt)

	j3, _ := s.s.Get(context.Background(), "j3")
	s.Equal(domain.StatusQueued, j3.Status)

	s.Equal(2, s.exec.Count())
}

// Scenario 2: admission ceiling — no free slots, C2 not called.
func (s *ControllerTestSuite) TestAdmissionCeilingBlocksClaim() {
	base := time.Now().UTC()
	s.seedProcessing("j1", base)
	s.seedProcessing("j2", base)
	s.seedQueued("j3", base)

	claimed, err := s.ctrl.Dispatch(context.Background())
	s.Require().NoError(err)
	s.Empty(claimed)

	j3, _ := s.s.Get(context.Background(), "j3")
	s.Equal(domain.StatusQueued, j3.Status)
	s.Equal(0, s.exec.Count())
}

// Scenario 4: failed submit rolls the job forward to FAILED, never back
// to QUEUED.
func (s *ControllerTestSuite) TestFailedSubmitRollsForwardToFailed() {
	s.exec.FailWith = assertErr{}
	s.seedQueued("j1", time.Now().UTC())

	claimed, err := s.ctrl.Dispatch(context.Background())
	s.Require().NoError(err)
	s.Require().Len(claimed, 1)

	j1, err := s.s.Get(context.Background(), "j1")
	s.Require().NoError(err)
	s.Equal(domain.StatusFailed, j1.Status)
	s.Require().NotNil(j1.ErrorMessage)
	s.Contains(*j1.ErrorMessage, "submit failed: ")
	s.NotEqual(domain.StatusQueued, j1.Status)
	s.NotEqual(domain.StatusProcessing, j1.Status)
}

// L2: dispatch with zero QUEUED jobs is a no-op.
func (s *ControllerTestSuite) TestDispatchNoOpWhenNothingQueued() {
	claimed, err := s.ctrl.Dispatch(context.Background())
	s.Require().NoError(err)
	s.Empty(claimed)
	s.Equal(0, s.exec.Count())
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerTestSuite))
}

type assertErr struct{}

func (assertErr) Error() string { return "gpu quota exceeded" }

var _ whisperbatch.Executor = (*fake.Executor)(nil)
