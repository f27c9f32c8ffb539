package reaper_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"whisperqueue/internal/domain"
	"whisperqueue/internal/reaper"
	"whisperqueue/internal/store/sqlstore"
)

// testConfig quotes the §8 scenario constants: T_process = 5, F_audio = 1.0.
type testConfig struct {
	processSecs int
	multiplier  float64
}

func (c testConfig) ProcessTimeoutSeconds() int      { return c.processSecs }
func (c testConfig) AudioTimeoutMultiplier() float64 { return c.multiplier }

type ReaperTestSuite struct {
	suite.Suite
	s *sqlstore.SQLStore
	r *reaper.Reaper
}

func (s *ReaperTestSuite) SetupTest() {
	store, err := sqlstore.Open(filepath.Join(s.T().TempDir(), "reaper.db"))
	s.Require().NoError(err)
	s.s = store
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.r = reaper.New(store, testConfig{processSecs: 5, multiplier: 1.0}, log)
}

func (s *ReaperTestSuite) TearDownTest() {
	_ = s.s.Close()
}

func (s *ReaperTestSuite) seed(job domain.Job) {
	s.Require().NoError(s.s.Seed(context.Background(), job))
}

// Scenario 5: short audio, elapsed past deadline → FAILED.
func (s *ReaperTestSuite) TestTimeoutFailsOverdueJob() {
	started := time.Now().UTC().Add(-30 * time.Second)
	durationMs := int64(1000)
	s.seed(domain.Job{
		JobID:            "j1",
		Status:           domain.StatusProcessing,
		CreatedAt:        started,
		UpdatedAt:        started,
		ProcessStartedAt: &started,
		AudioDurationMs:  &durationMs,
	})

	s.r.Tick(context.Background())

	j1, err := s.s.Get(context.Background(), "j1")
	s.Require().NoError(err)
	s.Equal(domain.StatusFailed, j1.Status)
	s.Require().NotNil(j1.ErrorMessage)
	s.Equal("processing timeout", *j1.ErrorMessage)
	s.NotNil(j1.ProcessEndedAt)
}

// Scenario 7: long audio dominates the deadline, elapsed still under it.
func (s *ReaperTestSuite) TestLongAudioNoTransitionBeforeDeadline() {
	started := time.Now().UTC().Add(-100 * time.Second)
	durationMs := int64(600_000)
	s.seed(domain.Job{
		JobID:            "j1",
		Status:           domain.StatusProcessing,
		CreatedAt:        started,
		UpdatedAt:        started,
		ProcessStartedAt: &started,
		AudioDurationMs:  &durationMs,
	})

	s.r.Tick(context.Background())

	j1, err := s.s.Get(context.Background(), "j1")
	s.Require().NoError(err)
	s.Equal(domain.StatusProcessing, j1.Status)
}

// Scenario 8 / P5: no process_started_at → never transitioned.
func (s *ReaperTestSuite) TestMissingStartAttestationNeverTransitioned() {
	now := time.Now().UTC()
	s.seed(domain.Job{
		JobID:     "j1",
		Status:    domain.StatusProcessing,
		CreatedAt: now.Add(-time.Hour),
		UpdatedAt: now.Add(-time.Hour),
	})

	s.r.Tick(context.Background())

	j1, err := s.s.Get(context.Background(), "j1")
	s.Require().NoError(err)
	s.Equal(domain.StatusProcessing, j1.Status)
}

func TestReaperSuite(t *testing.T) {
	suite.Run(t, new(ReaperTestSuite))
}
