package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// RoundTripSuite provides a fresh input directory and context for every
// test. Embed it in a suite that drives whole batch runs.
type RoundTripSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	inputDir  string
	startTime time.Time
}

// SetupSuite runs before all tests in the suite
func (s *RoundTripSuite) SetupSuite() {
	s.startTime = time.Now()
}

// TearDownSuite runs after all tests in the suite
func (s *RoundTripSuite) TearDownSuite() {
	s.T().Logf("round-trip suite completed in %v", time.Since(s.startTime))
}

// SetupTest creates the test's input directory.
func (s *RoundTripSuite) SetupTest() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 2*time.Minute)
	s.inputDir = s.T().TempDir()
}

// SetupSubTest gives every s.Run subtest its own input directory.
func (s *RoundTripSuite) SetupSubTest() {
	s.inputDir = s.T().TempDir()
}

// TearDownTest cancels the test context.
func (s *RoundTripSuite) TearDownTest() {
	s.cancel()
}

// Context returns the test context
func (s *RoundTripSuite) Context() context.Context {
	return s.ctx
}

// InputDir returns the test's input directory.
func (s *RoundTripSuite) InputDir() string {
	return s.inputDir
}

// Logger returns a logger writing to the current test's output.
func (s *RoundTripSuite) Logger() *zap.Logger {
	return zaptest.NewLogger(s.T())
}

// AddInput writes a file into the input directory.
func (s *RoundTripSuite) AddInput(name string, content []byte) string {
	path := filepath.Join(s.inputDir, name)
	require.NoError(s.T(), os.WriteFile(path, content, 0o600))
	return path
}

// Ledger reads the ledger named name from the input directory.
func (s *RoundTripSuite) Ledger(name string) (header []string, rows [][]string) {
	return ReadLedger(s.T(), filepath.Join(s.inputDir, name))
}

// IntegrationTest skips the calling test in -short mode.
func IntegrationTest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}
