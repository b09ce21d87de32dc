package service

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/fluxtrace/internal/domain"
	"github.com/persistorai/fluxtrace/internal/models"
	"github.com/persistorai/fluxtrace/internal/store"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

// countingSnapshot wraps a MemoryGraph and counts Close calls.
type countingSnapshot struct {
	*store.MemoryGraph

	mu     sync.Mutex
	closed int
}

func (s *countingSnapshot) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++

	return nil
}

func (s *countingSnapshot) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

// mockSnapshots records how many snapshots were opened.
type mockSnapshots struct {
	mu     sync.Mutex
	opened int

	open func(ctx context.Context) (domain.GraphSnapshot, error)
}

func (m *mockSnapshots) OpenSnapshot(ctx context.Context) (domain.GraphSnapshot, error) {
	m.mu.Lock()
	m.opened++
	m.mu.Unlock()

	return m.open(ctx)
}

// mockImporter records calls and returns configured responses.
type mockImporter struct {
	calls int

	importGraph func(ctx context.Context, doc *models.GraphDocument) (*models.ImportResult, error)
}

func (m *mockImporter) ImportGraph(ctx context.Context, doc *models.GraphDocument) (*models.ImportResult, error) {
	m.calls++
	return m.importGraph(ctx, doc)
}
