package memory

import (
	"context"
	"sync"

	interfaces "github.com/sheikh-saqib/payments-reconciler/internal/interfaces"
	"github.com/sheikh-saqib/payments-reconciler/internal/models"
)

// MemoryRunStore keeps run reports in process memory. Reports are lost on exit.
type MemoryRunStore struct {
	mu   sync.Mutex
	runs []models.RunReport
}

func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{
		runs: make([]models.RunReport, 0),
	}
}

func (m *MemoryRunStore) SaveRun(ctx context.Context, report models.RunReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs = append(m.runs, report)
	return nil
}

// ListRuns returns up to limit reports, newest first. limit <= 0 returns all.
func (m *MemoryRunStore) ListRuns(ctx context.Context, limit int) ([]models.RunReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.runs)
	if limit > 0 && limit < n {
		n = limit
	}
	result := make([]models.RunReport, 0, n)
	for i := len(m.runs) - 1; i >= 0 && len(result) < n; i-- {
		result = append(result, m.runs[i])
	}
	return result, nil
}

// Compile-time check: ensure MemoryRunStore implements RunStore interface
var _ interfaces.RunStore = (*MemoryRunStore)(nil)
