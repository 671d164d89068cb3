package board

import (
	"fmt"
	"sync"

	"github.com/tyneline/dispatch/core/schedule"
)

// MockFeed is a BoardFeed used in tests.
type MockFeed struct {
	Assignments []schedule.Assignment
	Runs        []schedule.Report
	Fail        bool
	mu          sync.Mutex
}

// NewMockFeed creates a new MockFeed.
func NewMockFeed() *MockFeed {
	return &MockFeed{}
}

// PublishAssignment records the assignment or returns an error if configured
// to fail.
func (m *MockFeed) PublishAssignment(a schedule.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return fmt.Errorf("publish failed")
	}
	m.Assignments = append(m.Assignments, a)
	return nil
}

// PublishRun records the run report or returns an error if configured to fail.
func (m *MockFeed) PublishRun(r schedule.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return fmt.Errorf("publish failed")
	}
	m.Runs = append(m.Runs, r)
	return nil
}
