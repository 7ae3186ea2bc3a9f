package testing

import (
	"sync"
	"time"
)

// MockNowService is a manually driven clock for tests
type MockNowService struct {
	mu  sync.Mutex
	now time.Time
}

// Now returns current value of the clock
func (svc *MockNowService) Now() time.Time {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.now
}

// SetNow moves the clock to a given point
func (svc *MockNowService) SetNow(val time.Time) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.now = val
}

// Advance moves the clock forward and returns the new value
func (svc *MockNowService) Advance(d time.Duration) time.Time {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.now = svc.now.Add(d)
	return svc.now
}

// NewMockNowService returns a clock stopped at a given point
func NewMockNowService(now time.Time) *MockNowService {
	return &MockNowService{now: now}
}
