package handler

import (
	"sync"
	"time"

	"github.com/gomcpgo/media_predict/pkg/predict"
	"github.com/gomcpgo/media_predict/pkg/types"
)

// PendingOperation is a started task the caller has not collected yet
type PendingOperation struct {
	Task      *predict.Task
	Source    string
	StartTime time.Time
}

// PendingOperationsManager manages in-progress tasks
type PendingOperationsManager struct {
	operations map[types.PredictionTaskUUID]*PendingOperation
	maxAge     time.Duration
	mu         sync.RWMutex
	done       chan struct{}
	closeOnce  sync.Once
}

// NewPendingOperationsManager creates a manager that forgets tasks older than maxAge
func NewPendingOperationsManager(maxAge time.Duration) *PendingOperationsManager {
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}
	pom := &PendingOperationsManager{
		operations: make(map[types.PredictionTaskUUID]*PendingOperation),
		maxAge:     maxAge,
		done:       make(chan struct{}),
	}
	// Start cleanup goroutine to remove expired operations
	go pom.cleanupLoop()
	return pom
}

// Add stores a new pending operation
func (pom *PendingOperationsManager) Add(op *PendingOperation) {
	pom.mu.Lock()
	defer pom.mu.Unlock()
	pom.operations[op.Task.PredictionTaskUUID] = op
}

// Get retrieves a pending operation by task UUID
func (pom *PendingOperationsManager) Get(taskUUID types.PredictionTaskUUID) (*PendingOperation, bool) {
	pom.mu.RLock()
	defer pom.mu.RUnlock()
	op, exists := pom.operations[taskUUID]
	return op, exists
}

// Remove deletes a pending operation
func (pom *PendingOperationsManager) Remove(taskUUID types.PredictionTaskUUID) {
	pom.mu.Lock()
	defer pom.mu.Unlock()
	delete(pom.operations, taskUUID)
}

// Len returns the number of pending operations
func (pom *PendingOperationsManager) Len() int {
	pom.mu.RLock()
	defer pom.mu.RUnlock()
	return len(pom.operations)
}

// Close stops the cleanup goroutine
func (pom *PendingOperationsManager) Close() {
	pom.closeOnce.Do(func() { close(pom.done) })
}

func (pom *PendingOperationsManager) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-pom.done:
			return
		case now := <-ticker.C:
			pom.expire(now)
		}
	}
}

// expire removes operations older than maxAge at now
func (pom *PendingOperationsManager) expire(now time.Time) int {
	pom.mu.Lock()
	defer pom.mu.Unlock()

	removed := 0
	for id, op := range pom.operations {
		if now.Sub(op.StartTime) > pom.maxAge {
			delete(pom.operations, id)
			removed++
		}
	}
	return removed
}
