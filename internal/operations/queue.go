// file: internal/operations/queue.go
// version: 1.0.0
// guid: 3a8d6f2c-7b4e-4d1a-9e5c-2f0b8a6d4e3c

// Package operations runs long library work (imports, sync passes) on a
// worker pool off the caller's goroutine.
package operations

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/laosuan/BookPlayer/internal/metrics"
)

// Priority levels for operations
const (
	PriorityLow    = 0
	PriorityNormal = 1
	PriorityHigh   = 2
)

// Operation statuses
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// OperationFunc represents an operation that can be executed
type OperationFunc func(ctx context.Context, progress ProgressReporter) error

// ProgressReporter allows operations to report their progress
type ProgressReporter interface {
	UpdateProgress(current, total int, message string) error
	IsCanceled() bool
}

// Status is the observable state of one operation.
type Status struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Status    string     `json:"status"`
	Current   int        `json:"current"`
	Total     int        `json:"total"`
	Message   string     `json:"message"`
	Error     string     `json:"error,omitempty"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// QueuedOperation represents an operation in the queue
type QueuedOperation struct {
	ID       string
	Type     string
	Priority int
	Func     OperationFunc
	Context  context.Context
	Cancel   context.CancelFunc
}

// ProgressListener receives progress updates
type ProgressListener func(operationID string, progress OperationProgress)

// OperationProgress represents the current state of an operation
type OperationProgress struct {
	Current int
	Total   int
	Message string
}

// Queue manages async operations with priority handling
type Queue struct {
	mu         sync.RWMutex
	operations map[string]*QueuedOperation
	statuses   map[string]*Status
	pending    chan *QueuedOperation
	workers    int
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	listeners  map[string][]ProgressListener
}

// NewQueue creates a new operation queue and starts its workers.
func NewQueue(workers int) *Queue {
	if workers <= 0 {
		workers = 2
	}

	ctx, cancel := context.WithCancel(context.Background())

	q := &Queue{
		operations: make(map[string]*QueuedOperation),
		statuses:   make(map[string]*Status),
		pending:    make(chan *QueuedOperation, 100),
		workers:    workers,
		ctx:        ctx,
		cancel:     cancel,
		listeners:  make(map[string][]ProgressListener),
	}

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}

	return q
}

// NewOperationID returns a sortable unique operation identifier.
func NewOperationID() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Enqueue adds a new operation to the queue
func (q *Queue) Enqueue(id, opType string, priority int, fn OperationFunc) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.operations[id]; exists {
		return fmt.Errorf("operation %s already exists", id)
	}

	ctx, cancel := context.WithCancel(q.ctx)

	op := &QueuedOperation{
		ID:       id,
		Type:     opType,
		Priority: priority,
		Func:     fn,
		Context:  ctx,
		Cancel:   cancel,
	}

	q.operations[id] = op
	q.statuses[id] = &Status{
		ID:      id,
		Type:    opType,
		Status:  StatusQueued,
		Message: "operation queued",
	}

	select {
	case q.pending <- op:
		log.Printf("Operation %s enqueued with priority %d", id, priority)
	default:
		log.Printf("Warning: pending queue full for operation %s", id)
	}

	return nil
}

// Cancel cancels an operation
func (q *Queue) Cancel(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	op, exists := q.operations[id]
	if !exists {
		return fmt.Errorf("operation %s not found", id)
	}

	op.Cancel()
	if st, ok := q.statuses[id]; ok {
		st.Status = StatusCanceled
		st.Message = "operation canceled by user"
	}

	log.Printf("Operation %s canceled", id)
	return nil
}

// GetStatus returns the current status of an operation, or nil when unknown.
func (q *Queue) GetStatus(id string) *Status {
	q.mu.RLock()
	defer q.mu.RUnlock()
	st, ok := q.statuses[id]
	if !ok {
		return nil
	}
	copied := *st
	return &copied
}

// AddListener adds a progress listener for an operation
func (q *Queue) AddListener(operationID string, listener ProgressListener) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.listeners[operationID] = append(q.listeners[operationID], listener)
}

// RemoveListeners removes all listeners for an operation
func (q *Queue) RemoveListeners(operationID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.listeners, operationID)
}

// notifyListeners sends progress updates to all listeners
func (q *Queue) notifyListeners(operationID string, progress OperationProgress) {
	q.mu.RLock()
	listeners := q.listeners[operationID]
	q.mu.RUnlock()

	for _, listener := range listeners {
		go listener(operationID, progress)
	}
}

func (q *Queue) setStatus(id, status, message string, errText string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	st, ok := q.statuses[id]
	if !ok {
		return
	}
	st.Status = status
	st.Message = message
	st.Error = errText
	now := time.Now().UTC()
	switch status {
	case StatusRunning:
		st.StartedAt = &now
	case StatusCompleted, StatusFailed, StatusCanceled:
		st.EndedAt = &now
	}
}

// worker processes operations from the queue
func (q *Queue) worker(id int) {
	defer q.wg.Done()

	log.Printf("Worker %d started", id)

	for {
		select {
		case <-q.ctx.Done():
			log.Printf("Worker %d stopped", id)
			return
		case op := <-q.pending:
			if op == nil {
				continue
			}

			log.Printf("Worker %d processing operation %s", id, op.ID)

			start := time.Now()
			metrics.IncOperationStarted(op.Type)
			q.setStatus(op.ID, StatusRunning, "operation started", "")

			reporter := &progressReporter{operationID: op.ID, queue: q}

			err := op.Func(op.Context, reporter)

			switch {
			case op.Context.Err() != nil:
				q.setStatus(op.ID, StatusCanceled, "operation canceled", "")
				metrics.IncOperationCanceled(op.Type)
				log.Printf("Operation %s was canceled", op.ID)
			case err != nil:
				q.setStatus(op.ID, StatusFailed, "operation failed", err.Error())
				metrics.IncOperationFailed(op.Type)
				log.Printf("Operation %s failed: %v", op.ID, err)
			default:
				q.setStatus(op.ID, StatusCompleted, "operation completed", "")
				metrics.IncOperationCompleted(op.Type)
				log.Printf("Operation %s completed successfully", op.ID)
			}

			metrics.ObserveOperationDuration(op.Type, time.Since(start))

			q.mu.Lock()
			delete(q.operations, op.ID)
			q.mu.Unlock()

			q.RemoveListeners(op.ID)
		}
	}
}

// Shutdown gracefully shuts down the queue
func (q *Queue) Shutdown(timeout time.Duration) error {
	log.Println("Shutting down operation queue...")

	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Operation queue shut down gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}

// progressReporter implements ProgressReporter
type progressReporter struct {
	operationID string
	queue       *Queue
	current     int
	total       int
}

func (r *progressReporter) UpdateProgress(current, total int, message string) error {
	r.current = current
	r.total = total

	r.queue.mu.Lock()
	if st, ok := r.queue.statuses[r.operationID]; ok {
		st.Current = current
		st.Total = total
		st.Message = message
	}
	r.queue.mu.Unlock()

	r.queue.notifyListeners(r.operationID, OperationProgress{
		Current: current,
		Total:   total,
		Message: message,
	})
	return nil
}

func (r *progressReporter) IsCanceled() bool {
	st := r.queue.GetStatus(r.operationID)
	return st != nil && st.Status == StatusCanceled
}

// ActiveOperation represents lightweight info about an in-flight operation.
type ActiveOperation struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// ActiveOperations returns a snapshot of currently queued/running operations.
func (q *Queue) ActiveOperations() []ActiveOperation {
	if q == nil {
		return []ActiveOperation{}
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	results := make([]ActiveOperation, 0, len(q.operations))
	for id, op := range q.operations {
		results = append(results, ActiveOperation{ID: id, Type: op.Type})
	}
	return results
}
