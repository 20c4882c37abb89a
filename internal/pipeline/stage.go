package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Stage is one step of the per-measure pipeline
type Stage interface {
	// ID returns the unique identifier for this stage
	ID() string

	// Name returns the human-readable name for this stage
	Name() string

	// Run transforms the job in place
	Run(ctx context.Context, job *Job) error
}

// StageStatus represents the current status of a stage
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusActive    StageStatus = "active"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
	StageStatusSkipped   StageStatus = "skipped"
)

// SkipError is returned by a stage that does not apply to the job
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return "stage skipped: " + e.Reason
}

// Skip returns a SkipError with the given reason
func Skip(reason string) error {
	return &SkipError{Reason: reason}
}

// IsSkip reports whether err asks for the stage to be marked skipped
func IsSkip(err error) bool {
	var skip *SkipError
	return errors.As(err, &skip)
}

// StageState represents the runtime state of a stage
type StageState struct {
	mu        sync.RWMutex
	ID        string
	Name      string
	Status    StageStatus
	StartTime *time.Time
	EndTime   *time.Time
	Message   string
	Error     error
}

// NewStageState creates a pending stage state
func NewStageState(id, name string) *StageState {
	return &StageState{
		ID:     id,
		Name:   name,
		Status: StageStatusPending,
	}
}

// Start marks the stage as active and sets the start time
func (s *StageState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.StartTime = &now
	s.Status = StageStatusActive
}

// Complete marks the stage as completed and sets the end time
func (s *StageState) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StageStatusCompleted
}

// Fail marks the stage as failed with the given error
func (s *StageState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StageStatusFailed
	s.Error = err
}

// Skip marks the stage as skipped with the given reason
func (s *StageState) Skip(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StageStatusSkipped
	s.Message = reason
}

// GetStatus returns the current status
func (s *StageState) GetStatus() StageStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// Duration returns the duration of the stage execution
func (s *StageState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.StartTime == nil {
		return 0
	}
	if s.EndTime != nil {
		return s.EndTime.Sub(*s.StartTime)
	}
	return time.Since(*s.StartTime)
}

// Report returns a snapshot of the state
func (s *StageState) Report() StageReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := StageReport{
		ID:      s.ID,
		Name:    s.Name,
		Status:  s.Status,
		Message: s.Message,
	}
	if s.StartTime != nil && s.EndTime != nil {
		r.DurationMS = s.EndTime.Sub(*s.StartTime).Milliseconds()
	}
	if s.Error != nil {
		r.Error = s.Error.Error()
	}
	return r
}

// BaseStage provides the ID and Name of stage implementations
type BaseStage struct {
	id   string
	name string
}

// NewBaseStage creates a new base stage
func NewBaseStage(id, name string) BaseStage {
	return BaseStage{id: id, name: name}
}

// ID returns the stage ID
func (b *BaseStage) ID() string {
	return b.id
}

// Name returns the stage name
func (b *BaseStage) Name() string {
	return b.name
}
