package sagas

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SagaStep represents a single step in a saga
type SagaStep struct {
	Name       string
	Execute    func(ctx context.Context, data any) (any, error)
	Compensate func(ctx context.Context, data any) error
}

// SagaState represents the current state of a saga execution
type SagaState string

const (
	SagaStatePending      SagaState = "PENDING"
	SagaStateRunning      SagaState = "RUNNING"
	SagaStateCompleted    SagaState = "COMPLETED"
	SagaStateCompensating SagaState = "COMPENSATING"
	SagaStateCompensated  SagaState = "COMPENSATED"
	// SagaStateFailed means a step failed and at least one compensation
	// failed too, leaving partial writes behind.
	SagaStateFailed SagaState = "FAILED"
)

type compensation struct {
	name string
	fn   func(ctx context.Context) error
}

// StepError is returned when a step fails. Compensations lists the
// compensations that ran, in order; Failed holds the ones that errored.
type StepError struct {
	Saga          string
	Step          string
	Cause         error
	Compensations []string
	Failed        []*CompensationError
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("saga %s failed at step %s: %v", e.Saga, e.Step, e.Cause)
	if len(e.Failed) > 0 {
		parts := make([]string, len(e.Failed))
		for i, f := range e.Failed {
			parts[i] = f.Error()
		}
		msg += " (compensation failed: " + strings.Join(parts, "; ") + ")"
	}
	return msg
}

// Unwrap exposes the step's cause and any compensation failures
func (e *StepError) Unwrap() []error {
	errs := []error{e.Cause}
	for _, f := range e.Failed {
		errs = append(errs, f)
	}
	return errs
}

// Compensated reports whether every compensation succeeded
func (e *StepError) Compensated() bool {
	return len(e.Failed) == 0
}

// CompensationError reports a compensation that could not undo its step
type CompensationError struct {
	Name  string
	Cause error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensation %s: %v", e.Name, e.Cause)
}

func (e *CompensationError) Unwrap() error { return e.Cause }

// Saga runs steps in order and, when one fails, undoes the completed ones
// in reverse order. Steps are never retried.
type Saga struct {
	id            string
	name          string
	steps         []SagaStep
	compensations []compensation
	state         SagaState
	currentStep   int
	logger        *zap.Logger
	metadata      map[string]any
}

// NewSaga creates a new saga instance
func NewSaga(name string, logger *zap.Logger) *Saga {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Saga{
		id:       "saga_" + uuid.New().String(),
		name:     name,
		state:    SagaStatePending,
		logger:   logger,
		metadata: make(map[string]any),
	}
}

// AddStep adds a step to the saga
func (s *Saga) AddStep(step SagaStep) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// AddCompensation registers the undo of work completed before the saga
// started. It runs if any later step fails.
func (s *Saga) AddCompensation(name string, fn func(ctx context.Context) error) *Saga {
	s.compensations = append(s.compensations, compensation{name: name, fn: fn})
	return s
}

// SetMetadata sets metadata for the saga
func (s *Saga) SetMetadata(key string, value any) *Saga {
	s.metadata[key] = value
	return s
}

// Execute runs the saga. On failure it returns a *StepError.
func (s *Saga) Execute(ctx context.Context, initialData any) (any, error) {
	s.state = SagaStateRunning
	s.logger.Debug("Starting saga execution",
		zap.String("saga_id", s.id),
		zap.String("saga_name", s.name),
		zap.Int("total_steps", len(s.steps)),
		zap.Any("metadata", s.metadata),
	)

	data := initialData
	for i, step := range s.steps {
		s.currentStep = i

		result, err := step.Execute(ctx, data)
		if err != nil {
			s.logger.Warn("Saga step failed",
				zap.String("saga_id", s.id),
				zap.String("saga_name", s.name),
				zap.String("step_name", step.Name),
				zap.Error(err),
			)
			return nil, s.compensate(ctx, step.Name, err)
		}

		data = result
		if step.Compensate != nil {
			stepData := data
			compensate := step.Compensate
			s.compensations = append(s.compensations, compensation{
				name: step.Name,
				fn:   func(ctx context.Context) error { return compensate(ctx, stepData) },
			})
		}
	}

	s.state = SagaStateCompleted
	s.logger.Debug("Saga completed successfully",
		zap.String("saga_id", s.id),
		zap.String("saga_name", s.name),
	)

	return data, nil
}

// compensate runs compensation logic in reverse order. A failing
// compensation does not stop the remaining ones.
func (s *Saga) compensate(ctx context.Context, stepName string, cause error) *StepError {
	s.state = SagaStateCompensating
	stepErr := &StepError{Saga: s.name, Step: stepName, Cause: cause}

	for i := len(s.compensations) - 1; i >= 0; i-- {
		c := s.compensations[i]
		stepErr.Compensations = append(stepErr.Compensations, c.name)

		if err := c.fn(ctx); err != nil {
			s.logger.Error("Compensation failed",
				zap.String("saga_id", s.id),
				zap.String("compensation", c.name),
				zap.Error(err),
			)
			stepErr.Failed = append(stepErr.Failed, &CompensationError{Name: c.name, Cause: err})
			continue
		}

		s.logger.Info("Compensation applied",
			zap.String("saga_id", s.id),
			zap.String("compensation", c.name),
		)
	}

	if stepErr.Compensated() {
		s.state = SagaStateCompensated
	} else {
		s.state = SagaStateFailed
	}
	return stepErr
}

// GetState returns the current state of the saga
func (s *Saga) GetState() SagaState {
	return s.state
}

// GetID returns the saga ID
func (s *Saga) GetID() string {
	return s.id
}

// GetCurrentStep returns the current step index
func (s *Saga) GetCurrentStep() int {
	return s.currentStep
}

// AsStepError extracts a *StepError from an error chain
func AsStepError(err error) (*StepError, bool) {
	var stepErr *StepError
	ok := errors.As(err, &stepErr)
	return stepErr, ok
}

// SagaBuilder provides a fluent interface for building sagas
type SagaBuilder struct {
	saga *Saga
}

// NewSagaBuilder creates a new saga builder
func NewSagaBuilder(name string, logger *zap.Logger) *SagaBuilder {
	return &SagaBuilder{saga: NewSaga(name, logger)}
}

// WithStep adds a step to the saga
func (b *SagaBuilder) WithStep(name string, execute func(context.Context, any) (any, error)) *SagaBuilder {
	b.saga.AddStep(SagaStep{Name: name, Execute: execute})
	return b
}

// WithCompensableStep adds a step with compensation logic
func (b *SagaBuilder) WithCompensableStep(
	name string,
	execute func(context.Context, any) (any, error),
	compensate func(context.Context, any) error,
) *SagaBuilder {
	b.saga.AddStep(SagaStep{Name: name, Execute: execute, Compensate: compensate})
	return b
}

// WithCompensation registers the undo of work done before the saga
func (b *SagaBuilder) WithCompensation(name string, fn func(context.Context) error) *SagaBuilder {
	b.saga.AddCompensation(name, fn)
	return b
}

// WithMetadata adds metadata to the saga
func (b *SagaBuilder) WithMetadata(key string, value any) *SagaBuilder {
	b.saga.SetMetadata(key, value)
	return b
}

// Build returns the constructed saga
func (b *SagaBuilder) Build() *Saga {
	return b.saga
}
