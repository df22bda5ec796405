// Package mocks holds testify mocks of the application ports
package mocks

import (
	"context"
	"sync"

	"reqgraph/application/ports"
	"reqgraph/domain/categories"
	"reqgraph/domain/events"
	"reqgraph/domain/suggestions"

	"github.com/stretchr/testify/mock"
)

// MockEventPublisher records published events and returns configured errors
type MockEventPublisher struct {
	mock.Mock

	mu        sync.Mutex
	published []events.DomainEvent
}

func (m *MockEventPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	m.mu.Lock()
	m.published = append(m.published, event)
	m.mu.Unlock()
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	m.mu.Lock()
	m.published = append(m.published, batch...)
	m.mu.Unlock()
	args := m.Called(ctx, batch)
	return args.Error(0)
}

// EventTypes returns the types of every event seen, in order
func (m *MockEventPublisher) EventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, len(m.published))
	for i, e := range m.published {
		types[i] = e.GetEventType()
	}
	return types
}

// MockNotifier records failure notifications
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) ItemFailed(ctx context.Context, projectID string, category categories.Category, position int, item suggestions.Item, err error) {
	m.Called(ctx, projectID, category, position, item, err)
}

func (m *MockNotifier) GroupFailed(ctx context.Context, projectID string, group suggestions.Group, err error) {
	m.Called(ctx, projectID, group, err)
}

// MockProjectLocker hands out locks or configured errors
type MockProjectLocker struct {
	mock.Mock
}

func (m *MockProjectLocker) Lock(ctx context.Context, projectID string) (func(), error) {
	args := m.Called(ctx, projectID)
	if fn, ok := args.Get(0).(func()); ok {
		return fn, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockMetricsRecorder captures run metrics
type MockMetricsRecorder struct {
	mock.Mock
}

func (m *MockMetricsRecorder) RecordSuggestionRun(ctx context.Context, run ports.RunMetrics) {
	m.Called(ctx, run)
}

var (
	_ ports.EventPublisher  = (*MockEventPublisher)(nil)
	_ ports.Notifier        = (*MockNotifier)(nil)
	_ ports.ProjectLocker   = (*MockProjectLocker)(nil)
	_ ports.MetricsRecorder = (*MockMetricsRecorder)(nil)
)
