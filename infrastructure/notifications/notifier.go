// Package notifications delivers suggestion failures to the user through the
// configured side channel: the log, the event bus or open WebSocket
// connections.
package notifications

import (
	"context"
	"time"

	"reqgraph/application/ports"
	"reqgraph/domain/categories"
	"reqgraph/domain/events"
	"reqgraph/domain/suggestions"
	pkgerrors "reqgraph/pkg/errors"

	"go.uber.org/zap"
)

// ItemFailedEvent builds the failure event for one item
func ItemFailedEvent(projectID string, category categories.Category, position int, item suggestions.Item, err error) events.SuggestionItemFailed {
	return events.NewSuggestionItemFailed(
		projectID,
		string(category),
		item.Title,
		position,
		pkgerrors.Kind(err),
		err.Error(),
		time.Now(),
	)
}

// GroupFailedEvent builds the failure event for a rejected group
func GroupFailedEvent(projectID string, group suggestions.Group, err error) events.SuggestionGroupFailed {
	return events.NewSuggestionGroupFailed(
		projectID,
		string(group.Category),
		pkgerrors.Kind(err),
		err.Error(),
		time.Now(),
	)
}

// LogNotifier reports failures in the service log only
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new log notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// ItemFailed implements ports.Notifier
func (n *LogNotifier) ItemFailed(ctx context.Context, projectID string, category categories.Category, position int, item suggestions.Item, err error) {
	n.logger.Warn("Suggestion could not be applied",
		zap.String("projectID", projectID),
		zap.String("category", string(category)),
		zap.Int("position", position),
		zap.String("title", item.Title),
		zap.String("kind", pkgerrors.Kind(err)),
		zap.Error(err),
	)
}

// GroupFailed implements ports.Notifier
func (n *LogNotifier) GroupFailed(ctx context.Context, projectID string, group suggestions.Group, err error) {
	n.logger.Warn("Suggestion group could not be applied",
		zap.String("projectID", projectID),
		zap.String("category", string(group.Category)),
		zap.Int("items", len(group.Items)),
		zap.String("kind", pkgerrors.Kind(err)),
		zap.Error(err),
	)
}

// EventNotifier publishes failures as domain events so that downstream
// consumers (the WebSocket forwarder) can tell the user.
type EventNotifier struct {
	publisher ports.EventPublisher
	logger    *zap.Logger
}

// NewEventNotifier creates a new event notifier
func NewEventNotifier(publisher ports.EventPublisher, logger *zap.Logger) *EventNotifier {
	return &EventNotifier{publisher: publisher, logger: logger}
}

// ItemFailed implements ports.Notifier
func (n *EventNotifier) ItemFailed(ctx context.Context, projectID string, category categories.Category, position int, item suggestions.Item, err error) {
	n.publish(ctx, ItemFailedEvent(projectID, category, position, item, err))
}

// GroupFailed implements ports.Notifier
func (n *EventNotifier) GroupFailed(ctx context.Context, projectID string, group suggestions.Group, err error) {
	n.publish(ctx, GroupFailedEvent(projectID, group, err))
}

func (n *EventNotifier) publish(ctx context.Context, event events.DomainEvent) {
	if err := n.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		n.logger.Error("Failed to publish failure notification",
			zap.String("eventType", event.GetEventType()),
			zap.String("projectID", event.GetAggregateID()),
			zap.Error(err),
		)
	}
}
