// Package di assembles the application from its configured backends.
package di

import (
	"reqgraph/application/ports"
	"reqgraph/application/protocol"
	"reqgraph/application/services"
	"reqgraph/infrastructure/config"
	"reqgraph/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	Tracing   *observability.TracerProvider
	Store     ports.GraphStore
	Locker    ports.ProjectLocker
	Publisher ports.EventPublisher
	Notifier  ports.Notifier
	Metrics   ports.MetricsRecorder
	Parser    *protocol.Parser
	Processor *services.SuggestionProcessor
	Turns     *services.TurnService
	Graphs    *services.GraphService
	Adjacent  *services.AdjacentNodeService
}
