//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"reqgraph/application/services"
	"reqgraph/infrastructure/config"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideTracerProvider,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideGraphStore,
	ProvideProjectLocker,
	ProvideEventPublisher,
	ProvideNotifier,
	ProvideMetrics,
	ProvideLayoutEngine,
	ProvideParser,
	services.NewNodeResolver,
	services.NewEdgeSynthesizer,
	services.NewMetadataMerger,
	ProvideSuggestionProcessor,
	services.NewTurnService,
	services.NewGraphService,
	services.NewAdjacentNodeService,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
