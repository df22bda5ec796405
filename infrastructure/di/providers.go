package di

import (
	"context"
	"fmt"

	"reqgraph/application/ports"
	"reqgraph/application/protocol"
	"reqgraph/application/services"
	domainservices "reqgraph/domain/services"
	"reqgraph/infrastructure/config"
	"reqgraph/infrastructure/locking"
	"reqgraph/infrastructure/messaging"
	"reqgraph/infrastructure/messaging/eventbridge"
	"reqgraph/infrastructure/metrics"
	"reqgraph/infrastructure/notifications"
	"reqgraph/infrastructure/persistence"
	"reqgraph/infrastructure/persistence/dynamodb"
	"reqgraph/infrastructure/persistence/memory"
	"reqgraph/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("environment", cfg.Environment)), nil
}

// ProvideTracerProvider starts the OTLP exporter when tracing is enabled
func ProvideTracerProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	if !cfg.EnableTracing || cfg.OTLPEndpoint == "" {
		return observability.NoopTracerProvider(), func() {}, nil
	}

	tp, err := observability.InitTracing(ctx, "reqgraph", cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return observability.LoadAWSConfig(ctx, cfg.AWSRegion, cfg.EnableTracing)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideGraphStore selects the node/edge store backend
func ProvideGraphStore(
	cfg *config.Config,
	client *awsdynamodb.Client,
	tp *observability.TracerProvider,
	logger *zap.Logger,
) ports.GraphStore {
	var store ports.GraphStore
	switch cfg.StoreBackend {
	case config.StoreDynamoDB:
		store = dynamodb.NewGraphStore(client, cfg.DynamoDBTable, cfg.IndexName, logger)
	default:
		logger.Warn("Using in-memory graph store; data is lost on restart")
		store = memory.NewGraphStore(logger)
	}

	if cfg.EnableTracing {
		store = persistence.TraceStore(store, tp.Tracer())
	}
	return store
}

// ProvideProjectLocker selects how suggestion runs are serialized per project
func ProvideProjectLocker(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) (ports.ProjectLocker, func(), error) {
	switch cfg.LockBackend {
	case config.LockRedis:
		locker, err := locking.NewRedisLocker(cfg.RedisURL, cfg.LockTTL, cfg.LockWait, logger)
		if err != nil {
			return nil, nil, err
		}
		return locker, func() { _ = locker.Close() }, nil
	case config.LockDynamoDB:
		return dynamodb.NewDistributedLock(client, cfg.DynamoDBTable, cfg.LockTTL, cfg.LockWait, logger), func() {}, nil
	case config.LockNone:
		return locking.NoopLocker{}, func() {}, nil
	default:
		return locking.NewMemoryLocker(), func() {}, nil
	}
}

// ProvideEventPublisher publishes to EventBridge when events are enabled and
// to the log otherwise
func ProvideEventPublisher(cfg *config.Config, client *awseventbridge.Client, logger *zap.Logger) ports.EventPublisher {
	if cfg.EnableEvents && cfg.EventBusName != "" {
		return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
	}
	return messaging.NewLogPublisher(logger)
}

// ProvideNotifier selects the failure side channel
func ProvideNotifier(
	cfg *config.Config,
	awsCfg aws.Config,
	client *awsdynamodb.Client,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) ports.Notifier {
	switch cfg.NotifierBackend {
	case config.NotifierEvents:
		return notifications.NewEventNotifier(publisher, logger)
	case config.NotifierWebSocket:
		return notifications.NewWebSocketNotifier(
			ProvideConnectionStore(cfg, client),
			notifications.NewAPIGatewayClient(awsCfg, cfg.WebSocketURL),
			logger,
		)
	default:
		return notifications.NewLogNotifier(logger)
	}
}

// ProvideConnectionStore creates the WebSocket connection registry
func ProvideConnectionStore(cfg *config.Config, client *awsdynamodb.Client) *notifications.ConnectionStore {
	table := cfg.ConnectionsTable
	if table == "" {
		table = cfg.DynamoDBTable
	}
	return notifications.NewConnectionStore(client, table, cfg.IndexName)
}

// ProvideMetrics sends run counters to CloudWatch when metrics are enabled
func ProvideMetrics(cfg *config.Config, client *awscloudwatch.Client, logger *zap.Logger) ports.MetricsRecorder {
	if !cfg.EnableMetrics {
		return metrics.NewLogMetrics(logger)
	}
	namespace := fmt.Sprintf("ReqGraph/%s", cfg.Environment)
	return metrics.NewMetrics(namespace, client, logger)
}

// ProvideLayoutEngine creates the layout engine from the domain settings
func ProvideLayoutEngine(cfg *config.Config) *domainservices.LayoutEngine {
	return domainservices.NewLayoutEngine(cfg.DomainConfig())
}

// ProvideParser creates the protocol parser
func ProvideParser(cfg *config.Config, logger *zap.Logger) *protocol.Parser {
	return protocol.NewParser(cfg.OptionsMinCount, logger)
}

// ProvideSuggestionProcessor creates the orchestrator with metrics attached
func ProvideSuggestionProcessor(
	resolver *services.NodeResolver,
	edges *services.EdgeSynthesizer,
	merger *services.MetadataMerger,
	store ports.GraphStore,
	locker ports.ProjectLocker,
	publisher ports.EventPublisher,
	notifier ports.Notifier,
	recorder ports.MetricsRecorder,
	logger *zap.Logger,
) *services.SuggestionProcessor {
	return services.NewSuggestionProcessor(
		resolver,
		edges,
		merger,
		store,
		locker,
		publisher,
		notifier,
		logger,
	).WithMetrics(recorder)
}
