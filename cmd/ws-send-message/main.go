// Package main implements the Lambda that forwards suggestion events from
// EventBridge to the WebSocket clients of the affected project.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"reqgraph/domain/events"
	"reqgraph/infrastructure/config"
	"reqgraph/infrastructure/di"
	"reqgraph/infrastructure/notifications"
	"reqgraph/pkg/observability"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
)

var (
	notifier *notifications.WebSocketNotifier
	logger   *zap.Logger
)

// forwarded lists the event types clients are told about
var forwarded = map[string]bool{
	events.TypeSuggestionItemFailed:  true,
	events.TypeSuggestionGroupFailed: true,
	events.TypeSuggestionsApplied:    true,
	events.TypeNodeCreated:           true,
	events.TypeEdgeCreated:           true,
	events.TypeNodeRolledBack:        true,
}

func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err = di.ProvideLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	if cfg.WebSocketURL == "" {
		log.Fatal("WEBSOCKET_ENDPOINT is required")
	}

	awsCfg, err := observability.LoadAWSConfig(context.Background(), cfg.AWSRegion, cfg.EnableTracing)
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}
	notifier = notifications.NewWebSocketNotifier(
		di.ProvideConnectionStore(cfg, dynamodb.NewFromConfig(awsCfg)),
		notifications.NewAPIGatewayClient(awsCfg, cfg.WebSocketURL),
		logger,
	)
}

// projectRef is the part of every event detail naming the project
type projectRef struct {
	ProjectID string `json:"project_id"`
}

func handler(ctx context.Context, event awsevents.CloudWatchEvent) error {
	if event.Source != events.Source || !forwarded[event.DetailType] {
		logger.Debug("Ignoring event",
			zap.String("source", event.Source),
			zap.String("detailType", event.DetailType),
		)
		return nil
	}

	var ref projectRef
	if err := json.Unmarshal(event.Detail, &ref); err != nil {
		return fmt.Errorf("failed to decode event detail: %w", err)
	}
	if ref.ProjectID == "" {
		logger.Warn("Event without project", zap.String("detailType", event.DetailType))
		return nil
	}

	delivered, err := notifier.Send(ctx, ref.ProjectID, notifications.Message{
		Type:      event.DetailType,
		Timestamp: event.Time.Unix(),
		Data:      event.Detail,
	})
	if err != nil {
		return err
	}

	logger.Info("Event forwarded",
		zap.String("projectID", ref.ProjectID),
		zap.String("detailType", event.DetailType),
		zap.Int("delivered", delivered),
	)
	return nil
}

func main() {
	lambda.Start(handler)
}
