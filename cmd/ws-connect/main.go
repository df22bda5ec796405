// Package main implements the WebSocket $connect and $disconnect Lambda.
// Clients subscribe to one project with the projectId query parameter.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"reqgraph/infrastructure/config"
	"reqgraph/infrastructure/di"
	"reqgraph/infrastructure/notifications"
	"reqgraph/pkg/observability"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
)

var (
	connections *notifications.ConnectionStore
	logger      *zap.Logger
)

func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err = di.ProvideLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	awsCfg, err := observability.LoadAWSConfig(context.Background(), cfg.AWSRegion, cfg.EnableTracing)
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}
	connections = di.ProvideConnectionStore(cfg, dynamodb.NewFromConfig(awsCfg))
}

func respond(status int, body any) events.APIGatewayProxyResponse {
	data, _ := json.Marshal(body)
	return events.APIGatewayProxyResponse{StatusCode: status, Body: string(data)}
}

func handler(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connectionID := request.RequestContext.ConnectionID

	switch request.RequestContext.RouteKey {
	case "$disconnect":
		if err := connections.Delete(ctx, connectionID); err != nil {
			logger.Warn("Failed to remove connection", zap.String("connectionID", connectionID), zap.Error(err))
		}
		return respond(http.StatusOK, map[string]string{"status": "disconnected"}), nil

	case "$connect":
		projectID := request.QueryStringParameters["projectId"]
		if projectID == "" {
			return respond(http.StatusBadRequest, map[string]string{"error": "projectId is required"}), nil
		}

		conn := notifications.Connection{
			ConnectionID: connectionID,
			ProjectID:    projectID,
			Endpoint:     fmt.Sprintf("%s/%s", request.RequestContext.DomainName, request.RequestContext.Stage),
			ConnectedAt:  time.Now(),
		}
		if err := connections.Save(ctx, conn); err != nil {
			logger.Error("Failed to store connection", zap.String("connectionID", connectionID), zap.Error(err))
			return respond(http.StatusInternalServerError, map[string]string{"error": "internal server error"}), nil
		}

		logger.Info("WebSocket connection established",
			zap.String("connectionID", connectionID),
			zap.String("projectID", projectID),
		)
		return respond(http.StatusOK, map[string]any{
			"type":         "connection_established",
			"connectionId": connectionID,
			"projectId":    projectID,
			"timestamp":    time.Now().Unix(),
		}), nil
	}

	return respond(http.StatusBadRequest, map[string]string{"error": "unsupported route"}), nil
}

func main() {
	lambda.Start(handler)
}
