package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reqgraph/domain/categories"
	"reqgraph/domain/events"
	"reqgraph/domain/suggestions"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwTypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"go.uber.org/zap"
)

// PostToConnectionAPI is the part of the API Gateway management client used
// to push messages
type PostToConnectionAPI interface {
	PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error)
}

// Message is the frame sent to WebSocket clients
type Message struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// WebSocketNotifier pushes failures to every connection open on the project
type WebSocketNotifier struct {
	connections *ConnectionStore
	client      PostToConnectionAPI
	logger      *zap.Logger
}

// NewWebSocketNotifier creates a new WebSocket notifier
func NewWebSocketNotifier(connections *ConnectionStore, client PostToConnectionAPI, logger *zap.Logger) *WebSocketNotifier {
	return &WebSocketNotifier{
		connections: connections,
		client:      client,
		logger:      logger,
	}
}

// NewAPIGatewayClient creates a management client for a WebSocket stage
// endpoint such as "abc.execute-api.us-west-2.amazonaws.com/prod".
func NewAPIGatewayClient(cfg aws.Config, endpoint string) *apigatewaymanagementapi.Client {
	return apigatewaymanagementapi.NewFromConfig(cfg, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String("https://" + endpoint)
	})
}

// ItemFailed implements ports.Notifier
func (n *WebSocketNotifier) ItemFailed(ctx context.Context, projectID string, category categories.Category, position int, item suggestions.Item, err error) {
	n.Forward(ctx, ItemFailedEvent(projectID, category, position, item, err))
}

// GroupFailed implements ports.Notifier
func (n *WebSocketNotifier) GroupFailed(ctx context.Context, projectID string, group suggestions.Group, err error) {
	n.Forward(ctx, GroupFailedEvent(projectID, group, err))
}

// Forward sends an event to the project it belongs to, whose ID is the
// event's aggregate ID. Errors are logged, never returned.
func (n *WebSocketNotifier) Forward(ctx context.Context, event events.DomainEvent) int {
	ctx = context.WithoutCancel(ctx)
	projectID := event.GetAggregateID()

	delivered, err := n.Send(ctx, projectID, Message{
		Type:      event.GetEventType(),
		Timestamp: event.GetTimestamp().Unix(),
		Data:      event,
	})
	if err != nil {
		n.logger.Error("Failed to notify project connections",
			zap.String("projectID", projectID),
			zap.String("eventType", event.GetEventType()),
			zap.Error(err),
		)
	}
	return delivered
}

// Send posts msg to every connection of the project and returns how many
// received it. Stale connections are removed.
func (n *WebSocketNotifier) Send(ctx context.Context, projectID string, msg Message) (int, error) {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal message: %w", err)
	}

	conns, err := n.connections.ForProject(ctx, projectID)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, conn := range conns {
		_, err := n.client.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
			ConnectionId: aws.String(conn.ConnectionID),
			Data:         payload,
		})
		if err == nil {
			delivered++
			continue
		}

		var gone *apigwTypes.GoneException
		if errors.As(err, &gone) {
			n.logger.Debug("Removing stale connection", zap.String("connectionID", conn.ConnectionID))
			if err := n.connections.Delete(ctx, conn.ConnectionID); err != nil {
				n.logger.Warn("Failed to remove stale connection", zap.Error(err))
			}
			continue
		}
		n.logger.Warn("Failed to post to connection",
			zap.String("connectionID", conn.ConnectionID),
			zap.Error(err),
		)
	}
	return delivered, nil
}
