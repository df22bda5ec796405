// Package main implements the Lambda that applies suggestion groups
// asynchronously. It accepts EventBridge events with detail-type
// "suggestions.requested" as well as direct invocations carrying the same
// payload.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"reqgraph/domain/suggestions"
	"reqgraph/infrastructure/config"
	"reqgraph/infrastructure/di"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

// DetailTypeRequested is the EventBridge detail-type this worker consumes
const DetailTypeRequested = "suggestions.requested"

var container *di.Container

// Request is one unit of work. Exactly one of Text (a raw assistant turn)
// and Suggestions (an already extracted group) is set.
type Request struct {
	ProjectID   string             `json:"projectId"`
	Text        string             `json:"text,omitempty"`
	Suggestions *suggestions.Group `json:"suggestions,omitempty"`
	MinOptions  int                `json:"minOptions,omitempty"`
}

func (r Request) validate() error {
	if r.ProjectID == "" {
		return errors.New("projectId is required")
	}
	if (r.Text == "") == (r.Suggestions == nil) {
		return errors.New("exactly one of text and suggestions is required")
	}
	return nil
}

func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	container, _, err = di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize dependency container: %v", err)
	}
}

func process(ctx context.Context, req Request) error {
	if err := req.validate(); err != nil {
		return err
	}
	logger := container.Logger.With(zap.String("projectID", req.ProjectID))

	if req.Text != "" {
		result := container.Turns.Ingest(ctx, req.ProjectID, req.Text, req.MinOptions)
		if result.Report == nil {
			logger.Info("Turn carried no suggestions")
			return nil
		}
		logger.Info("Turn applied",
			zap.Int("applied", result.Report.Applied),
			zap.Int("failed", result.Report.Failed),
		)
		return nil
	}

	container.Processor.ProcessSuggestions(ctx, req.ProjectID, *req.Suggestions, func() {
		logger.Info("Suggestion group complete",
			zap.String("category", string(req.Suggestions.Category)),
			zap.Int("items", len(req.Suggestions.Items)),
		)
	})
	return nil
}

func handler(ctx context.Context, raw json.RawMessage) error {
	var event awsevents.CloudWatchEvent
	if err := json.Unmarshal(raw, &event); err == nil && event.DetailType != "" {
		if event.DetailType != DetailTypeRequested {
			container.Logger.Warn("Ignoring event", zap.String("detailType", event.DetailType))
			return nil
		}
		var req Request
		if err := json.Unmarshal(event.Detail, &req); err != nil {
			return fmt.Errorf("failed to decode event detail: %w", err)
		}
		return process(ctx, req)
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("failed to decode request: %w", err)
	}
	return process(ctx, req)
}

func main() {
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") == "" {
		log.Fatal("suggestion-worker must run inside Lambda")
	}
	lambda.Start(handler)
}
