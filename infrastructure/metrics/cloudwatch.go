// Package metrics reports suggestion run counters.
package metrics

import (
	"context"
	"time"

	"reqgraph/application/ports"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// PutMetricDataAPI is the part of the CloudWatch client Metrics uses
type PutMetricDataAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Metrics sends suggestion run counters to CloudWatch
type Metrics struct {
	namespace string
	client    PutMetricDataAPI
	logger    *zap.Logger
}

// NewMetrics creates a new metrics recorder
func NewMetrics(namespace string, client PutMetricDataAPI, logger *zap.Logger) *Metrics {
	return &Metrics{
		namespace: namespace,
		client:    client,
		logger:    logger,
	}
}

// RecordSuggestionRun implements ports.MetricsRecorder. Failures to send are
// logged and otherwise ignored.
func (m *Metrics) RecordSuggestionRun(ctx context.Context, run ports.RunMetrics) {
	if m.client == nil {
		return
	}

	now := time.Now()
	dims := []types.Dimension{
		{Name: aws.String("Category"), Value: aws.String(run.Category)},
	}
	count := func(name string, v int) types.MetricDatum {
		return types.MetricDatum{
			MetricName: aws.String(name),
			Dimensions: dims,
			Value:      aws.Float64(float64(v)),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(now),
		}
	}

	groupFailed := 0
	if run.GroupFailed {
		groupFailed = 1
	}

	data := []types.MetricDatum{
		count("SuggestionsApplied", run.Applied),
		count("SuggestionsFailed", run.Failed),
		count("SuggestionsSkipped", run.Skipped),
		count("NodesCreated", run.NodesCreated),
		count("EdgesCreated", run.EdgesCreated),
		count("NodesRolledBack", run.RolledBack),
		count("GroupsRejected", groupFailed),
		{
			MetricName: aws.String("SuggestionRunLatency"),
			Dimensions: dims,
			Value:      aws.Float64(float64(run.Duration.Milliseconds())),
			Unit:       types.StandardUnitMilliseconds,
			Timestamp:  aws.Time(now),
		},
	}

	if _, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}); err != nil {
		m.logger.Warn("Failed to send metrics",
			zap.String("projectID", run.ProjectID),
			zap.Error(err),
		)
	}
}

// LogMetrics writes run counters to the log when CloudWatch is not in use
type LogMetrics struct {
	logger *zap.Logger
}

// NewLogMetrics creates a log-only metrics recorder
func NewLogMetrics(logger *zap.Logger) *LogMetrics {
	return &LogMetrics{logger: logger}
}

// RecordSuggestionRun implements ports.MetricsRecorder
func (m *LogMetrics) RecordSuggestionRun(ctx context.Context, run ports.RunMetrics) {
	m.logger.Debug("Suggestion run metrics",
		zap.String("projectID", run.ProjectID),
		zap.String("category", run.Category),
		zap.Int("applied", run.Applied),
		zap.Int("failed", run.Failed),
		zap.Int("rolledBack", run.RolledBack),
		zap.Duration("duration", run.Duration),
	)
}
