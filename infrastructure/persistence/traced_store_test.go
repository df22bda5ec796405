package persistence_test

import (
	"context"
	"testing"

	"reqgraph/domain/categories"
	"reqgraph/domain/core/entities"
	"reqgraph/domain/core/valueobjects"
	"reqgraph/infrastructure/persistence"
	"reqgraph/infrastructure/persistence/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTraceStore_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	store := persistence.TraceStore(memory.NewGraphStore(nil), provider.Tracer("test"))
	ctx := context.Background()

	root, err := entities.NewRootNode("p1", "App", valueobjects.Position{})
	require.NoError(t, err)
	require.NoError(t, store.CreateNode(ctx, root))

	_, err = store.GetNode(ctx, valueobjects.NewNodeID())
	require.Error(t, err)

	nodes, err := store.ListNodes(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	create := spans[0]
	assert.Equal(t, "store.CreateNode", create.Name())
	project, ok := spanAttr(create, "project.id")
	require.True(t, ok)
	assert.Equal(t, "p1", project.AsString())
	category, _ := spanAttr(create, "node.category")
	assert.Equal(t, string(categories.Root), category.AsString())
	assert.Equal(t, codes.Unset, create.Status().Code)

	get := spans[1]
	assert.Equal(t, "store.GetNode", get.Name())
	assert.Equal(t, codes.Error, get.Status().Code)

	list := spans[2]
	count, ok := spanAttr(list, "result.count")
	require.True(t, ok)
	assert.Equal(t, int64(1), count.AsInt64())
}
