package persistence

import (
	"context"

	"reqgraph/application/ports"
	"reqgraph/domain/categories"
	"reqgraph/domain/core/entities"
	"reqgraph/domain/core/valueobjects"
	"reqgraph/pkg/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TraceStore wraps a graph store so that every call is a span
func TraceStore(inner ports.GraphStore, tracer trace.Tracer) ports.GraphStore {
	return &tracedStore{inner: inner, tracer: tracer}
}

type tracedStore struct {
	inner  ports.GraphStore
	tracer trace.Tracer
}

func (s *tracedStore) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "store."+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func nodeAttr(id valueobjects.NodeID) attribute.KeyValue {
	return attribute.String("node.id", id.String())
}

func categoryAttr(c categories.Category) attribute.KeyValue {
	return attribute.String("node.category", string(c))
}

func (s *tracedStore) GetAnchorNode(ctx context.Context, projectID string) (node *entities.Node, err error) {
	ctx, span := s.start(ctx, "GetAnchorNode", observability.ProjectAttr(projectID))
	defer func() { observability.EndSpan(span, err) }()
	return s.inner.GetAnchorNode(ctx, projectID)
}

func (s *tracedStore) FindNodeByCategory(ctx context.Context, projectID string, category categories.Category) (node *entities.Node, err error) {
	ctx, span := s.start(ctx, "FindNodeByCategory", observability.ProjectAttr(projectID), categoryAttr(category))
	defer func() { observability.EndSpan(span, err) }()
	return s.inner.FindNodeByCategory(ctx, projectID, category)
}

func (s *tracedStore) FindNodeByCategoryAndTitle(ctx context.Context, projectID string, category categories.Category, title string) (node *entities.Node, err error) {
	ctx, span := s.start(ctx, "FindNodeByCategoryAndTitle", observability.ProjectAttr(projectID), categoryAttr(category))
	defer func() { observability.EndSpan(span, err) }()
	return s.inner.FindNodeByCategoryAndTitle(ctx, projectID, category, title)
}

func (s *tracedStore) GetNode(ctx context.Context, nodeID valueobjects.NodeID) (node *entities.Node, err error) {
	ctx, span := s.start(ctx, "GetNode", nodeAttr(nodeID))
	defer func() { observability.EndSpan(span, err) }()
	return s.inner.GetNode(ctx, nodeID)
}

func (s *tracedStore) CountChildren(ctx context.Context, projectID string, parentID valueobjects.NodeID) (n int, err error) {
	ctx, span := s.start(ctx, "CountChildren", observability.ProjectAttr(projectID), nodeAttr(parentID))
	defer func() { observability.EndSpan(span, err) }()
	return s.inner.CountChildren(ctx, projectID, parentID)
}

func (s *tracedStore) CreateNode(ctx context.Context, node *entities.Node) (err error) {
	ctx, span := s.start(ctx, "CreateNode",
		observability.ProjectAttr(node.ProjectID()),
		nodeAttr(node.ID()),
		categoryAttr(node.Category()),
	)
	defer func() { observability.EndSpan(span, err) }()
	return s.inner.CreateNode(ctx, node)
}

func (s *tracedStore) UpdateNodeMetadata(ctx context.Context, nodeID valueobjects.NodeID, metadata categories.Metadata) (err error) {
	ctx, span := s.start(ctx, "UpdateNodeMetadata", nodeAttr(nodeID))
	defer func() { observability.EndSpan(span, err) }()
	return s.inner.UpdateNodeMetadata(ctx, nodeID, metadata)
}

func (s *tracedStore) CreateEdge(ctx context.Context, edge *entities.Edge) (err error) {
	ctx, span := s.start(ctx, "CreateEdge",
		observability.ProjectAttr(edge.ProjectID),
		attribute.String("edge.source", edge.SourceID.String()),
		attribute.String("edge.target", edge.TargetID.String()),
	)
	defer func() { observability.EndSpan(span, err) }()
	return s.inner.CreateEdge(ctx, edge)
}

func (s *tracedStore) DeleteNode(ctx context.Context, nodeID valueobjects.NodeID) (err error) {
	ctx, span := s.start(ctx, "DeleteNode", nodeAttr(nodeID))
	defer func() { observability.EndSpan(span, err) }()
	return s.inner.DeleteNode(ctx, nodeID)
}

func (s *tracedStore) ListNodes(ctx context.Context, projectID string) (nodes []*entities.Node, err error) {
	ctx, span := s.start(ctx, "ListNodes", observability.ProjectAttr(projectID))
	defer func() {
		span.SetAttributes(attribute.Int("result.count", len(nodes)))
		observability.EndSpan(span, err)
	}()
	return s.inner.ListNodes(ctx, projectID)
}

func (s *tracedStore) ListEdges(ctx context.Context, projectID string) (edges []*entities.Edge, err error) {
	ctx, span := s.start(ctx, "ListEdges", observability.ProjectAttr(projectID))
	defer func() {
		span.SetAttributes(attribute.Int("result.count", len(edges)))
		observability.EndSpan(span, err)
	}()
	return s.inner.ListEdges(ctx, projectID)
}
