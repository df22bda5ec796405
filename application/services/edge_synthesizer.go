package services

import (
	"context"
	"errors"

	"reqgraph/application/ports"
	"reqgraph/application/sagas"
	"reqgraph/domain/categories"
	"reqgraph/domain/core/entities"
	"reqgraph/domain/core/valueobjects"
	pkgerrors "reqgraph/pkg/errors"

	"go.uber.org/zap"
)

// EdgeOutcome describes what EnsureEdge did
type EdgeOutcome struct {
	Edge       *entities.Edge
	Created    bool
	RolledBack bool
}

// EdgeSynthesizer connects a resolved node to its anchor. The node and edge
// writes are separate store calls, so a failed edge write undoes a node the
// same suggestion just created.
type EdgeSynthesizer struct {
	store  ports.GraphStore
	logger *zap.Logger
}

// NewEdgeSynthesizer creates a new edge synthesizer
func NewEdgeSynthesizer(store ports.GraphStore, logger *zap.Logger) *EdgeSynthesizer {
	return &EdgeSynthesizer{
		store:  store,
		logger: logger,
	}
}

// EnsureEdge creates anchor -> target with the category's handle pair. An
// existing edge counts as success.
func (s *EdgeSynthesizer) EnsureEdge(
	ctx context.Context,
	projectID string,
	anchorID valueobjects.NodeID,
	target Resolution,
	category categories.Category,
) (EdgeOutcome, error) {
	desc, err := categories.Classify(category)
	if err != nil {
		return EdgeOutcome{}, err
	}
	return s.Connect(ctx, projectID, anchorID, target, desc.SourceHandle, desc.TargetHandle)
}

// Connect creates source -> target with an explicit handle pair, rolling
// back the target node if it was created in the same call.
func (s *EdgeSynthesizer) Connect(
	ctx context.Context,
	projectID string,
	sourceID valueobjects.NodeID,
	target Resolution,
	sourceHandle, targetHandle valueobjects.Handle,
) (EdgeOutcome, error) {
	targetID := target.Node.ID()

	builder := sagas.NewSagaBuilder("ensure-edge", s.logger).
		WithMetadata("projectID", projectID).
		WithMetadata("targetID", targetID.String())

	if target.Created {
		builder.WithCompensation("delete-new-node", func(ctx context.Context) error {
			// rollback runs even if the caller has gone away
			return s.store.DeleteNode(context.WithoutCancel(ctx), targetID)
		})
	}

	builder.WithStep("create-edge", func(ctx context.Context, _ any) (any, error) {
		edge, err := entities.NewEdge(projectID, sourceID, targetID, sourceHandle, targetHandle, entities.EdgeTypeParentChild)
		if err != nil {
			return nil, err
		}
		if err := s.store.CreateEdge(ctx, edge); err != nil {
			if errors.Is(err, pkgerrors.ErrEdgeConflict) {
				s.logger.Debug("Edge already exists",
					zap.String("projectID", projectID),
					zap.String("sourceID", sourceID.String()),
					zap.String("targetID", targetID.String()),
				)
				return EdgeOutcome{}, nil
			}
			return nil, err
		}
		return EdgeOutcome{Edge: edge, Created: true}, nil
	})

	result, err := builder.Build().Execute(ctx, nil)
	if err != nil {
		rolledBack := false
		if stepErr, ok := sagas.AsStepError(err); ok && target.Created {
			rolledBack = stepErr.Compensated()
		}
		return EdgeOutcome{RolledBack: rolledBack}, &pkgerrors.EdgeCreationError{
			ProjectID:  projectID,
			SourceID:   sourceID.String(),
			TargetID:   targetID.String(),
			RolledBack: rolledBack,
			Cause:      err,
		}
	}

	return result.(EdgeOutcome), nil
}
