package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reqgraph/application/ports"
	"reqgraph/domain/categories"
	"reqgraph/domain/events"
	"reqgraph/domain/suggestions"
	pkgerrors "reqgraph/pkg/errors"

	"go.uber.org/zap"
)

// ItemStatus is the per-item result of applying a suggestion group
type ItemStatus string

const (
	ItemApplied ItemStatus = "applied"
	ItemFailed  ItemStatus = "failed"
	// ItemSkipped items were never started because the caller went away
	ItemSkipped ItemStatus = "skipped"
)

// ItemOutcome records what happened to one suggestion item
type ItemOutcome struct {
	Position    int        `json:"position"`
	Title       string     `json:"title"`
	Status      ItemStatus `json:"status"`
	NodeID      string     `json:"nodeId,omitempty"`
	NodeCreated bool       `json:"nodeCreated"`
	EdgeCreated bool       `json:"edgeCreated"`
	RolledBack  bool       `json:"rolledBack,omitempty"`
	ErrorKind   string     `json:"errorKind,omitempty"`
	Error       string     `json:"error,omitempty"`

	Err error `json:"-"`
}

// Report summarizes one ProcessSuggestions run
type Report struct {
	ProjectID    string              `json:"projectId"`
	Category     categories.Category `json:"category"`
	Items        []ItemOutcome       `json:"items"`
	Applied      int                 `json:"applied"`
	Failed       int                 `json:"failed"`
	Skipped      int                 `json:"skipped"`
	NodesCreated int                 `json:"nodesCreated"`
	EdgesCreated int                 `json:"edgesCreated"`
	RolledBack   int                 `json:"rolledBack"`
	GroupError   string              `json:"groupError,omitempty"`
	GroupErr     error               `json:"-"`
	Duration     time.Duration       `json:"-"`
}

// SuggestionProcessor applies a parsed suggestion group to a project graph,
// one item at a time. A failing item is reported and skipped; it never
// aborts the rest of the group.
type SuggestionProcessor struct {
	resolver  *NodeResolver
	edges     *EdgeSynthesizer
	merger    *MetadataMerger
	store     ports.GraphStore
	locker    ports.ProjectLocker
	publisher ports.EventPublisher
	notifier  ports.Notifier
	metrics   ports.MetricsRecorder
	logger    *zap.Logger
}

// NewSuggestionProcessor creates a new suggestion processor. locker,
// publisher and notifier may be nil.
func NewSuggestionProcessor(
	resolver *NodeResolver,
	edges *EdgeSynthesizer,
	merger *MetadataMerger,
	store ports.GraphStore,
	locker ports.ProjectLocker,
	publisher ports.EventPublisher,
	notifier ports.Notifier,
	logger *zap.Logger,
) *SuggestionProcessor {
	return &SuggestionProcessor{
		resolver:  resolver,
		edges:     edges,
		merger:    merger,
		store:     store,
		locker:    locker,
		publisher: publisher,
		notifier:  notifier,
		logger:    logger,
	}
}

// WithMetrics makes every run report its counters to recorder
func (p *SuggestionProcessor) WithMetrics(recorder ports.MetricsRecorder) *SuggestionProcessor {
	p.metrics = recorder
	return p
}

// ProcessSuggestions applies the group and then invokes onComplete exactly
// once, unless ctx was cancelled first. It never returns an error; failures
// go to the notifier.
func (p *SuggestionProcessor) ProcessSuggestions(ctx context.Context, projectID string, group suggestions.Group, onComplete func()) {
	p.Apply(ctx, projectID, group)

	if ctx.Err() != nil {
		p.logger.Info("Caller gone, skipping completion callback",
			zap.String("projectID", projectID),
			zap.String("category", string(group.Category)),
		)
		return
	}
	if onComplete == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Completion callback panicked",
				zap.String("projectID", projectID),
				zap.Any("panic", r),
			)
		}
	}()
	onComplete()
}

// Apply processes every item of the group in order and returns what
// happened to each.
func (p *SuggestionProcessor) Apply(ctx context.Context, projectID string, group suggestions.Group) *Report {
	start := time.Now()
	report := &Report{
		ProjectID: projectID,
		Category:  group.Category,
		Items:     make([]ItemOutcome, 0, len(group.Items)),
	}
	defer func() {
		report.Duration = time.Since(start)
		p.record(ctx, report)
	}()

	desc, err := categories.Classify(group.Category)
	if err != nil {
		p.failGroup(ctx, report, group, err)
		return report
	}

	if p.locker != nil {
		unlock, err := p.locker.Lock(ctx, projectID)
		if err != nil {
			p.failGroup(ctx, report, group, &pkgerrors.ProjectLockError{ProjectID: projectID, Cause: err})
			return report
		}
		defer unlock()
	}

	p.logger.Info("Processing suggestions",
		zap.String("projectID", projectID),
		zap.String("category", string(desc.Category)),
		zap.Int("items", len(group.Items)),
	)

	for i, item := range group.Items {
		if ctx.Err() != nil {
			for j := i; j < len(group.Items); j++ {
				report.Items = append(report.Items, ItemOutcome{
					Position: j,
					Title:    group.Items[j].Title,
					Status:   ItemSkipped,
				})
				report.Skipped++
			}
			p.logger.Warn("Context cancelled, remaining suggestions skipped",
				zap.String("projectID", projectID),
				zap.Int("skipped", len(group.Items)-i),
			)
			break
		}

		outcome := p.applyItem(ctx, projectID, desc, i, item)
		report.Items = append(report.Items, outcome)

		if outcome.RolledBack {
			report.RolledBack++
		}
		if outcome.Status == ItemFailed {
			report.Failed++
			p.logger.Error("Failed to apply suggestion",
				zap.String("projectID", projectID),
				zap.String("category", string(desc.Category)),
				zap.Int("position", i),
				zap.String("title", item.Title),
				zap.Bool("rolledBack", outcome.RolledBack),
				zap.Error(outcome.Err),
			)
			if p.notifier != nil {
				p.notifier.ItemFailed(ctx, projectID, desc.Category, i, item, outcome.Err)
			}
			continue
		}

		report.Applied++
		if outcome.NodeCreated {
			report.NodesCreated++
		}
		if outcome.EdgeCreated {
			report.EdgesCreated++
		}
	}

	p.publish(ctx, []events.DomainEvent{events.NewSuggestionsApplied(
		projectID,
		string(desc.Category),
		report.Applied,
		report.Failed,
		report.NodesCreated,
		report.EdgesCreated,
		time.Now(),
	)})

	p.logger.Info("Suggestions processed",
		zap.String("projectID", projectID),
		zap.String("category", string(desc.Category)),
		zap.Int("applied", report.Applied),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Int("nodesCreated", report.NodesCreated),
		zap.Int("edgesCreated", report.EdgesCreated),
	)

	return report
}

func (p *SuggestionProcessor) applyItem(
	ctx context.Context,
	projectID string,
	desc categories.Descriptor,
	position int,
	item suggestions.Item,
) (outcome ItemOutcome) {
	outcome = ItemOutcome{Position: position, Title: item.Title, Status: ItemApplied}

	fail := func(err error) ItemOutcome {
		outcome.Status = ItemFailed
		outcome.Err = err
		outcome.ErrorKind = pkgerrors.Kind(err)
		outcome.Error = err.Error()
		return outcome
	}

	defer func() {
		if r := recover(); r != nil {
			outcome = fail(fmt.Errorf("panic applying suggestion: %v", r))
		}
	}()

	resolution, err := p.resolver.ResolveTargetNode(ctx, projectID, desc.Category, item.Title)
	if err != nil {
		return fail(err)
	}
	node := resolution.Node
	outcome.NodeID = node.ID().String()
	outcome.NodeCreated = resolution.Created

	anchor := resolution.Anchor
	if anchor == nil {
		anchor, err = p.store.GetAnchorNode(ctx, projectID)
		if errors.Is(err, pkgerrors.ErrNodeNotFound) {
			return fail(&pkgerrors.RootNodeMissingError{ProjectID: projectID})
		}
		if err != nil {
			return fail(fmt.Errorf("load root node: %w", err))
		}
	}

	var pending []events.DomainEvent
	if resolution.Created {
		pending = append(pending, node.GetUncommittedEvents()...)
		node.MarkEventsAsCommitted()
	}

	edge, err := p.edges.EnsureEdge(ctx, projectID, anchor.ID(), resolution, desc.Category)
	if err != nil {
		outcome.NodeCreated = resolution.Created && !edge.RolledBack
		outcome.RolledBack = edge.RolledBack
		if edge.RolledBack {
			outcome.NodeID = ""
			p.publish(ctx, []events.DomainEvent{
				events.NewNodeRolledBack(node.ID(), projectID, err.Error(), time.Now()),
			})
		} else {
			p.publish(ctx, pending)
		}
		return fail(err)
	}
	outcome.EdgeCreated = edge.Created
	if edge.Created {
		pending = append(pending, edge.Edge.CreatedEvent())
	}

	merged, err := p.merger.MergeSuggestion(ctx, node.ID(), desc.Category, item)
	if err != nil {
		p.publish(ctx, pending)
		return fail(err)
	}
	pending = append(pending, merged.GetUncommittedEvents()...)
	merged.MarkEventsAsCommitted()

	p.publish(ctx, pending)
	return outcome
}

func (p *SuggestionProcessor) failGroup(ctx context.Context, report *Report, group suggestions.Group, err error) {
	report.GroupErr = err
	report.GroupError = err.Error()

	p.logger.Error("Suggestion group rejected",
		zap.String("projectID", report.ProjectID),
		zap.String("category", string(group.Category)),
		zap.Int("items", len(group.Items)),
		zap.Error(err),
	)
	if p.notifier != nil {
		p.notifier.GroupFailed(ctx, report.ProjectID, group, err)
	}
}

func (p *SuggestionProcessor) record(ctx context.Context, report *Report) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordSuggestionRun(context.WithoutCancel(ctx), ports.RunMetrics{
		ProjectID:    report.ProjectID,
		Category:     string(report.Category),
		Applied:      report.Applied,
		Failed:       report.Failed,
		Skipped:      report.Skipped,
		NodesCreated: report.NodesCreated,
		EdgesCreated: report.EdgesCreated,
		RolledBack:   report.RolledBack,
		GroupFailed:  report.GroupErr != nil,
		Duration:     report.Duration,
	})
}

func (p *SuggestionProcessor) publish(ctx context.Context, pending []events.DomainEvent) {
	if p.publisher == nil || len(pending) == 0 {
		return
	}
	if err := p.publisher.PublishBatch(context.WithoutCancel(ctx), pending); err != nil {
		p.logger.Warn("Failed to publish events",
			zap.Int("count", len(pending)),
			zap.Error(err),
		)
	}
}
