package events

import (
	"time"

	"reqgraph/domain/core/valueobjects"
)

// Source is the EventBridge source for every event this service emits
const Source = "reqgraph.suggestions"

// Event types
const (
	TypeNodeCreated           = "node.created"
	TypeNodeMetadataMerged    = "node.metadata_merged"
	TypeNodeRolledBack        = "node.rolled_back"
	TypeEdgeCreated           = "edge.created"
	TypeSuggestionItemFailed  = "suggestion.item_failed"
	TypeSuggestionGroupFailed = "suggestion.group_failed"
	TypeSuggestionsApplied    = "suggestions.applied"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func newBase(aggregateID, eventType string, timestamp time.Time, version int) BaseEvent {
	return BaseEvent{
		AggregateID: aggregateID,
		EventType:   eventType,
		Timestamp:   timestamp,
		Version:     version,
	}
}

// Node Events

// NodeCreated is raised when a new node is created
type NodeCreated struct {
	BaseEvent
	NodeID    valueobjects.NodeID `json:"node_id"`
	ProjectID string              `json:"project_id"`
	ParentID  string              `json:"parent_id,omitempty"`
	Category  string              `json:"category"`
	Title     string              `json:"title"`
}

// NewNodeCreated creates a NodeCreated event
func NewNodeCreated(nodeID valueobjects.NodeID, projectID, parentID, category, title string, timestamp time.Time) NodeCreated {
	return NodeCreated{
		BaseEvent: newBase(nodeID.String(), TypeNodeCreated, timestamp, 1),
		NodeID:    nodeID,
		ProjectID: projectID,
		ParentID:  parentID,
		Category:  category,
		Title:     title,
	}
}

// NodeMetadataMerged is raised when a suggestion item is folded into a node
type NodeMetadataMerged struct {
	BaseEvent
	NodeID    valueobjects.NodeID `json:"node_id"`
	ProjectID string              `json:"project_id"`
	Category  string              `json:"category"`
}

// NewNodeMetadataMerged creates a NodeMetadataMerged event
func NewNodeMetadataMerged(nodeID valueobjects.NodeID, projectID, category string, version int, timestamp time.Time) NodeMetadataMerged {
	return NodeMetadataMerged{
		BaseEvent: newBase(nodeID.String(), TypeNodeMetadataMerged, timestamp, version),
		NodeID:    nodeID,
		ProjectID: projectID,
		Category:  category,
	}
}

// NodeRolledBack is raised when a freshly created node is deleted because a
// dependent step failed
type NodeRolledBack struct {
	BaseEvent
	NodeID    valueobjects.NodeID `json:"node_id"`
	ProjectID string              `json:"project_id"`
	Reason    string              `json:"reason"`
}

// NewNodeRolledBack creates a NodeRolledBack event
func NewNodeRolledBack(nodeID valueobjects.NodeID, projectID, reason string, timestamp time.Time) NodeRolledBack {
	return NodeRolledBack{
		BaseEvent: newBase(nodeID.String(), TypeNodeRolledBack, timestamp, 1),
		NodeID:    nodeID,
		ProjectID: projectID,
		Reason:    reason,
	}
}

// Edge Events

// EdgeCreated is raised when a connection is stored
type EdgeCreated struct {
	BaseEvent
	ProjectID    string `json:"project_id"`
	SourceID     string `json:"source_id"`
	TargetID     string `json:"target_id"`
	SourceHandle string `json:"source_handle"`
	TargetHandle string `json:"target_handle"`
	EdgeType     string `json:"edge_type"`
}

// NewEdgeCreated creates an EdgeCreated event
func NewEdgeCreated(edgeID, projectID, sourceID, targetID, sourceHandle, targetHandle, edgeType string, timestamp time.Time) EdgeCreated {
	return EdgeCreated{
		BaseEvent:    newBase(edgeID, TypeEdgeCreated, timestamp, 1),
		ProjectID:    projectID,
		SourceID:     sourceID,
		TargetID:     targetID,
		SourceHandle: sourceHandle,
		TargetHandle: targetHandle,
		EdgeType:     edgeType,
	}
}

// Suggestion Events

// SuggestionItemFailed reports one item that could not be applied. It is
// the user-facing failure notification.
type SuggestionItemFailed struct {
	BaseEvent
	ProjectID string `json:"project_id"`
	Category  string `json:"category"`
	Title     string `json:"title"`
	Position  int    `json:"position"`
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
}

// NewSuggestionItemFailed creates a SuggestionItemFailed event
func NewSuggestionItemFailed(projectID, category, title string, position int, kind, message string, timestamp time.Time) SuggestionItemFailed {
	return SuggestionItemFailed{
		BaseEvent: newBase(projectID, TypeSuggestionItemFailed, timestamp, 1),
		ProjectID: projectID,
		Category:  category,
		Title:     title,
		Position:  position,
		ErrorKind: kind,
		Message:   message,
	}
}

// SuggestionGroupFailed reports a group that was abandoned before any item ran
type SuggestionGroupFailed struct {
	BaseEvent
	ProjectID string `json:"project_id"`
	Category  string `json:"category"`
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
}

// NewSuggestionGroupFailed creates a SuggestionGroupFailed event
func NewSuggestionGroupFailed(projectID, category, kind, message string, timestamp time.Time) SuggestionGroupFailed {
	return SuggestionGroupFailed{
		BaseEvent: newBase(projectID, TypeSuggestionGroupFailed, timestamp, 1),
		ProjectID: projectID,
		Category:  category,
		ErrorKind: kind,
		Message:   message,
	}
}

// SuggestionsApplied summarizes one processed group
type SuggestionsApplied struct {
	BaseEvent
	ProjectID    string `json:"project_id"`
	Category     string `json:"category"`
	Applied      int    `json:"applied"`
	Failed       int    `json:"failed"`
	NodesCreated int    `json:"nodes_created"`
	EdgesCreated int    `json:"edges_created"`
}

// NewSuggestionsApplied creates a SuggestionsApplied event
func NewSuggestionsApplied(projectID, category string, applied, failed, nodesCreated, edgesCreated int, timestamp time.Time) SuggestionsApplied {
	return SuggestionsApplied{
		BaseEvent:    newBase(projectID, TypeSuggestionsApplied, timestamp, 1),
		ProjectID:    projectID,
		Category:     category,
		Applied:      applied,
		Failed:       failed,
		NodesCreated: nodesCreated,
		EdgesCreated: edgesCreated,
	}
}
