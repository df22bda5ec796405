package entities

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"reqgraph/domain/categories"
	"reqgraph/domain/config"
	"reqgraph/domain/core/valueobjects"
	"reqgraph/domain/events"
	pkgerrors "reqgraph/pkg/errors"
)

// NodeStatus represents the state of a node
type NodeStatus string

const (
	StatusDraft      NodeStatus = "draft"
	StatusInProgress NodeStatus = "in_progress"
	StatusCompleted  NodeStatus = "completed"
	StatusArchived   NodeStatus = "archived"
)

// IsValid reports whether s is a known status
func (s NodeStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusInProgress, StatusCompleted, StatusArchived:
		return true
	}
	return false
}

// Node is a vertex in a project's requirements graph
type Node struct {
	id        valueobjects.NodeID
	projectID string
	category  categories.Category
	parentID  valueobjects.NodeID // zero only for the project's root
	title     string
	position  valueobjects.Position
	status    NodeStatus
	metadata  categories.Metadata
	createdAt time.Time
	updatedAt time.Time
	version   int

	events []events.DomainEvent
}

// NewNode creates a category node parented to parentID
func NewNode(
	projectID string,
	category categories.Category,
	parentID valueobjects.NodeID,
	title string,
	position valueobjects.Position,
	metadata categories.Metadata,
) (*Node, error) {
	if parentID.IsZero() {
		return nil, pkgerrors.NewValidationError("parentID is required for non-root nodes")
	}
	if !categories.IsKnown(category) {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("unknown category %q", category))
	}
	return newNode(projectID, category, parentID, title, position, metadata)
}

// NewRootNode creates the project's anchor node
func NewRootNode(projectID, title string, position valueobjects.Position) (*Node, error) {
	return newNode(projectID, categories.Root, valueobjects.NodeID{}, title, position, &categories.RootMetadata{
		Document: categories.Document{Name: title},
	})
}

func newNode(
	projectID string,
	category categories.Category,
	parentID valueobjects.NodeID,
	title string,
	position valueobjects.Position,
	metadata categories.Metadata,
) (*Node, error) {
	if projectID == "" {
		return nil, pkgerrors.NewValidationError("projectID cannot be empty")
	}

	title = strings.TrimSpace(title)
	if err := ValidateTitle(title); err != nil {
		return nil, err
	}

	if metadata == nil {
		shell, err := categories.NewMetadataFor(category)
		if err != nil {
			return nil, err
		}
		metadata = shell
	}
	if metadata.Category() != category {
		return nil, pkgerrors.NewValidationError(
			fmt.Sprintf("metadata for %s cannot be stored on a %s node", metadata.Category(), category))
	}

	now := time.Now()
	node := &Node{
		id:        valueobjects.NewNodeID(),
		projectID: projectID,
		category:  category,
		parentID:  parentID,
		title:     title,
		position:  position,
		status:    StatusDraft,
		metadata:  metadata,
		createdAt: now,
		updatedAt: now,
		version:   1,
		events:    []events.DomainEvent{},
	}

	node.addEvent(events.NewNodeCreated(
		node.id,
		projectID,
		parentID.String(),
		string(category),
		title,
		now,
	))

	return node, nil
}

// ValidateTitle enforces the 1-200 character bound
func ValidateTitle(title string) error {
	n := utf8.RuneCountInString(title)
	if n < config.MinTitleLength {
		return pkgerrors.NewValidationError("title cannot be empty")
	}
	if n > config.MaxTitleLength {
		return pkgerrors.NewValidationError(
			fmt.Sprintf("title exceeds maximum length of %d characters", config.MaxTitleLength))
	}
	return nil
}

// ReconstructNode rebuilds a node from stored data without raising events
func ReconstructNode(
	id valueobjects.NodeID,
	projectID string,
	category categories.Category,
	parentID valueobjects.NodeID,
	title string,
	position valueobjects.Position,
	status NodeStatus,
	metadata categories.Metadata,
	createdAt, updatedAt time.Time,
	version int,
) *Node {
	if metadata == nil {
		metadata, _ = categories.NewMetadataFor(category)
	}
	return &Node{
		id:        id,
		projectID: projectID,
		category:  category,
		parentID:  parentID,
		title:     title,
		position:  position,
		status:    status,
		metadata:  metadata,
		createdAt: createdAt,
		updatedAt: updatedAt,
		version:   version,
		events:    []events.DomainEvent{},
	}
}

func (n *Node) ID() valueobjects.NodeID         { return n.id }
func (n *Node) ProjectID() string               { return n.projectID }
func (n *Node) Category() categories.Category   { return n.category }
func (n *Node) ParentID() valueobjects.NodeID   { return n.parentID }
func (n *Node) Title() string                   { return n.title }
func (n *Node) Position() valueobjects.Position { return n.position }
func (n *Node) Status() NodeStatus              { return n.status }
func (n *Node) Metadata() categories.Metadata   { return n.metadata }
func (n *Node) CreatedAt() time.Time            { return n.createdAt }
func (n *Node) UpdatedAt() time.Time            { return n.updatedAt }
func (n *Node) Version() int                    { return n.version }

// IsRoot reports whether this is the project's anchor node
func (n *Node) IsRoot() bool {
	return n.parentID.IsZero()
}

// ReplaceMetadata swaps in a new document of the node's own category
func (n *Node) ReplaceMetadata(metadata categories.Metadata) error {
	if metadata == nil || metadata.Category() != n.category {
		return pkgerrors.NewValidationError(fmt.Sprintf("metadata does not match %s node", n.category))
	}
	if err := metadata.Validate(); err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	n.metadata = metadata
	n.touch()
	n.addEvent(events.NewNodeMetadataMerged(n.id, n.projectID, string(n.category), n.version, n.updatedAt))
	return nil
}

// MoveTo sets a new canvas position
func (n *Node) MoveTo(position valueobjects.Position) {
	n.position = position
	n.touch()
}

// SetStatus changes the workflow status
func (n *Node) SetStatus(status NodeStatus) error {
	if !status.IsValid() {
		return pkgerrors.NewValidationError(fmt.Sprintf("invalid status %q", status))
	}
	n.status = status
	n.touch()
	return nil
}

func (n *Node) touch() {
	n.updatedAt = time.Now()
	n.version++
}

func (n *Node) addEvent(event events.DomainEvent) {
	n.events = append(n.events, event)
}

// GetUncommittedEvents returns events raised since the last commit
func (n *Node) GetUncommittedEvents() []events.DomainEvent {
	return n.events
}

// MarkEventsAsCommitted clears the pending event list
func (n *Node) MarkEventsAsCommitted() {
	n.events = []events.DomainEvent{}
}
