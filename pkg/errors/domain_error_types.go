package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels the graph stores return for uniqueness violations. Stores wrap
// them so callers can test with errors.Is regardless of the backend.
var (
	ErrEdgeConflict = errors.New("edge already exists")
	ErrNodeConflict = errors.New("node already exists for category")
	ErrNodeNotFound = errors.New("node not found")
)

// ProtocolParseError reports a malformed protocol block in assistant text.
// It never aborts processing; the block is treated as absent.
type ProtocolParseError struct {
	Marker string
	Cause  error
}

func (e *ProtocolParseError) Error() string {
	return fmt.Sprintf("malformed %s block: %v", e.Marker, e.Cause)
}

func (e *ProtocolParseError) Unwrap() error { return e.Cause }

// UnknownCategoryError is returned when a suggestion group names a category
// the registry does not know. It aborts only the enclosing group.
type UnknownCategoryError struct {
	Category string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown suggestion category %q", e.Category)
}

// RootNodeMissingError is returned when a project has no anchor node to
// parent a new node to.
type RootNodeMissingError struct {
	ProjectID string
}

func (e *RootNodeMissingError) Error() string {
	return fmt.Sprintf("project %s has no root node", e.ProjectID)
}

// EdgeConflictError reports an edge that already exists for the
// (source, target, type) triple.
type EdgeConflictError struct {
	SourceID string
	TargetID string
	EdgeType string
}

func (e *EdgeConflictError) Error() string {
	return fmt.Sprintf("edge %s -> %s (%s) already exists", e.SourceID, e.TargetID, e.EdgeType)
}

// Is lets errors.Is(err, ErrEdgeConflict) match.
func (e *EdgeConflictError) Is(target error) bool {
	return target == ErrEdgeConflict
}

// NodeCreationError wraps a store failure while creating a node.
type NodeCreationError struct {
	ProjectID string
	Category  string
	Title     string
	Cause     error
}

func (e *NodeCreationError) Error() string {
	return fmt.Sprintf("create %s node %q in project %s: %v", e.Category, e.Title, e.ProjectID, e.Cause)
}

func (e *NodeCreationError) Unwrap() error { return e.Cause }

// EdgeCreationError wraps a non-conflict store failure while creating an edge.
// RolledBack tells whether the freshly created target node was removed.
type EdgeCreationError struct {
	ProjectID  string
	SourceID   string
	TargetID   string
	RolledBack bool
	Cause      error
}

func (e *EdgeCreationError) Error() string {
	return fmt.Sprintf("create edge %s -> %s in project %s: %v", e.SourceID, e.TargetID, e.ProjectID, e.Cause)
}

func (e *EdgeCreationError) Unwrap() error { return e.Cause }

// MetadataMergeError wraps a failure while folding a suggestion item into a
// node's metadata document.
type MetadataMergeError struct {
	NodeID   string
	Category string
	Cause    error
}

func (e *MetadataMergeError) Error() string {
	return fmt.Sprintf("merge %s metadata into node %s: %v", e.Category, e.NodeID, e.Cause)
}

func (e *MetadataMergeError) Unwrap() error { return e.Cause }

// ProjectLockError is returned when the per-project lock cannot be taken
type ProjectLockError struct {
	ProjectID string
	Cause     error
}

func (e *ProjectLockError) Error() string {
	return fmt.Sprintf("lock project %s: %v", e.ProjectID, e.Cause)
}

func (e *ProjectLockError) Unwrap() error { return e.Cause }

// Kind names the engine error kind of err, for failure notifications.
func Kind(err error) string {
	var (
		unknownCategory *UnknownCategoryError
		rootMissing     *RootNodeMissingError
		parseErr        *ProtocolParseError
		nodeErr         *NodeCreationError
		edgeErr         *EdgeCreationError
		mergeErr        *MetadataMergeError
		lockErr         *ProjectLockError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &unknownCategory):
		return "UnknownCategory"
	case errors.As(err, &rootMissing):
		return "RootNodeMissing"
	case errors.As(err, &parseErr):
		return "ProtocolParse"
	case errors.As(err, &nodeErr):
		return "NodeCreation"
	case errors.As(err, &edgeErr):
		return "EdgeCreation"
	case errors.As(err, &mergeErr):
		return "MetadataMerge"
	case errors.As(err, &lockErr):
		return "ProjectLock"
	}
	return "Internal"
}

// ToAppError maps engine error kinds onto the HTTP-facing AppError. Errors
// that already carry an AppError are returned as is.
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr := GetAppError(err); appErr != nil {
		return appErr
	}

	var (
		unknownCategory *UnknownCategoryError
		rootMissing     *RootNodeMissingError
		parseErr        *ProtocolParseError
		nodeErr         *NodeCreationError
		edgeErr         *EdgeCreationError
		mergeErr        *MetadataMergeError
		lockErr         *ProjectLockError
	)

	switch {
	case errors.As(err, &unknownCategory):
		return NewValidationError(unknownCategory.Error()).WithCode("UNKNOWN_CATEGORY").WithCause(err)
	case errors.As(err, &parseErr):
		return NewValidationError(parseErr.Error()).WithCode("PROTOCOL_PARSE").WithCause(err)
	case errors.As(err, &rootMissing):
		appErr := NewNotFoundError("root node").WithCode("ROOT_NODE_MISSING").WithCause(err)
		appErr.HTTPStatus = http.StatusUnprocessableEntity
		return appErr
	case errors.Is(err, ErrNodeNotFound):
		return NewNotFoundError("node").WithCause(err)
	case errors.Is(err, ErrEdgeConflict), errors.Is(err, ErrNodeConflict):
		return NewConflictError(err.Error()).WithCause(err)
	case errors.As(err, &nodeErr):
		return NewStorageError("create node", err).WithCode("NODE_CREATION")
	case errors.As(err, &edgeErr):
		return NewStorageError("create edge", err).WithCode("EDGE_CREATION")
	case errors.As(err, &mergeErr):
		return NewStorageError("merge metadata", err).WithCode("METADATA_MERGE")
	case errors.As(err, &lockErr):
		return NewUnavailableError("project lock").WithCode("PROJECT_LOCKED").WithCause(err)
	}

	return NewInternalError("internal error").WithCause(err)
}
