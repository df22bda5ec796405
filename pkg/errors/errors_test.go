package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestToAppError(t *testing.T) {
	cause := errors.New("throttled")
	tests := []struct {
		name   string
		err    error
		status int
		code   string
		kind   string
	}{
		{"unknown category", &UnknownCategoryError{Category: "glossary"}, http.StatusBadRequest, "UNKNOWN_CATEGORY", "UnknownCategory"},
		{"malformed block", &ProtocolParseError{Marker: "SUGGESTIONS:", Cause: cause}, http.StatusBadRequest, "PROTOCOL_PARSE", "ProtocolParse"},
		{"missing root", &RootNodeMissingError{ProjectID: "p1"}, http.StatusUnprocessableEntity, "ROOT_NODE_MISSING", "RootNodeMissing"},
		{"node not found", fmt.Errorf("get: %w", ErrNodeNotFound), http.StatusNotFound, "", "Internal"},
		{"edge conflict", &EdgeConflictError{SourceID: "a", TargetID: "b"}, http.StatusConflict, "", "Internal"},
		{"node creation", &NodeCreationError{Cause: cause}, http.StatusInternalServerError, "NODE_CREATION", "NodeCreation"},
		{"edge creation", &EdgeCreationError{Cause: cause}, http.StatusInternalServerError, "EDGE_CREATION", "EdgeCreation"},
		{"metadata merge", &MetadataMergeError{Cause: cause}, http.StatusInternalServerError, "METADATA_MERGE", "MetadataMerge"},
		{"project lock", &ProjectLockError{ProjectID: "p1", Cause: context.DeadlineExceeded}, http.StatusServiceUnavailable, "PROJECT_LOCKED", "ProjectLock"},
		{"anything else", cause, http.StatusInternalServerError, "", "Internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := ToAppError(tt.err)

			require.NotNil(t, appErr)
			assert.Equal(t, tt.status, appErr.HTTPStatus)
			assert.Equal(t, tt.code, appErr.Code)
			assert.ErrorIs(t, appErr, tt.err)
			assert.Equal(t, tt.kind, Kind(tt.err))
		})
	}

	assert.Nil(t, ToAppError(nil))
	assert.Empty(t, Kind(nil))
}

func TestEdgeConflictErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("store: %w", &EdgeConflictError{SourceID: "a", TargetID: "b", EdgeType: "parent_child"})

	assert.ErrorIs(t, err, ErrEdgeConflict)
	assert.NotErrorIs(t, err, ErrNodeConflict)
}

func TestAppErrorPredicates(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NewNotFoundError("node"))

	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.True(t, IsConflict(NewConflictError("taken")))
	assert.Equal(t, "node not found", GetAppError(wrapped).Message)

	appErr := NewStorageError("create node", errors.New("boom")).WithDetail("nodeId", "n1")
	assert.Equal(t, ErrorTypeStorage, appErr.Type)
	assert.Equal(t, "n1", appErr.Details["nodeId"])
	assert.NotEmpty(t, appErr.StackTrace)
}

func TestErrorHandler(t *testing.T) {
	t.Run("maps engine errors", func(t *testing.T) {
		h := NewErrorHandler(zap.NewNop(), false)
		rec := httptest.NewRecorder()

		h.Handle(rec, httptest.NewRequest(http.MethodPost, "/", nil), &RootNodeMissingError{ProjectID: "p1"})

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.JSONEq(t, `{"error":true,"type":"NOT_FOUND","message":"root node not found","code":"ROOT_NODE_MISSING"}`, rec.Body.String())
	})

	t.Run("debug adds the cause", func(t *testing.T) {
		h := NewErrorHandler(zap.NewNop(), true)
		rec := httptest.NewRecorder()

		h.Handle(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("disk on fire"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "disk on fire")
	})

	t.Run("recovers panics", func(t *testing.T) {
		h := NewErrorHandler(zap.NewNop(), false)
		rec := httptest.NewRecorder()
		panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("oops") })

		h.Middleware(panicky).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
