package rest_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"reqgraph/application/protocol"
	"reqgraph/application/services"
	domainservices "reqgraph/domain/services"
	"reqgraph/infrastructure/persistence/memory"
	"reqgraph/interfaces/http/rest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type errorBody struct {
	Error   bool   `json:"error"`
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type nodeBody struct {
	ID       string             `json:"id"`
	Category string             `json:"category"`
	Title    string             `json:"title"`
	ParentID string             `json:"parentId"`
	Position map[string]float64 `json:"position"`
	Metadata map[string]any     `json:"metadata"`
	Version  int                `json:"version"`
}

type reportBody struct {
	Applied      int `json:"applied"`
	Failed       int `json:"failed"`
	NodesCreated int `json:"nodesCreated"`
	EdgesCreated int `json:"edgesCreated"`
	Items        []struct {
		Title     string `json:"title"`
		Status    string `json:"status"`
		ErrorKind string `json:"errorKind"`
	} `json:"items"`
}

func newServer(t *testing.T) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewGraphStore(logger)
	layout := domainservices.NewLayoutEngine(nil)

	parser := protocol.NewParser(4, logger)
	edges := services.NewEdgeSynthesizer(store, logger)
	processor := services.NewSuggestionProcessor(
		services.NewNodeResolver(store, layout, logger),
		edges,
		services.NewMetadataMerger(store, logger),
		store, nil, nil, nil, logger,
	)

	router := rest.NewRouter(
		parser,
		services.NewTurnService(parser, processor, logger),
		processor,
		services.NewGraphService(store, nil, logger),
		services.NewAdjacentNodeService(store, edges, layout, nil, logger),
		nil,
		rest.RouterConfig{},
		logger,
	)
	return router.Setup()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.True(t, env.Success, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	assert.True(t, body.Error)
	return body
}

func initProject(t *testing.T, h http.Handler, projectID string) nodeBody {
	t.Helper()
	rec := do(t, h, http.MethodPut, "/api/v1/projects/"+projectID, map[string]string{"name": "Shop"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		Root    nodeBody `json:"root"`
		Created bool     `json:"created"`
	}
	decodeData(t, rec, &resp)
	require.True(t, resp.Created)
	return resp.Root
}

func TestRouter_Health(t *testing.T) {
	rec := do(t, newServer(t), http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestRouter_InitializeProject(t *testing.T) {
	h := newServer(t)

	root := initProject(t, h, "p1")
	assert.Equal(t, "root", root.Category)
	assert.Equal(t, "Shop", root.Title)

	rec := do(t, h, http.MethodPut, "/api/v1/projects/p1", map[string]string{"name": "Other"})
	assert.Equal(t, http.StatusOK, rec.Code)
	var again struct {
		Root    nodeBody `json:"root"`
		Created bool     `json:"created"`
	}
	decodeData(t, rec, &again)
	assert.False(t, again.Created)
	assert.Equal(t, root.ID, again.Root.ID)

	rec = do(t, h, http.MethodPut, "/api/v1/projects/p2", map[string]string{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION", decodeError(t, rec).Type)
}

func TestRouter_ApplySuggestionsAndReadGraph(t *testing.T) {
	h := newServer(t)
	root := initProject(t, h, "p1")

	rec := do(t, h, http.MethodPost, "/api/v1/projects/p1/suggestions", map[string]any{
		"type": "feature-set",
		"items": []map[string]any{
			{"title": "Login", "description": "Email and password"},
			{"title": "Search"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var applied struct {
		Report reportBody `json:"report"`
	}
	decodeData(t, rec, &applied)
	assert.Equal(t, 2, applied.Report.Applied)
	assert.Equal(t, 1, applied.Report.NodesCreated)
	assert.Equal(t, 1, applied.Report.EdgesCreated)

	rec = do(t, h, http.MethodGet, "/api/v1/projects/p1/graph", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var graph struct {
		RootID string     `json:"rootId"`
		Nodes  []nodeBody `json:"nodes"`
		Edges  []struct {
			Source       string `json:"source"`
			Target       string `json:"target"`
			SourceHandle string `json:"sourceHandle"`
			TargetHandle string `json:"targetHandle"`
		} `json:"edges"`
	}
	decodeData(t, rec, &graph)

	assert.Equal(t, root.ID, graph.RootID)
	require.Len(t, graph.Nodes, 2)
	features := graph.Nodes[1]
	assert.Equal(t, "Features", features.Title)
	assert.Equal(t, map[string]float64{"x": 360, "y": 0}, features.Position)
	assert.Len(t, features.Metadata["features"], 2)

	require.Len(t, graph.Edges, 1)
	assert.Equal(t, root.ID, graph.Edges[0].Source)
	assert.Equal(t, features.ID, graph.Edges[0].Target)
	assert.Equal(t, "right", graph.Edges[0].SourceHandle)
	assert.Equal(t, "left", graph.Edges[0].TargetHandle)
}

func TestRouter_ApplySuggestionsErrors(t *testing.T) {
	h := newServer(t)
	initProject(t, h, "p1")

	t.Run("unknown category rejects the group", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/projects/p1/suggestions", map[string]any{
			"type":  "glossary",
			"items": []map[string]any{{"title": "Term"}},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "UNKNOWN_CATEGORY", decodeError(t, rec).Code)
	})

	t.Run("missing type", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/projects/p1/suggestions", map[string]any{"items": []any{}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/projects/p1/suggestions", `{"type":"feature-set","items":[],"extra":1}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing root fails every item", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/projects/empty/suggestions", map[string]any{
			"type":  "data-entity",
			"items": []map[string]any{{"title": "User"}, {"title": "Order"}},
		})
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Report reportBody `json:"report"`
		}
		decodeData(t, rec, &resp)
		assert.Equal(t, 2, resp.Report.Failed)
		for _, item := range resp.Report.Items {
			assert.Equal(t, "failed", item.Status)
			assert.Equal(t, "RootNodeMissing", item.ErrorKind)
		}
	})

	t.Run("invalid project id", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/projects/"+strings.Repeat("x", 129)+"/suggestions", map[string]any{"type": "feature-set"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRouter_Parse(t *testing.T) {
	h := newServer(t)
	text := "Which platform?\nOPTIONS:\n1. Web\n2. iOS\n3. Android"

	rec := do(t, h, http.MethodPost, "/api/v1/protocol/parse", map[string]any{"text": text})
	require.Equal(t, http.StatusOK, rec.Code)
	var dropped struct {
		DisplayMessage string   `json:"displayMessage"`
		Options        []string `json:"options"`
	}
	decodeData(t, rec, &dropped)
	assert.Empty(t, dropped.Options, "three options are below the default minimum")

	rec = do(t, h, http.MethodPost, "/api/v1/protocol/parse", map[string]any{"text": text, "minOptions": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	var kept struct {
		DisplayMessage string   `json:"displayMessage"`
		Options        []string `json:"options"`
	}
	decodeData(t, rec, &kept)
	assert.Equal(t, []string{"Web", "iOS", "Android"}, kept.Options)
	assert.Equal(t, "Which platform?", kept.DisplayMessage)

	rec = do(t, h, http.MethodPost, "/api/v1/protocol/parse", map[string]any{"text": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/protocol/parse", `Ok. SUGGESTIONS: {"type": 1`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "body must be JSON")

	rec = do(t, h, http.MethodPost, "/api/v1/protocol/parse", map[string]any{
		"text": `Noted. SUGGESTIONS: {"type": "feature-set", "items": [}`,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var malformed struct {
		SuggestionsError string `json:"suggestionsError"`
	}
	decodeData(t, rec, &malformed)
	assert.NotEmpty(t, malformed.SuggestionsError)
}

func TestRouter_Turn(t *testing.T) {
	h := newServer(t)
	initProject(t, h, "p1")

	text := `Here is a first cut. SUGGESTIONS: {"type": "data-entity", "items": [{"title": "User", "metadata": {"fields": ["email"]}}]}`
	rec := do(t, h, http.MethodPost, "/api/v1/projects/p1/turns", map[string]any{"text": text})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		DisplayMessage string     `json:"displayMessage"`
		Report         reportBody `json:"report"`
	}
	decodeData(t, rec, &resp)
	assert.Equal(t, "Here is a first cut.", resp.DisplayMessage)
	assert.Equal(t, 1, resp.Report.Applied)
	assert.Equal(t, 1, resp.Report.NodesCreated)
}

func TestRouter_CreateAdjacent(t *testing.T) {
	h := newServer(t)
	root := initProject(t, h, "p1")
	path := fmt.Sprintf("/api/v1/projects/p1/nodes/%s/adjacent", root.ID)

	rec := do(t, h, http.MethodPost, path, map[string]string{"direction": "bottom", "category": "user-flow", "title": "Checkout"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Node nodeBody `json:"node"`
		Edge struct {
			SourceHandle string `json:"sourceHandle"`
			TargetHandle string `json:"targetHandle"`
		} `json:"edge"`
	}
	decodeData(t, rec, &created)
	assert.Equal(t, "Checkout", created.Node.Title)
	assert.Equal(t, root.ID, created.Node.ParentID)
	assert.Equal(t, map[string]float64{"x": 0, "y": 200}, created.Node.Position)
	assert.Equal(t, "bottom", created.Edge.SourceHandle)
	assert.Equal(t, "top", created.Edge.TargetHandle)

	tests := []struct {
		name   string
		path   string
		body   map[string]string
		status int
	}{
		{"duplicate title", path, map[string]string{"direction": "left", "category": "user-flow", "title": "Checkout"}, http.StatusConflict},
		{"bad direction", path, map[string]string{"direction": "up", "category": "user-flow", "title": "Browse"}, http.StatusBadRequest},
		{"unknown category", path, map[string]string{"direction": "left", "category": "glossary", "title": "x"}, http.StatusBadRequest},
		{"multi-instance needs a title", path, map[string]string{"direction": "left", "category": "data-entity"}, http.StatusBadRequest},
		{"bad node id", "/api/v1/projects/p1/nodes/not-a-uuid/adjacent", map[string]string{"direction": "left", "category": "tech-stack"}, http.StatusBadRequest},
		{"other project", fmt.Sprintf("/api/v1/projects/p2/nodes/%s/adjacent", root.ID), map[string]string{"direction": "left", "category": "tech-stack"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestRouter_UnknownRoutes(t *testing.T) {
	h := newServer(t)

	rec := do(t, h, http.MethodGet, "/api/v2/anything", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/v1/projects/p1/graph", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
