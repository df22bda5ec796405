package protocol_test

import (
	"testing"

	"reqgraph/application/protocol"
	"reqgraph/domain/categories"
	pkgerrors "reqgraph/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParser_Options(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		minimum     int
		wantOptions []string
		wantMessage string
	}{
		{
			name:        "list meets threshold",
			text:        "Pick one:\nOPTIONS:\n1. Web app\n2. Mobile app\n3. CLI\n4. Desktop\n\nThanks!",
			minimum:     4,
			wantOptions: []string{"Web app", "Mobile app", "CLI", "Desktop"},
			wantMessage: "Pick one:\n\nThanks!",
		},
		{
			name:        "short list dropped but still stripped",
			text:        "Pick one:\nOPTIONS:\n1. Web app\n2. Mobile app\n\nThanks!",
			minimum:     4,
			wantMessage: "Pick one:\n\nThanks!",
		},
		{
			name:        "threshold of six",
			text:        "OPTIONS:\n1. a\n2. b\n3. c\n4. d\n5. e",
			minimum:     6,
			wantMessage: "",
		},
		{
			name:        "blank lines before first option are skipped",
			text:        "OPTIONS:\n\n1) Yes\n2) No",
			minimum:     2,
			wantOptions: []string{"Yes", "No"},
		},
		{
			name:        "empty entries stripped",
			text:        "OPTIONS:\n1. Yes\n2.\n3. No",
			minimum:     2,
			wantOptions: []string{"Yes", "No"},
		},
		{
			name:        "list ends at unnumbered line",
			text:        "OPTIONS:\n1. Yes\n2. No\nLet me know.",
			minimum:     2,
			wantOptions: []string{"Yes", "No"},
			wantMessage: "Let me know.",
		},
		{
			name:        "zero threshold still needs one option",
			text:        "OPTIONS:\n\nnothing numbered",
			minimum:     0,
			wantMessage: "nothing numbered",
		},
	}

	parser := protocol.NewParser(4, zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parser.ParseWithMinimum(tt.text, tt.minimum)

			assert.Equal(t, tt.wantOptions, result.Options)
			assert.Equal(t, tt.wantMessage, result.DisplayMessage)
			assert.Nil(t, result.Suggestions)
		})
	}
}

func TestParser_WithoutMarkersReturnsTextUnchanged(t *testing.T) {
	parser := protocol.NewParser(4, nil)
	text := "  Tell me more about your users.  "

	result := parser.Parse(text)

	assert.Equal(t, "Tell me more about your users.", result.DisplayMessage)
	assert.Nil(t, result.Suggestions)
	assert.NoError(t, result.SuggestionsErr)
	assert.Empty(t, result.Options)
}

func TestParser_Suggestions(t *testing.T) {
	parser := protocol.NewParser(4, zap.NewNop())

	text := "Great, let's model the data.\n" +
		`SUGGESTIONS: {"type": "data-entity", "items": [` +
		`{"title": "User", "description": "An account", "metadata": {"fields": ["id", "email"]}},` +
		`{"title": "Order", "actionLabel": "Add order"}]}`

	result := parser.Parse(text)

	require.NotNil(t, result.Suggestions)
	assert.Equal(t, categories.DataEntity, result.Suggestions.Category)
	assert.Equal(t, []string{"User", "Order"}, result.Suggestions.Titles())
	assert.Equal(t, "An account", result.Suggestions.Items[0].Description)
	assert.Equal(t, []any{"id", "email"}, result.Suggestions.Items[0].Metadata["fields"])
	assert.Equal(t, "Add order", result.Suggestions.Items[1].ActionLabel)
	assert.Equal(t, "Great, let's model the data.", result.DisplayMessage)
}

func TestParser_MalformedSuggestionsAreNotFatal(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"invalid json", `Ok. SUGGESTIONS: {"type": "feature-set", "items": [}`},
		{"missing type", `Ok. SUGGESTIONS: {"items": []}`},
		{"trailing brace in prose", `Ok. SUGGESTIONS: {"type": "feature-set", "items": []} see {this}`},
	}

	parser := protocol.NewParser(4, zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parser.Parse(tt.text)

			assert.Nil(t, result.Suggestions)
			var parseErr *pkgerrors.ProtocolParseError
			require.ErrorAs(t, result.SuggestionsErr, &parseErr)
			assert.Equal(t, protocol.SuggestionsMarker, parseErr.Marker)
			assert.Equal(t, "Ok.", result.DisplayMessage)
		})
	}
}

func TestParser_MarkerWithoutObject(t *testing.T) {
	result := protocol.NewParser(4, zap.NewNop()).Parse("SUGGESTIONS: none today")

	assert.Nil(t, result.Suggestions)
	assert.NoError(t, result.SuggestionsErr)
	assert.Equal(t, "SUGGESTIONS: none today", result.DisplayMessage)
}

func TestParser_FencedSuggestionsAreLoggedNotGuessed(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	parser := protocol.NewParser(4, zap.New(core))
	text := "Here you go.\nSUGGESTIONS:\n```json\n" +
		`{"type": "feature-set", "items": [{"title": "Login"}]}` +
		"\n```"

	result := parser.Parse(text)

	assert.Nil(t, result.Suggestions)
	assert.NoError(t, result.SuggestionsErr)
	assert.Equal(t, text, result.DisplayMessage)
	require.Equal(t, 1, logs.FilterMessageSnippet("SUGGESTIONS marker without a JSON object").Len())
}

func TestParser_CRLFBlankLinesCollapse(t *testing.T) {
	text := "Great idea.\r\n\r\nOPTIONS:\r\n1. Alpha\r\n2. Beta\r\n3. Gamma\r\n4. Delta\r\n\r\n" +
		`SUGGESTIONS: {"type": "user-flow", "items": [{"title": "Checkout"}]}` +
		"\r\n\r\nWhat next?"

	result := protocol.NewParser(4, zap.NewNop()).Parse(text)

	assert.Equal(t, []string{"Alpha", "Beta", "Gamma", "Delta"}, result.Options)
	require.NotNil(t, result.Suggestions)
	assert.Equal(t, "Great idea.\n\nWhat next?", result.DisplayMessage)
}

func TestParser_BothBlocks(t *testing.T) {
	text := "Which stack?\nOPTIONS:\n1. Go\n2. Rust\n3. Java\n4. Node\n" +
		`SUGGESTIONS: {"type": "tech-stack", "items": [{"title": "Go"}]}`

	result := protocol.NewParser(4, zap.NewNop()).Parse(text)

	assert.Equal(t, []string{"Go", "Rust", "Java", "Node"}, result.Options)
	require.NotNil(t, result.Suggestions)
	assert.Equal(t, categories.TechStack, result.Suggestions.Category)
	assert.Equal(t, "Which stack?", result.DisplayMessage)
}
