package services

import (
	"context"

	"reqgraph/application/protocol"

	"go.uber.org/zap"
)

// TurnResult is what one assistant turn produced
type TurnResult struct {
	protocol.Result
	Report *Report `json:"report,omitempty"`
}

// TurnService takes raw assistant text, strips the protocol blocks and
// applies any suggestion group to the project graph.
type TurnService struct {
	parser    *protocol.Parser
	processor *SuggestionProcessor
	logger    *zap.Logger
}

// NewTurnService creates a new turn service
func NewTurnService(parser *protocol.Parser, processor *SuggestionProcessor, logger *zap.Logger) *TurnService {
	return &TurnService{
		parser:    parser,
		processor: processor,
		logger:    logger,
	}
}

// Ingest parses text and applies its suggestions. minOptions overrides the
// parser's OPTIONS threshold when positive.
func (s *TurnService) Ingest(ctx context.Context, projectID, text string, minOptions int) *TurnResult {
	if minOptions <= 0 {
		minOptions = s.parser.MinOptions()
	}
	parsed := s.parser.ParseWithMinimum(text, minOptions)
	result := &TurnResult{Result: parsed}

	if parsed.Suggestions == nil {
		s.logger.Debug("Turn carried no suggestions",
			zap.String("projectID", projectID),
			zap.Int("options", len(parsed.Options)),
			zap.Bool("malformed", parsed.SuggestionsErr != nil),
		)
		return result
	}

	result.Report = s.processor.Apply(ctx, projectID, *parsed.Suggestions)
	return result
}
