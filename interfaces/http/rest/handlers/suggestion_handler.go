package handlers

import (
	"net/http"

	"reqgraph/application/protocol"
	"reqgraph/application/services"
	"reqgraph/domain/suggestions"
	"reqgraph/pkg/common"
	pkgerrors "reqgraph/pkg/errors"
	"reqgraph/pkg/utils"

	"go.uber.org/zap"
)

// SuggestionHandler exposes the protocol parser and the suggestion engine
type SuggestionHandler struct {
	parser    *protocol.Parser
	turns     *services.TurnService
	processor *services.SuggestionProcessor
	errors    *pkgerrors.ErrorHandler
	logger    *zap.Logger
}

// NewSuggestionHandler creates a new suggestion handler
func NewSuggestionHandler(
	parser *protocol.Parser,
	turns *services.TurnService,
	processor *services.SuggestionProcessor,
	errors *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *SuggestionHandler {
	return &SuggestionHandler{
		parser:    parser,
		turns:     turns,
		processor: processor,
		errors:    errors,
		logger:    logger,
	}
}

// ParseRequest is the body of the parse and turn endpoints
type ParseRequest struct {
	Text       string `json:"text" validate:"required"`
	MinOptions int    `json:"minOptions,omitempty" validate:"omitempty,min=1,max=50"`
}

// ParseResponse is a parsed turn. SuggestionsError is set when a
// SUGGESTIONS block was present but unusable.
type ParseResponse struct {
	protocol.Result
	SuggestionsError string `json:"suggestionsError,omitempty"`
}

// TurnResponse is a parsed turn plus what applying it did
type TurnResponse struct {
	ParseResponse
	Report *services.Report `json:"report,omitempty"`
}

// SuggestionsResponse wraps the report of a direct suggestions call
type SuggestionsResponse struct {
	Report *services.Report `json:"report"`
}

// Parse handles POST /protocol/parse
func (h *SuggestionHandler) Parse(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeText(w, r)
	if !ok {
		return
	}

	minOptions := req.MinOptions
	if minOptions == 0 {
		minOptions = h.parser.MinOptions()
	}
	common.RespondJSON(w, r, http.StatusOK, toParseResponse(h.parser.ParseWithMinimum(req.Text, minOptions)))
}

// Turn handles POST /projects/{projectID}/turns
func (h *SuggestionHandler) Turn(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectParam(w, r, h.errors)
	if !ok {
		return
	}
	req, ok := h.decodeText(w, r)
	if !ok {
		return
	}

	result := h.turns.Ingest(r.Context(), projectID, req.Text, req.MinOptions)
	common.RespondJSON(w, r, http.StatusOK, TurnResponse{
		ParseResponse: toParseResponse(result.Result),
		Report:        result.Report,
	})
}

// Apply handles POST /projects/{projectID}/suggestions. Item failures are
// part of the report; only a rejected group is an error response.
func (h *SuggestionHandler) Apply(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectParam(w, r, h.errors)
	if !ok {
		return
	}

	var group suggestions.Group
	if err := common.ParseJSONBody(w, r, &group); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}
	if err := utils.ValidateStruct(group); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	report := h.processor.Apply(r.Context(), projectID, group)
	if report.GroupErr != nil {
		h.errors.Handle(w, r, report.GroupErr)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, SuggestionsResponse{Report: report})
}

func (h *SuggestionHandler) decodeText(w http.ResponseWriter, r *http.Request) (ParseRequest, bool) {
	var req ParseRequest
	if err := common.ParseJSONBody(w, r, &req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return req, false
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return req, false
	}
	return req, true
}

func toParseResponse(result protocol.Result) ParseResponse {
	resp := ParseResponse{Result: result}
	if result.SuggestionsErr != nil {
		resp.SuggestionsError = result.SuggestionsErr.Error()
	}
	return resp
}
