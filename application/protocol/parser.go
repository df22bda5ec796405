// Package protocol extracts the machine-readable blocks a language model
// embeds in otherwise free-form assistant text.
//
// The text may carry an OPTIONS block (numbered choices for a selection UI)
// and a SUGGESTIONS block (one JSON object describing a suggestion group).
// Both are optional and both are assumed unreliable: a malformed block is
// dropped, never fatal.
package protocol

import (
	"encoding/json"
	"errors"
	"regexp"
	"sort"
	"strings"

	"reqgraph/domain/suggestions"
	pkgerrors "reqgraph/pkg/errors"

	"go.uber.org/zap"
)

const (
	OptionsMarker     = "OPTIONS:"
	SuggestionsMarker = "SUGGESTIONS:"
)

var (
	numberedLine = regexp.MustCompile(`^\d+[.)]\s*(.*)$`)

	// Greedy to the last closing brace in the text. A '}' in trailing prose
	// is swallowed into the candidate and makes it fail to parse.
	suggestionsBlock = regexp.MustCompile(`(?s)SUGGESTIONS:\s*(\{.*\})`)

	// two or more line breaks, blank lines holding only spaces included
	blankRun = regexp.MustCompile(`[ \t]*\r?\n(?:[ \t]*\r?\n)+`)
)

// Result is the outcome of parsing one assistant turn
type Result struct {
	DisplayMessage string             `json:"displayMessage"`
	Options        []string           `json:"options,omitempty"`
	Suggestions    *suggestions.Group `json:"suggestions,omitempty"`

	// SuggestionsErr holds the *errors.ProtocolParseError of a SUGGESTIONS
	// block that was present but unusable.
	SuggestionsErr error `json:"-"`
}

// Parser is a pure function over text; it keeps no state between calls
type Parser struct {
	minOptions int
	logger     *zap.Logger
}

// NewParser creates a parser that drops OPTIONS lists shorter than minOptions
func NewParser(minOptions int, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{minOptions: minOptions, logger: logger}
}

// MinOptions returns the parser's default OPTIONS threshold
func (p *Parser) MinOptions() int {
	return p.minOptions
}

// Parse extracts both blocks using the parser's default OPTIONS threshold
func (p *Parser) Parse(text string) Result {
	return p.ParseWithMinimum(text, p.minOptions)
}

// ParseWithMinimum is Parse with a call-site specific OPTIONS threshold
func (p *Parser) ParseWithMinimum(text string, minOptions int) Result {
	var (
		result Result
		spans  []span
	)

	if options, sp, ok := extractOptions(text); ok {
		spans = append(spans, sp)
		if len(options) >= minOptions && len(options) > 0 {
			result.Options = options
		} else {
			p.logger.Debug("Dropping short OPTIONS list",
				zap.Int("count", len(options)),
				zap.Int("minimum", minOptions),
			)
		}
	}

	if loc := suggestionsBlock.FindStringSubmatchIndex(text); loc != nil {
		spans = append(spans, span{start: loc[0], end: loc[1]})
		group, err := decodeGroup(text[loc[2]:loc[3]])
		if err != nil {
			p.logger.Warn("Ignoring malformed SUGGESTIONS block",
				zap.Error(err),
				zap.Int("length", loc[3]-loc[2]),
			)
			result.SuggestionsErr = err
		} else {
			result.Suggestions = group
		}
	} else if strings.Contains(text, SuggestionsMarker) {
		p.logger.Warn("SUGGESTIONS marker without a JSON object, leaving text as is",
			zap.Int("offset", strings.Index(text, SuggestionsMarker)),
		)
	}

	result.DisplayMessage = strings.TrimSpace(removeSpans(text, spans))
	return result
}

func decodeGroup(candidate string) (*suggestions.Group, error) {
	var group suggestions.Group
	if err := json.Unmarshal([]byte(candidate), &group); err != nil {
		return nil, &pkgerrors.ProtocolParseError{Marker: SuggestionsMarker, Cause: err}
	}
	if group.Category == "" {
		return nil, &pkgerrors.ProtocolParseError{
			Marker: SuggestionsMarker,
			Cause:  errors.New("missing required 'type' field"),
		}
	}
	return &group, nil
}

type span struct {
	start, end int
}

// extractOptions reads the numbered lines following the OPTIONS marker. The
// block ends at a blank line, the next marker, a line that is not numbered,
// or the end of input. Blank lines between the marker and the first option
// are skipped.
func extractOptions(text string) ([]string, span, bool) {
	idx := strings.Index(text, OptionsMarker)
	if idx < 0 {
		return nil, span{}, false
	}

	sp := span{start: idx, end: idx + len(OptionsMarker)}
	pos := nextLine(text, sp.end)
	started := false
	var options []string

	for pos < len(text) {
		lineEnd := strings.IndexByte(text[pos:], '\n')
		if lineEnd < 0 {
			lineEnd = len(text)
		} else {
			lineEnd += pos
		}
		line := strings.TrimSpace(text[pos:lineEnd])

		if line == "" {
			if started {
				break
			}
			pos = lineEnd + 1
			continue
		}
		if strings.HasPrefix(line, SuggestionsMarker) || strings.HasPrefix(line, OptionsMarker) {
			break
		}
		m := numberedLine.FindStringSubmatch(line)
		if m == nil {
			break
		}

		started = true
		if option := strings.TrimSpace(m[1]); option != "" {
			options = append(options, option)
		}
		sp.end = lineEnd
		pos = lineEnd + 1
	}

	return options, sp, true
}

// nextLine returns the index just past the newline at or after pos
func nextLine(text string, pos int) int {
	i := strings.IndexByte(text[pos:], '\n')
	if i < 0 {
		return len(text)
	}
	return pos + i + 1
}

// removeSpans cuts the spans out of text; overlapping spans are merged. The
// blank lines on either side of a cut collapse into one.
func removeSpans(text string, spans []span) string {
	if len(spans) == 0 {
		return text
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var b strings.Builder
	cursor := 0
	for _, sp := range spans {
		if sp.end <= cursor {
			continue
		}
		if sp.start > cursor {
			b.WriteString(text[cursor:sp.start])
		}
		cursor = sp.end
	}
	if cursor < len(text) {
		b.WriteString(text[cursor:])
	}
	return blankRun.ReplaceAllString(b.String(), "\n\n")
}
