// Package suggestions defines the ephemeral unit of work extracted from one
// assistant turn. Groups are never persisted.
package suggestions

import "reqgraph/domain/categories"

// Item is one suggestion inside a group
type Item struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	ActionLabel string         `json:"actionLabel,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Group is a category tag plus an ordered list of items
type Group struct {
	Category categories.Category `json:"type" validate:"required"`
	Items    []Item              `json:"items"`
}

// Titles returns the item titles in order
func (g Group) Titles() []string {
	titles := make([]string, len(g.Items))
	for i, item := range g.Items {
		titles[i] = item.Title
	}
	return titles
}
