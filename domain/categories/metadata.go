package categories

import (
	"encoding/json"
	"fmt"
)

// Metadata is the category-typed document stored on a node. Concrete types
// are FeatureSetMetadata, TechStackMetadata, DataEntityMetadata,
// UserFlowMetadata and RootMetadata.
type Metadata interface {
	Category() Category
	Validate() error
}

// EntryList is implemented by singleton categories, whose metadata holds a
// list of numbered entries.
type EntryList interface {
	Metadata
	Entries() []ListEntry
	SetEntries(entries []ListEntry)
}

// NamedDocument is implemented by multi-instance categories, whose metadata
// is a flat object keyed by a canonical name field.
type NamedDocument interface {
	Metadata
	Merge(name, description string, fields map[string]any)
}

// ListEntry is one numbered element of a singleton node's list. Extra holds
// any free-form fields and is flattened into the entry on the wire.
type ListEntry struct {
	ID          int
	Title       string
	Description string
	Extra       map[string]any
}

var reservedEntryKeys = map[string]bool{"id": true, "title": true, "description": true}

// NewListEntry builds an entry; extra fields never override id, title or
// description.
func NewListEntry(id int, title, description string, extra map[string]any) ListEntry {
	entry := ListEntry{ID: id, Title: title, Description: description}
	for k, v := range extra {
		if reservedEntryKeys[k] {
			continue
		}
		if entry.Extra == nil {
			entry.Extra = make(map[string]any, len(extra))
		}
		entry.Extra[k] = v
	}
	return entry
}

func (e ListEntry) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Extra)+3)
	for k, v := range e.Extra {
		out[k] = v
	}
	out["id"] = e.ID
	out["title"] = e.Title
	if e.Description != "" {
		out["description"] = e.Description
	}
	return json.Marshal(out)
}

func (e *ListEntry) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = ListEntry{}
	for k, v := range raw {
		switch k {
		case "id":
			// legacy entries may carry no numeric id; they count as 0
			if n, ok := v.(float64); ok {
				e.ID = int(n)
			}
		case "title":
			e.Title, _ = v.(string)
		case "description":
			e.Description, _ = v.(string)
		default:
			if e.Extra == nil {
				e.Extra = make(map[string]any)
			}
			e.Extra[k] = v
		}
	}
	return nil
}

// NextEntryID returns max(existing ids, 0) + 1
func NextEntryID(entries []ListEntry) int {
	highest := 0
	for _, e := range entries {
		if e.ID > highest {
			highest = e.ID
		}
	}
	return highest + 1
}

func validateEntries(field string, entries []ListEntry) error {
	seen := make(map[int]bool, len(entries))
	for i, e := range entries {
		if e.ID > 0 && seen[e.ID] {
			return fmt.Errorf("%s[%d]: duplicate id %d", field, i, e.ID)
		}
		seen[e.ID] = true
		if e.Title == "" {
			return fmt.Errorf("%s[%d]: title is required", field, i)
		}
	}
	return nil
}

// FeatureSetMetadata is the feature-set node's document
type FeatureSetMetadata struct {
	Features []ListEntry `json:"features"`
}

func (m *FeatureSetMetadata) Category() Category       { return FeatureSet }
func (m *FeatureSetMetadata) Entries() []ListEntry     { return m.Features }
func (m *FeatureSetMetadata) SetEntries(e []ListEntry) { m.Features = e }
func (m *FeatureSetMetadata) Validate() error          { return validateEntries("features", m.Features) }

// TechStackMetadata is the tech-stack node's document
type TechStackMetadata struct {
	Technologies []ListEntry `json:"technologies"`
}

func (m *TechStackMetadata) Category() Category       { return TechStack }
func (m *TechStackMetadata) Entries() []ListEntry     { return m.Technologies }
func (m *TechStackMetadata) SetEntries(e []ListEntry) { m.Technologies = e }
func (m *TechStackMetadata) Validate() error          { return validateEntries("technologies", m.Technologies) }

// Document is the flat object shared by multi-instance categories
type Document struct {
	Name        string
	Description string
	Attributes  map[string]any
}

func (d Document) marshal(nameKey string) ([]byte, error) {
	out := make(map[string]any, len(d.Attributes)+2)
	for k, v := range d.Attributes {
		out[k] = v
	}
	out[nameKey] = d.Name
	if d.Description != "" {
		out["description"] = d.Description
	}
	return json.Marshal(out)
}

func (d *Document) unmarshal(nameKey string, data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = Document{}
	d.merge(nameKey, "", "", raw)
	return nil
}

// merge shallow-merges the update, keeping fields the update does not name
func (d *Document) merge(nameKey, name, description string, fields map[string]any) {
	if name != "" {
		d.Name = name
	}
	if description != "" {
		d.Description = description
	}
	for k, v := range fields {
		switch k {
		case nameKey:
			if s, ok := v.(string); ok {
				d.Name = s
			}
		case "description":
			if s, ok := v.(string); ok {
				d.Description = s
			}
		default:
			if d.Attributes == nil {
				d.Attributes = make(map[string]any)
			}
			d.Attributes[k] = v
		}
	}
}

// DataEntityMetadata is a data-entity node's document
type DataEntityMetadata struct {
	Document
}

func (m *DataEntityMetadata) Category() Category { return DataEntity }
func (m *DataEntityMetadata) Validate() error    { return nil }
func (m *DataEntityMetadata) Merge(name, description string, fields map[string]any) {
	m.merge("entityName", name, description, fields)
}
func (m DataEntityMetadata) MarshalJSON() ([]byte, error) { return m.marshal("entityName") }
func (m *DataEntityMetadata) UnmarshalJSON(data []byte) error {
	return m.unmarshal("entityName", data)
}

// UserFlowMetadata is a user-flow node's document
type UserFlowMetadata struct {
	Document
}

func (m *UserFlowMetadata) Category() Category { return UserFlow }
func (m *UserFlowMetadata) Validate() error    { return nil }
func (m *UserFlowMetadata) Merge(name, description string, fields map[string]any) {
	m.merge("flowName", name, description, fields)
}
func (m UserFlowMetadata) MarshalJSON() ([]byte, error) { return m.marshal("flowName") }
func (m *UserFlowMetadata) UnmarshalJSON(data []byte) error {
	return m.unmarshal("flowName", data)
}

// RootMetadata is the anchor node's document. The engine never writes it.
type RootMetadata struct {
	Document
}

func (m *RootMetadata) Category() Category          { return Root }
func (m *RootMetadata) Validate() error             { return nil }
func (m RootMetadata) MarshalJSON() ([]byte, error) { return m.marshal("projectName") }
func (m *RootMetadata) UnmarshalJSON(data []byte) error {
	return m.unmarshal("projectName", data)
}

// NewMetadataFor returns an empty shell for any category, root included
func NewMetadataFor(category Category) (Metadata, error) {
	if category == Root {
		return &RootMetadata{}, nil
	}
	d, err := Classify(category)
	if err != nil {
		return nil, err
	}
	return d.NewMetadata(), nil
}

// EncodeMetadata converts typed metadata to the generic document the stores
// persist.
func EncodeMetadata(m Metadata) (map[string]any, error) {
	if m == nil {
		return map[string]any{}, nil
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s metadata: %w", m.Category(), err)
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// DecodeMetadata validates a stored document against the category's schema
func DecodeMetadata(category Category, doc map[string]any) (Metadata, error) {
	shell, err := NewMetadataFor(category)
	if err != nil {
		return nil, err
	}
	if len(doc) == 0 {
		return shell, nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return DecodeMetadataJSON(category, raw)
}

// DecodeMetadataJSON is DecodeMetadata for raw JSON
func DecodeMetadataJSON(category Category, raw []byte) (Metadata, error) {
	shell, err := NewMetadataFor(category)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return shell, nil
	}
	if err := json.Unmarshal(raw, shell); err != nil {
		return nil, fmt.Errorf("decode %s metadata: %w", category, err)
	}
	if err := shell.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s metadata: %w", category, err)
	}
	return shell, nil
}

// Clone returns a deep copy through the wire form
func Clone(m Metadata) (Metadata, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return DecodeMetadataJSON(m.Category(), raw)
}
