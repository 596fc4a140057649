// Package ontology implements the static concept catalog and the rule-based
// classifier that scores free-form content against it. The catalog is
// immutable once built; hot reload swaps in a whole new catalog atomically.
package ontology

import (
	"fmt"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// ValueType enumerates the value types a concept property may declare.
type ValueType string

const (
	ValueString  ValueType = "string"
	ValueNumber  ValueType = "number"
	ValueBoolean ValueType = "boolean"
	ValueDate    ValueType = "date"
	ValueList    ValueType = "list"
)

// RelationType enumerates the directed relationship types between concepts.
type RelationType string

const (
	RelIsA        RelationType = "is_a"
	RelPartOf     RelationType = "part_of"
	RelRelatesTo  RelationType = "relates_to"
	RelCauses     RelationType = "causes"
	RelEnables    RelationType = "enables"
	RelHas        RelationType = "has"
	RelInvolves   RelationType = "involves"
	RelInfluences RelationType = "influences"
	RelMeasures   RelationType = "measures"
)

// Constraints narrow the legal values of a property.
type Constraints struct {
	Values []string `yaml:"values,omitempty" json:"values,omitempty"`
	Min    *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max    *float64 `yaml:"max,omitempty" json:"max,omitempty"`
}

// Property declares a named, typed attribute a concept may carry.
type Property struct {
	Name        string      `yaml:"name" json:"name"`
	ValueType   ValueType   `yaml:"value_type" json:"value_type"`
	Required    bool        `yaml:"required,omitempty" json:"required,omitempty"`
	Constraints Constraints `yaml:"constraints,omitempty" json:"constraints,omitempty"`
}

// Concept is a single catalog entry: a nameable idea with synonyms, example
// phrases, and declared properties used by both the classifier and the
// property extractors.
type Concept struct {
	ID          string     `yaml:"id" json:"id"`
	Name        string     `yaml:"name" json:"name"`
	Domain      string     `yaml:"domain" json:"domain"`
	Category    string     `yaml:"category" json:"category"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Properties  []Property `yaml:"properties,omitempty" json:"properties,omitempty"`
	Synonyms    []string   `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`
	Examples    []string   `yaml:"examples,omitempty" json:"examples,omitempty"`
}

// PropertyNames returns the declared property names in order.
func (c *Concept) PropertyNames() []string {
	names := make([]string, len(c.Properties))
	for i, p := range c.Properties {
		names[i] = p.Name
	}
	return names
}

// Relationship is a typed, weighted edge between two concepts. Bidirectional
// relationships are materialized as two directed edges when the catalog is
// built.
type Relationship struct {
	SourceID      string       `yaml:"source" json:"source_id"`
	TargetID      string       `yaml:"target" json:"target_id"`
	Type          RelationType `yaml:"type" json:"type"`
	Strength      float64      `yaml:"strength" json:"strength"`
	Bidirectional bool         `yaml:"bidirectional,omitempty" json:"bidirectional,omitempty"`
}

// Edge is a materialized directed relationship from one concept to another.
type Edge struct {
	TargetID string
	Type     RelationType
	Strength float64
}

// Catalog is the validated, indexed concept catalog. It is read-only after
// construction; no locking is required to use it concurrently.
type Catalog struct {
	concepts   []Concept
	byID       map[string]*Concept
	byDomain   map[string][]*Concept
	byCategory map[string][]*Concept
	edges      map[string][]Edge
}

// NewCatalog validates the concepts and relationships and builds the reverse
// indices. It returns an error on duplicate concept IDs, relationships that
// reference unknown concepts, or strengths outside [0,1].
func NewCatalog(concepts []Concept, rels []Relationship) (*Catalog, error) {
	cat := &Catalog{
		concepts:   concepts,
		byID:       make(map[string]*Concept, len(concepts)),
		byDomain:   make(map[string][]*Concept),
		byCategory: make(map[string][]*Concept),
		edges:      make(map[string][]Edge),
	}

	for i := range concepts {
		c := &cat.concepts[i]
		if c.ID == "" {
			return nil, fmt.Errorf("ontology: concept %d has empty id", i)
		}
		if _, dup := cat.byID[c.ID]; dup {
			return nil, fmt.Errorf("ontology: duplicate concept id %q", c.ID)
		}
		cat.byID[c.ID] = c
		cat.byDomain[c.Domain] = append(cat.byDomain[c.Domain], c)
		cat.byCategory[c.Category] = append(cat.byCategory[c.Category], c)
	}

	for _, rel := range rels {
		if _, ok := cat.byID[rel.SourceID]; !ok {
			return nil, fmt.Errorf("ontology: relationship references unknown source %q", rel.SourceID)
		}
		if _, ok := cat.byID[rel.TargetID]; !ok {
			return nil, fmt.Errorf("ontology: relationship references unknown target %q", rel.TargetID)
		}
		if rel.Strength < 0 || rel.Strength > 1 {
			return nil, fmt.Errorf("ontology: relationship %s->%s strength %f outside [0,1]",
				rel.SourceID, rel.TargetID, rel.Strength)
		}
		cat.edges[rel.SourceID] = append(cat.edges[rel.SourceID], Edge{
			TargetID: rel.TargetID, Type: rel.Type, Strength: rel.Strength,
		})
		if rel.Bidirectional {
			cat.edges[rel.TargetID] = append(cat.edges[rel.TargetID], Edge{
				TargetID: rel.SourceID, Type: rel.Type, Strength: rel.Strength,
			})
		}
	}

	return cat, nil
}

// Concept looks up a concept by ID.
func (c *Catalog) Concept(id string) (*Concept, bool) {
	concept, ok := c.byID[id]
	return concept, ok
}

// Concepts returns all concepts in catalog order.
func (c *Catalog) Concepts() []Concept {
	return c.concepts
}

// ByDomain returns the concepts registered under the given domain.
func (c *Catalog) ByDomain(domain string) []*Concept {
	return c.byDomain[domain]
}

// ByCategory returns the concepts registered under the given category.
func (c *Catalog) ByCategory(category string) []*Concept {
	return c.byCategory[category]
}

// Edges returns the outgoing materialized edges for a concept.
func (c *Catalog) Edges(conceptID string) []Edge {
	return c.edges[conceptID]
}

// Len returns the number of concepts.
func (c *Catalog) Len() int {
	return len(c.concepts)
}

// catalogFile is the YAML shape of an on-disk catalog.
type catalogFile struct {
	Concepts      []Concept      `yaml:"concepts"`
	Relationships []Relationship `yaml:"relationships"`
}

// LoadFile reads a YAML catalog from disk and builds it.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ontology: read catalog %s: %w", path, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("ontology: parse catalog %s: %w", path, err)
	}
	if len(file.Concepts) == 0 {
		return nil, fmt.Errorf("ontology: catalog %s contains no concepts", path)
	}

	return NewCatalog(file.Concepts, file.Relationships)
}

// Store holds the active catalog and supports atomic replacement, so the
// classifier can keep a stable reference while a watcher reloads the file.
type Store struct {
	current atomic.Pointer[Catalog]
}

// NewStore creates a store seeded with the given catalog.
func NewStore(cat *Catalog) *Store {
	s := &Store{}
	s.current.Store(cat)
	return s
}

// Catalog returns the active catalog. The returned value is immutable.
func (s *Store) Catalog() *Catalog {
	return s.current.Load()
}

// Replace atomically swaps in a new catalog. In-flight classifications keep
// using the catalog they started with.
func (s *Store) Replace(cat *Catalog) {
	s.current.Store(cat)
}
