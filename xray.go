// Package xray models the schema of a Neo4j database for auditing.
//
// The audit pipeline extracts a SchemaModel through an Executor, then
// projects it into a Graphviz entity-relationship diagram and a markdown
// report. The model is built in a single pass and never mutated afterwards;
// both renderings read it as-is.
package xray

import "context"

// SampleLimit caps the number of sample nodes fetched per label.
const SampleLimit = 10

// Executor runs Cypher statements against a database. The extractor issues
// a fixed battery of introspection queries through this interface; the
// pipeline owns the underlying connection and releases it via Close.
type Executor interface {
	// RunMany executes a query and returns every result row.
	RunMany(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)

	// RunOne executes a query and returns the first result row, or nil
	// when the result is empty.
	RunOne(ctx context.Context, query string, params map[string]any) (map[string]any, error)

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}

// Kind classifies a sampled property value by its runtime type.
type Kind string

// Property value kinds.
const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindFloat   Kind = "float"
	KindBoolean Kind = "boolean"
	KindList    Kind = "list"
	KindMap     Kind = "map"
	KindUnknown Kind = "unknown"
)

// KindOf maps one sampled value to its Kind. Classification is decided from
// a single value, so labels whose entities store different types under the
// same property name are reported by whichever entity was sampled first.
// A nil value classifies as KindUnknown.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindUnknown
	case string:
		return KindString
	case int64, int32, int:
		return KindInteger
	case float64, float32:
		return KindFloat
	case bool:
		return KindBoolean
	case []any:
		return KindList
	case map[string]any:
		return KindMap
	default:
		return KindUnknown
	}
}

// PropertyDescriptor describes one property of a node label, inferred from
// a single sampled entity.
type PropertyDescriptor struct {
	Name         string
	InferredType Kind

	// PrimaryKey is a naming heuristic: true iff the property is named
	// "id". Constraint metadata is fetched separately but deliberately
	// does not feed this flag.
	PrimaryKey bool
}

// NodeType describes one node label. A label with no matching nodes is
// still listed, with a zero count and no properties.
type NodeType struct {
	Label      string
	NodeCount  int64
	Properties []PropertyDescriptor
}

// RelationshipType describes one relationship type. StartLabels and
// EndLabels are the label sets of a single sampled relationship's
// endpoints, not the union across all relationships of the type. Types
// with no matching relationships are omitted from the model entirely.
type RelationshipType struct {
	Type        string
	StartLabels []string
	EndLabels   []string
	Count       int64
	Properties  map[string]any
}

// SchemaModel is the full audit snapshot of a database. Indexes,
// Constraints, and Procedures are pass-through rows from the server,
// not normalized further.
type SchemaModel struct {
	Version string
	DBName  string
	DBSize  string

	Nodes         []NodeType
	Relationships []RelationshipType

	// Samples holds up to SampleLimit property bags per label. Every key
	// also appears as a label in Nodes.
	Samples map[string][]map[string]any

	Indexes     []map[string]any
	Constraints []map[string]any
	Procedures  []map[string]any
}
