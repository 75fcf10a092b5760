// Package extract runs the introspection query battery against an executor
// and assembles the audit schema model.
package extract

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	xray "github.com/t-brain/neo4j-xray"
)

// Query battery. The mandatory queries (version, database name and size,
// labels, relationship types, per-label counts and properties) propagate
// executor errors; the optional facets (samples, indexes, constraints,
// procedures) degrade to empty results with a warning.
const (
	versionQuery = "CALL dbms.components() YIELD name, versions WHERE name = 'Neo4j Kernel' RETURN versions[0] AS version"

	dbNameQuery = "CALL db.info() YIELD name RETURN name"

	dbSizeQuery = `CALL dbms.database.size() YIELD database, totalSize
WHERE database = $db_name
RETURN totalSize`

	labelsQuery = "CALL db.labels() YIELD label RETURN label ORDER BY label"

	relTypesQuery = "CALL db.relationshipTypes() YIELD relationshipType RETURN relationshipType ORDER BY relationshipType"

	indexesQuery = `SHOW INDEXES
YIELD name, labelsOrTypes, properties, type, uniqueness, entityType
RETURN * ORDER BY name`

	constraintsQuery = `SHOW CONSTRAINTS
YIELD name, labelsOrTypes, properties, type, entityType
RETURN * ORDER BY name`

	// Procedures are allow-listed to the known extension namespaces.
	proceduresQuery = `CALL dbms.procedures()
YIELD name, signature, description
WHERE name STARTS WITH 'apoc' OR name STARTS WITH 'algo' OR name STARTS WITH 'gds'
RETURN name, signature, description
ORDER BY name`
)

// No-row sentinels for the database-info queries.
const (
	unknownValue  = "Unknown"
	defaultDBName = "neo4j"
)

// Extractor assembles a SchemaModel from a fixed battery of introspection
// queries, issued sequentially over one executor.
type Extractor struct {
	exec   xray.Executor
	logger *zap.Logger
}

// New creates an Extractor. The logger receives a warning for every
// optional facet that fails.
func New(exec xray.Executor, logger *zap.Logger) *Extractor {
	return &Extractor{exec: exec, logger: logger}
}

// ExtractAll runs the full battery and returns a complete model. Optional
// facets may have degraded to empty collections, but the model itself is
// never partial: every field is populated before it returns.
func (e *Extractor) ExtractAll(ctx context.Context) (*xray.SchemaModel, error) {
	model := &xray.SchemaModel{}

	err := e.extractInfo(ctx, model)
	if err != nil {
		return nil, err
	}

	model.Nodes, err = e.extractNodes(ctx)
	if err != nil {
		return nil, err
	}

	model.Relationships, err = e.extractRelationships(ctx)
	if err != nil {
		return nil, err
	}

	model.Samples = e.extractSamples(ctx, model.Nodes)
	model.Indexes = e.extractFacet(ctx, "indexes", indexesQuery)
	model.Constraints = e.extractFacet(ctx, "constraints", constraintsQuery)
	model.Procedures = e.extractFacet(ctx, "procedures", proceduresQuery)

	return model, nil
}

// extractInfo fills version, database name, and size. Each falls back to a
// sentinel when the server returns no row.
func (e *Extractor) extractInfo(ctx context.Context, model *xray.SchemaModel) error {
	row, err := e.exec.RunOne(ctx, versionQuery, nil)
	if err != nil {
		return fmt.Errorf("extract: failed to query server version: %w", err)
	}

	model.Version = stringField(row, "version", unknownValue)

	row, err = e.exec.RunOne(ctx, dbNameQuery, nil)
	if err != nil {
		return fmt.Errorf("extract: failed to query database name: %w", err)
	}

	model.DBName = stringField(row, "name", defaultDBName)

	row, err = e.exec.RunOne(ctx, dbSizeQuery, map[string]any{"db_name": model.DBName})
	if err != nil {
		return fmt.Errorf("extract: failed to query database size: %w", err)
	}

	model.DBSize = stringField(row, "totalSize", unknownValue)

	return nil
}

// extractNodes enumerates all labels and describes each one from a single
// sampled entity. A label with no matching nodes is kept with a zero count
// and an empty property list.
//
// PrimaryKey is decided by the "id" naming heuristic alone; the separately
// fetched constraint rows are reported but never consulted here, so the
// audit stays comparable across servers where SHOW CONSTRAINTS is
// unavailable.
func (e *Extractor) extractNodes(ctx context.Context) ([]xray.NodeType, error) {
	rows, err := e.exec.RunMany(ctx, labelsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("extract: failed to list labels: %w", err)
	}

	nodes := make([]xray.NodeType, 0, len(rows))

	for _, row := range rows {
		label, ok := row["label"].(string)
		if !ok {
			continue
		}

		countRow, err := e.exec.RunOne(ctx, fmt.Sprintf("MATCH (n:%s) RETURN count(n) AS count", quoteIdent(label)), nil)
		if err != nil {
			return nil, fmt.Errorf("extract: failed to count label %s: %w", label, err)
		}

		props, err := e.extractNodeProperties(ctx, label)
		if err != nil {
			return nil, err
		}

		nodes = append(nodes, xray.NodeType{
			Label:      label,
			NodeCount:  intField(countRow, "count"),
			Properties: props,
		})
	}

	return nodes, nil
}

// extractNodeProperties infers the property set of a label from the first
// matched entity. Property names are ordered lexicographically so the
// renderings are deterministic.
func (e *Extractor) extractNodeProperties(ctx context.Context, label string) ([]xray.PropertyDescriptor, error) {
	query := fmt.Sprintf("MATCH (n:%s) RETURN properties(n) AS props LIMIT 1", quoteIdent(label))

	row, err := e.exec.RunOne(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("extract: failed to fetch properties of label %s: %w", label, err)
	}

	props, _ := row["props"].(map[string]any)
	if len(props) == 0 {
		return []xray.PropertyDescriptor{}, nil
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}

	sort.Strings(names)

	descriptors := make([]xray.PropertyDescriptor, 0, len(names))
	for _, name := range names {
		descriptors = append(descriptors, xray.PropertyDescriptor{
			Name:         name,
			InferredType: xray.KindOf(props[name]),
			PrimaryKey:   name == "id",
		})
	}

	return descriptors, nil
}

// extractRelationships describes every relationship type that has at least
// one matching relationship. Types without matches are omitted entirely,
// unlike labels.
func (e *Extractor) extractRelationships(ctx context.Context) ([]xray.RelationshipType, error) {
	rows, err := e.exec.RunMany(ctx, relTypesQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("extract: failed to list relationship types: %w", err)
	}

	relationships := make([]xray.RelationshipType, 0, len(rows))

	for _, row := range rows {
		relType, ok := row["relationshipType"].(string)
		if !ok {
			continue
		}

		endpointQuery := fmt.Sprintf(`MATCH (start)-[r:%s]->(end)
RETURN labels(start) AS start_labels, labels(end) AS end_labels, count(r) AS relationship_count
LIMIT 1`, quoteIdent(relType))

		endpoints, err := e.exec.RunOne(ctx, endpointQuery, nil)
		if err != nil {
			return nil, fmt.Errorf("extract: failed to fetch endpoints of relationship %s: %w", relType, err)
		}

		if endpoints == nil {
			continue
		}

		propsRow, err := e.exec.RunOne(ctx, fmt.Sprintf("MATCH ()-[r:%s]->() RETURN properties(r) AS props LIMIT 1", quoteIdent(relType)), nil)
		if err != nil {
			return nil, fmt.Errorf("extract: failed to fetch properties of relationship %s: %w", relType, err)
		}

		props, _ := propsRow["props"].(map[string]any)
		if props == nil {
			props = map[string]any{}
		}

		countRow, err := e.exec.RunOne(ctx, fmt.Sprintf("MATCH ()-[r:%s]->() RETURN count(r) AS count", quoteIdent(relType)), nil)
		if err != nil {
			return nil, fmt.Errorf("extract: failed to count relationship %s: %w", relType, err)
		}

		relationships = append(relationships, xray.RelationshipType{
			Type:        relType,
			StartLabels: stringListField(endpoints, "start_labels"),
			EndLabels:   stringListField(endpoints, "end_labels"),
			Count:       intField(countRow, "count"),
			Properties:  props,
		})
	}

	return relationships, nil
}

// extractSamples fetches up to SampleLimit entities per label. A failure
// for one label degrades that label's samples to an empty list without
// touching the others.
func (e *Extractor) extractSamples(ctx context.Context, nodes []xray.NodeType) map[string][]map[string]any {
	samples := make(map[string][]map[string]any, len(nodes))

	for _, node := range nodes {
		query := fmt.Sprintf("MATCH (n:%s) RETURN n LIMIT %d", quoteIdent(node.Label), xray.SampleLimit)

		rows, err := e.exec.RunMany(ctx, query, nil)
		if err != nil {
			e.logger.Warn("node sampling failed",
				zap.String("label", node.Label),
				zap.Error(err))

			samples[node.Label] = []map[string]any{}

			continue
		}

		records := make([]map[string]any, 0, len(rows))

		for _, row := range rows {
			if bag, ok := row["n"].(map[string]any); ok {
				records = append(records, bag)
			}
		}

		samples[node.Label] = records
	}

	return samples
}

// extractFacet fetches one optional pass-through facet. Failures degrade to
// an empty result.
func (e *Extractor) extractFacet(ctx context.Context, facet, query string) []map[string]any {
	rows, err := e.exec.RunMany(ctx, query, nil)
	if err != nil {
		e.logger.Warn("introspection facet unavailable",
			zap.String("facet", facet),
			zap.Error(err))

		return []map[string]any{}
	}

	return rows
}

// quoteIdent backtick-quotes a label or relationship type for interpolation
// into a Cypher pattern.
func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func stringField(row map[string]any, key, fallback string) string {
	value, ok := row[key]
	if !ok || value == nil {
		return fallback
	}

	return fmt.Sprintf("%v", value)
}

func intField(row map[string]any, key string) int64 {
	switch v := row[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

func stringListField(row map[string]any, key string) []string {
	items, _ := row[key].([]any)

	out := make([]string, 0, len(items))

	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}

	return out
}
