// Package neo4j provides an xray.Executor backed by the official Neo4j Go
// driver.
package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	xray "github.com/t-brain/neo4j-xray"
)

// Connector implements xray.Executor over a single driver session. The
// whole audit run is sequential, so one read session is enough.
type Connector struct {
	driver  neo4j.DriverWithContext
	session neo4j.SessionWithContext
}

// Connect creates a driver, verifies connectivity, and opens the session
// used for the rest of the run.
func Connect(ctx context.Context, uri, username, password, database string) (*Connector, error) {
	auth := neo4j.NoAuth()
	if username != "" {
		auth = neo4j.BasicAuth(username, password, "")
	}

	driver, err := neo4j.NewDriverWithContext(uri, auth)
	if err != nil {
		return nil, fmt.Errorf("neo4j: failed to create driver: %w", err)
	}

	err = driver.VerifyConnectivity(ctx)
	if err != nil {
		_ = driver.Close(ctx)

		return nil, fmt.Errorf("neo4j: failed to connect: %w", err)
	}

	sessionCfg := neo4j.SessionConfig{
		AccessMode: neo4j.AccessModeRead,
	}
	if database != "" {
		sessionCfg.DatabaseName = database
	}

	return &Connector{
		driver:  driver,
		session: driver.NewSession(ctx, sessionCfg),
	}, nil
}

// RunMany executes a Cypher query and returns all result rows. Graph values
// (nodes, relationships) are reduced to their property bags so callers see
// plain maps and primitives only.
func (c *Connector) RunMany(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	result, err := c.session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("neo4j: query execution failed: %w", err)
	}

	records, err := result.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("neo4j: failed to collect results: %w", err)
	}

	rows := make([]map[string]any, len(records))
	for i, record := range records {
		rows[i] = recordToMap(record)
	}

	return rows, nil
}

// RunOne executes a Cypher query and returns the first result row, or nil
// when the result is empty.
func (c *Connector) RunOne(ctx context.Context, query string, params map[string]any) (map[string]any, error) {
	rows, err := c.RunMany(ctx, query, params)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, nil
	}

	return rows[0], nil
}

// Close releases the session and the driver.
func (c *Connector) Close(ctx context.Context) error {
	if c.session != nil {
		err := c.session.Close(ctx)
		if err != nil {
			return fmt.Errorf("neo4j: failed to close session: %w", err)
		}
	}

	if c.driver != nil {
		err := c.driver.Close(ctx)
		if err != nil {
			return fmt.Errorf("neo4j: failed to close driver: %w", err)
		}
	}

	return nil
}

// recordToMap converts a Neo4j record into a plain key/value map.
func recordToMap(record *neo4j.Record) map[string]any {
	row := make(map[string]any, len(record.Keys))

	for i, key := range record.Keys {
		row[key] = normalizeValue(record.Values[i])
	}

	return row
}

// normalizeValue reduces driver graph types to property bags, recursing
// into lists and maps.
func normalizeValue(value any) any {
	switch v := value.(type) {
	case dbtype.Node:
		return normalizeMap(v.Props)

	case dbtype.Relationship:
		return normalizeMap(v.Props)

	case map[string]any:
		return normalizeMap(v)

	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalizeValue(item)
		}

		return out

	default:
		return value
	}
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}

	return out
}

// Compile-time interface check.
var _ xray.Executor = (*Connector)(nil)
