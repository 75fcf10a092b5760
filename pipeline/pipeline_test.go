//nolint:testpackage
package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

var errBoom = errors.New("boom")

// fakeExecutor serves the minimal battery for a database with one Person
// label and no relationships, and records whether it was closed.
type fakeExecutor struct {
	failMandatory bool
	closed        bool
}

func (f *fakeExecutor) RunMany(_ context.Context, query string, _ map[string]any) ([]map[string]any, error) {
	switch {
	case strings.Contains(query, "db.labels"):
		if f.failMandatory {
			return nil, errBoom
		}

		return []map[string]any{{"label": "Person"}}, nil

	case strings.Contains(query, "RETURN n LIMIT"):
		return []map[string]any{{"n": map[string]any{"id": int64(1)}}}, nil

	default:
		return nil, nil
	}
}

func (f *fakeExecutor) RunOne(_ context.Context, query string, _ map[string]any) (map[string]any, error) {
	switch {
	case strings.Contains(query, "dbms.components"):
		return map[string]any{"version": "5.12.0"}, nil

	case strings.Contains(query, "count(n)"):
		return map[string]any{"count": int64(1)}, nil

	case strings.Contains(query, "properties(n)"):
		return map[string]any{"props": map[string]any{"id": int64(1)}}, nil

	default:
		return nil, nil
	}
}

func (f *fakeExecutor) Close(context.Context) error {
	f.closed = true

	return nil
}

func TestRun_WritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	exec := &fakeExecutor{}

	p := New(exec, zap.NewNop())
	p.Now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	opts := Options{
		ReportPath: filepath.Join(dir, "audit.md"),
		DotPath:    filepath.Join(dir, "graph.dot"),
		PNGPath:    filepath.Join(dir, "graph.png"),
	}

	// Rasterization may fail when graphviz is absent; the run must still
	// succeed and produce the report.
	err := p.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	dot, err := os.ReadFile(opts.DotPath)
	if err != nil {
		t.Fatalf("DOT file not written: %v", err)
	}

	if !strings.Contains(string(dot), "digraph Neo4jGraph") {
		t.Error("DOT file missing digraph declaration")
	}

	doc, err := os.ReadFile(opts.ReportPath)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}

	if !strings.Contains(string(doc), "*Generated: 2024-01-02 03:04:05*") {
		t.Error("report missing injected timestamp")
	}

	if !strings.Contains(string(doc), "### Person") {
		t.Error("report missing Person subsection")
	}

	if !exec.closed {
		t.Error("executor not closed after successful run")
	}
}

func TestRun_ClosesExecutorOnFailure(t *testing.T) {
	exec := &fakeExecutor{failMandatory: true}

	p := New(exec, zap.NewNop())

	err := p.Run(context.Background(), Options{
		ReportPath: filepath.Join(t.TempDir(), "audit.md"),
		DotPath:    filepath.Join(t.TempDir(), "graph.dot"),
		PNGPath:    filepath.Join(t.TempDir(), "graph.png"),
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("Run() error = %v, want wrapped errBoom", err)
	}

	if !exec.closed {
		t.Error("executor not closed after failed run")
	}
}
