// Package pipeline sequences one full audit run: schema extraction, diagram
// synthesis, rasterization, and report generation.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	xray "github.com/t-brain/neo4j-xray"
	"github.com/t-brain/neo4j-xray/diagram"
	"github.com/t-brain/neo4j-xray/extract"
	"github.com/t-brain/neo4j-xray/report"
)

// Options name the output artifacts of a run.
type Options struct {
	ReportPath string
	DotPath    string
	PNGPath    string
}

// Pipeline owns the executor connection for the duration of one audit run
// and releases it on every exit path.
type Pipeline struct {
	exec   xray.Executor
	logger *zap.Logger

	// Now supplies the report timestamp. Defaults to time.Now.
	Now func() time.Time
}

// New creates a Pipeline that takes ownership of exec. Run closes it.
func New(exec xray.Executor, logger *zap.Logger) *Pipeline {
	return &Pipeline{exec: exec, logger: logger, Now: time.Now}
}

// Run extracts the schema, then writes the DOT diagram, the rendered PNG,
// and the markdown report. Rasterization failure is reported and skipped;
// everything else aborts the run. The executor is closed before Run
// returns, whatever the outcome.
func (p *Pipeline) Run(ctx context.Context, opts Options) (err error) {
	defer func() {
		cerr := p.exec.Close(ctx)
		if cerr != nil && err == nil {
			err = cerr
		}
	}()

	p.logger.Info("extracting schema")

	model, err := extract.New(p.exec, p.logger).ExtractAll(ctx)
	if err != nil {
		return err
	}

	p.logger.Info("generating graph diagram", zap.String("path", opts.DotPath))

	dot := diagram.Generate(model.Nodes, model.Relationships)

	err = os.WriteFile(opts.DotPath, dot, 0o644)
	if err != nil {
		return fmt.Errorf("pipeline: failed to write DOT file: %w", err)
	}

	err = diagram.RenderPNG(ctx, opts.DotPath, opts.PNGPath)
	if err != nil {
		p.logger.Warn("PNG rendering failed", zap.Error(err))
	} else {
		p.logger.Info("PNG diagram generated", zap.String("path", opts.PNGPath))
	}

	p.logger.Info("generating report", zap.String("path", opts.ReportPath))

	generator := report.NewGenerator(model)
	generator.Now = p.Now

	doc := generator.Generate(opts.DotPath, opts.PNGPath)

	err = os.WriteFile(opts.ReportPath, []byte(doc), 0o644)
	if err != nil {
		return fmt.Errorf("pipeline: failed to write report: %w", err)
	}

	return nil
}
