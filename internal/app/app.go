// Package app wires the pieces of the xlac tool together: it loads a
// computation definition, compiles it into a tagged cluster, and reports
// what was built.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gmarzioz/tensorflow/graph"
	"github.com/gmarzioz/tensorflow/internal/ctxlog"
	"github.com/gmarzioz/tensorflow/internal/hclgraph"
	"github.com/gmarzioz/tensorflow/xla"
)

// App is the composed application.
type App struct {
	out io.Writer
	cfg *Config
}

// New creates an App writing its report to outW.
func New(outW io.Writer, cfg *Config) *App {
	return &App{out: outW, cfg: cfg}
}

// Run loads the definition, compiles it, and writes a report of the
// resulting cluster.
func (a *App) Run(ctx context.Context) error {
	logger := newLogger(a.cfg.LogLevel, a.cfg.LogFormat, os.Stderr)
	ctx = ctxlog.WithLogger(ctx, logger)

	def, err := hclgraph.Load(ctx, a.cfg.FilePath)
	if err != nil {
		return err
	}

	g := graph.New()
	result, err := xla.Compile(ctx, g, def.Computation(g), nil)
	if err != nil {
		return err
	}

	clusterOps := 0
	clusterName := ""
	for _, op := range g.Operations() {
		if tag, ok := op.Attr(xla.CompileAttr); ok {
			clusterOps++
			clusterName = tag
		}
	}
	logger.Info("compiled cluster built",
		"cluster", clusterName, "cluster_ops", clusterOps, "total_ops", len(g.Operations()))

	switch r := result.(type) {
	case []*graph.Value:
		for i, v := range r {
			fmt.Fprintf(a.out, "output %d: %s (%s)\n", i, v.Name(), v.DType())
		}
	case *graph.Operation:
		fmt.Fprintf(a.out, "no value outputs; trigger operation: %s\n", r.Name())
	default:
		fmt.Fprintf(a.out, "outputs: %v\n", r)
	}
	return nil
}
