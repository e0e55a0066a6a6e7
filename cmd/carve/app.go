package main

import (
	"context"

	"github.com/deadsy/sdfx/sdf"
	"go.uber.org/zap"

	"github.com/chazu/carve/pkg/config"
	"github.com/chazu/carve/pkg/csg"
	"github.com/chazu/carve/pkg/engine"
	"github.com/chazu/carve/pkg/kernel"
	"github.com/chazu/carve/pkg/kernel/meshkernel"
	"github.com/chazu/carve/pkg/kernel/sdfx"
	"github.com/chazu/carve/pkg/model"
	"github.com/chazu/carve/pkg/tessellate"
)

// App wires the evaluation pipeline and a geometry kernel together from one
// configuration. The CLI commands are thin wrappers around it.
type App struct {
	cfg    config.Config
	log    *zap.Logger
	engine *engine.Engine
	kernel kernel.Kernel
}

// EvalResult is the outcome of evaluating a design. Errors holds problems
// in the user's source; Meshes is empty whenever Errors is not.
type EvalResult struct {
	Meshes []*kernel.Mesh
	Errors []engine.EvalError
}

// NewApp creates an App from cfg. A nil logger disables logging.
func NewApp(cfg config.Config, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{
		cfg:    cfg,
		log:    log,
		engine: engine.NewEngine(
			engine.WithTimeout(cfg.Engine.Timeout()),
			engine.WithLogger(log.Named("engine")),
		),
		kernel: newKernel(cfg, log.Named("kernel")),
	}
}

// newKernel builds the kernel named by cfg.Tessellate.Kernel.
func newKernel(cfg config.Config, log *zap.Logger) kernel.Kernel {
	if cfg.Tessellate.Kernel == config.KernelSDF {
		return sdfx.New(
			sdfx.WithMeshCells(cfg.Tessellate.SDFCells),
			sdfx.WithLogger(log),
		)
	}
	return meshkernel.New(
		meshkernel.WithCSGOptions(cfg.CSGOptions()...),
		meshkernel.WithSDFCells(cfg.Tessellate.SDFCells),
		meshkernel.WithLogger(log),
	)
}

// Evaluate runs design source through the engine and tessellates every
// part.
func (a *App) Evaluate(source string) EvalResult {
	return a.EvaluateContext(context.Background(), source)
}

// EvaluateContext is Evaluate with the engine run bounded by ctx.
func (a *App) EvaluateContext(ctx context.Context, source string) EvalResult {
	result := EvalResult{
		Meshes: []*kernel.Mesh{},
		Errors: []engine.EvalError{},
	}

	g, evalErrs, err := a.engine.EvaluateContext(ctx, source)
	if err != nil {
		a.log.Error("evaluate failed", zap.Error(err))
		result.Errors = append(result.Errors, engine.EvalError{Message: err.Error()})
		return result
	}
	if len(evalErrs) > 0 {
		result.Errors = append(result.Errors, evalErrs...)
		return result
	}

	meshes, err := tessellate.Tessellate(g, a.kernel,
		tessellate.WithSegments(a.cfg.Tessellate.Segments),
		tessellate.WithLogger(a.log.Named("tessellate")),
	)
	if err != nil {
		a.log.Error("tessellate failed", zap.Error(err))
		result.Errors = append(result.Errors, engine.EvalError{Message: "tessellation failed: " + err.Error()})
		return result
	}
	result.Meshes = append(result.Meshes, meshes...)
	a.log.Info("evaluated", zap.Int("parts", len(meshes)), zap.Uint64("version", g.Version))
	return result
}

// Boolean applies op to two models with the configured pipeline options
// and returns the merged output together with the raw result.
func (a *App) Boolean(first, second csg.Input, op csg.Operation) (*model.Model, *csg.Result, error) {
	opts := append(a.cfg.CSGOptions(), csg.WithLogger(a.log.Named("csg")))
	res, err := csg.Compute(first, second, op, opts...)
	if err != nil {
		return nil, nil, err
	}
	merged := model.Merge(res.First, res.Second).Compact()
	a.log.Info("boolean",
		zap.Stringer("op", op),
		zap.Int("triangles", merged.TriangleCount()),
		zap.Int("cutEdges", len(res.CutEdges)),
	)
	return merged, res, nil
}

// meshModel flattens render meshes into a single model. Positions shared
// between meshes are welded by exact value.
func meshModel(meshes []*kernel.Mesh) (*model.Model, error) {
	var tris []*sdf.Triangle3
	for _, m := range meshes {
		t, err := m.Triangles()
		if err != nil {
			return nil, err
		}
		tris = append(tris, t...)
	}
	return model.FromTriangles(tris), nil
}
