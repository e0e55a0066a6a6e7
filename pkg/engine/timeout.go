package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chazu/carve/pkg/graph"
)

// EvalTimeout is the default hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

var (
	// ErrTimeout is returned when an evaluation outlives the engine timeout.
	ErrTimeout = errors.New("evaluation timed out")

	// ErrSuperseded is returned to a caller whose evaluation finished after
	// a newer one had started on the same engine.
	ErrSuperseded = errors.New("evaluation superseded by newer request")
)

// evalResult carries one sandbox run back to the waiting caller.
type evalResult struct {
	graph  *graph.DesignGraph
	errors []EvalError
	err    error
}

// await blocks until ch delivers, the timeout elapses or ctx is done. A
// sandbox that is still running after await gives up keeps going; its
// result lands in the buffered channel and is dropped.
func (e *Engine) await(ctx context.Context, ch <-chan evalResult, gen uint64) (*graph.DesignGraph, []EvalError, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	select {
	case res := <-ch:
		if current := e.currentGeneration(); gen != current {
			e.log.Debug("discarding stale evaluation", zap.Uint64("generation", gen), zap.Uint64("current", current))
			return nil, nil, ErrSuperseded
		}
		return res.graph, res.errors, res.err

	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, nil, fmt.Errorf("%w after %s", ErrTimeout, e.timeout)
		}
		return nil, nil, ctx.Err()
	}
}

func (e *Engine) currentGeneration() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}
