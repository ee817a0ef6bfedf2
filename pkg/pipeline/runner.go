package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/projector/pkg/cache"
	"github.com/matzehuels/projector/pkg/observability"
	"github.com/matzehuels/projector/pkg/problem"
	"github.com/matzehuels/projector/pkg/solver"
)

// Runner executes the pipeline with result caching. It holds no per-run
// state, so one Runner may serve concurrent requests.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner. A nil keyer selects DefaultKeyer, a nil
// cache disables caching and a nil logger uses log.Default.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute solves the problem and renders the requested artifacts.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)

	out := &Result{Artifacts: make(map[string][]byte)}

	solveStart := time.Now()
	res, err := r.Solve(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("solve: %w", err)
	}
	out.Result = res
	out.Stats.SolveTime = time.Since(solveStart)

	r.Logger.Info("solved problem",
		"kind", res.Kind,
		"positions", len(res.Positions),
		"unsatisfiable", len(res.Unsatisfiable),
		"cache_hit", res.CacheHit,
		"duration", out.Stats.SolveTime)

	renderStart := time.Now()
	artifacts, err := Render(ctx, opts.Problem, res, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	out.Artifacts = artifacts
	out.Stats.RenderTime = time.Since(renderStart)

	if opts.NeedsRender() {
		r.Logger.Info("rendered outputs",
			"formats", opts.Formats,
			"duration", out.Stats.RenderTime)
	}
	return out, nil
}

// Solve returns the solved problem, from cache when possible. The result
// carries a fresh run id either way.
func (r *Runner) Solve(ctx context.Context, opts Options) (*problem.Result, error) {
	if opts.Problem == nil {
		return nil, fmt.Errorf("problem is required")
	}
	r.applyLogger(&opts)
	p := opts.Problem
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	data, err := problem.Marshal(p)
	if err != nil {
		return nil, err
	}
	hash := cache.Hash(data)
	key := r.Keyer.SolutionKey(hash, cache.SolutionKeyOpts{Kind: p.Kind(), Parameters: p.Parameters})

	if !opts.Refresh {
		if cached, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			if res, err := problem.UnmarshalResult(cached); err == nil {
				res.RunID = runID
				res.CacheHit = true
				observability.Solve().OnSolveComplete(ctx, runID, stats(res), 0, nil)
				return res, nil
			}
			// Undecodable entries fall through to a fresh solve.
		} else if err != nil {
			r.Logger.Warn("cache lookup failed", "error", err)
		}
	}

	numVars, numCons := size(p)
	observability.Solve().OnSolveStart(ctx, runID, numVars, numCons)
	start := time.Now()
	res, err := p.Solve(solver.WithLogger(opts.Logger))
	elapsed := time.Since(start)
	if err != nil {
		observability.Solve().OnSolveComplete(ctx, runID, observability.SolveStats{}, elapsed, err)
		return nil, err
	}
	res.ProblemHash = hash
	observability.Solve().OnSolveComplete(ctx, runID, stats(res), elapsed, nil)

	if res.Solution.TimeLimitExceeded {
		// Wall-clock truncation depends on load; a retry may do better.
		r.Logger.Debug("not caching result stopped by time limit", "run_id", runID)
	} else if encoded, err := problem.MarshalResult(res); err == nil {
		ttl := opts.TTL
		if ttl == 0 {
			ttl = DefaultTTL
		}
		if err := r.Cache.Set(ctx, key, encoded, ttl); err != nil {
			r.Logger.Warn("cache store failed", "error", err)
		}
	}

	res.RunID = runID
	return res, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func size(p *problem.Problem) (vars, cons int) {
	if p.Nudge != nil {
		return len(p.Nudge.Items), len(p.Nudge.Constraints)
	}
	return len(p.Variables), len(p.Constraints)
}

func stats(res *problem.Result) observability.SolveStats {
	sol := res.Solution
	return observability.SolveStats{
		Algorithm:                        sol.AlgorithmUsed.String(),
		OuterProjectIterations:           sol.OuterProjectIterations,
		InnerProjectIterationsTotal:      sol.InnerProjectIterationsTotal,
		NumberOfUnsatisfiableConstraints: sol.NumberOfUnsatisfiableConstraints,
		GoalFunctionValue:                sol.GoalFunctionValue,
		LimitExceeded:                    sol.ExecutionLimitExceeded(),
		CacheHit:                         res.CacheHit,
	}
}
