package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

const (
	// penaltyWeight scales 0.5*||x - P(x)||^2, which keeps iterates close to
	// the feasible set where the projected objective is flat.
	penaltyWeight = 1.0

	// feasibilityTolerance absorbs rounding in maxWeight * n (e.g. 3 * (1/3)).
	feasibilityTolerance = 1e-12

	gradientThreshold = 1e-10
	maxIterations     = 20000
)

// SharpeOptimizer finds the long-only allocation with a per-asset cap that
// maximizes the Sharpe ratio.
//
// Mathematical formulation:
//   - R(w) = 252 * sum(mean_i * w_i)
//   - V(w) = sqrt(w' C w), C annualized
//   - maximize S(w) = (R(w) - r_f) / V(w)
//
// Constraints:
//   - sum(w) = 1
//   - 0 <= w_i <= maxWeight
//
// The constraints are enforced by projection: the solver works on an
// unconstrained x and the objective is evaluated at P(x), the Euclidean
// projection onto the capped simplex. Every candidate is therefore feasible
// and the returned weights satisfy both constraints exactly (up to rounding).
type SharpeOptimizer struct {
	log zerolog.Logger
}

// NewSharpeOptimizer creates a new max-Sharpe optimizer.
func NewSharpeOptimizer(log zerolog.Logger) *SharpeOptimizer {
	return &SharpeOptimizer{
		log: log.With().Str("component", "sharpe_optimizer").Logger(),
	}
}

// Optimize solves the max-Sharpe problem with a silent logger.
func Optimize(logReturns *LogReturnMatrix, cov mat.Symmetric, riskFreeRate, maxWeightPerAsset float64) (*OptimizationResult, error) {
	return NewSharpeOptimizer(zerolog.Nop()).Optimize(logReturns, cov, riskFreeRate, maxWeightPerAsset)
}

// Optimize returns the weights maximizing the Sharpe ratio from the uniform
// start, together with the return, volatility and Sharpe ratio recomputed at
// those weights.
func (so *SharpeOptimizer) Optimize(
	logReturns *LogReturnMatrix,
	cov mat.Symmetric,
	riskFreeRate float64,
	maxWeightPerAsset float64,
) (*OptimizationResult, error) {
	_, n := logReturns.Dims()
	if n == 0 {
		return nil, InfeasibleConstraintsError{MaxWeight: maxWeightPerAsset, Assets: 0}
	}

	if cov == nil {
		return nil, DimensionMismatchError{Assets: n}
	}
	if r, c := cov.Dims(); r != n || c != n {
		return nil, DimensionMismatchError{Assets: n, CovarianceRows: r, CovarianceCols: c}
	}

	if maxWeightPerAsset*float64(n) < 1-feasibilityTolerance {
		return nil, InfeasibleConstraintsError{MaxWeight: maxWeightPerAsset, Assets: n}
	}
	if math.IsNaN(maxWeightPerAsset) || maxWeightPerAsset > 1 {
		return nil, InvalidParameterError{Field: "max weight per asset", Value: maxWeightPerAsset, Message: "must be in (0, 1]"}
	}
	if math.IsNaN(riskFreeRate) || math.IsInf(riskFreeRate, 0) {
		return nil, InvalidParameterError{Field: "risk-free rate", Value: riskFreeRate, Message: "must be a finite number"}
	}

	means := MeanDailyReturns(logReturns)
	for i, m := range means {
		if math.IsNaN(m) || math.IsInf(m, 0) {
			return nil, OptimizationFailedError{Reason: fmt.Sprintf("mean return of asset %d is not finite", i)}
		}
	}

	initial := UniformWeights(n)
	if vol := AnnualVolatility(initial, cov); !(vol > 0) || math.IsInf(vol, 0) {
		return nil, OptimizationFailedError{Reason: fmt.Sprintf("portfolio volatility is %v at the uniform allocation", vol)}
	}

	// With n * maxWeight == 1 the only feasible point is the uniform allocation.
	if maxWeightPerAsset*float64(n) <= 1+feasibilityTolerance {
		so.log.Debug().Int("assets", n).Msg("Feasible set is a single point, skipping solver")
		return so.buildResult(initial, maxWeightPerAsset, means, cov, riskFreeRate)
	}

	x, err := so.solve(means, cov, riskFreeRate, maxWeightPerAsset, initial)
	if err != nil {
		return nil, err
	}

	return so.buildResult(projectCappedSimplex(x, maxWeightPerAsset), maxWeightPerAsset, means, cov, riskFreeRate)
}

// solve minimizes -S(P(x)) + penalty, trying BFGS with the analytic gradient
// first and NelderMead when BFGS stops without converging.
func (so *SharpeOptimizer) solve(
	means []float64,
	cov mat.Symmetric,
	riskFreeRate float64,
	maxWeight float64,
	initial []float64,
) ([]float64, error) {
	n := len(means)
	var degenerate error

	// evaluate returns the projected weights, the Sharpe ratio there and the
	// volatility; vol is not positive when the point is degenerate.
	evaluate := func(x []float64) ([]float64, float64, float64) {
		w := projectCappedSimplex(x, maxWeight)
		vol := AnnualVolatility(w, cov)
		if !(vol > 0) || math.IsInf(vol, 0) {
			if degenerate == nil {
				degenerate = fmt.Errorf("portfolio volatility is %v at trial weights %v", vol, w)
			}
			return w, math.NaN(), 0
		}
		return w, (ExpectedAnnualReturn(w, means) - riskFreeRate) / vol, vol
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			w, sharpe, vol := evaluate(x)
			if vol == 0 {
				return math.Inf(1)
			}
			dist := floats.Distance(x, w, 2)
			return -sharpe + 0.5*penaltyWeight*dist*dist
		},
		Grad: func(grad, x []float64) {
			w, _, vol := evaluate(x)
			if vol == 0 {
				for i := range grad {
					grad[i] = 0
				}
				return
			}

			// dS/dw = 252*mu/V - (R - r_f) * C w / V^3
			excess := ExpectedAnnualReturn(w, means) - riskFreeRate
			var cw mat.VecDense
			cw.MulVec(cov, mat.NewVecDense(n, w))

			gs := make([]float64, n)
			for i := range gs {
				gs[i] = TradingDaysPerYear*means[i]/vol - excess*cw.AtVec(i)/(vol*vol*vol)
			}

			// The projection Jacobian is I - 11'/|F| on the free coordinates F
			// and zero on clipped ones.
			free, count := freeCoordinates(w, maxWeight)
			var freeMean float64
			for i := range gs {
				if free[i] {
					freeMean += gs[i]
				}
			}
			if count > 0 {
				freeMean /= float64(count)
			}

			for i := range grad {
				grad[i] = penaltyWeight * (x[i] - w[i])
				if free[i] {
					grad[i] -= gs[i] - freeMean
				}
			}
		},
		Status: func() (optimize.Status, error) {
			if degenerate != nil {
				return optimize.Failure, degenerate
			}
			return optimize.NotTerminated, nil
		},
	}

	method := "BFGS"
	result, err := optimize.Minimize(problem, initial, solverSettings(), &optimize.BFGS{})
	if degenerate != nil {
		return nil, OptimizationFailedError{Reason: degenerate.Error(), Status: statusOf(result)}
	}

	if err != nil || !converged(result) {
		start := initial
		if result != nil && allFinite(result.X) {
			start = result.X
		}
		so.log.Debug().
			Err(err).
			Str("status", statusOf(result)).
			Msg("BFGS did not converge, retrying with NelderMead")

		method = "NelderMead"
		result, err = optimize.Minimize(problem, start, solverSettings(), &optimize.NelderMead{})
		if degenerate != nil {
			return nil, OptimizationFailedError{Reason: degenerate.Error(), Status: statusOf(result)}
		}
		if err != nil {
			return nil, OptimizationFailedError{Reason: err.Error(), Status: statusOf(result)}
		}
		if !converged(result) {
			return nil, OptimizationFailedError{Reason: "solver did not converge", Status: statusOf(result)}
		}
	}

	so.log.Debug().
		Str("method", method).
		Str("status", result.Status.String()).
		Int("iterations", result.Stats.MajorIterations).
		Int("func_evaluations", result.Stats.FuncEvaluations).
		Float64("objective", result.F).
		Msg("Solver finished")

	return result.X, nil
}

// buildResult recomputes the metrics at w and rejects non-finite outcomes and
// weights outside [0, maxWeight].
func (so *SharpeOptimizer) buildResult(w []float64, maxWeight float64, means []float64, cov mat.Symmetric, riskFreeRate float64) (*OptimizationResult, error) {
	if !allFinite(w) {
		return nil, OptimizationFailedError{Reason: "solver returned non-finite weights"}
	}
	for i, v := range w {
		if v < 0 || v > maxWeight+feasibilityTolerance {
			return nil, OptimizationFailedError{Reason: fmt.Sprintf("weight %d is %v, outside [0, %v]", i, v, maxWeight)}
		}
	}

	ret := ExpectedAnnualReturn(w, means)
	vol := AnnualVolatility(w, cov)
	if !(vol > 0) || math.IsInf(vol, 0) {
		return nil, OptimizationFailedError{Reason: fmt.Sprintf("portfolio volatility is %v at the optimum", vol)}
	}
	sharpe := (ret - riskFreeRate) / vol
	if math.IsNaN(sharpe) || math.IsInf(sharpe, 0) || math.IsNaN(ret) {
		return nil, OptimizationFailedError{Reason: "performance metrics are not finite at the optimum"}
	}

	so.log.Info().
		Int("assets", len(w)).
		Float64("expected_return", ret).
		Float64("volatility", vol).
		Float64("sharpe", sharpe).
		Msg("Computed max-Sharpe allocation")

	return newOptimizationResult(w, ret, vol, sharpe), nil
}

func solverSettings() *optimize.Settings {
	return &optimize.Settings{
		GradientThreshold: gradientThreshold,
		MajorIterations:   maxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   1e-12,
			Iterations: 50,
		},
	}
}

func converged(result *optimize.Result) bool {
	if result == nil {
		return false
	}
	switch result.Status {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence, optimize.MethodConverge:
		return true
	default:
		return false
	}
}

func statusOf(result *optimize.Result) string {
	if result == nil {
		return ""
	}
	return result.Status.String()
}

func allFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
