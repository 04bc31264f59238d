package competition

import (
	"context"

	"saltdig/core/types"
)

// Evaluator scores a competition entry's artifacts against its
// listing. Harness, manual, and vote evaluation each get a concrete
// Evaluator; the controller depends only on this interface, never on
// a concrete sandbox implementation.
type Evaluator interface {
	Evaluate(ctx context.Context, listingID string, artifacts []types.Artifact) (types.EvaluationResult, error)
}

// FuncEvaluator adapts a callback function to the Evaluator interface,
// the same func-adapter shape as the teacher's wallet.FuncWallet.
type FuncEvaluator struct {
	EvaluateFunc func(ctx context.Context, listingID string, artifacts []types.Artifact) (types.EvaluationResult, error)
}

// Evaluate delegates to the configured callback.
func (f FuncEvaluator) Evaluate(ctx context.Context, listingID string, artifacts []types.Artifact) (types.EvaluationResult, error) {
	if f.EvaluateFunc == nil {
		return types.EvaluationResult{}, nil
	}
	return f.EvaluateFunc(ctx, listingID, artifacts)
}
