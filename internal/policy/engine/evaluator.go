package engine

import "context"

// SignCountResult holds the result of signature-counter policy evaluation.
type SignCountResult struct {
	// Allow permits the assertion to proceed.
	Allow bool
	// Flag marks the credential for administrative review (possible clone).
	Flag bool
}

// Evaluator evaluates the signature-counter policy using OPA or other engines.
type Evaluator interface {
	// EvaluateSignCount decides whether an assertion with the reported counter
	// may proceed given the stored counter. allowZero permits authenticators
	// that always report zero.
	EvaluateSignCount(ctx context.Context, stored, reported uint32, allowZero bool) (SignCountResult, error)
}
