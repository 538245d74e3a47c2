package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

// Signature-counter policy. An assertion is allowed when the counter strictly
// advances, or when both counters are zero and the deployment opted in to
// zero-counter authenticators. Anything else is denied and flagged.
const signCountPolicy = `package passkeyd.sign_count

default allow = false
default flag = false

allow if {
	input.reported > input.stored
}

allow if {
	input.allow_zero
	input.stored == 0
	input.reported == 0
}

flag if {
	not allow
}
`

// OPAEvaluator evaluates the signature-counter policy using OPA Rego.
type OPAEvaluator struct{}

// NewOPAEvaluator returns an OPA-based policy evaluator.
func NewOPAEvaluator() *OPAEvaluator {
	return &OPAEvaluator{}
}

// HealthCheck verifies that the in-process OPA Rego engine can compile and evaluate the policy.
// Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	compiler, err := compilePolicy()
	if err != nil {
		return err
	}
	input := map[string]interface{}{"stored": 0, "reported": 1, "allow_zero": false}
	q := rego.New(
		rego.Query("data.passkeyd.sign_count.allow"),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return fmt.Errorf("eval sign count policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}

// EvaluateSignCount evaluates the counter policy. On engine failure it falls
// back to deny-and-flag so a broken policy never widens access.
func (e *OPAEvaluator) EvaluateSignCount(ctx context.Context, stored, reported uint32, allowZero bool) (SignCountResult, error) {
	compiler, err := compilePolicy()
	if err != nil {
		log.Printf("policy: compile failed: %v, denying", err)
		return SignCountResult{Allow: false, Flag: true}, nil
	}

	input := map[string]interface{}{
		"stored":     int64(stored),
		"reported":   int64(reported),
		"allow_zero": allowZero,
	}

	out := SignCountResult{Allow: false, Flag: true}

	allowQuery := rego.New(
		rego.Query("data.passkeyd.sign_count.allow"),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	allowRS, err := allowQuery.Eval(ctx)
	if err != nil {
		log.Printf("policy: evaluation failed: %v, denying", err)
		return SignCountResult{Allow: false, Flag: true}, nil
	}
	if len(allowRS) > 0 && len(allowRS[0].Expressions) > 0 {
		if v, ok := allowRS[0].Expressions[0].Value.(bool); ok {
			out.Allow = v
		}
	}

	flagQuery := rego.New(
		rego.Query("data.passkeyd.sign_count.flag"),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	flagRS, err := flagQuery.Eval(ctx)
	if err != nil {
		log.Printf("policy: evaluation failed: %v, denying", err)
		return SignCountResult{Allow: false, Flag: true}, nil
	}
	if len(flagRS) > 0 && len(flagRS[0].Expressions) > 0 {
		if v, ok := flagRS[0].Expressions[0].Value.(bool); ok {
			out.Flag = v
		}
	}

	return out, nil
}

func compilePolicy() (*ast.Compiler, error) {
	modules := map[string]string{"sign_count.rego": signCountPolicy}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return nil, fmt.Errorf("compile sign count policy: %w", err)
	}
	return compiler, nil
}
