package engine

import (
	"context"
	"testing"
)

func TestOPAEvaluator_HealthCheck(t *testing.T) {
	e := NewOPAEvaluator()
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestOPAEvaluator_EvaluateSignCount(t *testing.T) {
	e := NewOPAEvaluator()
	ctx := context.Background()

	testCases := []struct {
		name      string
		stored    uint32
		reported  uint32
		allowZero bool
		wantAllow bool
		wantFlag  bool
	}{
		{"counter advances", 5, 6, false, true, false},
		{"large jump allowed", 5, 1000, false, true, false},
		{"first use from zero", 0, 1, false, true, false},
		{"equal counters denied", 5, 5, false, false, true},
		{"regression denied", 5, 4, false, false, true},
		{"reported zero against stored denied", 5, 0, false, false, true},
		{"zero to zero denied by default", 0, 0, false, false, true},
		{"zero to zero allowed when opted in", 0, 0, true, true, false},
		{"allow_zero does not excuse regression", 5, 4, true, false, true},
		{"allow_zero does not excuse equal nonzero", 5, 5, true, false, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.EvaluateSignCount(ctx, tc.stored, tc.reported, tc.allowZero)
			if err != nil {
				t.Fatalf("EvaluateSignCount: %v", err)
			}
			if got.Allow != tc.wantAllow {
				t.Errorf("Allow = %v, want %v", got.Allow, tc.wantAllow)
			}
			if got.Flag != tc.wantFlag {
				t.Errorf("Flag = %v, want %v", got.Flag, tc.wantFlag)
			}
		})
	}
}
