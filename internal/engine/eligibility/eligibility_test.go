package eligibility_test

import (
	"reflect"
	"testing"
	"time"

	"coopline/internal/config"
	"coopline/internal/engine/eligibility"
)

var now = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

func policy() config.EligibilityPolicy {
	return config.Default("default").Eligibility
}

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name     string
		in       eligibility.Input
		eligible bool
		reasons  []string
	}{
		{
			name:     "boundary values pass",
			in:       eligibility.Input{GPA: 2.0, Weeks: 7, HoursPerWeek: 20, IsTransfer: false, CompletedSemesters: 2},
			eligible: true,
		},
		{
			name:     "gpa just below minimum",
			in:       eligibility.Input{GPA: 1.9, Weeks: 10, HoursPerWeek: 20, IsTransfer: false, CompletedSemesters: 3},
			eligible: false,
			reasons:  []string{"rule1"},
		},
		{
			name:     "transfer student with no completed semesters",
			in:       eligibility.Input{GPA: 3.5, Weeks: 10, HoursPerWeek: 20, IsTransfer: true, CompletedSemesters: 0},
			eligible: false,
			reasons:  []string{"rule4"},
		},
		{
			name:     "transfer threshold is one semester",
			in:       eligibility.Input{GPA: 3.5, Weeks: 10, HoursPerWeek: 20, IsTransfer: true, CompletedSemesters: 1},
			eligible: true,
		},
		{
			name:     "short position fails weeks but not hours",
			in:       eligibility.Input{GPA: 3.0, Weeks: 6, HoursPerWeek: 40, IsTransfer: false, CompletedSemesters: 3},
			eligible: false,
			reasons:  []string{"rule2"},
		},
		{
			name:     "total hours below minimum",
			in:       eligibility.Input{GPA: 3.0, Weeks: 7, HoursPerWeek: 19, IsTransfer: false, CompletedSemesters: 3},
			eligible: false,
			reasons:  []string{"rule3"},
		},
		{
			name:     "every rule fails in order",
			in:       eligibility.Input{GPA: 0.5, Weeks: 2, HoursPerWeek: 1, IsTransfer: false, CompletedSemesters: 0},
			eligible: false,
			reasons:  []string{"rule1", "rule2", "rule3", "rule4"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := eligibility.Evaluate(policy(), tc.in, now)
			if d.Eligible != tc.eligible {
				t.Fatalf("eligible=%v, want %v (reasons %v)", d.Eligible, tc.eligible, d.Reasons)
			}
			if !reflect.DeepEqual(d.Reasons, tc.reasons) {
				t.Fatalf("reasons=%v, want %v", d.Reasons, tc.reasons)
			}
			if d.ComputedAt != now.Format(time.RFC3339) {
				t.Fatalf("computed_at=%s", d.ComputedAt)
			}
		})
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	in := eligibility.Input{GPA: 1.9, Weeks: 6, HoursPerWeek: 10, IsTransfer: true, CompletedSemesters: 0}
	first := eligibility.Evaluate(policy(), in, now)
	for i := 0; i < 5; i++ {
		again := eligibility.Evaluate(policy(), in, now)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d diverged: %+v vs %+v", i, first, again)
		}
	}
}

func TestDescribe(t *testing.T) {
	p := policy()
	if got := eligibility.Describe(p, eligibility.RuleGPA); got == eligibility.RuleGPA {
		t.Fatalf("expected a sentence for %s", eligibility.RuleGPA)
	}
	if got := eligibility.Describe(p, "rule99"); got != "rule99" {
		t.Fatalf("unknown code should pass through, got %q", got)
	}
}
