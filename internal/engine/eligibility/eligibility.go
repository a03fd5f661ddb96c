// Package eligibility evaluates the co-op credit policy for a selected
// student and position pair. Evaluation is pure: it reads the policy and
// the inputs and never touches storage.
package eligibility

import (
	"fmt"
	"time"

	"coopline/internal/config"
)

// Rule codes, in evaluation order. Failed codes end up on the application
// record and in the audit log.
const (
	RuleGPA       = "rule1"
	RuleWeeks     = "rule2"
	RuleHours     = "rule3"
	RuleSemesters = "rule4"
)

// Input is everything the policy looks at.
type Input struct {
	GPA                float64
	IsTransfer         bool
	CompletedSemesters int
	Weeks              int
	HoursPerWeek       int
}

// Decision is the outcome of one evaluation. Reasons lists the code of every
// failed rule in evaluation order; an eligible decision has none.
type Decision struct {
	Eligible   bool
	Reasons    []string
	ComputedAt string
}

// Evaluate applies every rule and collects all failures rather than stopping
// at the first. Thresholds are inclusive.
func Evaluate(policy config.EligibilityPolicy, in Input, now time.Time) Decision {
	var reasons []string

	if in.GPA < policy.MinGPA {
		reasons = append(reasons, RuleGPA)
	}
	if in.Weeks < policy.MinWeeks {
		reasons = append(reasons, RuleWeeks)
	}
	if in.Weeks*in.HoursPerWeek < policy.MinTotalHours {
		reasons = append(reasons, RuleHours)
	}
	required := policy.MinSemesters
	if in.IsTransfer {
		required = policy.MinSemestersIfTransfer
	}
	if in.CompletedSemesters < required {
		reasons = append(reasons, RuleSemesters)
	}

	return Decision{
		Eligible:   len(reasons) == 0,
		Reasons:    reasons,
		ComputedAt: now.UTC().Format(time.RFC3339),
	}
}

// Describe renders a rule code as a user-facing sentence under the given
// policy. Unknown codes are returned unchanged.
func Describe(policy config.EligibilityPolicy, code string) string {
	switch code {
	case RuleGPA:
		return fmt.Sprintf("GPA below the minimum of %.2f", policy.MinGPA)
	case RuleWeeks:
		return fmt.Sprintf("position shorter than the minimum of %d weeks", policy.MinWeeks)
	case RuleHours:
		return fmt.Sprintf("total hours below the minimum of %d", policy.MinTotalHours)
	case RuleSemesters:
		return fmt.Sprintf("fewer completed semesters than required (%d, or %d for transfer students)", policy.MinSemesters, policy.MinSemestersIfTransfer)
	}
	return code
}
