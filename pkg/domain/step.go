package domain

import (
	"fmt"
	"strings"
)

// Step identifies a stage of the Chancellor pipeline.
type Step string

const (
	StepCmd      Step = "CMD"
	StepParse    Step = "PARSE"
	StepTruth    Step = "TRUTH"
	StepGoodness Step = "GOODNESS"
	StepBeauty   Step = "BEAUTY"
	StepMerge    Step = "MERGE"
	StepExecute  Step = "EXECUTE"
	StepVerify   Step = "VERIFY"
	StepReport   Step = "REPORT"
)

// Order is the fixed execution order of the pipeline.
var Order = []Step{
	StepCmd,
	StepParse,
	StepTruth,
	StepGoodness,
	StepBeauty,
	StepMerge,
	StepExecute,
	StepVerify,
	StepReport,
}

// Auxiliary output keys written by the GOODNESS step.
const (
	OutputSecurity   = "SECURITY"
	OutputGovernance = "GOVERNANCE"
)

// String implements fmt.Stringer.
func (s Step) String() string {
	return string(s)
}

// Index returns the 1-based position of the step in Order, or 0 if unknown.
func (s Step) Index() int {
	for i, step := range Order {
		if step == s {
			return i + 1
		}
	}
	return 0
}

// Valid reports whether s is one of the pipeline steps.
func (s Step) Valid() bool {
	return s.Index() > 0
}

// ParseStep resolves a step name case-insensitively.
func ParseStep(name string) (Step, error) {
	candidate := Step(strings.ToUpper(strings.TrimSpace(name)))
	if !candidate.Valid() {
		return "", fmt.Errorf("unknown step %q", name)
	}
	return candidate, nil
}
