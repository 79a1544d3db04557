package domain

// ActionRequest is the typed view of an inbound request, decoded by the PARSE step.
type ActionRequest struct {
	Command string         `json:"command,omitempty" mapstructure:"command"`
	Text    string         `json:"text,omitempty" mapstructure:"text"`
	Action  string         `json:"action,omitempty" mapstructure:"action"`
	Target  string         `json:"target,omitempty" mapstructure:"target"`
	Source  string         `json:"source,omitempty" mapstructure:"source"`
	Actor   string         `json:"actor,omitempty" mapstructure:"actor"`
	DryRun  bool           `json:"dry_run,omitempty" mapstructure:"dry_run"`
	Tags    []string       `json:"tags,omitempty" mapstructure:"tags"`
	Args    map[string]any `json:"args,omitempty" mapstructure:"args"`
}

// GovernanceOutcome is the decision returned by a governance evaluator.
type GovernanceOutcome string

const (
	GovernanceApproved  GovernanceOutcome = "approved"
	GovernanceEscalated GovernanceOutcome = "escalated"
	GovernanceDenied    GovernanceOutcome = "denied"
)

// ActionContext is what the governance evaluator sees of a run.
type ActionContext struct {
	TraceID        string   `json:"trace_id"`
	Action         string   `json:"action"`
	Target         string   `json:"target,omitempty"`
	Actor          string   `json:"actor,omitempty"`
	Source         string   `json:"source,omitempty"`
	DryRun         bool     `json:"dry_run"`
	Tags           []string `json:"tags,omitempty"`
	SecurityStatus string   `json:"security_status,omitempty"`
}

// PolicyCheck is the result of one governance policy.
type PolicyCheck struct {
	Policy string `json:"policy"`
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
}

// GovernanceDecision is returned by ports.GovernanceEvaluator.
type GovernanceDecision struct {
	Decision  GovernanceOutcome `json:"decision"`
	RiskLevel string            `json:"risk_level"`
	Reason    string            `json:"reason,omitempty"`
	Checks    []PolicyCheck     `json:"checks"`
}

// ExecutionResult is returned by ports.Executor.
type ExecutionResult struct {
	Success bool           `json:"success"`
	Output  map[string]any `json:"output,omitempty"`
	Error   string         `json:"error,omitempty"`
}
