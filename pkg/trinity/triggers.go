package trinity

// Trigger names an event that nudges the pillar scores.
type Trigger string

const (
	VerificationSuccess  Trigger = "VERIFICATION_SUCCESS"
	VerificationFailure  Trigger = "VERIFICATION_FAILURE"
	TypeCheckFailure     Trigger = "TYPE_CHECK_FAILURE"
	RiskDetected         Trigger = "RISK_DETECTED"
	SecurityThreat       Trigger = "SECURITY_THREAT"
	GovernanceEscalation Trigger = "GOVERNANCE_ESCALATION"
	ElegantSolution      Trigger = "ELEGANT_SOLUTION"
	ClutteredOutput      Trigger = "CLUTTERED_OUTPUT"
	CommanderApproval    Trigger = "COMMANDER_APPROVAL"
	ManualIntervention   Trigger = "MANUAL_INTERVENTION"
	PersistenceSuccess   Trigger = "PERSISTENCE_SUCCESS"
	PersistenceFailure   Trigger = "PERSISTENCE_FAILURE"
)

// Delta is a per-channel adjustment in percentage points.
// Risk is applied as a negative contribution to Goodness.
type Delta struct {
	Truth    float64
	Goodness float64
	Beauty   float64
	Serenity float64
	Eternity float64
	Risk     float64
}

var triggerTable = map[Trigger]Delta{
	VerificationSuccess:  {Truth: 5},
	VerificationFailure:  {Truth: -10},
	TypeCheckFailure:     {Truth: -5, Beauty: -2},
	RiskDetected:         {Risk: 10},
	SecurityThreat:       {Risk: 30},
	GovernanceEscalation: {Risk: 5, Serenity: -5},
	ElegantSolution:      {Beauty: 5},
	ClutteredOutput:      {Beauty: -5},
	CommanderApproval:    {Serenity: 5},
	ManualIntervention:   {Serenity: -5},
	PersistenceSuccess:   {Eternity: 5},
	PersistenceFailure:   {Eternity: -10},
}

// Lookup returns the delta registered for t.
func Lookup(t Trigger) (Delta, bool) {
	d, ok := triggerTable[t]
	return d, ok
}

// Known reports whether t has a delta.
func (t Trigger) Known() bool {
	_, ok := triggerTable[t]
	return ok
}
