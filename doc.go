/*
Package chancellor is a decision-gating pipeline for autonomous actions.

Every request flows through a fixed sequence of steps:

	CMD -> PARSE -> TRUTH -> GOODNESS -> BEAUTY -> MERGE -> EXECUTE -> VERIFY -> REPORT

TRUTH, GOODNESS and BEAUTY evaluate the request and record triggers. MERGE replays
those triggers into a Trinity score, asks the sovereignty gate whether the action
may run without the Commander, and publishes a VerdictEvent. Every step is
checkpointed and every transition is appended to the trace log, so a run can be
inspected or replayed after the fact.

# Architecture

The module follows a hexagonal layout:

  - pkg/domain: GraphState, RunEvent, VerdictEvent and the step order.
  - pkg/trinity, pkg/sovereignty: the score accumulator and the gate.
  - pkg/guard, pkg/nodes: input sanitation, threat scanning, governance policies and the node functions.
  - pkg/ports: storage and collaborator interfaces.
  - pkg/adapters: memory, file, redis and sqlite stores, plus the HTTP and MCP servers.
  - internal/runtime: the runner that walks the steps.

# Usage

	eng, err := chancellor.New()
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close()

	state, err := eng.Run(ctx, map[string]any{"text": "restart billing-worker"})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(state.Meta["decision"])

FromConfig builds an Engine from a config file instead, selecting the storage
backend (memory, file, redis or sqlite) and the checkpoint middleware.
*/
package chancellor
