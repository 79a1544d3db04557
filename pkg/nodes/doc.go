/*
Package nodes implements the Chancellor pipeline steps.

Each node reads what upstream steps recorded in the GraphState and writes its
own result under Outputs[<STEP>]. Pillar triggers are recorded, not applied:
MERGE replays them into a fresh trinity.Manager owned by the run, so concurrent
runs never share an accumulator.

Use Default to get a complete runtime.Nodes wired to the given collaborators.
*/
package nodes
