/*
Package ports defines the driven ports (interfaces) of the Chancellor pipeline.

These interfaces decouple the runner and the node functions from storage,
transport and external collaborators, so the same pipeline runs against memory,
files, Redis or SQLite.

# Key Interfaces

  - EventLog / EventReader: the append-only trace log (JSON lines).
  - CheckpointStore: one snapshot per (trace_id, step).
  - VerdictSink / VerdictLog: where gating decisions are published and queried.
  - GovernanceEvaluator, Executor: external collaborators called by nodes.
  - DistributedLocker: cross-instance coordination of a trace id.
*/
package ports
