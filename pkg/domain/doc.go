/*
Package domain contains the core domain models of the Chancellor decision pipeline.

It defines the per-request GraphState threaded through the fixed sequence of steps,
the VerdictEvent emitted by the sovereignty gate, and the run events recorded by the
graph runner. This package is kept pure and free of I/O, following Hexagonal
Architecture principles.

# Key Entities

  - Step: a closed set of pipeline stages (CMD, PARSE, TRUTH, ... REPORT).
  - GraphState: the mutable record owned by a single pipeline run.
  - RunEvent: an entry in the append-only trace log (enter, exit, error, ...).
  - VerdictEvent: the immutable record of one gating decision.
*/
package domain
