/*
Package observability provides monitoring for the Chancellor pipeline.

Metrics registers Prometheus collectors and exposes them as domain.LifecycleHooks,
so the runner reports step events and durations and MERGE reports verdicts
without either knowing about Prometheus.
*/
package observability
