/*
Package observability exposes botflow execution as Prometheus metrics.

Metrics are fed by domain.LifecycleHooks, so any Bot can be instrumented
by passing Metrics.Hooks to botflow.WithLifecycleHooks.
*/
package observability
