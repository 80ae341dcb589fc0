/*
Package domain contains the core data model of the bot flow engine.

It defines the wire shape of a flow definition (Nodes and Edges authored in the
visual editor), the typed payloads each node type carries, the persisted Session,
and the StageResponse contract every stage handler returns. The package is kept
free of I/O so it can be shared by the compiler, the runtime and every adapter.

# Key Entities

  - Node / Edge / FlowDefinition: the authored graph.
  - StageID: the compiled address of a node.
  - Session: per-conversation execution state (stage pointer + variables).
  - StageResponse: the outcome of executing a stage.
  - LifecycleHooks: observability callbacks fired by the runtime.
*/
package domain
