/*
Package ports defines the driven ports (interfaces) of the botflow engine.

These interfaces decouple flow execution from storage, transport and the
external services a flow may call.

# Key Interfaces

  - SessionStore: persists the single active session of each (conversation, bot) pair.
  - FlowSource: loads flow definitions by bot id (files, databases...).
  - HTTPDoer: performs http_request nodes (*http.Client satisfies it).
  - CompletionProvider: answers ai_response nodes.
  - DepartmentDirectory: lists departments an AI router may hand off to.
  - Notifier: delivers best-effort interim messages while a chain is running.
  - DistributedLocker: serializes a conversation across replicas.
*/
package ports
