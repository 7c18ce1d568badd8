/*
Package domain contains the core domain models of the quill task-graph engine.

It defines the messages exchanged between stages, the append-only message log that
is threaded through a run, stage definitions with their retry policies, and the
error taxonomy surfaced by the engine. This package is kept pure and free of
external dependencies like I/O or persistence.

# Key Entities

  - Message: One turn of a run (user input, stage output or tool result).
  - MessageLog: The immutable, append-only history owned by a single run.
  - StageDefinition: A named compute function plus its RetryPolicy.
  - RunError: The failure surfaced when a run halts, carrying the partial log.
*/
package domain
