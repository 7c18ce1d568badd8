/*
Package ports defines the driven ports (interfaces) for the quill engine.

These interfaces decouple the core logic from external implementations, allowing
the engine to work with any language model, tool set, search backend or
transcript storage.

# Key Interfaces

  - Tool / ToolProvider: named, invocable capabilities with an argument schema.
  - ChatModel: the opaque compute call behind a stage (e.g. an LLM endpoint).
  - SearchProvider: a web search backend used by the search tool.
  - TranscriptStore: persists MessageLog snapshots of a run for later inspection.
*/
package ports
