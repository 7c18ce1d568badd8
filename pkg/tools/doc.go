// Package tools provides the tools used by the research pipeline: web search
// (Tavily), an arithmetic calculator and a report writer that saves Markdown
// as a Word document.
//
// Each tool exposes a definition (name, description and JSON schema) and a
// handler compatible with registry.ToolFunction.
package tools
