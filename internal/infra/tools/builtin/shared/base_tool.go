// Package shared holds the base type and argument helpers that every builtin
// tool embeds. Tool structs embed BaseTool to avoid repeating the two getter
// methods:
//
//	type myTool struct {
//		shared.BaseTool
//	}
//
//	func New() ports.ToolExecutor {
//		return &myTool{BaseTool: shared.NewBaseTool(def, meta)}
//	}
package shared

import "otto/internal/domain/ports"

// BaseTool provides default Definition() and Metadata() implementations.
type BaseTool struct {
	def  ports.ToolDefinition
	meta ports.ToolMetadata
}

// NewBaseTool constructs a BaseTool with the given definition and metadata.
func NewBaseTool(def ports.ToolDefinition, meta ports.ToolMetadata) BaseTool {
	return BaseTool{def: def, meta: meta}
}

// Definition returns the tool's schema for the oracle.
func (b *BaseTool) Definition() ports.ToolDefinition { return b.def }

// Metadata returns the tool's runtime metadata.
func (b *BaseTool) Metadata() ports.ToolMetadata { return b.meta }
