// Package graph renders flow definitions as diagrams.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/botflow/pkg/domain"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// GenerateMermaid produces a Mermaid flowchart for def.
// Shapes follow the node's role:
// - start: ((circle)), end: (((double circle)))
// - nodes that wait for the user: [/parallelogram/]
// - condition: {rhombus}
// - external calls (http_request, ai_response): [[subroutine]]
// - everything else: [rectangle]
func GenerateMermaid(def *domain.FlowDefinition, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range def.Nodes {
		opener, closer := shape(node.Type)
		label := node.ID
		if node.Label != "" {
			label = node.Label
		}
		label = strings.ReplaceAll(label, "\"", "'")
		fmt.Fprintf(&sb, "    %s%s\"%s<br/><small>%s</small>\"%s\n", sanitizeMermaidID(node.ID), opener, label, node.Type, closer)
	}

	for _, e := range def.Edges {
		arrow := "-->"
		if e.SourceHandle != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", strings.ReplaceAll(e.SourceHandle, "\"", "'"))
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(e.Source), arrow, sanitizeMermaidID(e.Target))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps the highlight readable on light and dark themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !seen[safeID] && safeID != "" {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func shape(t domain.NodeType) (string, string) {
	switch {
	case t == domain.NodeStart:
		return "((", "))"
	case t == domain.NodeEnd:
		return "(((", ")))"
	case t == domain.NodeCondition:
		return "{", "}"
	case t == domain.NodeHTTPRequest, t == domain.NodeAIResponse:
		return "[[", "]]"
	case t.Interactive():
		return "[/", "/]"
	default:
		return "[", "]"
	}
}

func sanitizeMermaidID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(id)
}
