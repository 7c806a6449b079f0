// Package diagrams prepares repository diagram scripts from the backend and
// renders them to SVG.
package diagrams

import (
	"regexp"
	"strings"
)

var (
	openFence  = regexp.MustCompile("(?i)^```(?:mermaid)?\\s*")
	closeFence = regexp.MustCompile("```$")
)

// StripFence removes a markdown code fence the generator may have wrapped
// around the script. Unfenced scripts are only trimmed.
func StripFence(script string) string {
	script = strings.TrimSpace(script)
	if !strings.HasPrefix(script, "```") {
		return script
	}
	script = openFence.ReplaceAllString(script, "")
	script = closeFence.ReplaceAllString(script, "")
	return strings.TrimSpace(script)
}

// IsFlowchart reports whether script declares a graph or flowchart diagram.
func IsFlowchart(script string) bool {
	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "%%") {
			continue
		}
		return strings.HasPrefix(line, "graph") || strings.HasPrefix(line, "flowchart")
	}
	return false
}
