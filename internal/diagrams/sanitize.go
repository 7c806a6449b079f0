package diagrams

import (
	"regexp"
	"strings"
)

// ID["label"], ID[label]
var nodeLine = regexp.MustCompile(`^(\s*)([^\s\[]+)(\[.*)$`)

var idReplacer = strings.NewReplacer(
	"&", "_", "#", "_", "@", "_", "!", "_", "?", "_",
	"(", "_", ")", "_", "[", "_", "]", "_", "{", "_", "}", "_",
	"<", "_", ">", "_", ";", "_", ",", "_", "'", "_", `"`, "_",
)

var labelReplacer = strings.NewReplacer(
	`"`, "#quot;",
	"(", "#lpar;", ")", "#rpar;",
	"[", "#lsqb;", "]", "#rsqb;",
	"{", "#lbrace;", "}", "#rbrace;",
	"<", "#lt;", ">", "#gt;",
)

// Sanitize rewrites a generated flowchart into a form the renderer accepts.
// Node ids lose characters mermaid rejects, labels are quoted and escaped,
// open subgraphs are closed and a missing header is added. Lines it cannot
// make sense of are dropped.
func Sanitize(script string) string {
	var (
		out    []string
		header bool
		depth  int
	)
	for _, raw := range strings.Split(script, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case line == "" || strings.HasPrefix(line, "```"):
		case strings.HasPrefix(line, "graph ") || strings.HasPrefix(line, "flowchart "):
			if !header {
				out = append(out, line)
				header = true
			}
		case strings.HasPrefix(line, "subgraph "):
			out = append(out, raw)
			depth++
		case line == "end":
			if depth > 0 {
				out = append(out, raw)
				depth--
			}
		case isDirective(line):
			out = append(out, raw)
		default:
			if fixed, ok := sanitizeStatement(raw); ok {
				out = append(out, fixed)
			}
		}
	}
	for ; depth > 0; depth-- {
		out = append(out, "end")
	}
	if !header {
		out = append([]string{"graph TD"}, out...)
	}
	return strings.Join(out, "\n")
}

func isDirective(line string) bool {
	for _, p := range []string{"%%", "classDef ", "class ", "style ", "linkStyle ", "direction "} {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

func sanitizeStatement(line string) (string, bool) {
	indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
	if _, _, _, ok := splitEdge(line); ok {
		chain, ok := sanitizeChain(line)
		if !ok {
			return "", false
		}
		return indent + chain, true
	}
	if m := nodeLine.FindStringSubmatch(line); m != nil {
		ref, ok := sanitizeRef(m[2] + m[3])
		if !ok {
			return "", false
		}
		return m[1] + ref, true
	}
	return "", false
}

// sanitizeChain cleans A --> B -->|x| C, one reference at a time.
func sanitizeChain(s string) (string, bool) {
	src, arrow, dst, isEdge := splitEdge(s)
	if !isEdge {
		return sanitizeRef(s)
	}
	left, ok := sanitizeRef(src)
	if !ok {
		return "", false
	}
	right, ok := sanitizeChain(dst)
	if !ok {
		return "", false
	}
	return left + " " + arrow + " " + right, true
}

// splitEdge splits s at its first --> outside a label, keeping an
// |edge label| with the arrow.
func splitEdge(s string) (src, arrow, dst string, ok bool) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
		}
		if depth != 0 || !strings.HasPrefix(s[i:], "-->") {
			continue
		}
		src, arrow, dst = s[:i], "-->", strings.TrimSpace(s[i+3:])
		if strings.HasPrefix(dst, "|") {
			if j := strings.IndexByte(dst[1:], '|'); j >= 0 {
				arrow += dst[:j+2]
				dst = strings.TrimSpace(dst[j+2:])
			}
		}
		return src, arrow, dst, dst != ""
	}
	return "", "", "", false
}

// sanitizeRef cleans one node reference: id, optional [label], optional
// :::class.
func sanitizeRef(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	id, rest := ref, ""
	if i := strings.IndexByte(ref, '['); i >= 0 {
		id, rest = ref[:i], ref[i:]
	} else if i := strings.Index(ref, ":::"); i >= 0 {
		id, rest = ref[:i], ref[i:]
	}
	if id == "" {
		return "", false
	}
	var b strings.Builder
	b.WriteString(idReplacer.Replace(id))

	if strings.HasPrefix(rest, "[") {
		end := matchingBracket(rest)
		if end < 0 {
			return "", false
		}
		label := strings.TrimSpace(rest[1:end])
		if len(label) >= 2 && strings.HasPrefix(label, `"`) && strings.HasSuffix(label, `"`) {
			label = label[1 : len(label)-1]
		}
		b.WriteString(`["`)
		b.WriteString(labelReplacer.Replace(label))
		b.WriteString(`"]`)
		rest = strings.TrimSpace(rest[end+1:])
	}
	if strings.HasPrefix(rest, ":::") {
		if f := strings.Fields(rest); len(f) > 0 {
			b.WriteString(f[0])
		}
	}
	return b.String(), true
}

// matchingBracket returns the index of the ']' closing s[0], or -1.
func matchingBracket(s string) int {
	depth := 0
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
