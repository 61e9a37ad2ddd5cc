package kernel

import (
	"regexp"
	"strconv"
)

// Draw writes its prompt without a trailing newline, so prompts end up
// glued to the front of whatever the interpreter prints next.
var promptRE = regexp.MustCompile(`^Draw\[\d+\]> `)

func stripPrompt(line string) string {
	for promptRE.MatchString(line) {
		line = promptRE.ReplaceAllString(line, "")
	}
	return line
}

var (
	rootCountRE  = regexp.MustCompile(`(?i)(\d+)\s+root`)
	trianglesRE  = regexp.MustCompile(`(\d+)\s+triangles`)
	nodesRE      = regexp.MustCompile(`(\d+)\s+nodes`)
	meshStatusRE = regexp.MustCompile(`Meshing statuses:\s*(\w+)`)
)

// parseRootCount pulls the transferable root total from reader output.
// Zero when the reader did not report one.
func parseRootCount(out string) int {
	return firstInt(rootCountRE, out)
}

// parseTriangleCount pulls the triangle total from trinfo output.
func parseTriangleCount(out string) int {
	return firstInt(trianglesRE, out)
}

// parseNodeCount pulls the node total from trinfo output.
func parseNodeCount(out string) int {
	return firstInt(nodesRE, out)
}

// parseMeshStatus extracts the incmesh status word. Older kernels print no
// status line at all, so the second return reports presence.
func parseMeshStatus(out string) (string, bool) {
	m := meshStatusRE.FindStringSubmatch(out)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// parseShapeCount reads one subshape total from nbshapes output, which
// lists lines like " FACE      : 6".
func parseShapeCount(out, kind string) int {
	re := regexp.MustCompile(`(?m)^\s*` + regexp.QuoteMeta(kind) + `\s*:\s*(\d+)`)
	return firstInt(re, out)
}

func firstInt(re *regexp.Regexp, out string) int {
	m := re.FindStringSubmatch(out)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
