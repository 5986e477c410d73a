// Package stacktrace trims raw goroutine stacks to the frames that belong to
// this module, for compact panic logs.
package stacktrace

import "strings"

// InternalPaths returns "internal/<pkg>/<file>.go:<line>" for every frame
// under an internal/ directory, outermost last.
func InternalPaths(stack []byte) []string {
	var paths []string
	for line := range strings.SplitSeq(string(stack), "\n") {
		line = strings.TrimSpace(line)
		if !strings.Contains(line, ".go:") {
			continue
		}

		_, rest, ok := strings.Cut(line, "/internal/")
		if !ok {
			continue
		}

		rest, _, _ = strings.Cut(rest, " ")
		paths = append(paths, "internal/"+rest)
	}
	return paths
}
