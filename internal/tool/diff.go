package tool

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// changeStats counts added and removed lines between two file contents,
// recorded on write/edit results so a session can report "+N/-M" without
// re-reading the filesystem.
func changeStats(before, after string) (additions, deletions int) {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	for _, d := range diffs {
		n := strings.Count(d.Text, "\n")
		if n == 0 && d.Text != "" {
			n = 1
		}
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			additions += n
		case diffmatchpatch.DiffDelete:
			deletions += n
		}
	}
	return additions, deletions
}

// changeMetadata packages changeStats for a tool result.
func changeMetadata(path, before, after string) map[string]any {
	additions, deletions := changeStats(before, after)
	return map[string]any{
		"file":      path,
		"additions": additions,
		"deletions": deletions,
	}
}
