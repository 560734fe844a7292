package changeset

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrPatchDoesNotApply is raised when a hunk's context does not match the
// target content (spec §4.8: "application fails with PatchDoesNotApply and
// the entire apply rolls back").
var ErrPatchDoesNotApply = errors.New("changeset: patch does not apply")

// ErrMalformedDiff means the unified diff text itself could not be parsed.
var ErrMalformedDiff = errors.New("changeset: malformed unified diff")

// hunkLine is one line of a parsed hunk body, tagged by its leading marker.
type hunkLine struct {
	kind byte // ' ' context, '-' removal, '+' addition
	text string
}

// hunk is one @@ ... @@ block of a unified diff.
type hunk struct {
	oldStart int
	oldLines int
	newStart int
	newLines int
	body     []hunkLine
}

var hunkHeaderPrefix = "@@ -"

// ParseUnifiedDiff parses a unified diff's hunks, ignoring any leading
// "--- a/..." / "+++ b/..." file header lines. It handles multiple hunks.
func ParseUnifiedDiff(diffText string) ([]hunk, error) {
	lines := splitKeepingNewlineInfo(diffText)
	var hunks []hunk
	i := 0
	for i < len(lines) {
		line := lines[i]
		if strings.HasPrefix(line, "---") || strings.HasPrefix(line, "+++") {
			i++
			continue
		}
		if strings.HasPrefix(line, hunkHeaderPrefix) {
			h, consumed, err := parseHunk(lines[i:])
			if err != nil {
				return nil, err
			}
			hunks = append(hunks, h)
			i += consumed
			continue
		}
		i++
	}
	if len(hunks) == 0 {
		return nil, ErrMalformedDiff
	}
	return hunks, nil
}

// splitKeepingNewlineInfo splits on "\n" without dropping a trailing empty
// element, so callers can tell whether the source ended with a newline.
func splitKeepingNewlineInfo(s string) []string {
	return strings.Split(s, "\n")
}

// parseHunkHeader parses "@@ -oldStart[,oldLines] +newStart[,newLines] @@".
func parseHunkHeader(line string) (oldStart, oldLines, newStart, newLines int, ok bool) {
	rest := strings.TrimPrefix(line, "@@ -")
	end := strings.Index(rest, " @@")
	if end < 0 {
		return 0, 0, 0, 0, false
	}
	rest = rest[:end]
	parts := strings.SplitN(rest, " +", 2)
	if len(parts) != 2 {
		return 0, 0, 0, 0, false
	}
	oldStart, oldLines, ok1 := parseRange(parts[0])
	newStart, newLines, ok2 := parseRange(parts[1])
	if !ok1 || !ok2 {
		return 0, 0, 0, 0, false
	}
	return oldStart, oldLines, newStart, newLines, true
}

func parseRange(s string) (start, count int, ok bool) {
	parts := strings.SplitN(s, ",", 2)
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	count = 1
	if len(parts) == 2 {
		count, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, 0, false
		}
	}
	return start, count, true
}

// parseHunk parses one hunk starting at lines[0] (its "@@" header),
// returning the hunk and the number of input lines it consumed.
func parseHunk(lines []string) (hunk, int, error) {
	oldStart, oldLines, newStart, newLines, ok := parseHunkHeader(lines[0])
	if !ok {
		return hunk{}, 0, ErrMalformedDiff
	}
	h := hunk{oldStart: oldStart, oldLines: oldLines, newStart: newStart, newLines: newLines}

	i := 1
	for i < len(lines) {
		line := lines[i]
		if line == "" && i == len(lines)-1 {
			break
		}
		if strings.HasPrefix(line, hunkHeaderPrefix) || strings.HasPrefix(line, "---") || strings.HasPrefix(line, "+++") {
			break
		}
		if len(line) == 0 {
			i++
			continue
		}
		switch line[0] {
		case ' ', '-', '+':
			h.body = append(h.body, hunkLine{kind: line[0], text: line[1:]})
		case '\\':
			// "\ No newline at end of file" marker: no content line.
		default:
			return hunk{}, 0, ErrMalformedDiff
		}
		i++
	}
	return h, i, nil
}

// ApplyUnifiedDiff applies diffText's hunks to content in order, returning
// the patched content. Fails with ErrPatchDoesNotApply if any hunk's
// context/removal lines do not match the corresponding region of content.
// Trailing-newline presence is preserved from the source content.
func ApplyUnifiedDiff(content, diffText string) (string, error) {
	hunks, err := ParseUnifiedDiff(diffText)
	if err != nil {
		return "", err
	}

	hadTrailingNewline := strings.HasSuffix(content, "\n")
	srcLines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	if content == "" {
		srcLines = nil
	}

	var out []string
	cursor := 0 // 0-based index into srcLines already copied through

	for _, h := range hunks {
		startIdx := h.oldStart - 1
		if h.oldLines == 0 {
			// Pure insertion hunks from diff tools may report oldStart as
			// the line *before* the insertion point.
			startIdx = h.oldStart
		}
		if startIdx < cursor || startIdx > len(srcLines) {
			return "", fmt.Errorf("%w: hunk start %d out of range", ErrPatchDoesNotApply, h.oldStart)
		}
		out = append(out, srcLines[cursor:startIdx]...)
		cursor = startIdx

		for _, bl := range h.body {
			switch bl.kind {
			case ' ':
				if cursor >= len(srcLines) || srcLines[cursor] != bl.text {
					return "", fmt.Errorf("%w: context mismatch at line %d", ErrPatchDoesNotApply, cursor+1)
				}
				out = append(out, srcLines[cursor])
				cursor++
			case '-':
				if cursor >= len(srcLines) || srcLines[cursor] != bl.text {
					return "", fmt.Errorf("%w: removal mismatch at line %d", ErrPatchDoesNotApply, cursor+1)
				}
				cursor++
			case '+':
				out = append(out, bl.text)
			}
		}
	}
	out = append(out, srcLines[cursor:]...)

	result := strings.Join(out, "\n")
	if hadTrailingNewline || len(out) == 0 {
		result += "\n"
	}
	return result, nil
}
