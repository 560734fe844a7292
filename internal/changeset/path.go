// Package changeset implements the C8 state machine: proposing, reviewing,
// and applying unified-diff file patches with baseline hash validation,
// file-level locking, and optimistic conflict detection (spec §4.8, §3).
package changeset

import (
	"errors"
	"regexp"
)

// Path invariants from spec §3: no traversal segments, no absolute paths,
// <= 512 bytes, <= 20 segments, restricted character set.
const (
	maxPathBytes    = 512
	maxPathSegments = 20
)

var ErrInvalidPath = errors.New("changeset: invalid path")

var pathCharset = regexp.MustCompile(`^[A-Za-z0-9_./ -]+$`)

// ValidatePath enforces every path invariant in spec §3, returning
// ErrInvalidPath on any violation.
func ValidatePath(path string) error {
	if path == "" {
		return ErrInvalidPath
	}
	if len(path) > maxPathBytes {
		return ErrInvalidPath
	}
	if len(path) > 0 && path[0] == '/' {
		return ErrInvalidPath
	}
	if !pathCharset.MatchString(path) {
		return ErrInvalidPath
	}

	segments := splitSegments(path)
	if len(segments) > maxPathSegments {
		return ErrInvalidPath
	}
	for _, seg := range segments {
		if seg == ".." || seg == "." {
			return ErrInvalidPath
		}
	}
	return nil
}

func splitSegments(path string) []string {
	var segs []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			if i > start {
				segs = append(segs, path[start:i])
			}
			start = i + 1
		}
	}
	return segs
}
