// Package build is the compiler CLI's pipeline orchestration: it discovers
// rule files under a BuildConfig's source globs, runs them through the OAL,
// MAL and LAL parsers and transpilers, assembles the resulting artifacts
// into a manifest.Manifest, and hands it to manifest.Writer. It is the glue
// cmd/obsdslc drives; cmd/obsdslrun uses only the compile/runtime packages
// directly, never this one.
package build

import (
	"context"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/viant/afs"
)

// match reports whether candidate (a "/"-joined relative path) satisfies
// pattern. Patterns are the same shape build.yaml's source lists use:
// ordinary path segments matched exactly, "*" matching within one segment,
// and a "**" segment matching zero or more segments. None of the example
// repos vendor a dedicated glob library for this, so matching is hand-built
// on path.Match per segment rather than pulled in as a dependency.
func match(pattern, candidate string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(candidate, "/"))
}

func matchSegments(pattern, candidate []string) bool {
	if len(pattern) == 0 {
		return len(candidate) == 0
	}
	head := pattern[0]
	if head == "**" {
		if matchSegments(pattern[1:], candidate) {
			return true
		}
		if len(candidate) == 0 {
			return false
		}
		return matchSegments(pattern, candidate[1:])
	}
	if len(candidate) == 0 {
		return false
	}
	ok, err := path.Match(head, candidate[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], candidate[1:])
}

// fileEntry is one discovered rule file: its path relative to root (with
// "/" separators) and its content.
type fileEntry struct {
	relPath string
	content []byte
}

// discover walks root via fs and returns every regular file (relative to
// root) that matches at least one of patterns, sorted by relative path so
// rule files are always processed in the same order.
func discover(ctx context.Context, fs afs.Service, root string, patterns []string) ([]fileEntry, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	var entries []fileEntry
	visitor := func(ctx context.Context, baseURL, parent string, info os.FileInfo, reader io.Reader) (bool, error) {
		if info.IsDir() {
			return true, nil
		}
		rel := info.Name()
		if parent != "" {
			rel = parent + "/" + info.Name()
		}
		matched := false
		for _, p := range patterns {
			if match(p, rel) {
				matched = true
				break
			}
		}
		if !matched {
			return true, nil
		}
		raw, err := io.ReadAll(reader)
		if err != nil {
			return false, err
		}
		entries = append(entries, fileEntry{relPath: rel, content: raw})
		return true, nil
	}
	if err := fs.Walk(ctx, root, visitor); err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].relPath < entries[j].relPath })
	return entries, nil
}

// configDataKey derives the config-data/<key>.json path segment for a
// discovered rule file: its relative path without extension, so
// "oal/endpoint.oal" becomes "oal/endpoint" and "mal/service.yaml" becomes
// "mal/service".
func configDataKey(relPath string) string {
	ext := path.Ext(relPath)
	return strings.TrimSuffix(relPath, ext)
}
