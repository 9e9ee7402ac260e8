package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/corpusforge/corpus-engine/internal/decode"
	"github.com/corpusforge/corpus-engine/internal/pipeline"
)

// collectJobs resolves CLI arguments into pipeline jobs. Each argument may be
// a URL, a file, a directory (walked recursively), or a glob pattern.
// Unsupported extensions are skipped when walking; a file named explicitly
// with an unsupported extension is an error.
func collectJobs(args []string, registry *decode.Registry) ([]pipeline.Job, error) {
	var jobs []pipeline.Job
	seen := make(map[string]struct{})

	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		jobs = append(jobs, pipeline.Job{Path: path})
	}

	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "http://"), strings.HasPrefix(arg, "https://"):
			jobs = append(jobs, pipeline.Job{Path: arg, IsURL: true})

		case isDir(arg):
			matches, err := doublestar.Glob(os.DirFS(arg), "**/*")
			if err != nil {
				return nil, fmt.Errorf("walk %s: %w", arg, err)
			}
			sort.Strings(matches)
			for _, m := range matches {
				full := filepath.Join(arg, m)
				if isDir(full) {
					continue
				}
				if registry.Supported(filepath.Ext(full)) {
					add(full)
				}
			}

		case doublestar.ValidatePattern(arg) && strings.ContainsAny(arg, "*?[{"):
			matches, err := doublestar.FilepathGlob(arg)
			if err != nil {
				return nil, fmt.Errorf("glob %s: %w", arg, err)
			}
			sort.Strings(matches)
			for _, m := range matches {
				if !isDir(m) && registry.Supported(filepath.Ext(m)) {
					add(m)
				}
			}

		default:
			info, err := os.Stat(arg)
			if err != nil {
				return nil, fmt.Errorf("input %s: %w", arg, err)
			}
			if info.IsDir() {
				continue
			}
			if !registry.Supported(filepath.Ext(arg)) {
				return nil, fmt.Errorf("input %s: unsupported extension %q", arg, filepath.Ext(arg))
			}
			add(arg)
		}
	}
	return jobs, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
