package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Included files may themselves include further files, bounded so a
// misconfigured tree cannot recurse forever.
const maxIncludeDepth = 10

// processIncludes overlays every file referenced by cfg.Includes onto cfg,
// in order, so later fragments win. This is how deployments split agent
// limits, provider credentials, and server tuning into separate YAML files.
// basePath is the directory of the file that declared the includes; visited
// holds absolute paths already merged, for cycle detection.
func processIncludes(cfg *Config, basePath string, visited map[string]bool, depth int) error {
	if depth > maxIncludeDepth {
		return fmt.Errorf("config includes: max depth %d exceeded", maxIncludeDepth)
	}

	if visited == nil {
		visited = make(map[string]bool)
	}

	for _, pattern := range cfg.Includes {
		paths, err := expandIncludePattern(pattern, basePath)
		if err != nil {
			return err
		}
		for _, p := range paths {
			abs, err := filepath.Abs(p)
			if err != nil {
				return fmt.Errorf("config includes: abs path %q: %w", p, err)
			}

			if visited[abs] {
				return fmt.Errorf("config includes: circular include detected for %q", abs)
			}
			visited[abs] = true

			if err := mergeIncludedFile(cfg, abs, visited, depth+1); err != nil {
				return err
			}
		}
	}

	// Consumed; a later unmarshal pass must not re-trigger them.
	cfg.Includes = nil
	return nil
}

// expandIncludePattern resolves one include entry, glob or literal, relative
// to baseDir. Relative entries must stay under the config directory.
func expandIncludePattern(pattern, baseDir string) ([]string, error) {
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(baseDir, pattern)
	}

	pattern = filepath.Clean(pattern)

	rel, err := filepath.Rel(baseDir, pattern)
	if err == nil && len(rel) >= 2 && rel[:2] == ".." {
		return nil, fmt.Errorf("config includes: path %q escapes config directory", pattern)
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("config includes: glob %q: %w", pattern, err)
	}

	if len(matches) == 0 {
		// A literal path with no match falls through so the merge reports
		// file-not-found; an empty glob is simply nothing to merge.
		if !hasGlobMeta(pattern) {
			return []string{pattern}, nil
		}
		return nil, nil
	}

	return matches, nil
}

func hasGlobMeta(pattern string) bool {
	for _, c := range pattern {
		switch c {
		case '*', '?', '[':
			return true
		}
	}
	return false
}

// mergeIncludedFile unmarshals one fragment onto cfg, then recurses into
// any includes the fragment itself declares. Fragments get the same
// permission check as the root config since they may carry the API key.
func mergeIncludedFile(cfg *Config, path string, visited map[string]bool, depth int) error {
	if err := validatePermissions(path); err != nil {
		return fmt.Errorf("config includes: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config includes: read %q: %w", path, err)
	}

	if len(data) == 0 {
		return nil
	}

	// Reset so only this fragment's includes are picked up below.
	cfg.Includes = nil

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config includes: parse %q: %w", path, err)
	}

	if len(cfg.Includes) > 0 {
		if err := processIncludes(cfg, filepath.Dir(path), visited, depth); err != nil {
			return err
		}
	}

	return nil
}
