package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ExpandInputs turns command-line arguments into inputs. An argument is
// either "path" (bound to defaultType) or "logtype=path". Paths may be globs;
// matches are sorted and de-duplicated per log type.
func ExpandInputs(args []string, defaultType string) ([]Input, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no file patterns provided")
	}

	var inputs []Input
	seen := make(map[Input]struct{})

	for _, arg := range args {
		logType, pattern := splitInputArg(arg, defaultType)
		if logType == "" {
			return nil, fmt.Errorf("no log type for %q (use --log-type or type=path)", arg)
		}

		files, err := expandPattern(pattern)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			in := Input{Path: f, LogType: logType}
			if _, ok := seen[in]; ok {
				continue
			}
			seen[in] = struct{}{}
			inputs = append(inputs, in)
		}
	}

	return inputs, nil
}

// ExpandConfigured expands the globs of inputs declared in the config file.
func ExpandConfigured(declared []Input) ([]Input, error) {
	var inputs []Input
	for _, d := range declared {
		if d.LogType == "" {
			return nil, fmt.Errorf("inputs: %q has no log_type", d.Path)
		}
		files, err := expandPattern(d.Path)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			inputs = append(inputs, Input{Path: f, LogType: d.LogType})
		}
	}
	return inputs, nil
}

func splitInputArg(arg, defaultType string) (string, string) {
	if name, path, ok := strings.Cut(arg, "="); ok && name != "" && !strings.ContainsAny(name, `/\`) {
		return name, path
	}
	return defaultType, arg
}

func expandPattern(pattern string) ([]string, error) {
	if !hasGlobMeta(pattern) {
		if _, err := os.Stat(pattern); err != nil {
			return nil, err
		}
		return []string{pattern}, nil
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no matches for pattern %q", pattern)
	}
	sort.Strings(matches)
	return matches, nil
}

func hasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?[")
}
