package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ResolveInfoPath returns path if it exists, otherwise path relative to infosDir.
func ResolveInfoPath(path, infosDir string) (string, error) {
	if path == "" {
		return "", errors.New("experiment info file is required")
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if infosDir != "" && !filepath.IsAbs(path) {
		candidate := filepath.Join(infosDir, path)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("experiment info file not found: %s", path)
}

// LoadTaskIDs reads an experiment info document, an object keyed by task id, and
// returns its task ids in sorted order.
func LoadTaskIDs(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read experiment info: %w", err)
	}
	var infos map[string]json.RawMessage
	if err := json.Unmarshal(content, &infos); err != nil {
		return nil, fmt.Errorf("invalid JSON in experiment info file %s: %w", path, err)
	}
	ids := make([]string, 0, len(infos))
	for id := range infos {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// DefaultOutputDir names the batch directory after the info file's timestamp
// prefix, the part before the first underscore.
func DefaultOutputDir(batchResultsDir, infoPath string) string {
	name := filepath.Base(infoPath)
	if idx := strings.Index(name, "_"); idx > 0 {
		name = name[:idx]
	} else {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return filepath.Join(batchResultsDir, name)
}
