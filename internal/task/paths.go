package task

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Mapper derives sink keys and local paths from task identifiers.
type Mapper struct {
	SourceSuffix  string
	OutputSuffix  string
	SourceSegment string
	DestSegment   string
}

// OutputKey rewrites the first image suffix and then the first source
// namespace segment found in taskID. It is pure and total: identifiers
// lacking either token pass through that substitution unchanged.
func (m Mapper) OutputKey(taskID string) string {
	key := strings.Replace(taskID, m.SourceSuffix, m.OutputSuffix, 1)
	if m.SourceSegment != "" {
		key = strings.Replace(key, m.SourceSegment, m.DestSegment, 1)
	}
	return key
}

// StagedPath places taskID beneath root. Identifiers that would resolve to
// root itself or outside it are rejected.
func (m Mapper) StagedPath(root, taskID string) (string, error) {
	root = filepath.Clean(root)
	staged := filepath.Join(root, filepath.FromSlash(taskID))
	if staged == root || !strings.HasPrefix(staged, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeTaskID, taskID)
	}
	return staged, nil
}

// ComputeOutputPath is the file the compute binary writes for stagedPath:
// same directory, image suffix swapped for the output suffix in the base
// name. It never equals stagedPath.
func (m Mapper) ComputeOutputPath(stagedPath string) string {
	dir, base := filepath.Split(stagedPath)
	out := strings.Replace(base, m.SourceSuffix, m.OutputSuffix, 1)
	if out == base {
		out = base + m.OutputSuffix
	}
	return dir + out
}
