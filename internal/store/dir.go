package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	fileutil "svmmapper/internal/file"
)

// DirGateway stores objects as files under <root>/<container>/<key>. It lets
// the mapper run against a local tree instead of S3.
type DirGateway struct {
	root string
}

func NewDirGateway(root string) *DirGateway {
	return &DirGateway{root: root}
}

func (g *DirGateway) objectPath(c Container, key string) (string, error) {
	if c != Source && c != Sink {
		return "", fmt.Errorf("%w: %s", ErrUnknownContainer, c)
	}
	base := filepath.Join(g.root, string(c))
	p := filepath.Join(base, filepath.FromSlash(key))
	if p == base || !strings.HasPrefix(p, base+string(filepath.Separator)) {
		return "", fmt.Errorf("%w %q", ErrInvalidKey, key)
	}
	return p, nil
}

func (g *DirGateway) Exists(_ context.Context, c Container, key string) (bool, error) {
	p, err := g.objectPath(c, key)
	if err != nil {
		return false, err
	}
	return fileutil.Exists(p), nil
}

func (g *DirGateway) Fetch(_ context.Context, c Container, key, destPath string) error {
	p, err := g.objectPath(c, key)
	if err != nil {
		return err
	}
	if !fileutil.Exists(p) {
		return fmt.Errorf("%s/%s: %w", c, key, ErrNotFound)
	}
	return copyFile(p, destPath)
}

func (g *DirGateway) Put(_ context.Context, c Container, key, srcPath string) error {
	p, err := g.objectPath(c, key)
	if err != nil {
		return err
	}
	return copyFile(srcPath, p)
}

func copyFile(src, dest string) error {
	f, err := os.Open(src) //nolint:gosec // paths are derived by the application
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = f.Close() }()
	return fileutil.CopyAtomic(dest, f)
}
