package loader

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"
)

// Package is one loadable file found under the search path
type Package struct {
	URL  string `json:"url"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Catalog lists every regular file reachable through the search path as the
// relative file:// URL that would load it. When two entries provide the same
// name the earlier entry wins, as it does for Load.
func (l *Loader) Catalog(ctx context.Context) ([]Package, error) {
	seen := make(map[string]bool)
	var out []Package

	for _, entry := range l.path {
		if info, err := os.Stat(entry); err != nil || !info.IsDir() {
			continue
		}

		found, err := walkEntry(ctx, entry)
		if err != nil {
			return nil, err
		}
		for _, pkg := range found {
			if seen[pkg.URL] {
				continue
			}
			seen[pkg.URL] = true
			out = append(out, pkg)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	l.logger.Debug("Catalogued search path", zap.Int("packages", len(out)))
	return out, nil
}

// walkEntry collects the packages under one search path entry. Symlinks
// count when they resolve to a regular file.
func walkEntry(ctx context.Context, root string) ([]Package, error) {
	var (
		mu    sync.Mutex
		found []Package
	)
	conf := fastwalk.Config{Follow: false}

	err := fastwalk.Walk(&conf, root, func(p string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil || d.IsDir() {
			return nil
		}

		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}

		mu.Lock()
		found = append(found, Package{
			URL:  fileScheme + filepath.ToSlash(rel),
			Path: p,
			Size: info.Size(),
		})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}
