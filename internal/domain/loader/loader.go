// Package loader resolves file:// application URLs to package bytes.
package loader

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ServiceName is the name under which the loader is published
const ServiceName = "appmgr.ApplicationLoader"

const fileScheme = "file://"

// Loader reads packages from the local filesystem, consulting a search path
// for relative URLs.
type Loader struct {
	path   []string
	logger *zap.Logger
}

// New creates a loader with the given search path
func New(path []string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		path:   append([]string(nil), path...),
		logger: logger,
	}
}

// Path returns the search path
func (l *Loader) Path() []string {
	return append([]string(nil), l.path...)
}

// Load returns the package bytes for url. ok is false when the scheme is
// unsupported or no readable file matches.
func (l *Loader) Load(url string) (data []byte, ok bool) {
	path := pathFromURL(url)
	if path == "" {
		l.logger.Error("Cannot load url: scheme not supported", zap.String("url", url))
		return nil, false
	}

	resolved, found := l.resolve(path)
	if !found {
		l.logger.Error("Could not load url", zap.String("url", url))
		return nil, false
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		l.logger.Error("Could not load url", zap.String("url", url), zap.String("path", resolved), zap.Error(err))
		return nil, false
	}

	l.logger.Debug("Loaded package", zap.String("url", url), zap.String("path", resolved), zap.Int("size", len(data)))
	return data, true
}

// resolve tries path as given, then under each search path entry unless
// path is absolute.
func (l *Loader) resolve(path string) (string, bool) {
	if isRegular(path) {
		return path, true
	}
	if filepath.IsAbs(path) {
		return "", false
	}
	for _, entry := range l.path {
		qualified := entry + "/" + path
		if isRegular(qualified) {
			return qualified, true
		}
	}
	return "", false
}

func isRegular(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// pathFromURL returns the path of a file:// URL, or "" for any other URL.
func pathFromURL(url string) string {
	path, ok := strings.CutPrefix(url, fileScheme)
	if !ok {
		return ""
	}
	return path
}
