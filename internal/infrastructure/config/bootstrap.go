package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/process"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Bootstrap is the content of an initial configuration file: the loader
// search path and the applications to start once the root environment is
// up.
type Bootstrap struct {
	Path        []string
	InitialApps []process.LaunchInfo
}

// bootstrapFile mirrors the on-disk layout. Each initial app is either a URL
// or a list whose head is the URL and whose tail is the arguments.
type bootstrapFile struct {
	Path        []string `json:"path" yaml:"path" toml:"path"`
	InitialApps []any    `json:"initial-apps" yaml:"initial-apps" toml:"initial-apps"`
}

// ReadBootstrap parses the file at path, choosing the format by extension:
// .yaml and .yml are YAML, .toml is TOML, anything else is JSON.
func ReadBootstrap(path string) (*Bootstrap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	b, err := ParseBootstrap(data, formatOf(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return b, nil
}

// ReadBootstrapIfExists is ReadBootstrap that treats a missing file as empty.
func ReadBootstrapIfExists(path string) (*Bootstrap, error) {
	b, err := ReadBootstrap(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Bootstrap{}, nil
	}
	return b, err
}

// Format of a bootstrap file
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

func formatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return FormatJSON
	}
}

// ParseBootstrap decodes data in the given format.
func ParseBootstrap(data []byte, format Format) (*Bootstrap, error) {
	var raw bootstrapFile
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	case FormatTOML:
		err = toml.Unmarshal(data, &raw)
	default:
		err = sonic.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, err
	}

	b := &Bootstrap{Path: raw.Path}
	for i, entry := range raw.InitialApps {
		info, err := launchInfo(entry)
		if err != nil {
			return nil, fmt.Errorf("initial-apps[%d]: %w", i, err)
		}
		b.InitialApps = append(b.InitialApps, info)
	}
	return b, nil
}

func launchInfo(entry any) (process.LaunchInfo, error) {
	switch v := entry.(type) {
	case string:
		if v == "" {
			return process.LaunchInfo{}, errors.New("empty url")
		}
		return process.LaunchInfo{URL: v}, nil
	case []any:
		if len(v) == 0 {
			return process.LaunchInfo{}, errors.New("empty list")
		}
		parts := make([]string, len(v))
		for i, p := range v {
			s, ok := p.(string)
			if !ok {
				return process.LaunchInfo{}, fmt.Errorf("element %d is %T, want string", i, p)
			}
			parts[i] = s
		}
		if parts[0] == "" {
			return process.LaunchInfo{}, errors.New("empty url")
		}
		info := process.LaunchInfo{URL: parts[0]}
		if len(parts) > 1 {
			info.Arguments = parts[1:]
		}
		return info, nil
	default:
		return process.LaunchInfo{}, fmt.Errorf("unsupported entry type %T", entry)
	}
}

// ExpandPath replaces glob entries of a search path with their matches in
// lexical order. Plain entries are kept as they are, existing or not.
func ExpandPath(path []string) ([]string, error) {
	var out []string
	for _, entry := range path {
		if !hasMeta(entry) {
			out = append(out, entry)
			continue
		}

		matches, err := doublestar.FilepathGlob(entry)
		if err != nil {
			return nil, fmt.Errorf("bad search path pattern %q: %w", entry, err)
		}
		sort.Strings(matches)
		out = append(out, matches...)
	}
	return out, nil
}

func hasMeta(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

// Merge appends other's search path and initial apps to b.
func (b *Bootstrap) Merge(other *Bootstrap) {
	if other == nil {
		return
	}
	b.Path = append(b.Path, other.Path...)
	b.InitialApps = append(b.InitialApps, other.InitialApps...)
}
