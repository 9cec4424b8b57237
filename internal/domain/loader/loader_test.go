package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/GriffinCanCode/AgentOS/appmgr/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestPathFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"file:///bin/app", "/bin/app"},
		{"file://app", "app"},
		{"file://", ""},
		{"http://example.com/app", ""},
		{"/bin/app", ""},
		{"FILE:///bin/app", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, pathFromURL(tt.url), tt.url)
	}
}

func TestLoadAbsolute(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app"), "package")

	l := New(nil, nil)
	data, ok := l.Load("file://" + filepath.Join(dir, "app"))
	require.True(t, ok)
	assert.Equal(t, "package", string(data))
}

func TestLoadSearchPathOrder(t *testing.T) {
	root := t.TempDir()
	a, b := filepath.Join(root, "a"), filepath.Join(root, "b")
	writeFile(t, filepath.Join(b, "x"), "from b")

	l := New([]string{a, b}, nil)
	data, ok := l.Load("file://x")
	require.True(t, ok)
	assert.Equal(t, "from b", string(data))

	writeFile(t, filepath.Join(a, "x"), "from a")
	data, ok = l.Load("file://x")
	require.True(t, ok)
	assert.Equal(t, "from a", string(data), "earlier entries win")
}

func TestLoadUnqualifiedFirst(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "search", "x"), "from search path")
	writeFile(t, filepath.Join(root, "x"), "from cwd")

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(root))
	t.Cleanup(func() { os.Chdir(wd) })

	l := New([]string{filepath.Join(root, "search")}, nil)
	data, ok := l.Load("file://x")
	require.True(t, ok)
	assert.Equal(t, "from cwd", string(data))
}

func TestLoadAbsoluteIgnoresSearchPath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "search", "abs", "x"), "should not be found")

	l := New([]string{filepath.Join(root, "search")}, nil)
	_, ok := l.Load("file:///abs/x")
	assert.False(t, ok)
}

func TestLoadFailures(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dir"), 0o755))

	l := New([]string{root}, nil)

	for _, url := range []string{
		"http://example.com/x",
		"file://",
		"file://missing",
		"file://dir",
	} {
		data, ok := l.Load(url)
		assert.False(t, ok, url)
		assert.Nil(t, data, url)
	}
}

func TestServeAndClient(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app"), "#!/bin/sh\nexit 0\n")
	l := New([]string{root}, nil)

	a, b, err := transport.Pair()
	require.NoError(t, err)
	l.Connector()(b)

	client := NewClient(a)
	defer client.Close()
	ctx := context.Background()

	data, err := client.Load(ctx, "file://app")
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\nexit 0\n", string(data))

	_, err = client.Load(ctx, "file://missing")
	assert.ErrorIs(t, err, ErrNotFound)

	// the session survives a miss
	data, err = client.Load(ctx, "file://app")
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestClientLoaderGone(t *testing.T) {
	a, b, err := transport.Pair()
	require.NoError(t, err)
	b.Close()

	client := NewClient(a)
	defer client.Close()

	_, err = client.Load(context.Background(), "file://app")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
