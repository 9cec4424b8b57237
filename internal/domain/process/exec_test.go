package process

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readPackage(t *testing.T, name string) []byte {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestExecCreatorRunsPackage(t *testing.T) {
	dir := t.TempDir()
	creator := NewExecCreator(dir, nil)

	out, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	defer out.Close()
	creator.stdout = out

	pkg := readPackage(t, "echo")
	proc, err := creator.CreateProcess(context.Background(), pkg, LaunchInfo{URL: "file:///bin/echo", Arguments: []string{"hello"}}, nil)
	require.NoError(t, err)
	assert.Greater(t, proc.Pid(), 0)

	require.NoError(t, proc.Wait())
	require.NoError(t, proc.Wait(), "Wait is repeatable")

	got, err := os.ReadFile(out.Name())
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staging file should be removed once the process is reaped")
}

func TestExecCreatorRunsScriptPackage(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	dir := t.TempDir()
	creator := NewExecCreator(dir, nil)

	out, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	defer out.Close()
	creator.stdout = out

	script := []byte("#!/bin/sh\necho \"$1\"\n")
	for i := 0; i < 20; i++ {
		proc, err := creator.CreateProcess(context.Background(), script, LaunchInfo{URL: "file://script", Arguments: []string{"run"}}, nil)
		require.NoError(t, err)
		require.NoError(t, proc.Wait(), "run %d", i)
	}

	got, err := os.ReadFile(out.Name())
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("run\n", 20), string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExecCreatorKeepsStagingWhileRunning(t *testing.T) {
	dir := t.TempDir()
	creator := NewExecCreator(dir, nil)

	proc, err := creator.CreateProcess(context.Background(), readPackage(t, "sleep"), LaunchInfo{URL: "file:///bin/sleep", Arguments: []string{"30"}}, nil)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, proc.Kill())
	_ = proc.Wait()

	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExecCreatorKill(t *testing.T) {
	creator := NewExecCreator(t.TempDir(), nil)

	proc, err := creator.CreateProcess(context.Background(), readPackage(t, "sleep"), LaunchInfo{URL: "file:///bin/sleep", Arguments: []string{"30"}}, nil)
	require.NoError(t, err)

	require.NoError(t, proc.Kill())

	done := make(chan error, 1)
	go func() { done <- proc.Wait() }()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("killed process did not exit")
	}

	assert.NoError(t, proc.Kill(), "kill after exit is safe")
}

func TestExecCreatorEmptyPackage(t *testing.T) {
	creator := NewExecCreator(t.TempDir(), nil)

	_, err := creator.CreateProcess(context.Background(), nil, LaunchInfo{URL: "file:///nothing"}, nil)
	assert.ErrorIs(t, err, ErrEmptyPackage)
}

func TestExecCreatorNotExecutable(t *testing.T) {
	dir := t.TempDir()
	creator := NewExecCreator(dir, nil)

	_, err := creator.CreateProcess(context.Background(), []byte("plain text, no interpreter"), LaunchInfo{URL: "file:///notes.txt"}, nil)
	assert.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
