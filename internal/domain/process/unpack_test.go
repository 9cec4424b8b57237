package process

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const script = "#!/bin/sh\necho unpacked \"$@\"\n"

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func zstded(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

func TestUnpack(t *testing.T) {
	tests := []struct {
		name string
		pkg  []byte
		mime string
	}{
		{"plain", []byte(script), "text/plain"},
		{"gzip", gzipped(t, []byte(script)), "application/gzip"},
		{"zstd", zstded(t, []byte(script)), "application/zstd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, mime, err := Unpack(tt.pkg)
			require.NoError(t, err)
			assert.Equal(t, script, string(got))
			assert.Contains(t, mime, tt.mime)
		})
	}
}

func TestUnpackCorrupt(t *testing.T) {
	good := gzipped(t, bytes.Repeat([]byte("x"), 4096))
	corrupt := append([]byte(nil), good[:20]...)

	_, _, err := Unpack(corrupt)
	assert.Error(t, err)
}

func TestExecCreatorRunsCompressedPackage(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}

	creator := NewExecCreator(t.TempDir(), nil)
	out, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	defer out.Close()
	creator.stdout = out

	proc, err := creator.CreateProcess(context.Background(), gzipped(t, []byte(script)), LaunchInfo{URL: "file://packed", Arguments: []string{"ok"}}, nil)
	require.NoError(t, err)
	require.NoError(t, proc.Wait())

	got, err := os.ReadFile(out.Name())
	require.NoError(t, err)
	assert.Equal(t, "unpacked ok\n", string(got))
}
