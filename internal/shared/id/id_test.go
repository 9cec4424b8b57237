package id

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUnique(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	assert.NotEqual(t, id1, id2)
	assert.Equal(t, -1, id1.Compare(id2), "monotonic ids should sort in generation order")
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	for _, prefix := range []string{ControllerPrefix, RequestPrefix} {
		s := gen.GenerateWithPrefix(prefix)
		require.True(t, strings.HasPrefix(s, prefix+"_"), s)

		_, err := ParsePrefixed(s, prefix)
		assert.NoError(t, err)
	}
}

func TestTypedIDs(t *testing.T) {
	assert.True(t, strings.HasPrefix(NewControllerID().String(), "ctl_"))
	assert.True(t, strings.HasPrefix(NewRequestID().String(), "req_"))
}

func TestParseControllerID(t *testing.T) {
	ctl := NewControllerID()

	got, err := ParseControllerID(ctl.String())
	require.NoError(t, err)
	assert.Equal(t, ctl, got)

	_, err = ParseControllerID(NewRequestID().String())
	assert.Error(t, err)

	_, err = ParseControllerID("ctl_not-a-ulid")
	assert.Error(t, err)
}

func TestDeterministicEntropy(t *testing.T) {
	entropy := bytes.Repeat([]byte{7}, 64)
	a := NewGeneratorWithEntropy(bytes.NewReader(entropy)).Generate()
	b := NewGeneratorWithEntropy(bytes.NewReader(entropy)).Generate()

	assert.Equal(t, a.Entropy(), b.Entropy())
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()
	const n = 200

	var mu sync.Mutex
	seen := make(map[string]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := gen.GenerateWithPrefix(ControllerPrefix)
			mu.Lock()
			seen[s] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
}
