package transport

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ping struct {
	Op   string `json:"op"`
	Name string `json:"name,omitempty"`
}

func TestSendReceive(t *testing.T) {
	a, b, err := Pair()
	require.NoError(t, err)

	ca, cb := NewConn(a), NewConn(b)
	defer ca.Close()
	defer cb.Close()

	require.NoError(t, ca.Send(ping{Op: "hello", Name: "x"}, nil))

	var got ping
	h, err := cb.Receive(&got)
	require.NoError(t, err)
	assert.Nil(t, h)
	assert.Equal(t, ping{Op: "hello", Name: "x"}, got)
}

func TestHandleTransfer(t *testing.T) {
	a, b, err := Pair()
	require.NoError(t, err)
	ca, cb := NewConn(a), NewConn(b)
	defer ca.Close()
	defer cb.Close()

	x, y, err := Pair()
	require.NoError(t, err)
	cy := NewConn(y)
	defer cy.Close()

	require.NoError(t, ca.Send(ping{Op: "open"}, x))

	var got ping
	h, err := cb.Receive(&got)
	require.NoError(t, err)
	require.NotNil(t, h)

	// the received handle is the same channel x was
	ch := NewConn(h)
	defer ch.Close()
	require.NoError(t, ch.Send(ping{Op: "through"}, nil))

	var through ping
	_, err = cy.Receive(&through)
	require.NoError(t, err)
	assert.Equal(t, "through", through.Op)
}

func TestSendConsumesHandle(t *testing.T) {
	a, b, err := Pair()
	require.NoError(t, err)
	ca := NewConn(a)
	defer ca.Close()

	x, y, err := Pair()
	require.NoError(t, err)
	cy := NewConn(y)
	defer cy.Close()

	// peer gone: send fails but x must still be released
	b.Close()
	_ = ca.Send(ping{Op: "open"}, x)
	_ = ca.Send(ping{Op: "open"}, nil)

	_, err = cy.Receive(&ping{})
	assert.ErrorIs(t, err, io.EOF)
}

func TestReceiveEOF(t *testing.T) {
	a, b, err := Pair()
	require.NoError(t, err)
	cb := NewConn(b)
	defer cb.Close()

	a.Close()
	_, err = cb.Receive(&ping{})
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameTooLarge(t *testing.T) {
	a, b, err := Pair()
	require.NoError(t, err)
	cb := NewConn(b)
	defer cb.Close()
	defer a.Close()

	var hdr [headerSize]byte
	binary.BigEndian.PutUint32(hdr[:], MaxFrameSize+1)
	_, err = a.Write(hdr[:])
	require.NoError(t, err)

	_, err = cb.Receive(&ping{})
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestRawPayload(t *testing.T) {
	a, b, err := Pair()
	require.NoError(t, err)
	ca, cb := NewConn(a), NewConn(b)
	defer ca.Close()
	defer cb.Close()

	payload := []byte("#!/bin/sh\necho hi\n")
	require.NoError(t, ca.Send(map[string]int{"size": len(payload)}, nil))
	require.NoError(t, ca.Write(payload))

	var hdr map[string]int
	_, err = cb.Receive(&hdr)
	require.NoError(t, err)

	got, err := cb.ReadFull(hdr["size"])
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestTruncatedFrame(t *testing.T) {
	a, b, err := Pair()
	require.NoError(t, err)
	cb := NewConn(b)
	defer cb.Close()

	var hdr [headerSize]byte
	binary.BigEndian.PutUint32(hdr[:], 10)
	_, err = a.Write(append(hdr[:], '{'))
	require.NoError(t, err)
	a.Close()

	_, err = cb.Receive(&ping{})
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
