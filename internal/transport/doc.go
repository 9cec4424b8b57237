// Package transport provides the one-shot communication endpoints used by the
// component manager.
//
// An endpoint is one end of a connected Unix stream socket pair. Endpoints are
// capabilities: they are handed from one party to another by passing the
// underlying descriptor with SCM_RIGHTS, so the receiver ends up holding the
// very same channel the sender created.
//
// Messages are framed as a 4-byte big-endian length followed by a JSON body.
// A frame can carry at most one endpoint. Raw payloads may follow a frame
// when a protocol announces their size in the frame body.
//
// Example Usage:
//
//	local, remote, err := transport.Pair()
//	conn := transport.NewConn(local)
//	err = conn.Send(msg, handle)
//	handle, err = conn.Receive(&msg)
package transport
