// Package robot implements the robot-side line transport: a socket
// connection speaking a newline-delimited command/response protocol, plus
// a TCP adapter and an in-memory fake satisfying the same interface.
package robot

import "context"

// Transport is the abstract robot-side socket. The session layer owns
// framing (GET_FAST/END, PLAN_*/OK); the transport only owns byte I/O.
type Transport interface {
	Connect(ctx context.Context) error
	Close() error
	WriteLine(ctx context.Context, line string) error
	ReadLine(ctx context.Context) (string, error)
}
