package robot

import (
	"context"
	"errors"
	"sync"
)

// ErrFakeQueueEmpty is returned by FakeTransport.ReadLine when no scripted
// line remains and no ReadErr override is set.
var ErrFakeQueueEmpty = errors.New("robot: fake transport read queue empty")

// FakeTransport is an in-memory Transport for session tests: a test
// scripts ReadLine responses with QueueLines and inspects WriteLine calls
// via Writes.
type FakeTransport struct {
	mu sync.Mutex

	ConnectErr error
	WriteErr   error
	ReadErr    error

	connected bool
	closed    bool
	writes    []string
	readQueue []string
}

// NewFakeTransport returns a disconnected fake.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{}
}

func (f *FakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.connected = true
	f.closed = false
	return nil
}

func (f *FakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.closed = true
	return nil
}

func (f *FakeTransport) WriteLine(ctx context.Context, line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteErr != nil {
		return f.WriteErr
	}
	f.writes = append(f.writes, line)
	return nil
}

func (f *FakeTransport) ReadLine(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadErr != nil {
		return "", f.ReadErr
	}
	if len(f.readQueue) == 0 {
		return "", ErrFakeQueueEmpty
	}
	line := f.readQueue[0]
	f.readQueue = f.readQueue[1:]
	return line, nil
}

// QueueLines appends lines to be returned, in order, by future ReadLine calls.
func (f *FakeTransport) QueueLines(lines ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readQueue = append(f.readQueue, lines...)
}

// Writes returns a copy of every line passed to WriteLine so far.
func (f *FakeTransport) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.writes))
	copy(out, f.writes)
	return out
}

// Connected reports whether Connect has succeeded and Close hasn't been called since.
func (f *FakeTransport) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Closed reports whether Close has been called.
func (f *FakeTransport) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
