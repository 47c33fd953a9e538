package plc

import (
	"context"
	"sync"
	"time"

	"github.com/twinsync/gateway/pkg/model"
)

// FakeTransport is an in-memory Transport for session tests: a test
// populates Values to script what ReadAsync returns per tag path (already
// expanded, so udt/array resolution is the test's responsibility, not
// this fake's).
type FakeTransport struct {
	mu sync.Mutex

	ConnectErr error
	ReadErr    error
	Values     map[string]model.PlcValue

	connected bool
	closed    bool
	lastItems []model.MachineDataItem
	readCount int
}

// NewFakeTransport returns a disconnected fake with no scripted values.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{Values: map[string]model.PlcValue{}}
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

func (f *FakeTransport) ReadAsync(ctx context.Context, items []model.MachineDataItem, timeout time.Duration) (map[string]model.PlcValue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastItems = append([]model.MachineDataItem(nil), items...)
	f.readCount++

	if f.ReadErr != nil {
		return nil, f.ReadErr
	}

	out := make(map[string]model.PlcValue, len(items))
	for _, it := range items {
		if v, ok := f.Values[it.Path]; ok {
			out[it.Path] = v
		} else {
			out[it.Path] = model.NullValue()
		}
	}
	return out, nil
}

// LastItems returns the item list passed to the most recent ReadAsync call.
func (f *FakeTransport) LastItems() []model.MachineDataItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.MachineDataItem(nil), f.lastItems...)
}

// ReadCount returns how many times ReadAsync has been called.
func (f *FakeTransport) ReadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readCount
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
