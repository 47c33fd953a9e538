// Package plc implements the PLC-side tag-read transport: a binary
// length-prefixed request/response socket, plus a TCP adapter and an
// in-memory fake satisfying the same interface.
package plc

import (
	"context"
	"time"

	"github.com/twinsync/gateway/pkg/model"
)

// Transport is the abstract PLC-side tag reader. ReadAsync resolves "udt"
// expansion and "[a..b]" array ranges internally; the session only ever
// presents the union item list.
type Transport interface {
	Connect(ctx context.Context) error
	Close() error
	ReadAsync(ctx context.Context, items []model.MachineDataItem, timeout time.Duration) (map[string]model.PlcValue, error)
}
