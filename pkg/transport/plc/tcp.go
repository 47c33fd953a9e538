package plc

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"regexp"
	"sync"
	"time"

	"github.com/twinsync/gateway/pkg/model"
)

var arrayRangeRe = regexp.MustCompile(`^(.+)\[(\d+)\.\.(\d+)\]$`)

// resolution records how one requested item expands into leaf tag paths
// that are actually sent over the wire.
type resolution struct {
	kind   string // "scalar", "struct", "array"
	leaves []string
	fields []string // struct member names, parallel to leaves
}

// TCPTransport is the native adapter: a TCP socket speaking a
// length-prefixed JSON tag-read protocol, with UDT and array-range
// expansion resolved client-side against a configured type map.
type TCPTransport struct {
	host        string
	port        int
	dialTimeout time.Duration

	udtMembers       map[string][]string
	maxArrayElements int

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// NewTCPTransport builds a TCP adapter. udtMembers maps a UDT tag path to
// its ordered member names, used to resolve expand="udt" items.
// maxArrayElements caps "[a..b]" range expansion.
func NewTCPTransport(host string, port int, dialTimeout time.Duration, udtMembers map[string][]string, maxArrayElements int) *TCPTransport {
	if maxArrayElements <= 0 {
		maxArrayElements = 1000
	}
	return &TCPTransport{
		host:             host,
		port:             port,
		dialTimeout:      dialTimeout,
		udtMembers:       udtMembers,
		maxArrayElements: maxArrayElements,
	}
}

func (t *TCPTransport) Connect(ctx context.Context) error {
	dialer := net.Dialer{Timeout: t.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", t.host, t.port))
	if err != nil {
		return fmt.Errorf("dialing %s:%d: %w", t.host, t.port, err)
	}

	t.mu.Lock()
	t.conn = conn
	t.reader = bufio.NewReader(conn)
	t.mu.Unlock()
	return nil
}

func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.reader = nil
	return err
}

// resolveItems expands udt/array items into the flat leaf path list
// actually requested over the wire, and records how to reassemble them.
func (t *TCPTransport) resolveItems(items []model.MachineDataItem) (map[string]resolution, []string) {
	resolved := make(map[string]resolution, len(items))
	var leaves []string

	for _, it := range items {
		switch {
		case it.Expand == "udt":
			members := t.udtMembers[it.Path]
			itemLeaves := make([]string, len(members))
			for i, m := range members {
				itemLeaves[i] = it.Path + "." + m
			}
			resolved[it.Path] = resolution{kind: "struct", leaves: itemLeaves, fields: members}
			leaves = append(leaves, itemLeaves...)

		default:
			if m := arrayRangeRe.FindStringSubmatch(it.Path); m != nil {
				base := m[1]
				lo := atoiOr(m[2], 0)
				hi := atoiOr(m[3], lo)
				if hi-lo+1 > t.maxArrayElements {
					hi = lo + t.maxArrayElements - 1
				}
				itemLeaves := make([]string, 0, hi-lo+1)
				for i := lo; i <= hi; i++ {
					itemLeaves = append(itemLeaves, fmt.Sprintf("%s[%d]", base, i))
				}
				resolved[it.Path] = resolution{kind: "array", leaves: itemLeaves}
				leaves = append(leaves, itemLeaves...)
			} else {
				resolved[it.Path] = resolution{kind: "scalar", leaves: []string{it.Path}}
				leaves = append(leaves, it.Path)
			}
		}
	}

	return resolved, leaves
}

func atoiOr(s string, fallback int) int {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return fallback
	}
	return n
}

type readRequest struct {
	Paths []string `json:"paths"`
}

type readResponse struct {
	Values map[string]model.PlcValue `json:"values"`
	Error  string                    `json:"error,omitempty"`
}

func (t *TCPTransport) ReadAsync(ctx context.Context, items []model.MachineDataItem, timeout time.Duration) (map[string]model.PlcValue, error) {
	t.mu.Lock()
	conn := t.conn
	reader := t.reader
	t.mu.Unlock()
	if conn == nil || reader == nil {
		return nil, fmt.Errorf("plc transport: not connected")
	}

	resolved, leaves := t.resolveItems(items)

	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = conn.SetDeadline(deadline)
	defer conn.SetDeadline(time.Time{})

	if err := writeFramed(conn, readRequest{Paths: leaves}); err != nil {
		return nil, fmt.Errorf("plc transport: write request: %w", err)
	}

	var resp readResponse
	if err := readFramed(reader, &resp); err != nil {
		return nil, fmt.Errorf("plc transport: read response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("plc transport: device error: %s", resp.Error)
	}

	out := make(map[string]model.PlcValue, len(items))
	for _, it := range items {
		r := resolved[it.Path]
		switch r.kind {
		case "struct":
			members := make(map[string]model.PlcValue, len(r.fields))
			for i, field := range r.fields {
				members[field] = resp.Values[r.leaves[i]]
			}
			out[it.Path] = model.StructValue(members)
		case "array":
			arr := make([]model.PlcValue, len(r.leaves))
			for i, leaf := range r.leaves {
				arr[i] = resp.Values[leaf]
			}
			out[it.Path] = model.ArrayValue(arr)
		default:
			out[it.Path] = resp.Values[it.Path]
		}
	}
	return out, nil
}

func writeFramed(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(data)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func readFramed(r io.Reader, v interface{}) error {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return err
	}
	size := binary.BigEndian.Uint32(header)
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}
