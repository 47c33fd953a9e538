package robot

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"
)

func startEchoServer(t *testing.T) (host string, port int, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	done := make(chan struct{})
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				reader := bufio.NewReader(conn)
				for {
					line, err := reader.ReadString('\n')
					if err != nil {
						return
					}
					line = strings.TrimRight(line, "\r\n")
					if line == "GET_FAST" {
						conn.Write([]byte("J=1.0,2.0,3.0,4.0,5.0,6.0\n"))
						conn.Write([]byte("END\n"))
					} else {
						conn.Write([]byte("OK\n"))
					}
				}
			}()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port, func() {
		ln.Close()
		close(done)
	}
}

func TestTCPTransport_ConnectWriteRead(t *testing.T) {
	host, port, stop := startEchoServer(t)
	defer stop()

	tr := NewTCPTransport(host, port, 2*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tr.Close()

	if err := tr.WriteLine(ctx, "GET_FAST"); err != nil {
		t.Fatalf("WriteLine: %v", err)
	}

	line1, err := tr.ReadLine(ctx)
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if line1 != "J=1.0,2.0,3.0,4.0,5.0,6.0" {
		t.Errorf("line1 = %q", line1)
	}

	line2, err := tr.ReadLine(ctx)
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if line2 != "END" {
		t.Errorf("line2 = %q, want END", line2)
	}
}

func TestTCPTransport_PlanCommandOK(t *testing.T) {
	host, port, stop := startEchoServer(t)
	defer stop()

	tr := NewTCPTransport(host, port, 2*time.Second)
	ctx := context.Background()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tr.Close()

	if err := tr.WriteLine(ctx, "PLAN_DI=1,2,3"); err != nil {
		t.Fatalf("WriteLine: %v", err)
	}
	line, err := tr.ReadLine(ctx)
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if line != "OK" {
		t.Errorf("line = %q, want OK", line)
	}
}

func TestTCPTransport_ConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close() // nothing listening now

	tr := NewTCPTransport("127.0.0.1", port, 500*time.Millisecond)
	if err := tr.Connect(context.Background()); err == nil {
		t.Error("expected connect error to a closed port")
	}
}

func TestTCPTransport_WriteBeforeConnect(t *testing.T) {
	tr := NewTCPTransport("127.0.0.1", 1, time.Second)
	if err := tr.WriteLine(context.Background(), "GET_FAST"); err == nil {
		t.Error("expected error writing before connect")
	}
}

func TestTCPTransport_ReadDeadlineExceeded(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(500 * time.Millisecond) // never responds in time
	}()

	addr := ln.Addr().(*net.TCPAddr)
	tr := NewTCPTransport(addr.IP.String(), addr.Port, time.Second)
	ctx := context.Background()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tr.Close()

	readCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	if _, err := tr.ReadLine(readCtx); err == nil {
		t.Error("expected a deadline-exceeded read error")
	}
}

func TestTCPTransport_AddrFormat(t *testing.T) {
	// sanity check that NewTCPTransport doesn't require a pre-resolved address
	tr := NewTCPTransport("127.0.0.1", 65535, time.Millisecond)
	if tr.host != "127.0.0.1" || tr.port != 65535 {
		t.Errorf("unexpected fields: %+v", tr)
	}
	_ = strconv.Itoa(tr.port)
}
