package robot

import (
	"context"
	"errors"
	"testing"
)

func TestFakeTransport_ConnectCloseLifecycle(t *testing.T) {
	f := NewFakeTransport()
	ctx := context.Background()

	if f.Connected() {
		t.Fatal("should not be connected before Connect")
	}
	if err := f.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !f.Connected() {
		t.Error("should be connected after Connect")
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if f.Connected() {
		t.Error("should not be connected after Close")
	}
	if !f.Closed() {
		t.Error("Closed() should be true after Close")
	}
}

func TestFakeTransport_ConnectError(t *testing.T) {
	f := NewFakeTransport()
	f.ConnectErr = errors.New("refused")

	if err := f.Connect(context.Background()); err == nil {
		t.Fatal("expected connect error")
	}
	if f.Connected() {
		t.Error("should not be connected after failed Connect")
	}
}

func TestFakeTransport_WriteAndReadLine(t *testing.T) {
	f := NewFakeTransport()
	ctx := context.Background()
	_ = f.Connect(ctx)

	f.QueueLines("J=1.0,2.0,3.0,4.0,5.0,6.0", "END")

	if err := f.WriteLine(ctx, "GET_FAST"); err != nil {
		t.Fatalf("WriteLine: %v", err)
	}

	line1, err := f.ReadLine(ctx)
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if line1 != "J=1.0,2.0,3.0,4.0,5.0,6.0" {
		t.Errorf("line1 = %q", line1)
	}

	line2, err := f.ReadLine(ctx)
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if line2 != "END" {
		t.Errorf("line2 = %q, want END", line2)
	}

	writes := f.Writes()
	if len(writes) != 1 || writes[0] != "GET_FAST" {
		t.Errorf("Writes() = %v", writes)
	}
}

func TestFakeTransport_ReadQueueEmpty(t *testing.T) {
	f := NewFakeTransport()
	if _, err := f.ReadLine(context.Background()); !errors.Is(err, ErrFakeQueueEmpty) {
		t.Errorf("expected ErrFakeQueueEmpty, got %v", err)
	}
}

func TestFakeTransport_ReadErrOverride(t *testing.T) {
	f := NewFakeTransport()
	f.QueueLines("ignored")
	f.ReadErr = errors.New("connection reset")

	_, err := f.ReadLine(context.Background())
	if err == nil || err.Error() != "connection reset" {
		t.Errorf("ReadLine err = %v, want connection reset", err)
	}
}

func TestFakeTransport_WriteErrOverride(t *testing.T) {
	f := NewFakeTransport()
	f.WriteErr = errors.New("broken pipe")

	if err := f.WriteLine(context.Background(), "GET_FAST"); err == nil {
		t.Error("expected write error")
	}
}
