// Package session implements the generic device-session supervisor that
// RobotSession and PlcSession layer on top of: transport lifecycle,
// one polling iteration per run-loop tick under cancellation, and the
// publishAllowed demand gate.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/twinsync/gateway/pkg/model"
)

// idleSleep is how long the run loop waits between checks while publishing
// is gated off, so it never spins a subclass's readFrame for nothing.
const idleSleep = 50 * time.Millisecond

// MaxReconnectBackoff caps the reconnect delay regardless of attempt count.
const MaxReconnectBackoff = 10 * time.Second

// ReconnectStep is the per-attempt backoff increment.
const ReconnectStep = 500 * time.Millisecond

// DefaultReconnectBackoff implements the reconnect policy described in
// §4.2: min(10s, 500ms * attempt).
func DefaultReconnectBackoff(attempt int) time.Duration {
	d := time.Duration(attempt) * ReconnectStep
	if d > MaxReconnectBackoff {
		return MaxReconnectBackoff
	}
	return d
}

// Hooks is implemented by a concrete device session (RobotSession,
// PlcSession) to supply the three operations DeviceSessionBase can't do
// generically: bring the transport up, read one frame, and tear it down.
type Hooks[F any] interface {
	OnConnect(ctx context.Context) error
	OnDisconnect(ctx context.Context)
	// ReadFrame performs one poll/stream iteration. seq is the
	// monotonically increasing sequence number the caller must stamp
	// onto the returned frame.
	ReadFrame(ctx context.Context, seq int64) (F, error)
}

// DeviceSessionBase is the generic supervisor described in the component
// design: it owns connect/disconnect, the run-loop goroutine, and the
// publishAllowed gate, and is parameterized by the frame type F a
// concrete device session produces.
type DeviceSessionBase[F any] struct {
	hooks Hooks[F]

	// ReadOnlyWhenPublishAllowed gates the run loop on publishAllowed
	// before calling ReadFrame. Defaults to true.
	ReadOnlyWhenPublishAllowed bool

	OnStatusChanged         func(status model.DeviceStatus, err error)
	OnFrameReceived         func(frame F)
	OnPublishAllowedChanged func(allowed bool)

	mu             sync.Mutex
	status         model.DeviceStatus
	publishAllowed bool
	connected      bool
	cancel         context.CancelFunc

	wg  sync.WaitGroup
	seq int64

	faulted chan error
}

// NewDeviceSessionBase constructs a supervisor around hooks, initially Disconnected.
func NewDeviceSessionBase[F any](hooks Hooks[F]) *DeviceSessionBase[F] {
	return &DeviceSessionBase[F]{
		hooks:                      hooks,
		ReadOnlyWhenPublishAllowed: true,
		status:                     model.Disconnected,
		faulted:                    make(chan error, 1),
	}
}

// Status returns the session's current DeviceStatus.
func (b *DeviceSessionBase[F]) Status() model.DeviceStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// PublishAllowed reports the current gate state.
func (b *DeviceSessionBase[F]) PublishAllowed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.publishAllowed
}

func (b *DeviceSessionBase[F]) setStatus(s model.DeviceStatus, err error) {
	b.mu.Lock()
	b.status = s
	b.mu.Unlock()
	if b.OnStatusChanged != nil {
		b.OnStatusChanged(s, err)
	}
}

// SetPublishAllowed is edge-triggered: OnPublishAllowedChanged only fires
// when the value actually flips.
func (b *DeviceSessionBase[F]) SetPublishAllowed(allowed bool) {
	b.mu.Lock()
	changed := b.publishAllowed != allowed
	b.publishAllowed = allowed
	b.mu.Unlock()

	if changed && b.OnPublishAllowedChanged != nil {
		b.OnPublishAllowedChanged(allowed)
	}
}

// Connect transitions Disconnected -> Connecting, invokes the OnConnect
// hook, and on success launches the run loop and transitions through
// Connected to Streaming. On failure it sets publishAllowed=false,
// transitions to Faulted, and returns the original error.
func (b *DeviceSessionBase[F]) Connect(ctx context.Context) error {
	b.setStatus(model.Connecting, nil)

	if err := b.hooks.OnConnect(ctx); err != nil {
		b.SetPublishAllowed(false)
		b.setStatus(model.Faulted, err)
		return err
	}

	b.setStatus(model.Connected, nil)

	runCtx, cancel := context.WithCancel(context.Background())
	b.mu.Lock()
	b.cancel = cancel
	b.connected = true
	b.mu.Unlock()

	b.wg.Add(1)
	go b.runLoop(runCtx)

	b.setStatus(model.Streaming, nil)
	return nil
}

// Disconnect is idempotent: it gates off publishing, cancels the run loop,
// awaits its completion, invokes OnDisconnect, and transitions to
// Disconnected. A second call on an already-disconnected session is a no-op.
func (b *DeviceSessionBase[F]) Disconnect(ctx context.Context) {
	b.mu.Lock()
	if !b.connected {
		b.mu.Unlock()
		return
	}
	b.connected = false
	cancel := b.cancel
	b.cancel = nil
	b.mu.Unlock()

	b.SetPublishAllowed(false)

	if cancel != nil {
		cancel()
	}
	b.wg.Wait()

	b.hooks.OnDisconnect(ctx)
	b.setStatus(model.Disconnected, nil)
}

func (b *DeviceSessionBase[F]) runLoop(ctx context.Context) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if b.ReadOnlyWhenPublishAllowed && !b.PublishAllowed() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idleSleep):
			}
			continue
		}

		seq := atomic.AddInt64(&b.seq, 1)
		frame, err := b.hooks.ReadFrame(ctx, seq)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			b.handleFault(err)
			return
		}

		if b.OnFrameReceived != nil {
			b.OnFrameReceived(frame)
		}
	}
}

// handleFault implements §3.I5's "Faulted always transitions to
// Disconnected after cleanup": it gates off publishing, transitions to
// Faulted, runs the same teardown Disconnect would, and transitions to
// Disconnected — then notifies any reconnect supervisor via the faulted
// channel so it can retry with backoff.
func (b *DeviceSessionBase[F]) handleFault(err error) {
	b.SetPublishAllowed(false)
	b.setStatus(model.Faulted, err)

	b.mu.Lock()
	b.connected = false
	b.cancel = nil
	b.mu.Unlock()

	b.hooks.OnDisconnect(context.Background())
	b.setStatus(model.Disconnected, nil)

	select {
	case b.faulted <- err:
	default:
	}
}

// Faulted reports non-cancellation run-loop faults, one per fault
// transition, for a reconnect supervisor (e.g. Run) to observe.
func (b *DeviceSessionBase[F]) Faulted() <-chan error {
	return b.faulted
}

// Run supervises Connect/fault/reconnect for the lifetime of ctx: it
// connects once (propagating a first-connect failure to the caller, per
// §7), then on every subsequent fault waits backoff(attempt) and
// reconnects, retrying indefinitely until ctx is cancelled. On
// cancellation it disconnects and returns nil — cancellation is a normal
// exit path, not an error.
func (b *DeviceSessionBase[F]) Run(ctx context.Context, backoff func(attempt int) time.Duration) error {
	if err := b.Connect(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			b.Disconnect(context.Background())
			return nil
		case <-b.faulted:
		}

		attempt := 0
		for {
			attempt++
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff(attempt)):
			}
			if err := b.Connect(ctx); err == nil {
				break
			}
		}
	}
}
