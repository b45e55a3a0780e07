// Package transport owns the connection to the emulator's binary monitor.
// A single goroutine dials, writes queued commands and frames incoming
// responses; callers only touch the two queues.
package transport

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Manu343726/vicemon/pkg/vice/protocol"
	"golang.org/x/sync/errgroup"
)

const readBufferSize = 0x4000

type queuedCommand struct {
	frame []byte
	kind  protocol.Kind
	id    uint32
}

type Transport struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	outgoing []queuedCommand
	incoming []*protocol.Response
	closed   bool

	// Buffered with capacity 1 so Send never blocks and wakeups coalesce
	wake chan struct{}

	connected   atomic.Bool
	drop        atomic.Bool
	generation  atomic.Uint64
	discarded   atomic.Uint64
	framedCount atomic.Uint64

	cancel context.CancelFunc
	group  *errgroup.Group
}

func New(opts Options) *Transport {
	opts = opts.withDefaults()

	return &Transport{
		opts:   opts,
		logger: opts.Logger.With(slog.String("component", "transport"), slog.String("address", opts.Address)),
		wake:   make(chan struct{}, 1),
	}
}

// Starts the connection loop. The loop keeps reconnecting until ctx is
// cancelled or Close is called.
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.group != nil {
		return ErrAlreadyStarted
	}

	ctx, t.cancel = context.WithCancel(ctx)
	t.group, ctx = errgroup.WithContext(ctx)
	t.group.Go(func() error {
		return t.run(ctx)
	})

	return nil
}

// Stops the connection loop and waits for it to finish. Queued commands that
// were not sent yet are dropped.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}

	t.closed = true
	cancel, group := t.cancel, t.group
	t.mu.Unlock()

	if group == nil {
		return nil
	}

	cancel()
	return group.Wait()
}

// Queues a command. The command is encoded immediately, so it may be reset
// and reused as soon as Send returns. Commands are written in FIFO order and
// survive reconnections.
func (t *Transport) Send(c *protocol.Command) error {
	t.mu.Lock()

	if t.closed {
		t.mu.Unlock()
		return makeError(ErrClosed, "cannot send %v", c)
	}

	t.outgoing = append(t.outgoing, queuedCommand{frame: c.Bytes(), kind: c.Kind(), id: c.ID()})
	t.mu.Unlock()

	t.signal()
	return nil
}

// Calls fn once per framed response, in arrival order, and returns how many
// were processed. fn runs on the caller goroutine without any lock held.
func (t *Transport) ProcessResponses(fn func(*protocol.Response)) int {
	t.mu.Lock()
	responses := t.incoming
	t.incoming = nil
	t.mu.Unlock()

	for _, r := range responses {
		fn(r)
	}

	return len(responses)
}

// Returns true while a connection is established
func (t *Transport) Connected() bool {
	return t.connected.Load()
}

// Drops the current connection so the loop reconnects. Used when the
// emulator stops answering.
func (t *Transport) ClearConnected() {
	if t.connected.Load() {
		t.drop.Store(true)
		t.signal()
	}
}

// Number of connections established so far. Changes every time the transport reconnects.
func (t *Transport) Generation() uint64 {
	return t.generation.Load()
}

// Total bytes dropped while resynchronizing the incoming stream
func (t *Transport) Discarded() uint64 {
	return t.discarded.Load()
}

// Total responses framed so far
func (t *Transport) Framed() uint64 {
	return t.framedCount.Load()
}

// Number of commands waiting to be written
func (t *Transport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.outgoing)
}

// Waits until every queued command has been written or ctx is done
func (t *Transport) Flush(ctx context.Context) error {
	ticker := time.NewTicker(t.opts.SendWait)
	defer ticker.Stop()

	for t.Pending() > 0 {
		select {
		case <-ctx.Done():
			return makeError(ctx.Err(), "%d commands still queued", t.Pending())
		case <-ticker.C:
		}
	}

	return nil
}

func (t *Transport) signal() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *Transport) run(ctx context.Context) error {
	delay := t.opts.ReconnectDelay

	for ctx.Err() == nil {
		conn, err := t.opts.Dialer.DialContext(ctx, "tcp", t.opts.Address)
		if err != nil {
			if ctx.Err() != nil {
				break
			}

			t.logger.Debug("connection attempt failed", slog.Any("error", err), slog.Duration("retry_in", delay))

			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}

			delay = min(delay*2, t.opts.MaxReconnectDelay)
			continue
		}

		delay = t.opts.ReconnectDelay
		t.drop.Store(false)
		t.connected.Store(true)
		t.generation.Add(1)
		t.logger.Info("connected", slog.Uint64("generation", t.generation.Load()))

		err = t.serve(ctx, conn)

		t.connected.Store(false)
		conn.Close()

		if ctx.Err() != nil {
			break
		}

		t.logger.Warn("connection lost", slog.Any("error", err))
	}

	t.logger.Debug("transport loop finished")
	return nil
}

func (t *Transport) serve(ctx context.Context, conn net.Conn) error {
	pending := make([]byte, 0, readBufferSize)
	chunk := make([]byte, readBufferSize)

	timer := time.NewTimer(t.opts.SendWait)
	defer timer.Stop()

	for {
		if t.drop.Swap(false) {
			return errDropped
		}

		timer.Reset(t.opts.SendWait)

		select {
		case <-ctx.Done():
			return nil
		case <-t.wake:
		case <-timer.C:
		}

		if err := t.writeQueued(conn); err != nil {
			return err
		}

		if err := conn.SetReadDeadline(time.Now().Add(t.opts.ReadTimeout)); err != nil {
			return err
		}

		n, err := conn.Read(chunk)
		if n > 0 {
			pending = t.frame(append(pending, chunk[:n]...))
		}

		if err != nil && !isTimeout(err) {
			return err
		}
	}
}

// Writes queued commands in order. A command leaves the queue only once it
// has been fully written, so a failed write is retried on the next connection.
func (t *Transport) writeQueued(conn net.Conn) error {
	for {
		t.mu.Lock()
		if len(t.outgoing) == 0 {
			t.mu.Unlock()
			return nil
		}
		next := t.outgoing[0]
		t.mu.Unlock()

		if err := conn.SetWriteDeadline(time.Now().Add(t.opts.WriteTimeout)); err != nil {
			return err
		}

		if _, err := conn.Write(next.frame); err != nil {
			return err
		}

		t.logger.Debug("command sent",
			slog.String("kind", next.kind.String()),
			slog.String("id", protocol.FormatID(next.id)),
			slog.Int("size", len(next.frame)))

		t.mu.Lock()
		t.outgoing = t.outgoing[1:]
		t.mu.Unlock()
	}
}

// Extracts every complete response from buf and returns the bytes that must
// be kept for the next read.
func (t *Transport) frame(buf []byte) []byte {
	var framed []*protocol.Response
	consumed := 0

	for consumed < len(buf) {
		result := protocol.Process(buf[consumed:], t.opts.MaxResponseSize)

		if discarded := result.Discarded(); discarded > 0 {
			t.discard(discarded)
		}

		consumed += result.Next

		if result.Response == nil {
			break
		}

		t.logger.Debug("response received",
			slog.String("kind", result.Response.Kind().String()),
			slog.String("error", result.Response.ErrorCode().String()),
			slog.String("id", protocol.FormatID(result.Response.ID())),
			slog.Int("body", result.Response.BodyLen()))

		framed = append(framed, result.Response)
	}

	if len(framed) > 0 {
		t.mu.Lock()
		t.incoming = append(t.incoming, framed...)
		t.mu.Unlock()
		t.framedCount.Add(uint64(len(framed)))
	}

	remaining := copy(buf, buf[consumed:])
	return buf[:remaining]
}

func (t *Transport) discard(n int) {
	t.discarded.Add(uint64(n))
	t.logger.Warn("discarded bytes while resynchronizing", slog.Int("bytes", n))

	if t.opts.OnDiscard != nil {
		t.opts.OnDiscard(n)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
