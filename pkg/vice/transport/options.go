package transport

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/Manu343726/vicemon/pkg/vice/protocol"
)

// Opens connections to the emulator. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

type Options struct {
	// host:port of the emulator binary monitor
	Address string
	// Defaults to a *net.Dialer
	Dialer Dialer
	// Delay before the first reconnection attempt. Doubles on every failure up to MaxReconnectDelay.
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	// How long the loop waits for queued commands before polling the socket
	SendWait time.Duration
	// Bounded wait for incoming data on every iteration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Frames declaring a larger total size are treated as noise
	MaxResponseSize int
	Logger          *slog.Logger
	// Called from the transport goroutine with the number of bytes dropped while resynchronizing
	OnDiscard func(n int)
}

const (
	DefaultReconnectDelay    = 250 * time.Millisecond
	DefaultMaxReconnectDelay = 5 * time.Second
	DefaultSendWait          = 20 * time.Millisecond
	DefaultReadTimeout       = 20 * time.Millisecond
	DefaultWriteTimeout      = time.Second
)

func (o Options) withDefaults() Options {
	if o.Dialer == nil {
		o.Dialer = &net.Dialer{Timeout: 2 * time.Second}
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = DefaultReconnectDelay
	}
	if o.MaxReconnectDelay < o.ReconnectDelay {
		o.MaxReconnectDelay = max(DefaultMaxReconnectDelay, o.ReconnectDelay)
	}
	if o.SendWait <= 0 {
		o.SendWait = DefaultSendWait
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.MaxResponseSize <= protocol.ResponseHeaderSize {
		o.MaxResponseSize = protocol.DefaultMaxResponseSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	return o
}
