package session

import (
	"log/slog"
	"time"

	"github.com/Manu343726/vicemon/pkg/vice/transport"
)

type Options struct {
	Transport transport.Options
	Logger    *slog.Logger
	// Interval between polls in Run and while waiting for a response
	PollInterval time.Duration
	// Idle polls between keepalive pings while the emulator runs
	PingAfter int
	// Idle polls after which the connection is considered lost
	LostAfter int
}

const (
	DefaultPollInterval = 10 * time.Millisecond
	DefaultPingAfter    = 0x80
	DefaultLostAfter    = 0x200
)

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Transport.Logger == nil {
		o.Transport.Logger = o.Logger
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.PingAfter <= 0 {
		o.PingAfter = DefaultPingAfter
	}
	if o.LostAfter <= o.PingAfter {
		o.LostAfter = max(DefaultLostAfter, 2*o.PingAfter)
	}

	return o
}
