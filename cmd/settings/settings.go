// Package settings turns the viper configuration into the option structs of
// the library packages. Library packages never read viper themselves.
package settings

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Manu343726/vicemon/pkg/labels"
	"github.com/Manu343726/vicemon/pkg/vice/session"
	"github.com/Manu343726/vicemon/pkg/vice/transport"
	"github.com/fatih/color"
	slogmulti "github.com/samber/slog-multi"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

const (
	Host              = "host"
	Port              = "port"
	ReconnectDelay    = "reconnect-delay"
	MaxReconnectDelay = "max-reconnect-delay"
	SendWait          = "send-wait"
	ReadTimeout       = "read-timeout"
	Timeout           = "timeout"
	Labels            = "labels"
	WatchLabels       = "watch-labels"
	LogLevel          = "log-level"
	LogFile           = "log-file"
	MinVersion        = "min-version"
	Color             = "color"
)

// Registers the default value of every setting
func SetDefaults(v *viper.Viper) {
	v.SetDefault(Host, "127.0.0.1")
	v.SetDefault(Port, 6502)
	v.SetDefault(ReconnectDelay, transport.DefaultReconnectDelay)
	v.SetDefault(MaxReconnectDelay, transport.DefaultMaxReconnectDelay)
	v.SetDefault(SendWait, transport.DefaultSendWait)
	v.SetDefault(ReadTimeout, transport.DefaultReadTimeout)
	v.SetDefault(Timeout, 5*time.Second)
	v.SetDefault(Labels, "")
	v.SetDefault(WatchLabels, false)
	v.SetDefault(LogLevel, "info")
	v.SetDefault(LogFile, "")
	v.SetDefault(MinVersion, ">= 3.5")
	v.SetDefault(Color, "auto")
}

// Address of the emulator binary monitor
func Address(v *viper.Viper) string {
	return net.JoinHostPort(v.GetString(Host), strconv.Itoa(v.GetInt(Port)))
}

func SessionOptions(v *viper.Viper, logger *slog.Logger) session.Options {
	return session.Options{
		Transport: transport.Options{
			Address:           Address(v),
			ReconnectDelay:    v.GetDuration(ReconnectDelay),
			MaxReconnectDelay: v.GetDuration(MaxReconnectDelay),
			SendWait:          v.GetDuration(SendWait),
			ReadTimeout:       v.GetDuration(ReadTimeout),
			Logger:            logger,
		},
		Logger: logger,
	}
}

func ParseLevel(text string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(text))); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", text, err)
	}

	return level, nil
}

// Builds the logger: text on stderr at the configured level, fanned out to a
// JSON log file at debug level if one is configured. The returned closer
// releases the log file.
func Logger(v *viper.Viper, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(v.GetString(LogLevel))
	if err != nil {
		return nil, nil, err
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}),
	}

	var closer io.Closer = nopCloser{}

	if path := v.GetString(LogFile); path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}

		handlers = append(handlers, slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug}))
		closer = file
	}

	return slog.New(slogmulti.Fanout(handlers...)), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Enables or disables colored output. "auto" colors only when out is a terminal.
func ConfigureColor(v *viper.Viper, out *os.File) error {
	switch mode := strings.ToLower(v.GetString(Color)); mode {
	case "auto", "":
		color.NoColor = !term.IsTerminal(int(out.Fd()))
	case "always", "true", "on":
		color.NoColor = false
	case "never", "false", "off":
		color.NoColor = true
	default:
		return fmt.Errorf("invalid color mode %q, expected auto, always or never", mode)
	}

	return nil
}

// Loads the configured label file, nil if none is configured
func LoadLabels(v *viper.Viper) (*labels.Table, error) {
	path := v.GetString(Labels)
	if path == "" {
		return nil, nil
	}

	return labels.Load(path)
}
