package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Manu343726/vicemon/cmd/settings"
	"github.com/Manu343726/vicemon/pkg/labels"
	"github.com/Manu343726/vicemon/pkg/utils"
	"github.com/Manu343726/vicemon/pkg/vice/session"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var keepStopped bool

var MonitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Control a running VICE emulator",
	Long: `Talks to VICE through its binary monitor (start VICE with -binarymonitor).

Every subcommand but attach opens a connection, runs a single operation and
disconnects. The emulator is resumed afterwards unless the command leaves it
stopped on purpose (stop, step) or --keep-stopped is given.

Addresses are hex numbers ($C000, 0xC000, C000) or names from the label file.`,
}

func init() {
	MonitorCmd.PersistentFlags().BoolVar(&keepStopped, "keep-stopped", false, "Stop the emulator before the command and leave it stopped")
}

// How a one shot command leaves the emulator
type ending int

const (
	// Delete the session checkpoints and resume
	endClose ending = iota
	// Keep the checkpoints and resume
	endRelease
	// Keep the checkpoints and the execution state
	endDetach
)

type action func(ctx context.Context, cmd *cobra.Command, args []string, s *session.Session) error

func timeout() time.Duration {
	return viper.GetDuration(settings.Timeout)
}

// Wraps fn into a cobra RunE that connects before fn runs and disconnects
// after it returns. fn runs with the timeout setting as deadline.
func withSession(end ending, fn action) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		s, err := connect(cmd.Context())
		if err != nil {
			return err
		}

		if keepStopped {
			end = endDetach

			if err := s.Stop(); err != nil {
				return errors.Join(err, s.Detach(cmd.Context()))
			}
		}

		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout())
			defer cancel()

			err = errors.Join(err, disconnect(ctx, s, end))
		}()

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout())
		defer cancel()

		return fn(ctx, cmd, args, s)
	}
}

// Dials the emulator, waits for the connection and checks its version
// against the min-version setting.
func connect(ctx context.Context) (*session.Session, error) {
	v := viper.GetViper()
	logger := slog.Default()

	s, err := session.Dial(ctx, settings.SessionOptions(v, logger))
	if err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout())
	defer cancel()

	if err := s.WaitConnected(waitCtx); err != nil {
		return nil, errors.Join(fmt.Errorf("could not connect to %v: %w", settings.Address(v), err), s.Detach(ctx))
	}

	if constraint := v.GetString(settings.MinVersion); constraint != "" {
		version, err := s.CheckVersion(waitCtx, constraint)
		if err != nil {
			return nil, errors.Join(err, s.Detach(ctx))
		}

		logger.Debug("connected", slog.String("address", settings.Address(v)), slog.String("version", version.String()))
	}

	return s, nil
}

func disconnect(ctx context.Context, s *session.Session, end ending) error {
	switch end {
	case endRelease:
		return s.Release(ctx)
	case endDetach:
		return s.Detach(ctx)
	}

	return s.Close(ctx)
}

// Loads the configured label file. An empty table is returned if none is
// configured.
func loadLabels() (*labels.Table, error) {
	table, err := settings.LoadLabels(viper.GetViper())
	if err != nil {
		return nil, err
	}

	if table == nil {
		return labels.New(), nil
	}

	return table, nil
}

// Parses an address given as hex or as a label name
func parseAddress(text string, table *labels.Table) (uint16, error) {
	if table != nil {
		if address, ok := table.Lookup(text); ok {
			return address, nil
		}
	}

	address, err := utils.ParseHex[uint16](text)
	if err != nil {
		return 0, fmt.Errorf("%q is neither an address nor a known label", text)
	}

	return address, nil
}

// Parses "start-end" or a single address
func parseRange(text string, table *labels.Table) (uint16, uint16, error) {
	first, last, isRange := strings.Cut(text, "-")

	start, err := parseAddress(first, table)
	if err != nil {
		return 0, 0, err
	}

	if !isRange {
		return start, start, nil
	}

	end, err := parseAddress(last, table)
	if err != nil {
		return 0, 0, err
	}

	if end < start {
		return 0, 0, fmt.Errorf("range %q ends before it starts", text)
	}

	return start, end, nil
}
