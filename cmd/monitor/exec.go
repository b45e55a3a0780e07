package monitor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Manu343726/vicemon/pkg/vice/protocol"
	"github.com/Manu343726/vicemon/pkg/vice/session"
	"github.com/spf13/cobra"
)

var (
	stepOver      bool
	stepOut       bool
	showLines     int
	resetHard     bool
	autostartLoad bool
)

var stepCmd = &cobra.Command{
	Use:   "step [count]",
	Short: "Execute instructions and stay stopped",
	Long: `Executes count instructions (default 1), then prints the registers and the
code at the new program counter. The emulator stays stopped.

Example:
  vicemon monitor step --over 3
  vicemon monitor step --out`,
	Args: cobra.MaximumNArgs(1),
	RunE: withSession(endDetach, runStep),
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the emulator and print where it stopped",
	Args:  cobra.NoArgs,
	RunE: withSession(endDetach, func(ctx context.Context, cmd *cobra.Command, args []string, s *session.Session) error {
		if err := s.Stop(); err != nil {
			return err
		}

		if err := waitStopped(ctx, s); err != nil {
			return err
		}

		return show(ctx, cmd, s)
	}),
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a stopped emulator",
	Args:  cobra.NoArgs,
	RunE: withSession(endDetach, func(ctx context.Context, cmd *cobra.Command, args []string, s *session.Session) error {
		_, err := s.Request(ctx, protocol.ExitCommand())
		return err
	}),
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the emulated machine",
	Args:  cobra.NoArgs,
	RunE: withSession(endClose, func(ctx context.Context, cmd *cobra.Command, args []string, s *session.Session) error {
		return s.Reset(ctx, resetHard)
	}),
}

var autostartCmd = &cobra.Command{
	Use:   "autostart <file>",
	Short: "Load and run a program, disk or tape image",
	Long: `Asks the emulator to autostart a file. The path is resolved on the emulator
host; local files are passed as absolute paths.

Example:
  vicemon monitor autostart game.prg
  vicemon monitor autostart --no-run disk.d64`,
	Args: cobra.ExactArgs(1),
	RunE: withSession(endClose, func(ctx context.Context, cmd *cobra.Command, args []string, s *session.Session) error {
		path := args[0]
		if _, err := os.Stat(path); err == nil {
			if absolute, err := filepath.Abs(path); err == nil {
				path = absolute
			}
		}

		return s.Autostart(ctx, path, !autostartLoad)
	}),
}

func init() {
	MonitorCmd.AddCommand(stepCmd, stopCmd, resumeCmd, resetCmd, autostartCmd)

	for _, cmd := range []*cobra.Command{stepCmd, stopCmd} {
		cmd.Flags().IntVarP(&showLines, "lines", "n", 8, "Number of instructions to show")
	}

	stepCmd.Flags().BoolVar(&stepOver, "over", false, "Step over subroutine calls")
	stepCmd.Flags().BoolVar(&stepOut, "out", false, "Run until the current subroutine returns")
	resetCmd.Flags().BoolVar(&resetHard, "hard", false, "Power cycle instead of a soft reset")
	autostartCmd.Flags().BoolVar(&autostartLoad, "no-run", false, "Load without running")
}

func runStep(ctx context.Context, cmd *cobra.Command, args []string, s *session.Session) error {
	count := uint64(1)
	if len(args) > 0 {
		var err error
		if count, err = strconv.ParseUint(args[0], 0, 16); err != nil {
			return fmt.Errorf("invalid count %q", args[0])
		}
	}

	var err error
	if stepOut {
		err = s.StepOut(ctx)
	} else {
		err = s.Step(ctx, stepOver, uint16(count))
	}
	if err != nil {
		return err
	}

	return show(ctx, cmd, s)
}

func show(ctx context.Context, cmd *cobra.Command, s *session.Session) error {
	table, err := loadLabels()
	if err != nil {
		return err
	}

	return showLocation(ctx, cmd.OutOrStdout(), s, table, showLines)
}

// Polls until the emulator reports it stopped
func waitStopped(ctx context.Context, s *session.Session) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		s.Poll()

		if s.State() == session.State_Stopped {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("emulator did not stop: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
