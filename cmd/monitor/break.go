package monitor

import (
	"context"
	"fmt"
	"strings"

	"github.com/Manu343726/vicemon/cmd/render"
	"github.com/Manu343726/vicemon/pkg/labels"
	"github.com/Manu343726/vicemon/pkg/utils"
	"github.com/Manu343726/vicemon/pkg/vice/checkpoints"
	"github.com/Manu343726/vicemon/pkg/vice/protocol"
	"github.com/Manu343726/vicemon/pkg/vice/session"
	"github.com/spf13/cobra"
)

var (
	breakEnable  bool
	breakDisable bool
	breakWatch   string
	breakOp      string
	breakNoStop  bool
	breakLabels  bool
)

var breakCmd = &cobra.Command{
	Use:   "break [address]...",
	Short: "Toggle, enable or list breakpoints",
	Long: `Toggles an execution breakpoint at each address: a breakpoint is added where
there is none and removed where there is one. With --enable or --disable the
existing breakpoints at the addresses are switched on or off instead.

--watch adds a memory checkpoint over an address range, triggered by the
operations in --op (L load, S store, X execute).

--from-labels adds the breakpoints listed in the label file.

The checkpoint table is printed when done. Checkpoints stay in the emulator
after the command exits.

Example:
  vicemon monitor break C000 main
  vicemon monitor break --watch D020-D021 --op S --no-stop
  vicemon monitor break`,
	RunE: withSession(endRelease, runBreak),
}

func init() {
	MonitorCmd.AddCommand(breakCmd)
	breakCmd.Flags().BoolVar(&breakEnable, "enable", false, "Enable the breakpoints at the addresses")
	breakCmd.Flags().BoolVar(&breakDisable, "disable", false, "Disable the breakpoints at the addresses")
	breakCmd.Flags().StringVar(&breakWatch, "watch", "", "Toggle a checkpoint on an address range, as start-end")
	breakCmd.Flags().StringVar(&breakOp, "op", "LS", "Operations triggering a --watch checkpoint: any of L, S and X")
	breakCmd.Flags().BoolVar(&breakNoStop, "no-stop", false, "A --watch checkpoint only counts hits")
	breakCmd.Flags().BoolVar(&breakLabels, "from-labels", false, "Add the breakpoints of the label file")
	breakCmd.MarkFlagsMutuallyExclusive("enable", "disable")
}

func runBreak(ctx context.Context, cmd *cobra.Command, args []string, s *session.Session) error {
	table, err := loadLabels()
	if err != nil {
		return err
	}

	if _, err := s.AdoptCheckpoints(ctx); err != nil {
		return err
	}

	for _, arg := range args {
		address, err := parseAddress(arg, table)
		if err != nil {
			return err
		}

		switch {
		case breakEnable || breakDisable:
			if _, ok := s.Checkpoints().Get(address); !ok {
				return fmt.Errorf("no breakpoint at %v", arg)
			}
			err = s.EnableBreakpoint(address, breakEnable)
		default:
			err = s.ToggleBreakpoint(address)
		}
		if err != nil {
			return err
		}
	}

	if breakWatch != "" {
		start, end, err := parseRange(breakWatch, table)
		if err != nil {
			return err
		}

		op, err := parseOp(breakOp)
		if err != nil {
			return err
		}

		if err := s.WatchRange(start, end, op, !breakNoStop); err != nil {
			return err
		}
	}

	if breakLabels {
		if err := s.SetBreakpoints(table.Breakpoints()); err != nil {
			return err
		}
	}

	if err := s.WaitCheckpoints(ctx); err != nil {
		return err
	}

	render.Checkpoints(cmd.OutOrStdout(), checkpointRows(s, table))
	return nil
}

func parseOp(text string) (protocol.CheckpointOp, error) {
	var op protocol.CheckpointOp

	for _, c := range strings.ToUpper(text) {
		switch c {
		case 'L':
			op |= protocol.CheckpointOp_Load
		case 'S':
			op |= protocol.CheckpointOp_Store
		case 'X':
			op |= protocol.CheckpointOp_Exec
		default:
			return 0, fmt.Errorf("invalid checkpoint operation %q, expected any of L, S and X", text)
		}
	}

	if op == 0 {
		return 0, fmt.Errorf("empty checkpoint operation")
	}

	return op, nil
}

func checkpointRows(s *session.Session, table *labels.Table) []render.CheckpointRow {
	return utils.Map(s.Breakpoints(), func(cp checkpoints.Checkpoint) render.CheckpointRow {
		label, _ := table.FindLabel(cp.Start)

		return render.CheckpointRow{
			Number:  cp.Number,
			Start:   cp.Start,
			End:     cp.End,
			Op:      cp.Op,
			Stop:    cp.Stop,
			Enabled: cp.Enabled,
			Label:   label,
		}
	})
}
