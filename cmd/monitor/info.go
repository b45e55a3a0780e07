package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/Manu343726/vicemon/cmd/render"
	"github.com/Manu343726/vicemon/cmd/settings"
	"github.com/Manu343726/vicemon/pkg/vice/session"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	pingCount     int
	infoRegisters bool
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the emulator answers",
	Args:  cobra.NoArgs,
	RunE: withSession(endClose, func(ctx context.Context, cmd *cobra.Command, args []string, s *session.Session) error {
		address := settings.Address(viper.GetViper())

		for i := 0; i < max(pingCount, 1); i++ {
			rtt, err := s.Ping(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "pong from %v: time=%v\n", address, rtt.Round(time.Microsecond))
		}

		return nil
	}),
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the emulator version",
	Args:  cobra.NoArgs,
	RunE: withSession(endClose, func(ctx context.Context, cmd *cobra.Command, args []string, s *session.Session) error {
		info, err := s.Info(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "VICE %v", info.VersionString())
		if info.SVNRevision != 0 {
			fmt.Fprintf(out, " r%d", info.SVNRevision)
		}
		fmt.Fprintln(out)

		if !infoRegisters {
			return nil
		}

		descriptors, err := s.RegistersAvailable(ctx)
		if err != nil {
			return err
		}

		render.Header(out, fmt.Sprintf("%-4s %-5s %s", "ID", "NAME", "BITS"))
		for _, register := range descriptors {
			fmt.Fprintf(out, "%-4s %-5s %d\n", fmt.Sprintf("$%02X", uint8(register.ID)), register.Name, register.Bits)
		}

		return nil
	}),
}

func init() {
	MonitorCmd.AddCommand(pingCmd, infoCmd)
	pingCmd.Flags().IntVarP(&pingCount, "count", "c", 1, "Number of pings")
	infoCmd.Flags().BoolVarP(&infoRegisters, "registers", "r", false, "Also list the registers the emulator exposes")
}
