package monitor

import (
	"context"
	"fmt"
	"strings"

	"github.com/Manu343726/vicemon/cmd/render"
	"github.com/Manu343726/vicemon/pkg/utils"
	"github.com/Manu343726/vicemon/pkg/vice/protocol"
	"github.com/Manu343726/vicemon/pkg/vice/session"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	regsOutput string
	regsSet    []string
)

var regsCmd = &cobra.Command{
	Use:   "regs",
	Short: "Print or change the CPU registers",
	Long: `Prints the CPU registers. Registers given with --set are changed first.

Example:
  vicemon monitor regs --set A=01 --set PC=C000
  vicemon monitor regs -o yaml`,
	Args: cobra.NoArgs,
	RunE: withSession(endClose, runRegs),
}

func init() {
	MonitorCmd.AddCommand(regsCmd)
	regsCmd.Flags().StringVarP(&regsOutput, "output", "o", "text", "Output format: text or yaml")
	regsCmd.Flags().StringArrayVar(&regsSet, "set", nil, "Set a register, as NAME=hex value")
}

func runRegs(ctx context.Context, cmd *cobra.Command, args []string, s *session.Session) error {
	assignments, err := parseAssignments(regsSet)
	if err != nil {
		return err
	}

	var registers protocol.Registers

	for _, assignment := range assignments {
		if registers, err = s.SetRegister(ctx, assignment.id, assignment.value); err != nil {
			return fmt.Errorf("setting %v: %w", assignment.id, err)
		}
	}

	if registers == nil {
		if registers, err = s.GetRegisters(ctx); err != nil {
			return err
		}
	}

	return printRegisters(cmd, registers, regsOutput)
}

type assignment struct {
	id    protocol.RegisterID
	value uint16
}

func parseAssignments(texts []string) ([]assignment, error) {
	var assignments []assignment

	for _, text := range texts {
		name, value, ok := strings.Cut(text, "=")
		if !ok {
			return nil, fmt.Errorf("%q: expected NAME=value", text)
		}

		id, err := protocol.ParseRegisterID(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}

		parsed, err := utils.ParseHex[uint16](value)
		if err != nil {
			return nil, fmt.Errorf("%q: invalid value: %w", text, err)
		}

		assignments = append(assignments, assignment{id: id, value: parsed})
	}

	return assignments, nil
}

func printRegisters(cmd *cobra.Command, registers protocol.Registers, format string) error {
	switch strings.ToLower(format) {
	case "text":
		render.Registers(cmd.OutOrStdout(), registers)
		return nil
	case "yaml":
		named := make(map[string]uint16, len(registers))
		for id, value := range registers {
			named[id.String()] = value
		}

		encoder := yaml.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(named)
	}

	return fmt.Errorf("unknown output format %q", format)
}
