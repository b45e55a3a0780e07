package monitor

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Manu343726/vicemon/cmd/render"
	"github.com/Manu343726/vicemon/pkg/hw/mos6502/codec"
	"github.com/Manu343726/vicemon/pkg/utils"
	"github.com/Manu343726/vicemon/pkg/vice/session"
	"github.com/spf13/cobra"
)

var (
	memDisasm bool
	memLines  int
	memWidth  int
	pokeAsm   bool
)

var memCmd = &cobra.Command{
	Use:   "mem <address> [length]",
	Short: "Dump or disassemble emulator memory",
	Long: `Prints length bytes (hex, default $100) starting at address as a hex dump, or
disassembles --lines instructions with --disasm. Breakpoints and the program
counter are marked in disassembly listings.

Example:
  vicemon monitor mem 0400 3E8
  vicemon monitor mem --disasm -n 20 main`,
	Args: cobra.RangeArgs(1, 2),
	RunE: withSession(endRelease, runMem),
}

var pokeCmd = &cobra.Command{
	Use:   "poke <address> <bytes | instructions>...",
	Short: "Write bytes or assembled instructions to emulator memory",
	Long: `Writes hex bytes to memory, or assembles one instruction per argument with --asm.

Example:
  vicemon monitor poke D020 00 00
  vicemon monitor poke --asm C000 "INC $D020" "JMP $C000"`,
	Args: cobra.MinimumNArgs(2),
	RunE: withSession(endClose, runPoke),
}

func init() {
	MonitorCmd.AddCommand(memCmd, pokeCmd)
	memCmd.Flags().BoolVarP(&memDisasm, "disasm", "d", false, "Disassemble instead of dumping")
	memCmd.Flags().IntVarP(&memLines, "lines", "n", 16, "Number of instructions to disassemble")
	memCmd.Flags().IntVarP(&memWidth, "width", "w", 16, "Bytes per hex dump row")
	pokeCmd.Flags().BoolVar(&pokeAsm, "asm", false, "Arguments are instructions to assemble")
}

func runMem(ctx context.Context, cmd *cobra.Command, args []string, s *session.Session) error {
	table, err := loadLabels()
	if err != nil {
		return err
	}

	address, err := parseAddress(args[0], table)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if memDisasm {
		// Adopted so breakpoints show up in the listing. Release keeps them.
		if _, err := s.AdoptCheckpoints(ctx); err != nil {
			return err
		}

		listing, err := disassembleAt(ctx, s, address, max(memLines, 1), table)
		if err != nil {
			return err
		}

		var pc *uint16
		if s.State() == session.State_Stopped {
			value := s.PC()
			pc = &value
		}

		render.Listing(out, listing.Lines, listingOptions(s, table, pc))
		return nil
	}

	length := 0x100
	if len(args) > 1 {
		parsed, err := utils.ParseHex[uint32](args[1])
		if err != nil || parsed == 0 {
			return fmt.Errorf("invalid length %q", args[1])
		}
		length = int(parsed)
	}
	length = min(length, 0x10000-int(address))

	data, err := s.ReadMemory(ctx, address, length)
	if err != nil {
		return err
	}

	render.HexDump(out, address, data, memWidth)
	return nil
}

func runPoke(ctx context.Context, cmd *cobra.Command, args []string, s *session.Session) error {
	table, err := loadLabels()
	if err != nil {
		return err
	}

	address, err := parseAddress(args[0], table)
	if err != nil {
		return err
	}

	var data []byte
	if pokeAsm {
		data, err = assemble(args[1:], address)
	} else {
		data, err = parseBytes(args[1:])
	}
	if err != nil {
		return err
	}

	if err := s.WriteMemory(ctx, address, data); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d bytes written at %v: %v\n", len(data), utils.FormatHex(address), utils.FormatBytes(data))
	return nil
}

func assemble(lines []string, pc uint16) ([]byte, error) {
	var data []byte

	for _, line := range lines {
		assembled, err := codec.AssembleAt(line, pc)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", line, err)
		}

		data = append(data, assembled.Bytes()...)
		pc += uint16(assembled.Len)
	}

	return data, nil
}

func parseBytes(args []string) ([]byte, error) {
	text := strings.NewReplacer(" ", "", "$", "", ",", "", "0x", "", "0X", "").Replace(strings.Join(args, ""))

	data, err := hex.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("invalid bytes %q: %w", strings.Join(args, " "), err)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("nothing to write")
	}

	return data, nil
}
