package monitor

import (
	"context"
	"fmt"
	"io"

	"github.com/Manu343726/vicemon/cmd/render"
	"github.com/Manu343726/vicemon/pkg/hw/mos6502/codec"
	"github.com/Manu343726/vicemon/pkg/labels"
	"github.com/Manu343726/vicemon/pkg/utils"
	"github.com/Manu343726/vicemon/pkg/vice/protocol"
	"github.com/Manu343726/vicemon/pkg/vice/session"
)

// Longest 6502 instruction
const maxInstructionSize = 3

// Reads and disassembles up to lines instructions starting at address
func disassembleAt(ctx context.Context, s *session.Session, address uint16, lines int, table *labels.Table) (codec.Output, error) {
	length := min(lines*maxInstructionSize, 0x10000-int(address))

	data, err := s.ReadMemory(ctx, address, length)
	if err != nil {
		return codec.Output{}, err
	}

	return codec.Disassemble(codec.Input{
		Source:  data,
		Address: address,
		Lines:   lines,
		Symbols: table,
	})
}

func listingOptions(s *session.Session, table *labels.Table, pc *uint16) render.ListingOptions {
	return render.ListingOptions{
		PC: pc,
		Breakpoint: func(address uint16) bool {
			_, ok := s.Checkpoints().Get(address)
			return ok
		},
		Labels: table,
	}
}

// Prints the registers and the code at the program counter
func showLocation(ctx context.Context, w io.Writer, s *session.Session, table *labels.Table, lines int) error {
	registers, err := s.GetRegisters(ctx)
	if err != nil {
		return err
	}

	render.Registers(w, registers)

	pc, ok := registers[protocol.Register_PC]
	if !ok {
		return nil
	}

	out, err := disassembleAt(ctx, s, pc, lines, table)
	if err != nil {
		return err
	}

	render.Listing(w, out.Lines, listingOptions(s, table, &pc))
	return nil
}

// Describes a stop as "stopped at $C000 main (breakpoint)"
func describeStop(event session.StopEvent, table *labels.Table) string {
	where := utils.FormatHex(event.PC)
	if label, ok := table.FindLabel(event.PC); ok {
		where += " " + label
	}

	return fmt.Sprintf("stopped at %v (%v)", where, event.Reason)
}
