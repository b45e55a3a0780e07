// Package render prints listings, registers and memory dumps for the CLI.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/Manu343726/vicemon/pkg/hw/mos6502"
	"github.com/Manu343726/vicemon/pkg/hw/mos6502/codec"
	"github.com/Manu343726/vicemon/pkg/utils"
	"github.com/Manu343726/vicemon/pkg/vice/protocol"
	"github.com/fatih/color"
)

var (
	colorAddr       = color.New(color.FgCyan)
	colorBytes      = color.New(color.FgHiBlack)
	colorReg        = color.New(color.FgGreen)
	colorValue      = color.New(color.FgWhite, color.Bold)
	colorHeader     = color.New(color.FgWhite, color.Bold, color.Underline)
	colorBreakpoint = color.New(color.FgRed, color.Bold)
	colorPC         = color.New(color.FgGreen, color.Bold)
	colorFlagSet    = color.New(color.FgGreen, color.Bold)
	colorFlagClear  = color.New(color.FgHiBlack)
	colorLabel      = color.New(color.FgHiGreen)
	colorASCII      = color.New(color.FgYellow)
)

// Bytes column width: three bytes as "XX XX XX"
const bytesWidth = 8

type ListingOptions struct {
	// Address marked as the current program counter, if set
	PC *uint16
	// Reports whether address holds a breakpoint
	Breakpoint func(address uint16) bool
	// Labels printed on their own line before the instruction they name
	Labels codec.SymbolTable
}

// Prints disassembled lines as "address  bytes  instruction"
func Listing(w io.Writer, lines []codec.Line, opts ListingOptions) {
	for _, line := range lines {
		if opts.Labels != nil {
			if label, ok := opts.Labels.FindLabel(line.Address); ok {
				fmt.Fprintln(w, colorLabel.Sprint(label+":"))
			}
		}

		marker := "  "
		switch {
		case opts.PC != nil && *opts.PC == line.Address:
			marker = colorPC.Sprint("=>")
		case opts.Breakpoint != nil && opts.Breakpoint(line.Address):
			marker = colorBreakpoint.Sprint("* ")
		}

		Instruction(w, marker, line.Address, line.Bytes, line.Text)
	}
}

// Prints a single instruction line
func Instruction(w io.Writer, marker string, address uint16, raw []byte, text string) {
	fmt.Fprintf(w, "%s%s  %s  %s\n",
		marker,
		colorAddr.Sprint(utils.FormatHex(address)),
		colorBytes.Sprintf("%-*s", bytesWidth, utils.FormatBytes(raw)),
		utils.HighlightAssembly(text))
}

// Prints the registers on one line in display order, followed by the
// decoded status flags
func Registers(w io.Writer, registers protocol.Registers) {
	var parts []string

	for _, id := range protocol.RegisterOrder {
		value, ok := registers[id]
		if !ok {
			continue
		}

		digits := 2
		if id == protocol.Register_PC || value > 0xFF {
			digits = 4
		}

		parts = append(parts, colorReg.Sprint(id.String())+"="+colorValue.Sprintf("%0*X", digits, value))
	}

	fmt.Fprint(w, strings.Join(parts, " "))

	if flags, ok := registers[protocol.Register_Flags]; ok {
		fmt.Fprint(w, "  ", Flags(mos6502.Status(flags)))
	}

	fmt.Fprintln(w)
}

// Formats the status flags as NV-BDIZC, set flags highlighted
func Flags(status mos6502.Status) string {
	var builder strings.Builder

	for _, c := range status.String() {
		switch c {
		case '.', '-':
			builder.WriteString(colorFlagClear.Sprint(string(c)))
		default:
			builder.WriteString(colorFlagSet.Sprint(string(c)))
		}
	}

	return builder.String()
}

// Prints memory as rows of width bytes with an ASCII column
func HexDump(w io.Writer, address uint16, data []byte, width int) {
	if width <= 0 {
		width = 16
	}

	for i, row := range utils.Chunks(data, width) {
		rowAddress := address + uint16(i*width)

		var ascii strings.Builder
		for _, b := range row {
			if b >= 0x20 && b < 0x7F {
				ascii.WriteByte(b)
			} else {
				ascii.WriteByte('.')
			}
		}

		fmt.Fprintf(w, "%s  %-*s  %s\n",
			colorAddr.Sprint(utils.FormatHex(rowAddress)),
			width*3-1, utils.FormatBytes(row),
			colorASCII.Sprint(ascii.String()))
	}
}

// Prints a header line
func Header(w io.Writer, text string) {
	fmt.Fprintln(w, colorHeader.Sprint(text))
}

// Prints the checkpoints table
func Checkpoints(w io.Writer, checkpoints []CheckpointRow) {
	Header(w, fmt.Sprintf("%-6s %-5s %-5s %-3s %-4s %s", "NUMBER", "START", "END", "OP", "STOP", "ENABLED"))

	for _, cp := range checkpoints {
		number := "?"
		if cp.Number != protocol.NoID {
			number = fmt.Sprint(cp.Number)
		}

		enabled := colorFlagClear.Sprint("no")
		if cp.Enabled {
			enabled = colorFlagSet.Sprint("yes")
		}

		line := fmt.Sprintf("%-6s %s %s %-3s %-4v %s", number,
			colorAddr.Sprint(utils.FormatHex(cp.Start)), colorAddr.Sprint(utils.FormatHex(cp.End)),
			cp.Op.String(), cp.Stop, enabled)

		if cp.Label != "" {
			line += " " + colorLabel.Sprint(cp.Label)
		}

		fmt.Fprintln(w, line)
	}
}

type CheckpointRow struct {
	Number  uint32
	Start   uint16
	End     uint16
	Op      protocol.CheckpointOp
	Stop    bool
	Enabled bool
	Label   string
}
