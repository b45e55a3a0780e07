package asm

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/Manu343726/vicemon/cmd/render"
	"github.com/Manu343726/vicemon/pkg/hw/mos6502/codec"
	"github.com/Manu343726/vicemon/pkg/utils"
	"github.com/spf13/cobra"
)

var (
	assembleAddress string
	assembleRaw     bool
)

var assembleCmd = &cobra.Command{
	Use:   "assemble [line]...",
	Short: "Assemble 6502 instructions",
	Long: `Assembles one instruction per line, starting at the given address.
Lines are taken from the arguments, or from stdin when there are none.
Lines starting with ';' and empty lines are skipped.

Example:
  vicemon asm assemble --address 0x2200 "LDA #$01" "STA $D020" "BNE $2200"`,
	RunE: runAssemble,
}

func init() {
	AsmCmd.AddCommand(assembleCmd)
	assembleCmd.Flags().StringVarP(&assembleAddress, "address", "a", "$2000", "Address of the first instruction")
	assembleCmd.Flags().BoolVar(&assembleRaw, "raw", false, "Print only the encoded bytes")
}

func runAssemble(cmd *cobra.Command, args []string) error {
	pc, err := utils.ParseHex[uint16](assembleAddress)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", assembleAddress, err)
	}

	lines := args
	if len(lines) == 0 {
		if lines, err = readLines(cmd.InOrStdin()); err != nil {
			return err
		}
	}

	program, err := assembleLines(lines, pc)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if assembleRaw {
		var all []byte
		for _, instruction := range program {
			all = append(all, instruction.Bytes()...)
		}

		fmt.Fprintln(out, utils.FormatBytes(all))
		return nil
	}

	for _, instruction := range program {
		render.Instruction(out, "", instruction.address, instruction.Bytes(), instruction.text)
	}

	return nil
}

type assembledLine struct {
	codec.Assembled
	address uint16
	text    string
}

func assembleLines(lines []string, pc uint16) ([]assembledLine, error) {
	var program []assembledLine

	for number, line := range lines {
		text := strings.TrimSpace(line)
		if text == "" || strings.HasPrefix(text, ";") {
			continue
		}

		assembled, err := codec.AssembleAt(text, pc)
		if err != nil {
			return nil, fmt.Errorf("line %d %q: %w", number+1, text, err)
		}

		program = append(program, assembledLine{Assembled: assembled, address: pc, text: strings.ToUpper(text)})
		pc += uint16(assembled.Len)
	}

	return program, nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	return lines, scanner.Err()
}
