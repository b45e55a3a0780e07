package asm

import (
	"fmt"
	"io"
	"strings"

	"github.com/Manu343726/vicemon/pkg/hw/mos6502"
	"github.com/Manu343726/vicemon/pkg/utils"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	opcodesOutput string
	opcodesAll    bool
	opcodesPrefix string
)

var opcodesCmd = &cobra.Command{
	Use:   "opcodes",
	Short: "Print the 6502 instruction table",
	Long: `Prints the documented 6502 opcodes with their addressing mode, size and
base cycle count. Undocumented opcodes are included with --all.

Example:
  vicemon asm opcodes --prefix LD -o yaml`,
	Args: cobra.NoArgs,
	RunE: runOpcodes,
}

func init() {
	AsmCmd.AddCommand(opcodesCmd)
	opcodesCmd.Flags().StringVarP(&opcodesOutput, "output", "o", "table", "Output format: table or yaml")
	opcodesCmd.Flags().BoolVar(&opcodesAll, "all", false, "Include undocumented opcodes")
	opcodesCmd.Flags().StringVarP(&opcodesPrefix, "prefix", "p", "", "Only mnemonics starting with this prefix")
}

func runOpcodes(cmd *cobra.Command, args []string) error {
	opcodes := selectOpcodes(opcodesAll, opcodesPrefix)

	switch strings.ToLower(opcodesOutput) {
	case "yaml":
		encoder := yaml.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(opcodes)
	case "table":
		printOpcodes(cmd.OutOrStdout(), opcodes)
		return nil
	}

	return fmt.Errorf("unknown output format %q", opcodesOutput)
}

func selectOpcodes(all bool, prefix string) []mos6502.OpCode {
	var mnemonics map[string]bool
	if prefix != "" {
		mnemonics = make(map[string]bool)
		for _, mnemonic := range mos6502.FindMatches(prefix, 0) {
			mnemonics[mnemonic] = true
		}
	}

	var selected []mos6502.OpCode

	for _, op := range mos6502.All() {
		if op.IsBad() && !all {
			continue
		}
		if mnemonics != nil && !mnemonics[op.Mnemonic] {
			continue
		}

		selected = append(selected, op)
	}

	return selected
}

func printOpcodes(w io.Writer, opcodes []mos6502.OpCode) {
	fmt.Fprintf(w, "%-4s %-4s %-11s %-4s %s\n", "CODE", "MNEM", "MODE", "SIZE", "CYCLES")

	for _, op := range opcodes {
		fmt.Fprintf(w, "%-4s %-4s %-11v %-4d %d\n", utils.FormatHex(op.Code), op.Mnemonic, op.Mode, op.Size(), op.Cycles)
	}
}
