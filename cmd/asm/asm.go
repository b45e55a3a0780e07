package asm

import (
	"github.com/spf13/cobra"
)

var AsmCmd = &cobra.Command{
	Use:   "asm",
	Short: "Offline 6502 assembler and disassembler",
}
