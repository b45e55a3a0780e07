package asm

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Manu343726/vicemon/cmd/render"
	"github.com/Manu343726/vicemon/cmd/settings"
	"github.com/Manu343726/vicemon/pkg/hw/mos6502/codec"
	"github.com/Manu343726/vicemon/pkg/labels"
	"github.com/Manu343726/vicemon/pkg/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	disassembleAddress string
	disassembleLines   int
	disassembleLabels  string
	disassemblePrg     bool
)

var disassembleCmd = &cobra.Command{
	Use:   "disassemble <file | hex bytes...>",
	Short: "Disassemble 6502 machine code",
	Long: `Disassembles a binary file or bytes given as hex on the command line.

Files with the .prg extension (or any file with --prg) start with their two
byte load address, which is used as the start address unless --address is given.
Labels from a VICE label file (--labels, or the labels setting) replace the
addresses they name.

Example:
  vicemon asm disassemble --address 0xC000 A9 01 8D 20 D0 60
  vicemon asm disassemble --labels game.vs --lines 20 game.prg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDisassemble,
}

func init() {
	AsmCmd.AddCommand(disassembleCmd)
	disassembleCmd.Flags().StringVarP(&disassembleAddress, "address", "a", "", "Address of the first byte (default $0000, or the .prg load address)")
	disassembleCmd.Flags().IntVarP(&disassembleLines, "lines", "n", 0, "Maximum number of lines (0 = all)")
	disassembleCmd.Flags().StringVarP(&disassembleLabels, "labels", "l", "", "VICE label file")
	disassembleCmd.Flags().BoolVar(&disassemblePrg, "prg", false, "The file starts with a load address")
}

func runDisassemble(cmd *cobra.Command, args []string) error {
	source, loadAddress, err := readSource(args, disassemblePrg)
	if err != nil {
		return err
	}

	address := loadAddress
	if disassembleAddress != "" {
		if address, err = utils.ParseHex[uint16](disassembleAddress); err != nil {
			return fmt.Errorf("invalid address %q: %w", disassembleAddress, err)
		}
	}

	table, err := loadLabels(disassembleLabels)
	if err != nil {
		return err
	}

	in := codec.Input{
		Source:  source,
		Address: address,
		Lines:   disassembleLines,
	}
	if table != nil {
		in.Symbols = table
	}

	out, err := codec.Disassemble(in)
	if err != nil {
		return err
	}

	opts := render.ListingOptions{}
	if table != nil {
		opts.Labels = table
	}

	render.Listing(cmd.OutOrStdout(), out.Lines, opts)

	if trailing := len(source) - int(out.EndAddress-address); disassembleLines <= 0 && trailing > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d trailing bytes do not form a complete instruction\n", trailing)
	}

	return nil
}

// Reads the bytes to disassemble from a file or from hex arguments. Returns
// the load address of .prg files, 0 otherwise.
func readSource(args []string, prg bool) ([]byte, uint16, error) {
	if len(args) == 1 {
		if data, err := os.ReadFile(args[0]); err == nil {
			if !prg && !strings.EqualFold(filepath.Ext(args[0]), ".prg") {
				return data, 0, nil
			}

			if len(data) < 2 {
				return nil, 0, fmt.Errorf("%v: missing load address", args[0])
			}

			return data[2:], uint16(data[0]) | uint16(data[1])<<8, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, 0, err
		}
	}

	text := strings.NewReplacer(" ", "", "$", "", ",", "", "0x", "", "0X", "").Replace(strings.Join(args, ""))
	data, err := hex.DecodeString(text)
	if err != nil {
		return nil, 0, fmt.Errorf("%q is neither a file nor hex bytes: %w", strings.Join(args, " "), err)
	}

	return data, 0, nil
}

// Loads the label file given by flag, falling back to the labels setting
func loadLabels(path string) (*labels.Table, error) {
	if path != "" {
		return labels.Load(path)
	}

	return settings.LoadLabels(viper.GetViper())
}
