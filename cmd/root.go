package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/Manu343726/vicemon/cmd/asm"
	"github.com/Manu343726/vicemon/cmd/monitor"
	"github.com/Manu343726/vicemon/cmd/settings"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	logFile io.Closer
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "vicemon",
	Short: "A client for the VICE binary monitor",
	Long: `vicemon talks to the VICE Commodore emulator through its binary monitor
protocol: it reads and writes memory and registers, manages breakpoints, steps
code and follows the emulator interactively. It also ships an offline 6502
assembler and disassembler.

Settings are read from flags, VICEMON_* environment variables and
~/.vicemon.yaml, in that order of precedence.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := viper.GetViper()

		if err := settings.ConfigureColor(v, os.Stdout); err != nil {
			return err
		}

		logger, closer, err := settings.Logger(v, os.Stderr)
		if err != nil {
			return err
		}

		slog.SetDefault(logger)
		logFile = closer
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			logFile.Close()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	RootCmd.AddCommand(asm.AsmCmd, monitor.MonitorCmd)
	cobra.OnInitialize(initConfig)

	settings.SetDefaults(viper.GetViper())

	flags := RootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.vicemon.yaml)")
	flags.String(settings.Host, viper.GetString(settings.Host), "Emulator host")
	flags.Int(settings.Port, viper.GetInt(settings.Port), "Emulator binary monitor port")
	flags.Duration(settings.Timeout, viper.GetDuration(settings.Timeout), "Timeout of emulator operations")
	flags.String(settings.Labels, "", "VICE label file (al C:xxxx .name / break xxxx lines)")
	flags.String(settings.LogLevel, viper.GetString(settings.LogLevel), "Log level: debug, info, warn or error")
	flags.String(settings.LogFile, "", "Also write debug logs as JSON to this file")
	flags.String(settings.Color, viper.GetString(settings.Color), "Colored output: auto, always or never")
	flags.String(settings.MinVersion, viper.GetString(settings.MinVersion), "Required emulator version, as a semver constraint")

	for _, name := range []string{settings.Host, settings.Port, settings.Timeout, settings.Labels, settings.LogLevel, settings.LogFile, settings.Color, settings.MinVersion} {
		cobra.CheckErr(viper.BindPFlag(name, flags.Lookup(name)))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".vicemon" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".vicemon")
	}

	viper.SetEnvPrefix("VICEMON")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
