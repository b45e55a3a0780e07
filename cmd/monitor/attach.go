package monitor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/Manu343726/vicemon/cmd/render"
	"github.com/Manu343726/vicemon/cmd/settings"
	"github.com/Manu343726/vicemon/pkg/labels"
	"github.com/Manu343726/vicemon/pkg/utils"
	"github.com/Manu343726/vicemon/pkg/vice/session"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

var attachTrace bool

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Stay connected and debug interactively",
	Long: `Keeps a connection to the emulator open, reconnecting when it is lost.
Breakpoints from the label file are set on every connection. Each stop prints
the registers and the code at the program counter, then commands are read from
stdin:

  c                continue (also an empty line)
  s [count]        step
  n [count]        step over subroutine calls
  o                run until the current subroutine returns
  x                stop
  b <address>      toggle a breakpoint
  bl               list breakpoints
  r                print registers
  m <address> [n]  dump n bytes of memory (hex, default $80)
  d [address] [n]  disassemble n instructions (default at the program counter)
  q                quit

With --trace stops are printed on one line and execution resumes right away.
With --watch-labels the label file is reloaded when it changes and new
breakpoints are set. Breakpoints are removed and the emulator resumed on exit.
On a terminal the console has line editing, completion of commands and labels,
and a history kept in ~/.vicemon_history.`,
	Args: cobra.NoArgs,
	RunE: runAttach,
}

func init() {
	MonitorCmd.AddCommand(attachCmd)
	attachCmd.Flags().BoolVar(&attachTrace, "trace", false, "Print stops and resume immediately")
	attachCmd.Flags().Bool(settings.WatchLabels, false, "Reload the label file when it changes")
	cobra.CheckErr(viper.BindPFlag(settings.WatchLabels, attachCmd.Flags().Lookup(settings.WatchLabels)))
}

var errQuit = errors.New("quit")

func runAttach(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()

	table, err := loadLabels()
	if err != nil {
		return err
	}

	s, err := session.Dial(cmd.Context(), settings.SessionOptions(v, slog.Default()))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(cmd.Context())

	c := &console{
		s:     s,
		table: table,
		out:   cmd.OutOrStdout(),
		trace: attachTrace,
	}

	s.OnConnected(func() { c.connected(settings.Address(v)) })
	s.OnStopped(func(event session.StopEvent) { c.stopped(ctx, event) })

	g.Go(func() error {
		return s.Run(ctx)
	})

	if path := v.GetString(settings.Labels); path != "" && v.GetBool(settings.WatchLabels) {
		g.Go(func() error {
			return labels.Watch(ctx, path, table, slog.Default(), c.reloaded)
		})
	}

	lines, closeInput := readInput(cmd.InOrStdin(), c.complete)
	defer closeInput()

	g.Go(func() error {
		return c.serve(ctx, lines)
	})

	err = g.Wait()
	if errors.Is(err, errQuit) {
		err = nil
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), timeout())
	defer cancel()

	return errors.Join(err, s.Close(closeCtx))
}

// Sends input lines until EOF or until the returned function is called.
// Terminals get line editing, history and completion; there Ctrl+C and
// Ctrl+D quit. A reader blocked on input is not interrupted. The returned
// function also saves the history and restores the terminal.
func readInput(r io.Reader, complete liner.Completer) (<-chan string, func()) {
	lines := make(chan string)
	done := make(chan struct{})

	send := func(text string) bool {
		select {
		case lines <- text:
			return true
		case <-done:
			return false
		}
	}

	if file, ok := r.(*os.File); !ok || !term.IsTerminal(int(file.Fd())) {
		go func() {
			defer close(lines)

			scanner := bufio.NewScanner(r)
			for scanner.Scan() {
				if !send(scanner.Text()) {
					return
				}
			}
		}()

		return lines, func() { close(done) }
	}

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(complete)

	history := historyPath()
	if f, err := os.Open(history); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	go func() {
		defer close(lines)

		for {
			text, err := line.Prompt("(vice) ")
			if err != nil {
				send("q")
				return
			}

			if strings.TrimSpace(text) != "" {
				line.AppendHistory(text)
			}
			if !send(text) {
				return
			}
		}
	}()

	return lines, func() {
		close(done)

		if f, err := os.Create(history); err == nil {
			line.WriteHistory(f)
			f.Close()
		}

		line.Close()
	}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vicemon_history"
	}

	return filepath.Join(home, ".vicemon_history")
}

var consoleCommands = []string{"c", "s", "n", "o", "x", "b", "bl", "r", "m", "d", "q",
	"continue", "step", "next", "out", "stop", "break", "regs", "mem", "disasm", "quit", "exit"}

// Interactive front end of an attached session. Output is built off lock and
// written under mu, since session handlers may run while a command waits for
// a response.
type console struct {
	s     *session.Session
	table *labels.Table
	trace bool

	mu  sync.Mutex
	out io.Writer
}

func (c *console) print(buf *bytes.Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.out.Write(buf.Bytes())
}

func (c *console) printf(format string, args ...any) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, format, args...)
	c.print(&buf)
}

func (c *console) connected(address string) {
	c.printf("connected to %v\n", address)
	c.applyBreakpoints()
}

func (c *console) applyBreakpoints() {
	if err := c.s.SetBreakpoints(c.table.Breakpoints()); err != nil {
		slog.Warn("could not set label file breakpoints", slog.Any("error", err))
	}
}

func (c *console) reloaded(table *labels.Table, err error) {
	if err != nil {
		c.printf("label file not reloaded: %v\n", err)
		return
	}

	c.printf("%d labels loaded\n", table.Len())
	c.applyBreakpoints()
}

func (c *console) stopped(ctx context.Context, event session.StopEvent) {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, describeStop(event, c.table))

	if c.trace {
		if registers := c.s.Registers(); registers != nil {
			render.Registers(&buf, registers)
		}
		c.print(&buf)

		if err := c.s.Resume(); err != nil {
			c.printf("resume failed: %v\n", err)
		}
		return
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout())
	defer cancel()

	if err := showLocation(cmdCtx, &buf, c.s, c.table, 8); err != nil {
		fmt.Fprintf(&buf, "error: %v\n", err)
	}

	c.print(&buf)
}

// Completes command names, then label names for the last word
func (c *console) complete(line string) []string {
	var completions []string

	fields := strings.Fields(line)
	if len(fields) == 0 || len(fields) == 1 && !strings.HasSuffix(line, " ") {
		word := strings.ToLower(strings.TrimSpace(line))
		for _, command := range consoleCommands {
			if strings.HasPrefix(command, word) {
				completions = append(completions, command)
			}
		}

		return completions
	}

	head, word := line, ""
	if !strings.HasSuffix(line, " ") {
		word = fields[len(fields)-1]
		head = strings.TrimSuffix(line, word)
	}

	for _, name := range c.table.FindMatches(word, 32) {
		completions = append(completions, head+name)
	}

	return completions
}

func (c *console) serve(ctx context.Context, lines <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				// Without input the session keeps running until interrupted
				lines = nil
				continue
			}

			err := c.execute(ctx, strings.Fields(line))
			if errors.Is(err, errQuit) {
				return err
			}
			if err != nil {
				c.printf("error: %v\n", err)
			}
		}
	}
}

func (c *console) execute(ctx context.Context, fields []string) error {
	if len(fields) == 0 {
		return c.s.Resume()
	}

	ctx, cancel := context.WithTimeout(ctx, timeout())
	defer cancel()

	command, args := strings.ToLower(fields[0]), fields[1:]

	switch command {
	case "c", "continue":
		return c.s.Resume()

	case "s", "step", "n", "next":
		count, err := c.count(args, 0, 1)
		if err != nil {
			return err
		}
		return c.s.Step(ctx, command == "n" || command == "next", uint16(count))

	case "o", "out":
		return c.s.StepOut(ctx)

	case "x", "stop":
		return c.s.Stop()

	case "b", "break":
		if len(args) != 1 {
			return fmt.Errorf("usage: b <address>")
		}
		address, err := parseAddress(args[0], c.table)
		if err != nil {
			return err
		}
		if err := c.s.ToggleBreakpoint(address); err != nil {
			return err
		}
		if err := c.s.WaitCheckpoints(ctx); err != nil {
			return err
		}
		return c.listBreakpoints()

	case "bl":
		return c.listBreakpoints()

	case "r", "regs":
		registers, err := c.s.GetRegisters(ctx)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		render.Registers(&buf, registers)
		c.print(&buf)
		return nil

	case "m", "mem":
		return c.dump(ctx, args)

	case "d", "disasm":
		return c.disassemble(ctx, args)

	case "q", "quit", "exit":
		return errQuit
	}

	return fmt.Errorf("unknown command %q", fields[0])
}

// Parses the optional numeric argument at index
func (c *console) count(args []string, index int, fallback uint64) (uint64, error) {
	if len(args) <= index {
		return fallback, nil
	}

	count, err := strconv.ParseUint(args[index], 0, 16)
	if err != nil || count == 0 {
		return 0, fmt.Errorf("invalid count %q", args[index])
	}

	return count, nil
}

func (c *console) listBreakpoints() error {
	var buf bytes.Buffer
	render.Checkpoints(&buf, checkpointRows(c.s, c.table))
	c.print(&buf)
	return nil
}

func (c *console) dump(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: m <address> [length]")
	}

	address, err := parseAddress(args[0], c.table)
	if err != nil {
		return err
	}

	length := 0x80
	if len(args) > 1 {
		parsed, err := utils.ParseHex[uint16](args[1])
		if err != nil || parsed == 0 {
			return fmt.Errorf("invalid length %q", args[1])
		}
		length = int(parsed)
	}

	data, err := c.s.ReadMemory(ctx, address, min(length, 0x10000-int(address)))
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	render.HexDump(&buf, address, data, 16)
	c.print(&buf)
	return nil
}

func (c *console) disassemble(ctx context.Context, args []string) error {
	address := c.s.PC()
	if len(args) > 0 {
		var err error
		if address, err = parseAddress(args[0], c.table); err != nil {
			return err
		}
	}

	lines, err := c.count(args, 1, 16)
	if err != nil {
		return err
	}

	out, err := disassembleAt(ctx, c.s, address, int(lines), c.table)
	if err != nil {
		return err
	}

	pc := c.s.PC()

	var buf bytes.Buffer
	render.Listing(&buf, out.Lines, listingOptions(c.s, c.table, &pc))
	c.print(&buf)
	return nil
}
