// Package terminal implements functions for responding to user
// input and dispatching to appropriate backend commands.
package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/derekparker/trie"

	"github.com/go-delve/tdbg/pkg/proc"
)

type cmdfunc func(t *Term, args []string) error

type command struct {
	aliases        []string
	builtinAliases []string
	// nargs is the number of arguments the command accepts, -1 if it
	// validates them itself.
	nargs   int
	usage   string
	helpMsg string
	cmdFn   cmdfunc
}

// Returns true if the command string matches one of the aliases for this command
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// Commands represents the commands for tdbg.
type Commands struct {
	cmds []command
	// names indexes the aliases of every command for completion.
	names *trie.Trie
}

// DebugCommands returns a Commands struct with default commands defined.
func DebugCommands() *Commands {
	c := &Commands{}

	c.cmds = []command{
		{aliases: []string{"help", "h"}, nargs: -1, usage: "h [command]", cmdFn: c.help, helpMsg: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for more information about it.`},
		{aliases: []string{"continue", "c"}, usage: "c", cmdFn: cont, helpMsg: `Run until breakpoint, signal or program termination.

	continue

A breakpoint that is hit is removed: breakpoints only stop the program once.`},
		{aliases: []string{"syscall", "s"}, usage: "s", cmdFn: stepSyscall, helpMsg: `Run until the next system call entry or exit.

	syscall

Prints the system call the program is stopped at, if any, before resuming it.`},
		{aliases: []string{"next", "n"}, usage: "n", cmdFn: next, helpMsg: `Single step a single cpu instruction.

	next

Breakpoints are not checked when single stepping.`},
		{aliases: []string{"registers", "r"}, usage: "r", cmdFn: registers, helpMsg: `Print contents of CPU registers.

	registers`},
		{aliases: []string{"memory", "m"}, nargs: 1, usage: "m <address>", cmdFn: examineMemory, helpMsg: `Print the machine word stored at address.

	memory <address>

The address must be in hexadecimal and start with 0x, for example:

	memory 0x401000`},
		{aliases: []string{"breakpoint", "b"}, nargs: 1, usage: "b <address>", cmdFn: breakpoint, helpMsg: `Sets a breakpoint.

	breakpoint <address>

The address must be in hexadecimal and start with 0x. The breakpoint is removed the first time it is hit.`},
		{aliases: []string{"breakpoints", "bp"}, usage: "bp", cmdFn: breakpoints, helpMsg: `Print out info for active breakpoints.

	breakpoints`},
		{aliases: []string{"clear", "cl"}, nargs: 1, usage: "cl <address>", cmdFn: clear, helpMsg: `Deletes a breakpoint, restoring the original code.

	clear <address>`},
		{aliases: []string{"quit", "q", "exit"}, usage: "q", cmdFn: exitCommand, helpMsg: `Exit the debugger.

	quit

The target process is killed unless kill-on-exit is disabled in the configuration file.`},
	}

	sort.Sort(byFirstAlias(c.cmds))
	c.buildCompleter()
	return c
}

// byFirstAlias will sort by the first
// alias of a command.
type byFirstAlias []command

func (a byFirstAlias) Len() int           { return len(a) }
func (a byFirstAlias) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byFirstAlias) Less(i, j int) bool { return a[i].aliases[0] < a[j].aliases[0] }

// Find will look up the command function for the given command input.
// If it cannot find the command it returns nil.
func (c *Commands) Find(cmdstr string) *command {
	for i := range c.cmds {
		if c.cmds[i].match(cmdstr) {
			return &c.cmds[i]
		}
	}
	return nil
}

// Call takes a command to execute.
func (c *Commands) Call(cmdstr string, t *Term) error {
	fields := strings.Fields(cmdstr)
	if len(fields) == 0 {
		return nil
	}
	cmd := c.Find(fields[0])
	if cmd == nil {
		return unknownCommandError(strings.TrimSpace(cmdstr))
	}
	args := fields[1:]
	if cmd.nargs >= 0 && len(args) != cmd.nargs {
		return usageError("Usage: " + cmd.usage)
	}
	return cmd.cmdFn(t, args)
}

// Merge takes aliases defined in the config struct and merges them with the default aliases.
func (c *Commands) Merge(allAliases map[string][]string) {
	for i := range c.cmds {
		if c.cmds[i].builtinAliases != nil {
			c.cmds[i].aliases = append(c.cmds[i].aliases[:0], c.cmds[i].builtinAliases...)
		}
	}
	for i := range c.cmds {
		if aliases, ok := allAliases[c.cmds[i].aliases[0]]; ok {
			if c.cmds[i].builtinAliases == nil {
				c.cmds[i].builtinAliases = make([]string, len(c.cmds[i].aliases))
				copy(c.cmds[i].builtinAliases, c.cmds[i].aliases)
			}
			c.cmds[i].aliases = append(c.cmds[i].aliases, aliases...)
		}
	}
	c.buildCompleter()
}

func (c *Commands) buildCompleter() {
	c.names = trie.New()
	for i := range c.cmds {
		for _, alias := range c.cmds[i].aliases {
			c.names.Add(alias, c.cmds[i].aliases[0])
		}
	}
}

// complete returns the command names starting with line.
func (c *Commands) complete(line string) []string {
	if strings.ContainsAny(line, " \t") {
		return nil
	}
	names := c.names.PrefixSearch(strings.ToLower(line))
	sort.Strings(names)
	return names
}

// unknownCommandError is returned for input that does not match any
// command.
type unknownCommandError string

func (e unknownCommandError) Error() string {
	return "Unknown command: " + string(e)
}

// usageError is returned for malformed command arguments.
type usageError string

func (e usageError) Error() string {
	return string(e)
}

func (c *Commands) help(t *Term, args []string) error {
	if len(args) > 1 {
		return usageError("Usage: h [command]")
	}
	if len(args) == 1 {
		cmd := c.Find(args[0])
		if cmd == nil {
			return unknownCommandError(args[0])
		}
		fmt.Fprintln(t.stdout, cmd.helpMsg)
		return nil
	}

	fmt.Fprintln(t.stdout, "Available commands:")
	w := new(tabwriter.Writer)
	w.Init(t.stdout, 0, 8, 0, '-', 0)
	for _, cmd := range c.cmds {
		h := cmd.helpMsg
		if idx := strings.Index(h, "\n"); idx >= 0 {
			h = h[:idx]
		}
		if len(cmd.aliases) > 1 {
			fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
		} else {
			fmt.Fprintf(w, "    %s \t %s\n", cmd.aliases[0], h)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(t.stdout)
	fmt.Fprintln(t.stdout, "Type help followed by a command for full documentation.")
	return nil
}

func cont(t *Term, args []string) error {
	fmt.Fprintln(t.stdout, "Continuing execution...")
	stop, err := t.target.Continue()
	if stop != nil {
		printStop(t, stop)
	}
	return err
}

func next(t *Term, args []string) error {
	fmt.Fprintln(t.stdout, "Taking a single step...")
	stop, err := t.target.Step()
	if stop != nil {
		printStop(t, stop)
	}
	return err
}

func stepSyscall(t *Term, args []string) error {
	rep, stop, err := t.target.StepSyscall()
	switch rep.Phase {
	case proc.SyscallEntry:
		fmt.Fprintf(t.stdout, "Entering %s (%d) syscall\n", rep.Name, rep.Num)
	case proc.SyscallExit:
		fmt.Fprintf(t.stdout, "Exiting %s (%d) syscall\n", rep.Name, rep.Num)
	default:
		if err == nil || stop != nil {
			fmt.Fprintln(t.stdout, "Not stopped at a system call")
		}
	}
	if stop != nil {
		printStop(t, stop)
	}
	return err
}

// printStop describes the state reached after a resume.
func printStop(t *Term, stop *proc.Stop) {
	ev := stop.Event
	switch ev.Kind {
	case proc.StopExited:
		fmt.Fprintf(t.stdout, "Process %d has exited with status %d\n", t.target.Pid(), ev.ExitCode)
		return
	case proc.StopTerminated:
		fmt.Fprintf(t.stdout, "Process %d has been killed by %s\n", t.target.Pid(), signalName(ev))
		return
	}

	switch {
	case stop.Hit != nil && stop.Hit.Kind == proc.HitBreakpoint:
		t.Println(fmt.Sprintf("Breakpoint %d", stop.Hit.Breakpoint.ID), fmt.Sprintf(" hit at %#x", stop.Hit.Addr))
	case stop.Hit != nil:
		fmt.Fprintf(t.stdout, "Unknown trap at %#x\n", stop.Hit.Addr)
	case ev.Syscall:
	case ev.Signal != syscall.SIGTRAP:
		fmt.Fprintf(t.stdout, "Received signal %s at %#x\n", signalName(ev), stop.PC)
	default:
		fmt.Fprintf(t.stdout, "Stopped at %#x\n", stop.PC)
	}
}

func signalName(ev proc.StopEvent) string {
	if ev.SignalName != "" {
		return ev.SignalName
	}
	return ev.Signal.String()
}

func registers(t *Term, args []string) error {
	regs, err := t.target.Registers()
	if err != nil {
		return err
	}
	fmt.Fprintln(t.stdout, "Registers:")
	for _, reg := range regs.Slice() {
		fmt.Fprintf(t.stdout, "  %-3s: %#x\n", reg.Name, reg.Value)
	}
	return nil
}

// parseAddress parses a 0x prefixed hexadecimal address.
func parseAddress(s string) (uint64, error) {
	if !strings.HasPrefix(s, "0x") {
		return 0, usageError("address must start with 0x")
	}
	addr, err := strconv.ParseUint(s[2:], 16, 64)
	if err != nil {
		return 0, usageError("Invalid address format")
	}
	return addr, nil
}

func examineMemory(t *Term, args []string) error {
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	val, err := t.target.ReadWord(addr)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "0x%016x\n", val)
	return nil
}

func breakpoint(t *Term, args []string) error {
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	bp, err := t.target.SetBreakpoint(addr)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "Breakpoint %d set at %#x\n", bp.ID, bp.Addr)
	return nil
}

func breakpoints(t *Term, args []string) error {
	bps := t.target.Breakpoints()
	if len(bps) == 0 {
		fmt.Fprintln(t.stdout, "No breakpoints set")
		return nil
	}
	for _, bp := range bps {
		fmt.Fprintf(t.stdout, "Breakpoint %d at %#x (original byte 0x%02x)\n", bp.ID, bp.Addr, bp.OriginalData)
	}
	return nil
}

func clear(t *Term, args []string) error {
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	bp, err := t.target.ClearBreakpoint(addr)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "Breakpoint %d cleared at %#x\n", bp.ID, bp.Addr)
	return nil
}

// ExitRequestError is returned when the user
// exits tdbg.
type ExitRequestError struct{}

func (ere ExitRequestError) Error() string {
	return ""
}

func exitCommand(t *Term, args []string) error {
	fmt.Fprintln(t.stdout, "Exiting the debugger.")
	return ExitRequestError{}
}

func (c *Commands) executeFile(t *Term, name string) error {
	fh, err := os.Open(name)
	if err != nil {
		return err
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	lineno := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineno++

		if line == "" || line[0] == '#' {
			continue
		}

		if err := c.Call(line, t); err != nil {
			if _, isExitRequest := err.(ExitRequestError); isExitRequest {
				return err
			}
			if errors.Is(err, proc.ErrTraceeGone) {
				return err
			}
			fmt.Fprintf(t.stdout, "%s:%d: %v\n", name, lineno, err)
		}
	}

	return scanner.Err()
}
