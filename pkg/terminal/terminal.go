package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-delve/liner"
	colorable "github.com/mattn/go-colorable"
	isatty "github.com/mattn/go-isatty"

	"github.com/go-delve/tdbg/pkg/config"
	"github.com/go-delve/tdbg/pkg/proc"
)

const (
	historyFile                 string = ".tdbg_history"
	terminalHighlightEscapeCode string = "\033[%2dm"
	terminalResetEscapeCode     string = "\033[0m"
)

// Target is the debugging session the terminal drives. It is implemented
// by *proc.Target.
type Target interface {
	Pid() int
	Exited() bool
	Continue() (*proc.Stop, error)
	Step() (*proc.Stop, error)
	StepSyscall() (proc.SyscallReport, *proc.Stop, error)
	Registers() (proc.Registers, error)
	ReadWord(addr uint64) (uint64, error)
	SetBreakpoint(addr uint64) (*proc.Breakpoint, error)
	ClearBreakpoint(addr uint64) (*proc.Breakpoint, error)
	Breakpoints() []*proc.Breakpoint
	Detach(kill bool) error
}

// Term represents the terminal running tdbg.
type Term struct {
	target   Target
	conf     *config.Config
	prompt   string
	line     *liner.State
	in       *bufio.Reader
	cmds     *Commands
	dumb     bool
	stdout   io.Writer
	InitFile string
}

// New returns a new Term. Line editing and history are only enabled
// when stdin is a terminal, otherwise commands are read line by line.
func New(target Target, conf *config.Config) *Term {
	if conf == nil {
		conf = &config.Config{}
	}
	cmds := DebugCommands()
	if conf.Aliases != nil {
		cmds.Merge(conf.Aliases)
	}

	dumb := strings.ToLower(os.Getenv("TERM")) == "dumb" || !isatty.IsTerminal(os.Stdout.Fd())
	var w io.Writer
	if dumb {
		w = colorable.NewNonColorable(os.Stdout)
	} else {
		w = colorable.NewColorableStdout()
	}

	t := &Term{
		target: target,
		conf:   conf,
		prompt: conf.GetPrompt(),
		cmds:   cmds,
		dumb:   dumb,
		stdout: w,
	}
	if isatty.IsTerminal(os.Stdin.Fd()) {
		t.line = liner.NewLiner()
	} else {
		t.in = bufio.NewReader(os.Stdin)
	}
	return t
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	if t.line != nil {
		t.line.Close()
	}
}

// Run begins running tdbg in the terminal. It returns the exit status
// of the debugger.
func (t *Term) Run() (int, error) {
	defer t.Close()

	if t.line != nil {
		t.line.SetCompleter(t.cmds.complete)
		t.loadHistory()
	}

	if t.InitFile != "" {
		err := t.cmds.executeFile(t, t.InitFile)
		if err != nil {
			if status, done := t.handleError(err); done {
				return status, nil
			}
			fmt.Fprintf(os.Stderr, "Error executing init file: %s\n", err)
		}
	}

	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(t.stdout, "exit")
				return t.handleExit()
			}
			return 1, fmt.Errorf("prompt for input failed: %v", err)
		}

		if err := t.cmds.Call(cmdstr, t); err != nil {
			if status, done := t.handleError(err); done {
				return status, nil
			}
		}
	}
}

// handleError renders err. It returns done if the session is over.
func (t *Term) handleError(err error) (status int, done bool) {
	var ere ExitRequestError
	var ue usageError
	var uce unknownCommandError
	switch {
	case errors.As(err, &ere):
		status, err := t.handleExit()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		return status, true
	case errors.Is(err, proc.ErrTraceeGone):
		fmt.Fprintln(t.stdout, "Child process has terminated.")
		t.saveHistory()
		return 0, true
	case errors.As(err, &ue), errors.As(err, &uce):
		fmt.Fprintln(t.stdout, err.Error())
	default:
		fmt.Fprintf(t.stdout, "Command failed: %s\n", err)
	}
	return 0, false
}

// Println prints a line to the terminal, highlighting prefix.
func (t *Term) Println(prefix, str string) {
	if !t.dumb {
		terminalColorEscapeCode := fmt.Sprintf(terminalHighlightEscapeCode, t.conf.GetHitColor())
		prefix = fmt.Sprintf("%s%s%s", terminalColorEscapeCode, prefix, terminalResetEscapeCode)
	}
	fmt.Fprintf(t.stdout, "%s%s\n", prefix, str)
}

func (t *Term) promptForInput() (string, error) {
	if t.line == nil {
		fmt.Fprint(t.stdout, t.prompt)
		l, err := t.in.ReadString('\n')
		if err != nil && (err != io.EOF || l == "") {
			return "", err
		}
		return strings.TrimSpace(l), nil
	}

	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}

	l = strings.TrimSpace(l)
	if l != "" {
		t.line.AppendHistory(l)
	}

	return l, nil
}

func (t *Term) loadHistory() {
	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Printf("Unable to load history file: %v.", err)
		return
	}

	f, err := os.Open(fullHistoryFile)
	if err != nil {
		f, err = os.Create(fullHistoryFile)
		if err != nil {
			fmt.Printf("Unable to open history file: %v. History will not be saved for this session.", err)
			return
		}
	}

	t.line.ReadHistory(f)
	f.Close()
}

func (t *Term) saveHistory() {
	if t.line == nil {
		return
	}
	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Println("Error saving history file:", err)
		return
	}
	if f, err := os.OpenFile(fullHistoryFile, os.O_RDWR|os.O_TRUNC, 0666); err == nil {
		_, err = t.line.WriteHistory(f)
		if err != nil {
			fmt.Println("readline history error:", err)
		}
		f.Close()
	}
}

func (t *Term) handleExit() (int, error) {
	t.saveHistory()

	if t.target.Exited() {
		return 0, nil
	}
	// Quitting always succeeds, a failed detach is only reported.
	return 0, t.target.Detach(t.conf.ShouldKillOnExit())
}
