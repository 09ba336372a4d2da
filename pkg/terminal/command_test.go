package terminal

import (
	"bufio"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"syscall"
	"testing"

	"github.com/go-delve/tdbg/pkg/config"
	"github.com/go-delve/tdbg/pkg/proc"
)

type fakeRegisters []proc.Register

func (r fakeRegisters) PC() uint64                { return r[len(r)-1].Value }
func (r fakeRegisters) SP() uint64                { return r[7].Value }
func (r fakeRegisters) Syscall() (uint64, bool)   { return 0, false }
func (r fakeRegisters) SyscallName(uint64) string { return "read" }
func (r fakeRegisters) Slice() []proc.Register    { return r }

// fakeTarget records the requests of the terminal and answers them from
// canned results.
type fakeTarget struct {
	exited bool
	mem    map[uint64]uint64
	bps    []*proc.Breakpoint
	nextID int
	regs   fakeRegisters

	stops   []*proc.Stop
	syscall proc.SyscallReport

	calls    []string
	killed   bool
	detached bool
}

func newFakeTarget() *fakeTarget {
	names := []string{"rax", "rbx", "rcx", "rdx", "rsi", "rdi", "rbp", "rsp", "r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15", "rip"}
	regs := make(fakeRegisters, len(names))
	for i, name := range names {
		regs[i] = proc.Register{Name: name, Value: uint64(i)}
	}
	regs[7].Value = 0x7ffe1000
	regs[16].Value = 0x401000
	return &fakeTarget{
		mem:  map[uint64]uint64{0x401000: 0xe5894855, 0x10: 0xff},
		regs: regs,
	}
}

func (ft *fakeTarget) Pid() int     { return 4242 }
func (ft *fakeTarget) Exited() bool { return ft.exited }

func (ft *fakeTarget) nextStop(op string) (*proc.Stop, error) {
	ft.calls = append(ft.calls, op)
	if len(ft.stops) == 0 {
		ft.exited = true
		return nil, proc.ErrTraceeGone
	}
	stop := ft.stops[0]
	ft.stops = ft.stops[1:]
	if stop.Event.Kind != proc.StopStopped {
		ft.exited = true
	}
	return stop, nil
}

func (ft *fakeTarget) Continue() (*proc.Stop, error) { return ft.nextStop("continue") }
func (ft *fakeTarget) Step() (*proc.Stop, error)     { return ft.nextStop("step") }

func (ft *fakeTarget) StepSyscall() (proc.SyscallReport, *proc.Stop, error) {
	stop, err := ft.nextStop("syscall")
	return ft.syscall, stop, err
}

func (ft *fakeTarget) Registers() (proc.Registers, error) {
	ft.calls = append(ft.calls, "registers")
	return ft.regs, nil
}

func (ft *fakeTarget) ReadWord(addr uint64) (uint64, error) {
	ft.calls = append(ft.calls, "read")
	v, ok := ft.mem[addr]
	if !ok {
		return 0, &proc.InspectError{Kind: proc.InspectUnreadableAddress, Addr: addr, Err: syscall.EIO}
	}
	return v, nil
}

func (ft *fakeTarget) SetBreakpoint(addr uint64) (*proc.Breakpoint, error) {
	ft.calls = append(ft.calls, "set")
	v, ok := ft.mem[addr]
	if !ok {
		return nil, &proc.InstallError{Addr: addr, Err: proc.ErrUnreadableAddress}
	}
	for _, bp := range ft.bps {
		if bp.Addr == addr {
			return nil, proc.BreakpointExistsError{Addr: addr}
		}
	}
	ft.nextID++
	bp := &proc.Breakpoint{ID: ft.nextID, Addr: addr, OriginalData: byte(v)}
	ft.bps = append(ft.bps, bp)
	return bp, nil
}

func (ft *fakeTarget) ClearBreakpoint(addr uint64) (*proc.Breakpoint, error) {
	ft.calls = append(ft.calls, "clear")
	for i, bp := range ft.bps {
		if bp.Addr == addr {
			ft.bps = append(ft.bps[:i], ft.bps[i+1:]...)
			return bp, nil
		}
	}
	return nil, proc.NoBreakpointError{Addr: addr}
}

func (ft *fakeTarget) Breakpoints() []*proc.Breakpoint { return ft.bps }

func (ft *fakeTarget) Detach(kill bool) error {
	if kill {
		ft.killed = true
	} else {
		ft.detached = true
	}
	ft.exited = true
	return nil
}

type FakeTerminal struct {
	*Term
	t      testing.TB
	target *fakeTarget
	out    *bytes.Buffer
}

func newFakeTerminal(t testing.TB, conf *config.Config) *FakeTerminal {
	if conf == nil {
		conf = &config.Config{}
	}
	out := new(bytes.Buffer)
	target := newFakeTarget()
	cmds := DebugCommands()
	if conf.Aliases != nil {
		cmds.Merge(conf.Aliases)
	}
	term := &Term{
		target: target,
		conf:   conf,
		prompt: conf.GetPrompt(),
		cmds:   cmds,
		dumb:   true,
		stdout: out,
	}
	return &FakeTerminal{Term: term, t: t, target: target, out: out}
}

func (ft *FakeTerminal) Exec(cmdstr string) (outstr string, err error) {
	ft.out.Reset()
	err = ft.cmds.Call(cmdstr, ft.Term)
	return ft.out.String(), err
}

func (ft *FakeTerminal) MustExec(cmdstr string) string {
	outstr, err := ft.Exec(cmdstr)
	if err != nil {
		ft.t.Fatalf("Error executing <%s>: %v", cmdstr, err)
	}
	return outstr
}

func (ft *FakeTerminal) AssertExec(cmdstr, tgt string) {
	out := ft.MustExec(cmdstr)
	if out != tgt {
		ft.t.Fatalf("Error executing %q, expected %q got %q", cmdstr, tgt, out)
	}
}

func (ft *FakeTerminal) AssertExecError(cmdstr, tgterr string) {
	_, err := ft.Exec(cmdstr)
	if err == nil {
		ft.t.Fatalf("Expected error executing %q", cmdstr)
	}
	if err.Error() != tgterr {
		ft.t.Fatalf("Expected error %q executing %q, got error %q", tgterr, cmdstr, err.Error())
	}
}

func TestMalformedArguments(t *testing.T) {
	term := newFakeTerminal(t, nil)
	tests := []struct {
		cmd, msg string
	}{
		{"m", "Usage: m <address>"},
		{"memory 0x1 0x2", "Usage: m <address>"},
		{"m 401000", "address must start with 0x"},
		{"m 0xzz", "Invalid address format"},
		{"m 0x", "Invalid address format"},
		{"b", "Usage: b <address>"},
		{"b 401000", "address must start with 0x"},
		{"breakpoint 0x40g000", "Invalid address format"},
		{"b 0x1ffffffffffffffff", "Invalid address format"},
		{"cl", "Usage: cl <address>"},
		{"clear 12", "address must start with 0x"},
		{"c now", "Usage: c"},
		{"r all", "Usage: r"},
		{"help a b", "Usage: h [command]"},
	}
	for _, tc := range tests {
		_, err := term.Exec(tc.cmd)
		var ue usageError
		if !errors.As(err, &ue) {
			t.Errorf("%q: expected usage error, got %v", tc.cmd, err)
			continue
		}
		if err.Error() != tc.msg {
			t.Errorf("%q: got %q want %q", tc.cmd, err.Error(), tc.msg)
		}
	}
	if len(term.target.bps) != 0 {
		t.Fatalf("breakpoint table changed: %v", term.target.bps)
	}
	if len(term.target.calls) != 0 {
		t.Fatalf("target called for malformed commands: %v", term.target.calls)
	}
}

func TestUnknownCommand(t *testing.T) {
	term := newFakeTerminal(t, nil)
	term.AssertExecError("frobnicate  now ", "Unknown command: frobnicate  now")
	term.AssertExecError("help frobnicate", "Unknown command: frobnicate")
	if len(term.target.calls) != 0 {
		t.Fatalf("unexpected calls %v", term.target.calls)
	}
}

func TestEmptyLine(t *testing.T) {
	term := newFakeTerminal(t, nil)
	term.AssertExec("", "")
	term.AssertExec("   \t", "")
}

func TestBreakpointContinueScenario(t *testing.T) {
	term := newFakeTerminal(t, nil)
	term.AssertExec("b 0x401000", "Breakpoint 1 set at 0x401000\n")
	term.AssertExec("bp", "Breakpoint 1 at 0x401000 (original byte 0x55)\n")

	bp := term.target.bps[0]
	term.target.bps = nil
	term.target.stops = []*proc.Stop{{
		Event: proc.StopEvent{Kind: proc.StopStopped, Signal: syscall.SIGTRAP},
		PC:    0x401000,
		Hit:   &proc.HitOutcome{Kind: proc.HitBreakpoint, Addr: 0x401000, Breakpoint: bp},
	}}
	term.AssertExec("c", "Continuing execution...\nBreakpoint 1 hit at 0x401000\n")
	term.AssertExec("m 0x401000", "0x00000000e5894855\n")
	term.AssertExec("breakpoints", "No breakpoints set\n")
}

func TestBreakpointErrors(t *testing.T) {
	term := newFakeTerminal(t, nil)
	term.MustExec("b 0x401000")
	_, err := term.Exec("b 0x401000")
	var exists proc.BreakpointExistsError
	if !errors.As(err, &exists) {
		t.Fatalf("expected BreakpointExistsError, got %v", err)
	}
	_, err = term.Exec("b 0xdead")
	if !errors.Is(err, proc.ErrUnreadableAddress) {
		t.Fatalf("expected ErrUnreadableAddress, got %v", err)
	}
	term.AssertExec("cl 0x401000", "Breakpoint 1 cleared at 0x401000\n")
	_, err = term.Exec("cl 0x401000")
	var nbp proc.NoBreakpointError
	if !errors.As(err, &nbp) {
		t.Fatalf("expected NoBreakpointError, got %v", err)
	}
}

func TestUnknownTrapAndSignals(t *testing.T) {
	term := newFakeTerminal(t, nil)
	term.target.stops = []*proc.Stop{
		{
			Event: proc.StopEvent{Kind: proc.StopStopped, Signal: syscall.SIGTRAP},
			PC:    0x401011,
			Hit:   &proc.HitOutcome{Kind: proc.HitUnknownTrap, Addr: 0x401010},
		},
		{
			Event: proc.StopEvent{Kind: proc.StopStopped, Signal: syscall.SIGUSR1, SignalName: "SIGUSR1"},
			PC:    0x401020,
		},
		{
			Event: proc.StopEvent{Kind: proc.StopStopped, Signal: syscall.SIGTRAP},
			PC:    0x401022,
		},
		{
			Event: proc.StopEvent{Kind: proc.StopTerminated, Signal: syscall.SIGSEGV, SignalName: "SIGSEGV"},
		},
	}
	term.AssertExec("c", "Continuing execution...\nUnknown trap at 0x401010\n")
	term.AssertExec("continue", "Continuing execution...\nReceived signal SIGUSR1 at 0x401020\n")
	term.AssertExec("n", "Taking a single step...\nStopped at 0x401022\n")
	term.AssertExec("c", "Continuing execution...\nProcess 4242 has been killed by SIGSEGV\n")
	if !reflect.DeepEqual(term.target.calls, []string{"continue", "continue", "step", "continue"}) {
		t.Fatalf("unexpected calls %v", term.target.calls)
	}
}

func TestSyscallMessages(t *testing.T) {
	term := newFakeTerminal(t, nil)
	syscallStop := &proc.Stop{Event: proc.StopEvent{Kind: proc.StopStopped, Signal: syscall.SIGTRAP, Syscall: true}, PC: 0x401030}
	term.target.stops = []*proc.Stop{syscallStop, syscallStop, syscallStop}

	term.AssertExec("s", "Not stopped at a system call\n")
	term.target.syscall = proc.SyscallReport{Num: 1, Name: "write", Phase: proc.SyscallEntry}
	term.AssertExec("syscall", "Entering write (1) syscall\n")
	term.target.syscall.Phase = proc.SyscallExit
	term.AssertExec("s", "Exiting write (1) syscall\n")
}

func TestRegistersFormat(t *testing.T) {
	term := newFakeTerminal(t, nil)
	out := term.MustExec("r")
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if lines[0] != "Registers:" || len(lines) != 18 {
		t.Fatalf("unexpected output:\n%s", out)
	}
	for _, want := range []string{"  rax: 0x0", "  rsp: 0x7ffe1000", "  r8 : 0x8", "  r15: 0xf", "  rip: 0x401000"} {
		found := false
		for _, l := range lines {
			if l == want {
				found = true
			}
		}
		if !found {
			t.Errorf("missing line %q in:\n%s", want, out)
		}
	}
}

func TestMemoryFormat(t *testing.T) {
	term := newFakeTerminal(t, nil)
	term.AssertExec("memory 0x10", "0x00000000000000ff\n")
	_, err := term.Exec("m 0x20")
	if !errors.Is(err, proc.ErrUnreadableAddress) {
		t.Fatalf("expected ErrUnreadableAddress, got %v", err)
	}
}

func TestContinueAfterExit(t *testing.T) {
	term := newFakeTerminal(t, nil)
	term.target.stops = []*proc.Stop{{Event: proc.StopEvent{Kind: proc.StopExited, ExitCode: 0}}}
	term.AssertExec("c", "Continuing execution...\nProcess 4242 has exited with status 0\n")

	_, err := term.Exec("c")
	if !errors.Is(err, proc.ErrTraceeGone) {
		t.Fatalf("expected ErrTraceeGone, got %v", err)
	}
	term.out.Reset()
	status, done := term.handleError(err)
	if !done || status != 0 {
		t.Fatalf("expected session end with status 0, got %d %v", status, done)
	}
	if term.out.String() != "Child process has terminated.\n" {
		t.Fatalf("unexpected notice %q", term.out.String())
	}
}

func TestHandleErrorRendering(t *testing.T) {
	term := newFakeTerminal(t, nil)
	tests := []struct {
		err  error
		want string
	}{
		{usageError("Usage: m <address>"), "Usage: m <address>\n"},
		{unknownCommandError("xyz"), "Unknown command: xyz\n"},
		{&proc.ControlError{Op: "continue", Err: syscall.ESRCH}, "Command failed: could not continue: no such process\n"},
	}
	for _, tc := range tests {
		term.out.Reset()
		status, done := term.handleError(tc.err)
		if done || status != 0 {
			t.Errorf("%v: session ended", tc.err)
		}
		if term.out.String() != tc.want {
			t.Errorf("got %q want %q", term.out.String(), tc.want)
		}
	}
}

func TestQuit(t *testing.T) {
	term := newFakeTerminal(t, nil)
	_, err := term.Exec("q")
	if _, ok := err.(ExitRequestError); !ok {
		t.Fatalf("expected ExitRequestError, got %v", err)
	}
	status, done := term.handleError(err)
	if !done || status != 0 {
		t.Fatalf("expected exit status 0, got %d", status)
	}
	if !term.target.killed {
		t.Fatal("target not killed on quit")
	}

	no := false
	term = newFakeTerminal(t, &config.Config{KillOnExit: &no})
	_, err = term.Exec("exit")
	term.handleError(err)
	if term.target.killed || !term.target.detached {
		t.Fatal("target should be detached when kill-on-exit is false")
	}
}

func TestHelp(t *testing.T) {
	term := newFakeTerminal(t, nil)
	out := term.MustExec("help")
	for _, want := range []string{"Available commands:", "continue (alias: c)", "memory (alias: m)", "quit (alias: q | exit)"} {
		if !strings.Contains(out, want) {
			t.Errorf("help output does not contain %q:\n%s", want, out)
		}
	}
	if out := term.MustExec("h m"); !strings.Contains(out, "memory <address>") {
		t.Errorf("unexpected help for memory:\n%s", out)
	}
}

func TestConfigAliases(t *testing.T) {
	term := newFakeTerminal(t, &config.Config{Aliases: map[string][]string{"continue": {"go", "cc"}}})
	term.target.stops = []*proc.Stop{{Event: proc.StopEvent{Kind: proc.StopExited}}}
	term.AssertExec("go", "Continuing execution...\nProcess 4242 has exited with status 0\n")

	if got := term.cmds.complete("g"); !reflect.DeepEqual(got, []string{"go"}) {
		t.Fatalf("completion: got %v", got)
	}

	term.cmds.Merge(map[string][]string{"next": {"ni"}})
	if term.cmds.Find("go") != nil {
		t.Fatal("alias from a previous merge is still active")
	}
	if cmd := term.cmds.Find("ni"); cmd == nil || cmd.aliases[0] != "next" {
		t.Fatal("merged alias not found")
	}
}

func TestComplete(t *testing.T) {
	cmds := DebugCommands()
	if got, want := cmds.complete("b"), []string{"b", "bp", "breakpoint", "breakpoints"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if got := cmds.complete("Re"); !reflect.DeepEqual(got, []string{"registers"}) {
		t.Fatalf("got %v", got)
	}
	if got := cmds.complete("b 0x"); got != nil {
		t.Fatalf("completed arguments: %v", got)
	}
}

func TestExecuteFile(t *testing.T) {
	term := newFakeTerminal(t, nil)
	path := filepath.Join(t.TempDir(), "init")
	script := "# set up\nb 0x401000\n\nbogus\nm 12\nq\nb 0x10\n"
	if err := os.WriteFile(path, []byte(script), 0600); err != nil {
		t.Fatal(err)
	}

	err := term.cmds.executeFile(term.Term, path)
	if _, ok := err.(ExitRequestError); !ok {
		t.Fatalf("expected ExitRequestError, got %v", err)
	}
	if len(term.target.bps) != 1 {
		t.Fatalf("expected one breakpoint, got %v", term.target.bps)
	}
	out := term.out.String()
	for _, want := range []string{path + ":4: Unknown command: bogus", path + ":5: address must start with 0x"} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}
}

func TestRunReadsUntilEOF(t *testing.T) {
	term := newFakeTerminal(t, nil)
	term.in = bufio.NewReader(strings.NewReader("b 0x401000\nnope\nbp"))

	status, err := term.Run()
	if err != nil || status != 0 {
		t.Fatalf("Run: %d %v", status, err)
	}
	out := term.out.String()
	for _, want := range []string{"(tdbg) ", "Breakpoint 1 set at 0x401000", "Unknown command: nope", "Breakpoint 1 at 0x401000", "exit\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}
	if !term.target.killed {
		t.Fatal("target not killed at EOF")
	}
}

func TestRunTraceeGone(t *testing.T) {
	term := newFakeTerminal(t, nil)
	term.in = bufio.NewReader(strings.NewReader("c\nr\n"))

	status, err := term.Run()
	if err != nil || status != 0 {
		t.Fatalf("Run: %d %v", status, err)
	}
	if !strings.Contains(term.out.String(), "Child process has terminated.") {
		t.Fatalf("missing notice:\n%s", term.out.String())
	}
	if !reflect.DeepEqual(term.target.calls, []string{"continue"}) {
		t.Fatal("commands executed after the tracee was gone")
	}
}

func TestHitColor(t *testing.T) {
	term := newFakeTerminal(t, &config.Config{HitColor: 91})
	term.dumb = false
	term.target.stops = []*proc.Stop{{
		Event: proc.StopEvent{Kind: proc.StopStopped, Signal: syscall.SIGTRAP},
		PC:    0x401000,
		Hit:   &proc.HitOutcome{Kind: proc.HitBreakpoint, Addr: 0x401000, Breakpoint: &proc.Breakpoint{ID: 3, Addr: 0x401000}},
	}}
	term.AssertExec("c", "Continuing execution...\n\033[91mBreakpoint 3\033[0m hit at 0x401000\n")
}
