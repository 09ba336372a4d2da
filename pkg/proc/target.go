package proc

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/go-delve/tdbg/pkg/logflags"
)

// TargetState is the state of the traced process as seen by the
// debugger.
type TargetState uint8

const (
	// StateRunning means a resume request was issued and its stop has
	// not been waited for yet.
	StateRunning TargetState = iota
	// StateStopped means the tracee is stopped and can be inspected.
	StateStopped
	// StateExited means the tracee exited or was killed. Terminal.
	StateExited
	// StateUnreachable means the tracee no longer exists. Terminal.
	StateUnreachable
)

func (s TargetState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateExited:
		return "exited"
	case StateUnreachable:
		return "unreachable"
	}
	return fmt.Sprintf("TargetState(%d)", uint8(s))
}

// Stop describes the state change reported after a resume request.
type Stop struct {
	Event StopEvent
	// PC is the instruction pointer at the stop. Zero when the tracee is
	// not stopped.
	PC uint64
	// Hit is the resolution of a trap-class stop against the breakpoint
	// table, nil if no resolution was attempted.
	Hit *HitOutcome
}

// SyscallPhase tells if a syscall is being entered or left.
type SyscallPhase uint8

const (
	SyscallNone SyscallPhase = iota
	SyscallEntry
	SyscallExit
)

// SyscallReport identifies the system call the tracee was stopped at
// before a StepSyscall.
type SyscallReport struct {
	Num   uint64
	Name  string
	Phase SyscallPhase
}

// Target is a traced process: it owns the OS handle of the tracee and
// the breakpoint table, and drives the tracee through its states. All
// methods block until the tracee has reported its new state; none of
// them may be called concurrently.
type Target struct {
	tracee      Tracee
	arch        *Arch
	breakpoints *BreakpointMap

	state    TargetState
	lastStop StopEvent
	// inSyscall is true while the tracee is between a syscall entry stop
	// and the matching exit stop.
	inSyscall bool
	// pendingSignal is the signal that stopped the tracee, delivered on
	// the next resume.
	pendingSignal int

	log logflags.Logger
}

// NewTarget returns a Target for a tracee that was just launched. The
// first stop of the tracee is still pending: the caller is expected to
// call WaitForStop before inspecting it.
func NewTarget(tracee Tracee, arch *Arch) *Target {
	return &Target{
		tracee:      tracee,
		arch:        arch,
		breakpoints: NewBreakpointMap(arch),
		state:       StateRunning,
		log:         logflags.DebuggerLogger().WithField("pid", tracee.Pid()),
	}
}

// Pid returns the process ID of the tracee.
func (t *Target) Pid() int {
	return t.tracee.Pid()
}

// State returns the current state of the tracee.
func (t *Target) State() TargetState {
	return t.state
}

// Exited returns true if the tracee exited or is gone.
func (t *Target) Exited() bool {
	return t.state == StateExited || t.state == StateUnreachable
}

// Arch returns the architecture of the tracee.
func (t *Target) Arch() *Arch {
	return t.arch
}

// WaitForStop waits for the pending state change of the tracee, if any,
// and returns the stop it is in.
func (t *Target) WaitForStop() (*Stop, error) {
	if stop, err := t.ensureStopped(); stop != nil || err != nil {
		return stop, err
	}
	return t.currentStop(), nil
}

// Continue resumes the tracee until the next signal delivery or trap. A
// trap-class stop is resolved against the breakpoint table; when a
// breakpoint is hit its original code is restored, it is removed from
// the table and the instruction pointer is moved back to its address.
func (t *Target) Continue() (*Stop, error) {
	return t.resume("continue", t.tracee.Continue, true)
}

// Step executes exactly one instruction. The resulting trap is not
// resolved against the breakpoint table.
func (t *Target) Step() (*Stop, error) {
	return t.resume("single step", t.tracee.SingleStep, false)
}

// StepSyscall reports the system call the tracee is stopped at, then
// resumes it until the next system call boundary.
func (t *Target) StepSyscall() (SyscallReport, *Stop, error) {
	if stop, err := t.ensureStopped(); stop != nil || err != nil {
		return SyscallReport{}, stop, err
	}
	regs, err := t.tracee.Registers()
	if err != nil {
		return SyscallReport{}, nil, &InspectError{Kind: InspectNotStopped, Err: err}
	}
	rep := SyscallReport{Phase: SyscallNone}
	if num, ok := regs.Syscall(); ok {
		rep.Num = num
		rep.Name = regs.SyscallName(num)
		rep.Phase = SyscallEntry
		if t.lastStop.Syscall && !t.inSyscall {
			rep.Phase = SyscallExit
		}
	}
	stop, err := t.resume("step to next syscall", t.tracee.SyscallStep, true)
	return rep, stop, err
}

// Registers reads the register set of the stopped tracee. Every call
// issues a new read.
func (t *Target) Registers() (Registers, error) {
	if t.state != StateStopped {
		return nil, &InspectError{Kind: InspectNotStopped, Err: fmt.Errorf("process is %s", t.state)}
	}
	regs, err := t.tracee.Registers()
	if err != nil {
		return nil, &InspectError{Kind: InspectNotStopped, Err: err}
	}
	return regs, nil
}

// ReadWord reads the machine word at addr.
func (t *Target) ReadWord(addr uint64) (uint64, error) {
	if t.state != StateStopped {
		return 0, &InspectError{Kind: InspectNotStopped, Addr: addr, Err: fmt.Errorf("process is %s", t.state)}
	}
	buf, err := readWord(t.tracee, addr)
	if err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return 0, &InspectError{Kind: InspectNotStopped, Addr: addr, Err: err}
		}
		return 0, &InspectError{Kind: InspectUnreadableAddress, Addr: addr, Err: err}
	}
	return wordValue(buf), nil
}

// SetBreakpoint installs a one-shot breakpoint at addr.
func (t *Target) SetBreakpoint(addr uint64) (*Breakpoint, error) {
	if t.state != StateStopped {
		return nil, &InstallError{Addr: addr, Err: ErrNotStopped}
	}
	return t.breakpoints.Set(t.tracee, addr)
}

// ClearBreakpoint removes the breakpoint at addr.
func (t *Target) ClearBreakpoint(addr uint64) (*Breakpoint, error) {
	if t.state != StateStopped {
		return nil, ErrNotStopped
	}
	return t.breakpoints.Clear(t.tracee, addr)
}

// Breakpoints returns the installed breakpoints sorted by ID.
func (t *Target) Breakpoints() []*Breakpoint {
	return t.breakpoints.List()
}

// Detach stops debugging the tracee. If kill is true the tracee is
// killed, otherwise every breakpoint is removed and the tracee is left
// running.
func (t *Target) Detach(kill bool) error {
	if t.Exited() {
		return nil
	}
	if kill {
		err := t.tracee.Kill()
		t.state = StateUnreachable
		return err
	}
	if stop, err := t.ensureStopped(); stop != nil || err != nil {
		return err
	}
	for _, bp := range t.breakpoints.List() {
		if _, err := t.breakpoints.Clear(t.tracee, bp.Addr); err != nil {
			return err
		}
	}
	if err := t.tracee.Detach(); err != nil {
		return err
	}
	t.state = StateUnreachable
	return nil
}

func (t *Target) resume(op string, fn func(sig int) error, resolve bool) (*Stop, error) {
	if stop, err := t.ensureStopped(); stop != nil || err != nil {
		return stop, err
	}
	sig := t.pendingSignal
	if err := fn(sig); err != nil {
		t.log.Debugf("%s rejected: %v", op, err)
		return nil, &ControlError{Op: op, Err: err}
	}
	t.log.Debugf("%s sig=%d", op, sig)
	t.pendingSignal = 0
	t.state = StateRunning
	return t.wait(resolve)
}

// ensureStopped consumes any pending state change. It returns a non-nil
// Stop when the tracee turned out to have exited.
func (t *Target) ensureStopped() (*Stop, error) {
	switch t.state {
	case StateStopped:
		return nil, nil
	case StateRunning:
		stop, err := t.wait(false)
		if err != nil {
			return nil, err
		}
		if t.state != StateStopped {
			return stop, nil
		}
		return nil, nil
	case StateExited:
		// The exit status was already collected, the next wait reports
		// the tracee as gone.
		if _, err := t.wait(false); err != nil {
			return nil, err
		}
		return nil, ErrTraceeGone
	default:
		return nil, ErrTraceeGone
	}
}

func (t *Target) wait(resolve bool) (*Stop, error) {
	ev, err := t.tracee.Wait()
	if err != nil {
		return nil, &ControlError{Op: "wait", Err: err}
	}
	return t.handleEvent(ev, resolve)
}

func (t *Target) handleEvent(ev StopEvent, resolve bool) (*Stop, error) {
	t.lastStop = ev
	t.log.Debugf("event %s signal=%d syscall=%v", ev.Kind, ev.Signal, ev.Syscall)

	switch ev.Kind {
	case StopNoSuchChild:
		t.state = StateUnreachable
		return nil, ErrTraceeGone
	case StopExited, StopTerminated:
		t.state = StateExited
		return &Stop{Event: ev}, nil
	}

	t.state = StateStopped
	if ev.Syscall {
		t.inSyscall = !t.inSyscall
	} else {
		t.inSyscall = false
	}
	if ev.Signal != syscall.SIGTRAP && ev.Signal != syscall.SIGSTOP {
		t.pendingSignal = int(ev.Signal)
	}

	stop := &Stop{Event: ev}
	regs, err := t.tracee.Registers()
	if err != nil {
		t.log.Warnf("could not read registers after stop: %v", err)
		return stop, nil
	}
	stop.PC = regs.PC()

	if !resolve || !ev.Trap() {
		return stop, nil
	}
	outcome, err := t.breakpoints.ResolveHit(t.tracee, stop.PC)
	stop.Hit = &outcome
	if err != nil {
		return stop, err
	}
	if outcome.Kind == HitBreakpoint {
		if err := t.tracee.SetPC(outcome.Addr); err != nil {
			return stop, fmt.Errorf("could not rewind to breakpoint address %#x: %w", outcome.Addr, err)
		}
		stop.PC = outcome.Addr
	}
	return stop, nil
}

func (t *Target) currentStop() *Stop {
	stop := &Stop{Event: t.lastStop}
	if regs, err := t.tracee.Registers(); err == nil {
		stop.PC = regs.PC()
	}
	return stop
}
