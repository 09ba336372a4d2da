package proc

import (
	"errors"
	"fmt"
	"syscall"
)

// StopKind is the tag of a StopEvent.
type StopKind uint8

const (
	// StopStopped means the tracee was stopped by a signal (including
	// the traps caused by breakpoints, single steps and syscall
	// boundaries).
	StopStopped StopKind = iota
	// StopExited means the tracee exited normally.
	StopExited
	// StopTerminated means the tracee was killed by a signal.
	StopTerminated
	// StopNoSuchChild means the tracee no longer exists to be waited on.
	StopNoSuchChild
)

func (k StopKind) String() string {
	switch k {
	case StopStopped:
		return "stopped"
	case StopExited:
		return "exited"
	case StopTerminated:
		return "terminated"
	case StopNoSuchChild:
		return "no such child"
	}
	return fmt.Sprintf("StopKind(%d)", uint8(k))
}

// StopEvent is the outcome of waiting on the tracee.
type StopEvent struct {
	Kind StopKind
	// Signal is the stop signal for StopStopped and the killing signal
	// for StopTerminated.
	Signal syscall.Signal
	// SignalName is the symbolic name of Signal, as provided by the
	// backend (SIGTRAP, SIGSEGV...).
	SignalName string
	// ExitCode is the exit status for StopExited.
	ExitCode int
	// Syscall is true if the stop is a system call entry or exit.
	Syscall bool
}

// Trap returns true if the event is a trap-class stop: a SIGTRAP that is
// not reported for a syscall boundary.
func (ev StopEvent) Trap() bool {
	return ev.Kind == StopStopped && ev.Signal == syscall.SIGTRAP && !ev.Syscall
}

// AttachError is returned when a process can not be launched under the
// debugger. It is fatal to the session.
type AttachError struct {
	Path string
	Err  error
}

func (ae *AttachError) Error() string {
	return fmt.Sprintf("could not launch process %s: %v", ae.Path, ae.Err)
}

func (ae *AttachError) Unwrap() error { return ae.Err }

// ErrNotExecutable is returned when the program to launch is not an
// executable file.
var ErrNotExecutable = errors.New("not an executable file")

// ErrUnsupportedBackend is returned by backends that can not trace
// processes on the current OS / architecture.
var ErrUnsupportedBackend = errors.New("native backend not supported on this platform")

// ControlError is returned when a resume request is rejected by the
// OS. The target state is unchanged.
type ControlError struct {
	Op  string
	Err error
}

func (ce *ControlError) Error() string {
	return fmt.Sprintf("could not %s: %v", ce.Op, ce.Err)
}

func (ce *ControlError) Unwrap() error { return ce.Err }

// InspectKind is the reason an inspection failed.
type InspectKind uint8

const (
	// InspectNotStopped means the tracee is not stopped.
	InspectNotStopped InspectKind = iota
	// InspectUnreadableAddress means the memory is not mapped.
	InspectUnreadableAddress
)

// InspectError is returned when registers or memory can not be read.
type InspectError struct {
	Kind InspectKind
	Addr uint64
	Err  error
}

func (ie *InspectError) Error() string {
	switch ie.Kind {
	case InspectUnreadableAddress:
		return fmt.Sprintf("could not read memory at %#x: %v", ie.Addr, ie.Err)
	default:
		if ie.Err == nil {
			return ErrNotStopped.Error()
		}
		return fmt.Sprintf("%v: %v", ErrNotStopped, ie.Err)
	}
}

func (ie *InspectError) Unwrap() error { return ie.Err }

// Is makes errors.Is match ErrNotStopped and ErrUnreadableAddress
// according to the kind of the error.
func (ie *InspectError) Is(target error) bool {
	switch ie.Kind {
	case InspectUnreadableAddress:
		return target == ErrUnreadableAddress
	default:
		return target == ErrNotStopped
	}
}

// ErrUnreadableAddress is wrapped by errors reading memory that is not
// mapped in the tracee.
var ErrUnreadableAddress = errors.New("unreadable address")

// ErrNotStopped is wrapped by errors caused by operations that need a
// stopped tracee.
var ErrNotStopped = errors.New("process is not stopped")

// ErrTraceeGone is returned when the tracee has terminated and been
// reaped: there is nothing left to debug.
var ErrTraceeGone = errors.New("child process has terminated")

