//go:build linux && amd64
// +build linux,amd64

package native

import (
	"syscall"

	sys "golang.org/x/sys/unix"
)

// ptraceOptions are the options set on the tracee at its first stop.
// TRACESYSGOOD marks syscall stops with bit 0x80 of the stop signal,
// EXITKILL makes sure the tracee does not outlive the debugger.
const ptraceOptions = sys.PTRACE_O_TRACESYSGOOD | sys.PTRACE_O_EXITKILL

// ptraceDetach calls ptrace(PTRACE_DETACH).
func ptraceDetach(tid, sig int) error {
	_, _, err := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_DETACH, uintptr(tid), 1, uintptr(sig), 0, 0)
	if err != syscall.Errno(0) {
		return err
	}
	return nil
}

// ptraceCont executes ptrace PTRACE_CONT
func ptraceCont(tid, sig int) error {
	return sys.PtraceCont(tid, sig)
}

// ptraceSingleStep executes ptrace PTRACE_SINGLESTEP
func ptraceSingleStep(pid, sig int) error {
	_, _, e1 := sys.Syscall6(sys.SYS_PTRACE, uintptr(sys.PTRACE_SINGLESTEP), uintptr(pid), uintptr(0), uintptr(sig), 0, 0)
	if e1 != 0 {
		return e1
	}
	return nil
}

// ptraceSyscall executes ptrace PTRACE_SYSCALL
func ptraceSyscall(pid, sig int) error {
	return sys.PtraceSyscall(pid, sig)
}

// ptraceSetOptions executes ptrace PTRACE_SETOPTIONS
func ptraceSetOptions(pid, options int) error {
	return sys.PtraceSetOptions(pid, options)
}
