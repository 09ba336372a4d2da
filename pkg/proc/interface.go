package proc

// Tracee is the OS backend of a Target: the primitives needed to resume a
// traced process, wait for its next state change and inspect it while it
// is stopped. Every method blocks until the kernel has answered.
type Tracee interface {
	MemoryReadWriter

	// Pid returns the process ID of the tracee.
	Pid() int

	// Continue resumes the tracee until the next signal delivery,
	// delivering sig first if it is not zero.
	Continue(sig int) error
	// SingleStep resumes the tracee for exactly one instruction.
	SingleStep(sig int) error
	// SyscallStep resumes the tracee until the next system call entry or
	// exit.
	SyscallStep(sig int) error

	// Wait blocks until the tracee changes state. A tracee that has
	// already been reaped is reported as a StopNoSuchChild event, not as
	// an error.
	Wait() (StopEvent, error)

	// Registers reads the general purpose registers of the tracee.
	Registers() (Registers, error)
	// SetPC changes the instruction pointer of the tracee.
	SetPC(pc uint64) error

	// Kill terminates the tracee and reaps it.
	Kill() error
	// Detach stops tracing the tracee, letting it run freely.
	Detach() error
}
