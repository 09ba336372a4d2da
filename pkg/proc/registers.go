package proc

// Registers is an interface for a generic register type. The
// interface encapsulates the generic values / actions
// we need independent of arch. The concrete register types
// will be different depending on OS/Arch.
type Registers interface {
	PC() uint64
	SP() uint64
	// Syscall returns the number of the system call the tracee is
	// entering or leaving, ok is false if it is not inside one.
	Syscall() (num uint64, ok bool)
	// SyscallName returns the name of system call num.
	SyscallName(num uint64) string
	// Slice returns the registers as a list of (name, value) pairs, in
	// display order.
	Slice() []Register
}

// Register represents a CPU register.
type Register struct {
	Name  string
	Value uint64
}
