package proc

// Arch describes the properties of a CPU architecture the breakpoint
// engine depends on.
type Arch struct {
	// Name is the GOARCH name of the architecture.
	Name string
	// PtrSize is the size of a machine word in bytes.
	PtrSize int

	breakpointInstruction byte
	// breakInstrMovesPC is true if the instruction pointer reported after
	// a trap points past the trap instruction.
	breakInstrMovesPC bool
}

var amd64BreakInstruction byte = 0xCC

// AMD64Arch returns an initialized Arch for AMD64.
func AMD64Arch() *Arch {
	return &Arch{
		Name:                  "amd64",
		PtrSize:               8,
		breakpointInstruction: amd64BreakInstruction,
		breakInstrMovesPC:     true,
	}
}

// BreakpointInstruction returns the one byte trap instruction.
func (a *Arch) BreakpointInstruction() byte {
	return a.breakpointInstruction
}

// BreakpointSize returns the size of the trap instruction.
func (a *Arch) BreakpointSize() int {
	return 1
}

// BreakpointAddr returns the address of the trap instruction that caused a
// stop with the instruction pointer set to pc.
func (a *Arch) BreakpointAddr(pc uint64) uint64 {
	if a.breakInstrMovesPC {
		return pc - uint64(a.BreakpointSize())
	}
	return pc
}
