package linutil

import (
	"github.com/go-delve/tdbg/pkg/proc"
)

// AMD64Registers implements the proc.Registers interface for the native/linux
// backend on AMD64.
type AMD64Registers struct {
	Regs *AMD64PtraceRegs
}

func NewAMD64Registers(regs *AMD64PtraceRegs) *AMD64Registers {
	return &AMD64Registers{Regs: regs}
}

// AMD64PtraceRegs is the struct used by the linux kernel to return the
// general purpose registers for AMD64 CPUs.
type AMD64PtraceRegs struct {
	R15      uint64
	R14      uint64
	R13      uint64
	R12      uint64
	Rbp      uint64
	Rbx      uint64
	R11      uint64
	R10      uint64
	R9       uint64
	R8       uint64
	Rax      uint64
	Rcx      uint64
	Rdx      uint64
	Rsi      uint64
	Rdi      uint64
	Orig_rax uint64
	Rip      uint64
	Cs       uint64
	Eflags   uint64
	Rsp      uint64
	Ss       uint64
	Fs_base  uint64
	Gs_base  uint64
	Ds       uint64
	Es       uint64
	Fs       uint64
	Gs       uint64
}

// Slice returns the general purpose registers followed by the instruction
// pointer.
func (r *AMD64Registers) Slice() []proc.Register {
	return []proc.Register{
		{Name: "rax", Value: r.Regs.Rax},
		{Name: "rbx", Value: r.Regs.Rbx},
		{Name: "rcx", Value: r.Regs.Rcx},
		{Name: "rdx", Value: r.Regs.Rdx},
		{Name: "rsi", Value: r.Regs.Rsi},
		{Name: "rdi", Value: r.Regs.Rdi},
		{Name: "rbp", Value: r.Regs.Rbp},
		{Name: "rsp", Value: r.Regs.Rsp},
		{Name: "r8", Value: r.Regs.R8},
		{Name: "r9", Value: r.Regs.R9},
		{Name: "r10", Value: r.Regs.R10},
		{Name: "r11", Value: r.Regs.R11},
		{Name: "r12", Value: r.Regs.R12},
		{Name: "r13", Value: r.Regs.R13},
		{Name: "r14", Value: r.Regs.R14},
		{Name: "r15", Value: r.Regs.R15},
		{Name: "rip", Value: r.Regs.Rip},
	}
}

// PC returns the value of RIP register.
func (r *AMD64Registers) PC() uint64 {
	return r.Regs.Rip
}

// SP returns the value of RSP register.
func (r *AMD64Registers) SP() uint64 {
	return r.Regs.Rsp
}

// Syscall returns the value of ORIG_RAX. The kernel sets it to -1 when
// the stop is not inside a system call.
func (r *AMD64Registers) Syscall() (uint64, bool) {
	if int64(r.Regs.Orig_rax) < 0 {
		return 0, false
	}
	return r.Regs.Orig_rax, true
}

func (r *AMD64Registers) SyscallName(num uint64) string {
	return SyscallNameAMD64(num)
}
