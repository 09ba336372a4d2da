// Package proc is a low-level package that provides methods to manipulate
// the process we are debugging.
//
// proc implements the process control and breakpoint engine:
// * driving a traced process (continue, single step, run to next syscall)
// * interpreting the stop / exit events reported by a wait
// * inserting, detecting and restoring one-shot software breakpoints
// * reading the register set and the memory of the stopped process
//
// The OS specific part (ptrace, wait) lives in proc/native and reaches this
// package through the Tracee interface.
package proc
