//go:build linux && amd64
// +build linux,amd64

package native

import (
	sys "golang.org/x/sys/unix"
)

// ReadMemory reads len(data) bytes at addr with PTRACE_PEEKDATA.
func (dbp *nativeProcess) ReadMemory(data []byte, addr uintptr) (n int, err error) {
	if len(data) == 0 {
		return 0, nil
	}
	dbp.execPtraceFunc(func() { n, err = sys.PtracePeekData(dbp.pid, addr, data) })
	dbp.log.Debugf("PTRACE_PEEKDATA addr=%#x len=%d err=%v", addr, len(data), err)
	return n, err
}

// WriteMemory writes data at addr with PTRACE_POKEDATA.
func (dbp *nativeProcess) WriteMemory(addr uintptr, data []byte) (written int, err error) {
	if len(data) == 0 {
		return 0, nil
	}
	dbp.execPtraceFunc(func() { written, err = sys.PtracePokeData(dbp.pid, addr, data) })
	dbp.log.Debugf("PTRACE_POKEDATA addr=%#x len=%d err=%v", addr, len(data), err)
	return written, err
}
