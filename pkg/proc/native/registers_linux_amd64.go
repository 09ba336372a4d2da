//go:build linux && amd64
// +build linux,amd64

package native

import (
	sys "golang.org/x/sys/unix"

	"github.com/go-delve/tdbg/pkg/proc"
	"github.com/go-delve/tdbg/pkg/proc/linutil"
)

// Registers reads all general purpose registers with a single
// PTRACE_GETREGS.
func (dbp *nativeProcess) Registers() (proc.Registers, error) {
	regs, err := dbp.ptraceRegs()
	if err != nil {
		return nil, err
	}
	return linutil.NewAMD64Registers(regs), nil
}

// SetPC sets RIP to the value specified by 'pc'.
func (dbp *nativeProcess) SetPC(pc uint64) error {
	regs, err := dbp.ptraceRegs()
	if err != nil {
		return err
	}
	regs.Rip = pc
	dbp.execPtraceFunc(func() { err = sys.PtraceSetRegs(dbp.pid, (*sys.PtraceRegs)(regs)) })
	dbp.log.Debugf("PTRACE_SETREGS rip=%#x err=%v", pc, err)
	return err
}

func (dbp *nativeProcess) ptraceRegs() (*linutil.AMD64PtraceRegs, error) {
	var (
		regs linutil.AMD64PtraceRegs
		err  error
	)
	dbp.execPtraceFunc(func() { err = sys.PtraceGetRegs(dbp.pid, (*sys.PtraceRegs)(&regs)) })
	if err != nil {
		dbp.log.Debugf("PTRACE_GETREGS err=%v", err)
		return nil, err
	}
	return &regs, nil
}
