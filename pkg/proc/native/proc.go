//go:build linux && amd64
// +build linux,amd64

package native

import (
	"os"
	"runtime"

	"github.com/go-delve/tdbg/pkg/logflags"
)

// nativeProcess represents all of the information the debugger
// is holding onto regarding the process we are debugging.
type nativeProcess struct {
	pid int // Process Pid

	// ctty is the controlling terminal of the process, when launched
	// with a tty.
	ctty *os.File

	ptraceChan     chan func()
	ptraceDoneChan chan interface{}

	// optionsSet is true once PTRACE_SETOPTIONS has been issued. Options
	// can only be set on a stopped tracee, so this happens at the first
	// stop.
	optionsSet bool

	exited, released bool

	log logflags.Logger
}

// newProcess returns an initialized nativeProcess struct. Before returning,
// it will also launch a goroutine in order to handle ptrace(2)
// functions. For more information, see the documentation on
// `handlePtraceFuncs`.
func newProcess(pid int) *nativeProcess {
	dbp := &nativeProcess{
		pid:            pid,
		ptraceChan:     make(chan func()),
		ptraceDoneChan: make(chan interface{}),
		log:            logflags.PtraceLogger(),
	}
	go dbp.handlePtraceFuncs()
	return dbp
}

// Pid returns the process ID.
func (dbp *nativeProcess) Pid() int {
	return dbp.pid
}

func (dbp *nativeProcess) handlePtraceFuncs() {
	// We must ensure here that we are running on the same thread during
	// while invoking the ptrace(2) syscall. This is due to the fact that ptrace(2) expects
	// all commands after PTRACE_TRACEME to come from the thread that started the tracee.
	runtime.LockOSThread()

	for fn := range dbp.ptraceChan {
		fn()
		dbp.ptraceDoneChan <- nil
	}
	runtime.UnlockOSThread()
}

func (dbp *nativeProcess) execPtraceFunc(fn func()) {
	dbp.ptraceChan <- fn
	<-dbp.ptraceDoneChan
}

// postExit stops the ptrace goroutine and closes the controlling
// terminal. No ptrace request can be issued afterwards.
func (dbp *nativeProcess) postExit() {
	if dbp.released {
		return
	}
	dbp.released = true
	dbp.exited = true
	close(dbp.ptraceChan)
	close(dbp.ptraceDoneChan)
	if dbp.ctty != nil {
		dbp.ctty.Close()
	}
}
