//go:build linux && amd64
// +build linux,amd64

package native

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	sys "golang.org/x/sys/unix"

	"github.com/go-delve/tdbg/pkg/logflags"
	"github.com/go-delve/tdbg/pkg/proc"
)

// Launch creates and begins debugging a new process. The child requests
// to be traced before it executes cmd[0]. Launch does not wait for the
// first stop of the child: the caller must call WaitForStop on the
// returned target.
func Launch(cmd []string, wd string, tty string) (*proc.Target, error) {
	if len(cmd) == 0 {
		return nil, &proc.AttachError{Err: errors.New("no program specified")}
	}
	path, err := resolveExecutable(cmd[0])
	if err != nil {
		return nil, &proc.AttachError{Path: cmd[0], Err: err}
	}

	var process *exec.Cmd
	dbp := newProcess(0)
	dbp.execPtraceFunc(func() {
		process = exec.Command(path)
		process.Args = cmd
		process.Stdin = os.Stdin
		process.Stdout = os.Stdout
		process.Stderr = os.Stderr
		process.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}
		if tty != "" {
			dbp.ctty, err = attachProcessToTTY(process, tty)
			if err != nil {
				return
			}
		}
		if wd != "" {
			process.Dir = wd
		}
		err = process.Start()
	})
	if err != nil {
		dbp.postExit()
		return nil, &proc.AttachError{Path: cmd[0], Err: err}
	}
	dbp.pid = process.Process.Pid
	dbp.log = logflags.PtraceLogger().WithField("pid", dbp.pid)
	dbp.log.Debugf("launched %s", path)
	return proc.NewTarget(dbp, proc.AMD64Arch()), nil
}

// Continue resumes the process with PTRACE_CONT.
func (dbp *nativeProcess) Continue(sig int) (err error) {
	dbp.execPtraceFunc(func() { err = ptraceCont(dbp.pid, sig) })
	dbp.log.Debugf("PTRACE_CONT sig=%d err=%v", sig, err)
	return err
}

// SingleStep resumes the process with PTRACE_SINGLESTEP.
func (dbp *nativeProcess) SingleStep(sig int) (err error) {
	dbp.execPtraceFunc(func() { err = ptraceSingleStep(dbp.pid, sig) })
	dbp.log.Debugf("PTRACE_SINGLESTEP sig=%d err=%v", sig, err)
	return err
}

// SyscallStep resumes the process with PTRACE_SYSCALL.
func (dbp *nativeProcess) SyscallStep(sig int) (err error) {
	dbp.execPtraceFunc(func() { err = ptraceSyscall(dbp.pid, sig) })
	dbp.log.Debugf("PTRACE_SYSCALL sig=%d err=%v", sig, err)
	return err
}

// Wait blocks until the process changes state and classifies the
// change.
func (dbp *nativeProcess) Wait() (proc.StopEvent, error) {
	if dbp.released {
		return proc.StopEvent{Kind: proc.StopNoSuchChild}, nil
	}
	ws, err := dbp.wait()
	if err == sys.ECHILD {
		dbp.log.Debug("wait4: no such child")
		dbp.postExit()
		return proc.StopEvent{Kind: proc.StopNoSuchChild}, nil
	}
	if err != nil {
		return proc.StopEvent{}, err
	}

	switch {
	case ws.Exited():
		dbp.exited = true
		dbp.log.Debugf("exited with status %d", ws.ExitStatus())
		return proc.StopEvent{Kind: proc.StopExited, ExitCode: ws.ExitStatus()}, nil
	case ws.Signaled():
		dbp.exited = true
		dbp.log.Debugf("killed by %s", sys.SignalName(ws.Signal()))
		return proc.StopEvent{Kind: proc.StopTerminated, Signal: ws.Signal(), SignalName: sys.SignalName(ws.Signal())}, nil
	case ws.Stopped():
		ev := proc.StopEvent{Kind: proc.StopStopped}
		sig := ws.StopSignal()
		if sig == sys.SIGTRAP|0x80 {
			ev.Syscall = true
			sig = sys.SIGTRAP
		}
		ev.Signal = sig
		ev.SignalName = sys.SignalName(sig)
		dbp.log.Debugf("stopped by %s syscall=%v", ev.SignalName, ev.Syscall)
		dbp.setOptions()
		return ev, nil
	}
	return proc.StopEvent{}, fmt.Errorf("unexpected wait status %#x", uint32(ws))
}

// wait calls wait4 on the ptrace thread, retrying on EINTR.
func (dbp *nativeProcess) wait() (sys.WaitStatus, error) {
	var (
		ws  sys.WaitStatus
		err error
	)
	dbp.execPtraceFunc(func() {
		for {
			_, err = sys.Wait4(dbp.pid, &ws, sys.WALL, nil)
			if err != sys.EINTR {
				return
			}
		}
	})
	return ws, err
}

func (dbp *nativeProcess) setOptions() {
	if dbp.optionsSet {
		return
	}
	var err error
	dbp.execPtraceFunc(func() { err = ptraceSetOptions(dbp.pid, ptraceOptions) })
	if err != nil {
		dbp.log.Errorf("could not set ptrace options: %v", err)
		return
	}
	dbp.optionsSet = true
}

// Kill kills the target process.
func (dbp *nativeProcess) Kill() error {
	if dbp.released {
		return nil
	}
	defer dbp.postExit()
	if dbp.exited {
		return nil
	}
	if err := sys.Kill(dbp.pid, sys.SIGKILL); err != nil {
		if err == sys.ESRCH {
			return nil
		}
		return errors.New("could not deliver signal " + err.Error())
	}
	for {
		ws, err := dbp.wait()
		if err == sys.ECHILD {
			return nil
		}
		if err != nil {
			return err
		}
		if ws.Exited() || ws.Signaled() {
			dbp.log.Debug("killed")
			return nil
		}
	}
}

// Detach stops tracing the process and lets it run.
func (dbp *nativeProcess) Detach() (err error) {
	if dbp.released {
		return nil
	}
	dbp.execPtraceFunc(func() { err = ptraceDetach(dbp.pid, 0) })
	if err != nil {
		return err
	}
	dbp.postExit()
	return nil
}
