package proc

import (
	"runtime"
	"sync"
	"syscall"
	"testing"
)

func assertNoError(err error, t testing.TB, s string) {
	t.Helper()
	if err != nil {
		_, file, line, _ := runtime.Caller(1)
		t.Fatalf("failed assertion at %s:%d: %s - %s\n", file, line, s, err)
	}
}

// fakeMemory is a flat region of tracee memory starting at base.
type fakeMemory struct {
	mu       sync.Mutex
	base     uint64
	data     []byte
	writeErr error
}

func newFakeMemory(base uint64, data []byte) *fakeMemory {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &fakeMemory{base: base, data: buf}
}

func (m *fakeMemory) inRange(addr uintptr, n int) bool {
	a := uint64(addr)
	return a >= m.base && a+uint64(n) <= m.base+uint64(len(m.data))
}

func (m *fakeMemory) ReadMemory(buf []byte, addr uintptr) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.inRange(addr, len(buf)) {
		return 0, syscall.EIO
	}
	return copy(buf, m.data[uint64(addr)-m.base:]), nil
}

func (m *fakeMemory) WriteMemory(addr uintptr, data []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	if !m.inRange(addr, len(data)) {
		return 0, syscall.EIO
	}
	return copy(m.data[uint64(addr)-m.base:], data), nil
}

func (m *fakeMemory) byteAt(addr uint64) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[addr-m.base]
}

const noSyscall = ^uint64(0)

type fakeRegisters struct {
	pc, sp, sysno uint64
}

func (r *fakeRegisters) PC() uint64 { return r.pc }
func (r *fakeRegisters) SP() uint64 { return r.sp }

func (r *fakeRegisters) Syscall() (uint64, bool) {
	return r.sysno, r.sysno != noSyscall
}

func (r *fakeRegisters) SyscallName(num uint64) string {
	switch num {
	case 1:
		return "write"
	case 60:
		return "exit"
	}
	return "unknown"
}

func (r *fakeRegisters) Slice() []Register {
	return []Register{{"rip", r.pc}, {"rsp", r.sp}}
}

// fakeStop is the next state change reported by fakeTracee.Wait.
type fakeStop struct {
	ev    StopEvent
	pc    uint64
	sysno uint64
}

func trapAt(pc uint64) fakeStop {
	return fakeStop{ev: StopEvent{Kind: StopStopped, Signal: syscall.SIGTRAP}, pc: pc, sysno: noSyscall}
}

func syscallStopAt(pc, sysno uint64) fakeStop {
	return fakeStop{ev: StopEvent{Kind: StopStopped, Signal: syscall.SIGTRAP, Syscall: true}, pc: pc, sysno: sysno}
}

func signalAt(pc uint64, sig syscall.Signal) fakeStop {
	return fakeStop{ev: StopEvent{Kind: StopStopped, Signal: sig}, pc: pc, sysno: noSyscall}
}

func exitWith(code int) fakeStop {
	return fakeStop{ev: StopEvent{Kind: StopExited, ExitCode: code}}
}

type fakeTracee struct {
	*fakeMemory
	regs fakeRegisters

	stops     []fakeStop
	resumeErr error

	resumes  []string
	signals  []int
	waits    int
	killed   bool
	detached bool
}

func newFakeTracee(mem *fakeMemory, stops ...fakeStop) *fakeTracee {
	return &fakeTracee{fakeMemory: mem, stops: stops, regs: fakeRegisters{sp: 0x7ffe0000, sysno: noSyscall}}
}

func (ft *fakeTracee) Pid() int { return 4242 }

func (ft *fakeTracee) resume(kind string, sig int) error {
	if ft.resumeErr != nil {
		return ft.resumeErr
	}
	ft.resumes = append(ft.resumes, kind)
	ft.signals = append(ft.signals, sig)
	return nil
}

func (ft *fakeTracee) Continue(sig int) error    { return ft.resume("cont", sig) }
func (ft *fakeTracee) SingleStep(sig int) error  { return ft.resume("step", sig) }
func (ft *fakeTracee) SyscallStep(sig int) error { return ft.resume("syscall", sig) }

func (ft *fakeTracee) Wait() (StopEvent, error) {
	ft.waits++
	if len(ft.stops) == 0 {
		return StopEvent{Kind: StopNoSuchChild}, nil
	}
	s := ft.stops[0]
	ft.stops = ft.stops[1:]
	if s.ev.Kind == StopStopped {
		ft.regs.pc = s.pc
		ft.regs.sysno = s.sysno
	}
	return s.ev, nil
}

func (ft *fakeTracee) Registers() (Registers, error) {
	regs := ft.regs
	return &regs, nil
}

func (ft *fakeTracee) SetPC(pc uint64) error {
	ft.regs.pc = pc
	return nil
}

func (ft *fakeTracee) Kill() error {
	ft.killed = true
	return nil
}

func (ft *fakeTracee) Detach() error {
	ft.detached = true
	return nil
}
