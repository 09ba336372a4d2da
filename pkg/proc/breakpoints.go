package proc

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-delve/tdbg/pkg/logflags"
)

// Breakpoint represents a one-shot software breakpoint. Stores the byte
// of data that originally was stored at that address.
type Breakpoint struct {
	ID           int
	Addr         uint64
	OriginalData byte
}

func (bp *Breakpoint) String() string {
	return fmt.Sprintf("Breakpoint %d at %#x", bp.ID, bp.Addr)
}

// BreakpointExistsError is returned when trying to set a breakpoint at
// an address that already has a breakpoint set for it.
type BreakpointExistsError struct {
	Addr uint64
}

func (bpe BreakpointExistsError) Error() string {
	return fmt.Sprintf("breakpoint exists at %#x", bpe.Addr)
}

// NoBreakpointError is returned when trying to
// clear a breakpoint that does not exist.
type NoBreakpointError struct {
	Addr uint64
}

func (nbp NoBreakpointError) Error() string {
	return fmt.Sprintf("no breakpoint at %#x", nbp.Addr)
}

// InstallError is returned when the memory a breakpoint should be written
// to can not be read or patched. The breakpoint table is unchanged.
type InstallError struct {
	Addr uint64
	Err  error
}

func (ie *InstallError) Error() string {
	return fmt.Sprintf("could not set breakpoint at %#x: %v", ie.Addr, ie.Err)
}

func (ie *InstallError) Unwrap() error { return ie.Err }

// HitKind classifies a trap-class stop.
type HitKind uint8

const (
	// HitBreakpoint means the trap was caused by a breakpoint in the table.
	HitBreakpoint HitKind = iota
	// HitUnknownTrap means the trap address is not in the table: the
	// program contains its own trap instruction or the bookkeeping is wrong.
	HitUnknownTrap
)

// HitOutcome describes a trap-class stop after it has been resolved
// against the breakpoint table.
type HitOutcome struct {
	Kind HitKind
	// Addr is the address of the trap instruction.
	Addr uint64
	// Breakpoint is the (now removed) breakpoint, nil for HitUnknownTrap.
	Breakpoint *Breakpoint
}

// BreakpointMap represents an (address, breakpoint) map. It is the only
// owner of the bookkeeping for patched memory: every method runs as a
// single critical section.
type BreakpointMap struct {
	mu sync.Mutex
	M  map[uint64]*Breakpoint

	breakpointIDCounter int

	arch *Arch
	log  logflags.Logger
}

// NewBreakpointMap creates a new BreakpointMap.
func NewBreakpointMap(arch *Arch) *BreakpointMap {
	return &BreakpointMap{
		M:    make(map[uint64]*Breakpoint),
		arch: arch,
		log:  logflags.BreakpointsLogger(),
	}
}

// Set writes the trap instruction at addr and records the byte it
// replaced. The entry is only recorded once the write succeeded.
func (bpm *BreakpointMap) Set(mem MemoryReadWriter, addr uint64) (*Breakpoint, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	if _, exists := bpm.M[addr]; exists {
		return nil, BreakpointExistsError{Addr: addr}
	}

	word, err := readWord(mem, addr)
	if err != nil {
		return nil, &InstallError{Addr: addr, Err: fmt.Errorf("%w: %v", ErrUnreadableAddress, err)}
	}
	bp := &Breakpoint{Addr: addr, OriginalData: word[0]}
	word[0] = bpm.arch.BreakpointInstruction()
	if err := writeWord(mem, addr, word); err != nil {
		return nil, &InstallError{Addr: addr, Err: err}
	}

	bpm.breakpointIDCounter++
	bp.ID = bpm.breakpointIDCounter
	bpm.M[addr] = bp
	bpm.log.Debugf("set breakpoint %d at %#x original=%#02x", bp.ID, addr, bp.OriginalData)
	return bp, nil
}

// ResolveHit looks up the breakpoint responsible for a trap-class stop at
// pc. A breakpoint found in the table is removed and its original byte
// written back.
func (bpm *BreakpointMap) ResolveHit(mem MemoryReadWriter, pc uint64) (HitOutcome, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	addr := bpm.arch.BreakpointAddr(pc)
	bp, ok := bpm.M[addr]
	if !ok {
		bpm.log.Debugf("trap at %#x not in breakpoint table", addr)
		return HitOutcome{Kind: HitUnknownTrap, Addr: addr}, nil
	}
	if err := bpm.restore(mem, bp); err != nil {
		return HitOutcome{Kind: HitBreakpoint, Addr: addr, Breakpoint: bp}, err
	}
	bpm.log.Debugf("hit breakpoint %d at %#x", bp.ID, addr)
	return HitOutcome{Kind: HitBreakpoint, Addr: addr, Breakpoint: bp}, nil
}

// Clear removes the breakpoint at addr, restoring the original byte.
func (bpm *BreakpointMap) Clear(mem MemoryReadWriter, addr uint64) (*Breakpoint, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	bp, ok := bpm.M[addr]
	if !ok {
		return nil, NoBreakpointError{Addr: addr}
	}
	if err := bpm.restore(mem, bp); err != nil {
		return nil, err
	}
	bpm.log.Debugf("cleared breakpoint %d at %#x", bp.ID, addr)
	return bp, nil
}

// restore writes back the original byte of bp and removes it from the
// table. On failure the entry stays, since the trap is still in memory.
func (bpm *BreakpointMap) restore(mem MemoryReadWriter, bp *Breakpoint) error {
	if _, err := patchLowByte(mem, bp.Addr, bp.OriginalData); err != nil {
		return fmt.Errorf("could not restore original code at %#x: %w", bp.Addr, err)
	}
	delete(bpm.M, bp.Addr)
	return nil
}

// Lookup returns the breakpoint at addr, if any.
func (bpm *BreakpointMap) Lookup(addr uint64) (*Breakpoint, bool) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()
	bp, ok := bpm.M[addr]
	return bp, ok
}

// List returns all breakpoints sorted by ID.
func (bpm *BreakpointMap) List() []*Breakpoint {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()
	bps := make([]*Breakpoint, 0, len(bpm.M))
	for _, bp := range bpm.M {
		bps = append(bps, bp)
	}
	sort.Slice(bps, func(i, j int) bool { return bps[i].ID < bps[j].ID })
	return bps
}

// Len returns the number of installed breakpoints.
func (bpm *BreakpointMap) Len() int {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()
	return len(bpm.M)
}

