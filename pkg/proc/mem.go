package proc

import (
	"encoding/binary"
	"fmt"
)

// MemoryReader is like io.ReaderAt, but the offset is a uintptr so that it
// can address all of 64-bit memory.
type MemoryReader interface {
	// ReadMemory is just like io.ReaderAt.ReadAt.
	ReadMemory(buf []byte, addr uintptr) (n int, err error)
}

// MemoryReadWriter is a MemoryReader that can also write.
type MemoryReadWriter interface {
	MemoryReader
	WriteMemory(addr uintptr, data []byte) (written int, err error)
}

const wordSize = 8

// readWord reads the little endian machine word at addr.
func readWord(mem MemoryReader, addr uint64) ([wordSize]byte, error) {
	var buf [wordSize]byte
	n, err := mem.ReadMemory(buf[:], uintptr(addr))
	if err != nil {
		return buf, err
	}
	if n != wordSize {
		return buf, fmt.Errorf("short read at %#x: %d bytes", addr, n)
	}
	return buf, nil
}

// writeWord writes buf as the machine word at addr.
func writeWord(mem MemoryReadWriter, addr uint64, buf [wordSize]byte) error {
	n, err := mem.WriteMemory(uintptr(addr), buf[:])
	if err != nil {
		return err
	}
	if n != wordSize {
		return fmt.Errorf("short write at %#x: %d bytes", addr, n)
	}
	return nil
}

// patchLowByte replaces the byte at addr with b, leaving the other bytes
// of the word unchanged. It returns the byte that was replaced.
func patchLowByte(mem MemoryReadWriter, addr uint64, b byte) (byte, error) {
	word, err := readWord(mem, addr)
	if err != nil {
		return 0, err
	}
	old := word[0]
	word[0] = b
	return old, writeWord(mem, addr, word)
}

func wordValue(buf [wordSize]byte) uint64 {
	return binary.LittleEndian.Uint64(buf[:])
}
