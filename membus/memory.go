// Package membus implements the emulator's byte-addressable memory bus:
// a sparse page-backed address space with little-endian multi-width
// access, alignment faults, and an A-extension load-reserved/
// store-conditional reservation set (spec.md §4.3 "Memory Bus").
package membus

import (
	"encoding/binary"
	"fmt"

	"github.com/clabby/brisc/faults"
)

// PageSize is the granularity at which the bus allocates backing
// storage. Addresses within a page that are never written read as
// zero without allocating the page.
const PageSize = 4096

// Memory is a sparse-mapped address space. The zero value is not
// usable; construct with New.
type Memory struct {
	pages map[uint64][]byte

	reservedValid bool
	reservedAddr  uint64
	reservedWidth uint8

	tracker *PageTracker
}

// New creates an empty memory bus with no pages allocated.
func New() *Memory {
	return &Memory{pages: make(map[uint64][]byte)}
}

// AttachTracker installs a PageTracker that observes every access this
// bus serves. Passing nil disables instrumentation. Tracking is purely
// diagnostic: it never changes the latency or outcome of an access
// (spec.md §9 "no precise cycle accounting beyond the 5-stage model").
func (m *Memory) AttachTracker(t *PageTracker) {
	m.tracker = t
}

func pageBase(addr uint64) uint64 { return addr &^ (PageSize - 1) }

func (m *Memory) page(addr uint64, allocate bool) []byte {
	base := pageBase(addr)
	p, ok := m.pages[base]
	if !ok {
		if !allocate {
			return nil
		}
		p = make([]byte, PageSize)
		m.pages[base] = p
	}
	if m.tracker != nil {
		m.tracker.touch(base)
	}
	return p
}

// checkAlign returns faults.ErrMisalignedAccess wrapped with the
// offending address if addr is not a multiple of width.
func checkAlign(addr uint64, width uint8) error {
	if addr%uint64(width) != 0 {
		return fmt.Errorf("%w: address 0x%x not aligned to %d bytes", faults.ErrMisalignedAccess, addr, width)
	}
	return nil
}

// Read reads a width-byte little-endian value at addr. width must be
// 1, 2, 4, or 8.
func (m *Memory) Read(addr uint64, width uint8) (uint64, error) {
	if err := checkAlign(addr, width); err != nil {
		return 0, err
	}
	base := pageBase(addr)
	off := addr - base
	if off+uint64(width) > PageSize {
		return m.readCrossPage(addr, width)
	}
	p := m.page(addr, false)
	if p == nil {
		return 0, nil
	}
	return readLE(p[off:off+uint64(width)], width), nil
}

// readCrossPage handles the rare case where a multi-byte access
// straddles a page boundary (only possible for misaligned-but-permitted
// 1-byte-granular pages, which in practice never happens since width
// divides PageSize evenly; kept for robustness against future page
// sizes).
func (m *Memory) readCrossPage(addr uint64, width uint8) (uint64, error) {
	buf := make([]byte, width)
	for i := range buf {
		b, err := m.Read(addr+uint64(i), 1)
		if err != nil {
			return 0, err
		}
		buf[i] = byte(b)
	}
	return readLE(buf, width), nil
}

// Write writes a width-byte little-endian value to addr.
func (m *Memory) Write(addr uint64, width uint8, value uint64) error {
	if err := checkAlign(addr, width); err != nil {
		return err
	}
	m.invalidateReservation(addr, width)

	base := pageBase(addr)
	off := addr - base
	if off+uint64(width) > PageSize {
		return m.writeCrossPage(addr, width, value)
	}
	p := m.page(addr, true)
	writeLE(p[off:off+uint64(width)], width, value)
	return nil
}

func (m *Memory) writeCrossPage(addr uint64, width uint8, value uint64) error {
	buf := make([]byte, width)
	writeLE(buf, width, value)
	for i, b := range buf {
		if err := m.Write(addr+uint64(i), 1, uint64(b)); err != nil {
			return err
		}
	}
	return nil
}

// LoadBytes copies all of data into memory starting at addr, used by the loader to
// place ELF segment contents directly.
func (m *Memory) LoadBytes(addr uint64, data []byte) {
	for len(data) > 0 {
		base := pageBase(addr)
		off := addr - base
		p := m.page(addr, true)
		n := copy(p[off:], data)
		data = data[n:]
		addr += uint64(n)
	}
}

// LoadReserved records the exact (addr, width) reservation for the
// A-extension's LR instruction, per spec.md §4.3 ("LR.{W,D} records
// (addr, width) as the current reservation").
func (m *Memory) LoadReserved(addr uint64, width uint8) {
	m.reservedValid = true
	m.reservedAddr = addr
	m.reservedWidth = width
}

// StoreConditional attempts the A-extension's SC instruction. It
// succeeds (returning true) only if a reservation is still valid and
// matches addr and width exactly; any intervening write that overlaps
// the reserved byte range (by this bus) clears the reservation. The
// reservation is consumed regardless of outcome, per the RISC-V spec.
func (m *Memory) StoreConditional(addr uint64, width uint8, value uint64) (bool, error) {
	ok := m.reservedValid && m.reservedAddr == addr && m.reservedWidth == width
	m.reservedValid = false
	if !ok {
		return false, nil
	}
	if err := m.Write(addr, width, value); err != nil {
		return false, err
	}
	return true, nil
}

func rangesOverlap(addrA uint64, widthA uint8, addrB uint64, widthB uint8) bool {
	endA := addrA + uint64(widthA)
	endB := addrB + uint64(widthB)
	return addrA < endB && addrB < endA
}

func (m *Memory) invalidateReservation(addr uint64, width uint8) {
	if !m.reservedValid {
		return
	}
	if rangesOverlap(addr, width, m.reservedAddr, m.reservedWidth) {
		m.reservedValid = false
	}
}

func readLE(b []byte, width uint8) uint64 {
	switch width {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	case 8:
		return binary.LittleEndian.Uint64(b)
	default:
		panic(fmt.Sprintf("membus: unsupported access width %d", width))
	}
}

func writeLE(b []byte, width uint8, v uint64) {
	switch width {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(b, v)
	default:
		panic(fmt.Sprintf("membus: unsupported access width %d", width))
	}
}
