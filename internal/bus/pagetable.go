package bus

// pageShift/pageCount select the page-table granularity: 8192 slots of
// 32 KiB each cover the full 28-bit address space addressable by the
// page table fast path, grounded on original_source/core/src/gga/memory.rs
// ::get_page/init_page_tables.
const (
	pageShift = 15
	pageCount = 1 << (32 - pageShift - 4) // 8192 entries, (addr>>15)&0x1FFF indexing
)

// pageTable holds 8192 base-pointer slots, one per 32 KiB region, plus the
// address mask each slot's backing buffer wraps with. A nil base means the
// slow path must handle the access (unmapped, side-effectful, or read-only
// for this table). Go slices already carry a bounds-checked pointer to
// their backing array, so unlike the source's raw pointers no unsafe code
// is needed to implement the "base pointer + mask" design.
type pageTable struct {
	base [pageCount][]byte
	mask [pageCount]uint32
}

func pageIndex(addr uint32) uint32 { return (addr >> pageShift) & (pageCount - 1) }

func (t *pageTable) set(loAddr, hiAddr uint32, backing []byte, mask uint32) {
	for a := loAddr; a < hiAddr; a += 1 << pageShift {
		t.base[pageIndex(a)] = backing
		t.mask[pageIndex(a)] = mask
	}
}

// lookup resolves addr against the fast path. A ROM page whose computed
// offset falls past the actual ROM image length intentionally misses here
// (even though its slot is non-nil): buildPageTables maps every mirror
// page uniformly regardless of the cartridge's real size, so this is the
// one place that distinguishes present ROM bytes from the open-bus /
// out-of-bounds-echo region past it, matching
// original_source/core/src/gga/memory.rs::get_page's own length check.
func (t *pageTable) lookup(addr uint32) (base []byte, off uint32, ok bool) {
	idx := pageIndex(addr)
	b := t.base[idx]
	if b == nil {
		return nil, 0, false
	}
	o := addr & t.mask[idx]
	if o >= uint32(len(b)) {
		return nil, 0, false
	}
	return b, o, true
}

// buildPageTables wires the read and write fast-path tables for every
// region with a flat backing buffer. ROM is read-only: its write-table
// entries stay nil so writes always fall to the slow path (where they are
// discarded). MMIO, save memory and anything unmapped have no fast-path
// entry in either table.
//
// BIOS is deliberately left out of the fast path entirely, even though it
// has a flat backing buffer: real reads of it are gated on whether the CPU
// is currently executing from inside BIOS (see the slow path's bios read
// handling in bus.go), a condition a flat base+mask page table entry can't
// express. Every BIOS access therefore falls through to the slow path.
func (b *Bus) buildPageTables() {
	b.readPages = pageTable{}
	b.writePages = pageTable{}

	b.readPages.set(0x0200_0000, 0x0300_0000, b.ewram[:], 0x3FFFF)
	b.writePages.set(0x0200_0000, 0x0300_0000, b.ewram[:], 0x3FFFF)

	b.readPages.set(0x0300_0000, 0x0400_0000, b.iwram[:], 0x7FFF)
	b.writePages.set(0x0300_0000, 0x0400_0000, b.iwram[:], 0x7FFF)

	b.readPages.set(0x0500_0000, 0x0600_0000, b.palette[:], 0x3FF)
	b.writePages.set(0x0500_0000, 0x0600_0000, b.palette[:], 0x3FF)

	// VRAM: 96 KiB backing with the 32K+32K+32K mirror quirk folded into a
	// 0x1FFFF mask (see vramOffset in bus.go), so the page table mask alone
	// cannot express it; VRAM therefore always uses the slow path (bus.go's
	// Get*/Set* region dispatch) despite having a flat backing buffer.

	b.readPages.set(0x0700_0000, 0x0800_0000, b.oam[:], 0x3FF)
	b.writePages.set(0x0700_0000, 0x0800_0000, b.oam[:], 0x3FF)

	var rom []byte
	if b.cart != nil {
		rom = b.cart.ROM
	}
	b.readPages.set(0x0800_0000, 0x0A00_0000, rom, 0x01FF_FFFF)
	b.readPages.set(0x0A00_0000, 0x0C00_0000, rom, 0x01FF_FFFF)
	// The third mirror stops 32 KiB short of its mirror boundary: the last
	// page is reserved for the EEPROM save window some carts expose there,
	// which the fast path can't model, so it falls to the slow path.
	b.readPages.set(0x0C00_0000, 0x0DFF_8000, rom, 0x01FF_FFFF)
}
