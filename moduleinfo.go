package main

import "github.com/RoaringBitmap/roaring"

const (
	noContainer   = -1
	unknownModule = "<unknown>"
)

type moduleInfo struct {
	// Position in the trace's module table. Basic block records refer to this.
	index int
	id    int

	size          uint64
	segmentStart  uint64
	segmentOffset uint64
	entry         uint64
	preferredBase uint64

	// Index of the containing module, or noContainer.
	containing int

	path string

	// Module-relative offsets known to have executed.
	executed *roaring.Bitmap
}

func newModuleInfo() *moduleInfo {
	return &moduleInfo{
		containing: noContainer,
		executed:   roaring.New(),
	}
}

func (mi *moduleInfo) contains(addr uint64) bool {
	return addr >= mi.segmentStart && addr-mi.segmentStart < mi.size
}

func (mi *moduleInfo) offsetOf(addr uint64) uint64 {
	return addr - mi.segmentStart
}

// addBlock records a basic block. Blocks reaching the end of the module are
// rejected, and the last byte of a block is not recorded.
func (mi *moduleInfo) addBlock(start uint32, size uint16) bool {
	end := uint64(start) + uint64(size)
	if mi.size <= end {
		return false
	}
	if size == 0 {
		return true
	}
	mi.executed.AddRange(uint64(start), end-1)
	return true
}

func (mi *moduleInfo) wasExecuted(offset uint64) bool {
	return offset <= 0xFFFFFFFF && mi.executed.Contains(uint32(offset))
}
