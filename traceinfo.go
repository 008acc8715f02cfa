package main

import "github.com/RoaringBitmap/roaring"

type traceInfo struct {
	path    string
	version int
	flavor  string

	moduleVersion int

	// Indexed by original module table position. Entries dropped by the
	// module filters are nil.
	modules []*moduleInfo
}

func (ti *traceInfo) getModule(index int) *moduleInfo {
	if index < 0 || index >= len(ti.modules) {
		return nil
	}
	return ti.modules[index]
}

func (ti *traceInfo) getModuleAt(addr uint64) *moduleInfo {
	for _, m := range ti.modules {
		if m != nil && m.contains(addr) {
			return m
		}
	}
	return nil
}

func (ti *traceInfo) loadedModules() []*moduleInfo {
	ret := make([]*moduleInfo, 0, len(ti.modules))
	for _, m := range ti.modules {
		if m != nil {
			ret = append(ret, m)
		}
	}
	return ret
}

// coverage returns the union of every module's executed offsets.
func (ti *traceInfo) coverage() *roaring.Bitmap {
	ret := roaring.New()
	for _, m := range ti.modules {
		if m != nil {
			ret.Or(m.executed)
		}
	}
	return ret
}
