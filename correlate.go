package main

import (
	"math"

	"github.com/codecat/go-libs/log"
)

// correlateModule tags every line program row of img that falls inside mod
// as executed or not, and appends it to table.
func correlateModule(mod *moduleInfo, img debugImage, filters *sourceFilters, table lineTable) error {
	bias := img.LoadBias()
	added, outside := 0, 0

	err := img.ForEachLineRow(func(row lineRow) {
		if row.line <= 0 {
			return
		}
		if !filters.keep(row.file) {
			return
		}

		offset := row.address - bias - mod.segmentOffset
		if offset > math.MaxUint32 || offset >= mod.size {
			outside++
			return
		}

		table.add(row.file, lineInfo{
			line:     row.line,
			executed: mod.wasExecuted(offset),
		})
		added++
	})

	log.Debug("Module %s: %d line rows, %d outside of the module (bias 0x%x, segment offset 0x%x)",
		mod.path, added, outside, bias, mod.segmentOffset)
	return err
}

// gatherLineInfo resolves debug information for every module of a trace and
// collects its line coverage.
func gatherLineInfo(ti *traceInfo, resolver moduleResolver, filters *sourceFilters) lineTable {
	table := make(lineTable)

	for _, mod := range ti.loadedModules() {
		if mod.path == unknownModule {
			continue
		}

		log.Info("Gathering debug information about module %s", mod.path)

		img, err := resolver.resolve(mod.path)
		if err != nil {
			log.Error("Unable to determine whether %s has debug info: %s", mod.path, err.Error())
			continue
		}
		if img == nil {
			log.Warn("Could not find debug info for %s", mod.path)
			continue
		}

		err = correlateModule(mod, img, filters, table)
		img.Close()
		if err != nil {
			log.Error("Unable to gather debug info for %s from %s: %s", mod.path, img.Path(), err.Error())
			continue
		}
	}

	table.coalesce()
	return table
}
