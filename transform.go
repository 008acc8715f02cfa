package main

import (
	"github.com/codecat/go-libs/log"
	"github.com/pkg/errors"
)

type converter struct {
	moduleFilters moduleFilters
	sourceFilters sourceFilters
	resolver      moduleResolver

	// Nil unless a reduced set was requested.
	reducer *setReducer

	lines lineTable
}

func newConverter(cfg *config) *converter {
	ret := &converter{
		moduleFilters: cfg.moduleFilters,
		sourceFilters: cfg.sourceFilters,
		resolver:      newDebugInfoResolver(cfg.debugRoot),
		lines:         make(lineTable),
	}
	if cfg.reduceSetPath != "" {
		ret.reducer = &setReducer{}
	}
	return ret
}

// addTrace decodes one trace file and merges its line coverage. Errors only
// concern this file.
func (c *converter) addTrace(path string) error {
	info, err := decodeTraceFile(path, &c.moduleFilters)
	if err != nil {
		return errors.Wrapf(err, "unable to decode %s", path)
	}

	if c.reducer != nil {
		if !c.reducer.add(path, info.coverage()) {
			log.Debug("%s adds no new coverage to the reduced set", path)
		}
	}

	c.lines.merge(gatherLineInfo(info, c.resolver, &c.sourceFilters))
	return nil
}

func (c *converter) run(paths []string, cfg *config) error {
	for _, p := range paths {
		err := c.addTrace(p)
		if err != nil {
			log.Warn("Could not parse '%s' as a drcov file. Skipping from line coverage analysis. Reason: %s", p, err.Error())
		}
	}

	c.lines.coalesce()

	err := writeLCOVFile(cfg.output, c.lines)
	if err != nil {
		return err
	}
	log.Info("Wrote coverage for %d source files to %s", len(c.lines), cfg.output)

	if c.reducer != nil {
		err = c.reducer.write(cfg.reduceSetPath)
		if err != nil {
			return err
		}
		log.Info("Reduced %d input files to %d in %s", len(paths), len(c.reducer.files), cfg.reduceSetPath)
	}
	return nil
}
