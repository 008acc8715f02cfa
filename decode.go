package main

import (
	"bytes"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/codecat/go-libs/log"
	"github.com/pkg/errors"
)

var (
	rVersion           = regexp.MustCompile(`^\s*DRCOV VERSION: (\d+)\s*$`)
	rFlavor            = regexp.MustCompile(`^\s*DRCOV FLAVOR: (\S+)\s*$`)
	rModuleHeaderOld   = regexp.MustCompile(`^\s*Module Table: (\d+)\s*$`)
	rModuleHeader      = regexp.MustCompile(`^\s*Module Table: version (\d+), count (\d+)\s*$`)
	rBasicBlockHeader  = regexp.MustCompile(`^\s*BB Table: (\d+) bbs\s*$`)
	moduleColumnPrefix = "Columns:"
)

// Module line grammars, one per module table version. Version 5 is used for
// anything newer. Windows traces add a checksum and timestamp before the path.
var moduleGrammars = map[int]*moduleGrammar{
	1: newModuleGrammar(1, `(?P<id>\d+)`, `(?P<size>\d+)`),
	2: newModuleGrammar(2, `(?P<id>\d+)`, `0[xX](?P<base>[[:xdigit:]]+)`, `0[xX](?P<end>[[:xdigit:]]+)`,
		`0[xX](?P<entry>[[:xdigit:]]+)`),
	3: newModuleGrammar(3, `(?P<id>\d+)`, `(?P<containing>\d+)`, `0[xX](?P<base>[[:xdigit:]]+)`,
		`0[xX](?P<end>[[:xdigit:]]+)`, `0[xX](?P<entry>[[:xdigit:]]+)`),
	4: newModuleGrammar(4, `(?P<id>\d+)`, `(?P<containing>\d+)`, `0[xX](?P<base>[[:xdigit:]]+)`,
		`0[xX](?P<end>[[:xdigit:]]+)`, `0[xX](?P<entry>[[:xdigit:]]+)`, `(?:0[xX])?(?P<offset>[[:xdigit:]]+)`),
	5: newModuleGrammar(5, `(?P<id>\d+)`, `(?P<containing>\d+)`, `0[xX](?P<base>[[:xdigit:]]+)`,
		`0[xX](?P<end>[[:xdigit:]]+)`, `0[xX](?P<entry>[[:xdigit:]]+)`, `(?:0[xX])?(?P<offset>[[:xdigit:]]+)`,
		`0[xX](?P<preferred>[[:xdigit:]]+)(?:\s*,\s*0[xX][[:xdigit:]]+\s*,\s*0[xX][[:xdigit:]]+)?`),
}

type moduleGrammar struct {
	version int
	re      *regexp.Regexp
}

func newModuleGrammar(version int, fields ...string) *moduleGrammar {
	expr := `^\s*` + strings.Join(fields, `\s*,\s*`) + `\s*,\s*(?P<path>\S.*?)\s*$`
	return &moduleGrammar{
		version: version,
		re:      regexp.MustCompile(expr),
	}
}

func grammarFor(version int) *moduleGrammar {
	if version >= 5 {
		return moduleGrammars[5]
	}
	return moduleGrammars[version]
}

func (g *moduleGrammar) parse(line string) (*moduleInfo, error) {
	matches := g.re.FindStringSubmatch(line)
	if matches == nil {
		return nil, errors.Wrapf(errMalformedModuleLine, "%q does not match module table version %d", line, g.version)
	}

	field := func(name string) (string, bool) {
		i := g.re.SubexpIndex(name)
		if i < 0 {
			return "", false
		}
		return matches[i], true
	}

	var err error
	number := func(name string, base int) uint64 {
		s, ok := field(name)
		if !ok || err != nil {
			return 0
		}
		v, perr := strconv.ParseUint(s, base, 64)
		if perr != nil {
			err = errors.Wrapf(errMalformedModuleLine, "invalid %s %q in module line", name, s)
		}
		return v
	}

	ret := newModuleInfo()
	ret.id = int(number("id", 10))
	ret.segmentStart = number("base", 16)
	ret.entry = number("entry", 16)
	ret.segmentOffset = number("offset", 16)
	ret.preferredBase = number("preferred", 16)
	ret.path, _ = field("path")

	if _, ok := field("containing"); ok {
		containing := number("containing", 10)
		if err == nil && containing > math.MaxInt32 {
			err = errors.Wrapf(errMalformedModuleLine, "containing module id %d out of range", containing)
		}
		ret.containing = int(containing)
	}

	if _, ok := field("size"); ok {
		ret.size = number("size", 10)
	} else {
		end := number("end", 16)
		if err == nil && end < ret.segmentStart {
			err = errors.Wrapf(errMalformedModuleLine, "module end 0x%x is below its base 0x%x", end, ret.segmentStart)
		}
		ret.size = end - ret.segmentStart
	}

	if err != nil {
		return nil, err
	}
	return ret, nil
}

// lineReader walks the text preamble of a trace, keeping track of the
// position so the binary basic block table can be located afterwards.
type lineReader struct {
	data []byte
	pos  int
}

func (lr *lineReader) peek() (string, int, bool) {
	pos := lr.pos
	for pos < len(lr.data) {
		var line []byte
		if i := bytes.IndexByte(lr.data[pos:], '\n'); i >= 0 {
			line = lr.data[pos : pos+i]
			pos += i + 1
		} else {
			line = lr.data[pos:]
			pos = len(lr.data)
		}
		line = bytes.TrimSuffix(line, []byte{'\r'})
		if len(line) == 0 {
			continue
		}
		return string(line), pos, true
	}
	return "", pos, false
}

func (lr *lineReader) next() (string, bool) {
	line, pos, ok := lr.peek()
	lr.pos = pos
	return line, ok
}

func (lr *lineReader) rest() []byte {
	return lr.data[lr.pos:]
}

func decodeTraceFile(path string, filters *moduleFilters) (*traceInfo, error) {
	log.Info("Loading drcov file: %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	ret, err := decodeTrace(data, filters)
	if err != nil {
		return nil, err
	}
	ret.path = path

	log.Debug("Loaded drcov file %s: version %d, flavor %s, %d modules", path, ret.version, ret.flavor, len(ret.modules))
	return ret, nil
}

func decodeTrace(data []byte, filters *moduleFilters) (*traceInfo, error) {
	lr := &lineReader{data: data}
	ret := &traceInfo{}

	line, ok := lr.next()
	if !ok {
		return nil, errors.Wrap(errMalformedHeader, "version line missing")
	}
	matches := rVersion.FindStringSubmatch(line)
	if matches == nil {
		return nil, errors.Wrapf(errMalformedHeader, "version line %q does not match the expected format", line)
	}
	ret.version, _ = strconv.Atoi(matches[1])

	line, ok = lr.next()
	if !ok {
		return nil, errors.Wrap(errMalformedHeader, "flavor line missing")
	}
	matches = rFlavor.FindStringSubmatch(line)
	if matches == nil {
		return nil, errors.Wrapf(errMalformedHeader, "flavor line %q does not match the expected format", line)
	}
	ret.flavor = matches[1]

	err := parseModuleTable(lr, ret, filters)
	if err != nil {
		return nil, err
	}

	line, ok = lr.next()
	if !ok {
		return nil, errors.Wrap(errMalformedHeader, "basic block header line missing")
	}
	matches = rBasicBlockHeader.FindStringSubmatch(line)
	if matches == nil {
		return nil, errors.Wrapf(errMalformedHeader, "invalid basic block header line %q", line)
	}
	count, err := strconv.Atoi(matches[1])
	if err != nil {
		return nil, errors.Wrapf(errMalformedHeader, "could not parse number of basic blocks %q", matches[1])
	}

	err = parseBasicBlocks(lr.rest(), count, ret)
	if err != nil {
		return nil, err
	}

	return ret, nil
}

func parseModuleTable(lr *lineReader, ti *traceInfo, filters *moduleFilters) error {
	line, ok := lr.next()
	if !ok {
		return errors.Wrap(errMalformedHeader, "module table header line missing")
	}

	var count int
	if matches := rModuleHeaderOld.FindStringSubmatch(line); matches != nil {
		ti.moduleVersion = 1
		count, _ = strconv.Atoi(matches[1])
	} else if matches := rModuleHeader.FindStringSubmatch(line); matches != nil {
		ti.moduleVersion, _ = strconv.Atoi(matches[1])
		count, _ = strconv.Atoi(matches[2])

		if next, _, ok := lr.peek(); ok && strings.HasPrefix(strings.TrimSpace(next), moduleColumnPrefix) {
			lr.next()
		} else {
			log.Debug("Module table version %d has no columns line", ti.moduleVersion)
		}
	} else {
		return errors.Wrapf(errMalformedHeader, "module table header line %q does not match the expected format", line)
	}

	if count > len(lr.data) {
		return errors.Wrapf(errMalformedHeader, "module count %d exceeds trace size", count)
	}
	if ti.moduleVersion < 1 {
		return errors.Wrapf(errMalformedHeader, "unsupported module table version %d", ti.moduleVersion)
	}
	grammar := grammarFor(ti.moduleVersion)

	// Basic blocks refer to modules by their position in the full table, so
	// filtered lines leave a hole. Their bases are still kept (when they
	// parse) for resolving containing modules.
	ti.modules = make([]*moduleInfo, count)
	bases := make([]uint64, count)
	known := make([]bool, count)

	for i := 0; i < count; i++ {
		raw, ok := lr.next()
		if !ok {
			return errors.Wrapf(errMalformedModuleLine, "module table truncated: %d of %d lines present", i, count)
		}

		line := filters.maybeReplaceWithPathMap(raw)
		keep := filters.keep(line)

		mod, err := grammar.parse(line)
		if err != nil {
			if keep {
				return err
			}
			log.Debug("Ignoring unparsable filtered module line %d", i)
			continue
		}
		mod.index = i
		bases[i], known[i] = mod.segmentStart, true

		if !keep {
			log.Debug("Skipping filtered module %s", mod.path)
			continue
		}

		if mod.containing != noContainer && mod.containing > i {
			return errors.Wrapf(errMalformedModuleLine, "module %d is contained by later module %d", i, mod.containing)
		}
		ti.modules[i] = mod
	}

	// Versions 4 and above carry an explicit offset.
	if ti.moduleVersion == 3 {
		for i, mod := range ti.modules {
			if mod == nil || mod.containing == noContainer || mod.containing == i {
				continue
			}
			if !known[mod.containing] {
				log.Warn("Containing module %d of %s is unknown, assuming zero segment offset", mod.containing, mod.path)
				continue
			}
			mod.segmentOffset = mod.segmentStart - bases[mod.containing]
		}
	}

	log.Debug("Modules version: %d, number of modules: %d", ti.moduleVersion, count)
	return nil
}
