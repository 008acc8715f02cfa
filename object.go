package main

import (
	"bytes"
	"debug/dwarf"
	"debug/elf"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"
)

// objectFile owns a read-only mapping of a module image and the ELF view
// parsed from it. The mapping stays valid until Close.
type objectFile struct {
	path string
	data *mmap.ReaderAt
	elf  *elf.File
}

func openObjectFile(path string) (*objectFile, error) {
	data, err := mmap.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	f, err := elf.NewFile(data)
	if err != nil {
		data.Close()
		return nil, errors.Wrapf(errObjectParse, "%s: %s", path, err)
	}

	return &objectFile{
		path: path,
		data: data,
		elf:  f,
	}, nil
}

func (o *objectFile) Close() error {
	return o.data.Close()
}

func (o *objectFile) Path() string {
	return o.path
}

// LoadBias is the lowest loadable segment's virtual address minus its file offset.
func (o *objectFile) LoadBias() uint64 {
	var lowest *elf.Prog
	for _, p := range o.elf.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if lowest == nil || p.Vaddr < lowest.Vaddr {
			lowest = p
		}
	}
	if lowest == nil {
		return 0
	}
	return lowest.Vaddr - lowest.Off
}

func (o *objectFile) hasSection(names ...string) bool {
	for _, name := range names {
		s := o.elf.Section(name)
		if s != nil && s.Type != elf.SHT_NOBITS && s.Size > 0 {
			return true
		}
	}
	return false
}

func (o *objectFile) hasLineInfo() bool {
	return o.hasSection(".debug_info", ".zdebug_info") && o.hasSection(".debug_line", ".zdebug_line")
}

func (o *objectFile) sectionData(name string) ([]byte, bool) {
	s := o.elf.Section(name)
	if s == nil || s.Type == elf.SHT_NOBITS {
		return nil, false
	}
	data, err := s.Data()
	if err != nil {
		return nil, false
	}
	return data, true
}

func (o *objectFile) debugLink() (debugLink, bool) {
	data, ok := o.sectionData(".gnu_debuglink")
	if !ok {
		return debugLink{}, false
	}
	link, err := parseDebugLink(data, o.elf.ByteOrder)
	if err != nil {
		return debugLink{}, false
	}
	return link, true
}

func (o *objectFile) buildID() []byte {
	data, ok := o.sectionData(".note.gnu.build-id")
	if !ok {
		return nil
	}
	return parseBuildIDNote(data, o.elf.ByteOrder)
}

func (o *objectFile) checksum() (uint32, error) {
	h := crc32.NewIEEE()
	_, err := io.Copy(h, io.NewSectionReader(o.data, 0, int64(o.data.Len())))
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return h.Sum32(), nil
}

// ForEachLineRow walks the line program of every compilation unit.
func (o *objectFile) ForEachLineRow(fn func(row lineRow)) error {
	d, err := o.elf.DWARF()
	if err != nil {
		return errors.Wrapf(errObjectParse, "%s: reading DWARF: %s", o.path, err)
	}

	r := d.Reader()
	for {
		entry, err := r.Next()
		if err != nil {
			return errors.Wrapf(errObjectParse, "%s: reading compilation unit: %s", o.path, err)
		}
		if entry == nil {
			break
		}
		if entry.Tag != dwarf.TagCompileUnit && entry.Tag != dwarf.TagPartialUnit {
			r.SkipChildren()
			continue
		}
		r.SkipChildren()

		lr, err := d.LineReader(entry)
		if err != nil {
			return errors.Wrapf(errObjectParse, "%s: creating line reader: %s", o.path, err)
		}
		if lr == nil {
			continue
		}

		var le dwarf.LineEntry
		for {
			err = lr.Next(&le)
			if err == io.EOF {
				break
			} else if err != nil {
				return errors.Wrapf(errObjectParse, "%s: reading line table: %s", o.path, err)
			}
			if le.EndSequence {
				continue
			}

			row := lineRow{
				address: le.Address,
				line:    le.Line,
			}
			if le.File != nil {
				row.file = le.File.Name
			}
			fn(row)
		}
	}
	return nil
}

type debugLink struct {
	name   string
	crc    uint32
	hasCRC bool
}

// parseDebugLink decodes a .gnu_debuglink section: a NUL terminated file
// name, padding to a 4 byte boundary, then the CRC32 of the debug file.
func parseDebugLink(data []byte, order binary.ByteOrder) (debugLink, error) {
	end := bytes.IndexByte(data, 0)
	if end <= 0 {
		return debugLink{}, errors.New("debug link has no file name")
	}
	ret := debugLink{name: string(data[:end])}

	crcOffset := (end + 1 + 3) &^ 3
	if crcOffset+4 <= len(data) {
		ret.crc = order.Uint32(data[crcOffset:])
		ret.hasCRC = true
	}
	return ret, nil
}

const ntGNUBuildID = 3

// parseBuildIDNote returns the descriptor of the GNU build-id note, if any.
func parseBuildIDNote(data []byte, order binary.ByteOrder) []byte {
	align := func(n uint32) int {
		return int((n + 3) &^ 3)
	}

	for len(data) >= 12 {
		namesz := order.Uint32(data[0:])
		descsz := order.Uint32(data[4:])
		typ := order.Uint32(data[8:])
		data = data[12:]

		if align(namesz) > len(data) {
			return nil
		}
		name := data[:namesz]
		data = data[align(namesz):]

		if align(descsz) > len(data) && int(descsz) > len(data) {
			return nil
		}
		desc := data[:descsz]
		if align(descsz) <= len(data) {
			data = data[align(descsz):]
		} else {
			data = nil
		}

		if typ == ntGNUBuildID && string(bytes.TrimRight(name, "\x00")) == "GNU" {
			return desc
		}
	}
	return nil
}
