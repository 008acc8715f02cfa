package main

import (
	"bytes"
	"encoding/binary"

	"github.com/codecat/go-libs/log"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

const bbRecordSize = 8

type bbRecord struct {
	Start    uint32
	Size     uint16
	ModuleID uint16
}

var strucOptions = &struc.Options{Order: binary.LittleEndian}

func parseBasicBlocks(data []byte, count int, ti *traceInfo) error {
	if len(data)/bbRecordSize < count {
		return errors.Wrapf(errTruncatedBBData, "%d basic blocks declared, only %d bytes of data", count, len(data))
	}

	r := bytes.NewReader(data)
	skipped, rejected := 0, 0
	for i := 0; i < count; i++ {
		var bb bbRecord
		err := struc.UnpackWithOptions(r, &bb, strucOptions)
		if err != nil {
			return errors.Wrapf(errTruncatedBBData, "basic block %d: %s", i, err)
		}

		mod := ti.getModule(int(bb.ModuleID))
		if mod == nil {
			skipped++
			continue
		}
		if !mod.addBlock(bb.Start, bb.Size) {
			rejected++
		}
	}

	log.Debug("Number of basic blocks: %d (%d without module, %d out of range)", count, skipped, rejected)
	return nil
}
