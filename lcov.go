package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

func writeLCOV(w io.Writer, table lineTable) error {
	bw := bufio.NewWriter(w)
	for _, file := range table.files() {
		fmt.Fprintf(bw, "SF:%s\n", file)
		for _, info := range table[file] {
			executed := 0
			if info.executed {
				executed = 1
			}
			fmt.Fprintf(bw, "DA:%d,%d\n", info.line, executed)
		}
		bw.WriteString("end_of_record\n")
	}
	return bw.Flush()
}

func writeLCOVFile(path string, table lineTable) error {
	fh, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "unable to make output stream")
	}

	err = writeLCOV(fh, table)
	if cerr := fh.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrapf(err, "unable to write %s", path)
	}
	return nil
}
