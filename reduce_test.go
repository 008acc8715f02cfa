package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/RoaringBitmap/roaring"
)

func TestSetReducer(t *testing.T) {
	r := &setReducer{}

	if !r.add("a.log", roaring.BitmapOf(1, 2, 3)) {
		t.Error("first file must be kept")
	}
	if r.add("b.log", roaring.BitmapOf(3, 2, 1)) {
		t.Error("file with identical coverage must be dropped")
	}
	if !r.add("c.log", roaring.BitmapOf(1, 2, 3, 4)) {
		t.Error("file differing in one offset must be kept")
	}
	if !r.add("d.log", roaring.BitmapOf(1, 2)) {
		t.Error("strict subsets are only dropped when identical")
	}

	path := filepath.Join(t.TempDir(), "reduced.txt")
	if err := r.write(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != "a.log\nc.log\nd.log" {
		t.Errorf("reduced set = %q", got)
	}
}

func TestTraceCoverageSignature(t *testing.T) {
	table := "Module Table: version 2, count 2\n" +
		"0, 0x400000, 0x401000, 0x400000, /bin/app\n" +
		"1, 0x7f0000, 0x7f1000, 0x7f0000, /lib/libc.so.6\n"

	first, err := decodeTrace(buildTrace(t, table,
		bbRecord{Start: 0x10, Size: 3, ModuleID: 0},
		bbRecord{Start: 0x40, Size: 3, ModuleID: 1},
	), &moduleFilters{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := decodeTrace(buildTrace(t, table,
		bbRecord{Start: 0x40, Size: 3, ModuleID: 0},
		bbRecord{Start: 0x10, Size: 3, ModuleID: 1},
	), &moduleFilters{})
	if err != nil {
		t.Fatal(err)
	}
	third, err := decodeTrace(buildTrace(t, table,
		bbRecord{Start: 0x10, Size: 4, ModuleID: 0},
		bbRecord{Start: 0x40, Size: 3, ModuleID: 1},
	), &moduleFilters{})
	if err != nil {
		t.Fatal(err)
	}

	r := &setReducer{}
	r.add("first", first.coverage())
	r.add("second", second.coverage())
	r.add("third", third.coverage())

	if len(r.files) != 2 || r.files[0] != "first" || r.files[1] != "third" {
		t.Errorf("reduced set = %v", r.files)
	}
}
