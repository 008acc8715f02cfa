package main

import (
	"reflect"
	"testing"

	"github.com/sirkon/deepequal"
)

type lineSummary struct {
	Line     int
	Executed bool
}

func summarizeLines(infos []lineInfo) []lineSummary {
	ret := make([]lineSummary, 0, len(infos))
	for _, info := range infos {
		ret = append(ret, lineSummary{Line: info.line, Executed: info.executed})
	}
	return ret
}

func TestCoalesceLines(t *testing.T) {
	table := lineTable{
		"/src/a.c": {{3, false}, {3, true}, {5, false}},
		"/src/b.c": {{9, false}, {1, true}, {9, false}, {1, false}},
	}
	table.coalesce()

	want := map[string][]lineSummary{
		"/src/a.c": {{3, true}, {5, false}},
		"/src/b.c": {{1, true}, {9, false}},
	}
	got := map[string][]lineSummary{}
	for file, infos := range table {
		got[file] = summarizeLines(infos)
	}
	if !reflect.DeepEqual(want, got) {
		deepequal.SideBySide(t, "coalesced", want, got)
	}

	table.coalesce()
	again := map[string][]lineSummary{}
	for file, infos := range table {
		again[file] = summarizeLines(infos)
	}
	if !reflect.DeepEqual(got, again) {
		deepequal.SideBySide(t, "coalesced twice", got, again)
	}
}

func TestLineTableMerge(t *testing.T) {
	table := lineTable{"/src/a.c": {{1, false}}}
	table.merge(lineTable{"/src/a.c": {{1, true}}, "/src/b.c": {{2, false}}})
	table.coalesce()

	if got := table.files(); !reflect.DeepEqual(got, []string{"/src/a.c", "/src/b.c"}) {
		t.Fatalf("files = %v", got)
	}
	if !table["/src/a.c"][0].executed {
		t.Error("merged execution was lost")
	}
}
