package main

import "sort"

type lineInfo struct {
	line     int
	executed bool
}

// lineTable maps a source path to the lines seen for it.
type lineTable map[string][]lineInfo

func (t lineTable) add(file string, info lineInfo) {
	t[file] = append(t[file], info)
}

func (t lineTable) merge(other lineTable) {
	for file, infos := range other {
		t[file] = append(t[file], infos...)
	}
}

func (t lineTable) files() []string {
	ret := make([]string, 0, len(t))
	for file := range t {
		ret = append(ret, file)
	}
	sort.Strings(ret)
	return ret
}

// coalesce leaves one entry per line for every file, sorted by line, executed
// if any occurrence executed.
func (t lineTable) coalesce() {
	for file, infos := range t {
		t[file] = coalesceLines(infos)
	}
}

func coalesceLines(infos []lineInfo) []lineInfo {
	executed := make(map[int]bool, len(infos))
	for _, info := range infos {
		executed[info.line] = executed[info.line] || info.executed
	}

	ret := infos[:0]
	for line, e := range executed {
		ret = append(ret, lineInfo{line: line, executed: e})
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].line < ret[j].line
	})
	return ret
}
