package main

import (
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/codecat/go-libs/log"
)

const defaultDebugRoot = "/usr/lib/debug"

type lineRow struct {
	address uint64
	file    string
	line    int
}

// debugImage is an open object with usable line information.
type debugImage interface {
	Path() string
	LoadBias() uint64
	ForEachLineRow(fn func(row lineRow)) error
	Close() error
}

type moduleResolver interface {
	// resolve returns nil without error when the module has no debug information.
	resolve(path string) (debugImage, error)
}

type debugInfoResolver struct {
	debugRoot string
}

func newDebugInfoResolver(debugRoot string) *debugInfoResolver {
	if debugRoot == "" {
		debugRoot = defaultDebugRoot
	}
	return &debugInfoResolver{debugRoot: debugRoot}
}

// resolve follows debug links the way GDB does, see
// https://sourceware.org/gdb/onlinedocs/gdb/Separate-Debug-Files.html
//
// Every object on the chain stays open until the search settles on one.
func (r *debugInfoResolver) resolve(path string) (debugImage, error) {
	obj, err := openObjectFile(path)
	if err != nil {
		return nil, err
	}
	stack := []*objectFile{obj}

	for {
		top := stack[len(stack)-1]
		link, ok := top.debugLink()
		if !ok {
			break
		}

		target := r.findDebugFile(top.path, link, top.buildID())
		if target == "" {
			log.Debug("No debug file %s found for %s", link.name, top.path)
			break
		}
		if onStack(stack, target) {
			log.Warn("Debug link of %s points back to %s", top.path, target)
			break
		}

		next, err := openObjectFile(target)
		if err != nil {
			log.Warn("Unable to open debug file %s for %s: %s", target, top.path, err.Error())
			break
		}
		if !debugLinkChecksumMatches(next, link) {
			log.Warn("Checksum mismatch for debug file %s, using it anyway", target)
		}

		log.Debug("Following debug link %s -> %s", top.path, target)
		stack = append(stack, next)
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.hasLineInfo() {
			for _, o := range stack {
				o.Close()
			}
			return top, nil
		}
		top.Close()
	}
	return nil, nil
}

func (r *debugInfoResolver) findDebugFile(objPath string, link debugLink, buildID []byte) string {
	for _, c := range debugLinkCandidates(objPath, link.name, buildID, r.debugRoot) {
		st, err := os.Stat(c.path)
		if err != nil || st.IsDir() {
			continue
		}
		if c.distinctFrom != "" {
			other, err := os.Stat(c.distinctFrom)
			if err == nil && os.SameFile(st, other) {
				continue
			}
		}
		return c.path
	}
	return ""
}

type debugCandidate struct {
	path string

	// The candidate is skipped when it is the same file as distinctFrom.
	distinctFrom string
}

func debugLinkCandidates(objPath, link string, buildID []byte, debugRoot string) []debugCandidate {
	var ret []debugCandidate

	if filepath.IsAbs(link) {
		ret = append(ret, debugCandidate{path: link})
	}

	if len(buildID) > 0 {
		id := hex.EncodeToString(buildID)
		ret = append(ret, debugCandidate{
			path: filepath.Join(debugRoot, ".build-id", id[:2], id[2:], link),
		})
	}

	dir := filepath.Dir(objPath)
	ret = append(ret,
		debugCandidate{path: filepath.Join(dir, link), distinctFrom: objPath},
		debugCandidate{path: filepath.Join(dir, ".debug", link)},
		debugCandidate{path: filepath.Join(debugRoot, dir, link)},
	)
	return ret
}

func onStack(stack []*objectFile, path string) bool {
	st, err := os.Stat(path)
	if err != nil {
		return false
	}
	for _, o := range stack {
		other, err := os.Stat(o.path)
		if err == nil && os.SameFile(st, other) {
			return true
		}
	}
	return false
}

// debugLinkChecksumMatches reports false only for a computed CRC that
// differs from the one stored in the link.
func debugLinkChecksumMatches(obj *objectFile, link debugLink) bool {
	if !link.hasCRC {
		return true
	}
	sum, err := obj.checksum()
	if err != nil {
		log.Warn("Unable to checksum %s: %s", obj.path, err.Error())
		return true
	}
	if sum != link.crc {
		log.Debug("Debug file %s: expected crc %08x, got %08x", obj.path, link.crc, sum)
		return false
	}
	return true
}
