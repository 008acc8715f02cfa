package main

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/codecat/go-libs/log"
	"github.com/pkg/errors"
)

var rTraceFileName = regexp.MustCompile(`(dr|bb)cov\..*\.?log`)

// inputFiles lists the trace files to process: the input file, then the
// lines of the list file, then matching files in the directory. Paths are
// canonicalized and deduplicated, keeping the first occurrence.
func inputFiles(opts *options) ([]string, error) {
	var ret []string
	seen := make(map[string]bool)

	add := func(path string) {
		path = canonicalPath(path)
		if seen[path] {
			return
		}
		seen[path] = true
		ret = append(ret, path)
	}

	if opts.Input != "" {
		add(opts.Input)
	}

	if opts.List != "" {
		fh, err := os.Open(opts.List)
		if err != nil {
			return nil, errors.Wrap(err, "unable to open list file")
		}
		defer fh.Close()

		scanner := bufio.NewScanner(fh)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			add(line)
		}
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrap(err, "unable to read list file")
		}
	}

	if opts.Directory != "" {
		entries, err := os.ReadDir(opts.Directory)
		if err != nil {
			return nil, errors.Wrap(err, "unable to read directory")
		}
		for _, entry := range entries {
			if !entry.Type().IsRegular() || !rTraceFileName.MatchString(entry.Name()) {
				continue
			}
			add(filepath.Join(opts.Directory, entry.Name()))
		}
	}

	log.Debug("Found %d input files", len(ret))
	return ret, nil
}

func canonicalPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return abs
	}
	return resolved
}
