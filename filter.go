package main

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

type filter struct {
	matcher *regexp.Regexp
}

func parseFilter(s string) (filter, error) {
	re, err := regexp.Compile(s)
	if err != nil {
		return filter{}, errors.Wrapf(err, "could not create a regular expression from '%s'", s)
	}
	return filter{matcher: re}, nil
}

func parseFilters(list []string) ([]filter, error) {
	ret := make([]filter, 0, len(list))
	for _, s := range list {
		f, err := parseFilter(s)
		if err != nil {
			return nil, err
		}
		ret = append(ret, f)
	}
	return ret, nil
}

// replacementFilter rewrites the first match of matcher with replacement.
// The replacement may reference capture groups as $1 or ${name}.
type replacementFilter struct {
	matcher     *regexp.Regexp
	replacement string
}

// parseReplacementFilter parses "<regex>:<replacement>", split at the first colon.
func parseReplacementFilter(s string) (replacementFilter, error) {
	pos := strings.IndexByte(s, ':')
	if pos < 0 {
		return replacementFilter{}, errors.Errorf("invalid path map '%s': no ':' found", s)
	}

	re, err := regexp.Compile(s[:pos])
	if err != nil {
		return replacementFilter{}, errors.Wrapf(err, "could not create a regular expression from '%s'", s[:pos])
	}

	return replacementFilter{
		matcher:     re,
		replacement: s[pos+1:],
	}, nil
}

func (f *replacementFilter) replace(input string) string {
	loc := f.matcher.FindStringSubmatchIndex(input)
	if loc == nil {
		return input
	}
	dst := f.matcher.ExpandString(nil, f.replacement, input, loc)
	return input[:loc[0]] + string(dst) + input[loc[1]:]
}

func matchesAny(filters []filter, input string) bool {
	for _, f := range filters {
		if f.matcher.MatchString(input) {
			return true
		}
	}
	return false
}

// moduleFilters are applied to raw module table lines while decoding a trace.
type moduleFilters struct {
	include []filter
	skip    []filter
	pathMap []replacementFilter
}

func (mf *moduleFilters) matchesAnyModuleFilter(input string) bool {
	return len(mf.include) == 0 || matchesAny(mf.include, input)
}

func (mf *moduleFilters) matchesAnyModuleSkipFilter(input string) bool {
	return len(mf.skip) > 0 && matchesAny(mf.skip, input)
}

// maybeReplaceWithPathMap applies the first matching path map. Rules are not chained.
func (mf *moduleFilters) maybeReplaceWithPathMap(input string) string {
	for i := range mf.pathMap {
		if mf.pathMap[i].matcher.MatchString(input) {
			return mf.pathMap[i].replace(input)
		}
	}
	return input
}

func (mf *moduleFilters) keep(line string) bool {
	return mf.matchesAnyModuleFilter(line) && !mf.matchesAnyModuleSkipFilter(line)
}

// sourceFilters are applied to source paths resolved from DWARF line programs.
// An empty path means the row had no resolvable file.
type sourceFilters struct {
	include []filter
	skip    []filter
}

func (sf *sourceFilters) matchesAnySourceFilter(source string) bool {
	if source == "" {
		return false
	}
	return len(sf.include) == 0 || matchesAny(sf.include, source)
}

func (sf *sourceFilters) matchesAnySourceSkipFilter(source string) bool {
	if source == "" {
		return false
	}
	return len(sf.skip) > 0 && matchesAny(sf.skip, source)
}

func (sf *sourceFilters) keep(source string) bool {
	return sf.matchesAnySourceFilter(source) && !sf.matchesAnySourceSkipFilter(source)
}
