package main

import "github.com/pkg/errors"

// Trace decoding errors. Each aborts processing of a single trace file.
var (
	errMalformedHeader     = errors.New("malformed header")
	errMalformedModuleLine = errors.New("malformed module line")
	errTruncatedBBData     = errors.New("truncated basic block data")
)

// errObjectParse is returned when a module image is not a usable object file.
var errObjectParse = errors.New("unable to parse object file")
