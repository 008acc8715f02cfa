package main

import (
	"os"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/pkg/errors"
)

// setReducer keeps the trace files whose combined coverage differs from every
// file kept before them. Only identical coverage is deduplicated.
type setReducer struct {
	files      []string
	signatures []*roaring.Bitmap
}

func (r *setReducer) add(path string, signature *roaring.Bitmap) bool {
	for _, s := range r.signatures {
		if s.Equals(signature) {
			return false
		}
	}
	r.files = append(r.files, path)
	r.signatures = append(r.signatures, signature)
	return true
}

func (r *setReducer) write(path string) error {
	err := os.WriteFile(path, []byte(strings.Join(r.files, "\n")), 0644)
	if err != nil {
		return errors.Wrapf(err, "unable to write reduced set to %s", path)
	}
	return nil
}
