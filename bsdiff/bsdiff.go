// Package bsdiff applies classic bsdiff binary patches, per spec.md
// §4.3: a header with three stream lengths and a magic, followed by
// three bzip2-compressed streams (control, diff, extra). The control
// stream is a sequence of (x, y, z) triples that alternately add diff
// bytes onto the old image, append extra bytes verbatim, and seek the
// old image by a signed offset.
//
// The wire format and its traversal are exactly what
// github.com/kr/binarydist implements, so this package is a thin
// wrapper around it rather than a reimplementation: it returns
// binarydist's errors unchanged and turns a panic inside binarydist
// (such as an out-of-bounds old-image seek) into a returned error.
// Package ops reports any Apply error as ErrPatchApplication.
package bsdiff

import (
	"fmt"
	"io"

	"github.com/kr/binarydist"
)

// Apply reconstructs "new" by replaying patch against the full contents
// of old, per spec.md's bsdiff semantics. old must supply exactly the
// concatenated bytes of an operation's src_extents; new receives exactly
// the concatenated bytes of its dst_extents.
func Apply(old io.Reader, patch io.Reader, new io.Writer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bsdiff: patch application panicked (likely an out-of-range seek in the old image): %v", r)
		}
	}()
	return binarydist.Patch(old, new, patch)
}
