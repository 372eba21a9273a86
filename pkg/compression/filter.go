package compression

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/chunkbench/pkg/bencherrors"
)

// Filter is a reversible byte transform applied to a block before it is
// compressed.
type Filter byte

const (
	// FilterNone leaves the block untouched.
	FilterNone Filter = 0
	// FilterShuffle groups the bytes of each element by position: all
	// byte-0s first, then all byte-1s, and so on. Arrays of similar numeric
	// values end up with long runs in the high-order planes.
	FilterShuffle Filter = 1
)

// String returns the filter name.
func (f Filter) String() string {
	switch f {
	case FilterNone:
		return "none"
	case FilterShuffle:
		return "shuffle"
	default:
		return fmt.Sprintf("unknown(%d)", byte(f))
	}
}

// ParseFilter parses a filter name.
func ParseFilter(name string) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return FilterNone, nil
	case "shuffle":
		return FilterShuffle, nil
	default:
		return 0, bencherrors.Newf(bencherrors.ErrorTypeConfig, "unsupported filter: %q", name)
	}
}

// Shuffle writes the byte-plane transpose of src into dst. dst must be at
// least len(src) long. Trailing bytes that do not form a whole element are
// copied unchanged. A typeSize of 1 or less is a plain copy.
func Shuffle(dst, src []byte, typeSize int) {
	if typeSize <= 1 {
		copy(dst, src)
		return
	}

	elements := len(src) / typeSize
	for i := 0; i < elements; i++ {
		base := i * typeSize
		for j := 0; j < typeSize; j++ {
			dst[j*elements+i] = src[base+j]
		}
	}

	tail := elements * typeSize
	copy(dst[tail:len(src)], src[tail:])
}

// Unshuffle reverses Shuffle.
func Unshuffle(dst, src []byte, typeSize int) {
	if typeSize <= 1 {
		copy(dst, src)
		return
	}

	elements := len(src) / typeSize
	for i := 0; i < elements; i++ {
		base := i * typeSize
		for j := 0; j < typeSize; j++ {
			dst[base+j] = src[j*elements+i]
		}
	}

	tail := elements * typeSize
	copy(dst[tail:len(src)], src[tail:])
}
