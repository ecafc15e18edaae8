package media

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrRangeMalformed is returned for Range headers that cannot be parsed.
	ErrRangeMalformed = errors.New("malformed range header")
	// ErrRangeNotSatisfiable is returned when a parsed range falls outside the blob.
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
)

// ByteRange is an inclusive byte window.
type ByteRange struct {
	Start int64
	End   int64
}

// Length returns the number of bytes covered.
func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange formats the Content-Range header value for a blob of size.
func (r ByteRange) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// UnsatisfiedContentRange formats the Content-Range header sent with a 416.
func UnsatisfiedContentRange(size int64) string {
	return fmt.Sprintf("bytes */%d", size)
}

// ParseRange parses a single "bytes=start-end" or "bytes=start-" range against
// a blob of size bytes. An omitted end defaults to size-1.
func ParseRange(header string, size int64) (ByteRange, error) {
	spec, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok {
		return ByteRange{}, fmt.Errorf("%w: %q", ErrRangeMalformed, header)
	}
	if strings.Contains(spec, ",") {
		return ByteRange{}, fmt.Errorf("%w: multiple ranges", ErrRangeMalformed)
	}
	startText, endText, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok || startText == "" {
		return ByteRange{}, fmt.Errorf("%w: %q", ErrRangeMalformed, header)
	}
	start, err := parseOffset(startText)
	if err != nil {
		return ByteRange{}, err
	}
	end := size - 1
	if endText != "" {
		if end, err = parseOffset(endText); err != nil {
			return ByteRange{}, err
		}
		if end < start {
			return ByteRange{}, fmt.Errorf("%w: end before start", ErrRangeMalformed)
		}
	}
	if start >= size || end >= size {
		return ByteRange{}, fmt.Errorf("%w: %d-%d of %d", ErrRangeNotSatisfiable, start, end, size)
	}
	return ByteRange{Start: start, End: end}, nil
}

func parseOffset(value string) (int64, error) {
	value = strings.TrimSpace(value)
	for _, c := range value {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: offset %q", ErrRangeMalformed, value)
		}
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: offset %q", ErrRangeMalformed, value)
	}
	return n, nil
}
