package fastparser

import (
	"bytes"
	"fmt"
)

// maxChunkSize bounds a single chunk; larger sizes overflow on 32-bit ints.
const maxChunkSize = 1<<31 - 1

// ParseChunkSize parses a chunk-size line of a chunked transfer-encoded body.
//
// Format: hex-size [ ";" chunk-ext ]
// Chunk extensions after ';' are ignored.
func ParseChunkSize(line []byte) (int, error) {
	if semi := bytes.IndexByte(line, ';'); semi >= 0 {
		line = line[:semi]
	}
	line = trimOWS(line)

	size, err := parseHexSize(line)
	if err != nil {
		return 0, fmt.Errorf("http: chunked encoding: invalid chunk size %q: %w", line, err)
	}
	return size, nil
}

// parseHexSize parses a hex string into an integer.
func parseHexSize(s []byte) (int, error) {
	if len(s) == 0 {
		return 0, fmt.Errorf("empty hex string")
	}
	n := 0
	for _, c := range s {
		var d int
		switch {
		case c >= '0' && c <= '9':
			d = int(c - '0')
		case c >= 'a' && c <= 'f':
			d = int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = int(c-'A') + 10
		default:
			return 0, fmt.Errorf("invalid hex digit %q", c)
		}
		if n > (maxChunkSize-d)/16 {
			return 0, fmt.Errorf("chunk size overflows")
		}
		n = n<<4 | d
	}
	return n, nil
}
