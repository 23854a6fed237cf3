package content

import "bytes"

// binarySniffLen is how much of a file is checked for NUL bytes, the same
// window git uses.
const binarySniffLen = 8000

var textBOMs = [][]byte{
	{0xFF, 0xFE},             // UTF-16 LE (and UTF-32 LE)
	{0xFE, 0xFF},             // UTF-16 BE
	{0x00, 0x00, 0xFE, 0xFF}, // UTF-32 BE
}

// IsBinary reports whether data looks like binary content: a NUL byte in the
// first binarySniffLen bytes, unless the data opens with a UTF-16/32 BOM.
func IsBinary(data []byte) bool {
	for _, bom := range textBOMs {
		if bytes.HasPrefix(data, bom) {
			return false
		}
	}
	return bytes.IndexByte(data[:min(len(data), binarySniffLen)], 0) >= 0
}
