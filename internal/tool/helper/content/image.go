package content

import "bytes"

// ImageSniffLen is the number of leading bytes DetectImageMime needs.
const ImageSniffLen = 12

// DetectImageMime returns the MIME type of a supported image from its leading
// bytes, or "" when the header matches none of JPEG, PNG, GIF or WebP.
func DetectImageMime(header []byte) string {
	switch {
	case bytes.HasPrefix(header, []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg"
	case bytes.HasPrefix(header, []byte{0x89, 0x50, 0x4E, 0x47}):
		return "image/png"
	case bytes.HasPrefix(header, []byte("GIF8")):
		return "image/gif"
	case len(header) >= ImageSniffLen &&
		bytes.Equal(header[:4], []byte("RIFF")) &&
		bytes.Equal(header[8:12], []byte("WEBP")):
		return "image/webp"
	}
	return ""
}
