package util

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// SniffImageMIME detects JPEG and PNG from content. Anything else yields "".
func SniffImageMIME(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	mt := mimetype.Detect(b)
	switch {
	case mt.Is("image/jpeg"):
		return "image/jpeg"
	case mt.Is("image/png"):
		return "image/png"
	}
	return ""
}

// MediaType lower-cases a Content-Type header value and drops parameters,
// e.g. "IMAGE/JPEG; charset=binary" -> "image/jpeg".
func MediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}
