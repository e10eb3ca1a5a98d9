package constants

import "strings"

// FileFormat classifies an input file for strategy selection.
type FileFormat string

const (
	PDF     FileFormat = "PDF"
	IMAGE   FileFormat = "IMAGE"
	UNKNOWN FileFormat = "UNKNOWN"
)

// AllowedExtensions holds the default allowed file extensions for uploads.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"webp": {},
}

// EstimatedBytesPerPage backs the page-count heuristic for PDFs whose page
// tree cannot be read: size divided by ~100KB/page.
const EstimatedBytesPerPage = 100 * 1024

// MaxNativePDFPages bounds native PDF submission; larger documents must be
// pre-rasterized client-side. A cost/request-size policy, not a technical
// ceiling.
const MaxNativePDFPages = 5

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a file extension to its processing format.
func MapExtToFormat(ext string) FileFormat {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png", "webp", "gif":
		return IMAGE
	default:
		return UNKNOWN
	}
}

// MapMIMEToFormat maps a MIME type to its processing format.
func MapMIMEToFormat(mimeType string) FileFormat {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case mt == "application/pdf":
		return PDF
	case strings.HasPrefix(mt, "image/"):
		return IMAGE
	default:
		return UNKNOWN
	}
}
