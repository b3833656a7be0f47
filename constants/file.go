package constants

import "strings"

// AllowedExtensions holds the upload extensions the boundary accepts.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

const (
	PDFMimeType  = "application/pdf"
	PNGMimeType  = "image/png"
	CSVMimeType  = "text/csv"
	XLSXMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	ParquetMimeType = "application/vnd.apache.parquet"

	// DefaultMaxUploadMB mirrors the upload limit of the web client.
	DefaultMaxUploadMB = 50
)

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt reports whether the extension (with or without dot) may be uploaded.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}
