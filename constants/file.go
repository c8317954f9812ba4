package constants

import "strings"

// MaxUploadBytes caps a single screenshot upload.
const MaxUploadBytes int64 = 10 << 20

// ProofRetentionDays is the age after which a proof is flagged as stale on review.
const ProofRetentionDays = 30

// AllowedExtensions holds the screenshot extensions accepted on upload.
var AllowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt reports whether ext (with or without dot) may be uploaded.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}
