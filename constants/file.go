package constants

import "strings"

// MIMEPDF is the only source type with a text layer.
const MIMEPDF = "application/pdf"

// AllowedMIMETypes maps accepted upload MIME types to their storage extension.
var AllowedMIMETypes = map[string]string{
	MIMEPDF:      ".pdf",
	"image/png":  ".png",
	"image/jpeg": ".jpg",
}

// IsAllowedMIMEType reports whether uploads of this MIME type are accepted.
func IsAllowedMIMEType(mimeType string) bool {
	_, ok := AllowedMIMETypes[mimeType]
	return ok
}

// ExtensionForMIME returns the storage extension for an accepted MIME type.
func ExtensionForMIME(mimeType string) string {
	return AllowedMIMETypes[mimeType]
}

// MIMEForExtension maps a filename extension to the MIME type used when
// attaching page images to vision requests.
func MIMEForExtension(ext string) string {
	switch NormalizeExt(ext) {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "pdf":
		return MIMEPDF
	}
	return "application/octet-stream"
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
