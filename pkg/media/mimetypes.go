package media

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Common MIME types
const (
	MIMETypeImageJPEG = "image/jpeg"
	MIMETypeImagePNG  = "image/png"
	MIMETypeImageWebP = "image/webp"
	MIMETypeImageGIF  = "image/gif"
	MIMETypeImageBMP  = "image/bmp"
	MIMETypeImageSVG  = "image/svg+xml"

	MIMETypeVideoMP4       = "video/mp4"
	MIMETypeVideoQuickTime = "video/quicktime"
	MIMETypeVideoWebM      = "video/webm"
	MIMETypeVideoMatroska  = "video/x-matroska"
	MIMETypeVideoAVI       = "video/x-msvideo"
)

var extensionMimeTypes = map[string]string{
	".jpg":  MIMETypeImageJPEG,
	".jpeg": MIMETypeImageJPEG,
	".png":  MIMETypeImagePNG,
	".webp": MIMETypeImageWebP,
	".gif":  MIMETypeImageGIF,
	".bmp":  MIMETypeImageBMP,
	".svg":  MIMETypeImageSVG,

	".mp4":  MIMETypeVideoMP4,
	".mov":  MIMETypeVideoQuickTime,
	".webm": MIMETypeVideoWebM,
	".mkv":  MIMETypeVideoMatroska,
	".avi":  MIMETypeVideoAVI,
}

// GuessMimeType returns the MIME type for a file path's extension, or ""
// when the extension is not supported.
func GuessMimeType(path string) string {
	return extensionMimeTypes[strings.ToLower(filepath.Ext(path))]
}

// DetectMimeType sniffs the MIME type of a payload from its content
func DetectMimeType(data []byte) string {
	return mediaTypeOnly(mimetype.Detect(data).String())
}
