package media

import (
	"fmt"
	"mime"
	"strings"
)

// IncorrectMediaTypeError is returned for every MIME validation failure.
// It never wraps a network or filesystem cause.
type IncorrectMediaTypeError struct {
	// MimeType is the offending value, empty when none could be resolved
	MimeType string
	// Expected is the required family; empty means image or video
	Expected Kind
	// ContentType is the response Content-Type tried when loading from a URL
	ContentType string
	// Hint carries extra context such as an unsupported file extension
	Hint string
}

func (e *IncorrectMediaTypeError) Error() string {
	got := "missing"
	if e.MimeType != "" {
		got = fmt.Sprintf("%q", e.MimeType)
	}
	expected := "image/* or video/*"
	if e.Expected != "" {
		expected = string(e.Expected) + "/*"
	}

	msg := fmt.Sprintf("incorrect media type: got %s, expected %s", got, expected)
	if e.ContentType != "" {
		msg += fmt.Sprintf(" (Content-Type %q)", e.ContentType)
	}
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	return msg
}

// KindOf returns the family of mimeType, or false when it is neither
// image/* nor video/*.
func KindOf(mimeType string) (Kind, bool) {
	family, subtype, ok := strings.Cut(strings.ToLower(strings.TrimSpace(mimeType)), "/")
	if !ok || subtype == "" {
		return "", false
	}
	switch Kind(family) {
	case KindImage:
		return KindImage, true
	case KindVideo:
		return KindVideo, true
	}
	return "", false
}

// resolve trims candidate and checks it against the expected family
func resolve(candidate string, expected Kind) (string, error) {
	mimeType := strings.TrimSpace(candidate)
	if err := checkFamily(mimeType, expected); err != nil {
		return "", err
	}
	return mimeType, nil
}

func checkFamily(mimeType string, expected Kind) error {
	if mimeType == "" {
		return &IncorrectMediaTypeError{Expected: expected}
	}
	kind, ok := KindOf(mimeType)
	if !ok {
		return &IncorrectMediaTypeError{MimeType: mimeType, Expected: expected}
	}
	if expected != "" && kind != expected {
		return &IncorrectMediaTypeError{MimeType: mimeType, Expected: expected}
	}
	return nil
}

// mediaTypeOnly strips parameters from a Content-Type value
func mediaTypeOnly(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType
	}
	return mediaType
}
