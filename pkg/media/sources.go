package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 60 * time.Second
	defaultMaxBytes    = 100 * 1024 * 1024
)

// Base64Decoder decodes base64 text into bytes
type Base64Decoder func(string) ([]byte, error)

// DecodeBase64 is the decoder used by FromBase64. It is set once here and
// may be replaced at program start, never per call.
var DecodeBase64 Base64Decoder = base64.StdEncoding.DecodeString

type options struct {
	name       string
	mimeType   string
	httpClient *http.Client
	maxBytes   int64
}

// Option configures a constructor
type Option func(*options)

// WithName sets the display name
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithMimeType overrides any MIME type inferred from the source
func WithMimeType(mimeType string) Option {
	return func(o *options) { o.mimeType = mimeType }
}

// WithHTTPClient sets the client used by FromURL
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithMaxBytes caps the size of a payload fetched by FromURL
func WithMaxBytes(n int64) Option {
	return func(o *options) { o.maxBytes = n }
}

func applyOptions(opts []Option) options {
	o := options{maxBytes: defaultMaxBytes}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return o
}

// FromBytes builds a media value from raw bytes and an explicit MIME type
func FromBytes[M Media](v Variant[M], data []byte, mimeType string, opts ...Option) (M, error) {
	o := applyOptions(opts)
	return construct(v, data, mimeType, o.name)
}

// FromBlob builds a media value from a blob. The blob's own type is used
// unless WithMimeType overrides it.
func FromBlob[M Media](v Variant[M], blob *Blob, opts ...Option) (M, error) {
	o := applyOptions(opts)
	candidate := o.mimeType
	if strings.TrimSpace(candidate) == "" {
		candidate = blob.Type()
	}
	return construct(v, blob.data, candidate, o.name)
}

// FromFile builds a media value from a named file. The name defaults to the
// file's own name.
func FromFile[M Media](v Variant[M], file *File, opts ...Option) (M, error) {
	return FromBlob(v, &file.Blob, append([]Option{WithName(file.Name())}, opts...)...)
}

// FromBase64 decodes encoded and builds a media value from the bytes
func FromBase64[M Media](v Variant[M], encoded, mimeType string, opts ...Option) (M, error) {
	var zero M
	data, err := DecodeBase64(strings.TrimSpace(encoded))
	if err != nil {
		return zero, fmt.Errorf("failed to decode base64: %w", err)
	}
	return FromBytes(v, data, mimeType, opts...)
}

// FromURL downloads a payload and builds a media value from it. The MIME
// type is taken from WithMimeType, then the Content-Type header, then the
// sniffed content of the body.
func FromURL[M Media](ctx context.Context, v Variant[M], rawURL string, opts ...Option) (M, error) {
	var zero M
	o := applyOptions(opts)

	fetched, err := fetch(ctx, rawURL, o)
	if err != nil {
		return zero, err
	}

	m, err := construct(v, fetched.data, fetched.candidate, fetched.name)
	if err != nil {
		return zero, withContentType(err, fetched.contentType)
	}
	return m, nil
}

// FromFilePath reads a local file and builds a media value from it. The MIME
// type is taken from WithMimeType, then the file extension.
func FromFilePath[M Media](v Variant[M], filePath string, opts ...Option) (M, error) {
	var zero M
	o := applyOptions(opts)

	candidate, err := pathMimeType(filePath, o.mimeType, v.kind)
	if err != nil {
		return zero, err
	}
	if _, err := resolve(candidate, v.kind); err != nil {
		return zero, err
	}

	// #nosec G304 - the path is supplied by the caller
	data, err := os.ReadFile(filePath)
	if err != nil {
		return zero, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	name := o.name
	if name == "" {
		name = filepath.Base(filePath)
	}
	return construct(v, data, candidate, name)
}

// NewImage builds an Image from raw bytes
func NewImage(data []byte, mimeType string, opts ...Option) (*Image, error) {
	return FromBytes(ImageVariant, data, mimeType, opts...)
}

// NewVideo builds a Video from raw bytes
func NewVideo(data []byte, mimeType string, opts ...Option) (*Video, error) {
	return FromBytes(VideoVariant, data, mimeType, opts...)
}

// ImageFromFilePath reads an image file
func ImageFromFilePath(filePath string, opts ...Option) (*Image, error) {
	return FromFilePath(ImageVariant, filePath, opts...)
}

// VideoFromFilePath reads a video file
func VideoFromFilePath(filePath string, opts ...Option) (*Video, error) {
	return FromFilePath(VideoVariant, filePath, opts...)
}

// ImageFromURL downloads an image
func ImageFromURL(ctx context.Context, rawURL string, opts ...Option) (*Image, error) {
	return FromURL(ctx, ImageVariant, rawURL, opts...)
}

// VideoFromURL downloads a video
func VideoFromURL(ctx context.Context, rawURL string, opts ...Option) (*Video, error) {
	return FromURL(ctx, VideoVariant, rawURL, opts...)
}

// Open loads source, an http(s) URL or a local path, and picks the Image or
// Video variant from the resolved MIME family.
func Open(ctx context.Context, source string, opts ...Option) (Media, error) {
	o := applyOptions(opts)

	if isRemote(source) {
		fetched, err := fetch(ctx, source, o)
		if err != nil {
			return nil, err
		}
		m, err := build(fetched.data, fetched.candidate, fetched.name)
		if err != nil {
			return nil, withContentType(err, fetched.contentType)
		}
		return m, nil
	}

	candidate, err := pathMimeType(source, o.mimeType, "")
	if err != nil {
		return nil, err
	}
	kind, ok := KindOf(candidate)
	if !ok {
		return nil, &IncorrectMediaTypeError{MimeType: strings.TrimSpace(candidate)}
	}
	if kind == KindVideo {
		return VideoFromFilePath(source, opts...)
	}
	return ImageFromFilePath(source, opts...)
}

func build(data []byte, candidate, name string) (Media, error) {
	kind, ok := KindOf(candidate)
	if !ok {
		return nil, &IncorrectMediaTypeError{MimeType: strings.TrimSpace(candidate)}
	}
	if kind == KindVideo {
		return construct(VideoVariant, data, candidate, name)
	}
	return construct(ImageVariant, data, candidate, name)
}

func pathMimeType(filePath, override string, expected Kind) (string, error) {
	if strings.TrimSpace(override) != "" {
		return override, nil
	}
	if guessed := GuessMimeType(filePath); guessed != "" {
		return guessed, nil
	}
	ext := filepath.Ext(filePath)
	if ext == "" {
		ext = "(none)"
	}
	return "", &IncorrectMediaTypeError{
		Expected: expected,
		Hint:     fmt.Sprintf("unsupported file extension %s", ext),
	}
}

type fetchedPayload struct {
	data        []byte
	candidate   string
	contentType string
	name        string
}

func fetch(ctx context.Context, rawURL string, o options) (*fetchedPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", rawURL, err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to fetch %s: status %d", rawURL, resp.StatusCode)
	}

	if resp.ContentLength > o.maxBytes {
		return nil, fmt.Errorf("content size %d bytes exceeds maximum %d bytes", resp.ContentLength, o.maxBytes)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, o.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", rawURL, err)
	}
	if int64(len(data)) > o.maxBytes {
		return nil, fmt.Errorf("response size exceeds maximum %d bytes", o.maxBytes)
	}

	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	candidate := o.mimeType
	if strings.TrimSpace(candidate) == "" {
		candidate = mediaTypeOnly(contentType)
	}
	if strings.TrimSpace(candidate) == "" {
		candidate = DetectMimeType(data)
	}

	name := o.name
	if name == "" {
		name = nameFromURL(rawURL)
	}

	return &fetchedPayload{
		data:        data,
		candidate:   candidate,
		contentType: contentType,
		name:        name,
	}, nil
}

func withContentType(err error, contentType string) error {
	if mediaErr, ok := err.(*IncorrectMediaTypeError); ok && contentType != "" {
		mediaErr.ContentType = contentType
	}
	return err
}

func isRemote(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func nameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." {
		return ""
	}
	return base
}
