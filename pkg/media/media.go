// Package media builds the image and video payloads submitted for prediction.
//
// Every value produced here carries a MIME type that has been checked against
// its variant's family (image/* for Image, video/* for Video). Construction is
// the only place that check happens, so a Media value that exists is always
// safe to upload.
package media

import (
	"bytes"
	"io"
)

// Kind is the MIME family a variant accepts
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

func (k Kind) String() string {
	return string(k)
}

// Media is a validated, immutable payload ready for upload
type Media interface {
	// MimeType returns the verified MIME type
	MimeType() string
	// Name returns the optional display name
	Name() string
	// Kind returns the variant's family
	Kind() Kind
	// Blob materializes the payload for upload
	Blob() *Blob
}

// Blob is a typed binary payload. Its bytes cannot be changed after creation.
type Blob struct {
	data     []byte
	mimeType string
}

// NewBlob copies data into a new Blob
func NewBlob(data []byte, mimeType string) *Blob {
	return &Blob{
		data:     append([]byte(nil), data...),
		mimeType: mimeType,
	}
}

// Type returns the blob's intrinsic MIME type, possibly empty
func (b *Blob) Type() string {
	return b.mimeType
}

// Size returns the payload length in bytes
func (b *Blob) Size() int {
	return len(b.data)
}

// Bytes returns a copy of the payload
func (b *Blob) Bytes() []byte {
	return append([]byte(nil), b.data...)
}

// Reader returns a reader over the payload
func (b *Blob) Reader() io.Reader {
	return bytes.NewReader(b.data)
}

// File is a named Blob
type File struct {
	Blob
	name string
}

// NewFile copies data into a new named File
func NewFile(data []byte, name, mimeType string) *File {
	return &File{
		Blob: *NewBlob(data, mimeType),
		name: name,
	}
}

// Name returns the file name
func (f *File) Name() string {
	return f.name
}

type payload struct {
	data     []byte
	mimeType string
	name     string
}

func (p payload) MimeType() string { return p.mimeType }
func (p payload) Name() string     { return p.name }

func (p payload) Blob() *Blob {
	// data is never exposed mutably, so the blob can share it
	return &Blob{data: p.data, mimeType: p.mimeType}
}

// Image is a payload whose MIME type is image/*
type Image struct {
	payload
}

// Kind returns KindImage
func (*Image) Kind() Kind { return KindImage }

// Video is a payload whose MIME type is video/*
type Video struct {
	payload
}

// Kind returns KindVideo
func (*Video) Kind() Kind { return KindVideo }

// Variant binds a concrete Media type to the family it accepts and to its
// constructor. ImageVariant and VideoVariant are the only values.
type Variant[M Media] struct {
	kind  Kind
	build func(data []byte, mimeType, name string) (M, error)
}

// Kind returns the family the variant accepts
func (v Variant[M]) Kind() Kind {
	return v.kind
}

var (
	ImageVariant = Variant[*Image]{kind: KindImage, build: newImage}
	VideoVariant = Variant[*Video]{kind: KindVideo, build: newVideo}
)

func newImage(data []byte, mimeType, name string) (*Image, error) {
	if err := checkFamily(mimeType, KindImage); err != nil {
		return nil, err
	}
	return &Image{payload: newPayload(data, mimeType, name)}, nil
}

func newVideo(data []byte, mimeType, name string) (*Video, error) {
	if err := checkFamily(mimeType, KindVideo); err != nil {
		return nil, err
	}
	return &Video{payload: newPayload(data, mimeType, name)}, nil
}

func newPayload(data []byte, mimeType, name string) payload {
	return payload{
		data:     append([]byte(nil), data...),
		mimeType: mimeType,
		name:     name,
	}
}

// construct is the single verified path every constructor converges on.
// The family is checked here and again inside the variant's build func.
func construct[M Media](v Variant[M], data []byte, candidate, name string) (M, error) {
	var zero M
	if v.build == nil {
		return zero, &IncorrectMediaTypeError{MimeType: candidate, Expected: v.kind, Hint: "unknown media variant"}
	}
	mimeType, err := resolve(candidate, v.kind)
	if err != nil {
		return zero, err
	}
	return v.build(data, mimeType, name)
}
