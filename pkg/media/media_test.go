package media

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1x1 transparent PNG
var pngBytes, _ = base64.StdEncoding.DecodeString("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==")

func requireMediaTypeError(t *testing.T, err error) *IncorrectMediaTypeError {
	t.Helper()
	var mediaErr *IncorrectMediaTypeError
	require.Error(t, err)
	require.True(t, errors.As(err, &mediaErr), "expected IncorrectMediaTypeError, got %T: %v", err, err)
	return mediaErr
}

func TestVariantFamilyMatrix(t *testing.T) {
	tests := []struct {
		mimeType string
		image    bool
		video    bool
	}{
		{"image/png", true, false},
		{"image/jpeg", true, false},
		{"image/svg+xml", true, false},
		{"  image/webp  ", true, false},
		{"video/mp4", false, true},
		{"video/quicktime", false, true},
		{"audio/mpeg", false, false},
		{"application/octet-stream", false, false},
		{"text/plain", false, false},
		{"image/", false, false},
		{"image", false, false},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.mimeType, func(t *testing.T) {
			img, err := NewImage([]byte("x"), tt.mimeType)
			if tt.image {
				require.NoError(t, err)
				assert.Equal(t, KindImage, img.Kind())
			} else {
				requireMediaTypeError(t, err)
				assert.Nil(t, img)
			}

			vid, err := NewVideo([]byte("x"), tt.mimeType)
			if tt.video {
				require.NoError(t, err)
				assert.Equal(t, KindVideo, vid.Kind())
			} else {
				requireMediaTypeError(t, err)
				assert.Nil(t, vid)
			}
		})
	}
}

func TestMimeTypeIsTrimmed(t *testing.T) {
	img, err := NewImage(pngBytes, " image/png\n")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MimeType())
}

func TestErrorMessageNamesValueAndFamily(t *testing.T) {
	_, err := NewImage([]byte("x"), "video/mp4")
	mediaErr := requireMediaTypeError(t, err)
	assert.Contains(t, mediaErr.Error(), `"video/mp4"`)
	assert.Contains(t, mediaErr.Error(), "image/*")

	_, err = NewVideo([]byte("x"), "")
	mediaErr = requireMediaTypeError(t, err)
	assert.Contains(t, mediaErr.Error(), "missing")
	assert.Contains(t, mediaErr.Error(), "video/*")
}

func TestVariantBuildRechecksFamily(t *testing.T) {
	_, err := newImage([]byte("x"), "video/mp4", "")
	requireMediaTypeError(t, err)

	_, err = newVideo([]byte("x"), "image/png", "")
	requireMediaTypeError(t, err)
}

func TestZeroVariantIsRejected(t *testing.T) {
	var v Variant[*Image]
	_, err := FromBytes(v, pngBytes, "image/png")
	requireMediaTypeError(t, err)
}

func TestBytesRoundTrip(t *testing.T) {
	input := append([]byte(nil), pngBytes...)
	img, err := NewImage(input, "image/png")
	require.NoError(t, err)

	assert.Equal(t, pngBytes, img.Blob().Bytes())
	assert.Equal(t, "image/png", img.Blob().Type())
	assert.Equal(t, len(pngBytes), img.Blob().Size())
}

func TestPayloadIsImmutable(t *testing.T) {
	input := []byte{1, 2, 3}
	img, err := NewImage(input, "image/png")
	require.NoError(t, err)

	input[0] = 9
	out := img.Blob().Bytes()
	assert.Equal(t, []byte{1, 2, 3}, out)

	out[1] = 9
	assert.Equal(t, []byte{1, 2, 3}, img.Blob().Bytes())
}

func TestFromBlob(t *testing.T) {
	t.Run("intrinsic type", func(t *testing.T) {
		img, err := FromBlob(ImageVariant, NewBlob(pngBytes, "image/png"))
		require.NoError(t, err)
		assert.Equal(t, "image/png", img.MimeType())
	})

	t.Run("override wins", func(t *testing.T) {
		vid, err := FromBlob(VideoVariant, NewBlob([]byte("x"), "application/octet-stream"), WithMimeType("video/mp4"))
		require.NoError(t, err)
		assert.Equal(t, "video/mp4", vid.MimeType())
	})

	t.Run("missing type", func(t *testing.T) {
		_, err := FromBlob(ImageVariant, NewBlob(pngBytes, ""))
		mediaErr := requireMediaTypeError(t, err)
		assert.Empty(t, mediaErr.MimeType)
	})
}

func TestFromFileDefaultsName(t *testing.T) {
	img, err := FromFile(ImageVariant, NewFile(pngBytes, "pixel.png", "image/png"))
	require.NoError(t, err)
	assert.Equal(t, "pixel.png", img.Name())

	img, err = FromFile(ImageVariant, NewFile(pngBytes, "pixel.png", "image/png"), WithName("renamed"))
	require.NoError(t, err)
	assert.Equal(t, "renamed", img.Name())
}

func TestFromBase64(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(pngBytes)
	img, err := FromBase64(ImageVariant, encoded, "image/png")
	require.NoError(t, err)
	assert.Equal(t, pngBytes, img.Blob().Bytes())

	_, err = FromBase64(ImageVariant, "!!not base64!!", "image/png")
	require.Error(t, err)
	var mediaErr *IncorrectMediaTypeError
	assert.False(t, errors.As(err, &mediaErr))

	_, err = FromBase64(VideoVariant, encoded, "image/png")
	requireMediaTypeError(t, err)
}

func TestFromFilePath(t *testing.T) {
	dir := t.TempDir()
	pngPath := filepath.Join(dir, "photo.PNG")
	require.NoError(t, os.WriteFile(pngPath, pngBytes, 0644))
	txtPath := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("hello"), 0644))

	t.Run("extension guess", func(t *testing.T) {
		img, err := ImageFromFilePath(pngPath)
		require.NoError(t, err)
		assert.Equal(t, "image/png", img.MimeType())
		assert.Equal(t, "photo.PNG", img.Name())
		assert.Equal(t, pngBytes, img.Blob().Bytes())
	})

	t.Run("explicit type wins", func(t *testing.T) {
		img, err := ImageFromFilePath(txtPath, WithMimeType("image/jpeg"))
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", img.MimeType())
	})

	t.Run("unknown extension", func(t *testing.T) {
		_, err := ImageFromFilePath(txtPath)
		mediaErr := requireMediaTypeError(t, err)
		assert.Contains(t, mediaErr.Error(), ".txt")
	})

	t.Run("wrong family", func(t *testing.T) {
		_, err := VideoFromFilePath(pngPath)
		requireMediaTypeError(t, err)
	})

	t.Run("missing file is an io error", func(t *testing.T) {
		_, err := ImageFromFilePath(filepath.Join(dir, "absent.png"))
		require.Error(t, err)
		var mediaErr *IncorrectMediaTypeError
		assert.False(t, errors.As(err, &mediaErr))
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})
}

func TestGuessMimeType(t *testing.T) {
	tests := map[string]string{
		"a.jpg": "image/jpeg", "a.jpeg": "image/jpeg", "a.png": "image/png",
		"a.webp": "image/webp", "a.gif": "image/gif", "a.bmp": "image/bmp",
		"a.svg": "image/svg+xml", "a.mp4": "video/mp4", "a.mov": "video/quicktime",
		"a.webm": "video/webm", "a.mkv": "video/x-matroska", "a.avi": "video/x-msvideo",
		"a.tiff": "", "noext": "",
	}
	for path, want := range tests {
		assert.Equal(t, want, GuessMimeType(path), path)
	}
}

func TestFromURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/typed.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png; charset=binary")
		w.Write(pngBytes)
	})
	mux.HandleFunc("/html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	})
	mux.HandleFunc("/untyped", func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.Write(pngBytes)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	ctx := context.Background()

	t.Run("content type header", func(t *testing.T) {
		img, err := FromURL(ctx, ImageVariant, server.URL+"/typed.png")
		require.NoError(t, err)
		assert.Equal(t, "image/png", img.MimeType())
		assert.Equal(t, "typed.png", img.Name())
		assert.Equal(t, pngBytes, img.Blob().Bytes())
	})

	t.Run("override beats header", func(t *testing.T) {
		img, err := FromURL(ctx, ImageVariant, server.URL+"/html", WithMimeType("image/gif"))
		require.NoError(t, err)
		assert.Equal(t, "image/gif", img.MimeType())
	})

	t.Run("sniffed when header absent", func(t *testing.T) {
		img, err := FromURL(ctx, ImageVariant, server.URL+"/untyped")
		require.NoError(t, err)
		assert.Equal(t, "image/png", img.MimeType())
	})

	t.Run("error names content type", func(t *testing.T) {
		_, err := FromURL(ctx, ImageVariant, server.URL+"/html")
		mediaErr := requireMediaTypeError(t, err)
		assert.Equal(t, "text/html", mediaErr.ContentType)
		assert.Contains(t, mediaErr.Error(), "text/html")
	})

	t.Run("non success status is not a media error", func(t *testing.T) {
		_, err := FromURL(ctx, ImageVariant, server.URL+"/missing")
		require.Error(t, err)
		var mediaErr *IncorrectMediaTypeError
		assert.False(t, errors.As(err, &mediaErr))
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("size limit", func(t *testing.T) {
		_, err := FromURL(ctx, ImageVariant, server.URL+"/typed.png", WithMaxBytes(4))
		require.Error(t, err)
	})
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	pngPath := filepath.Join(dir, "frame.png")
	require.NoError(t, os.WriteFile(pngPath, pngBytes, 0644))
	mp4Path := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(mp4Path, []byte("not really mp4"), 0644))

	m, err := Open(context.Background(), pngPath)
	require.NoError(t, err)
	_, isImage := m.(*Image)
	assert.True(t, isImage)

	m, err = Open(context.Background(), mp4Path)
	require.NoError(t, err)
	_, isVideo := m.(*Video)
	assert.True(t, isVideo)
	assert.Equal(t, "video/mp4", m.MimeType())

	_, err = Open(context.Background(), filepath.Join(dir, "x.txt"))
	requireMediaTypeError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/webm")
		w.Write([]byte("webm"))
	}))
	defer server.Close()

	m, err = Open(context.Background(), server.URL+"/clip")
	require.NoError(t, err)
	assert.Equal(t, KindVideo, m.Kind())
}
