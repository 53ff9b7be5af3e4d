package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTestImage(t *testing.T, w, h int, format imaging.Format) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, format))
	return buf.Bytes()
}

func TestNewRecipeImageKey(t *testing.T) {
	t.Parallel()

	key := NewRecipeImageKey(".JPG")
	assert.True(t, strings.HasPrefix(key, "uploads/recipe/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))
	// uploads/recipe/ + 36 char uuid + .jpg
	assert.Len(t, key, len("uploads/recipe/")+36+4)
	assert.NotEqual(t, key, NewRecipeImageKey(".jpg"))
}

func TestValidateKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key     string
		wantErr bool
	}{
		{"uploads/recipe/a.jpg", false},
		{"", true},
		{"/etc/passwd", true},
		{"uploads/../../etc/passwd", true},
		{"uploads//a.jpg", true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Parallel()
			err := validateKey(tt.key)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLocalStore_PutServeDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	root := t.TempDir()
	store, err := NewLocal(root, "http://localhost:8080/media/")
	require.NoError(t, err)

	key := "uploads/recipe/test.png"
	data := encodeTestImage(t, 4, 4, imaging.PNG)
	require.NoError(t, store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "image/png"))

	onDisk, err := os.ReadFile(filepath.Join(root, "uploads", "recipe", "test.png"))
	require.NoError(t, err)
	assert.Equal(t, data, onDisk)

	assert.Equal(t, "http://localhost:8080/media/uploads/recipe/test.png", store.URL(key))

	rec := httptest.NewRecorder()
	store.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/"+key, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	store.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/recipe/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "directory listing must be hidden")

	require.NoError(t, store.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(root, "uploads", "recipe", "test.png"))
	assert.True(t, os.IsNotExist(err))

	// Deleting again is not an error.
	assert.NoError(t, store.Delete(ctx, key))
	assert.ErrorIs(t, store.Put(ctx, "../escape", strings.NewReader("x"), 1, ""), ErrInvalidKey)
}

type fakeS3 struct {
	puts    map[string][]byte
	deletes []string
	err     error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, _ := io.ReadAll(in.Body)
	f.puts[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deletes = append(f.deletes, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fake := &fakeS3{puts: map[string][]byte{}}
	store := &S3Store{client: fake, bucket: "media", publicURL: "https://cdn.example.com"}

	require.NoError(t, store.Put(ctx, "uploads/recipe/a.png", strings.NewReader("abc"), 3, "image/png"))
	assert.Equal(t, []byte("abc"), fake.puts["uploads/recipe/a.png"])
	assert.Equal(t, "https://cdn.example.com/uploads/recipe/a.png", store.URL("uploads/recipe/a.png"))

	require.NoError(t, store.Delete(ctx, "uploads/recipe/a.png"))
	assert.Equal(t, []string{"uploads/recipe/a.png"}, fake.deletes)

	fake.err = errors.New("boom")
	assert.Error(t, store.Put(ctx, "uploads/recipe/b.png", strings.NewReader("x"), 1, "image/png"))
}

func TestProcessImage(t *testing.T) {
	t.Parallel()

	t.Run("valid png keeps bytes", func(t *testing.T) {
		t.Parallel()
		data := encodeTestImage(t, 10, 10, imaging.PNG)

		img, err := ProcessImage(data, "Photo.PNG", ImageLimits{})
		require.NoError(t, err)
		assert.Equal(t, ".png", img.Ext)
		assert.Equal(t, "image/png", img.ContentType)
		assert.Equal(t, data, img.Data)
	})

	t.Run("extension follows content", func(t *testing.T) {
		t.Parallel()
		data := encodeTestImage(t, 10, 10, imaging.JPEG)

		img, err := ProcessImage(data, "upload.png", ImageLimits{})
		require.NoError(t, err)
		assert.Equal(t, ".jpg", img.Ext)
		assert.Equal(t, "image/jpeg", img.ContentType)
	})

	t.Run("downscale", func(t *testing.T) {
		t.Parallel()
		data := encodeTestImage(t, 200, 100, imaging.PNG)

		img, err := ProcessImage(data, "big.png", ImageLimits{MaxDimension: 50})
		require.NoError(t, err)
		assert.Equal(t, 50, img.Width)
		assert.Equal(t, 25, img.Height)
	})

	t.Run("not an image", func(t *testing.T) {
		t.Parallel()
		_, err := ProcessImage([]byte("notimage"), "file.jpg", ImageLimits{})
		assert.ErrorIs(t, err, ErrInvalidImage)
	})

	t.Run("pixel cap", func(t *testing.T) {
		t.Parallel()
		data := encodeTestImage(t, 100, 100, imaging.PNG)

		_, err := ProcessImage(data, "wide.png", ImageLimits{MaxPixels: 100*100 - 1})
		assert.ErrorIs(t, err, ErrInvalidImage)

		_, err = ProcessImage(data, "wide.png", ImageLimits{MaxPixels: 100 * 100})
		assert.NoError(t, err)
	})

	t.Run("forged header is rejected before decoding", func(t *testing.T) {
		data := forgedPNG(50000, 50000)

		var before, after runtime.MemStats
		runtime.ReadMemStats(&before)
		_, err := ProcessImage(data, "huge.png", ImageLimits{})
		runtime.ReadMemStats(&after)

		assert.ErrorIs(t, err, ErrInvalidImage)
		assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(64<<20))
	})
}

// forgedPNG returns a PNG whose IHDR claims width x height RGBA pixels
// followed by an empty IDAT chunk.
func forgedPNG(width, height uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	chunk := func(kind string, data []byte) {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(data)))
		buf.Write(n[:])
		body := append([]byte(kind), data...)
		buf.Write(body)
		binary.BigEndian.PutUint32(n[:], crc32.ChecksumIEEE(body))
		buf.Write(n[:])
	}

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], width)
	binary.BigEndian.PutUint32(ihdr[4:], height)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // RGBA
	chunk("IHDR", ihdr)
	chunk("IDAT", nil)
	chunk("IEND", nil)
	return buf.Bytes()
}
