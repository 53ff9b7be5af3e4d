package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipebox/recipebox/internal/config"
	"github.com/recipebox/recipebox/internal/repository/memory"
)

func TestRedactURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"postgres://app:s3cret@db:5432/recipes", "postgres://app@db:5432/recipes"},
		{"redis://:s3cret@cache:6379/0", "redis://redacted@cache:6379/0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, redactURL(tt.in), tt.in)
	}
}

func TestSanitizeError(t *testing.T) {
	dsn := "postgres://app:s3cret@db:5432/recipes"
	err := errors.New("dial " + dsn + " failed: password=s3cret host=db")

	msg := sanitizeError(err, dsn, "")

	assert.NotContains(t, msg, "s3cret")
	assert.Contains(t, msg, "password=redacted")
	assert.Empty(t, sanitizeError(nil))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("nonsense"))
}

func TestOpenStore_Memory(t *testing.T) {
	store, err := openStore(context.Background(), &config.Config{DatabaseURL: config.MemoryDatabaseURL})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, store)
}

func TestOpenStorage_Local(t *testing.T) {
	cfg := &config.Config{
		StorageBackend: config.StorageLocal,
		MediaRoot:      t.TempDir(),
		BaseURL:        "http://api.test/",
	}

	images, media, err := openStorage(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, media)
	assert.Equal(t, "http://api.test/media/uploads/recipe/a.png", images.URL("uploads/recipe/a.png"))

	rec := httptest.NewRecorder()
	media.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/recipe/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOpenStorage_Unknown(t *testing.T) {
	_, _, err := openStorage(context.Background(), &config.Config{StorageBackend: "ftp"})
	assert.Error(t, err)
}
