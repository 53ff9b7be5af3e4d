package service_test

import (
	"bytes"
	"context"
	"image/color"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/recipebox/recipebox/internal/auth"
	"github.com/recipebox/recipebox/internal/metrics"
	"github.com/recipebox/recipebox/internal/model"
	"github.com/recipebox/recipebox/internal/repository/memory"
	"github.com/recipebox/recipebox/internal/service"
	"github.com/recipebox/recipebox/internal/storage"
)

var _ service.Store = (*memory.Store)(nil)

var testParams = auth.Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type env struct {
	store    *memory.Store
	images   *fakeImages
	recorder *metrics.InMemoryRecorder
	users    *service.UserService
	tokens   *service.TokenService
	tags     *service.AttributeService
	ings     *service.AttributeService
	recipes  *service.RecipeService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.New()
	images := newFakeImages()
	rec := metrics.NewInMemory()
	return &env{
		store:    store,
		images:   images,
		recorder: rec,
		users:    service.NewUserService(store, testParams, rec, discardLogger),
		tokens:   service.NewTokenService(store, store, nil, testParams, rec, discardLogger),
		tags:     service.NewAttributeService(model.KindTag, store, rec, discardLogger),
		ings:     service.NewAttributeService(model.KindIngredient, store, rec, discardLogger),
		recipes:  service.NewRecipeService(store, store, images, storage.ImageLimits{}, rec, discardLogger),
	}
}

func (e *env) user(t *testing.T, email string) *model.User {
	t.Helper()
	u, err := e.users.CreateUser(context.Background(), email, "testpass123", "Test")
	require.NoError(t, err)
	return u
}

func (e *env) tag(t *testing.T, owner int64, name string) *model.Attribute {
	t.Helper()
	a, err := e.tags.Create(context.Background(), owner, service.AttributeInput{Name: ptr(name)})
	require.NoError(t, err)
	return a
}

func (e *env) ingredient(t *testing.T, owner int64, name string) *model.Attribute {
	t.Helper()
	a, err := e.ings.Create(context.Background(), owner, service.AttributeInput{Name: ptr(name)})
	require.NoError(t, err)
	return a
}

func (e *env) recipe(t *testing.T, owner int64, title string, tags, ings []int64) *model.Recipe {
	t.Helper()
	in := sampleRecipeInput(title)
	if tags != nil {
		in.TagIDs = &tags
	}
	if ings != nil {
		in.IngredientIDs = &ings
	}
	r, err := e.recipes.Create(context.Background(), owner, in)
	require.NoError(t, err)
	return r
}

func sampleRecipeInput(title string) service.RecipeInput {
	price := decimal.RequireFromString("5.00")
	return service.RecipeInput{
		Title:       ptr(title),
		TimeMinutes: ptr(10),
		Price:       &price,
	}
}

func ptr[T any](v T) *T { return &v }

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(w, h, color.NRGBA{G: 255, A: 255}), imaging.PNG))
	return buf.Bytes()
}

// fakeImages is an in-memory storage.Store.
type fakeImages struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeImages() *fakeImages {
	return &fakeImages{objects: map[string][]byte{}}
}

func (f *fakeImages) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeImages) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeImages) URL(key string) string {
	return "http://media.test/" + key
}

func (f *fakeImages) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func (f *fakeImages) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func hasPrefix(s, prefix string) bool { return strings.HasPrefix(s, prefix) }
