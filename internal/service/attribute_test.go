package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipebox/recipebox/internal/metrics"
	"github.com/recipebox/recipebox/internal/service"
)

func TestAttributeService_ListIsOwnerScopedAndOrdered(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	owner := e.user(t, "owner@example.com")
	other := e.user(t, "other@example.com")

	e.tag(t, owner.ID, "Vegan")
	e.tag(t, owner.ID, "Dessert")
	e.tag(t, other.ID, "Fruity")

	tags, err := e.tags.List(ctx, owner.ID, service.ListAttributesInput{})
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "Vegan", tags[0].Name)
	assert.Equal(t, "Dessert", tags[1].Name)
}

func TestAttributeService_CreateValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input service.AttributeInput
		want  string
	}{
		{"missing", service.AttributeInput{}, "this field is required"},
		{"empty", service.AttributeInput{Name: ptr("")}, "this field may not be blank"},
		{"blank", service.AttributeInput{Name: ptr("   ")}, "this field may not be blank"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newEnv(t)
			owner := e.user(t, "owner@example.com")

			_, err := e.ings.Create(context.Background(), owner.ID, tt.input)
			var vErr *service.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.want, vErr.Fields["name"])

			list, err := e.ings.List(context.Background(), owner.ID, service.ListAttributesInput{})
			require.NoError(t, err)
			assert.Empty(t, list, "nothing may be persisted")
		})
	}
}

func TestAttributeService_ForeignIDsAreNotFound(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	owner := e.user(t, "owner@example.com")
	intruder := e.user(t, "intruder@example.com")
	tag := e.tag(t, owner.ID, "Secret")

	_, err := e.tags.Get(ctx, intruder.ID, tag.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)

	_, err = e.tags.Update(ctx, intruder.ID, tag.ID, service.AttributeInput{Name: ptr("Mine")}, false)
	assert.ErrorIs(t, err, service.ErrNotFound)

	assert.ErrorIs(t, e.tags.Delete(ctx, intruder.ID, tag.ID), service.ErrNotFound)

	got, err := e.tags.Get(ctx, owner.ID, tag.ID)
	require.NoError(t, err)
	assert.Equal(t, "Secret", got.Name)

	_, err = e.tags.Get(ctx, owner.ID, 12345)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestAttributeService_UpdateAndDelete(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	owner := e.user(t, "owner@example.com")
	ing := e.ingredient(t, owner.ID, "Kale")

	same, err := e.ings.Update(ctx, owner.ID, ing.ID, service.AttributeInput{}, true)
	require.NoError(t, err)
	assert.Equal(t, "Kale", same.Name)

	_, err = e.ings.Update(ctx, owner.ID, ing.ID, service.AttributeInput{}, false)
	var vErr *service.ValidationError
	require.ErrorAs(t, err, &vErr)

	renamed, err := e.ings.Update(ctx, owner.ID, ing.ID, service.AttributeInput{Name: ptr("Spinach")}, true)
	require.NoError(t, err)
	assert.Equal(t, "Spinach", renamed.Name)

	require.NoError(t, e.ings.Delete(ctx, owner.ID, ing.ID))
	_, err = e.ings.Get(ctx, owner.ID, ing.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)

	snap := e.recorder.Snapshot()
	assert.Equal(t, uint64(1), snap.Created[metrics.ResourceIngredient])
	assert.Equal(t, uint64(1), snap.Deleted[metrics.ResourceIngredient])
}

func TestAttributeService_AssignedOnly(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	owner := e.user(t, "owner@example.com")
	eggs := e.ingredient(t, owner.ID, "Eggs")
	e.ingredient(t, owner.ID, "Cheese")
	breakfast := e.tag(t, owner.ID, "Breakfast")
	e.tag(t, owner.ID, "Lunch")

	e.recipe(t, owner.ID, "Eggs Benedict", []int64{breakfast.ID}, []int64{eggs.ID})
	e.recipe(t, owner.ID, "Coriander eggs", nil, []int64{eggs.ID})

	ings, err := e.ings.List(ctx, owner.ID, service.ListAttributesInput{AssignedOnly: true})
	require.NoError(t, err)
	require.Len(t, ings, 1)
	assert.Equal(t, eggs.ID, ings[0].ID)

	tags, err := e.tags.List(ctx, owner.ID, service.ListAttributesInput{AssignedOnly: true})
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, breakfast.ID, tags[0].ID)
}
