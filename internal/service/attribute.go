package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/recipebox/recipebox/internal/metrics"
	"github.com/recipebox/recipebox/internal/model"
	"github.com/recipebox/recipebox/internal/repository"
)

const maxAttributeNameLength = 255

// AttributeService implements the owner-scoped CRUD contract for one
// attribute kind: tags or ingredients.
type AttributeService struct {
	kind    model.AttributeKind
	store   AttributeStore
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewAttributeService creates an AttributeService for kind.
func NewAttributeService(kind model.AttributeKind, store AttributeStore, recorder metrics.Recorder, logger *slog.Logger) *AttributeService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AttributeService{kind: kind, store: store, metrics: recorder, logger: logger}
}

// ListAttributesInput narrows a listing.
type ListAttributesInput struct {
	AssignedOnly bool
}

// AttributeInput is a create or update payload. Nil means "not provided".
type AttributeInput struct {
	Name *string
}

// List returns the owner's attributes, name descending.
func (s *AttributeService) List(ctx context.Context, ownerID int64, input ListAttributesInput) ([]*model.Attribute, error) {
	attrs, err := s.store.ListAttributes(ctx, s.kind, ownerID, repository.AttributeFilter{AssignedOnly: input.AssignedOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.kind.Plural(), err)
	}
	return attrs, nil
}

// Get returns one of the owner's attributes. Foreign ids are ErrNotFound.
func (s *AttributeService) Get(ctx context.Context, ownerID, id int64) (*model.Attribute, error) {
	a, err := s.store.GetAttribute(ctx, s.kind, ownerID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", s.kind, err)
	}
	return a, nil
}

// Create stores a new attribute owned by ownerID.
func (s *AttributeService) Create(ctx context.Context, ownerID int64, input AttributeInput) (*model.Attribute, error) {
	name, err := validateAttributeName(input.Name)
	if err != nil {
		return nil, err
	}

	a := &model.Attribute{Kind: s.kind, OwnerID: ownerID, Name: name}
	if err := s.store.CreateAttribute(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", s.kind, err)
	}

	s.metrics.IncCreated(string(s.kind))
	s.logger.Info(string(s.kind)+"_created", slog.Int64("id", a.ID), slog.Int64("owner_id", ownerID))
	return a, nil
}

// Update renames an attribute. A partial update without a name is a no-op.
func (s *AttributeService) Update(ctx context.Context, ownerID, id int64, input AttributeInput, partial bool) (*model.Attribute, error) {
	a, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if input.Name == nil && partial {
		return a, nil
	}

	name, err := validateAttributeName(input.Name)
	if err != nil {
		return nil, err
	}
	a.Name = name

	if err := s.store.UpdateAttribute(ctx, a); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update %s: %w", s.kind, err)
	}

	s.metrics.IncUpdated(string(s.kind))
	return a, nil
}

// Delete removes an attribute and detaches it from the owner's recipes.
func (s *AttributeService) Delete(ctx context.Context, ownerID, id int64) error {
	if err := s.store.DeleteAttribute(ctx, s.kind, ownerID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete %s: %w", s.kind, err)
	}

	s.metrics.IncDeleted(string(s.kind))
	s.logger.Info(string(s.kind)+"_deleted", slog.Int64("id", id), slog.Int64("owner_id", ownerID))
	return nil
}

func validateAttributeName(name *string) (string, error) {
	if name == nil {
		return "", fieldError("name", msgRequired)
	}
	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return "", fieldError("name", msgBlank)
	}
	if utf8.RuneCountInString(trimmed) > maxAttributeNameLength {
		return "", fieldError("name", fmt.Sprintf("ensure this field has no more than %d characters", maxAttributeNameLength))
	}
	return trimmed, nil
}
