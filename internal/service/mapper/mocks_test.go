package mapper

import (
	"context"

	"github.com/stretchr/testify/mock"

	"firesync/internal/cms"
	"firesync/internal/models"
)

type mockContent struct {
	mock.Mock
	cms.ContentSource
}

func (m *mockContent) GetImage(ctx context.Context, id int64) (models.Image, bool, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Image), args.Bool(1), args.Error(2)
}

type mockMetadata struct {
	mock.Mock
}

func (m *mockMetadata) Meta(ctx context.Context, item models.ContentItem, key string) (any, bool, error) {
	args := m.Called(ctx, item, key)
	return args.Get(0), args.Bool(1), args.Error(2)
}

type mockTaxonomies struct {
	mock.Mock
}

func (m *mockTaxonomies) ItemTerms(ctx context.Context, item models.ContentItem, taxonomy string) ([]models.TermRef, error) {
	args := m.Called(ctx, item, taxonomy)
	refs, _ := args.Get(0).([]models.TermRef)
	return refs, args.Error(1)
}

type mockCustomFields struct {
	mock.Mock
}

func (m *mockCustomFields) IsActive(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *mockCustomFields) GetFieldValue(ctx context.Context, item models.ContentItem, key string) (any, bool, error) {
	args := m.Called(ctx, item, key)
	return args.Get(0), args.Bool(1), args.Error(2)
}

func (m *mockCustomFields) ListFieldsForType(ctx context.Context, contentType string) ([]cms.FieldInfo, error) {
	args := m.Called(ctx, contentType)
	fields, _ := args.Get(0).([]cms.FieldInfo)
	return fields, args.Error(1)
}
