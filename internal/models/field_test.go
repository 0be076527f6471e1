package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFieldDescriptor(t *testing.T) {
	tests := []struct {
		input    string
		expected FieldDescriptor
	}{
		{input: "post_title", expected: FieldDescriptor{Kind: FieldIntrinsic, Name: "post_title", Key: "post_title"}},
		{input: "meta_price", expected: FieldDescriptor{Kind: FieldMetadata, Name: "meta_price", Key: "price"}},
		{input: "acf_subtitle", expected: FieldDescriptor{Kind: FieldCustom, Name: "acf_subtitle", Key: "subtitle"}},
		{input: "tax_category", expected: FieldDescriptor{Kind: FieldTaxonomy, Name: "tax_category", Key: "category"}},
		{input: "taxonomy_post_tag", expected: FieldDescriptor{Kind: FieldTaxonomy, Name: "taxonomy_post_tag", Key: "post_tag"}},
		{input: "featured_image", expected: FieldDescriptor{Kind: FieldPrimaryImage, Name: "featured_image"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFieldDescriptor(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	t.Run("rejects empty identifiers and bare prefixes", func(t *testing.T) {
		for _, input := range []string{"", "  ", "meta_", "acf_", "tax_", "taxonomy_"} {
			_, err := ParseFieldDescriptor(input)
			assert.ErrorIs(t, err, ErrInvalidFieldDescriptor, input)
		}
	})
}

func TestParseFieldDescriptorsRejectsDuplicates(t *testing.T) {
	_, err := ParseFieldDescriptors([]string{"post_title", "meta_a", "post_title"})

	assert.ErrorIs(t, err, ErrInvalidFieldDescriptor)
}

func TestContentTypeTargetDestinationKey(t *testing.T) {
	target := ContentTypeTarget{
		Slug:   "post",
		Fields: []FieldDescriptor{IntrinsicField("post_title"), MetadataField("price")},
		Rename: map[string]string{"post_title": "title"},
	}

	assert.Equal(t, "title", target.DestinationKey(target.Fields[0]))
	assert.Equal(t, "meta_price", target.DestinationKey(target.Fields[1]))
	assert.True(t, target.Selects(FieldMetadata, "price"))
	assert.False(t, target.Selects(FieldMetadata, "weight"))
	assert.False(t, target.Selects(FieldPrimaryImage, ""))
}

func TestTermProperty(t *testing.T) {
	term := Term{ID: 12, Name: "News", Slug: "news", Count: 3}

	v, ok := term.Property("term_id")
	assert.True(t, ok)
	assert.Equal(t, "12", v)

	_, ok = term.Property("menu_order")
	assert.False(t, ok)
}
