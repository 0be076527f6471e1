package models

import (
	"errors"
	"fmt"
	"strings"
)

// FieldKind identifies which category a FieldDescriptor resolves against.
type FieldKind string

const (
	FieldIntrinsic    FieldKind = "intrinsic"
	FieldMetadata     FieldKind = "metadata"
	FieldTaxonomy     FieldKind = "taxonomy"
	FieldCustom       FieldKind = "custom"
	FieldPrimaryImage FieldKind = "primary_image"
)

const (
	metadataPrefix     = "meta_"
	customFieldPrefix  = "acf_"
	taxonomyPrefix     = "tax_"
	taxonomyLongPrefix = "taxonomy_"

	PrimaryImageField = "featured_image"
)

var ErrInvalidFieldDescriptor = errors.New("invalid field descriptor")

// FieldDescriptor names one value to extract from a content item. Name is the
// configured identifier (also the default destination key); Key is the
// property name, metadata key, taxonomy slug or custom field key it resolves.
type FieldDescriptor struct {
	Kind FieldKind
	Name string
	Key  string
}

func IntrinsicField(name string) FieldDescriptor {
	return FieldDescriptor{Kind: FieldIntrinsic, Name: name, Key: name}
}

func MetadataField(key string) FieldDescriptor {
	return FieldDescriptor{Kind: FieldMetadata, Name: metadataPrefix + key, Key: key}
}

func TaxonomyField(slug string) FieldDescriptor {
	return FieldDescriptor{Kind: FieldTaxonomy, Name: taxonomyPrefix + slug, Key: slug}
}

func CustomField(key string) FieldDescriptor {
	return FieldDescriptor{Kind: FieldCustom, Name: customFieldPrefix + key, Key: key}
}

func PrimaryImage() FieldDescriptor {
	return FieldDescriptor{Kind: FieldPrimaryImage, Name: PrimaryImageField}
}

// ParseFieldDescriptor turns a configured field identifier into a descriptor.
//
//	featured_image       -> primary image
//	meta_<key>           -> metadata
//	acf_<key>            -> custom field
//	tax_<slug>           -> taxonomy reference
//	taxonomy_<slug>      -> taxonomy reference
//	anything else        -> intrinsic property
func ParseFieldDescriptor(identifier string) (FieldDescriptor, error) {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return FieldDescriptor{}, fmt.Errorf("%w: empty identifier", ErrInvalidFieldDescriptor)
	}

	var (
		kind FieldKind
		key  string
	)
	switch {
	case id == PrimaryImageField:
		return FieldDescriptor{Kind: FieldPrimaryImage, Name: id}, nil
	case strings.HasPrefix(id, metadataPrefix):
		kind, key = FieldMetadata, strings.TrimPrefix(id, metadataPrefix)
	case strings.HasPrefix(id, customFieldPrefix):
		kind, key = FieldCustom, strings.TrimPrefix(id, customFieldPrefix)
	case strings.HasPrefix(id, taxonomyLongPrefix):
		kind, key = FieldTaxonomy, strings.TrimPrefix(id, taxonomyLongPrefix)
	case strings.HasPrefix(id, taxonomyPrefix):
		kind, key = FieldTaxonomy, strings.TrimPrefix(id, taxonomyPrefix)
	default:
		return IntrinsicField(id), nil
	}

	if key == "" {
		return FieldDescriptor{}, fmt.Errorf("%w: %q has no key after its prefix", ErrInvalidFieldDescriptor, id)
	}
	return FieldDescriptor{Kind: kind, Name: id, Key: key}, nil
}

// ParseFieldDescriptors parses every identifier and rejects duplicates.
func ParseFieldDescriptors(identifiers []string) ([]FieldDescriptor, error) {
	seen := make(map[string]struct{}, len(identifiers))
	out := make([]FieldDescriptor, 0, len(identifiers))
	for _, identifier := range identifiers {
		descriptor, err := ParseFieldDescriptor(identifier)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[descriptor.Name]; dup {
			return nil, fmt.Errorf("%w: %q is listed twice", ErrInvalidFieldDescriptor, descriptor.Name)
		}
		seen[descriptor.Name] = struct{}{}
		out = append(out, descriptor)
	}
	return out, nil
}

func (f FieldDescriptor) String() string {
	return f.Name
}
