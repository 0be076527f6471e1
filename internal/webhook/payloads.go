package webhook

import "firesync/internal/models"

type entityPayload struct {
	ContentType string `json:"content_type" validate:"required"`
	ID          int64  `json:"id" validate:"gt=0"`
}

type savedPayload struct {
	entityPayload
	Revision bool `json:"revision"`
	Autosave bool `json:"autosave"`
}

type statusPayload struct {
	entityPayload
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status" validate:"required"`
}

type metadataPayload struct {
	entityPayload
	MetaKey string `json:"meta_key" validate:"required"`
}

type termPayload struct {
	Taxonomy string `json:"taxonomy" validate:"required"`
	TermID   int64  `json:"term_id"`
}

type typePayload struct {
	Kind models.TargetKind `json:"kind" validate:"required,oneof=taxonomy content_type"`
	Slug string            `json:"slug" validate:"required"`
}
