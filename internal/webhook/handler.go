package webhook

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"firesync/internal/service/orchestrator"
)

type handler struct {
	events EventHandler
	logger zerolog.Logger
}

func (h *handler) RegisterRoutes(g *echo.Group) {
	g.POST("/entity/saved", h.handleSaved)
	g.POST("/entity/deleted", h.handleDeleted)
	g.POST("/entity/status", h.handleStatus)
	g.POST("/entity/meta", h.handleMetadata)
	g.POST("/entity/image", h.handlePrimaryImage)
	g.POST("/term", h.handleTerm)
	g.POST("/type", h.handleType)
}

func (h *handler) handleSaved(c echo.Context) error {
	var p savedPayload
	if err := bind(c, &p); err != nil {
		return err
	}
	result, err := h.events.OnEntitySaved(c.Request().Context(), orchestrator.SaveEvent{
		ContentType: p.ContentType,
		ID:          p.ID,
		Revision:    p.Revision,
		Autosave:    p.Autosave,
	})
	return h.respond(c, "entity_saved", result, err)
}

func (h *handler) handleDeleted(c echo.Context) error {
	var p entityPayload
	if err := bind(c, &p); err != nil {
		return err
	}
	result, err := h.events.OnEntityDeleted(c.Request().Context(), p.ContentType, p.ID)
	return h.respond(c, "entity_deleted", result, err)
}

func (h *handler) handleStatus(c echo.Context) error {
	var p statusPayload
	if err := bind(c, &p); err != nil {
		return err
	}
	result, err := h.events.OnStatusChanged(c.Request().Context(), p.ContentType, p.ID, p.OldStatus, p.NewStatus)
	return h.respond(c, "status_changed", result, err)
}

func (h *handler) handleMetadata(c echo.Context) error {
	var p metadataPayload
	if err := bind(c, &p); err != nil {
		return err
	}
	result, err := h.events.OnMetadataChanged(c.Request().Context(), p.ContentType, p.ID, p.MetaKey)
	return h.respond(c, "metadata_changed", result, err)
}

func (h *handler) handlePrimaryImage(c echo.Context) error {
	var p entityPayload
	if err := bind(c, &p); err != nil {
		return err
	}
	result, err := h.events.OnPrimaryImageChanged(c.Request().Context(), p.ContentType, p.ID)
	return h.respond(c, "primary_image_changed", result, err)
}

func (h *handler) handleTerm(c echo.Context) error {
	var p termPayload
	if err := bind(c, &p); err != nil {
		return err
	}
	result, err := h.events.OnTermChanged(c.Request().Context(), p.Taxonomy, p.TermID)
	return h.respond(c, "term_changed", result, err)
}

func (h *handler) handleType(c echo.Context) error {
	var p typePayload
	if err := bind(c, &p); err != nil {
		return err
	}
	result, err := h.events.OnTypeRegistered(c.Request().Context(), p.Kind, p.Slug)
	return h.respond(c, "type_registered", result, err)
}

func bind(c echo.Context, payload any) error {
	if err := c.Bind(payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed payload")
	}
	if err := c.Validate(payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// respond maps the outcome to a status code. Unsuccessful results answer 502
// so the sender retries them.
func (h *handler) respond(c echo.Context, event string, result *orchestrator.SyncResult, err error) error {
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Event handling failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	if !result.Success {
		h.logger.Warn().Str("event", event).Str("run_id", result.RunID).Str("reason", result.Reason).Msg("Event sync unsuccessful")
		return c.JSON(http.StatusBadGateway, result)
	}
	return c.JSON(http.StatusOK, result)
}
