package http

import (
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"parking-gate-service/internal/service"
	"parking-gate-service/internal/utils"
)

type Handler struct {
	gateService *service.GateService
	log         zerolog.Logger
}

func NewHandler(gateService *service.GateService, log zerolog.Logger) *Handler {
	return &Handler{
		gateService: gateService,
		log:         log,
	}
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)

	api := r.Group("/api/v1")
	{
		api.POST("/gate/entry", h.gateEntry)
		api.POST("/gate/exit", h.gateExit)
		api.GET("/occupancy", h.listOccupancy)
		api.GET("/occupancy/:plate", h.getOccupant)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) gateEntry(c *gin.Context) {
	img, ok := h.bindImage(c)
	if !ok {
		return
	}

	result, err := h.gateService.Enter(c.Request.Context(), img)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse(result))
}

func (h *Handler) gateExit(c *gin.Context) {
	img, ok := h.bindImage(c)
	if !ok {
		return
	}

	receipt, err := h.gateService.Exit(c.Request.Context(), img)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(receipt))
}

func (h *Handler) listOccupancy(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.gateService.Occupancy()))
}

func (h *Handler) getOccupant(c *gin.Context) {
	plate := utils.NormalizePlate(c.Param("plate"))
	if plate == "" {
		c.JSON(http.StatusBadRequest, errorResponse("plate parameter is required"))
		return
	}

	occupant, err := h.gateService.Lookup(plate)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(occupant))
}

// bindImage reads and decodes the uploaded "image" form file. On failure
// it writes the error response itself and returns false.
func (h *Handler) bindImage(c *gin.Context) (image.Image, bool) {
	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("image file is required"))
		return nil, false
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("could not decode image"))
		return nil, false
	}
	return img, true
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoPlate):
		c.JSON(http.StatusUnprocessableEntity, errorResponse(err.Error()))
	case errors.Is(err, service.ErrAlreadyParked):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
