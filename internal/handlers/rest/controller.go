package rest

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/KirkDiggler/gatherer/internal/common/logging"
	"github.com/KirkDiggler/gatherer/internal/services/gathering"
	"github.com/labstack/echo/v4"
)

// GatheringController serves the gathering endpoints
type GatheringController struct {
	gatheringService gathering.Service
}

// NewGatheringController creates a gathering controller
func NewGatheringController(gatheringService gathering.Service) *GatheringController {
	return &GatheringController{gatheringService: gatheringService}
}

// Create handles POST /gathering
func (h *GatheringController) Create(c echo.Context) error {
	var req CreateGatheringRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, &ErrorResponse{Error: "invalid request body"})
	}

	weight := 1.0
	if req.Weight != nil {
		weight = *req.Weight
	}

	out, err := h.gatheringService.Create(c.Request().Context(), &gathering.CreateInput{
		VenueID:      req.VenueID,
		ChannelID:    req.ChannelID,
		RoleIDs:      req.RoleIDs,
		AllCanAttend: req.AllCanAttend,
		StartAt:      req.StartAt,
		EndAt:        req.EndAt,
		Weight:       weight,
		CreatedBy:    req.CreatedBy,
	})
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(http.StatusCreated, newGatheringResponse(out.Gathering))
}

// List handles GET /gatherings/:venueId
func (h *GatheringController) List(c echo.Context) error {
	out, err := h.gatheringService.List(c.Request().Context(), &gathering.ListInput{VenueID: c.Param("venueId")})
	if err != nil {
		return h.respondError(c, err)
	}

	resp := make([]*GatheringResponse, 0, len(out.Gatherings))
	for _, sm := range out.Gatherings {
		resp = append(resp, newGatheringResponse(sm.Gathering))
	}
	return c.JSON(http.StatusOK, resp)
}

// Results handles GET /gathering/:id/results
func (h *GatheringController) Results(c echo.Context) error {
	out, err := h.gatheringService.GetResults(c.Request().Context(), &gathering.GetResultsInput{GatheringID: c.Param("id")})
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, newResultsResponse(out.Gathering, out.Scores))
}

// Delete handles DELETE /gathering/:id
func (h *GatheringController) Delete(c echo.Context) error {
	if err := h.gatheringService.Delete(c.Request().Context(), &gathering.DeleteInput{GatheringID: c.Param("id")}); err != nil {
		return h.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *GatheringController) respondError(c echo.Context, err error) error {
	switch {
	case gathering.IsValidationError(err):
		return c.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
	case errors.Is(err, gathering.ErrGatheringNotFound):
		return c.JSON(http.StatusNotFound, &ErrorResponse{Error: err.Error()})
	case errors.Is(err, gathering.ErrResultsNotReady):
		return c.JSON(http.StatusConflict, &ErrorResponse{Error: err.Error()})
	}

	slog.ErrorContext(c.Request().Context(), "request failed",
		"method", c.Request().Method, "path", c.Path(), logging.ErrKey, err)
	return c.JSON(http.StatusInternalServerError, &ErrorResponse{Error: "internal error"})
}
